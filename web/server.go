package web

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	tours "github.com/goliatone/go-tours"
	"github.com/goliatone/go-tours/payments"
	"github.com/google/uuid"
)

// BodyLimit caps request bodies
const BodyLimit = 256 * 1024

// DefaultRateLimit is API requests per IP per hour
const DefaultRateLimit = 100

// Deps wires the application
type Deps struct {
	Config    tours.Config
	Repo      tours.RepositoryManager
	Auth      tours.Authenticator
	Notifier  tours.AccountNotifier
	Checkout  payments.Checkout
	Hasher    tours.PasswordHasher
	Activity  tours.ActivitySink
	Logger    tours.Logger
	PublicURL string
	// RateLimit is API requests per IP per hour, 0 uses DefaultRateLimit
	// and a negative value disables limiting
	RateLimit    int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server holds the controllers
type Server struct {
	deps     Deps
	auth     *RouteAuthenticator
	Users    *UserController
	Tours    *TourController
	Reviews  *ReviewController
	Bookings *BookingController
	Views    *ViewController
}

func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = tours.NewSlogLogger(nil)
	}
	if deps.Hasher == nil {
		deps.Hasher = tours.NewBcryptHasher()
	}
	if deps.RateLimit == 0 {
		deps.RateLimit = DefaultRateLimit
	}

	auth := NewRouteAuthenticator(deps.Auth, deps.Config)
	auth.Logger = deps.Logger

	users := &UserController{
		auth:     auth,
		auther:   deps.Auth,
		repo:     deps.Repo,
		commands: newCommandRunner(deps.Logger),
		register: tours.NewRegisterUserHandler(deps.Repo).
			WithHasher(deps.Hasher).
			WithNotifier(deps.Notifier).
			WithActivitySink(deps.Activity).
			WithLogger(deps.Logger),
		forgot: tours.NewInitializePasswordResetHandler(deps.Repo, deps.Notifier).
			WithActivitySink(deps.Activity).
			WithLogger(deps.Logger),
		reset: tours.NewFinalizePasswordResetHandler(deps.Repo, deps.Auth).
			WithHasher(deps.Hasher).
			WithActivitySink(deps.Activity).
			WithLogger(deps.Logger),
		update: tours.NewUpdatePasswordHandler(deps.Repo, deps.Auth).
			WithHasher(deps.Hasher).
			WithActivitySink(deps.Activity).
			WithLogger(deps.Logger),
		activity:  deps.Activity,
		logger:    deps.Logger,
		PublicURL: deps.PublicURL,
	}
	users.Factory = NewFactory[*tours.User](userStore{deps.Repo.Users()},
		func() *tours.User { return &tours.User{} },
		func(u *tours.User, id uuid.UUID) { u.ID = id },
	)

	complete := tours.NewCompleteCheckoutHandler(deps.Repo).
		WithActivitySink(deps.Activity).
		WithLogger(deps.Logger)
	bookings := NewBookingController(deps.Repo, deps.Checkout, complete)
	bookings.PublicURL = deps.PublicURL
	bookings.logger = deps.Logger
	bookings.commands = newCommandRunner(deps.Logger)

	return &Server{
		deps:     deps,
		auth:     auth,
		Users:    users,
		Tours:    NewTourController(deps.Repo.Tours()),
		Reviews:  NewReviewController(deps.Repo.Reviews()),
		Bookings: bookings,
		Views:    NewViewController(deps.Repo),
	}
}

// NewHTTPServer builds the app behind a go-router server. Fiber routes are
// mounted first, then the router context routes, then the not found handler.
func NewHTTPServer(deps Deps) router.Server[*fiber.App] {
	s := NewServer(deps)
	srv := router.NewFiberAdapter(func(*fiber.App) *fiber.App {
		return s.newApp()
	})
	s.RegisterRoutes(srv.Router())
	srv.WrappedRouter().Use(NotFound)
	return srv
}

// NewApp builds the fiber app with every route mounted
func NewApp(deps Deps) *fiber.App {
	return NewHTTPServer(deps).WrappedRouter()
}

func (s *Server) newApp() *fiber.App {
	production := s.deps.Config.IsProduction()

	app := fiber.New(fiber.Config{
		AppName:               "tours",
		Views:                 NewViews(!production),
		ErrorHandler:          ErrorHandler(s.deps.Logger, production),
		BodyLimit:             BodyLimit,
		ReadTimeout:           s.deps.ReadTimeout,
		WriteTimeout:          s.deps.WriteTimeout,
		DisableStartupMessage: true,
	})

	app.Use(recover.New(recover.Config{EnableStackTrace: !production}))
	app.Use(helmet.New(helmet.Config{
		ContentSecurityPolicy: "default-src 'self' https://*.stripe.com; script-src 'self' https://js.stripe.com; frame-src https://js.stripe.com; img-src 'self' data:",
	}))
	if !production {
		app.Use(logger.New())
	}
	if s.deps.RateLimit > 0 {
		app.Use("/api", limiter.New(limiter.Config{
			Max:        s.deps.RateLimit,
			Expiration: time.Hour,
			LimitReached: func(c *fiber.Ctx) error {
				return goerrors.New("Too many requests from this IP, please try again in an hour!", goerrors.CategoryRateLimit).
					WithCode(http.StatusTooManyRequests)
			},
		}))
	}
	app.Use("/css", filesystem.New(filesystem.Config{
		Root:       http.FS(publicFS),
		PathPrefix: "public/css",
	}))

	s.Register(app)

	return app
}

// RegisterRoutes mounts the handlers written against the router context
func (s *Server) RegisterRoutes(r router.Router[*fiber.App]) {
	api := r.Group("/api/v1")
	api.Get("/health", s.Health)
}

// Health reports whether the database answers
func (s *Server) Health(c router.Context) error {
	if err := s.deps.Repo.DB().PingContext(c.Context()); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "database unavailable").
			WithCode(http.StatusServiceUnavailable)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status": "success",
		"data": map[string]any{
			"database": "up",
		},
	})
}

// Register mounts the API and view routes
func (s *Server) Register(app fiber.Router) {
	protect := s.auth.Protect()
	verify := s.auth.Verify()
	restrict := s.auth.RestrictTo

	// views
	app.Get("/", verify, s.Views.Overview)
	app.Get("/tour/:slug", verify, s.Views.Tour)
	app.Get("/login", verify, s.Views.Login)
	app.Get("/me", protect, s.Views.Account)
	app.Get("/my-tours", protect, s.Views.MyTours)
	app.Post("/submit-user-data", protect, s.Views.UpdateUserData)

	api := app.Group("/api/v1")

	// tours
	tr := api.Group("/tours")
	tr.Get("/top-5-cheap", s.Tours.AliasTopTours, s.Tours.Factory.GetAll())
	tr.Get("/tour-stats", s.Tours.Stats)
	tr.Get("/monthly-plan/:year", protect, restrict(tours.RoleAdmin, tours.RoleLeadGuide, tours.RoleGuide), s.Tours.MonthlyPlan)
	tr.Get("/tours-within/:distance/center/:latlng/unit/:unit", s.Tours.Within)
	tr.Get("/distances/:latlng/unit/:unit", s.Tours.Distances)
	tr.Get("/", s.Tours.Factory.GetAll())
	tr.Post("/", protect, restrict(tours.RoleAdmin, tours.RoleLeadGuide), s.Tours.Factory.CreateOne())
	tr.Get("/:id", s.Tours.Factory.GetOne())
	tr.Patch("/:id", protect, restrict(tours.RoleAdmin, tours.RoleLeadGuide), s.Tours.Factory.UpdateOne())
	tr.Delete("/:id", protect, restrict(tours.RoleAdmin, tours.RoleLeadGuide), s.Tours.Factory.DeleteOne())

	// nested reviews
	tr.Get("/:tourId/reviews", protect, s.Reviews.GetAll)
	tr.Post("/:tourId/reviews", protect, restrict(tours.RoleUser), s.Reviews.Factory.CreateOne())

	// users
	us := api.Group("/users")
	us.Post("/signup", s.Users.Signup)
	us.Post("/login", s.Users.Login)
	us.Get("/logout", s.Users.Logout)
	us.Post("/forgotPassword", s.Users.ForgotPassword)
	us.Patch("/resetPassword/:token", s.Users.ResetPassword)

	us.Patch("/updateMyPassword", protect, s.Users.UpdateMyPassword)
	us.Get("/me", protect, s.Users.GetMe)
	us.Patch("/updateMe", protect, s.Users.UpdateMe)
	us.Delete("/deleteMe", protect, s.Users.DeleteMe)

	admin := restrict(tours.RoleAdmin)
	us.Get("/", protect, admin, s.Users.Factory.GetAll())
	us.Post("/", protect, admin, s.Users.CreateUser)
	us.Get("/:id", protect, admin, s.Users.Factory.GetOne())
	us.Patch("/:id", protect, admin, s.Users.Factory.UpdateOne())
	us.Delete("/:id", protect, admin, s.Users.Factory.DeleteOne())

	// reviews
	rv := api.Group("/reviews", protect)
	rv.Get("/", s.Reviews.GetAll)
	rv.Post("/", restrict(tours.RoleUser), s.Reviews.Factory.CreateOne())
	rv.Get("/:id", s.Reviews.Factory.GetOne())
	rv.Patch("/:id", restrict(tours.RoleUser, tours.RoleAdmin), s.Reviews.UpdateOne)
	rv.Delete("/:id", restrict(tours.RoleUser, tours.RoleAdmin), s.Reviews.DeleteOne)

	// bookings
	bk := api.Group("/bookings")
	bk.Post("/webhook-checkout", s.Bookings.WebhookCheckout)
	bk.Get("/checkout-session/:tourId", protect, s.Bookings.CheckoutSession)
	bk.Get("/my-bookings", protect, s.Bookings.MyBookings)

	manage := restrict(tours.RoleAdmin, tours.RoleLeadGuide)
	bk.Get("/", protect, manage, s.Bookings.Factory.GetAll())
	bk.Post("/", protect, manage, s.Bookings.Factory.CreateOne())
	bk.Get("/:id", protect, manage, s.Bookings.Factory.GetOne())
	bk.Patch("/:id", protect, manage, s.Bookings.Factory.UpdateOne())
	bk.Delete("/:id", protect, manage, s.Bookings.Factory.DeleteOne())
}
