package web

import (
	"embed"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/django/v3"
	goerrors "github.com/goliatone/go-errors"
	tours "github.com/goliatone/go-tours"
	"github.com/google/uuid"
)

//go:embed views
var viewsFS embed.FS

//go:embed public
var publicFS embed.FS

// NewViews returns the django engine over the embedded templates
func NewViews(reload bool) *django.Engine {
	engine := django.NewPathForwardingFileSystem(http.FS(viewsFS), "/views", ".html")
	engine.Reload(reload)
	return engine
}

type ViewController struct {
	repo tours.RepositoryManager
}

func NewViewController(repo tours.RepositoryManager) *ViewController {
	return &ViewController{repo: repo}
}

func (v *ViewController) render(c *fiber.Ctx, view string, bind fiber.Map) error {
	for key, value := range templateHelpers(currentUser(c)) {
		bind[key] = value
	}
	if alert := alertMessage(c.Query("alert")); alert != "" {
		bind["alert"] = alert
	}
	return c.Render(view, bind)
}

func alertMessage(alert string) string {
	if alert == "booking" {
		return "Your booking was successful! Please check your email for a confirmation. If your booking doesn't show up here immediately, please come back later."
	}
	return ""
}

func (v *ViewController) Overview(c *fiber.Ctx) error {
	docs, _, err := v.repo.Tours().List(c.UserContext(), features(c))
	if err != nil {
		return err
	}
	return v.render(c, "overview", fiber.Map{
		"title": "All Tours",
		"tours": docs,
	})
}

func (v *ViewController) Tour(c *fiber.Ctx) error {
	tour, err := v.repo.Tours().GetBySlug(c.UserContext(), c.Params("slug"))
	if err != nil {
		if goerrors.IsNotFound(err) {
			return goerrors.New("There is no tour with that name.", goerrors.CategoryNotFound).
				WithCode(http.StatusNotFound)
		}
		return err
	}
	return v.render(c, "tour", fiber.Map{
		"title": tour.Name + " Tour",
		"tour":  tour,
	})
}

func (v *ViewController) Login(c *fiber.Ctx) error {
	return v.render(c, "login", fiber.Map{"title": "Log into your account"})
}

func (v *ViewController) Account(c *fiber.Ctx) error {
	return v.render(c, "account", fiber.Map{"title": "Your account"})
}

// UpdateUserData handles the account settings form and re-renders the page
func (v *ViewController) UpdateUserData(c *fiber.Ctx) error {
	me := currentUser(c)
	if me == nil {
		return tours.ErrUnauthenticated
	}

	form := UpdateMeRequest{}
	if err := bodyParser(c, &form); err != nil {
		return err
	}
	if err := form.Validate(); err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.FromOzzoValidation(err, "Invalid input data").WithCode(http.StatusBadRequest)
	}

	updated, err := v.repo.Users().UpdateProfile(c.UserContext(), me.ID, tours.UserProfile{
		Name:  form.Name,
		Email: form.Email,
		Phone: form.Phone,
	})
	if err != nil {
		return err
	}
	// the request scoped user feeds the template helpers
	*me = *updated

	return v.render(c, "account", fiber.Map{"title": "Your account"})
}

func (v *ViewController) MyTours(c *fiber.Ctx) error {
	me := currentUser(c)
	if me == nil {
		return tours.ErrUnauthenticated
	}
	bookings, err := v.repo.Bookings().ListForUser(c.UserContext(), me.ID)
	if err != nil {
		return err
	}

	ids := make([]uuid.UUID, 0, len(bookings))
	for _, b := range bookings {
		ids = append(ids, b.TourID)
	}
	docs, err := v.repo.Tours().GetByIDs(c.UserContext(), ids)
	if err != nil {
		return err
	}
	return v.render(c, "overview", fiber.Map{
		"title": "My Tours",
		"tours": docs,
	})
}
