package web

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	tours "github.com/goliatone/go-tours"
	"github.com/goliatone/go-tours/middleware/jwtware"
)

// LogoutCookieTTL is how long the logged out marker cookie lives
const LogoutCookieTTL = 10 * time.Second

const userLocalsKey = "user"

// RouteAuthenticator binds the authenticator to fiber routes and owns the
// session cookie
type RouteAuthenticator struct {
	auth           tours.Authenticator
	cfg            tours.Config
	cookieDuration time.Duration
	Logger         tours.Logger
}

func NewRouteAuthenticator(auther tours.Authenticator, cfg tours.Config) *RouteAuthenticator {
	cookieDuration := 90 * 24 * time.Hour
	if cfg.GetCookieExpiration() > 0 {
		cookieDuration = cfg.GetCookieExpiration()
	}

	return &RouteAuthenticator{
		auth:           auther,
		cfg:            cfg,
		cookieDuration: cookieDuration,
		Logger:         tours.NewSlogLogger(nil),
	}
}

func (a *RouteAuthenticator) GetCookieDuration() time.Duration {
	return a.cookieDuration
}

// Protect rejects requests without a valid session
func (a *RouteAuthenticator) Protect() fiber.Handler {
	return jwtware.New(jwtware.Config{
		Checker:         a.auth,
		ContextKey:      userLocalsKey,
		TokenLookup:     a.cfg.GetTokenLookup(),
		AuthScheme:      a.cfg.GetAuthScheme(),
		TemplateUserKey: "user",
	})
}

// Verify resolves the user when possible and lets everyone through
func (a *RouteAuthenticator) Verify() fiber.Handler {
	return jwtware.New(jwtware.Config{
		Checker:         a.auth,
		ContextKey:      userLocalsKey,
		TokenLookup:     "cookie:" + a.cfg.GetContextKey(),
		Optional:        true,
		TemplateUserKey: "user",
	})
}

// RestrictTo must run after Protect
func (a *RouteAuthenticator) RestrictTo(roles ...tours.UserRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := tours.RestrictTo(currentUser(c), roles...); err != nil {
			return err
		}
		return c.Next()
	}
}

// SendToken sets the session cookie and answers with the token
func (a *RouteAuthenticator) SendToken(c *fiber.Ctx, code int, user *tours.User, token string) error {
	a.setCookieToken(c, token, a.cookieDuration)

	return c.Status(code).JSON(fiber.Map{
		"status": "success",
		"token":  token,
		"data":   fiber.Map{"user": user},
	})
}

func (a *RouteAuthenticator) Logout(c *fiber.Ctx) error {
	a.setCookieToken(c, tours.LoggedOutCookieValue, LogoutCookieTTL)
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "success"})
}

func (a *RouteAuthenticator) setCookieToken(c *fiber.Ctx, val string, duration time.Duration) {
	c.Cookie(&fiber.Cookie{
		Name:     a.cfg.GetContextKey(),
		Value:    val,
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   a.cfg.IsProduction() || c.Protocol() == "https",
		SameSite: "Lax",
	})
}

// currentUser returns the user set by Protect or Verify, or nil
func currentUser(c *fiber.Ctx) *tours.User {
	if user, ok := tours.FromContext(c.UserContext()); ok {
		return user
	}
	if user, ok := c.Locals(userLocalsKey).(*tours.User); ok {
		return user
	}
	return nil
}
