package jwtware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	tours "github.com/goliatone/go-tours"
)

var defaultTokenLookup = "header:" + fiber.HeaderAuthorization + ",cookie:jwt"

// Checker runs the authentication pipeline for a raw token
type Checker interface {
	Check(ctx context.Context, raw string, roles ...tours.UserRole) *tours.AuthCheck
}

// ValidationListener is invoked after a check passes, before the handler runs.
type ValidationListener func(c *fiber.Ctx, check *tours.AuthCheck) error

type Config struct {
	Filter         func(*fiber.Ctx) bool
	SuccessHandler fiber.Handler
	ErrorHandler   fiber.ErrorHandler
	// Checker is required
	Checker     Checker
	ContextKey  string
	TokenLookup string
	AuthScheme  string
	// Roles restricts access to the listed roles. Empty allows any user.
	Roles []tours.UserRole
	// Optional lets rejected requests through as anonymous
	Optional bool

	ValidationListeners []ValidationListener

	// TemplateUserKey is the Locals key views read the current user from
	TemplateUserKey string
}

// New returns a fiber handler that authenticates the request token
func New(config ...Config) fiber.Handler {
	cfg := GetDefaultConfig(config...)
	extractors := cfg.getExtractors()

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		raw := ExtractRawToken(c, extractors)
		if cfg.Optional && (raw == "" || raw == tours.LoggedOutCookieValue) {
			return c.Next()
		}

		check := cfg.Checker.Check(c.UserContext(), raw, cfg.Roles...)
		if check.Rejected() {
			if cfg.Optional {
				return c.Next()
			}
			return cfg.ErrorHandler(c, check.Err)
		}

		if err := cfg.runValidationListeners(c, check); err != nil {
			return cfg.ErrorHandler(c, err)
		}

		c.Locals(cfg.ContextKey, check.User)
		c.Locals(cfg.TemplateUserKey, check.User)

		c.SetUserContext(tours.WithAuthCheck(c.UserContext(), check))

		return cfg.SuccessHandler(c)
	}
}

// ExtractRawToken returns the first token any extractor finds, or ""
func ExtractRawToken(c *fiber.Ctx, extractors []JWTExtractor) string {
	for _, extractor := range extractors {
		if raw := extractor(c); raw != "" {
			return raw
		}
	}
	return ""
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c *fiber.Ctx, err error) error {
			return err
		}
	}

	if cfg.Checker == nil {
		panic("TOURS: JWT middleware configuration: Checker is required.")
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "user"
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	if cfg.TemplateUserKey == "" {
		cfg.TemplateUserKey = "current_user"
	}

	return cfg
}

func (cfg *Config) getExtractors() []JWTExtractor {
	return GetExtractors(cfg.TokenLookup, cfg.AuthScheme)
}

func (cfg *Config) runValidationListeners(c *fiber.Ctx, check *tours.AuthCheck) error {
	for _, listener := range cfg.ValidationListeners {
		if listener == nil {
			continue
		}
		if err := listener(c, check); err != nil {
			return err
		}
	}
	return nil
}

// GetExtractors parses a lookup like "header:Authorization,cookie:jwt".
// Order matters: the header wins over the cookie.
func GetExtractors(tokenLookup string, authSchemes ...string) []JWTExtractor {
	extractors := make([]JWTExtractor, 0)

	authScheme := "Bearer"
	if len(authSchemes) > 0 {
		authScheme = strings.TrimSpace(authSchemes[0])
	}

	for _, rootPart := range strings.Split(tokenLookup, ",") {
		parts := strings.SplitN(strings.TrimSpace(rootPart), ":", 2)
		if len(parts) != 2 {
			continue
		}
		source, name := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])

		switch source {
		case "header":
			extractors = append(extractors, jwtFromHeader(name, authScheme))
		case "query":
			extractors = append(extractors, jwtFromQuery(name))
		case "param":
			extractors = append(extractors, jwtFromParam(name))
		case "cookie":
			extractors = append(extractors, jwtFromCookie(name))
		}
	}

	return extractors
}

type JWTExtractor func(c *fiber.Ctx) string

// jwtFromHeader returns a function that extracts token from the request header.
func jwtFromHeader(header string, authScheme string) JWTExtractor {
	return func(c *fiber.Ctx) string {
		a := c.Get(header)
		l := len(authScheme)
		if l == 0 {
			return strings.TrimSpace(a)
		}
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) && a[l] == ' ' {
			return strings.TrimSpace(a[l:])
		}
		return ""
	}
}

// jwtFromQuery returns a function that extracts token from the query string.
func jwtFromQuery(param string) JWTExtractor {
	return func(c *fiber.Ctx) string {
		return c.Query(param)
	}
}

// jwtFromParam returns a function that extracts token from the url param string.
func jwtFromParam(param string) JWTExtractor {
	return func(c *fiber.Ctx) string {
		return c.Params(param)
	}
}

// jwtFromCookie returns a function that extracts token from the named cookie.
func jwtFromCookie(name string) JWTExtractor {
	return func(c *fiber.Ctx) string {
		return c.Cookies(name)
	}
}
