package web

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	tours "github.com/goliatone/go-tours"
)

// GenericErrorMessage is shown for non operational errors in production
const GenericErrorMessage = "Something went wrong!"

// Normalize maps any error onto the domain taxonomy
func Normalize(err error) *goerrors.Error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		if richErr.Code == 0 {
			richErr = richErr.Clone().WithCode(codeFor(richErr.Category))
		}
		return richErr
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return goerrors.New(fiberErr.Message, categoryFor(fiberErr.Code)).
			WithCode(fiberErr.Code)
	}

	var vErrs validation.Errors
	if errors.As(err, &vErrs) {
		return goerrors.FromOzzoValidation(err, "Invalid input data").
			WithCode(http.StatusBadRequest)
	}

	if errors.Is(err, sql.ErrNoRows) || tours.IsNoRows(err) {
		return tours.NewNotFound("document")
	}

	if v, ok := tours.AsUniqueViolation(err); ok {
		return tours.NewConflict(v.Field, v.Value)
	}

	return goerrors.Wrap(err, goerrors.CategoryInternal, GenericErrorMessage).
		WithCode(http.StatusInternalServerError)
}

func codeFor(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return http.StatusBadRequest
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func categoryFor(code int) goerrors.Category {
	switch code {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return goerrors.CategoryBadInput
	case http.StatusUnauthorized:
		return goerrors.CategoryAuth
	case http.StatusForbidden:
		return goerrors.CategoryAuthz
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return goerrors.CategoryNotFound
	case http.StatusConflict:
		return goerrors.CategoryConflict
	case http.StatusTooManyRequests:
		return goerrors.CategoryRateLimit
	}
	if code >= 500 {
		return goerrors.CategoryInternal
	}
	return goerrors.CategoryBadInput
}

// Operational errors are expected failures whose message is safe to show
func Operational(e *goerrors.Error) bool {
	return e.Category != goerrors.CategoryInternal
}

func status(code int) string {
	if code >= 500 {
		return "error"
	}
	return "fail"
}

// ErrorHandler is the single error responder installed as fiber's
// Config.ErrorHandler. Non API requests get the error view.
func ErrorHandler(logger tours.Logger, production bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		richErr := Normalize(err)
		code := richErr.Code

		if code >= 500 {
			logger.Error("request failed",
				"path", c.OriginalURL(),
				"error", err,
				"category", richErr.Category,
				"details", print.MaybePrettyJSON(richErr.Metadata),
			)
		} else {
			logger.Debug("request rejected",
				"path", c.OriginalURL(),
				"error", richErr.Message,
				"text_code", richErr.TextCode,
			)
		}

		message := richErr.Message
		if production && !Operational(richErr) {
			message = GenericErrorMessage
		}

		if !isAPI(c) {
			return renderError(c, code, message)
		}

		body := fiber.Map{
			"status":  status(code),
			"message": message,
		}
		if richErr.TextCode != "" {
			body["code"] = richErr.TextCode
		}
		if len(richErr.ValidationErrors) > 0 {
			body["errors"] = richErr.ValidationMap()
		}
		if !production {
			stack := richErr.StackTrace
			if len(stack) == 0 {
				stack = goerrors.CaptureStackTrace(1)
			}
			res := richErr.Clone().ToErrorResponse(true, stack)
			body["error"] = res.Error
			body["stack"] = stack
		}

		return c.Status(code).JSON(body)
	}
}

func renderError(c *fiber.Ctx, code int, message string) error {
	err := c.Status(code).Render("error", fiber.Map{
		"title": "Something went wrong!",
		"msg":   message,
		"user":  currentUser(c),
	})
	if err != nil {
		return c.Status(code).SendString(message)
	}
	return nil
}

// NotFound answers unknown routes
func NotFound(c *fiber.Ctx) error {
	return goerrors.New("The requested resource "+c.OriginalURL()+" does not exist", goerrors.CategoryNotFound).
		WithCode(http.StatusNotFound).
		WithTextCode(tours.TextCodeRecordNotFound)
}

func isAPI(c *fiber.Ctx) bool {
	return strings.HasPrefix(c.Path(), "/api")
}
