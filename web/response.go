package web

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	tours "github.com/goliatone/go-tours"
	"github.com/goliatone/go-tours/query"
	"github.com/google/uuid"
)

func sendData(c *fiber.Ctx, code int, doc any) error {
	return c.Status(code).JSON(fiber.Map{
		"status": "success",
		"data":   fiber.Map{"data": doc},
	})
}

func sendList(c *fiber.Ctx, docs any, results int) error {
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"status":  "success",
		"results": results,
		"data":    fiber.Map{"data": docs},
	})
}

func sendNoContent(c *fiber.Ctx) error {
	return c.SendStatus(http.StatusNoContent)
}

// paramID parses a uuid route param
func paramID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	raw := c.Params(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, tours.NewValidationError("Invalid " + name + ": " + raw)
	}
	return id, nil
}

// features builds the query descriptor from the request query string
func features(c *fiber.Ctx) query.Descriptor {
	return query.New(c.Queries()).All().Descriptor()
}

// bodyParser decodes the body into v as a 400 on failure
func bodyParser(c *fiber.Ctx, v any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(v); err != nil {
		return tours.NewValidationError("Invalid request body: " + err.Error())
	}
	return nil
}
