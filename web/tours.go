package web

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	tours "github.com/goliatone/go-tours"
	"github.com/google/uuid"
)

// TopToursQuery backs the top-5-cheap alias
var TopToursQuery = map[string]string{
	"limit":  "5",
	"sort":   "-ratingsAverage,price",
	"fields": "name,price,ratingsAverage,summary,difficulty",
}

type TourController struct {
	repo    tours.Tours
	Factory *Factory[*tours.Tour]
}

func NewTourController(repo tours.Tours) *TourController {
	return &TourController{
		repo: repo,
		Factory: NewFactory[*tours.Tour](repo,
			func() *tours.Tour { return &tours.Tour{} },
			func(t *tours.Tour, id uuid.UUID) { t.ID = id },
		),
	}
}

// AliasTopTours rewrites the query string before GetAll runs
func (t *TourController) AliasTopTours(c *fiber.Ctx) error {
	args := c.Request().URI().QueryArgs()
	for k, v := range TopToursQuery {
		args.Set(k, v)
	}
	return c.Next()
}

func (t *TourController) Stats(c *fiber.Ctx) error {
	stats, err := t.repo.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"status": "success",
		"data":   fiber.Map{"stats": stats},
	})
}

func (t *TourController) MonthlyPlan(c *fiber.Ctx) error {
	year, err := strconv.Atoi(c.Params("year"))
	if err != nil || year < 1 {
		return tours.NewValidationError("Invalid year: " + c.Params("year"))
	}
	plan, err := t.repo.MonthlyPlan(c.UserContext(), year)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"status": "success",
		"data":   fiber.Map{"plan": plan},
	})
}

// Within answers /tours-within/:distance/center/:latlng/unit/:unit
func (t *TourController) Within(c *fiber.Ctx) error {
	distance, err := tours.ParseDistance(c.Params("distance"))
	if err != nil {
		return err
	}
	center, err := tours.ParseLatLng(c.Params("latlng"))
	if err != nil {
		return err
	}
	unit, err := tours.ParseDistanceUnit(c.Params("unit"))
	if err != nil {
		return err
	}

	docs, err := t.repo.Within(c.UserContext(), center, distance, unit)
	if err != nil {
		return err
	}
	return sendList(c, docs, len(docs))
}

// Distances answers /distances/:latlng/unit/:unit
func (t *TourController) Distances(c *fiber.Ctx) error {
	center, err := tours.ParseLatLng(c.Params("latlng"))
	if err != nil {
		return err
	}
	unit, err := tours.ParseDistanceUnit(c.Params("unit"))
	if err != nil {
		return err
	}

	docs, err := t.repo.Distances(c.UserContext(), center, unit)
	if err != nil {
		return err
	}
	return sendList(c, docs, len(docs))
}
