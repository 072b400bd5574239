package web

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-tours/query"
	"github.com/google/uuid"
)

// Store is the CRUD surface the factory drives
type Store[T any] interface {
	List(ctx context.Context, d query.Descriptor) ([]T, int, error)
	GetByID(ctx context.Context, id uuid.UUID) (T, error)
	Create(ctx context.Context, record T) (T, error)
	Update(ctx context.Context, record T) (T, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Schema() *query.Schema
}

// Factory builds the five standard handlers for a resource
type Factory[T any] struct {
	store        Store[T]
	newT         func() T
	setID        func(T, uuid.UUID)
	param        string
	beforeCreate func(c *fiber.Ctx, record T) error
	beforeUpdate func(c *fiber.Ctx, record T) error
}

func NewFactory[T any](store Store[T], newT func() T, setID func(T, uuid.UUID)) *Factory[T] {
	return &Factory[T]{
		store: store,
		newT:  newT,
		setID: setID,
		param: "id",
	}
}

// BeforeCreate runs on the decoded record before Create
func (f *Factory[T]) BeforeCreate(fn func(c *fiber.Ctx, record T) error) *Factory[T] {
	f.beforeCreate = fn
	return f
}

// BeforeUpdate runs on the merged record before Update
func (f *Factory[T]) BeforeUpdate(fn func(c *fiber.Ctx, record T) error) *Factory[T] {
	f.beforeUpdate = fn
	return f
}

func (f *Factory[T]) GetAll() fiber.Handler {
	return func(c *fiber.Ctx) error {
		d := features(c)
		docs, _, err := f.store.List(c.UserContext(), d)
		if err != nil {
			return err
		}
		shaped, err := f.store.Schema().Shape(docs, d.Projection)
		if err != nil {
			return err
		}
		return sendList(c, shaped, len(docs))
	}
}

func (f *Factory[T]) GetOne() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, f.param)
		if err != nil {
			return err
		}
		doc, err := f.store.GetByID(c.UserContext(), id)
		if err != nil {
			return err
		}
		return sendData(c, http.StatusOK, doc)
	}
}

func (f *Factory[T]) CreateOne() fiber.Handler {
	return func(c *fiber.Ctx) error {
		record := f.newT()
		if err := bodyParser(c, record); err != nil {
			return err
		}
		f.setID(record, uuid.Nil)
		if f.beforeCreate != nil {
			if err := f.beforeCreate(c, record); err != nil {
				return err
			}
		}
		doc, err := f.store.Create(c.UserContext(), record)
		if err != nil {
			return err
		}
		return sendData(c, http.StatusCreated, doc)
	}
}

// UpdateOne merges the body onto the stored record
func (f *Factory[T]) UpdateOne() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, f.param)
		if err != nil {
			return err
		}
		record, err := f.store.GetByID(c.UserContext(), id)
		if err != nil {
			return err
		}
		if err := bodyParser(c, record); err != nil {
			return err
		}
		f.setID(record, id)
		if f.beforeUpdate != nil {
			if err := f.beforeUpdate(c, record); err != nil {
				return err
			}
		}
		doc, err := f.store.Update(c.UserContext(), record)
		if err != nil {
			return err
		}
		return sendData(c, http.StatusOK, doc)
	}
}

func (f *Factory[T]) DeleteOne() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, f.param)
		if err != nil {
			return err
		}
		if err := f.store.Delete(c.UserContext(), id); err != nil {
			return err
		}
		return sendNoContent(c)
	}
}
