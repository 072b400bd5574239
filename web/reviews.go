package web

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"
	tours "github.com/goliatone/go-tours"
	"github.com/goliatone/go-tours/query"
	"github.com/google/uuid"
)

// ReviewUpdateRequest is what an author may change on a review
type ReviewUpdateRequest struct {
	Review *string `json:"review" form:"review"`
	Rating *int    `json:"rating" form:"rating"`
}

type ReviewController struct {
	repo    tours.Reviews
	Factory *Factory[*tours.Review]
}

func NewReviewController(repo tours.Reviews) *ReviewController {
	rc := &ReviewController{repo: repo}
	rc.Factory = NewFactory[*tours.Review](reviewStore{repo},
		func() *tours.Review { return &tours.Review{} },
		func(r *tours.Review, id uuid.UUID) { r.ID = id },
	).BeforeCreate(rc.setTourUserIDs)
	return rc
}

// GetAll lists every review, or those of :tourId when nested
func (r *ReviewController) GetAll(c *fiber.Ctx) error {
	tourID := uuid.Nil
	if c.Params("tourId") != "" {
		id, err := paramID(c, "tourId")
		if err != nil {
			return err
		}
		tourID = id
	}

	d := features(c)
	docs, _, err := r.repo.List(c.UserContext(), tourID, d)
	if err != nil {
		return err
	}
	shaped, err := r.repo.Schema().Shape(docs, d.Projection)
	if err != nil {
		return err
	}
	return sendList(c, shaped, len(docs))
}

// setTourUserIDs fills the tour from the nested route and always makes the
// current user the author
func (r *ReviewController) setTourUserIDs(c *fiber.Ctx, review *tours.Review) error {
	if c.Params("tourId") != "" {
		id, err := paramID(c, "tourId")
		if err != nil {
			return err
		}
		review.TourID = id
	}
	me := currentUser(c)
	if me == nil {
		return tours.ErrUnauthenticated
	}
	review.AuthorID = me.ID
	review.Author = nil
	return nil
}

func (r *ReviewController) UpdateOne(c *fiber.Ctx) error {
	review, err := r.owned(c)
	if err != nil {
		return err
	}

	payload := ReviewUpdateRequest{}
	if err := bodyParser(c, &payload); err != nil {
		return err
	}
	if payload.Review != nil {
		review.Review = *payload.Review
	}
	if payload.Rating != nil {
		review.Rating = *payload.Rating
	}

	doc, err := r.repo.Update(c.UserContext(), review)
	if err != nil {
		return err
	}
	return sendData(c, http.StatusOK, doc)
}

func (r *ReviewController) DeleteOne(c *fiber.Ctx) error {
	review, err := r.owned(c)
	if err != nil {
		return err
	}
	if err := r.repo.Delete(c.UserContext(), review.ID); err != nil {
		return err
	}
	return sendNoContent(c)
}

// owned loads :id and checks that admins or the author are asking
func (r *ReviewController) owned(c *fiber.Ctx) (*tours.Review, error) {
	id, err := paramID(c, "id")
	if err != nil {
		return nil, err
	}
	review, err := r.repo.GetByID(c.UserContext(), id)
	if err != nil {
		return nil, err
	}
	me := currentUser(c)
	if me == nil {
		return nil, tours.ErrUnauthenticated
	}
	if me.Role != tours.RoleAdmin && review.AuthorID != me.ID {
		return nil, tours.ErrForbidden
	}
	return review, nil
}

type reviewStore struct {
	reviews tours.Reviews
}

func (s reviewStore) List(ctx context.Context, d query.Descriptor) ([]*tours.Review, int, error) {
	return s.reviews.List(ctx, uuid.Nil, d)
}

func (s reviewStore) Schema() *query.Schema {
	return s.reviews.Schema()
}

func (s reviewStore) GetByID(ctx context.Context, id uuid.UUID) (*tours.Review, error) {
	return s.reviews.GetByID(ctx, id)
}

func (s reviewStore) Create(ctx context.Context, review *tours.Review) (*tours.Review, error) {
	return s.reviews.Create(ctx, review)
}

func (s reviewStore) Update(ctx context.Context, review *tours.Review) (*tours.Review, error) {
	return s.reviews.Update(ctx, review)
}

func (s reviewStore) Delete(ctx context.Context, id uuid.UUID) error {
	return s.reviews.Delete(ctx, id)
}
