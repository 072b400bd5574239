package tours

import (
	"context"
	"database/sql"
	"time"

	"github.com/goliatone/go-tours/query"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Reviews is the review store. Writes refresh the tour rating aggregate
// in the same transaction.
type Reviews interface {
	List(ctx context.Context, tourID uuid.UUID, d query.Descriptor) ([]*Review, int, error)
	// Schema maps API field names of the model for projections
	Schema() *query.Schema
	GetByID(ctx context.Context, id uuid.UUID) (*Review, error)
	Create(ctx context.Context, review *Review) (*Review, error)
	Update(ctx context.Context, review *Review) (*Review, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type reviews struct {
	db     *bun.DB
	schema *query.Schema
	tours  Tours
}

var _ Reviews = (*reviews)(nil)

func (r *reviews) Schema() *query.Schema {
	return r.schema
}

func NewReviewsRepository(db *bun.DB, tours Tours) Reviews {
	return &reviews{
		db:     db,
		schema: query.SchemaFor(db, (*Review)(nil)),
		tours:  tours,
	}
}

func withAuthor(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Relation("Author", func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Column("id", "name", "photo")
	})
}

// List returns reviews, only those of tourID when it is not nil
func (r *reviews) List(ctx context.Context, tourID uuid.UUID, d query.Descriptor) ([]*Review, int, error) {
	records := []*Review{}
	q := withAuthor(d.Apply(r.db.NewSelect().Model(&records), r.schema))
	if tourID != uuid.Nil {
		q = q.Where("?TableAlias.tour_id = ?", tourID)
	}

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, translateStoreError(err, "review")
	}
	return records, total, nil
}

func (r *reviews) GetByID(ctx context.Context, id uuid.UUID) (*Review, error) {
	review := &Review{}
	err := withAuthor(r.db.NewSelect().Model(review)).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, translateStoreError(err, "review")
	}
	return review, nil
}

func (r *reviews) Create(ctx context.Context, review *Review) (*Review, error) {
	if review.ID == uuid.Nil {
		review.ID = uuid.New()
	}
	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now().UTC()
	}
	if err := ValidateReview(review); err != nil {
		return nil, err
	}

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(review).Exec(ctx); err != nil {
			if _, ok := AsUniqueViolation(err); ok {
				return ErrDuplicateReview
			}
			return translateStoreError(err, "review")
		}
		return r.tours.RecalculateRatingsTx(ctx, tx, review.TourID)
	})
	if err != nil {
		return nil, err
	}
	return review, nil
}

// Update changes review text and rating. Tour and author are fixed.
func (r *reviews) Update(ctx context.Context, review *Review) (*Review, error) {
	if err := ValidateReview(review); err != nil {
		return nil, err
	}

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		review.Version++
		res, err := tx.NewUpdate().
			Model(review).
			Column("review", "rating", "version").
			WherePK().
			Exec(ctx)
		if err != nil {
			return translateStoreError(err, "review")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return NewNotFound("review")
		}
		return r.tours.RecalculateRatingsTx(ctx, tx, review.TourID)
	})
	if err != nil {
		return nil, err
	}
	return review, nil
}

func (r *reviews) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		review := &Review{}
		err := tx.NewSelect().Model(review).Column("id", "tour_id").Where("id = ?", id).Limit(1).Scan(ctx)
		if err != nil {
			return translateStoreError(err, "review")
		}
		if _, err := tx.NewDelete().Model((*Review)(nil)).Where("id = ?", id).Exec(ctx); err != nil {
			return translateStoreError(err, "review")
		}
		return r.tours.RecalculateRatingsTx(ctx, tx, review.TourID)
	})
}
