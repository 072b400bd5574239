package tours

import (
	"context"
	"time"

	"github.com/goliatone/go-tours/query"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Bookings is the booking store
type Bookings interface {
	List(ctx context.Context, d query.Descriptor) ([]*Booking, int, error)
	// Schema maps API field names of the model for projections
	Schema() *query.Schema
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*Booking, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	Create(ctx context.Context, booking *Booking) (*Booking, error)
	CreateTx(ctx context.Context, tx bun.IDB, booking *Booking) (*Booking, bool, error)
	Update(ctx context.Context, booking *Booking) (*Booking, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type bookings struct {
	db     *bun.DB
	schema *query.Schema
}

var _ Bookings = (*bookings)(nil)

func (r *bookings) Schema() *query.Schema {
	return r.schema
}

func NewBookingsRepository(db *bun.DB) Bookings {
	return &bookings{
		db:     db,
		schema: query.SchemaFor(db, (*Booking)(nil)),
	}
}

func withBookingRelations(q *bun.SelectQuery) *bun.SelectQuery {
	return q.
		Relation("Tour", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Column("id", "name", "slug", "image_cover", "price")
		}).
		Relation("User", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Column("id", "name", "email")
		})
}

func (r *bookings) List(ctx context.Context, d query.Descriptor) ([]*Booking, int, error) {
	records := []*Booking{}
	q := withBookingRelations(d.Apply(r.db.NewSelect().Model(&records), r.schema))

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, translateStoreError(err, "booking")
	}
	return records, total, nil
}

func (r *bookings) ListForUser(ctx context.Context, userID uuid.UUID) ([]*Booking, error) {
	records := []*Booking{}
	err := withBookingRelations(r.db.NewSelect().Model(&records)).
		Where("?TableAlias.user_id = ?", userID).
		OrderExpr("?TableAlias.created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, translateStoreError(err, "booking")
	}
	return records, nil
}

func (r *bookings) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	booking := &Booking{}
	err := withBookingRelations(r.db.NewSelect().Model(booking)).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, translateStoreError(err, "booking")
	}
	return booking, nil
}

// Create inserts booking. Unlike CreateTx a booking whose checkout
// session is already recorded is a conflict.
func (r *bookings) Create(ctx context.Context, booking *Booking) (*Booking, error) {
	stored, created, err := r.CreateTx(ctx, r.db, booking)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, NewConflict("checkoutSessionId", booking.CheckoutSessionID)
	}
	return stored, nil
}

// CreateTx inserts booking. Bookings tied to a checkout session get an ID
// derived from the session, so a redelivered webhook is a no-op; the bool
// reports whether a row was written.
func (r *bookings) CreateTx(ctx context.Context, tx bun.IDB, booking *Booking) (*Booking, bool, error) {
	if err := prepareBookingDefaults(booking); err != nil {
		return nil, false, err
	}

	res, err := tx.NewInsert().
		Model(booking).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, false, translateStoreError(err, "booking")
	}
	n, _ := res.RowsAffected()
	return booking, n > 0, nil
}

func (r *bookings) Update(ctx context.Context, booking *Booking) (*Booking, error) {
	if booking.Price < 0 {
		return nil, NewValidationError("Invalid inputs. price: must be no less than 0")
	}
	res, err := r.db.NewUpdate().
		Model(booking).
		Column("tour_id", "user_id", "price", "paid").
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, translateStoreError(err, "booking")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, NewNotFound("booking")
	}
	return booking, nil
}

func (r *bookings) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.NewDelete().Model((*Booking)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return translateStoreError(err, "booking")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return NewNotFound("booking")
	}
	return nil
}

func prepareBookingDefaults(booking *Booking) error {
	if booking.TourID == uuid.Nil || booking.UserID == uuid.Nil {
		return NewValidationError("Invalid inputs. a booking must belong to a tour and a user")
	}
	if booking.Price < 0 {
		return NewValidationError("Invalid inputs. price: must be no less than 0")
	}
	if booking.ID == uuid.Nil {
		if booking.CheckoutSessionID != "" {
			// session ids are case sensitive, skip slug normalization
			id, err := hashid.NewUUID(booking.CheckoutSessionID,
				hashid.WithHashAlgorithm(hashid.SHA256),
				hashid.WithNormalization(false),
			)
			if err != nil {
				return translateStoreError(err, "booking")
			}
			booking.ID = id
		} else {
			booking.ID = uuid.New()
		}
	}
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now().UTC()
	}
	return nil
}
