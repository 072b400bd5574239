package tours

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	Validate() error
	MustValidate()
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
	DB() *bun.DB
	Users() Users
	Tours() Tours
	Reviews() Reviews
	Bookings() Bookings
}

type mngr struct {
	db       *bun.DB
	users    Users
	tours    Tours
	reviews  Reviews
	bookings Bookings
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	users := NewUsersRepository(db)
	tours := NewToursRepository(db, users)
	return &mngr{
		db:       db,
		users:    users,
		tours:    tours,
		reviews:  NewReviewsRepository(db, tours),
		bookings: NewBookingsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.db == nil {
		return errors.New("database should be initialized")
	}
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}
	if m.tours == nil {
		return errors.New("repository tours should be initialized")
	}
	if m.reviews == nil {
		return errors.New("repository reviews should be initialized")
	}
	if m.bookings == nil {
		return errors.New("repository bookings should be initialized")
	}
	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) DB() *bun.DB {
	return m.db
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) Tours() Tours {
	return m.tours
}

func (m mngr) Reviews() Reviews {
	return m.reviews
}

func (m mngr) Bookings() Bookings {
	return m.bookings
}
