package tours

import (
	"context"
	"time"

	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CompleteCheckoutMessage records a paid checkout session as a booking
type CompleteCheckoutMessage struct {
	SessionID     string
	TourID        uuid.UUID
	CustomerEmail string
	// Amount is the total charged, in the currency's major unit
	Amount     float64
	OnResponse func(booking *Booking, created bool)
}

func (e CompleteCheckoutMessage) Type() string { return "booking.checkout.complete" }

func (e CompleteCheckoutMessage) Validate() error {
	if e.SessionID == "" {
		return NewValidationError("checkout session id is required")
	}
	return nil
}

var _ command.Commander[CompleteCheckoutMessage] = (*CompleteCheckoutHandler)(nil)

type CompleteCheckoutHandler struct {
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
}

func NewCompleteCheckoutHandler(repo RepositoryManager) *CompleteCheckoutHandler {
	return &CompleteCheckoutHandler{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

func (h *CompleteCheckoutHandler) WithActivitySink(sink ActivitySink) *CompleteCheckoutHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *CompleteCheckoutHandler) WithLogger(logger Logger) *CompleteCheckoutHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *CompleteCheckoutHandler) Execute(ctx context.Context, event CompleteCheckoutMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during checkout completion",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *CompleteCheckoutHandler) execute(ctx context.Context, event CompleteCheckoutMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := event.Validate(); err != nil {
		return err
	}

	user, err := h.repo.Users().GetActiveByEmail(ctx, event.CustomerEmail)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return ErrUserNotFound
		}
		return richOrWrap(err, goerrors.CategoryInternal, "failed to look up customer")
	}

	if _, err := h.repo.Tours().GetByID(ctx, event.TourID); err != nil {
		return richOrWrap(err, goerrors.CategoryInternal, "failed to look up tour")
	}

	var (
		booking *Booking
		created bool
	)
	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		booking, created, err = h.repo.Bookings().CreateTx(ctx, tx, &Booking{
			TourID:            event.TourID,
			UserID:            user.ID,
			Price:             event.Amount,
			Paid:              true,
			CheckoutSessionID: event.SessionID,
		})
		return err
	})
	if err != nil {
		return richOrWrap(err, goerrors.CategoryInternal, "checkout completion transaction failed")
	}

	if created {
		recordActivity(ctx, h.activity, h.logger, ActivityEventBookingCreated, user.ID.String(), map[string]any{
			"booking_id": booking.ID.String(),
			"tour_id":    event.TourID.String(),
			"session_id": event.SessionID,
		})
	} else {
		h.logger.Info("checkout session already recorded", "session_id", event.SessionID)
	}

	if event.OnResponse != nil {
		event.OnResponse(booking, created)
	}
	return nil
}
