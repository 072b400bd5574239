package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-command"
	"github.com/goliatone/go-command/runner"
	tours "github.com/goliatone/go-tours"
	"github.com/goliatone/go-tours/payments"
	"github.com/google/uuid"
)

// StripeSignatureHeader carries the webhook signature
const StripeSignatureHeader = "Stripe-Signature"

type BookingController struct {
	repo     tours.RepositoryManager
	checkout payments.Checkout
	commands *runner.Handler
	complete command.Commander[tours.CompleteCheckoutMessage]
	logger   tours.Logger
	// PublicURL is the base for checkout redirects
	PublicURL string
	Factory   *Factory[*tours.Booking]
}

func NewBookingController(repo tours.RepositoryManager, checkout payments.Checkout, complete command.Commander[tours.CompleteCheckoutMessage]) *BookingController {
	logger := tours.NewSlogLogger(nil)
	return &BookingController{
		repo:     repo,
		checkout: checkout,
		commands: newCommandRunner(logger),
		complete: complete,
		logger:   logger,
		Factory: NewFactory[*tours.Booking](repo.Bookings(),
			func() *tours.Booking { return &tours.Booking{Paid: true} },
			func(b *tours.Booking, id uuid.UUID) { b.ID = id },
		),
	}
}

// CheckoutSession answers /checkout-session/:tourId
func (b *BookingController) CheckoutSession(c *fiber.Ctx) error {
	tourID, err := paramID(c, "tourId")
	if err != nil {
		return err
	}
	tour, err := b.repo.Tours().GetByID(c.UserContext(), tourID)
	if err != nil {
		return err
	}
	me := currentUser(c)
	if me == nil {
		return tours.ErrUnauthenticated
	}

	base := b.PublicURL
	if base == "" {
		base = c.BaseURL()
	}

	session, err := b.checkout.CreateSession(c.UserContext(), payments.Request{
		Tour:         tour,
		User:         me,
		SuccessURL:   base + "/my-tours?alert=booking",
		CancelURL:    base + "/tour/" + tour.Slug,
		ImageBaseURL: base,
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"session": session,
	})
}

// WebhookCheckout must be mounted on a route that sees the raw body
func (b *BookingController) WebhookCheckout(c *fiber.Ctx) error {
	completed, err := b.checkout.ParseWebhook(c.Body(), c.Get(StripeSignatureHeader))
	if err != nil {
		return err
	}

	if completed != nil {
		err := runCommand(c.UserContext(), b.commands, b.complete, tours.CompleteCheckoutMessage{
			SessionID:     completed.SessionID,
			TourID:        completed.TourID,
			CustomerEmail: completed.CustomerEmail,
			Amount:        completed.Amount,
		})
		if err != nil {
			return err
		}
	}

	return c.JSON(fiber.Map{"received": true})
}

func (b *BookingController) MyBookings(c *fiber.Ctx) error {
	me := currentUser(c)
	if me == nil {
		return tours.ErrUnauthenticated
	}
	docs, err := b.repo.Bookings().ListForUser(c.UserContext(), me.ID)
	if err != nil {
		return err
	}
	return sendList(c, docs, len(docs))
}
