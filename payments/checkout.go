package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	tours "github.com/goliatone/go-tours"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"
)

// DefaultCurrency is charged when none is configured
const DefaultCurrency = "usd"

// TextCodePaymentProvider marks errors from the payment provider
const TextCodePaymentProvider = "PAYMENT_PROVIDER"

var (
	// ErrInvalidSignature webhook payload failed signature verification
	ErrInvalidSignature = goerrors.New("Webhook signature verification failed", goerrors.CategoryBadInput).
				WithCode(http.StatusBadRequest).
				WithTextCode("INVALID_SIGNATURE")
)

// Request describes the tour a user wants to pay for
type Request struct {
	Tour       *tours.Tour
	User       *tours.User
	SuccessURL string
	CancelURL  string
	// ImageBaseURL prefixes the tour cover image
	ImageBaseURL string
}

// Session is a created checkout session
type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Completed is a paid checkout session reported by the webhook
type Completed struct {
	SessionID     string
	TourID        uuid.UUID
	CustomerEmail string
	Amount        float64
}

// Checkout creates hosted checkout sessions and verifies their webhooks
type Checkout interface {
	CreateSession(ctx context.Context, req Request) (*Session, error)
	// ParseWebhook returns nil, nil for events other than a completed session
	ParseWebhook(payload []byte, signature string) (*Completed, error)
}

// StripeCheckout implements Checkout on Stripe Checkout
type StripeCheckout struct {
	client        session.Client
	webhookSecret string
	currency      string
}

var _ Checkout = (*StripeCheckout)(nil)

func NewStripeCheckout(secretKey, webhookSecret string) *StripeCheckout {
	return &StripeCheckout{
		client: session.Client{
			B:   stripe.GetBackend(stripe.APIBackend),
			Key: secretKey,
		},
		webhookSecret: webhookSecret,
		currency:      DefaultCurrency,
	}
}

// WithBackend swaps the Stripe backend, used to point at a stub server
func (s *StripeCheckout) WithBackend(b stripe.Backend) *StripeCheckout {
	if b != nil {
		s.client.B = b
	}
	return s
}

func (s *StripeCheckout) WithCurrency(currency string) *StripeCheckout {
	if currency != "" {
		s.currency = strings.ToLower(currency)
	}
	return s
}

func (s *StripeCheckout) CreateSession(ctx context.Context, req Request) (*Session, error) {
	params := SessionParams(req, s.currency)
	params.Context = ctx

	sess, err := s.client.New(params)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "failed to create checkout session").
			WithCode(http.StatusBadGateway).
			WithTextCode(TextCodePaymentProvider)
	}

	return &Session{ID: sess.ID, URL: sess.URL}, nil
}

// SessionParams builds a single line item payment session for a tour
func SessionParams(req Request, currency string) *stripe.CheckoutSessionParams {
	tour := req.Tour

	product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
		Name:        stripe.String(fmt.Sprintf("%s Tour", tour.Name)),
		Description: stripe.String(tour.Summary),
	}
	if req.ImageBaseURL != "" && tour.ImageCover != "" {
		product.Images = stripe.StringSlice([]string{
			strings.TrimRight(req.ImageBaseURL, "/") + "/img/tours/" + tour.ImageCover,
		})
	}

	return &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:         stripe.String(req.SuccessURL),
		CancelURL:          stripe.String(req.CancelURL),
		CustomerEmail:      stripe.String(req.User.Email),
		ClientReferenceID:  stripe.String(tour.ID.String()),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:    stripe.String(currency),
					UnitAmount:  stripe.Int64(ToMinorUnits(tour.Price)),
					ProductData: product,
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
}

func (s *StripeCheckout) ParseWebhook(payload []byte, signature string) (*Completed, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, ErrInvalidSignature
	}

	if event.Type != stripe.EventTypeCheckoutSessionCompleted || event.Data == nil {
		return nil, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to decode checkout session").
			WithCode(http.StatusBadRequest)
	}

	return completedFromSession(&sess)
}

func completedFromSession(sess *stripe.CheckoutSession) (*Completed, error) {
	tourID, err := uuid.Parse(sess.ClientReferenceID)
	if err != nil {
		return nil, goerrors.New("checkout session has no tour reference", goerrors.CategoryBadInput).
			WithCode(http.StatusBadRequest).
			WithMetadata(map[string]any{"session_id": sess.ID})
	}

	email := sess.CustomerEmail
	if email == "" && sess.CustomerDetails != nil {
		email = sess.CustomerDetails.Email
	}

	return &Completed{
		SessionID:     sess.ID,
		TourID:        tourID,
		CustomerEmail: email,
		Amount:        FromMinorUnits(sess.AmountTotal),
	}, nil
}

// ToMinorUnits converts 397.5 to 39750
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// FromMinorUnits converts 39750 to 397.5
func FromMinorUnits(amount int64) float64 {
	return float64(amount) / 100
}
