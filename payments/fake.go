package payments

import (
	"context"
	"encoding/json"
	"sync"

	tours "github.com/goliatone/go-tours"
)

// Fake is an in-memory Checkout. Webhook payloads are a JSON encoded
// Completed and the signature must equal Signature.
type Fake struct {
	mu        sync.Mutex
	Signature string
	Err       error
	Requests  []Request
}

var _ Checkout = (*Fake)(nil)

func (f *Fake) CreateSession(_ context.Context, req Request) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	f.Requests = append(f.Requests, req)
	return &Session{
		ID:  "cs_test_" + req.Tour.ID.String(),
		URL: "https://checkout.example.com/" + req.Tour.Slug,
	}, nil
}

func (f *Fake) ParseWebhook(payload []byte, signature string) (*Completed, error) {
	if signature != f.Signature {
		return nil, ErrInvalidSignature
	}
	var completed Completed
	if err := json.Unmarshal(payload, &completed); err != nil {
		return nil, tours.NewValidationError("invalid webhook payload")
	}
	if completed.SessionID == "" {
		return nil, nil
	}
	return &completed, nil
}
