package providers

import (
	"context"

	"github.com/cassiomorais/payments-gateway/internal/domain/webhook"
)

// SessionLineItem is one priced line of a checkout session, amounts in minor units.
type SessionLineItem struct {
	Currency   string
	Name       string
	UnitAmount int64
	Quantity   int64
}

// SessionParams is everything the processor needs to open a hosted checkout.
type SessionParams struct {
	Mode       string
	LineItems  []SessionLineItem
	Metadata   map[string]string // attached to the payment intent
	SuccessURL string
	CancelURL  string
}

// Session is the processor's answer to a session creation call.
type Session struct {
	ID         string
	URL        string
	SuccessURL string
	CancelURL  string
}

type Provider interface {
	// Name returns the provider name.
	Name() string
	// CreateCheckoutSession opens a hosted checkout session.
	CreateCheckoutSession(ctx context.Context, params SessionParams) (*Session, error)
}

// WebhookVerifier authenticates a raw webhook delivery and decodes it. It
// must not parse the payload before the signature has been checked.
type WebhookVerifier interface {
	Verify(payload []byte, signatureHeader, secret string) (*webhook.VerifiedEvent, error)
}

// VerifierFunc adapts a function to WebhookVerifier.
type VerifierFunc func(payload []byte, signatureHeader, secret string) (*webhook.VerifiedEvent, error)

func (f VerifierFunc) Verify(payload []byte, signatureHeader, secret string) (*webhook.VerifiedEvent, error) {
	return f(payload, signatureHeader, secret)
}
