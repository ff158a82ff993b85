package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	domainErrors "github.com/cassiomorais/payments-gateway/internal/domain/errors"
	"github.com/cassiomorais/payments-gateway/internal/domain/webhook"
	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	stripewebhook "github.com/stripe/stripe-go/v79/webhook"
)

// StripeConfig configures the Stripe adapter.
type StripeConfig struct {
	SecretKey string
	APIURL    string // overrides the public API base, used against stripe-mock and in tests
	Logger    zerolog.Logger
}

// StripeProvider creates checkout sessions through stripe-go. Each instance
// owns its own client; the package-level stripe.Key is never touched.
type StripeProvider struct {
	client *client.API
}

func NewStripeProvider(cfg StripeConfig) *StripeProvider {
	logger := &stripeLogger{logger: cfg.Logger.With().Str("component", "stripe").Logger()}
	backendConfig := func() *stripe.BackendConfig {
		bc := &stripe.BackendConfig{
			// a failed call is reported once, never retried
			MaxNetworkRetries: stripe.Int64(0),
			LeveledLogger:     logger,
		}
		if cfg.APIURL != "" {
			bc.URL = stripe.String(cfg.APIURL)
		}
		return bc
	}

	sc := &client.API{}
	sc.Init(cfg.SecretKey, &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig()),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendConfig()),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendConfig()),
	})

	return &StripeProvider{client: sc}
}

func (p *StripeProvider) Name() string { return "stripe" }

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, params SessionParams) (*Session, error) {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(params.LineItems))
	for _, item := range params.LineItems {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(item.Currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
				UnitAmount: stripe.Int64(item.UnitAmount),
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}

	sp := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(params.Mode),
		LineItems:  lineItems,
		SuccessURL: stripe.String(params.SuccessURL),
		CancelURL:  stripe.String(params.CancelURL),
	}
	if len(params.Metadata) > 0 {
		sp.PaymentIntentData = &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: make(map[string]string, len(params.Metadata)),
		}
		for k, v := range params.Metadata {
			sp.PaymentIntentData.Metadata[k] = v
		}
	}
	sp.Context = ctx

	s, err := p.client.CheckoutSessions.New(sp)
	if err != nil {
		return nil, mapStripeError(err)
	}

	return &Session{
		ID:         s.ID,
		URL:        s.URL,
		SuccessURL: s.SuccessURL,
		CancelURL:  s.CancelURL,
	}, nil
}

// mapStripeError keeps stripe-go types out of the service layer while
// preserving the processor's message.
func mapStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: %s", domainErrors.ErrProviderUnavailable, stripeErr.Msg)
		}
		return fmt.Errorf("%w: %s", domainErrors.ErrProviderRejected, stripeErr.Msg)
	}
	return fmt.Errorf("stripe request failed: %w", err)
}

// StripeVerifier checks the Stripe-Signature header against the raw body
// before stripe-go decodes the event.
type StripeVerifier struct {
	tolerance time.Duration
}

func NewStripeVerifier(tolerance time.Duration) *StripeVerifier {
	if tolerance <= 0 {
		tolerance = stripewebhook.DefaultTolerance
	}
	return &StripeVerifier{tolerance: tolerance}
}

func (v *StripeVerifier) Verify(payload []byte, signatureHeader, secret string) (*webhook.VerifiedEvent, error) {
	if signatureHeader == "" {
		return nil, domainErrors.ErrMissingSignature
	}

	// Only the fields the relay reads are decoded; the event API version is not enforced.
	event, err := stripewebhook.ConstructEventWithOptions(payload, signatureHeader, secret, stripewebhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, err
	}

	verified := &webhook.VerifiedEvent{
		ID:   event.ID,
		Type: string(event.Type),
	}
	if event.Data != nil {
		verified.Object = event.Data.Raw
	}
	return verified, nil
}

// stripeLogger routes stripe-go's internal logging through zerolog.
type stripeLogger struct {
	logger zerolog.Logger
}

func (l *stripeLogger) Debugf(format string, v ...interface{}) { l.logger.Debug().Msgf(format, v...) }
func (l *stripeLogger) Infof(format string, v ...interface{})  { l.logger.Debug().Msgf(format, v...) }
func (l *stripeLogger) Warnf(format string, v ...interface{})  { l.logger.Warn().Msgf(format, v...) }
func (l *stripeLogger) Errorf(format string, v ...interface{}) { l.logger.Error().Msgf(format, v...) }
