package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/cassiomorais/payments-gateway/internal/domain/checkout"
	domainErrors "github.com/cassiomorais/payments-gateway/internal/domain/errors"
	"github.com/cassiomorais/payments-gateway/internal/infrastructure/observability"
	"github.com/cassiomorais/payments-gateway/internal/providers"
)

var tracer = otel.Tracer("github.com/cassiomorais/payments-gateway/internal/service")

// CheckoutURLs are the configured redirect targets for hosted checkout.
type CheckoutURLs struct {
	SuccessURL string
	CancelURL  string
}

// CheckoutService turns order requests into processor checkout sessions.
type CheckoutService struct {
	provider providers.Provider
	urls     CheckoutURLs
	metrics  *observability.Metrics
	logger   zerolog.Logger
}

func NewCheckoutService(provider providers.Provider, urls CheckoutURLs, metrics *observability.Metrics, logger zerolog.Logger) *CheckoutService {
	return &CheckoutService{
		provider: provider,
		urls:     urls,
		metrics:  metrics,
		logger:   logger,
	}
}

// BuildSessionParams maps an order to processor session parameters. It has
// no side effects; prices are converted to minor units and every item shares
// the request currency. A price that cannot be expressed in minor units fails
// with ErrInvalidInput.
func (s *CheckoutService) BuildSessionParams(req checkout.SessionRequest) (providers.SessionParams, error) {
	items := make([]providers.SessionLineItem, 0, len(req.Items))
	for i, it := range req.Items {
		amount, err := checkout.ToMinorUnits(it.UnitPrice)
		if err != nil {
			return providers.SessionParams{}, fmt.Errorf("item %d: %w", i, err)
		}
		items = append(items, providers.SessionLineItem{
			Currency:   req.Currency,
			Name:       it.Name,
			UnitAmount: amount,
			Quantity:   it.Quantity,
		})
	}

	return providers.SessionParams{
		Mode:      checkout.ModePayment,
		LineItems: items,
		Metadata: map[string]string{
			checkout.MetadataOrderIDKey: req.OrderID.String(),
		},
		SuccessURL: s.urls.SuccessURL,
		CancelURL:  s.urls.CancelURL,
	}, nil
}

// CreateSession opens exactly one checkout session with the processor.
// Failures are not retried.
func (s *CheckoutService) CreateSession(ctx context.Context, req checkout.SessionRequest) (*checkout.SessionResult, error) {
	ctx, span := tracer.Start(ctx, "CheckoutService.CreateSession")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", req.OrderID.String()),
		attribute.String("payment.provider", s.provider.Name()),
		attribute.Int("order.items", len(req.Items)),
	)

	params, err := s.BuildSessionParams(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	start := time.Now()
	session, err := s.provider.CreateCheckoutSession(ctx, params)
	status := "success"
	if err != nil {
		status = "failed"
	}
	s.observe(status, time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error().
			Err(err).
			Str("order_id", req.OrderID.String()).
			Str("provider", s.provider.Name()).
			Msg("checkout session creation failed")
		return nil, domainErrors.NewSessionCreationError(err)
	}

	s.logger.Info().
		Str("order_id", req.OrderID.String()).
		Str("session_id", session.ID).
		Msg("checkout session created")

	return &checkout.SessionResult{
		SuccessURL:  session.SuccessURL,
		CancelURL:   session.CancelURL,
		CheckoutURL: session.URL,
	}, nil
}

func (s *CheckoutService) observe(status string, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.SessionsTotal.WithLabelValues(s.provider.Name(), status).Inc()
	s.metrics.SessionDuration.WithLabelValues(s.provider.Name(), status).Observe(elapsed.Seconds())
}
