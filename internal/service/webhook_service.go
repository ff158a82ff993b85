package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	domainErrors "github.com/cassiomorais/payments-gateway/internal/domain/errors"
	"github.com/cassiomorais/payments-gateway/internal/domain/webhook"
	"github.com/cassiomorais/payments-gateway/internal/infrastructure/observability"
	"github.com/cassiomorais/payments-gateway/internal/providers"
)

// WebhookService verifies processor deliveries and relays the ones the
// rest of the system cares about onto the bus.
type WebhookService struct {
	verifier  providers.WebhookVerifier
	secret    string
	publisher EventPublisher
	metrics   *observability.Metrics
	logger    zerolog.Logger
}

func NewWebhookService(verifier providers.WebhookVerifier, secret string, publisher EventPublisher, metrics *observability.Metrics, logger zerolog.Logger) *WebhookService {
	return &WebhookService{
		verifier:  verifier,
		secret:    secret,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
}

// HandleDelivery authenticates body against signatureHeader and dispatches
// the event. Nothing is published unless verification succeeds, and a
// charge.succeeded delivery publishes exactly once. Redeliveries are
// published again.
func (s *WebhookService) HandleDelivery(ctx context.Context, body []byte, signatureHeader string) (webhook.Outcome, error) {
	ctx, span := tracer.Start(ctx, "WebhookService.HandleDelivery")
	defer span.End()
	start := time.Now()

	event, err := s.verifier.Verify(body, signatureHeader, s.secret)
	if err != nil {
		if !errors.Is(err, domainErrors.ErrWebhookVerificationFailed) {
			err = fmt.Errorf("%w: %w", domainErrors.ErrWebhookVerificationFailed, err)
		}
		s.logger.Warn().Err(err).Msg("webhook rejected")
		s.observe("unknown", "rejected", start)
		span.SetStatus(codes.Error, "verification failed")
		return "", err
	}

	kind := event.Kind()
	span.SetAttributes(
		attribute.String("webhook.event_id", event.ID),
		attribute.String("webhook.event_type", event.Type),
	)

	switch kind {
	case webhook.KindChargeSucceeded:
		if err := s.relayChargeSucceeded(ctx, event); err != nil {
			s.observe(event.Type, "failed", start)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return "", err
		}
		s.observe(event.Type, string(webhook.OutcomePublished), start)
		return webhook.OutcomePublished, nil
	default:
		s.logger.Info().
			Str("event_id", event.ID).
			Str("event_type", event.Type).
			Msg("unhandled event type")
		s.observe("other", string(webhook.OutcomeIgnored), start)
		return webhook.OutcomeIgnored, nil
	}
}

func (s *WebhookService) relayChargeSucceeded(ctx context.Context, event *webhook.VerifiedEvent) error {
	charge, err := event.Charge()
	if err != nil {
		s.logger.Warn().Err(err).Str("event_id", event.ID).Msg("verified event has unreadable charge")
		return err
	}

	msg := webhook.NewPaymentSucceededEvent(charge)
	if err := s.publisher.Publish(ctx, webhook.TopicPaymentSucceeded, msg); err != nil {
		s.logger.Error().
			Err(err).
			Str("event_id", event.ID).
			Str("charge_id", charge.ID).
			Msg("publish payment succeeded failed")
		return fmt.Errorf("%w: %w", domainErrors.ErrPublishFailed, err)
	}

	s.logger.Info().
		Str("event_id", event.ID).
		Str("charge_id", charge.ID).
		Str("order_id", msg.OrderID).
		Msg("payment succeeded relayed")
	return nil
}

func (s *WebhookService) observe(kind, outcome string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.WebhookDeliveries.WithLabelValues(kind, outcome).Inc()
	s.metrics.WebhookDuration.Observe(time.Since(start).Seconds())
}
