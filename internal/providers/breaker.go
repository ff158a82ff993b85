package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/payments-gateway/internal/domain/errors"
	"github.com/sony/gobreaker/v2"
)

// BreakerSettings configures the circuit breaker in front of a provider.
type BreakerSettings struct {
	MaxRequests         uint32
	ConsecutiveFailures uint32
	Interval            time.Duration
	Timeout             time.Duration
	OnStateChange       func(name string, from, to gobreaker.State)
}

// BreakerProvider fails fast while the processor is unhealthy. It never
// retries; a tripped breaker surfaces as ErrProviderUnavailable.
type BreakerProvider struct {
	provider Provider
	breaker  *gobreaker.CircuitBreaker[*Session]
}

func NewBreakerProvider(p Provider, s BreakerSettings) *BreakerProvider {
	if s.MaxRequests == 0 {
		s.MaxRequests = 1
	}
	if s.ConsecutiveFailures == 0 {
		s.ConsecutiveFailures = 10
	}
	if s.Interval == 0 {
		s.Interval = 60 * time.Second
	}
	if s.Timeout == 0 {
		s.Timeout = 30 * time.Second
	}

	threshold := s.ConsecutiveFailures
	return &BreakerProvider{
		provider: p,
		breaker: gobreaker.NewCircuitBreaker[*Session](gobreaker.Settings{
			Name:        p.Name(),
			MaxRequests: s.MaxRequests,
			Interval:    s.Interval,
			Timeout:     s.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			// A rejected request means the processor answered.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, domainErrors.ErrProviderRejected)
			},
			OnStateChange: s.OnStateChange,
		}),
	}
}

func (b *BreakerProvider) Name() string { return b.provider.Name() }

func (b *BreakerProvider) CreateCheckoutSession(ctx context.Context, params SessionParams) (*Session, error) {
	session, err := b.breaker.Execute(func() (*Session, error) {
		return b.provider.CreateCheckoutSession(ctx, params)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %s circuit %s", domainErrors.ErrProviderUnavailable, b.provider.Name(), b.breaker.State())
	}
	return session, err
}

// State reports the breaker state.
func (b *BreakerProvider) State() gobreaker.State {
	return b.breaker.State()
}
