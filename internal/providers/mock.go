package providers

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	domainErrors "github.com/cassiomorais/payments-gateway/internal/domain/errors"
	"github.com/google/uuid"
)

// MockProvider fakes a hosted checkout for local runs (payment.provider=mock).
type MockProvider struct {
	name        string
	baseURL     string
	failureRate float64 // 0.0 to 1.0
	latency     time.Duration
}

type MockProviderOption func(*MockProvider)

func WithFailureRate(rate float64) MockProviderOption {
	return func(p *MockProvider) { p.failureRate = rate }
}

func WithLatency(d time.Duration) MockProviderOption {
	return func(p *MockProvider) { p.latency = d }
}

func WithCheckoutBaseURL(url string) MockProviderOption {
	return func(p *MockProvider) { p.baseURL = url }
}

func NewMockProvider(name string, opts ...MockProviderOption) *MockProvider {
	p := &MockProvider{
		name:        name,
		baseURL:     "https://checkout.mock.local/pay",
		failureRate: 0.0,
		latency:     0,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *MockProvider) Name() string { return p.name }

func (p *MockProvider) CreateCheckoutSession(ctx context.Context, params SessionParams) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.latency > 0 {
		select {
		case <-time.After(p.latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if rand.Float64() < p.failureRate {
		return nil, fmt.Errorf("%w: %s: simulated session failure", domainErrors.ErrProviderRejected, p.name)
	}

	id := fmt.Sprintf("cs_%s_%s", p.name, uuid.New().String()[:8])
	return &Session{
		ID:         id,
		URL:        fmt.Sprintf("%s/%s", p.baseURL, id),
		SuccessURL: params.SuccessURL,
		CancelURL:  params.CancelURL,
	}, nil
}
