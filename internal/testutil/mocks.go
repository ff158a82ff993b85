package testutil

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/cassiomorais/payments-gateway/internal/domain/webhook"
	"github.com/cassiomorais/payments-gateway/internal/providers"
)

// --- Event Publisher Mock ---

// PublishedMessage is one recorded Publish call.
type PublishedMessage struct {
	Topic   string
	Payload json.RawMessage
}

// MockPublisher records publishes. Payloads are stored JSON-encoded, as a
// real bus would see them.
type MockPublisher struct {
	mu        sync.Mutex
	published []PublishedMessage

	PublishFunc func(ctx context.Context, topic string, payload any) error
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, payload any) error {
	if m.PublishFunc != nil {
		if err := m.PublishFunc(ctx, topic, payload); err != nil {
			return err
		}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, PublishedMessage{Topic: topic, Payload: data})
	return nil
}

func (m *MockPublisher) Published() []PublishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PublishedMessage, len(m.published))
	copy(out, m.published)
	return out
}

func (m *MockPublisher) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.published)
}

// --- Provider Mock ---

// MockProvider records every session request and answers with SessionFunc,
// or a fixed session when SessionFunc is nil.
type MockProvider struct {
	mu    sync.Mutex
	calls []providers.SessionParams

	SessionFunc func(ctx context.Context, params providers.SessionParams) (*providers.Session, error)
}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) CreateCheckoutSession(ctx context.Context, params providers.SessionParams) (*providers.Session, error) {
	m.mu.Lock()
	m.calls = append(m.calls, params)
	m.mu.Unlock()

	if m.SessionFunc != nil {
		return m.SessionFunc(ctx, params)
	}
	return &providers.Session{
		ID:         "cs_test_123",
		URL:        "https://checkout.example.test/c/cs_test_123",
		SuccessURL: params.SuccessURL,
		CancelURL:  params.CancelURL,
	}, nil
}

func (m *MockProvider) Calls() []providers.SessionParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]providers.SessionParams, len(m.calls))
	copy(out, m.calls)
	return out
}

// --- Webhook Verifier Mock ---

// MockVerifier returns Event for every delivery unless Err is set.
type MockVerifier struct {
	Event *webhook.VerifiedEvent
	Err   error
}

func (m *MockVerifier) Verify(payload []byte, signatureHeader, secret string) (*webhook.VerifiedEvent, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Event, nil
}
