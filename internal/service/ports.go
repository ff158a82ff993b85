package service

import (
	"context"
)

// EventPublisher is the outbound side of the message bus. Payloads are
// JSON-encoded by the implementation.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}
