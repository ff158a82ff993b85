package webhook

import (
	"encoding/json"
	"fmt"

	"github.com/cassiomorais/payments-gateway/internal/domain/checkout"
	"github.com/cassiomorais/payments-gateway/internal/domain/errors"
)

// TopicPaymentSucceeded is the bus topic successful charges are relayed to.
const TopicPaymentSucceeded = "payment.succeeded"

// EventKind is the set of processor event types the relay understands.
// Anything else collapses to KindOther.
type EventKind string

const (
	KindChargeSucceeded EventKind = "charge.succeeded"
	KindOther           EventKind = "other"
)

// ParseEventKind maps a raw processor event type to an EventKind.
func ParseEventKind(eventType string) EventKind {
	switch EventKind(eventType) {
	case KindChargeSucceeded:
		return KindChargeSucceeded
	default:
		return KindOther
	}
}

// Outcome is the terminal state of a verified delivery.
type Outcome string

const (
	OutcomePublished Outcome = "published"
	OutcomeIgnored   Outcome = "ignored"
)

// VerifiedEvent is a processor event whose signature has been checked.
// Object holds the raw JSON of the event's data object and is only decoded
// on dispatch.
type VerifiedEvent struct {
	ID     string
	Type   string
	Object json.RawMessage
}

// Kind returns the event's kind.
func (e *VerifiedEvent) Kind() EventKind {
	return ParseEventKind(e.Type)
}

// Charge is the subset of a processor charge object the relay reads.
type Charge struct {
	ID         string            `json:"id"`
	Metadata   map[string]string `json:"metadata"`
	ReceiptURL *string           `json:"receipt_url"`
}

// Charge decodes the event object as a charge.
func (e *VerifiedEvent) Charge() (*Charge, error) {
	if len(e.Object) == 0 {
		return nil, fmt.Errorf("%w: event %s has no data object", errors.ErrMalformedEvent, e.ID)
	}
	var ch Charge
	if err := json.Unmarshal(e.Object, &ch); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrMalformedEvent, err)
	}
	if ch.ID == "" {
		return nil, fmt.Errorf("%w: charge without id", errors.ErrMalformedEvent)
	}
	return &ch, nil
}

// PaymentSucceededEvent is published on TopicPaymentSucceeded. Consumers must
// be idempotent on ProcessorPaymentID: the processor may deliver the same
// charge more than once.
type PaymentSucceededEvent struct {
	ProcessorPaymentID string  `json:"processorPaymentId"`
	OrderID            string  `json:"orderId"`
	ReceiptURL         *string `json:"receiptUrl"`
}

// PartitionKey keeps redeliveries of one charge on the same partition.
func (e PaymentSucceededEvent) PartitionKey() string {
	return e.ProcessorPaymentID
}

// NewPaymentSucceededEvent builds the internal event for a charge. A missing
// order id is carried as an empty string.
func NewPaymentSucceededEvent(ch *Charge) PaymentSucceededEvent {
	evt := PaymentSucceededEvent{
		ProcessorPaymentID: ch.ID,
		OrderID:            ch.Metadata[checkout.MetadataOrderIDKey],
	}
	if ch.ReceiptURL != nil && *ch.ReceiptURL != "" {
		url := *ch.ReceiptURL
		evt.ReceiptURL = &url
	}
	return evt
}
