package testutil

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	stripewebhook "github.com/stripe/stripe-go/v79/webhook"

	"github.com/cassiomorais/payments-gateway/internal/domain/checkout"
)

const (
	TestWebhookSecret = "whsec_test_secret"
	TestSuccessURL    = "https://shop.example.test/payments/success"
	TestCancelURL     = "https://shop.example.test/payments/cancel"
)

// NewTestSessionRequest returns a two-line order in USD.
func NewTestSessionRequest() checkout.SessionRequest {
	return checkout.SessionRequest{
		OrderID:  uuid.New(),
		Currency: "usd",
		Items: []checkout.LineItem{
			{Name: "T-shirt", UnitPrice: decimal.RequireFromString("19.99"), Quantity: 2},
			{Name: "Sticker", UnitPrice: decimal.RequireFromString("0.5"), Quantity: 1},
		},
	}
}

// ChargeSucceededPayload builds a processor event body for a successful
// charge. An empty orderID omits the metadata key; an empty receiptURL
// writes a JSON null.
func ChargeSucceededPayload(chargeID, orderID, receiptURL string) []byte {
	metadata := map[string]string{}
	if orderID != "" {
		metadata[checkout.MetadataOrderIDKey] = orderID
	}
	var receipt any
	if receiptURL != "" {
		receipt = receiptURL
	}
	return EventPayload("charge.succeeded", map[string]any{
		"id":          chargeID,
		"object":      "charge",
		"amount":      3998,
		"currency":    "usd",
		"metadata":    metadata,
		"receipt_url": receipt,
	})
}

// EventPayload wraps object in a processor event envelope of the given type.
func EventPayload(eventType string, object map[string]any) []byte {
	body, err := json.Marshal(map[string]any{
		"id":          fmt.Sprintf("evt_%s", uuid.NewString()[:8]),
		"object":      "event",
		"type":        eventType,
		"api_version": "2024-06-20",
		"created":     time.Now().Unix(),
		"data":        map[string]any{"object": object},
	})
	if err != nil {
		panic(err)
	}
	return body
}

// SignPayload returns a Stripe-Signature header value for body.
func SignPayload(body []byte, secret string) string {
	return stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{
		Payload:   body,
		Secret:    secret,
		Timestamp: time.Now(),
	}).Header
}
