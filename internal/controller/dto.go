package controller

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cassiomorais/payments-gateway/internal/domain/checkout"
)

// --- Request DTOs ---
// Shared by the HTTP session route and the create.payment.session bus handler.

// LineItemRequest is one order line. Price is in major units, at most
// checkout.MaxUnitPrice.
type LineItemRequest struct {
	Name     string          `json:"name" validate:"required"`
	Price    decimal.Decimal `json:"price" validate:"gte=0,lte=999999.99"`
	Quantity int64           `json:"quantity" validate:"required,gt=0"`
}

// PaymentSessionRequest asks for a hosted checkout session for an order.
type PaymentSessionRequest struct {
	OrderID  string            `json:"orderId" validate:"required,uuid"`
	Currency string            `json:"currency" validate:"required,len=3,alpha"`
	Items    []LineItemRequest `json:"items" validate:"required,min=1,dive"`
}

// ToDomain converts a validated request.
func (r PaymentSessionRequest) ToDomain() (checkout.SessionRequest, error) {
	orderID, err := uuid.Parse(r.OrderID)
	if err != nil {
		return checkout.SessionRequest{}, err
	}
	items := make([]checkout.LineItem, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, checkout.LineItem{
			Name:      it.Name,
			UnitPrice: it.Price,
			Quantity:  it.Quantity,
		})
	}
	return checkout.SessionRequest{
		OrderID:  orderID,
		Currency: r.Currency,
		Items:    items,
	}, nil
}

// --- Response DTOs ---

// PaymentSessionResponse is the URL triple returned to the caller. Fields the
// processor did not return are empty strings.
type PaymentSessionResponse struct {
	SuccessURL  string `json:"successUrl"`
	CancelURL   string `json:"cancelUrl"`
	CheckoutURL string `json:"checkoutUrl"`
}

func FromSessionResult(res *checkout.SessionResult) PaymentSessionResponse {
	return PaymentSessionResponse{
		SuccessURL:  res.SuccessURL,
		CancelURL:   res.CancelURL,
		CheckoutURL: res.CheckoutURL,
	}
}

// WebhookAckResponse acknowledges a verified delivery.
type WebhookAckResponse struct {
	Received bool `json:"received"`
}

// RedirectAckResponse is returned on the checkout success and cancel pages.
type RedirectAckResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
