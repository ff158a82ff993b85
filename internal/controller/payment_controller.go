package controller

import (
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	domainErrors "github.com/cassiomorais/payments-gateway/internal/domain/errors"
	"github.com/cassiomorais/payments-gateway/internal/service"
)

// SignatureHeader carries the processor's webhook signature.
const SignatureHeader = "Stripe-Signature"

// PaymentController handles checkout and processor webhook HTTP requests.
type PaymentController struct {
	checkout    *service.CheckoutService
	webhooks    *service.WebhookService
	maxBodySize int64
	logger      zerolog.Logger
}

func NewPaymentController(
	checkoutService *service.CheckoutService,
	webhookService *service.WebhookService,
	maxBodySize int64,
	logger zerolog.Logger,
) *PaymentController {
	return &PaymentController{
		checkout:    checkoutService,
		webhooks:    webhookService,
		maxBodySize: maxBodySize,
		logger:      logger,
	}
}

// Webhook handles POST /payments/webhook. The body is read unparsed so the
// signature is checked against the exact bytes the processor signed.
func (h *PaymentController) Webhook(w http.ResponseWriter, r *http.Request) {
	reader := io.Reader(r.Body)
	if h.maxBodySize > 0 {
		reader = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		writeWebhookError(w, err)
		return
	}

	outcome, err := h.webhooks.HandleDelivery(r.Context(), body, r.Header.Get(SignatureHeader))
	if err != nil {
		if errors.Is(err, domainErrors.ErrPublishFailed) {
			writeError(w, err)
			return
		}
		writeWebhookError(w, err)
		return
	}

	h.logger.Debug().Str("outcome", string(outcome)).Msg("webhook acknowledged")
	writeJSON(w, http.StatusOK, WebhookAckResponse{Received: true})
}

// Success handles GET /payments/success.
func (h *PaymentController) Success(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, RedirectAckResponse{OK: true, Message: "Payment successful"})
}

// Cancel handles GET /payments/cancel.
func (h *PaymentController) Cancel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, RedirectAckResponse{OK: false, Message: "Payment cancelled"})
}

// CreateSession handles POST /api/v1/payments/session
func (h *PaymentController) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req PaymentSessionRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		writeError(w, err)
		return
	}

	domainReq, err := req.ToDomain()
	if err != nil {
		writeError(w, domainErrors.NewValidationError("orderId", err.Error()))
		return
	}

	result, err := h.checkout.CreateSession(r.Context(), domainReq)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, FromSessionResult(result))
}

func writeWebhookError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusBadRequest)
	_, _ = io.WriteString(w, "Webhook Error: "+err.Error())
}
