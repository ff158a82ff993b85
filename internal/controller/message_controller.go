package controller

import (
	"context"

	"github.com/rs/zerolog"

	domainErrors "github.com/cassiomorais/payments-gateway/internal/domain/errors"
	"github.com/cassiomorais/payments-gateway/internal/service"
)

// TopicCreatePaymentSession is the bus request topic served by
// MessageController.CreatePaymentSession.
const TopicCreatePaymentSession = "create.payment.session"

// MessageController serves request/response messages from the internal bus.
type MessageController struct {
	checkout *service.CheckoutService
	logger   zerolog.Logger
}

func NewMessageController(checkoutService *service.CheckoutService, logger zerolog.Logger) *MessageController {
	return &MessageController{checkout: checkoutService, logger: logger}
}

// CreatePaymentSession decodes a PaymentSessionRequest and replies with the
// session URL triple.
func (c *MessageController) CreatePaymentSession(ctx context.Context, payload []byte) (any, error) {
	var req PaymentSessionRequest
	if err := decodeBytes(payload, &req); err != nil {
		c.logger.Info().Err(err).Msg("rejected create payment session request")
		return nil, err
	}

	domainReq, err := req.ToDomain()
	if err != nil {
		return nil, domainErrors.NewValidationError("orderId", err.Error())
	}

	result, err := c.checkout.CreateSession(ctx, domainReq)
	if err != nil {
		return nil, err
	}
	return FromSessionResult(result), nil
}
