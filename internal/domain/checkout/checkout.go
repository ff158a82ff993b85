package checkout

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	domainErrors "github.com/cassiomorais/payments-gateway/internal/domain/errors"
)

// MetadataOrderIDKey is the payment intent metadata key that carries the
// order id back on processor events.
const MetadataOrderIDKey = "orderId"

// ModePayment is the one-off payment checkout mode.
const ModePayment = "payment"

var hundred = decimal.NewFromInt(100)

// MaxUnitPrice is the largest unit price accepted from callers, in major
// units. The processor caps unit amounts at eight digits.
var MaxUnitPrice = decimal.New(99999999, -2)

// maxWholeDigits bounds the integer part before any rescaling, so a huge
// exponent is rejected without building a huge integer.
const maxWholeDigits = 17

// LineItem is a single order line as supplied by the caller.
type LineItem struct {
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int64
}

// SessionRequest describes the order a checkout session is opened for.
// Items is never empty once it has passed request validation.
type SessionRequest struct {
	OrderID  uuid.UUID
	Currency string
	Items    []LineItem
}

// SessionResult is what callers get back after a session is created. Any
// field may be empty when the processor did not return it.
type SessionResult struct {
	SuccessURL  string
	CancelURL   string
	CheckoutURL string
}

// ToMinorUnits converts a major-unit price to minor units (cents for USD)
// using round-half-away-from-zero: 19.99 -> 1999, 0.005 -> 1, 0.0049 -> 0.
// Negative prices and prices whose minor units do not fit an int64 are
// rejected with ErrInvalidInput.
func ToMinorUnits(price decimal.Decimal) (int64, error) {
	if price.IsNegative() {
		return 0, fmt.Errorf("%w: price %s is negative", domainErrors.ErrInvalidInput, price)
	}
	if price.IsZero() {
		return 0, nil
	}

	whole := price.NumDigits() + int(price.Exponent())
	if whole > maxWholeDigits {
		return 0, fmt.Errorf("%w: price out of range", domainErrors.ErrInvalidInput)
	}
	// below 0.001 the minor amount rounds to zero
	if whole < -2 {
		return 0, nil
	}

	minor := price.Mul(hundred).Round(0)
	if !minor.BigInt().IsInt64() {
		return 0, fmt.Errorf("%w: price %s out of range", domainErrors.ErrInvalidInput, price)
	}
	return minor.IntPart(), nil
}
