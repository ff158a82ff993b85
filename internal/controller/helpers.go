package controller

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	domainErrors "github.com/cassiomorais/payments-gateway/internal/domain/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return decimalForValidation(d)
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// decimalForValidation converts d for numeric tags. Magnitudes far outside
// any price are clamped instead of expanded, since converting 1e3000000 to a
// float means building a three-million-digit integer first.
func decimalForValidation(d decimal.Decimal) float64 {
	if d.IsZero() {
		return 0
	}
	switch whole := d.NumDigits() + int(d.Exponent()); {
	case whole > 20:
		return math.Inf(d.Sign())
	case whole < -20:
		return 0
	}
	return d.InexactFloat64()
}

type errorMapping struct {
	err    error
	status int
	code   string
}

// First match wins: a session failure caused by an unavailable provider
// reports as unavailable.
var errorMappings = []errorMapping{
	{domainErrors.ErrProviderUnavailable, http.StatusServiceUnavailable, "provider_unavailable"},
	{domainErrors.ErrSessionCreationFailed, http.StatusBadGateway, "session_creation_failed"},
	{domainErrors.ErrWebhookVerificationFailed, http.StatusBadRequest, "webhook_verification_failed"},
	{domainErrors.ErrMalformedEvent, http.StatusBadRequest, "malformed_event"},
	{domainErrors.ErrPublishFailed, http.StatusInternalServerError, "publish_failed"},
	{domainErrors.ErrUnknownHandler, http.StatusNotFound, "unknown_handler"},
	{domainErrors.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{domainErrors.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
}

func classify(err error) (int, string) {
	var validationErr *domainErrors.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest, "validation_error"
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	var domainErr *domainErrors.DomainError
	if errors.As(err, &domainErr) {
		return http.StatusUnprocessableEntity, domainErr.Code
	}
	return http.StatusInternalServerError, "internal_error"
}

// ErrorCode returns the stable machine-readable code for err. Bus replies
// use the same codes as HTTP responses.
func ErrorCode(err error) string {
	_, code := classify(err)
	return code
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	resp := ErrorResponse{Error: err.Error(), Code: code}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("code", code).Msg("request failed")
		resp.Error = "internal server error"
	}
	writeJSON(w, status, resp)
}

// decodeAndValidate strictly decodes one JSON document into dst and runs
// struct validation. Unknown fields are rejected.
func decodeAndValidate(r io.Reader, dst any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domainErrors.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	if dec.More() {
		return domainErrors.NewValidationError("body", "unexpected data after JSON document")
	}
	return validateStruct(dst)
}

func decodeBytes(data []byte, dst any) error {
	return decodeAndValidate(bytes.NewReader(data), dst)
}

func validateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			return domainErrors.NewValidationError(ve[0].Namespace(), fmt.Sprintf("%s validation failed", ve[0].Tag()))
		}
		return domainErrors.NewValidationError("body", err.Error())
	}
	return nil
}
