package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/cassiomorais/payments-gateway/internal/domain/errors"
	"github.com/cassiomorais/payments-gateway/internal/infrastructure/observability"
)

const testTopic = "create.payment.session"

func newTestServer(w *fakeWriter, metrics *observability.Metrics) *RequestServer {
	return newRequestServer(nil, w, ServerOptions{
		Group:    "payments-gateway",
		Consumer: "worker-1",
		ReplyTTL: time.Minute,
		ErrorCode: func(err error) string {
			switch {
			case errors.Is(err, domainErrors.ErrValidationFailed):
				return "validation_error"
			case errors.Is(err, domainErrors.ErrUnknownHandler):
				return "unknown_handler"
			}
			return "internal_error"
		},
		Metrics: metrics,
		Logger:  zerolog.Nop(),
	})
}

func request(payload, replyTo, correlationID string) redis.XMessage {
	values := map[string]any{FieldCorrelationID: correlationID}
	if payload != "" {
		values[FieldPayload] = payload
	}
	if replyTo != "" {
		values[FieldReplyTo] = replyTo
	}
	return redis.XMessage{ID: "1700000000000-0", Values: values}
}

func replyValues(t *testing.T, w *fakeWriter) map[string]any {
	t.Helper()
	require.Len(t, w.adds, 1)
	values, ok := w.adds[0].Values.(map[string]any)
	require.True(t, ok)
	return values
}

func TestRequestServer_Success(t *testing.T) {
	w := newFakeWriter()
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	srv := newTestServer(w, metrics)

	var got []byte
	srv.Handle(testTopic, func(ctx context.Context, payload []byte) (any, error) {
		got = payload
		return map[string]string{"checkoutUrl": "https://checkout.example.test/c/1"}, nil
	})

	err := srv.process(context.Background(), testTopic, request(`{"orderId":"o-1"}`, "replies:abc", "corr-1"))
	require.NoError(t, err)

	assert.Equal(t, `{"orderId":"o-1"}`, string(got))
	assert.Equal(t, "replies:abc", w.adds[0].Stream)
	values := replyValues(t, w)
	assert.Equal(t, "corr-1", values[FieldCorrelationID])
	assert.JSONEq(t, `{"checkoutUrl":"https://checkout.example.test/c/1"}`, values[FieldPayload].(string))
	assert.NotContains(t, values, FieldError)
	assert.Equal(t, time.Minute, w.expires["replies:abc"])

	assert.Equal(t, 1.0, promtestutil.ToFloat64(metrics.WorkerMessagesProcessed.WithLabelValues(testTopic, "success")))
}

func TestRequestServer_HandlerError(t *testing.T) {
	w := newFakeWriter()
	srv := newTestServer(w, nil)
	srv.Handle(testTopic, func(ctx context.Context, payload []byte) (any, error) {
		return nil, domainErrors.NewValidationError("items", "min validation failed")
	})

	require.NoError(t, srv.process(context.Background(), testTopic, request(`{}`, "replies:abc", "corr-2")))

	values := replyValues(t, w)
	assert.Equal(t, "corr-2", values[FieldCorrelationID])
	assert.Equal(t, "validation_error", values[FieldCode])
	assert.Contains(t, values[FieldError], "items")
	assert.NotContains(t, values, FieldPayload)
}

func TestRequestServer_InternalErrorHidesDetails(t *testing.T) {
	w := newFakeWriter()
	srv := newTestServer(w, nil)
	srv.Handle(testTopic, func(ctx context.Context, payload []byte) (any, error) {
		return nil, errors.New("dial tcp 10.0.0.7:443: connection refused")
	})

	require.NoError(t, srv.process(context.Background(), testTopic, request(`{}`, "replies:abc", "corr-7")))

	values := replyValues(t, w)
	assert.Equal(t, "corr-7", values[FieldCorrelationID])
	assert.Equal(t, "internal_error", values[FieldCode])
	assert.Equal(t, "internal server error", values[FieldError])
}

func TestRequestServer_MissingPayload(t *testing.T) {
	w := newFakeWriter()
	srv := newTestServer(w, nil)
	called := false
	srv.Handle(testTopic, func(ctx context.Context, payload []byte) (any, error) {
		called = true
		return nil, nil
	})

	require.NoError(t, srv.process(context.Background(), testTopic, request("", "replies:abc", "corr-3")))

	assert.False(t, called)
	assert.Equal(t, "validation_error", replyValues(t, w)[FieldCode])
}

func TestRequestServer_UnknownTopic(t *testing.T) {
	w := newFakeWriter()
	srv := newTestServer(w, nil)

	require.NoError(t, srv.process(context.Background(), "refund.payment", request(`{}`, "replies:abc", "corr-4")))

	values := replyValues(t, w)
	assert.Equal(t, "unknown_handler", values[FieldCode])
	assert.Contains(t, values[FieldError], "no handler registered")
}

func TestRequestServer_NoReplyTo(t *testing.T) {
	w := newFakeWriter()
	srv := newTestServer(w, nil)
	calls := 0
	srv.Handle(testTopic, func(ctx context.Context, payload []byte) (any, error) {
		calls++
		return "ok", nil
	})

	require.NoError(t, srv.process(context.Background(), testTopic, request(`{}`, "", "corr-5")))

	assert.Equal(t, 1, calls)
	assert.Empty(t, w.adds)
}

func TestRequestServer_ReplyWriteFailure(t *testing.T) {
	w := newFakeWriter()
	w.addErr = errors.New("connection reset")
	srv := newTestServer(w, nil)
	srv.Handle(testTopic, func(ctx context.Context, payload []byte) (any, error) { return "ok", nil })

	err := srv.process(context.Background(), testTopic, request(`{}`, "replies:abc", "corr-6"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replies:abc")
}

func TestRequestServer_RunWithoutHandlers(t *testing.T) {
	srv := newTestServer(newFakeWriter(), nil)

	err := srv.Run(context.Background())
	assert.ErrorIs(t, err, domainErrors.ErrUnknownHandler)
}
