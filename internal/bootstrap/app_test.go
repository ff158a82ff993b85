package bootstrap

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/cassiomorais/payments-gateway/internal/infrastructure/config"
	"github.com/cassiomorais/payments-gateway/internal/infrastructure/observability"
	"github.com/cassiomorais/payments-gateway/internal/providers"
)

func TestBreakerGauge(t *testing.T) {
	assert.Equal(t, 0.0, breakerGauge(gobreaker.StateClosed))
	assert.Equal(t, 1.0, breakerGauge(gobreaker.StateHalfOpen))
	assert.Equal(t, 2.0, breakerGauge(gobreaker.StateOpen))
}

func TestNewProvider_MockTripsBreakerAndGauge(t *testing.T) {
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	cfg := &config.Config{Payment: config.PaymentConfig{
		Provider:                config.ProviderMock,
		CircuitBreakerThreshold: 1,
	}}

	p := newProvider(cfg, metrics, zerolog.Nop())
	assert.Equal(t, "mock", p.Name())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.CreateCheckoutSession(ctx, providers.SessionParams{})
	require.Error(t, err)

	assert.Equal(t, 2.0, promtestutil.ToFloat64(metrics.CircuitBreakerState.WithLabelValues("mock")))
}

func TestNewProvider_StripeByDefault(t *testing.T) {
	cfg := &config.Config{
		Stripe:  config.StripeConfig{SecretKey: "sk_test_123"},
		Payment: config.PaymentConfig{Provider: config.ProviderStripe},
	}

	p := newProvider(cfg, nil, zerolog.Nop())
	assert.Equal(t, "stripe", p.Name())
}

type recordingExporter struct {
	mu       sync.Mutex
	names    []string
	shutdown bool
}

func (e *recordingExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range spans {
		e.names = append(e.names, s.Name())
	}
	return nil
}

func (e *recordingExporter) Shutdown(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shutdown = true
	return nil
}

func (e *recordingExporter) snapshot() ([]string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.names...), e.shutdown
}

func TestAppClose_FlushesTracer(t *testing.T) {
	exporter := &recordingExporter{}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(time.Hour)))

	_, span := tp.Tracer("test").Start(context.Background(), "CheckoutService.CreateSession")
	span.End()
	names, _ := exporter.snapshot()
	assert.Empty(t, names)

	app := &App{Logger: zerolog.Nop(), Tracer: tp}
	app.Close()

	names, shutdown := exporter.snapshot()
	assert.Equal(t, []string{"CheckoutService.CreateSession"}, names)
	assert.True(t, shutdown)
}

func TestAppClose_WithoutTracer(t *testing.T) {
	app := &App{Logger: zerolog.Nop()}
	assert.NotPanics(t, app.Close)
}
