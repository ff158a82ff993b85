package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/cassiomorais/payments-gateway/internal/infrastructure/bus"
	"github.com/cassiomorais/payments-gateway/internal/infrastructure/config"
	"github.com/cassiomorais/payments-gateway/internal/infrastructure/observability"
	infraRedis "github.com/cassiomorais/payments-gateway/internal/infrastructure/redis"
	"github.com/cassiomorais/payments-gateway/internal/providers"
	"github.com/cassiomorais/payments-gateway/internal/service"
)

type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Redis    *redis.Client
	Bus      *bus.Bus
	Metrics  *observability.Metrics
	Provider providers.Provider
	// Tracer is nil when tracing is disabled or failed to start.
	Tracer *sdktrace.TracerProvider
}

type Options struct {
	ServiceName      string
	MetricsNamespace string
	// RequireRedis connects to Redis even when the bus driver does not use it.
	RequireRedis bool
}

func New(ctx context.Context, opts Options) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := observability.InitLogger(opts.ServiceName, cfg.Observability.LogLevel, os.Stdout)
	logger.Info().Str("env", os.Getenv("ENV")).Msg("Starting")

	var tp *sdktrace.TracerProvider
	if cfg.Observability.EnableTracing {
		tp, err = observability.InitTracer(opts.ServiceName, cfg.Observability.JaegerEndpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
			tp = nil
		} else {
			logger.Info().Msg("Tracing enabled")
		}
	}

	var metrics *observability.Metrics
	if cfg.Observability.EnableMetrics {
		metrics = observability.NewMetrics(opts.MetricsNamespace, prometheus.DefaultRegisterer)
		logger.Info().Msg("Metrics initialized")
	}

	app := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics,
		Tracer:  tp,
	}

	if opts.RequireRedis || cfg.Bus.Driver == config.BusDriverRedis {
		app.Redis, err = infraRedis.NewClient(ctx, &cfg.Redis, logger)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		logger.Info().Str("addr", cfg.Redis.RedisAddr()).Msg("Connected to Redis")
	}

	app.Bus, err = bus.New(ctx, cfg.Bus, app.Redis, metrics, logger)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init event bus: %w", err)
	}

	app.Provider = newProvider(cfg, metrics, logger)
	logger.Info().Str("provider", app.Provider.Name()).Msg("Payment provider ready")

	return app, nil
}

// CheckoutService builds the session builder over the configured provider.
func (a *App) CheckoutService() *service.CheckoutService {
	return service.NewCheckoutService(a.Provider, service.CheckoutURLs{
		SuccessURL: a.Config.Stripe.SuccessURL,
		CancelURL:  a.Config.Stripe.CancelURL,
	}, a.Metrics, a.Logger.With().Str("component", "checkout").Logger())
}

// WebhookService builds the verifier and relay publishing to the bus.
func (a *App) WebhookService() *service.WebhookService {
	return service.NewWebhookService(
		providers.NewStripeVerifier(a.Config.Stripe.WebhookTolerance),
		a.Config.Stripe.WebhookSecret,
		a.Bus,
		a.Metrics,
		a.Logger.With().Str("component", "webhook").Logger(),
	)
}

func (a *App) Close() {
	if a.Bus != nil {
		if err := a.Bus.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Bus close failed")
		}
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.Tracer != nil {
		if err := observability.Shutdown(context.Background(), a.Tracer); err != nil {
			a.Logger.Warn().Err(err).Msg("Tracer shutdown failed")
		}
	}
}

func newProvider(cfg *config.Config, metrics *observability.Metrics, logger zerolog.Logger) providers.Provider {
	var p providers.Provider
	switch cfg.Payment.Provider {
	case config.ProviderMock:
		p = providers.NewMockProvider("mock")
	default:
		p = providers.NewStripeProvider(providers.StripeConfig{
			SecretKey: cfg.Stripe.SecretKey,
			APIURL:    cfg.Stripe.APIURL,
			Logger:    logger,
		})
	}

	return providers.NewBreakerProvider(p, providers.BreakerSettings{
		ConsecutiveFailures: cfg.Payment.CircuitBreakerThreshold,
		Timeout:             cfg.Payment.CircuitBreakerTimeout,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("provider", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
			if metrics != nil {
				metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerGauge(to))
			}
		},
	})
}

func breakerGauge(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
