package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cassiomorais/payments-gateway/internal/bootstrap"
	"github.com/cassiomorais/payments-gateway/internal/controller"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, bootstrap.Options{
		ServiceName:      "payments-gateway-api",
		MetricsNamespace: "payments_gateway",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	cfg := app.Config

	paymentH := controller.NewPaymentController(
		app.CheckoutService(),
		app.WebhookService(),
		cfg.Server.MaxWebhookBodyBytes,
		app.Logger.With().Str("component", "http").Logger(),
	)
	healthH := controller.NewHealthController(controller.HealthCheck{
		Name:  "bus",
		Check: app.Bus.Ping,
	})

	router := controller.NewRouter(controller.RouterDeps{
		Payments:   paymentH,
		Health:     healthH,
		Metrics:    app.Metrics,
		CORSConfig: cfg.Server.CORS,
		RateLimit:  cfg.Server.RateLimitPerMinute,
		JWTSecret:  cfg.Auth.JWTSecret,
		Logger:     app.Logger,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		app.Logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		app.Logger.Error().Err(err).Msg("HTTP server failed")
	}

	app.Logger.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	app.Logger.Info().Msg("Server exited")
}
