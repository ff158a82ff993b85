package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/cassiomorais/payments-gateway/internal/bootstrap"
	"github.com/cassiomorais/payments-gateway/internal/controller"
	infraRedis "github.com/cassiomorais/payments-gateway/internal/infrastructure/redis"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, bootstrap.Options{
		ServiceName:      "payments-gateway-worker",
		MetricsNamespace: "payments_gateway_worker",
		RequireRedis:     true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	workerCfg := app.Config.Worker
	messages := controller.NewMessageController(app.CheckoutService(), app.Logger.With().Str("component", "bus").Logger())

	server := infraRedis.NewRequestServer(app.Redis, infraRedis.ServerOptions{
		Group:         workerCfg.ConsumerGroup,
		Consumer:      app.Config.InstanceID,
		BatchSize:     workerCfg.BatchSize,
		BlockDuration: workerCfg.BlockDuration,
		ReplyTTL:      workerCfg.ReplyTTL,
		ClaimIdle:     workerCfg.ClaimIdle,
		ErrorCode:     controller.ErrorCode,
		Metrics:       app.Metrics,
		Logger:        app.Logger,
	})
	server.Handle(controller.TopicCreatePaymentSession, messages.CreatePaymentSession)

	g, gCtx := errgroup.WithContext(ctx)

	// 1. Bus request server (Redis Streams).
	g.Go(func() error {
		return server.Run(gCtx)
	})

	// 2. Metrics endpoint.
	if app.Metrics != nil {
		metricsSrv := &http.Server{
			Addr:              fmt.Sprintf(":%d", app.Config.Server.Port+1),
			Handler:           promhttp.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsSrv.Shutdown(shutdownCtx)
		})
	}

	app.Logger.Info().Str("topic", controller.TopicCreatePaymentSession).Msg("Worker started")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		app.Logger.Error().Err(err).Msg("Worker error")
	}
	app.Logger.Info().Msg("Worker exited")
}
