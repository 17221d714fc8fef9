package main

import (
	"context"
	"errors"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aswathylr-builds/storefront-checkout/api"
	"github.com/aswathylr-builds/storefront-checkout/backend"
	"github.com/aswathylr-builds/storefront-checkout/config"
	"github.com/aswathylr-builds/storefront-checkout/health"
	"github.com/aswathylr-builds/storefront-checkout/logging"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		stdlog.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	clientOptions, payloadCodec, err := cfg.TemporalClientOptions(logging.NewTemporalLogger(logger))
	if err != nil {
		logger.Fatal("Failed to configure Temporal client", zap.Error(err))
	}

	c, err := client.Dial(clientOptions)
	if err != nil {
		logger.Fatal("Unable to create Temporal client", zap.Error(err))
	}
	defer c.Close()

	backendClient := backend.NewClient(backend.Options{
		BaseURL:         cfg.Backend.URL,
		Token:           cfg.Backend.Token,
		Timeout:         cfg.Backend.Timeout,
		BreakerFailures: cfg.Backend.BreakerFailures,
		BreakerTimeout:  cfg.Backend.BreakerTimeout,
	})

	healthChecks := health.NewServer("checkout-api", cfg.HealthPort, logger)
	healthChecks.RegisterChecker(health.NewTemporalChecker(c))
	healthChecks.RegisterChecker(health.NewBackendChecker(backendClient))

	handler := api.NewHandler(c, backendClient, api.Options{
		TaskQueue:          cfg.Temporal.TaskQueue,
		RefundPollInterval: cfg.Refund.PollInterval,
		RefundMaxPolls:     cfg.Refund.MaxPolls,
	}, logger)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      routes(handler, healthChecks, payloadCodec),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if err := healthChecks.Start(); err != nil {
		logger.Fatal("Failed to start internal server", zap.Error(err))
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()
	logger.Info("Server started successfully",
		zap.String("address", srv.Addr),
		zap.String("task_queue", cfg.Temporal.TaskQueue),
		zap.Int("internal_port", cfg.HealthPort),
		zap.Bool("codec_endpoint", payloadCodec != nil),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := healthChecks.Shutdown(ctx); err != nil {
		logger.Error("Internal server shutdown error", zap.Error(err))
	}
	logger.Info("Server exited")
}
