package main

import (
	"context"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aswathylr-builds/storefront-checkout/activities"
	"github.com/aswathylr-builds/storefront-checkout/backend"
	"github.com/aswathylr-builds/storefront-checkout/config"
	"github.com/aswathylr-builds/storefront-checkout/health"
	"github.com/aswathylr-builds/storefront-checkout/logging"
	"github.com/aswathylr-builds/storefront-checkout/payment"
	"github.com/aswathylr-builds/storefront-checkout/workflows"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
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
	if payloadCodec != nil {
		logger.Info("Encryption enabled for worker", zap.String("key_id", cfg.Encryption.KeyID))
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

	sessionConfig := payment.SessionConfig{KeyID: cfg.Gateway.KeyID, StoreName: cfg.Gateway.StoreName}
	if err := sessionConfig.Validate(); err != nil {
		// Checkouts will fail fast with a configuration error until this is fixed
		logger.Warn("Payment gateway is not configured", zap.Error(err))
	}

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	w.RegisterWorkflowWithOptions(workflows.CheckoutWorkflow, workflow.RegisterOptions{Name: workflows.CheckoutWorkflowName})
	w.RegisterWorkflowWithOptions(workflows.RefundWorkflow, workflow.RegisterOptions{Name: workflows.RefundWorkflowName})

	// Struct registration names each activity after its method
	w.RegisterActivity(activities.NewCheckoutActivities(backendClient, sessionConfig, cfg.Gateway.Currency))
	w.RegisterActivity(activities.NewRefundActivities(backendClient))

	logger.Info("Worker starting",
		zap.String("task_queue", cfg.Temporal.TaskQueue),
		zap.String("temporal_host", cfg.Temporal.Host),
		zap.String("backend_url", cfg.Backend.URL),
		zap.String("currency", cfg.Gateway.Currency),
	)

	healthServer := health.NewServer("checkout-worker", cfg.HealthPort, logger)
	healthServer.RegisterChecker(health.NewTemporalChecker(c))
	healthServer.RegisterChecker(health.NewBackendChecker(backendClient))
	if err := healthServer.Start(); err != nil {
		logger.Fatal("Failed to start health check server", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Worker started successfully")
		if err := w.Run(worker.InterruptCh()); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-sigCh:
		logger.Info("Received shutdown signal, gracefully stopping")
	case err := <-errCh:
		logger.Error("Worker error", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	logger.Info("Stopping worker")
	w.Stop()

	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Health server shutdown error", zap.Error(err))
	}

	logger.Info("Worker shutdown complete")
}
