// Package api is the HTTP surface for the storefront and admin console. It
// starts checkout and refund workflows, relays widget callbacks as signals
// and reads workflow state through queries.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/aswathylr-builds/storefront-checkout/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
	"go.uber.org/zap"
)

// WorkflowClient is the part of the Temporal client the handlers use
type WorkflowClient interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
	SignalWorkflow(ctx context.Context, workflowID string, runID string, signalName string, arg interface{}) error
	QueryWorkflow(ctx context.Context, workflowID string, runID string, queryType string, args ...interface{}) (converter.EncodedValue, error)
}

// Orders is the backend order surface exposed directly
type Orders interface {
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	CancelOrder(ctx context.Context, orderID string) error
}

// Options configures the handlers
type Options struct {
	TaskQueue          string
	RefundPollInterval time.Duration
	RefundMaxPolls     int
	RequestTimeout     time.Duration
}

// Handler serves the checkout, order and refund endpoints
type Handler struct {
	temporal WorkflowClient
	orders   Orders
	opts     Options
	logger   *zap.Logger
	newID    func() string
}

// NewHandler creates a new Handler
func NewHandler(temporal WorkflowClient, orders Orders, opts Options, logger *zap.Logger) *Handler {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	return &Handler{
		temporal: temporal,
		orders:   orders,
		opts:     opts,
		logger:   logger,
		newID:    uuid.NewString,
	}
}

// NewRouter wires the handlers and middleware. extra mounts additional
// subtrees such as /health or /codec.
func NewRouter(h *Handler, extra map[string]http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(h.opts.RequestTimeout))

	for pattern, handler := range extra {
		r.Mount(pattern, handler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", h.StartCheckout)
			r.Route("/{attemptID}", func(r chi.Router) {
				r.Get("/", h.GetCheckout)
				r.Get("/session", h.GetPaymentSession)
				r.Post("/payment", h.CompletePayment)
				r.Post("/dismiss", h.DismissPayment)
			})
		})

		r.Route("/orders/{orderID}", func(r chi.Router) {
			r.Get("/", h.GetOrder)
			r.Post("/cancel", h.CancelOrder)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/orders/{orderID}/refunds", h.StartRefund)
			r.Get("/orders/{orderID}/refund", h.GetRefund)
		})
	})

	return r
}

// requestLogger logs one line per request through zap
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

func checkoutWorkflowID(attemptID string) string {
	return "checkout-" + attemptID
}
