package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"
)

// Status represents the health status of a component
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// ComponentHealth represents the health of a single component
type ComponentHealth struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// HealthResponse represents the overall health check response
type HealthResponse struct {
	Status     Status                     `json:"status"`
	Service    string                     `json:"service"`
	Timestamp  time.Time                  `json:"timestamp"`
	Components map[string]ComponentHealth `json:"components"`
}

// Checker interface for health checks
type Checker interface {
	Check(ctx context.Context) ComponentHealth
	Name() string
}

// Server manages health check endpoints
type Server struct {
	service  string
	port     int
	logger   *zap.Logger
	checkers []Checker
	internal map[string]http.Handler
	mu       sync.RWMutex
	server   *http.Server
}

// NewServer creates a new health check server
func NewServer(service string, port int, logger *zap.Logger) *Server {
	return &Server{
		service:  service,
		port:     port,
		logger:   logger,
		checkers: make([]Checker, 0),
		internal: make(map[string]http.Handler),
	}
}

// RegisterChecker adds a new health checker
func (s *Server) RegisterChecker(checker Checker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkers = append(s.checkers, checker)
}

// Routes returns the health endpoints so the API server can mount them
// under its own router instead of running a second listener
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", s.healthHandler)
	r.Get("/live", s.livenessHandler)
	r.Get("/ready", s.readinessHandler)
	return r
}

// Mount adds an internal endpoint, such as the payload codec, to the
// standalone listener. It is never part of Routes.
func (s *Server) Mount(pattern string, handler http.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.internal[pattern] = handler
}

// Handler returns the standalone listener's router: /health plus any
// internal endpoints
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Mount("/health", s.Routes())

	s.mu.RLock()
	defer s.mu.RUnlock()
	for pattern, handler := range s.internal {
		r.Mount(pattern, handler)
	}
	return r
}

// Start starts the standalone health check HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Health check server error", zap.Error(err))
		}
	}()

	s.logger.Info("Health check server started", zap.Int("port", s.port))
	return nil
}

// Shutdown gracefully shuts down the health check server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) snapshot() []Checker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Checker(nil), s.checkers...)
}

// healthHandler returns detailed health status
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	components := make(map[string]ComponentHealth)
	overallStatus := StatusHealthy

	for _, checker := range s.snapshot() {
		health := checker.Check(ctx)
		components[checker.Name()] = health

		if health.Status == StatusUnhealthy {
			overallStatus = StatusUnhealthy
		} else if health.Status == StatusDegraded && overallStatus == StatusHealthy {
			overallStatus = StatusDegraded
		}
	}

	response := HealthResponse{
		Status:     overallStatus,
		Service:    s.service,
		Timestamp:  time.Now(),
		Components: components,
	}

	// degraded still answers 200
	statusCode := http.StatusOK
	if overallStatus == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, response)
}

// livenessHandler returns basic liveness status (for Kubernetes)
func (s *Server) livenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// readinessHandler checks if the service is ready to handle requests
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ready := true
	for _, checker := range s.snapshot() {
		if checker.Check(ctx).Status == StatusUnhealthy {
			ready = false
			break
		}
	}

	if !ready {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// TemporalChecker checks Temporal server connectivity
type TemporalChecker struct {
	client client.Client
}

// NewTemporalChecker creates a new Temporal health checker
func NewTemporalChecker(c client.Client) *TemporalChecker {
	return &TemporalChecker{client: c}
}

// Name returns the checker name
func (t *TemporalChecker) Name() string {
	return "temporal"
}

// Check performs the health check
func (t *TemporalChecker) Check(ctx context.Context) ComponentHealth {
	start := time.Now()
	_, err := t.client.CheckHealth(ctx, &client.CheckHealthRequest{})
	latency := time.Since(start)

	if err != nil {
		return ComponentHealth{
			Status:  StatusUnhealthy,
			Message: fmt.Sprintf("Temporal connection failed: %v", err),
			Latency: latency.String(),
		}
	}

	return ComponentHealth{
		Status:  StatusHealthy,
		Message: "Connected to Temporal server",
		Latency: latency.String(),
	}
}

// Pinger is anything that can prove it reaches its upstream
type Pinger interface {
	Ping(ctx context.Context) error
}

// BackendChecker checks the storefront backend. A failing backend only
// degrades the worker: workflows wait in activity retries until it returns.
type BackendChecker struct {
	pinger Pinger
}

// NewBackendChecker creates a new backend health checker
func NewBackendChecker(p Pinger) *BackendChecker {
	return &BackendChecker{pinger: p}
}

// Name returns the checker name
func (b *BackendChecker) Name() string {
	return "backend"
}

// Check performs the health check
func (b *BackendChecker) Check(ctx context.Context) ComponentHealth {
	start := time.Now()
	err := b.pinger.Ping(ctx)
	latency := time.Since(start)

	if err != nil {
		return ComponentHealth{
			Status:  StatusDegraded,
			Message: fmt.Sprintf("Backend unreachable: %v", err),
			Latency: latency.String(),
		}
	}
	return ComponentHealth{
		Status:  StatusHealthy,
		Message: "Backend reachable",
		Latency: latency.String(),
	}
}
