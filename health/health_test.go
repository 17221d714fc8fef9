package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type staticChecker struct {
	name   string
	status Status
}

func (s staticChecker) Name() string { return s.name }

func (s staticChecker) Check(context.Context) ComponentHealth {
	return ComponentHealth{Status: s.status}
}

func serve(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Mount("/health", s.Routes())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth_DegradedBackendStillOK(t *testing.T) {
	s := NewServer("checkout-worker", 0, zap.NewNop())
	s.RegisterChecker(staticChecker{name: "temporal", status: StatusHealthy})
	s.RegisterChecker(NewBackendChecker(pingerFunc(func(context.Context) error {
		return errors.New("connection refused")
	})))

	rec := serve(t, s, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Equal(t, "checkout-worker", resp.Service)
	assert.Equal(t, StatusDegraded, resp.Components["backend"].Status)
	assert.Contains(t, resp.Components["backend"].Message, "connection refused")

	assert.Equal(t, http.StatusOK, serve(t, s, "/health/ready").Code)
}

func TestHealth_UnhealthyComponent(t *testing.T) {
	s := NewServer("checkout-worker", 0, zap.NewNop())
	s.RegisterChecker(staticChecker{name: "temporal", status: StatusUnhealthy})

	assert.Equal(t, http.StatusServiceUnavailable, serve(t, s, "/health").Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(t, s, "/health/ready").Code)
	assert.Equal(t, http.StatusOK, serve(t, s, "/health/live").Code)
}

func TestBackendChecker_Healthy(t *testing.T) {
	c := NewBackendChecker(pingerFunc(func(context.Context) error { return nil }))
	assert.Equal(t, "backend", c.Name())
	assert.Equal(t, StatusHealthy, c.Check(context.Background()).Status)
}

func TestServer_InternalMountsStayOffRoutes(t *testing.T) {
	s := NewServer("checkout-api", 0, zap.NewNop())
	s.Mount("/codec", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/codec/decode", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusNotFound, serve(t, s, "/health/codec/decode").Code)
}
