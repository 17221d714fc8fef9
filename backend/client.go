// Package backend is the REST client for the storefront backend: cart,
// orders and the payment endpoints that front the gateway.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aswathylr-builds/storefront-checkout/models"
	"github.com/sony/gobreaker/v2"
)

// Options configures a Client
type Options struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	// BreakerFailures is the number of consecutive unavailable responses from
	// gateway-bound endpoints that opens the circuit.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// Client calls the backend REST API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
}

// NewClient creates a new backend client
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = 30 * time.Second
	}

	failures := opts.BreakerFailures
	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "payment-gateway",
		Timeout: opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			var unavailable *models.GatewayUnavailableError
			return !errors.As(err, &unavailable)
		},
	})

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.Token,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		breaker: breaker,
	}
}

// APIError is a non-2xx backend response
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"error"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend returned status %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Message)
}

type request struct {
	method  string
	path    string
	body    any
	headers map[string]string
	// gateway marks endpoints that reach the payment gateway
	gateway bool
}

// do sends the request and decodes a 2xx body into out
func (c *Client) do(ctx context.Context, req request, out any) error {
	send := func() ([]byte, error) {
		return c.send(ctx, req)
	}

	var (
		body []byte
		err  error
	)
	if req.gateway {
		body, err = c.breaker.Execute(send)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = &models.GatewayUnavailableError{Cause: err}
		}
	} else {
		body, err = send()
	}
	if err != nil {
		return err
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s %s response: %w", req.method, req.path, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, req request) ([]byte, error) {
	var reader io.Reader
	if req.body != nil {
		jsonData, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if req.gateway {
			return nil, &models.GatewayUnavailableError{Cause: err}
		}
		return nil, fmt.Errorf("failed to call backend %s %s: %w", req.method, req.path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}
	return nil, classify(resp.StatusCode, body, req.gateway)
}

// classify maps a non-2xx response to the error taxonomy
func classify(status int, body []byte, gateway bool) error {
	apiErr := &APIError{StatusCode: status}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}

	switch {
	case apiErr.Code == "gateway_not_configured" || status == http.StatusNotImplemented:
		return &models.ConfigurationError{Message: apiErr.Message}
	case apiErr.Code == "pricing_mismatch":
		return &models.PricingError{Message: apiErr.Message}
	case gateway && (status == http.StatusBadGateway || status == http.StatusServiceUnavailable || status == http.StatusGatewayTimeout):
		return &models.GatewayUnavailableError{Cause: apiErr}
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %s", models.ErrNotFound, apiErr.Message)
	case status == http.StatusBadRequest || status == http.StatusConflict || status == http.StatusUnprocessableEntity:
		return &models.ValidationError{Message: apiErr.Message}
	default:
		return apiErr
	}
}

// Ping checks that the backend answers
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, request{method: http.MethodGet, path: "/health"}, nil)
}
