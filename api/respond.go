package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aswathylr-builds/storefront-checkout/models"
	"go.temporal.io/api/serviceerror"
	"go.uber.org/zap"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// handleError maps backend and Temporal errors onto HTTP statuses
func (h *Handler) handleError(w http.ResponseWriter, op string, err error) {
	var (
		validation  *models.ValidationError
		config      *models.ConfigurationError
		unavailable *models.GatewayUnavailableError
		notFound    *serviceerror.NotFound
		queryFailed *serviceerror.QueryFailed
		started     *serviceerror.WorkflowExecutionAlreadyStarted
	)

	switch {
	case errors.Is(err, models.ErrNotFound), errors.As(err, &notFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.As(err, &validation):
		respondJSON(w, http.StatusConflict, ErrorResponse{Error: validation.Error(), Code: "invalid_state", Fields: validation.Fields})
	case errors.As(err, &queryFailed):
		respondError(w, http.StatusConflict, "not_available", queryFailed.Message)
	case errors.As(err, &started):
		respondError(w, http.StatusConflict, "already_started", err.Error())
	case errors.As(err, &config):
		h.logger.Error("Configuration error", zap.String("op", op), zap.Error(err))
		respondError(w, http.StatusServiceUnavailable, "not_configured", err.Error())
	case errors.As(err, &unavailable):
		respondError(w, http.StatusServiceUnavailable, "gateway_unavailable", err.Error())
	default:
		h.logger.Error("Request failed", zap.String("op", op), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
