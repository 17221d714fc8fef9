package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/aswathylr-builds/storefront-checkout/models"
	"github.com/aswathylr-builds/storefront-checkout/workflows"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"
)

// StartCheckoutRequestDTO is the body of POST /checkout
type StartCheckoutRequestDTO struct {
	Customer        models.Customer   `json:"customer"`
	Lines           []models.CartLine `json:"lines"`
	ShippingAddress models.Address    `json:"shippingAddress"`
	ShippingCost    decimal.Decimal   `json:"shippingCost"`
	CouponID        string            `json:"couponId,omitempty"`
	Currency        string            `json:"currency,omitempty"`
	ResumeOrderID   string            `json:"resumeOrderId,omitempty"`
}

// StartResponseDTO identifies a started workflow
type StartResponseDTO struct {
	ID         string `json:"id"`
	WorkflowID string `json:"workflowId"`
	RunID      string `json:"runId"`
}

// DismissRequestDTO is the optional body of POST /checkout/{id}/dismiss
type DismissRequestDTO struct {
	Reason string `json:"reason"`
}

// StartCheckout begins a new checkout attempt. Every call is a new attempt
// with its own id, even for the same cart.
func (h *Handler) StartCheckout(w http.ResponseWriter, r *http.Request) {
	var req StartCheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if len(req.Lines) == 0 && req.ResumeOrderID == "" {
		respondError(w, http.StatusBadRequest, "empty_cart", "cart has no lines")
		return
	}

	attemptID := h.newID()
	input := models.CheckoutRequest{
		AttemptID:       attemptID,
		Customer:        req.Customer,
		Lines:           req.Lines,
		ShippingAddress: req.ShippingAddress,
		ShippingCost:    req.ShippingCost,
		CouponID:        req.CouponID,
		Currency:        req.Currency,
		ResumeOrderID:   req.ResumeOrderID,
	}
	options := client.StartWorkflowOptions{
		ID:        checkoutWorkflowID(attemptID),
		TaskQueue: h.opts.TaskQueue,
	}

	run, err := h.temporal.ExecuteWorkflow(r.Context(), options, workflows.CheckoutWorkflowName, input)
	if err != nil {
		h.handleError(w, "start checkout", err)
		return
	}

	h.logger.Info("Checkout started",
		zap.String("attempt_id", attemptID),
		zap.String("workflow_id", run.GetID()),
		zap.String("resume_order_id", req.ResumeOrderID),
	)
	respondJSON(w, http.StatusAccepted, StartResponseDTO{ID: attemptID, WorkflowID: run.GetID(), RunID: run.GetRunID()})
}

// GetCheckout returns the current checkout state
func (h *Handler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	var status models.CheckoutStatus
	if err := h.query(r.Context(), checkoutWorkflowID(chi.URLParam(r, "attemptID")), models.QueryStatus, &status); err != nil {
		h.handleError(w, "get checkout", err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// GetPaymentSession returns the widget launch options while the widget is open
func (h *Handler) GetPaymentSession(w http.ResponseWriter, r *http.Request) {
	var session models.PaymentSession
	if err := h.query(r.Context(), checkoutWorkflowID(chi.URLParam(r, "attemptID")), models.QueryPaymentSession, &session); err != nil {
		h.handleError(w, "get payment session", err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// CompletePayment relays the widget's completion callback. The body is
// forwarded untouched; the workflow normalizes it.
func (h *Handler) CompletePayment(w http.ResponseWriter, r *http.Request) {
	payload, err := readCallback(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	attemptID := chi.URLParam(r, "attemptID")
	err = h.temporal.SignalWorkflow(r.Context(), checkoutWorkflowID(attemptID), "", models.SignalPaymentCompleted, payload)
	if err != nil {
		h.handleError(w, "complete payment", err)
		return
	}

	h.logger.Info("Payment callback relayed", zap.String("attempt_id", attemptID))
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "verifying"})
}

// DismissPayment relays the widget's dismissal callback
func (h *Handler) DismissPayment(w http.ResponseWriter, r *http.Request) {
	var req DismissRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	attemptID := chi.URLParam(r, "attemptID")
	signal := models.DismissSignal{Reason: req.Reason}
	if err := h.temporal.SignalWorkflow(r.Context(), checkoutWorkflowID(attemptID), "", models.SignalPaymentDismissed, signal); err != nil {
		h.handleError(w, "dismiss payment", err)
		return
	}

	h.logger.Info("Payment dismissal relayed", zap.String("attempt_id", attemptID), zap.String("reason", req.Reason))
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

func (h *Handler) query(ctx context.Context, workflowID, queryType string, out interface{}) error {
	value, err := h.temporal.QueryWorkflow(ctx, workflowID, "", queryType)
	if err != nil {
		return err
	}
	return value.Get(out)
}

// readCallback accepts the gateway's handler payload as JSON or as a form
// post, which is what redirect-mode checkouts send
func readCallback(r *http.Request) (models.CallbackPayload, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" || mediaType == "multipart/form-data" {
		if err := r.ParseForm(); err != nil {
			return nil, errors.New("invalid form body")
		}
		payload := make(models.CallbackPayload, len(r.PostForm))
		for key, values := range r.PostForm {
			if len(values) > 0 {
				payload[key] = values[0]
			}
		}
		return payload, nil
	}

	payload := models.CallbackPayload{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return nil, errors.New("invalid JSON body")
	}
	return payload, nil
}
