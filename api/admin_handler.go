package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/aswathylr-builds/storefront-checkout/models"
	"github.com/aswathylr-builds/storefront-checkout/workflows"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RefundRequestDTO is the body of POST /admin/orders/{orderId}/refunds.
// An omitted amount refunds whatever is still refundable.
type RefundRequestDTO struct {
	Amount *decimal.Decimal `json:"amount,omitempty"`
	Reason string           `json:"reason,omitempty"`
}

// OrderResponseDTO is an order plus its derived refund state
type OrderResponseDTO struct {
	models.Order
	RefundState      models.RefundState `json:"refundState"`
	RefundableAmount decimal.Decimal    `json:"refundableAmount"`
}

// StartRefund starts a refund workflow for a paid order. The amount is
// validated inside the workflow against the order it loads.
func (h *Handler) StartRefund(w http.ResponseWriter, r *http.Request) {
	var req RefundRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Amount != nil && !req.Amount.IsPositive() {
		respondError(w, http.StatusBadRequest, "invalid_amount", "refund amount must be greater than zero")
		return
	}

	orderID := chi.URLParam(r, "orderID")
	input := models.RefundRequest{
		OrderID:      orderID,
		Amount:       req.Amount,
		Reason:       req.Reason,
		PollInterval: h.opts.RefundPollInterval,
		MaxPolls:     h.opts.RefundMaxPolls,
	}
	options := workflows.RefundStartOptions(orderID, h.opts.TaskQueue)

	// a refund already running for this order comes back as a 409
	run, err := h.temporal.ExecuteWorkflow(r.Context(), options, workflows.RefundWorkflowName, input)
	if err != nil {
		h.handleError(w, "start refund", err)
		return
	}

	h.logger.Info("Refund started", zap.String("order_id", orderID), zap.String("workflow_id", run.GetID()))
	respondJSON(w, http.StatusAccepted, StartResponseDTO{ID: orderID, WorkflowID: run.GetID(), RunID: run.GetRunID()})
}

// GetRefund returns the progress of the latest refund workflow of an order
func (h *Handler) GetRefund(w http.ResponseWriter, r *http.Request) {
	var progress models.RefundProgress
	if err := h.query(r.Context(), workflows.RefundWorkflowID(chi.URLParam(r, "orderID")), models.QueryStatus, &progress); err != nil {
		h.handleError(w, "get refund", err)
		return
	}
	respondJSON(w, http.StatusOK, progress)
}

// GetOrder returns the backend's view of an order
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrder(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		h.handleError(w, "get order", err)
		return
	}
	respondJSON(w, http.StatusOK, OrderResponseDTO{
		Order:            *order,
		RefundState:      order.RefundState(),
		RefundableAmount: order.RefundableAmount(),
	})
}

// CancelOrder cancels a pending order the customer abandoned
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	if err := h.orders.CancelOrder(r.Context(), orderID); err != nil {
		h.handleError(w, "cancel order", err)
		return
	}
	h.logger.Info("Order cancelled", zap.String("order_id", orderID))
	w.WriteHeader(http.StatusNoContent)
}
