package workflows

import (
	"fmt"
	"time"

	"github.com/aswathylr-builds/storefront-checkout/activities"
	"github.com/aswathylr-builds/storefront-checkout/models"
	"github.com/aswathylr-builds/storefront-checkout/money"
	"github.com/shopspring/decimal"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	defaultRefundPollInterval = 30 * time.Second
	defaultRefundMaxPolls     = 20
)

// RefundWorkflow refunds all or part of a paid order and follows the refund
// until the gateway reports it processed or failed, or polling gives up with
// the refund still pending.
func RefundWorkflow(ctx workflow.Context, req models.RefundRequest) (*models.RefundResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Refund workflow started", "order_id", req.OrderID)

	progress := &models.RefundProgress{
		OrderID:     req.OrderID,
		LastUpdated: workflow.Now(ctx),
	}
	err := workflow.SetQueryHandler(ctx, models.QueryStatus, func() (*models.RefundProgress, error) {
		return progress, nil
	})
	if err != nil {
		logger.Error("Failed to register query handler", "error", err)
		return nil, err
	}

	ctx = workflow.WithActivityOptions(ctx, defaultActivityOptions())

	var order models.Order
	if err := workflow.ExecuteActivity(ctx, activityLoadRefundableOrder, req.OrderID).Get(ctx, &order); err != nil {
		logger.Error("Failed to load order for refund", "order_id", req.OrderID, "error", err)
		return nil, err
	}

	// Nothing reaches the gateway unless the amount is valid
	amount, err := refundAmount(order, req)
	if err != nil {
		logger.Warn("Refund rejected", "order_id", req.OrderID, "error", err)
		return nil, err
	}

	// A refund must reach the gateway at most once per workflow
	initCtx := workflow.WithActivityOptions(ctx, singleAttemptOptions())
	input := activities.RefundInput{OrderID: order.ID, Amount: amount, Reason: req.Reason}
	var resp models.GatewayRefundResponse
	if err := workflow.ExecuteActivity(initCtx, activityInitiateRefund, input).Get(ctx, &resp); err != nil {
		logger.Error("Refund initiation failed", "order_id", order.ID, "error", err)
		return nil, err
	}

	record := models.RefundRecord{
		OrderID:    order.ID,
		Amount:     amount,
		Reason:     req.Reason,
		RefundID:   resp.RefundID,
		Status:     resp.Status,
		RefundedAt: resp.RefundedAt,
		Error:      resp.Error,
	}
	progress.Record = &record
	progress.LastUpdated = workflow.Now(ctx)

	interval, maxPolls := req.PollInterval, req.MaxPolls
	if interval <= 0 {
		interval = defaultRefundPollInterval
	}
	if maxPolls <= 0 {
		maxPolls = defaultRefundMaxPolls
	}

	for !record.Status.IsTerminal() && progress.Polls < maxPolls {
		if err := workflow.Sleep(ctx, interval); err != nil {
			return nil, err
		}
		progress.Polls++

		var status models.GatewayRefundResponse
		if err := workflow.ExecuteActivity(ctx, activityGetRefundStatus, order.ID, record.RefundID).Get(ctx, &status); err != nil {
			logger.Warn("Refund status check failed", "order_id", order.ID, "refund_id", record.RefundID, "error", err)
			continue
		}
		record.Status = status.Status
		record.Error = status.Error
		if status.RefundedAt != nil {
			record.RefundedAt = status.RefundedAt
		}
		progress.LastUpdated = workflow.Now(ctx)
	}

	if record.Status == models.RefundProcessed && record.RefundedAt == nil {
		now := workflow.Now(ctx)
		record.RefundedAt = &now
	}

	order.ApplyRefund(record)
	logger.Info("Refund workflow completed", "order_id", order.ID, "refund_id", record.RefundID,
		"status", string(record.Status), "refund_state", string(order.RefundState()))

	return &models.RefundResult{
		Record:        record,
		Order:         order,
		RefundState:   order.RefundState(),
		PaymentStatus: order.PaymentStatus,
	}, nil
}

// refundAmount resolves the requested amount and checks it against the order.
// An omitted amount refunds everything still refundable.
func refundAmount(order models.Order, req models.RefundRequest) (decimal.Decimal, error) {
	reject := func(field, msg string) error {
		verr := &models.ValidationError{Message: msg, Fields: map[string]string{field: msg}}
		return temporal.NewNonRetryableApplicationError(verr.Error(), models.ErrTypeValidation, verr)
	}

	if order.PaymentStatus != models.PaymentPaid {
		return decimal.Zero, reject("orderId", fmt.Sprintf("order %s is not paid (payment status %s)", order.ID, order.PaymentStatus))
	}

	refundable := order.RefundableAmount()
	amount := refundable
	if req.Amount != nil {
		amount = *req.Amount
	}

	switch {
	case !amount.IsPositive():
		return decimal.Zero, reject("amount", "refund amount must be greater than zero")
	case amount.GreaterThan(order.Total):
		return decimal.Zero, reject("amount", fmt.Sprintf("refund amount %s exceeds order total %s", amount, order.Total))
	case amount.GreaterThan(refundable):
		return decimal.Zero, reject("amount", fmt.Sprintf("refund amount %s exceeds refundable balance %s", amount, refundable))
	}

	if order.Currency != "" {
		if _, err := money.ToMinorUnits(amount, order.Currency); err != nil {
			return decimal.Zero, reject("amount", err.Error())
		}
	}
	return amount, nil
}
