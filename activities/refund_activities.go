package activities

import (
	"context"
	"errors"
	"fmt"

	"github.com/aswathylr-builds/storefront-checkout/models"
	"github.com/shopspring/decimal"
)

// RefundInput is the input of InitiateRefund
type RefundInput struct {
	OrderID string          `json:"orderId"`
	Amount  decimal.Decimal `json:"amount"`
	Reason  string          `json:"reason,omitempty"`
}

// RefundActivities contains the admin-side refund activities
type RefundActivities struct {
	Backend Backend
}

// NewRefundActivities creates a new instance of RefundActivities
func NewRefundActivities(backend Backend) *RefundActivities {
	return &RefundActivities{Backend: backend}
}

// LoadRefundableOrder fetches the order a refund is requested against
func (a *RefundActivities) LoadRefundableOrder(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := a.Backend.GetOrder(ctx, orderID)
	if err != nil {
		return nil, toApplicationError(err)
	}
	return order, nil
}

// InitiateRefund asks the gateway for a refund. The returned status is read
// as-is: an accepted request is pending until the gateway says processed.
func (a *RefundActivities) InitiateRefund(ctx context.Context, input RefundInput) (*models.GatewayRefundResponse, error) {
	if l := logger(ctx); l != nil {
		l.Info("Initiating refund", "order_id", input.OrderID, "amount", input.Amount.String(), "reason", input.Reason)
	}

	amount := input.Amount
	resp, err := a.Backend.RefundPayment(ctx, input.OrderID, models.GatewayRefundRequest{Amount: &amount, Reason: input.Reason})
	if err != nil {
		var validation *models.ValidationError
		if errors.As(err, &validation) {
			err = &models.RefundFailure{OrderID: input.OrderID, Message: validation.Error()}
		}
		return nil, toApplicationError(err)
	}
	if err := checkRefundResponse(input.OrderID, resp); err != nil {
		return nil, err
	}
	if resp.RefundID == "" && resp.Status != models.RefundFailed {
		return nil, toApplicationError(&models.RefundFailure{OrderID: input.OrderID, Message: "gateway returned no refund id"})
	}

	if l := logger(ctx); l != nil {
		l.Info("Refund accepted", "order_id", input.OrderID, "refund_id", resp.RefundID, "status", string(resp.Status))
	}
	return resp, nil
}

// GetRefundStatus reads the current gateway status of a refund
func (a *RefundActivities) GetRefundStatus(ctx context.Context, orderID, refundID string) (*models.GatewayRefundResponse, error) {
	resp, err := a.Backend.GetRefund(ctx, orderID, refundID)
	if err != nil {
		return nil, toApplicationError(err)
	}
	if err := checkRefundResponse(orderID, resp); err != nil {
		return nil, err
	}
	if resp.RefundID == "" {
		resp.RefundID = refundID
	}
	return resp, nil
}

func checkRefundResponse(orderID string, resp *models.GatewayRefundResponse) error {
	if !resp.Status.Valid() {
		return toApplicationError(&models.RefundFailure{
			OrderID: orderID,
			Message: fmt.Sprintf("gateway returned unknown refund status %q", resp.Status),
		})
	}
	return nil
}
