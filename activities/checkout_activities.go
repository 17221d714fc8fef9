package activities

import (
	"context"
	"fmt"
	"strings"

	"github.com/aswathylr-builds/storefront-checkout/cartsync"
	"github.com/aswathylr-builds/storefront-checkout/models"
	"github.com/aswathylr-builds/storefront-checkout/money"
	"github.com/aswathylr-builds/storefront-checkout/payment"
	"github.com/shopspring/decimal"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/log"
	"go.temporal.io/sdk/temporal"
)

// Backend is the backend surface the activities call
type Backend interface {
	cartsync.RemoteCart
	CreateOrder(ctx context.Context, idempotencyKey string, req models.CreateOrderRequest) (*models.Order, error)
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	CreateGatewayOrder(ctx context.Context, idempotencyKey string, req models.GatewayOrderRequest) (*models.GatewayOrder, error)
	VerifyPayment(ctx context.Context, req models.VerifyRequest) (*models.VerifyResponse, error)
	ReportIncident(ctx context.Context, incident models.PaymentIncident) error
	RefundPayment(ctx context.Context, orderID string, req models.GatewayRefundRequest) (*models.GatewayRefundResponse, error)
	GetRefund(ctx context.Context, orderID, refundID string) (*models.GatewayRefundResponse, error)
}

// CreateOrderInput is the input of CreateOrder
type CreateOrderInput struct {
	AttemptID       string          `json:"attemptId"`
	ShippingAddress models.Address  `json:"shippingAddress"`
	ShippingCost    decimal.Decimal `json:"shippingCost"`
	CouponID        string          `json:"couponId,omitempty"`
}

// GatewayOrderInput is the input of CreateGatewayOrder
type GatewayOrderInput struct {
	OrderID     string          `json:"orderId"`
	OrderNumber string          `json:"orderNumber"`
	Total       decimal.Decimal `json:"total"`
	Currency    string          `json:"currency,omitempty"`
}

// SessionInput is the input of OpenPaymentSession
type SessionInput struct {
	Context      models.CheckoutContext `json:"context"`
	GatewayOrder models.GatewayOrder    `json:"gatewayOrder"`
	Customer     models.Customer        `json:"customer"`
}

// CheckoutActivities contains all checkout-related activities
type CheckoutActivities struct {
	Backend  Backend
	Session  payment.SessionConfig
	Currency string
}

// NewCheckoutActivities creates a new instance of CheckoutActivities
func NewCheckoutActivities(backend Backend, session payment.SessionConfig, currency string) *CheckoutActivities {
	if currency == "" {
		currency = "INR"
	}
	return &CheckoutActivities{
		Backend:  backend,
		Session:  session,
		Currency: strings.ToUpper(currency),
	}
}

func logger(ctx context.Context) log.Logger {
	if activity.IsActivity(ctx) {
		return activity.GetLogger(ctx)
	}
	return nil
}

// SyncCart pushes the local cart to the backend cart. It is fail-open:
// individual line failures are reported, never returned.
func (a *CheckoutActivities) SyncCart(ctx context.Context, lines []models.CartLine) (*models.CartSyncReport, error) {
	l := logger(ctx)
	if l != nil {
		l.Info("Syncing cart", "lines", len(lines))
	}

	report, err := cartsync.NewSynchronizer(a.Backend, l).Sync(ctx, lines)
	if err != nil {
		return report, err
	}

	if l != nil {
		l.Info("Cart sync completed", "added", report.Added, "updated", report.Updated,
			"unchanged", report.Unchanged, "failures", len(report.Failures), "skipped", report.Skipped)
	}
	return report, nil
}

// CreateOrder creates the backend order. The attempt id is the idempotency key.
func (a *CheckoutActivities) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if missing := input.ShippingAddress.MissingFields(); len(missing) > 0 {
		return nil, toApplicationError(&models.ValidationError{Message: "shipping address is incomplete", Fields: missing})
	}
	if input.ShippingCost.IsNegative() {
		return nil, toApplicationError(&models.ValidationError{
			Message: "shipping cost cannot be negative",
			Fields:  map[string]string{"shippingCost": "must be >= 0"},
		})
	}

	if l := logger(ctx); l != nil {
		l.Info("Creating order", "attempt_id", input.AttemptID, "coupon_id", input.CouponID)
	}

	order, err := a.Backend.CreateOrder(ctx, input.AttemptID, models.CreateOrderRequest{
		ShippingAddress: input.ShippingAddress,
		ShippingCost:    input.ShippingCost,
		CouponID:        input.CouponID,
	})
	if err != nil {
		return nil, toApplicationError(err)
	}
	if !order.Total.IsPositive() {
		return nil, toApplicationError(&models.PricingError{Message: fmt.Sprintf("order %s has non-positive total %s", order.ID, order.Total)})
	}

	if l := logger(ctx); l != nil {
		l.Info("Order created", "order_id", order.ID, "order_number", order.OrderNumber, "total", order.Total.String())
	}
	return order, nil
}

// LoadOrder fetches the read-through copy of an order
func (a *CheckoutActivities) LoadOrder(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := a.Backend.GetOrder(ctx, orderID)
	if err != nil {
		return nil, toApplicationError(err)
	}
	return order, nil
}

// CreateGatewayOrder creates the gateway order for a backend order. The
// amount is converted to minor units exactly once, here, and the gateway's
// echo of it must match to the unit.
func (a *CheckoutActivities) CreateGatewayOrder(ctx context.Context, input GatewayOrderInput) (*models.GatewayOrder, error) {
	if err := a.Session.Validate(); err != nil {
		return nil, toApplicationError(err)
	}

	currency := strings.ToUpper(input.Currency)
	if currency == "" {
		currency = a.Currency
	}
	amount, err := money.ToMinorUnits(input.Total, currency)
	if err != nil {
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), models.ErrTypePricing, err)
	}
	if amount <= 0 {
		return nil, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("order %s total %s is not payable", input.OrderID, input.Total), models.ErrTypePricing, nil)
	}

	if l := logger(ctx); l != nil {
		l.Info("Creating gateway order", "order_id", input.OrderID, "amount_minor", amount, "currency", currency)
	}

	gw, err := a.Backend.CreateGatewayOrder(ctx, input.OrderID, models.GatewayOrderRequest{
		AmountMinorUnits: amount,
		Currency:         currency,
		Receipt:          input.OrderNumber,
		Notes: map[string]string{
			"orderId":     input.OrderID,
			"orderNumber": input.OrderNumber,
		},
	})
	if err != nil {
		return nil, toApplicationError(err)
	}

	if gw.AmountMinorUnits != amount {
		echoed, _ := money.FromMinorUnits(gw.AmountMinorUnits, currency)
		return nil, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("gateway order %s amount %s %s does not match order total %s %s",
				gw.GatewayOrderID, echoed, currency, input.Total, currency),
			models.ErrTypeAmountMismatch, nil)
	}
	if gw.Currency == "" {
		gw.Currency = currency
	}
	gw.LinkedOrderID = input.OrderID

	if l := logger(ctx); l != nil {
		l.Info("Gateway order created", "order_id", input.OrderID, "gateway_order_id", gw.GatewayOrderID)
	}
	return gw, nil
}

// OpenPaymentSession prepares the widget launch for a bound checkout context
func (a *CheckoutActivities) OpenPaymentSession(ctx context.Context, input SessionInput) (*models.PaymentSession, error) {
	cc := input.Context
	session, err := payment.NewSession(a.Session, &cc, input.GatewayOrder, input.Customer)
	if err != nil {
		return nil, toApplicationError(err)
	}

	if l := logger(ctx); l != nil {
		l.Info("Payment session opened", "order_id", cc.OrderID, "gateway_order_id", cc.GatewayOrderID)
	}
	return &session, nil
}

// VerifyPayment hands the proof to the backend, which holds the secret and
// checks the signature.
func (a *CheckoutActivities) VerifyPayment(ctx context.Context, req models.VerifyRequest) (*models.VerifyResponse, error) {
	if l := logger(ctx); l != nil {
		l.Info("Verifying payment", "order_id", req.OrderID, "gateway_order_id", req.GatewayOrderID, "payment_id", req.PaymentID)
	}

	resp, err := a.Backend.VerifyPayment(ctx, req)
	if err != nil {
		return nil, toApplicationError(err)
	}

	if l := logger(ctx); l != nil {
		l.Info("Payment verification completed", "order_id", req.OrderID, "verified", resp.Verified)
	}
	return resp, nil
}

// ReportPaymentIncident escalates a payment that cannot be proven client-side
func (a *CheckoutActivities) ReportPaymentIncident(ctx context.Context, incident models.PaymentIncident) error {
	if l := logger(ctx); l != nil {
		l.Warn("Reporting payment incident", "order_id", incident.OrderID, "payment_id", incident.PaymentID, "reason", incident.Reason)
	}
	return toApplicationError(a.Backend.ReportIncident(ctx, incident))
}
