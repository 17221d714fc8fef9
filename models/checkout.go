package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Signal types
const (
	SignalPaymentCompleted = "payment-completed"
	SignalPaymentDismissed = "payment-dismissed"
)

// Query types
const (
	QueryStatus         = "getStatus"
	QueryPaymentSession = "getPaymentSession"
)

// CheckoutStage is a state of the checkout state machine
type CheckoutStage string

const (
	StageIdle                CheckoutStage = "idle"
	StageCartSynced          CheckoutStage = "cart_synced"
	StageOrderCreated        CheckoutStage = "order_created"
	StageGatewayOrderCreated CheckoutStage = "gateway_order_created"
	StageWidgetOpen          CheckoutStage = "widget_open"
	StageVerificationPending CheckoutStage = "verification_pending"
	StageVerified            CheckoutStage = "verified"
	StageVerificationFailed  CheckoutStage = "verification_failed"
	StageCancelled           CheckoutStage = "cancelled"
	StageFailed              CheckoutStage = "failed"
)

var checkoutTransitions = map[CheckoutStage][]CheckoutStage{
	StageIdle:                {StageCartSynced, StageOrderCreated, StageFailed},
	StageCartSynced:          {StageOrderCreated, StageFailed},
	StageOrderCreated:        {StageGatewayOrderCreated, StageFailed},
	StageGatewayOrderCreated: {StageWidgetOpen, StageFailed},
	StageWidgetOpen:          {StageVerificationPending, StageCancelled},
	StageVerificationPending: {StageVerified, StageVerificationFailed},
}

// IsTerminal reports whether no transition leaves the stage
func (s CheckoutStage) IsTerminal() bool {
	return len(checkoutTransitions[s]) == 0
}

// CanTransitionTo reports whether to is reachable from s in one step.
// Idle goes straight to OrderCreated when resuming an existing order.
func (s CheckoutStage) CanTransitionTo(to CheckoutStage) bool {
	for _, next := range checkoutTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckoutRequest starts a checkout attempt
type CheckoutRequest struct {
	AttemptID       string          `json:"attemptId"`
	Customer        Customer        `json:"customer"`
	Lines           []CartLine      `json:"lines"`
	ShippingAddress Address         `json:"shippingAddress"`
	ShippingCost    decimal.Decimal `json:"shippingCost"`
	CouponID        string          `json:"couponId,omitempty"`
	Currency        string          `json:"currency,omitempty"`
	// ResumeOrderID re-runs payment for an existing pending order instead of
	// syncing the cart and creating a new one.
	ResumeOrderID string `json:"resumeOrderId,omitempty"`
}

// DismissSignal is sent when the customer closes the payment widget
type DismissSignal struct {
	Reason string `json:"reason,omitempty"`
}

// CreateOrderRequest is the body of POST /orders
type CreateOrderRequest struct {
	ShippingAddress Address         `json:"shippingAddress"`
	ShippingCost    decimal.Decimal `json:"shippingCost"`
	CouponID        string          `json:"couponId,omitempty"`
}

// CheckoutContext is the identity cell for one checkout attempt. It is bound
// once when the gateway order exists and read by the completion handler,
// however late the callback arrives.
type CheckoutContext struct {
	AttemptID      string `json:"attemptId"`
	OrderID        string `json:"orderId"`
	OrderNumber    string `json:"orderNumber"`
	GatewayOrderID string `json:"gatewayOrderId"`
	// Sealed is set by Bind and travels with the context into activities
	Sealed bool `json:"sealed"`
}

var ErrContextAlreadyBound = errors.New("checkout context is already bound")

// NewCheckoutContext returns an unbound cell for a single attempt
func NewCheckoutContext(attemptID string) *CheckoutContext {
	return &CheckoutContext{AttemptID: attemptID}
}

// Bind records the order identities. It may only be called once.
func (c *CheckoutContext) Bind(orderID, orderNumber, gatewayOrderID string) error {
	if c.Sealed {
		return ErrContextAlreadyBound
	}
	c.OrderID = orderID
	c.OrderNumber = orderNumber
	c.GatewayOrderID = gatewayOrderID
	c.Sealed = true
	return nil
}

// Bound reports whether Bind has been called
func (c *CheckoutContext) Bound() bool {
	return c.Sealed
}

// CheckoutStatus is the queryable snapshot of a checkout attempt
type CheckoutStatus struct {
	AttemptID      string          `json:"attemptId"`
	Stage          CheckoutStage   `json:"stage"`
	OrderID        string          `json:"orderId,omitempty"`
	OrderNumber    string          `json:"orderNumber,omitempty"`
	GatewayOrderID string          `json:"gatewayOrderId,omitempty"`
	OrderTotal     decimal.Decimal `json:"orderTotal"`
	AmountMinor    int64           `json:"amountMinor,omitempty"`
	Currency       string          `json:"currency,omitempty"`
	PaymentStatus  PaymentStatus   `json:"paymentStatus"`
	SyncFailures   int             `json:"syncFailures"`
	Message        string          `json:"message,omitempty"`
	LastUpdated    time.Time       `json:"lastUpdated"`
}

// CheckoutResult is the outcome of a checkout workflow
type CheckoutResult struct {
	Stage       CheckoutStage `json:"stage"`
	OrderID     string        `json:"orderId,omitempty"`
	OrderNumber string        `json:"orderNumber,omitempty"`
	PaymentID   string        `json:"paymentId,omitempty"`
	Message     string        `json:"message"`
	// Retriable is set on verification failures the customer can fix by paying again
	Retriable bool `json:"retriable"`
	// ContactSupport is set when a payment may exist that cannot be proven
	ContactSupport bool `json:"contactSupport"`
}

// CartSyncReport summarises one reconciliation pass
type CartSyncReport struct {
	Added     int           `json:"added"`
	Updated   int           `json:"updated"`
	Unchanged int           `json:"unchanged"`
	Failures  []SyncFailure `json:"failures,omitempty"`
	Skipped   bool          `json:"skipped"`
}
