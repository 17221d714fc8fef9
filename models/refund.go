package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RefundStatus is the gateway-reported state of a refund
type RefundStatus string

const (
	RefundPending   RefundStatus = "pending"
	RefundProcessed RefundStatus = "processed"
	RefundFailed    RefundStatus = "failed"
)

// IsTerminal reports whether the status will not change again
func (s RefundStatus) IsTerminal() bool {
	return s == RefundProcessed || s == RefundFailed
}

// Valid reports whether s is one of the known statuses
func (s RefundStatus) Valid() bool {
	return s == RefundPending || s == RefundProcessed || s == RefundFailed
}

// RefundRecord is a single refund attempt against an order. A failed record
// is never revived; a retry is a new record.
type RefundRecord struct {
	OrderID    string          `json:"orderId"`
	Amount     decimal.Decimal `json:"amount"`
	Reason     string          `json:"reason,omitempty"`
	RefundID   string          `json:"refundId"`
	Status     RefundStatus    `json:"refundStatus"`
	RefundedAt *time.Time      `json:"refundedAt,omitempty"`
	Error      string          `json:"refundError,omitempty"`
}

// RefundRequest is the admin's refund instruction. A nil Amount refunds the full total.
type RefundRequest struct {
	OrderID string           `json:"orderId"`
	Amount  *decimal.Decimal `json:"amount,omitempty"`
	Reason  string           `json:"reason,omitempty"`
	// PollInterval and MaxPolls bound how long a pending refund is followed
	PollInterval time.Duration `json:"pollInterval,omitempty"`
	MaxPolls     int           `json:"maxPolls,omitempty"`
}

// GatewayRefundRequest is the body of POST /payments/{orderId}/refund
type GatewayRefundRequest struct {
	Amount *decimal.Decimal `json:"amount,omitempty"`
	Reason string           `json:"reason,omitempty"`
}

// GatewayRefundResponse is the gateway's answer relayed by the backend
type GatewayRefundResponse struct {
	RefundID   string       `json:"refundId"`
	Status     RefundStatus `json:"refundStatus"`
	Error      string       `json:"refundError,omitempty"`
	RefundedAt *time.Time   `json:"refundedAt,omitempty"`
}

// RefundProgress is the queryable state of a refund workflow
type RefundProgress struct {
	OrderID     string        `json:"orderId"`
	Record      *RefundRecord `json:"record,omitempty"`
	Polls       int           `json:"polls"`
	LastUpdated time.Time     `json:"lastUpdated"`
}

// RefundResult is what the refund workflow returns to admin and customer views
type RefundResult struct {
	Record        RefundRecord  `json:"record"`
	Order         Order         `json:"order"`
	RefundState   RefundState   `json:"refundState"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
}
