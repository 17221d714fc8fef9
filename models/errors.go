package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error type names carried across the activity boundary
const (
	ErrTypeValidation         = "ValidationError"
	ErrTypePricing            = "PricingError"
	ErrTypeGatewayUnavailable = "GatewayUnavailable"
	ErrTypeConfiguration      = "ConfigurationError"
	ErrTypeAmountMismatch     = "AmountMismatch"
	ErrTypeRefund             = "RefundFailure"
	ErrTypeNotFound           = "NotFound"
)

// ValidationError is returned for input the user can correct
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "validation failed"
	}
	if len(e.Fields) == 0 {
		return msg
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("%s: %s", msg, strings.Join(names, ", "))
}

// PricingError is returned when the backend cannot reconcile the order totals
type PricingError struct {
	Message string
}

func (e *PricingError) Error() string {
	if e.Message != "" {
		return "pricing error: " + e.Message
	}
	return "pricing error"
}

// GatewayUnavailableError means the payment gateway could not be reached
type GatewayUnavailableError struct {
	Cause error
}

func (e *GatewayUnavailableError) Error() string {
	if e.Cause != nil {
		return "payment gateway unavailable: " + e.Cause.Error()
	}
	return "payment gateway unavailable"
}

func (e *GatewayUnavailableError) Unwrap() error { return e.Cause }

// ConfigurationError means the integration needs operator action, not a retry
type ConfigurationError struct {
	Setting string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Setting != "" {
		return fmt.Sprintf("payment integration misconfigured (%s): %s", e.Setting, e.Message)
	}
	return "payment integration misconfigured: " + e.Message
}

// SyncFailure records one cart line that could not be reconciled. It is
// logged and bypassed, never fatal.
type SyncFailure struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId"`
	Operation string `json:"operation"`
	Reason    string `json:"reason"`
}

func (e *SyncFailure) Error() string {
	return fmt.Sprintf("cart sync %s failed for %s:%s: %s", e.Operation, e.ProductID, e.VariantID, e.Reason)
}

// VerificationFailure is a payment that could not be verified. When the
// signature is missing the failure is not retriable and needs support to
// reconcile using PaymentID.
type VerificationFailure struct {
	Reason           string
	PaymentID        string
	MissingSignature bool
}

func (e *VerificationFailure) Error() string {
	var b strings.Builder
	if e.MissingSignature {
		b.WriteString("payment verification failed: signature missing, contact support")
	} else {
		b.WriteString("payment verification failed")
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.PaymentID != "" {
		b.WriteString(" (payment id ")
		b.WriteString(e.PaymentID)
		b.WriteString(")")
	}
	return b.String()
}

// Retriable reports whether paying again can resolve the failure
func (e *VerificationFailure) Retriable() bool {
	return !e.MissingSignature
}

// RefundFailure is a refund the gateway rejected or that was never sent
type RefundFailure struct {
	OrderID string
	Message string
}

func (e *RefundFailure) Error() string {
	return fmt.Sprintf("refund for order %s failed: %s", e.OrderID, e.Message)
}

// ErrNotFound is returned when the backend has no such resource
var ErrNotFound = errors.New("not found")
