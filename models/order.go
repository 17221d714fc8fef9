package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is the client's read-through copy of a backend order
type Order struct {
	ID              string          `json:"id"`
	OrderNumber     string          `json:"orderNumber"`
	ShippingAddress Address         `json:"shippingAddress"`
	ShippingCost    decimal.Decimal `json:"shippingCost"`
	Items           []CartLine      `json:"items"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Tax             decimal.Decimal `json:"tax"`
	Discount        decimal.Decimal `json:"discount"`
	Total           decimal.Decimal `json:"total"`
	Currency        string          `json:"currency,omitempty"`
	Status          OrderStatus     `json:"status"`
	PaymentStatus   PaymentStatus   `json:"paymentStatus"`
	PaymentMethod   string          `json:"paymentMethod,omitempty"`
	Refunds         []RefundRecord  `json:"refunds,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// Address is a shipping address; every field is required
type Address struct {
	FullName   string `json:"fullName"`
	Phone      string `json:"phone"`
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// MissingFields lists the json names of empty address fields
func (a Address) MissingFields() map[string]string {
	missing := make(map[string]string)
	check := func(name, value string) {
		if isBlank(value) {
			missing[name] = "required"
		}
	}
	check("fullName", a.FullName)
	check("phone", a.Phone)
	check("street", a.Street)
	check("city", a.City)
	check("state", a.State)
	check("postalCode", a.PostalCode)
	check("country", a.Country)
	return missing
}

// Customer carries the contact details used to prefill the payment widget
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// OrderStatus is the fulfilment status of an order
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderPaid       OrderStatus = "paid"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
	OrderRefunded   OrderStatus = "refunded"
)

// PaymentStatus is the payment status of an order
type PaymentStatus string

const (
	PaymentPending             PaymentStatus = "pending"
	PaymentCreated             PaymentStatus = "created"
	PaymentVerificationPending PaymentStatus = "verification_pending"
	PaymentPaid                PaymentStatus = "paid"
	PaymentFailed              PaymentStatus = "failed"
	PaymentRefunded            PaymentStatus = "refunded"
)

// RefundState summarises how much of an order has been given back
type RefundState string

const (
	RefundNone    RefundState = "none"
	RefundPartial RefundState = "partial"
	RefundFull    RefundState = "full"
)

// RefundedAmount sums processed refunds
func (o Order) RefundedAmount() decimal.Decimal {
	sum := decimal.Zero
	for _, r := range o.Refunds {
		if r.Status == RefundProcessed {
			sum = sum.Add(r.Amount)
		}
	}
	return sum
}

// RefundableAmount is the total minus every refund that is processed or still pending
func (o Order) RefundableAmount() decimal.Decimal {
	committed := decimal.Zero
	for _, r := range o.Refunds {
		if r.Status == RefundProcessed || r.Status == RefundPending {
			committed = committed.Add(r.Amount)
		}
	}
	remaining := o.Total.Sub(committed)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// RefundState reports whether the order is untouched, partially or fully refunded
func (o Order) RefundState() RefundState {
	refunded := o.RefundedAmount()
	switch {
	case refunded.IsZero():
		return RefundNone
	case refunded.GreaterThanOrEqual(o.Total):
		return RefundFull
	default:
		return RefundPartial
	}
}

// ApplyRefund attaches a refund outcome to the local copy of the order.
// A processed refund that covers the total moves the order to refunded; a
// partial one leaves it paid with the record attached.
func (o *Order) ApplyRefund(r RefundRecord) {
	o.Refunds = append(o.Refunds, r)
	if r.Status != RefundProcessed {
		return
	}
	if o.RefundState() == RefundFull {
		o.PaymentStatus = PaymentRefunded
		o.Status = OrderRefunded
	}
}
