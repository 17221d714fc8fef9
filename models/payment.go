package models

// GatewayOrder is the payment gateway's order, created once per Order
type GatewayOrder struct {
	GatewayOrderID   string `json:"gatewayOrderId"`
	AmountMinorUnits int64  `json:"amount"`
	Currency         string `json:"currency"`
	LinkedOrderID    string `json:"linkedOrderId"`
}

// GatewayOrderRequest is the body of POST /payments/gateway-order
type GatewayOrderRequest struct {
	AmountMinorUnits int64             `json:"amountMinorUnits"`
	Currency         string            `json:"currency"`
	Receipt          string            `json:"receipt"`
	Notes            map[string]string `json:"notes"`
}

// PaymentProof is the canonical triple produced by a completed payment.
// It is handed to the backend and never stored by the client.
type PaymentProof struct {
	GatewayOrderID string `json:"gatewayOrderId"`
	PaymentID      string `json:"paymentId"`
	Signature      string `json:"signature"`
}

// CallbackPayload is the untrusted body the gateway hands back on completion.
// Field names vary between integration surfaces.
type CallbackPayload map[string]any

// VerifyRequest is the body of POST /payments/verify
type VerifyRequest struct {
	GatewayOrderID string `json:"gatewayOrderId"`
	PaymentID      string `json:"paymentId"`
	Signature      string `json:"signature"`
	OrderID        string `json:"orderId"`
}

// VerifyResponse is the backend's verdict on a proof
type VerifyResponse struct {
	Verified bool   `json:"verified"`
	Message  string `json:"message,omitempty"`
}

// PaymentIncident is raised when a payment may have been taken but cannot be proven
type PaymentIncident struct {
	OrderID        string `json:"orderId"`
	OrderNumber    string `json:"orderNumber"`
	GatewayOrderID string `json:"gatewayOrderId"`
	PaymentID      string `json:"paymentId,omitempty"`
	Reason         string `json:"reason"`
}

// PaymentSession holds the options the storefront passes to the payment widget
type PaymentSession struct {
	KeyID          string            `json:"key"`
	AmountMinor    int64             `json:"amount"`
	Currency       string            `json:"currency"`
	GatewayOrderID string            `json:"order_id"`
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	Prefill        Customer          `json:"prefill"`
	Notes          map[string]string `json:"notes"`
}
