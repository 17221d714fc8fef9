package payment

import (
	"strings"

	"github.com/aswathylr-builds/storefront-checkout/models"
)

// SessionConfig is the static part of every widget launch
type SessionConfig struct {
	KeyID     string
	StoreName string
}

// Validate fails with a ConfigurationError when the public key is missing
func (c SessionConfig) Validate() error {
	if strings.TrimSpace(c.KeyID) == "" {
		return &models.ConfigurationError{Setting: "GATEWAY_KEY_ID", Message: "payment gateway public key is not set"}
	}
	return nil
}

// NewSession builds the widget options for a bound checkout context
func NewSession(cfg SessionConfig, cc *models.CheckoutContext, gw models.GatewayOrder, customer models.Customer) (models.PaymentSession, error) {
	if err := cfg.Validate(); err != nil {
		return models.PaymentSession{}, err
	}
	if !cc.Bound() {
		return models.PaymentSession{}, &models.ValidationError{Message: "checkout context is not bound to a gateway order"}
	}

	name := cfg.StoreName
	if name == "" {
		name = "Store"
	}

	return models.PaymentSession{
		KeyID:          cfg.KeyID,
		AmountMinor:    gw.AmountMinorUnits,
		Currency:       gw.Currency,
		GatewayOrderID: cc.GatewayOrderID,
		Name:           name,
		Description:    "Order #" + cc.OrderNumber,
		Prefill:        customer,
		Notes: map[string]string{
			"orderId":     cc.OrderID,
			"orderNumber": cc.OrderNumber,
		},
	}, nil
}
