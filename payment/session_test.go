package payment

import (
	"testing"

	"github.com/aswathylr-builds/storefront-checkout/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSession(t *testing.T) {
	cc := models.NewCheckoutContext("attempt-1")
	require.NoError(t, cc.Bind("ord-1", "ORD-0001", "order_GW1"))

	gw := models.GatewayOrder{GatewayOrderID: "order_GW1", AmountMinorUnits: 22000, Currency: "INR", LinkedOrderID: "ord-1"}
	customer := models.Customer{Name: "Asha", Email: "asha@example.com", Phone: "9999999999"}

	session, err := NewSession(SessionConfig{KeyID: "rzp_test_key", StoreName: "Kart"}, cc, gw, customer)
	require.NoError(t, err)

	assert.Equal(t, "rzp_test_key", session.KeyID)
	assert.Equal(t, int64(22000), session.AmountMinor)
	assert.Equal(t, "INR", session.Currency)
	assert.Equal(t, "order_GW1", session.GatewayOrderID)
	assert.Equal(t, "Order #ORD-0001", session.Description)
	assert.Equal(t, customer, session.Prefill)
	assert.Equal(t, "ord-1", session.Notes["orderId"])
}

func TestNewSession_MissingKey(t *testing.T) {
	cc := models.NewCheckoutContext("attempt-1")
	require.NoError(t, cc.Bind("ord-1", "ORD-0001", "order_GW1"))

	_, err := NewSession(SessionConfig{}, cc, models.GatewayOrder{}, models.Customer{})

	var cfgErr *models.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "GATEWAY_KEY_ID", cfgErr.Setting)
}

func TestNewSession_UnboundContext(t *testing.T) {
	_, err := NewSession(SessionConfig{KeyID: "k"}, models.NewCheckoutContext("a"), models.GatewayOrder{}, models.Customer{})

	var vErr *models.ValidationError
	assert.ErrorAs(t, err, &vErr)
}
