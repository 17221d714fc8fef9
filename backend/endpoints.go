package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/aswathylr-builds/storefront-checkout/models"
)

type cartResponse struct {
	Items []models.CartLine `json:"items"`
}

type updateCartItemRequest struct {
	VariantID string `json:"variantId,omitempty"`
	Quantity  int    `json:"quantity"`
}

type gatewayOrderResponse struct {
	GatewayOrderID string `json:"gatewayOrderId"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
}

// GetCart fetches the backend cart
func (c *Client) GetCart(ctx context.Context) ([]models.CartLine, error) {
	var resp cartResponse
	if err := c.do(ctx, request{method: http.MethodGet, path: "/cart"}, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// AddCartItem adds a line to the backend cart
func (c *Client) AddCartItem(ctx context.Context, line models.CartLine) error {
	return c.do(ctx, request{method: http.MethodPost, path: "/cart/items", body: line}, nil)
}

// UpdateCartItem sets the quantity of an existing backend cart line
func (c *Client) UpdateCartItem(ctx context.Context, line models.CartLine) error {
	body := updateCartItemRequest{VariantID: line.VariantID, Quantity: line.Quantity}
	path := "/cart/items/" + url.PathEscape(line.ProductID)
	return c.do(ctx, request{method: http.MethodPut, path: path, body: body}, nil)
}

// CreateOrder creates the backend order for the reconciled cart. The
// idempotency key lets the backend collapse a resubmitted request.
func (c *Client) CreateOrder(ctx context.Context, idempotencyKey string, req models.CreateOrderRequest) (*models.Order, error) {
	var order models.Order
	err := c.do(ctx, request{
		method:  http.MethodPost,
		path:    "/orders",
		body:    req,
		headers: map[string]string{"Idempotency-Key": idempotencyKey},
	}, &order)
	if err != nil {
		return nil, err
	}
	if order.ID == "" || order.OrderNumber == "" {
		return nil, fmt.Errorf("backend returned order without id or number")
	}
	return &order, nil
}

// GetOrder fetches an order by id
func (c *Client) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	if err := c.do(ctx, request{method: http.MethodGet, path: "/orders/" + url.PathEscape(orderID)}, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// CancelOrder cancels a pending order
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	return c.do(ctx, request{method: http.MethodPut, path: "/orders/" + url.PathEscape(orderID) + "/cancel"}, nil)
}

// CreateGatewayOrder creates the gateway order for a backend order. The
// idempotency key is the order id, so a resent request maps to the gateway
// order already created for it.
func (c *Client) CreateGatewayOrder(ctx context.Context, idempotencyKey string, req models.GatewayOrderRequest) (*models.GatewayOrder, error) {
	var resp gatewayOrderResponse
	err := c.do(ctx, request{
		method:  http.MethodPost,
		path:    "/payments/gateway-order",
		body:    req,
		headers: map[string]string{"Idempotency-Key": idempotencyKey},
		gateway: true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.GatewayOrderID == "" {
		return nil, fmt.Errorf("backend returned gateway order without id")
	}
	return &models.GatewayOrder{
		GatewayOrderID:   resp.GatewayOrderID,
		AmountMinorUnits: resp.Amount,
		Currency:         resp.Currency,
		LinkedOrderID:    req.Notes["orderId"],
	}, nil
}

// VerifyPayment submits a payment proof for signature verification
func (c *Client) VerifyPayment(ctx context.Context, req models.VerifyRequest) (*models.VerifyResponse, error) {
	var resp models.VerifyResponse
	if err := c.do(ctx, request{method: http.MethodPost, path: "/payments/verify", body: req}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ReportIncident records a payment that needs manual reconciliation
func (c *Client) ReportIncident(ctx context.Context, incident models.PaymentIncident) error {
	return c.do(ctx, request{method: http.MethodPost, path: "/payments/incidents", body: incident}, nil)
}

// RefundPayment asks the gateway to refund all or part of an order
func (c *Client) RefundPayment(ctx context.Context, orderID string, req models.GatewayRefundRequest) (*models.GatewayRefundResponse, error) {
	var resp models.GatewayRefundResponse
	path := "/payments/" + url.PathEscape(orderID) + "/refund"
	if err := c.do(ctx, request{method: http.MethodPost, path: path, body: req, gateway: true}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetRefund fetches the current status of a refund
func (c *Client) GetRefund(ctx context.Context, orderID, refundID string) (*models.GatewayRefundResponse, error) {
	var resp models.GatewayRefundResponse
	path := "/payments/" + url.PathEscape(orderID) + "/refunds/" + url.PathEscape(refundID)
	if err := c.do(ctx, request{method: http.MethodGet, path: path, gateway: true}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
