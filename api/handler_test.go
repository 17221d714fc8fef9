package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aswathylr-builds/storefront-checkout/models"
	"github.com/aswathylr-builds/storefront-checkout/workflows"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/mocks"
	"go.uber.org/zap"
)

// jsonValue satisfies converter.EncodedValue for query results
type jsonValue struct {
	v interface{}
}

func (j jsonValue) HasValue() bool { return j.v != nil }

func (j jsonValue) Get(valuePtr interface{}) error {
	data, err := json.Marshal(j.v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, valuePtr)
}

type fakeOrders struct {
	orders    map[string]*models.Order
	cancelled []string
	cancelErr error
}

func (f *fakeOrders) GetOrder(_ context.Context, orderID string) (*models.Order, error) {
	order, ok := f.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", models.ErrNotFound, orderID)
	}
	return order, nil
}

func (f *fakeOrders) CancelOrder(_ context.Context, orderID string) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, orderID)
	return nil
}

type testServer struct {
	temporal *mocks.Client
	orders   *fakeOrders
	router   http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	temporal := &mocks.Client{}
	t.Cleanup(func() { temporal.AssertExpectations(t) })
	orders := &fakeOrders{orders: map[string]*models.Order{}}

	h := NewHandler(temporal, orders, Options{
		TaskQueue:          "checkout-queue",
		RefundPollInterval: 5 * time.Second,
		RefundMaxPolls:     4,
	}, zap.NewNop())
	h.newID = func() string { return "fixed-id" }

	return &testServer{temporal: temporal, orders: orders, router: NewRouter(h, nil)}
}

func (s *testServer) do(method, path, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func newRun(id string) *mocks.WorkflowRun {
	run := &mocks.WorkflowRun{}
	run.On("GetID").Return(id).Maybe()
	run.On("GetRunID").Return("run-1").Maybe()
	return run
}

func TestStartCheckout(t *testing.T) {
	s := newTestServer(t)
	s.temporal.On("ExecuteWorkflow", mock.Anything,
		mock.MatchedBy(func(o client.StartWorkflowOptions) bool {
			return o.ID == "checkout-fixed-id" && o.TaskQueue == "checkout-queue"
		}),
		workflows.CheckoutWorkflowName,
		mock.MatchedBy(func(req models.CheckoutRequest) bool {
			return req.AttemptID == "fixed-id" && len(req.Lines) == 1 && req.ShippingCost.Equal(decimal.NewFromInt(20))
		}),
	).Return(newRun("checkout-fixed-id"), nil)

	rec := s.do(http.MethodPost, "/api/v1/checkout", "application/json", `{
		"customer": {"name": "Asha Rao", "email": "asha@example.com"},
		"lines": [{"productId": "productA", "quantity": 2, "unitPrice": "100"}],
		"shippingAddress": {"city": "Pune"},
		"shippingCost": "20"
	}`)

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var resp StartResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "fixed-id", resp.ID)
	assert.Equal(t, "checkout-fixed-id", resp.WorkflowID)
}

func TestStartCheckout_EmptyCart(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/v1/checkout", "application/json", `{"lines": []}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	s.temporal.AssertNotCalled(t, "ExecuteWorkflow", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGetCheckout(t *testing.T) {
	s := newTestServer(t)
	s.temporal.On("QueryWorkflow", mock.Anything, "checkout-a1", "", models.QueryStatus).Return(jsonValue{models.CheckoutStatus{
		AttemptID: "a1", Stage: models.StageWidgetOpen, OrderID: "ord-1", AmountMinor: 22000,
	}}, nil)

	rec := s.do(http.MethodGet, "/api/v1/checkout/a1", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var status models.CheckoutStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, models.StageWidgetOpen, status.Stage)
	assert.Equal(t, int64(22000), status.AmountMinor)
}

func TestGetCheckout_UnknownAttempt(t *testing.T) {
	s := newTestServer(t)
	s.temporal.On("QueryWorkflow", mock.Anything, "checkout-nope", "", models.QueryStatus).
		Return(nil, serviceerror.NewNotFound("workflow not found"))

	rec := s.do(http.MethodGet, "/api/v1/checkout/nope", "", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetPaymentSession_NotOpen(t *testing.T) {
	s := newTestServer(t)
	s.temporal.On("QueryWorkflow", mock.Anything, "checkout-a1", "", models.QueryPaymentSession).
		Return(nil, serviceerror.NewQueryFailed("payment session is not open (stage cancelled)"))

	rec := s.do(http.MethodGet, "/api/v1/checkout/a1/session", "", "")

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "not open")
}

func TestCompletePayment_JSON(t *testing.T) {
	s := newTestServer(t)
	s.temporal.On("SignalWorkflow", mock.Anything, "checkout-a1", "", models.SignalPaymentCompleted,
		mock.MatchedBy(func(p models.CallbackPayload) bool {
			nested, ok := p["response"].(map[string]interface{})
			return ok && nested["razorpay_payment_id"] == "pay_1"
		}),
	).Return(nil)

	rec := s.do(http.MethodPost, "/api/v1/checkout/a1/payment", "application/json",
		`{"response": {"razorpay_payment_id": "pay_1", "razorpay_signature": "sig"}}`)

	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestCompletePayment_Form(t *testing.T) {
	s := newTestServer(t)
	s.temporal.On("SignalWorkflow", mock.Anything, "checkout-a1", "", models.SignalPaymentCompleted,
		models.CallbackPayload{"razorpay_payment_id": "pay_1", "razorpay_order_id": "order_GW1", "razorpay_signature": "sig"},
	).Return(nil)

	form := url.Values{}
	form.Set("razorpay_payment_id", "pay_1")
	form.Set("razorpay_order_id", "order_GW1")
	form.Set("razorpay_signature", "sig")
	rec := s.do(http.MethodPost, "/api/v1/checkout/a1/payment", "application/x-www-form-urlencoded", form.Encode())

	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestCompletePayment_InvalidBody(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/v1/checkout/a1/payment", "application/json", `not json`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDismissPayment_EmptyBody(t *testing.T) {
	s := newTestServer(t)
	s.temporal.On("SignalWorkflow", mock.Anything, "checkout-a1", "", models.SignalPaymentDismissed,
		models.DismissSignal{}).Return(nil)

	rec := s.do(http.MethodPost, "/api/v1/checkout/a1/dismiss", "", "")

	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestStartRefund(t *testing.T) {
	s := newTestServer(t)
	s.temporal.On("ExecuteWorkflow", mock.Anything,
		mock.MatchedBy(func(o client.StartWorkflowOptions) bool {
			return o.ID == "refund-ord-1" &&
				o.WorkflowIDConflictPolicy == enumspb.WORKFLOW_ID_CONFLICT_POLICY_FAIL &&
				o.WorkflowExecutionErrorWhenAlreadyStarted
		}),
		workflows.RefundWorkflowName,
		mock.MatchedBy(func(req models.RefundRequest) bool {
			return req.OrderID == "ord-1" && req.Amount != nil && req.Amount.Equal(decimal.NewFromInt(50)) &&
				req.PollInterval == 5*time.Second && req.MaxPolls == 4
		}),
	).Return(newRun("refund-ord-1"), nil)

	rec := s.do(http.MethodPost, "/api/v1/admin/orders/ord-1/refunds", "application/json", `{"amount": "50", "reason": "damaged"}`)

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var resp StartResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ord-1", resp.ID)
	assert.Equal(t, "refund-ord-1", resp.WorkflowID)
}

func TestStartRefund_SecondConcurrentRefundConflicts(t *testing.T) {
	s := newTestServer(t)
	refundOptions := mock.MatchedBy(func(o client.StartWorkflowOptions) bool { return o.ID == "refund-ord-1" })
	s.temporal.On("ExecuteWorkflow", mock.Anything, refundOptions, workflows.RefundWorkflowName, mock.Anything).
		Return(newRun("refund-ord-1"), nil).Once()
	s.temporal.On("ExecuteWorkflow", mock.Anything, refundOptions, workflows.RefundWorkflowName, mock.Anything).
		Return(nil, serviceerror.NewWorkflowExecutionAlreadyStarted("workflow execution already started", "", "run-1")).Once()

	first := s.do(http.MethodPost, "/api/v1/admin/orders/ord-1/refunds", "application/json", `{"amount": "150"}`)
	second := s.do(http.MethodPost, "/api/v1/admin/orders/ord-1/refunds", "application/json", `{"amount": "150"}`)

	assert.Equal(t, http.StatusAccepted, first.Code)
	require.Equal(t, http.StatusConflict, second.Code, second.Body.String())
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &resp))
	assert.Equal(t, "already_started", resp.Code)
	s.temporal.AssertNumberOfCalls(t, "ExecuteWorkflow", 2)
}

func TestStartRefund_RejectsNonPositiveAmount(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/v1/admin/orders/ord-1/refunds", "application/json", `{"amount": "0"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRefund(t *testing.T) {
	s := newTestServer(t)
	s.temporal.On("QueryWorkflow", mock.Anything, "refund-ord-1", "", models.QueryStatus).Return(jsonValue{models.RefundProgress{
		OrderID: "ord-1", Polls: 2, Record: &models.RefundRecord{RefundID: "rfnd_1", Status: models.RefundPending},
	}}, nil)

	rec := s.do(http.MethodGet, "/api/v1/admin/orders/ord-1/refund", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var progress models.RefundProgress
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &progress))
	assert.Equal(t, 2, progress.Polls)
	assert.Equal(t, models.RefundPending, progress.Record.Status)
}

func TestGetOrder_IncludesRefundState(t *testing.T) {
	s := newTestServer(t)
	s.orders.orders["ord-1"] = &models.Order{
		ID: "ord-1", Total: decimal.NewFromInt(220), PaymentStatus: models.PaymentPaid,
		Refunds: []models.RefundRecord{{Amount: decimal.NewFromInt(20), Status: models.RefundProcessed}},
	}

	rec := s.do(http.MethodGet, "/api/v1/orders/ord-1", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp OrderResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ord-1", resp.ID)
	assert.Equal(t, models.RefundPartial, resp.RefundState)
	assert.True(t, resp.RefundableAmount.Equal(decimal.NewFromInt(200)))

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/v1/orders/ord-404", "", "").Code)
}

func TestCancelOrder(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/v1/orders/ord-1/cancel", "", "")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"ord-1"}, s.orders.cancelled)
}

func TestCancelOrder_NotPending(t *testing.T) {
	s := newTestServer(t)
	s.orders.cancelErr = &models.ValidationError{Message: "order ord-1 is already paid"}

	rec := s.do(http.MethodPost, "/api/v1/orders/ord-1/cancel", "", "")

	assert.Equal(t, http.StatusConflict, rec.Code)
}
