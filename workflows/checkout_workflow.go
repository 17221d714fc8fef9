package workflows

import (
	"errors"
	"fmt"

	"github.com/aswathylr-builds/storefront-checkout/activities"
	"github.com/aswathylr-builds/storefront-checkout/models"
	"github.com/aswathylr-builds/storefront-checkout/payment"
	"go.temporal.io/sdk/log"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// checkout carries the per-attempt state of one CheckoutWorkflow execution
type checkout struct {
	ctx     workflow.Context
	logger  log.Logger
	req     models.CheckoutRequest
	state   *models.CheckoutStatus
	cc      *models.CheckoutContext
	session *models.PaymentSession
}

// CheckoutWorkflow moves one checkout attempt from cart to a verified payment,
// a cancellation or a reported failure.
//
// Steps run strictly in order: cart sync, order creation, gateway order,
// widget launch, then a wait for the customer. Creation failures end the
// attempt with an error; payment outcomes are returned as a CheckoutResult.
// Each execution owns a fresh CheckoutContext, so concurrent attempts for the
// same customer are independent and produce independent orders.
func CheckoutWorkflow(ctx workflow.Context, req models.CheckoutRequest) (*models.CheckoutResult, error) {
	logger := workflow.GetLogger(ctx)

	if req.AttemptID == "" {
		req.AttemptID = workflow.GetInfo(ctx).WorkflowExecution.ID
	}
	logger.Info("Checkout workflow started", "attempt_id", req.AttemptID, "resume_order_id", req.ResumeOrderID)

	c := &checkout{
		ctx:    ctx,
		logger: logger,
		req:    req,
		state: &models.CheckoutStatus{
			AttemptID:     req.AttemptID,
			Stage:         models.StageIdle,
			PaymentStatus: models.PaymentPending,
			Currency:      req.Currency,
			LastUpdated:   workflow.Now(ctx),
		},
		cc: models.NewCheckoutContext(req.AttemptID),
	}

	err := workflow.SetQueryHandler(ctx, models.QueryStatus, func() (*models.CheckoutStatus, error) {
		return c.state, nil
	})
	if err != nil {
		logger.Error("Failed to register query handler", "error", err)
		return nil, err
	}
	err = workflow.SetQueryHandler(ctx, models.QueryPaymentSession, func() (*models.PaymentSession, error) {
		if c.session == nil {
			return nil, fmt.Errorf("payment session is not open (stage %s)", c.state.Stage)
		}
		return c.session, nil
	})
	if err != nil {
		logger.Error("Failed to register query handler", "error", err)
		return nil, err
	}

	// Signals are buffered from the start so an early callback is not lost
	completedCh := workflow.GetSignalChannel(ctx, models.SignalPaymentCompleted)
	dismissedCh := workflow.GetSignalChannel(ctx, models.SignalPaymentDismissed)

	ctx = workflow.WithActivityOptions(ctx, defaultActivityOptions())
	c.ctx = ctx

	order, err := c.obtainOrder()
	if err != nil {
		return nil, err
	}

	gw, err := c.createGatewayOrder(order)
	if err != nil {
		return nil, err
	}

	if err := c.openSession(gw); err != nil {
		return nil, err
	}

	return c.awaitCustomer(completedCh, dismissedCh)
}

func (c *checkout) transition(to models.CheckoutStage, message string) error {
	from := c.state.Stage
	if !from.CanTransitionTo(to) {
		return temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("illegal checkout transition %s -> %s", from, to), "IllegalTransition", nil)
	}
	c.state.Stage = to
	c.state.Message = message
	c.state.LastUpdated = workflow.Now(c.ctx)
	c.logger.Info("Checkout stage changed", "attempt_id", c.req.AttemptID, "from", string(from), "to", string(to))
	return nil
}

// fail ends the attempt after a creation step failed
func (c *checkout) fail(step string, err error) error {
	c.logger.Error("Checkout step failed", "attempt_id", c.req.AttemptID, "step", step, "error_type", errorType(err), "error", err)
	if tErr := c.transition(models.StageFailed, fmt.Sprintf("%s failed: %s", step, errorMessage(err))); tErr != nil {
		return tErr
	}
	return err
}

// obtainOrder syncs the cart and creates the order, or loads the order being resumed
func (c *checkout) obtainOrder() (*models.Order, error) {
	if c.req.ResumeOrderID != "" {
		return c.resumeOrder()
	}

	if len(c.req.Lines) == 0 {
		return nil, c.fail("cart sync", temporal.NewNonRetryableApplicationError("cart is empty", models.ErrTypeValidation, nil))
	}

	var report models.CartSyncReport
	if err := workflow.ExecuteActivity(c.ctx, activitySyncCart, c.req.Lines).Get(c.ctx, &report); err != nil {
		// fail-open: the backend prices whatever state it holds
		c.logger.Warn("Cart sync failed, continuing to order creation", "attempt_id", c.req.AttemptID, "error", err)
		report.Skipped = true
	}
	c.state.SyncFailures = len(report.Failures)
	if err := c.transition(models.StageCartSynced, ""); err != nil {
		return nil, err
	}

	createCtx := workflow.WithActivityOptions(c.ctx, singleAttemptOptions())
	input := activities.CreateOrderInput{
		AttemptID:       c.req.AttemptID,
		ShippingAddress: c.req.ShippingAddress,
		ShippingCost:    c.req.ShippingCost,
		CouponID:        c.req.CouponID,
	}
	var order models.Order
	if err := workflow.ExecuteActivity(createCtx, activityCreateOrder, input).Get(c.ctx, &order); err != nil {
		return nil, c.fail("order creation", err)
	}

	c.recordOrder(&order)
	if err := c.transition(models.StageOrderCreated, ""); err != nil {
		return nil, err
	}
	return &order, nil
}

// resumeOrder reuses an existing unpaid order instead of creating another
func (c *checkout) resumeOrder() (*models.Order, error) {
	var order models.Order
	if err := workflow.ExecuteActivity(c.ctx, activityLoadOrder, c.req.ResumeOrderID).Get(c.ctx, &order); err != nil {
		return nil, c.fail("order lookup", err)
	}
	if order.Status != models.OrderPending || order.PaymentStatus == models.PaymentPaid || order.PaymentStatus == models.PaymentRefunded {
		err := temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("order %s cannot be paid again (status %s, payment %s)", order.ID, order.Status, order.PaymentStatus),
			models.ErrTypeValidation, nil)
		return nil, c.fail("order lookup", err)
	}

	c.recordOrder(&order)
	if err := c.transition(models.StageOrderCreated, "resuming existing order"); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *checkout) recordOrder(order *models.Order) {
	c.state.OrderID = order.ID
	c.state.OrderNumber = order.OrderNumber
	c.state.OrderTotal = order.Total
	if c.state.Currency == "" {
		c.state.Currency = order.Currency
	}
}

// createGatewayOrder creates the gateway order and binds the checkout context.
// It runs once per attempt; a transient failure ends the attempt and a retry
// resumes the same order, whose id is the gateway request's idempotency key.
func (c *checkout) createGatewayOrder(order *models.Order) (*models.GatewayOrder, error) {
	input := activities.GatewayOrderInput{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Total:       order.Total,
		Currency:    c.state.Currency,
	}
	gatewayCtx := workflow.WithActivityOptions(c.ctx, singleAttemptOptions())
	var gw models.GatewayOrder
	if err := workflow.ExecuteActivity(gatewayCtx, activityCreateGatewayOrder, input).Get(c.ctx, &gw); err != nil {
		return nil, c.fail("gateway order creation", err)
	}

	if err := c.cc.Bind(order.ID, order.OrderNumber, gw.GatewayOrderID); err != nil {
		return nil, err
	}
	c.state.GatewayOrderID = gw.GatewayOrderID
	c.state.AmountMinor = gw.AmountMinorUnits
	c.state.Currency = gw.Currency
	c.state.PaymentStatus = models.PaymentCreated
	if err := c.transition(models.StageGatewayOrderCreated, ""); err != nil {
		return nil, err
	}
	return &gw, nil
}

func (c *checkout) openSession(gw *models.GatewayOrder) error {
	input := activities.SessionInput{
		Context:      *c.cc,
		GatewayOrder: *gw,
		Customer:     c.req.Customer,
	}
	var session models.PaymentSession
	if err := workflow.ExecuteActivity(c.ctx, activityOpenPaymentSession, input).Get(c.ctx, &session); err != nil {
		return c.fail("payment session", err)
	}
	c.session = &session
	return c.transition(models.StageWidgetOpen, "waiting for payment")
}

// awaitCustomer blocks until the widget completes or is dismissed. No timeout
// is imposed here; the gateway owns session expiry.
func (c *checkout) awaitCustomer(completedCh, dismissedCh workflow.ReceiveChannel) (*models.CheckoutResult, error) {
	var (
		payload   models.CallbackPayload
		completed bool
		cancelled bool
		dismissal models.DismissSignal
	)

	selector := workflow.NewSelector(c.ctx)
	selector.AddReceive(completedCh, func(ch workflow.ReceiveChannel, more bool) {
		ch.Receive(c.ctx, &payload)
		completed = true
	})
	selector.AddReceive(dismissedCh, func(ch workflow.ReceiveChannel, more bool) {
		ch.Receive(c.ctx, &dismissal)
	})
	selector.AddReceive(c.ctx.Done(), func(ch workflow.ReceiveChannel, more bool) {
		cancelled = true
	})
	selector.Select(c.ctx)

	if !completed {
		reason := dismissal.Reason
		if cancelled {
			reason = "checkout workflow cancelled"
		}
		return c.cancel(reason)
	}

	// From here on the flow resolves to Verified or VerificationFailed even
	// if the workflow is asked to cancel.
	c.ctx, _ = workflow.NewDisconnectedContext(c.ctx)
	return c.verify(payload)
}

func (c *checkout) cancel(reason string) (*models.CheckoutResult, error) {
	c.session = nil
	if err := c.transition(models.StageCancelled, "payment cancelled"); err != nil {
		return nil, err
	}
	c.logger.Info("Payment cancelled by customer", "order_id", c.cc.OrderID, "reason", reason)
	return &models.CheckoutResult{
		Stage:       models.StageCancelled,
		OrderID:     c.cc.OrderID,
		OrderNumber: c.cc.OrderNumber,
		Message:     "payment cancelled",
	}, nil
}

func (c *checkout) verify(payload models.CallbackPayload) (*models.CheckoutResult, error) {
	c.session = nil
	c.state.PaymentStatus = models.PaymentVerificationPending
	if err := c.transition(models.StageVerificationPending, "verifying payment"); err != nil {
		return nil, err
	}

	proof, err := payment.Normalize(payload, c.cc.GatewayOrderID)
	if err != nil {
		var vf *models.VerificationFailure
		if !errors.As(err, &vf) {
			vf = &models.VerificationFailure{Reason: err.Error()}
		}
		if vf.MissingSignature {
			c.escalate(vf)
		}
		return c.verificationFailed(vf)
	}

	req := models.VerifyRequest{
		GatewayOrderID: proof.GatewayOrderID,
		PaymentID:      proof.PaymentID,
		Signature:      proof.Signature,
		OrderID:        c.cc.OrderID,
	}
	var resp models.VerifyResponse
	if err := workflow.ExecuteActivity(c.ctx, activityVerifyPayment, req).Get(c.ctx, &resp); err != nil {
		return c.verificationFailed(&models.VerificationFailure{Reason: errorMessage(err), PaymentID: proof.PaymentID})
	}
	if !resp.Verified {
		reason := resp.Message
		if reason == "" {
			reason = "signature rejected by backend"
		}
		return c.verificationFailed(&models.VerificationFailure{Reason: reason, PaymentID: proof.PaymentID})
	}

	c.state.PaymentStatus = models.PaymentPaid
	if err := c.transition(models.StageVerified, "payment verified"); err != nil {
		return nil, err
	}
	c.logger.Info("Payment verified", "order_id", c.cc.OrderID, "payment_id", proof.PaymentID)
	return &models.CheckoutResult{
		Stage:       models.StageVerified,
		OrderID:     c.cc.OrderID,
		OrderNumber: c.cc.OrderNumber,
		PaymentID:   proof.PaymentID,
		Message:     "payment verified",
	}, nil
}

// escalate reports a possibly-taken payment for manual reconciliation. It is
// best effort: the customer-facing outcome does not depend on it.
func (c *checkout) escalate(vf *models.VerificationFailure) {
	incident := models.PaymentIncident{
		OrderID:        c.cc.OrderID,
		OrderNumber:    c.cc.OrderNumber,
		GatewayOrderID: c.cc.GatewayOrderID,
		PaymentID:      vf.PaymentID,
		Reason:         vf.Error(),
	}
	if err := workflow.ExecuteActivity(c.ctx, activityReportPaymentIncident, incident).Get(c.ctx, nil); err != nil {
		c.logger.Error("Failed to report payment incident", "order_id", c.cc.OrderID, "payment_id", vf.PaymentID, "error", err)
	}
}

func (c *checkout) verificationFailed(vf *models.VerificationFailure) (*models.CheckoutResult, error) {
	c.state.PaymentStatus = models.PaymentFailed
	if err := c.transition(models.StageVerificationFailed, vf.Error()); err != nil {
		return nil, err
	}
	c.logger.Warn("Payment verification failed", "order_id", c.cc.OrderID,
		"payment_id", vf.PaymentID, "retriable", vf.Retriable(), "reason", vf.Reason)
	return &models.CheckoutResult{
		Stage:          models.StageVerificationFailed,
		OrderID:        c.cc.OrderID,
		OrderNumber:    c.cc.OrderNumber,
		PaymentID:      vf.PaymentID,
		Message:        vf.Error(),
		Retriable:      vf.Retriable(),
		ContactSupport: !vf.Retriable(),
	}, nil
}
