package workflows

import (
	"errors"
	"time"

	"github.com/aswathylr-builds/storefront-checkout/models"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// RetryPolicy configuration
type RetryPolicy = temporal.RetryPolicy

const (
	CheckoutWorkflowName = "CheckoutWorkflow"
	RefundWorkflowName   = "RefundWorkflow"
)

// Activity names as registered by the worker
const (
	activitySyncCart              = "SyncCart"
	activityCreateOrder           = "CreateOrder"
	activityLoadOrder             = "LoadOrder"
	activityCreateGatewayOrder    = "CreateGatewayOrder"
	activityOpenPaymentSession    = "OpenPaymentSession"
	activityVerifyPayment         = "VerifyPayment"
	activityReportPaymentIncident = "ReportPaymentIncident"
	activityLoadRefundableOrder   = "LoadRefundableOrder"
	activityInitiateRefund        = "InitiateRefund"
	activityGetRefundStatus       = "GetRefundStatus"
)

var nonRetryableTypes = []string{
	models.ErrTypeValidation,
	models.ErrTypePricing,
	models.ErrTypeConfiguration,
	models.ErrTypeAmountMismatch,
	models.ErrTypeRefund,
	models.ErrTypeNotFound,
}

// RefundWorkflowID keys refund workflows by order
func RefundWorkflowID(orderID string) string {
	return "refund-" + orderID
}

// RefundStartOptions allows one running refund per order. Both refunds of a
// concurrent pair would validate against the same refundable balance, so the
// second start fails with WorkflowExecutionAlreadyStarted. Once a refund has
// closed, the next one may reuse the id.
func RefundStartOptions(orderID, taskQueue string) client.StartWorkflowOptions {
	return client.StartWorkflowOptions{
		ID:                                       RefundWorkflowID(orderID),
		TaskQueue:                                taskQueue,
		WorkflowIDConflictPolicy:                 enumspb.WORKFLOW_ID_CONFLICT_POLICY_FAIL,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}
}

// defaultActivityOptions retries transient failures a few times
func defaultActivityOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout:    30 * time.Second,
		ScheduleToStartTimeout: 10 * time.Second,
		RetryPolicy: &RetryPolicy{
			InitialInterval:        time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        10 * time.Second,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: nonRetryableTypes,
		},
	}
}

// singleAttemptOptions runs an activity at most once. Order and gateway order
// creation use it so a lost response can never produce a second one.
func singleAttemptOptions() workflow.ActivityOptions {
	opts := defaultActivityOptions()
	opts.RetryPolicy = &RetryPolicy{MaximumAttempts: 1}
	return opts
}

// errorType returns the application error type carried by err, if any
func errorType(err error) string {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Type()
	}
	return ""
}

// errorMessage unwraps activity errors down to the application message
func errorMessage(err error) string {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Message()
	}
	return err.Error()
}
