package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/aswathylr-builds/storefront-checkout/backend"
	"github.com/aswathylr-builds/storefront-checkout/config"
	"github.com/aswathylr-builds/storefront-checkout/logging"
	"github.com/aswathylr-builds/storefront-checkout/models"
	"github.com/aswathylr-builds/storefront-checkout/workflows"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.temporal.io/sdk/client"
)

type options struct {
	action     string
	workflowID string
	orderID    string
	productID  string
	quantity   int
	unitPrice  string
	shipping   string
	amount     string
	reason     string
	paymentID  string
	signature  string
	gatewayID  string
	customer   string
	email      string
	wait       bool
}

func main() {
	var opts options
	flag.StringVar(&opts.action, "action", "start", "Action to perform: start, complete, dismiss, query, session, refund, refund-status, cancel-order")
	flag.StringVar(&opts.workflowID, "workflow-id", "", "Workflow ID for signal/query operations")
	flag.StringVar(&opts.orderID, "order-id", "", "Order ID for refund/cancel-order, or to resume a checkout")
	flag.StringVar(&opts.productID, "product-id", "productA", "Product to check out")
	flag.IntVar(&opts.quantity, "quantity", 1, "Quantity of the product")
	flag.StringVar(&opts.unitPrice, "unit-price", "100", "Unit price")
	flag.StringVar(&opts.shipping, "shipping", "20", "Shipping cost")
	flag.StringVar(&opts.amount, "amount", "", "Refund amount (full refundable balance if empty)")
	flag.StringVar(&opts.reason, "reason", "", "Refund or dismissal reason")
	flag.StringVar(&opts.paymentID, "payment-id", "", "Gateway payment id for -action=complete")
	flag.StringVar(&opts.signature, "signature", "", "Gateway signature for -action=complete (omit to simulate a missing signature)")
	flag.StringVar(&opts.gatewayID, "gateway-order-id", "", "Gateway order id for -action=complete (bound value used if empty)")
	flag.StringVar(&opts.customer, "customer", "Test Customer", "Customer name")
	flag.StringVar(&opts.email, "email", "customer@example.com", "Customer email")
	flag.BoolVar(&opts.wait, "wait", false, "Wait for the workflow result")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// The starter is interactive; keep SDK chatter at warn
	sdkLogger, err := logging.New(cfg.Environment, "warn")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer sdkLogger.Sync()

	clientOptions, _, err := cfg.TemporalClientOptions(logging.NewTemporalLogger(sdkLogger))
	if err != nil {
		log.Fatalf("Failed to configure Temporal client: %v", err)
	}

	c, err := client.Dial(clientOptions)
	if err != nil {
		log.Fatalf("Unable to create Temporal client: %v", err)
	}
	defer c.Close()

	ctx := context.Background()

	switch opts.action {
	case "start":
		startCheckout(ctx, c, cfg, opts)
	case "complete":
		completePayment(ctx, c, opts)
	case "dismiss":
		requireWorkflowID(opts)
		signal(ctx, c, opts.workflowID, models.SignalPaymentDismissed, models.DismissSignal{Reason: opts.reason})
	case "query":
		requireWorkflowID(opts)
		var status models.CheckoutStatus
		query(ctx, c, opts.workflowID, models.QueryStatus, &status)
	case "session":
		requireWorkflowID(opts)
		var session models.PaymentSession
		query(ctx, c, opts.workflowID, models.QueryPaymentSession, &session)
	case "refund":
		startRefund(ctx, c, cfg, opts)
	case "refund-status":
		requireWorkflowID(opts)
		var progress models.RefundProgress
		query(ctx, c, opts.workflowID, models.QueryStatus, &progress)
	case "cancel-order":
		cancelOrder(ctx, cfg, opts)
	default:
		log.Fatalf("Unknown action: %s", opts.action)
	}
}

func startCheckout(ctx context.Context, c client.Client, cfg *config.Config, opts options) {
	attemptID := uuid.NewString()
	req := models.CheckoutRequest{
		AttemptID: attemptID,
		Customer:  models.Customer{Name: opts.customer, Email: opts.email},
		Lines: []models.CartLine{
			{ProductID: opts.productID, Quantity: opts.quantity, UnitPrice: mustDecimal("unit-price", opts.unitPrice)},
		},
		ShippingAddress: models.Address{
			FullName:   opts.customer,
			Phone:      "9999999999",
			Street:     "1 Test Street",
			City:       "Bengaluru",
			State:      "KA",
			PostalCode: "560001",
			Country:    "IN",
		},
		ShippingCost:  mustDecimal("shipping", opts.shipping),
		Currency:      cfg.Gateway.Currency,
		ResumeOrderID: opts.orderID,
	}

	workflowOptions := client.StartWorkflowOptions{
		ID:        "checkout-" + attemptID,
		TaskQueue: cfg.Temporal.TaskQueue,
	}

	we, err := c.ExecuteWorkflow(ctx, workflowOptions, workflows.CheckoutWorkflowName, req)
	if err != nil {
		log.Fatalf("Unable to execute workflow: %v", err)
	}

	log.Printf("Started checkout successfully")
	log.Printf("  Workflow ID: %s", we.GetID())
	log.Printf("  Run ID: %s", we.GetRunID())
	log.Printf("  Attempt ID: %s", attemptID)
	log.Println()
	log.Println("To see the widget options, run:")
	log.Printf("  go run starter/main.go -action=session -workflow-id=%s", we.GetID())
	log.Println()
	log.Println("To complete the payment, run:")
	log.Printf("  go run starter/main.go -action=complete -workflow-id=%s -payment-id=pay_test -signature=sig_test", we.GetID())
	log.Println()
	log.Println("To dismiss the widget, run:")
	log.Printf("  go run starter/main.go -action=dismiss -workflow-id=%s", we.GetID())

	if opts.wait {
		waitForResult(ctx, we, &models.CheckoutResult{})
	}
}

func completePayment(ctx context.Context, c client.Client, opts options) {
	requireWorkflowID(opts)

	// Mirrors the widget handler payload
	payload := models.CallbackPayload{"razorpay_payment_id": opts.paymentID}
	if opts.signature != "" {
		payload["razorpay_signature"] = opts.signature
	}
	if opts.gatewayID != "" {
		payload["razorpay_order_id"] = opts.gatewayID
	}
	signal(ctx, c, opts.workflowID, models.SignalPaymentCompleted, payload)

	if opts.wait {
		waitForResult(ctx, c.GetWorkflow(ctx, opts.workflowID, ""), &models.CheckoutResult{})
	}
}

func startRefund(ctx context.Context, c client.Client, cfg *config.Config, opts options) {
	if opts.orderID == "" {
		log.Fatal("order-id is required for refunds")
	}

	req := models.RefundRequest{
		OrderID:      opts.orderID,
		Reason:       opts.reason,
		PollInterval: cfg.Refund.PollInterval,
		MaxPolls:     cfg.Refund.MaxPolls,
	}
	if opts.amount != "" {
		amount := mustDecimal("amount", opts.amount)
		req.Amount = &amount
	}

	workflowOptions := workflows.RefundStartOptions(opts.orderID, cfg.Temporal.TaskQueue)
	we, err := c.ExecuteWorkflow(ctx, workflowOptions, workflows.RefundWorkflowName, req)
	if err != nil {
		log.Fatalf("Unable to execute workflow: %v", err)
	}

	log.Printf("Started refund successfully")
	log.Printf("  Workflow ID: %s", we.GetID())
	log.Printf("  Order ID: %s", opts.orderID)
	log.Println()
	log.Println("To follow the refund, run:")
	log.Printf("  go run starter/main.go -action=refund-status -workflow-id=%s", we.GetID())

	if opts.wait {
		waitForResult(ctx, we, &models.RefundResult{})
	}
}

func cancelOrder(ctx context.Context, cfg *config.Config, opts options) {
	if opts.orderID == "" {
		log.Fatal("order-id is required for cancel-order")
	}
	backendClient := backend.NewClient(backend.Options{
		BaseURL: cfg.Backend.URL,
		Token:   cfg.Backend.Token,
		Timeout: cfg.Backend.Timeout,
	})
	if err := backendClient.CancelOrder(ctx, opts.orderID); err != nil {
		log.Fatalf("Unable to cancel order: %v", err)
	}
	log.Printf("Order %s cancelled", opts.orderID)
}

func signal(ctx context.Context, c client.Client, workflowID, signalName string, arg interface{}) {
	if err := c.SignalWorkflow(ctx, workflowID, "", signalName, arg); err != nil {
		log.Fatalf("Unable to signal workflow: %v", err)
	}
	log.Printf("Signal '%s' sent successfully to workflow: %s", signalName, workflowID)
}

func query(ctx context.Context, c client.Client, workflowID, queryType string, out interface{}) {
	queryCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	response, err := c.QueryWorkflow(queryCtx, workflowID, "", queryType)
	if err != nil {
		log.Fatalf("Unable to query workflow: %v", err)
	}
	if err := response.Get(out); err != nil {
		log.Fatalf("Unable to decode query result: %v", err)
	}
	printJSON(queryType, out)
}

func waitForResult(ctx context.Context, run client.WorkflowRun, out interface{}) {
	log.Println("Waiting for workflow result...")
	if err := run.Get(ctx, out); err != nil {
		log.Fatalf("Workflow failed: %v", err)
	}
	printJSON("Result", out)
}

func printJSON(title string, v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	log.Printf("%s:", title)
	fmt.Println(string(data))
}

func requireWorkflowID(opts options) {
	if opts.workflowID == "" {
		log.Fatalf("workflow-id is required for -action=%s", opts.action)
	}
}

func mustDecimal(flagName, value string) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		log.Fatalf("Invalid -%s %q: %v", flagName, value, err)
	}
	return d
}
