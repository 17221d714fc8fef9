// Package payment turns the gateway's loosely shaped completion callback into
// a canonical proof and builds the options for the payment widget.
package payment

import (
	"fmt"
	"strings"

	"github.com/aswathylr-builds/storefront-checkout/models"
)

// Accepted spellings, compared after lowercasing and dropping '_' and '-'.
// Gateway-specific names are listed before generic ones.
var (
	gatewayOrderIDKeys = []string{"razorpayorderid", "gatewayorderid", "providerorderid", "orderid"}
	paymentIDKeys      = []string{"razorpaypaymentid", "gatewaypaymentid", "providerpaymentid", "paymentid"}
	signatureKeys      = []string{"razorpaysignature", "gatewaysignature", "paymentsignature", "signature"}

	// wrapperKeys hold the real fields one level down on some surfaces
	wrapperKeys = []string{"response", "data", "payload", "payment"}
)

// Normalize extracts the canonical proof from a completion payload.
//
// boundGatewayOrderID is the gateway order bound to this checkout attempt; it
// fills in a missing order id and rejects a payload that names another order.
// A payload with no signature under any spelling yields a non-retriable
// *models.VerificationFailure carrying any payment id found. A signature that
// is present but not a string is malformed and stays retriable.
func Normalize(payload models.CallbackPayload, boundGatewayOrderID string) (models.PaymentProof, error) {
	if len(payload) == 0 {
		return models.PaymentProof{}, &models.VerificationFailure{Reason: "empty callback payload"}
	}

	fields := flatten(payload)

	if failure, ok := gatewayReportedFailure(payload); ok {
		return models.PaymentProof{}, failure
	}

	paymentID, _ := lookup(fields, paymentIDKeys)
	signature, sigErr := lookup(fields, signatureKeys)
	gatewayOrderID, orderErr := lookup(fields, gatewayOrderIDKeys)

	if sigErr != nil {
		return models.PaymentProof{}, &models.VerificationFailure{Reason: sigErr.Error(), PaymentID: paymentID}
	}
	if signature == "" {
		return models.PaymentProof{}, &models.VerificationFailure{
			Reason:           "callback carried no signature",
			PaymentID:        paymentID,
			MissingSignature: true,
		}
	}
	if paymentID == "" {
		return models.PaymentProof{}, &models.VerificationFailure{Reason: "callback carried no payment id"}
	}
	if orderErr != nil {
		return models.PaymentProof{}, &models.VerificationFailure{Reason: orderErr.Error(), PaymentID: paymentID}
	}

	switch {
	case gatewayOrderID == "" && boundGatewayOrderID == "":
		return models.PaymentProof{}, &models.VerificationFailure{Reason: "callback carried no order id", PaymentID: paymentID}
	case gatewayOrderID == "":
		gatewayOrderID = boundGatewayOrderID
	case boundGatewayOrderID != "" && gatewayOrderID != boundGatewayOrderID:
		return models.PaymentProof{}, &models.VerificationFailure{
			Reason:    fmt.Sprintf("callback names order %s, expected %s", gatewayOrderID, boundGatewayOrderID),
			PaymentID: paymentID,
		}
	}

	return models.PaymentProof{
		GatewayOrderID: gatewayOrderID,
		PaymentID:      paymentID,
		Signature:      signature,
	}, nil
}

// flatten folds wrapper objects into one lookup table keyed by normalized
// name. Top-level fields win over wrapped ones.
func flatten(payload map[string]any) map[string]any {
	fields := make(map[string]any, len(payload))
	for _, wrapper := range wrapperKeys {
		for k, v := range payload {
			if canonicalKey(k) != wrapper {
				continue
			}
			if nested, ok := v.(map[string]any); ok {
				for nk, nv := range nested {
					fields[canonicalKey(nk)] = nv
				}
			}
		}
	}
	for k, v := range payload {
		fields[canonicalKey(k)] = v
	}
	return fields
}

// lookup returns the first non-empty string under any of keys. A key that is
// present with a non-string value is reported as unparseable.
func lookup(fields map[string]any, keys []string) (string, error) {
	var badKey string
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok || raw == nil {
			continue
		}
		s, ok := raw.(string)
		if !ok {
			if badKey == "" {
				badKey = key
			}
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			return s, nil
		}
	}
	if badKey != "" {
		return "", fmt.Errorf("field %s is not a string", badKey)
	}
	return "", nil
}

// gatewayReportedFailure recognises the error envelope gateways send when the
// payment itself failed: {"error": {"description": ..., "metadata": {...}}}.
func gatewayReportedFailure(payload map[string]any) (*models.VerificationFailure, bool) {
	var envelope map[string]any
	for k, v := range payload {
		if canonicalKey(k) == "error" {
			envelope, _ = v.(map[string]any)
		}
	}
	if envelope == nil {
		return nil, false
	}

	fields := make(map[string]any)
	if meta, ok := envelope["metadata"].(map[string]any); ok {
		for k, v := range meta {
			fields[canonicalKey(k)] = v
		}
	}
	for k, v := range envelope {
		fields[canonicalKey(k)] = v
	}

	reason, _ := lookup(fields, []string{"description", "reason", "message", "code"})
	if reason == "" {
		reason = "payment failed at gateway"
	}
	paymentID, _ := lookup(fields, paymentIDKeys)
	return &models.VerificationFailure{Reason: reason, PaymentID: paymentID}, true
}

func canonicalKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	k = strings.ReplaceAll(k, "_", "")
	return strings.ReplaceAll(k, "-", "")
}
