// Package cartsync reconciles the locally held cart against the backend cart
// before an order is created.
package cartsync

import (
	"context"
	"fmt"

	"github.com/aswathylr-builds/storefront-checkout/models"
	"go.temporal.io/sdk/log"
)

// RemoteCart is the backend cart surface the synchronizer writes to
type RemoteCart interface {
	GetCart(ctx context.Context) ([]models.CartLine, error)
	AddCartItem(ctx context.Context, line models.CartLine) error
	UpdateCartItem(ctx context.Context, line models.CartLine) error
}

// FailurePolicy decides what a failed line does to the rest of the pass
type FailurePolicy int

const (
	// FailOpen logs a failed line and carries on; checkout proceeds with
	// whatever the backend holds. Blocking checkout on a sync hiccup is worse
	// than a stale quantity the customer can still catch at review time.
	FailOpen FailurePolicy = iota
	// FailClosed stops at the first failure and returns it
	FailClosed
)

func (p FailurePolicy) String() string {
	if p == FailClosed {
		return "fail-closed"
	}
	return "fail-open"
}

// OpKind is the write needed for one line
type OpKind string

const (
	OpAdd    OpKind = "add"
	OpUpdate OpKind = "update"
	OpNone   OpKind = "none"
)

// Op is one planned write against the remote cart
type Op struct {
	Kind OpKind
	Line models.CartLine
}

// Synchronizer pushes local cart lines to the backend cart.
// Remote lines absent locally are never deleted: the customer may have
// removed them on another device mid-session.
type Synchronizer struct {
	Remote RemoteCart
	Policy FailurePolicy
	// VariantAware keys lines by product and variant; when false the backend
	// only understands product ids.
	VariantAware bool
	Logger       log.Logger
}

// NewSynchronizer returns a variant-aware, fail-open synchronizer
func NewSynchronizer(remote RemoteCart, logger log.Logger) *Synchronizer {
	return &Synchronizer{
		Remote:       remote,
		Policy:       FailOpen,
		VariantAware: true,
		Logger:       logger,
	}
}

func (s *Synchronizer) key(l models.CartLine) models.LineKey {
	if s.VariantAware {
		return l.Key()
	}
	return models.LineKey{ProductID: l.ProductID, VariantID: models.DefaultVariant}
}

// Plan computes the writes that make remote match local. Duplicate local
// lines are merged by summing quantities.
func (s *Synchronizer) Plan(local, remote []models.CartLine) ([]Op, []models.SyncFailure) {
	remoteByKey := make(map[models.LineKey]models.CartLine, len(remote))
	for _, l := range remote {
		remoteByKey[s.key(l)] = l
	}

	var (
		order    []models.LineKey
		merged   = make(map[models.LineKey]models.CartLine, len(local))
		failures []models.SyncFailure
	)
	for _, l := range local {
		if l.ProductID == "" || l.Quantity < 1 {
			failures = append(failures, models.SyncFailure{
				ProductID: l.ProductID,
				VariantID: l.Key().VariantID,
				Operation: "validate",
				Reason:    fmt.Sprintf("invalid line (product %q, quantity %d)", l.ProductID, l.Quantity),
			})
			continue
		}
		k := s.key(l)
		if existing, ok := merged[k]; ok {
			existing.Quantity += l.Quantity
			merged[k] = existing
			continue
		}
		order = append(order, k)
		merged[k] = l
	}

	ops := make([]Op, 0, len(order))
	for _, k := range order {
		l := merged[k]
		r, ok := remoteByKey[k]
		switch {
		case !ok:
			ops = append(ops, Op{Kind: OpAdd, Line: l})
		case r.Quantity != l.Quantity:
			ops = append(ops, Op{Kind: OpUpdate, Line: l})
		default:
			ops = append(ops, Op{Kind: OpNone, Line: l})
		}
	}
	return ops, failures
}

// Sync reconciles local against the backend cart one line at a time.
// Under FailOpen it never returns an error; failures are in the report.
func (s *Synchronizer) Sync(ctx context.Context, local []models.CartLine) (*models.CartSyncReport, error) {
	report := &models.CartSyncReport{}

	remote, err := s.Remote.GetCart(ctx)
	if err != nil {
		failure := models.SyncFailure{Operation: "fetch", Reason: err.Error()}
		if s.Policy == FailClosed {
			return report, &failure
		}
		s.warn("Could not fetch remote cart, skipping sync", "error", err)
		report.Skipped = true
		report.Failures = append(report.Failures, failure)
		return report, nil
	}

	ops, invalid := s.Plan(local, remote)
	for i := range invalid {
		if s.Policy == FailClosed {
			return report, &invalid[i]
		}
		s.warn("Skipping invalid cart line", "product_id", invalid[i].ProductID, "reason", invalid[i].Reason)
	}
	report.Failures = append(report.Failures, invalid...)

	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		var opErr error
		switch op.Kind {
		case OpAdd:
			opErr = s.Remote.AddCartItem(ctx, op.Line)
		case OpUpdate:
			opErr = s.Remote.UpdateCartItem(ctx, op.Line)
		default:
			report.Unchanged++
			continue
		}

		if opErr != nil {
			failure := models.SyncFailure{
				ProductID: op.Line.ProductID,
				VariantID: op.Line.Key().VariantID,
				Operation: string(op.Kind),
				Reason:    opErr.Error(),
			}
			if s.Policy == FailClosed {
				return report, &failure
			}
			s.warn("Cart line sync failed", "product_id", failure.ProductID, "variant_id", failure.VariantID,
				"operation", failure.Operation, "error", opErr)
			report.Failures = append(report.Failures, failure)
			continue
		}

		if op.Kind == OpAdd {
			report.Added++
		} else {
			report.Updated++
		}
	}

	return report, nil
}

func (s *Synchronizer) warn(msg string, keyvals ...interface{}) {
	if s.Logger != nil {
		s.Logger.Warn(msg, keyvals...)
	}
}
