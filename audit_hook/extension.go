// Package audithook bridges Treasury lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import
// Chronicle directly. Callers inject a RecorderFunc adapter that bridges
// to Chronicle at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/treasury/exchange"
	"github.com/xraph/treasury/plugin"
	"github.com/xraph/treasury/reservation"
	"github.com/xraph/treasury/transaction"
	"github.com/xraph/treasury/wallet"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin               = (*Extension)(nil)
	_ plugin.OnWalletCreated      = (*Extension)(nil)
	_ plugin.OnCredited           = (*Extension)(nil)
	_ plugin.OnHoldCreated        = (*Extension)(nil)
	_ plugin.OnCaptured           = (*Extension)(nil)
	_ plugin.OnCaptureShortfall   = (*Extension)(nil)
	_ plugin.OnReleased           = (*Extension)(nil)
	_ plugin.OnReservationExpired = (*Extension)(nil)
	_ plugin.OnDirectBilled       = (*Extension)(nil)
	_ plugin.OnExchanged          = (*Extension)(nil)
	_ plugin.OnSweepCompleted     = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// This matches chronicle.Emitter but is defined locally so that the
// audit_hook package does not import Chronicle directly — callers inject
// the concrete *chronicle.Chronicle at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
// It mirrors chronicle/audit.Event but avoids a module dependency.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Treasury lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Wallet lifecycle hooks
// ──────────────────────────────────────────────────

// OnWalletCreated implements plugin.OnWalletCreated.
func (e *Extension) OnWalletCreated(ctx context.Context, w interface{}) error {
	var resourceID, userID string
	if wlt, ok := w.(*wallet.Wallet); ok {
		resourceID = wlt.ID.String()
		userID = wlt.UserID
	}
	return e.record(ctx, ActionWalletCreated, SeverityInfo, OutcomeSuccess,
		ResourceWallet, resourceID, CategoryWallet, nil,
		"user_id", userID,
	)
}

// OnCredited implements plugin.OnCredited.
func (e *Extension) OnCredited(ctx context.Context, txn interface{}) error {
	var resourceID, userID string
	var amount int64
	var tok string
	if t, ok := txn.(*transaction.Transaction); ok {
		resourceID = t.ID.String()
		userID = t.UserID
		amount = t.CreditAmount
		tok = string(t.CreditToken)
	}
	return e.record(ctx, ActionCredited, SeverityInfo, OutcomeSuccess,
		ResourceTransaction, resourceID, CategoryWallet, nil,
		"user_id", userID,
		"token", tok,
		"amount", amount,
	)
}

// ──────────────────────────────────────────────────
// Reservation lifecycle hooks
// ──────────────────────────────────────────────────

// OnHoldCreated implements plugin.OnHoldCreated.
func (e *Extension) OnHoldCreated(ctx context.Context, res interface{}) error {
	var resourceID, userID string
	var estimated int64
	if r, ok := res.(*reservation.Reservation); ok {
		resourceID = r.ID.String()
		userID = r.UserID
		estimated = r.EstimatedFiat.Micros
	}
	return e.record(ctx, ActionHoldCreated, SeverityInfo, OutcomeSuccess,
		ResourceReservation, resourceID, CategoryBilling, nil,
		"user_id", userID,
		"estimated_micros", estimated,
	)
}

// OnCaptured implements plugin.OnCaptured.
func (e *Extension) OnCaptured(ctx context.Context, txn interface{}) error {
	var resourceID, userID string
	var cost int64
	if t, ok := txn.(*transaction.Transaction); ok {
		resourceID = t.ID.String()
		userID = t.UserID
		cost = t.FiatCost.Micros
	}
	return e.record(ctx, ActionCaptured, SeverityInfo, OutcomeSuccess,
		ResourceTransaction, resourceID, CategoryBilling, nil,
		"user_id", userID,
		"fiat_cost_micros", cost,
	)
}

// OnCaptureShortfall implements plugin.OnCaptureShortfall.
func (e *Extension) OnCaptureShortfall(ctx context.Context, txn interface{}, shortfallMicros int64) error {
	var resourceID, userID string
	if t, ok := txn.(*transaction.Transaction); ok {
		resourceID = t.ID.String()
		userID = t.UserID
	}
	return e.record(ctx, ActionCaptureShortfall, SeverityWarning, OutcomePartial,
		ResourceTransaction, resourceID, CategoryBilling, nil,
		"user_id", userID,
		"shortfall_micros", shortfallMicros,
	)
}

// OnReleased implements plugin.OnReleased.
func (e *Extension) OnReleased(ctx context.Context, res interface{}) error {
	var resourceID, userID string
	if r, ok := res.(*reservation.Reservation); ok {
		resourceID = r.ID.String()
		userID = r.UserID
	}
	return e.record(ctx, ActionReleased, SeverityInfo, OutcomeSuccess,
		ResourceReservation, resourceID, CategoryBilling, nil,
		"user_id", userID,
	)
}

// OnReservationExpired implements plugin.OnReservationExpired.
func (e *Extension) OnReservationExpired(ctx context.Context, res interface{}) error {
	var resourceID, userID string
	if r, ok := res.(*reservation.Reservation); ok {
		resourceID = r.ID.String()
		userID = r.UserID
	}
	return e.record(ctx, ActionReservationExpired, SeverityWarning, OutcomeSuccess,
		ResourceReservation, resourceID, CategoryBilling, nil,
		"user_id", userID,
	)
}

// ──────────────────────────────────────────────────
// Settlement hooks
// ──────────────────────────────────────────────────

// OnDirectBilled implements plugin.OnDirectBilled.
func (e *Extension) OnDirectBilled(ctx context.Context, txn interface{}) error {
	var resourceID, userID string
	var cost int64
	if t, ok := txn.(*transaction.Transaction); ok {
		resourceID = t.ID.String()
		userID = t.UserID
		cost = t.FiatCost.Micros
	}
	return e.record(ctx, ActionDirectBilled, SeverityInfo, OutcomeSuccess,
		ResourceTransaction, resourceID, CategoryBilling, nil,
		"user_id", userID,
		"fiat_cost_micros", cost,
	)
}

// OnExchanged implements plugin.OnExchanged.
func (e *Extension) OnExchanged(ctx context.Context, order interface{}) error {
	var resourceID, userID string
	var from, to string
	if o, ok := order.(*exchange.Order); ok {
		resourceID = o.ID.String()
		userID = o.UserID
		from = string(o.FromToken)
		to = string(o.ToToken)
	}
	return e.record(ctx, ActionExchanged, SeverityInfo, OutcomeSuccess,
		ResourceExchange, resourceID, CategoryExchange, nil,
		"user_id", userID,
		"from_token", from,
		"to_token", to,
	)
}

// ──────────────────────────────────────────────────
// Sweep hooks
// ──────────────────────────────────────────────────

// OnSweepCompleted implements plugin.OnSweepCompleted.
func (e *Extension) OnSweepCompleted(ctx context.Context, expired int, elapsed time.Duration) error {
	if expired == 0 {
		// Only audit sweeps that actually expired something to reduce noise
		return nil
	}
	return e.record(ctx, ActionSweepCompleted, SeverityInfo, OutcomeSuccess,
		ResourceSweep, "", CategoryMaintenance, nil,
		"expired", expired,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
