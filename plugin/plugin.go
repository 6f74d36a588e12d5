// Package plugin provides an extensible plugin system for Treasury.
// Plugins can hook into various lifecycle events to extend functionality.
package plugin

import (
	"context"
	"time"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, t interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Wallet lifecycle hooks
// ──────────────────────────────────────────────────

// OnWalletCreated is called when a new wallet is created.
type OnWalletCreated interface {
	Plugin
	OnWalletCreated(ctx context.Context, w interface{}) error
}

// OnCredited is called when tokens are credited to a wallet.
type OnCredited interface {
	Plugin
	OnCredited(ctx context.Context, txn interface{}) error
}

// ──────────────────────────────────────────────────
// Reservation lifecycle hooks
// ──────────────────────────────────────────────────

// OnHoldCreated is called when a pre-flight hold is authorized.
type OnHoldCreated interface {
	Plugin
	OnHoldCreated(ctx context.Context, res interface{}) error
}

// OnCaptured is called when a reservation is captured against actual usage.
type OnCaptured interface {
	Plugin
	OnCaptured(ctx context.Context, txn interface{}) error
}

// OnCaptureShortfall is called when a capture could not be fully covered.
type OnCaptureShortfall interface {
	Plugin
	OnCaptureShortfall(ctx context.Context, txn interface{}, shortfallMicros int64) error
}

// OnReleased is called when a reservation is released without usage.
type OnReleased interface {
	Plugin
	OnReleased(ctx context.Context, res interface{}) error
}

// OnReservationExpired is called when a reservation expires.
type OnReservationExpired interface {
	Plugin
	OnReservationExpired(ctx context.Context, res interface{}) error
}

// ──────────────────────────────────────────────────
// Billing hooks
// ──────────────────────────────────────────────────

// OnDirectBilled is called when usage is billed without a prior hold.
type OnDirectBilled interface {
	Plugin
	OnDirectBilled(ctx context.Context, txn interface{}) error
}

// OnExchanged is called when a token exchange order completes.
type OnExchanged interface {
	Plugin
	OnExchanged(ctx context.Context, order interface{}) error
}

// ──────────────────────────────────────────────────
// Sweep hooks
// ──────────────────────────────────────────────────

// OnSweepCompleted is called after a background sweep pass completes.
type OnSweepCompleted interface {
	Plugin
	OnSweepCompleted(ctx context.Context, expired int, elapsed time.Duration) error
}
