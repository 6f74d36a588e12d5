// Package observability provides a metrics extension for Treasury that records
// lifecycle event counts via go-utils MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/xraph/treasury/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin               = (*MetricsExtension)(nil)
	_ plugin.OnInit               = (*MetricsExtension)(nil)
	_ plugin.OnWalletCreated      = (*MetricsExtension)(nil)
	_ plugin.OnCredited           = (*MetricsExtension)(nil)
	_ plugin.OnHoldCreated        = (*MetricsExtension)(nil)
	_ plugin.OnCaptured           = (*MetricsExtension)(nil)
	_ plugin.OnCaptureShortfall   = (*MetricsExtension)(nil)
	_ plugin.OnReleased           = (*MetricsExtension)(nil)
	_ plugin.OnReservationExpired = (*MetricsExtension)(nil)
	_ plugin.OnDirectBilled       = (*MetricsExtension)(nil)
	_ plugin.OnExchanged          = (*MetricsExtension)(nil)
	_ plugin.OnSweepCompleted     = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide billing metrics.
// Register it as a Treasury plugin to automatically track wallet activity.
type MetricsExtension struct {
	factory MetricFactory

	// Wallet metrics
	WalletCreated Counter
	Credited      Counter

	// Reservation metrics
	HoldCreated        Counter
	Captured           Counter
	CaptureShortfall   Counter
	ShortfallAmount    Histogram
	Released           Counter
	ReservationExpired Counter

	// Settlement metrics
	DirectBilled Counter

	// Exchange metrics
	Exchanged Counter

	// Sweep metrics
	SweepExpired Counter
	SweepLatency Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Wallet metrics
		WalletCreated: factory.Counter("treasury.wallet.created"),
		Credited:      factory.Counter("treasury.wallet.credited"),

		// Reservation metrics
		HoldCreated:        factory.Counter("treasury.hold.created"),
		Captured:           factory.Counter("treasury.hold.captured"),
		CaptureShortfall:   factory.Counter("treasury.hold.capture_shortfall"),
		ShortfallAmount:    factory.Histogram("treasury.hold.shortfall_micros"),
		Released:           factory.Counter("treasury.hold.released"),
		ReservationExpired: factory.Counter("treasury.hold.expired"),

		// Settlement metrics
		DirectBilled: factory.Counter("treasury.bill.direct"),

		// Exchange metrics
		Exchanged: factory.Counter("treasury.exchange.completed"),

		// Sweep metrics
		SweepExpired: factory.Counter("treasury.sweep.expired"),
		SweepLatency: factory.Histogram("treasury.sweep.latency_ms"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Wallet lifecycle hooks
// ──────────────────────────────────────────────────

// OnWalletCreated implements plugin.OnWalletCreated.
func (m *MetricsExtension) OnWalletCreated(_ context.Context, _ interface{}) error {
	m.WalletCreated.Inc()
	return nil
}

// OnCredited implements plugin.OnCredited.
func (m *MetricsExtension) OnCredited(_ context.Context, _ interface{}) error {
	m.Credited.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Reservation lifecycle hooks
// ──────────────────────────────────────────────────

// OnHoldCreated implements plugin.OnHoldCreated.
func (m *MetricsExtension) OnHoldCreated(_ context.Context, _ interface{}) error {
	m.HoldCreated.Inc()
	return nil
}

// OnCaptured implements plugin.OnCaptured.
func (m *MetricsExtension) OnCaptured(_ context.Context, _ interface{}) error {
	m.Captured.Inc()
	return nil
}

// OnCaptureShortfall implements plugin.OnCaptureShortfall.
func (m *MetricsExtension) OnCaptureShortfall(_ context.Context, _ interface{}, shortfallMicros int64) error {
	m.CaptureShortfall.Inc()
	m.ShortfallAmount.Observe(float64(shortfallMicros))
	return nil
}

// OnReleased implements plugin.OnReleased.
func (m *MetricsExtension) OnReleased(_ context.Context, _ interface{}) error {
	m.Released.Inc()
	return nil
}

// OnReservationExpired implements plugin.OnReservationExpired.
func (m *MetricsExtension) OnReservationExpired(_ context.Context, _ interface{}) error {
	m.ReservationExpired.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Settlement hooks
// ──────────────────────────────────────────────────

// OnDirectBilled implements plugin.OnDirectBilled.
func (m *MetricsExtension) OnDirectBilled(_ context.Context, _ interface{}) error {
	m.DirectBilled.Inc()
	return nil
}

// OnExchanged implements plugin.OnExchanged.
func (m *MetricsExtension) OnExchanged(_ context.Context, _ interface{}) error {
	m.Exchanged.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Sweep hooks
// ──────────────────────────────────────────────────

// OnSweepCompleted implements plugin.OnSweepCompleted.
func (m *MetricsExtension) OnSweepCompleted(_ context.Context, expired int, elapsed time.Duration) error {
	m.SweepExpired.Add(float64(expired))
	m.SweepLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}
