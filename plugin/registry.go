package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit               []OnInit
	onShutdown           []OnShutdown
	onWalletCreated      []OnWalletCreated
	onCredited           []OnCredited
	onHoldCreated        []OnHoldCreated
	onCaptured           []OnCaptured
	onCaptureShortfall   []OnCaptureShortfall
	onReleased           []OnReleased
	onReservationExpired []OnReservationExpired
	onDirectBilled       []OnDirectBilled
	onExchanged          []OnExchanged
	onSweepCompleted     []OnSweepCompleted
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnWalletCreated); ok {
		r.onWalletCreated = append(r.onWalletCreated, v)
	}
	if v, ok := p.(OnCredited); ok {
		r.onCredited = append(r.onCredited, v)
	}
	if v, ok := p.(OnHoldCreated); ok {
		r.onHoldCreated = append(r.onHoldCreated, v)
	}
	if v, ok := p.(OnCaptured); ok {
		r.onCaptured = append(r.onCaptured, v)
	}
	if v, ok := p.(OnCaptureShortfall); ok {
		r.onCaptureShortfall = append(r.onCaptureShortfall, v)
	}
	if v, ok := p.(OnReleased); ok {
		r.onReleased = append(r.onReleased, v)
	}
	if v, ok := p.(OnReservationExpired); ok {
		r.onReservationExpired = append(r.onReservationExpired, v)
	}
	if v, ok := p.(OnDirectBilled); ok {
		r.onDirectBilled = append(r.onDirectBilled, v)
	}
	if v, ok := p.(OnExchanged); ok {
		r.onExchanged = append(r.onExchanged, v)
	}
	if v, ok := p.(OnSweepCompleted); ok {
		r.onSweepCompleted = append(r.onSweepCompleted, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", r.getImplementedInterfaces(p),
	)

	return nil
}

// getImplementedInterfaces returns a list of interfaces implemented by the plugin.
func (r *Registry) getImplementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	// Check each interface
	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	// List all interfaces to check
	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnWalletCreated)(nil)).Elem(), "OnWalletCreated")
	checkInterface(reflect.TypeOf((*OnHoldCreated)(nil)).Elem(), "OnHoldCreated")
	checkInterface(reflect.TypeOf((*OnCaptured)(nil)).Elem(), "OnCaptured")
	checkInterface(reflect.TypeOf((*OnReleased)(nil)).Elem(), "OnReleased")
	checkInterface(reflect.TypeOf((*OnReservationExpired)(nil)).Elem(), "OnReservationExpired")
	checkInterface(reflect.TypeOf((*OnExchanged)(nil)).Elem(), "OnExchanged")
	checkInterface(reflect.TypeOf((*OnSweepCompleted)(nil)).Elem(), "OnSweepCompleted")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, treasury interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, treasury)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitWalletCreated emits a wallet created event.
func (r *Registry) EmitWalletCreated(ctx context.Context, w interface{}) {
	r.mu.RLock()
	plugins := r.onWalletCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnWalletCreated(ctx, w)
		}); err != nil {
			r.logger.Warn("plugin OnWalletCreated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitCredited emits a credit event.
func (r *Registry) EmitCredited(ctx context.Context, txn interface{}) {
	r.mu.RLock()
	plugins := r.onCredited
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnCredited(ctx, txn)
		}); err != nil {
			r.logger.Warn("plugin OnCredited failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitHoldCreated emits a hold created event.
func (r *Registry) EmitHoldCreated(ctx context.Context, res interface{}) {
	r.mu.RLock()
	plugins := r.onHoldCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnHoldCreated(ctx, res)
		}); err != nil {
			r.logger.Warn("plugin OnHoldCreated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitCaptured emits a capture event.
func (r *Registry) EmitCaptured(ctx context.Context, txn interface{}) {
	r.mu.RLock()
	plugins := r.onCaptured
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnCaptured(ctx, txn)
		}); err != nil {
			r.logger.Warn("plugin OnCaptured failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitCaptureShortfall emits a capture shortfall event.
func (r *Registry) EmitCaptureShortfall(ctx context.Context, txn interface{}, shortfallMicros int64) {
	r.mu.RLock()
	plugins := r.onCaptureShortfall
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnCaptureShortfall(ctx, txn, shortfallMicros)
		}); err != nil {
			r.logger.Warn("plugin OnCaptureShortfall failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitReleased emits a reservation released event.
func (r *Registry) EmitReleased(ctx context.Context, res interface{}) {
	r.mu.RLock()
	plugins := r.onReleased
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnReleased(ctx, res)
		}); err != nil {
			r.logger.Warn("plugin OnReleased failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitReservationExpired emits a reservation expired event.
func (r *Registry) EmitReservationExpired(ctx context.Context, res interface{}) {
	r.mu.RLock()
	plugins := r.onReservationExpired
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnReservationExpired(ctx, res)
		}); err != nil {
			r.logger.Warn("plugin OnReservationExpired failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitDirectBilled emits a direct billing event.
func (r *Registry) EmitDirectBilled(ctx context.Context, txn interface{}) {
	r.mu.RLock()
	plugins := r.onDirectBilled
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnDirectBilled(ctx, txn)
		}); err != nil {
			r.logger.Warn("plugin OnDirectBilled failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitExchanged emits an exchange completed event.
func (r *Registry) EmitExchanged(ctx context.Context, order interface{}) {
	r.mu.RLock()
	plugins := r.onExchanged
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnExchanged(ctx, order)
		}); err != nil {
			r.logger.Warn("plugin OnExchanged failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitSweepCompleted emits a sweep completed event.
func (r *Registry) EmitSweepCompleted(ctx context.Context, expired int, elapsed time.Duration) {
	r.mu.RLock()
	plugins := r.onSweepCompleted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnSweepCompleted(ctx, expired, elapsed)
		}); err != nil {
			r.logger.Warn("plugin OnSweepCompleted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the billing pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
