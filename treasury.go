package treasury

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/xraph/treasury/costcalc"
	"github.com/xraph/treasury/plugin"
	"github.com/xraph/treasury/store"
	"github.com/xraph/treasury/token"
)

// Treasury is the main billing engine.
type Treasury struct {
	store    store.Store
	registry *token.Registry
	calc     *costcalc.Calculator
	plugins  *plugin.Registry
	logger   *slog.Logger
	locks    *userLocks

	// Background workers
	stopChan chan struct{}
	wg       sync.WaitGroup

	// Configuration
	reservationTTL    time.Duration
	sweepInterval     time.Duration
	sweepBatchSize    int
	exchangeFeeBps    int64
	welcomeGrants     map[token.Symbol]int64
	debtEnabled       bool
	debtCeilingMicros int64
	skipMigrate       bool
}

// New creates a new Treasury instance.
func New(s store.Store, reg *token.Registry, calc *costcalc.Calculator, opts ...Option) *Treasury {
	t := &Treasury{
		store:          s,
		registry:       reg,
		calc:           calc,
		plugins:        plugin.NewRegistry(),
		logger:         slog.Default(),
		locks:          newUserLocks(),
		stopChan:       make(chan struct{}),
		reservationTTL: 5 * time.Minute,
		sweepInterval:  30 * time.Second,
		sweepBatchSize: 100,
		exchangeFeeBps: 200,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Option configures a Treasury instance.
type Option func(*Treasury)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Treasury) {
		t.logger = logger
		t.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(t *Treasury) {
		_ = t.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithReservationTTL sets how long a hold stays authorized before the sweep
// expires it.
func WithReservationTTL(ttl time.Duration) Option {
	return func(t *Treasury) {
		t.reservationTTL = ttl
	}
}

// WithSweepConfig configures the expiry sweep worker.
func WithSweepConfig(interval time.Duration, batchSize int) Option {
	return func(t *Treasury) {
		t.sweepInterval = interval
		t.sweepBatchSize = batchSize
	}
}

// WithExchangeFee sets the exchange fee in basis points.
func WithExchangeFee(bps int64) Option {
	return func(t *Treasury) {
		t.exchangeFeeBps = bps
	}
}

// WithWelcomeGrant credits the given token amount to every wallet created
// lazily on first reference.
func WithWelcomeGrant(sym token.Symbol, amount int64) Option {
	return func(t *Treasury) {
		if t.welcomeGrants == nil {
			t.welcomeGrants = make(map[token.Symbol]int64)
		}
		t.welcomeGrants[sym] = amount
	}
}

// WithoutMigrate skips store migration on Start. Use when migrations are
// managed externally.
func WithoutMigrate() Option {
	return func(t *Treasury) {
		t.skipMigrate = true
	}
}

// WithDebtMode allows holds and captures to settle past a wallet's means,
// accumulating the shortfall as fiat debt up to ceilingMicros.
func WithDebtMode(ceilingMicros int64) Option {
	return func(t *Treasury) {
		t.debtEnabled = true
		t.debtCeilingMicros = ceilingMicros
	}
}

// Start begins background workers.
func (t *Treasury) Start(ctx context.Context) error {
	if t.registry.Currency() != t.calc.Currency() {
		return fmt.Errorf("%w: registry currency %q does not match rate card currency %q",
			ErrInvalidInput, t.registry.Currency(), t.calc.Currency())
	}

	// Migrate database
	if !t.skipMigrate {
		if err := t.store.Migrate(ctx); err != nil {
			return err
		}
	}

	// Initialize plugins
	t.plugins.EmitInit(ctx, t)

	// Start expiry sweep worker
	t.wg.Add(1)
	go t.sweepWorker(ctx)

	t.logger.Info("treasury started",
		"tokens", t.registry.Len(),
		"reservation_ttl", t.reservationTTL,
		"sweep_interval", t.sweepInterval,
		"debt_mode", t.debtEnabled,
	)

	return nil
}

// Stop shuts down the Treasury.
func (t *Treasury) Stop() error {
	close(t.stopChan)
	t.wg.Wait()

	ctx := context.Background()
	t.plugins.EmitShutdown(ctx)

	return t.store.Close()
}

// Registry returns the token registry the engine prices with.
func (t *Treasury) Registry() *token.Registry {
	return t.registry
}

// Plugins returns the plugin registry.
func (t *Treasury) Plugins() *plugin.Registry {
	return t.plugins
}

// ──────────────────────────────────────────────────
// Expiry sweep
// ──────────────────────────────────────────────────

// sweepWorker periodically expires overdue reservations.
func (t *Treasury) sweepWorker(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopChan:
			return

		case <-ticker.C:
			if _, err := t.Sweep(ctx); err != nil {
				t.logger.Error("sweep failed", "error", err)
			}
		}
	}
}

// Sweep expires all overdue authorized reservations, returning each held mix
// to the wallet's available balance. It is idempotent and safe to run
// concurrently with captures: both sides check-and-transition the
// reservation status under the same per-user lock, so exactly one wins.
func (t *Treasury) Sweep(ctx context.Context) (int, error) {
	start := time.Now()

	overdue, err := t.store.ListExpiredReservations(ctx, time.Now(), t.sweepBatchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, r := range overdue {
		t.locks.Lock(r.UserID)
		res, err := t.expireLocked(ctx, r.ID)
		t.locks.Unlock(r.UserID)

		if err != nil {
			t.logger.Error("failed to expire reservation",
				"reservation_id", r.ID,
				"error", err,
			)
			continue
		}
		if res == nil {
			// Lost the race to a capture or release.
			continue
		}

		expired++
		t.plugins.EmitReservationExpired(ctx, res)
	}

	elapsed := time.Since(start)
	if expired > 0 {
		t.plugins.EmitSweepCompleted(ctx, expired, elapsed)
		t.logger.Debug("sweep completed",
			"expired", expired,
			"elapsed_ms", elapsed.Milliseconds(),
		)
	}

	return expired, nil
}

// grantSymbols returns the welcome grant symbols in a stable order.
func (t *Treasury) grantSymbols() []token.Symbol {
	syms := make([]token.Symbol, 0, len(t.welcomeGrants))
	for sym := range t.welcomeGrants {
		syms = append(syms, sym)
	}
	sort.Slice(syms, func(i, j int) bool { return syms[i] < syms[j] })
	return syms
}
