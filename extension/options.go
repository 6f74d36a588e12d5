package extension

import (
	"time"

	"github.com/xraph/grove"

	treasury "github.com/xraph/treasury"
	"github.com/xraph/treasury/costcalc"
	"github.com/xraph/treasury/plugin"
	"github.com/xraph/treasury/store"
	"github.com/xraph/treasury/token"
)

// Option configures the Treasury Forge extension.
type Option func(*Extension)

// WithStore sets the store for the treasury engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithRegistry sets the token registry for the treasury engine.
// When unset, Register loads it from Config.TokensFile.
func WithRegistry(reg *token.Registry) Option {
	return func(e *Extension) {
		e.registry = reg
	}
}

// WithCalculator sets the cost calculator for the treasury engine.
// When unset, Register loads the rate card from Config.PricingFile.
func WithCalculator(calc *costcalc.Calculator) Option {
	return func(e *Extension) {
		e.calc = calc
	}
}

// WithTreasuryOption passes a treasury.Option through to the underlying engine.
func WithTreasuryOption(opt treasury.Option) Option {
	return func(e *Extension) {
		e.treasuryOpts = append(e.treasuryOpts, opt)
	}
}

// WithPlugin registers a treasury plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.treasuryOpts = append(e.treasuryOpts, treasury.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithReservationTTL sets how long holds stay authorized.
func WithReservationTTL(ttl time.Duration) Option {
	return func(e *Extension) { e.config.ReservationTTL = ttl }
}

// WithSweepConfig configures the expiry sweep worker.
func WithSweepConfig(interval time.Duration, batchSize int) Option {
	return func(e *Extension) {
		e.config.SweepInterval = interval
		e.config.SweepBatchSize = batchSize
	}
}

// WithExchangeFeeBps sets the exchange fee in basis points.
func WithExchangeFeeBps(bps int64) Option {
	return func(e *Extension) { e.config.ExchangeFeeBps = bps }
}

// WithGroveDB provides a grove.DB for the extension to wrap in a store
// backend. The backend is selected by Config.StoreDriver ("postgres",
// "sqlite" or "mongo"). Ignored when WithStore was also called.
func WithGroveDB(db *grove.DB) Option {
	return func(e *Extension) {
		e.groveDB = db
	}
}
