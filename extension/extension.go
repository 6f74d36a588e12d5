// Package extension provides the Forge extension adapter for Treasury.
//
// It implements the forge.Extension interface to integrate Treasury
// into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.treasury" or
// "treasury" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/forge"
	"github.com/xraph/grove"
	"github.com/xraph/vessel"

	treasury "github.com/xraph/treasury"
	"github.com/xraph/treasury/costcalc"
	"github.com/xraph/treasury/store"
	"github.com/xraph/treasury/store/memory"
	"github.com/xraph/treasury/store/mongo"
	"github.com/xraph/treasury/store/postgres"
	"github.com/xraph/treasury/store/sqlite"
	"github.com/xraph/treasury/token"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "treasury"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Token-denominated API billing engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Treasury as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config       Config
	engine       *treasury.Treasury
	store        store.Store
	registry     *token.Registry
	calc         *costcalc.Calculator
	groveDB      *grove.DB
	treasuryOpts []treasury.Option
}

// New creates a new Treasury Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Treasury instance.
// This is nil until Register is called.
func (e *Extension) Engine() *treasury.Treasury { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the treasury engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if err := e.resolveStore(); err != nil {
		return err
	}

	if err := e.resolvePricing(); err != nil {
		return err
	}

	// Build treasury options from resolved config.
	opts := e.buildTreasuryOpts()

	eng := treasury.New(e.store, e.registry, e.calc, opts...)
	e.engine = eng

	return vessel.Provide(fapp.Container(), func() (*treasury.Treasury, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("treasury: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("treasury: store not initialized")
	}
	return e.store.Ping(ctx)
}

// resolveStore picks the store backend. A programmatic store wins; otherwise
// a grove.DB provided via WithGroveDB is wrapped in the driver named by
// Config.StoreDriver; otherwise the in-memory store is used.
func (e *Extension) resolveStore() error {
	if e.store != nil {
		return nil
	}

	if e.groveDB == nil {
		e.store = memory.New()
		return nil
	}

	switch e.config.StoreDriver {
	case "postgres", "":
		e.store = postgres.New(e.groveDB)
	case "sqlite":
		e.store = sqlite.New(e.groveDB)
	case "mongo":
		e.store = mongo.New(e.groveDB)
	default:
		return fmt.Errorf("treasury: unknown store driver %q", e.config.StoreDriver)
	}
	return nil
}

// resolvePricing loads the token registry and rate card from config files
// when they were not provided programmatically.
func (e *Extension) resolvePricing() error {
	if e.registry == nil {
		if e.config.TokensFile == "" {
			return errors.New("treasury: no token registry; call WithRegistry or set tokens_file")
		}
		reg, err := token.LoadFile(e.config.TokensFile)
		if err != nil {
			return fmt.Errorf("treasury: load tokens file: %w", err)
		}
		e.registry = reg
	}

	if e.calc == nil {
		if e.config.PricingFile == "" {
			return errors.New("treasury: no rate card; call WithCalculator or set pricing_file")
		}
		card, err := costcalc.LoadFile(e.config.PricingFile)
		if err != nil {
			return fmt.Errorf("treasury: load pricing file: %w", err)
		}
		e.calc = costcalc.NewCalculator(card)
	}

	return nil
}

// buildTreasuryOpts constructs treasury.Option values from the resolved config.
func (e *Extension) buildTreasuryOpts() []treasury.Option {
	opts := make([]treasury.Option, 0, len(e.treasuryOpts)+4)

	if e.config.ReservationTTL > 0 {
		opts = append(opts, treasury.WithReservationTTL(e.config.ReservationTTL))
	}
	if e.config.SweepInterval > 0 && e.config.SweepBatchSize > 0 {
		opts = append(opts, treasury.WithSweepConfig(e.config.SweepInterval, e.config.SweepBatchSize))
	}
	if e.config.ExchangeFeeBps > 0 {
		opts = append(opts, treasury.WithExchangeFee(e.config.ExchangeFeeBps))
	}
	if e.config.DisableMigrate {
		opts = append(opts, treasury.WithoutMigrate())
	}

	// Append any pass-through treasury options.
	opts = append(opts, e.treasuryOpts...)

	return opts
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("treasury: configuration is required but not found in config files; " +
				"ensure 'extensions.treasury' or 'treasury' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("treasury: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("tokens_file", e.config.TokensFile),
		forge.F("pricing_file", e.config.PricingFile),
		forge.F("reservation_ttl", e.config.ReservationTTL),
		forge.F("sweep_interval", e.config.SweepInterval),
		forge.F("sweep_batch_size", e.config.SweepBatchSize),
		forge.F("exchange_fee_bps", e.config.ExchangeFeeBps),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.treasury" first (namespaced pattern).
	if cm.IsSet("extensions.treasury") {
		if err := cm.Bind("extensions.treasury", &cfg); err == nil {
			e.Logger().Debug("treasury: loaded config from file",
				forge.F("key", "extensions.treasury"),
			)
			return cfg, true
		}
		e.Logger().Warn("treasury: failed to bind extensions.treasury config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "treasury" key.
	if cm.IsSet("treasury") {
		if err := cm.Bind("treasury", &cfg); err == nil {
			e.Logger().Debug("treasury: loaded config from file",
				forge.F("key", "treasury"),
			)
			return cfg, true
		}
		e.Logger().Warn("treasury: failed to bind treasury config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.ReservationTTL == 0 {
		cfg.ReservationTTL = defaults.ReservationTTL
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = defaults.SweepInterval
	}
	if cfg.SweepBatchSize == 0 {
		cfg.SweepBatchSize = defaults.SweepBatchSize
	}
	if cfg.ExchangeFeeBps == 0 {
		cfg.ExchangeFeeBps = defaults.ExchangeFeeBps
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic values fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.TokensFile == "" && programmaticConfig.TokensFile != "" {
		yamlConfig.TokensFile = programmaticConfig.TokensFile
	}
	if yamlConfig.PricingFile == "" && programmaticConfig.PricingFile != "" {
		yamlConfig.PricingFile = programmaticConfig.PricingFile
	}
	if yamlConfig.StoreDriver == "" && programmaticConfig.StoreDriver != "" {
		yamlConfig.StoreDriver = programmaticConfig.StoreDriver
	}

	// Duration/int fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.ReservationTTL == 0 && programmaticConfig.ReservationTTL != 0 {
		yamlConfig.ReservationTTL = programmaticConfig.ReservationTTL
	}
	if yamlConfig.SweepInterval == 0 && programmaticConfig.SweepInterval != 0 {
		yamlConfig.SweepInterval = programmaticConfig.SweepInterval
	}
	if yamlConfig.SweepBatchSize == 0 && programmaticConfig.SweepBatchSize != 0 {
		yamlConfig.SweepBatchSize = programmaticConfig.SweepBatchSize
	}
	if yamlConfig.ExchangeFeeBps == 0 && programmaticConfig.ExchangeFeeBps != 0 {
		yamlConfig.ExchangeFeeBps = programmaticConfig.ExchangeFeeBps
	}

	// Fill remaining zeros with defaults.
	return e.mergeWithDefaults(yamlConfig)
}
