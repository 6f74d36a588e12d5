package extension

import "time"

// Config holds the Treasury extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.treasury" or "treasury" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// TokensFile is the path to the token registry YAML/JSON file. It is
	// loaded on Register when no registry was provided programmatically.
	TokensFile string `json:"tokens_file" mapstructure:"tokens_file" yaml:"tokens_file"`

	// PricingFile is the path to the provider rate card YAML/JSON file. It is
	// loaded on Register when no calculator was provided programmatically.
	PricingFile string `json:"pricing_file" mapstructure:"pricing_file" yaml:"pricing_file"`

	// ReservationTTL is how long a hold stays authorized before the sweep
	// expires it (default: 5m).
	ReservationTTL time.Duration `json:"reservation_ttl" mapstructure:"reservation_ttl" yaml:"reservation_ttl"`

	// SweepInterval is how frequently the background sweep scans for
	// overdue reservations (default: 30s).
	SweepInterval time.Duration `json:"sweep_interval" mapstructure:"sweep_interval" yaml:"sweep_interval"`

	// SweepBatchSize caps how many overdue reservations a single sweep pass
	// settles (default: 100).
	SweepBatchSize int `json:"sweep_batch_size" mapstructure:"sweep_batch_size" yaml:"sweep_batch_size"`

	// ExchangeFeeBps is the fee charged on token conversions, in basis
	// points of the fiat value moved (default: 200).
	ExchangeFeeBps int64 `json:"exchange_fee_bps" mapstructure:"exchange_fee_bps" yaml:"exchange_fee_bps"`

	// StoreDriver selects which store backend to construct from a grove.DB
	// provided via WithGroveDB: "postgres", "sqlite" or "mongo".
	StoreDriver string `json:"store_driver" mapstructure:"store_driver" yaml:"store_driver"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ReservationTTL: 5 * time.Minute,
		SweepInterval:  30 * time.Second,
		SweepBatchSize: 100,
		ExchangeFeeBps: 200,
	}
}
