// Package token defines the token types of the virtual economy and the
// registry that prices them.
//
// The registry is loaded once at startup and is read-only at runtime. Rate
// changes are a configuration reload, never a mid-flight mutation: open
// reservations freeze the rates in effect at hold time.
package token

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/xraph/treasury/types"
)

// Symbol is the opaque handle for a registered token type. Only symbols the
// registry validated at load time circulate through the engine, so a typo
// cannot silently mint a phantom token type.
type Symbol string

// Category classifies the task an API call performs. Token types may carry
// per-category discount or markup multipliers.
type Category string

// DefaultDiscountBps is the neutral multiplier (1.0) applied when a token
// type has no entry for a task category.
const DefaultDiscountBps = types.BpsScale

// Type describes one token type of the economy. Immutable after load.
type Type struct {
	Symbol Symbol `json:"symbol" yaml:"symbol"`
	Name   string `json:"name" yaml:"name"`

	// FiatRateMicros is the fiat value of one token unit, in micro-units
	// of the registry currency. Must be > 0.
	FiatRateMicros int64 `json:"fiat_rate_micros" yaml:"fiat_rate_micros"`

	// BurnBps is the fraction of every spend permanently destroyed,
	// in basis points. Must be in [0, 10000).
	BurnBps int64 `json:"burn_bps" yaml:"burn_bps"`

	// TaskDiscounts maps task categories to cost multipliers in basis
	// points. Values below 10000 discount, above 10000 mark up. Categories
	// without an entry use DefaultDiscountBps.
	TaskDiscounts map[Category]int64 `json:"task_discounts,omitempty" yaml:"task_discounts,omitempty"`
}

// DiscountBps returns the cost multiplier for a task category in basis points.
func (t Type) DiscountBps(cat Category) int64 {
	if bps, ok := t.TaskDiscounts[cat]; ok {
		return bps
	}
	return DefaultDiscountBps
}

// Rate returns the fiat value of one token unit.
func (t Type) Rate(currency string) types.Fiat {
	return types.Fiat{Micros: t.FiatRateMicros, Currency: currency}
}

// Registry is the closed set of token types. Read-only after construction.
type Registry struct {
	currency string
	types    map[Symbol]Type
	symbols  []Symbol // sorted, for deterministic iteration
}

// NewRegistry validates the given token types and builds a registry.
func NewRegistry(currency string, tt []Type) (*Registry, error) {
	if currency == "" {
		return nil, fmt.Errorf("token: registry currency is required")
	}
	if len(tt) == 0 {
		return nil, fmt.Errorf("token: registry needs at least one token type")
	}

	byms := make(map[Symbol]Type, len(tt))
	symbols := make([]Symbol, 0, len(tt))
	for _, t := range tt {
		if t.Symbol == "" {
			return nil, fmt.Errorf("token: token type with empty symbol")
		}
		if _, dup := byms[t.Symbol]; dup {
			return nil, fmt.Errorf("token: duplicate symbol %q", t.Symbol)
		}
		if t.FiatRateMicros <= 0 {
			return nil, fmt.Errorf("token: %s: fiat rate must be positive, got %d", t.Symbol, t.FiatRateMicros)
		}
		if t.BurnBps < 0 || t.BurnBps >= types.BpsScale {
			return nil, fmt.Errorf("token: %s: burn fraction must be in [0, 1), got %d bps", t.Symbol, t.BurnBps)
		}
		for cat, bps := range t.TaskDiscounts {
			if bps <= 0 {
				return nil, fmt.Errorf("token: %s: discount for %q must be positive, got %d bps", t.Symbol, cat, bps)
			}
		}

		byms[t.Symbol] = t
		symbols = append(symbols, t.Symbol)
	}
	sort.Slice(symbols, func(i, j int) bool { return symbols[i] < symbols[j] })

	return &Registry{currency: currency, types: byms, symbols: symbols}, nil
}

// Currency returns the registry's reference fiat currency.
func (r *Registry) Currency() string { return r.currency }

// Get looks up a token type by symbol.
func (r *Registry) Get(sym Symbol) (Type, bool) {
	t, ok := r.types[sym]
	return t, ok
}

// Has reports whether the symbol is registered.
func (r *Registry) Has(sym Symbol) bool {
	_, ok := r.types[sym]
	return ok
}

// Rate returns the fiat value of one unit of the given token.
func (r *Registry) Rate(sym Symbol) (types.Fiat, bool) {
	t, ok := r.types[sym]
	if !ok {
		return types.Zero(r.currency), false
	}
	return t.Rate(r.currency), true
}

// Burn returns the burn fraction of the given token in basis points.
func (r *Registry) Burn(sym Symbol) (int64, bool) {
	t, ok := r.types[sym]
	if !ok {
		return 0, false
	}
	return t.BurnBps, true
}

// Discount returns the task-category cost multiplier in basis points.
func (r *Registry) Discount(sym Symbol, cat Category) (int64, bool) {
	t, ok := r.types[sym]
	if !ok {
		return DefaultDiscountBps, false
	}
	return t.DiscountBps(cat), true
}

// Symbols returns all registered symbols in sorted order.
func (r *Registry) Symbols() []Symbol {
	out := make([]Symbol, len(r.symbols))
	copy(out, r.symbols)
	return out
}

// Len returns the number of registered token types.
func (r *Registry) Len() int { return len(r.types) }

// ──────────────────────────────────────────────────
// Configuration loading
// ──────────────────────────────────────────────────

type registryFile struct {
	Currency string `yaml:"currency"`
	Tokens   []Type `yaml:"tokens"`
}

// Parse builds a registry from YAML configuration bytes:
//
//	currency: usd
//	tokens:
//	  - symbol: AGENT_COIN
//	    name: Agent Coin
//	    fiat_rate_micros: 1000
//	    burn_bps: 0
//	    task_discounts:
//	      code: 9000
func Parse(data []byte) (*Registry, error) {
	var cfg registryFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("token: parse registry config: %w", err)
	}
	return NewRegistry(cfg.Currency, cfg.Tokens)
}

// LoadFile builds a registry from a YAML configuration file.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("token: read registry config: %w", err)
	}
	return Parse(data)
}
