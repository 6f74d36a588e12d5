// Package costcalc prices API calls against a provider/model rate card.
//
// The same Estimate code path serves both estimated and actual unit counts,
// so hold-time and capture-time costs can never drift apart.
package costcalc

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/xraph/treasury/types"
)

// ErrUnknownRateCard is returned when a provider/model pair is not priced.
// Pricing fails closed: no hold is ever created for an unpriced request.
var ErrUnknownRateCard = errors.New("costcalc: unknown provider/model rate card")

// UnitsPerMtok is the unit count one rate entry prices (one million tokens).
const UnitsPerMtok = 1_000_000

// ModelRate prices one model of one provider, in fiat micro-units per
// million units.
type ModelRate struct {
	InputPerMtokMicros  int64 `json:"input_per_mtok_micros" yaml:"input_per_mtok_micros"`
	OutputPerMtokMicros int64 `json:"output_per_mtok_micros" yaml:"output_per_mtok_micros"`
}

// RateCard is the static pricing table. Read-only after construction; rate
// updates are a configuration reload.
type RateCard struct {
	currency string
	rates    map[string]map[string]ModelRate // provider → model → rate
}

// NewRateCard validates and builds a rate card.
func NewRateCard(currency string, rates map[string]map[string]ModelRate) (*RateCard, error) {
	if currency == "" {
		return nil, fmt.Errorf("costcalc: rate card currency is required")
	}
	for provider, models := range rates {
		if provider == "" {
			return nil, fmt.Errorf("costcalc: rate card has an empty provider name")
		}
		for model, r := range models {
			if model == "" {
				return nil, fmt.Errorf("costcalc: provider %s has an empty model name", provider)
			}
			if r.InputPerMtokMicros < 0 || r.OutputPerMtokMicros < 0 {
				return nil, fmt.Errorf("costcalc: %s/%s: negative rate", provider, model)
			}
		}
	}
	return &RateCard{currency: currency, rates: rates}, nil
}

// Currency returns the rate card's reference fiat currency.
func (rc *RateCard) Currency() string { return rc.currency }

// Lookup returns the rate for a provider/model pair.
func (rc *RateCard) Lookup(provider, model string) (ModelRate, bool) {
	models, ok := rc.rates[provider]
	if !ok {
		return ModelRate{}, false
	}
	r, ok := models[model]
	return r, ok
}

// Calculator prices requests against a rate card. Pure; no state, no side
// effects.
type Calculator struct {
	card *RateCard
}

// NewCalculator creates a Calculator over the given rate card.
func NewCalculator(card *RateCard) *Calculator {
	return &Calculator{card: card}
}

// Currency returns the calculator's reference fiat currency.
func (c *Calculator) Currency() string { return c.card.currency }

// Estimate prices a request. inputUnits and outputUnits may be estimated or
// actual counts; the arithmetic is identical. Each component rounds up to
// the next fiat micro-unit so usage is never under-billed.
func (c *Calculator) Estimate(provider, model string, inputUnits, outputUnits int64) (types.Fiat, error) {
	rate, ok := c.card.Lookup(provider, model)
	if !ok {
		return types.Zero(c.card.currency), fmt.Errorf("%w: %s/%s", ErrUnknownRateCard, provider, model)
	}
	if inputUnits < 0 || outputUnits < 0 {
		return types.Zero(c.card.currency), fmt.Errorf("costcalc: negative unit count")
	}

	in := types.MulDivCeil(inputUnits, rate.InputPerMtokMicros, UnitsPerMtok)
	out := types.MulDivCeil(outputUnits, rate.OutputPerMtokMicros, UnitsPerMtok)

	return types.Fiat{Micros: in + out, Currency: c.card.currency}, nil
}

// ──────────────────────────────────────────────────
// Configuration loading
// ──────────────────────────────────────────────────

type rateCardFile struct {
	Currency  string                          `yaml:"currency"`
	Providers map[string]map[string]ModelRate `yaml:"providers"`
}

// Parse builds a rate card from YAML configuration bytes:
//
//	currency: usd
//	providers:
//	  anthropic:
//	    claude-sonnet:
//	      input_per_mtok_micros: 3000000
//	      output_per_mtok_micros: 15000000
func Parse(data []byte) (*RateCard, error) {
	var cfg rateCardFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("costcalc: parse rate card config: %w", err)
	}
	return NewRateCard(cfg.Currency, cfg.Providers)
}

// LoadFile builds a rate card from a YAML configuration file.
func LoadFile(path string) (*RateCard, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("costcalc: read rate card config: %w", err)
	}
	return Parse(data)
}
