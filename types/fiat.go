// Package types provides common types used across Treasury.
package types

import (
	"encoding/json"
	"fmt"
	"math/bits"
	"strings"
)

// BpsScale is the denominator for basis-point fractions (burn fractions,
// task discounts, exchange fees). 10000 bps = 1.0.
const BpsScale = 10000

// Fiat represents a reference-currency value in micro-units (one millionth
// of the major unit). API call costs are routinely sub-cent, so cents are
// too coarse; micro-units keep every burn and exchange exact.
// All arithmetic is integer-only — no floating point.
//
// Examples:
//   - USD(500_000) = $0.50
//   - USD(1_000_000) = $1.00
//   - USDCents(49) = $0.49
type Fiat struct {
	Micros   int64  `json:"micros"`   // Micro-units (1e-6 of the major unit)
	Currency string `json:"currency"` // ISO 4217 lowercase: "usd", "eur", "gbp"
}

// Common constructors

// USD creates a Fiat value in US Dollars (micro-dollars).
func USD(micros int64) Fiat { return Fiat{Micros: micros, Currency: "usd"} }

// EUR creates a Fiat value in Euros (micro-euros).
func EUR(micros int64) Fiat { return Fiat{Micros: micros, Currency: "eur"} }

// GBP creates a Fiat value in British Pounds (micro-pounds).
func GBP(micros int64) Fiat { return Fiat{Micros: micros, Currency: "gbp"} }

// USDCents creates a Fiat value from whole US cents.
func USDCents(cents int64) Fiat { return USD(cents * 10_000) }

// Zero returns a zero Fiat value in the specified currency.
func Zero(currency string) Fiat { return Fiat{Micros: 0, Currency: strings.ToLower(currency)} }

// Arithmetic operations

// Add adds two Fiat values. Panics if currencies don't match.
func (f Fiat) Add(other Fiat) Fiat {
	f.assertSameCurrency(other)
	return Fiat{Micros: f.Micros + other.Micros, Currency: f.Currency}
}

// Subtract subtracts another Fiat value. Panics if currencies don't match.
func (f Fiat) Subtract(other Fiat) Fiat {
	f.assertSameCurrency(other)
	return Fiat{Micros: f.Micros - other.Micros, Currency: f.Currency}
}

// Multiply multiplies the Fiat by a quantity.
func (f Fiat) Multiply(qty int64) Fiat {
	return Fiat{Micros: f.Micros * qty, Currency: f.Currency}
}

// Divide divides the Fiat by a divisor. Uses integer division.
func (f Fiat) Divide(divisor int64) Fiat {
	if divisor == 0 {
		panic("fiat: division by zero")
	}
	return Fiat{Micros: f.Micros / divisor, Currency: f.Currency}
}

// MulBps scales the Fiat by a basis-point fraction, rounding down.
// USD(1_000_000).MulBps(200) = USD(20_000), i.e. 2% of $1.00.
func (f Fiat) MulBps(bps int64) Fiat {
	return Fiat{Micros: MulDiv(f.Micros, bps, BpsScale), Currency: f.Currency}
}

// Negate returns the negative of the Fiat value.
func (f Fiat) Negate() Fiat {
	return Fiat{Micros: -f.Micros, Currency: f.Currency}
}

// Abs returns the absolute value.
func (f Fiat) Abs() Fiat {
	if f.Micros < 0 {
		return Fiat{Micros: -f.Micros, Currency: f.Currency}
	}
	return f
}

// Comparison methods

// IsZero returns true if the amount is zero.
func (f Fiat) IsZero() bool { return f.Micros == 0 }

// IsPositive returns true if the amount is greater than zero.
func (f Fiat) IsPositive() bool { return f.Micros > 0 }

// IsNegative returns true if the amount is less than zero.
func (f Fiat) IsNegative() bool { return f.Micros < 0 }

// Equal returns true if both Fiat values are equal (same amount and currency).
func (f Fiat) Equal(other Fiat) bool {
	return f.Micros == other.Micros && f.Currency == other.Currency
}

// LessThan returns true if this Fiat is less than other. Panics if currencies don't match.
func (f Fiat) LessThan(other Fiat) bool {
	f.assertSameCurrency(other)
	return f.Micros < other.Micros
}

// GreaterThan returns true if this Fiat is greater than other. Panics if currencies don't match.
func (f Fiat) GreaterThan(other Fiat) bool {
	f.assertSameCurrency(other)
	return f.Micros > other.Micros
}

// Min returns the smaller of two Fiat values. Panics if currencies don't match.
func (f Fiat) Min(other Fiat) Fiat {
	f.assertSameCurrency(other)
	if f.Micros < other.Micros {
		return f
	}
	return other
}

// Max returns the larger of two Fiat values. Panics if currencies don't match.
func (f Fiat) Max(other Fiat) Fiat {
	f.assertSameCurrency(other)
	if f.Micros > other.Micros {
		return f
	}
	return other
}

// Formatting methods

// FormatMajor returns the major unit string without currency symbol.
// Trailing zeros beyond two decimal places are trimmed:
// "0.50" for USD(500_000), "0.000125" for USD(125).
func (f Fiat) FormatMajor() string {
	isNegative := f.Micros < 0
	abs := f.Micros
	if isNegative {
		abs = -abs
	}

	major := abs / 1_000_000
	minor := abs % 1_000_000

	result := fmt.Sprintf("%d.%06d", major, minor)
	// Trim to at most 6, at least 2 decimals.
	for strings.HasSuffix(result, "0") && len(result)-strings.IndexByte(result, '.') > 3 {
		result = result[:len(result)-1]
	}

	if isNegative {
		return "-" + result
	}
	return result
}

// String returns a human-readable string with currency symbol.
// Examples: "$0.50", "€1.25", "£0.000125"
func (f Fiat) String() string {
	symbol := currencySymbol(f.Currency)
	return symbol + f.FormatMajor()
}

// MarshalJSON implements json.Marshaler.
func (f Fiat) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Micros   int64  `json:"micros"`
		Currency string `json:"currency"`
		Display  string `json:"display"`
	}{
		Micros:   f.Micros,
		Currency: f.Currency,
		Display:  f.String(),
	})
}

// UnmarshalJSON implements json.Unmarshaler, accepting both the full object
// form produced by MarshalJSON and the bare {micros, currency} pair.
func (f *Fiat) UnmarshalJSON(data []byte) error {
	var raw struct {
		Micros   int64  `json:"micros"`
		Currency string `json:"currency"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	f.Micros = raw.Micros
	f.Currency = raw.Currency
	return nil
}

// Helper functions

// assertSameCurrency panics if currencies don't match.
func (f Fiat) assertSameCurrency(other Fiat) {
	if f.Currency != other.Currency {
		panic(fmt.Sprintf("fiat: currency mismatch: %s != %s", f.Currency, other.Currency))
	}
}

// currencySymbol returns the symbol for a currency code.
func currencySymbol(currency string) string {
	symbols := map[string]string{
		"usd": "$",
		"eur": "€",
		"gbp": "£",
		"jpy": "¥",
		"cad": "C$",
		"aud": "A$",
	}
	if sym, ok := symbols[strings.ToLower(currency)]; ok {
		return sym
	}
	return strings.ToUpper(currency) + " "
}

// Sum calculates the sum of multiple Fiat values. All must have the same currency.
func Sum(values ...Fiat) Fiat {
	if len(values) == 0 {
		return Zero("usd")
	}

	result := values[0]
	for i := 1; i < len(values); i++ {
		result = result.Add(values[i])
	}
	return result
}

// MulDiv computes a*num/den with a 128-bit intermediate, rounding toward
// zero. Burn gross-ups and discount adjustments multiply token amounts by
// micro-unit rates, which overflows int64 long before the result does.
// Panics if den is zero or the result overflows int64.
func MulDiv(a, num, den int64) int64 {
	if den == 0 {
		panic("fiat: muldiv division by zero")
	}

	neg := false
	ua, un, ud := uint64(a), uint64(num), uint64(den)
	if a < 0 {
		neg = !neg
		ua = uint64(-a)
	}
	if num < 0 {
		neg = !neg
		un = uint64(-num)
	}
	if den < 0 {
		neg = !neg
		ud = uint64(-den)
	}

	hi, lo := bits.Mul64(ua, un)
	if hi >= ud {
		panic("fiat: muldiv overflow")
	}
	q, _ := bits.Div64(hi, lo, ud)
	if q > uint64(1<<63-1) {
		panic("fiat: muldiv overflow")
	}

	if neg {
		return -int64(q)
	}
	return int64(q)
}

// MulDivCeil is MulDiv rounding away from zero.
func MulDivCeil(a, num, den int64) int64 {
	q := MulDiv(a, num, den)
	if r := mulDivRem(a, num, den); r != 0 {
		if (a < 0) != (num < 0) != (den < 0) {
			return q - 1
		}
		return q + 1
	}
	return q
}

// mulDivRem returns the remainder of the 128-bit a*num/den.
func mulDivRem(a, num, den int64) int64 {
	if den == 0 {
		panic("fiat: muldiv division by zero")
	}
	ua, un, ud := uint64(a), uint64(num), uint64(den)
	if a < 0 {
		ua = uint64(-a)
	}
	if num < 0 {
		un = uint64(-num)
	}
	if den < 0 {
		ud = uint64(-den)
	}
	hi, lo := bits.Mul64(ua, un)
	_, r := bits.Div64(hi, lo, ud)
	return int64(r)
}
