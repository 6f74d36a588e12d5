package types

import (
	"encoding/json"
	"testing"
)

func TestFiatConstructors(t *testing.T) {
	tests := []struct {
		name     string
		fiat     Fiat
		micros   int64
		currency string
		display  string
	}{
		{"USD", USD(500_000), 500_000, "usd", "$0.50"},
		{"USD whole", USD(1_000_000), 1_000_000, "usd", "$1.00"},
		{"EUR", EUR(1_250_000), 1_250_000, "eur", "€1.25"},
		{"GBP sub-cent", GBP(125), 125, "gbp", "£0.000125"},
		{"USDCents", USDCents(49), 490_000, "usd", "$0.49"},
		{"Zero USD", Zero("USD"), 0, "usd", "$0.00"},
		{"Negative", USD(-500_000), -500_000, "usd", "$-0.50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.fiat.Micros != tt.micros {
				t.Errorf("Micros: got %d, want %d", tt.fiat.Micros, tt.micros)
			}
			if tt.fiat.Currency != tt.currency {
				t.Errorf("Currency: got %s, want %s", tt.fiat.Currency, tt.currency)
			}
			if tt.fiat.String() != tt.display {
				t.Errorf("Display: got %s, want %s", tt.fiat.String(), tt.display)
			}
		})
	}
}

func TestFiatArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		op       func() Fiat
		expected Fiat
	}{
		{"Add", func() Fiat { return USD(100).Add(USD(200)) }, USD(300)},
		{"Subtract", func() Fiat { return USD(500).Subtract(USD(200)) }, USD(300)},
		{"Multiply", func() Fiat { return USD(100).Multiply(3) }, USD(300)},
		{"Divide", func() Fiat { return USD(900).Divide(3) }, USD(300)},
		{"Negate", func() Fiat { return USD(100).Negate() }, USD(-100)},
		{"Abs positive", func() Fiat { return USD(100).Abs() }, USD(100)},
		{"Abs negative", func() Fiat { return USD(-100).Abs() }, USD(100)},
		{"MulBps two percent", func() Fiat { return USD(1_000_000).MulBps(200) }, USD(20_000)},
		{"MulBps rounds down", func() Fiat { return USD(99).MulBps(100) }, USD(0)},
		{"Complex", func() Fiat {
			return USD(1000).Add(USD(500)).Multiply(2).Subtract(USD(1000))
		}, USD(2000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.op()
			if !result.Equal(tt.expected) {
				t.Errorf("Got %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestFiatCurrencyMismatch(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for currency mismatch")
		}
	}()

	// This should panic
	_ = USD(100).Add(EUR(100))
}

func TestFiatDivisionByZero(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for division by zero")
		}
	}()

	// This should panic
	_ = USD(100).Divide(0)
}

func TestFiatComparison(t *testing.T) {
	tests := []struct {
		name    string
		a, b    Fiat
		less    bool
		greater bool
		equal   bool
	}{
		{"Equal", USD(100), USD(100), false, false, true},
		{"Less", USD(50), USD(100), true, false, false},
		{"Greater", USD(200), USD(100), false, true, false},
		{"Zero equal", USD(0), Zero("usd"), false, false, true},
		{"Negative less", USD(-100), USD(100), true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.LessThan(tt.b); got != tt.less {
				t.Errorf("LessThan: got %v, want %v", got, tt.less)
			}
			if got := tt.a.GreaterThan(tt.b); got != tt.greater {
				t.Errorf("GreaterThan: got %v, want %v", got, tt.greater)
			}
			if got := tt.a.Equal(tt.b); got != tt.equal {
				t.Errorf("Equal: got %v, want %v", got, tt.equal)
			}
		})
	}
}

func TestFiatJSONRoundTrip(t *testing.T) {
	original := USD(1_234_567)

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatal(err)
	}

	var decoded Fiat
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if !decoded.Equal(original) {
		t.Errorf("Round trip: got %v, want %v", decoded, original)
	}

	// The bare {micros, currency} form decodes too.
	var bare Fiat
	if err := json.Unmarshal([]byte(`{"micros":500000,"currency":"usd"}`), &bare); err != nil {
		t.Fatal(err)
	}
	if !bare.Equal(USD(500_000)) {
		t.Errorf("Bare form: got %v, want %v", bare, USD(500_000))
	}
}

func TestSum(t *testing.T) {
	got := Sum(USD(100), USD(200), USD(300))
	if !got.Equal(USD(600)) {
		t.Errorf("Sum: got %v, want %v", got, USD(600))
	}

	if !Sum().IsZero() {
		t.Error("Sum of nothing should be zero")
	}
}

func TestMulDiv(t *testing.T) {
	tests := []struct {
		name        string
		a, num, den int64
		want        int64
	}{
		{"Simple", 10, 3, 2, 15},
		{"Truncates", 10, 1, 3, 3},
		{"Negative a", -10, 1, 3, -3},
		{"Negative num", 10, -1, 3, -3},
		{"Double negative", -10, -1, 3, 3},
		{"Zero", 0, 5, 3, 0},
		// 5e12 * 4e12 overflows int64 by a wide margin; the 128-bit
		// intermediate keeps the quotient exact.
		{"Large intermediate", 5_000_000_000_000, 4_000_000_000_000, 10_000_000_000_000, 2_000_000_000_000},
		{"Bps scale", 1_000_000, 200, BpsScale, 20_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MulDiv(tt.a, tt.num, tt.den); got != tt.want {
				t.Errorf("MulDiv(%d, %d, %d): got %d, want %d", tt.a, tt.num, tt.den, got, tt.want)
			}
		})
	}
}

func TestMulDivCeil(t *testing.T) {
	tests := []struct {
		name        string
		a, num, den int64
		want        int64
	}{
		{"Exact", 10, 3, 2, 15},
		{"Rounds up", 10, 1, 3, 4},
		{"Negative rounds away", -10, 1, 3, -4},
		{"Zero", 0, 5, 3, 0},
		{"One unit", 1, 1, 1_000_000, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MulDivCeil(tt.a, tt.num, tt.den); got != tt.want {
				t.Errorf("MulDivCeil(%d, %d, %d): got %d, want %d", tt.a, tt.num, tt.den, got, tt.want)
			}
		})
	}
}

func TestMulDivOverflowPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for overflow")
		}
	}()

	_ = MulDiv(1<<62, 1<<62, 1)
}

func TestMulDivDivisionByZero(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for division by zero")
		}
	}()

	_ = MulDiv(1, 1, 0)
}
