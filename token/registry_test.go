package token

import (
	"testing"

	"github.com/xraph/treasury/types"
)

func validTypes() []Type {
	return []Type{
		{Symbol: "AGENT_COIN", Name: "Agent Coin", FiatRateMicros: 1000},
		{Symbol: "MEME_TOKEN", Name: "Meme Token", FiatRateMicros: 500, BurnBps: 2000,
			TaskDiscounts: map[Category]int64{"code": 9000}},
	}
}

func TestNewRegistry(t *testing.T) {
	r, err := NewRegistry("usd", validTypes())
	if err != nil {
		t.Fatal(err)
	}

	if r.Currency() != "usd" {
		t.Errorf("currency: got %q, want usd", r.Currency())
	}
	if r.Len() != 2 {
		t.Errorf("len: got %d, want 2", r.Len())
	}
	if !r.Has("AGENT_COIN") {
		t.Error("expected AGENT_COIN to be registered")
	}
	if r.Has("GHOST") {
		t.Error("unregistered symbol reported as present")
	}
}

func TestNewRegistryValidation(t *testing.T) {
	tests := []struct {
		name     string
		currency string
		types    []Type
	}{
		{"empty currency", "", validTypes()},
		{"no token types", "usd", nil},
		{"empty symbol", "usd", []Type{{Symbol: "", FiatRateMicros: 1000}}},
		{"duplicate symbol", "usd", []Type{
			{Symbol: "AGENT_COIN", FiatRateMicros: 1000},
			{Symbol: "AGENT_COIN", FiatRateMicros: 2000},
		}},
		{"zero rate", "usd", []Type{{Symbol: "AGENT_COIN", FiatRateMicros: 0}}},
		{"negative rate", "usd", []Type{{Symbol: "AGENT_COIN", FiatRateMicros: -5}}},
		{"negative burn", "usd", []Type{{Symbol: "AGENT_COIN", FiatRateMicros: 1000, BurnBps: -1}}},
		{"burn of one", "usd", []Type{{Symbol: "AGENT_COIN", FiatRateMicros: 1000, BurnBps: types.BpsScale}}},
		{"zero discount", "usd", []Type{{Symbol: "AGENT_COIN", FiatRateMicros: 1000,
			TaskDiscounts: map[Category]int64{"code": 0}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRegistry(tt.currency, tt.types); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLookups(t *testing.T) {
	r, err := NewRegistry("usd", validTypes())
	if err != nil {
		t.Fatal(err)
	}

	rate, ok := r.Rate("AGENT_COIN")
	if !ok || rate.Micros != 1000 || rate.Currency != "usd" {
		t.Errorf("rate: got %+v ok=%v", rate, ok)
	}
	if _, ok := r.Rate("GHOST"); ok {
		t.Error("rate lookup for unknown symbol should miss")
	}

	burn, ok := r.Burn("MEME_TOKEN")
	if !ok || burn != 2000 {
		t.Errorf("burn: got %d ok=%v, want 2000", burn, ok)
	}

	disc, ok := r.Discount("MEME_TOKEN", "code")
	if !ok || disc != 9000 {
		t.Errorf("discount: got %d ok=%v, want 9000", disc, ok)
	}

	// Categories without an entry fall back to the neutral multiplier.
	disc, ok = r.Discount("MEME_TOKEN", "chat")
	if !ok || disc != DefaultDiscountBps {
		t.Errorf("default discount: got %d ok=%v, want %d", disc, ok, DefaultDiscountBps)
	}
	disc, ok = r.Discount("AGENT_COIN", "code")
	if !ok || disc != DefaultDiscountBps {
		t.Errorf("no-map discount: got %d ok=%v, want %d", disc, ok, DefaultDiscountBps)
	}
}

func TestSymbolsSorted(t *testing.T) {
	r, err := NewRegistry("usd", []Type{
		{Symbol: "ZETA", FiatRateMicros: 1},
		{Symbol: "ALPHA", FiatRateMicros: 1},
		{Symbol: "MID", FiatRateMicros: 1},
	})
	if err != nil {
		t.Fatal(err)
	}

	got := r.Symbols()
	want := []Symbol{"ALPHA", "MID", "ZETA"}
	if len(got) != len(want) {
		t.Fatalf("got %d symbols, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("symbols[%d]: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestParse(t *testing.T) {
	data := []byte(`
currency: usd
tokens:
  - symbol: AGENT_COIN
    name: Agent Coin
    fiat_rate_micros: 1000
  - symbol: MEME_TOKEN
    name: Meme Token
    fiat_rate_micros: 500
    burn_bps: 2000
    task_discounts:
      code: 9000
`)

	r, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}

	if r.Len() != 2 {
		t.Errorf("len: got %d, want 2", r.Len())
	}
	typ, ok := r.Get("MEME_TOKEN")
	if !ok {
		t.Fatal("MEME_TOKEN missing after parse")
	}
	if typ.BurnBps != 2000 || typ.FiatRateMicros != 500 {
		t.Errorf("parsed type: got %+v", typ)
	}
	if typ.DiscountBps("code") != 9000 {
		t.Errorf("parsed discount: got %d, want 9000", typ.DiscountBps("code"))
	}
}

func TestParseInvalid(t *testing.T) {
	if _, err := Parse([]byte("currency: [")); err == nil {
		t.Error("expected error for malformed yaml")
	}
	if _, err := Parse([]byte("currency: usd\ntokens: []")); err == nil {
		t.Error("expected error for empty token list")
	}
}
