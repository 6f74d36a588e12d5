package id_test

import (
	"strings"
	"testing"

	"github.com/xraph/treasury/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"WalletID", id.NewWalletID, "wlt_"},
		{"ReservationID", id.NewReservationID, "rsv_"},
		{"TransactionID", id.NewTransactionID, "txn_"},
		{"ExchangeOrderID", id.NewExchangeOrderID, "exo_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestNew(t *testing.T) {
	i := id.New(id.PrefixReservation)
	if i.IsNil() {
		t.Fatal("expected non-nil ID")
	}
	if i.Prefix() != id.PrefixReservation {
		t.Errorf("expected prefix %q, got %q", id.PrefixReservation, i.Prefix())
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"WalletID", id.NewWalletID, id.ParseWalletID},
		{"ReservationID", id.NewReservationID, id.ParseReservationID},
		{"TransactionID", id.NewTransactionID, id.ParseTransactionID},
		{"ExchangeOrderID", id.NewExchangeOrderID, id.ParseExchangeOrderID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("round trip: got %q, want %q", parsed.String(), original.String())
			}
		})
	}
}

func TestParsePrefixMismatch(t *testing.T) {
	walletID := id.NewWalletID()

	if _, err := id.ParseReservationID(walletID.String()); err == nil {
		t.Error("expected error parsing a wallet ID as a reservation ID")
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []string{"", "not-a-typeid", "wlt_!!!"}

	for _, s := range tests {
		if _, err := id.Parse(s); err == nil {
			t.Errorf("Parse(%q): expected error", s)
		}
	}
}

func TestNilID(t *testing.T) {
	if !id.Nil.IsNil() {
		t.Error("Nil should report IsNil")
	}
	if id.Nil.String() != "" {
		t.Errorf("Nil string: got %q, want empty", id.Nil.String())
	}

	v, err := id.Nil.Value()
	if err != nil {
		t.Fatal(err)
	}
	if v != nil {
		t.Errorf("Nil driver value: got %v, want nil", v)
	}
}

func TestTextMarshalRoundTrip(t *testing.T) {
	original := id.NewTransactionID()

	data, err := original.MarshalText()
	if err != nil {
		t.Fatal(err)
	}

	var decoded id.ID
	if err := decoded.UnmarshalText(data); err != nil {
		t.Fatal(err)
	}
	if decoded.String() != original.String() {
		t.Errorf("round trip: got %q, want %q", decoded.String(), original.String())
	}

	// Empty text decodes to Nil.
	var empty id.ID
	if err := empty.UnmarshalText(nil); err != nil {
		t.Fatal(err)
	}
	if !empty.IsNil() {
		t.Error("empty text should decode to Nil")
	}
}

func TestScan(t *testing.T) {
	original := id.NewWalletID()

	var scanned id.ID
	if err := scanned.Scan(original.String()); err != nil {
		t.Fatal(err)
	}
	if scanned.String() != original.String() {
		t.Errorf("scan string: got %q, want %q", scanned.String(), original.String())
	}

	var fromNil id.ID
	if err := fromNil.Scan(nil); err != nil {
		t.Fatal(err)
	}
	if !fromNil.IsNil() {
		t.Error("scanning nil should yield Nil")
	}

	var bad id.ID
	if err := bad.Scan(42); err == nil {
		t.Error("expected error scanning an int")
	}
}
