package treasury_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/treasury"
	"github.com/xraph/treasury/costcalc"
	"github.com/xraph/treasury/exchange"
	"github.com/xraph/treasury/reservation"
	"github.com/xraph/treasury/store/memory"
	"github.com/xraph/treasury/token"
	"github.com/xraph/treasury/transaction"
	"github.com/xraph/treasury/types"
)

// newTestEngine builds an engine over the in-memory store with a small
// three-token economy. One input unit of acme/standard costs exactly one
// fiat micro, so unit counts double as expected micro costs.
func newTestEngine(t *testing.T, opts ...treasury.Option) *treasury.Treasury {
	t.Helper()

	reg, err := token.NewRegistry("usd", []token.Type{
		{Symbol: "AGENT_COIN", Name: "Agent Coin", FiatRateMicros: 1000},
		{Symbol: "MEME_TOKEN", Name: "Meme Token", FiatRateMicros: 500, BurnBps: 2000},
		{Symbol: "PRO_CREDIT", Name: "Pro Credit", FiatRateMicros: 2000,
			TaskDiscounts: map[token.Category]int64{"code": 9000}},
	})
	if err != nil {
		t.Fatal(err)
	}

	card, err := costcalc.NewRateCard("usd", map[string]map[string]costcalc.ModelRate{
		"acme": {
			"standard": {InputPerMtokMicros: 1_000_000, OutputPerMtokMicros: 2_000_000},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	return treasury.New(memory.New(), reg, costcalc.NewCalculator(card), opts...)
}

// callSpec builds a request whose estimated cost is inputUnits micros.
func callSpec(inputUnits int64) reservation.RequestSpec {
	return reservation.RequestSpec{
		Provider:            "acme",
		Model:               "standard",
		EstimatedInputUnits: inputUnits,
	}
}

func TestHoldCaptureSettlement(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	if _, err := eng.Credit(ctx, "alice", "AGENT_COIN", 1000, "signup"); err != nil {
		t.Fatal(err)
	}

	// Hold for an estimated $0.50: 500 AGENT_COIN move to reserved.
	res, err := eng.Hold(ctx, "alice", callSpec(500_000))
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != reservation.StatusAuthorized {
		t.Errorf("status: got %s, want authorized", res.Status)
	}
	if held := res.HeldFiat(); held.Micros != 500_000 {
		t.Errorf("held fiat: got %d, want 500000", held.Micros)
	}

	w, err := eng.Wallet(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if b := w.Balance("AGENT_COIN"); b.Available != 500 || b.Reserved != 500 {
		t.Errorf("after hold: got %+v, want {500 500}", b)
	}

	// Actual usage came in at $0.40: settle 400, return 100.
	result, err := eng.Capture(ctx, res.ID, transaction.Usage{InputUnits: 400_000})
	if err != nil {
		t.Fatal(err)
	}
	if b := result.Balances["AGENT_COIN"]; b.Available != 600 || b.Reserved != 0 {
		t.Errorf("after capture: got %+v, want {600 0}", b)
	}

	txn := result.Transaction
	if txn.Kind != transaction.KindCapture {
		t.Errorf("kind: got %s, want capture", txn.Kind)
	}
	if txn.FiatCost.Micros != 400_000 {
		t.Errorf("fiat cost: got %d, want 400000", txn.FiatCost.Micros)
	}
	if txn.ReservationID != res.ID {
		t.Errorf("reservation link: got %s, want %s", txn.ReservationID, res.ID)
	}
	if txn.ShortfallFiat.IsPositive() {
		t.Errorf("unexpected shortfall: %s", txn.ShortfallFiat)
	}

	got, err := eng.GetReservation(ctx, res.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != reservation.StatusCaptured {
		t.Errorf("final status: got %s, want captured", got.Status)
	}
}

func TestHoldInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	if _, err := eng.Credit(ctx, "alice", "AGENT_COIN", 100, "signup"); err != nil {
		t.Fatal(err)
	}

	_, err := eng.Hold(ctx, "alice", callSpec(500_000))
	if !errors.Is(err, treasury.ErrInsufficientFunds) {
		t.Fatalf("got %v, want ErrInsufficientFunds", err)
	}

	// A failed hold mutates nothing.
	w, err := eng.Wallet(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if b := w.Balance("AGENT_COIN"); b.Available != 100 || b.Reserved != 0 {
		t.Errorf("after failed hold: got %+v, want {100 0}", b)
	}
}

func TestCaptureTerminalReservation(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	if _, err := eng.Credit(ctx, "alice", "AGENT_COIN", 1000, "signup"); err != nil {
		t.Fatal(err)
	}
	res, err := eng.Hold(ctx, "alice", callSpec(500_000))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Capture(ctx, res.ID, transaction.Usage{InputUnits: 400_000}); err != nil {
		t.Fatal(err)
	}

	_, err = eng.Capture(ctx, res.ID, transaction.Usage{InputUnits: 400_000})
	if !errors.Is(err, treasury.ErrInvalidReservationState) {
		t.Errorf("double capture: got %v, want ErrInvalidReservationState", err)
	}
	if !treasury.IsTerminalState(err) {
		t.Errorf("IsTerminalState(%v) = false", err)
	}
}

func TestRelease(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	if _, err := eng.Credit(ctx, "alice", "AGENT_COIN", 1000, "signup"); err != nil {
		t.Fatal(err)
	}
	res, err := eng.Hold(ctx, "alice", callSpec(500_000))
	if err != nil {
		t.Fatal(err)
	}

	released, err := eng.Release(ctx, res.ID)
	if err != nil {
		t.Fatal(err)
	}
	if released.Status != reservation.StatusReleased {
		t.Errorf("status: got %s, want released", released.Status)
	}

	w, err := eng.Wallet(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if b := w.Balance("AGENT_COIN"); b.Available != 1000 || b.Reserved != 0 {
		t.Errorf("after release: got %+v, want {1000 0}", b)
	}

	// Releases leave no ledger entry; only the signup credit is recorded.
	txns, err := eng.ListTransactions(ctx, "alice", transaction.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(txns) != 1 || txns[0].Kind != transaction.KindCredit {
		t.Errorf("ledger: got %d entries", len(txns))
	}

	if _, err := eng.Release(ctx, res.ID); !errors.Is(err, treasury.ErrInvalidReservationState) {
		t.Errorf("double release: got %v, want ErrInvalidReservationState", err)
	}
}

func TestCaptureAfterExpiry(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t, treasury.WithReservationTTL(-time.Minute))

	if _, err := eng.Credit(ctx, "alice", "AGENT_COIN", 1000, "signup"); err != nil {
		t.Fatal(err)
	}
	res, err := eng.Hold(ctx, "alice", callSpec(500_000))
	if err != nil {
		t.Fatal(err)
	}

	_, err = eng.Capture(ctx, res.ID, transaction.Usage{InputUnits: 400_000})
	if !errors.Is(err, treasury.ErrReservationExpired) {
		t.Fatalf("got %v, want ErrReservationExpired", err)
	}

	got, err := eng.GetReservation(ctx, res.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != reservation.StatusExpired {
		t.Errorf("status: got %s, want expired", got.Status)
	}

	w, err := eng.Wallet(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if b := w.Balance("AGENT_COIN"); b.Available != 1000 || b.Reserved != 0 {
		t.Errorf("after expiry: got %+v, want {1000 0}", b)
	}
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t, treasury.WithReservationTTL(-time.Minute))

	if _, err := eng.Credit(ctx, "alice", "AGENT_COIN", 1000, "signup"); err != nil {
		t.Fatal(err)
	}
	res, err := eng.Hold(ctx, "alice", callSpec(500_000))
	if err != nil {
		t.Fatal(err)
	}

	expired, err := eng.Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if expired != 1 {
		t.Errorf("expired: got %d, want 1", expired)
	}

	got, err := eng.GetReservation(ctx, res.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != reservation.StatusExpired {
		t.Errorf("status: got %s, want expired", got.Status)
	}

	w, err := eng.Wallet(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if b := w.Balance("AGENT_COIN"); b.Available != 1000 || b.Reserved != 0 {
		t.Errorf("after sweep: got %+v, want {1000 0}", b)
	}

	// Idempotent: nothing left to expire.
	expired, err = eng.Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if expired != 0 {
		t.Errorf("second sweep: got %d, want 0", expired)
	}
}

func TestCaptureOverage(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	if _, err := eng.Credit(ctx, "alice", "AGENT_COIN", 1000, "signup"); err != nil {
		t.Fatal(err)
	}

	// Held $0.30, actual came in at $0.50: the extra $0.20 is covered from
	// the current available balance.
	res, err := eng.Hold(ctx, "alice", callSpec(300_000))
	if err != nil {
		t.Fatal(err)
	}
	result, err := eng.Capture(ctx, res.ID, transaction.Usage{InputUnits: 500_000})
	if err != nil {
		t.Fatal(err)
	}

	if b := result.Balances["AGENT_COIN"]; b.Available != 500 || b.Reserved != 0 {
		t.Errorf("after capture: got %+v, want {500 0}", b)
	}
	if result.Transaction.FiatCost.Micros != 500_000 {
		t.Errorf("fiat cost: got %d, want 500000", result.Transaction.FiatCost.Micros)
	}
}

func TestCaptureShortfall(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	if _, err := eng.Credit(ctx, "alice", "AGENT_COIN", 500, "signup"); err != nil {
		t.Fatal(err)
	}

	res, err := eng.Hold(ctx, "alice", callSpec(400_000))
	if err != nil {
		t.Fatal(err)
	}

	// Actual $1.00 against $0.40 held and $0.10 spare: $0.50 unrecovered.
	result, err := eng.Capture(ctx, res.ID, transaction.Usage{InputUnits: 1_000_000})
	if !errors.Is(err, treasury.ErrCaptureShortfall) {
		t.Fatalf("got %v, want ErrCaptureShortfall", err)
	}
	if result == nil {
		t.Fatal("shortfall capture must still return the settled result")
	}
	if result.Transaction.ShortfallFiat.Micros != 500_000 {
		t.Errorf("shortfall: got %d, want 500000", result.Transaction.ShortfallFiat.Micros)
	}
	if b := result.Balances["AGENT_COIN"]; b.Available != 0 || b.Reserved != 0 {
		t.Errorf("wallet not drained: got %+v", b)
	}
	if !treasury.IsFundsError(err) {
		t.Errorf("IsFundsError(%v) = false", err)
	}
}

func TestDebtMode(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t, treasury.WithDebtMode(600_000))

	if _, err := eng.Credit(ctx, "alice", "AGENT_COIN", 500, "signup"); err != nil {
		t.Fatal(err)
	}
	res, err := eng.Hold(ctx, "alice", callSpec(400_000))
	if err != nil {
		t.Fatal(err)
	}

	// The same $0.50 shortfall now accrues as debt instead of failing.
	result, err := eng.Capture(ctx, res.ID, transaction.Usage{InputUnits: 1_000_000})
	if err != nil {
		t.Fatal(err)
	}
	if result.Transaction.ShortfallFiat.IsPositive() {
		t.Errorf("shortfall should be absorbed: %s", result.Transaction.ShortfallFiat)
	}

	w, err := eng.Wallet(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if w.DebtMicros != 500_000 {
		t.Errorf("debt: got %d, want 500000", w.DebtMicros)
	}
}

func TestDebtCeiling(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t, treasury.WithDebtMode(100_000))

	// An empty wallet asking past the ceiling is refused outright.
	_, err := eng.Hold(ctx, "alice", callSpec(400_000))
	if !errors.Is(err, treasury.ErrDebtCeiling) {
		t.Errorf("hold: got %v, want ErrDebtCeiling", err)
	}

	_, err = eng.DirectBill(ctx, "alice", callSpec(400_000), transaction.Usage{InputUnits: 400_000})
	if !errors.Is(err, treasury.ErrDebtCeiling) {
		t.Errorf("direct bill: got %v, want ErrDebtCeiling", err)
	}
}

func TestDebtHoldBelowCeiling(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t, treasury.WithDebtMode(1_000_000))

	res, err := eng.Hold(ctx, "alice", callSpec(400_000))
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != reservation.StatusAuthorized {
		t.Errorf("status: got %s, want authorized", res.Status)
	}
	if res.ShortfallFiat.Micros != 400_000 {
		t.Errorf("recorded shortfall: got %d, want 400000", res.ShortfallFiat.Micros)
	}
}

func TestWelcomeGrant(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t, treasury.WithWelcomeGrant("AGENT_COIN", 250))

	w, err := eng.InitializeWallet(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if b := w.Balance("AGENT_COIN"); b.Available != 250 {
		t.Errorf("grant: got %d, want 250", b.Available)
	}

	txns, err := eng.ListTransactions(ctx, "alice", transaction.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(txns) != 1 {
		t.Fatalf("ledger: got %d entries, want 1", len(txns))
	}
	if txns[0].Kind != transaction.KindCredit || txns[0].CreditAmount != 250 {
		t.Errorf("grant entry: got %+v", txns[0])
	}

	// Idempotent: a second initialize neither re-grants nor re-creates.
	again, err := eng.InitializeWallet(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != w.ID {
		t.Errorf("wallet recreated: %s != %s", again.ID, w.ID)
	}
	if b := again.Balance("AGENT_COIN"); b.Available != 250 {
		t.Errorf("balance after second init: got %d, want 250", b.Available)
	}
}

func TestCreditValidation(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	if _, err := eng.Credit(ctx, "alice", "AGENT_COIN", -5, "oops"); !errors.Is(err, treasury.ErrInvalidInput) {
		t.Errorf("negative amount: got %v, want ErrInvalidInput", err)
	}
	if _, err := eng.Credit(ctx, "alice", "GHOST", 100, "oops"); !errors.Is(err, treasury.ErrUnknownToken) {
		t.Errorf("unknown token: got %v, want ErrUnknownToken", err)
	}
}

func TestDirectBill(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	if _, err := eng.Credit(ctx, "alice", "AGENT_COIN", 1000, "signup"); err != nil {
		t.Fatal(err)
	}

	txn, err := eng.DirectBill(ctx, "alice", callSpec(100_000), transaction.Usage{InputUnits: 100_000})
	if err != nil {
		t.Fatal(err)
	}
	if txn.Kind != transaction.KindDirect {
		t.Errorf("kind: got %s, want direct", txn.Kind)
	}
	if txn.FiatCost.Micros != 100_000 {
		t.Errorf("fiat cost: got %d, want 100000", txn.FiatCost.Micros)
	}
	if !txn.ReservationID.IsNil() {
		t.Errorf("direct bill should not link a reservation: %s", txn.ReservationID)
	}

	w, err := eng.Wallet(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if b := w.Balance("AGENT_COIN"); b.Available != 900 {
		t.Errorf("balance: got %d, want 900", b.Available)
	}

	_, err = eng.DirectBill(ctx, "broke", callSpec(100_000), transaction.Usage{InputUnits: 100_000})
	if !errors.Is(err, treasury.ErrInsufficientFunds) {
		t.Errorf("unfunded: got %v, want ErrInsufficientFunds", err)
	}
}

func TestBurnAccounting(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	if _, err := eng.Credit(ctx, "alice", "MEME_TOKEN", 1000, "signup"); err != nil {
		t.Fatal(err)
	}

	// Covering $0.40 with a 20% burn token debits 800 + 200 burn.
	res, err := eng.Hold(ctx, "alice", callSpec(400_000))
	if err != nil {
		t.Fatal(err)
	}
	result, err := eng.Capture(ctx, res.ID, transaction.Usage{InputUnits: 400_000})
	if err != nil {
		t.Fatal(err)
	}

	if b := result.Balances["MEME_TOKEN"]; b.Available != 0 || b.Reserved != 0 {
		t.Errorf("balances: got %+v, want {0 0}", b)
	}

	var spent, burned int64
	for _, e := range result.Transaction.FinalMix {
		if e.Token == "MEME_TOKEN" {
			spent += e.Amount
			burned += e.BurnAmount
		}
	}
	if spent != 800 || burned != 200 {
		t.Errorf("final mix: got spent=%d burned=%d, want 800/200", spent, burned)
	}
}

func TestExchange(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t) // default 200 bps fee

	if _, err := eng.Credit(ctx, "alice", "AGENT_COIN", 1000, "signup"); err != nil {
		t.Fatal(err)
	}

	// 500 AGENT_COIN = $0.50; 2% fee leaves $0.49 = 980 MEME_TOKEN.
	order, err := eng.Exchange(ctx, "alice", "AGENT_COIN", "MEME_TOKEN", 500)
	if err != nil {
		t.Fatal(err)
	}
	if order.ToAmount != 980 {
		t.Errorf("to amount: got %d, want 980", order.ToAmount)
	}
	if order.FiatValue.Micros != 500_000 || order.FeeFiat.Micros != 10_000 {
		t.Errorf("fiat/fee: got %d/%d, want 500000/10000", order.FiatValue.Micros, order.FeeFiat.Micros)
	}

	w, err := eng.Wallet(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if a := w.Available("AGENT_COIN"); a != 500 {
		t.Errorf("from balance: got %d, want 500", a)
	}
	if a := w.Available("MEME_TOKEN"); a != 980 {
		t.Errorf("to balance: got %d, want 980", a)
	}

	orders, err := eng.ListExchangeOrders(ctx, "alice", exchange.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(orders) != 1 || orders[0].ID != order.ID {
		t.Errorf("order history: got %d entries", len(orders))
	}
}

func TestExchangeValidation(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	if _, err := eng.Credit(ctx, "alice", "AGENT_COIN", 100, "signup"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		from, to token.Symbol
		amount   int64
		want     error
	}{
		{"same token", "AGENT_COIN", "AGENT_COIN", 50, treasury.ErrSameToken},
		{"zero amount", "AGENT_COIN", "MEME_TOKEN", 0, treasury.ErrInvalidInput},
		{"unknown from", "GHOST", "MEME_TOKEN", 50, treasury.ErrUnknownToken},
		{"unknown to", "AGENT_COIN", "GHOST", 50, treasury.ErrUnknownToken},
		{"insufficient", "AGENT_COIN", "MEME_TOKEN", 500, treasury.ErrInsufficientFunds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := eng.Exchange(ctx, "alice", tt.from, tt.to, tt.amount); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}

	// Reserved balances are never touchable by an exchange.
	if _, err := eng.Hold(ctx, "alice", callSpec(100_000)); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Exchange(ctx, "alice", "AGENT_COIN", "MEME_TOKEN", 100); !errors.Is(err, treasury.ErrInsufficientFunds) {
		t.Errorf("reserved funds: got %v, want ErrInsufficientFunds", err)
	}
}

func TestExchangeZeroCredit(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	if _, err := eng.Credit(ctx, "alice", "MEME_TOKEN", 10, "signup"); err != nil {
		t.Fatal(err)
	}

	// 1 MEME_TOKEN is $0.0005; after the fee it floors to zero PRO_CREDIT,
	// which would destroy the value outright.
	_, err := eng.Exchange(ctx, "alice", "MEME_TOKEN", "PRO_CREDIT", 1)
	if !errors.Is(err, treasury.ErrInvalidInput) {
		t.Fatalf("got %v, want ErrInvalidInput", err)
	}

	w, err := eng.Wallet(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if a := w.Available("MEME_TOKEN"); a != 10 {
		t.Errorf("refused exchange mutated balance: got %d, want 10", a)
	}
}

func TestQuoteRequest(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	// No wallet: unaffordable, with a top-up suggestion. Quotes never
	// create wallets.
	q, err := eng.QuoteRequest(ctx, "ghost", callSpec(500_000))
	if err != nil {
		t.Fatal(err)
	}
	if q.CanAfford {
		t.Error("empty wallet quoted as affordable")
	}
	if q.ShortfallFiat.Micros != 500_000 {
		t.Errorf("shortfall: got %d, want 500000", q.ShortfallFiat.Micros)
	}
	if q.Suggestion == nil {
		t.Fatal("expected a suggestion")
	}
	if q.Suggestion.TopUpToken != "AGENT_COIN" || q.Suggestion.TopUpAmount != 500 {
		t.Errorf("suggestion: got %+v", q.Suggestion)
	}
	if _, err := eng.Wallet(ctx, "ghost"); !treasury.IsNotFound(err) {
		t.Errorf("quote created a wallet: %v", err)
	}

	if _, err := eng.Credit(ctx, "alice", "AGENT_COIN", 1000, "signup"); err != nil {
		t.Fatal(err)
	}
	q, err = eng.QuoteRequest(ctx, "alice", callSpec(500_000))
	if err != nil {
		t.Fatal(err)
	}
	if !q.CanAfford || len(q.Mix) != 1 {
		t.Errorf("funded quote: got %+v", q)
	}
	if q.Suggestion != nil {
		t.Error("affordable quote should carry no suggestion")
	}
}

func TestQuoteSuggestsExchange(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	// A wallet full of burn-heavy tokens cannot cover $1.00 for a code
	// task, but exchanging into the discounted token would.
	if _, err := eng.Credit(ctx, "alice", "MEME_TOKEN", 2000, "signup"); err != nil {
		t.Fatal(err)
	}

	spec := callSpec(1_000_000)
	spec.TaskCategory = "code"
	q, err := eng.QuoteRequest(ctx, "alice", spec)
	if err != nil {
		t.Fatal(err)
	}
	if q.CanAfford {
		t.Fatal("expected unaffordable quote")
	}
	if q.Suggestion == nil {
		t.Fatal("expected a suggestion")
	}
	if q.Suggestion.ExchangeFrom != "MEME_TOKEN" || q.Suggestion.ExchangeTo != "PRO_CREDIT" {
		t.Errorf("exchange suggestion: got %+v", q.Suggestion)
	}
	if q.Suggestion.TopUpToken != "PRO_CREDIT" {
		t.Errorf("top-up token: got %s, want PRO_CREDIT", q.Suggestion.TopUpToken)
	}
}

func TestReport(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	if _, err := eng.Credit(ctx, "alice", "AGENT_COIN", 1000, "signup"); err != nil {
		t.Fatal(err)
	}
	res, err := eng.Hold(ctx, "alice", callSpec(400_000))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Capture(ctx, res.ID, transaction.Usage{InputUnits: 400_000}); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.DirectBill(ctx, "alice", callSpec(100_000), transaction.Usage{InputUnits: 100_000}); err != nil {
		t.Fatal(err)
	}

	report, err := eng.Report(ctx, "alice", time.Time{}, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if report.TotalFiat.Micros != 500_000 {
		t.Errorf("total fiat: got %d, want 500000", report.TotalFiat.Micros)
	}
	if report.Settlements != 2 {
		t.Errorf("settlements: got %d, want 2", report.Settlements)
	}
	// Credits add balance; they never count as spend.
	if report.PerTokenSpent["AGENT_COIN"] != 500 {
		t.Errorf("per-token spend: got %d, want 500", report.PerTokenSpent["AGENT_COIN"])
	}

	// An empty window folds to zero.
	future := time.Now().Add(time.Hour)
	report, err = eng.Report(ctx, "alice", future, future.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if report.Settlements != 0 || report.TotalFiat.Micros != 0 {
		t.Errorf("future window: got %+v", report)
	}
}

func TestListTransactionsFilters(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	if _, err := eng.Credit(ctx, "alice", "AGENT_COIN", 1000, "signup"); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.DirectBill(ctx, "alice", callSpec(100_000), transaction.Usage{InputUnits: 100_000}); err != nil {
		t.Fatal(err)
	}

	credits, err := eng.ListTransactions(ctx, "alice", transaction.ListOpts{Kind: transaction.KindCredit})
	if err != nil {
		t.Fatal(err)
	}
	if len(credits) != 1 || credits[0].Kind != transaction.KindCredit {
		t.Errorf("credit filter: got %d entries", len(credits))
	}

	none, err := eng.ListTransactions(ctx, "alice", transaction.ListOpts{
		Start: time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("future window: got %d entries, want 0", len(none))
	}
}

func TestConservation(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	if _, err := eng.Credit(ctx, "alice", "AGENT_COIN", 1000, "signup"); err != nil {
		t.Fatal(err)
	}

	// Hold then release: a full round trip conserves every unit.
	res, err := eng.Hold(ctx, "alice", callSpec(500_000))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Release(ctx, res.ID); err != nil {
		t.Fatal(err)
	}

	// Hold then capture: units leave only through the settled mix.
	res, err = eng.Hold(ctx, "alice", callSpec(500_000))
	if err != nil {
		t.Fatal(err)
	}
	result, err := eng.Capture(ctx, res.ID, transaction.Usage{InputUnits: 300_000})
	if err != nil {
		t.Fatal(err)
	}

	var settled int64
	for _, e := range result.Transaction.FinalMix {
		settled += e.TotalDebit()
	}
	b := result.Balances["AGENT_COIN"]
	if b.Available+b.Reserved+settled != 1000 {
		t.Errorf("conservation violated: %d held + %d settled != 1000", b.Available+b.Reserved, settled)
	}
}

func TestStartStop(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	if err := eng.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := eng.Stop(); err != nil {
		t.Fatal(err)
	}
}

func TestStartCurrencyMismatch(t *testing.T) {
	reg, err := token.NewRegistry("usd", []token.Type{
		{Symbol: "AGENT_COIN", FiatRateMicros: 1000},
	})
	if err != nil {
		t.Fatal(err)
	}
	card, err := costcalc.NewRateCard("eur", map[string]map[string]costcalc.ModelRate{
		"acme": {"standard": {InputPerMtokMicros: 1_000_000}},
	})
	if err != nil {
		t.Fatal(err)
	}

	eng := treasury.New(memory.New(), reg, costcalc.NewCalculator(card))
	if err := eng.Start(context.Background()); !errors.Is(err, treasury.ErrInvalidInput) {
		t.Errorf("got %v, want ErrInvalidInput", err)
	}
}

func TestHoldUnknownRateCard(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	spec := callSpec(100_000)
	spec.Model = "unpriced"
	if _, err := eng.Hold(ctx, "alice", spec); !errors.Is(err, treasury.ErrUnknownRateCard) {
		t.Errorf("got %v, want ErrUnknownRateCard", err)
	}
	// Pricing fails closed before any wallet is touched.
	if _, err := eng.Wallet(ctx, "alice"); !treasury.IsNotFound(err) {
		t.Errorf("failed hold created a wallet: %v", err)
	}
}

func TestFiatReExports(t *testing.T) {
	if got := treasury.USDCents(50); got.Micros != 500_000 || got.Currency != "usd" {
		t.Errorf("USDCents: got %+v", got)
	}
	sum := treasury.Sum(treasury.USD(100), treasury.USD(200))
	if sum.Micros != 300 {
		t.Errorf("Sum: got %d, want 300", sum.Micros)
	}
	var _ types.Fiat = treasury.Zero("usd")
}
