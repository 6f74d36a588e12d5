package memory

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/treasury/exchange"
	"github.com/xraph/treasury/id"
	"github.com/xraph/treasury/mix"
	"github.com/xraph/treasury/transaction"
	"github.com/xraph/treasury/types"
)

func TestTransactionIsolation(t *testing.T) {
	ctx := context.Background()
	s := New()

	txn := &transaction.Transaction{
		Entity:    types.NewEntity(),
		ID:        id.NewTransactionID(),
		UserID:    "alice",
		Kind:      transaction.KindCapture,
		FinalMix:  []mix.Entry{{Token: "AGENT_COIN", Amount: 400, RateMicros: 1000}},
		FiatCost:  types.USD(400_000),
		Status:    transaction.StatusCompleted,
		Timestamp: time.Now(),
	}
	if err := s.AppendTransaction(ctx, txn); err != nil {
		t.Fatal(err)
	}

	// Mutating the appended value must not reach the store.
	txn.FinalMix[0].Amount = 999
	txn.FiatCost = types.USD(1)

	got, err := s.GetTransaction(ctx, txn.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.FinalMix[0].Amount != 400 || got.FiatCost.Micros != 400_000 {
		t.Errorf("store shares caller memory: got %+v", got)
	}

	// Mutating a read result must not reach the store either.
	got.FinalMix[0].Amount = 7
	listed, err := s.ListTransactions(ctx, "alice", transaction.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 1 || listed[0].FinalMix[0].Amount != 400 {
		t.Errorf("store shares reader memory: got %+v", listed)
	}
}

func TestExchangeOrderIsolation(t *testing.T) {
	ctx := context.Background()
	s := New()

	order := &exchange.Order{
		Entity:     types.NewEntity(),
		ID:         id.NewExchangeOrderID(),
		UserID:     "alice",
		FromToken:  "AGENT_COIN",
		ToToken:    "MEME_TOKEN",
		FromAmount: 500,
		ToAmount:   980,
		FiatValue:  types.USD(500_000),
		FeeFiat:    types.USD(10_000),
		Timestamp:  time.Now(),
	}
	if err := s.AppendExchangeOrder(ctx, order); err != nil {
		t.Fatal(err)
	}

	order.ToAmount = 1

	listed, err := s.ListExchangeOrders(ctx, "alice", exchange.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 1 || listed[0].ToAmount != 980 {
		t.Errorf("store shares caller memory: got %+v", listed)
	}

	listed[0].ToAmount = 7
	again, err := s.ListExchangeOrders(ctx, "alice", exchange.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if again[0].ToAmount != 980 {
		t.Errorf("store shares reader memory: got %+v", again)
	}
}
