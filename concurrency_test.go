package treasury_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/treasury"
	"github.com/xraph/treasury/reservation"
	"github.com/xraph/treasury/transaction"
)

// TestCaptureSweepRace races a capture against the sweep on an overdue
// reservation. Both sides check-and-transition under the per-user lock, so
// whatever the interleaving, the reservation reaches Expired through exactly
// one transition and the held mix returns to available exactly once.
func TestCaptureSweepRace(t *testing.T) {
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		eng := newTestEngine(t, treasury.WithReservationTTL(-time.Minute))
		if _, err := eng.Credit(ctx, "alice", "AGENT_COIN", 1000, "signup"); err != nil {
			t.Fatal(err)
		}
		res, err := eng.Hold(ctx, "alice", callSpec(500_000))
		if err != nil {
			t.Fatal(err)
		}

		var wg sync.WaitGroup
		var captureErr error
		var swept int

		wg.Add(2)
		go func() {
			defer wg.Done()
			_, captureErr = eng.Capture(ctx, res.ID, transaction.Usage{InputUnits: 400_000})
		}()
		go func() {
			defer wg.Done()
			n, err := eng.Sweep(ctx)
			if err != nil {
				t.Error(err)
			}
			swept = n
		}()
		wg.Wait()

		// The loser of the race sees the winner's terminal transition.
		captureExpired := 0
		switch {
		case errors.Is(captureErr, treasury.ErrReservationExpired):
			captureExpired = 1
		case errors.Is(captureErr, treasury.ErrInvalidReservationState):
		default:
			t.Fatalf("capture: got %v, want expired or terminal-state error", captureErr)
		}
		if captureExpired+swept != 1 {
			t.Fatalf("terminal transitions: capture=%d sweep=%d, want exactly one", captureExpired, swept)
		}

		got, err := eng.GetReservation(ctx, res.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status != reservation.StatusExpired {
			t.Fatalf("status: got %s, want expired", got.Status)
		}

		w, err := eng.Wallet(ctx, "alice")
		if err != nil {
			t.Fatal(err)
		}
		if b := w.Balance("AGENT_COIN"); b.Available != 1000 || b.Reserved != 0 {
			t.Fatalf("after race: got %+v, want {1000 0}", b)
		}
	}
}

// TestConcurrentHolds issues N holds against a bounded balance at once. The
// per-user lock linearizes them: exactly floor(balance/cost) succeed, the
// rest fail without mutation, and every unit stays accounted for.
func TestConcurrentHolds(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	// $1.00 of AGENT_COIN funds exactly three $0.30 holds.
	if _, err := eng.Credit(ctx, "alice", "AGENT_COIN", 1000, "signup"); err != nil {
		t.Fatal(err)
	}

	const workers = 10
	errs := make(chan error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.Hold(ctx, "alice", callSpec(300_000))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, insufficient int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, treasury.ErrInsufficientFunds):
			insufficient++
		default:
			t.Fatalf("hold: %v", err)
		}
	}
	if ok != 3 || insufficient != workers-3 {
		t.Errorf("outcomes: ok=%d insufficient=%d, want 3/%d", ok, insufficient, workers-3)
	}

	w, err := eng.Wallet(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	b := w.Balance("AGENT_COIN")
	if b.Available+b.Reserved != 1000 {
		t.Errorf("conservation violated: available=%d reserved=%d", b.Available, b.Reserved)
	}
	if b.Reserved != 900 || b.Available != 100 {
		t.Errorf("balances: got %+v, want {100 900}", b)
	}
}
