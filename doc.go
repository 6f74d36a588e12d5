// Package treasury provides a token-denominated billing engine for metered
// AI API usage in Go applications.
//
// Treasury is designed as a library, not a service. Import it directly into
// your Go application for maximum performance and flexibility. It provides:
//
//   - Exact fixed-point cost calculation from provider/model rate cards
//   - Multi-token wallets with available/reserved balances per token type
//   - Deterministic mix selection across token types, with per-task
//     discounts and burn fractions
//   - A hold/capture/release reservation state machine with TTL expiry
//   - An append-only transaction ledger for billing reports and audits
//   - Token-to-token exchange via the fiat pivot
//
// # Quick Start
//
// Create a treasury instance with your preferred store:
//
//	import (
//	    "github.com/xraph/treasury"
//	    "github.com/xraph/treasury/costcalc"
//	    "github.com/xraph/treasury/store/postgres"
//	    "github.com/xraph/treasury/token"
//	)
//
//	// Load configuration
//	registry, err := token.LoadFile("tokens.yaml")
//	card, err := costcalc.LoadFile("rates.yaml")
//
//	// Initialize store over your application's *grove.DB
//	store := postgres.New(db)
//
//	// Create treasury
//	t := treasury.New(store, registry, costcalc.NewCalculator(card))
//
//	// Start the treasury (begins the expiry sweep worker)
//	if err := t.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer t.Stop()
//
// # Core Concepts
//
// A hold authorizes funds against the estimated cost of a request before the
// external call is made:
//
//	res, err := t.Hold(ctx, userID, reservation.RequestSpec{
//	    Provider:             "openai",
//	    Model:                "gpt-4o",
//	    EstimatedInputUnits:  12000,
//	    EstimatedOutputUnits: 2000,
//	    TaskCategory:         "coding",
//	})
//
// A capture settles the reservation against actual usage, returning any
// unused remainder to the wallet:
//
//	result, err := t.Capture(ctx, res.ID, transaction.Usage{
//	    InputUnits:  11480,
//	    OutputUnits: 1733,
//	})
//
// Uncaptured reservations are expired by the background sweep after their
// TTL, returning the full held mix to available balance.
//
// # Exact Arithmetic
//
// All monetary calculations use integer arithmetic to avoid floating-point
// drift. The Fiat type represents amounts in micro-units of the reference
// currency (one millionth of a dollar for USD), and intermediate products
// are computed with 128-bit precision, so repeated burns and exchanges never
// leak or mint value.
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	wlt_01h2xcejqtf2nbrexx3vqjhp41  // Wallet ID
//	rsv_01h2xcejqtf2nbrexx3vqjhp41  // Reservation ID
//	txn_01h455vb4pex5vsknk084sn02q  // Transaction ID
//	exo_01h455vb4pex5vsknk084sn02q  // Exchange order ID
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of entities.
package treasury
