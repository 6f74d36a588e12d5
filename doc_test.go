package treasury_test

import (
	"context"
	"fmt"
	"log"

	"github.com/xraph/treasury"
	"github.com/xraph/treasury/costcalc"
	"github.com/xraph/treasury/store/memory"
	"github.com/xraph/treasury/token"
	"github.com/xraph/treasury/transaction"
)

// Example walks the full hold/capture cycle: fund a wallet, authorize a
// reservation for an estimated cost, then settle it against actual usage.
func Example() {
	ctx := context.Background()

	reg, err := token.NewRegistry("usd", []token.Type{
		{Symbol: "AGENT_COIN", Name: "Agent Coin", FiatRateMicros: 1000},
	})
	if err != nil {
		log.Fatal(err)
	}
	card, err := costcalc.NewRateCard("usd", map[string]map[string]costcalc.ModelRate{
		"acme": {"standard": {InputPerMtokMicros: 1_000_000}},
	})
	if err != nil {
		log.Fatal(err)
	}

	eng := treasury.New(memory.New(), reg, costcalc.NewCalculator(card))

	if _, err := eng.Credit(ctx, "alice", "AGENT_COIN", 1000, "signup bonus"); err != nil {
		log.Fatal(err)
	}

	res, err := eng.Hold(ctx, "alice", callSpec(500_000))
	if err != nil {
		log.Fatal(err)
	}

	result, err := eng.Capture(ctx, res.ID, transaction.Usage{InputUnits: 400_000})
	if err != nil {
		log.Fatal(err)
	}

	b := result.Balances["AGENT_COIN"]
	fmt.Printf("cost=%s available=%d reserved=%d\n",
		result.Transaction.FiatCost, b.Available, b.Reserved)
	// Output: cost=$0.40 available=600 reserved=0
}
