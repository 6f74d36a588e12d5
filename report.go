package treasury

import (
	"context"
	"time"

	"github.com/xraph/treasury/token"
	"github.com/xraph/treasury/transaction"
	"github.com/xraph/treasury/types"
)

// SpendReport aggregates a user's billing activity over a time window. It is
// a pure fold over ledger entries; re-running it over the same window always
// yields the same figures.
type SpendReport struct {
	UserID string    `json:"user_id"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`

	TotalFiat      types.Fiat             `json:"total_fiat"`
	PerTokenSpent  map[token.Symbol]int64 `json:"per_token_spent"`
	PerTokenBurned map[token.Symbol]int64 `json:"per_token_burned"`

	// Settlements is the number of capture and direct-bill entries folded.
	Settlements int `json:"settlements"`
}

// Report aggregates fiat cost, per-token spend and per-token burn over the
// window. Credits are excluded: they add balance, they do not spend it.
func (t *Treasury) Report(ctx context.Context, userID string, start, end time.Time) (*SpendReport, error) {
	txns, err := t.store.ListTransactions(ctx, userID, transaction.ListOpts{
		Start: start,
		End:   end,
	})
	if err != nil {
		return nil, err
	}

	r := &SpendReport{
		UserID:         userID,
		Start:          start,
		End:            end,
		TotalFiat:      types.Zero(t.registry.Currency()),
		PerTokenSpent:  make(map[token.Symbol]int64),
		PerTokenBurned: make(map[token.Symbol]int64),
	}

	for _, txn := range txns {
		if txn.Kind != transaction.KindCapture && txn.Kind != transaction.KindDirect {
			continue
		}
		r.TotalFiat = r.TotalFiat.Add(txn.FiatCost)
		r.Settlements++
		for _, e := range txn.FinalMix {
			r.PerTokenSpent[e.Token] += e.Amount
			r.PerTokenBurned[e.Token] += e.BurnAmount
		}
	}

	return r, nil
}
