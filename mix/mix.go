// Package mix selects which token types pay for a fiat cost.
//
// Selection is a pure function over a wallet snapshot: calling it twice with
// the same target, snapshot and task category produces byte-identical mixes.
// That determinism is what makes billing decisions auditable after the fact.
package mix

import (
	"sort"

	"github.com/xraph/treasury/token"
	"github.com/xraph/treasury/types"
)

// Entry is one line of a mix: an amount of a single token type that delivers
// fiat value, plus the burn destroyed on top of it. The rate, burn fraction
// and task discount in effect at selection time are frozen on the entry so a
// later registry reload cannot re-price an open reservation.
type Entry struct {
	Token       token.Symbol `json:"token"`
	Amount      int64        `json:"amount"`       // units delivering fiat value
	BurnAmount  int64        `json:"burn_amount"`  // units destroyed on top
	RateMicros  int64        `json:"rate_micros"`  // frozen fiat micro-units per unit
	BurnBps     int64        `json:"burn_bps"`     // frozen burn fraction
	DiscountBps int64        `json:"discount_bps"` // frozen task multiplier
}

// TotalDebit returns the total units removed from the wallet for this entry.
func (e Entry) TotalDebit() int64 { return e.Amount + e.BurnAmount }

// DeliveredMicros returns the fiat value the entry's Amount delivers at the
// frozen rate, before the task discount adjustment.
func (e Entry) DeliveredMicros() int64 {
	return types.MulDiv(e.Amount, e.RateMicros, 1)
}

// CoveredMicros returns how much of an undiscounted fiat target this entry
// covers: the delivered value scaled back up by the frozen task discount.
func (e Entry) CoveredMicros() int64 {
	return types.MulDiv(e.DeliveredMicros(), types.BpsScale, e.DiscountBps)
}

// Result is the outcome of a selection.
type Result struct {
	Sufficient    bool       `json:"sufficient"`
	Entries       []Entry    `json:"entries"`
	ShortfallFiat types.Fiat `json:"shortfall_fiat"`
}

// HeldFiat sums the fiat value the entries cover toward the original target.
func (r Result) HeldFiat(currency string) types.Fiat {
	var micros int64
	for _, e := range r.Entries {
		micros += e.CoveredMicros()
	}
	return types.Fiat{Micros: micros, Currency: currency}
}

// TotalDebits aggregates per-token total debits (amount + burn).
func (r Result) TotalDebits() map[token.Symbol]int64 {
	out := make(map[token.Symbol]int64, len(r.Entries))
	for _, e := range r.Entries {
		out[e.Token] += e.TotalDebit()
	}
	return out
}

// Select greedily allocates token amounts from the snapshot to cover the
// fiat target, respecting per-task discounts and burn gross-up:
//
//  1. Candidates are ordered by ascending cost per fiat covered
//     (discount divided by the net-of-burn fraction), tie-broken by larger
//     available balance, then by symbol, giving a total order.
//  2. Each candidate contributes up to its available balance, gross of burn:
//     delivering v fiat with burn fraction f debits v/rate units plus
//     v/rate · f/(1-f) burn on top.
//  3. Allocation stops when the target is covered or balances run out; the
//     remainder is reported as the shortfall.
func Select(target types.Fiat, available map[token.Symbol]int64, cat token.Category, reg *token.Registry) Result {
	if !target.IsPositive() {
		return Result{Sufficient: true, ShortfallFiat: types.Zero(target.Currency)}
	}

	type candidate struct {
		sym       token.Symbol
		available int64
		rate      int64
		burnBps   int64
		discBps   int64
	}

	candidates := make([]candidate, 0, len(available))
	for _, sym := range reg.Symbols() {
		avail := available[sym]
		if avail <= 0 {
			continue
		}
		t, _ := reg.Get(sym)
		candidates = append(candidates, candidate{
			sym:       sym,
			available: avail,
			rate:      t.FiatRateMicros,
			burnBps:   t.BurnBps,
			discBps:   t.DiscountBps(cat),
		})
	}

	// Cost per fiat covered as a rational: discount / (1 - burn).
	// Compare a/b < c/d via cross-multiplication; operands stay well under
	// int64 range (bps² ≈ 1e8).
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		lhs := a.discBps * (types.BpsScale - b.burnBps)
		rhs := b.discBps * (types.BpsScale - a.burnBps)
		if lhs != rhs {
			return lhs < rhs
		}
		if a.available != b.available {
			return a.available > b.available
		}
		return a.sym < b.sym
	})

	remaining := target.Micros
	entries := make([]Entry, 0, len(candidates))

	for _, c := range candidates {
		if remaining <= 0 {
			break
		}

		// Units needed to cover the remaining target through this token:
		// the target share is scaled by the task discount, then divided by
		// the per-unit rate, each step rounding up so the hold never
		// under-reserves.
		discounted := types.MulDivCeil(remaining, c.discBps, types.BpsScale)
		need := types.MulDivCeil(discounted, 1, c.rate)

		// Deliverable cap: amount plus its burn gross-up must fit in the
		// available balance.
		maxDeliver := types.MulDiv(c.available, types.BpsScale-c.burnBps, types.BpsScale)

		take := need
		if take > maxDeliver {
			take = maxDeliver
		}
		if take <= 0 {
			continue
		}

		burn := burnFor(take, c.burnBps)
		for take > 0 && take+burn > c.available {
			take--
			burn = burnFor(take, c.burnBps)
		}
		if take <= 0 {
			continue
		}

		e := Entry{
			Token:       c.sym,
			Amount:      take,
			BurnAmount:  burn,
			RateMicros:  c.rate,
			BurnBps:     c.burnBps,
			DiscountBps: c.discBps,
		}
		covered := e.CoveredMicros()
		if covered > remaining {
			covered = remaining
		}
		remaining -= covered
		entries = append(entries, e)
	}

	return Result{
		Sufficient:    remaining <= 0,
		Entries:       entries,
		ShortfallFiat: types.Fiat{Micros: max64(remaining, 0), Currency: target.Currency},
	}
}

// Consume settles a fiat target against previously held entries, in held
// order, at the rates frozen on each entry. It returns the consumed portion,
// the unused remainder of the held entries, and any target left uncovered.
func Consume(held []Entry, target types.Fiat) (used, leftover []Entry, uncovered types.Fiat) {
	remaining := target.Micros

	for _, e := range held {
		if remaining <= 0 {
			leftover = append(leftover, e)
			continue
		}

		discounted := types.MulDivCeil(remaining, e.DiscountBps, types.BpsScale)
		need := types.MulDivCeil(discounted, 1, e.RateMicros)

		take := need
		if take > e.Amount {
			take = e.Amount
		}

		burnTaken := burnFor(take, e.BurnBps)
		if burnTaken > e.BurnAmount || take == e.Amount {
			burnTaken = e.BurnAmount
		}

		u := e
		u.Amount = take
		u.BurnAmount = burnTaken

		covered := u.CoveredMicros()
		if covered > remaining {
			covered = remaining
		}
		remaining -= covered
		used = append(used, u)

		if rest := e.Amount - take; rest > 0 || e.BurnAmount-burnTaken > 0 {
			l := e
			l.Amount = rest
			l.BurnAmount = e.BurnAmount - burnTaken
			leftover = append(leftover, l)
		}
	}

	return used, leftover, types.Fiat{Micros: max64(remaining, 0), Currency: target.Currency}
}

// burnFor returns the burn gross-up for delivering amount units at the given
// burn fraction: amount · f/(1-f), rounded up.
func burnFor(amount, burnBps int64) int64 {
	if burnBps == 0 {
		return 0
	}
	return types.MulDivCeil(amount, burnBps, types.BpsScale-burnBps)
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
