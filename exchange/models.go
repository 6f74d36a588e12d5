package exchange

import (
	"time"

	"github.com/xraph/treasury/id"
	"github.com/xraph/treasury/token"
	"github.com/xraph/treasury/types"
)

// Order is one completed token-to-token conversion via the fiat pivot.
// Append-only; independent of the reservation flow, so it can never be used
// to work around a reservation's frozen rates.
type Order struct {
	types.Entity
	ID         id.ExchangeOrderID `json:"id"`
	UserID     string             `json:"user_id"`
	FromToken  token.Symbol       `json:"from_token"`
	ToToken    token.Symbol       `json:"to_token"`
	FromAmount int64              `json:"from_amount"`
	ToAmount   int64              `json:"to_amount"`
	FiatValue  types.Fiat         `json:"fiat_value"`
	FeeFiat    types.Fiat         `json:"fee_fiat"`
	Timestamp  time.Time          `json:"timestamp"`
}

type ListOpts struct {
	Start  time.Time
	End    time.Time
	Limit  int
	Offset int
}
