package transaction

import (
	"time"

	"github.com/xraph/treasury/id"
	"github.com/xraph/treasury/mix"
	"github.com/xraph/treasury/reservation"
	"github.com/xraph/treasury/token"
	"github.com/xraph/treasury/types"
)

// Kind distinguishes how a transaction entered the ledger.
type Kind string

const (
	KindCapture Kind = "capture" // settlement of a reservation
	KindDirect  Kind = "direct"  // trusted-caller direct billing
	KindCredit  Kind = "credit"  // external reward/purchase credit
)

type Status string

// StatusCompleted is the only transaction status: the ledger is append-only
// and records only finished settlements.
const StatusCompleted Status = "completed"

// Usage is the actual unit consumption reported after the external call.
type Usage struct {
	InputUnits  int64 `json:"input_units"`
	OutputUnits int64 `json:"output_units"`
}

// Transaction is one append-only ledger entry. Never mutated or deleted.
type Transaction struct {
	types.Entity
	ID     id.TransactionID `json:"id"`
	UserID string           `json:"user_id"`

	// ReservationID is Nil for direct billing and credits.
	ReservationID id.ReservationID `json:"reservation_id,omitempty"`

	Kind     Kind                    `json:"kind"`
	Spec     reservation.RequestSpec `json:"spec,omitempty"`
	Usage    Usage                   `json:"usage"`
	FinalMix []mix.Entry             `json:"final_mix,omitempty"`
	FiatCost types.Fiat              `json:"fiat_cost"`

	// ShortfallFiat is nonzero when a capture settled partially; it is the
	// amount left for out-of-band collection.
	ShortfallFiat types.Fiat `json:"shortfall_fiat"`

	// CreditToken and CreditAmount describe a KindCredit entry.
	CreditToken  token.Symbol `json:"credit_token,omitempty"`
	CreditAmount int64        `json:"credit_amount,omitempty"`
	Reason       string       `json:"reason,omitempty"`

	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type ListOpts struct {
	Kind   Kind
	Start  time.Time
	End    time.Time
	Limit  int
	Offset int
}
