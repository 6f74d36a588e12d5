package reservation

import (
	"time"

	"github.com/xraph/treasury/id"
	"github.com/xraph/treasury/mix"
	"github.com/xraph/treasury/token"
	"github.com/xraph/treasury/types"
)

type Status string

const (
	// StatusAuthorized is the only non-terminal state.
	StatusAuthorized Status = "authorized"
	StatusCaptured   Status = "captured"
	StatusReleased   Status = "released"
	StatusExpired    Status = "expired"
)

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCaptured || s == StatusReleased || s == StatusExpired
}

// RequestSpec describes the API call being billed.
type RequestSpec struct {
	Provider             string         `json:"provider"`
	Model                string         `json:"model"`
	EstimatedInputUnits  int64          `json:"estimated_input_units"`
	EstimatedOutputUnits int64          `json:"estimated_output_units"`
	TaskCategory         token.Category `json:"task_category,omitempty"`
}

// Reservation is a TTL-bounded claim on wallet funds pending confirmation of
// actual usage. It terminates via exactly one of Captured, Released or
// Expired, and is immutable once terminal.
type Reservation struct {
	types.Entity
	ID     id.ReservationID `json:"id"`
	UserID string           `json:"user_id"`
	Spec   RequestSpec      `json:"spec"`

	// HeldMix freezes the rates, burn fractions and discounts in effect at
	// hold time; a registry reload never re-prices an open reservation.
	HeldMix []mix.Entry `json:"held_mix"`

	EstimatedFiat types.Fiat `json:"estimated_fiat"`

	// ShortfallFiat is nonzero only for debt-mode holds whose mix could not
	// fully cover the estimate.
	ShortfallFiat types.Fiat `json:"shortfall_fiat"`

	Status    Status    `json:"status"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the TTL has elapsed at the given instant.
func (r *Reservation) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// HeldFiat returns the fiat value the held mix covers toward the estimate.
func (r *Reservation) HeldFiat() types.Fiat {
	var micros int64
	for _, e := range r.HeldMix {
		micros += e.CoveredMicros()
	}
	return types.Fiat{Micros: micros, Currency: r.EstimatedFiat.Currency}
}
