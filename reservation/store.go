package reservation

import (
	"context"
	"time"

	"github.com/xraph/treasury/id"
)

type Store interface {
	Create(ctx context.Context, r *Reservation) error
	Get(ctx context.Context, resID id.ReservationID) (*Reservation, error)
	Update(ctx context.Context, r *Reservation) error
	ListExpired(ctx context.Context, before time.Time, limit int) ([]*Reservation, error)
}
