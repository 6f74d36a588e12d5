package exchange

import "context"

// Store is append-only: orders are written once and only ever read back.
type Store interface {
	Append(ctx context.Context, o *Order) error
	List(ctx context.Context, userID string, opts ListOpts) ([]*Order, error)
}
