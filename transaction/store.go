package transaction

import (
	"context"

	"github.com/xraph/treasury/id"
)

// Store is append-only: entries are written once and only ever read back.
type Store interface {
	Append(ctx context.Context, t *Transaction) error
	Get(ctx context.Context, txnID id.TransactionID) (*Transaction, error)
	List(ctx context.Context, userID string, opts ListOpts) ([]*Transaction, error)
}
