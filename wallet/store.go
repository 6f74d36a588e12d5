package wallet

import "context"

type Store interface {
	Create(ctx context.Context, w *Wallet) error
	Get(ctx context.Context, userID string) (*Wallet, error)
	Update(ctx context.Context, w *Wallet) error
}
