package store

import (
	"context"
	"time"

	"github.com/xraph/treasury/exchange"
	"github.com/xraph/treasury/id"
	"github.com/xraph/treasury/reservation"
	"github.com/xraph/treasury/transaction"
	"github.com/xraph/treasury/wallet"
)

// Store is the unified storage interface for all Treasury entities.
// Instead of embedding the sub-interfaces, we explicitly declare all methods
// to avoid naming conflicts.
//
// Stores provide durability, not serialization: the engine's per-user lock
// is what keeps multi-step balance mutations linearizable.
type Store interface {
	// Wallet methods
	CreateWallet(ctx context.Context, w *wallet.Wallet) error
	GetWallet(ctx context.Context, userID string) (*wallet.Wallet, error)
	UpdateWallet(ctx context.Context, w *wallet.Wallet) error

	// Reservation methods
	CreateReservation(ctx context.Context, r *reservation.Reservation) error
	GetReservation(ctx context.Context, resID id.ReservationID) (*reservation.Reservation, error)
	UpdateReservation(ctx context.Context, r *reservation.Reservation) error
	ListExpiredReservations(ctx context.Context, before time.Time, limit int) ([]*reservation.Reservation, error)

	// Transaction methods (append-only)
	AppendTransaction(ctx context.Context, t *transaction.Transaction) error
	GetTransaction(ctx context.Context, txnID id.TransactionID) (*transaction.Transaction, error)
	ListTransactions(ctx context.Context, userID string, opts transaction.ListOpts) ([]*transaction.Transaction, error)

	// Exchange order methods (append-only)
	AppendExchangeOrder(ctx context.Context, o *exchange.Order) error
	ListExchangeOrders(ctx context.Context, userID string, opts exchange.ListOpts) ([]*exchange.Order, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
