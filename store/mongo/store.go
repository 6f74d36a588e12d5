// Package mongo provides a MongoDB-backed store for Treasury using Grove ORM.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	treasury "github.com/xraph/treasury"
	"github.com/xraph/treasury/exchange"
	"github.com/xraph/treasury/id"
	"github.com/xraph/treasury/reservation"
	treasurystore "github.com/xraph/treasury/store"
	"github.com/xraph/treasury/transaction"
	"github.com/xraph/treasury/wallet"
)

// Collection name constants.
const (
	colWallets        = "treasury_wallets"
	colReservations   = "treasury_reservations"
	colTransactions   = "treasury_transactions"
	colExchangeOrders = "treasury_exchange_orders"
)

// compile-time interface check
var _ treasurystore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all treasury collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("treasury/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Wallet Store ====================

func (s *Store) CreateWallet(ctx context.Context, w *wallet.Wallet) error {
	m := toWalletModel(w)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("treasury/mongo: create wallet: %w", err)
	}
	return nil
}

func (s *Store) GetWallet(ctx context.Context, userID string) (*wallet.Wallet, error) {
	var m walletModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"user_id": userID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, treasury.ErrWalletNotFound
		}
		return nil, fmt.Errorf("treasury/mongo: get wallet: %w", err)
	}
	return fromWalletModel(&m)
}

func (s *Store) UpdateWallet(ctx context.Context, w *wallet.Wallet) error {
	m := toWalletModel(w)

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("treasury/mongo: update wallet: %w", err)
	}
	if res.MatchedCount() == 0 {
		return treasury.ErrWalletNotFound
	}
	return nil
}

// ==================== Reservation Store ====================

func (s *Store) CreateReservation(ctx context.Context, r *reservation.Reservation) error {
	m := toReservationModel(r)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("treasury/mongo: create reservation: %w", err)
	}
	return nil
}

func (s *Store) GetReservation(ctx context.Context, resID id.ReservationID) (*reservation.Reservation, error) {
	var m reservationModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": resID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, treasury.ErrReservationNotFound
		}
		return nil, fmt.Errorf("treasury/mongo: get reservation: %w", err)
	}
	return fromReservationModel(&m)
}

func (s *Store) UpdateReservation(ctx context.Context, r *reservation.Reservation) error {
	m := toReservationModel(r)

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("treasury/mongo: update reservation: %w", err)
	}
	if res.MatchedCount() == 0 {
		return treasury.ErrReservationNotFound
	}
	return nil
}

func (s *Store) ListExpiredReservations(ctx context.Context, before time.Time, limit int) ([]*reservation.Reservation, error) {
	var models []reservationModel

	q := s.mdb.NewFind(&models).
		Filter(bson.M{
			"status":     string(reservation.StatusAuthorized),
			"expires_at": bson.M{"$lt": before},
		}).
		Sort(bson.D{{Key: "expires_at", Value: 1}})

	if limit > 0 {
		q = q.Limit(int64(limit))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("treasury/mongo: list expired reservations: %w", err)
	}

	result := make([]*reservation.Reservation, len(models))
	for i := range models {
		r, err := fromReservationModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

// ==================== Transaction Store ====================

// AppendTransaction inserts a settlement record. The ledger is append-only;
// there is no update or delete path.
func (s *Store) AppendTransaction(ctx context.Context, t *transaction.Transaction) error {
	m := toTransactionModel(t)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("treasury/mongo: append transaction: %w", err)
	}
	return nil
}

func (s *Store) GetTransaction(ctx context.Context, txnID id.TransactionID) (*transaction.Transaction, error) {
	var m transactionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": txnID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, treasury.ErrNotFound
		}
		return nil, fmt.Errorf("treasury/mongo: get transaction: %w", err)
	}
	return fromTransactionModel(&m)
}

func (s *Store) ListTransactions(ctx context.Context, userID string, opts transaction.ListOpts) ([]*transaction.Transaction, error) {
	var models []transactionModel

	filter := bson.M{"user_id": userID}
	if opts.Kind != "" {
		filter["kind"] = string(opts.Kind)
	}
	if window := timeWindow(opts.Start, opts.End); window != nil {
		filter["timestamp"] = window
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "timestamp", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("treasury/mongo: list transactions: %w", err)
	}

	result := make([]*transaction.Transaction, len(models))
	for i := range models {
		t, err := fromTransactionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = t
	}
	return result, nil
}

// ==================== Exchange Order Store ====================

func (s *Store) AppendExchangeOrder(ctx context.Context, o *exchange.Order) error {
	m := toExchangeOrderModel(o)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("treasury/mongo: append exchange order: %w", err)
	}
	return nil
}

func (s *Store) ListExchangeOrders(ctx context.Context, userID string, opts exchange.ListOpts) ([]*exchange.Order, error) {
	var models []exchangeOrderModel

	filter := bson.M{"user_id": userID}
	if window := timeWindow(opts.Start, opts.End); window != nil {
		filter["timestamp"] = window
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "timestamp", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("treasury/mongo: list exchange orders: %w", err)
	}

	result := make([]*exchange.Order, len(models))
	for i := range models {
		o, err := fromExchangeOrderModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = o
	}
	return result, nil
}

// ==================== Helpers ====================

// timeWindow builds a half-open [start, end) timestamp filter. Returns nil
// when both bounds are zero so the field is left out of the query entirely.
func timeWindow(start, end time.Time) bson.M {
	window := bson.M{}
	if !start.IsZero() {
		window["$gte"] = start
	}
	if !end.IsZero() {
		window["$lt"] = end
	}
	if len(window) == 0 {
		return nil
	}
	return window
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all treasury collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colWallets: {
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colReservations: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "expires_at", Value: 1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		colTransactions: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "timestamp", Value: 1}}},
			{
				Keys:    bson.D{{Key: "reservation_id", Value: 1}},
				Options: options.Index().SetSparse(true),
			},
		},
		colExchangeOrders: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "timestamp", Value: 1}}},
		},
	}
}
