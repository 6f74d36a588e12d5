package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	treasury "github.com/xraph/treasury"
	"github.com/xraph/treasury/exchange"
	"github.com/xraph/treasury/id"
	"github.com/xraph/treasury/reservation"
	"github.com/xraph/treasury/transaction"
	"github.com/xraph/treasury/wallet"
)

// Store is the in-memory reference store, used in tests and demos.
type Store struct {
	mu sync.RWMutex

	// Wallet storage, keyed by user ID
	wallets map[string]*wallet.Wallet

	// Reservation storage
	reservations map[string]*reservation.Reservation

	// Append-only records
	transactions   []*transaction.Transaction
	exchangeOrders []*exchange.Order
}

func New() *Store {
	return &Store{
		wallets:        make(map[string]*wallet.Wallet),
		reservations:   make(map[string]*reservation.Reservation),
		transactions:   make([]*transaction.Transaction, 0),
		exchangeOrders: make([]*exchange.Order, 0),
	}
}

// Wallet Store implementation

func (s *Store) CreateWallet(_ context.Context, w *wallet.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.wallets[w.UserID]; exists {
		return treasury.ErrAlreadyExists
	}
	s.wallets[w.UserID] = w.Clone()
	return nil
}

func (s *Store) GetWallet(_ context.Context, userID string) (*wallet.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if w, ok := s.wallets[userID]; ok {
		// Clone so callers never share the balance map across goroutines.
		return w.Clone(), nil
	}
	return nil, treasury.ErrWalletNotFound
}

func (s *Store) UpdateWallet(_ context.Context, w *wallet.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.wallets[w.UserID]; !exists {
		return treasury.ErrWalletNotFound
	}
	s.wallets[w.UserID] = w.Clone()
	return nil
}

// Reservation Store implementation

func (s *Store) CreateReservation(_ context.Context, r *reservation.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := r.ID.String()
	if _, exists := s.reservations[key]; exists {
		return treasury.ErrAlreadyExists
	}
	s.reservations[key] = cloneReservation(r)
	return nil
}

func (s *Store) GetReservation(_ context.Context, resID id.ReservationID) (*reservation.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r, ok := s.reservations[resID.String()]; ok {
		return cloneReservation(r), nil
	}
	return nil, treasury.ErrReservationNotFound
}

func (s *Store) UpdateReservation(_ context.Context, r *reservation.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := r.ID.String()
	if _, exists := s.reservations[key]; !exists {
		return treasury.ErrReservationNotFound
	}
	s.reservations[key] = cloneReservation(r)
	return nil
}

func (s *Store) ListExpiredReservations(_ context.Context, before time.Time, limit int) ([]*reservation.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*reservation.Reservation, 0)
	for _, r := range s.reservations {
		if r.Status == reservation.StatusAuthorized && r.ExpiresAt.Before(before) {
			result = append(result, cloneReservation(r))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ExpiresAt.Before(result[j].ExpiresAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Transaction Store implementation

func (s *Store) AppendTransaction(_ context.Context, t *transaction.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transactions = append(s.transactions, cloneTransaction(t))
	return nil
}

func (s *Store) GetTransaction(_ context.Context, txnID id.TransactionID) (*transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.transactions {
		if t.ID == txnID {
			return cloneTransaction(t), nil
		}
	}
	return nil, treasury.ErrNotFound
}

func (s *Store) ListTransactions(_ context.Context, userID string, opts transaction.ListOpts) ([]*transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*transaction.Transaction, 0)
	for _, t := range s.transactions {
		if t.UserID != userID {
			continue
		}
		if opts.Kind != "" && t.Kind != opts.Kind {
			continue
		}
		if !opts.Start.IsZero() && t.Timestamp.Before(opts.Start) {
			continue
		}
		if !opts.End.IsZero() && !t.Timestamp.Before(opts.End) {
			continue
		}
		result = append(result, cloneTransaction(t))
	}

	// Apply limit/offset
	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

// Exchange Store implementation

func (s *Store) AppendExchangeOrder(_ context.Context, o *exchange.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	oc := *o
	s.exchangeOrders = append(s.exchangeOrders, &oc)
	return nil
}

func (s *Store) ListExchangeOrders(_ context.Context, userID string, opts exchange.ListOpts) ([]*exchange.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*exchange.Order, 0)
	for _, o := range s.exchangeOrders {
		if o.UserID != userID {
			continue
		}
		if !opts.Start.IsZero() && o.Timestamp.Before(opts.Start) {
			continue
		}
		if !opts.End.IsZero() && !o.Timestamp.Before(opts.End) {
			continue
		}
		oc := *o
		result = append(result, &oc)
	}

	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

// Core methods

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func cloneReservation(r *reservation.Reservation) *reservation.Reservation {
	c := *r
	c.HeldMix = append(c.HeldMix[:0:0], r.HeldMix...)
	return &c
}

func cloneTransaction(t *transaction.Transaction) *transaction.Transaction {
	c := *t
	c.FinalMix = append(c.FinalMix[:0:0], t.FinalMix...)
	return &c
}
