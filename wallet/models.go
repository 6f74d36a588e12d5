package wallet

import (
	"fmt"

	"github.com/xraph/treasury/id"
	"github.com/xraph/treasury/token"
	"github.com/xraph/treasury/types"
)

// Balance tracks one token type inside a wallet. Available and Reserved are
// never negative; debt mode records shortfall in fiat on the wallet instead
// of driving balances below zero.
type Balance struct {
	Available int64 `json:"available"`
	Reserved  int64 `json:"reserved"`
}

// Wallet holds a user's token balances. Wallets are created lazily on first
// reference and persist for the account's lifetime. All mutation happens
// under the engine's per-user lock.
type Wallet struct {
	types.Entity
	ID       id.WalletID              `json:"id"`
	UserID   string                   `json:"user_id"`
	Balances map[token.Symbol]Balance `json:"balances"`

	// DebtMicros is the accumulated fiat shortfall recorded in debt mode,
	// in micro-units. Zero unless debt mode is enabled.
	DebtMicros int64 `json:"debt_micros,omitempty"`
}

// New creates an empty wallet for a user.
func New(userID string) *Wallet {
	return &Wallet{
		ID:       id.NewWalletID(),
		UserID:   userID,
		Balances: make(map[token.Symbol]Balance),
		Entity:   types.NewEntity(),
	}
}

// Balance returns the balance entry for a token type (zero if absent).
func (w *Wallet) Balance(sym token.Symbol) Balance {
	return w.Balances[sym]
}

// Available returns the spendable balance for a token type.
func (w *Wallet) Available(sym token.Symbol) int64 {
	return w.Balances[sym].Available
}

// AvailableSnapshot copies the available balances for the mix selector.
func (w *Wallet) AvailableSnapshot() map[token.Symbol]int64 {
	out := make(map[token.Symbol]int64, len(w.Balances))
	for sym, b := range w.Balances {
		if b.Available > 0 {
			out[sym] = b.Available
		}
	}
	return out
}

// Credit adds amount to the available balance.
func (w *Wallet) Credit(sym token.Symbol, amount int64) {
	b := w.Balances[sym]
	b.Available += amount
	w.Balances[sym] = b
}

// Reserve moves amount from available to reserved.
func (w *Wallet) Reserve(sym token.Symbol, amount int64) error {
	b := w.Balances[sym]
	if b.Available < amount {
		return fmt.Errorf("wallet: reserve %d %s: only %d available", amount, sym, b.Available)
	}
	b.Available -= amount
	b.Reserved += amount
	w.Balances[sym] = b
	return nil
}

// ReleaseReserved moves amount from reserved back to available.
func (w *Wallet) ReleaseReserved(sym token.Symbol, amount int64) error {
	b := w.Balances[sym]
	if b.Reserved < amount {
		return fmt.Errorf("wallet: release %d %s: only %d reserved", amount, sym, b.Reserved)
	}
	b.Reserved -= amount
	b.Available += amount
	w.Balances[sym] = b
	return nil
}

// DebitReserved removes amount from the reserved balance (settlement).
func (w *Wallet) DebitReserved(sym token.Symbol, amount int64) error {
	b := w.Balances[sym]
	if b.Reserved < amount {
		return fmt.Errorf("wallet: debit %d reserved %s: only %d reserved", amount, sym, b.Reserved)
	}
	b.Reserved -= amount
	w.Balances[sym] = b
	return nil
}

// DebitAvailable removes amount from the available balance directly.
func (w *Wallet) DebitAvailable(sym token.Symbol, amount int64) error {
	b := w.Balances[sym]
	if b.Available < amount {
		return fmt.Errorf("wallet: debit %d %s: only %d available", amount, sym, b.Available)
	}
	b.Available -= amount
	w.Balances[sym] = b
	return nil
}

// Clone returns a deep copy. Stores hand out clones so readers never share
// the map the engine mutates under the per-user lock.
func (w *Wallet) Clone() *Wallet {
	c := *w
	c.Balances = make(map[token.Symbol]Balance, len(w.Balances))
	for sym, b := range w.Balances {
		c.Balances[sym] = b
	}
	return &c
}
