package treasury

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/treasury/exchange"
	"github.com/xraph/treasury/id"
	"github.com/xraph/treasury/mix"
	"github.com/xraph/treasury/reservation"
	"github.com/xraph/treasury/token"
	"github.com/xraph/treasury/transaction"
	"github.com/xraph/treasury/types"
	"github.com/xraph/treasury/wallet"
)

// ──────────────────────────────────────────────────
// Wallets
// ──────────────────────────────────────────────────

// InitializeWallet returns the user's wallet, creating it with the
// configured welcome grants if it does not exist yet. Idempotent.
func (t *Treasury) InitializeWallet(ctx context.Context, userID string) (*wallet.Wallet, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", ErrInvalidInput)
	}

	t.locks.Lock(userID)
	w, grants, created, err := t.getOrCreateWalletLocked(ctx, userID)
	t.locks.Unlock(userID)
	if err != nil {
		return nil, err
	}

	if created {
		t.emitWalletCreated(ctx, w, grants)
	}
	return w, nil
}

// Wallet returns the user's wallet without creating one.
func (t *Treasury) Wallet(ctx context.Context, userID string) (*wallet.Wallet, error) {
	return t.store.GetWallet(ctx, userID)
}

// getOrCreateWalletLocked loads the wallet, creating it lazily with the
// configured welcome grants. Caller must hold the user's lock. Returns the
// grant transactions so the caller can emit events after unlocking.
func (t *Treasury) getOrCreateWalletLocked(ctx context.Context, userID string) (*wallet.Wallet, []*transaction.Transaction, bool, error) {
	w, err := t.store.GetWallet(ctx, userID)
	if err == nil {
		return w, nil, false, nil
	}
	if !IsNotFound(err) {
		return nil, nil, false, err
	}

	w = wallet.New(userID)
	var grants []*transaction.Transaction
	for _, sym := range t.grantSymbols() {
		amount := t.welcomeGrants[sym]
		if amount <= 0 || !t.registry.Has(sym) {
			continue
		}
		w.Credit(sym, amount)
		grants = append(grants, t.newCreditTransaction(userID, sym, amount, "welcome grant"))
	}

	if err := t.store.CreateWallet(ctx, w); err != nil {
		return nil, nil, false, err
	}
	for _, txn := range grants {
		if err := t.store.AppendTransaction(ctx, txn); err != nil {
			return nil, nil, false, err
		}
	}

	return w, grants, true, nil
}

func (t *Treasury) emitWalletCreated(ctx context.Context, w *wallet.Wallet, grants []*transaction.Transaction) {
	t.plugins.EmitWalletCreated(ctx, w)
	for _, txn := range grants {
		t.plugins.EmitCredited(ctx, txn)
	}
	t.logger.Debug("wallet created",
		"user_id", w.UserID,
		"wallet_id", w.ID,
		"grants", len(grants),
	)
}

// ──────────────────────────────────────────────────
// Quote
// ──────────────────────────────────────────────────

// Quote is a read-only affordability check for a request.
type Quote struct {
	CanAfford     bool        `json:"can_afford"`
	EstimatedFiat types.Fiat  `json:"estimated_fiat"`
	Mix           []mix.Entry `json:"mix,omitempty"`
	ShortfallFiat types.Fiat  `json:"shortfall_fiat"`
	Suggestion    *Suggestion `json:"suggestion,omitempty"`
}

// Suggestion tells an unaffordable caller how to become affordable: either
// exchange one existing balance into a better token for this task, or top up
// the best token by the given amount.
type Suggestion struct {
	ExchangeFrom token.Symbol `json:"exchange_from,omitempty"`
	ExchangeTo   token.Symbol `json:"exchange_to,omitempty"`

	TopUpToken  token.Symbol `json:"top_up_token"`
	TopUpAmount int64        `json:"top_up_amount"`
	TopUpFiat   types.Fiat   `json:"top_up_fiat"`
}

// QuoteRequest checks whether the user can afford a request. Read-only: it
// never creates a wallet and never moves funds, so an affirmative answer is
// only advisory and Hold re-validates under the user's lock.
func (t *Treasury) QuoteRequest(ctx context.Context, userID string, spec reservation.RequestSpec) (*Quote, error) {
	est, err := t.estimate(spec, spec.EstimatedInputUnits, spec.EstimatedOutputUnits)
	if err != nil {
		return nil, err
	}

	snapshot := map[token.Symbol]int64{}
	if w, err := t.store.GetWallet(ctx, userID); err == nil {
		snapshot = w.AvailableSnapshot()
	} else if !IsNotFound(err) {
		return nil, err
	}

	res := mix.Select(est, snapshot, spec.TaskCategory, t.registry)
	q := &Quote{
		CanAfford:     res.Sufficient,
		EstimatedFiat: est,
		Mix:           res.Entries,
		ShortfallFiat: res.ShortfallFiat,
	}
	if !res.Sufficient {
		q.Suggestion = t.suggest(est, res.ShortfallFiat, snapshot, spec.TaskCategory)
	}
	return q, nil
}

// suggest works out the cheapest path to affordability for the shortfall.
func (t *Treasury) suggest(target, shortfall types.Fiat, snapshot map[token.Symbol]int64, cat token.Category) *Suggestion {
	best, ok := t.bestTokenFor(cat)
	if !ok {
		return nil
	}
	bt, _ := t.registry.Get(best)

	// Top-up amount: units of the best token, gross of burn, covering the
	// shortfall at the task-adjusted rate.
	discounted := types.MulDivCeil(shortfall.Micros, bt.DiscountBps(cat), types.BpsScale)
	deliver := types.MulDivCeil(discounted, 1, bt.FiatRateMicros)
	topUp := deliver
	if bt.BurnBps > 0 {
		topUp += types.MulDivCeil(deliver, bt.BurnBps, types.BpsScale-bt.BurnBps)
	}

	s := &Suggestion{
		TopUpToken:  best,
		TopUpAmount: topUp,
		TopUpFiat:   shortfall,
	}

	// An exchange only helps when a held token is poorly suited to this
	// task category: simulate converting its whole balance into the best
	// token and re-run selection against the full target.
	for _, from := range t.registry.Symbols() {
		avail := snapshot[from]
		if from == best || avail <= 0 {
			continue
		}
		ft, _ := t.registry.Get(from)

		fiat := types.MulDiv(avail, ft.FiatRateMicros, 1)
		net := fiat - types.MulDiv(fiat, t.exchangeFeeBps, types.BpsScale)
		toAmount := types.MulDiv(net, 1, bt.FiatRateMicros)

		sim := make(map[token.Symbol]int64, len(snapshot))
		for sym, a := range snapshot {
			sim[sym] = a
		}
		delete(sim, from)
		sim[best] += toAmount

		if r := mix.Select(target, sim, cat, t.registry); r.Sufficient {
			s.ExchangeFrom = from
			s.ExchangeTo = best
			break
		}
	}

	return s
}

// bestTokenFor returns the token with the lowest task-adjusted cost per fiat
// covered, ties broken by symbol. Same ordering key as the mix selector.
func (t *Treasury) bestTokenFor(cat token.Category) (token.Symbol, bool) {
	var best token.Symbol
	var bestDisc, bestBurn int64
	found := false

	for _, sym := range t.registry.Symbols() {
		tt, _ := t.registry.Get(sym)
		disc := tt.DiscountBps(cat)
		if !found {
			best, bestDisc, bestBurn, found = sym, disc, tt.BurnBps, true
			continue
		}
		lhs := disc * (types.BpsScale - bestBurn)
		rhs := bestDisc * (types.BpsScale - tt.BurnBps)
		if lhs < rhs {
			best, bestDisc, bestBurn = sym, disc, tt.BurnBps
		}
	}
	return best, found
}

// ──────────────────────────────────────────────────
// Hold / Capture / Release
// ──────────────────────────────────────────────────

// Hold authorizes a TTL-bounded reservation covering the estimated cost of a
// request, moving the selected mix from available to reserved. Fails with
// ErrInsufficientFunds (no mutation) when the wallet cannot cover the
// estimate and debt mode is off.
func (t *Treasury) Hold(ctx context.Context, userID string, spec reservation.RequestSpec) (*reservation.Reservation, error) {
	est, err := t.estimate(spec, spec.EstimatedInputUnits, spec.EstimatedOutputUnits)
	if err != nil {
		return nil, err
	}

	t.locks.Lock(userID)
	res, grants, created, err := t.holdLocked(ctx, userID, spec, est)
	t.locks.Unlock(userID)
	if err != nil {
		return nil, err
	}

	if created {
		t.emitWalletCreated(ctx, mustWallet(ctx, t, userID), grants)
	}
	t.plugins.EmitHoldCreated(ctx, res)
	t.logger.Debug("hold authorized",
		"user_id", userID,
		"reservation_id", res.ID,
		"estimated_fiat", est,
		"expires_at", res.ExpiresAt,
	)
	return res, nil
}

func (t *Treasury) holdLocked(ctx context.Context, userID string, spec reservation.RequestSpec, est types.Fiat) (*reservation.Reservation, []*transaction.Transaction, bool, error) {
	w, grants, created, err := t.getOrCreateWalletLocked(ctx, userID)
	if err != nil {
		return nil, nil, false, err
	}

	sel := mix.Select(est, w.AvailableSnapshot(), spec.TaskCategory, t.registry)
	if !sel.Sufficient {
		if !t.debtEnabled {
			return nil, grants, created, fmt.Errorf("%w: short %s for estimate %s",
				ErrInsufficientFunds, sel.ShortfallFiat, est)
		}
		if w.DebtMicros+sel.ShortfallFiat.Micros > t.debtCeilingMicros {
			return nil, grants, created, fmt.Errorf("%w: %s would exceed ceiling",
				ErrDebtCeiling, sel.ShortfallFiat)
		}
	}

	for sym, amount := range sel.TotalDebits() {
		if err := w.Reserve(sym, amount); err != nil {
			return nil, grants, created, err
		}
	}

	res := &reservation.Reservation{
		Entity:        types.NewEntity(),
		ID:            id.NewReservationID(),
		UserID:        userID,
		Spec:          spec,
		HeldMix:       sel.Entries,
		EstimatedFiat: est,
		ShortfallFiat: sel.ShortfallFiat,
		Status:        reservation.StatusAuthorized,
		ExpiresAt:     time.Now().Add(t.reservationTTL),
	}

	if err := t.store.CreateReservation(ctx, res); err != nil {
		return nil, grants, created, err
	}
	w.Touch()
	if err := t.store.UpdateWallet(ctx, w); err != nil {
		return nil, grants, created, err
	}

	return res, grants, created, nil
}

// CaptureResult is the outcome of a settled capture.
type CaptureResult struct {
	Transaction *transaction.Transaction        `json:"transaction"`
	Balances    map[token.Symbol]wallet.Balance `json:"balances"`
}

// Capture settles an authorized reservation against actual usage: the held
// mix is consumed at its frozen rates, any unused remainder returns to
// available, and overage is covered from current available balances. On a
// partial settlement the transaction is still written with the shortfall
// recorded and ErrCaptureShortfall is returned alongside the result; callers
// must treat that as settled-with-debt, never retry it.
func (t *Treasury) Capture(ctx context.Context, resID id.ReservationID, usage transaction.Usage) (*CaptureResult, error) {
	ref, err := t.store.GetReservation(ctx, resID)
	if err != nil {
		return nil, err
	}

	t.locks.Lock(ref.UserID)
	result, res, captureErr := t.captureLocked(ctx, resID, usage)
	t.locks.Unlock(ref.UserID)

	if res != nil {
		// Capture found the reservation overdue and expired it in place.
		t.plugins.EmitReservationExpired(ctx, res)
	}
	if result != nil {
		t.plugins.EmitCaptured(ctx, result.Transaction)
		if result.Transaction.ShortfallFiat.IsPositive() {
			t.plugins.EmitCaptureShortfall(ctx, result.Transaction, result.Transaction.ShortfallFiat.Micros)
		}
		t.logger.Debug("reservation captured",
			"reservation_id", resID,
			"transaction_id", result.Transaction.ID,
			"fiat_cost", result.Transaction.FiatCost,
		)
	}
	return result, captureErr
}

// captureLocked performs the settlement under the user's lock. The returned
// reservation is non-nil only when the reservation was expired in place.
func (t *Treasury) captureLocked(ctx context.Context, resID id.ReservationID, usage transaction.Usage) (*CaptureResult, *reservation.Reservation, error) {
	res, err := t.store.GetReservation(ctx, resID)
	if err != nil {
		return nil, nil, err
	}
	if res.Status.Terminal() {
		return nil, nil, fmt.Errorf("%w: reservation %s is %s", ErrInvalidReservationState, res.ID, res.Status)
	}
	if res.Expired(time.Now()) {
		// The sweep would expire this momentarily; do it now so the
		// terminal transition still happens exactly once.
		expired, err := t.expireLocked(ctx, resID)
		if err != nil {
			return nil, nil, err
		}
		return nil, expired, fmt.Errorf("%w: reservation %s", ErrReservationExpired, res.ID)
	}

	actual, err := t.estimate(res.Spec, usage.InputUnits, usage.OutputUnits)
	if err != nil {
		return nil, nil, err
	}

	w, err := t.store.GetWallet(ctx, res.UserID)
	if err != nil {
		return nil, nil, err
	}

	used, leftover, uncovered := mix.Consume(res.HeldMix, actual)

	// Settle the consumed portion from reserved and return the remainder.
	for _, e := range used {
		if e.TotalDebit() == 0 {
			continue
		}
		if err := w.DebitReserved(e.Token, e.TotalDebit()); err != nil {
			return nil, nil, err
		}
	}
	for _, e := range leftover {
		if e.TotalDebit() == 0 {
			continue
		}
		if err := w.ReleaseReserved(e.Token, e.TotalDebit()); err != nil {
			return nil, nil, err
		}
	}

	finalMix := compactEntries(used)

	// Overage beyond the held value comes out of current available funds.
	shortfall := types.Zero(actual.Currency)
	if uncovered.IsPositive() {
		extra := mix.Select(uncovered, w.AvailableSnapshot(), res.Spec.TaskCategory, t.registry)
		for _, e := range extra.Entries {
			if err := w.DebitAvailable(e.Token, e.TotalDebit()); err != nil {
				return nil, nil, err
			}
		}
		finalMix = append(finalMix, extra.Entries...)
		shortfall = extra.ShortfallFiat
	}

	var captureErr error
	if shortfall.IsPositive() {
		if t.debtEnabled && w.DebtMicros+shortfall.Micros <= t.debtCeilingMicros {
			w.DebtMicros += shortfall.Micros
			shortfall = types.Zero(actual.Currency)
		} else {
			captureErr = fmt.Errorf("%w: %s unrecovered", ErrCaptureShortfall, shortfall)
		}
	}

	txn := &transaction.Transaction{
		Entity:        types.NewEntity(),
		ID:            id.NewTransactionID(),
		UserID:        res.UserID,
		ReservationID: res.ID,
		Kind:          transaction.KindCapture,
		Spec:          res.Spec,
		Usage:         usage,
		FinalMix:      finalMix,
		FiatCost:      actual,
		ShortfallFiat: shortfall,
		Status:        transaction.StatusCompleted,
		Timestamp:     time.Now(),
	}

	res.Status = reservation.StatusCaptured
	res.Touch()

	if err := t.store.UpdateReservation(ctx, res); err != nil {
		return nil, nil, err
	}
	w.Touch()
	if err := t.store.UpdateWallet(ctx, w); err != nil {
		return nil, nil, err
	}
	if err := t.store.AppendTransaction(ctx, txn); err != nil {
		return nil, nil, err
	}

	return &CaptureResult{Transaction: txn, Balances: balancesCopy(w)}, nil, captureErr
}

// Release cancels an authorized reservation, returning the full held mix
// from reserved to available. No transaction is written.
func (t *Treasury) Release(ctx context.Context, resID id.ReservationID) (*reservation.Reservation, error) {
	ref, err := t.store.GetReservation(ctx, resID)
	if err != nil {
		return nil, err
	}

	t.locks.Lock(ref.UserID)
	res, err := t.releaseLocked(ctx, resID, reservation.StatusReleased)
	t.locks.Unlock(ref.UserID)
	if err != nil {
		return nil, err
	}

	t.plugins.EmitReleased(ctx, res)
	t.logger.Debug("reservation released",
		"reservation_id", resID,
		"user_id", res.UserID,
	)
	return res, nil
}

// expireLocked transitions an overdue authorized reservation to Expired with
// the same balance effect as a release. Returns (nil, nil) when the
// reservation already reached a terminal state, making sweeps idempotent.
func (t *Treasury) expireLocked(ctx context.Context, resID id.ReservationID) (*reservation.Reservation, error) {
	res, err := t.store.GetReservation(ctx, resID)
	if err != nil {
		return nil, err
	}
	if res.Status.Terminal() {
		return nil, nil
	}
	return t.releaseLocked(ctx, resID, reservation.StatusExpired)
}

// releaseLocked returns the held mix to available and applies the given
// terminal status. Caller must hold the user's lock.
func (t *Treasury) releaseLocked(ctx context.Context, resID id.ReservationID, terminal reservation.Status) (*reservation.Reservation, error) {
	res, err := t.store.GetReservation(ctx, resID)
	if err != nil {
		return nil, err
	}
	if res.Status.Terminal() {
		return nil, fmt.Errorf("%w: reservation %s is %s", ErrInvalidReservationState, res.ID, res.Status)
	}

	w, err := t.store.GetWallet(ctx, res.UserID)
	if err != nil {
		return nil, err
	}

	held := mix.Result{Entries: res.HeldMix}
	for sym, amount := range held.TotalDebits() {
		if err := w.ReleaseReserved(sym, amount); err != nil {
			return nil, err
		}
	}

	res.Status = terminal
	res.Touch()

	if err := t.store.UpdateReservation(ctx, res); err != nil {
		return nil, err
	}
	w.Touch()
	if err := t.store.UpdateWallet(ctx, w); err != nil {
		return nil, err
	}

	return res, nil
}

// GetReservation retrieves a reservation by ID.
func (t *Treasury) GetReservation(ctx context.Context, resID id.ReservationID) (*reservation.Reservation, error) {
	return t.store.GetReservation(ctx, resID)
}

// ──────────────────────────────────────────────────
// Direct billing and credits
// ──────────────────────────────────────────────────

// DirectBill settles actual usage in one step without a prior hold, for
// trusted callers that report usage after the fact. Selection and atomicity
// match a combined hold and capture: insufficient funds with debt mode off
// fail before any mutation.
func (t *Treasury) DirectBill(ctx context.Context, userID string, spec reservation.RequestSpec, usage transaction.Usage) (*transaction.Transaction, error) {
	actual, err := t.estimate(spec, usage.InputUnits, usage.OutputUnits)
	if err != nil {
		return nil, err
	}

	t.locks.Lock(userID)
	txn, grants, created, err := t.directBillLocked(ctx, userID, spec, usage, actual)
	t.locks.Unlock(userID)
	if err != nil {
		return nil, err
	}

	if created {
		t.emitWalletCreated(ctx, mustWallet(ctx, t, userID), grants)
	}
	t.plugins.EmitDirectBilled(ctx, txn)
	t.logger.Debug("direct bill settled",
		"user_id", userID,
		"transaction_id", txn.ID,
		"fiat_cost", actual,
	)
	return txn, nil
}

func (t *Treasury) directBillLocked(ctx context.Context, userID string, spec reservation.RequestSpec, usage transaction.Usage, actual types.Fiat) (*transaction.Transaction, []*transaction.Transaction, bool, error) {
	w, grants, created, err := t.getOrCreateWalletLocked(ctx, userID)
	if err != nil {
		return nil, nil, false, err
	}

	sel := mix.Select(actual, w.AvailableSnapshot(), spec.TaskCategory, t.registry)
	if !sel.Sufficient {
		if !t.debtEnabled {
			return nil, grants, created, fmt.Errorf("%w: short %s for cost %s",
				ErrInsufficientFunds, sel.ShortfallFiat, actual)
		}
		if w.DebtMicros+sel.ShortfallFiat.Micros > t.debtCeilingMicros {
			return nil, grants, created, fmt.Errorf("%w: %s would exceed ceiling",
				ErrDebtCeiling, sel.ShortfallFiat)
		}
		w.DebtMicros += sel.ShortfallFiat.Micros
	}

	for _, e := range sel.Entries {
		if err := w.DebitAvailable(e.Token, e.TotalDebit()); err != nil {
			return nil, grants, created, err
		}
	}

	txn := &transaction.Transaction{
		Entity:    types.NewEntity(),
		ID:        id.NewTransactionID(),
		UserID:    userID,
		Kind:      transaction.KindDirect,
		Spec:      spec,
		Usage:     usage,
		FinalMix:  sel.Entries,
		FiatCost:  actual,
		Status:    transaction.StatusCompleted,
		Timestamp: time.Now(),
	}

	w.Touch()
	if err := t.store.UpdateWallet(ctx, w); err != nil {
		return nil, grants, created, err
	}
	if err := t.store.AppendTransaction(ctx, txn); err != nil {
		return nil, grants, created, err
	}

	return txn, grants, created, nil
}

// Credit adds tokens to a wallet from an external reward or purchase system
// and records the grant in the ledger. Succeeds for any amount >= 0.
func (t *Treasury) Credit(ctx context.Context, userID string, sym token.Symbol, amount int64, reason string) (*transaction.Transaction, error) {
	if amount < 0 {
		return nil, fmt.Errorf("%w: negative credit amount %d", ErrInvalidInput, amount)
	}
	if !t.registry.Has(sym) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, sym)
	}

	t.locks.Lock(userID)
	txn, grants, created, err := t.creditLocked(ctx, userID, sym, amount, reason)
	t.locks.Unlock(userID)
	if err != nil {
		return nil, err
	}

	if created {
		t.emitWalletCreated(ctx, mustWallet(ctx, t, userID), grants)
	}
	t.plugins.EmitCredited(ctx, txn)
	t.logger.Debug("wallet credited",
		"user_id", userID,
		"token", sym,
		"amount", amount,
		"reason", reason,
	)
	return txn, nil
}

func (t *Treasury) creditLocked(ctx context.Context, userID string, sym token.Symbol, amount int64, reason string) (*transaction.Transaction, []*transaction.Transaction, bool, error) {
	w, grants, created, err := t.getOrCreateWalletLocked(ctx, userID)
	if err != nil {
		return nil, nil, false, err
	}

	w.Credit(sym, amount)
	w.Touch()
	if err := t.store.UpdateWallet(ctx, w); err != nil {
		return nil, grants, created, err
	}

	txn := t.newCreditTransaction(userID, sym, amount, reason)
	if err := t.store.AppendTransaction(ctx, txn); err != nil {
		return nil, grants, created, err
	}

	return txn, grants, created, nil
}

func (t *Treasury) newCreditTransaction(userID string, sym token.Symbol, amount int64, reason string) *transaction.Transaction {
	return &transaction.Transaction{
		Entity:       types.NewEntity(),
		ID:           id.NewTransactionID(),
		UserID:       userID,
		Kind:         transaction.KindCredit,
		CreditToken:  sym,
		CreditAmount: amount,
		Reason:       reason,
		FiatCost:     types.Zero(t.registry.Currency()),
		Status:       transaction.StatusCompleted,
		Timestamp:    time.Now(),
	}
}

// GetTransaction retrieves a transaction by ID.
func (t *Treasury) GetTransaction(ctx context.Context, txnID id.TransactionID) (*transaction.Transaction, error) {
	return t.store.GetTransaction(ctx, txnID)
}

// ListTransactions lists a user's ledger entries.
func (t *Treasury) ListTransactions(ctx context.Context, userID string, opts transaction.ListOpts) ([]*transaction.Transaction, error) {
	return t.store.ListTransactions(ctx, userID, opts)
}

// ──────────────────────────────────────────────────
// Exchange
// ──────────────────────────────────────────────────

// Exchange converts available balance from one token type to another via the
// fiat pivot, minus the configured fee. Reserved balances are untouched and
// open reservations keep their frozen rates.
func (t *Treasury) Exchange(ctx context.Context, userID string, from, to token.Symbol, amount int64) (*exchange.Order, error) {
	if from == to {
		return nil, fmt.Errorf("%w: %s", ErrSameToken, from)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: exchange amount must be positive, got %d", ErrInvalidInput, amount)
	}
	fromType, ok := t.registry.Get(from)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, from)
	}
	toType, ok := t.registry.Get(to)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, to)
	}

	t.locks.Lock(userID)
	order, err := t.exchangeLocked(ctx, userID, fromType, toType, amount)
	t.locks.Unlock(userID)
	if err != nil {
		return nil, err
	}

	t.plugins.EmitExchanged(ctx, order)
	t.logger.Debug("exchange settled",
		"user_id", userID,
		"from", from,
		"to", to,
		"from_amount", amount,
		"to_amount", order.ToAmount,
		"fee", order.FeeFiat,
	)
	return order, nil
}

func (t *Treasury) exchangeLocked(ctx context.Context, userID string, from, to token.Type, amount int64) (*exchange.Order, error) {
	w, err := t.store.GetWallet(ctx, userID)
	if err != nil {
		return nil, err
	}

	if w.Available(from.Symbol) < amount {
		return nil, fmt.Errorf("%w: have %d %s, need %d",
			ErrInsufficientFunds, w.Available(from.Symbol), from.Symbol, amount)
	}

	currency := t.registry.Currency()
	fiatMicros := types.MulDiv(amount, from.FiatRateMicros, 1)
	feeMicros := types.MulDiv(fiatMicros, t.exchangeFeeBps, types.BpsScale)

	// Floor on the credited side so the fee is never undercut by rounding.
	// An amount so small it floors to zero would destroy the residual value
	// outright, so it is refused before anything moves.
	toAmount := types.MulDiv(fiatMicros-feeMicros, 1, to.FiatRateMicros)
	if toAmount <= 0 {
		return nil, fmt.Errorf("%w: %d %s converts to zero %s after the fee",
			ErrInvalidInput, amount, from.Symbol, to.Symbol)
	}

	if err := w.DebitAvailable(from.Symbol, amount); err != nil {
		return nil, err
	}
	w.Credit(to.Symbol, toAmount)

	order := &exchange.Order{
		Entity:     types.NewEntity(),
		ID:         id.NewExchangeOrderID(),
		UserID:     userID,
		FromToken:  from.Symbol,
		ToToken:    to.Symbol,
		FromAmount: amount,
		ToAmount:   toAmount,
		FiatValue:  types.Fiat{Micros: fiatMicros, Currency: currency},
		FeeFiat:    types.Fiat{Micros: feeMicros, Currency: currency},
		Timestamp:  time.Now(),
	}

	w.Touch()
	if err := t.store.UpdateWallet(ctx, w); err != nil {
		return nil, err
	}
	if err := t.store.AppendExchangeOrder(ctx, order); err != nil {
		return nil, err
	}

	return order, nil
}

// ListExchangeOrders lists a user's exchange history.
func (t *Treasury) ListExchangeOrders(ctx context.Context, userID string, opts exchange.ListOpts) ([]*exchange.Order, error) {
	return t.store.ListExchangeOrders(ctx, userID, opts)
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// estimate prices a request through the cost calculator. The same function
// prices estimates at hold time and actuals at capture time so the two can
// never drift.
func (t *Treasury) estimate(spec reservation.RequestSpec, inputUnits, outputUnits int64) (types.Fiat, error) {
	return t.calc.Estimate(spec.Provider, spec.Model, inputUnits, outputUnits)
}

// compactEntries drops zero-valued entries and copies the rest.
func compactEntries(entries []mix.Entry) []mix.Entry {
	out := make([]mix.Entry, 0, len(entries))
	for _, e := range entries {
		if e.Amount == 0 && e.BurnAmount == 0 {
			continue
		}
		out = append(out, e)
	}
	return out
}

func balancesCopy(w *wallet.Wallet) map[token.Symbol]wallet.Balance {
	out := make(map[token.Symbol]wallet.Balance, len(w.Balances))
	for sym, b := range w.Balances {
		out[sym] = b
	}
	return out
}

// mustWallet re-reads a wallet for event emission after the lock is
// released; emission tolerates a nil wallet if the read fails.
func mustWallet(ctx context.Context, t *Treasury, userID string) *wallet.Wallet {
	w, err := t.store.GetWallet(ctx, userID)
	if err != nil {
		return nil
	}
	return w
}
