package mongo

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/treasury/exchange"
	"github.com/xraph/treasury/id"
	"github.com/xraph/treasury/mix"
	"github.com/xraph/treasury/reservation"
	"github.com/xraph/treasury/token"
	"github.com/xraph/treasury/transaction"
	"github.com/xraph/treasury/types"
	"github.com/xraph/treasury/wallet"
)

// ==================== Wallet models ====================

type walletModel struct {
	grove.BaseModel `grove:"table:treasury_wallets"`

	ID         string                  `grove:"id,pk"       bson:"_id"`
	UserID     string                  `grove:"user_id"     bson:"user_id"`
	Balances   map[string]balanceModel `grove:"balances"    bson:"balances,omitempty"`
	DebtMicros int64                   `grove:"debt_micros" bson:"debt_micros"`
	CreatedAt  time.Time               `grove:"created_at"  bson:"created_at"`
	UpdatedAt  time.Time               `grove:"updated_at"  bson:"updated_at"`
}

type balanceModel struct {
	Available int64 `bson:"available"`
	Reserved  int64 `bson:"reserved"`
}

func toWalletModel(w *wallet.Wallet) *walletModel {
	balances := make(map[string]balanceModel, len(w.Balances))
	for sym, b := range w.Balances {
		balances[string(sym)] = balanceModel{
			Available: b.Available,
			Reserved:  b.Reserved,
		}
	}

	return &walletModel{
		ID:         w.ID.String(),
		UserID:     w.UserID,
		Balances:   balances,
		DebtMicros: w.DebtMicros,
		CreatedAt:  w.CreatedAt,
		UpdatedAt:  w.UpdatedAt,
	}
}

func fromWalletModel(m *walletModel) (*wallet.Wallet, error) {
	walletID, err := id.ParseWalletID(m.ID)
	if err != nil {
		return nil, err
	}

	balances := make(map[token.Symbol]wallet.Balance, len(m.Balances))
	for sym, b := range m.Balances {
		balances[token.Symbol(sym)] = wallet.Balance{
			Available: b.Available,
			Reserved:  b.Reserved,
		}
	}

	return &wallet.Wallet{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:         walletID,
		UserID:     m.UserID,
		Balances:   balances,
		DebtMicros: m.DebtMicros,
	}, nil
}

// ==================== Reservation models ====================

type reservationModel struct {
	grove.BaseModel `grove:"table:treasury_reservations"`

	ID              string          `grove:"id,pk"            bson:"_id"`
	UserID          string          `grove:"user_id"          bson:"user_id"`
	Spec            specModel       `grove:"spec"             bson:"spec"`
	HeldMix         []mixEntryModel `grove:"held_mix"         bson:"held_mix,omitempty"`
	EstimatedMicros int64           `grove:"estimated_micros" bson:"estimated_micros"`
	ShortfallMicros int64           `grove:"shortfall_micros" bson:"shortfall_micros"`
	Currency        string          `grove:"currency"         bson:"currency"`
	Status          string          `grove:"status"           bson:"status"`
	ExpiresAt       time.Time       `grove:"expires_at"       bson:"expires_at"`
	CreatedAt       time.Time       `grove:"created_at"       bson:"created_at"`
	UpdatedAt       time.Time       `grove:"updated_at"       bson:"updated_at"`
}

type specModel struct {
	Provider             string `bson:"provider"`
	Model                string `bson:"model"`
	EstimatedInputUnits  int64  `bson:"estimated_input_units"`
	EstimatedOutputUnits int64  `bson:"estimated_output_units"`
	TaskCategory         string `bson:"task_category,omitempty"`
}

type mixEntryModel struct {
	Token       string `bson:"token"`
	Amount      int64  `bson:"amount"`
	BurnAmount  int64  `bson:"burn_amount"`
	RateMicros  int64  `bson:"rate_micros"`
	BurnBps     int64  `bson:"burn_bps"`
	DiscountBps int64  `bson:"discount_bps"`
}

func toSpecModel(spec reservation.RequestSpec) specModel {
	return specModel{
		Provider:             spec.Provider,
		Model:                spec.Model,
		EstimatedInputUnits:  spec.EstimatedInputUnits,
		EstimatedOutputUnits: spec.EstimatedOutputUnits,
		TaskCategory:         string(spec.TaskCategory),
	}
}

func fromSpecModel(m specModel) reservation.RequestSpec {
	return reservation.RequestSpec{
		Provider:             m.Provider,
		Model:                m.Model,
		EstimatedInputUnits:  m.EstimatedInputUnits,
		EstimatedOutputUnits: m.EstimatedOutputUnits,
		TaskCategory:         token.Category(m.TaskCategory),
	}
}

func toMixEntryModels(entries []mix.Entry) []mixEntryModel {
	if len(entries) == 0 {
		return nil
	}
	models := make([]mixEntryModel, len(entries))
	for i, e := range entries {
		models[i] = mixEntryModel{
			Token:       string(e.Token),
			Amount:      e.Amount,
			BurnAmount:  e.BurnAmount,
			RateMicros:  e.RateMicros,
			BurnBps:     e.BurnBps,
			DiscountBps: e.DiscountBps,
		}
	}
	return models
}

func fromMixEntryModels(models []mixEntryModel) []mix.Entry {
	if len(models) == 0 {
		return nil
	}
	entries := make([]mix.Entry, len(models))
	for i, m := range models {
		entries[i] = mix.Entry{
			Token:       token.Symbol(m.Token),
			Amount:      m.Amount,
			BurnAmount:  m.BurnAmount,
			RateMicros:  m.RateMicros,
			BurnBps:     m.BurnBps,
			DiscountBps: m.DiscountBps,
		}
	}
	return entries
}

func toReservationModel(r *reservation.Reservation) *reservationModel {
	return &reservationModel{
		ID:              r.ID.String(),
		UserID:          r.UserID,
		Spec:            toSpecModel(r.Spec),
		HeldMix:         toMixEntryModels(r.HeldMix),
		EstimatedMicros: r.EstimatedFiat.Micros,
		ShortfallMicros: r.ShortfallFiat.Micros,
		Currency:        r.EstimatedFiat.Currency,
		Status:          string(r.Status),
		ExpiresAt:       r.ExpiresAt,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func fromReservationModel(m *reservationModel) (*reservation.Reservation, error) {
	resID, err := id.ParseReservationID(m.ID)
	if err != nil {
		return nil, err
	}

	return &reservation.Reservation{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:            resID,
		UserID:        m.UserID,
		Spec:          fromSpecModel(m.Spec),
		HeldMix:       fromMixEntryModels(m.HeldMix),
		EstimatedFiat: types.Fiat{Micros: m.EstimatedMicros, Currency: m.Currency},
		ShortfallFiat: types.Fiat{Micros: m.ShortfallMicros, Currency: m.Currency},
		Status:        reservation.Status(m.Status),
		ExpiresAt:     m.ExpiresAt,
	}, nil
}

// ==================== Transaction models ====================

type transactionModel struct {
	grove.BaseModel `grove:"table:treasury_transactions"`

	ID              string          `grove:"id,pk"            bson:"_id"`
	UserID          string          `grove:"user_id"          bson:"user_id"`
	ReservationID   string          `grove:"reservation_id"   bson:"reservation_id"`
	Kind            string          `grove:"kind"             bson:"kind"`
	Spec            specModel       `grove:"spec"             bson:"spec"`
	InputUnits      int64           `grove:"input_units"      bson:"input_units"`
	OutputUnits     int64           `grove:"output_units"     bson:"output_units"`
	FinalMix        []mixEntryModel `grove:"final_mix"        bson:"final_mix,omitempty"`
	FiatCostMicros  int64           `grove:"fiat_cost_micros" bson:"fiat_cost_micros"`
	ShortfallMicros int64           `grove:"shortfall_micros" bson:"shortfall_micros"`
	Currency        string          `grove:"currency"         bson:"currency"`
	CreditToken     string          `grove:"credit_token"     bson:"credit_token"`
	CreditAmount    int64           `grove:"credit_amount"    bson:"credit_amount"`
	Reason          string          `grove:"reason"           bson:"reason"`
	Status          string          `grove:"status"           bson:"status"`
	Timestamp       time.Time       `grove:"timestamp"        bson:"timestamp"`
	CreatedAt       time.Time       `grove:"created_at"       bson:"created_at"`
	UpdatedAt       time.Time       `grove:"updated_at"       bson:"updated_at"`
}

func toTransactionModel(t *transaction.Transaction) *transactionModel {
	return &transactionModel{
		ID:              t.ID.String(),
		UserID:          t.UserID,
		ReservationID:   t.ReservationID.String(),
		Kind:            string(t.Kind),
		Spec:            toSpecModel(t.Spec),
		InputUnits:      t.Usage.InputUnits,
		OutputUnits:     t.Usage.OutputUnits,
		FinalMix:        toMixEntryModels(t.FinalMix),
		FiatCostMicros:  t.FiatCost.Micros,
		ShortfallMicros: t.ShortfallFiat.Micros,
		Currency:        t.FiatCost.Currency,
		CreditToken:     string(t.CreditToken),
		CreditAmount:    t.CreditAmount,
		Reason:          t.Reason,
		Status:          string(t.Status),
		Timestamp:       t.Timestamp,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

func fromTransactionModel(m *transactionModel) (*transaction.Transaction, error) {
	txnID, err := id.ParseTransactionID(m.ID)
	if err != nil {
		return nil, err
	}

	resID := id.Nil
	if m.ReservationID != "" {
		resID, err = id.ParseReservationID(m.ReservationID)
		if err != nil {
			return nil, err
		}
	}

	return &transaction.Transaction{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:            txnID,
		UserID:        m.UserID,
		ReservationID: resID,
		Kind:          transaction.Kind(m.Kind),
		Spec:          fromSpecModel(m.Spec),
		Usage: transaction.Usage{
			InputUnits:  m.InputUnits,
			OutputUnits: m.OutputUnits,
		},
		FinalMix:      fromMixEntryModels(m.FinalMix),
		FiatCost:      types.Fiat{Micros: m.FiatCostMicros, Currency: m.Currency},
		ShortfallFiat: types.Fiat{Micros: m.ShortfallMicros, Currency: m.Currency},
		CreditToken:   token.Symbol(m.CreditToken),
		CreditAmount:  m.CreditAmount,
		Reason:        m.Reason,
		Status:        transaction.Status(m.Status),
		Timestamp:     m.Timestamp,
	}, nil
}

// ==================== Exchange Order models ====================

type exchangeOrderModel struct {
	grove.BaseModel `grove:"table:treasury_exchange_orders"`

	ID              string    `grove:"id,pk"             bson:"_id"`
	UserID          string    `grove:"user_id"           bson:"user_id"`
	FromToken       string    `grove:"from_token"        bson:"from_token"`
	ToToken         string    `grove:"to_token"          bson:"to_token"`
	FromAmount      int64     `grove:"from_amount"       bson:"from_amount"`
	ToAmount        int64     `grove:"to_amount"         bson:"to_amount"`
	FiatValueMicros int64     `grove:"fiat_value_micros" bson:"fiat_value_micros"`
	FeeMicros       int64     `grove:"fee_micros"        bson:"fee_micros"`
	Currency        string    `grove:"currency"          bson:"currency"`
	Timestamp       time.Time `grove:"timestamp"         bson:"timestamp"`
	CreatedAt       time.Time `grove:"created_at"        bson:"created_at"`
	UpdatedAt       time.Time `grove:"updated_at"        bson:"updated_at"`
}

func toExchangeOrderModel(o *exchange.Order) *exchangeOrderModel {
	return &exchangeOrderModel{
		ID:              o.ID.String(),
		UserID:          o.UserID,
		FromToken:       string(o.FromToken),
		ToToken:         string(o.ToToken),
		FromAmount:      o.FromAmount,
		ToAmount:        o.ToAmount,
		FiatValueMicros: o.FiatValue.Micros,
		FeeMicros:       o.FeeFiat.Micros,
		Currency:        o.FiatValue.Currency,
		Timestamp:       o.Timestamp,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func fromExchangeOrderModel(m *exchangeOrderModel) (*exchange.Order, error) {
	orderID, err := id.ParseExchangeOrderID(m.ID)
	if err != nil {
		return nil, err
	}

	return &exchange.Order{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:         orderID,
		UserID:     m.UserID,
		FromToken:  token.Symbol(m.FromToken),
		ToToken:    token.Symbol(m.ToToken),
		FromAmount: m.FromAmount,
		ToAmount:   m.ToAmount,
		FiatValue:  types.Fiat{Micros: m.FiatValueMicros, Currency: m.Currency},
		FeeFiat:    types.Fiat{Micros: m.FeeMicros, Currency: m.Currency},
		Timestamp:  m.Timestamp,
	}, nil
}
