package postgres

import (
	"encoding/json"
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

	ID         string          `grove:"id,pk"`
	UserID     string          `grove:"user_id"`
	Balances   json.RawMessage `grove:"balances,type:jsonb"`
	DebtMicros int64           `grove:"debt_micros"`
	CreatedAt  time.Time       `grove:"created_at"`
	UpdatedAt  time.Time       `grove:"updated_at"`
}

func toWalletModel(w *wallet.Wallet) *walletModel {
	balances, _ := json.Marshal(w.Balances) //nolint:errcheck // best-effort

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

	balances := make(map[token.Symbol]wallet.Balance)
	if len(m.Balances) > 0 {
		_ = json.Unmarshal(m.Balances, &balances) //nolint:errcheck // best-effort
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

	ID              string          `grove:"id,pk"`
	UserID          string          `grove:"user_id"`
	Spec            json.RawMessage `grove:"spec,type:jsonb"`
	HeldMix         json.RawMessage `grove:"held_mix,type:jsonb"`
	EstimatedMicros int64           `grove:"estimated_micros"`
	ShortfallMicros int64           `grove:"shortfall_micros"`
	Currency        string          `grove:"currency"`
	Status          string          `grove:"status"`
	ExpiresAt       time.Time       `grove:"expires_at"`
	CreatedAt       time.Time       `grove:"created_at"`
	UpdatedAt       time.Time       `grove:"updated_at"`
}

func toReservationModel(r *reservation.Reservation) *reservationModel {
	spec, _ := json.Marshal(r.Spec)       //nolint:errcheck // best-effort
	heldMix, _ := json.Marshal(r.HeldMix) //nolint:errcheck // best-effort

	return &reservationModel{
		ID:              r.ID.String(),
		UserID:          r.UserID,
		Spec:            spec,
		HeldMix:         heldMix,
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

	var spec reservation.RequestSpec
	if len(m.Spec) > 0 {
		_ = json.Unmarshal(m.Spec, &spec) //nolint:errcheck // best-effort
	}

	var heldMix []mix.Entry
	if len(m.HeldMix) > 0 {
		_ = json.Unmarshal(m.HeldMix, &heldMix) //nolint:errcheck // best-effort
	}

	return &reservation.Reservation{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:            resID,
		UserID:        m.UserID,
		Spec:          spec,
		HeldMix:       heldMix,
		EstimatedFiat: types.Fiat{Micros: m.EstimatedMicros, Currency: m.Currency},
		ShortfallFiat: types.Fiat{Micros: m.ShortfallMicros, Currency: m.Currency},
		Status:        reservation.Status(m.Status),
		ExpiresAt:     m.ExpiresAt,
	}, nil
}

// ==================== Transaction models ====================

type transactionModel struct {
	grove.BaseModel `grove:"table:treasury_transactions"`

	ID              string          `grove:"id,pk"`
	UserID          string          `grove:"user_id"`
	ReservationID   string          `grove:"reservation_id"`
	Kind            string          `grove:"kind"`
	Spec            json.RawMessage `grove:"spec,type:jsonb"`
	InputUnits      int64           `grove:"input_units"`
	OutputUnits     int64           `grove:"output_units"`
	FinalMix        json.RawMessage `grove:"final_mix,type:jsonb"`
	FiatCostMicros  int64           `grove:"fiat_cost_micros"`
	ShortfallMicros int64           `grove:"shortfall_micros"`
	Currency        string          `grove:"currency"`
	CreditToken     string          `grove:"credit_token"`
	CreditAmount    int64           `grove:"credit_amount"`
	Reason          string          `grove:"reason"`
	Status          string          `grove:"status"`
	Timestamp       time.Time       `grove:"timestamp"`
	CreatedAt       time.Time       `grove:"created_at"`
	UpdatedAt       time.Time       `grove:"updated_at"`
}

func toTransactionModel(t *transaction.Transaction) *transactionModel {
	spec, _ := json.Marshal(t.Spec)         //nolint:errcheck // best-effort
	finalMix, _ := json.Marshal(t.FinalMix) //nolint:errcheck // best-effort

	return &transactionModel{
		ID:              t.ID.String(),
		UserID:          t.UserID,
		ReservationID:   t.ReservationID.String(),
		Kind:            string(t.Kind),
		Spec:            spec,
		InputUnits:      t.Usage.InputUnits,
		OutputUnits:     t.Usage.OutputUnits,
		FinalMix:        finalMix,
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

	var spec reservation.RequestSpec
	if len(m.Spec) > 0 {
		_ = json.Unmarshal(m.Spec, &spec) //nolint:errcheck // best-effort
	}

	var finalMix []mix.Entry
	if len(m.FinalMix) > 0 {
		_ = json.Unmarshal(m.FinalMix, &finalMix) //nolint:errcheck // best-effort
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
		Spec:          spec,
		Usage: transaction.Usage{
			InputUnits:  m.InputUnits,
			OutputUnits: m.OutputUnits,
		},
		FinalMix:      finalMix,
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

	ID              string    `grove:"id,pk"`
	UserID          string    `grove:"user_id"`
	FromToken       string    `grove:"from_token"`
	ToToken         string    `grove:"to_token"`
	FromAmount      int64     `grove:"from_amount"`
	ToAmount        int64     `grove:"to_amount"`
	FiatValueMicros int64     `grove:"fiat_value_micros"`
	FeeMicros       int64     `grove:"fee_micros"`
	Currency        string    `grove:"currency"`
	Timestamp       time.Time `grove:"timestamp"`
	CreatedAt       time.Time `grove:"created_at"`
	UpdatedAt       time.Time `grove:"updated_at"`
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
