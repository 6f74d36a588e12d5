package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Treasury store.
var Migrations = migrate.NewGroup("treasury")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_treasury_wallets",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS treasury_wallets (
    id          TEXT PRIMARY KEY,
    user_id     TEXT NOT NULL DEFAULT '',
    balances    JSONB NOT NULL DEFAULT '{}',
    debt_micros BIGINT NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_treasury_wallets_user ON treasury_wallets (user_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS treasury_wallets`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_treasury_reservations",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS treasury_reservations (
    id               TEXT PRIMARY KEY,
    user_id          TEXT NOT NULL DEFAULT '',
    spec             JSONB NOT NULL DEFAULT '{}',
    held_mix         JSONB NOT NULL DEFAULT '[]',
    estimated_micros BIGINT NOT NULL DEFAULT 0,
    shortfall_micros BIGINT NOT NULL DEFAULT 0,
    currency         TEXT NOT NULL DEFAULT '',
    status           TEXT NOT NULL DEFAULT 'authorized',
    expires_at       TIMESTAMPTZ NOT NULL,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_treasury_reservations_user ON treasury_reservations (user_id);
CREATE INDEX IF NOT EXISTS idx_treasury_reservations_sweep ON treasury_reservations (status, expires_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS treasury_reservations`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_treasury_transactions",
			Version: "20240101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS treasury_transactions (
    id               TEXT PRIMARY KEY,
    user_id          TEXT NOT NULL DEFAULT '',
    reservation_id   TEXT NOT NULL DEFAULT '',
    kind             TEXT NOT NULL DEFAULT '',
    spec             JSONB NOT NULL DEFAULT '{}',
    input_units      BIGINT NOT NULL DEFAULT 0,
    output_units     BIGINT NOT NULL DEFAULT 0,
    final_mix        JSONB NOT NULL DEFAULT '[]',
    fiat_cost_micros BIGINT NOT NULL DEFAULT 0,
    shortfall_micros BIGINT NOT NULL DEFAULT 0,
    currency         TEXT NOT NULL DEFAULT '',
    credit_token     TEXT NOT NULL DEFAULT '',
    credit_amount    BIGINT NOT NULL DEFAULT 0,
    reason           TEXT NOT NULL DEFAULT '',
    status           TEXT NOT NULL DEFAULT 'completed',
    timestamp        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_treasury_txns_user_time ON treasury_transactions (user_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_treasury_txns_reservation ON treasury_transactions (reservation_id) WHERE reservation_id != '';
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS treasury_transactions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_treasury_exchange_orders",
			Version: "20240101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS treasury_exchange_orders (
    id                TEXT PRIMARY KEY,
    user_id           TEXT NOT NULL DEFAULT '',
    from_token        TEXT NOT NULL DEFAULT '',
    to_token          TEXT NOT NULL DEFAULT '',
    from_amount       BIGINT NOT NULL DEFAULT 0,
    to_amount         BIGINT NOT NULL DEFAULT 0,
    fiat_value_micros BIGINT NOT NULL DEFAULT 0,
    fee_micros        BIGINT NOT NULL DEFAULT 0,
    currency          TEXT NOT NULL DEFAULT '',
    timestamp         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_treasury_orders_user_time ON treasury_exchange_orders (user_id, timestamp);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS treasury_exchange_orders`)
				return err
			},
		},
	)
}
