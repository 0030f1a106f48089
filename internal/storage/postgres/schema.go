package postgres

import (
	"context"

	"github.com/sheikh-saqib/custody-core/internal/models"
)

// Schema is the full table layout applied by Migrate.
const Schema = `
CREATE TABLE IF NOT EXISTS transactions (
	id              TEXT PRIMARY KEY,
	idempotency_key TEXT NOT NULL UNIQUE,
	kind            TEXT NOT NULL,
	reference       TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS ledger_entries (
	seq                 BIGSERIAL,
	id                  TEXT PRIMARY KEY,
	transaction_id      TEXT NOT NULL,
	entry_type          TEXT NOT NULL,
	from_type           TEXT NOT NULL,
	from_id             TEXT NOT NULL,
	to_type             TEXT NOT NULL,
	to_id               TEXT NOT NULL,
	currency            TEXT NOT NULL,
	amount              NUMERIC(36, 18) NOT NULL CHECK (amount >= 0),
	from_balance_before NUMERIC(36, 18) NOT NULL DEFAULT 0,
	from_balance_after  NUMERIC(36, 18) NOT NULL DEFAULT 0,
	to_balance_before   NUMERIC(36, 18) NOT NULL DEFAULT 0,
	to_balance_after    NUMERIC(36, 18) NOT NULL DEFAULT 0,
	is_revenue          BOOLEAN NOT NULL DEFAULT FALSE,
	revenue_source      TEXT NOT NULL DEFAULT '',
	description         TEXT NOT NULL DEFAULT '',
	metadata            JSONB NOT NULL DEFAULT '{}',
	created_at          TIMESTAMPTZ NOT NULL,
	checksum            TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS ledger_entries_tx_idx ON ledger_entries (transaction_id);
CREATE INDEX IF NOT EXISTS ledger_entries_from_idx ON ledger_entries (from_type, from_id, created_at);
CREATE INDEX IF NOT EXISTS ledger_entries_to_idx ON ledger_entries (to_type, to_id, created_at);
CREATE INDEX IF NOT EXISTS ledger_entries_created_idx ON ledger_entries (created_at DESC);
CREATE INDEX IF NOT EXISTS ledger_entries_type_idx ON ledger_entries (entry_type);
CREATE INDEX IF NOT EXISTS ledger_entries_revenue_idx ON ledger_entries (is_revenue, created_at DESC);
CREATE INDEX IF NOT EXISTS ledger_entries_currency_idx ON ledger_entries (currency, created_at DESC);

CREATE TABLE IF NOT EXISTS trader_balances (
	trader_id  TEXT NOT NULL,
	currency   TEXT NOT NULL,
	total      NUMERIC(36, 18) NOT NULL DEFAULT 0 CHECK (total >= 0),
	locked     NUMERIC(36, 18) NOT NULL DEFAULT 0 CHECK (locked >= 0 AND locked <= total),
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (trader_id, currency)
);

CREATE TABLE IF NOT EXISTS escrow_locks (
	trade_id   TEXT PRIMARY KEY,
	trader_id  TEXT NOT NULL,
	currency   TEXT NOT NULL,
	amount     NUMERIC(36, 18) NOT NULL CHECK (amount > 0),
	remaining  NUMERIC(36, 18) NOT NULL CHECK (remaining >= 0 AND remaining <= amount),
	status     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS escrow_locks_trader_idx ON escrow_locks (trader_id, status);

CREATE TABLE IF NOT EXISTS reconciliation_reports (
	report_id    TEXT PRIMARY KEY,
	period       TEXT NOT NULL,
	start_date   TIMESTAMPTZ NOT NULL,
	end_date     TIMESTAMPTZ NOT NULL,
	generated_at TIMESTAMPTZ NOT NULL,
	body         JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS reconciliation_reports_period_idx ON reconciliation_reports (period, generated_at DESC);

CREATE TABLE IF NOT EXISTS reconciliation_alerts (
	id           TEXT PRIMARY KEY,
	report_id    TEXT NOT NULL REFERENCES reconciliation_reports (report_id),
	type         TEXT NOT NULL,
	severity     TEXT NOT NULL,
	currency     TEXT NOT NULL,
	difference   NUMERIC(36, 18) NOT NULL,
	message      TEXT NOT NULL,
	acknowledged BOOLEAN NOT NULL DEFAULT FALSE,
	created_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS reconciliation_alerts_ack_idx ON reconciliation_alerts (acknowledged, severity);

CREATE TABLE IF NOT EXISTS risk_global_config (
	id         SMALLINT PRIMARY KEY CHECK (id = 1),
	config     JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS risk_bot_config (
	bot_id     TEXT PRIMARY KEY,
	config     JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS risk_user_kill_switches (
	user_id    TEXT PRIMARY KEY,
	active     BOOLEAN NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS risk_violations (
	id            TEXT PRIMARY KEY,
	bot_id        TEXT NOT NULL,
	user_id       TEXT NOT NULL,
	symbol        TEXT NOT NULL,
	action        TEXT NOT NULL,
	reason        TEXT NOT NULL,
	details       TEXT NOT NULL,
	checks_passed TEXT[] NOT NULL,
	intent        JSONB NOT NULL DEFAULT '{}',
	created_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS risk_violations_bot_idx ON risk_violations (bot_id, created_at);
`

// Migrate creates any missing tables. It is safe to run on every start.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, Schema); err != nil {
		return models.StorageError("migrate", err)
	}
	return nil
}
