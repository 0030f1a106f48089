package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	interfaces "github.com/sheikh-saqib/custody-core/internal/interfaces"
	"github.com/sheikh-saqib/custody-core/internal/models"
)

const ensureBalance = `INSERT INTO trader_balances (trader_id, currency, total, locked, updated_at)
VALUES ($1, $2, 0, 0, $3)
ON CONFLICT (trader_id, currency) DO NOTHING`

func scanBalance(row scanner) (models.TraderBalance, error) {
	var b models.TraderBalance
	if err := row.Scan(&b.TraderID, &b.Currency, &b.Total, &b.Locked, &b.UpdatedAt); err != nil {
		return models.TraderBalance{}, err
	}
	b.Available = b.Total.Sub(b.Locked)
	return b, nil
}

// GetBalance returns the balance row, creating a zeroed one on first access.
func (p *PostgresStore) GetBalance(ctx context.Context, traderID, currency string) (models.TraderBalance, error) {
	const query = `SELECT trader_id, currency, total, locked, updated_at
	FROM trader_balances WHERE trader_id = $1 AND currency = $2`

	if _, err := p.db.ExecContext(ctx, ensureBalance, traderID, currency, p.now().UTC()); err != nil {
		return models.TraderBalance{}, models.StorageError("ensure balance", err)
	}
	b, err := scanBalance(p.db.QueryRowContext(ctx, query, traderID, currency))
	if err != nil {
		return models.TraderBalance{}, models.StorageError("get balance", err)
	}
	return b, nil
}

func (p *PostgresStore) ListBalances(ctx context.Context, traderID string) ([]models.TraderBalance, error) {
	const query = `SELECT trader_id, currency, total, locked, updated_at
	FROM trader_balances WHERE trader_id = $1 ORDER BY currency`

	rows, err := p.db.QueryContext(ctx, query, traderID)
	if err != nil {
		return nil, models.StorageError("list balances", err)
	}
	defer rows.Close()

	var balances []models.TraderBalance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, models.StorageError("scan balance", err)
		}
		balances = append(balances, b)
	}
	if err := rows.Err(); err != nil {
		return nil, models.StorageError("list balances", err)
	}
	return balances, nil
}

// RunInTx runs fn inside BEGIN/COMMIT and rolls back if fn fails.
func (p *PostgresStore) RunInTx(ctx context.Context, fn func(uow interfaces.UnitOfWork) error) (err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return models.StorageError("begin", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&pgTx{tx: tx, now: p.now}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return models.StorageError("commit", err)
	}
	return nil
}

type pgTx struct {
	tx  *sql.Tx
	now func() time.Time
}

// AdjustBalance relies on the row lock taken by UPDATE, so concurrent
// adjustments of one balance serialize and each sees the other's result.
func (t *pgTx) AdjustBalance(ctx context.Context, traderID, currency string, delta models.BalanceDelta) (models.BalanceChange, error) {
	const query = `UPDATE trader_balances
	SET total = total + $3, locked = locked + $4, updated_at = $5
	WHERE trader_id = $1 AND currency = $2
	  AND total + $3 >= 0
	  AND locked + $4 >= 0
	  AND (total + $3) - (locked + $4) >= 0
	RETURNING total, locked`

	now := t.now().UTC()
	if _, err := t.tx.ExecContext(ctx, ensureBalance, traderID, currency, now); err != nil {
		return models.BalanceChange{}, models.StorageError("ensure balance", err)
	}

	after := models.TraderBalance{TraderID: traderID, Currency: currency, UpdatedAt: now}
	err := t.tx.QueryRowContext(ctx, query, traderID, currency, delta.Total, delta.Locked, now).
		Scan(&after.Total, &after.Locked)
	if errors.Is(err, sql.ErrNoRows) {
		return models.BalanceChange{}, fmt.Errorf("%w: %s %s delta_total=%s delta_locked=%s",
			models.ErrBalanceConstraint, traderID, currency, delta.Total, delta.Locked)
	}
	if err != nil {
		return models.BalanceChange{}, models.StorageError("adjust balance", err)
	}
	after.Available = after.Total.Sub(after.Locked)

	before := after
	before.Total = after.Total.Sub(delta.Total)
	before.Locked = after.Locked.Sub(delta.Locked)
	before.Available = before.Total.Sub(before.Locked)
	return models.BalanceChange{Before: before, After: after}, nil
}

func (t *pgTx) SaveTransaction(ctx context.Context, tx models.Transaction) error {
	return saveTransaction(ctx, t.tx, tx)
}

func (t *pgTx) AppendEntries(ctx context.Context, entries ...models.LedgerEntry) error {
	return insertEntries(ctx, t.tx, entries)
}

const lockColumns = `trade_id, trader_id, currency, amount, remaining, status, created_at, updated_at`

func scanLock(row scanner) (models.EscrowLock, error) {
	var (
		l      models.EscrowLock
		status string
	)
	err := row.Scan(&l.TradeID, &l.TraderID, &l.Currency, &l.Amount, &l.Remaining, &status, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return models.EscrowLock{}, err
	}
	l.Status = models.LockStatus(status)
	return l, nil
}

// CreateEscrowLock maps a primary key conflict to models.ErrDuplicateTransaction.
func (t *pgTx) CreateEscrowLock(ctx context.Context, lock models.EscrowLock) error {
	const query = `INSERT INTO escrow_locks (` + lockColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := t.tx.ExecContext(ctx, query,
		lock.TradeID, lock.TraderID, lock.Currency, lock.Amount, lock.Remaining,
		string(lock.Status), lock.CreatedAt, lock.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: escrow lock for trade %s", models.ErrDuplicateTransaction, lock.TradeID)
	}
	return models.StorageError("create escrow lock", err)
}

// SettleEscrowLock holds the lock row FOR UPDATE, so a release and an unlock
// racing on one trade serialize and the second sees what the first left.
func (t *pgTx) SettleEscrowLock(ctx context.Context, tradeID, traderID, currency string, amount decimal.Decimal, closeAs models.LockStatus) (models.EscrowLock, error) {
	const (
		selectQuery = `SELECT ` + lockColumns + ` FROM escrow_locks WHERE trade_id = $1 FOR UPDATE`
		updateQuery = `UPDATE escrow_locks SET remaining = $2, status = $3, updated_at = $4 WHERE trade_id = $1`
	)

	l, err := scanLock(t.tx.QueryRowContext(ctx, selectQuery, tradeID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.EscrowLock{}, fmt.Errorf("%w: trade %s", models.ErrLockNotFound, tradeID)
	}
	if err != nil {
		return models.EscrowLock{}, models.StorageError("load escrow lock", err)
	}
	if !l.Holds(traderID, currency) {
		return models.EscrowLock{}, fmt.Errorf("%w: trade %s trader %s %s", models.ErrLockNotFound, tradeID, traderID, currency)
	}
	next, ok := l.Settle(amount, closeAs, t.now().UTC())
	if !ok {
		return models.EscrowLock{}, fmt.Errorf("%w: trade %s remaining=%s amount=%s",
			models.ErrBalanceConstraint, tradeID, l.Remaining, amount)
	}
	if _, err := t.tx.ExecContext(ctx, updateQuery, tradeID, next.Remaining, string(next.Status), next.UpdatedAt); err != nil {
		return models.EscrowLock{}, models.StorageError("settle escrow lock", err)
	}
	return next, nil
}

// GetEscrowLock returns the lock recorded for tradeID.
func (p *PostgresStore) GetEscrowLock(ctx context.Context, tradeID string) (models.EscrowLock, error) {
	const query = `SELECT ` + lockColumns + ` FROM escrow_locks WHERE trade_id = $1`

	l, err := scanLock(p.db.QueryRowContext(ctx, query, tradeID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.EscrowLock{}, fmt.Errorf("escrow lock %s: %w", tradeID, models.ErrNotFound)
	}
	if err != nil {
		return models.EscrowLock{}, models.StorageError("get escrow lock", err)
	}
	return l, nil
}
