package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	interfaces "github.com/sheikh-saqib/custody-core/internal/interfaces"
	"github.com/sheikh-saqib/custody-core/internal/models"
)

const uniqueViolation = "23505"

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// PostgresStore implements every store interface on a single database.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresStore wraps an open pool. Call Migrate before first use.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:  db,
		now: time.Now,
	}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// limitArg maps a non-positive limit to NULL, which Postgres reads as no limit.
func limitArg(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}

// TransactionExists reports whether an idempotency key has been committed.
func (p *PostgresStore) TransactionExists(ctx context.Context, idempotencyKey string) (bool, error) {
	const query = `SELECT 1 FROM transactions WHERE idempotency_key = $1 LIMIT 1`

	var exists int
	err := p.db.QueryRowContext(ctx, query, idempotencyKey).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, models.StorageError("transaction exists", err)
	}
	return true, nil
}

func saveTransaction(ctx context.Context, q queryer, tx models.Transaction) error {
	const query = `INSERT INTO transactions (id, idempotency_key, kind, reference, created_at)
	VALUES ($1, $2, $3, $4, $5)`

	_, err := q.ExecContext(ctx, query, tx.ID, tx.IdempotencyKey, tx.Kind, tx.Reference, tx.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", models.ErrDuplicateTransaction, tx.IdempotencyKey)
	}
	return models.StorageError("save transaction", err)
}

const entryColumns = `id, transaction_id, entry_type, from_type, from_id, to_type, to_id, currency, amount,
	from_balance_before, from_balance_after, to_balance_before, to_balance_after,
	is_revenue, revenue_source, description, metadata, created_at, checksum`

func insertEntries(ctx context.Context, q queryer, entries []models.LedgerEntry) error {
	const query = `INSERT INTO ledger_entries (` + entryColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	for _, e := range entries {
		metadata := []byte("{}")
		if len(e.Metadata) > 0 {
			var err error
			if metadata, err = json.Marshal(e.Metadata); err != nil {
				return fmt.Errorf("marshal metadata for entry %s: %w", e.ID, err)
			}
		}
		_, err := q.ExecContext(ctx, query,
			e.ID, e.TransactionID, string(e.Type),
			string(e.From.Type), e.From.ID, string(e.To.Type), e.To.ID,
			e.Currency, e.Amount,
			e.FromBalanceBefore, e.FromBalanceAfter, e.ToBalanceBefore, e.ToBalanceAfter,
			e.IsRevenue, e.RevenueSource, e.Description, metadata, e.CreatedAt, e.Checksum)
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: ledger entry %s already exists", models.ErrDuplicateTransaction, e.ID)
		}
		if err != nil {
			return models.StorageError("insert ledger entry", err)
		}
	}
	return nil
}

func scanEntry(row scanner) (models.LedgerEntry, error) {
	var (
		e                     models.LedgerEntry
		entryType, fromT, toT string
		metadata              []byte
	)
	err := row.Scan(
		&e.ID, &e.TransactionID, &entryType,
		&fromT, &e.From.ID, &toT, &e.To.ID,
		&e.Currency, &e.Amount,
		&e.FromBalanceBefore, &e.FromBalanceAfter, &e.ToBalanceBefore, &e.ToBalanceAfter,
		&e.IsRevenue, &e.RevenueSource, &e.Description, &metadata, &e.CreatedAt, &e.Checksum,
	)
	if err != nil {
		return models.LedgerEntry{}, err
	}
	e.Type = models.EntryType(entryType)
	e.From.Type = models.AccountType(fromT)
	e.To.Type = models.AccountType(toT)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
			return models.LedgerEntry{}, fmt.Errorf("decode metadata for entry %s: %w", e.ID, err)
		}
		if len(e.Metadata) == 0 {
			e.Metadata = nil
		}
	}
	return e, nil
}

// AppendEntries writes all entries in one database transaction.
func (p *PostgresStore) AppendEntries(ctx context.Context, entries ...models.LedgerEntry) (err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return models.StorageError("begin", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = insertEntries(ctx, tx, entries); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return models.StorageError("commit", err)
	}
	return nil
}

// GetEntry returns models.ErrNotFound for an unknown id.
func (p *PostgresStore) GetEntry(ctx context.Context, entryID string) (models.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE id = $1`

	e, err := scanEntry(p.db.QueryRowContext(ctx, query, entryID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.LedgerEntry{}, fmt.Errorf("ledger entry %s: %w", entryID, models.ErrNotFound)
	}
	if err != nil {
		return models.LedgerEntry{}, models.StorageError("get ledger entry", err)
	}
	return e, nil
}

// entryQuery renders filter into a WHERE clause and its arguments.
func entryQuery(filter interfaces.EntryFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(filter.Accounts) > 0 {
		var sides []string
		for _, acc := range filter.Accounts {
			t, id := arg(string(acc.Type)), arg(acc.ID)
			sides = append(sides, fmt.Sprintf("(from_type = %[1]s AND from_id = %[2]s) OR (to_type = %[1]s AND to_id = %[2]s)", t, id))
		}
		where = append(where, "("+strings.Join(sides, " OR ")+")")
	}
	if filter.TransactionID != "" {
		where = append(where, "transaction_id = "+arg(filter.TransactionID))
	}
	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		where = append(where, "entry_type = ANY("+arg(pq.Array(types))+")")
	}
	if filter.Currency != "" {
		where = append(where, "currency = "+arg(filter.Currency))
	}
	if filter.RevenueOnly {
		where = append(where, "is_revenue")
	}
	if filter.RevenueSource != "" {
		where = append(where, "revenue_source = "+arg(filter.RevenueSource))
	}
	if !filter.From.IsZero() {
		where = append(where, "created_at >= "+arg(filter.From))
	}
	if !filter.To.IsZero() {
		where = append(where, "created_at < "+arg(filter.To))
	}

	query := `SELECT ` + entryColumns + ` FROM ledger_entries`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, seq DESC"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}
	return query, args
}

// QueryEntries returns matching entries newest first.
func (p *PostgresStore) QueryEntries(ctx context.Context, filter interfaces.EntryFilter) ([]models.LedgerEntry, error) {
	query, args := entryQuery(filter)

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, models.StorageError("query ledger entries", err)
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, models.StorageError("scan ledger entry", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, models.StorageError("query ledger entries", err)
	}
	return entries, nil
}

// AggregateByType sums entry amounts per type and currency over [start, end).
func (p *PostgresStore) AggregateByType(ctx context.Context, start, end time.Time) ([]models.TypeTotal, error) {
	const query = `SELECT entry_type, currency, SUM(amount) FROM ledger_entries
	WHERE created_at >= $1 AND created_at < $2
	GROUP BY entry_type, currency
	ORDER BY entry_type, currency`

	rows, err := p.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, models.StorageError("aggregate by type", err)
	}
	defer rows.Close()

	var totals []models.TypeTotal
	for rows.Next() {
		var (
			t         models.TypeTotal
			entryType string
		)
		if err := rows.Scan(&entryType, &t.Currency, &t.Amount); err != nil {
			return nil, models.StorageError("scan type total", err)
		}
		t.Type = models.EntryType(entryType)
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, models.StorageError("aggregate by type", err)
	}
	return totals, nil
}

// AggregateRevenue sums revenue entries per source and currency over [start, end).
func (p *PostgresStore) AggregateRevenue(ctx context.Context, start, end time.Time) ([]models.SourceTotal, error) {
	const query = `SELECT revenue_source, currency, SUM(amount) FROM ledger_entries
	WHERE is_revenue AND created_at >= $1 AND created_at < $2
	GROUP BY revenue_source, currency
	ORDER BY revenue_source, currency`

	rows, err := p.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, models.StorageError("aggregate revenue", err)
	}
	defer rows.Close()

	var totals []models.SourceTotal
	for rows.Next() {
		var t models.SourceTotal
		if err := rows.Scan(&t.Source, &t.Currency, &t.Amount); err != nil {
			return nil, models.StorageError("scan revenue total", err)
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, models.StorageError("aggregate revenue", err)
	}
	return totals, nil
}

var (
	_ interfaces.LedgerStore     = (*PostgresStore)(nil)
	_ interfaces.BalanceStore    = (*PostgresStore)(nil)
	_ interfaces.EscrowLockStore = (*PostgresStore)(nil)
	_ interfaces.TxRunner        = (*PostgresStore)(nil)
	_ interfaces.ReportStore     = (*PostgresStore)(nil)
	_ interfaces.RiskConfigStore = (*PostgresStore)(nil)
	_ interfaces.ViolationStore  = (*PostgresStore)(nil)
	_ interfaces.UnitOfWork      = (*pgTx)(nil)
)
