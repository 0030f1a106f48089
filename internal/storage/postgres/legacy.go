package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	interfaces "github.com/sheikh-saqib/custody-core/internal/interfaces"
	"github.com/sheikh-saqib/custody-core/internal/models"
)

// LegacyFeeTable sums fees straight from a pre-ledger collection so the
// reconciliation engine can compare them with ledger revenue.
type LegacyFeeTable struct {
	db             *sql.DB
	name           string
	table          string
	amountColumn   string
	currencyColumn string
	timeColumn     string
}

// NewLegacyFeeTable reads revenue from a table the service does not own.
func NewLegacyFeeTable(db *sql.DB, name, table, amountColumn, currencyColumn, timeColumn string) *LegacyFeeTable {
	return &LegacyFeeTable{
		db:             db,
		name:           name,
		table:          table,
		amountColumn:   amountColumn,
		currencyColumn: currencyColumn,
		timeColumn:     timeColumn,
	}
}

// ParseLegacyFeeTables builds sources from "name:table:amount:currency:time"
// specs separated by commas.
func ParseLegacyFeeTables(db *sql.DB, spec string) ([]*LegacyFeeTable, error) {
	var tables []*LegacyFeeTable
	for _, item := range strings.Split(spec, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ":")
		if len(parts) != 5 {
			return nil, models.Invalid("legacy_fee_tables", fmt.Sprintf("%q needs name:table:amount:currency:time", item))
		}
		for _, p := range parts {
			if strings.TrimSpace(p) == "" {
				return nil, models.Invalid("legacy_fee_tables", fmt.Sprintf("%q has an empty field", item))
			}
		}
		tables = append(tables, NewLegacyFeeTable(db, parts[0], parts[1], parts[2], parts[3], parts[4]))
	}
	return tables, nil
}

func (t *LegacyFeeTable) Name() string { return t.name }

func (t *LegacyFeeTable) query() string {
	currency := pq.QuoteIdentifier(t.currencyColumn)
	ts := pq.QuoteIdentifier(t.timeColumn)
	return fmt.Sprintf(`SELECT UPPER(%[1]s), COALESCE(SUM(%[2]s), 0) FROM %[3]s
	WHERE %[4]s >= $1 AND %[4]s < $2
	GROUP BY UPPER(%[1]s)`,
		currency, pq.QuoteIdentifier(t.amountColumn), pq.QuoteIdentifier(t.table), ts)
}

// RevenueTotals sums amountColumn per currency over [start, end).
func (t *LegacyFeeTable) RevenueTotals(ctx context.Context, start, end time.Time) (map[string]decimal.Decimal, error) {
	rows, err := t.db.QueryContext(ctx, t.query(), start, end)
	if err != nil {
		return nil, models.StorageError("legacy totals "+t.name, err)
	}
	defer rows.Close()

	totals := make(map[string]decimal.Decimal)
	for rows.Next() {
		var (
			currency string
			amount   decimal.Decimal
		)
		if err := rows.Scan(&currency, &amount); err != nil {
			return nil, models.StorageError("scan legacy total "+t.name, err)
		}
		totals[currency] = totals[currency].Add(amount)
	}
	if err := rows.Err(); err != nil {
		return nil, models.StorageError("legacy totals "+t.name, err)
	}
	return totals, nil
}

var _ interfaces.LegacyTotalsSource = (*LegacyFeeTable)(nil)
