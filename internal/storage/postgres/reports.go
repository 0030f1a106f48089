package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/sheikh-saqib/custody-core/internal/models"
)

// SaveReport stores the whole report as JSON next to its indexed columns.
func (p *PostgresStore) SaveReport(ctx context.Context, report models.ReconciliationResult) error {
	const query = `INSERT INTO reconciliation_reports (report_id, period, start_date, end_date, generated_at, body)
	VALUES ($1, $2, $3, $4, $5, $6)`

	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report %s: %w", report.ReportID, err)
	}
	_, err = p.db.ExecContext(ctx, query,
		report.ReportID, string(report.Period), report.StartDate, report.EndDate, report.GeneratedAt, body)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: report %s", models.ErrDuplicateTransaction, report.ReportID)
	}
	return models.StorageError("save report", err)
}

// ListReports returns reports newest first. An empty period matches all.
func (p *PostgresStore) ListReports(ctx context.Context, period models.Period, limit int) ([]models.ReconciliationResult, error) {
	const query = `SELECT body FROM reconciliation_reports
	WHERE ($1 = '' OR period = $1)
	ORDER BY generated_at DESC
	LIMIT $2`

	rows, err := p.db.QueryContext(ctx, query, string(period), limitArg(limit))
	if err != nil {
		return nil, models.StorageError("list reports", err)
	}
	defer rows.Close()

	var reports []models.ReconciliationResult
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, models.StorageError("scan report", err)
		}
		var r models.ReconciliationResult
		if err := json.Unmarshal(body, &r); err != nil {
			return nil, fmt.Errorf("decode report: %w", err)
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, models.StorageError("list reports", err)
	}
	return reports, nil
}

// SaveAlerts inserts all alerts in one transaction.
func (p *PostgresStore) SaveAlerts(ctx context.Context, alerts []models.Alert) (err error) {
	const query = `INSERT INTO reconciliation_alerts
	(id, report_id, type, severity, currency, difference, message, acknowledged, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	if len(alerts) == 0 {
		return nil
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return models.StorageError("begin", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, a := range alerts {
		_, err = tx.ExecContext(ctx, query,
			a.ID, a.ReportID, string(a.Type), string(a.Severity), a.Currency,
			a.Difference, a.Message, a.Acknowledged, a.CreatedAt)
		if err != nil {
			return models.StorageError("save alert", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return models.StorageError("commit", err)
	}
	return nil
}

func (p *PostgresStore) ListAlerts(ctx context.Context, acknowledged *bool, limit int) ([]models.Alert, error) {
	const query = `SELECT id, report_id, type, severity, currency, difference, message, acknowledged, created_at
	FROM reconciliation_alerts
	WHERE ($1::boolean IS NULL OR acknowledged = $1)
	ORDER BY created_at DESC
	LIMIT $2`

	var ack sql.NullBool
	if acknowledged != nil {
		ack = sql.NullBool{Bool: *acknowledged, Valid: true}
	}
	rows, err := p.db.QueryContext(ctx, query, ack, limitArg(limit))
	if err != nil {
		return nil, models.StorageError("list alerts", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		var (
			a             models.Alert
			typ, severity string
		)
		if err := rows.Scan(&a.ID, &a.ReportID, &typ, &severity, &a.Currency,
			&a.Difference, &a.Message, &a.Acknowledged, &a.CreatedAt); err != nil {
			return nil, models.StorageError("scan alert", err)
		}
		a.Type = models.MismatchType(typ)
		a.Severity = models.Severity(severity)
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, models.StorageError("list alerts", err)
	}
	return alerts, nil
}

// AcknowledgeAlert returns models.ErrNotFound for an unknown id.
func (p *PostgresStore) AcknowledgeAlert(ctx context.Context, alertID string) error {
	const query = `UPDATE reconciliation_alerts SET acknowledged = TRUE WHERE id = $1`

	res, err := p.db.ExecContext(ctx, query, alertID)
	if err != nil {
		return models.StorageError("acknowledge alert", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.StorageError("acknowledge alert", err)
	}
	if n == 0 {
		return fmt.Errorf("alert %s: %w", alertID, models.ErrNotFound)
	}
	return nil
}
