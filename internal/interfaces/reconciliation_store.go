package interfaces

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/custody-core/internal/models"
)

// ReportStore persists reconciliation reports and their alerts.
type ReportStore interface {
	SaveReport(ctx context.Context, report models.ReconciliationResult) error
	ListReports(ctx context.Context, period models.Period, limit int) ([]models.ReconciliationResult, error)
	SaveAlerts(ctx context.Context, alerts []models.Alert) error
	ListAlerts(ctx context.Context, acknowledged *bool, limit int) ([]models.Alert, error)
	AcknowledgeAlert(ctx context.Context, alertID string) error
}

// LegacyTotalsSource is an independently derived revenue total, one per
// historical collection the ledger is cross-checked against.
type LegacyTotalsSource interface {
	Name() string
	RevenueTotals(ctx context.Context, start, end time.Time) (map[string]decimal.Decimal, error)
}
