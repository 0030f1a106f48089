package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/sheikh-saqib/custody-core/internal/models"
)

// SaveReport rejects a repeated report id.
func (m *MemoryStore) SaveReport(ctx context.Context, report models.ReconciliationResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.reports {
		if r.ReportID == report.ReportID {
			return fmt.Errorf("%w: report %s", models.ErrDuplicateTransaction, report.ReportID)
		}
	}
	m.reports = append(m.reports, report)
	return nil
}

// ListReports returns reports of the given period (all periods if empty), newest first.
func (m *MemoryStore) ListReports(ctx context.Context, period models.Period, limit int) ([]models.ReconciliationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []models.ReconciliationResult
	for i := len(m.reports) - 1; i >= 0; i-- {
		if period == "" || m.reports[i].Period == period {
			result = append(result, m.reports[i])
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].GeneratedAt.After(result[j].GeneratedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MemoryStore) SaveAlerts(ctx context.Context, alerts []models.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.alerts = append(m.alerts, alerts...)
	return nil
}

func (m *MemoryStore) ListAlerts(ctx context.Context, acknowledged *bool, limit int) ([]models.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []models.Alert
	for i := len(m.alerts) - 1; i >= 0; i-- {
		a := m.alerts[i]
		if acknowledged != nil && a.Acknowledged != *acknowledged {
			continue
		}
		result = append(result, a)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

// AcknowledgeAlert returns models.ErrNotFound for an unknown id.
func (m *MemoryStore) AcknowledgeAlert(ctx context.Context, alertID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.alerts {
		if m.alerts[i].ID == alertID {
			m.alerts[i].Acknowledged = true
			return nil
		}
	}
	return fmt.Errorf("alert %s: %w", alertID, models.ErrNotFound)
}
