package reconciliation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	interfaces "github.com/sheikh-saqib/custody-core/internal/interfaces"
	"github.com/sheikh-saqib/custody-core/internal/metrics"
	"github.com/sheikh-saqib/custody-core/internal/models"
	"github.com/sheikh-saqib/custody-core/internal/models/events"
)

// Fixed policy tolerances. They are not configurable per currency.
var (
	RevenueTolerance   = decimal.RequireFromString("0.01")
	HighSeverityGap    = decimal.NewFromInt(100)
	FlowTolerance      = decimal.NewFromInt(1)
	UserBalanceEpsilon = decimal.New(1, -6)
)

const DefaultTimeout = 30 * time.Second

// Engine cross-checks ledger totals against independently derived figures
// and persists a report plus one alert per mismatch.
type Engine struct {
	ledger    interfaces.LedgerStore
	balances  interfaces.BalanceStore
	reports   interfaces.ReportStore
	legacy    []interfaces.LegacyTotalsSource
	publisher interfaces.EventPublisher
	logger    *zap.Logger
	timeout   time.Duration
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLegacySources adds the external revenue records the ledger is compared with.
func WithLegacySources(sources ...interfaces.LegacyTotalsSource) Option {
	return func(e *Engine) { e.legacy = append(e.legacy, sources...) }
}

// WithPublisher announces raised alerts.
func WithPublisher(p interfaces.EventPublisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// WithTimeout bounds one reconciliation run.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithClock replaces time.Now when picking the default period.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine over the given stores.
func NewEngine(ledger interfaces.LedgerStore, balances interfaces.BalanceStore, reports interfaces.ReportStore, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		ledger:   ledger,
		balances: balances,
		reports:  reports,
		logger:   logger.Named("reconciliation"),
		timeout:  DefaultTimeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunDaily reconciles the UTC day containing date, or the previous day when date is nil.
func (e *Engine) RunDaily(ctx context.Context, date *time.Time) (models.ReconciliationResult, error) {
	w := PreviousDay(e.now())
	if date != nil {
		w = DayWindow(*date)
	}
	return e.Run(ctx, w, models.PeriodDaily)
}

// RunWeekly reconciles the Monday-aligned week containing weekStart, or the
// previous complete week when weekStart is nil.
func (e *Engine) RunWeekly(ctx context.Context, weekStart *time.Time) (models.ReconciliationResult, error) {
	w := PreviousWeek(e.now())
	if weekStart != nil {
		w = WeekWindow(*weekStart)
	}
	return e.Run(ctx, w, models.PeriodWeekly)
}

// RunMonthly reconciles year/month. A zero year or month selects the previous
// calendar month.
func (e *Engine) RunMonthly(ctx context.Context, year int, month time.Month) (models.ReconciliationResult, error) {
	w := PreviousMonth(e.now())
	if year != 0 && month != 0 {
		if month < time.January || month > time.December {
			return models.ReconciliationResult{}, models.Invalid("month", "must be between 1 and 12")
		}
		w = MonthWindow(year, month)
	}
	return e.Run(ctx, w, models.PeriodMonthly)
}

// Run reconciles an arbitrary window. Any ledger failure fails the whole run
// and nothing is persisted.
func (e *Engine) Run(ctx context.Context, w Window, period models.Period) (models.ReconciliationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	result, err := e.reconcile(ctx, w, period)
	if err != nil {
		metrics.ReconciliationRuns.WithLabelValues(string(period), "error").Inc()
		e.logger.Error("reconciliation run failed",
			zap.String("period", string(period)),
			zap.Time("start", w.Start),
			zap.Time("end", w.End),
			zap.Error(err))
		return models.ReconciliationResult{}, err
	}

	outcome := "clean"
	if len(result.Mismatches) > 0 {
		outcome = "mismatch"
	}
	metrics.ReconciliationRuns.WithLabelValues(string(period), outcome).Inc()
	e.logger.Info("reconciliation completed",
		zap.String("report_id", result.ReportID),
		zap.String("period", string(period)),
		zap.Time("start", w.Start),
		zap.Time("end", w.End),
		zap.Int("mismatches", len(result.Mismatches)),
		zap.Strings("unavailable_sources", result.UnavailableSources))
	return result, nil
}

func (e *Engine) reconcile(ctx context.Context, w Window, period models.Period) (models.ReconciliationResult, error) {
	byType, err := e.ledger.AggregateByType(ctx, w.Start, w.End)
	if err != nil {
		return models.ReconciliationResult{}, fmt.Errorf("aggregate ledger by type: %w", err)
	}
	bySource, err := e.ledger.AggregateRevenue(ctx, w.Start, w.End)
	if err != nil {
		return models.ReconciliationResult{}, fmt.Errorf("aggregate ledger revenue: %w", err)
	}

	result := models.ReconciliationResult{
		ReportID:        uuid.NewString(),
		Period:          period,
		StartDate:       w.Start,
		EndDate:         w.End,
		Totals:          make(map[string]models.CurrencyTotals),
		RevenueBySource: make(map[string]map[string]decimal.Decimal),
		GeneratedAt:     e.now().UTC(),
	}

	for _, t := range byType {
		ct := result.Totals[t.Currency]
		switch {
		case t.Type == models.EntryDeposit:
			ct.Inflows = ct.Inflows.Add(t.Amount)
		case t.Type == models.EntryWithdrawal:
			ct.Outflows = ct.Outflows.Add(t.Amount)
		case t.Type.IsFee():
			ct.Fees = ct.Fees.Add(t.Amount)
		}
		result.Totals[t.Currency] = ct
	}
	ledgerRevenue := make(map[string]decimal.Decimal)
	for _, s := range bySource {
		if result.RevenueBySource[s.Source] == nil {
			result.RevenueBySource[s.Source] = make(map[string]decimal.Decimal)
		}
		result.RevenueBySource[s.Source][s.Currency] = result.RevenueBySource[s.Source][s.Currency].Add(s.Amount)
		ledgerRevenue[s.Currency] = ledgerRevenue[s.Currency].Add(s.Amount)

		ct := result.Totals[s.Currency]
		ct.Revenue = ct.Revenue.Add(s.Amount)
		result.Totals[s.Currency] = ct
	}

	legacy, complete := e.legacyRevenue(ctx, w, &result)
	result.LegacyRevenue = legacy
	if len(e.legacy) > 0 {
		if !complete {
			ledgerRevenue = e.comparable(ledgerRevenue, legacy)
		}
		result.Mismatches = append(result.Mismatches, revenueMismatches(ledgerRevenue, legacy)...)
	}
	result.Mismatches = append(result.Mismatches, flowMismatches(result.Totals)...)

	if err := e.reports.SaveReport(ctx, result); err != nil {
		return models.ReconciliationResult{}, fmt.Errorf("save report: %w", err)
	}
	if len(result.Mismatches) > 0 {
		if err := e.raiseAlerts(ctx, result); err != nil {
			return models.ReconciliationResult{}, err
		}
	}
	return result, nil
}

// legacyRevenue sums every healthy legacy source. A failing source is
// recorded on the result and complete is false.
func (e *Engine) legacyRevenue(ctx context.Context, w Window, result *models.ReconciliationResult) (map[string]decimal.Decimal, bool) {
	totals := make(map[string]decimal.Decimal)
	if len(e.legacy) == 0 {
		return totals, false
	}
	for _, src := range e.legacy {
		got, err := src.RevenueTotals(ctx, w.Start, w.End)
		if err != nil {
			e.logger.Warn("legacy source unavailable",
				zap.String("source", src.Name()),
				zap.Error(err))
			result.UnavailableSources = append(result.UnavailableSources, src.Name())
			continue
		}
		for c, v := range got {
			totals[c] = totals[c].Add(v)
		}
	}
	return totals, len(result.UnavailableSources) == 0
}

// comparable keeps the ledger revenue of currencies some healthy source
// reported. The others have no comparison data this run.
func (e *Engine) comparable(ledger, legacy map[string]decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(legacy))
	var skipped []string
	for _, c := range sortedKeys(ledger) {
		if _, ok := legacy[c]; ok {
			out[c] = ledger[c]
			continue
		}
		skipped = append(skipped, c)
	}
	if len(skipped) > 0 {
		e.logger.Warn("revenue not compared for currencies missing from healthy legacy sources",
			zap.Strings("currencies", skipped))
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func revenueMismatches(ledger, legacy map[string]decimal.Decimal) []models.Mismatch {
	currencies := make(map[string]struct{})
	for c := range ledger {
		currencies[c] = struct{}{}
	}
	for c := range legacy {
		currencies[c] = struct{}{}
	}

	var out []models.Mismatch
	for _, c := range sortedKeys(currencies) {
		diff := ledger[c].Sub(legacy[c])
		if diff.Abs().LessThanOrEqual(RevenueTolerance) {
			continue
		}
		severity := models.SeverityLow
		if diff.Abs().GreaterThan(HighSeverityGap) {
			severity = models.SeverityHigh
		}
		out = append(out, models.Mismatch{
			Type:        models.MismatchRevenue,
			Currency:    c,
			LedgerValue: ledger[c],
			LegacyValue: legacy[c],
			Difference:  diff,
			Severity:    severity,
		})
	}
	return out
}

// flowMismatches flags currencies whose deposits and withdrawals do not net
// out. Fees move value inside the platform and are left out.
func flowMismatches(totals map[string]models.CurrencyTotals) []models.Mismatch {
	var out []models.Mismatch
	for _, c := range sortedKeys(totals) {
		t := totals[c]
		net := t.Inflows.Sub(t.Outflows)
		if net.Abs().LessThanOrEqual(FlowTolerance) {
			continue
		}
		out = append(out, models.Mismatch{
			Type:        models.MismatchFlowImbalance,
			Currency:    c,
			LedgerValue: t.Inflows,
			LegacyValue: t.Outflows,
			Difference:  net,
			Severity:    models.SeverityMedium,
		})
	}
	return out
}

func (e *Engine) raiseAlerts(ctx context.Context, result models.ReconciliationResult) error {
	alerts := make([]models.Alert, 0, len(result.Mismatches))
	for _, m := range result.Mismatches {
		alerts = append(alerts, models.Alert{
			ID:         uuid.NewString(),
			ReportID:   result.ReportID,
			Type:       m.Type,
			Severity:   m.Severity,
			Currency:   m.Currency,
			Difference: m.Difference,
			Message: fmt.Sprintf("%s %s %s: ledger=%s other=%s diff=%s",
				result.Period, m.Type, m.Currency, m.LedgerValue, m.LegacyValue, m.Difference),
			CreatedAt: result.GeneratedAt,
		})
		metrics.ReconciliationMismatches.WithLabelValues(string(m.Type), string(m.Severity)).Inc()
	}
	if err := e.reports.SaveAlerts(ctx, alerts); err != nil {
		return fmt.Errorf("save alerts: %w", err)
	}

	for _, a := range alerts {
		e.logger.Warn("reconciliation mismatch",
			zap.String("alert_id", a.ID),
			zap.String("type", string(a.Type)),
			zap.String("severity", string(a.Severity)),
			zap.String("currency", a.Currency),
			zap.String("difference", a.Difference.String()))
		if e.publisher == nil {
			continue
		}
		if err := e.publisher.Publish(ctx, events.TopicAlerts, a.ReportID, events.AlertRaised{
			AlertID:    a.ID,
			ReportID:   a.ReportID,
			Type:       string(a.Type),
			Severity:   string(a.Severity),
			Currency:   a.Currency,
			Difference: a.Difference,
			OccurredAt: a.CreatedAt,
		}); err != nil {
			e.logger.Warn("failed to publish alert", zap.String("alert_id", a.ID), zap.Error(err))
		}
	}
	return nil
}

// ListReports returns stored reports of period, newest first.
func (e *Engine) ListReports(ctx context.Context, period models.Period, limit int) ([]models.ReconciliationResult, error) {
	return e.reports.ListReports(ctx, period, limit)
}

// ListAlerts filters on acknowledged when it is non-nil.
func (e *Engine) ListAlerts(ctx context.Context, acknowledged *bool, limit int) ([]models.Alert, error) {
	return e.reports.ListAlerts(ctx, acknowledged, limit)
}

// AcknowledgeAlert marks an alert as seen by an operator.
func (e *Engine) AcknowledgeAlert(ctx context.Context, alertID string) error {
	if alertID == "" {
		return models.Invalid("alert_id", "must not be empty")
	}
	if err := e.reports.AcknowledgeAlert(ctx, alertID); err != nil {
		return err
	}
	e.logger.Info("alert acknowledged", zap.String("alert_id", alertID))
	return nil
}
