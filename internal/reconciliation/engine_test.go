package reconciliation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	interfaces "github.com/sheikh-saqib/custody-core/internal/interfaces"
	"github.com/sheikh-saqib/custody-core/internal/ledger"
	"github.com/sheikh-saqib/custody-core/internal/models"
	"github.com/sheikh-saqib/custody-core/internal/storage/memory"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var day = time.Date(2026, 5, 12, 0, 0, 0, 0, time.UTC)

type fixture struct {
	store   *memory.MemoryStore
	ledger  *ledger.Ledger
	entryAt time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: memory.NewMemoryStore(), entryAt: day.Add(10 * time.Hour)}
	f.ledger = ledger.NewLedger(f.store, nil, ledger.WithClock(func() time.Time { return f.entryAt }))
	return f
}

func (f *fixture) engine(opts ...Option) *Engine {
	opts = append(opts, WithClock(func() time.Time { return day.Add(36 * time.Hour) }))
	return NewEngine(f.store, f.store, f.store, nil, opts...)
}

func (f *fixture) revenue(t *testing.T, currency, amount string) {
	t.Helper()
	_, err := f.ledger.RecordTradeFee(context.Background(), "u1", currency, d(amount), ledger.FeeSpot, "")
	require.NoError(t, err)
}

func (f *fixture) deposit(t *testing.T, currency, amount string) {
	t.Helper()
	_, err := f.ledger.RecordDeposit(context.Background(), ledger.Deposit{UserID: "u1", Currency: currency, Amount: d(amount)})
	require.NoError(t, err)
}

func (f *fixture) withdraw(t *testing.T, currency, amount string) {
	t.Helper()
	_, err := f.ledger.RecordWithdrawal(context.Background(), ledger.Withdrawal{
		UserID: "u1", Currency: currency, Amount: d(amount), Destination: "ext",
	})
	require.NoError(t, err)
}

func legacy(currency, amount string) StaticTotals {
	return StaticTotals{SourceName: "trade_fees", Totals: map[string]decimal.Decimal{currency: d(amount)}}
}

func TestRevenueMismatchSeverityBoundary(t *testing.T) {
	tests := []struct {
		name     string
		ledger   string
		legacy   string
		severity models.Severity
		mismatch bool
	}{
		{"gap above 100 is high", "200.01", "100", models.SeverityHigh, true},
		{"gap below 100 is low", "199.99", "100", models.SeverityLow, true},
		{"gap of exactly 100 is low", "200", "100", models.SeverityLow, true},
		{"gap of 20 is low", "120.00", "100.00", models.SeverityLow, true},
		{"gap within tolerance", "100.01", "100", "", false},
		{"legacy higher than ledger", "50", "160", models.SeverityHigh, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.revenue(t, "GBP", tt.ledger)
			e := f.engine(WithLegacySources(legacy("GBP", tt.legacy)))

			res, err := e.RunDaily(context.Background(), &day)
			require.NoError(t, err)

			if !tt.mismatch {
				assert.Empty(t, res.Mismatches)
				return
			}
			require.Len(t, res.Mismatches, 1)
			m := res.Mismatches[0]
			assert.Equal(t, models.MismatchRevenue, m.Type)
			assert.Equal(t, "GBP", m.Currency)
			assert.Equal(t, tt.severity, m.Severity)
			assert.True(t, m.Difference.Equal(d(tt.ledger).Sub(d(tt.legacy))))
		})
	}
}

func TestRevenueMismatchRaisesAlert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.revenue(t, "GBP", "120.00")
	e := f.engine(WithLegacySources(legacy("GBP", "100.00")))

	res, err := e.RunDaily(ctx, &day)
	require.NoError(t, err)

	alerts, err := e.ListAlerts(ctx, nil, 0)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, res.ReportID, alerts[0].ReportID)
	assert.Equal(t, models.MismatchRevenue, alerts[0].Type)
	assert.Equal(t, models.SeverityLow, alerts[0].Severity)
	assert.False(t, alerts[0].Acknowledged)

	require.NoError(t, e.AcknowledgeAlert(ctx, alerts[0].ID))
	open := false
	pending, err := e.ListAlerts(ctx, &open, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.ErrorIs(t, e.AcknowledgeAlert(ctx, "nope"), models.ErrNotFound)
}

func TestRevenueOnlyInLegacy(t *testing.T) {
	f := newFixture(t)
	e := f.engine(WithLegacySources(legacy("USDT", "5")))

	res, err := e.RunDaily(context.Background(), &day)
	require.NoError(t, err)
	require.Len(t, res.Mismatches, 1)
	assert.Equal(t, "USDT", res.Mismatches[0].Currency)
	assert.True(t, res.Mismatches[0].LedgerValue.IsZero())
}

func TestFlowImbalance(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, "BTC", "5")
	f.withdraw(t, "BTC", "1")
	f.deposit(t, "ETH", "1.5")
	f.withdraw(t, "ETH", "1")

	res, err := f.engine().RunDaily(context.Background(), &day)
	require.NoError(t, err)

	require.Len(t, res.Mismatches, 1)
	m := res.Mismatches[0]
	assert.Equal(t, models.MismatchFlowImbalance, m.Type)
	assert.Equal(t, "BTC", m.Currency)
	assert.Equal(t, models.SeverityMedium, m.Severity)
	assert.True(t, m.Difference.Equal(d("4")))

	assert.True(t, res.Totals["BTC"].Inflows.Equal(d("5")))
	assert.True(t, res.Totals["BTC"].Outflows.Equal(d("1")))
}

func TestFeesAreClassifiedAndExcludedFromFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.deposit(t, "BTC", "1")
	_, err := f.ledger.RecordWithdrawal(ctx, ledger.Withdrawal{
		UserID: "u1", Currency: "BTC", Amount: d("1"), Fee: d("0.01"), Destination: "ext",
	})
	require.NoError(t, err)
	f.revenue(t, "BTC", "0.02")

	res, err := f.engine().RunDaily(ctx, &day)
	require.NoError(t, err)
	assert.Empty(t, res.Mismatches)

	totals := res.Totals["BTC"]
	assert.True(t, totals.Fees.Equal(d("0.03")))
	assert.True(t, totals.Revenue.Equal(d("0.03")))
	assert.True(t, res.RevenueBySource["withdrawal_fee"]["BTC"].Equal(d("0.01")))
	assert.True(t, res.RevenueBySource["spot_fee"]["BTC"].Equal(d("0.02")))
}

func TestEntriesOutsideWindowAreIgnored(t *testing.T) {
	f := newFixture(t)
	f.entryAt = day.Add(-time.Second)
	f.deposit(t, "BTC", "50")
	f.entryAt = day.Add(24 * time.Hour)
	f.deposit(t, "BTC", "50")

	res, err := f.engine().RunDaily(context.Background(), &day)
	require.NoError(t, err)
	assert.Empty(t, res.Mismatches)
	assert.Empty(t, res.Totals)
}

func TestLegacySourceFailureDegrades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.revenue(t, "GBP", "500")
	f.revenue(t, "USDT", "75")
	f.deposit(t, "GBP", "10")

	e := f.engine(WithLegacySources(
		legacy("GBP", "500"),
		StaticTotals{SourceName: "swap_history", Err: errors.New("collection missing")},
	))
	res, err := e.RunDaily(ctx, &day)
	require.NoError(t, err)

	// USDT only shows up in the ledger, so it has nothing to compare against
	assert.Equal(t, []string{"swap_history"}, res.UnavailableSources)
	require.Len(t, res.Mismatches, 1)
	assert.Equal(t, models.MismatchFlowImbalance, res.Mismatches[0].Type)

	reports, err := e.ListReports(ctx, models.PeriodDaily, 10)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, res.ReportID, reports[0].ReportID)
}

func TestLegacySourceFailureKeepsHealthyCurrencies(t *testing.T) {
	f := newFixture(t)
	f.revenue(t, "GBP", "500")
	f.revenue(t, "USDT", "75")

	e := f.engine(WithLegacySources(
		legacy("GBP", "0"),
		StaticTotals{SourceName: "swap_history", Err: errors.New("collection missing")},
	))
	res, err := e.RunDaily(context.Background(), &day)
	require.NoError(t, err)

	require.Len(t, res.Mismatches, 1)
	m := res.Mismatches[0]
	assert.Equal(t, models.MismatchRevenue, m.Type)
	assert.Equal(t, "GBP", m.Currency)
	assert.Equal(t, models.SeverityHigh, m.Severity)

	allDown := f.engine(WithLegacySources(
		StaticTotals{SourceName: "p2p_history", Err: errors.New("timeout")},
	))
	res, err = allDown.RunDaily(context.Background(), &day)
	require.NoError(t, err)
	assert.Equal(t, []string{"p2p_history"}, res.UnavailableSources)
	assert.Empty(t, res.Mismatches)
}

func TestNoLegacySourcesSkipsRevenueComparison(t *testing.T) {
	f := newFixture(t)
	f.revenue(t, "GBP", "500")

	res, err := f.engine().RunDaily(context.Background(), &day)
	require.NoError(t, err)
	assert.Empty(t, res.Mismatches)
}

type failingLedger struct {
	interfaces.LedgerStore
}

func (failingLedger) AggregateByType(ctx context.Context, start, end time.Time) ([]models.TypeTotal, error) {
	return nil, errors.New("connection refused")
}

func TestLedgerFailureFailsRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := NewEngine(failingLedger{f.store}, f.store, f.store, nil)

	_, err := e.RunDaily(ctx, &day)
	require.Error(t, err)

	reports, err := f.store.ListReports(ctx, "", 0)
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestRerunCreatesNewReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.engine()

	first, err := e.RunDaily(ctx, &day)
	require.NoError(t, err)
	second, err := e.RunDaily(ctx, &day)
	require.NoError(t, err)
	assert.NotEqual(t, first.ReportID, second.ReportID)

	reports, err := e.ListReports(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, reports, 2)
}

func TestDefaultWindows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	// engine clock is 2026-05-13 12:00 UTC, a Wednesday
	e := f.engine()

	daily, err := e.RunDaily(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, day, daily.StartDate)
	assert.Equal(t, day.AddDate(0, 0, 1), daily.EndDate)

	weekly, err := e.RunWeekly(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC), weekly.StartDate)
	assert.Equal(t, time.Date(2026, 5, 11, 0, 0, 0, 0, time.UTC), weekly.EndDate)

	monthly, err := e.RunMonthly(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), monthly.StartDate)
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), monthly.EndDate)

	_, err = e.RunMonthly(ctx, 2026, 13)
	assert.ErrorIs(t, err, models.ErrValidation)
}
