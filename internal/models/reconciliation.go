package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Period is the span a reconciliation report covers.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// MismatchType classifies a reconciliation finding.
type MismatchType string

const (
	MismatchRevenue       MismatchType = "REVENUE_MISMATCH"
	MismatchFlowImbalance MismatchType = "FLOW_IMBALANCE"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// CurrencyTotals are the aggregated ledger flows for one currency in a window.
type CurrencyTotals struct {
	Inflows  decimal.Decimal `json:"total_inflows"`
	Outflows decimal.Decimal `json:"total_outflows"`
	Fees     decimal.Decimal `json:"total_fees"`
	Revenue  decimal.Decimal `json:"total_revenue"`
}

// Mismatch is one discrepancy found by a reconciliation run.
type Mismatch struct {
	Type        MismatchType    `json:"type"`
	Currency    string          `json:"currency"`
	LedgerValue decimal.Decimal `json:"ledger_value"`
	LegacyValue decimal.Decimal `json:"legacy_value"`
	Difference  decimal.Decimal `json:"difference"`
	Severity    Severity        `json:"severity"`
}

// ReconciliationResult is the persisted report of one run. It is never
// updated after it is saved.
type ReconciliationResult struct {
	ReportID           string                                `json:"report_id"`
	Period             Period                                `json:"period"`
	StartDate          time.Time                             `json:"start_date"`
	EndDate            time.Time                             `json:"end_date"`
	Totals             map[string]CurrencyTotals             `json:"totals"`
	RevenueBySource    map[string]map[string]decimal.Decimal `json:"revenue_by_source"`
	LegacyRevenue      map[string]decimal.Decimal            `json:"legacy_revenue"`
	UnavailableSources []string                              `json:"unavailable_sources,omitempty"`
	Mismatches         []Mismatch                            `json:"mismatches"`
	GeneratedAt        time.Time                             `json:"generated_at"`
}

// Alert is raised once per mismatch for human triage.
type Alert struct {
	ID           string          `json:"id"`
	ReportID     string          `json:"report_id"`
	Type         MismatchType    `json:"type"`
	Severity     Severity        `json:"severity"`
	Currency     string          `json:"currency"`
	Difference   decimal.Decimal `json:"difference"`
	Message      string          `json:"message"`
	Acknowledged bool            `json:"acknowledged"`
	CreatedAt    time.Time       `json:"created_at"`
}

// TypeTotal is the summed amount of one entry type in one currency.
type TypeTotal struct {
	Type     EntryType
	Currency string
	Amount   decimal.Decimal
}

// SourceTotal is the summed revenue of one revenue source in one currency.
type SourceTotal struct {
	Source   string
	Currency string
	Amount   decimal.Decimal
}

// BalanceMismatch is a per-currency difference found by a user replay.
type BalanceMismatch struct {
	Currency   string          `json:"currency"`
	Expected   decimal.Decimal `json:"expected"`
	Actual     decimal.Decimal `json:"actual"`
	Difference decimal.Decimal `json:"difference"`
}

// UserReconciliation is the result of replaying one user's ledger history.
type UserReconciliation struct {
	UserID           string                     `json:"user_id"`
	ExpectedBalances map[string]decimal.Decimal `json:"expected_balances"`
	ActualBalances   map[string]decimal.Decimal `json:"actual_balances"`
	Mismatches       []BalanceMismatch          `json:"mismatches"`
	EntriesReplayed  int                        `json:"entries_replayed"`
}
