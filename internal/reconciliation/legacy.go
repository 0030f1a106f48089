package reconciliation

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	interfaces "github.com/sheikh-saqib/custody-core/internal/interfaces"
)

// StaticTotals is a LegacyTotalsSource with fixed per-currency totals. It is
// used for manual cross-checks against figures exported from elsewhere.
type StaticTotals struct {
	SourceName string
	Totals     map[string]decimal.Decimal
	Err        error
}

func (s StaticTotals) Name() string { return s.SourceName }

// RevenueTotals ignores the window and returns a copy of Totals, or Err.
func (s StaticTotals) RevenueTotals(ctx context.Context, start, end time.Time) (map[string]decimal.Decimal, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	out := make(map[string]decimal.Decimal, len(s.Totals))
	for c, v := range s.Totals {
		out[c] = v
	}
	return out, nil
}

var _ interfaces.LegacyTotalsSource = StaticTotals{}
