package reconciliation

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	interfaces "github.com/sheikh-saqib/custody-core/internal/interfaces"
	"github.com/sheikh-saqib/custody-core/internal/models"
)

// ReconcileUser replays every entry touching the user's account or escrow
// sub-account and compares the derived per-currency totals with the stored
// balances. It only reads, so it can run at any time.
func (e *Engine) ReconcileUser(ctx context.Context, userID string) (models.UserReconciliation, error) {
	if err := models.ValidateTraderID("user_id", userID); err != nil {
		return models.UserReconciliation{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	user := models.UserAccount(userID)
	escrow := models.EscrowAccount(userID)
	entries, err := e.ledger.QueryEntries(ctx, interfaces.EntryFilter{Accounts: []models.Account{user, escrow}})
	if err != nil {
		return models.UserReconciliation{}, fmt.Errorf("load ledger history for %s: %w", userID, err)
	}
	balances, err := e.balances.ListBalances(ctx, userID)
	if err != nil {
		return models.UserReconciliation{}, fmt.Errorf("load balances for %s: %w", userID, err)
	}

	owns := func(acc models.Account) bool { return acc == user || acc == escrow }
	expected := make(map[string]decimal.Decimal)
	for _, en := range entries {
		if owns(en.To) {
			expected[en.Currency] = expected[en.Currency].Add(en.Amount)
		}
		if owns(en.From) {
			expected[en.Currency] = expected[en.Currency].Sub(en.Amount)
		}
	}
	actual := make(map[string]decimal.Decimal, len(balances))
	for _, b := range balances {
		actual[b.Currency] = b.Total
	}

	res := models.UserReconciliation{
		UserID:           userID,
		ExpectedBalances: expected,
		ActualBalances:   actual,
		EntriesReplayed:  len(entries),
	}
	currencies := make(map[string]struct{})
	for c := range expected {
		currencies[c] = struct{}{}
	}
	for c := range actual {
		currencies[c] = struct{}{}
	}
	for _, c := range sortedKeys(currencies) {
		diff := actual[c].Sub(expected[c])
		if diff.Abs().GreaterThan(UserBalanceEpsilon) {
			res.Mismatches = append(res.Mismatches, models.BalanceMismatch{
				Currency:   c,
				Expected:   expected[c],
				Actual:     actual[c],
				Difference: diff,
			})
		}
	}

	if len(res.Mismatches) > 0 {
		e.logger.Warn("user balance does not match ledger history",
			zap.String("user_id", userID),
			zap.Int("mismatches", len(res.Mismatches)))
	}
	return res, nil
}
