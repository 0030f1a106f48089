package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TraderBalance is the mutable per trader, per currency aggregate.
// Available always equals Total - Locked.
type TraderBalance struct {
	TraderID  string          `json:"trader_id"`
	Currency  string          `json:"currency"`
	Total     decimal.Decimal `json:"total_balance"`
	Locked    decimal.Decimal `json:"locked_balance"`
	Available decimal.Decimal `json:"available_balance"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewTraderBalance returns a zeroed balance.
func NewTraderBalance(traderID, currency string) TraderBalance {
	return TraderBalance{
		TraderID:  traderID,
		Currency:  currency,
		Total:     decimal.Zero,
		Locked:    decimal.Zero,
		Available: decimal.Zero,
	}
}

// Apply returns the balance after adding delta, and whether the result
// still satisfies the balance invariant.
func (b TraderBalance) Apply(delta BalanceDelta) (TraderBalance, bool) {
	next := b
	next.Total = b.Total.Add(delta.Total)
	next.Locked = b.Locked.Add(delta.Locked)
	next.Available = next.Total.Sub(next.Locked)
	ok := !next.Total.IsNegative() && !next.Locked.IsNegative() && !next.Available.IsNegative()
	return next, ok
}

// BalanceDelta is a signed change applied to a balance row.
type BalanceDelta struct {
	Total  decimal.Decimal
	Locked decimal.Decimal
}

// BalanceChange carries the snapshots around one mutation.
type BalanceChange struct {
	Before TraderBalance `json:"before"`
	After  TraderBalance `json:"after"`
}

// BalanceOwner is the balance row key of acc. Trader rows use the bare ID.
// Every other account type keeps its type prefix, and ValidateTraderID
// refuses the separator, so a trader can never address a platform row.
func BalanceOwner(acc Account) string {
	if acc.Type == AccountUser {
		return acc.ID
	}
	return acc.String()
}

// ValidateTraderID rejects IDs that are blank or could name a non-trader
// balance row.
func ValidateTraderID(field, id string) error {
	if strings.TrimSpace(id) == "" {
		return Invalid(field, "must not be empty")
	}
	if strings.Contains(id, ":") {
		return Invalid(field, `must not contain ":"`)
	}
	return nil
}
