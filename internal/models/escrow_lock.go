package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LockStatus is the state of one trade's escrow.
type LockStatus string

const (
	LockOpen      LockStatus = "OPEN"
	LockReleased  LockStatus = "RELEASED"
	LockCancelled LockStatus = "CANCELLED"
)

// EscrowLock ties the funds a trade holds to the seller's locked balance.
// Remaining is what the trade may still release or return; once it reaches
// zero the lock closes with the status of the operation that drained it.
type EscrowLock struct {
	TradeID   string          `json:"trade_id"`
	TraderID  string          `json:"trader_id"`
	Currency  string          `json:"currency"`
	Amount    decimal.Decimal `json:"amount"`
	Remaining decimal.Decimal `json:"remaining"`
	Status    LockStatus      `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Holds reports whether the lock is open for traderID in currency.
func (l EscrowLock) Holds(traderID, currency string) bool {
	return l.Status == LockOpen && l.TraderID == traderID && l.Currency == currency
}

// Settle takes amount off the remaining balance and closes the lock with
// closeAs when nothing is left. ok is false if amount exceeds what remains.
func (l EscrowLock) Settle(amount decimal.Decimal, closeAs LockStatus, now time.Time) (EscrowLock, bool) {
	if amount.GreaterThan(l.Remaining) {
		return l, false
	}
	next := l
	next.Remaining = l.Remaining.Sub(amount)
	if next.Remaining.IsZero() {
		next.Status = closeAs
	}
	next.UpdatedAt = now
	return next, true
}
