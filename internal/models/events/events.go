package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// Topics the core publishes to. Consumers (notifications, analytics) react
// after the money movement is committed.
const (
	TopicLedgerEntries = "ledger.entries"
	TopicEscrow        = "escrow.events"
	TopicWallet        = "wallet.events"
	TopicRisk          = "risk.violations"
	TopicAlerts        = "reconciliation.alerts"
)

// FundsLocked is published after a trade locks seller funds.
type FundsLocked struct {
	TradeID    string          `json:"trade_id"`
	TraderID   string          `json:"trader_id"`
	Currency   string          `json:"currency"`
	Amount     decimal.Decimal `json:"amount"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// FundsUnlocked is published after a cancelled trade returns funds.
type FundsUnlocked struct {
	TradeID    string          `json:"trade_id"`
	TraderID   string          `json:"trader_id"`
	Currency   string          `json:"currency"`
	Amount     decimal.Decimal `json:"amount"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// EscrowReleased is published after a trade settles.
type EscrowReleased struct {
	TradeID    string          `json:"trade_id"`
	SellerID   string          `json:"seller_id"`
	BuyerID    string          `json:"buyer_id"`
	Currency   string          `json:"currency"`
	Gross      decimal.Decimal `json:"gross_amount"`
	Net        decimal.Decimal `json:"net_amount"`
	Fee        decimal.Decimal `json:"fee_amount"`
	OccurredAt time.Time       `json:"occurred_at"`
}

type DepositConfirmed struct {
	TransactionID string          `json:"transaction_id"`
	UserID        string          `json:"user_id"`
	Currency      string          `json:"currency"`
	Amount        decimal.Decimal `json:"amount"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

type WithdrawalCompleted struct {
	TransactionID string          `json:"transaction_id"`
	UserID        string          `json:"user_id"`
	Currency      string          `json:"currency"`
	Amount        decimal.Decimal `json:"amount"`
	Fee           decimal.Decimal `json:"fee"`
	Destination   string          `json:"destination"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// EntryRecorded is published for every committed ledger entry.
type EntryRecorded struct {
	EntryID       string          `json:"entry_id"`
	TransactionID string          `json:"transaction_id"`
	EntryType     string          `json:"entry_type"`
	Currency      string          `json:"currency"`
	Amount        decimal.Decimal `json:"amount"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// RiskBlocked is published when an order intent is blocked.
type RiskBlocked struct {
	BotID      string    `json:"bot_id"`
	UserID     string    `json:"user_id"`
	Symbol     string    `json:"symbol"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

// AlertRaised is published for each reconciliation alert.
type AlertRaised struct {
	AlertID    string          `json:"alert_id"`
	ReportID   string          `json:"report_id"`
	Type       string          `json:"type"`
	Severity   string          `json:"severity"`
	Currency   string          `json:"currency"`
	Difference decimal.Decimal `json:"difference"`
	OccurredAt time.Time       `json:"occurred_at"`
}
