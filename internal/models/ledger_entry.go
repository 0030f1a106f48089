package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// EntryType is the kind of money movement a ledger entry records.
type EntryType string

const (
	EntryDeposit              EntryType = "DEPOSIT"
	EntryWithdrawal           EntryType = "WITHDRAWAL"
	EntryWithdrawalFee        EntryType = "WITHDRAWAL_FEE"
	EntrySpotTradeBuy         EntryType = "SPOT_TRADE_BUY"
	EntrySpotTradeSell        EntryType = "SPOT_TRADE_SELL"
	EntryTradingFee           EntryType = "TRADING_FEE"
	EntrySwapDebit            EntryType = "SWAP_DEBIT"
	EntrySwapCredit           EntryType = "SWAP_CREDIT"
	EntrySwapFee              EntryType = "SWAP_FEE"
	EntryP2PEscrowLock        EntryType = "P2P_ESCROW_LOCK"
	EntryP2PEscrowRelease     EntryType = "P2P_ESCROW_RELEASE"
	EntryP2PTransfer          EntryType = "P2P_TRANSFER"
	EntryP2PFee               EntryType = "P2P_FEE"
	EntryInstantBuy           EntryType = "INSTANT_BUY"
	EntryInstantSell          EntryType = "INSTANT_SELL"
	EntryInstantFee           EntryType = "INSTANT_FEE"
	EntryInstantSpread        EntryType = "INSTANT_SPREAD"
	EntryBotTrade             EntryType = "BOT_TRADE"
	EntryBotFee               EntryType = "BOT_FEE"
	EntryReferralCommission   EntryType = "REFERRAL_COMMISSION"
	EntryAdminLiquidityAdd    EntryType = "ADMIN_LIQUIDITY_ADD"
	EntryAdminLiquidityRemove EntryType = "ADMIN_LIQUIDITY_REMOVE"
	EntryAdminAdjustment      EntryType = "ADMIN_ADJUSTMENT"
	EntrySavingsDeposit       EntryType = "SAVINGS_DEPOSIT"
	EntrySavingsWithdraw      EntryType = "SAVINGS_WITHDRAW"
	EntryInterestEarned       EntryType = "INTEREST_EARNED"
)

var entryTypes = map[EntryType]struct{}{
	EntryDeposit: {}, EntryWithdrawal: {}, EntryWithdrawalFee: {},
	EntrySpotTradeBuy: {}, EntrySpotTradeSell: {}, EntryTradingFee: {},
	EntrySwapDebit: {}, EntrySwapCredit: {}, EntrySwapFee: {},
	EntryP2PEscrowLock: {}, EntryP2PEscrowRelease: {}, EntryP2PTransfer: {}, EntryP2PFee: {},
	EntryInstantBuy: {}, EntryInstantSell: {}, EntryInstantFee: {}, EntryInstantSpread: {},
	EntryBotTrade: {}, EntryBotFee: {},
	EntryReferralCommission: {},
	EntryAdminLiquidityAdd: {}, EntryAdminLiquidityRemove: {}, EntryAdminAdjustment: {},
	EntrySavingsDeposit: {}, EntrySavingsWithdraw: {}, EntryInterestEarned: {},
}

var feeEntryTypes = map[EntryType]struct{}{
	EntryWithdrawalFee: {},
	EntryTradingFee:    {},
	EntrySwapFee:       {},
	EntryP2PFee:        {},
	EntryInstantFee:    {},
	EntryBotFee:        {},
}

// Valid reports whether t is one of the known entry kinds.
func (t EntryType) Valid() bool {
	_, ok := entryTypes[t]
	return ok
}

// IsFee reports whether t records a fee collected by the platform.
func (t EntryType) IsFee() bool {
	_, ok := feeEntryTypes[t]
	return ok
}

// AccountType identifies who owns one side of a ledger entry.
type AccountType string

const (
	AccountUser      AccountType = "USER"
	AccountAdmin     AccountType = "ADMIN"
	AccountEscrow    AccountType = "ESCROW"
	AccountFeePool   AccountType = "FEE_POOL"
	AccountLiquidity AccountType = "LIQUIDITY"
	AccountExternal  AccountType = "EXTERNAL"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountUser, AccountAdmin, AccountEscrow, AccountFeePool, AccountLiquidity, AccountExternal:
		return true
	}
	return false
}

// Account is one side of a movement.
type Account struct {
	Type AccountType `json:"type"`
	ID   string      `json:"id"`
}

func (a Account) String() string {
	return string(a.Type) + ":" + a.ID
}

// Account constructors.
func UserAccount(id string) Account     { return Account{Type: AccountUser, ID: id} }
func EscrowAccount(id string) Account   { return Account{Type: AccountEscrow, ID: id} }
func FeePoolAccount(id string) Account  { return Account{Type: AccountFeePool, ID: id} }
func ExternalAccount(id string) Account { return Account{Type: AccountExternal, ID: id} }
func LiquidityAccount(id string) Account {
	return Account{Type: AccountLiquidity, ID: id}
}

func AdminAccount(id string) Account {
	return Account{Type: AccountAdmin, ID: id}
}

// LedgerEntry is one immutable record of value moving between two accounts.
// Amount is always non-negative; direction is carried by From and To.
type LedgerEntry struct {
	ID            string          `json:"entry_id"`
	TransactionID string          `json:"transaction_id"`
	Type          EntryType       `json:"entry_type"`
	From          Account         `json:"from"`
	To            Account         `json:"to"`
	Currency      string          `json:"currency"`
	Amount        decimal.Decimal `json:"amount"`

	// point-in-time snapshots for audit, not authoritative state
	FromBalanceBefore decimal.Decimal `json:"from_balance_before"`
	FromBalanceAfter  decimal.Decimal `json:"from_balance_after"`
	ToBalanceBefore   decimal.Decimal `json:"to_balance_before"`
	ToBalanceAfter    decimal.Decimal `json:"to_balance_after"`

	IsRevenue     bool           `json:"is_revenue"`
	RevenueSource string         `json:"revenue_source,omitempty"`
	Description   string         `json:"description,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	Checksum      string         `json:"checksum"`
}

// ComputeChecksum hashes the identifying fields of the entry. It detects
// accidental or casual tampering and is not a cryptographic signature.
func (e LedgerEntry) ComputeChecksum() string {
	payload := strings.Join([]string{
		e.ID,
		e.TransactionID,
		string(e.Type),
		e.Amount.String(),
		e.Currency,
		e.From.String(),
		e.To.String(),
	}, "|")
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])[:16]
}

// Involves reports whether acc is either side of the entry.
func (e LedgerEntry) Involves(acc Account) bool {
	return e.From == acc || e.To == acc
}
