package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/custody-core/internal/models"
)

// Deposit is the input of RecordDeposit.
type Deposit struct {
	UserID        string
	Currency      string
	Amount        decimal.Decimal
	Source        string // external source, e.g. "truelayer" or an on-chain tx hash
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	TransactionID string
	Metadata      map[string]any
}

// RecordDeposit records EXTERNAL:{source} -> USER:{user}.
func (l *Ledger) RecordDeposit(ctx context.Context, d Deposit) (string, error) {
	if d.Source == "" {
		d.Source = "unknown"
	}
	return l.RecordEntry(ctx, EntryParams{
		TransactionID:   d.TransactionID,
		Type:            models.EntryDeposit,
		From:            models.ExternalAccount(d.Source),
		To:              models.UserAccount(d.UserID),
		Currency:        d.Currency,
		Amount:          d.Amount,
		ToBalanceBefore: d.BalanceBefore,
		ToBalanceAfter:  d.BalanceAfter,
		Description:     fmt.Sprintf("deposit from %s", d.Source),
		Metadata:        d.Metadata,
	})
}

// Withdrawal is the input of RecordWithdrawal. Fee may be zero.
type Withdrawal struct {
	UserID        string
	Currency      string
	Amount        decimal.Decimal
	Fee           decimal.Decimal
	Destination   string
	BalanceBefore decimal.Decimal // user total before principal and fee
	BalanceAfter  decimal.Decimal // user total after principal and fee
	FeePoolBefore decimal.Decimal
	FeePoolAfter  decimal.Decimal
	TransactionID string
}

// WithdrawalEntries are the ids written by RecordWithdrawal. FeeEntryID is
// empty when no fee was charged.
type WithdrawalEntries struct {
	TransactionID string
	EntryID       string
	FeeEntryID    string
}

// RecordWithdrawal records the principal USER -> EXTERNAL and, when fee > 0,
// a revenue WITHDRAWAL_FEE USER -> FEE_POOL under the same transaction id.
func (l *Ledger) RecordWithdrawal(ctx context.Context, w Withdrawal) (WithdrawalEntries, error) {
	if w.Fee.IsNegative() {
		return WithdrawalEntries{}, models.Invalid("fee", "must not be negative")
	}
	txID := sharedTx(w.TransactionID)
	afterPrincipal := w.BalanceBefore.Sub(w.Amount)

	params := []EntryParams{{
		TransactionID:     txID,
		Type:              models.EntryWithdrawal,
		From:              models.UserAccount(w.UserID),
		To:                models.ExternalAccount(w.Destination),
		Currency:          w.Currency,
		Amount:            w.Amount,
		FromBalanceBefore: w.BalanceBefore,
		FromBalanceAfter:  afterPrincipal,
		Description:       fmt.Sprintf("withdrawal to %s", w.Destination),
	}}
	if w.Fee.IsPositive() {
		params = append(params, EntryParams{
			TransactionID:     txID,
			Type:              models.EntryWithdrawalFee,
			From:              models.UserAccount(w.UserID),
			To:                l.FeePool(),
			Currency:          w.Currency,
			Amount:            w.Fee,
			FromBalanceBefore: afterPrincipal,
			FromBalanceAfter:  w.BalanceAfter,
			ToBalanceBefore:   w.FeePoolBefore,
			ToBalanceAfter:    w.FeePoolAfter,
			IsRevenue:         true,
			RevenueSource:     "withdrawal_fee",
			Description:       "withdrawal fee",
		})
	}

	entries, err := l.recordAll(ctx, params...)
	if err != nil {
		return WithdrawalEntries{}, err
	}
	out := WithdrawalEntries{TransactionID: txID, EntryID: entries[0].ID}
	if len(entries) > 1 {
		out.FeeEntryID = entries[1].ID
	}
	return out, nil
}

// Swap is a conversion already priced by the exchange.
type Swap struct {
	UserID       string
	FromCurrency string
	ToCurrency   string
	FromAmount   decimal.Decimal
	ToAmount     decimal.Decimal
	FeeAmount    decimal.Decimal
	FeeCurrency  string // defaults to FromCurrency

	FromBalanceBefore decimal.Decimal
	FromBalanceAfter  decimal.Decimal
	ToBalanceBefore   decimal.Decimal
	ToBalanceAfter    decimal.Decimal
	TransactionID     string
}

// SwapEntries holds the ids written by RecordSwap. FeeID is empty without a fee.
type SwapEntries struct {
	TransactionID string
	DebitID       string
	CreditID      string
	FeeID         string
}

// RecordSwap records SWAP_DEBIT, SWAP_CREDIT and an optional SWAP_FEE.
// The implied rate between the two legs is not checked here; pricing is the
// caller's responsibility and the rate is only kept in metadata.
func (l *Ledger) RecordSwap(ctx context.Context, s Swap) (SwapEntries, error) {
	if s.FeeAmount.IsNegative() {
		return SwapEntries{}, models.Invalid("fee_amount", "must not be negative")
	}
	txID := sharedTx(s.TransactionID)
	feeCurrency := s.FeeCurrency
	if feeCurrency == "" {
		feeCurrency = s.FromCurrency
	}

	md := map[string]any{
		"from_currency": NormalizeCurrency(s.FromCurrency),
		"to_currency":   NormalizeCurrency(s.ToCurrency),
	}
	if s.FromAmount.IsPositive() {
		md["rate"] = s.ToAmount.Div(s.FromAmount).String()
	}
	pool := models.LiquidityAccount(l.liquidityID)
	user := models.UserAccount(s.UserID)

	params := []EntryParams{
		{
			TransactionID:     txID,
			Type:              models.EntrySwapDebit,
			From:              user,
			To:                pool,
			Currency:          s.FromCurrency,
			Amount:            s.FromAmount,
			FromBalanceBefore: s.FromBalanceBefore,
			FromBalanceAfter:  s.FromBalanceAfter,
			Description:       "swap debit",
			Metadata:          md,
		},
		{
			TransactionID:   txID,
			Type:            models.EntrySwapCredit,
			From:            pool,
			To:              user,
			Currency:        s.ToCurrency,
			Amount:          s.ToAmount,
			ToBalanceBefore: s.ToBalanceBefore,
			ToBalanceAfter:  s.ToBalanceAfter,
			Description:     "swap credit",
			Metadata:        md,
		},
	}
	if s.FeeAmount.IsPositive() {
		params = append(params, EntryParams{
			TransactionID: txID,
			Type:          models.EntrySwapFee,
			From:          user,
			To:            l.FeePool(),
			Currency:      feeCurrency,
			Amount:        s.FeeAmount,
			IsRevenue:     true,
			RevenueSource: "swap_fee",
			Description:   "swap fee",
			Metadata:      md,
		})
	}

	entries, err := l.recordAll(ctx, params...)
	if err != nil {
		return SwapEntries{}, err
	}
	out := SwapEntries{TransactionID: txID, DebitID: entries[0].ID, CreditID: entries[1].ID}
	if len(entries) > 2 {
		out.FeeID = entries[2].ID
	}
	return out, nil
}

// FeeType selects the revenue source of a trading fee.
type FeeType string

const (
	FeeSpot    FeeType = "spot"
	FeeP2P     FeeType = "p2p"
	FeeBot     FeeType = "bot"
	FeeInstant FeeType = "instant"
)

var feeEntryTypes = map[FeeType]models.EntryType{
	FeeSpot:    models.EntryTradingFee,
	FeeP2P:     models.EntryP2PFee,
	FeeBot:     models.EntryBotFee,
	FeeInstant: models.EntryInstantFee,
}

// RecordTradeFee records a revenue fee USER -> FEE_POOL tagged "{feeType}_fee".
func (l *Ledger) RecordTradeFee(ctx context.Context, userID, currency string, fee decimal.Decimal, feeType FeeType, txID string) (string, error) {
	entryType, ok := feeEntryTypes[feeType]
	if !ok {
		return "", models.Invalid("fee_type", fmt.Sprintf("unknown fee type %q", feeType))
	}
	return l.RecordEntry(ctx, EntryParams{
		TransactionID: txID,
		Type:          entryType,
		From:          models.UserAccount(userID),
		To:            l.FeePool(),
		Currency:      currency,
		Amount:        fee,
		IsRevenue:     true,
		RevenueSource: string(feeType) + "_fee",
		Description:   fmt.Sprintf("%s trading fee", feeType),
	})
}

// ReferralCommission is paid out of the fee pool to a referrer.
type ReferralCommission struct {
	ReferrerID     string
	ReferredUserID string
	Currency       string
	Amount         decimal.Decimal
	FeeSource      string // revenue source the commission is paid out of
	BalanceBefore  decimal.Decimal
	BalanceAfter   decimal.Decimal
	TransactionID  string
}

// RecordReferralCommission pays previously collected revenue out of the fee
// pool to the referrer. It is not revenue itself.
func (l *Ledger) RecordReferralCommission(ctx context.Context, r ReferralCommission) (string, error) {
	return l.RecordEntry(ctx, EntryParams{
		TransactionID:   r.TransactionID,
		Type:            models.EntryReferralCommission,
		From:            l.FeePool(),
		To:              models.UserAccount(r.ReferrerID),
		Currency:        r.Currency,
		Amount:          r.Amount,
		ToBalanceBefore: r.BalanceBefore,
		ToBalanceAfter:  r.BalanceAfter,
		Description:     "referral commission",
		Metadata: map[string]any{
			"referred_user_id": r.ReferredUserID,
			"fee_source":       r.FeeSource,
		},
	})
}
