package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/custody-core/internal/models"
)

// EscrowMovement describes a lock or unlock of a trader's own funds between
// their available balance and their escrow sub-account.
type EscrowMovement struct {
	TradeID  string
	TraderID string
	Currency string
	Amount   decimal.Decimal
	Change   models.BalanceChange
}

// RecordEscrowLock records USER:{trader} -> ESCROW:{trader}.
func (l *Ledger) RecordEscrowLock(ctx context.Context, m EscrowMovement) (string, error) {
	return l.RecordEntry(ctx, EntryParams{
		TransactionID:     m.TradeID,
		Type:              models.EntryP2PEscrowLock,
		From:              models.UserAccount(m.TraderID),
		To:                models.EscrowAccount(m.TraderID),
		Currency:          m.Currency,
		Amount:            m.Amount,
		FromBalanceBefore: m.Change.Before.Available,
		FromBalanceAfter:  m.Change.After.Available,
		ToBalanceBefore:   m.Change.Before.Locked,
		ToBalanceAfter:    m.Change.After.Locked,
		Description:       "escrow lock for trade " + m.TradeID,
		Metadata:          map[string]any{"trade_id": m.TradeID},
	})
}

// RecordEscrowUnlock records ESCROW:{trader} -> USER:{trader} for a cancelled trade.
func (l *Ledger) RecordEscrowUnlock(ctx context.Context, m EscrowMovement) (string, error) {
	return l.RecordEntry(ctx, EntryParams{
		TransactionID:     m.TradeID,
		Type:              models.EntryP2PEscrowRelease,
		From:              models.EscrowAccount(m.TraderID),
		To:                models.UserAccount(m.TraderID),
		Currency:          m.Currency,
		Amount:            m.Amount,
		FromBalanceBefore: m.Change.Before.Locked,
		FromBalanceAfter:  m.Change.After.Locked,
		ToBalanceBefore:   m.Change.Before.Available,
		ToBalanceAfter:    m.Change.After.Available,
		Description:       "escrow unlock for cancelled trade " + m.TradeID,
		Metadata:          map[string]any{"trade_id": m.TradeID, "action": "unlock"},
	})
}

// EscrowRelease is a completed P2P trade paying the buyer out of the seller's escrow.
type EscrowRelease struct {
	TradeID    string
	SellerID   string
	BuyerID    string
	Currency   string
	Gross      decimal.Decimal
	Net        decimal.Decimal
	Fee        decimal.Decimal
	FeePercent decimal.Decimal
	Seller     models.BalanceChange
	Buyer      models.BalanceChange
	FeePool    models.BalanceChange
}

// ReleaseEntries holds the ids written by RecordEscrowRelease.
type ReleaseEntries struct {
	ReleaseID string
	FeeID     string
}

// RecordEscrowRelease records P2P_ESCROW_RELEASE (net to buyer) and, when the
// fee is positive, a revenue P2P_FEE to the fee pool. Both use the trade id
// as transaction id and are appended together.
func (l *Ledger) RecordEscrowRelease(ctx context.Context, r EscrowRelease) (ReleaseEntries, error) {
	md := map[string]any{
		"trade_id":     r.TradeID,
		"gross_amount": r.Gross.String(),
		"fee_percent":  r.FeePercent.String(),
	}
	escrow := models.EscrowAccount(r.SellerID)
	afterNet := r.Seller.Before.Locked.Sub(r.Net)

	params := []EntryParams{{
		TransactionID:     r.TradeID,
		Type:              models.EntryP2PEscrowRelease,
		From:              escrow,
		To:                models.UserAccount(r.BuyerID),
		Currency:          r.Currency,
		Amount:            r.Net,
		FromBalanceBefore: r.Seller.Before.Locked,
		FromBalanceAfter:  afterNet,
		ToBalanceBefore:   r.Buyer.Before.Total,
		ToBalanceAfter:    r.Buyer.After.Total,
		Description:       "escrow release for trade " + r.TradeID,
		Metadata:          md,
	}}
	if r.Fee.IsPositive() {
		params = append(params, EntryParams{
			TransactionID:     r.TradeID,
			Type:              models.EntryP2PFee,
			From:              escrow,
			To:                l.FeePool(),
			Currency:          r.Currency,
			Amount:            r.Fee,
			FromBalanceBefore: afterNet,
			FromBalanceAfter:  r.Seller.After.Locked,
			ToBalanceBefore:   r.FeePool.Before.Total,
			ToBalanceAfter:    r.FeePool.After.Total,
			IsRevenue:         true,
			RevenueSource:     "p2p_fee",
			Description:       "p2p fee for trade " + r.TradeID,
			Metadata:          md,
		})
	}

	entries, err := l.recordAll(ctx, params...)
	if err != nil {
		return ReleaseEntries{}, err
	}
	out := ReleaseEntries{ReleaseID: entries[0].ID}
	if len(entries) > 1 {
		out.FeeID = entries[1].ID
	}
	return out, nil
}
