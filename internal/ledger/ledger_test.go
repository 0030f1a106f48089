package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	interfaces "github.com/sheikh-saqib/custody-core/internal/interfaces"
	"github.com/sheikh-saqib/custody-core/internal/models"
	"github.com/sheikh-saqib/custody-core/internal/models/events"
	"github.com/sheikh-saqib/custody-core/internal/storage/memory"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestLedger(t *testing.T) (*Ledger, *memory.MemoryStore) {
	t.Helper()
	store := memory.NewMemoryStore()
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewLedger(store, nil, WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}))
	return l, store
}

func TestRecordDeposit(t *testing.T) {
	l, store := newTestLedger(t)
	ctx := context.Background()

	id, err := l.RecordDeposit(ctx, Deposit{
		UserID:        "u1",
		Currency:      " btc ",
		Amount:        d("0.5"),
		Source:        "0xabc",
		BalanceBefore: d("0"),
		BalanceAfter:  d("0.5"),
	})
	require.NoError(t, err)

	entry, err := store.GetEntry(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.EntryDeposit, entry.Type)
	assert.Equal(t, "BTC", entry.Currency)
	assert.Equal(t, "EXTERNAL:0xabc", entry.From.String())
	assert.Equal(t, "USER:u1", entry.To.String())
	assert.NotEmpty(t, entry.TransactionID)
	assert.False(t, entry.IsRevenue)
	assert.True(t, VerifyEntry(entry))
}

func TestRecordDepositUnknownSource(t *testing.T) {
	l, store := newTestLedger(t)

	id, err := l.RecordDeposit(context.Background(), Deposit{UserID: "u1", Currency: "GBP", Amount: d("10")})
	require.NoError(t, err)

	entry, err := store.GetEntry(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "EXTERNAL:unknown", entry.From.String())
}

func TestRecordWithdrawalWithFee(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	out, err := l.RecordWithdrawal(ctx, Withdrawal{
		UserID:        "u1",
		Currency:      "BTC",
		Amount:        d("0.05"),
		Fee:           d("0.0005"),
		Destination:   "bc1qdest",
		BalanceBefore: d("1"),
		BalanceAfter:  d("0.9495"),
		FeePoolBefore: d("0"),
		FeePoolAfter:  d("0.0005"),
	})
	require.NoError(t, err)
	require.NotEmpty(t, out.FeeEntryID)

	entries, err := l.TransactionEntries(ctx, out.TransactionID)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byType := map[models.EntryType]models.LedgerEntry{}
	for _, e := range entries {
		assert.Equal(t, out.TransactionID, e.TransactionID)
		byType[e.Type] = e
	}
	principal := byType[models.EntryWithdrawal]
	fee := byType[models.EntryWithdrawalFee]

	assert.True(t, principal.Amount.Equal(d("0.05")))
	assert.Equal(t, "EXTERNAL:bc1qdest", principal.To.String())
	assert.True(t, principal.FromBalanceAfter.Equal(d("0.95")))

	assert.True(t, fee.Amount.Equal(d("0.0005")))
	assert.True(t, fee.IsRevenue)
	assert.Equal(t, "withdrawal_fee", fee.RevenueSource)
	assert.Equal(t, "FEE_POOL:platform", fee.To.String())
	assert.True(t, fee.FromBalanceAfter.Equal(d("0.9495")))
}

func TestRecordWithdrawalWithoutFee(t *testing.T) {
	l, _ := newTestLedger(t)

	out, err := l.RecordWithdrawal(context.Background(), Withdrawal{
		UserID: "u1", Currency: "ETH", Amount: d("2"), Destination: "0xdef",
	})
	require.NoError(t, err)
	assert.Empty(t, out.FeeEntryID)

	entries, err := l.TransactionEntries(context.Background(), out.TransactionID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRecordEntryValidation(t *testing.T) {
	l, store := newTestLedger(t)
	ctx := context.Background()

	base := EntryParams{
		Type:     models.EntryAdminAdjustment,
		From:     models.AdminAccount("ops"),
		To:       models.UserAccount("u1"),
		Currency: "USDT",
		Amount:   d("5"),
	}

	cases := map[string]func(p *EntryParams){
		"negative amount": func(p *EntryParams) { p.Amount = d("-1") },
		"empty currency":  func(p *EntryParams) { p.Currency = "  " },
		"unknown type":    func(p *EntryParams) { p.Type = "MINT" },
		"bad account":     func(p *EntryParams) { p.To = models.Account{Type: "BANK", ID: "x"} },
		"empty account":   func(p *EntryParams) { p.From = models.UserAccount("") },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := base
			mutate(&p)
			_, err := l.RecordEntry(ctx, p)
			require.Error(t, err)
			assert.ErrorIs(t, err, models.ErrValidation)
		})
	}

	entries, err := store.QueryEntries(ctx, interfaces.EntryFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestZeroAmountIsAllowed(t *testing.T) {
	l, _ := newTestLedger(t)

	_, err := l.RecordEntry(context.Background(), EntryParams{
		Type:     models.EntryAdminAdjustment,
		From:     models.AdminAccount("ops"),
		To:       models.UserAccount("u1"),
		Currency: "BTC",
		Amount:   decimal.Zero,
	})
	assert.NoError(t, err)
}

func TestRecordSwapSharesTransaction(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	out, err := l.RecordSwap(ctx, Swap{
		UserID:       "u1",
		FromCurrency: "BTC",
		ToCurrency:   "USDT",
		FromAmount:   d("0.1"),
		ToAmount:     d("6000"),
		FeeAmount:    d("0.0001"),
	})
	require.NoError(t, err)
	require.NotEmpty(t, out.FeeID)

	entries, err := l.TransactionEntries(ctx, out.TransactionID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.Equal(t, "60000", e.Metadata["rate"])
		if e.Type == models.EntrySwapFee {
			assert.Equal(t, "BTC", e.Currency)
			assert.Equal(t, "swap_fee", e.RevenueSource)
		}
	}
}

func TestRecordTradeFee(t *testing.T) {
	l, store := newTestLedger(t)
	ctx := context.Background()

	id, err := l.RecordTradeFee(ctx, "u1", "usdt", d("1.25"), FeeBot, "order-9")
	require.NoError(t, err)

	entry, err := store.GetEntry(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.EntryBotFee, entry.Type)
	assert.Equal(t, "bot_fee", entry.RevenueSource)
	assert.Equal(t, "order-9", entry.TransactionID)

	_, err = l.RecordTradeFee(ctx, "u1", "USDT", d("1"), FeeType("margin"), "")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestReferralCommissionIsNotRevenue(t *testing.T) {
	l, store := newTestLedger(t)
	ctx := context.Background()

	id, err := l.RecordReferralCommission(ctx, ReferralCommission{
		ReferrerID:     "ref",
		ReferredUserID: "u1",
		Currency:       "USDT",
		Amount:         d("0.5"),
		FeeSource:      "spot_fee",
	})
	require.NoError(t, err)

	entry, err := store.GetEntry(ctx, id)
	require.NoError(t, err)
	assert.False(t, entry.IsRevenue)
	assert.Equal(t, "FEE_POOL:platform", entry.From.String())
	assert.Equal(t, "u1", entry.Metadata["referred_user_id"])
}

func TestRecordEscrowRelease(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	out, err := l.RecordEscrowRelease(ctx, EscrowRelease{
		TradeID:    "trade-1",
		SellerID:   "seller",
		BuyerID:    "buyer",
		Currency:   "BTC",
		Gross:      d("0.1"),
		Net:        d("0.099"),
		Fee:        d("0.001"),
		FeePercent: d("1"),
	})
	require.NoError(t, err)
	require.NotEmpty(t, out.FeeID)

	entries, err := l.TransactionEntries(ctx, "trade-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	sum := decimal.Zero
	for _, e := range entries {
		assert.Equal(t, "ESCROW:seller", e.From.String())
		sum = sum.Add(e.Amount)
	}
	assert.True(t, sum.Equal(d("0.1")))
}

func TestUserLedgerIncludesEscrow(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := l.RecordDeposit(ctx, Deposit{UserID: "u1", Currency: "BTC", Amount: d("1")})
	require.NoError(t, err)
	_, err = l.RecordEscrowLock(ctx, EscrowMovement{TradeID: "t1", TraderID: "u1", Currency: "BTC", Amount: d("0.4")})
	require.NoError(t, err)
	_, err = l.RecordDeposit(ctx, Deposit{UserID: "u2", Currency: "BTC", Amount: d("3")})
	require.NoError(t, err)
	_, err = l.RecordEscrowUnlock(ctx, EscrowMovement{TradeID: "t1", TraderID: "u1", Currency: "BTC", Amount: d("0.4")})
	require.NoError(t, err)

	entries, err := l.UserLedger(ctx, "u1", Query{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	// newest first
	assert.Equal(t, "unlock", entries[0].Metadata["action"])
	assert.Equal(t, models.EntryDeposit, entries[2].Type)

	limited, err := l.UserLedger(ctx, "u1", Query{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	_, err = l.UserLedger(ctx, "", Query{})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestRevenueLedgerFilters(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := l.RecordTradeFee(ctx, "u1", "USDT", d("1"), FeeSpot, "")
	require.NoError(t, err)
	_, err = l.RecordTradeFee(ctx, "u1", "USDT", d("2"), FeeP2P, "")
	require.NoError(t, err)
	_, err = l.RecordDeposit(ctx, Deposit{UserID: "u1", Currency: "USDT", Amount: d("100")})
	require.NoError(t, err)

	all, err := l.RevenueLedger(ctx, Query{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	p2p, err := l.RevenueLedger(ctx, Query{RevenueSource: "p2p_fee"})
	require.NoError(t, err)
	require.Len(t, p2p, 1)
	assert.True(t, p2p[0].Amount.Equal(d("2")))
}

func TestQueryLimitClamp(t *testing.T) {
	assert.Equal(t, DefaultQueryLimit, Query{}.limit())
	assert.Equal(t, MaxQueryLimit, Query{Limit: 5000}.limit())
	assert.Equal(t, 7, Query{Limit: 7}.limit())
}

func TestReverseEntry(t *testing.T) {
	l, store := newTestLedger(t)
	ctx := context.Background()

	id, err := l.RecordDeposit(ctx, Deposit{UserID: "u1", Currency: "BTC", Amount: d("0.3"), Source: "bank"})
	require.NoError(t, err)

	revID, err := l.ReverseEntry(ctx, id, "duplicate credit")
	require.NoError(t, err)

	orig, err := store.GetEntry(ctx, id)
	require.NoError(t, err)
	rev, err := store.GetEntry(ctx, revID)
	require.NoError(t, err)

	assert.Equal(t, models.EntryAdminAdjustment, rev.Type)
	assert.Equal(t, orig.TransactionID, rev.TransactionID)
	assert.Equal(t, orig.To, rev.From)
	assert.Equal(t, orig.From, rev.To)
	assert.True(t, orig.Amount.Equal(rev.Amount))
	assert.Equal(t, id, rev.Metadata["reverses_entry_id"])

	_, err = l.ReverseEntry(ctx, "missing", "x")
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = l.ReverseEntry(ctx, id, "")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestReverseEntryOnlyOnce(t *testing.T) {
	l, store := newTestLedger(t)
	ctx := context.Background()

	id, err := l.RecordDeposit(ctx, Deposit{UserID: "u1", Currency: "BTC", Amount: d("0.3"), Source: "bank"})
	require.NoError(t, err)
	orig, err := store.GetEntry(ctx, id)
	require.NoError(t, err)

	revID, err := l.ReverseEntry(ctx, id, "oops")
	require.NoError(t, err)
	assert.True(t, store.TransactionExists("reversal:"+id))

	_, err = l.ReverseEntry(ctx, id, "oops again")
	assert.ErrorIs(t, err, models.ErrDuplicateTransaction)

	_, err = l.ReverseEntry(ctx, revID, "undo the undo")
	assert.ErrorIs(t, err, models.ErrValidation)

	entries, err := l.TransactionEntries(ctx, orig.TransactionID)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestVerifyEntryDetectsTampering(t *testing.T) {
	l, store := newTestLedger(t)
	ctx := context.Background()

	id, err := l.RecordDeposit(ctx, Deposit{UserID: "u1", Currency: "BTC", Amount: d("1")})
	require.NoError(t, err)

	entry, err := store.GetEntry(ctx, id)
	require.NoError(t, err)
	assert.True(t, VerifyEntry(entry))

	entry.Amount = d("10")
	assert.False(t, VerifyEntry(entry))

	tampered, err := l.VerifyTransaction(ctx, entry.TransactionID)
	require.NoError(t, err)
	assert.Empty(t, tampered)
}

func TestInTxRollsBackEntries(t *testing.T) {
	l, store := newTestLedger(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.RunInTx(ctx, func(uow interfaces.UnitOfWork) error {
		if _, err := l.In(uow).RecordDeposit(ctx, Deposit{UserID: "u1", Currency: "BTC", Amount: d("1")}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	entries, err := store.QueryEntries(ctx, interfaces.EntryFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type capturingPublisher struct {
	topics []string
	events []any
}

func (p *capturingPublisher) Publish(ctx context.Context, topic, key string, event any) error {
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return nil
}

func TestDirectWritesAreAnnounced(t *testing.T) {
	store := memory.NewMemoryStore()
	pub := &capturingPublisher{}
	l := NewLedger(store, nil, WithPublisher(pub))
	ctx := context.Background()

	id, err := l.RecordTradeFee(ctx, "u1", "usdt", d("1.25"), FeeSpot, "")
	require.NoError(t, err)
	require.Len(t, pub.events, 1)
	assert.Equal(t, events.TopicLedgerEntries, pub.topics[0])
	recorded, ok := pub.events[0].(events.EntryRecorded)
	require.True(t, ok)
	assert.Equal(t, id, recorded.EntryID)
	assert.Equal(t, "USDT", recorded.Currency)

	err = store.RunInTx(ctx, func(uow interfaces.UnitOfWork) error {
		_, err := l.In(uow).RecordDeposit(ctx, Deposit{UserID: "u1", Currency: "BTC", Amount: d("1")})
		return err
	})
	require.NoError(t, err)
	assert.Len(t, pub.events, 1, "writes inside a storage transaction are not announced")

	_, err = l.ReverseEntry(ctx, id, "wrong pair")
	require.NoError(t, err)
	assert.Len(t, pub.events, 2, "reversals are announced once committed")
}
