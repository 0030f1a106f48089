package escrow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	interfaces "github.com/sheikh-saqib/custody-core/internal/interfaces"
	"github.com/sheikh-saqib/custody-core/internal/ledger"
	"github.com/sheikh-saqib/custody-core/internal/models"
	"github.com/sheikh-saqib/custody-core/internal/models/events"
	"github.com/sheikh-saqib/custody-core/internal/storage/memory"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	events []any
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, topic, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return p.err
}

type fixture struct {
	engine *Engine
	store  *memory.MemoryStore
	ledger *ledger.Ledger
	pub    *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewMemoryStore()
	l := ledger.NewLedger(store, nil)
	pub := &recordingPublisher{}
	return &fixture{
		engine: NewEngine(store, l, nil, WithPublisher(pub)),
		store:  store,
		ledger: l,
		pub:    pub,
	}
}

func (f *fixture) fund(t *testing.T, traderID, currency, amount string) {
	t.Helper()
	_, err := f.engine.Deposit(context.Background(), DepositRequest{
		TransactionID: "fund-" + traderID + "-" + currency,
		UserID:        traderID,
		Currency:      currency,
		Amount:        d(amount),
		Source:        "test",
	})
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, traderID, currency string) models.TraderBalance {
	t.Helper()
	b, err := f.engine.GetBalance(context.Background(), traderID, currency)
	require.NoError(t, err)
	return b
}

func TestLockAndReleaseScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "alice", "BTC", "1.0")

	after, err := f.engine.Lock(ctx, "alice", "BTC", d("0.01"), "t1")
	require.NoError(t, err)
	assert.True(t, after.Locked.Equal(d("0.01")))
	assert.True(t, after.Available.Equal(d("0.99")))
	assert.True(t, after.Total.Equal(d("1")))

	res, err := f.engine.Release(ctx, ReleaseRequest{
		TradeID:     "t1",
		SellerID:    "alice",
		BuyerID:     "bob",
		Currency:    "btc",
		GrossAmount: d("0.01"),
		FeePercent:  d("1.0"),
	})
	require.NoError(t, err)
	assert.True(t, res.Fee.Equal(d("0.0001")))
	assert.True(t, res.Net.Equal(d("0.0099")))
	assert.True(t, res.Fee.Add(res.Net).Equal(res.Gross))

	alice := f.balance(t, "alice", "BTC")
	assert.True(t, alice.Total.Equal(d("0.99")))
	assert.True(t, alice.Locked.IsZero())

	bob := f.balance(t, "bob", "BTC")
	assert.True(t, bob.Total.Equal(d("0.0099")))

	pool, err := f.engine.FeePoolBalance(ctx, "BTC")
	require.NoError(t, err)
	assert.True(t, pool.Total.Equal(d("0.0001")))

	lock, err := f.engine.GetLock(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.LockReleased, lock.Status)
	assert.True(t, lock.Remaining.IsZero())

	entries, err := f.ledger.TransactionEntries(ctx, "t1")
	require.NoError(t, err)
	types := map[models.EntryType]int{}
	for _, e := range entries {
		types[e.Type]++
	}
	assert.Equal(t, 1, types[models.EntryP2PEscrowLock])
	assert.Equal(t, 1, types[models.EntryP2PEscrowRelease])
	assert.Equal(t, 1, types[models.EntryP2PFee])

	assert.Contains(t, f.pub.topics, events.TopicEscrow)
}

func TestLockInsufficientBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "diana", "BTC", "0.3")

	_, err := f.engine.Lock(ctx, "diana", "BTC", d("1.0"), "t2")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInsufficientBalance)

	b := f.balance(t, "diana", "BTC")
	assert.True(t, b.Locked.IsZero())
	assert.True(t, b.Available.Equal(d("0.3")))

	entries, err := f.ledger.TransactionEntries(ctx, "t2")
	require.NoError(t, err)
	assert.Empty(t, entries)

	// the failed attempt must not consume the idempotency key
	_, err = f.engine.Lock(ctx, "diana", "BTC", d("0.3"), "t2")
	assert.NoError(t, err)
}

func TestLockValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Lock(ctx, "alice", "BTC", decimal.Zero, "t1")
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = f.engine.Lock(ctx, "alice", "BTC", d("-1"), "t1")
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = f.engine.Lock(ctx, "", "BTC", d("1"), "t1")
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = f.engine.Lock(ctx, "alice", "BTC", d("1"), "")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestConcurrentLocksNeverOverdraw(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "alice", "BTC", "1.0")

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.engine.Lock(context.Background(), "alice", "BTC", d("0.4"), fmt.Sprintf("t%d", i))
		}(i)
	}
	wg.Wait()

	var ok, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, models.ErrInsufficientBalance):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 2, ok)
	assert.Equal(t, 1, rejected)

	b := f.balance(t, "alice", "BTC")
	assert.True(t, b.Locked.Equal(d("0.8")))
	assert.True(t, b.Available.Equal(d("0.2")))
}

func TestConcurrentMixedOperationsKeepInvariants(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "alice", "USDT", "1000")

	const workers = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	locked := decimal.Zero

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx := context.Background()
			trade := fmt.Sprintf("trade-%d", i)
			amount := decimal.NewFromInt(int64(10 + i*3))
			if _, err := f.engine.Lock(ctx, "alice", "USDT", amount, trade); err != nil {
				assert.ErrorIs(t, err, models.ErrInsufficientBalance)
				return
			}
			if i%2 == 0 {
				_, err := f.engine.Unlock(ctx, "alice", "USDT", amount, trade)
				assert.NoError(t, err)
				return
			}
			mu.Lock()
			locked = locked.Add(amount)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	b := f.balance(t, "alice", "USDT")
	assert.True(t, b.Total.Equal(d("1000")))
	assert.True(t, b.Locked.Equal(locked), "locked %s want %s", b.Locked, locked)
	assert.True(t, b.Available.Equal(b.Total.Sub(b.Locked)))
	assert.False(t, b.Available.IsNegative())
}

func TestUnlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "carol", "ETH", "2")

	_, err := f.engine.Lock(ctx, "carol", "ETH", d("1.5"), "t9")
	require.NoError(t, err)

	_, err = f.engine.Unlock(ctx, "carol", "ETH", d("2"), "t9")
	assert.ErrorIs(t, err, models.ErrInvalidUnlock)

	after, err := f.engine.Unlock(ctx, "carol", "ETH", d("1.5"), "t9")
	require.NoError(t, err)
	assert.True(t, after.Locked.IsZero())
	assert.True(t, after.Available.Equal(d("2")))

	_, err = f.engine.Unlock(ctx, "carol", "ETH", d("1.5"), "t9")
	assert.ErrorIs(t, err, models.ErrDuplicateTransaction)
}

func TestReleaseMoreThanLocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "alice", "BTC", "1")

	_, err := f.engine.Lock(ctx, "alice", "BTC", d("0.1"), "t1")
	require.NoError(t, err)

	_, err = f.engine.Release(ctx, ReleaseRequest{
		TradeID: "t1", SellerID: "alice", BuyerID: "bob", Currency: "BTC",
		GrossAmount: d("0.2"), FeePercent: d("1"),
	})
	assert.ErrorIs(t, err, models.ErrInsufficientLocked)

	alice := f.balance(t, "alice", "BTC")
	assert.True(t, alice.Locked.Equal(d("0.1")))
	assert.True(t, alice.Total.Equal(d("1")))
	assert.True(t, f.balance(t, "bob", "BTC").Total.IsZero())
}

func TestDuplicateRelease(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "alice", "BTC", "1")

	_, err := f.engine.Lock(ctx, "alice", "BTC", d("0.5"), "t1")
	require.NoError(t, err)

	req := ReleaseRequest{
		TradeID: "t1", SellerID: "alice", BuyerID: "bob", Currency: "BTC",
		GrossAmount: d("0.2"), FeePercent: d("0.5"),
	}
	_, err = f.engine.Release(ctx, req)
	require.NoError(t, err)

	_, err = f.engine.Release(ctx, req)
	assert.ErrorIs(t, err, models.ErrDuplicateTransaction)

	assert.True(t, f.balance(t, "bob", "BTC").Total.Equal(d("0.199")))
	assert.True(t, f.balance(t, "alice", "BTC").Locked.Equal(d("0.3")))
}

func TestReleaseValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	base := ReleaseRequest{
		TradeID: "t1", SellerID: "alice", BuyerID: "bob", Currency: "BTC",
		GrossAmount: d("0.1"), FeePercent: d("1"),
	}
	cases := map[string]func(r *ReleaseRequest){
		"fee above 100":    func(r *ReleaseRequest) { r.FeePercent = d("100.1") },
		"negative fee":     func(r *ReleaseRequest) { r.FeePercent = d("-1") },
		"zero gross":       func(r *ReleaseRequest) { r.GrossAmount = decimal.Zero },
		"self trade":       func(r *ReleaseRequest) { r.BuyerID = "alice" },
		"missing trade":    func(r *ReleaseRequest) { r.TradeID = "" },
		"missing currency": func(r *ReleaseRequest) { r.Currency = " " },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			r := base
			mutate(&r)
			_, err := f.engine.Release(ctx, r)
			assert.ErrorIs(t, err, models.ErrValidation)
		})
	}
}

func TestReleaseWithoutLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "alice", "BTC", "1.0")

	_, err := f.engine.Lock(ctx, "alice", "BTC", d("0.5"), "t1")
	require.NoError(t, err)

	_, err = f.engine.Release(ctx, ReleaseRequest{
		TradeID: "t-never-locked", SellerID: "alice", BuyerID: "mallory", Currency: "BTC",
		GrossAmount: d("0.5"), FeePercent: d("1"),
	})
	assert.ErrorIs(t, err, models.ErrLockNotFound)

	alice := f.balance(t, "alice", "BTC")
	assert.True(t, alice.Locked.Equal(d("0.5")))
	assert.True(t, alice.Total.Equal(d("1")))
	assert.True(t, f.balance(t, "mallory", "BTC").Total.IsZero())
	assert.False(t, f.store.TransactionExists("p2p_release:t-never-locked"))

	// the real trade can still be cancelled
	after, err := f.engine.Unlock(ctx, "alice", "BTC", d("0.5"), "t1")
	require.NoError(t, err)
	assert.True(t, after.Locked.IsZero())
	assert.True(t, after.Available.Equal(d("1")))
}

func TestReleaseAfterUnlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "alice", "BTC", "1.0")

	_, err := f.engine.Lock(ctx, "alice", "BTC", d("0.3"), "t1")
	require.NoError(t, err)
	_, err = f.engine.Lock(ctx, "alice", "BTC", d("0.3"), "t2")
	require.NoError(t, err)
	_, err = f.engine.Unlock(ctx, "alice", "BTC", d("0.3"), "t1")
	require.NoError(t, err)

	_, err = f.engine.Release(ctx, ReleaseRequest{
		TradeID: "t1", SellerID: "alice", BuyerID: "bob", Currency: "BTC",
		GrossAmount: d("0.3"), FeePercent: d("1"),
	})
	assert.ErrorIs(t, err, models.ErrLockNotFound)
	assert.True(t, f.balance(t, "alice", "BTC").Locked.Equal(d("0.3")))
	assert.True(t, f.balance(t, "bob", "BTC").Total.IsZero())

	cancelled, err := f.engine.GetLock(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.LockCancelled, cancelled.Status)

	open, err := f.engine.GetLock(ctx, "t2")
	require.NoError(t, err)
	assert.Equal(t, models.LockOpen, open.Status)
	assert.True(t, open.Remaining.Equal(d("0.3")))
}

func TestReleaseOfAnotherTradersTrade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "alice", "BTC", "1")
	f.fund(t, "carol", "BTC", "1")

	_, err := f.engine.Lock(ctx, "alice", "BTC", d("0.5"), "t1")
	require.NoError(t, err)
	_, err = f.engine.Lock(ctx, "carol", "BTC", d("0.5"), "t2")
	require.NoError(t, err)

	_, err = f.engine.Release(ctx, ReleaseRequest{
		TradeID: "t1", SellerID: "carol", BuyerID: "bob", Currency: "BTC",
		GrossAmount: d("0.5"), FeePercent: d("1"),
	})
	assert.ErrorIs(t, err, models.ErrLockNotFound)

	_, err = f.engine.Unlock(ctx, "carol", "BTC", d("0.5"), "t1")
	assert.ErrorIs(t, err, models.ErrLockNotFound)

	_, err = f.engine.Release(ctx, ReleaseRequest{
		TradeID: "t1", SellerID: "alice", BuyerID: "bob", Currency: "ETH",
		GrossAmount: d("0.5"), FeePercent: d("1"),
	})
	assert.ErrorIs(t, err, models.ErrLockNotFound)

	assert.True(t, f.balance(t, "alice", "BTC").Locked.Equal(d("0.5")))
	assert.True(t, f.balance(t, "carol", "BTC").Locked.Equal(d("0.5")))
	assert.True(t, f.balance(t, "bob", "BTC").Total.IsZero())
}

func TestPartialReleaseThenCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "alice", "USDT", "100")

	_, err := f.engine.Lock(ctx, "alice", "USDT", d("60"), "t1")
	require.NoError(t, err)
	_, err = f.engine.Release(ctx, ReleaseRequest{
		TradeID: "t1", SellerID: "alice", BuyerID: "bob", Currency: "USDT",
		GrossAmount: d("40"), FeePercent: d("0"),
	})
	require.NoError(t, err)

	lock, err := f.engine.GetLock(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.LockOpen, lock.Status)
	assert.True(t, lock.Remaining.Equal(d("20")))

	_, err = f.engine.Unlock(ctx, "alice", "USDT", d("30"), "t1")
	assert.ErrorIs(t, err, models.ErrInvalidUnlock)

	after, err := f.engine.Unlock(ctx, "alice", "USDT", d("20"), "t1")
	require.NoError(t, err)
	assert.True(t, after.Locked.IsZero())
	assert.True(t, after.Total.Equal(d("60")))

	lock, err = f.engine.GetLock(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.LockCancelled, lock.Status)
	assert.True(t, lock.Remaining.IsZero())

	_, err = f.engine.GetLock(ctx, "t-unknown")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestFeePoolIsNotATraderBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "alice", "BTC", "1")

	_, err := f.engine.Lock(ctx, "alice", "BTC", d("0.5"), "t1")
	require.NoError(t, err)
	_, err = f.engine.Release(ctx, ReleaseRequest{
		TradeID: "t1", SellerID: "alice", BuyerID: "bob", Currency: "BTC",
		GrossAmount: d("0.5"), FeePercent: d("10"),
	})
	require.NoError(t, err)

	pool, err := f.engine.FeePoolBalance(ctx, "BTC")
	require.NoError(t, err)
	assert.True(t, pool.Total.Equal(d("0.05")))

	// a trader sharing the fee pool's ID owns nothing of it
	namesake := f.balance(t, ledger.DefaultFeePoolID, "BTC")
	assert.True(t, namesake.Total.IsZero())

	_, err = f.engine.Withdraw(ctx, WithdrawRequest{
		TransactionID: "w-steal", UserID: ledger.DefaultFeePoolID, Currency: "BTC",
		Amount: d("0.05"), FeePercent: d("0"), Destination: "bc1qthief",
	})
	assert.ErrorIs(t, err, models.ErrInsufficientBalance)

	_, err = f.engine.Withdraw(ctx, WithdrawRequest{
		TransactionID: "w-steal-2", UserID: "FEE_POOL:" + ledger.DefaultFeePoolID, Currency: "BTC",
		Amount: d("0.05"), FeePercent: d("0"), Destination: "bc1qthief",
	})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = f.engine.GetBalance(ctx, "FEE_POOL:"+ledger.DefaultFeePoolID, "BTC")
	assert.ErrorIs(t, err, models.ErrValidation)

	pool, err = f.engine.FeePoolBalance(ctx, "BTC")
	require.NoError(t, err)
	assert.True(t, pool.Total.Equal(d("0.05")))
}

type failingAppendStore struct {
	*memory.MemoryStore
}

func (s failingAppendStore) RunInTx(ctx context.Context, fn func(uow interfaces.UnitOfWork) error) error {
	return s.MemoryStore.RunInTx(ctx, func(uow interfaces.UnitOfWork) error {
		return fn(failingAppendUOW{uow})
	})
}

type failingAppendUOW struct {
	interfaces.UnitOfWork
}

func (failingAppendUOW) AppendEntries(ctx context.Context, entries ...models.LedgerEntry) error {
	return errors.New("ledger unavailable")
}

func TestLedgerFailureRollsBackBalances(t *testing.T) {
	store := memory.NewMemoryStore()
	l := ledger.NewLedger(store, nil)
	healthy := NewEngine(store, l, nil)
	broken := NewEngine(failingAppendStore{store}, l, nil)
	ctx := context.Background()

	_, err := healthy.Deposit(ctx, DepositRequest{TransactionID: "d1", UserID: "alice", Currency: "BTC", Amount: d("1")})
	require.NoError(t, err)
	_, err = healthy.Lock(ctx, "alice", "BTC", d("0.5"), "t1")
	require.NoError(t, err)

	_, err = broken.Release(ctx, ReleaseRequest{
		TradeID: "t1", SellerID: "alice", BuyerID: "bob", Currency: "BTC",
		GrossAmount: d("0.5"), FeePercent: d("1"),
	})
	require.Error(t, err)

	alice, err := store.GetBalance(ctx, "alice", "BTC")
	require.NoError(t, err)
	assert.True(t, alice.Locked.Equal(d("0.5")))
	assert.True(t, alice.Total.Equal(d("1")))

	bob, err := store.GetBalance(ctx, "bob", "BTC")
	require.NoError(t, err)
	assert.True(t, bob.Total.IsZero())
	assert.False(t, store.TransactionExists("p2p_release:t1"))

	// the trade can still be settled once the ledger recovers
	_, err = healthy.Release(ctx, ReleaseRequest{
		TradeID: "t1", SellerID: "alice", BuyerID: "bob", Currency: "BTC",
		GrossAmount: d("0.5"), FeePercent: d("1"),
	})
	assert.NoError(t, err)
}

func TestWithdrawChargesFee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "erin", "BTC", "1")

	res, err := f.engine.Withdraw(ctx, WithdrawRequest{
		TransactionID: "w1",
		UserID:        "erin",
		Currency:      "BTC",
		Amount:        d("0.05"),
		FeePercent:    d("1.0"),
		Destination:   "bc1qdest",
	})
	require.NoError(t, err)
	assert.True(t, res.Fee.Equal(d("0.0005")))
	assert.True(t, res.TotalDebited.Equal(d("0.0505")))
	assert.True(t, res.Balance.Total.Equal(d("0.9495")))
	pool, err := f.engine.FeePoolBalance(ctx, "BTC")
	require.NoError(t, err)
	assert.True(t, pool.Total.Equal(d("0.0005")))

	entries, err := f.ledger.TransactionEntries(ctx, "w1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, entries[0].TransactionID, entries[1].TransactionID)

	_, err = f.engine.Withdraw(ctx, WithdrawRequest{
		TransactionID: "w1", UserID: "erin", Currency: "BTC",
		Amount: d("0.05"), FeePercent: d("1.0"), Destination: "bc1qdest",
	})
	assert.ErrorIs(t, err, models.ErrDuplicateTransaction)
}

func TestWithdrawCannotSpendLockedFunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "erin", "USDT", "100")

	_, err := f.engine.Lock(ctx, "erin", "USDT", d("60"), "t1")
	require.NoError(t, err)

	_, err = f.engine.Withdraw(ctx, WithdrawRequest{
		TransactionID: "w2", UserID: "erin", Currency: "USDT",
		Amount: d("40"), FeePercent: d("1"), Destination: "0xabc",
	})
	assert.ErrorIs(t, err, models.ErrInsufficientBalance)

	b := f.balance(t, "erin", "USDT")
	assert.True(t, b.Total.Equal(d("100")))
	assert.True(t, b.Available.Equal(d("40")))
}

func TestDepositIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := DepositRequest{TransactionID: "0xhash", UserID: "u1", Currency: "ETH", Amount: d("3"), Source: "chain"}
	_, err := f.engine.Deposit(ctx, req)
	require.NoError(t, err)
	_, err = f.engine.Deposit(ctx, req)
	assert.ErrorIs(t, err, models.ErrDuplicateTransaction)

	assert.True(t, f.balance(t, "u1", "ETH").Total.Equal(d("3")))
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("broker down")
	f.fund(t, "alice", "BTC", "1")

	_, err := f.engine.Lock(context.Background(), "alice", "BTC", d("0.1"), "t1")
	assert.NoError(t, err)
}

func TestListBalances(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "alice", "USDT", "5")
	f.fund(t, "alice", "BTC", "1")

	list, err := f.engine.ListBalances(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "BTC", list[0].Currency)
	assert.Equal(t, "USDT", list[1].Currency)
}
