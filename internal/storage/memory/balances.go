package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	interfaces "github.com/sheikh-saqib/custody-core/internal/interfaces"
	"github.com/sheikh-saqib/custody-core/internal/models"
)

// GetBalance returns the balance row, creating a zeroed one on first access.
func (m *MemoryStore) GetBalance(ctx context.Context, traderID, currency string) (models.TraderBalance, error) {
	if err := ctx.Err(); err != nil {
		return models.TraderBalance{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.balanceLocked(traderID, currency), nil
}

// balanceLocked returns the row for the pair, creating it lazily. m.mu must be held.
func (m *MemoryStore) balanceLocked(traderID, currency string) models.TraderBalance {
	k := balanceKey{traderID, currency}
	b, ok := m.balances[k]
	if !ok {
		b = models.NewTraderBalance(traderID, currency)
		b.UpdatedAt = m.now()
		m.balances[k] = b
	}
	return b
}

func (m *MemoryStore) ListBalances(ctx context.Context, traderID string) ([]models.TraderBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []models.TraderBalance
	for k, b := range m.balances {
		if k.traderID == traderID {
			result = append(result, b)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Currency < result[j].Currency })
	return result, nil
}

// RunInTx holds the store mutex for the whole of fn and only publishes the
// staged changes when fn succeeds.
func (m *MemoryStore) RunInTx(ctx context.Context, fn func(uow interfaces.UnitOfWork) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{
		store:        m,
		balances:     make(map[balanceKey]models.TraderBalance),
		transactions: make(map[string]models.Transaction),
		locks:        make(map[string]models.EscrowLock),
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for k, b := range tx.balances {
		m.balances[k] = b
	}
	for k, t := range tx.transactions {
		m.transactions[k] = t
	}
	for k, l := range tx.locks {
		m.locks[k] = l
	}
	m.commitEntries(tx.entries)
	return nil
}

type memTx struct {
	store        *MemoryStore
	balances     map[balanceKey]models.TraderBalance
	transactions map[string]models.Transaction
	locks        map[string]models.EscrowLock
	entries      []models.LedgerEntry
}

func (t *memTx) current(traderID, currency string) models.TraderBalance {
	k := balanceKey{traderID, currency}
	if b, ok := t.balances[k]; ok {
		return b
	}
	if b, ok := t.store.balances[k]; ok {
		return b
	}
	b := models.NewTraderBalance(traderID, currency)
	b.UpdatedAt = t.store.now()
	return b
}

// AdjustBalance stages the change; nothing is visible until RunInTx commits.
func (t *memTx) AdjustBalance(ctx context.Context, traderID, currency string, delta models.BalanceDelta) (models.BalanceChange, error) {
	before := t.current(traderID, currency)
	after, ok := before.Apply(delta)
	if !ok {
		return models.BalanceChange{}, fmt.Errorf("%w: %s %s total=%s locked=%s delta_total=%s delta_locked=%s",
			models.ErrBalanceConstraint, traderID, currency,
			before.Total, before.Locked, delta.Total, delta.Locked)
	}
	after.UpdatedAt = t.store.now()
	t.balances[balanceKey{traderID, currency}] = after
	return models.BalanceChange{Before: before, After: after}, nil
}

// SaveTransaction checks committed and staged keys alike.
func (t *memTx) SaveTransaction(ctx context.Context, tx models.Transaction) error {
	if _, ok := t.store.transactions[tx.IdempotencyKey]; ok {
		return fmt.Errorf("%w: %s", models.ErrDuplicateTransaction, tx.IdempotencyKey)
	}
	if _, ok := t.transactions[tx.IdempotencyKey]; ok {
		return fmt.Errorf("%w: %s", models.ErrDuplicateTransaction, tx.IdempotencyKey)
	}
	t.transactions[tx.IdempotencyKey] = tx
	return nil
}

func (t *memTx) lock(tradeID string) (models.EscrowLock, bool) {
	if l, ok := t.locks[tradeID]; ok {
		return l, true
	}
	l, ok := t.store.locks[tradeID]
	return l, ok
}

func (t *memTx) CreateEscrowLock(ctx context.Context, lock models.EscrowLock) error {
	if _, exists := t.lock(lock.TradeID); exists {
		return fmt.Errorf("%w: escrow lock for trade %s", models.ErrDuplicateTransaction, lock.TradeID)
	}
	t.locks[lock.TradeID] = lock
	return nil
}

func (t *memTx) SettleEscrowLock(ctx context.Context, tradeID, traderID, currency string, amount decimal.Decimal, closeAs models.LockStatus) (models.EscrowLock, error) {
	l, ok := t.lock(tradeID)
	if !ok || !l.Holds(traderID, currency) {
		return models.EscrowLock{}, fmt.Errorf("%w: trade %s trader %s %s", models.ErrLockNotFound, tradeID, traderID, currency)
	}
	next, ok := l.Settle(amount, closeAs, t.store.now())
	if !ok {
		return models.EscrowLock{}, fmt.Errorf("%w: trade %s remaining=%s amount=%s",
			models.ErrBalanceConstraint, tradeID, l.Remaining, amount)
	}
	t.locks[tradeID] = next
	return next, nil
}

func (t *memTx) AppendEntries(ctx context.Context, entries ...models.LedgerEntry) error {
	if err := t.store.checkNewEntries(entries, t.entries); err != nil {
		return err
	}
	t.entries = append(t.entries, entries...)
	return nil
}

// GetEscrowLock returns the lock recorded for tradeID.
func (m *MemoryStore) GetEscrowLock(ctx context.Context, tradeID string) (models.EscrowLock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[tradeID]
	if !ok {
		return models.EscrowLock{}, fmt.Errorf("escrow lock %s: %w", tradeID, models.ErrNotFound)
	}
	return l, nil
}

// TransactionExists reports whether an idempotency key has been committed.
func (m *MemoryStore) TransactionExists(idempotencyKey string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, exists := m.transactions[idempotencyKey]
	return exists
}
