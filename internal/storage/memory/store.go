package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	interfaces "github.com/sheikh-saqib/custody-core/internal/interfaces"
	"github.com/sheikh-saqib/custody-core/internal/models"
)

type balanceKey struct {
	traderID string
	currency string
}

// MemoryStore is an in-process implementation of every store the core needs.
// mu serializes all ledger, balance and report writers, which gives storage
// transactions the same all-or-nothing visibility the Postgres store gets
// from BEGIN/COMMIT. Risk state has its own lock so order validation never
// waits on an escrow transaction.
type MemoryStore struct {
	mu           sync.Mutex
	entries      []models.LedgerEntry
	entryIndex   map[string]int
	transactions map[string]models.Transaction
	balances     map[balanceKey]models.TraderBalance
	locks        map[string]models.EscrowLock

	reports []models.ReconciliationResult
	alerts  []models.Alert

	riskMu     sync.RWMutex
	globalRisk *models.GlobalRiskConfig
	botRisk    map[string]models.BotRiskConfig
	userKill   map[string]bool
	violations []models.RiskViolation

	now func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:      make([]models.LedgerEntry, 0),
		entryIndex:   make(map[string]int),
		transactions: make(map[string]models.Transaction),
		balances:     make(map[balanceKey]models.TraderBalance),
		locks:        make(map[string]models.EscrowLock),
		botRisk:      make(map[string]models.BotRiskConfig),
		userKill:     make(map[string]bool),
		now:          time.Now,
	}
}

// AppendEntries saves all entries or none of them.
func (m *MemoryStore) AppendEntries(ctx context.Context, entries ...models.LedgerEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkNewEntries(entries, nil); err != nil {
		return err
	}
	m.commitEntries(entries)
	return nil
}

func (m *MemoryStore) checkNewEntries(entries []models.LedgerEntry, staged []models.LedgerEntry) error {
	seen := make(map[string]struct{}, len(entries))
	for _, e := range staged {
		seen[e.ID] = struct{}{}
	}
	for _, e := range entries {
		if _, ok := m.entryIndex[e.ID]; ok {
			return fmt.Errorf("%w: ledger entry %s already exists", models.ErrDuplicateTransaction, e.ID)
		}
		if _, ok := seen[e.ID]; ok {
			return fmt.Errorf("%w: ledger entry %s repeated", models.ErrDuplicateTransaction, e.ID)
		}
		seen[e.ID] = struct{}{}
	}
	return nil
}

func (m *MemoryStore) commitEntries(entries []models.LedgerEntry) {
	for _, e := range entries {
		m.entryIndex[e.ID] = len(m.entries)
		m.entries = append(m.entries, cloneEntry(e))
	}
}

// GetEntry returns a copy of the stored entry.
func (m *MemoryStore) GetEntry(ctx context.Context, entryID string) (models.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.entryIndex[entryID]
	if !ok {
		return models.LedgerEntry{}, fmt.Errorf("ledger entry %s: %w", entryID, models.ErrNotFound)
	}
	return cloneEntry(m.entries[i]), nil
}

// QueryEntries returns matching entries newest first.
func (m *MemoryStore) QueryEntries(ctx context.Context, filter interfaces.EntryFilter) ([]models.LedgerEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var result []models.LedgerEntry
	// walk backwards so that equal timestamps keep newest-inserted first
	for i := len(m.entries) - 1; i >= 0; i-- {
		if matches(m.entries[i], filter) {
			result = append(result, cloneEntry(m.entries[i]))
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func matches(e models.LedgerEntry, f interfaces.EntryFilter) bool {
	if len(f.Accounts) > 0 {
		found := false
		for _, acc := range f.Accounts {
			if e.Involves(acc) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if e.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.TransactionID != "" && e.TransactionID != f.TransactionID {
		return false
	}
	if f.Currency != "" && e.Currency != f.Currency {
		return false
	}
	if f.RevenueOnly && !e.IsRevenue {
		return false
	}
	if f.RevenueSource != "" && e.RevenueSource != f.RevenueSource {
		return false
	}
	return inWindow(e.CreatedAt, f.From, f.To)
}

func inWindow(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}

// AggregateByType sums entry amounts per type and currency over [start, end).
func (m *MemoryStore) AggregateByType(ctx context.Context, start, end time.Time) ([]models.TypeTotal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	type key struct {
		t models.EntryType
		c string
	}
	sums := make(map[key]decimal.Decimal)
	var order []key
	for _, e := range m.entries {
		if !inWindow(e.CreatedAt, start, end) {
			continue
		}
		k := key{e.Type, e.Currency}
		if _, ok := sums[k]; !ok {
			order = append(order, k)
		}
		sums[k] = sums[k].Add(e.Amount)
	}

	totals := make([]models.TypeTotal, 0, len(order))
	for _, k := range order {
		totals = append(totals, models.TypeTotal{Type: k.t, Currency: k.c, Amount: sums[k]})
	}
	return totals, nil
}

func (m *MemoryStore) AggregateRevenue(ctx context.Context, start, end time.Time) ([]models.SourceTotal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	type key struct{ s, c string }
	sums := make(map[key]decimal.Decimal)
	var order []key
	for _, e := range m.entries {
		if !e.IsRevenue || !inWindow(e.CreatedAt, start, end) {
			continue
		}
		k := key{e.RevenueSource, e.Currency}
		if _, ok := sums[k]; !ok {
			order = append(order, k)
		}
		sums[k] = sums[k].Add(e.Amount)
	}

	totals := make([]models.SourceTotal, 0, len(order))
	for _, k := range order {
		totals = append(totals, models.SourceTotal{Source: k.s, Currency: k.c, Amount: sums[k]})
	}
	return totals, nil
}

func cloneEntry(e models.LedgerEntry) models.LedgerEntry {
	if e.Metadata != nil {
		md := make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			md[k] = v
		}
		e.Metadata = md
	}
	return e
}

// Compile-time check: ensure MemoryStore implements every store interface
var (
	_ interfaces.LedgerStore     = (*MemoryStore)(nil)
	_ interfaces.BalanceStore    = (*MemoryStore)(nil)
	_ interfaces.EscrowLockStore = (*MemoryStore)(nil)
	_ interfaces.TxRunner        = (*MemoryStore)(nil)
	_ interfaces.ReportStore     = (*MemoryStore)(nil)
	_ interfaces.RiskConfigStore = (*MemoryStore)(nil)
	_ interfaces.ViolationStore  = (*MemoryStore)(nil)
	_ interfaces.UnitOfWork      = (*memTx)(nil)
)
