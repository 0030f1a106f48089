package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	interfaces "github.com/sheikh-saqib/custody-core/internal/interfaces"
	"github.com/sheikh-saqib/custody-core/internal/metrics"
	"github.com/sheikh-saqib/custody-core/internal/models"
	"github.com/sheikh-saqib/custody-core/internal/models/events"
)

// DefaultFeePoolID is the platform account that receives collected fees.
const DefaultFeePoolID = "platform"

// DefaultLiquidityID is the pool swaps trade against.
const DefaultLiquidityID = "main"

// Store is what the ledger needs from storage. Transactions are only used
// where an entry must be written together with its idempotency record.
type Store interface {
	interfaces.LedgerStore
	interfaces.TxRunner
}

// Ledger is the canonical recording API. Callers never build raw ledger rows;
// every entry goes through validation, currency normalisation and checksumming here.
type Ledger struct {
	store  Store                  // reads always go to the store
	writer interfaces.EntryWriter // the store itself, or a unit of work when bound with In
	inTx   bool

	publisher   interfaces.EventPublisher
	logger      *zap.Logger
	now         func() time.Time
	feePoolID   string
	liquidityID string
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock replaces time.Now as the source of entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithPublisher announces entries written outside a storage transaction.
// Entries written through In are announced by the caller after commit.
func WithPublisher(p interfaces.EventPublisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

// WithFeePool overrides DefaultFeePoolID.
func WithFeePool(id string) Option {
	return func(l *Ledger) { l.feePoolID = id }
}

// WithLiquidityPool overrides DefaultLiquidityID.
func WithLiquidityPool(id string) Option {
	return func(l *Ledger) { l.liquidityID = id }
}

// NewLedger creates a ledger backed by store.
func NewLedger(store Store, logger *zap.Logger, opts ...Option) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Ledger{
		store:       store,
		writer:      store,
		logger:      logger.Named("ledger"),
		now:         time.Now,
		feePoolID:   DefaultFeePoolID,
		liquidityID: DefaultLiquidityID,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// In returns a copy of the ledger whose writes go to w, typically the unit of
// work of a storage transaction that also mutates balances.
func (l *Ledger) In(w interfaces.EntryWriter) *Ledger {
	cp := *l
	cp.writer = w
	cp.inTx = true
	return &cp
}

// FeePool is the account fees are credited to.
func (l *Ledger) FeePool() models.Account {
	return models.FeePoolAccount(l.feePoolID)
}

// EntryParams is the input of RecordEntry.
type EntryParams struct {
	TransactionID string
	Type          models.EntryType
	From          models.Account
	To            models.Account
	Currency      string
	Amount        decimal.Decimal

	FromBalanceBefore decimal.Decimal
	FromBalanceAfter  decimal.Decimal
	ToBalanceBefore   decimal.Decimal
	ToBalanceAfter    decimal.Decimal

	IsRevenue     bool
	RevenueSource string
	Description   string
	Metadata      map[string]any
}

// NormalizeCurrency trims and uppercases a currency code.
func NormalizeCurrency(c string) string {
	return strings.ToUpper(strings.TrimSpace(c))
}

func validateAccount(field string, acc models.Account) error {
	if !acc.Type.Valid() {
		return models.Invalid(field, fmt.Sprintf("unknown account type %q", acc.Type))
	}
	if strings.TrimSpace(acc.ID) == "" {
		return models.Invalid(field, "account id is empty")
	}
	return nil
}

// build validates p and turns it into an entry ready to append.
func (l *Ledger) build(p EntryParams) (models.LedgerEntry, error) {
	currency := NormalizeCurrency(p.Currency)
	if currency == "" {
		return models.LedgerEntry{}, models.Invalid("currency", "must not be empty")
	}
	if p.Amount.IsNegative() {
		return models.LedgerEntry{}, models.Invalid("amount", "must not be negative")
	}
	if !p.Type.Valid() {
		return models.LedgerEntry{}, models.Invalid("entry_type", fmt.Sprintf("unknown entry type %q", p.Type))
	}
	if err := validateAccount("from", p.From); err != nil {
		return models.LedgerEntry{}, err
	}
	if err := validateAccount("to", p.To); err != nil {
		return models.LedgerEntry{}, err
	}

	txID := p.TransactionID
	if txID == "" {
		txID = uuid.NewString()
	}

	entry := models.LedgerEntry{
		ID:                uuid.NewString(),
		TransactionID:     txID,
		Type:              p.Type,
		From:              p.From,
		To:                p.To,
		Currency:          currency,
		Amount:            p.Amount,
		FromBalanceBefore: p.FromBalanceBefore,
		FromBalanceAfter:  p.FromBalanceAfter,
		ToBalanceBefore:   p.ToBalanceBefore,
		ToBalanceAfter:    p.ToBalanceAfter,
		IsRevenue:         p.IsRevenue,
		RevenueSource:     p.RevenueSource,
		Description:       p.Description,
		Metadata:          p.Metadata,
		CreatedAt:         l.now().UTC(),
	}
	entry.Checksum = entry.ComputeChecksum()
	return entry, nil
}

// write appends entries in one call so that entries sharing a transaction
// are stored together or not at all.
func (l *Ledger) write(ctx context.Context, entries ...models.LedgerEntry) error {
	if err := l.writer.AppendEntries(ctx, entries...); err != nil {
		l.logger.Error("ledger append failed",
			zap.String("transaction_id", entries[0].TransactionID),
			zap.String("entry_type", string(entries[0].Type)),
			zap.Int("entries", len(entries)),
			zap.Error(err))
		return fmt.Errorf("append %s entries: %w", entries[0].Type, err)
	}

	for _, e := range entries {
		if !l.inTx {
			metrics.LedgerEntriesRecorded.WithLabelValues(string(e.Type)).Inc()
		}
		l.logger.Info("ledger entry recorded",
			zap.String("entry_id", e.ID),
			zap.String("transaction_id", e.TransactionID),
			zap.String("entry_type", string(e.Type)),
			zap.String("from", e.From.String()),
			zap.String("to", e.To.String()),
			zap.String("currency", e.Currency),
			zap.String("amount", e.Amount.String()),
			zap.Bool("in_tx", l.inTx))
	}
	if !l.inTx {
		l.announce(ctx, entries)
	}
	return nil
}

func (l *Ledger) announce(ctx context.Context, entries []models.LedgerEntry) {
	if l.publisher == nil {
		return
	}
	for _, e := range entries {
		err := l.publisher.Publish(ctx, events.TopicLedgerEntries, e.TransactionID, events.EntryRecorded{
			EntryID:       e.ID,
			TransactionID: e.TransactionID,
			EntryType:     string(e.Type),
			Currency:      e.Currency,
			Amount:        e.Amount,
			OccurredAt:    e.CreatedAt,
		})
		if err != nil {
			l.logger.Warn("failed to publish ledger entry", zap.String("entry_id", e.ID), zap.Error(err))
		}
	}
}

// RecordEntry validates and appends one entry, returning its id.
func (l *Ledger) RecordEntry(ctx context.Context, p EntryParams) (string, error) {
	entry, err := l.build(p)
	if err != nil {
		return "", err
	}
	if err := l.write(ctx, entry); err != nil {
		return "", err
	}
	return entry.ID, nil
}

// recordAll builds every param set first so a validation failure writes nothing.
func (l *Ledger) recordAll(ctx context.Context, params ...EntryParams) ([]models.LedgerEntry, error) {
	entries := make([]models.LedgerEntry, 0, len(params))
	for _, p := range params {
		e, err := l.build(p)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := l.write(ctx, entries...); err != nil {
		return nil, err
	}
	return entries, nil
}

// sharedTx makes sure grouped params carry one transaction id.
func sharedTx(txID string) string {
	if txID == "" {
		return uuid.NewString()
	}
	return txID
}
