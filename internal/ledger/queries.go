package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	interfaces "github.com/sheikh-saqib/custody-core/internal/interfaces"
	"github.com/sheikh-saqib/custody-core/internal/metrics"
	"github.com/sheikh-saqib/custody-core/internal/models"
)

const (
	DefaultQueryLimit = 100
	MaxQueryLimit     = 1000
)

// reversesKey is the metadata field linking a reversal to its original.
const reversesKey = "reverses_entry_id"

// Query narrows UserLedger and RevenueLedger. Zero values mean no constraint.
type Query struct {
	Currency      string
	RevenueSource string
	From          time.Time
	To            time.Time
	Limit         int
}

func (q Query) limit() int {
	switch {
	case q.Limit <= 0:
		return DefaultQueryLimit
	case q.Limit > MaxQueryLimit:
		return MaxQueryLimit
	}
	return q.Limit
}

// UserLedger returns entries touching the user's own account or escrow
// sub-account, newest first.
func (l *Ledger) UserLedger(ctx context.Context, userID string, q Query) ([]models.LedgerEntry, error) {
	if userID == "" {
		return nil, models.Invalid("user_id", "must not be empty")
	}
	entries, err := l.store.QueryEntries(ctx, interfaces.EntryFilter{
		Accounts: []models.Account{models.UserAccount(userID), models.EscrowAccount(userID)},
		Currency: NormalizeCurrency(q.Currency),
		From:     q.From,
		To:       q.To,
		Limit:    q.limit(),
	})
	if err != nil {
		return nil, fmt.Errorf("query user ledger: %w", err)
	}
	return entries, nil
}

// RevenueLedger returns revenue-tagged entries, newest first.
func (l *Ledger) RevenueLedger(ctx context.Context, q Query) ([]models.LedgerEntry, error) {
	entries, err := l.store.QueryEntries(ctx, interfaces.EntryFilter{
		RevenueOnly:   true,
		RevenueSource: q.RevenueSource,
		Currency:      NormalizeCurrency(q.Currency),
		From:          q.From,
		To:            q.To,
		Limit:         q.limit(),
	})
	if err != nil {
		return nil, fmt.Errorf("query revenue ledger: %w", err)
	}
	return entries, nil
}

// TransactionEntries returns every entry sharing txID.
func (l *Ledger) TransactionEntries(ctx context.Context, txID string) ([]models.LedgerEntry, error) {
	entries, err := l.store.QueryEntries(ctx, interfaces.EntryFilter{TransactionID: txID})
	if err != nil {
		return nil, fmt.Errorf("query transaction %s: %w", txID, err)
	}
	return entries, nil
}

// VerifyEntry reports whether the stored checksum still matches the entry.
func VerifyEntry(e models.LedgerEntry) bool {
	return e.Checksum == e.ComputeChecksum()
}

// VerifyTransaction returns the entries of txID whose checksum does not match.
func (l *Ledger) VerifyTransaction(ctx context.Context, txID string) ([]models.LedgerEntry, error) {
	entries, err := l.TransactionEntries(ctx, txID)
	if err != nil {
		return nil, err
	}
	var tampered []models.LedgerEntry
	for _, e := range entries {
		if !VerifyEntry(e) {
			l.logger.Warn("ledger checksum mismatch",
				zap.String("entry_id", e.ID),
				zap.String("transaction_id", e.TransactionID))
			tampered = append(tampered, e)
		}
	}
	return tampered, nil
}

// ReverseEntry corrects a recorded entry by appending an offsetting
// ADMIN_ADJUSTMENT with from and to swapped. The original is left untouched.
// An entry can be reversed once; the reversal key is stored in the same
// transaction as the offsetting entry. Reversals themselves cannot be reversed.
func (l *Ledger) ReverseEntry(ctx context.Context, entryID, reason string) (string, error) {
	if reason == "" {
		return "", models.Invalid("reason", "must not be empty")
	}
	orig, err := l.store.GetEntry(ctx, entryID)
	if err != nil {
		return "", fmt.Errorf("load entry to reverse: %w", err)
	}
	if _, ok := orig.Metadata[reversesKey]; ok && orig.Type == models.EntryAdminAdjustment {
		return "", models.Invalid("entry_id", "entry is itself a reversal")
	}

	entry, err := l.build(EntryParams{
		TransactionID: orig.TransactionID,
		Type:          models.EntryAdminAdjustment,
		From:          orig.To,
		To:            orig.From,
		Currency:      orig.Currency,
		Amount:        orig.Amount,
		Description:   "reversal: " + reason,
		Metadata: map[string]any{
			reversesKey:     orig.ID,
			"reversed_type": string(orig.Type),
		},
	})
	if err != nil {
		return "", err
	}

	err = l.store.RunInTx(ctx, func(uow interfaces.UnitOfWork) error {
		if err := uow.SaveTransaction(ctx, models.Transaction{
			ID:             uuid.NewString(),
			IdempotencyKey: models.IdempotencyKey("reversal", orig.ID),
			Kind:           "reversal",
			Reference:      orig.ID,
			CreatedAt:      entry.CreatedAt,
		}); err != nil {
			return err
		}
		return l.In(uow).write(ctx, entry)
	})
	if err != nil {
		l.logger.Warn("reversal rejected", zap.String("entry_id", orig.ID), zap.Error(err))
		return "", fmt.Errorf("reverse entry %s: %w", orig.ID, err)
	}

	metrics.LedgerEntriesRecorded.WithLabelValues(string(entry.Type)).Inc()
	l.announce(ctx, []models.LedgerEntry{entry})
	return entry.ID, nil
}
