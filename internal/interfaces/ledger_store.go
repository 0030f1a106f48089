package interfaces

import (
	"context"
	"time"

	"github.com/sheikh-saqib/custody-core/internal/models"
)

// EntryWriter appends ledger entries. All entries passed in one call are
// written together or not at all.
type EntryWriter interface {
	AppendEntries(ctx context.Context, entries ...models.LedgerEntry) error
}

// EntryFilter narrows a ledger query. Zero values mean "no constraint".
// Results are always ordered newest first.
type EntryFilter struct {
	Accounts      []models.Account // entry matches if either side is one of these
	TransactionID string
	Types         []models.EntryType
	Currency      string
	RevenueOnly   bool
	RevenueSource string
	From          time.Time // inclusive
	To            time.Time // exclusive
	Limit         int
}

// LedgerStore is the append-only entry log and its read side.
type LedgerStore interface {
	EntryWriter
	GetEntry(ctx context.Context, entryID string) (models.LedgerEntry, error)
	QueryEntries(ctx context.Context, filter EntryFilter) ([]models.LedgerEntry, error)
	AggregateByType(ctx context.Context, start, end time.Time) ([]models.TypeTotal, error)
	AggregateRevenue(ctx context.Context, start, end time.Time) ([]models.SourceTotal, error)
}
