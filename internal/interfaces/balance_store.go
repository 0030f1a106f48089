package interfaces

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/custody-core/internal/models"
)

// BalanceStore reads trader balance rows.
type BalanceStore interface {
	// GetBalance returns the balance row, creating a zeroed one on first access.
	GetBalance(ctx context.Context, traderID, currency string) (models.TraderBalance, error)
	ListBalances(ctx context.Context, traderID string) ([]models.TraderBalance, error)
}

// EscrowLockStore reads the per trade escrow records.
type EscrowLockStore interface {
	// GetEscrowLock returns models.ErrNotFound if tradeID was never locked.
	GetEscrowLock(ctx context.Context, tradeID string) (models.EscrowLock, error)
}

// UnitOfWork is the view of the store inside one storage transaction.
type UnitOfWork interface {
	EntryWriter

	// AdjustBalance applies delta as a single conditional update. It returns
	// models.ErrBalanceConstraint and changes nothing if the resulting row
	// would have a negative total, locked or available balance.
	AdjustBalance(ctx context.Context, traderID, currency string, delta models.BalanceDelta) (models.BalanceChange, error)

	// SaveTransaction records an idempotency key; a repeated key returns
	// models.ErrDuplicateTransaction.
	SaveTransaction(ctx context.Context, tx models.Transaction) error

	// CreateEscrowLock records an open lock. A second lock for the same
	// trade returns models.ErrDuplicateTransaction.
	CreateEscrowLock(ctx context.Context, lock models.EscrowLock) error

	// SettleEscrowLock takes amount off the open lock of tradeID held by
	// traderID in currency, closing it with closeAs once nothing remains.
	// It returns models.ErrLockNotFound when no such lock is open and
	// models.ErrBalanceConstraint when amount exceeds what remains.
	SettleEscrowLock(ctx context.Context, tradeID, traderID, currency string, amount decimal.Decimal, closeAs models.LockStatus) (models.EscrowLock, error)
}

// TxRunner runs fn inside one storage transaction. If fn returns an error
// nothing it did is visible to other readers.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(uow UnitOfWork) error) error
}
