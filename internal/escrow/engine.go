package escrow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	interfaces "github.com/sheikh-saqib/custody-core/internal/interfaces"
	"github.com/sheikh-saqib/custody-core/internal/ledger"
	"github.com/sheikh-saqib/custody-core/internal/metrics"
	"github.com/sheikh-saqib/custody-core/internal/models"
	"github.com/sheikh-saqib/custody-core/internal/models/events"
)

// DefaultTimeout bounds one balance operation including its storage transaction.
const DefaultTimeout = 5 * time.Second

// Store is what the engine needs from storage.
type Store interface {
	interfaces.BalanceStore
	interfaces.EscrowLockStore
	interfaces.TxRunner
}

// Engine moves funds between the available and locked parts of trader
// balances. Every mutation runs in one storage transaction together with its
// idempotency record and ledger entries.
type Engine struct {
	store     Store
	ledger    *ledger.Ledger
	publisher interfaces.EventPublisher
	logger    *zap.Logger
	timeout   time.Duration
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout overrides DefaultTimeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithPublisher announces committed operations. Without it nothing is published.
func WithPublisher(p interfaces.EventPublisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// WithClock replaces time.Now for idempotency records and events.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine that records its ledger entries through l.
func NewEngine(store Store, l *ledger.Ledger, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		store:   store,
		ledger:  l,
		logger:  logger.Named("escrow"),
		timeout: DefaultTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func required(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return models.Invalid(field, "must not be empty")
	}
	return nil
}

func positive(field string, v decimal.Decimal) error {
	if !v.IsPositive() {
		return models.Invalid(field, "must be greater than zero")
	}
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// run executes fn in a storage transaction guarded by an idempotency key and
// records latency and outcome.
func (e *Engine) run(ctx context.Context, op, key, reference string, fn func(ctx context.Context, uow interfaces.UnitOfWork, l *ledger.Ledger) error) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	err := e.store.RunInTx(ctx, func(uow interfaces.UnitOfWork) error {
		if err := uow.SaveTransaction(ctx, models.Transaction{
			ID:             uuid.NewString(),
			IdempotencyKey: models.IdempotencyKey(key, reference),
			Kind:           op,
			Reference:      reference,
			CreatedAt:      e.now().UTC(),
		}); err != nil {
			return err
		}
		return fn(ctx, uow, e.ledger.In(uow))
	})
	metrics.BalanceOpLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	metrics.EscrowOperations.WithLabelValues(op, outcome(err)).Inc()
	return err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, models.ErrBalanceConstraint):
		return "insufficient"
	case errors.Is(err, models.ErrDuplicateTransaction):
		return "duplicate"
	case errors.Is(err, models.ErrLockNotFound):
		return "no_lock"
	case errors.Is(err, models.ErrValidation):
		return "invalid"
	}
	return "error"
}

// translate maps a storage constraint failure to the domain error of op.
func translate(err, domain error) error {
	if errors.Is(err, models.ErrBalanceConstraint) {
		return fmt.Errorf("%w: %w", domain, err)
	}
	return err
}

func (e *Engine) publish(ctx context.Context, topic, key string, event any) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, topic, key, event); err != nil {
		e.logger.Warn("failed to publish event",
			zap.String("topic", topic),
			zap.String("key", key),
			zap.Error(err))
	}
}

// Lock moves amount from available to locked for tradeID.
func (e *Engine) Lock(ctx context.Context, traderID, currency string, amount decimal.Decimal, tradeID string) (models.TraderBalance, error) {
	currency = ledger.NormalizeCurrency(currency)
	if err := firstErr(
		models.ValidateTraderID("trader_id", traderID),
		required("currency", currency),
		required("trade_id", tradeID),
		positive("amount", amount),
	); err != nil {
		return models.TraderBalance{}, err
	}

	var change models.BalanceChange
	err := e.run(ctx, "lock", "p2p_lock", tradeID, func(ctx context.Context, uow interfaces.UnitOfWork, l *ledger.Ledger) error {
		var err error
		change, err = uow.AdjustBalance(ctx, traderID, currency, models.BalanceDelta{Locked: amount})
		if err != nil {
			return err
		}
		now := e.now().UTC()
		if err = uow.CreateEscrowLock(ctx, models.EscrowLock{
			TradeID:   tradeID,
			TraderID:  traderID,
			Currency:  currency,
			Amount:    amount,
			Remaining: amount,
			Status:    models.LockOpen,
			CreatedAt: now,
			UpdatedAt: now,
		}); err != nil {
			return err
		}
		_, err = l.RecordEscrowLock(ctx, ledger.EscrowMovement{
			TradeID: tradeID, TraderID: traderID, Currency: currency, Amount: amount, Change: change,
		})
		return err
	})
	if err != nil {
		e.logger.Warn("escrow lock rejected",
			zap.String("trade_id", tradeID),
			zap.String("trader_id", traderID),
			zap.String("currency", currency),
			zap.String("amount", amount.String()),
			zap.Error(err))
		return models.TraderBalance{}, translate(err, models.ErrInsufficientBalance)
	}

	e.logger.Info("funds locked",
		zap.String("trade_id", tradeID),
		zap.String("trader_id", traderID),
		zap.String("currency", currency),
		zap.String("amount", amount.String()),
		zap.String("available", change.After.Available.String()))
	e.publish(ctx, events.TopicEscrow, tradeID, events.FundsLocked{
		TradeID: tradeID, TraderID: traderID, Currency: currency, Amount: amount, OccurredAt: e.now().UTC(),
	})
	return change.After, nil
}

// Unlock returns amount from locked to available when a trade is cancelled.
// Only funds still held by the trade's open lock can be returned, and only
// to the trader who locked them.
func (e *Engine) Unlock(ctx context.Context, traderID, currency string, amount decimal.Decimal, tradeID string) (models.TraderBalance, error) {
	currency = ledger.NormalizeCurrency(currency)
	if err := firstErr(
		models.ValidateTraderID("trader_id", traderID),
		required("currency", currency),
		required("trade_id", tradeID),
		positive("amount", amount),
	); err != nil {
		return models.TraderBalance{}, err
	}

	var change models.BalanceChange
	err := e.run(ctx, "unlock", "p2p_unlock", tradeID, func(ctx context.Context, uow interfaces.UnitOfWork, l *ledger.Ledger) error {
		if _, err := uow.SettleEscrowLock(ctx, tradeID, traderID, currency, amount, models.LockCancelled); err != nil {
			return err
		}
		var err error
		change, err = uow.AdjustBalance(ctx, traderID, currency, models.BalanceDelta{Locked: amount.Neg()})
		if err != nil {
			return err
		}
		_, err = l.RecordEscrowUnlock(ctx, ledger.EscrowMovement{
			TradeID: tradeID, TraderID: traderID, Currency: currency, Amount: amount, Change: change,
		})
		return err
	})
	if err != nil {
		e.logger.Warn("escrow unlock rejected",
			zap.String("trade_id", tradeID),
			zap.String("trader_id", traderID),
			zap.Error(err))
		return models.TraderBalance{}, translate(err, models.ErrInvalidUnlock)
	}

	e.logger.Info("funds unlocked",
		zap.String("trade_id", tradeID),
		zap.String("trader_id", traderID),
		zap.String("currency", currency),
		zap.String("amount", amount.String()))
	e.publish(ctx, events.TopicEscrow, tradeID, events.FundsUnlocked{
		TradeID: tradeID, TraderID: traderID, Currency: currency, Amount: amount, OccurredAt: e.now().UTC(),
	})
	return change.After, nil
}

// ReleaseRequest settles GrossAmount of the seller's lock for TradeID.
// FeePercent is in percent, so 1 means 1%.
type ReleaseRequest struct {
	TradeID     string
	SellerID    string
	BuyerID     string
	Currency    string
	GrossAmount decimal.Decimal
	FeePercent  decimal.Decimal
}

// ReleaseResult is the split of a release and the balances after it.
type ReleaseResult struct {
	TradeID  string                `json:"trade_id"`
	Currency string                `json:"currency"`
	Gross    decimal.Decimal       `json:"gross_amount"`
	Net      decimal.Decimal       `json:"net_amount"`
	Fee      decimal.Decimal       `json:"fee_amount"`
	Seller   models.TraderBalance  `json:"seller_balance"`
	Buyer    models.TraderBalance  `json:"buyer_balance"`
	Entries  ledger.ReleaseEntries `json:"-"`
}

// Release settles a completed trade: the seller's locked funds leave their
// balance, the buyer receives the net amount and the fee pool the fee. The
// trade must hold an open lock of the seller covering the gross amount.
func (e *Engine) Release(ctx context.Context, req ReleaseRequest) (ReleaseResult, error) {
	req.Currency = ledger.NormalizeCurrency(req.Currency)
	if err := firstErr(
		required("trade_id", req.TradeID),
		models.ValidateTraderID("seller_id", req.SellerID),
		models.ValidateTraderID("buyer_id", req.BuyerID),
		required("currency", req.Currency),
		positive("gross_amount", req.GrossAmount),
		validateFeePercent(req.FeePercent),
	); err != nil {
		return ReleaseResult{}, err
	}
	if req.SellerID == req.BuyerID {
		return ReleaseResult{}, models.Invalid("buyer_id", "must differ from seller_id")
	}

	fee, net := CalculateFee(req.GrossAmount, req.FeePercent, req.Currency)
	feePool := models.BalanceOwner(e.ledger.FeePool())
	res := ReleaseResult{TradeID: req.TradeID, Currency: req.Currency, Gross: req.GrossAmount, Net: net, Fee: fee}

	err := e.run(ctx, "release", "p2p_release", req.TradeID, func(ctx context.Context, uow interfaces.UnitOfWork, l *ledger.Ledger) error {
		if _, err := uow.SettleEscrowLock(ctx, req.TradeID, req.SellerID, req.Currency, req.GrossAmount, models.LockReleased); err != nil {
			return err
		}
		seller, err := uow.AdjustBalance(ctx, req.SellerID, req.Currency, models.BalanceDelta{
			Total:  req.GrossAmount.Neg(),
			Locked: req.GrossAmount.Neg(),
		})
		if err != nil {
			return err
		}
		buyer, err := uow.AdjustBalance(ctx, req.BuyerID, req.Currency, models.BalanceDelta{Total: net})
		if err != nil {
			return err
		}
		var pool models.BalanceChange
		if fee.IsPositive() {
			if pool, err = uow.AdjustBalance(ctx, feePool, req.Currency, models.BalanceDelta{Total: fee}); err != nil {
				return err
			}
		}

		res.Seller, res.Buyer = seller.After, buyer.After
		res.Entries, err = l.RecordEscrowRelease(ctx, ledger.EscrowRelease{
			TradeID:    req.TradeID,
			SellerID:   req.SellerID,
			BuyerID:    req.BuyerID,
			Currency:   req.Currency,
			Gross:      req.GrossAmount,
			Net:        net,
			Fee:        fee,
			FeePercent: req.FeePercent,
			Seller:     seller,
			Buyer:      buyer,
			FeePool:    pool,
		})
		return err
	})
	if err != nil {
		e.logger.Warn("escrow release rejected",
			zap.String("trade_id", req.TradeID),
			zap.String("seller_id", req.SellerID),
			zap.String("buyer_id", req.BuyerID),
			zap.Error(err))
		return ReleaseResult{}, translate(err, models.ErrInsufficientLocked)
	}

	e.logger.Info("escrow released",
		zap.String("trade_id", req.TradeID),
		zap.String("currency", req.Currency),
		zap.String("gross", req.GrossAmount.String()),
		zap.String("net", net.String()),
		zap.String("fee", fee.String()))
	e.publish(ctx, events.TopicEscrow, req.TradeID, events.EscrowReleased{
		TradeID:    req.TradeID,
		SellerID:   req.SellerID,
		BuyerID:    req.BuyerID,
		Currency:   req.Currency,
		Gross:      req.GrossAmount,
		Net:        net,
		Fee:        fee,
		OccurredAt: e.now().UTC(),
	})
	return res, nil
}

// DepositRequest is a confirmed external deposit.
type DepositRequest struct {
	TransactionID string // external reference, used for idempotency
	UserID        string
	Currency      string
	Amount        decimal.Decimal
	Source        string
}

// Deposit credits a confirmed external deposit to the user's total.
func (e *Engine) Deposit(ctx context.Context, req DepositRequest) (models.TraderBalance, error) {
	req.Currency = ledger.NormalizeCurrency(req.Currency)
	if err := firstErr(
		required("transaction_id", req.TransactionID),
		models.ValidateTraderID("user_id", req.UserID),
		required("currency", req.Currency),
		positive("amount", req.Amount),
	); err != nil {
		return models.TraderBalance{}, err
	}

	var change models.BalanceChange
	err := e.run(ctx, "deposit", "deposit", req.TransactionID, func(ctx context.Context, uow interfaces.UnitOfWork, l *ledger.Ledger) error {
		var err error
		change, err = uow.AdjustBalance(ctx, req.UserID, req.Currency, models.BalanceDelta{Total: req.Amount})
		if err != nil {
			return err
		}
		_, err = l.RecordDeposit(ctx, ledger.Deposit{
			UserID:        req.UserID,
			Currency:      req.Currency,
			Amount:        req.Amount,
			Source:        req.Source,
			BalanceBefore: change.Before.Total,
			BalanceAfter:  change.After.Total,
			TransactionID: req.TransactionID,
		})
		return err
	})
	if err != nil {
		e.logger.Warn("deposit rejected", zap.String("transaction_id", req.TransactionID), zap.Error(err))
		return models.TraderBalance{}, err
	}

	e.publish(ctx, events.TopicWallet, req.UserID, events.DepositConfirmed{
		TransactionID: req.TransactionID,
		UserID:        req.UserID,
		Currency:      req.Currency,
		Amount:        req.Amount,
		OccurredAt:    e.now().UTC(),
	})
	return change.After, nil
}

// WithdrawRequest pays Amount out to Destination. The fee is charged on top.
type WithdrawRequest struct {
	TransactionID string
	UserID        string
	Currency      string
	Amount        decimal.Decimal
	FeePercent    decimal.Decimal
	Destination   string
}

// WithdrawResult reports what left the user's balance.
type WithdrawResult struct {
	TransactionID string               `json:"transaction_id"`
	Amount        decimal.Decimal      `json:"amount"`
	Fee           decimal.Decimal      `json:"fee"`
	TotalDebited  decimal.Decimal      `json:"total_debited"`
	Balance       models.TraderBalance `json:"balance"`
}

// Withdraw debits amount plus the withdrawal fee from the user's available
// balance and credits the fee to the fee pool.
func (e *Engine) Withdraw(ctx context.Context, req WithdrawRequest) (WithdrawResult, error) {
	req.Currency = ledger.NormalizeCurrency(req.Currency)
	if err := firstErr(
		required("transaction_id", req.TransactionID),
		models.ValidateTraderID("user_id", req.UserID),
		required("currency", req.Currency),
		required("destination", req.Destination),
		positive("amount", req.Amount),
		validateFeePercent(req.FeePercent),
	); err != nil {
		return WithdrawResult{}, err
	}

	fee, _ := CalculateFee(req.Amount, req.FeePercent, req.Currency)
	debit := req.Amount.Add(fee)
	feePool := models.BalanceOwner(e.ledger.FeePool())
	res := WithdrawResult{TransactionID: req.TransactionID, Amount: req.Amount, Fee: fee, TotalDebited: debit}

	err := e.run(ctx, "withdraw", "withdrawal", req.TransactionID, func(ctx context.Context, uow interfaces.UnitOfWork, l *ledger.Ledger) error {
		user, err := uow.AdjustBalance(ctx, req.UserID, req.Currency, models.BalanceDelta{Total: debit.Neg()})
		if err != nil {
			return err
		}
		var pool models.BalanceChange
		if fee.IsPositive() {
			if pool, err = uow.AdjustBalance(ctx, feePool, req.Currency, models.BalanceDelta{Total: fee}); err != nil {
				return err
			}
		}
		res.Balance = user.After
		_, err = l.RecordWithdrawal(ctx, ledger.Withdrawal{
			UserID:        req.UserID,
			Currency:      req.Currency,
			Amount:        req.Amount,
			Fee:           fee,
			Destination:   req.Destination,
			BalanceBefore: user.Before.Total,
			BalanceAfter:  user.After.Total,
			FeePoolBefore: pool.Before.Total,
			FeePoolAfter:  pool.After.Total,
			TransactionID: req.TransactionID,
		})
		return err
	})
	if err != nil {
		e.logger.Warn("withdrawal rejected",
			zap.String("transaction_id", req.TransactionID),
			zap.String("user_id", req.UserID),
			zap.Error(err))
		return WithdrawResult{}, translate(err, models.ErrInsufficientBalance)
	}

	e.publish(ctx, events.TopicWallet, req.UserID, events.WithdrawalCompleted{
		TransactionID: req.TransactionID,
		UserID:        req.UserID,
		Currency:      req.Currency,
		Amount:        req.Amount,
		Fee:           fee,
		Destination:   req.Destination,
		OccurredAt:    e.now().UTC(),
	})
	return res, nil
}

// GetBalance returns the balance for the pair, creating a zero row on first access.
func (e *Engine) GetBalance(ctx context.Context, traderID, currency string) (models.TraderBalance, error) {
	currency = ledger.NormalizeCurrency(currency)
	if err := firstErr(models.ValidateTraderID("trader_id", traderID), required("currency", currency)); err != nil {
		return models.TraderBalance{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.store.GetBalance(ctx, traderID, currency)
}

// ListBalances returns every currency row of the trader, ordered by currency.
func (e *Engine) ListBalances(ctx context.Context, traderID string) ([]models.TraderBalance, error) {
	if err := models.ValidateTraderID("trader_id", traderID); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.store.ListBalances(ctx, traderID)
}

// FeePoolBalance returns the fee pool's row for currency. It is kept apart
// from trader rows, so no trader ID can reach it.
func (e *Engine) FeePoolBalance(ctx context.Context, currency string) (models.TraderBalance, error) {
	currency = ledger.NormalizeCurrency(currency)
	if err := required("currency", currency); err != nil {
		return models.TraderBalance{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.store.GetBalance(ctx, models.BalanceOwner(e.ledger.FeePool()), currency)
}

// GetLock returns the escrow record of tradeID.
func (e *Engine) GetLock(ctx context.Context, tradeID string) (models.EscrowLock, error) {
	if err := required("trade_id", tradeID); err != nil {
		return models.EscrowLock{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.store.GetEscrowLock(ctx, tradeID)
}
