package execution

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"paper_trade/internal/domain"
	"paper_trade/internal/infra"
	"paper_trade/internal/infra/storage"
	"paper_trade/internal/ledger"
	"paper_trade/internal/service"
	"paper_trade/pkg/fixed"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Engine atomically validates and applies trades against a user's cash
// balance and holdings. It is the only component that mutates accounts
// and holdings.
//
// Concurrency contract: all executions for one user are serialized behind
// a per-user mutex (the cash balance is shared across that user's pairs);
// executions for different users run fully in parallel. Inside the lock,
// persistence is one all-or-nothing transaction, so no observer ever sees
// a half-applied trade.
type Engine struct {
	prices  *service.PriceStore
	ledger  *ledger.Ledger
	store   *storage.Storage
	metrics *infra.Metrics

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

// NewEngine creates an execution engine
func NewEngine(prices *service.PriceStore, book *ledger.Ledger, store *storage.Storage) *Engine {
	return &Engine{
		prices:    prices,
		ledger:    book,
		store:     store,
		metrics:   infra.GlobalMetrics,
		userLocks: make(map[string]*sync.Mutex),
	}
}

// lockUser returns the mutex serializing all of one user's executions
func (e *Engine) lockUser(userID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	lock, ok := e.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		e.userLocks[userID] = lock
	}
	return lock
}

// Execute validates and applies one trade, returning the immutable trade
// record. The requested amount is a base-asset quantity, truncated (never
// rounded) to 8 fraction digits before validation. The execution price is
// the pair's latest stored rate: a point-in-time read, never a refresh.
//
// Every returned error is an expected business rejection (see
// domain.IsRejection) or a storage failure; nothing is retried here.
func (e *Engine) Execute(ctx context.Context, userID, symbol, side string, amount decimal.Decimal) (*domain.Trade, error) {
	started := time.Now()

	side, err := domain.ParseSide(side)
	if err != nil {
		e.metrics.RecordTradeRejected()
		return nil, err
	}

	qty := fixed.Quantity(amount)
	if !qty.IsPositive() {
		e.metrics.RecordTradeRejected()
		return nil, domain.ErrInvalidAmount
	}

	base, quote := domain.ParseSymbol(symbol)
	canonical := base + "/" + quote
	pairID, price, err := e.prices.Resolve(canonical)
	if err != nil {
		e.metrics.RecordTradeRejected()
		return nil, err
	}

	notional := fixed.Notional(qty, price)

	// Critical section: account + holding mutation and the trade append
	// must be indivisible relative to this user's other executions.
	lock := e.lockUser(userID)
	lock.Lock()
	defer lock.Unlock()

	acct, err := e.ledger.GetOrCreateAccount(userID)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	holding, err := e.ledger.GetOrCreateHolding(userID, pairID)
	if err != nil {
		return nil, fmt.Errorf("load holding: %w", err)
	}

	switch side {
	case domain.SideBuy:
		if acct.CashBalance.LessThan(notional) {
			e.metrics.RecordTradeRejected()
			return nil, domain.ErrInsufficientBalance
		}
		acct.CashBalance = acct.CashBalance.Sub(notional)
		holding.Quantity = holding.Quantity.Add(qty)

	case domain.SideSell:
		if holding.Quantity.LessThan(qty) {
			e.metrics.RecordTradeRejected()
			return nil, domain.ErrInsufficientHoldings
		}
		holding.Quantity = holding.Quantity.Sub(qty)
		acct.CashBalance = acct.CashBalance.Add(notional)
	}

	trade := &domain.Trade{
		ID:        uuid.NewString(),
		UserID:    userID,
		PairID:    pairID,
		Symbol:    canonical,
		Side:      side,
		Quantity:  qty,
		Price:     price,
		Notional:  notional,
		Timestamp: time.Now().UTC(),
	}

	// Rolls back the balance and holding writes together on any failure,
	// leaving durable state exactly as it was.
	if err := e.store.ApplyTrade(acct, holding, trade); err != nil {
		return nil, fmt.Errorf("persist trade: %w", err)
	}

	e.metrics.RecordTradeExecuted(time.Since(started).Nanoseconds())
	slog.InfoContext(ctx, "trade executed",
		slog.String("user", userID),
		slog.String("symbol", canonical),
		slog.String("side", side),
		slog.String("qty", qty.String()),
		slog.String("price", price.String()),
		slog.String("notional", notional.String()),
	)

	return trade, nil
}
