package ledger

import (
	"paper_trade/internal/domain"
	"paper_trade/internal/infra/storage"
	"paper_trade/pkg/fixed"

	"github.com/shopspring/decimal"
)

// Ledger owns lazy account/holding creation and portfolio valuation.
// Balance and holding mutation is the execution engine's job; everything
// here either creates-once or reads committed state.
type Ledger struct {
	store *storage.Storage
}

// New creates a Ledger over the given storage
func New(store *storage.Storage) *Ledger {
	return &Ledger{store: store}
}

// GetOrCreateAccount returns the user's account, opening it with the
// starting balance on first access. Idempotent.
func (l *Ledger) GetOrCreateAccount(userID string) (*domain.Account, error) {
	return l.store.GetOrCreateAccount(userID)
}

// GetOrCreateHolding returns the (user, pair) holding, creating it with
// zero quantity on first access. Idempotent.
func (l *Ledger) GetOrCreateHolding(userID string, pairID uint) (*domain.Holding, error) {
	return l.store.GetOrCreateHolding(userID, pairID)
}

// Position is one valued holding inside a portfolio view.
type Position struct {
	Symbol      string          `json:"symbol"`
	Quantity    decimal.Decimal `json:"quantity"`
	Rate        decimal.Decimal `json:"rate"`
	MarketValue decimal.Decimal `json:"market_value"`
}

// Portfolio is a user's full ledger view at the latest committed rates.
type Portfolio struct {
	UserID         string          `json:"user_id"`
	CashBalance    decimal.Decimal `json:"cash_balance"`
	Positions      []Position      `json:"positions"`
	PortfolioValue decimal.Decimal `json:"portfolio_value"`
	TotalEquity    decimal.Decimal `json:"total_equity"`
}

// Portfolio values a user's holdings at each pair's current rate.
// It reads committed state without the execution lock, so a concurrent
// trade may make the view momentarily stale. That is acceptable for
// display; it is never used inside an execution.
func (l *Ledger) Portfolio(userID string) (*Portfolio, error) {
	acct, err := l.store.GetOrCreateAccount(userID)
	if err != nil {
		return nil, err
	}

	holdings, err := l.store.GetHoldings(userID)
	if err != nil {
		return nil, err
	}

	pairs, err := l.store.GetAllPairs()
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]domain.TradingPair, len(pairs))
	for _, p := range pairs {
		byID[p.ID] = p
	}

	view := &Portfolio{
		UserID:         userID,
		CashBalance:    acct.CashBalance,
		Positions:      make([]Position, 0, len(holdings)),
		PortfolioValue: decimal.Zero,
	}
	for _, h := range holdings {
		pair, ok := byID[h.PairID]
		if !ok {
			continue
		}
		value := h.MarketValue(pair.CurrentRate)
		view.Positions = append(view.Positions, Position{
			Symbol:      pair.Symbol(),
			Quantity:    h.Quantity,
			Rate:        pair.CurrentRate,
			MarketValue: value,
		})
		view.PortfolioValue = view.PortfolioValue.Add(value)
	}
	view.TotalEquity = fixed.Cash(view.CashBalance.Add(view.PortfolioValue))

	return view, nil
}

// RecentTrades returns up to limit of the user's trades, newest first
func (l *Ledger) RecentTrades(userID string, limit int) ([]domain.Trade, error) {
	if limit <= 0 {
		limit = 10
	}
	return l.store.GetTrades(userID, limit)
}
