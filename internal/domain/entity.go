package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"paper_trade/pkg/fixed"
)

// StartingCashBalance is the simulated USD balance every account opens with.
var StartingCashBalance = decimal.RequireFromString("10000.00")

// DefaultQuote is assumed when a symbol names only the base asset (e.g. "BTC").
const DefaultQuote = "USD"

// Account holds a user's simulated cash balance.
// Created lazily on first access; mutated only by the execution engine.
type Account struct {
	UserID      string          `gorm:"primaryKey" json:"user_id"`
	CashBalance decimal.Decimal `gorm:"type:decimal(20,2)" json:"cash_balance"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TradingPair identifies a base/quote symbol combination (e.g. BTC/USD).
// CurrentRate is mutated only by the price refresh path.
type TradingPair struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Base        string          `gorm:"uniqueIndex:idx_pair_base_quote" json:"base"`
	Quote       string          `gorm:"uniqueIndex:idx_pair_base_quote" json:"quote"`
	CurrentRate decimal.Decimal `gorm:"type:decimal(20,8)" json:"current_rate"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Symbol returns the canonical "BASE/QUOTE" form.
func (p *TradingPair) Symbol() string {
	return p.Base + "/" + p.Quote
}

// ParseSymbol splits "BTC/USD" (or bare "BTC") into base and quote,
// upper-cased. A missing quote defaults to USD.
func ParseSymbol(symbol string) (base, quote string) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	base, quote, found := strings.Cut(symbol, "/")
	if !found || quote == "" {
		quote = DefaultQuote
	}
	return base, quote
}

// Holding is a user's quantity of a single base asset, keyed by (user, pair).
// Created lazily with zero quantity; mutated only by the execution engine.
type Holding struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	UserID    string          `gorm:"uniqueIndex:idx_holding_user_pair" json:"user_id"`
	PairID    uint            `gorm:"uniqueIndex:idx_holding_user_pair" json:"pair_id"`
	Quantity  decimal.Decimal `gorm:"type:decimal(20,8)" json:"quantity"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// MarketValue returns the holding's USD value at the given rate.
func (h *Holding) MarketValue(rate decimal.Decimal) decimal.Decimal {
	return fixed.Notional(h.Quantity, rate)
}

// PriceObservation is one immutable tick of the price feed.
// Append-only, ordered by Timestamp ascending.
type PriceObservation struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	PairID    uint            `gorm:"index:idx_obs_pair_time" json:"pair_id"`
	Price     decimal.Decimal `gorm:"type:decimal(20,8)" json:"price"`
	Timestamp time.Time       `gorm:"index:idx_obs_pair_time" json:"timestamp"`
}
