package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// ParseSide normalizes a trade side string. Returns ErrInvalidSide for
// anything other than BUY or SELL.
func ParseSide(s string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case SideBuy:
		return SideBuy, nil
	case SideSell:
		return SideSell, nil
	default:
		return "", ErrInvalidSide
	}
}

// Trade is the immutable record of one successful execution.
// Quantity and Price carry 8 fraction digits, Notional carries 2.
type Trade struct {
	ID        string          `gorm:"primaryKey" json:"id"`
	UserID    string          `gorm:"index" json:"user_id"`
	PairID    uint            `json:"pair_id"`
	Symbol    string          `json:"symbol"`
	Side      string          `json:"side"`
	Quantity  decimal.Decimal `gorm:"type:decimal(20,8)" json:"quantity"`
	Price     decimal.Decimal `gorm:"type:decimal(20,8)" json:"price"`
	Notional  decimal.Decimal `gorm:"type:decimal(20,2)" json:"notional"`
	Timestamp time.Time       `gorm:"index" json:"timestamp"`
}
