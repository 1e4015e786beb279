package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseSymbol(t *testing.T) {
	cases := []struct {
		in    string
		base  string
		quote string
	}{
		{"BTC/USD", "BTC", "USD"},
		{"btc/usd", "BTC", "USD"},
		{"BTC", "BTC", "USD"},   // bare base defaults quote
		{" eth ", "ETH", "USD"}, // whitespace trimmed
		{"SOL/EUR", "SOL", "EUR"},
	}

	for _, c := range cases {
		base, quote := ParseSymbol(c.in)
		if base != c.base || quote != c.quote {
			t.Errorf("ParseSymbol(%q) = %s/%s, want %s/%s", c.in, base, quote, c.base, c.quote)
		}
	}
}

func TestParseSide(t *testing.T) {
	if side, err := ParseSide("buy"); err != nil || side != SideBuy {
		t.Errorf("ParseSide(buy) = %q, %v", side, err)
	}
	if side, err := ParseSide(" SELL "); err != nil || side != SideSell {
		t.Errorf("ParseSide(SELL) = %q, %v", side, err)
	}
	if _, err := ParseSide("HOLD"); err != ErrInvalidSide {
		t.Errorf("ParseSide(HOLD) err = %v, want ErrInvalidSide", err)
	}
}

func TestHoldingMarketValue(t *testing.T) {
	h := Holding{Quantity: decimal.RequireFromString("0.5")}
	rate := decimal.RequireFromString("60000.00000000")

	got := h.MarketValue(rate)
	if !got.Equal(decimal.RequireFromString("30000.00")) {
		t.Errorf("MarketValue = %s, want 30000.00", got)
	}
}

func TestIsRejection(t *testing.T) {
	for _, err := range []error{ErrInvalidAmount, ErrInvalidSide, ErrInsufficientBalance, ErrInsufficientHoldings} {
		if !IsRejection(err) {
			t.Errorf("IsRejection(%v) = false", err)
		}
	}
	if IsRejection(ErrPairNotFound) {
		t.Error("ErrPairNotFound should not be a rejection")
	}
}
