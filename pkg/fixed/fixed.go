package fixed

import "github.com/shopspring/decimal"

// Precision contract for all money math in the ledger:
// asset quantities and pair prices carry 8 fraction digits,
// cash (USD) values carry 2. Every rounding point truncates
// toward zero, never up.
const (
	QuantityPlaces = 8
	CashPlaces     = 2
)

// Quantity truncates d to the asset-quantity precision (8 fraction digits).
func Quantity(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(QuantityPlaces)
}

// Cash truncates d to the cash precision (2 fraction digits).
func Cash(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(CashPlaces)
}

// Notional computes qty * price as a cash value: the raw product is
// first truncated at quantity precision, then at cash precision.
func Notional(qty, price decimal.Decimal) decimal.Decimal {
	return Cash(Quantity(qty.Mul(price)))
}
