package domain

import "errors"

var (
	// ErrPairNotFound is returned when a trading pair has no known price yet.
	ErrPairNotFound = errors.New("trading pair not found")

	// ErrInvalidAmount is returned when the requested amount is not positive
	// after truncation to 8 fraction digits.
	ErrInvalidAmount = errors.New("amount must be greater than zero")

	// ErrInvalidSide is returned when the side is neither BUY nor SELL.
	ErrInvalidSide = errors.New("side must be BUY or SELL")

	// ErrInsufficientBalance is returned when a BUY exceeds the cash balance.
	ErrInsufficientBalance = errors.New("insufficient balance to buy")

	// ErrInsufficientHoldings is returned when a SELL exceeds the holding.
	ErrInsufficientHoldings = errors.New("insufficient holdings to sell")
)

// IsRejection reports whether err is an expected business-rule rejection
// (caller input or funds problem) rather than an infrastructure failure.
// Rejections are safe to surface to the user and are never retried.
func IsRejection(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidSide) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInsufficientHoldings)
}
