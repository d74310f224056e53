package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TradeSide represents the direction of a trade.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "BUY"
	TradeSideSell TradeSide = "SELL"
)

// ParseTradeSide converts a raw string into a TradeSide.
func ParseTradeSide(s string) (TradeSide, error) {
	switch TradeSide(s) {
	case TradeSideBuy:
		return TradeSideBuy, nil
	case TradeSideSell:
		return TradeSideSell, nil
	default:
		return "", NewValidationError("side", "side must be BUY or SELL")
	}
}

// Trade is an immutable, append-only record of an executed order.
// Records are never mutated after creation; history queries return them
// ordered by execution time descending, ties broken by insertion order.
type Trade struct {
	ID                   int64
	AccountID            uuid.UUID
	Symbol               string
	Side                 TradeSide
	Quantity             decimal.Decimal
	PricePerShare        decimal.Decimal
	TotalCost            decimal.Decimal
	ExecutedAt           time.Time
	ResultingCashBalance decimal.Decimal
}

// ValidateQuantity checks that an order quantity is positive and carries at
// most two fraction digits.
func ValidateQuantity(quantity decimal.Decimal) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return NewValidationError("quantity", "quantity must be positive")
	}
	if !quantity.Equal(quantity.Round(2)) {
		return NewValidationError("quantity", "quantity allows up to 2 decimal places")
	}
	return nil
}
