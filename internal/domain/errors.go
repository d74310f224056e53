package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for order rejections and lookup failures.
// All of them leave account state untouched: no partial debit or credit
// ever becomes visible to callers.
var (
	ErrMarketClosed         = errors.New("market is currently closed")
	ErrQuoteUnavailable     = errors.New("quote unavailable")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientShares   = errors.New("insufficient shares")
	ErrNoSuchHolding        = errors.New("no holding for symbol")
	ErrAccountNotFound      = errors.New("account not found")
	ErrPriceFeedUnavailable = errors.New("price feed unavailable")
)

// ValidationError indicates malformed input that the caller can correct
// and retry.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
