package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyPrice is a cached closing price keyed by (symbol, date).
// Entries are immutable once written: a given symbol/date never changes
// price, so the cache never overwrites an existing entry.
type DailyPrice struct {
	Symbol       string
	Date         time.Time // calendar date, UTC midnight
	ClosingPrice decimal.Decimal
}

// DateOf truncates a timestamp to its UTC calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
