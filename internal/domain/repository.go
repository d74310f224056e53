package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SettleFunc applies a trade mutation to a freshly loaded, row-locked
// account. Returning an error aborts the settlement and rolls back any
// pending change.
type SettleFunc func(acct *Account) (*Trade, error)

// AccountRepository defines the interface for account persistence operations
type AccountRepository interface {
	// GetByID retrieves an account with its holdings by ID
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)

	// GetByUsername retrieves an account with its holdings by username
	GetByUsername(ctx context.Context, username string) (*Account, error)

	// Create persists a new account
	Create(ctx context.Context, acct *Account) error

	// AdjustBalance atomically applies delta to the account's cash balance
	// and returns the refreshed account. The check-and-write is a single
	// conditional update, so concurrent adjustments and settlements can
	// never overwrite each other: an adjustment that would drive the
	// balance negative fails with ErrInsufficientFunds and changes nothing.
	AdjustBalance(ctx context.Context, id uuid.UUID, delta decimal.Decimal) (*Account, error)

	// Settle loads the account under an exclusive row lock, applies fn to
	// it, and atomically persists the mutated balance, the affected
	// holding, and the resulting trade record. Two concurrent settlements
	// against the same account are serialized; settlements against
	// different accounts proceed in parallel.
	Settle(ctx context.Context, id uuid.UUID, fn SettleFunc) (*Trade, error)
}

// TradeRepository defines the interface for trade history queries.
// Trade rows are inserted by AccountRepository.Settle inside the same
// transaction that mutates the account.
type TradeRepository interface {
	// ListByAccount returns all trades for an account ordered by execution
	// time descending, ties broken by insertion order
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*Trade, error)
}

// DailyPriceRepository defines the interface for the daily close cache
type DailyPriceRepository interface {
	// Get retrieves the cached close for (symbol, date), or nil if the
	// date has not been cached yet
	Get(ctx context.Context, symbol string, date time.Time) (*DailyPrice, error)

	// GetRange returns cached closes with date in [start, end] ordered by
	// date ascending
	GetRange(ctx context.Context, symbol string, start, end time.Time) ([]*DailyPrice, error)

	// SaveAll persists new entries; already-cached (symbol, date) keys are
	// left untouched
	SaveAll(ctx context.Context, prices []*DailyPrice) error
}

// TimeframeDaily is the bar timeframe used for daily close backfills.
const TimeframeDaily = "1Day"

// MarketData is the narrow query interface to the upstream market-data
// provider.
type MarketData interface {
	// GetBars returns bars for symbol at the given timeframe. The provider
	// treats both start and end as inclusive calendar dates, so a caller
	// wanting a single day passes that day as both bounds (or the next day
	// as end, which is a superset). A response omitting the symbol yields
	// zero bars, not an error.
	GetBars(ctx context.Context, symbol string, start, end time.Time, timeframe string) ([]Bar, error)

	// LatestTrade returns the most recent trade for symbol. Any transport
	// error, non-success status, or empty body is reported as ok == false,
	// never as a zero price.
	LatestTrade(ctx context.Context, symbol string) (quote *Quote, ok bool)

	// MarketStatus reports whether the market is open. Provider failure is
	// a hard error: callers must not assume an open or closed state when
	// the status is unknown.
	MarketStatus(ctx context.Context) (*MarketStatus, error)

	// SearchStocks returns up to limit suggestions matching query by
	// symbol or company name.
	SearchStocks(ctx context.Context, query string, limit int) ([]StockSuggestion, error)

	// ValidateSymbol checks whether symbol is known to the provider. An
	// unknown symbol is a non-error invalid result; only transport or
	// server failures surface as errors.
	ValidateSymbol(ctx context.Context, symbol string) (*StockValidation, error)
}

// RoundPrice normalizes a raw provider price to ledger precision:
// 4 fraction digits, half-up.
func RoundPrice(price decimal.Decimal) decimal.Decimal {
	return price.Round(4)
}
