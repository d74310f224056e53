package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bguntupallics/TradingSandbox/internal/domain"
)

// dailyPriceRepository implements domain.DailyPriceRepository
type dailyPriceRepository struct {
	db *DB
}

// NewDailyPriceRepository creates a new daily price repository
func NewDailyPriceRepository(db *DB) domain.DailyPriceRepository {
	return &dailyPriceRepository{db: db}
}

// Get retrieves the cached close for (symbol, date), or nil if the date
// has not been cached yet
func (r *dailyPriceRepository) Get(ctx context.Context, symbol string, date time.Time) (*domain.DailyPrice, error) {
	query := `
		SELECT symbol, date, closing_price
		FROM daily_prices
		WHERE symbol = $1 AND date = $2
	`

	price, err := r.scanPrice(r.db.QueryRowContext(ctx, query, symbol, dateArg(date)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return price, err
}

// GetRange returns cached closes with date in [start, end] ordered by date
// ascending
func (r *dailyPriceRepository) GetRange(ctx context.Context, symbol string, start, end time.Time) ([]*domain.DailyPrice, error) {
	query := `
		SELECT symbol, date, closing_price
		FROM daily_prices
		WHERE symbol = $1 AND date BETWEEN $2 AND $3
		ORDER BY date ASC
	`

	rows, err := r.db.QueryContext(ctx, query, symbol, dateArg(start), dateArg(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query price range: %w", err)
	}
	defer rows.Close()

	var prices []*domain.DailyPrice
	for rows.Next() {
		price, err := r.scanPrice(rows)
		if err != nil {
			return nil, err
		}
		prices = append(prices, price)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate prices: %w", err)
	}

	return prices, nil
}

// SaveAll persists new entries in one batch. Already-cached (symbol, date)
// keys are left untouched: historical closes are immutable, and concurrent
// write-through fetches of the same key must not conflict.
func (r *dailyPriceRepository) SaveAll(ctx context.Context, prices []*domain.DailyPrice) error {
	if len(prices) == 0 {
		return nil
	}

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	query := `
		INSERT INTO daily_prices (symbol, date, closing_price)
		VALUES ($1, $2, $3)
		ON CONFLICT (symbol, date) DO NOTHING
	`

	for _, p := range prices {
		_, err := dbTx.ExecContext(ctx, query,
			p.Symbol,
			dateArg(p.Date),
			p.ClosingPrice.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert daily price: %w", err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit daily prices: %w", err)
	}
	return nil
}

// dateArg renders a date for binding against the DATE column. lib/pq sends
// time.Time values as timestamps, which the server casts in the session
// TimeZone; a plain YYYY-MM-DD string always hits the intended calendar
// day regardless of session settings.
func dateArg(t time.Time) string {
	return domain.DateOf(t).Format("2006-01-02")
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *dailyPriceRepository) scanPrice(row rowScanner) (*domain.DailyPrice, error) {
	var price domain.DailyPrice
	var priceStr string

	if err := row.Scan(&price.Symbol, &price.Date, &priceStr); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan daily price: %w", err)
	}

	closing, err := decimal.NewFromString(priceStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse closing_price: %w", err)
	}
	price.ClosingPrice = closing

	// DATE columns come back at local midnight; normalize to the UTC
	// calendar-day form the rest of the system keys on.
	price.Date = domain.DateOf(price.Date)

	return &price, nil
}
