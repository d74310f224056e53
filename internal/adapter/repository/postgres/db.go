package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// NewDB creates a new database connection
// connectionString should be in the format: "host=localhost port=5432 user=postgres password=postgres dbname=tradingsandbox sslmode=disable"
func NewDB(connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// Migrate creates the schema if it does not exist yet.
func (db *DB) Migrate(ctx context.Context) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id UUID PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			cash_balance NUMERIC(19,4) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS holdings (
			id BIGSERIAL PRIMARY KEY,
			account_id UUID NOT NULL REFERENCES accounts(id),
			symbol VARCHAR(10) NOT NULL,
			quantity NUMERIC(19,2) NOT NULL,
			average_cost NUMERIC(19,4) NOT NULL,
			UNIQUE (account_id, symbol)
		)`,
		`CREATE TABLE IF NOT EXISTS trades (
			id BIGSERIAL PRIMARY KEY,
			account_id UUID NOT NULL REFERENCES accounts(id),
			symbol VARCHAR(10) NOT NULL,
			side VARCHAR(4) NOT NULL,
			quantity NUMERIC(19,2) NOT NULL,
			price_per_share NUMERIC(19,4) NOT NULL,
			total_cost NUMERIC(19,4) NOT NULL,
			executed_at TIMESTAMPTZ NOT NULL,
			resulting_cash_balance NUMERIC(19,4) NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_account_executed
			ON trades (account_id, executed_at DESC)`,
		`CREATE TABLE IF NOT EXISTS daily_prices (
			symbol VARCHAR(10) NOT NULL,
			date DATE NOT NULL,
			closing_price NUMERIC(19,4) NOT NULL,
			PRIMARY KEY (symbol, date)
		)`,
	}

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
