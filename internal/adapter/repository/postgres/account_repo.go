package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bguntupallics/TradingSandbox/internal/domain"
)

// accountRepository implements domain.AccountRepository
type accountRepository struct {
	db *DB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *DB) domain.AccountRepository {
	return &accountRepository{db: db}
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// GetByID retrieves an account with its holdings by ID
func (r *accountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `
		SELECT id, username, cash_balance
		FROM accounts
		WHERE id = $1
	`
	return r.scanAccount(ctx, r.db, query, id)
}

// GetByUsername retrieves an account with its holdings by username
func (r *accountRepository) GetByUsername(ctx context.Context, username string) (*domain.Account, error) {
	query := `
		SELECT id, username, cash_balance
		FROM accounts
		WHERE username = $1
	`
	return r.scanAccount(ctx, r.db, query, username)
}

// Create persists a new account
func (r *accountRepository) Create(ctx context.Context, acct *domain.Account) error {
	query := `
		INSERT INTO accounts (id, username, cash_balance)
		VALUES ($1, $2, $3)
	`

	_, err := r.db.ExecContext(ctx, query,
		acct.ID,
		acct.Username,
		acct.CashBalance.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// AdjustBalance atomically applies delta to the cash balance. The funds
// check and the write happen in one conditional UPDATE, so a concurrent
// adjustment or settlement can never be overwritten by a stale snapshot
// and the balance can never go negative.
func (r *accountRepository) AdjustBalance(ctx context.Context, id uuid.UUID, delta decimal.Decimal) (*domain.Account, error) {
	query := `
		UPDATE accounts
		SET cash_balance = cash_balance + $2
		WHERE id = $1 AND cash_balance + $2 >= 0
	`

	res, err := r.db.ExecContext(ctx, query, id, delta.String())
	if err != nil {
		return nil, fmt.Errorf("failed to adjust balance: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Either the account is missing or the delta would overdraw it.
		if _, err := r.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, domain.ErrInsufficientFunds
	}

	return r.GetByID(ctx, id)
}

// Settle loads the account under an exclusive row lock, applies fn, and
// atomically persists the mutated balance, the affected holding, and the
// resulting trade record. A rejection by fn rolls everything back, leaving
// the account byte-for-byte unchanged.
func (r *accountRepository) Settle(ctx context.Context, id uuid.UUID, fn domain.SettleFunc) (*domain.Trade, error) {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	// The row lock serializes concurrent settlements on this account;
	// other accounts are untouched and proceed in parallel.
	lockQuery := `
		SELECT id, username, cash_balance
		FROM accounts
		WHERE id = $1
		FOR UPDATE
	`
	acct, err := r.scanAccount(ctx, dbTx, lockQuery, id)
	if err != nil {
		return nil, err
	}

	hadHolding := make(map[string]bool, len(acct.Holdings))
	for sym := range acct.Holdings {
		hadHolding[sym] = true
	}

	trade, err := fn(acct)
	if err != nil {
		return nil, err
	}

	updateQuery := `
		UPDATE accounts
		SET cash_balance = $2
		WHERE id = $1
	`
	if _, err := dbTx.ExecContext(ctx, updateQuery, acct.ID, acct.CashBalance.String()); err != nil {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}

	if h, ok := acct.Holdings[trade.Symbol]; ok {
		upsertQuery := `
			INSERT INTO holdings (account_id, symbol, quantity, average_cost)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (account_id, symbol)
			DO UPDATE SET quantity = EXCLUDED.quantity, average_cost = EXCLUDED.average_cost
		`
		_, err = dbTx.ExecContext(ctx, upsertQuery,
			acct.ID, h.Symbol, h.Quantity.String(), h.AverageCost.String())
		if err != nil {
			return nil, fmt.Errorf("failed to upsert holding: %w", err)
		}
	} else if hadHolding[trade.Symbol] {
		// Quantity reached exactly zero: the holding is deleted, never
		// persisted at zero.
		deleteQuery := `DELETE FROM holdings WHERE account_id = $1 AND symbol = $2`
		if _, err := dbTx.ExecContext(ctx, deleteQuery, acct.ID, trade.Symbol); err != nil {
			return nil, fmt.Errorf("failed to delete holding: %w", err)
		}
	}

	insertTradeQuery := `
		INSERT INTO trades
			(account_id, symbol, side, quantity, price_per_share, total_cost,
			 executed_at, resulting_cash_balance)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err = dbTx.QueryRowContext(ctx, insertTradeQuery,
		trade.AccountID,
		trade.Symbol,
		string(trade.Side),
		trade.Quantity.String(),
		trade.PricePerShare.String(),
		trade.TotalCost.String(),
		trade.ExecutedAt,
		trade.ResultingCashBalance.String(),
	).Scan(&trade.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert trade: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit settlement: %w", err)
	}
	return trade, nil
}

// scanAccount loads one account row plus its holdings through q.
func (r *accountRepository) scanAccount(ctx context.Context, q querier, query string, arg interface{}) (*domain.Account, error) {
	var acct domain.Account
	var balanceStr string

	err := q.QueryRowContext(ctx, query, arg).Scan(
		&acct.ID,
		&acct.Username,
		&balanceStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse cash_balance: %w", err)
	}
	acct.CashBalance = balance

	holdings, err := r.loadHoldings(ctx, q, acct.ID)
	if err != nil {
		return nil, err
	}
	acct.Holdings = holdings

	return &acct, nil
}

// loadHoldings reads all holdings for an account through q.
func (r *accountRepository) loadHoldings(ctx context.Context, q querier, accountID uuid.UUID) (map[string]*domain.Holding, error) {
	query := `
		SELECT symbol, quantity, average_cost
		FROM holdings
		WHERE account_id = $1
	`

	rows, err := q.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load holdings: %w", err)
	}
	defer rows.Close()

	holdings := make(map[string]*domain.Holding)
	for rows.Next() {
		var h domain.Holding
		var qtyStr, costStr string

		if err := rows.Scan(&h.Symbol, &qtyStr, &costStr); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}

		if h.Quantity, err = decimal.NewFromString(qtyStr); err != nil {
			return nil, fmt.Errorf("failed to parse quantity: %w", err)
		}
		if h.AverageCost, err = decimal.NewFromString(costStr); err != nil {
			return nil, fmt.Errorf("failed to parse average_cost: %w", err)
		}

		holdings[h.Symbol] = &h
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate holdings: %w", err)
	}

	return holdings, nil
}
