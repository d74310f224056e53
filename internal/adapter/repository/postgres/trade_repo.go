package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bguntupallics/TradingSandbox/internal/domain"
)

// tradeRepository implements domain.TradeRepository
type tradeRepository struct {
	db *DB
}

// NewTradeRepository creates a new trade repository
func NewTradeRepository(db *DB) domain.TradeRepository {
	return &tradeRepository{db: db}
}

// ListByAccount returns all trades for an account ordered by execution time
// descending. The id tie-break preserves insertion order for trades
// committed in the same instant.
func (r *tradeRepository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*domain.Trade, error) {
	query := `
		SELECT id, account_id, symbol, side, quantity, price_per_share,
		       total_cost, executed_at, resulting_cash_balance
		FROM trades
		WHERE account_id = $1
		ORDER BY executed_at DESC, id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	defer rows.Close()

	var trades []*domain.Trade
	for rows.Next() {
		var t domain.Trade
		var side, qtyStr, priceStr, costStr, balanceStr string

		err := rows.Scan(
			&t.ID,
			&t.AccountID,
			&t.Symbol,
			&side,
			&qtyStr,
			&priceStr,
			&costStr,
			&t.ExecutedAt,
			&balanceStr,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}

		t.Side = domain.TradeSide(side)
		if t.Quantity, err = decimal.NewFromString(qtyStr); err != nil {
			return nil, fmt.Errorf("failed to parse quantity: %w", err)
		}
		if t.PricePerShare, err = decimal.NewFromString(priceStr); err != nil {
			return nil, fmt.Errorf("failed to parse price_per_share: %w", err)
		}
		if t.TotalCost, err = decimal.NewFromString(costStr); err != nil {
			return nil, fmt.Errorf("failed to parse total_cost: %w", err)
		}
		if t.ResultingCashBalance, err = decimal.NewFromString(balanceStr); err != nil {
			return nil, fmt.Errorf("failed to parse resulting_cash_balance: %w", err)
		}

		trades = append(trades, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trades: %w", err)
	}

	return trades, nil
}
