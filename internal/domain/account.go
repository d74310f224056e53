package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// moneyScale is the scale used for all ledger money amounts (cash balance,
// per-share prices, total costs, average cost). Two fraction digits are
// used only when formatting amounts in user-facing messages.
const moneyScale = 4

// DefaultStartingBalance is the cash balance granted to every new account.
var DefaultStartingBalance = decimal.NewFromInt(100000)

// Account represents a trading account in the domain layer.
// It exclusively owns its holdings and is the only writer of them.
// Invariant: CashBalance >= 0 after any committed operation.
type Account struct {
	ID          uuid.UUID
	Username    string
	CashBalance decimal.Decimal
	Holdings    map[string]*Holding // keyed by normalized symbol
}

// Holding represents a per-symbol position at weighted-average cost.
// A holding whose quantity reaches exactly zero is deleted, never persisted
// at zero.
type Holding struct {
	Symbol      string
	Quantity    decimal.Decimal // scale 2, always > 0
	AverageCost decimal.Decimal // scale 4, always > 0
}

// NewAccount creates an account with the default starting balance and no
// holdings.
func NewAccount(username string) *Account {
	return &Account{
		ID:          uuid.New(),
		Username:    username,
		CashBalance: DefaultStartingBalance,
		Holdings:    make(map[string]*Holding),
	}
}

// Validate ensures the account adheres to domain rules.
func (a *Account) Validate() error {
	if strings.TrimSpace(a.Username) == "" {
		return NewValidationError("username", "username cannot be empty")
	}
	if a.CashBalance.IsNegative() {
		return NewValidationError("cashBalance", "cash balance cannot be negative")
	}
	return nil
}

// NormalizeSymbol converts a raw ticker into its canonical form: trimmed
// and uppercased. Every lookup and mutation keyed by symbol goes through
// this first.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// ApplyBuy debits cash by quantity*price and upserts the holding for
// symbol, recomputing the weighted-average cost. The price is assumed to
// be already rounded to 4 fraction digits. Returns the resulting trade
// record. The account is unchanged when an error is returned.
func (a *Account) ApplyBuy(symbol string, quantity, price decimal.Decimal) (*Trade, error) {
	symbol = NormalizeSymbol(symbol)
	totalCost := price.Mul(quantity).Round(moneyScale)

	if a.CashBalance.LessThan(totalCost) {
		return nil, fmt.Errorf("required $%s, available $%s: %w",
			totalCost.StringFixed(2), a.CashBalance.StringFixed(2), ErrInsufficientFunds)
	}

	a.CashBalance = a.CashBalance.Sub(totalCost)

	if h, ok := a.Holdings[symbol]; ok {
		// Weighted average cost across the old position and the new lot.
		oldTotal := h.Quantity.Mul(h.AverageCost)
		newTotal := quantity.Mul(price)
		combinedQty := h.Quantity.Add(quantity)
		h.AverageCost = oldTotal.Add(newTotal).DivRound(combinedQty, moneyScale)
		h.Quantity = combinedQty
	} else {
		a.Holdings[symbol] = &Holding{
			Symbol:      symbol,
			Quantity:    quantity,
			AverageCost: price,
		}
	}

	return a.newTrade(symbol, TradeSideBuy, quantity, price, totalCost), nil
}

// ApplySell credits cash by quantity*price and reduces the holding for
// symbol, deleting it when the quantity reaches exactly zero. The average
// cost is never changed by a sell. The account is unchanged when an error
// is returned.
func (a *Account) ApplySell(symbol string, quantity, price decimal.Decimal) (*Trade, error) {
	symbol = NormalizeSymbol(symbol)

	h, ok := a.Holdings[symbol]
	if !ok {
		return nil, fmt.Errorf("%s: %w", symbol, ErrNoSuchHolding)
	}
	if h.Quantity.LessThan(quantity) {
		return nil, fmt.Errorf("own %s shares of %s: %w",
			h.Quantity.StringFixed(2), symbol, ErrInsufficientShares)
	}

	totalCost := price.Mul(quantity).Round(moneyScale)
	a.CashBalance = a.CashBalance.Add(totalCost)

	remaining := h.Quantity.Sub(quantity)
	if remaining.IsZero() {
		delete(a.Holdings, symbol)
	} else {
		h.Quantity = remaining
	}

	return a.newTrade(symbol, TradeSideSell, quantity, price, totalCost), nil
}

// newTrade builds the immutable trade record for a just-applied mutation,
// capturing the post-mutation cash balance.
func (a *Account) newTrade(symbol string, side TradeSide, quantity, price, totalCost decimal.Decimal) *Trade {
	return &Trade{
		AccountID:            a.ID,
		Symbol:               symbol,
		Side:                 side,
		Quantity:             quantity,
		PricePerShare:        price,
		TotalCost:            totalCost,
		ExecutedAt:           time.Now().UTC(),
		ResultingCashBalance: a.CashBalance,
	}
}
