package trading

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/bguntupallics/TradingSandbox/internal/domain"
)

// TradeInput represents the input for executing a market order
type TradeInput struct {
	Symbol   string
	Quantity decimal.Decimal
	Side     string
}

// TradeResult is returned to the caller after a committed trade.
type TradeResult struct {
	TradeID              int64
	Symbol               string
	Side                 domain.TradeSide
	Quantity             decimal.Decimal
	PricePerShare        decimal.Decimal
	TotalCost            decimal.Decimal
	ExecutedAt           time.Time
	RemainingCashBalance decimal.Decimal
}

// HoldingView is the valued form of a holding for the portfolio view.
type HoldingView struct {
	Symbol          string
	Quantity        decimal.Decimal
	AverageCost     decimal.Decimal
	CurrentPrice    decimal.Decimal
	MarketValue     decimal.Decimal
	CostBasis       decimal.Decimal
	GainLoss        decimal.Decimal
	GainLossPercent decimal.Decimal
}

// Portfolio aggregates cash and valued holdings for an account.
type Portfolio struct {
	CashBalance   decimal.Decimal
	HoldingsValue decimal.Decimal
	TotalValue    decimal.Decimal
	TotalGainLoss decimal.Decimal
	Holdings      []HoldingView
}

// TradingService is the settlement engine: it validates an order, prices
// it, and applies it to the account ledger atomically.
type TradingService struct {
	AccountRepo domain.AccountRepository
	TradeRepo   domain.TradeRepository
	MarketData  domain.MarketData

	log zerolog.Logger
}

// NewTradingService creates a new TradingService instance
func NewTradingService(accountRepo domain.AccountRepository, tradeRepo domain.TradeRepository, md domain.MarketData, log zerolog.Logger) *TradingService {
	return &TradingService{
		AccountRepo: accountRepo,
		TradeRepo:   tradeRepo,
		MarketData:  md,
		log:         log.With().Str("component", "trading").Logger(),
	}
}

// ExecuteTrade runs one immediate, fully-filled market order at the latest
// known price. Any rejection leaves the account unchanged.
//
// The quote is fetched before the account row lock is taken, so a slow
// provider can never hold the lock.
func (s *TradingService) ExecuteTrade(ctx context.Context, accountID uuid.UUID, input TradeInput) (*TradeResult, error) {
	// Validate input before touching the network or the ledger.
	symbol := domain.NormalizeSymbol(input.Symbol)
	if symbol == "" {
		return nil, domain.NewValidationError("symbol", "symbol is required")
	}
	if err := domain.ValidateQuantity(input.Quantity); err != nil {
		return nil, err
	}
	side, err := domain.ParseTradeSide(input.Side)
	if err != nil {
		return nil, err
	}

	// Market status is authoritative: unknown status means no trading.
	status, err := s.MarketData.MarketStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("market status unknown: %w", domain.ErrMarketClosed)
	}
	if !status.IsOpen {
		return nil, fmt.Errorf("trading is only available during market hours: %w", domain.ErrMarketClosed)
	}

	quote, ok := s.MarketData.LatestTrade(ctx, symbol)
	if !ok {
		return nil, fmt.Errorf("unable to fetch current price for %s: %w", symbol, domain.ErrQuoteUnavailable)
	}
	price := domain.RoundPrice(quote.Price)

	// Funds/shares are re-checked against fresh state inside the same
	// transaction that debits or credits, so concurrent orders on one
	// account cannot interleave.
	trade, err := s.AccountRepo.Settle(ctx, accountID, func(acct *domain.Account) (*domain.Trade, error) {
		if side == domain.TradeSideBuy {
			return acct.ApplyBuy(symbol, input.Quantity, price)
		}
		return acct.ApplySell(symbol, input.Quantity, price)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("account", accountID.String()).
		Str("symbol", symbol).
		Str("side", string(side)).
		Str("quantity", input.Quantity.String()).
		Str("price", price.String()).
		Msg("Trade committed")

	return &TradeResult{
		TradeID:              trade.ID,
		Symbol:               trade.Symbol,
		Side:                 trade.Side,
		Quantity:             trade.Quantity,
		PricePerShare:        trade.PricePerShare,
		TotalCost:            trade.TotalCost,
		ExecutedAt:           trade.ExecutedAt,
		RemainingCashBalance: trade.ResultingCashBalance,
	}, nil
}

// GetPortfolio values every holding at the latest quote, falling back to
// the holding's average cost when a quote is unavailable. One stale quote
// never fails the whole view.
func (s *TradingService) GetPortfolio(ctx context.Context, accountID uuid.UUID) (*Portfolio, error) {
	acct, err := s.AccountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	symbols := make([]string, 0, len(acct.Holdings))
	for sym := range acct.Holdings {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	portfolio := &Portfolio{
		CashBalance:   acct.CashBalance,
		HoldingsValue: decimal.Zero,
		TotalGainLoss: decimal.Zero,
		Holdings:      make([]HoldingView, 0, len(symbols)),
	}

	totalCostBasis := decimal.Zero
	for _, sym := range symbols {
		h := acct.Holdings[sym]

		currentPrice := h.AverageCost
		if quote, ok := s.MarketData.LatestTrade(ctx, sym); ok {
			currentPrice = domain.RoundPrice(quote.Price)
		}

		marketValue := h.Quantity.Mul(currentPrice).Round(4)
		costBasis := h.Quantity.Mul(h.AverageCost).Round(4)
		gainLoss := marketValue.Sub(costBasis)

		gainLossPercent := decimal.Zero
		if !costBasis.IsZero() {
			gainLossPercent = gainLoss.DivRound(costBasis, 4).Mul(decimal.NewFromInt(100))
		}

		portfolio.Holdings = append(portfolio.Holdings, HoldingView{
			Symbol:          sym,
			Quantity:        h.Quantity,
			AverageCost:     h.AverageCost,
			CurrentPrice:    currentPrice,
			MarketValue:     marketValue,
			CostBasis:       costBasis,
			GainLoss:        gainLoss,
			GainLossPercent: gainLossPercent,
		})

		portfolio.HoldingsValue = portfolio.HoldingsValue.Add(marketValue)
		totalCostBasis = totalCostBasis.Add(costBasis)
	}

	portfolio.TotalValue = acct.CashBalance.Add(portfolio.HoldingsValue)
	portfolio.TotalGainLoss = portfolio.HoldingsValue.Sub(totalCostBasis)
	return portfolio, nil
}

// GetTradeHistory returns the account's trades, most recent first.
func (s *TradingService) GetTradeHistory(ctx context.Context, accountID uuid.UUID) ([]*domain.Trade, error) {
	if _, err := s.AccountRepo.GetByID(ctx, accountID); err != nil {
		return nil, err
	}
	return s.TradeRepo.ListByAccount(ctx, accountID)
}
