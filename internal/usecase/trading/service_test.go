package trading

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bguntupallics/TradingSandbox/internal/domain"
)

// fakeAccountRepo is an in-memory AccountRepository that applies settle
// callbacks directly, mimicking the row-locked transaction of the postgres
// adapter.
type fakeAccountRepo struct {
	acct        *domain.Account
	nextTradeID int64
}

func newFakeAccountRepo(acct *domain.Account) *fakeAccountRepo {
	return &fakeAccountRepo{acct: acct, nextTradeID: 1}
}

func (r *fakeAccountRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	if r.acct == nil || r.acct.ID != id {
		return nil, domain.ErrAccountNotFound
	}
	return r.acct, nil
}

func (r *fakeAccountRepo) GetByUsername(_ context.Context, username string) (*domain.Account, error) {
	if r.acct == nil || r.acct.Username != username {
		return nil, domain.ErrAccountNotFound
	}
	return r.acct, nil
}

func (r *fakeAccountRepo) Create(_ context.Context, _ *domain.Account) error { return nil }

func (r *fakeAccountRepo) AdjustBalance(_ context.Context, id uuid.UUID, delta decimal.Decimal) (*domain.Account, error) {
	if r.acct == nil || r.acct.ID != id {
		return nil, domain.ErrAccountNotFound
	}
	next := r.acct.CashBalance.Add(delta)
	if next.IsNegative() {
		return nil, domain.ErrInsufficientFunds
	}
	r.acct.CashBalance = next
	return r.acct, nil
}

func (r *fakeAccountRepo) Settle(_ context.Context, id uuid.UUID, fn domain.SettleFunc) (*domain.Trade, error) {
	if r.acct == nil || r.acct.ID != id {
		return nil, domain.ErrAccountNotFound
	}
	trade, err := fn(r.acct)
	if err != nil {
		return nil, err
	}
	trade.ID = r.nextTradeID
	r.nextTradeID++
	return trade, nil
}

// MockTradeRepository is a mock implementation of TradeRepository for testing
type MockTradeRepository struct {
	mock.Mock
}

func (m *MockTradeRepository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*domain.Trade, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Trade), args.Error(1)
}

// MockMarketData is a mock implementation of the market-data provider for testing
type MockMarketData struct {
	mock.Mock
}

func (m *MockMarketData) GetBars(ctx context.Context, symbol string, start, end time.Time, timeframe string) ([]domain.Bar, error) {
	args := m.Called(ctx, symbol, start, end, timeframe)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Bar), args.Error(1)
}

func (m *MockMarketData) LatestTrade(ctx context.Context, symbol string) (*domain.Quote, bool) {
	args := m.Called(ctx, symbol)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(*domain.Quote), args.Bool(1)
}

func (m *MockMarketData) MarketStatus(ctx context.Context) (*domain.MarketStatus, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MarketStatus), args.Error(1)
}

func (m *MockMarketData) SearchStocks(ctx context.Context, query string, limit int) ([]domain.StockSuggestion, error) {
	args := m.Called(ctx, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.StockSuggestion), args.Error(1)
}

func (m *MockMarketData) ValidateSymbol(ctx context.Context, symbol string) (*domain.StockValidation, error) {
	args := m.Called(ctx, symbol)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StockValidation), args.Error(1)
}

func openMarket() *domain.MarketStatus {
	return &domain.MarketStatus{IsOpen: true}
}

func quoteAt(price string) *domain.Quote {
	return &domain.Quote{Price: decimal.RequireFromString(price), Timestamp: time.Now()}
}

func newServiceWithAccount(cash string) (*TradingService, *domain.Account, *MockMarketData, *MockTradeRepository) {
	acct := domain.NewAccount("trader")
	acct.CashBalance = decimal.RequireFromString(cash)
	md := new(MockMarketData)
	tradeRepo := new(MockTradeRepository)
	svc := NewTradingService(newFakeAccountRepo(acct), tradeRepo, md, zerolog.Nop())
	return svc, acct, md, tradeRepo
}

func TestExecuteTrade_Buy(t *testing.T) {
	ctx := context.Background()
	svc, acct, md, _ := newServiceWithAccount("100000.0000")

	md.On("MarketStatus", ctx).Return(openMarket(), nil)
	md.On("LatestTrade", ctx, "AAPL").Return(quoteAt("150.0000"), true)

	result, err := svc.ExecuteTrade(ctx, acct.ID, TradeInput{
		Symbol:   "aapl",
		Quantity: decimal.NewFromInt(10),
		Side:     "BUY",
	})
	require.NoError(t, err)

	assert.Equal(t, "AAPL", result.Symbol)
	assert.Equal(t, domain.TradeSideBuy, result.Side)
	assert.True(t, result.TotalCost.Equal(decimal.RequireFromString("1500.0000")))
	assert.True(t, result.RemainingCashBalance.Equal(decimal.RequireFromString("98500.0000")))
	assert.NotZero(t, result.TradeID)

	assert.True(t, acct.CashBalance.Equal(decimal.RequireFromString("98500.0000")))
	require.Contains(t, acct.Holdings, "AAPL")
	assert.True(t, acct.Holdings["AAPL"].AverageCost.Equal(decimal.RequireFromString("150.0000")))
}

func TestExecuteTrade_PriceRoundedHalfUp(t *testing.T) {
	ctx := context.Background()
	svc, acct, md, _ := newServiceWithAccount("100000.0000")

	md.On("MarketStatus", ctx).Return(openMarket(), nil)
	md.On("LatestTrade", ctx, "AAPL").Return(quoteAt("150.12345"), true)

	result, err := svc.ExecuteTrade(ctx, acct.ID, TradeInput{
		Symbol:   "AAPL",
		Quantity: decimal.NewFromInt(1),
		Side:     "BUY",
	})
	require.NoError(t, err)
	assert.True(t, result.PricePerShare.Equal(decimal.RequireFromString("150.1235")))
}

func TestExecuteTrade_SellRemovesEmptiedHolding(t *testing.T) {
	ctx := context.Background()
	svc, acct, md, _ := newServiceWithAccount("97600.0000")
	acct.Holdings["AAPL"] = &domain.Holding{
		Symbol:      "AAPL",
		Quantity:    decimal.NewFromInt(15),
		AverageCost: decimal.RequireFromString("160.0000"),
	}

	md.On("MarketStatus", ctx).Return(openMarket(), nil)
	md.On("LatestTrade", ctx, "AAPL").Return(quoteAt("160.0000"), true)

	result, err := svc.ExecuteTrade(ctx, acct.ID, TradeInput{
		Symbol:   "AAPL",
		Quantity: decimal.NewFromInt(15),
		Side:     "SELL",
	})
	require.NoError(t, err)

	assert.True(t, result.RemainingCashBalance.Equal(decimal.RequireFromString("100000.0000")))
	assert.NotContains(t, acct.Holdings, "AAPL")
}

func TestExecuteTrade_MarketClosed(t *testing.T) {
	ctx := context.Background()
	svc, acct, md, _ := newServiceWithAccount("100000.0000")
	before := acct.CashBalance

	md.On("MarketStatus", ctx).Return(&domain.MarketStatus{IsOpen: false}, nil)

	_, err := svc.ExecuteTrade(ctx, acct.ID, TradeInput{
		Symbol:   "AAPL",
		Quantity: decimal.NewFromInt(1),
		Side:     "BUY",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrMarketClosed))

	// Closed market rejects before any quote call and mutates nothing.
	md.AssertNotCalled(t, "LatestTrade", mock.Anything, mock.Anything)
	assert.True(t, acct.CashBalance.Equal(before))
}

func TestExecuteTrade_MarketStatusUnknown(t *testing.T) {
	ctx := context.Background()
	svc, acct, md, _ := newServiceWithAccount("100000.0000")

	md.On("MarketStatus", ctx).Return(nil, errors.New("status endpoint down"))

	_, err := svc.ExecuteTrade(ctx, acct.ID, TradeInput{
		Symbol:   "AAPL",
		Quantity: decimal.NewFromInt(1),
		Side:     "BUY",
	})
	assert.True(t, errors.Is(err, domain.ErrMarketClosed),
		"unknown market status must refuse to trade")
}

func TestExecuteTrade_QuoteUnavailable(t *testing.T) {
	ctx := context.Background()
	svc, acct, md, _ := newServiceWithAccount("100000.0000")
	before := acct.CashBalance

	md.On("MarketStatus", ctx).Return(openMarket(), nil)
	md.On("LatestTrade", ctx, "AAPL").Return(nil, false)

	_, err := svc.ExecuteTrade(ctx, acct.ID, TradeInput{
		Symbol:   "AAPL",
		Quantity: decimal.NewFromInt(1),
		Side:     "BUY",
	})
	assert.True(t, errors.Is(err, domain.ErrQuoteUnavailable))
	assert.True(t, acct.CashBalance.Equal(before))
}

func TestExecuteTrade_ValidationRejections(t *testing.T) {
	ctx := context.Background()
	svc, acct, md, _ := newServiceWithAccount("100000.0000")

	cases := []struct {
		name  string
		input TradeInput
	}{
		{"zero quantity", TradeInput{Symbol: "AAPL", Quantity: decimal.Zero, Side: "BUY"}},
		{"negative quantity", TradeInput{Symbol: "AAPL", Quantity: decimal.NewFromInt(-5), Side: "BUY"}},
		{"too many decimals", TradeInput{Symbol: "AAPL", Quantity: decimal.RequireFromString("1.001"), Side: "BUY"}},
		{"bad side", TradeInput{Symbol: "AAPL", Quantity: decimal.NewFromInt(1), Side: "HOLD"}},
		{"empty symbol", TradeInput{Symbol: "   ", Quantity: decimal.NewFromInt(1), Side: "BUY"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.ExecuteTrade(ctx, acct.ID, tc.input)
			require.Error(t, err)

			var verr *domain.ValidationError
			assert.True(t, errors.As(err, &verr))
		})
	}

	// Validation failures never reach the provider.
	md.AssertNotCalled(t, "MarketStatus", mock.Anything)
}

func TestExecuteTrade_SellWithoutHolding(t *testing.T) {
	ctx := context.Background()
	svc, acct, md, _ := newServiceWithAccount("100000.0000")
	before := acct.CashBalance

	md.On("MarketStatus", ctx).Return(openMarket(), nil)
	md.On("LatestTrade", ctx, "TSLA").Return(quoteAt("250.0000"), true)

	_, err := svc.ExecuteTrade(ctx, acct.ID, TradeInput{
		Symbol:   "TSLA",
		Quantity: decimal.NewFromInt(5),
		Side:     "SELL",
	})
	assert.True(t, errors.Is(err, domain.ErrNoSuchHolding))
	assert.True(t, acct.CashBalance.Equal(before))
	assert.Empty(t, acct.Holdings)
}

func TestExecuteTrade_UnknownAccount(t *testing.T) {
	ctx := context.Background()
	svc, _, md, _ := newServiceWithAccount("100000.0000")

	md.On("MarketStatus", ctx).Return(openMarket(), nil)
	md.On("LatestTrade", ctx, "AAPL").Return(quoteAt("150.0000"), true)

	_, err := svc.ExecuteTrade(ctx, uuid.New(), TradeInput{
		Symbol:   "AAPL",
		Quantity: decimal.NewFromInt(1),
		Side:     "BUY",
	})
	assert.True(t, errors.Is(err, domain.ErrAccountNotFound))
}

func TestGetPortfolio(t *testing.T) {
	ctx := context.Background()
	svc, acct, md, _ := newServiceWithAccount("97600.0000")
	acct.Holdings["AAPL"] = &domain.Holding{
		Symbol:      "AAPL",
		Quantity:    decimal.NewFromInt(15),
		AverageCost: decimal.RequireFromString("160.0000"),
	}
	acct.Holdings["NVDA"] = &domain.Holding{
		Symbol:      "NVDA",
		Quantity:    decimal.NewFromInt(2),
		AverageCost: decimal.RequireFromString("480.0000"),
	}

	md.On("LatestTrade", ctx, "AAPL").Return(quoteAt("200.0000"), true)
	// NVDA quote unavailable: falls back to average cost.
	md.On("LatestTrade", ctx, "NVDA").Return(nil, false)

	portfolio, err := svc.GetPortfolio(ctx, acct.ID)
	require.NoError(t, err)
	require.Len(t, portfolio.Holdings, 2)

	aapl := portfolio.Holdings[0]
	assert.Equal(t, "AAPL", aapl.Symbol)
	assert.True(t, aapl.MarketValue.Equal(decimal.RequireFromString("3000.0000")))
	assert.True(t, aapl.CostBasis.Equal(decimal.RequireFromString("2400.0000")))
	assert.True(t, aapl.GainLoss.Equal(decimal.RequireFromString("600.0000")))
	assert.True(t, aapl.GainLossPercent.Equal(decimal.RequireFromString("25.00")),
		"expected 25.00, got %s", aapl.GainLossPercent)

	nvda := portfolio.Holdings[1]
	assert.True(t, nvda.CurrentPrice.Equal(decimal.RequireFromString("480.0000")))
	assert.True(t, nvda.GainLoss.IsZero())

	// Aggregation identities.
	assert.True(t, portfolio.HoldingsValue.Equal(decimal.RequireFromString("3960.0000")))
	assert.True(t, portfolio.TotalValue.Equal(portfolio.CashBalance.Add(portfolio.HoldingsValue)))
	assert.True(t, portfolio.TotalGainLoss.Equal(decimal.RequireFromString("600.0000")))
}

func TestGetPortfolio_EmptyHoldings(t *testing.T) {
	ctx := context.Background()
	svc, acct, _, _ := newServiceWithAccount("100000.0000")

	portfolio, err := svc.GetPortfolio(ctx, acct.ID)
	require.NoError(t, err)

	assert.Empty(t, portfolio.Holdings)
	assert.True(t, portfolio.TotalValue.Equal(acct.CashBalance))
	assert.True(t, portfolio.TotalGainLoss.IsZero())
}

func TestGetTradeHistory(t *testing.T) {
	ctx := context.Background()
	svc, acct, _, tradeRepo := newServiceWithAccount("100000.0000")

	trades := []*domain.Trade{
		{ID: 2, Symbol: "AAPL", Side: domain.TradeSideSell},
		{ID: 1, Symbol: "AAPL", Side: domain.TradeSideBuy},
	}
	tradeRepo.On("ListByAccount", ctx, acct.ID).Return(trades, nil)

	got, err := svc.GetTradeHistory(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, trades, got)
}

func TestGetTradeHistory_UnknownAccount(t *testing.T) {
	ctx := context.Background()
	svc, _, _, tradeRepo := newServiceWithAccount("100000.0000")

	_, err := svc.GetTradeHistory(ctx, uuid.New())
	assert.True(t, errors.Is(err, domain.ErrAccountNotFound))
	tradeRepo.AssertNotCalled(t, "ListByAccount", mock.Anything, mock.Anything)
}
