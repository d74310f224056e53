package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bguntupallics/TradingSandbox/internal/domain"
	"github.com/bguntupallics/TradingSandbox/internal/usecase/accounts"
	"github.com/bguntupallics/TradingSandbox/internal/usecase/prices"
	"github.com/bguntupallics/TradingSandbox/internal/usecase/trading"
)

type errorResponse struct {
	Error string `json:"error"`
}

type openAccountRequest struct {
	Username string `json:"username"`
}

type changeBalanceRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type tradeRequest struct {
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
	Side     string          `json:"side"`
}

type accountResponse struct {
	ID          uuid.UUID       `json:"id"`
	Username    string          `json:"username"`
	CashBalance decimal.Decimal `json:"cashBalance"`
}

type tradeResultResponse struct {
	TradeID              int64           `json:"tradeId"`
	Symbol               string          `json:"symbol"`
	Side                 string          `json:"side"`
	Quantity             decimal.Decimal `json:"quantity"`
	PricePerShare        decimal.Decimal `json:"pricePerShare"`
	TotalCost            decimal.Decimal `json:"totalCost"`
	ExecutedAt           time.Time       `json:"executedAt"`
	RemainingCashBalance decimal.Decimal `json:"remainingCashBalance"`
}

type tradeHistoryResponse struct {
	ID            int64           `json:"id"`
	Symbol        string          `json:"symbol"`
	Side          string          `json:"side"`
	Quantity      decimal.Decimal `json:"quantity"`
	PricePerShare decimal.Decimal `json:"pricePerShare"`
	TotalCost     decimal.Decimal `json:"totalCost"`
	ExecutedAt    time.Time       `json:"executedAt"`
}

type holdingResponse struct {
	Symbol          string          `json:"symbol"`
	Quantity        decimal.Decimal `json:"quantity"`
	AverageCost     decimal.Decimal `json:"averageCost"`
	CurrentPrice    decimal.Decimal `json:"currentPrice"`
	MarketValue     decimal.Decimal `json:"marketValue"`
	TotalGainLoss   decimal.Decimal `json:"totalGainLoss"`
	GainLossPercent decimal.Decimal `json:"totalGainLossPercent"`
}

type portfolioResponse struct {
	CashBalance   decimal.Decimal   `json:"cashBalance"`
	HoldingsValue decimal.Decimal   `json:"holdingsValue"`
	TotalValue    decimal.Decimal   `json:"totalPortfolioValue"`
	TotalGainLoss decimal.Decimal   `json:"totalGainLoss"`
	Holdings      []holdingResponse `json:"holdings"`
}

type dailyPriceResponse struct {
	Symbol       string          `json:"symbol"`
	Date         string          `json:"date"`
	ClosingPrice decimal.Decimal `json:"closingPrice"`
}

type pricePointResponse struct {
	Symbol    string          `json:"symbol"`
	Timestamp time.Time       `json:"timestamp"`
	Label     string          `json:"label"`
	Close     decimal.Decimal `json:"close"`
}

type stockSuggestionResponse struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
}

type stockSearchResponse struct {
	Suggestions []stockSuggestionResponse `json:"suggestions"`
}

type stockValidationResponse struct {
	Valid    bool   `json:"valid"`
	Symbol   string `json:"symbol,omitempty"`
	Name     string `json:"name,omitempty"`
	Exchange string `json:"exchange,omitempty"`
	Tradable bool   `json:"tradable"`
	Error    string `json:"error,omitempty"`
}

type marketStatusResponse struct {
	IsOpen    bool      `json:"isOpen"`
	NextOpen  time.Time `json:"nextOpen"`
	NextClose time.Time `json:"nextClose"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleOpenAccount(w http.ResponseWriter, r *http.Request) {
	var req openAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	acct, err := s.accounts.Open(r.Context(), accounts.OpenAccountInput{Username: req.Username})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountResponse(acct))
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := s.accountID(w, r)
	if !ok {
		return
	}

	acct, err := s.accounts.Get(r.Context(), accountID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(acct))
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	s.handleBalanceChange(w, r, s.accounts.CreditBalance)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	s.handleBalanceChange(w, r, s.accounts.DebitBalance)
}

func (s *Server) handleBalanceChange(
	w http.ResponseWriter,
	r *http.Request,
	change func(ctx context.Context, id uuid.UUID, input accounts.ChangeBalanceInput) (*domain.Account, error),
) {
	accountID, ok := s.accountID(w, r)
	if !ok {
		return
	}

	var req changeBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	acct, err := change(r.Context(), accountID, accounts.ChangeBalanceInput{Amount: req.Amount})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(acct))
}

func (s *Server) handleExecuteTrade(w http.ResponseWriter, r *http.Request) {
	accountID, ok := s.accountID(w, r)
	if !ok {
		return
	}

	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.trading.ExecuteTrade(r.Context(), accountID, trading.TradeInput{
		Symbol:   req.Symbol,
		Quantity: req.Quantity,
		Side:     req.Side,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, tradeResultResponse{
		TradeID:              result.TradeID,
		Symbol:               result.Symbol,
		Side:                 string(result.Side),
		Quantity:             result.Quantity,
		PricePerShare:        result.PricePerShare,
		TotalCost:            result.TotalCost,
		ExecutedAt:           result.ExecutedAt,
		RemainingCashBalance: result.RemainingCashBalance,
	})
}

func (s *Server) handleTradeHistory(w http.ResponseWriter, r *http.Request) {
	accountID, ok := s.accountID(w, r)
	if !ok {
		return
	}

	trades, err := s.trading.GetTradeHistory(r.Context(), accountID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	resp := make([]tradeHistoryResponse, 0, len(trades))
	for _, t := range trades {
		resp = append(resp, tradeHistoryResponse{
			ID:            t.ID,
			Symbol:        t.Symbol,
			Side:          string(t.Side),
			Quantity:      t.Quantity,
			PricePerShare: t.PricePerShare,
			TotalCost:     t.TotalCost,
			ExecutedAt:    t.ExecutedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	accountID, ok := s.accountID(w, r)
	if !ok {
		return
	}

	portfolio, err := s.trading.GetPortfolio(r.Context(), accountID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	holdings := make([]holdingResponse, 0, len(portfolio.Holdings))
	for _, h := range portfolio.Holdings {
		holdings = append(holdings, holdingResponse{
			Symbol:          h.Symbol,
			Quantity:        h.Quantity,
			AverageCost:     h.AverageCost,
			CurrentPrice:    h.CurrentPrice,
			MarketValue:     h.MarketValue,
			TotalGainLoss:   h.GainLoss,
			GainLossPercent: h.GainLossPercent,
		})
	}

	writeJSON(w, http.StatusOK, portfolioResponse{
		CashBalance:   portfolio.CashBalance,
		HoldingsValue: portfolio.HoldingsValue,
		TotalValue:    portfolio.TotalValue,
		TotalGainLoss: portfolio.TotalGainLoss,
		Holdings:      holdings,
	})
}

func (s *Server) handlePriceRange(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	start, err := parseDate(r.URL.Query().Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be YYYY-MM-DD")
		return
	}
	end, err := parseDate(r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "end must be YYYY-MM-DD")
		return
	}

	priceRange, err := s.prices.GetRange(r.Context(), symbol, start, end)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	resp := make([]dailyPriceResponse, 0, len(priceRange))
	for _, p := range priceRange {
		resp = append(resp, toDailyPriceResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	date, err := parseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	price, err := s.prices.GetClose(r.Context(), symbol, date)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDailyPriceResponse(price))
}

func (s *Server) handlePeriodSeries(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	period, ok := prices.ParsePeriod(r.URL.Query().Get("period"))
	if !ok {
		writeError(w, http.StatusBadRequest, "period must be one of 1D, 1W, 1M, 3M")
		return
	}

	points, err := s.prices.GetPeriodSeries(r.Context(), symbol, period)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	resp := make([]pricePointResponse, 0, len(points))
	for _, p := range points {
		resp = append(resp, pricePointResponse{
			Symbol:    p.Symbol,
			Timestamp: p.Timestamp,
			Label:     p.Label,
			Close:     p.Close,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStockSearch(w http.ResponseWriter, r *http.Request) {
	query := chi.URLParam(r, "query")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}

	suggestions, err := s.prices.SearchStocks(r.Context(), query, limit)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	resp := stockSearchResponse{Suggestions: make([]stockSuggestionResponse, 0, len(suggestions))}
	for _, sg := range suggestions {
		resp.Suggestions = append(resp.Suggestions, stockSuggestionResponse{
			Symbol:   sg.Symbol,
			Name:     sg.Name,
			Exchange: sg.Exchange,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleValidateSymbol(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	validation, err := s.prices.ValidateSymbol(r.Context(), symbol)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	status := http.StatusOK
	if !validation.Valid {
		status = http.StatusNotFound
	}
	writeJSON(w, status, stockValidationResponse{
		Valid:    validation.Valid,
		Symbol:   validation.Symbol,
		Name:     validation.Name,
		Exchange: validation.Exchange,
		Tradable: validation.Tradable,
		Error:    validation.Error,
	})
}

func (s *Server) handleMarketStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.marketData.MarketStatus(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "market status unavailable")
		return
	}
	writeJSON(w, http.StatusOK, marketStatusResponse{
		IsOpen:    status.IsOpen,
		NextOpen:  status.NextOpen,
		NextClose: status.NextClose,
	})
}

// accountID extracts and parses the accountID URL parameter.
func (s *Server) accountID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return uuid.Nil, false
	}
	return id, true
}

// writeDomainError maps domain errors to HTTP status codes.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError

	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, domain.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, "account not found")
	case errors.Is(err, domain.ErrMarketClosed):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrInsufficientShares),
		errors.Is(err, domain.ErrNoSuchHolding):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrQuoteUnavailable),
		errors.Is(err, domain.ErrPriceFeedUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.log.Error().Err(err).Msg("Internal error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func toAccountResponse(acct *domain.Account) accountResponse {
	return accountResponse{
		ID:          acct.ID,
		Username:    acct.Username,
		CashBalance: acct.CashBalance,
	}
}

func toDailyPriceResponse(p *domain.DailyPrice) dailyPriceResponse {
	return dailyPriceResponse{
		Symbol:       p.Symbol,
		Date:         p.Date.Format("2006-01-02"),
		ClosingPrice: p.ClosingPrice,
	}
}

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
