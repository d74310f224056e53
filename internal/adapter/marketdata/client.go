// Package marketdata implements the upstream market-data provider client.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/bguntupallics/TradingSandbox/internal/domain"
)

// Compile-time interface check.
var _ domain.MarketData = (*Client)(nil)

// Client talks to the market-data provider over HTTP. Every request carries
// the access key header and is bounded by the client timeout, so a hung
// provider can never stall a caller indefinitely.
type Client struct {
	baseURL   string
	accessKey string
	http      *http.Client
	log       zerolog.Logger
}

// NewClient creates a provider client for the given base URL and access key.
func NewClient(baseURL, accessKey string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL:   baseURL,
		accessKey: accessKey,
		http:      &http.Client{Timeout: timeout},
		log:       log.With().Str("component", "marketdata").Logger(),
	}
}

// barsResponse mirrors the provider's bars payload. The bar list is keyed
// by symbol inside the "bars" object.
type barsResponse struct {
	Symbol string               `json:"symbol"`
	Bars   map[string][]barJSON `json:"bars"`
}

type barJSON struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

type latestTradeResponse struct {
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
	Volume    int64     `json:"volume"`
}

type marketStatusResponse struct {
	IsOpen    bool      `json:"is_open"`
	NextOpen  time.Time `json:"next_open"`
	NextClose time.Time `json:"next_close"`
}

// GetBars returns bars for symbol at the given timeframe; the provider
// treats start and end as inclusive calendar dates. A response that omits
// the symbol entirely yields zero bars, not an error.
func (c *Client) GetBars(ctx context.Context, symbol string, start, end time.Time, timeframe string) ([]domain.Bar, error) {
	symbol = domain.NormalizeSymbol(symbol)

	q := url.Values{}
	q.Set("start_date", start.Format("2006-01-02"))
	q.Set("end_date", end.Format("2006-01-02"))
	q.Set("timeframe", timeframe)
	endpoint := fmt.Sprintf("%s/bars/%s?%s", c.baseURL, url.PathEscape(symbol), q.Encode())

	var payload barsResponse
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, fmt.Errorf("failed to fetch bars for %s: %w", symbol, err)
	}

	raw := payload.Bars[symbol]
	bars := make([]domain.Bar, 0, len(raw))
	for _, b := range raw {
		bars = append(bars, domain.Bar{
			Timestamp: b.Timestamp,
			Open:      decimal.NewFromFloat(b.Open),
			High:      decimal.NewFromFloat(b.High),
			Low:       decimal.NewFromFloat(b.Low),
			Close:     decimal.NewFromFloat(b.Close),
			Volume:    decimal.NewFromFloat(b.Volume),
		})
	}
	return bars, nil
}

// LatestTrade returns the most recent trade for symbol. Transient provider
// failures (transport errors, non-2xx, empty body) are reported as
// ok == false so callers can fail the order fast instead of trading on a
// zero price.
func (c *Client) LatestTrade(ctx context.Context, symbol string) (*domain.Quote, bool) {
	symbol = domain.NormalizeSymbol(symbol)
	endpoint := fmt.Sprintf("%s/latest-trade/%s", c.baseURL, url.PathEscape(symbol))

	var payload latestTradeResponse
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("Latest trade unavailable")
		return nil, false
	}
	if payload.Price == 0 {
		return nil, false
	}

	return &domain.Quote{
		Price:     decimal.NewFromFloat(payload.Price),
		Volume:    payload.Volume,
		Timestamp: payload.Timestamp,
	}, true
}

// MarketStatus reports whether the market is open. Unlike LatestTrade this
// propagates provider failure: the settlement engine must refuse to trade
// when the status is unknown.
func (c *Client) MarketStatus(ctx context.Context) (*domain.MarketStatus, error) {
	endpoint := fmt.Sprintf("%s/market-status", c.baseURL)

	var payload marketStatusResponse
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, fmt.Errorf("failed to fetch market status: %w", err)
	}

	return &domain.MarketStatus{
		IsOpen:    payload.IsOpen,
		NextOpen:  payload.NextOpen,
		NextClose: payload.NextClose,
	}, nil
}

type searchResponse struct {
	Suggestions []suggestionJSON `json:"suggestions"`
}

type suggestionJSON struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
}

type validationJSON struct {
	Valid    bool   `json:"valid"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
	Tradable bool   `json:"tradable"`
	Error    string `json:"error"`
}

// SearchStocks returns up to limit suggestions matching query by symbol or
// company name.
func (c *Client) SearchStocks(ctx context.Context, query string, limit int) ([]domain.StockSuggestion, error) {
	q := url.Values{}
	q.Set("limit", fmt.Sprintf("%d", limit))
	endpoint := fmt.Sprintf("%s/search/%s?%s", c.baseURL, url.PathEscape(query), q.Encode())

	var payload searchResponse
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, fmt.Errorf("failed to search stocks for %q: %w", query, err)
	}

	suggestions := make([]domain.StockSuggestion, 0, len(payload.Suggestions))
	for _, s := range payload.Suggestions {
		suggestions = append(suggestions, domain.StockSuggestion{
			Symbol:   s.Symbol,
			Name:     s.Name,
			Exchange: s.Exchange,
		})
	}
	return suggestions, nil
}

// ValidateSymbol checks whether symbol is known to the provider. A 404 from
// the provider means the symbol does not exist, which is a non-error invalid
// result; any other failure is an error.
func (c *Client) ValidateSymbol(ctx context.Context, symbol string) (*domain.StockValidation, error) {
	symbol = domain.NormalizeSymbol(symbol)
	endpoint := fmt.Sprintf("%s/validate/%s", c.baseURL, url.PathEscape(symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("X-ACCESS-KEY", c.accessKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to validate %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &domain.StockValidation{
			Valid:  false,
			Symbol: symbol,
			Error:  fmt.Sprintf("stock symbol %q not found", symbol),
		}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("failed to validate %s: unexpected status %d", symbol, resp.StatusCode)
	}

	var payload validationJSON
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode validation response: %w", err)
	}

	return &domain.StockValidation{
		Valid:    payload.Valid,
		Symbol:   payload.Symbol,
		Name:     payload.Name,
		Exchange: payload.Exchange,
		Tradable: payload.Tradable,
		Error:    payload.Error,
	}, nil
}

// getJSON performs an authenticated GET and decodes the JSON body into out.
func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("X-ACCESS-KEY", c.accessKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
