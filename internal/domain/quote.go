package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is the latest trade observed for a symbol.
type Quote struct {
	Price     decimal.Decimal
	Volume    int64
	Timestamp time.Time
}

// MarketStatus reports whether the exchange is open and when it next
// transitions.
type MarketStatus struct {
	IsOpen    bool
	NextOpen  time.Time
	NextClose time.Time
}

// Bar is a single OHLCV candle returned by the market-data provider.
type Bar struct {
	Timestamp time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
}

// StockSuggestion is one match from a symbol or company-name search.
type StockSuggestion struct {
	Symbol   string
	Name     string
	Exchange string
}

// StockValidation reports whether a symbol is known to the provider and
// tradable. An invalid result carries a human-readable Error.
type StockValidation struct {
	Valid    bool
	Symbol   string
	Name     string
	Exchange string
	Tradable bool
	Error    string
}
