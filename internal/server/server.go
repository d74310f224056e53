// Package server exposes the trading sandbox over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bguntupallics/TradingSandbox/internal/domain"
	"github.com/bguntupallics/TradingSandbox/internal/usecase/accounts"
	"github.com/bguntupallics/TradingSandbox/internal/usecase/prices"
	"github.com/bguntupallics/TradingSandbox/internal/usecase/trading"
)

// AccountService is the account surface consumed by the HTTP layer.
type AccountService interface {
	Open(ctx context.Context, input accounts.OpenAccountInput) (*domain.Account, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	CreditBalance(ctx context.Context, id uuid.UUID, input accounts.ChangeBalanceInput) (*domain.Account, error)
	DebitBalance(ctx context.Context, id uuid.UUID, input accounts.ChangeBalanceInput) (*domain.Account, error)
}

// TradingService is the settlement surface consumed by the HTTP layer.
type TradingService interface {
	ExecuteTrade(ctx context.Context, accountID uuid.UUID, input trading.TradeInput) (*trading.TradeResult, error)
	GetPortfolio(ctx context.Context, accountID uuid.UUID) (*trading.Portfolio, error)
	GetTradeHistory(ctx context.Context, accountID uuid.UUID) ([]*domain.Trade, error)
}

// PriceService is the price history surface consumed by the HTTP layer.
type PriceService interface {
	GetClose(ctx context.Context, symbol string, date time.Time) (*domain.DailyPrice, error)
	GetRange(ctx context.Context, symbol string, start, end time.Time) ([]*domain.DailyPrice, error)
	GetPeriodSeries(ctx context.Context, symbol string, period prices.Period) ([]prices.PricePoint, error)
	SearchStocks(ctx context.Context, query string, limit int) ([]domain.StockSuggestion, error)
	ValidateSymbol(ctx context.Context, symbol string) (*domain.StockValidation, error)
}

// Config holds server configuration
type Config struct {
	Port     int
	APIToken string
	Log      zerolog.Logger

	Accounts   AccountService
	Trading    TradingService
	Prices     PriceService
	MarketData domain.MarketData
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger

	apiToken   string
	accounts   AccountService
	trading    TradingService
	prices     PriceService
	marketData domain.MarketData
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:     chi.NewRouter(),
		log:        cfg.Log.With().Str("component", "server").Logger(),
		apiToken:   cfg.APIToken,
		accounts:   cfg.Accounts,
		trading:    cfg.Trading,
		prices:     cfg.Prices,
		marketData: cfg.MarketData,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Post("/accounts", s.handleOpenAccount)
		r.Route("/accounts/{accountID}", func(r chi.Router) {
			r.Get("/", s.handleGetAccount)
			r.Post("/deposit", s.handleDeposit)
			r.Post("/withdraw", s.handleWithdraw)
			r.Post("/trades", s.handleExecuteTrade)
			r.Get("/trades", s.handleTradeHistory)
			r.Get("/portfolio", s.handlePortfolio)
		})

		r.Route("/prices", func(r chi.Router) {
			r.Get("/search/{query}", s.handleStockSearch)
			r.Get("/validate/{symbol}", s.handleValidateSymbol)
			r.Route("/{symbol}", func(r chi.Router) {
				r.Get("/", s.handlePriceRange)
				r.Get("/close", s.handleClose)
				r.Get("/series", s.handlePeriodSeries)
			})
		})

		r.Get("/market-status", s.handleMarketStatus)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the router, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// authMiddleware validates the access token on every API request.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != s.apiToken {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("Request handled")
	})
}
