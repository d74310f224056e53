package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/bguntupallics/TradingSandbox/internal/adapter/marketdata"
	"github.com/bguntupallics/TradingSandbox/internal/adapter/repository/postgres"
	"github.com/bguntupallics/TradingSandbox/internal/config"
	"github.com/bguntupallics/TradingSandbox/internal/server"
	"github.com/bguntupallics/TradingSandbox/internal/usecase/accounts"
	"github.com/bguntupallics/TradingSandbox/internal/usecase/prices"
	"github.com/bguntupallics/TradingSandbox/internal/usecase/seeder"
	"github.com/bguntupallics/TradingSandbox/internal/usecase/trading"
	"github.com/bguntupallics/TradingSandbox/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger is not configured yet, write straight to stderr.
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Pretty: cfg.Logging.Pretty,
	})

	db, err := postgres.NewDB(cfg.DB.ConnString())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	accountRepo := postgres.NewAccountRepository(db)
	tradeRepo := postgres.NewTradeRepository(db)
	priceRepo := postgres.NewDailyPriceRepository(db)

	if err := seeder.NewDemoSeeder(accountRepo).Seed(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed demo account")
	}

	marketData := marketdata.NewClient(cfg.MarketData.BaseURL, cfg.MarketData.AccessKey, cfg.MarketData.Timeout, log)

	accountService := accounts.NewAccountService(accountRepo, log)
	tradingService := trading.NewTradingService(accountRepo, tradeRepo, marketData, log)
	priceService := prices.NewPriceService(priceRepo, marketData, log)

	srv := server.New(server.Config{
		Port:       cfg.Port,
		APIToken:   cfg.APIToken,
		Log:        log,
		Accounts:   accountService,
		Trading:    tradingService,
		Prices:     priceService,
		MarketData: marketData,
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	waitForShutdown(srv, log)
}

// waitForShutdown blocks until SIGTERM or SIGINT, then drains the server.
func waitForShutdown(srv *server.Server, log zerolog.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Shutdown did not complete cleanly")
	}
}
