package prices

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/bguntupallics/TradingSandbox/internal/domain"
)

// Period selects a chart window and the bar timeframe used to fill it.
type Period struct {
	Label     string
	Timeframe string
	DaysBack  int
}

// Supported chart periods.
var (
	PeriodOneDay      = Period{Label: "1D", Timeframe: "5Min", DaysBack: 1}
	PeriodOneWeek     = Period{Label: "1W", Timeframe: "1Hour", DaysBack: 7}
	PeriodOneMonth    = Period{Label: "1M", Timeframe: "1Day", DaysBack: 30}
	PeriodThreeMonths = Period{Label: "3M", Timeframe: "1Day", DaysBack: 90}
)

// ParsePeriod resolves a period label such as "1D" or "3M".
func ParsePeriod(label string) (Period, bool) {
	for _, p := range []Period{PeriodOneDay, PeriodOneWeek, PeriodOneMonth, PeriodThreeMonths} {
		if p.Label == label {
			return p, true
		}
	}
	return Period{}, false
}

// PricePoint is a single chart point for a period series.
type PricePoint struct {
	Symbol    string
	Timestamp time.Time
	Label     string
	Close     decimal.Decimal
}

// PriceService maintains the persisted daily-close cache and backfills
// gaps from the market-data provider. The cache is authoritative: a cached
// (symbol, date) is returned without any network call and is never
// overwritten, since historical closes do not get revised.
type PriceService struct {
	PriceRepo  domain.DailyPriceRepository
	MarketData domain.MarketData

	log      zerolog.Logger
	marketTZ *time.Location
}

// NewPriceService creates a new PriceService instance
func NewPriceService(priceRepo domain.DailyPriceRepository, md domain.MarketData, log zerolog.Logger) *PriceService {
	tz, err := time.LoadLocation("America/New_York")
	if err != nil {
		// tzdata missing; period windows degrade to UTC.
		tz = time.UTC
	}
	return &PriceService{
		PriceRepo:  priceRepo,
		MarketData: md,
		log:        log.With().Str("component", "prices").Logger(),
		marketTZ:   tz,
	}
}

// GetClose returns the closing price for (symbol, date), fetching and
// persisting it from the provider on a cache miss (write-through). Bar
// timestamps are matched against date by their UTC calendar day.
func (s *PriceService) GetClose(ctx context.Context, symbol string, date time.Time) (*domain.DailyPrice, error) {
	symbol = domain.NormalizeSymbol(symbol)
	date = domain.DateOf(date)

	cached, err := s.PriceRepo.Get(ctx, symbol, date)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	// One-day window [date, date+1).
	bars, err := s.MarketData.GetBars(ctx, symbol, date, date.AddDate(0, 0, 1), domain.TimeframeDaily)
	if err != nil {
		return nil, fmt.Errorf("%s on %s: %w", symbol, date.Format("2006-01-02"), domain.ErrQuoteUnavailable)
	}

	for _, bar := range bars {
		if !domain.DateOf(bar.Timestamp).Equal(date) {
			continue
		}
		price := &domain.DailyPrice{
			Symbol:       symbol,
			Date:         date,
			ClosingPrice: bar.Close,
		}
		// Write-through before returning. A concurrent caller may fetch
		// and write the same key; the upsert is idempotent and closes are
		// stable, so last write wins without correctness impact.
		if err := s.PriceRepo.SaveAll(ctx, []*domain.DailyPrice{price}); err != nil {
			return nil, fmt.Errorf("failed to cache close for %s: %w", symbol, err)
		}
		return price, nil
	}

	return nil, fmt.Errorf("no bar for %s on %s: %w", symbol, date.Format("2006-01-02"), domain.ErrQuoteUnavailable)
}

// GetRange returns closes for every available date in [start, end]
// inclusive, ordered by date ascending. Missing dates are backfilled with
// exactly one provider request for the whole window; dates already cached
// are never overwritten. start > end returns an empty list without any
// lookup.
func (s *PriceService) GetRange(ctx context.Context, symbol string, start, end time.Time) ([]*domain.DailyPrice, error) {
	symbol = domain.NormalizeSymbol(symbol)
	start = domain.DateOf(start)
	end = domain.DateOf(end)

	if start.After(end) {
		return []*domain.DailyPrice{}, nil
	}

	cached, err := s.PriceRepo.GetRange(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}

	have := make(map[time.Time]bool, len(cached))
	for _, p := range cached {
		have[p.Date] = true
	}

	missing := make(map[time.Time]bool)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if !have[d] {
			missing[d] = true
		}
	}

	result := append([]*domain.DailyPrice{}, cached...)

	if len(missing) > 0 {
		// One bulk request for the entire window, not one per missing day.
		bars, err := s.MarketData.GetBars(ctx, symbol, start, end, domain.TimeframeDaily)
		if err != nil {
			return nil, fmt.Errorf("%s [%s, %s]: %w", symbol,
				start.Format("2006-01-02"), end.Format("2006-01-02"), domain.ErrPriceFeedUnavailable)
		}

		var fetched []*domain.DailyPrice
		for _, bar := range bars {
			barDate := domain.DateOf(bar.Timestamp)
			if !missing[barDate] {
				continue
			}
			fetched = append(fetched, &domain.DailyPrice{
				Symbol:       symbol,
				Date:         barDate,
				ClosingPrice: bar.Close,
			})
		}

		if len(fetched) > 0 {
			if err := s.PriceRepo.SaveAll(ctx, fetched); err != nil {
				return nil, fmt.Errorf("failed to cache closes for %s: %w", symbol, err)
			}
			result = append(result, fetched...)
		}

		s.log.Debug().
			Str("symbol", symbol).
			Int("cached", len(cached)).
			Int("fetched", len(fetched)).
			Msg("Backfilled price range")
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

// defaultSearchLimit caps suggestion lists when the caller gives no limit.
const defaultSearchLimit = 10

// SearchStocks returns suggestions matching query by symbol or company
// name. A blank query yields an empty list without a provider call, and
// provider failure degrades to an empty list: search only feeds typeahead
// and must never take the page down with it.
func (s *PriceService) SearchStocks(ctx context.Context, query string, limit int) ([]domain.StockSuggestion, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.StockSuggestion{}, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	suggestions, err := s.MarketData.SearchStocks(ctx, query, limit)
	if err != nil {
		s.log.Warn().Err(err).Str("query", query).Msg("Stock search unavailable")
		return []domain.StockSuggestion{}, nil
	}
	return suggestions, nil
}

// ValidateSymbol reports whether symbol exists at the provider. An empty
// symbol and a provider outage both come back as invalid results rather
// than errors, each with a message the caller can surface.
func (s *PriceService) ValidateSymbol(ctx context.Context, symbol string) (*domain.StockValidation, error) {
	symbol = domain.NormalizeSymbol(symbol)
	if symbol == "" {
		return &domain.StockValidation{
			Valid: false,
			Error: "symbol is required",
		}, nil
	}

	validation, err := s.MarketData.ValidateSymbol(ctx, symbol)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("Symbol validation unavailable")
		return &domain.StockValidation{
			Valid:  false,
			Symbol: symbol,
			Error:  "failed to validate symbol",
		}, nil
	}
	return validation, nil
}

// GetPeriodSeries returns a chart series for the given period. Intraday
// timeframes pass straight through to the provider and are not cached;
// provider failure degrades to an empty series rather than an error, since
// this only feeds chart browsing.
func (s *PriceService) GetPeriodSeries(ctx context.Context, symbol string, period Period) ([]PricePoint, error) {
	symbol = domain.NormalizeSymbol(symbol)

	now := time.Now().In(s.marketTZ)
	var start time.Time
	if period.Label == PeriodOneDay.Label {
		// Intraday: from market open (9:30 AM) today.
		start = time.Date(now.Year(), now.Month(), now.Day(), 9, 30, 0, 0, s.marketTZ)
	} else {
		start = now.AddDate(0, 0, -period.DaysBack)
	}
	end := domain.DateOf(now).AddDate(0, 0, 1)

	bars, err := s.MarketData.GetBars(ctx, symbol, domain.DateOf(start), end, period.Timeframe)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Str("period", period.Label).
			Msg("Period series unavailable")
		return []PricePoint{}, nil
	}

	layout := "1/2"
	if period.Label == PeriodOneDay.Label {
		layout = "3:04 PM"
	}

	points := make([]PricePoint, 0, len(bars))
	for _, bar := range bars {
		points = append(points, PricePoint{
			Symbol:    symbol,
			Timestamp: bar.Timestamp,
			Label:     bar.Timestamp.In(s.marketTZ).Format(layout),
			Close:     bar.Close,
		})
	}

	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points, nil
}
