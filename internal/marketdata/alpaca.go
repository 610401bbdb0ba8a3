package marketdata

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	md "github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"stratfolio/internal/config"
	"stratfolio/internal/domain"
	"stratfolio/internal/store"
	"stratfolio/internal/util"
)

var (
	_ Provider         = (*AlpacaProvider)(nil)
	_ InstrumentSource = (*AlpacaAssets)(nil)
)

// barClient is the subset of the Alpaca market-data client used here.
type barClient interface {
	GetBars(symbol string, req md.GetBarsRequest) ([]md.Bar, error)
}

// AlpacaProvider fetches adjusted daily bars from Alpaca and writes them
// through to a BarStore. Markets other than US are served from the store.
type AlpacaProvider struct {
	client     barClient
	cache      store.BarStore
	limiter    *util.RateLimiter
	feed       string
	attempts   int
	retryDelay time.Duration
	log        *slog.Logger
}

// NewAlpacaProvider creates an AlpacaProvider from cfg. cache may be nil.
func NewAlpacaProvider(cfg config.Alpaca, cache store.BarStore) *AlpacaProvider {
	opts := md.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
	}
	if cfg.DataURL != "" {
		opts.BaseURL = cfg.DataURL
	}
	return newAlpacaProvider(md.NewClient(opts), cache, util.NewRateLimiter(cfg.RateLimitPerMin), cfg.Feed)
}

func newAlpacaProvider(client barClient, cache store.BarStore, limiter *util.RateLimiter, feed string) *AlpacaProvider {
	return &AlpacaProvider{
		client:     client,
		cache:      cache,
		limiter:    limiter,
		feed:       feed,
		attempts:   3,
		retryDelay: time.Second,
		log:        slog.Default().With("component", "alpaca"),
	}
}

// GetStock fetches bars for symbol.
func (p *AlpacaProvider) GetStock(ctx context.Context, market domain.Market, symbol string, start, end time.Time) ([]domain.Bar, error) {
	symbol = strings.ToUpper(symbol)
	if market != domain.MarketUS {
		if p.cache == nil {
			return nil, fmt.Errorf("alpaca: market %q not supported", market)
		}
		return NewStoreProvider(p.cache).GetStock(ctx, market, symbol, start, end)
	}

	from, to := dayRange(start, end)
	var raw []md.Bar
	err := util.Retry(ctx, p.attempts, p.retryDelay, func() error {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
		var err error
		raw, err = p.client.GetBars(symbol, md.GetBarsRequest{
			TimeFrame:  md.OneDay,
			Adjustment: md.All,
			Start:      from,
			End:        to,
			Feed:       p.feed,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("GetBars %s: %w", symbol, err)
	}

	bars := make([]domain.Bar, 0, len(raw))
	for _, ab := range raw {
		bars = append(bars, domain.Bar{
			Symbol:     symbol,
			Timestamp:  util.Midnight(ab.Timestamp),
			Open:       ab.Open,
			High:       ab.High,
			Low:        ab.Low,
			Close:      ab.Close,
			Volume:     int64(ab.Volume),
			TradeCount: int64(ab.TradeCount),
			VWAP:       ab.VWAP,
		})
	}
	p.log.Debug("fetched bars", "symbol", symbol, "bars", len(bars))

	if p.cache != nil && len(bars) > 0 {
		if err := p.cache.WriteBars(ctx, market, bars); err != nil {
			p.log.Warn("bar cache write failed", "symbol", symbol, "error", err)
		}
	}
	return bars, nil
}

// AlpacaAssets lists active US equities through the Alpaca trading API.
type AlpacaAssets struct {
	client *alpaca.Client
}

// NewAlpacaAssets creates an asset lister. An empty cfg.BaseURL selects the
// SDK default endpoint.
func NewAlpacaAssets(cfg config.Alpaca) *AlpacaAssets {
	return &AlpacaAssets{client: alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
		BaseURL:   cfg.BaseURL,
	})}
}

// Instruments returns every active, tradable US equity.
func (a *AlpacaAssets) Instruments(ctx context.Context, market domain.Market) ([]domain.Instrument, error) {
	if market != domain.MarketUS {
		return nil, fmt.Errorf("alpaca: market %q not supported", market)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	assets, err := a.client.GetAssets(alpaca.GetAssetsRequest{
		Status:     "active",
		AssetClass: "us_equity",
	})
	if err != nil {
		return nil, fmt.Errorf("GetAssets: %w", err)
	}
	out := make([]domain.Instrument, 0, len(assets))
	for _, as := range assets {
		if !as.Tradable {
			continue
		}
		out = append(out, domain.Instrument{Symbol: strings.ToUpper(as.Symbol), Market: market, Name: as.Name})
	}
	return out, nil
}
