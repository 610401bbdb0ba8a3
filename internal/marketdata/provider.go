// Package marketdata loads daily bars for the strategy runner, either from
// the local Parquet cache or from the Alpaca market-data API.
package marketdata

import (
	"context"
	"strings"
	"time"

	"stratfolio/internal/domain"
	"stratfolio/internal/store"
	"stratfolio/internal/util"
)

// Provider returns daily bars for one symbol within [start, end], both
// dates inclusive. A symbol without data yields an empty slice, not an error.
type Provider interface {
	GetStock(ctx context.Context, market domain.Market, symbol string, start, end time.Time) ([]domain.Bar, error)
}

// InstrumentSource lists the tradable instruments of a market.
type InstrumentSource interface {
	Instruments(ctx context.Context, market domain.Market) ([]domain.Instrument, error)
}

var (
	_ Provider         = (*StoreProvider)(nil)
	_ InstrumentSource = (*StoreProvider)(nil)
)

// StoreProvider serves bars from a BarStore without touching the network.
type StoreProvider struct {
	bars store.BarStore
}

// NewStoreProvider wraps bars.
func NewStoreProvider(bars store.BarStore) *StoreProvider {
	return &StoreProvider{bars: bars}
}

// GetStock reads cached bars for symbol.
func (p *StoreProvider) GetStock(ctx context.Context, market domain.Market, symbol string, start, end time.Time) ([]domain.Bar, error) {
	from, to := dayRange(start, end)
	return p.bars.ReadBars(ctx, market, strings.ToUpper(symbol), from, to)
}

// Instruments lists every symbol with cached bars. Names are left empty.
func (p *StoreProvider) Instruments(ctx context.Context, market domain.Market) ([]domain.Instrument, error) {
	symbols, err := p.bars.ListSymbols(ctx, market)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Instrument, len(symbols))
	for i, sym := range symbols {
		out[i] = domain.Instrument{Symbol: sym, Market: market}
	}
	return out, nil
}

// dayRange widens [start, end] to cover both calendar days completely.
func dayRange(start, end time.Time) (time.Time, time.Time) {
	return util.Midnight(start), util.Midnight(end).AddDate(0, 0, 1).Add(-time.Nanosecond)
}
