// Package store defines storage interfaces for bar history, the instrument
// reference table and saved portfolios, and provides Parquet and SQLite
// implementations.
package store

import (
	"context"
	"errors"
	"time"

	"stratfolio/internal/domain"
)

// ErrNotFound is returned when a keyed row does not exist.
var ErrNotFound = errors.New("store: not found")

// BarStore persists and retrieves OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars for the given market.
	WriteBars(ctx context.Context, market domain.Market, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol and market within [start, end].
	ReadBars(ctx context.Context, market domain.Market, symbol string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols available in the given market.
	ListSymbols(ctx context.Context, market domain.Market) ([]string, error)
}

// InstrumentStore manages the reference instrument table.
type InstrumentStore interface {
	// SaveInstruments inserts instruments, replacing the name of existing ones.
	SaveInstruments(ctx context.Context, instruments []domain.Instrument) error

	// ResolveInstruments returns the instruments of market whose symbol is in
	// symbols. Unknown symbols are simply absent from the result.
	ResolveInstruments(ctx context.Context, market domain.Market, symbols []string) ([]domain.Instrument, error)

	// ListInstruments returns every instrument of market ordered by symbol.
	ListInstruments(ctx context.Context, market domain.Market) ([]domain.Instrument, error)
}

// PortfolioStore persists saved portfolios. Every mutating call runs in its
// own transaction and leaves the table untouched when it fails.
type PortfolioStore interface {
	// ListPortfolios returns every portfolio ordered by id.
	ListPortfolios(ctx context.Context) ([]domain.PortfolioRecord, error)

	// GetPortfolio returns one portfolio or ErrNotFound.
	GetPortfolio(ctx context.Context, id int64) (*domain.PortfolioRecord, error)

	// InsertPortfolio stores rec and assigns rec.ID.
	InsertPortfolio(ctx context.Context, rec *domain.PortfolioRecord) error

	// UpdatePortfolio rewrites the end date, statistics and snapshot of one
	// portfolio.
	UpdatePortfolio(ctx context.Context, id int64, upd domain.PortfolioUpdate) error

	// DeletePortfolio removes one portfolio.
	DeletePortfolio(ctx context.Context, id int64) error
}
