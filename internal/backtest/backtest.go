// Package backtest simulates signal-driven long-only portfolios. A single
// call evaluates every parameter combination of a sweep side by side; each
// combination becomes one column of the resulting Portfolio.
package backtest

import (
	"errors"
	"fmt"
	"time"

	"stratfolio/internal/domain"
)

var (
	// ErrMultiColumn is returned by single-portfolio operations called on a
	// Portfolio that still holds more than one column.
	ErrMultiColumn = errors.New("backtest: portfolio has more than one column")

	// ErrMissingArtifact is returned when a snapshot cannot be produced or
	// read because there is no data behind it.
	ErrMissingArtifact = errors.New("backtest: snapshot artifact missing")
)

// Config is the execution cost model.
type Config struct {
	Fees     float64       `json:"fees"`      // fraction of notional per order
	Slippage float64       `json:"slippage"`  // fraction of price per order
	Size     float64       `json:"size"`      // notional value bought per entry
	InitCash float64       `json:"init_cash"` // 0 = auto
	Freq     time.Duration `json:"freq"`      // bar duration
}

// DefaultConfig returns fees and slippage of 0.1%, 100 notional per entry,
// auto init cash and daily bars.
func DefaultConfig() Config {
	return Config{
		Fees:     0.001,
		Slippage: 0.001,
		Size:     100,
		Freq:     24 * time.Hour,
	}
}

// annFactor is the number of bars per 365-day year.
func (c Config) annFactor() float64 {
	freq := c.Freq
	if freq <= 0 {
		freq = 24 * time.Hour
	}
	return float64(365*24*time.Hour) / float64(freq)
}

// Prices is the aligned price history a backtest runs over.
type Prices struct {
	Index []time.Time
	Open  []float64
	Close []float64
}

// PricesFromBars converts bars into Prices.
func PricesFromBars(bars []domain.Bar) Prices {
	p := Prices{
		Index: make([]time.Time, len(bars)),
		Open:  make([]float64, len(bars)),
		Close: make([]float64, len(bars)),
	}
	for i, b := range bars {
		p.Index[i] = b.Timestamp
		p.Open[i] = b.Open
		p.Close[i] = b.Close
	}
	return p
}

// Len returns the number of bars.
func (p Prices) Len() int { return len(p.Close) }

// Combination is one parameter assignment and the signals it produced.
type Combination struct {
	Params  domain.ParamDict
	Entries []bool
	Exits   []bool
}

// FromSignals simulates every combination against prices. Orders fill at the
// bar's close adjusted by slippage. An entry while flat buys cfg.Size worth
// of the asset, an exit while long sells the whole position, and a bar that
// carries both signals is ignored.
func FromSignals(prices Prices, combos []Combination, cfg Config) (*Portfolio, error) {
	n := prices.Len()
	if len(prices.Index) != n || (prices.Open != nil && len(prices.Open) != n) {
		return nil, fmt.Errorf("backtest: misaligned price series")
	}
	if len(combos) == 0 {
		return nil, errors.New("backtest: no parameter combinations")
	}
	if cfg.Size <= 0 {
		return nil, fmt.Errorf("backtest: order size must be positive, got %v", cfg.Size)
	}

	pf := &Portfolio{
		cfg:    cfg,
		prices: prices,
		cols:   make([]column, len(combos)),
	}
	for i, c := range combos {
		if len(c.Entries) != n || len(c.Exits) != n {
			return nil, fmt.Errorf("backtest: combination %d has %d/%d signals for %d bars",
				i, len(c.Entries), len(c.Exits), n)
		}
		pf.cols[i] = simulate(prices.Close, c, cfg)
	}
	return pf, nil
}

func simulate(close []float64, c Combination, cfg Config) column {
	n := len(close)
	col := column{
		params: c.Params.Clone(),
		cash:   make([]float64, n),
		shares: make([]float64, n),
	}

	// Cash is tracked relative to the initial balance so auto init cash can
	// be derived from the deepest point it reaches.
	var cash, shares, minCash float64
	for i := 0; i < n; i++ {
		entry, exit := c.Entries[i], c.Exits[i]
		if entry && exit {
			entry, exit = false, false
		}
		px := close[i]
		switch {
		case shares == 0 && entry && px > 0:
			fill := px * (1 + cfg.Slippage)
			cost := cfg.Size * (1 + cfg.Fees)
			if cfg.InitCash > 0 && cfg.InitCash+cash < cost {
				break
			}
			shares = cfg.Size / fill
			cash -= cost
			col.orders++
		case shares > 0 && exit:
			fill := px * (1 - cfg.Slippage)
			cash += shares * fill * (1 - cfg.Fees)
			shares = 0
			col.orders++
		}
		if cash < minCash {
			minCash = cash
		}
		col.cash[i] = cash
		col.shares[i] = shares
	}

	col.initCash = cfg.InitCash
	if col.initCash == 0 {
		col.initCash = -minCash
		if col.initCash == 0 {
			col.initCash = cfg.Size
		}
	}

	col.value = make([]float64, n)
	col.returns = make([]float64, n)
	prev := col.initCash
	for i := 0; i < n; i++ {
		col.cash[i] += col.initCash
		col.value[i] = col.cash[i] + col.shares[i]*close[i]
		col.returns[i] = col.value[i]/prev - 1
		prev = col.value[i]
	}
	return col
}
