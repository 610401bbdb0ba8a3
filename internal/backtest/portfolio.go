package backtest

import (
	"fmt"
	"math"
	"time"

	"stratfolio/internal/domain"
)

type column struct {
	params   domain.ParamDict
	initCash float64
	orders   int
	cash     []float64
	shares   []float64
	value    []float64
	returns  []float64
}

// Portfolio is the result of a backtest: one column per parameter
// combination, all sharing the same price index.
type Portfolio struct {
	cfg    Config
	prices Prices
	cols   []column
}

// Stats summarizes a single-column portfolio. Percentages follow the
// engine's reporting convention (12.5 means 12.5%).
type Stats struct {
	Start            time.Time
	End              time.Time
	Bars             int
	InitCash         float64
	EndValue         float64
	TotalReturnPct   float64
	MaxDrawdownPct   float64
	SharpeRatio      float64
	AnnualizedReturn float64
	LastdayReturn    float64
	Orders           int
}

// Columns returns the number of parameter combinations held.
func (p *Portfolio) Columns() int { return len(p.cols) }

// Config returns the cost model the portfolio was simulated with.
func (p *Portfolio) Config() Config { return p.cfg }

// Params returns the parameter assignment of column i.
func (p *Portfolio) Params(i int) domain.ParamDict { return p.cols[i].params.Clone() }

// Select collapses the portfolio to column i.
func (p *Portfolio) Select(i int) (*Portfolio, error) {
	if i < 0 || i >= len(p.cols) {
		return nil, fmt.Errorf("backtest: column %d out of range [0,%d)", i, len(p.cols))
	}
	return &Portfolio{cfg: p.cfg, prices: p.prices, cols: []column{p.cols[i]}}, nil
}

// TotalReturns returns the total return of every column as a fraction.
func (p *Portfolio) TotalReturns() []float64 {
	return p.each(func(c column) float64 { return c.totalReturn() })
}

// SharpeRatios returns the annualized Sharpe ratio of every column. A column
// with zero return variance yields ±Inf, or NaN when its mean is also zero.
func (p *Portfolio) SharpeRatios() []float64 {
	ann := p.cfg.annFactor()
	return p.each(func(c column) float64 { return sharpe(c.returns, ann) })
}

// MaxDrawdowns returns the maximum peak-to-trough decline of every column as
// a positive fraction.
func (p *Portfolio) MaxDrawdowns() []float64 {
	return p.each(func(c column) float64 { return maxDrawdown(c.value) })
}

// Stats summarizes a single-column portfolio.
func (p *Portfolio) Stats() (Stats, error) {
	if len(p.cols) != 1 {
		return Stats{}, ErrMultiColumn
	}
	c := p.cols[0]
	n := len(c.value)
	st := Stats{
		Bars:             n,
		InitCash:         c.initCash,
		EndValue:         c.initCash,
		TotalReturnPct:   c.totalReturn() * 100,
		MaxDrawdownPct:   maxDrawdown(c.value) * 100,
		SharpeRatio:      sharpe(c.returns, p.cfg.annFactor()),
		AnnualizedReturn: annualized(c.totalReturn(), n, p.cfg.annFactor()),
		Orders:           c.orders,
	}
	if n > 0 {
		st.Start = p.prices.Index[0]
		st.End = p.prices.Index[n-1]
		st.EndValue = c.value[n-1]
		st.LastdayReturn = c.returns[n-1]
	}
	return st, nil
}

func (p *Portfolio) each(fn func(column) float64) []float64 {
	out := make([]float64, len(p.cols))
	for i, c := range p.cols {
		out[i] = fn(c)
	}
	return out
}

func (c column) totalReturn() float64 {
	if len(c.value) == 0 || c.initCash == 0 {
		return 0
	}
	return (c.value[len(c.value)-1] - c.initCash) / c.initCash
}

func sharpe(returns []float64, annFactor float64) float64 {
	n := len(returns)
	if n < 2 {
		return math.NaN()
	}
	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(n)

	var ss float64
	for _, r := range returns {
		d := r - mean
		ss += d * d
	}
	std := math.Sqrt(ss / float64(n-1))
	if std == 0 {
		switch {
		case mean > 0:
			return math.Inf(1)
		case mean < 0:
			return math.Inf(-1)
		default:
			return math.NaN()
		}
	}
	return mean / std * math.Sqrt(annFactor)
}

func maxDrawdown(value []float64) float64 {
	var peak, worst float64
	for i, v := range value {
		if i == 0 || v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := 1 - v/peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

func annualized(totalReturn float64, bars int, annFactor float64) float64 {
	if bars == 0 {
		return 0
	}
	return math.Pow(1+totalReturn, annFactor/float64(bars)) - 1
}
