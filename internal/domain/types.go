// Package domain holds the core value types shared by the strategy runner,
// the backtest engine and the portfolio store.
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Market identifies the exchange or venue a symbol trades on.
type Market string

const (
	MarketUS Market = "us"
	MarketCN Market = "cn"
)

// Bar is one OHLCV candle.
type Bar struct {
	Symbol     string
	Timestamp  time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
	TradeCount int64
	VWAP       float64
}

// Instrument is a row of the reference instrument table. A portfolio can only
// be saved when every one of its symbols resolves to an Instrument.
type Instrument struct {
	Symbol string
	Market Market
	Name   string
}

// ParamType is the numeric kind of a strategy parameter. Only integer
// parameters are supported; an empty Type means int.
type ParamType string

const ParamTypeInt ParamType = "int"

// ParamDef declares one tunable strategy parameter. A Step of zero means the
// parameter is fixed at the midpoint of [Min, Max] and is not swept.
type ParamDef struct {
	Name string
	Type ParamType
	Min  float64
	Max  float64
	Step float64
}

// Validate checks the type, Min <= Max and Step >= 0.
func (p ParamDef) Validate() error {
	if p.Name == "" {
		return errors.New("param def has empty name")
	}
	if p.Type != "" && p.Type != ParamTypeInt {
		return fmt.Errorf("param %q: unsupported type %q", p.Name, p.Type)
	}
	if p.Min > p.Max {
		return fmt.Errorf("param %q: min %v greater than max %v", p.Name, p.Min, p.Max)
	}
	if p.Step < 0 {
		return fmt.Errorf("param %q: negative step %v", p.Name, p.Step)
	}
	return nil
}

// ParamDict maps a parameter name to the concrete value chosen for it.
type ParamDict map[string]int

// Clone returns a copy of d.
func (d ParamDict) Clone() ParamDict {
	out := make(ParamDict, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Selection is the market, symbols and date range a strategy runs against.
type Selection struct {
	Market    Market
	Symbols   []string
	StartDate time.Time
	EndDate   time.Time
}

// CleanSymbols returns the symbols with blanks removed and whitespace trimmed.
func (s Selection) CleanSymbols() []string {
	out := make([]string, 0, len(s.Symbols))
	for _, sym := range s.Symbols {
		sym = strings.TrimSpace(sym)
		if sym != "" {
			out = append(out, sym)
		}
	}
	return out
}

// Validate checks the selection has at least one symbol and an ordered range.
func (s Selection) Validate() error {
	if len(s.CleanSymbols()) == 0 {
		return errors.New("selection has no symbols")
	}
	if s.EndDate.Before(s.StartDate) {
		return fmt.Errorf("selection end date %s before start date %s",
			s.EndDate.Format(time.DateOnly), s.StartDate.Format(time.DateOnly))
	}
	return nil
}

// PortfolioName derives the stored name of a portfolio from its strategy and
// symbols, e.g. "RSI3_AAPL&MSFT".
func PortfolioName(strategy string, symbols []string) string {
	return strategy + "_" + strings.Join(symbols, "&")
}

// PortfolioRecord is one saved backtest.
type PortfolioRecord struct {
	ID            int64
	Name          string
	Description   string
	CreateDate    time.Time
	StartDate     time.Time
	EndDate       time.Time
	TotalReturn   float64
	AnnualReturn  float64
	LastdayReturn float64
	SharpeRatio   float64
	MaxDrawdown   float64
	ParamDict     ParamDict
	Strategy      string
	Symbols       []string
	Market        Market
	Snapshot      []byte
}

// Selection rebuilds the record's selection with the given end date.
func (r PortfolioRecord) Selection(end time.Time) Selection {
	return Selection{
		Market:    r.Market,
		Symbols:   append([]string(nil), r.Symbols...),
		StartDate: r.StartDate,
		EndDate:   end,
	}
}

// Summary is the rounded statistics block stored with every portfolio.
type Summary struct {
	TotalReturn   float64
	AnnualReturn  float64
	LastdayReturn float64
	SharpeRatio   float64
	MaxDrawdown   float64
}

// PortfolioUpdate is the set of fields rewritten when a portfolio is
// re-run against a fresh date range.
type PortfolioUpdate struct {
	EndDate  time.Time
	Summary  Summary
	Snapshot []byte
}
