package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"stratfolio/internal/backtest"
	"stratfolio/internal/domain"
	"stratfolio/internal/indicator"
)

var (
	// ErrNoData is returned when no symbol of a selection has any bars.
	ErrNoData = errors.New("strategy: no market data for selection")

	// ErrNoCandidate is returned when every combination of a sweep has an
	// infinite or undefined Sharpe ratio.
	ErrNoCandidate = errors.New("strategy: no combination with a finite Sharpe ratio")

	// ErrNotRun is returned by accessors called before a successful run.
	ErrNotRun = errors.New("strategy: runner has not been run")
)

// BarSource loads daily bars for one symbol.
type BarSource interface {
	GetStock(ctx context.Context, market domain.Market, symbol string, start, end time.Time) ([]domain.Bar, error)
}

// SurfaceCell is one combination of a sweep and the statistics it produced.
type SurfaceCell struct {
	Params      domain.ParamDict
	TotalReturn float64
	SharpeRatio float64
	MaxDrawdown float64
}

// Surface is the diagnostics payload of a multi-valued sweep. Axes lists at
// most the first three parameter names; Cells holds every combination.
type Surface struct {
	Name  string
	Axes  []string
	Cells []SurfaceCell
}

// DiagnosticsSink receives optimization surfaces. Sink failures are logged
// and never change the selected combination.
type DiagnosticsSink interface {
	Surface(ctx context.Context, s Surface) error
}

// Options configures a Runner.
type Options struct {
	// Backtest is the cost model. The zero value means backtest.DefaultConfig.
	Backtest backtest.Config

	// Params pins every parameter to one value instead of sweeping the
	// strategy's declared ranges.
	Params domain.ParamDict

	Sink   DiagnosticsSink
	Logger *slog.Logger
}

// Runner evaluates one strategy over one selection.
type Runner struct {
	strat   Strategy
	sel     domain.Selection
	symbols []string
	prices  backtest.Prices
	grid    *Grid
	cfg     backtest.Config
	sink    DiagnosticsSink
	log     *slog.Logger

	pf     *backtest.Portfolio
	params domain.ParamDict
}

// NewRunner fetches bars for every symbol of sel and prepares the grid.
// Symbols without data are dropped with a warning; if none remain the
// runner cannot be built and ErrNoData is returned.
func NewRunner(ctx context.Context, strat Strategy, sel domain.Selection, src BarSource, opts Options) (*Runner, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "strategy", "strategy", strat.Name())

	if err := sel.Validate(); err != nil {
		return nil, err
	}

	cfg := opts.Backtest
	if cfg == (backtest.Config{}) {
		cfg = backtest.DefaultConfig()
	}

	r := &Runner{
		strat: strat,
		sel:   sel,
		cfg:   cfg,
		sink:  opts.Sink,
		log:   log,
	}

	var primary []domain.Bar
	for _, sym := range sel.CleanSymbols() {
		bars, err := src.GetStock(ctx, sel.Market, sym, sel.StartDate, sel.EndDate)
		if err != nil {
			return nil, fmt.Errorf("loading %s/%s: %w", sel.Market, sym, err)
		}
		if len(bars) == 0 {
			log.Warn("no data for symbol, dropping it", "symbol", sym, "market", sel.Market)
			continue
		}
		if primary == nil {
			primary = bars
		}
		r.symbols = append(r.symbols, sym)
	}
	if len(r.symbols) == 0 {
		return nil, fmt.Errorf("%w: %s %v", ErrNoData, sel.Market, sel.Symbols)
	}
	r.prices = backtest.PricesFromBars(primary)

	var err error
	if opts.Params != nil {
		r.grid, err = FixedGrid(strat.Params(), opts.Params)
	} else {
		r.grid, err = NewGrid(strat.Params())
	}
	if err != nil {
		return nil, fmt.Errorf("%s grid: %w", strat.Name(), err)
	}
	return r, nil
}

// Symbols returns the symbols that had data, in selection order.
func (r *Runner) Symbols() []string { return append([]string(nil), r.symbols...) }

// Strategy returns the strategy being run.
func (r *Runner) Strategy() Strategy { return r.strat }

// Grid returns the current parameter grid.
func (r *Runner) Grid() *Grid { return r.grid }

// Portfolio returns the result of the last successful run.
func (r *Runner) Portfolio() (*backtest.Portfolio, error) {
	if r.pf == nil {
		return nil, ErrNotRun
	}
	return r.pf, nil
}

// Params returns the parameters of the last successful run.
func (r *Runner) Params() (domain.ParamDict, error) {
	if r.pf == nil {
		return nil, ErrNotRun
	}
	return r.params.Clone(), nil
}

// Run backtests every combination of the grid and keeps the best one.
//
// Signals are always shifted forward by one bar so a decision made on bar t's
// close executes on bar t+1. With more than one combination the column with
// the highest finite Sharpe ratio wins; the first wins ties.
func (r *Runner) Run(ctx context.Context, emitDiagnostics bool) error {
	combos := r.grid.Combinations()
	in := NewInput(r.prices)

	cols := make([]backtest.Combination, len(combos))
	for i, params := range combos {
		if err := ctx.Err(); err != nil {
			return err
		}
		entries, exits, err := r.strat.Signals(in, params)
		if err != nil {
			return fmt.Errorf("%s signals %v: %w", r.strat.Name(), params, err)
		}
		cols[i] = backtest.Combination{
			Params:  params,
			Entries: indicator.FShift(entries, 1),
			Exits:   indicator.FShift(exits, 1),
		}
	}

	pf, err := backtest.FromSignals(r.prices, cols, r.cfg)
	if err != nil {
		return fmt.Errorf("%s backtest: %w", r.strat.Name(), err)
	}

	if pf.Columns() > 1 {
		srs := pf.SharpeRatios()
		if emitDiagnostics {
			r.emitSurface(ctx, pf, srs)
		}
		best, err := SelectMaxSharpe(srs)
		if err != nil {
			return err
		}
		if pf, err = pf.Select(best); err != nil {
			return err
		}
		r.log.Debug("selected combination", "params", pf.Params(0), "sharpe", srs[best], "candidates", len(srs))
	}

	r.pf = pf
	r.params = pf.Params(0)
	return nil
}

// MaxSR replaces the grid and runs a sweep. When emit is set the surface is
// sent to the sink and the selected portfolio's statistics are logged.
func (r *Runner) MaxSR(ctx context.Context, grid *Grid, emit bool) error {
	if grid != nil {
		r.grid = grid
	}
	if err := r.Run(ctx, emit); err != nil {
		return err
	}
	if emit {
		if st, err := r.pf.Stats(); err == nil {
			r.log.Info("max sharpe portfolio",
				"params", r.params,
				"total_return_pct", st.TotalReturnPct,
				"sharpe", st.SharpeRatio,
				"max_drawdown_pct", st.MaxDrawdownPct,
				"orders", st.Orders,
			)
		}
	}
	return nil
}

// Update runs exactly one combination and returns its portfolio.
func (r *Runner) Update(ctx context.Context, params domain.ParamDict) (*backtest.Portfolio, error) {
	grid, err := FixedGrid(r.strat.Params(), params)
	if err != nil {
		return nil, fmt.Errorf("%s params: %w", r.strat.Name(), err)
	}
	r.grid = grid
	if err := r.Run(ctx, false); err != nil {
		return nil, err
	}
	return r.pf, nil
}

func (r *Runner) emitSurface(ctx context.Context, pf *backtest.Portfolio, srs []float64) {
	if r.sink == nil {
		return
	}
	axes := r.grid.Names()
	if len(axes) > 3 {
		axes = axes[:3]
	}
	trs := pf.TotalReturns()
	dds := pf.MaxDrawdowns()
	s := Surface{
		Name:  domain.PortfolioName(r.strat.Name(), r.symbols),
		Axes:  axes,
		Cells: make([]SurfaceCell, pf.Columns()),
	}
	for i := range s.Cells {
		s.Cells[i] = SurfaceCell{
			Params:      pf.Params(i),
			TotalReturn: trs[i],
			SharpeRatio: srs[i],
			MaxDrawdown: dds[i],
		}
	}
	if err := r.sink.Surface(ctx, s); err != nil {
		r.log.Warn("diagnostics sink failed", "error", err)
	}
}

// SelectMaxSharpe returns the index of the largest Sharpe ratio, ignoring
// +Inf and NaN. Ties keep the first occurrence.
func SelectMaxSharpe(srs []float64) (int, error) {
	best := -1
	for i, v := range srs {
		if math.IsNaN(v) || math.IsInf(v, 1) {
			continue
		}
		if best < 0 || v > srs[best] {
			best = i
		}
	}
	if best < 0 {
		return 0, ErrNoCandidate
	}
	return best, nil
}
