// Package portfolio keeps saved backtests: it validates and persists new
// portfolios, re-runs stored configurations against fresh data and keeps an
// in-memory copy of the portfolio table.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"stratfolio/internal/backtest"
	"stratfolio/internal/domain"
	"stratfolio/internal/notify"
	"stratfolio/internal/store"
	"stratfolio/internal/strategy"
	"stratfolio/internal/util"
)

// Repository is the persistence the Store needs: the portfolio table plus
// symbol resolution against the instrument table.
type Repository interface {
	store.PortfolioStore
	ResolveInstruments(ctx context.Context, market domain.Market, symbols []string) ([]domain.Instrument, error)
}

// Options configures a Store.
type Options struct {
	// Backtest is the cost model used when re-running portfolios. The zero
	// value means backtest.DefaultConfig.
	Backtest backtest.Config

	Calendar *util.Calendar
	Notifier notify.Notifier
	Logger   *slog.Logger
}

// Store is the portfolio working set. It is not safe for concurrent use.
type Store struct {
	repo     Repository
	registry *strategy.Registry
	provider strategy.BarSource
	cfg      backtest.Config
	cal      *util.Calendar
	notifier notify.Notifier
	log      *slog.Logger

	records []domain.PortfolioRecord

	snapshot func(*backtest.Portfolio) ([]byte, error)
}

// errUnchanged marks an update that produced no snapshot and left the row
// as it was.
var errUnchanged = errors.New("portfolio unchanged")

// NewStore loads every stored portfolio into the working set.
func NewStore(ctx context.Context, repo Repository, registry *strategy.Registry, provider strategy.BarSource, opts Options) (*Store, error) {
	s := &Store{
		repo:     repo,
		registry: registry,
		provider: provider,
		cfg:      opts.Backtest,
		cal:      opts.Calendar,
		notifier: opts.Notifier,
		log:      opts.Logger,
		snapshot: (*backtest.Portfolio).MarshalBinary,
	}
	if s.cfg == (backtest.Config{}) {
		s.cfg = backtest.DefaultConfig()
	}
	if s.cal == nil {
		s.cal = util.NewCalendar(domain.MarketUS)
	}
	if s.notifier == nil {
		s.notifier = notify.Nop{}
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.log = s.log.With("component", "portfolio")

	if err := s.reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Records returns a copy of the working set in id order.
func (s *Store) Records() []domain.PortfolioRecord {
	out := make([]domain.PortfolioRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Add saves pf as a new portfolio. strategyName must be registered, params
// must name exactly its declared parameters and every symbol of sel must be
// a known instrument of sel.Market; otherwise a *ValidationError is returned
// and nothing is written.
func (s *Store) Add(ctx context.Context, sel domain.Selection, strategyName string, params domain.ParamDict, pf *backtest.Portfolio) error {
	strat, err := s.registry.New(strategyName)
	if err != nil {
		return s.fail("add", 0, &ValidationError{Market: sel.Market, Strategy: strategyName, Err: err})
	}
	if _, err := strategy.FixedGrid(strat.Params(), params); err != nil {
		return s.fail("add", 0, &ValidationError{Market: sel.Market, Strategy: strategyName, Err: err})
	}

	symbols := uniqueSymbols(sel.CleanSymbols())
	if len(symbols) == 0 {
		return s.fail("add", 0, &ValidationError{Market: sel.Market})
	}

	known, err := s.repo.ResolveInstruments(ctx, sel.Market, symbols)
	if err != nil {
		return s.fail("add", 0, &PersistenceError{Op: "resolve symbols", Err: err})
	}
	if len(known) != len(symbols) {
		return s.fail("add", 0, &ValidationError{Market: sel.Market, Unresolved: unresolved(symbols, known)})
	}

	snapshot, err := s.snapshot(pf)
	if err != nil {
		return s.fail("add", 0, fmt.Errorf("serializing portfolio: %w", err))
	}
	sum, err := Summarize(pf)
	if err != nil {
		return s.fail("add", 0, err)
	}

	rec := &domain.PortfolioRecord{
		Name:          domain.PortfolioName(strategyName, symbols),
		Description:   strategyName,
		CreateDate:    s.cal.Now(),
		StartDate:     sel.StartDate.UTC(),
		EndDate:       sel.EndDate.UTC(),
		TotalReturn:   sum.TotalReturn,
		AnnualReturn:  sum.AnnualReturn,
		LastdayReturn: sum.LastdayReturn,
		SharpeRatio:   sum.SharpeRatio,
		MaxDrawdown:   sum.MaxDrawdown,
		ParamDict:     params.Clone(),
		Strategy:      strategyName,
		Symbols:       symbols,
		Market:        sel.Market,
		Snapshot:      snapshot,
	}
	if err := s.repo.InsertPortfolio(ctx, rec); err != nil {
		return s.fail("add", 0, &PersistenceError{Op: "insert", Err: err})
	}
	s.log.Info("portfolio added", "id", rec.ID, "name", rec.Name, "sharpe", rec.SharpeRatio)
	return s.reload(ctx)
}

// Delete removes one portfolio.
func (s *Store) Delete(ctx context.Context, id int64) error {
	if err := s.repo.DeletePortfolio(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return s.fail("delete", id, fmt.Errorf("portfolio %d: %w", id, ErrNotFound))
		}
		return s.fail("delete", id, &PersistenceError{Op: "delete", ID: id, Err: err})
	}
	s.log.Info("portfolio deleted", "id", id)
	return s.reload(ctx)
}

// Update re-runs a stored portfolio from its start date to today with its
// stored parameters, then rewrites the end date, statistics and snapshot in
// one transaction. If no snapshot can be produced the row is left untouched
// and nil is returned.
func (s *Store) Update(ctx context.Context, id int64) error {
	if err := s.update(ctx, id); err != nil && !errors.Is(err, errUnchanged) {
		return err
	}
	return nil
}

func (s *Store) update(ctx context.Context, id int64) error {
	rec, ok := s.find(id)
	if !ok {
		return s.fail("update", id, fmt.Errorf("portfolio %d: %w", id, ErrNotFound))
	}

	end := s.cal.Today()
	sel := rec.Selection(end)
	sel.StartDate = rec.StartDate.UTC()

	strat, err := s.registry.New(rec.Strategy)
	if err != nil {
		return s.fail("update", id, err)
	}
	runner, err := strategy.NewRunner(ctx, strat, sel, s.provider, strategy.Options{Backtest: s.cfg, Logger: s.log})
	if err != nil {
		return s.fail("update", id, err)
	}
	pf, err := runner.Update(ctx, rec.ParamDict)
	if err != nil {
		return s.fail("update", id, err)
	}
	sum, err := Summarize(pf)
	if err != nil {
		return s.fail("update", id, err)
	}

	snapshot, err := s.snapshot(pf)
	if errors.Is(err, backtest.ErrMissingArtifact) {
		s.log.Warn("no snapshot produced, portfolio left unchanged", "id", id, "name", rec.Name)
		return errUnchanged
	}
	if err != nil {
		return s.fail("update", id, fmt.Errorf("serializing portfolio: %w", err))
	}

	upd := domain.PortfolioUpdate{EndDate: end, Summary: sum, Snapshot: snapshot}
	if err := s.repo.UpdatePortfolio(ctx, id, upd); err != nil {
		return s.fail("update", id, &PersistenceError{Op: "update", ID: id, Err: err})
	}
	s.log.Info("portfolio updated", "id", id, "name", rec.Name, "end", end.Format("2006-01-02"),
		"total_return", sum.TotalReturn, "sharpe", sum.SharpeRatio)
	return s.reload(ctx)
}

// UpdateAll updates every portfolio in id order and stops at the first
// failure, which is returned. Portfolios after it are not touched. A
// portfolio left unchanged is skipped without a notification.
func (s *Store) UpdateAll(ctx context.Context) error {
	for _, rec := range s.Records() {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.update(ctx, rec.ID)
		if errors.Is(err, errUnchanged) {
			continue
		}
		if err != nil {
			s.notifier.UpdateFailed(rec, err)
			return fmt.Errorf("updating %s (#%d): %w", rec.Name, rec.ID, err)
		}
		updated, _ := s.find(rec.ID)
		s.log.Info("update succeeded", "id", rec.ID, "name", rec.Name)
		s.notifier.PortfolioUpdated(updated)
	}
	return nil
}

// Load re-hydrates the stored snapshot of one portfolio.
func (s *Store) Load(ctx context.Context, id int64) (*backtest.Portfolio, error) {
	rec, err := s.repo.GetPortfolio(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, s.fail("load", id, fmt.Errorf("portfolio %d: %w", id, ErrNotFound))
		}
		return nil, s.fail("load", id, &PersistenceError{Op: "load", ID: id, Err: err})
	}
	pf, err := backtest.Load(rec.Snapshot)
	if err != nil {
		return nil, s.fail("load", id, fmt.Errorf("portfolio %d snapshot: %w", id, err))
	}
	return pf, nil
}

func (s *Store) reload(ctx context.Context) error {
	recs, err := s.repo.ListPortfolios(ctx)
	if err != nil {
		return s.fail("reload", 0, &PersistenceError{Op: "list", Err: err})
	}
	s.records = recs
	return nil
}

func (s *Store) find(id int64) (domain.PortfolioRecord, bool) {
	for _, r := range s.records {
		if r.ID == id {
			return r, true
		}
	}
	return domain.PortfolioRecord{}, false
}

func (s *Store) fail(op string, id int64, err error) error {
	s.log.Error("portfolio "+op+" failed", "id", id, "error", err)
	return err
}

func uniqueSymbols(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		if !seen[sym] {
			seen[sym] = true
			out = append(out, sym)
		}
	}
	return out
}

func unresolved(symbols []string, known []domain.Instrument) []string {
	have := make(map[string]bool, len(known))
	for _, in := range known {
		have[in.Symbol] = true
	}
	var out []string
	for _, sym := range symbols {
		if !have[sym] {
			out = append(out, sym)
		}
	}
	return out
}
