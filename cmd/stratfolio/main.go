package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"stratfolio/internal/backtest"
	"stratfolio/internal/config"
	"stratfolio/internal/domain"
	"stratfolio/internal/marketdata"
	"stratfolio/internal/notify"
	"stratfolio/internal/portfolio"
	"stratfolio/internal/store"
	"stratfolio/internal/strategy"
	"stratfolio/internal/strategy/builtins"
	"stratfolio/internal/util"
)

const version = "0.1.0"

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: stratfolio <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  version             Print the CLI version\n")
	fmt.Fprintf(os.Stderr, "  strategies          List registered strategies and their parameters\n")
	fmt.Fprintf(os.Stderr, "  instruments sync    Seed the instrument table (-source store|alpaca)\n")
	fmt.Fprintf(os.Stderr, "  instruments list    List known instruments\n")
	fmt.Fprintf(os.Stderr, "  fetch               Download daily bars into the local cache\n")
	fmt.Fprintf(os.Stderr, "  maxsr               Sweep a strategy's parameters and keep the best Sharpe\n")
	fmt.Fprintf(os.Stderr, "  list                List saved portfolios\n")
	fmt.Fprintf(os.Stderr, "  show -id N          Show the statistics of a saved portfolio\n")
	fmt.Fprintf(os.Stderr, "  update -id N        Re-run a saved portfolio up to today\n")
	fmt.Fprintf(os.Stderr, "  update-all          Re-run every saved portfolio, stopping at the first failure\n")
	fmt.Fprintf(os.Stderr, "  delete -id N        Delete a saved portfolio\n")
	fmt.Fprintf(os.Stderr, "\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	cmd, args := os.Args[1], os.Args[2:]

	switch cmd {
	case "version":
		fmt.Printf("stratfolio %s\n", version)
		return
	case "strategies":
		printStrategies(builtins.NewRegistry())
		return
	case "help", "-h", "--help":
		usage()
		return
	}

	app, err := newApp()
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	defer app.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch cmd {
	case "instruments":
		err = app.instruments(ctx, args)
	case "fetch":
		err = app.fetch(ctx, args)
	case "maxsr":
		err = app.maxSR(ctx, args)
	case "list":
		err = app.list(ctx)
	case "show":
		err = app.show(ctx, args)
	case "update":
		err = app.update(ctx, args)
	case "update-all":
		err = app.updateAll(ctx)
	case "delete":
		err = app.delete(ctx, args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		usage()
		app.Close()
		os.Exit(1)
	}
	if err != nil {
		app.Close()
		log.Fatalf("%s: %v", cmd, err)
	}
}

// app holds the long-lived collaborators shared by every command.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	bars     *store.ParquetStore
	db       *store.SQLiteStore
	registry *strategy.Registry
	provider marketdata.Provider
}

func newApp() (*app, error) {
	// A missing .env is fine.
	_ = godotenv.Load()

	cfgPath := "config/stratfolio.yaml"
	if p := os.Getenv("STRATFOLIO_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if errors.Is(err, os.ErrNotExist) {
		cfg = config.Default()
		err = cfg.Validate()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		log:      logger,
		bars:     store.NewParquetStore(cfg.Storage.DataDir),
		db:       db,
		registry: builtins.NewRegistry(),
	}
	if cfg.Alpaca.APIKey != "" {
		a.provider = marketdata.NewAlpacaProvider(cfg.Alpaca, a.bars)
	} else {
		logger.Info("no alpaca credentials, serving bars from the local cache")
		a.provider = marketdata.NewStoreProvider(a.bars)
	}
	return a, nil
}

func (a *app) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("closing database", "error", err)
		}
		a.db = nil
	}
}

func (a *app) backtestConfig() backtest.Config {
	return backtest.Config{
		Fees:     a.cfg.Backtest.Fees,
		Slippage: a.cfg.Backtest.Slippage,
		Size:     a.cfg.Backtest.Size,
		InitCash: a.cfg.Backtest.InitCash,
		Freq:     time.Duration(a.cfg.Backtest.FreqDays) * 24 * time.Hour,
	}
}

func (a *app) portfolios(ctx context.Context) (*portfolio.Store, error) {
	return portfolio.NewStore(ctx, a.db, a.registry, a.provider, portfolio.Options{
		Backtest: a.backtestConfig(),
		Notifier: notify.NewTelegram(a.cfg.Telegram, a.log),
		Logger:   a.log,
	})
}

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

func (a *app) instruments(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("expected sub-command: sync or list")
	}
	fs := flag.NewFlagSet("instruments "+args[0], flag.ExitOnError)
	market := fs.String("market", "us", "market")
	source := fs.String("source", "store", "instrument source for sync: store or alpaca")
	fs.Parse(args[1:])
	m := domain.Market(*market)

	switch args[0] {
	case "sync":
		var src marketdata.InstrumentSource
		switch *source {
		case "store":
			src = marketdata.NewStoreProvider(a.bars)
		case "alpaca":
			src = marketdata.NewAlpacaAssets(a.cfg.Alpaca)
		default:
			return fmt.Errorf("unknown source %q", *source)
		}
		list, err := src.Instruments(ctx, m)
		if err != nil {
			return err
		}
		if err := a.db.SaveInstruments(ctx, list); err != nil {
			return err
		}
		fmt.Printf("synced %d %s instruments from %s\n", len(list), m, *source)
		return nil

	case "list":
		list, err := a.db.ListInstruments(ctx, m)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SYMBOL\tMARKET\tNAME")
		for _, in := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\n", in.Symbol, in.Market, in.Name)
		}
		return w.Flush()
	}
	return fmt.Errorf("unknown instruments sub-command %q", args[0])
}

// selectionFlags registers the flags shared by fetch and maxsr.
func selectionFlags(fs *flag.FlagSet) func() (domain.Selection, error) {
	market := fs.String("market", "us", "market")
	symbols := fs.String("symbols", "", "comma-separated symbols")
	start := fs.String("start", "", "start date (YYYY-MM-DD)")
	end := fs.String("end", "", "end date (YYYY-MM-DD), default today")
	return func() (domain.Selection, error) {
		sel := domain.Selection{Market: domain.Market(*market), Symbols: strings.Split(*symbols, ",")}
		var err error
		if sel.StartDate, err = util.ParseDate(*start); err != nil {
			return sel, fmt.Errorf("-start: %w", err)
		}
		sel.EndDate = util.NewCalendar(sel.Market).Today()
		if *end != "" {
			if sel.EndDate, err = util.ParseDate(*end); err != nil {
				return sel, fmt.Errorf("-end: %w", err)
			}
		}
		return sel, sel.Validate()
	}
}

func (a *app) fetch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	parseSel := selectionFlags(fs)
	fs.Parse(args)
	sel, err := parseSel()
	if err != nil {
		return err
	}
	if a.cfg.Alpaca.APIKey == "" {
		return errors.New("alpaca credentials are required to fetch bars")
	}

	for _, sym := range sel.CleanSymbols() {
		bars, err := a.provider.GetStock(ctx, sel.Market, sym, sel.StartDate, sel.EndDate)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d bars\n", sym, len(bars))
	}
	return nil
}

func (a *app) maxSR(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("maxsr", flag.ExitOnError)
	name := fs.String("strategy", "RSI3", "strategy name")
	parseSel := selectionFlags(fs)
	surface := fs.Bool("surface", false, "write the optimization surface to the data directory")
	save := fs.Bool("save", false, "save the selected portfolio")
	fs.Parse(args)
	sel, err := parseSel()
	if err != nil {
		return err
	}

	strat, err := a.registry.New(*name)
	if err != nil {
		return err
	}
	opts := strategy.Options{Backtest: a.backtestConfig(), Logger: a.log}
	if *surface {
		opts.Sink = &surfaceSink{bars: a.bars}
	}
	runner, err := strategy.NewRunner(ctx, strat, sel, a.provider, opts)
	if err != nil {
		return err
	}
	a.log.Info("sweeping", "strategy", strat.Name(), "symbols", runner.Symbols(), "combinations", runner.Grid().Size())
	if err := runner.MaxSR(ctx, nil, *surface); err != nil {
		return err
	}

	pf, _ := runner.Portfolio()
	params, _ := runner.Params()
	st, err := pf.Stats()
	if err != nil {
		return err
	}
	fmt.Printf("params: %v\n", params)
	printStats(st)

	if !*save {
		return nil
	}
	ps, err := a.portfolios(ctx)
	if err != nil {
		return err
	}
	if err := ps.Add(ctx, sel, strat.Name(), params, pf); err != nil {
		return err
	}
	recs := ps.Records()
	fmt.Printf("saved as #%d %s\n", recs[len(recs)-1].ID, recs[len(recs)-1].Name)
	return nil
}

func (a *app) list(ctx context.Context) error {
	ps, err := a.portfolios(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTART\tEND\tRETURN\tANNUAL\tLASTDAY\tSHARPE\tMAXDD\tPARAMS")
	for _, r := range ps.Records() {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.2f\t%.2f\t%.4f\t%.2f\t%.2f\t%v\n",
			r.ID, r.Name, r.StartDate.Format(time.DateOnly), r.EndDate.Format(time.DateOnly),
			r.TotalReturn, r.AnnualReturn, r.LastdayReturn, r.SharpeRatio, r.MaxDrawdown, r.ParamDict)
	}
	return w.Flush()
}

func idFlag(name string, args []string) int64 {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	id := fs.Int64("id", 0, "portfolio id")
	fs.Parse(args)
	if *id <= 0 {
		fmt.Fprintf(os.Stderr, "%s: -id is required\n", name)
		os.Exit(2)
	}
	return *id
}

func (a *app) show(ctx context.Context, args []string) error {
	id := idFlag("show", args)
	ps, err := a.portfolios(ctx)
	if err != nil {
		return err
	}
	pf, err := ps.Load(ctx, id)
	if err != nil {
		return err
	}
	st, err := pf.Stats()
	if err != nil {
		return err
	}
	fmt.Printf("params: %v\n", pf.Params(0))
	printStats(st)
	return nil
}

func (a *app) update(ctx context.Context, args []string) error {
	id := idFlag("update", args)
	ps, err := a.portfolios(ctx)
	if err != nil {
		return err
	}
	return ps.Update(ctx, id)
}

func (a *app) updateAll(ctx context.Context) error {
	ps, err := a.portfolios(ctx)
	if err != nil {
		return err
	}
	return ps.UpdateAll(ctx)
}

func (a *app) delete(ctx context.Context, args []string) error {
	id := idFlag("delete", args)
	ps, err := a.portfolios(ctx)
	if err != nil {
		return err
	}
	return ps.Delete(ctx, id)
}

// ---------------------------------------------------------------------------
// Output
// ---------------------------------------------------------------------------

func printStrategies(r *strategy.Registry) {
	for _, name := range r.List() {
		s, _ := r.New(name)
		fmt.Println(name)
		for _, p := range s.Params() {
			fmt.Printf("  %-10s [%g, %g) step %g\n", p.Name, p.Min, p.Max, p.Step)
		}
	}
}

func printStats(st backtest.Stats) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Start\t%s\n", st.Start.Format(time.DateOnly))
	fmt.Fprintf(w, "End\t%s\n", st.End.Format(time.DateOnly))
	fmt.Fprintf(w, "Bars\t%d\n", st.Bars)
	fmt.Fprintf(w, "Init Cash\t%.2f\n", st.InitCash)
	fmt.Fprintf(w, "End Value\t%.2f\n", st.EndValue)
	fmt.Fprintf(w, "Total Return [%%]\t%.2f\n", st.TotalReturnPct)
	fmt.Fprintf(w, "Annualized Return\t%.4f\n", st.AnnualizedReturn)
	fmt.Fprintf(w, "Max Drawdown [%%]\t%.2f\n", st.MaxDrawdownPct)
	fmt.Fprintf(w, "Sharpe Ratio\t%.4f\n", st.SharpeRatio)
	fmt.Fprintf(w, "Last Day Return\t%.4f\n", st.LastdayReturn)
	fmt.Fprintf(w, "Orders\t%d\n", st.Orders)
	w.Flush()
}
