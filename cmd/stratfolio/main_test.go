package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"stratfolio/internal/config"
	"stratfolio/internal/domain"
	"stratfolio/internal/marketdata"
	"stratfolio/internal/portfolio"
	"stratfolio/internal/store"
	"stratfolio/internal/strategy/builtins"
)

// newTestApp wires an app against a temp directory holding daily AAPL bars
// for 2023 and an instrument table synced from them.
func newTestApp(t *testing.T) *app {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Storage.DataDir = dir
	cfg.Storage.SQLitePath = filepath.Join(dir, "stratfolio.db")
	cfg.Telegram = config.Telegram{}

	db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	bars := store.NewParquetStore(dir)
	a := &app{
		cfg:      cfg,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		bars:     bars,
		db:       db,
		registry: builtins.NewRegistry(),
		provider: marketdata.NewStoreProvider(bars),
	}
	t.Cleanup(a.Close)

	var series []domain.Bar
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 395; i++ {
		c := 100 + 10*math.Sin(float64(i)/7) + 0.05*float64(i)
		series = append(series, domain.Bar{Symbol: "AAPL", Timestamp: start.AddDate(0, 0, i), Open: c, Close: c})
	}
	if err := bars.WriteBars(ctx, domain.MarketUS, series); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}
	if err := a.instruments(ctx, []string{"sync"}); err != nil {
		t.Fatalf("instruments sync: %v", err)
	}
	return a
}

func maxSRArgs(symbols string) []string {
	return []string{"-strategy", "SMACross", "-symbols", symbols, "-start", "2023-01-01", "-end", "2024-01-31", "-save"}
}

func TestMaxSRSave(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	if err := a.maxSR(ctx, maxSRArgs("AAPL")); err != nil {
		t.Fatalf("maxsr: %v", err)
	}
	rows, err := a.db.ListPortfolios(ctx)
	if err != nil {
		t.Fatalf("ListPortfolios: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d saved portfolios, want 1", len(rows))
	}
	if rows[0].Name != "SMACross_AAPL" || !reflect.DeepEqual(rows[0].Symbols, []string{"AAPL"}) {
		t.Errorf("saved %q with symbols %v", rows[0].Name, rows[0].Symbols)
	}
}

func TestMaxSRSaveRejectsUnknownSymbol(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	// NOTREAL has no bars, so the sweep runs on AAPL alone; the save must
	// still see the requested selection.
	err := a.maxSR(ctx, maxSRArgs("AAPL,NOTREAL"))
	var verr *portfolio.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("maxsr error = %v, want *portfolio.ValidationError", err)
	}
	if !reflect.DeepEqual(verr.Unresolved, []string{"NOTREAL"}) {
		t.Errorf("Unresolved = %v, want [NOTREAL]", verr.Unresolved)
	}
	rows, err := a.db.ListPortfolios(ctx)
	if err != nil {
		t.Fatalf("ListPortfolios: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("got %d saved portfolios after a rejected save, want 0", len(rows))
	}
}
