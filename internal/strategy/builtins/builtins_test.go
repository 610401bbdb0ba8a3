package builtins

import (
	"testing"
	"time"

	"stratfolio/internal/backtest"
	"stratfolio/internal/domain"
	"stratfolio/internal/strategy"
)

func input(closes ...float64) *strategy.Input {
	p := backtest.Prices{Index: make([]time.Time, len(closes)), Open: closes, Close: closes}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range closes {
		p.Index[i] = start.AddDate(0, 0, i)
	}
	return strategy.NewInput(p)
}

func TestRegister(t *testing.T) {
	r := NewRegistry()
	names := r.List()
	if len(names) != 2 || names[0] != "RSI3" || names[1] != "SMACross" {
		t.Fatalf("List() = %v, want [RSI3 SMACross]", names)
	}
	for _, name := range names {
		s, err := r.New(name)
		if err != nil {
			t.Fatalf("New(%q): %v", name, err)
		}
		if s.Name() != name {
			t.Errorf("New(%q).Name() = %q", name, s.Name())
		}
	}
}

func TestRSI3Grid(t *testing.T) {
	g, err := strategy.NewGrid(NewRSI3().Params())
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	want := map[string]int{"window1": 9, "window2": 15, "window3": 22}
	for name, n := range want {
		vals := g.Values(name)
		if len(vals) != n {
			t.Errorf("%s has %d values, want %d", name, len(vals), n)
		}
	}
	if v := g.Values("window3"); v[len(v)-1] != 248 {
		t.Errorf("last window3 value = %d, want 248", v[len(v)-1])
	}
	if g.Size() != 9*15*22 {
		t.Errorf("Size() = %d, want %d", g.Size(), 9*15*22)
	}
}

func TestRSI3Signals(t *testing.T) {
	// Twenty falling bars then three rising ones: the short RSI recovers
	// fastest, so on the last bar rsi(2) > rsi(4) > rsi(6).
	var closes []float64
	for c := 30.0; c > 10; c-- {
		closes = append(closes, c)
	}
	closes = append(closes, 12, 13, 14)

	entries, exits, err := NewRSI3().Signals(input(closes...), domain.ParamDict{"window1": 2, "window2": 4, "window3": 6})
	if err != nil {
		t.Fatalf("Signals: %v", err)
	}
	last := len(closes) - 1
	if !entries[last] {
		t.Error("expected an entry on the last bar")
	}
	if exits[last] {
		t.Error("unexpected exit on the last bar")
	}
	// During the steady decline all three RSIs are zero: no strict ordering.
	if entries[15] || exits[15] {
		t.Errorf("bar 15 entries=%v exits=%v, want neither", entries[15], exits[15])
	}
	// Warm-up bars never signal.
	for i := 0; i < 6; i++ {
		if entries[i] || exits[i] {
			t.Errorf("warm-up bar %d produced a signal", i)
		}
	}
}

func TestSMACrossSignals(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	entries, exits, err := NewSMACross().Signals(input(closes...), domain.ParamDict{"fast": 2, "slow": 4})
	if err != nil {
		t.Fatalf("Signals: %v", err)
	}
	if entries[2] {
		t.Error("entry before the slow average is defined")
	}
	for i := 3; i < len(closes); i++ {
		if !entries[i] || exits[i] {
			t.Errorf("bar %d entries=%v exits=%v, want entry only", i, entries[i], exits[i])
		}
	}
}
