package backtest

import (
	"errors"
	"math"
	"testing"
	"time"

	"stratfolio/internal/domain"
)

func testPrices(close ...float64) Prices {
	p := Prices{
		Index: make([]time.Time, len(close)),
		Open:  make([]float64, len(close)),
		Close: close,
	}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range close {
		p.Index[i] = start.AddDate(0, 0, i)
		p.Open[i] = close[i]
	}
	return p
}

func signals(n int, at ...int) []bool {
	s := make([]bool, n)
	for _, i := range at {
		s[i] = true
	}
	return s
}

func frictionless() Config {
	return Config{Size: 100, Freq: 24 * time.Hour}
}

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func TestFromSignalsRoundTrip(t *testing.T) {
	prices := testPrices(10, 10, 12, 12, 11)
	combo := Combination{
		Params:  domain.ParamDict{"w": 1},
		Entries: signals(5, 1),
		Exits:   signals(5, 3),
	}

	pf, err := FromSignals(prices, []Combination{combo}, frictionless())
	if err != nil {
		t.Fatalf("FromSignals returned error: %v", err)
	}
	st, err := pf.Stats()
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}

	// Auto init cash covers the single 100 notional entry.
	approx(t, "InitCash", st.InitCash, 100)
	// 10 shares bought at 10, sold at 12.
	approx(t, "EndValue", st.EndValue, 120)
	approx(t, "TotalReturnPct", st.TotalReturnPct, 20)
	if st.Orders != 2 {
		t.Errorf("Orders = %d, want 2", st.Orders)
	}
	approx(t, "LastdayReturn", st.LastdayReturn, 0)
}

func TestFromSignalsCostsAndDrawdown(t *testing.T) {
	prices := testPrices(10, 8, 10)
	cfg := Config{Fees: 0.01, Slippage: 0.1, Size: 100, Freq: 24 * time.Hour}
	combo := Combination{Entries: signals(3, 0), Exits: make([]bool, 3)}

	pf, err := FromSignals(prices, []Combination{combo}, cfg)
	if err != nil {
		t.Fatalf("FromSignals returned error: %v", err)
	}
	st, _ := pf.Stats()

	// 100 notional plus 1% fee.
	approx(t, "InitCash", st.InitCash, 101)
	shares := 100 / 11.0
	approx(t, "EndValue", st.EndValue, shares*10)
	wantDD := 1 - (shares*8)/(shares*10)
	approx(t, "MaxDrawdownPct", st.MaxDrawdownPct, wantDD*100)
}

func TestConflictingSignalsIgnored(t *testing.T) {
	prices := testPrices(10, 11, 12)
	combo := Combination{Entries: signals(3, 0), Exits: signals(3, 0)}
	pf, err := FromSignals(prices, []Combination{combo}, frictionless())
	if err != nil {
		t.Fatalf("FromSignals returned error: %v", err)
	}
	st, _ := pf.Stats()
	if st.Orders != 0 {
		t.Errorf("Orders = %d, want 0 for a bar with both signals", st.Orders)
	}
}

func TestFromSignalsValidation(t *testing.T) {
	prices := testPrices(1, 2, 3)
	if _, err := FromSignals(prices, nil, frictionless()); err == nil {
		t.Error("FromSignals should reject an empty combination list")
	}
	bad := Combination{Entries: signals(2), Exits: signals(3)}
	if _, err := FromSignals(prices, []Combination{bad}, frictionless()); err == nil {
		t.Error("FromSignals should reject misaligned signals")
	}
	if _, err := FromSignals(prices, []Combination{{Entries: signals(3), Exits: signals(3)}}, Config{}); err == nil {
		t.Error("FromSignals should reject a zero order size")
	}
}

func TestSharpeDegenerate(t *testing.T) {
	if v := sharpe([]float64{0.01, 0.01, 0.01}, 365); !math.IsInf(v, 1) {
		t.Errorf("sharpe(constant positive) = %v, want +Inf", v)
	}
	if v := sharpe([]float64{0, 0, 0}, 365); !math.IsNaN(v) {
		t.Errorf("sharpe(zeros) = %v, want NaN", v)
	}
	if v := sharpe([]float64{0.01}, 365); !math.IsNaN(v) {
		t.Errorf("sharpe(single) = %v, want NaN", v)
	}
	got := sharpe([]float64{0.01, -0.01, 0.02}, 365)
	mean := 0.02 / 3
	std := math.Sqrt(((0.01-mean)*(0.01-mean) + (-0.01-mean)*(-0.01-mean) + (0.02-mean)*(0.02-mean)) / 2)
	approx(t, "sharpe", got, mean/std*math.Sqrt(365))
}

func TestAnnualized(t *testing.T) {
	approx(t, "annualized(full year)", annualized(0.1, 365, 365), 0.1)
	approx(t, "annualized(no bars)", annualized(0.1, 0, 365), 0)
}

func TestSelectCollapsesColumn(t *testing.T) {
	prices := testPrices(10, 11, 12, 13)
	combos := []Combination{
		{Params: domain.ParamDict{"w": 1}, Entries: signals(4), Exits: signals(4)},
		{Params: domain.ParamDict{"w": 2}, Entries: signals(4, 0), Exits: signals(4)},
	}
	pf, err := FromSignals(prices, combos, frictionless())
	if err != nil {
		t.Fatalf("FromSignals returned error: %v", err)
	}
	if pf.Columns() != 2 {
		t.Fatalf("Columns() = %d, want 2", pf.Columns())
	}
	if _, err := pf.Stats(); !errors.Is(err, ErrMultiColumn) {
		t.Errorf("Stats() on two columns error = %v, want ErrMultiColumn", err)
	}

	best, err := pf.Select(1)
	if err != nil {
		t.Fatalf("Select returned error: %v", err)
	}
	if best.Columns() != 1 || best.Params(0)["w"] != 2 {
		t.Errorf("Select(1) params = %v, want w=2", best.Params(0))
	}
	if _, err := pf.Select(2); err == nil {
		t.Error("Select out of range should fail")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	prices := testPrices(10, 9, 11, 12, 10, 13, 14)
	combo := Combination{
		Params:  domain.ParamDict{"window1": 4, "window2": 20},
		Entries: signals(7, 1, 4),
		Exits:   signals(7, 3, 6),
	}
	pf, err := FromSignals(prices, []Combination{combo}, DefaultConfig())
	if err != nil {
		t.Fatalf("FromSignals returned error: %v", err)
	}

	data, err := pf.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary returned error: %v", err)
	}
	loaded, err := Load(data)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	want, _ := pf.Stats()
	got, err := loaded.Stats()
	if err != nil {
		t.Fatalf("Stats on loaded snapshot returned error: %v", err)
	}
	if got.TotalReturnPct != want.TotalReturnPct {
		t.Errorf("TotalReturnPct = %v, want %v", got.TotalReturnPct, want.TotalReturnPct)
	}
	if got.SharpeRatio != want.SharpeRatio {
		t.Errorf("SharpeRatio = %v, want %v", got.SharpeRatio, want.SharpeRatio)
	}
	if got.MaxDrawdownPct != want.MaxDrawdownPct {
		t.Errorf("MaxDrawdownPct = %v, want %v", got.MaxDrawdownPct, want.MaxDrawdownPct)
	}
	if got.Orders != want.Orders || !got.End.Equal(want.End) {
		t.Errorf("loaded stats = %+v, want %+v", got, want)
	}
	if p := loaded.Params(0); p["window1"] != 4 || p["window2"] != 20 {
		t.Errorf("loaded params = %v, want window1=4 window2=20", p)
	}
	if loaded.Config() != pf.Config() {
		t.Errorf("loaded config = %+v, want %+v", loaded.Config(), pf.Config())
	}
}

func TestSnapshotErrors(t *testing.T) {
	if _, err := Load(nil); !errors.Is(err, ErrMissingArtifact) {
		t.Errorf("Load(nil) error = %v, want ErrMissingArtifact", err)
	}

	empty, err := FromSignals(Prices{}, []Combination{{}}, frictionless())
	if err != nil {
		t.Fatalf("FromSignals on empty prices returned error: %v", err)
	}
	if _, err := empty.MarshalBinary(); !errors.Is(err, ErrMissingArtifact) {
		t.Errorf("MarshalBinary on empty portfolio error = %v, want ErrMissingArtifact", err)
	}
}
