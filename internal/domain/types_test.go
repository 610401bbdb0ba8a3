package domain

import (
	"testing"
	"time"
)

func TestTypesExist(t *testing.T) {
	bar := Bar{}
	if bar.Symbol != "" {
		t.Error("expected empty Symbol for zero-value Bar")
	}
	if !bar.Timestamp.IsZero() {
		t.Error("expected zero Timestamp for zero-value Bar")
	}
	if bar.Open != 0 || bar.High != 0 || bar.Low != 0 || bar.Close != 0 {
		t.Error("expected zero OHLC values for zero-value Bar")
	}

	if MarketUS != "us" || MarketCN != "cn" {
		t.Error("Market constants have unexpected values")
	}
}

func TestParamDefValidate(t *testing.T) {
	tests := []struct {
		name    string
		def     ParamDef
		wantErr bool
	}{
		{"swept", ParamDef{Name: "window1", Type: ParamTypeInt, Min: 2, Max: 20, Step: 2}, false},
		{"fixed", ParamDef{Name: "window3", Type: ParamTypeInt, Min: 80, Max: 250}, false},
		{"min above max", ParamDef{Name: "w", Min: 30, Max: 20, Step: 1}, true},
		{"negative step", ParamDef{Name: "w", Min: 1, Max: 20, Step: -1}, true},
		{"no name", ParamDef{Min: 1, Max: 2, Step: 1}, true},
		{"untyped", ParamDef{Name: "w", Min: 1, Max: 20, Step: 1}, false},
		{"float", ParamDef{Name: "w", Type: "float", Min: 0.1, Max: 0.9, Step: 0.1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.def.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSelectionCleanSymbols(t *testing.T) {
	sel := Selection{Symbols: []string{"AAPL", "", "  ", " MSFT "}}
	got := sel.CleanSymbols()
	if len(got) != 2 || got[0] != "AAPL" || got[1] != "MSFT" {
		t.Errorf("CleanSymbols() = %v, want [AAPL MSFT]", got)
	}
}

func TestSelectionValidate(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	if err := (Selection{Symbols: []string{"AAPL"}, StartDate: start, EndDate: end}).Validate(); err != nil {
		t.Errorf("Validate() returned unexpected error: %v", err)
	}
	if err := (Selection{Symbols: []string{""}, StartDate: start, EndDate: end}).Validate(); err == nil {
		t.Error("Validate() should reject a selection with only blank symbols")
	}
	if err := (Selection{Symbols: []string{"AAPL"}, StartDate: end, EndDate: start}).Validate(); err == nil {
		t.Error("Validate() should reject end before start")
	}
}

func TestPortfolioName(t *testing.T) {
	if got := PortfolioName("RSI3", []string{"AAPL", "MSFT"}); got != "RSI3_AAPL&MSFT" {
		t.Errorf("PortfolioName() = %q, want %q", got, "RSI3_AAPL&MSFT")
	}
}

func TestRecordSelection(t *testing.T) {
	rec := PortfolioRecord{
		Market:    MarketUS,
		Symbols:   []string{"AAPL"},
		StartDate: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	end := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sel := rec.Selection(end)
	if !sel.EndDate.Equal(end) || !sel.StartDate.Equal(rec.StartDate) {
		t.Errorf("Selection() dates = %v..%v, want %v..%v", sel.StartDate, sel.EndDate, rec.StartDate, end)
	}
	sel.Symbols[0] = "MSFT"
	if rec.Symbols[0] != "AAPL" {
		t.Error("Selection() must copy the symbol slice")
	}
}
