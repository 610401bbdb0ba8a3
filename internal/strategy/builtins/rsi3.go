package builtins

import (
	"stratfolio/internal/domain"
	"stratfolio/internal/indicator"
	"stratfolio/internal/strategy"
)

var _ strategy.Strategy = RSI3{}

// RSI3 stacks three RSIs of increasing window. It enters when the short RSI
// is above the medium one and the medium above the long one, and exits on
// the reverse ordering.
type RSI3 struct{}

// NewRSI3 returns the triple-RSI strategy.
func NewRSI3() strategy.Strategy { return RSI3{} }

func (RSI3) Name() string { return "RSI3" }

func (RSI3) Params() []domain.ParamDef {
	return []domain.ParamDef{
		{Name: "window1", Type: domain.ParamTypeInt, Min: 2, Max: 20, Step: 2},
		{Name: "window2", Type: domain.ParamTypeInt, Min: 20, Max: 80, Step: 4},
		{Name: "window3", Type: domain.ParamTypeInt, Min: 80, Max: 250, Step: 8},
	}
}

func (RSI3) Signals(in *strategy.Input, params domain.ParamDict) ([]bool, []bool, error) {
	r1 := in.Indicator("rsi", indicator.RSI, params["window1"])
	r2 := in.Indicator("rsi", indicator.RSI, params["window2"])
	r3 := in.Indicator("rsi", indicator.RSI, params["window3"])

	n := in.Len()
	entries := make([]bool, n)
	exits := make([]bool, n)
	for i := 0; i < n; i++ {
		entries[i] = r1[i] > r2[i] && r2[i] > r3[i]
		exits[i] = r1[i] < r2[i] && r2[i] < r3[i]
	}
	return entries, exits, nil
}
