// Package builtins provides the strategies that ship with stratfolio.
package builtins

import (
	"stratfolio/internal/domain"
	"stratfolio/internal/indicator"
	"stratfolio/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = SMACross{}

// SMACross is a moving average crossover. It enters while the fast SMA is
// above the slow SMA and exits while it is below.
type SMACross struct{}

// NewSMACross returns the SMA crossover strategy.
func NewSMACross() strategy.Strategy { return SMACross{} }

// Name returns "SMACross".
func (SMACross) Name() string { return "SMACross" }

// Params declares fast in [5,30) and slow in [20,120).
func (SMACross) Params() []domain.ParamDef {
	return []domain.ParamDef{
		{Name: "fast", Type: domain.ParamTypeInt, Min: 5, Max: 30, Step: 5},
		{Name: "slow", Type: domain.ParamTypeInt, Min: 20, Max: 120, Step: 10},
	}
}

// Signals compares the two averages bar by bar.
func (SMACross) Signals(in *strategy.Input, params domain.ParamDict) ([]bool, []bool, error) {
	fast := in.Indicator("sma", indicator.SMA, params["fast"])
	slow := in.Indicator("sma", indicator.SMA, params["slow"])

	n := in.Len()
	entries := make([]bool, n)
	exits := make([]bool, n)
	for i := 0; i < n; i++ {
		entries[i] = fast[i] > slow[i]
		exits[i] = fast[i] < slow[i]
	}
	return entries, exits, nil
}
