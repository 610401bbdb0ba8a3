// Package strategy turns parameterized indicator rules into backtested
// portfolios. A Runner sweeps a parameter grid over one selection and keeps
// the combination with the best Sharpe ratio.
package strategy

import (
	"errors"
	"fmt"
	"sort"

	"stratfolio/internal/backtest"
	"stratfolio/internal/domain"
	"stratfolio/internal/indicator"
)

// ErrUnknownStrategy is returned when a name is not in the Registry.
var ErrUnknownStrategy = errors.New("strategy: unknown strategy")

// Strategy is an indicator rule with tunable parameters.
type Strategy interface {
	// Name returns the unique identifier for this strategy. It is stored
	// with every saved portfolio.
	Name() string

	// Params declares the tunable parameters in axis order.
	Params() []domain.ParamDef

	// Signals returns raw (unshifted) entry and exit arrays for one
	// parameter assignment. Both must have in.Len() elements.
	Signals(in *Input, params domain.ParamDict) (entries, exits []bool, err error)
}

// Input is the price history a strategy evaluates, with per-indicator
// memoization shared across every combination of a sweep.
type Input struct {
	backtest.Prices
	caches map[string]*indicator.Cache
}

// NewInput wraps prices.
func NewInput(prices backtest.Prices) *Input {
	return &Input{Prices: prices, caches: make(map[string]*indicator.Cache)}
}

// Indicator returns fn(close, window), computing it once per name and window.
func (in *Input) Indicator(name string, fn func([]float64, int) []float64, window int) []float64 {
	c, ok := in.caches[name]
	if !ok {
		c = indicator.NewCache(in.Close, fn)
		in.caches[name] = c
	}
	return c.Get(window)
}

// Factory creates a fresh Strategy.
type Factory func() Strategy

// Registry maps strategy names to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory under name. Registering the same name twice
// replaces the earlier factory.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Get retrieves a factory by name. The second return value indicates whether
// the strategy was found.
func (r *Registry) Get(name string) (Factory, bool) {
	f, ok := r.factories[name]
	return f, ok
}

// New instantiates the named strategy.
func (r *Registry) New(name string) (Strategy, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	return f(), nil
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
