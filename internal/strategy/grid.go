package strategy

import (
	"fmt"
	"math"

	"stratfolio/internal/domain"
)

// Grid is an ordered set of parameter axes. Axis order follows the order the
// parameters were declared in; combinations vary the last axis fastest.
type Grid struct {
	names  []string
	values map[string][]int
}

// ExpandParam returns the candidate values of def. A zero step yields the
// single midpoint int((min+max)/2). Otherwise values run from min in step
// increments and stop before max: max itself is never a candidate.
func ExpandParam(def domain.ParamDef) ([]int, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	if def.Step == 0 {
		return []int{int((def.Min + def.Max) / 2)}, nil
	}
	n := int(math.Ceil((def.Max - def.Min) / def.Step))
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, int(def.Min+float64(i)*def.Step))
	}
	return out, nil
}

// NewGrid expands every definition. An axis with no candidates is an error.
func NewGrid(defs []domain.ParamDef) (*Grid, error) {
	g := &Grid{values: make(map[string][]int, len(defs))}
	for _, def := range defs {
		if _, dup := g.values[def.Name]; dup {
			return nil, fmt.Errorf("duplicate parameter %q", def.Name)
		}
		vals, err := ExpandParam(def)
		if err != nil {
			return nil, err
		}
		if len(vals) == 0 {
			return nil, fmt.Errorf("param %q: range [%v, %v) step %v has no values", def.Name, def.Min, def.Max, def.Step)
		}
		g.names = append(g.names, def.Name)
		g.values[def.Name] = vals
	}
	return g, nil
}

// FixedGrid builds a single-combination grid from params. params must name
// exactly the declared parameters.
func FixedGrid(defs []domain.ParamDef, params domain.ParamDict) (*Grid, error) {
	if len(params) != len(defs) {
		return nil, fmt.Errorf("got %d parameters, want %d", len(params), len(defs))
	}
	g := &Grid{values: make(map[string][]int, len(defs))}
	for _, def := range defs {
		v, ok := params[def.Name]
		if !ok {
			return nil, fmt.Errorf("missing parameter %q", def.Name)
		}
		g.names = append(g.names, def.Name)
		g.values[def.Name] = []int{v}
	}
	return g, nil
}

// Names returns the axis names in declaration order.
func (g *Grid) Names() []string { return append([]string(nil), g.names...) }

// Values returns the candidates of one axis.
func (g *Grid) Values(name string) []int { return append([]int(nil), g.values[name]...) }

// Size is the number of combinations.
func (g *Grid) Size() int {
	if len(g.names) == 0 {
		return 0
	}
	n := 1
	for _, name := range g.names {
		n *= len(g.values[name])
	}
	return n
}

// Combinations returns the cartesian product of all axes.
func (g *Grid) Combinations() []domain.ParamDict {
	size := g.Size()
	out := make([]domain.ParamDict, size)
	for i := 0; i < size; i++ {
		p := make(domain.ParamDict, len(g.names))
		rem := i
		for a := len(g.names) - 1; a >= 0; a-- {
			vals := g.values[g.names[a]]
			p[g.names[a]] = vals[rem%len(vals)]
			rem /= len(vals)
		}
		out[i] = p
	}
	return out
}
