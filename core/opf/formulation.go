// Package opf formulates optimal power flow problems as linear programs
// and maps the solved variables back to physical units. Two formulations
// are available: a DC approximation using voltage angles only, and a
// linearized AC expansion around a pre-computed reference voltage. Both
// attach penalized slack variables to every physically violable
// constraint, so a degenerate snapshot stays LP-feasible and the slack
// magnitudes report the violation instead of a solver failure.
package opf

import (
	"errors"
	"fmt"
	"math/cmplx"

	"github.com/kgrid/gridopf/core/lp"
	"github.com/kgrid/gridopf/core/model"
)

// Formulation selects the power flow linearization.
type Formulation int

const (
	FormulationDC Formulation = iota
	FormulationAC
)

func (f Formulation) String() string {
	switch f {
	case FormulationDC:
		return "dc"
	case FormulationAC:
		return "ac"
	}
	return "unknown"
}

// ErrUnknownFormulation is returned before any part of a problem is built.
var ErrUnknownFormulation = errors.New("opf: unknown formulation")

// ParseFormulation maps a configuration string to a Formulation.
func ParseFormulation(s string) (Formulation, error) {
	switch s {
	case "", "dc":
		return FormulationDC, nil
	case "ac":
		return FormulationAC, nil
	default:
		return FormulationDC, fmt.Errorf("%w: %q", ErrUnknownFormulation, s)
	}
}

// OptionalCons is a constraint handle that may be intentionally absent.
// Buses of islands without a reference bus carry no nodal constraint, and
// the gap is tagged rather than left as a silent zero value.
type OptionalCons struct {
	Valid bool
	Cons  lp.Cons
}

// IslandBalance reports whether nodal-balance constraints were emitted for
// an island. Constrained is false when the island lacks a reference bus.
type IslandBalance struct {
	Island      int
	Constrained bool
}

// Model is one assembled optimization problem: the decision variables,
// constraints and objective for a snapshot or a span of periods. Models are
// built fresh per call and never reused after solving.
type Model struct {
	Grid *model.Grid
	Type Formulation

	Problem *lp.Problem

	// Start and End delimit the horizon span covered by this model.
	// Snapshot models cover a single synthetic period.
	Start, End int
	series     bool

	// Variable handles, indexed [period][device].
	Pg     [][]lp.Var
	Pb     [][]lp.Var
	LSlack [][]lp.Var
	F1     [][]lp.Var
	F2     [][]lp.Var
	Theta  [][]lp.Var // voltage angle (dva for AC)
	Dvm    [][]lp.Var // AC magnitude delta, nil for DC
	E      [][]lp.Var // battery energy, series models only

	// NodalP holds the real-power balance handles per [period][bus].
	NodalP [][]OptionalCons
	// NodalQ holds the reactive balance handles per [period][bus], AC only.
	NodalQ [][]OptionalCons
	// Islands tags which islands received constraints.
	Islands []IslandBalance

	// flows are the from-side branch flow expressions per [period][branch],
	// kept for result extraction.
	flows [][]lp.Expr

	// v0 is the reference voltage magnitude per bus (AC), 1.0 elsewhere.
	v0 []float64
}

type buildConfig struct {
	series bool
	start  int
	end    int
	// pbMin/pbMax override battery dispatch bounds in MW, used by the
	// sequential driver to carry stored energy between periods.
	pbMin []float64
	pbMax []float64
}

// NewSnapshot builds a single-period model. The period argument selects the
// profile column to formulate against; pass -1 for the static snapshot
// values.
func NewSnapshot(grid *model.Grid, typ Formulation, period int) (*Model, error) {
	return build(grid, typ, buildConfig{start: period, end: period + 1})
}

// NewSeries builds one model spanning [start, end) of the grid horizon with
// battery energy coupled across periods.
func NewSeries(grid *model.Grid, typ Formulation, start, end int) (*Model, error) {
	if len(grid.Times) == 0 {
		return nil, fmt.Errorf("opf: series model requires a time horizon")
	}
	if start < 0 || end > len(grid.Times) || start >= end {
		return nil, fmt.Errorf("opf: bad series span [%d, %d)", start, end)
	}
	return build(grid, typ, buildConfig{series: true, start: start, end: end})
}

func build(grid *model.Grid, typ Formulation, cfg buildConfig) (*Model, error) {
	if typ != FormulationDC && typ != FormulationAC {
		return nil, fmt.Errorf("%w: %d", ErrUnknownFormulation, typ)
	}
	if err := grid.Validate(); err != nil {
		return nil, fmt.Errorf("opf: %w", err)
	}

	m := &Model{
		Grid:    grid,
		Type:    typ,
		Problem: lp.NewProblem(),
		Start:   cfg.start,
		End:     cfg.end,
		series:  cfg.series,
	}
	nt := cfg.end - cfg.start
	m.Pg = make([][]lp.Var, nt)
	m.Pb = make([][]lp.Var, nt)
	m.LSlack = make([][]lp.Var, nt)
	m.F1 = make([][]lp.Var, nt)
	m.F2 = make([][]lp.Var, nt)
	m.Theta = make([][]lp.Var, nt)
	m.NodalP = make([][]OptionalCons, nt)
	m.flows = make([][]lp.Expr, nt)
	if typ == FormulationAC {
		m.Dvm = make([][]lp.Var, nt)
		m.NodalQ = make([][]OptionalCons, nt)
	}
	m.v0 = referenceVoltages(grid)
	for i := range grid.Islands {
		m.Islands = append(m.Islands, IslandBalance{Island: i, Constrained: grid.Islands[i].HasReference()})
	}

	f := varFactory{p: m.Problem, sbase: grid.Sbase}
	for ti := 0; ti < nt; ti++ {
		t := cfg.start + ti
		tag := -1
		if cfg.series || t >= 0 {
			tag = t
		}

		m.Pg[ti] = f.generators(grid.Generators, tag)
		m.Pb[ti] = f.batteries(grid.Batteries, tag, cfg.pbMin, cfg.pbMax)
		m.LSlack[ti] = f.loadSlacks(grid.Loads.Count(), tag)
		m.F1[ti], m.F2[ti] = f.branchSlacks(grid.Branches.Count(), tag)
		m.Theta[ti] = f.angles(grid.NBus, tag)
		if typ == FormulationAC {
			m.Dvm[ti] = f.magnitudeDeltas(grid.NBus, tag)
		}

		addObjective(m, ti, tag)

		p := realInjections(grid, tag, m.Pg[ti], m.Pb[ti], m.LSlack[ti])
		switch typ {
		case FormulationDC:
			m.NodalP[ti] = addDCNodalBalance(m, ti, tag, p)
		case FormulationAC:
			q := reactiveInjections(grid, tag, m.LSlack[ti])
			m.NodalP[ti], m.NodalQ[ti] = addACNodalBalance(m, ti, tag, p, q)
		}

		m.flows[ti] = addBranchLoading(m, ti, tag)
	}

	if cfg.series && grid.Batteries.Count() > 0 {
		f.energies(m, grid.Batteries)
		addBatteryEnergy(m)
	}

	return m, nil
}

// referenceVoltages flattens the per-island V0 magnitudes into a grid-wide
// array, defaulting to 1.0 pu for buses outside any island.
func referenceVoltages(grid *model.Grid) []float64 {
	v0 := make([]float64, grid.NBus)
	for i := range v0 {
		v0[i] = 1.0
	}
	for _, isl := range grid.Islands {
		for li, bus := range isl.Buses {
			if li < len(isl.V0) {
				v0[bus] = cmplx.Abs(isl.V0[li])
			}
		}
	}
	return v0
}
