package opf

import (
	"fmt"
	"math"

	"github.com/kgrid/gridopf/core/lp"
	"github.com/kgrid/gridopf/core/model"
)

// varFactory creates the bounded decision variables of one model. All
// bounds are converted to per-unit of the system base power, and names are
// derived from array position so two formulations of the same grid produce
// identical problems.
type varFactory struct {
	p     *lp.Problem
	sbase float64
}

// varName keys a variable by prefix, device position and optionally period.
func varName(prefix string, i, t int) string {
	if t >= 0 {
		return fmt.Sprintf("%s_%d_t%d", prefix, i, t)
	}
	return fmt.Sprintf("%s_%d", prefix, i)
}

func (f varFactory) generators(gs model.GeneratorSet, t int) []lp.Var {
	vars := make([]lp.Var, gs.Count())
	for i := range vars {
		vars[i] = f.p.NewVar(varName("Pg", i, t), gs.Pmin[i]/f.sbase, gs.Pmax[i]/f.sbase)
	}
	return vars
}

func (f varFactory) batteries(bs model.BatterySet, t int, minOverride, maxOverride []float64) []lp.Var {
	vars := make([]lp.Var, bs.Count())
	for i := range vars {
		lo, hi := bs.Pmin[i], bs.Pmax[i]
		if minOverride != nil {
			lo = minOverride[i]
		}
		if maxOverride != nil {
			hi = maxOverride[i]
		}
		vars[i] = f.p.NewVar(varName("Pb", i, t), lo/f.sbase, hi/f.sbase)
	}
	return vars
}

func (f varFactory) loadSlacks(n, t int) []lp.Var {
	vars := make([]lp.Var, n)
	for i := range vars {
		vars[i] = f.p.NewVar(varName("LSlack", i, t), 0, math.Inf(1))
	}
	return vars
}

func (f varFactory) branchSlacks(m, t int) ([]lp.Var, []lp.Var) {
	f1 := make([]lp.Var, m)
	f2 := make([]lp.Var, m)
	for k := range f1 {
		f1[k] = f.p.NewVar(varName("FSlack1", k, t), 0, math.Inf(1))
		f2[k] = f.p.NewVar(varName("FSlack2", k, t), 0, math.Inf(1))
	}
	return f1, f2
}

func (f varFactory) angles(n, t int) []lp.Var {
	vars := make([]lp.Var, n)
	for i := range vars {
		vars[i] = f.p.NewVar(varName("theta", i, t), -math.Pi, math.Pi)
	}
	return vars
}

// magnitudeDeltas bounds the AC voltage-magnitude perturbation around the
// reference voltage v0 to [0, 2] pu.
func (f varFactory) magnitudeDeltas(n, t int) []lp.Var {
	vars := make([]lp.Var, n)
	for i := range vars {
		vars[i] = f.p.NewVar(varName("dvm", i, t), 0, 2)
	}
	return vars
}

// energies creates the battery energy trajectory variables for a series
// model, bounded to the SoC window times capacity in per unit.
func (f varFactory) energies(m *Model, bs model.BatterySet) {
	nt := m.End - m.Start
	m.E = make([][]lp.Var, nt)
	for ti := 0; ti < nt; ti++ {
		m.E[ti] = make([]lp.Var, bs.Count())
		for b := 0; b < bs.Count(); b++ {
			capPU := bs.CapacityMWh[b] / f.sbase
			m.E[ti][b] = f.p.NewVar(varName("E", b, m.Start+ti), bs.MinSoC[b]*capPU, bs.MaxSoC[b]*capPU)
		}
	}
}
