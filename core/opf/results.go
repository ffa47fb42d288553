package opf

import (
	"context"
	"time"

	"github.com/kgrid/gridopf/core/lp"
	"github.com/kgrid/gridopf/core/model"
)

// Results is the physical outcome of one solved period, converted back
// from per-unit via the system base power.
type Results struct {
	Status    lp.Status
	Converged bool
	Objective float64

	// Voltage phasors per bus, (v0+dvm)*e^(-j*angle).
	Voltage []complex128
	// BranchFlow is the from-side directional loading in MW.
	BranchFlow []float64
	// Loading is flow over rating, signed.
	Loading []float64
	// OverloadFrom/OverloadTo are the directional overload slacks in MW.
	OverloadFrom []float64
	OverloadTo   []float64
	// Overload is the total overload per branch in MW.
	Overload []float64
	// ShadowPrice is the dual of the nodal real-power balance per bus,
	// zero for buses of unconstrained islands.
	ShadowPrice []float64

	GeneratorPower []float64 // MW
	BatteryPower   []float64 // MW
	LoadShedding   []float64 // MW
	// BatteryEnergy is filled for series models only, MWh.
	BatteryEnergy []float64

	// Islands tags which islands carried nodal constraints.
	Islands []IslandBalance
}

// Solve submits the assembled problem to the backend. Solver errors are
// mechanical failures; physical infeasibility never occurs because every
// violable constraint carries a penalized slack.
func (m *Model) Solve(ctx context.Context, s lp.Solver) (*lp.Solution, error) {
	return s.Solve(ctx, m.Problem)
}

// evalExpr computes the value of a linear expression under a solution.
func evalExpr(sol *lp.Solution, e lp.Expr) float64 {
	v := e.Offset
	for _, t := range e.Terms {
		v += t.Coeff * sol.Value(t.Var)
	}
	return v
}

// Extract converts the solved values of period ti back to physical units.
func (m *Model) Extract(sol *lp.Solution, ti int) *Results {
	g := m.Grid
	sb := g.Sbase
	r := &Results{
		Status:    sol.Status,
		Converged: sol.Status == lp.StatusOptimal,
		Objective: sol.Objective,
		Islands:   m.Islands,
	}
	if !r.Converged {
		return r
	}

	r.Voltage = make([]complex128, g.NBus)
	for bus := 0; bus < g.NBus; bus++ {
		mag := m.v0[bus]
		if m.Dvm != nil {
			mag += sol.Value(m.Dvm[ti][bus])
		} else if m.Type == FormulationDC {
			mag = 1.0
		}
		r.Voltage[bus] = model.PolarVoltage(mag, sol.Value(m.Theta[ti][bus]))
	}

	nbr := g.Branches.Count()
	r.BranchFlow = make([]float64, nbr)
	r.Loading = make([]float64, nbr)
	r.OverloadFrom = make([]float64, nbr)
	r.OverloadTo = make([]float64, nbr)
	r.Overload = make([]float64, nbr)
	for k := 0; k < nbr; k++ {
		r.BranchFlow[k] = evalExpr(sol, m.flows[ti][k]) * sb
		if rating := g.Branches.RatingAt(m.Start+ti, k); rating > 0 {
			r.Loading[k] = r.BranchFlow[k] / rating
		}
		r.OverloadFrom[k] = sol.Value(m.F1[ti][k]) * sb
		r.OverloadTo[k] = sol.Value(m.F2[ti][k]) * sb
		r.Overload[k] = r.OverloadFrom[k] + r.OverloadTo[k]
	}

	r.ShadowPrice = make([]float64, g.NBus)
	for bus, c := range m.NodalP[ti] {
		if c.Valid {
			r.ShadowPrice[bus] = sol.Dual(c.Cons)
		}
	}

	r.GeneratorPower = make([]float64, g.Generators.Count())
	for i, v := range m.Pg[ti] {
		r.GeneratorPower[i] = sol.Value(v) * sb
	}
	r.BatteryPower = make([]float64, g.Batteries.Count())
	for i, v := range m.Pb[ti] {
		r.BatteryPower[i] = sol.Value(v) * sb
	}
	r.LoadShedding = make([]float64, g.Loads.Count())
	for i, v := range m.LSlack[ti] {
		r.LoadShedding[i] = sol.Value(v) * sb
	}
	if m.E != nil {
		r.BatteryEnergy = make([]float64, g.Batteries.Count())
		for i, v := range m.E[ti] {
			r.BatteryEnergy[i] = sol.Value(v) * sb
		}
	}
	return r
}

// SeriesResults accumulates per-period outcomes over a horizon. Periods
// that failed to solve keep their zero values with Converged false.
type SeriesResults struct {
	Times     []time.Time
	Status    []lp.Status
	Converged []bool
	Objective float64

	Voltage        [][]complex128
	BranchFlow     [][]float64
	Loading        [][]float64
	Overload       [][]float64
	ShadowPrice    [][]float64
	GeneratorPower [][]float64
	BatteryPower   [][]float64
	LoadShedding   [][]float64
	BatteryEnergy  [][]float64 // MWh

	Islands []IslandBalance
}

// NewSeriesResults preallocates result arrays for the whole horizon.
func NewSeriesResults(g *model.Grid) *SeriesResults {
	nt := g.NT()
	r := &SeriesResults{
		Times:          g.Times,
		Status:         make([]lp.Status, nt),
		Converged:      make([]bool, nt),
		Voltage:        make([][]complex128, nt),
		BranchFlow:     make([][]float64, nt),
		Loading:        make([][]float64, nt),
		Overload:       make([][]float64, nt),
		ShadowPrice:    make([][]float64, nt),
		GeneratorPower: make([][]float64, nt),
		BatteryPower:   make([][]float64, nt),
		LoadShedding:   make([][]float64, nt),
		BatteryEnergy:  make([][]float64, nt),
	}
	for t := 0; t < nt; t++ {
		r.Voltage[t] = make([]complex128, g.NBus)
		r.BranchFlow[t] = make([]float64, g.Branches.Count())
		r.Loading[t] = make([]float64, g.Branches.Count())
		r.Overload[t] = make([]float64, g.Branches.Count())
		r.ShadowPrice[t] = make([]float64, g.NBus)
		r.GeneratorPower[t] = make([]float64, g.Generators.Count())
		r.BatteryPower[t] = make([]float64, g.Batteries.Count())
		r.LoadShedding[t] = make([]float64, g.Loads.Count())
		r.BatteryEnergy[t] = make([]float64, g.Batteries.Count())
	}
	return r
}

// SetAt merges one period's results into the horizon arrays.
func (r *SeriesResults) SetAt(t int, res *Results) {
	r.Status[t] = res.Status
	r.Converged[t] = res.Converged
	if !res.Converged {
		return
	}
	copy(r.Voltage[t], res.Voltage)
	copy(r.BranchFlow[t], res.BranchFlow)
	copy(r.Loading[t], res.Loading)
	copy(r.Overload[t], res.Overload)
	copy(r.ShadowPrice[t], res.ShadowPrice)
	copy(r.GeneratorPower[t], res.GeneratorPower)
	copy(r.BatteryPower[t], res.BatteryPower)
	copy(r.LoadShedding[t], res.LoadShedding)
	if res.BatteryEnergy != nil {
		copy(r.BatteryEnergy[t], res.BatteryEnergy)
	}
	if r.Islands == nil {
		r.Islands = res.Islands
	}
}
