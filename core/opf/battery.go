package opf

import (
	"github.com/kgrid/gridopf/core/lp"
)

// addBatteryEnergy couples the battery energy variables across the model
// span. The initial condition anchors the trajectory and each later period
// follows the State-of-Charge recursion:
//
//	E[0] = SoC0 * Capacity
//	E[t] = E[t-1] - dt[t-1] * Pb[t] * (1/efficiency)
//
// The reciprocal of the efficiency is used because variables must appear
// with constant coefficients, never as divisors. Energy bounds on the E
// variables enforce the SoC window; no terminal constraint is imposed.
func addBatteryEnergy(m *Model) {
	bs := m.Grid.Batteries
	dt := m.Grid.DeltaHours()
	nt := m.End - m.Start

	for b := 0; b < bs.Count(); b++ {
		capPU := bs.CapacityMWh[b] / m.Grid.Sbase

		var init lp.Expr
		init.Add(m.E[0][b], 1)
		m.Problem.AddConstraint(varName("SoC0", b, m.Start), init, lp.Eq, bs.SoC0[b]*capPU)

		effInv := 1 / bs.Efficiency(b)
		for ti := 1; ti < nt; ti++ {
			t := m.Start + ti
			var e lp.Expr
			e.Add(m.E[ti][b], 1)
			e.Add(m.E[ti-1][b], -1)
			e.Add(m.Pb[ti][b], dt[t-1]*effInv)
			m.Problem.AddConstraint(varName("SoC", b, t), e, lp.Eq, 0)
		}
	}
}
