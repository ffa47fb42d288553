package opf

import (
	"github.com/kgrid/gridopf/core/lp"
	"github.com/kgrid/gridopf/core/model"
)

// realInjections builds the per-bus real power injection expressions in per
// unit: incidence-weighted generation plus battery dispatch minus load net
// of shedding.
func realInjections(grid *model.Grid, t int, pg, pb, lslack []lp.Var) []lp.Expr {
	p := make([]lp.Expr, grid.NBus)
	for bus := 0; bus < grid.NBus; bus++ {
		for _, g := range grid.Generators.Conn.DevicesAt(bus) {
			p[bus].Add(pg[g], 1)
		}
		for _, b := range grid.Batteries.Conn.DevicesAt(bus) {
			p[bus].Add(pb[b], 1)
		}
		for _, l := range grid.Loads.Conn.DevicesAt(bus) {
			p[bus].AddConst(-grid.Loads.PAt(t, l) / grid.Sbase)
			p[bus].Add(lslack[l], 1)
		}
	}
	return p
}

// reactiveInjections builds the per-bus reactive injection expressions. The
// load-shedding variable doubles as the reactive relief term, matching the
// real-power shedding one to one.
func reactiveInjections(grid *model.Grid, t int, lslack []lp.Var) []lp.Expr {
	q := make([]lp.Expr, grid.NBus)
	for bus := 0; bus < grid.NBus; bus++ {
		for _, l := range grid.Loads.Conn.DevicesAt(bus) {
			q[bus].AddConst(-grid.Loads.QAt(t, l) / grid.Sbase)
			q[bus].Add(lslack[l], 1)
		}
	}
	return q
}

// subtract folds -rhs into e so that "lhs = rhs" becomes "e = 0" with the
// constant part moved to the stored right-hand side.
func subtract(e *lp.Expr, rhs lp.Expr) {
	for _, term := range rhs.Terms {
		e.Add(term.Var, -term.Coeff)
	}
	e.AddConst(-rhs.Offset)
}

// addDCNodalBalance emits the KCL-equivalent equality constraints of one
// period. Flow is linear in angle through the imaginary part of the island
// admittance matrix; non-reference rows are restricted to non-reference
// columns because the reference angle is pinned to zero. Islands without a
// reference bus are skipped whole.
func addDCNodalBalance(m *Model, ti, t int, p []lp.Expr) []OptionalCons {
	grid := m.Grid
	theta := m.Theta[ti]
	res := make([]OptionalCons, grid.NBus)

	for _, isl := range grid.Islands {
		if !isl.HasReference() {
			continue
		}
		pqpv := isl.NonSlack()

		for _, i := range pqpv {
			bus := isl.Buses[i]
			var e lp.Expr
			for _, j := range pqpv {
				e.Add(theta[isl.Buses[j]], imag(isl.Ybus.At(i, j)))
			}
			subtract(&e, p[bus])
			c := m.Problem.AddConstraint(varName("NodalP", bus, t), e, lp.Eq, 0)
			res[bus] = OptionalCons{Valid: true, Cons: c}
		}

		for _, i := range isl.Slack {
			bus := isl.Buses[i]
			var e lp.Expr
			for j := 0; j < isl.Size(); j++ {
				e.Add(theta[isl.Buses[j]], imag(isl.Ybus.At(i, j)))
			}
			subtract(&e, p[bus])
			c := m.Problem.AddConstraint(varName("NodalP", bus, t), e, lp.Eq, 0)
			res[bus] = OptionalCons{Valid: true, Cons: c}

			var pin lp.Expr
			pin.Add(theta[bus], 1)
			m.Problem.AddConstraint(varName("ThetaRef", bus, t), pin, lp.Eq, 0)
		}
	}
	return res
}

// addACNodalBalance emits the linearized AC balance of one period: real
// power on every non-slack bus using both angle and magnitude deltas,
// reactive power on PQ buses only. PV buses hold voltage with free reactive
// output, so no reactive row is written for them. Reference buses pin the
// angle delta, and slack plus PV buses pin the magnitude delta.
func addACNodalBalance(m *Model, ti, t int, p, q []lp.Expr) ([]OptionalCons, []OptionalCons) {
	grid := m.Grid
	dva := m.Theta[ti]
	dvm := m.Dvm[ti]
	resP := make([]OptionalCons, grid.NBus)
	resQ := make([]OptionalCons, grid.NBus)

	for _, isl := range grid.Islands {
		if !isl.HasReference() {
			continue
		}
		pqpv := isl.NonSlack()

		for _, i := range pqpv {
			bus := isl.Buses[i]
			var e lp.Expr
			for _, j := range pqpv {
				e.Add(dva[isl.Buses[j]], -imag(isl.Yseries.At(i, j)))
			}
			for _, j := range isl.PQ {
				e.Add(dvm[isl.Buses[j]], real(isl.Ybus.At(i, j)))
			}
			subtract(&e, p[bus])
			c := m.Problem.AddConstraint(varName("NodalP", bus, t), e, lp.Eq, 0)
			resP[bus] = OptionalCons{Valid: true, Cons: c}
		}

		for _, i := range isl.PQ {
			bus := isl.Buses[i]
			var e lp.Expr
			for _, j := range pqpv {
				e.Add(dva[isl.Buses[j]], -real(isl.Yseries.At(i, j)))
			}
			for _, j := range isl.PQ {
				e.Add(dvm[isl.Buses[j]], -imag(isl.Ybus.At(i, j)))
			}
			subtract(&e, q[bus])
			c := m.Problem.AddConstraint(varName("NodalQ", bus, t), e, lp.Eq, 0)
			resQ[bus] = OptionalCons{Valid: true, Cons: c}
		}

		for _, i := range isl.Slack {
			bus := isl.Buses[i]
			var e lp.Expr
			for j := 0; j < isl.Size(); j++ {
				e.Add(dva[isl.Buses[j]], -imag(isl.Yseries.At(i, j)))
				e.Add(dvm[isl.Buses[j]], real(isl.Ybus.At(i, j)))
			}
			subtract(&e, p[bus])
			c := m.Problem.AddConstraint(varName("NodalP", bus, t), e, lp.Eq, 0)
			resP[bus] = OptionalCons{Valid: true, Cons: c}

			var pin lp.Expr
			pin.Add(dva[bus], 1)
			m.Problem.AddConstraint(varName("ThetaRef", bus, t), pin, lp.Eq, 0)
		}

		for _, i := range isl.SlackAndPV() {
			bus := isl.Buses[i]
			var pin lp.Expr
			pin.Add(dvm[bus], 1)
			m.Problem.AddConstraint(varName("VmRef", bus, t), pin, lp.Eq, 0)
		}
	}
	return resP, resQ
}
