package opf

import (
	"github.com/kgrid/gridopf/core/lp"
)

// addBranchLoading emits the directional flow-vs-rating constraints of one
// period. Each direction carries its own overload slack, so congestion
// direction and magnitude stay separately observable:
//
//	Bseries*(theta_f - theta_t) <= rating + FSlack1
//	Bseries*(theta_t - theta_f) <= rating + FSlack2
//
// The from-side flow expressions are returned for result extraction.
func addBranchLoading(m *Model, ti, t int) []lp.Expr {
	grid := m.Grid
	theta := m.Theta[ti]
	flows := make([]lp.Expr, grid.Branches.Count())

	for k := 0; k < grid.Branches.Count(); k++ {
		bs := grid.Branches.Bseries(k)
		rating := grid.Branches.RatingAt(t, k) / grid.Sbase
		from, to := grid.Branches.From[k], grid.Branches.To[k]

		var loadF lp.Expr
		loadF.Add(theta[from], bs)
		loadF.Add(theta[to], -bs)
		flows[k] = loadF

		e1 := lp.Expr{Terms: append([]lp.Term(nil), loadF.Terms...)}
		e1.Sub(m.F1[ti][k], 1)
		m.Problem.AddConstraint(varName("BranchFT", k, t), e1, lp.Le, rating)

		var e2 lp.Expr
		e2.Add(theta[to], bs)
		e2.Add(theta[from], -bs)
		e2.Sub(m.F2[ti][k], 1)
		m.Problem.AddConstraint(varName("BranchTF", k, t), e2, lp.Le, rating)
	}
	return flows
}
