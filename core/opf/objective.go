package opf

// addObjective accumulates the linear cost of one period into the shared
// minimization objective:
//
//	sum(cost_g*Pg) + sum(cost_b*Pb) + sum(cost_l*LSlack) + sum(cost_br*(FSlack1+FSlack2))
//
// The slack terms make this an exact-penalty formulation: violations stay
// feasible at a cost.
func addObjective(m *Model, ti, t int) {
	g := m.Grid
	for i, v := range m.Pg[ti] {
		m.Problem.AddCost(v, g.Generators.CostAt(t, i))
	}
	for i, v := range m.Pb[ti] {
		m.Problem.AddCost(v, g.Batteries.CostAt(t, i))
	}
	for i, v := range m.LSlack[ti] {
		m.Problem.AddCost(v, g.Loads.CostAt(t, i))
	}
	for k := range m.F1[ti] {
		cost := g.Branches.CostAt(t, k)
		m.Problem.AddCost(m.F1[ti][k], cost)
		m.Problem.AddCost(m.F2[ti][k], cost)
	}
}
