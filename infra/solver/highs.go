package solver

import (
	"context"
	"fmt"
	"math"

	"github.com/bartolsthoorn/gohighs/highs"

	"github.com/kgrid/gridopf/core/lp"
)

// HiGHS submits the problem to the HiGHS solver through its C bindings.
// Unlike the simplex backend it reports exact row duals, so it is the
// preferred choice when shadow prices matter on degenerate cases.
type HiGHS struct{}

// NewHiGHS returns the HiGHS-backed solver.
func NewHiGHS() HiGHS { return HiGHS{} }

func (HiGHS) Name() string { return "highs" }

// Solve passes the model in row-wise sparse form and maps the solution back
// to problem handles.
func (HiGHS) Solve(ctx context.Context, p *lp.Problem) (*lp.Solution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	n := p.NumVars()
	m := &highs.Model{
		ColCosts: make([]float64, n),
		ColLower: make([]float64, n),
		ColUpper: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		v := lp.Var(i)
		m.ColCosts[i] = p.Cost(v)
		m.ColLower[i], m.ColUpper[i] = p.Bounds(v)
	}

	for _, r := range p.Rows() {
		cols, vals := mergeTerms(r.Expr.Terms)
		switch r.Sense {
		case lp.Eq:
			m.AddSparseRow(r.RHS, cols, vals, r.RHS)
		case lp.Le:
			m.AddSparseRow(math.Inf(-1), cols, vals, r.RHS)
		}
	}

	sol, err := m.Solve(highs.WithOutput(false))
	if err != nil {
		return nil, fmt.Errorf("highs: %w", err)
	}
	switch {
	case sol.IsOptimal():
		return lp.NewSolution(lp.StatusOptimal, sol.Objective, sol.ColValues, sol.RowDuals), nil
	case sol.IsInfeasible():
		return lp.NewSolution(lp.StatusInfeasible, 0, nil, nil), nil
	case sol.IsUnbounded():
		return lp.NewSolution(lp.StatusUnbounded, 0, nil, nil), nil
	default:
		return lp.NewSolution(lp.StatusError, 0, nil, nil), nil
	}
}

// mergeTerms collapses duplicate variable entries; HiGHS rejects repeated
// column indices within a row.
func mergeTerms(terms []lp.Term) ([]int, []float64) {
	merged := make(map[int]float64, len(terms))
	order := make([]int, 0, len(terms))
	for _, t := range terms {
		if _, ok := merged[int(t.Var)]; !ok {
			order = append(order, int(t.Var))
		}
		merged[int(t.Var)] += t.Coeff
	}
	cols := make([]int, 0, len(order))
	vals := make([]float64, 0, len(order))
	for _, c := range order {
		cols = append(cols, c)
		vals = append(vals, merged[c])
	}
	return cols, vals
}
