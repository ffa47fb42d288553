package solver

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	convexlp "gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/kgrid/gridopf/core/lp"
)

const (
	simplexTol = 1e-9
	basicTol   = 1e-9
)

// Simplex is a pure Go backend built on gonum's simplex implementation.
// The problem is rewritten to standard form (min c'x, Ax=b, x>=0) by
// shifting every variable to its lower bound and appending slack columns
// for inequality and upper-bound rows.
type Simplex struct{}

// NewSimplex returns the gonum-backed solver.
func NewSimplex() Simplex { return Simplex{} }

func (Simplex) Name() string { return "simplex" }

// Solve converts, runs the simplex and recovers row duals from the optimal
// basis. Dual recovery solves A_B' y = c_B by least squares; on degenerate
// vertices the recovered duals are one valid choice among several.
func (s Simplex) Solve(ctx context.Context, p *lp.Problem) (*lp.Solution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	n := p.NumVars()
	if n == 0 {
		return lp.NewSolution(lp.StatusOptimal, 0, nil, nil), nil
	}

	lows := make([]float64, n)
	shift := 0.0
	for i := 0; i < n; i++ {
		lo, _ := p.Bounds(lp.Var(i))
		if math.IsInf(lo, -1) {
			return nil, fmt.Errorf("variable %s has no lower bound", p.VarName(lp.Var(i)))
		}
		lows[i] = lo
		shift += p.Cost(lp.Var(i)) * lo
	}

	rows := p.Rows()
	nBound := 0
	for i := 0; i < n; i++ {
		if _, hi := p.Bounds(lp.Var(i)); !math.IsInf(hi, 1) {
			nBound++
		}
	}
	nSlack := nBound
	for _, r := range rows {
		if r.Sense == lp.Le {
			nSlack++
		}
	}

	m := len(rows) + nBound
	if m == 0 {
		return s.solveUnconstrained(p)
	}

	// A variable outside every row and without an upper-bound row would
	// give A an all-zero column, which the simplex rejects. Such a
	// variable sits on its lower bound, unless its cost pulls it up with
	// nothing to stop it.
	used := make([]bool, n)
	for i := 0; i < n; i++ {
		if _, hi := p.Bounds(lp.Var(i)); !math.IsInf(hi, 1) {
			used[i] = true
		}
	}
	for _, r := range rows {
		for _, t := range r.Expr.Terms {
			used[t.Var] = true
		}
	}
	col := make([]int, n)
	nAct := 0
	for i := 0; i < n; i++ {
		if !used[i] {
			col[i] = -1
			if p.Cost(lp.Var(i)) < 0 {
				return lp.NewSolution(lp.StatusUnbounded, 0, nil, nil), nil
			}
			continue
		}
		col[i] = nAct
		nAct++
	}

	cols := nAct + nSlack
	a := mat.NewDense(m, cols, nil)
	b := make([]float64, m)
	c := make([]float64, cols)
	for i := 0; i < n; i++ {
		if col[i] >= 0 {
			c[col[i]] = p.Cost(lp.Var(i))
		}
	}

	slack := nAct
	for ri, r := range rows {
		rhs := r.RHS
		for _, t := range r.Expr.Terms {
			a.Set(ri, col[t.Var], a.At(ri, col[t.Var])+t.Coeff)
			rhs -= t.Coeff * lows[t.Var]
		}
		if r.Sense == lp.Le {
			a.Set(ri, slack, 1)
			slack++
		}
		b[ri] = rhs
	}
	ri := len(rows)
	for i := 0; i < n; i++ {
		lo, hi := p.Bounds(lp.Var(i))
		if math.IsInf(hi, 1) {
			continue
		}
		a.Set(ri, col[i], 1)
		a.Set(ri, slack, 1)
		b[ri] = hi - lo
		slack++
		ri++
	}

	opt, xstd, err := convexlp.Simplex(c, a, b, simplexTol, nil)
	if err != nil {
		switch err {
		case convexlp.ErrInfeasible:
			return lp.NewSolution(lp.StatusInfeasible, 0, nil, nil), nil
		case convexlp.ErrUnbounded:
			return lp.NewSolution(lp.StatusUnbounded, 0, nil, nil), nil
		default:
			return nil, fmt.Errorf("simplex: %w", err)
		}
	}

	values := make([]float64, n)
	for i := 0; i < n; i++ {
		values[i] = lows[i]
		if col[i] >= 0 {
			values[i] += xstd[col[i]]
		}
	}
	duals := recoverDuals(a, c, xstd, len(rows))
	return lp.NewSolution(lp.StatusOptimal, opt+shift, values, duals), nil
}

// solveUnconstrained handles the degenerate no-row case: each variable sits
// on whichever bound its cost points at.
func (Simplex) solveUnconstrained(p *lp.Problem) (*lp.Solution, error) {
	n := p.NumVars()
	values := make([]float64, n)
	obj := 0.0
	for i := 0; i < n; i++ {
		lo, hi := p.Bounds(lp.Var(i))
		cost := p.Cost(lp.Var(i))
		if cost < 0 {
			if math.IsInf(hi, 1) {
				return lp.NewSolution(lp.StatusUnbounded, 0, nil, nil), nil
			}
			values[i] = hi
		} else {
			values[i] = lo
		}
		obj += cost * values[i]
	}
	return lp.NewSolution(lp.StatusOptimal, obj, values, nil), nil
}

// recoverDuals solves A_B' y = c_B for the columns strictly inside the
// optimal vertex and returns the first nCons entries of y. Returns nil when
// the system cannot be solved reliably.
func recoverDuals(a *mat.Dense, c, xstd []float64, nCons int) []float64 {
	m, cols := a.Dims()
	var basic []int
	for j := 0; j < cols; j++ {
		if xstd[j] > basicTol {
			basic = append(basic, j)
		}
	}
	if len(basic) == 0 {
		return nil
	}

	abT := mat.NewDense(len(basic), m, nil)
	cb := mat.NewVecDense(len(basic), nil)
	for bi, j := range basic {
		for i := 0; i < m; i++ {
			abT.Set(bi, i, a.At(i, j))
		}
		cb.SetVec(bi, c[j])
	}

	var y mat.VecDense
	if err := y.SolveVec(abT, cb); err != nil {
		return nil
	}
	duals := make([]float64, nCons)
	for i := 0; i < nCons && i < y.Len(); i++ {
		duals[i] = y.AtVec(i)
	}
	return duals
}
