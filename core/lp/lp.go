// Package lp defines a minimal linear-model interface: create bounded
// variables, add linear constraints, accumulate a linear objective, solve,
// read values and duals. Backends live under infra/solver so the LP library
// is swappable without touching the formulation code.
package lp

import (
	"context"
	"fmt"
)

// Var is a handle to a decision variable of one Problem.
type Var int

// Cons is a handle to a constraint row of one Problem.
type Cons int

// Sense is the relational operator of a constraint.
type Sense int

const (
	Eq Sense = iota
	Le
)

// Status is the outcome reported by a backend.
type Status int

const (
	StatusOptimal Status = iota
	StatusInfeasible
	StatusUnbounded
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusInfeasible:
		return "infeasible"
	case StatusUnbounded:
		return "unbounded"
	}
	return "error"
}

// Term is one coefficient of a linear expression.
type Term struct {
	Var   Var
	Coeff float64
}

// Expr is a linear expression with a constant offset. The offset is moved
// to the right-hand side when the expression becomes a constraint.
type Expr struct {
	Terms  []Term
	Offset float64
}

// Add appends coeff*v to the expression. Zero coefficients are dropped.
func (e *Expr) Add(v Var, coeff float64) {
	if coeff == 0 {
		return
	}
	e.Terms = append(e.Terms, Term{Var: v, Coeff: coeff})
}

// AddExpr appends another expression.
func (e *Expr) AddExpr(o Expr) {
	e.Terms = append(e.Terms, o.Terms...)
	e.Offset += o.Offset
}

// Sub appends -coeff*v.
func (e *Expr) Sub(v Var, coeff float64) { e.Add(v, -coeff) }

// AddConst shifts the constant offset.
func (e *Expr) AddConst(c float64) { e.Offset += c }

// Row is a stored constraint.
type Row struct {
	Name  string
	Expr  Expr
	Sense Sense
	RHS   float64
}

// Problem collects variables, constraints and the objective for one solve
// call. A Problem is built fresh per formulation and owns its handles.
type Problem struct {
	names  []string
	lower  []float64
	upper  []float64
	costs  []float64
	rows   []Row
}

// NewProblem returns an empty minimization problem.
func NewProblem() *Problem { return &Problem{} }

// NewVar creates a continuous variable bounded to [lo, hi] and returns its
// handle. Names must be stable identifiers derived from array position.
func (p *Problem) NewVar(name string, lo, hi float64) Var {
	p.names = append(p.names, name)
	p.lower = append(p.lower, lo)
	p.upper = append(p.upper, hi)
	p.costs = append(p.costs, 0)
	return Var(len(p.names) - 1)
}

// AddCost accumulates cost*v into the minimization objective.
func (p *Problem) AddCost(v Var, cost float64) {
	p.costs[v] += cost
}

// AddConstraint stores the row expr (sense) rhs and returns its handle. The
// expression offset is folded into the right-hand side.
func (p *Problem) AddConstraint(name string, expr Expr, sense Sense, rhs float64) Cons {
	p.rows = append(p.rows, Row{
		Name:  name,
		Expr:  Expr{Terms: expr.Terms},
		Sense: sense,
		RHS:   rhs - expr.Offset,
	})
	return Cons(len(p.rows) - 1)
}

// NumVars returns the number of variables.
func (p *Problem) NumVars() int { return len(p.names) }

// NumRows returns the number of constraints.
func (p *Problem) NumRows() int { return len(p.rows) }

// Bounds returns the bounds of v.
func (p *Problem) Bounds(v Var) (lo, hi float64) { return p.lower[v], p.upper[v] }

// Cost returns the objective coefficient of v.
func (p *Problem) Cost(v Var) float64 { return p.costs[v] }

// VarName returns the name of v.
func (p *Problem) VarName(v Var) string { return p.names[v] }

// Rows exposes the stored constraints to backends.
func (p *Problem) Rows() []Row { return p.rows }

// Row returns the stored constraint for a handle.
func (p *Problem) Row(c Cons) Row { return p.rows[c] }

// Solution carries the raw solver output mapped back to handles.
type Solution struct {
	Status    Status
	Objective float64

	values []float64
	duals  []float64
}

// NewSolution is used by backends to assemble a solution. duals may be nil
// when the backend cannot produce them.
func NewSolution(status Status, objective float64, values, duals []float64) *Solution {
	return &Solution{Status: status, Objective: objective, values: values, duals: duals}
}

// Value returns the solved value of v, or 0 when no solution is available.
func (s *Solution) Value(v Var) float64 {
	if s == nil || int(v) >= len(s.values) {
		return 0
	}
	return s.values[v]
}

// Dual returns the dual value of constraint c, or 0 when the backend did
// not produce duals.
func (s *Solution) Dual(c Cons) float64 {
	if s == nil || int(c) >= len(s.duals) {
		return 0
	}
	return s.duals[c]
}

// HasDuals reports whether dual values are available.
func (s *Solution) HasDuals() bool { return s != nil && len(s.duals) > 0 }

// Solver is a synchronous LP backend.
type Solver interface {
	Name() string
	Solve(ctx context.Context, p *Problem) (*Solution, error)
}

// Validate checks the problem for bound sanity before submission.
func (p *Problem) Validate() error {
	for i := range p.names {
		if p.lower[i] > p.upper[i] {
			return fmt.Errorf("variable %s has crossed bounds [%g, %g]", p.names[i], p.lower[i], p.upper[i])
		}
	}
	return nil
}
