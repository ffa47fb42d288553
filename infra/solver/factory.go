package solver

import (
	"fmt"

	"github.com/kgrid/gridopf/core/lp"
)

// New returns the backend selected by name. An empty name picks the pure Go
// simplex so the engine works without native libraries.
func New(name string) (lp.Solver, error) {
	switch name {
	case "", "simplex":
		return NewSimplex(), nil
	case "highs":
		return NewHiGHS(), nil
	default:
		return nil, fmt.Errorf("unknown solver backend %q", name)
	}
}
