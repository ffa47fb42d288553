package opf

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kgrid/gridopf/core/lp"
	"github.com/kgrid/gridopf/core/model"
)

// Grouping splits a horizon into spans that are formulated and solved as
// one coupled problem each. Battery energy links periods inside a span;
// spans are independent of each other.
type Grouping int

const (
	// NoGrouping solves the whole horizon as a single problem.
	NoGrouping Grouping = iota
	GroupDaily
	GroupWeekly
	GroupMonthly
)

func (g Grouping) String() string {
	switch g {
	case NoGrouping:
		return "none"
	case GroupDaily:
		return "daily"
	case GroupWeekly:
		return "weekly"
	case GroupMonthly:
		return "monthly"
	default:
		return fmt.Sprintf("grouping(%d)", int(g))
	}
}

// ParseGrouping maps a configuration string to a Grouping.
func ParseGrouping(s string) (Grouping, error) {
	switch s {
	case "", "none":
		return NoGrouping, nil
	case "daily":
		return GroupDaily, nil
	case "weekly":
		return GroupWeekly, nil
	case "monthly":
		return GroupMonthly, nil
	default:
		return NoGrouping, fmt.Errorf("opf: unknown grouping %q", s)
	}
}

// timeGroups returns span boundaries as indices into times. The result
// always starts with 0 and ends with len(times); consecutive entries
// delimit one half-open span [a, b).
func timeGroups(times []time.Time, g Grouping) []int {
	bounds := []int{0}
	for t := 1; t < len(times); t++ {
		if newSpan(times[t-1], times[t], g) {
			bounds = append(bounds, t)
		}
	}
	return append(bounds, len(times))
}

func newSpan(prev, cur time.Time, g Grouping) bool {
	switch g {
	case GroupDaily:
		py, pm, pd := prev.Date()
		cy, cm, cd := cur.Date()
		return py != cy || pm != cm || pd != cd
	case GroupWeekly:
		py, pw := prev.ISOWeek()
		cy, cw := cur.ISOWeek()
		return py != cy || pw != cw
	case GroupMonthly:
		py, pm, _ := prev.Date()
		cy, cm, _ := cur.Date()
		return py != cy || pm != cm
	default:
		return false
	}
}

// Series solves the horizon span by span. With NoGrouping the whole
// horizon is one problem; battery energy is then coupled across every
// period. A span that fails leaves its periods unconverged and the run
// moves on to the next span.
func (d *Driver) Series(ctx context.Context, grid *model.Grid, typ Formulation, grouping Grouping) (*SeriesResults, error) {
	nt := grid.NT()
	if nt == 0 {
		return nil, fmt.Errorf("opf: series run requires a time horizon")
	}

	runID := uuid.NewString()
	started := time.Now()
	res := NewSeriesResults(grid)
	bounds := timeGroups(grid.Times, grouping)

	solved := 0
	for gi := 1; gi < len(bounds); gi++ {
		a, b := bounds[gi-1], bounds[gi]
		if ctx.Err() != nil {
			d.log.Warnf("run %s cancelled at period %d", runID, a)
			break
		}

		m, err := NewSeries(grid, typ, a, b)
		if err != nil {
			return nil, err
		}
		spanStart := time.Now()
		sol, err := m.Solve(ctx, d.solver)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				d.log.Warnf("run %s cancelled at period %d", runID, a)
				break
			}
			d.log.Errorf("span [%d,%d) solve failed: %v", a, b, err)
			failed := &Results{Status: lp.StatusError, Islands: m.Islands}
			for t := a; t < b; t++ {
				res.SetAt(t, failed)
			}
			d.record(runID, typ, a, grid.Times[a], failed, time.Since(spanStart))
			continue
		}
		dur := time.Since(spanStart)
		if sol.Status != lp.StatusOptimal {
			d.log.Warnf("span [%d,%d) did not converge: %s", a, b, sol.Status)
		}
		for ti := 0; ti < b-a; ti++ {
			pr := m.Extract(sol, ti)
			res.SetAt(a+ti, pr)
			if pr.Converged {
				solved++
			}
		}
		if sol.Status == lp.StatusOptimal {
			res.Objective += sol.Objective
		}
		d.record(runID, typ, a, grid.Times[a], m.Extract(sol, 0), dur)
	}

	d.finish(runID, typ, nt, solved, res.Objective, started)
	return res, nil
}
