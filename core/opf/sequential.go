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

// Sequential solves the horizon one period at a time, carrying the battery
// state of charge forward between solves. Each period's problem is
// independent; the tracked energy bounds the next period's battery power so
// a battery cannot discharge below its minimum state nor charge above its
// capacity within one step.
//
// A period that fails to solve is logged and left at its zero results, the
// run continues with the remaining periods. Cancelling the context stops
// the loop and returns the periods solved so far.
func (d *Driver) Sequential(ctx context.Context, grid *model.Grid, typ Formulation) (*SeriesResults, error) {
	if len(grid.Times) == 0 {
		return nil, fmt.Errorf("opf: sequential run requires a time horizon")
	}
	nt := grid.NT()

	runID := uuid.NewString()
	started := time.Now()
	res := NewSeriesResults(grid)
	dt := grid.DeltaHours()

	nb := grid.Batteries.Count()
	energy := make([]float64, nb) // MWh
	minE := make([]float64, nb)
	maxE := make([]float64, nb)
	for b := 0; b < nb; b++ {
		cap := grid.Batteries.CapacityMWh[b]
		energy[b] = grid.Batteries.SoC0[b] * cap
		minE[b] = grid.Batteries.MinSoC[b] * cap
		maxE[b] = grid.Batteries.MaxSoC[b] * cap
	}

	var pbMin, pbMax []float64
	solved := 0
	for t := 0; t < nt; t++ {
		if ctx.Err() != nil {
			d.log.Warnf("run %s cancelled at period %d", runID, t)
			break
		}

		m, err := build(grid, typ, buildConfig{start: t, end: t + 1, pbMin: pbMin, pbMax: pbMax})
		if err != nil {
			return nil, err
		}
		periodStart := time.Now()
		sol, err := m.Solve(ctx, d.solver)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				d.log.Warnf("run %s cancelled at period %d", runID, t)
				break
			}
			d.log.Errorf("period %d solve failed: %v", t, err)
			failed := &Results{Status: lp.StatusError, Islands: m.Islands}
			res.SetAt(t, failed)
			d.record(runID, typ, t, grid.Times[t], failed, time.Since(periodStart))
			continue
		}
		pr := m.Extract(sol, 0)
		res.SetAt(t, pr)
		d.record(runID, typ, t, grid.Times[t], pr, time.Since(periodStart))
		if !pr.Converged {
			d.log.Warnf("period %d did not converge: %s", t, pr.Status)
			continue
		}
		solved++
		res.Objective += pr.Objective

		if nb == 0 {
			continue
		}
		// Discharging drains the tracked energy over the interval that
		// precedes the period; the first period keeps the initial state.
		for b := 0; b < nb; b++ {
			if t > 0 {
				energy[b] -= pr.BatteryPower[b] * dt[t-1]
			}
			res.BatteryEnergy[t][b] = energy[b]
		}
		if t+1 < nt {
			pbMin, pbMax = batteryBounds(grid, energy, minE, maxE, dt[t])
		}
	}

	d.finish(runID, typ, nt, solved, res.Objective, started)
	return res, nil
}

// batteryBounds limits each battery's power for the next step so the
// tracked energy stays within [minE, maxE]. Positive power discharges.
func batteryBounds(g *model.Grid, energy, minE, maxE []float64, step float64) (pbMin, pbMax []float64) {
	nb := g.Batteries.Count()
	pbMin = make([]float64, nb)
	pbMax = make([]float64, nb)
	for b := 0; b < nb; b++ {
		lo, hi := g.Batteries.Pmin[b], g.Batteries.Pmax[b]
		if room := (energy[b] - minE[b]) / step; room < hi {
			hi = room
		}
		if room := -(maxE[b] - energy[b]) / step; room > lo {
			lo = room
		}
		if hi < lo {
			hi = lo
		}
		pbMin[b], pbMax[b] = lo, hi
	}
	return pbMin, pbMax
}
