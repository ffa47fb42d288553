package opf

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kgrid/gridopf/core/events"
	"github.com/kgrid/gridopf/core/logger"
	"github.com/kgrid/gridopf/core/lp"
	"github.com/kgrid/gridopf/core/metrics"
	"github.com/kgrid/gridopf/core/model"
	"github.com/kgrid/gridopf/internal/eventbus"
)

// Driver runs formulations against one LP backend and reports solve events
// to the configured sink and event bus. A Driver holds no per-run state;
// every call builds a fresh Problem.
type Driver struct {
	solver lp.Solver
	log    logger.Logger
	sink   metrics.Sink
	bus    eventbus.EventBus
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the driver logger.
func WithLogger(l logger.Logger) Option { return func(d *Driver) { d.log = l } }

// WithSink sets the metrics sink.
func WithSink(s metrics.Sink) Option { return func(d *Driver) { d.sink = s } }

// WithBus publishes solve lifecycle events on the given bus.
func WithBus(b eventbus.EventBus) Option { return func(d *Driver) { d.bus = b } }

// NewDriver creates a driver around the given backend.
func NewDriver(solver lp.Solver, opts ...Option) *Driver {
	d := &Driver{solver: solver, log: logger.NopLogger{}, sink: metrics.NopSink{}}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Snapshot formulates and solves a single-period problem using the static
// grid values.
func (d *Driver) Snapshot(ctx context.Context, grid *model.Grid, typ Formulation) (*Results, error) {
	runID := uuid.NewString()
	started := time.Now()

	m, err := NewSnapshot(grid, typ, -1)
	if err != nil {
		return nil, err
	}
	sol, err := m.Solve(ctx, d.solver)
	if err != nil {
		return nil, fmt.Errorf("opf: solve: %w", err)
	}
	res := m.Extract(sol, 0)
	d.record(runID, typ, -1, started, res, time.Since(started))
	d.finish(runID, typ, 1, boolToInt(res.Converged), res.Objective, started)
	return res, nil
}

func (d *Driver) record(runID string, typ Formulation, period int, at time.Time, res *Results, dur time.Duration) {
	rec := metrics.SolveRecord{
		RunID:       runID,
		Formulation: typ.String(),
		Backend:     d.solver.Name(),
		Period:      period,
		Time:        at,
		Status:      res.Status.String(),
		Converged:   res.Converged,
		Objective:   res.Objective,
		Duration:    dur,
	}
	for _, s := range res.LoadShedding {
		rec.LoadSheddingMW += s
	}
	for _, o := range res.Overload {
		rec.OverloadMW += o
	}
	if err := d.sink.RecordSolve(rec); err != nil {
		d.log.Warnf("metrics sink: %v", err)
	}
	if d.bus != nil {
		d.bus.Publish(events.SolveCompleted{Record: rec})
	}
}

func (d *Driver) finish(runID string, typ Formulation, periods, solved int, objective float64, started time.Time) {
	sum := metrics.RunSummary{
		RunID:       runID,
		Formulation: typ.String(),
		Backend:     d.solver.Name(),
		Periods:     periods,
		Solved:      solved,
		Objective:   objective,
		Started:     started,
		Finished:    time.Now(),
	}
	if rr, ok := d.sink.(metrics.RunRecorder); ok {
		if err := rr.RecordRun(sum); err != nil {
			d.log.Warnf("metrics sink: %v", err)
		}
	}
	if d.bus != nil {
		d.bus.Publish(events.RunCompleted{Summary: sum})
	}
	d.log.Infof("run %s finished: %d/%d periods solved, objective %.6g", runID, solved, periods, objective)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
