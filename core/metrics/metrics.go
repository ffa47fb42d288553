// Package metrics defines the observability events emitted by the OPF
// drivers and the sink interface infra implementations satisfy.
package metrics

import "time"

// SolveRecord describes one solved period (or snapshot).
type SolveRecord struct {
	RunID       string
	Formulation string
	Backend     string
	// Period is the horizon index, -1 for a snapshot solve.
	Period    int
	Time      time.Time
	Status    string
	Converged bool
	Objective float64
	Duration  time.Duration
	// LoadSheddingMW and OverloadMW aggregate the slack activity of the
	// period; nonzero values signal physical infeasibility.
	LoadSheddingMW float64
	OverloadMW     float64
}

// RunSummary describes a completed driver run.
type RunSummary struct {
	RunID       string
	Formulation string
	Backend     string
	Periods     int
	Solved      int
	Objective   float64
	Started     time.Time
	Finished    time.Time
}

// Sink records solve events for observability purposes.
type Sink interface {
	RecordSolve(rec SolveRecord) error
}

// RunRecorder is an optional extension for sinks that track whole runs.
type RunRecorder interface {
	RecordRun(sum RunSummary) error
}

// NopSink discards all records.
type NopSink struct{}

func (NopSink) RecordSolve(SolveRecord) error { return nil }
func (NopSink) RecordRun(RunSummary) error    { return nil }
