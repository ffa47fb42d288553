// Package events defines the solve lifecycle events published on the
// internal event bus.
package events

import "github.com/kgrid/gridopf/core/metrics"

// SolveCompleted is published after every period solve attempt.
type SolveCompleted struct {
	Record metrics.SolveRecord
}

// RunCompleted is published once per driver run.
type RunCompleted struct {
	Summary metrics.RunSummary
}
