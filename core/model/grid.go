package model

import (
	"fmt"
	"math/cmplx"
	"time"
)

// GeneratorSet holds the controllable generator arrays. Bounds and costs may
// carry an optional [time][device] profile; the static arrays apply when no
// profile is present.
type GeneratorSet struct {
	Pmin []float64 // MW
	Pmax []float64 // MW
	Cost []float64 // currency per MWh

	CostProfile [][]float64 // optional, [t][g]

	Conn *Incidence // bus x generator
}

// Count returns the number of generators.
func (g GeneratorSet) Count() int { return len(g.Pmax) }

// CostAt returns the cost of generator i at period t. Negative t selects the
// static snapshot value.
func (g GeneratorSet) CostAt(t, i int) float64 {
	if t >= 0 && g.CostProfile != nil {
		return g.CostProfile[t][i]
	}
	return g.Cost[i]
}

// BatterySet holds the battery arrays. Dispatch sign convention follows the
// generators: positive power discharges into the grid.
type BatterySet struct {
	Pmin []float64 // MW
	Pmax []float64 // MW
	Cost []float64 // currency per MWh

	CostProfile [][]float64 // optional, [t][b]

	CapacityMWh   []float64
	SoC0          []float64 // initial state of charge, fraction
	MinSoC        []float64
	MaxSoC        []float64
	ChargeEff     []float64
	DischargeEff  []float64

	Conn *Incidence // bus x battery
}

// Count returns the number of batteries.
func (b BatterySet) Count() int { return len(b.Pmax) }

// CostAt returns the cost of battery i at period t.
func (b BatterySet) CostAt(t, i int) float64 {
	if t >= 0 && b.CostProfile != nil {
		return b.CostProfile[t][i]
	}
	return b.Cost[i]
}

// Efficiency returns the average of the charge and discharge round-trip
// efficiencies of battery i.
func (b BatterySet) Efficiency(i int) float64 {
	return (b.ChargeEff[i] + b.DischargeEff[i]) / 2.0
}

// LoadSet holds the load arrays and the shedding penalty costs.
type LoadSet struct {
	P []float64 // MW
	Q []float64 // MVAr

	PProfile [][]float64 // optional, [t][l]
	QProfile [][]float64 // optional, [t][l]

	Cost        []float64   // shedding penalty, currency per MWh
	CostProfile [][]float64 // optional, [t][l]

	Conn *Incidence // bus x load
}

// Count returns the number of loads.
func (l LoadSet) Count() int { return len(l.P) }

// PAt returns the real power of load i at period t.
func (l LoadSet) PAt(t, i int) float64 {
	if t >= 0 && l.PProfile != nil {
		return l.PProfile[t][i]
	}
	return l.P[i]
}

// QAt returns the reactive power of load i at period t.
func (l LoadSet) QAt(t, i int) float64 {
	if t >= 0 && l.QProfile != nil {
		return l.QProfile[t][i]
	}
	return l.Q[i]
}

// CostAt returns the shedding penalty of load i at period t.
func (l LoadSet) CostAt(t, i int) float64 {
	if t >= 0 && l.CostProfile != nil {
		return l.CostProfile[t][i]
	}
	return l.Cost[i]
}

// BranchSet holds the branch arrays.
type BranchSet struct {
	From []int
	To   []int

	R []float64 // pu
	X []float64 // pu
	B []float64 // pu, total shunt susceptance

	Rating []float64 // MVA
	Active []bool

	RatingProfile [][]float64 // optional, [t][k]

	Cost        []float64   // overload penalty, currency per MWh
	CostProfile [][]float64 // optional, [t][k]
}

// Count returns the number of branches.
func (b BranchSet) Count() int { return len(b.From) }

// Bseries returns the series susceptance of branch k, zero when the branch
// is out of service.
func (b BranchSet) Bseries(k int) float64 {
	if !b.Active[k] {
		return 0
	}
	return imag(1 / complex(b.R[k], b.X[k]))
}

// RatingAt returns the rating of branch k at period t.
func (b BranchSet) RatingAt(t, k int) float64 {
	if t >= 0 && b.RatingProfile != nil {
		return b.RatingProfile[t][k]
	}
	return b.Rating[k]
}

// CostAt returns the overload penalty of branch k at period t.
func (b BranchSet) CostAt(t, k int) float64 {
	if t >= 0 && b.CostProfile != nil {
		return b.CostProfile[t][k]
	}
	return b.Cost[k]
}

// Grid is the compiled numerical snapshot the engine formulates against.
// The island decomposition and admittance matrices are supplied by the
// topology collaborator; the engine never mutates a Grid.
type Grid struct {
	Sbase float64 // system base power, MVA
	NBus  int

	Generators GeneratorSet
	Batteries  BatterySet
	Loads      LoadSet
	Branches   BranchSet

	Islands []Island

	// Times is the optional time horizon for series formulations.
	Times []time.Time
}

// NT returns the number of periods in the horizon, or 1 for a snapshot.
func (g *Grid) NT() int {
	if len(g.Times) == 0 {
		return 1
	}
	return len(g.Times)
}

// DeltaHours returns the per-period time increments in hours, computed from
// the actual timestamps: dt[t-1] spans times[t-1] to times[t].
func (g *Grid) DeltaHours() []float64 {
	nt := len(g.Times)
	dt := make([]float64, nt)
	for t := 1; t < nt; t++ {
		dt[t-1] = g.Times[t].Sub(g.Times[t-1]).Hours()
	}
	return dt
}

// Validate checks array length consistency before formulation.
func (g *Grid) Validate() error {
	if g.Sbase <= 0 {
		return fmt.Errorf("sbase must be positive, got %g", g.Sbase)
	}
	if n := g.Generators.Count(); len(g.Generators.Pmin) != n || len(g.Generators.Cost) != n {
		return fmt.Errorf("generator arrays disagree on length")
	}
	if n := g.Batteries.Count(); len(g.Batteries.Pmin) != n || len(g.Batteries.Cost) != n ||
		len(g.Batteries.CapacityMWh) != n || len(g.Batteries.SoC0) != n {
		return fmt.Errorf("battery arrays disagree on length")
	}
	if n := g.Loads.Count(); len(g.Loads.Q) != n || len(g.Loads.Cost) != n {
		return fmt.Errorf("load arrays disagree on length")
	}
	m := g.Branches.Count()
	if len(g.Branches.To) != m || len(g.Branches.R) != m || len(g.Branches.X) != m ||
		len(g.Branches.Rating) != m || len(g.Branches.Active) != m || len(g.Branches.Cost) != m {
		return fmt.Errorf("branch arrays disagree on length")
	}
	for _, isl := range g.Islands {
		for _, b := range isl.Buses {
			if b < 0 || b >= g.NBus {
				return fmt.Errorf("island bus index %d out of range", b)
			}
		}
	}
	return nil
}

// PolarVoltage builds a voltage phasor from a magnitude and an angle using
// the engine's e^(-j*angle) convention.
func PolarVoltage(magnitude, angle float64) complex128 {
	return complex(magnitude, 0) * cmplx.Exp(complex(0, -angle))
}
