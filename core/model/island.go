package model

import (
	"sort"

	"gonum.org/v1/gonum/mat"
)

// BusRole classifies a bus within an island for the duration of a solve.
type BusRole int

const (
	// RoleSlack buses anchor the island: angle (and magnitude) pinned.
	RoleSlack BusRole = iota
	// RolePV buses hold a fixed voltage magnitude with free reactive output.
	RolePV
	// RolePQ buses have fixed real/reactive demand and free voltage.
	RolePQ
)

func (r BusRole) String() string {
	switch r {
	case RoleSlack:
		return "slack"
	case RolePV:
		return "pv"
	case RolePQ:
		return "pq"
	}
	return "unknown"
}

// Island is a maximal connected subset of buses and branches. Its matrices
// and index sets are compiled by the topology collaborator and consumed
// read-only by one formulation call.
type Island struct {
	// Buses maps island-local bus indices to original grid indices.
	Buses []int
	// Branches maps island-local branch indices to original grid indices.
	Branches []int

	// Ybus is the island admittance matrix, island-local indexing.
	Ybus *mat.CDense
	// Yseries is the series admittance matrix (no shunts), used by the
	// linearized AC formulation.
	Yseries *mat.CDense

	// V0 is the no-injection reference voltage per island bus. The AC
	// formulation linearizes around it.
	V0 []complex128

	// Slack, PV and PQ are island-local bus index sets.
	Slack []int
	PV    []int
	PQ    []int
}

// HasReference reports whether the island carries a reference bus. Islands
// without one receive no nodal constraints at all.
func (isl *Island) HasReference() bool {
	return len(isl.Slack) > 0
}

// NonSlack returns the sorted union of the PV and PQ index sets.
func (isl *Island) NonSlack() []int {
	idx := make([]int, 0, len(isl.PV)+len(isl.PQ))
	idx = append(idx, isl.PV...)
	idx = append(idx, isl.PQ...)
	sort.Ints(idx)
	return idx
}

// SlackAndPV returns the sorted union of the slack and PV index sets. Their
// voltage magnitude is a fixed operating condition, not a free variable.
func (isl *Island) SlackAndPV() []int {
	idx := make([]int, 0, len(isl.Slack)+len(isl.PV))
	idx = append(idx, isl.Slack...)
	idx = append(idx, isl.PV...)
	sort.Ints(idx)
	return idx
}

// Size returns the number of buses in the island.
func (isl *Island) Size() int { return len(isl.Buses) }
