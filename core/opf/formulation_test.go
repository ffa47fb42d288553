package opf

import (
	"math"
	"strings"
	"testing"

	"github.com/kgrid/gridopf/core/lp"
)

func countRows(p *lp.Problem, prefix string) int {
	n := 0
	for _, r := range p.Rows() {
		if strings.HasPrefix(r.Name, prefix) {
			n++
		}
	}
	return n
}

func TestSnapshotVariableLayout(t *testing.T) {
	g := threeBusGrid()
	m, err := NewSnapshot(g, FormulationDC, -1)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	// 2 generators + 1 load slack + 2*3 branch slacks + 3 angles.
	if got := m.Problem.NumVars(); got != 12 {
		t.Fatalf("vars = %d, want 12", got)
	}
	if name := m.Problem.VarName(m.Pg[0][1]); name != "Pg_1" {
		t.Fatalf("snapshot name = %q, want Pg_1", name)
	}
	lo, hi := m.Problem.Bounds(m.Pg[0][0])
	if lo != 0 || hi != 0.5 {
		t.Fatalf("generator bounds [%g, %g], want per-unit [0, 0.5]", lo, hi)
	}
}

func TestSeriesVariableNamesCarryPeriod(t *testing.T) {
	g := batteryGrid(hourly(3))
	m, err := NewSeries(g, FormulationDC, 0, 3)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if name := m.Problem.VarName(m.Pg[2][0]); name != "Pg_0_t2" {
		t.Fatalf("series name = %q, want Pg_0_t2", name)
	}
	if name := m.Problem.VarName(m.E[1][0]); name != "E_0_t1" {
		t.Fatalf("energy name = %q, want E_0_t1", name)
	}
}

func TestDCNodalConstraintEmission(t *testing.T) {
	g := threeBusGrid()
	m, err := NewSnapshot(g, FormulationDC, -1)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	// One balance row per bus, one reference pin, two rows per branch.
	if got := countRows(m.Problem, "NodalP"); got != 3 {
		t.Fatalf("NodalP rows = %d, want 3", got)
	}
	if got := countRows(m.Problem, "ThetaRef"); got != 1 {
		t.Fatalf("ThetaRef rows = %d, want 1", got)
	}
	if got := countRows(m.Problem, "BranchFT"); got != 3 {
		t.Fatalf("BranchFT rows = %d, want 3", got)
	}
	if got := countRows(m.Problem, "BranchTF"); got != 3 {
		t.Fatalf("BranchTF rows = %d, want 3", got)
	}
	for bus, c := range m.NodalP[0] {
		if !c.Valid {
			t.Fatalf("bus %d has no balance handle", bus)
		}
	}
	if len(m.Islands) != 1 || !m.Islands[0].Constrained {
		t.Fatalf("island not tagged constrained: %+v", m.Islands)
	}
}

func TestACConstraintEmission(t *testing.T) {
	g := threeBusGrid()
	m, err := NewSnapshot(g, FormulationAC, -1)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if m.Dvm == nil {
		t.Fatalf("AC model has no magnitude deltas")
	}
	// Reactive rows are PQ-only: one PQ bus in this grid.
	if got := countRows(m.Problem, "NodalQ"); got != 1 {
		t.Fatalf("NodalQ rows = %d, want 1", got)
	}
	// Slack and PV magnitudes are pinned.
	if got := countRows(m.Problem, "VmRef"); got != 2 {
		t.Fatalf("VmRef rows = %d, want 2", got)
	}
	if got := countRows(m.Problem, "ThetaRef"); got != 1 {
		t.Fatalf("ThetaRef rows = %d, want 1", got)
	}
	if !m.NodalQ[0][2].Valid {
		t.Fatalf("PQ bus lacks reactive handle")
	}
	if m.NodalQ[0][0].Valid || m.NodalQ[0][1].Valid {
		t.Fatalf("reactive rows emitted for non-PQ buses")
	}
	lo, hi := m.Problem.Bounds(m.Dvm[0][0])
	if lo != 0 || hi != 2 {
		t.Fatalf("dvm bounds [%g, %g], want [0, 2]", lo, hi)
	}
}

func TestIslandWithoutReferenceSkipped(t *testing.T) {
	g := noReferenceGrid()
	m, err := NewSnapshot(g, FormulationDC, -1)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got := countRows(m.Problem, "NodalP"); got != 0 {
		t.Fatalf("NodalP rows = %d, want 0", got)
	}
	if got := countRows(m.Problem, "ThetaRef"); got != 0 {
		t.Fatalf("ThetaRef rows = %d, want 0", got)
	}
	for bus, c := range m.NodalP[0] {
		if c.Valid {
			t.Fatalf("bus %d has a balance handle in an unconstrained island", bus)
		}
	}
	if m.Islands[0].Constrained {
		t.Fatalf("island tagged constrained without a reference bus")
	}
}

func TestBatteryEnergyRows(t *testing.T) {
	g := batteryGrid(hourly(3))
	m, err := NewSeries(g, FormulationDC, 0, 3)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got := countRows(m.Problem, "SoC0"); got != 1 {
		t.Fatalf("SoC0 rows = %d, want 1", got)
	}
	if got := countRows(m.Problem, "SoC_"); got != 2 {
		t.Fatalf("SoC rows = %d, want 2", got)
	}
	// Energy bounds follow the SoC window in per unit of Sbase.
	lo, hi := m.Problem.Bounds(m.E[0][0])
	if math.Abs(lo-0.1*20/100) > 1e-12 || math.Abs(hi-1.0*20/100) > 1e-12 {
		t.Fatalf("energy bounds [%g, %g]", lo, hi)
	}
}

func TestSnapshotHasNoEnergyCoupling(t *testing.T) {
	g := batteryGrid(hourly(3))
	m, err := NewSnapshot(g, FormulationDC, 1)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if m.E != nil {
		t.Fatalf("snapshot model carries energy variables")
	}
	if got := countRows(m.Problem, "SoC"); got != 0 {
		t.Fatalf("snapshot model carries SoC rows")
	}
}

func TestUnknownFormulationRejected(t *testing.T) {
	g := oneBusGrid()
	if _, err := NewSnapshot(g, Formulation(42), -1); err == nil {
		t.Fatalf("expected formulation error")
	}
}

func TestSeriesSpanValidation(t *testing.T) {
	g := oneBusGrid() // no horizon
	if _, err := NewSeries(g, FormulationDC, 0, 1); err == nil {
		t.Fatalf("expected error for horizon-less grid")
	}
	g = batteryGrid(hourly(3))
	if _, err := NewSeries(g, FormulationDC, 2, 2); err == nil {
		t.Fatalf("expected error for empty span")
	}
	if _, err := NewSeries(g, FormulationDC, 0, 4); err == nil {
		t.Fatalf("expected error for span past the horizon")
	}
}

func TestIdenticalBuildsProduceIdenticalProblems(t *testing.T) {
	g := threeBusGrid()
	a, err := NewSnapshot(g, FormulationDC, -1)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	b, err := NewSnapshot(g, FormulationDC, -1)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if a.Problem.NumVars() != b.Problem.NumVars() || a.Problem.NumRows() != b.Problem.NumRows() {
		t.Fatalf("rebuild changed problem shape")
	}
	for i := 0; i < a.Problem.NumVars(); i++ {
		if a.Problem.VarName(lp.Var(i)) != b.Problem.VarName(lp.Var(i)) {
			t.Fatalf("variable %d renamed on rebuild", i)
		}
	}
}

func TestParseFormulation(t *testing.T) {
	if f, err := ParseFormulation("dc"); err != nil || f != FormulationDC {
		t.Fatalf("dc: %v %v", f, err)
	}
	if f, err := ParseFormulation("ac"); err != nil || f != FormulationAC {
		t.Fatalf("ac: %v %v", f, err)
	}
	if _, err := ParseFormulation("newton"); err == nil {
		t.Fatalf("expected error")
	}
}
