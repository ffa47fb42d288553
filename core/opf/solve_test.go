package opf

import (
	"context"
	"math"
	"math/cmplx"
	"testing"

	"github.com/kgrid/gridopf/infra/solver"
)

const tol = 1e-6

func solveSnapshot(t *testing.T, m *Model) *Results {
	t.Helper()
	sol, err := m.Solve(context.Background(), solver.NewSimplex())
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	return m.Extract(sol, 0)
}

func TestSingleBusBalance(t *testing.T) {
	g := oneBusGrid()
	m, err := NewSnapshot(g, FormulationDC, -1)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	res := solveSnapshot(t, m)
	if !res.Converged {
		t.Fatalf("status %s", res.Status)
	}
	if math.Abs(res.GeneratorPower[0]-15) > tol {
		t.Fatalf("generation = %g MW, want 15", res.GeneratorPower[0])
	}
	if res.LoadShedding[0] > tol {
		t.Fatalf("unexpected shedding %g MW", res.LoadShedding[0])
	}
}

func TestThreeBusCheapestDispatch(t *testing.T) {
	g := threeBusGrid()
	m, err := NewSnapshot(g, FormulationDC, -1)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	res := solveSnapshot(t, m)
	if !res.Converged {
		t.Fatalf("status %s", res.Status)
	}
	if math.Abs(res.GeneratorPower[0]-15) > tol || math.Abs(res.GeneratorPower[1]) > tol {
		t.Fatalf("dispatch = %v, want cheap generator only", res.GeneratorPower)
	}
	// 15 MW from bus 0 to bus 2 splits 2:1 between the direct line and
	// the two-hop path.
	if math.Abs(res.BranchFlow[1]-10) > 1e-4 {
		t.Fatalf("direct flow = %g MW, want 10", res.BranchFlow[1])
	}
	if math.Abs(res.BranchFlow[0]-5) > 1e-4 || math.Abs(res.BranchFlow[2]-5) > 1e-4 {
		t.Fatalf("detour flows = %g, %g MW, want 5, 5", res.BranchFlow[0], res.BranchFlow[2])
	}
	for k, o := range res.Overload {
		if o > tol {
			t.Fatalf("branch %d overloaded by %g MW", k, o)
		}
	}
	// Objective in per-unit cost: 0.15 pu * 10.
	if math.Abs(res.Objective-1.5) > tol {
		t.Fatalf("objective = %g, want 1.5", res.Objective)
	}
}

func TestCongestionForcesLocalGeneration(t *testing.T) {
	g := twoBusGrid(10) // tie line capped at 10 MVA
	m, err := NewSnapshot(g, FormulationDC, -1)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	res := solveSnapshot(t, m)
	if !res.Converged {
		t.Fatalf("status %s", res.Status)
	}
	if math.Abs(res.GeneratorPower[0]-10) > tol || math.Abs(res.GeneratorPower[1]-5) > tol {
		t.Fatalf("dispatch = %v, want [10, 5]", res.GeneratorPower)
	}
	if math.Abs(res.BranchFlow[0]-10) > tol {
		t.Fatalf("tie flow = %g MW, want 10", res.BranchFlow[0])
	}
	if math.Abs(res.Loading[0]-1) > tol {
		t.Fatalf("loading = %g, want 1", res.Loading[0])
	}
	if res.Overload[0] > tol {
		t.Fatalf("rating met but overload slack %g MW active", res.Overload[0])
	}
}

func TestCongestionSeparatesShadowPrices(t *testing.T) {
	g := twoBusGrid(10)
	m, err := NewSnapshot(g, FormulationDC, -1)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	res := solveSnapshot(t, m)
	if !res.Converged {
		t.Fatalf("status %s", res.Status)
	}
	// Marginal cost at the load bus is the expensive unit, at the slack
	// bus the cheap one. Duals follow the minimization sign convention.
	if math.Abs(res.ShadowPrice[1]+50) > 1e-4 {
		t.Fatalf("load bus price = %g, want -50", res.ShadowPrice[1])
	}
	if math.Abs(res.ShadowPrice[0]+10) > 1e-4 {
		t.Fatalf("slack bus price = %g, want -10", res.ShadowPrice[0])
	}
}

func TestUncongestedPricesAreUniform(t *testing.T) {
	g := twoBusGrid(100)
	m, err := NewSnapshot(g, FormulationDC, -1)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	res := solveSnapshot(t, m)
	if !res.Converged {
		t.Fatalf("status %s", res.Status)
	}
	if math.Abs(res.ShadowPrice[0]-res.ShadowPrice[1]) > 1e-4 {
		t.Fatalf("prices diverge without congestion: %v", res.ShadowPrice)
	}
}

func TestOverloadSlackAbsorbsExcessDemand(t *testing.T) {
	// Cap the far generator so the tie line must carry more than its
	// rating; the overload slack reports the violation.
	g := twoBusGrid(10)
	g.Generators.Pmax[1] = 0
	m, err := NewSnapshot(g, FormulationDC, -1)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	res := solveSnapshot(t, m)
	if !res.Converged {
		t.Fatalf("status %s", res.Status)
	}
	// Shedding at 1000/MWh beats overloading at 10000/MWh.
	if math.Abs(res.LoadShedding[0]-5) > tol {
		t.Fatalf("shedding = %g MW, want 5", res.LoadShedding[0])
	}
	if res.Overload[0] > tol {
		t.Fatalf("overload = %g MW, want 0", res.Overload[0])
	}
}

func TestLoadSheddingWhenGenerationShort(t *testing.T) {
	g := oneBusGrid()
	g.Generators.Pmax[0] = 10
	m, err := NewSnapshot(g, FormulationDC, -1)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	res := solveSnapshot(t, m)
	if !res.Converged {
		t.Fatalf("status %s, the penalty formulation must stay feasible", res.Status)
	}
	if math.Abs(res.LoadShedding[0]-5) > tol {
		t.Fatalf("shedding = %g MW, want 5", res.LoadShedding[0])
	}
	if math.Abs(res.GeneratorPower[0]-10) > tol {
		t.Fatalf("generation = %g MW, want 10", res.GeneratorPower[0])
	}
}

func TestUnconstrainedIslandSolves(t *testing.T) {
	g := noReferenceGrid()
	m, err := NewSnapshot(g, FormulationDC, -1)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	res := solveSnapshot(t, m)
	if !res.Converged {
		t.Fatalf("status %s", res.Status)
	}
	// No balance rows: generation falls to its minimum and prices vanish.
	if res.GeneratorPower[0] > tol || res.GeneratorPower[1] > tol {
		t.Fatalf("dispatch = %v, want zero", res.GeneratorPower)
	}
	if res.ShadowPrice[0] != 0 || res.ShadowPrice[1] != 0 {
		t.Fatalf("prices = %v, want zero", res.ShadowPrice)
	}
}

func TestDCVoltageReconstruction(t *testing.T) {
	g := twoBusGrid(100)
	m, err := NewSnapshot(g, FormulationDC, -1)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	res := solveSnapshot(t, m)
	for bus, v := range res.Voltage {
		if math.Abs(cmplx.Abs(v)-1) > tol {
			t.Fatalf("bus %d magnitude %g, want 1", bus, cmplx.Abs(v))
		}
	}
	// The tie flow follows the angle spread through the line susceptance.
	angle1 := -cmplx.Phase(res.Voltage[1])
	bs := g.Branches.Bseries(0)
	flow := bs * (0 - angle1) * g.Sbase
	if math.Abs(flow-res.BranchFlow[0]) > 1e-4 {
		t.Fatalf("flow from angles %g MW, extractor reports %g MW", flow, res.BranchFlow[0])
	}
	if math.Abs(res.BranchFlow[0]-15) > 1e-4 {
		t.Fatalf("tie flow = %g MW, want 15", res.BranchFlow[0])
	}
}

func TestACSnapshotSolves(t *testing.T) {
	g := threeBusGrid()
	// The magnitude delta only rises from the reference, so an inductive
	// load would trigger reactive shedding; keep the snapshot purely real.
	g.Loads.Q = []float64{0}
	m, err := NewSnapshot(g, FormulationAC, -1)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	res := solveSnapshot(t, m)
	if !res.Converged {
		t.Fatalf("status %s", res.Status)
	}
	if math.Abs(res.GeneratorPower[0]-15) > 1e-4 {
		t.Fatalf("generation = %g MW, want 15", res.GeneratorPower[0])
	}
	// Slack and PV magnitudes stay at the reference voltage.
	if math.Abs(cmplx.Abs(res.Voltage[0])-1) > tol || math.Abs(cmplx.Abs(res.Voltage[1])-1) > tol {
		t.Fatalf("pinned magnitudes moved: %v", res.Voltage)
	}
}

func TestSeriesRatingProfileBindsPerPeriod(t *testing.T) {
	// The tie line derates in the second period, forcing the expensive
	// local generator to pick up the difference.
	g := twoBusGrid(100)
	g.Times = hourly(2)
	g.Branches.RatingProfile = [][]float64{{100}, {10}}
	m, err := NewSeries(g, FormulationDC, 0, 2)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	sol, err := m.Solve(context.Background(), solver.NewSimplex())
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	r0 := m.Extract(sol, 0)
	r1 := m.Extract(sol, 1)
	if !r0.Converged || !r1.Converged {
		t.Fatalf("series did not converge")
	}
	if math.Abs(r0.GeneratorPower[0]-15) > tol || r0.GeneratorPower[1] > tol {
		t.Fatalf("period 0 dispatch = %v, want cheap import", r0.GeneratorPower)
	}
	if math.Abs(r1.GeneratorPower[0]-10) > tol || math.Abs(r1.GeneratorPower[1]-5) > tol {
		t.Fatalf("period 1 dispatch = %v, want [10, 5]", r1.GeneratorPower)
	}
	if math.Abs(r1.Loading[0]-1) > tol {
		t.Fatalf("period 1 loading = %g, want 1", r1.Loading[0])
	}
}

func TestSeriesBatteryRecursion(t *testing.T) {
	g := batteryGrid(hourly(2))
	m, err := NewSeries(g, FormulationDC, 0, 2)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	sol, err := m.Solve(context.Background(), solver.NewSimplex())
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	r0 := m.Extract(sol, 0)
	r1 := m.Extract(sol, 1)
	if !r0.Converged || !r1.Converged {
		t.Fatalf("series did not converge")
	}
	// E[0] is fixed at SoC0*Capacity = 10 MWh; the recursion bounds the
	// second period: E[1] = 10 - Pb[1] >= 2, so the battery covers at
	// most 8 MW and the whole load in both periods.
	if math.Abs(r0.BatteryPower[0]-8) > tol || math.Abs(r1.BatteryPower[0]-8) > tol {
		t.Fatalf("battery dispatch = %g, %g MW, want 8, 8", r0.BatteryPower[0], r1.BatteryPower[0])
	}
	if math.Abs(r0.BatteryEnergy[0]-10) > tol {
		t.Fatalf("E[0] = %g MWh, want 10", r0.BatteryEnergy[0])
	}
	if math.Abs(r1.BatteryEnergy[0]-2) > tol {
		t.Fatalf("E[1] = %g MWh, want 2", r1.BatteryEnergy[0])
	}
	if r0.GeneratorPower[0] > tol || r1.GeneratorPower[0] > tol {
		t.Fatalf("generator ran while the battery sufficed")
	}
}

func TestSeriesEnergyBoundForcesGenerator(t *testing.T) {
	g := batteryGrid(hourly(3))
	m, err := NewSeries(g, FormulationDC, 0, 3)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	sol, err := m.Solve(context.Background(), solver.NewSimplex())
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	// Usable energy after the first period is 8 MWh; over the last two
	// periods the battery can deliver only 8 of the 16 MWh demanded.
	var battery, generator float64
	for ti := 0; ti < 3; ti++ {
		r := m.Extract(sol, ti)
		if !r.Converged {
			t.Fatalf("period %d status %s", ti, r.Status)
		}
		battery += r.BatteryPower[0]
		generator += r.GeneratorPower[0]
	}
	if math.Abs(battery-16) > tol {
		t.Fatalf("battery total = %g MWh, want 16", battery)
	}
	if math.Abs(generator-8) > tol {
		t.Fatalf("generator total = %g MWh, want 8", generator)
	}
}
