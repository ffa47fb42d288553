package opf

import (
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/kgrid/gridopf/core/model"
)

// oneBusGrid is the smallest solvable island: a slack bus carrying one
// generator (0..50 MW at 10/MWh) and a 15 MW load.
func oneBusGrid() *model.Grid {
	g := &model.Grid{Sbase: 100, NBus: 1}

	g.Generators = model.GeneratorSet{
		Pmin: []float64{0},
		Pmax: []float64{50},
		Cost: []float64{10},
		Conn: model.NewIncidence(1, 1),
	}
	g.Generators.Conn.Connect(0, 0)

	g.Loads = model.LoadSet{
		P:    []float64{15},
		Q:    []float64{5},
		Cost: []float64{1000},
		Conn: model.NewIncidence(1, 1),
	}
	g.Loads.Conn.Connect(0, 0)

	g.Islands = []model.Island{{
		Buses:   []int{0},
		Ybus:    mat.NewCDense(1, 1, nil),
		Yseries: mat.NewCDense(1, 1, nil),
		V0:      []complex128{1},
		Slack:   []int{0},
	}}
	return g
}

// threeBusGrid is a fully meshed triangle: cheap generator on the slack
// bus, expensive generator on a PV bus, 15 MW load on the PQ bus. All
// branches are x=0.1 pu with generous ratings.
func threeBusGrid() *model.Grid {
	g := &model.Grid{Sbase: 100, NBus: 3}

	g.Generators = model.GeneratorSet{
		Pmin: []float64{0, 0},
		Pmax: []float64{50, 50},
		Cost: []float64{10, 50},
		Conn: model.NewIncidence(3, 2),
	}
	g.Generators.Conn.Connect(0, 0)
	g.Generators.Conn.Connect(1, 1)

	g.Loads = model.LoadSet{
		P:    []float64{15},
		Q:    []float64{5},
		Cost: []float64{1000},
		Conn: model.NewIncidence(3, 1),
	}
	g.Loads.Conn.Connect(2, 0)

	g.Branches = model.BranchSet{
		From:   []int{0, 0, 1},
		To:     []int{1, 2, 2},
		R:      []float64{0, 0, 0},
		X:      []float64{0.1, 0.1, 0.1},
		B:      []float64{0, 0, 0},
		Rating: []float64{100, 100, 100},
		Active: []bool{true, true, true},
		Cost:   []float64{10000, 10000, 10000},
	}

	ys := complex(0, -10) // 1/(j*0.1)
	ybus := mat.NewCDense(3, 3, nil)
	for _, pair := range [][2]int{{0, 1}, {0, 2}, {1, 2}} {
		f, t := pair[0], pair[1]
		ybus.Set(f, f, ybus.At(f, f)+ys)
		ybus.Set(t, t, ybus.At(t, t)+ys)
		ybus.Set(f, t, ybus.At(f, t)-ys)
		ybus.Set(t, f, ybus.At(t, f)-ys)
	}

	g.Islands = []model.Island{{
		Buses:    []int{0, 1, 2},
		Branches: []int{0, 1, 2},
		Ybus:     ybus,
		Yseries:  ybus,
		V0:       []complex128{1, 1, 1},
		Slack:    []int{0},
		PV:       []int{1},
		PQ:       []int{2},
	}}
	return g
}

// twoBusGrid has a cheap slack generator, a 15 MW load plus an expensive
// generator on the far bus, and one tie line whose rating is configurable.
func twoBusGrid(ratingMVA float64) *model.Grid {
	g := &model.Grid{Sbase: 100, NBus: 2}

	g.Generators = model.GeneratorSet{
		Pmin: []float64{0, 0},
		Pmax: []float64{50, 50},
		Cost: []float64{10, 50},
		Conn: model.NewIncidence(2, 2),
	}
	g.Generators.Conn.Connect(0, 0)
	g.Generators.Conn.Connect(1, 1)

	g.Loads = model.LoadSet{
		P:    []float64{15},
		Q:    []float64{5},
		Cost: []float64{1000},
		Conn: model.NewIncidence(2, 1),
	}
	g.Loads.Conn.Connect(1, 0)

	g.Branches = model.BranchSet{
		From:   []int{0},
		To:     []int{1},
		R:      []float64{0},
		X:      []float64{0.1},
		B:      []float64{0},
		Rating: []float64{ratingMVA},
		Active: []bool{true},
		Cost:   []float64{10000},
	}

	ys := complex(0, -10)
	ybus := mat.NewCDense(2, 2, []complex128{ys, -ys, -ys, ys})

	g.Islands = []model.Island{{
		Buses:    []int{0, 1},
		Branches: []int{0},
		Ybus:     ybus,
		Yseries:  mat.NewCDense(2, 2, []complex128{ys, -ys, -ys, ys}),
		V0:       []complex128{1, 1},
		Slack:    []int{0},
		PV:       []int{1},
		PQ:       []int{},
	}}
	return g
}

// batteryGrid is a single slack bus with one generator, one battery and a
// constant 8 MW load over the given horizon. The battery is the cheaper
// source but its usable energy is limited by the SoC window.
func batteryGrid(times []time.Time) *model.Grid {
	g := oneBusGrid()
	g.Times = times
	g.Loads.P = []float64{8}
	g.Loads.Q = []float64{0}

	g.Batteries = model.BatterySet{
		Pmin:         []float64{-10},
		Pmax:         []float64{10},
		Cost:         []float64{1},
		CapacityMWh:  []float64{20},
		SoC0:         []float64{0.5},
		MinSoC:       []float64{0.1},
		MaxSoC:       []float64{1.0},
		ChargeEff:    []float64{1},
		DischargeEff: []float64{1},
		Conn:         model.NewIncidence(1, 1),
	}
	g.Batteries.Conn.Connect(0, 0)
	return g
}

// hourly returns n consecutive hourly timestamps.
func hourly(n int) []time.Time {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	times := make([]time.Time, n)
	for i := range times {
		times[i] = start.Add(time.Duration(i) * time.Hour)
	}
	return times
}

// noReferenceGrid is a two-bus island without a slack bus.
func noReferenceGrid() *model.Grid {
	g := twoBusGrid(100)
	g.Islands[0].Slack = nil
	g.Islands[0].PV = []int{0, 1}
	return g
}
