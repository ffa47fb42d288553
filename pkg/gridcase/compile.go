package gridcase

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/kgrid/gridopf/core/model"
)

// Compile turns a case into the numerical grid the engine consumes. Device
// profiles are transposed to [time][device] shape, islands are found by
// traversal over the in-service branches, and each island gets its
// admittance matrices, role sets and reference voltages.
func (c *Case) Compile() (*model.Grid, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	nb := len(c.Buses)

	g := &model.Grid{
		Sbase: c.Sbase,
		NBus:  nb,
		Times: c.Times,
	}

	ng := len(c.Generators)
	g.Generators = model.GeneratorSet{
		Pmin: make([]float64, ng),
		Pmax: make([]float64, ng),
		Cost: make([]float64, ng),
		Conn: model.NewIncidence(nb, ng),
	}
	for i, gen := range c.Generators {
		g.Generators.Pmin[i] = gen.Pmin
		g.Generators.Pmax[i] = gen.Pmax
		g.Generators.Cost[i] = gen.Cost
		g.Generators.Conn.Connect(gen.Bus, i)
	}
	g.Generators.CostProfile = transpose(len(c.Times), ng, g.Generators.Cost, func(i int) []float64 { return c.Generators[i].CostProfile })

	nbat := len(c.Batteries)
	g.Batteries = model.BatterySet{
		Pmin:         make([]float64, nbat),
		Pmax:         make([]float64, nbat),
		Cost:         make([]float64, nbat),
		CapacityMWh:  make([]float64, nbat),
		SoC0:         make([]float64, nbat),
		MinSoC:       make([]float64, nbat),
		MaxSoC:       make([]float64, nbat),
		ChargeEff:    make([]float64, nbat),
		DischargeEff: make([]float64, nbat),
		Conn:         model.NewIncidence(nb, nbat),
	}
	for i, b := range c.Batteries {
		g.Batteries.Pmin[i] = b.Pmin
		g.Batteries.Pmax[i] = b.Pmax
		g.Batteries.Cost[i] = b.Cost
		g.Batteries.CapacityMWh[i] = b.CapacityMWh
		g.Batteries.SoC0[i] = b.SoC0
		g.Batteries.MinSoC[i] = b.MinSoC
		g.Batteries.MaxSoC[i] = orDefault(b.MaxSoC, 1.0)
		g.Batteries.ChargeEff[i] = orDefault(b.ChargeEff, 1.0)
		g.Batteries.DischargeEff[i] = orDefault(b.DischargeEff, 1.0)
		g.Batteries.Conn.Connect(b.Bus, i)
	}
	g.Batteries.CostProfile = transpose(len(c.Times), nbat, g.Batteries.Cost, func(i int) []float64 { return c.Batteries[i].CostProfile })

	nl := len(c.Loads)
	g.Loads = model.LoadSet{
		P:    make([]float64, nl),
		Q:    make([]float64, nl),
		Cost: make([]float64, nl),
		Conn: model.NewIncidence(nb, nl),
	}
	for i, l := range c.Loads {
		g.Loads.P[i] = l.P
		g.Loads.Q[i] = l.Q
		g.Loads.Cost[i] = l.Cost
		g.Loads.Conn.Connect(l.Bus, i)
	}
	g.Loads.PProfile = transpose(len(c.Times), nl, g.Loads.P, func(i int) []float64 { return c.Loads[i].PProfile })
	g.Loads.QProfile = transpose(len(c.Times), nl, g.Loads.Q, func(i int) []float64 { return c.Loads[i].QProfile })

	nbr := len(c.Branches)
	g.Branches = model.BranchSet{
		From:   make([]int, nbr),
		To:     make([]int, nbr),
		R:      make([]float64, nbr),
		X:      make([]float64, nbr),
		B:      make([]float64, nbr),
		Rating: make([]float64, nbr),
		Active: make([]bool, nbr),
		Cost:   make([]float64, nbr),
	}
	for k, br := range c.Branches {
		g.Branches.From[k] = br.From
		g.Branches.To[k] = br.To
		g.Branches.R[k] = br.R
		g.Branches.X[k] = br.X
		g.Branches.B[k] = br.B
		g.Branches.Rating[k] = br.Rating
		g.Branches.Active[k] = br.active()
		g.Branches.Cost[k] = br.Cost
	}
	g.Branches.RatingProfile = transpose(len(c.Times), nbr, g.Branches.Rating, func(k int) []float64 { return c.Branches[k].RatingProfile })

	islands, err := c.islands()
	if err != nil {
		return nil, err
	}
	g.Islands = islands
	return g, nil
}

// islands decomposes the grid into connected components over the in-service
// branches and assembles the per-island matrices and index sets.
func (c *Case) islands() ([]model.Island, error) {
	nb := len(c.Buses)

	adj := make([][]int, nb)
	for k, br := range c.Branches {
		if !br.active() {
			continue
		}
		adj[br.From] = append(adj[br.From], k)
		adj[br.To] = append(adj[br.To], k)
	}

	// Buses with a generator or battery attached are PV unless slack.
	hasSource := make([]bool, nb)
	for _, g := range c.Generators {
		hasSource[g.Bus] = true
	}
	for _, b := range c.Batteries {
		hasSource[b.Bus] = true
	}

	visited := make([]bool, nb)
	var islands []model.Island
	for start := 0; start < nb; start++ {
		if visited[start] {
			continue
		}
		var buses []int
		branchSet := map[int]bool{}
		queue := []int{start}
		visited[start] = true
		for len(queue) > 0 {
			bus := queue[0]
			queue = queue[1:]
			buses = append(buses, bus)
			for _, k := range adj[bus] {
				branchSet[k] = true
				other := c.Branches[k].From
				if other == bus {
					other = c.Branches[k].To
				}
				if !visited[other] {
					visited[other] = true
					queue = append(queue, other)
				}
			}
		}
		sort.Ints(buses)
		branches := make([]int, 0, len(branchSet))
		for k := range branchSet {
			branches = append(branches, k)
		}
		sort.Ints(branches)

		isl, err := c.buildIsland(buses, branches, hasSource)
		if err != nil {
			return nil, err
		}
		islands = append(islands, isl)
	}
	return islands, nil
}

func (c *Case) buildIsland(buses, branches []int, hasSource []bool) (model.Island, error) {
	n := len(buses)
	local := make(map[int]int, n)
	for li, b := range buses {
		local[b] = li
	}

	ybus := mat.NewCDense(n, n, nil)
	yseries := mat.NewCDense(n, n, nil)
	for _, k := range branches {
		br := c.Branches[k]
		z := complex(br.R, br.X)
		if z == 0 {
			return model.Island{}, fmt.Errorf("gridcase: branch %d has zero impedance", k)
		}
		ys := 1 / z
		sh := complex(0, br.B/2)
		f, t := local[br.From], local[br.To]

		ybus.Set(f, f, ybus.At(f, f)+ys+sh)
		ybus.Set(t, t, ybus.At(t, t)+ys+sh)
		ybus.Set(f, t, ybus.At(f, t)-ys)
		ybus.Set(t, f, ybus.At(t, f)-ys)

		yseries.Set(f, f, yseries.At(f, f)+ys)
		yseries.Set(t, t, yseries.At(t, t)+ys)
		yseries.Set(f, t, yseries.At(f, t)-ys)
		yseries.Set(t, f, yseries.At(t, f)-ys)
	}

	isl := model.Island{
		Buses:    buses,
		Branches: branches,
		Ybus:     ybus,
		Yseries:  yseries,
		V0:       make([]complex128, n),
	}
	for li, b := range buses {
		isl.V0[li] = complex(orDefault(c.Buses[b].Vm0, 1.0), 0)
		switch {
		case c.Buses[b].Slack:
			isl.Slack = append(isl.Slack, li)
		case hasSource[b]:
			isl.PV = append(isl.PV, li)
		default:
			isl.PQ = append(isl.PQ, li)
		}
	}
	return isl, nil
}

// transpose gathers optional per-device profiles into [time][device] shape.
// It returns nil when no device carries a profile; a device without one
// repeats its static value across the horizon.
func transpose(nt, n int, static []float64, profile func(i int) []float64) [][]float64 {
	any := false
	for i := 0; i < n; i++ {
		if profile(i) != nil {
			any = true
			break
		}
	}
	if !any || nt == 0 {
		return nil
	}
	out := make([][]float64, nt)
	for t := 0; t < nt; t++ {
		out[t] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		p := profile(i)
		for t := 0; t < nt; t++ {
			if p != nil {
				out[t][i] = p[t]
			} else {
				out[t][i] = static[i]
			}
		}
	}
	return out
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}
