package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/kgrid/gridopf/core/lp"
	"github.com/kgrid/gridopf/core/model"
	"github.com/kgrid/gridopf/core/opf"
)

func sampleSeries() *opf.SeriesResults {
	g := &model.Grid{
		Sbase: 100,
		NBus:  2,
		Times: []time.Time{
			time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 3, 1, 1, 0, 0, 0, time.UTC),
		},
		Generators: model.GeneratorSet{Pmax: []float64{50}},
		Loads:      model.LoadSet{P: []float64{15}},
		Branches:   model.BranchSet{From: []int{0}, To: []int{1}},
	}
	res := opf.NewSeriesResults(g)
	res.Objective = 3
	for t := 0; t < 2; t++ {
		res.Status[t] = lp.StatusOptimal
		res.Converged[t] = true
		res.Voltage[t] = []complex128{1, model.PolarVoltage(1, 0.015)}
		res.BranchFlow[t] = []float64{15}
		res.Loading[t] = []float64{0.5}
		res.ShadowPrice[t] = []float64{-10, -10}
		res.GeneratorPower[t] = []float64{15}
	}
	return res
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleSeries()); err != nil {
		t.Fatalf("write: %v", err)
	}

	var doc struct {
		Objective float64 `json:"objective"`
		Periods   []struct {
			Time         *time.Time `json:"time"`
			Converged    bool       `json:"converged"`
			VoltageMag   []float64  `json:"voltage_pu"`
			VoltageAngle []float64  `json:"voltage_angle_rad"`
			BranchFlowMW []float64  `json:"branch_flow_mw"`
		} `json:"periods"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Objective != 3 || len(doc.Periods) != 2 {
		t.Fatalf("doc = %+v", doc)
	}
	p := doc.Periods[0]
	if p.Time == nil || !p.Converged {
		t.Fatalf("period = %+v", p)
	}
	// The angle comes back in its natural sign despite the conjugated
	// phasor storage.
	if math.Abs(p.VoltageAngle[1]-0.015) > 1e-9 {
		t.Fatalf("angle = %g, want 0.015", p.VoltageAngle[1])
	}
	if math.Abs(p.VoltageMag[1]-1) > 1e-9 {
		t.Fatalf("magnitude = %g, want 1", p.VoltageMag[1])
	}
	if p.BranchFlowMW[0] != 15 {
		t.Fatalf("flow = %g, want 15", p.BranchFlowMW[0])
	}
}

func TestWriteSnapshotJSON(t *testing.T) {
	res := &opf.Results{
		Status:         lp.StatusOptimal,
		Converged:      true,
		Voltage:        []complex128{1},
		BranchFlow:     []float64{},
		Loading:        []float64{},
		Overload:       []float64{},
		ShadowPrice:    []float64{-10},
		GeneratorPower: []float64{15},
		BatteryPower:   []float64{},
		LoadShedding:   []float64{0},
	}
	var buf bytes.Buffer
	if err := WriteSnapshotJSON(&buf, res); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"status":"optimal"`) {
		t.Fatalf("missing status: %s", out)
	}
	// Snapshots carry no energy series.
	if strings.Contains(out, "battery_mwh") {
		t.Fatalf("unexpected energy field: %s", out)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleSeries()); err != nil {
		t.Fatalf("write: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	header := rows[0]
	want := []string{"time", "converged", "kind", "index", "value"}
	for i := range want {
		if header[i] != want[i] {
			t.Fatalf("header = %v", header)
		}
	}
	// Per period: 2 voltages + 2 prices + 1 flow + 1 overload + 1 generator
	// + 1 shedding = 8 rows.
	if len(rows) != 1+2*8 {
		t.Fatalf("rows = %d, want %d", len(rows), 1+2*8)
	}
	var sawFlow bool
	for _, r := range rows[1:] {
		if r[0] != "2024-03-01T00:00:00Z" && r[0] != "2024-03-01T01:00:00Z" {
			t.Fatalf("bad timestamp %q", r[0])
		}
		if r[2] == "flow_mw" && r[4] == "15" {
			sawFlow = true
		}
	}
	if !sawFlow {
		t.Fatalf("flow row missing")
	}
}
