// Package export writes solved results to JSON or CSV.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"math/cmplx"
	"strconv"
	"time"

	"github.com/kgrid/gridopf/core/opf"
)

// WriteJSON writes the series results to w in JSON format.
func WriteJSON(w io.Writer, res *opf.SeriesResults) error {
	enc := json.NewEncoder(w)
	return enc.Encode(seriesDoc(res))
}

// WriteSnapshotJSON writes a single-period result to w in JSON format.
func WriteSnapshotJSON(w io.Writer, res *opf.Results) error {
	enc := json.NewEncoder(w)
	return enc.Encode(snapshotDoc(res))
}

// WriteCSV writes one row per period and bus with voltage and shadow
// price, followed by the per-branch flow columns addressed by index.
func WriteCSV(w io.Writer, res *opf.SeriesResults) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time", "converged", "kind", "index", "value"}); err != nil {
		return err
	}
	for t := range res.Status {
		ts := ""
		if t < len(res.Times) {
			ts = res.Times[t].Format(time.RFC3339)
		}
		conv := strconv.FormatBool(res.Converged[t])
		row := func(kind string, i int, v float64) error {
			return cw.Write([]string{ts, conv, kind, strconv.Itoa(i), formatFloat(v)})
		}
		for i, v := range res.Voltage[t] {
			if err := row("voltage_pu", i, cmplx.Abs(v)); err != nil {
				return err
			}
		}
		for i, v := range res.ShadowPrice[t] {
			if err := row("shadow_price", i, v); err != nil {
				return err
			}
		}
		for i, v := range res.BranchFlow[t] {
			if err := row("flow_mw", i, v); err != nil {
				return err
			}
		}
		for i, v := range res.Overload[t] {
			if err := row("overload_mw", i, v); err != nil {
				return err
			}
		}
		for i, v := range res.GeneratorPower[t] {
			if err := row("generator_mw", i, v); err != nil {
				return err
			}
		}
		for i, v := range res.BatteryPower[t] {
			if err := row("battery_mw", i, v); err != nil {
				return err
			}
		}
		for i, v := range res.BatteryEnergy[t] {
			if err := row("battery_mwh", i, v); err != nil {
				return err
			}
		}
		for i, v := range res.LoadShedding[t] {
			if err := row("shedding_mw", i, v); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

type periodDoc struct {
	Time           *time.Time `json:"time,omitempty"`
	Status         string     `json:"status"`
	Converged      bool       `json:"converged"`
	VoltageMag     []float64  `json:"voltage_pu"`
	VoltageAngle   []float64  `json:"voltage_angle_rad"`
	BranchFlowMW   []float64  `json:"branch_flow_mw"`
	Loading        []float64  `json:"loading"`
	OverloadMW     []float64  `json:"overload_mw"`
	ShadowPrice    []float64  `json:"shadow_price"`
	GeneratorMW    []float64  `json:"generator_mw"`
	BatteryMW      []float64  `json:"battery_mw"`
	BatteryMWh     []float64  `json:"battery_mwh,omitempty"`
	LoadSheddingMW []float64  `json:"load_shedding_mw"`
}

type seriesDocT struct {
	Objective float64     `json:"objective"`
	Periods   []periodDoc `json:"periods"`
}

func seriesDoc(res *opf.SeriesResults) seriesDocT {
	doc := seriesDocT{Objective: res.Objective}
	for t := range res.Status {
		p := periodDoc{
			Status:         res.Status[t].String(),
			Converged:      res.Converged[t],
			BranchFlowMW:   res.BranchFlow[t],
			Loading:        res.Loading[t],
			OverloadMW:     res.Overload[t],
			ShadowPrice:    res.ShadowPrice[t],
			GeneratorMW:    res.GeneratorPower[t],
			BatteryMW:      res.BatteryPower[t],
			BatteryMWh:     res.BatteryEnergy[t],
			LoadSheddingMW: res.LoadShedding[t],
		}
		if t < len(res.Times) {
			ts := res.Times[t]
			p.Time = &ts
		}
		p.VoltageMag, p.VoltageAngle = polar(res.Voltage[t])
		doc.Periods = append(doc.Periods, p)
	}
	return doc
}

func snapshotDoc(res *opf.Results) periodDoc {
	p := periodDoc{
		Status:         res.Status.String(),
		Converged:      res.Converged,
		BranchFlowMW:   res.BranchFlow,
		Loading:        res.Loading,
		OverloadMW:     res.Overload,
		ShadowPrice:    res.ShadowPrice,
		GeneratorMW:    res.GeneratorPower,
		BatteryMW:      res.BatteryPower,
		BatteryMWh:     res.BatteryEnergy,
		LoadSheddingMW: res.LoadShedding,
	}
	p.VoltageMag, p.VoltageAngle = polar(res.Voltage)
	return p
}

// polar splits phasors into magnitude and angle, undoing the e^(-j*angle)
// storage convention.
func polar(v []complex128) (mag, ang []float64) {
	mag = make([]float64, len(v))
	ang = make([]float64, len(v))
	for i, p := range v {
		mag[i] = cmplx.Abs(p)
		ang[i] = -cmplx.Phase(p)
	}
	return mag, ang
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
