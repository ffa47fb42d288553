// Package gridcase loads grid descriptions from JSON files and compiles
// them into the numerical form the engine consumes: admittance matrices,
// island decomposition, bus roles and reference voltages. The engine core
// never imports this package; it exists for the CLI and the tests.
package gridcase

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Bus describes one electrical node.
type Bus struct {
	Name string `json:"name"`
	// Slack marks the island reference. An island without a slack bus is
	// left unconstrained by the engine.
	Slack bool `json:"slack"`
	// Vm0 is the reference voltage magnitude in pu, 1.0 when omitted.
	Vm0 float64 `json:"vm0"`
}

// Generator describes one controllable generator.
type Generator struct {
	Name string  `json:"name"`
	Bus  int     `json:"bus"`
	Pmin float64 `json:"pmin"`
	Pmax float64 `json:"pmax"`
	Cost float64 `json:"cost"`

	CostProfile []float64 `json:"cost_profile,omitempty"`
}

// Battery describes one storage device. Positive power discharges.
type Battery struct {
	Name string  `json:"name"`
	Bus  int     `json:"bus"`
	Pmin float64 `json:"pmin"`
	Pmax float64 `json:"pmax"`
	Cost float64 `json:"cost"`

	CapacityMWh  float64 `json:"capacity_mwh"`
	SoC0         float64 `json:"soc0"`
	MinSoC       float64 `json:"min_soc"`
	MaxSoC       float64 `json:"max_soc"`
	ChargeEff    float64 `json:"charge_eff"`
	DischargeEff float64 `json:"discharge_eff"`

	CostProfile []float64 `json:"cost_profile,omitempty"`
}

// Load describes one demand with its shedding penalty.
type Load struct {
	Name string  `json:"name"`
	Bus  int     `json:"bus"`
	P    float64 `json:"p"`
	Q    float64 `json:"q"`
	Cost float64 `json:"cost"`

	PProfile []float64 `json:"p_profile,omitempty"`
	QProfile []float64 `json:"q_profile,omitempty"`
}

// Branch describes one series element between two buses.
type Branch struct {
	Name string `json:"name"`
	From int    `json:"from"`
	To   int    `json:"to"`

	R float64 `json:"r"` // pu
	X float64 `json:"x"` // pu
	B float64 `json:"b"` // pu, total shunt susceptance

	Rating float64 `json:"rating"` // MVA
	Cost   float64 `json:"cost"`   // overload penalty
	// Active defaults to true when omitted.
	Active *bool `json:"active,omitempty"`

	RatingProfile []float64 `json:"rating_profile,omitempty"`
}

// Case is the raw JSON grid description.
type Case struct {
	Name  string `json:"name"`
	Sbase float64 `json:"sbase"`

	Buses      []Bus       `json:"buses"`
	Generators []Generator `json:"generators"`
	Batteries  []Battery   `json:"batteries"`
	Loads      []Load      `json:"loads"`
	Branches   []Branch    `json:"branches"`

	// Times is the optional horizon, RFC3339 timestamps.
	Times []time.Time `json:"times,omitempty"`
}

// LoadFile reads and decodes a case file.
func LoadFile(path string) (*Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gridcase: %w", err)
	}
	var c Case
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("gridcase: decode %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks device bus references and profile lengths.
func (c *Case) Validate() error {
	if c.Sbase <= 0 {
		return fmt.Errorf("gridcase: sbase must be positive, got %g", c.Sbase)
	}
	nb := len(c.Buses)
	if nb == 0 {
		return fmt.Errorf("gridcase: no buses")
	}
	nt := len(c.Times)
	checkProfile := func(kind, name string, p []float64) error {
		if p != nil && len(p) != nt {
			return fmt.Errorf("gridcase: %s %q profile has %d entries, horizon has %d", kind, name, len(p), nt)
		}
		return nil
	}
	for i, g := range c.Generators {
		if g.Bus < 0 || g.Bus >= nb {
			return fmt.Errorf("gridcase: generator %d bus %d out of range", i, g.Bus)
		}
		if err := checkProfile("generator", g.Name, g.CostProfile); err != nil {
			return err
		}
	}
	for i, b := range c.Batteries {
		if b.Bus < 0 || b.Bus >= nb {
			return fmt.Errorf("gridcase: battery %d bus %d out of range", i, b.Bus)
		}
		if err := checkProfile("battery", b.Name, b.CostProfile); err != nil {
			return err
		}
	}
	for i, l := range c.Loads {
		if l.Bus < 0 || l.Bus >= nb {
			return fmt.Errorf("gridcase: load %d bus %d out of range", i, l.Bus)
		}
		if err := checkProfile("load", l.Name, l.PProfile); err != nil {
			return err
		}
		if err := checkProfile("load", l.Name, l.QProfile); err != nil {
			return err
		}
	}
	for i, br := range c.Branches {
		if br.From < 0 || br.From >= nb || br.To < 0 || br.To >= nb {
			return fmt.Errorf("gridcase: branch %d endpoints (%d, %d) out of range", i, br.From, br.To)
		}
		if br.From == br.To {
			return fmt.Errorf("gridcase: branch %d connects bus %d to itself", i, br.From)
		}
		if err := checkProfile("branch", br.Name, br.RatingProfile); err != nil {
			return err
		}
	}
	return nil
}

func (b Branch) active() bool { return b.Active == nil || *b.Active }
