package config

import "fmt"

// SolverConfig selects the LP backend and the run shape.
type SolverConfig struct {
	// Backend selects the LP implementation: "simplex" or "highs".
	Backend string `json:"backend"`
	// Formulation selects the power flow linearization: "dc" or "ac".
	Formulation string `json:"formulation"`
	// Grouping splits a series run: "none", "daily", "weekly" or "monthly".
	Grouping string `json:"grouping"`
	// Sequential solves a horizon period by period instead of as coupled
	// blocks, carrying battery energy forward between solves.
	Sequential bool `json:"sequential"`
}

// SetDefaults applies sane defaults.
func (c *SolverConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "simplex"
	}
	if c.Formulation == "" {
		c.Formulation = "dc"
	}
	if c.Grouping == "" {
		c.Grouping = "none"
	}
}

// Validate checks the enumerated fields.
func (c SolverConfig) Validate() error {
	switch c.Backend {
	case "simplex", "highs":
	default:
		return fmt.Errorf("unknown solver backend %s", c.Backend)
	}
	switch c.Formulation {
	case "dc", "ac":
	default:
		return fmt.Errorf("unknown formulation %s", c.Formulation)
	}
	switch c.Grouping {
	case "none", "daily", "weekly", "monthly":
	default:
		return fmt.Errorf("unknown grouping %s", c.Grouping)
	}
	return nil
}
