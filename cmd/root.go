// Package cmd implements the gridopf command line interface.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kgrid/gridopf/config"
	"github.com/kgrid/gridopf/core/model"
	"github.com/kgrid/gridopf/pkg/gridcase"
)

var (
	cfgPath     string
	casePath    string
	formulation string
	outPath     string
	outFormat   string
)

var rootCmd = &cobra.Command{
	Use:   "gridopf",
	Short: "Optimal power flow engine",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "configuration file (json or yaml)")
	rootCmd.PersistentFlags().StringVar(&casePath, "case", "", "grid case file (json)")
	rootCmd.PersistentFlags().StringVarP(&formulation, "formulation", "f", "", "power flow linearization: dc or ac")
	rootCmd.PersistentFlags().StringVarP(&outPath, "output", "o", "", "result file, stdout when empty")
	rootCmd.PersistentFlags().StringVar(&outFormat, "format", "json", "result format: json or csv")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

// loadConfig reads the configuration file and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if cfgPath != "" {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if formulation != "" {
		cfg.Solver.Formulation = formulation
	}
	if err := cfg.Solver.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadGrid compiles the case file named on the command line.
func loadGrid() (*model.Grid, error) {
	if casePath == "" {
		return nil, fmt.Errorf("a --case file is required")
	}
	c, err := gridcase.LoadFile(casePath)
	if err != nil {
		return nil, err
	}
	grid, err := c.Compile()
	if err != nil {
		return nil, err
	}
	return grid, nil
}
