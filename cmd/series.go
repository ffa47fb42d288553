package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kgrid/gridopf/app"
	infralogger "github.com/kgrid/gridopf/infra/logger"
	"github.com/kgrid/gridopf/pkg/export"
)

var (
	grouping   string
	sequential bool
)

var seriesCmd = &cobra.Command{
	Use:   "series",
	Short: "Solve a time horizon",
	RunE:  runSeries,
}

func init() {
	seriesCmd.Flags().StringVar(&grouping, "grouping", "", "horizon grouping: none, daily, weekly or monthly")
	seriesCmd.Flags().BoolVar(&sequential, "sequential", false, "solve period by period, carrying battery energy forward")
	rootCmd.AddCommand(seriesCmd)
}

func runSeries(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if grouping != "" {
		cfg.Solver.Grouping = grouping
	}
	if sequential {
		cfg.Solver.Sequential = true
	}
	if err := cfg.Solver.Validate(); err != nil {
		return err
	}

	grid, err := loadGrid()
	if err != nil {
		return err
	}
	if len(grid.Times) == 0 {
		return fmt.Errorf("case %s carries no time horizon", casePath)
	}

	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			infralogger.New("main").Errorf("service close: %v", err)
		}
	}()
	svc.Start(ctx)

	res, err := svc.Series(ctx, grid)
	if err != nil {
		return err
	}
	return writeOutput(func(w io.Writer) error {
		switch outFormat {
		case "json":
			return export.WriteJSON(w, res)
		case "csv":
			return export.WriteCSV(w, res)
		default:
			return fmt.Errorf("unknown output format %q", outFormat)
		}
	})
}
