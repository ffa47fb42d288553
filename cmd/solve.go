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

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Solve a single-period snapshot",
	RunE:  runSolve,
}

func init() {
	rootCmd.AddCommand(solveCmd)
}

func runSolve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	grid, err := loadGrid()
	if err != nil {
		return err
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

	res, err := svc.Snapshot(ctx, grid)
	if err != nil {
		return err
	}
	return writeOutput(func(w io.Writer) error {
		if outFormat != "json" {
			return fmt.Errorf("snapshot results support json output only")
		}
		return export.WriteSnapshotJSON(w, res)
	})
}

// writeOutput directs the export to --output or stdout.
func writeOutput(write func(io.Writer) error) error {
	if outPath == "" {
		return write(os.Stdout)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
