// Package app wires the configuration into a runnable engine: logger,
// metrics sinks, event bus, MQTT publisher and the OPF driver.
package app

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kgrid/gridopf/config"
	"github.com/kgrid/gridopf/core/logger"
	"github.com/kgrid/gridopf/core/model"
	"github.com/kgrid/gridopf/core/opf"
	infralogger "github.com/kgrid/gridopf/infra/logger"
	"github.com/kgrid/gridopf/infra/metrics"
	"github.com/kgrid/gridopf/infra/publish"
	"github.com/kgrid/gridopf/infra/solver"
	"github.com/kgrid/gridopf/internal/eventbus"
)

// Service orchestrates the driver and its observability plumbing.
type Service struct {
	cfg    *config.Config
	driver *opf.Driver
	bus    *eventbus.Bus
	pub    *publish.Publisher
	log    logger.Logger

	formulation opf.Formulation
	grouping    opf.Grouping
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := infralogger.New("service")

	backend, err := solver.New(cfg.Solver.Backend)
	if err != nil {
		return nil, err
	}
	formulation, err := opf.ParseFormulation(cfg.Solver.Formulation)
	if err != nil {
		return nil, err
	}
	grouping, err := opf.ParseGrouping(cfg.Solver.Grouping)
	if err != nil {
		return nil, err
	}
	sink, err := metrics.FromConfig(cfg.Metrics)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	bus := eventbus.New()
	svc := &Service{
		cfg:         cfg,
		bus:         bus,
		log:         logg,
		formulation: formulation,
		grouping:    grouping,
	}
	if cfg.Publish.Enabled {
		pub, err := publish.NewPublisher(cfg.Publish)
		if err != nil {
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
		svc.pub = pub
	}
	svc.driver = opf.NewDriver(backend,
		opf.WithLogger(logg),
		opf.WithSink(sink),
		opf.WithBus(bus),
	)
	return svc, nil
}

// Start launches the background consumers: the Prometheus endpoint and the
// MQTT publisher. It returns immediately; both stop with the context.
func (s *Service) Start(ctx context.Context) {
	if s.cfg.Metrics.PrometheusEnabled {
		addr := ":" + strconv.Itoa(s.cfg.Metrics.PrometheusPort)
		go func() {
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if s.pub != nil {
		go s.pub.Run(ctx, s.bus)
	}
}

// Snapshot solves the static single-period problem.
func (s *Service) Snapshot(ctx context.Context, grid *model.Grid) (*opf.Results, error) {
	return s.driver.Snapshot(ctx, grid, s.formulation)
}

// Series solves the whole horizon, sequentially or in grouped blocks
// depending on the configuration.
func (s *Service) Series(ctx context.Context, grid *model.Grid) (*opf.SeriesResults, error) {
	if s.cfg.Solver.Sequential {
		return s.driver.Sequential(ctx, grid, s.formulation)
	}
	return s.driver.Series(ctx, grid, s.formulation, s.grouping)
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.bus.Close()
	if s.pub != nil {
		s.pub.Disconnect()
	}
	return nil
}
