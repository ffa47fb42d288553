package metrics

import (
	coremetrics "github.com/kgrid/gridopf/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records solve events in Prometheus metrics.
type PromSink struct {
	solves    *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	objective *prometheus.GaugeVec
	shedding  *prometheus.GaugeVec
	overload  *prometheus.GaugeVec
}

// NewPromSink registers solve metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (coremetrics.Sink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (coremetrics.Sink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	solves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "opf_solves_total",
		Help: "Total number of period solves",
	}, []string{"formulation", "backend", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "opf_solve_duration_seconds",
		Help:    "Time spent formulating and solving one period",
		Buckets: prometheus.DefBuckets,
	}, []string{"formulation", "backend"})
	objective := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "opf_objective_cost",
		Help: "Objective value of the last solved period",
	}, []string{"formulation", "backend"})
	shedding := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "opf_load_shedding_mw",
		Help: "Total load shedding of the last solved period in MW",
	}, []string{"formulation", "backend"})
	overload := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "opf_branch_overload_mw",
		Help: "Total branch overload of the last solved period in MW",
	}, []string{"formulation", "backend"})

	if err := reg.Register(solves); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			solves = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(duration); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			duration = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(objective); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			objective = are.ExistingCollector.(*prometheus.GaugeVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(shedding); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			shedding = are.ExistingCollector.(*prometheus.GaugeVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(overload); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			overload = are.ExistingCollector.(*prometheus.GaugeVec)
		} else {
			return nil, err
		}
	}

	return &PromSink{solves: solves, duration: duration, objective: objective, shedding: shedding, overload: overload}, nil
}

// RecordSolve increments the solve counter and updates the last-period gauges.
func (s *PromSink) RecordSolve(rec coremetrics.SolveRecord) error {
	s.solves.WithLabelValues(rec.Formulation, rec.Backend, rec.Status).Inc()
	s.duration.WithLabelValues(rec.Formulation, rec.Backend).Observe(rec.Duration.Seconds())
	if rec.Converged {
		s.objective.WithLabelValues(rec.Formulation, rec.Backend).Set(rec.Objective)
		s.shedding.WithLabelValues(rec.Formulation, rec.Backend).Set(rec.LoadSheddingMW)
		s.overload.WithLabelValues(rec.Formulation, rec.Backend).Set(rec.OverloadMW)
	}
	return nil
}
