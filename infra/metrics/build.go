package metrics

import (
	coremetrics "github.com/kgrid/gridopf/core/metrics"
)

// FromConfig assembles the sink stack described by the configuration.
// Disabled sinks are skipped; no enabled sink yields a NopSink. An influx
// endpoint that fails its health check degrades to a no-op on its own, so
// a bad endpoint never aborts a run.
func FromConfig(cfg coremetrics.Config) (coremetrics.Sink, error) {
	var sinks []coremetrics.Sink
	if cfg.PrometheusEnabled {
		prom, err := NewPromSink(cfg)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, prom)
	}
	if cfg.InfluxEnabled {
		sinks = append(sinks, NewInfluxSinkWithFallback(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket))
	}
	switch len(sinks) {
	case 0:
		return coremetrics.NopSink{}, nil
	case 1:
		return sinks[0], nil
	default:
		return NewMultiSink(sinks...), nil
	}
}
