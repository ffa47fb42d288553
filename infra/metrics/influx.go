package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/kgrid/gridopf/core/logger"
	coremetrics "github.com/kgrid/gridopf/core/metrics"
	infralogger "github.com/kgrid/gridopf/infra/logger"
)

// InfluxSink writes solve events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      infralogger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.Sink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordSolve writes one period outcome as a point.
func (s *InfluxSink) RecordSolve(rec coremetrics.SolveRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	at := rec.Time
	if at.IsZero() {
		at = time.Now()
	}
	p := write.NewPointWithMeasurement("opf_solve").
		AddTag("run_id", rec.RunID).
		AddTag("formulation", rec.Formulation).
		AddTag("backend", rec.Backend).
		AddTag("status", rec.Status).
		AddTag("converged", strconv.FormatBool(rec.Converged)).
		AddField("period", rec.Period).
		AddField("objective", round3(rec.Objective)).
		AddField("load_shedding_mw", round3(rec.LoadSheddingMW)).
		AddField("overload_mw", round3(rec.OverloadMW)).
		AddField("duration_ms", round3(rec.Duration.Seconds()*1000)).
		SetTime(at)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordRun writes a run summary point.
func (s *InfluxSink) RecordRun(sum coremetrics.RunSummary) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("opf_run").
		AddTag("run_id", sum.RunID).
		AddTag("formulation", sum.Formulation).
		AddTag("backend", sum.Backend).
		AddField("periods", sum.Periods).
		AddField("solved", sum.Solved).
		AddField("objective", round3(sum.Objective)).
		AddField("duration_ms", round3(sum.Finished.Sub(sum.Started).Seconds()*1000)).
		SetTime(sum.Finished)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
