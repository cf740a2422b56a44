package timeseries

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/rafaeljc/fitbit-ingest/internal/config"
	"github.com/rafaeljc/fitbit-ingest/internal/observability"
)

// InfluxSink writes batches to InfluxDB through the blocking write API, so a
// returned nil means the server acknowledged every point.
type InfluxSink struct {
	client influxdb2.Client
	writer api.WriteAPIBlocking
}

// NewInfluxSink connects to InfluxDB and verifies the server answers a ping.
func NewInfluxSink(ctx context.Context, cfg *config.InfluxConfig) (*InfluxSink, error) {
	if cfg == nil {
		return nil, fmt.Errorf("influx config cannot be nil")
	}

	opts := influxdb2.DefaultOptions().
		SetHTTPRequestTimeout(uint(cfg.Timeout.Seconds()))
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.AuthToken(), opts)

	ok, err := client.Ping(ctx)
	if err != nil || !ok {
		client.Close()
		if err == nil {
			err = fmt.Errorf("server not ready")
		}
		return nil, fmt.Errorf("failed to reach influxdb at %s: %w", cfg.URL, err)
	}

	return &InfluxSink{
		client: client,
		writer: client.WriteAPIBlocking(cfg.Organization(), cfg.BucketName()),
	}, nil
}

// Write sends points in one request. Nil fields are dropped and points left
// without fields are skipped, since line protocol cannot carry them.
func (s *InfluxSink) Write(ctx context.Context, points []Point) error {
	out := make([]*write.Point, 0, len(points))
	for _, p := range points {
		if wp := toWritePoint(p); wp != nil {
			out = append(out, wp)
		}
	}
	if len(out) == 0 {
		return nil
	}
	if err := s.writer.WritePoint(ctx, out...); err != nil {
		observability.BatchWritesTotal.WithLabelValues("fail").Inc()
		return fmt.Errorf("failed to write %d points: %w", len(out), err)
	}
	observability.BatchWritesTotal.WithLabelValues("success").Inc()
	observability.PointsWrittenTotal.Add(float64(len(out)))
	return nil
}

// Name returns the component name.
func (s *InfluxSink) Name() string {
	return "influxdb"
}

// Check pings the server.
func (s *InfluxSink) Check(ctx context.Context) error {
	ok, err := s.client.Ping(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("influxdb ping failed")
	}
	return nil
}

// Close releases the client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

func toWritePoint(p Point) *write.Point {
	fields := make(map[string]interface{}, len(p.Fields))
	for k, v := range p.Fields {
		if v != nil {
			fields[k] = v
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return write.NewPoint(p.Measurement, p.Tags, fields, p.Time)
}
