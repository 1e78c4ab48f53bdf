// Package influx mirrors flushed readings into InfluxDB as points
package influx

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/c360/fieldstreams/errors"
	"github.com/c360/fieldstreams/reading"
)

// DefaultMeasurement is the measurement name of written points
const DefaultMeasurement = "reading"

// Config holds configuration for the InfluxDB mirror
type Config struct {
	URL         string        `json:"url"         yaml:"url"`
	Token       string        `json:"token"       yaml:"token"`
	Org         string        `json:"org"         yaml:"org"`
	Bucket      string        `json:"bucket"      yaml:"bucket"`
	Measurement string        `json:"measurement" yaml:"measurement"`
	Timeout     time.Duration `json:"timeout"     yaml:"timeout"`
}

// Validate checks the configuration for errors
func (c Config) Validate() error {
	if c.URL == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "url is required")
	}
	if _, err := url.ParseRequestURI(c.URL); err != nil {
		return errors.WrapInvalid(err, "Config", "Validate", "parse url")
	}
	if c.Org == "" || c.Bucket == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "org and bucket are required")
	}
	if c.Timeout < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "timeout cannot be negative")
	}
	return nil
}

// OutputDeps holds runtime dependencies for the InfluxDB mirror
type OutputDeps struct {
	Name   string
	Config Config
	Logger *slog.Logger
}

// Output writes one point per reading with the blocking write API
type Output struct {
	name        string
	measurement string
	client      influxdb2.Client
	writer      api.WriteAPIBlocking
	logger      *slog.Logger

	written atomic.Int64
	errors  atomic.Int64
}

// NewOutput creates the InfluxDB mirror sink. No request is made until the
// first write.
func NewOutput(deps OutputDeps) (*Output, error) {
	cfg := deps.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	measurement := cfg.Measurement
	if measurement == "" {
		measurement = DefaultMeasurement
	}

	opts := influxdb2.DefaultOptions()
	if cfg.Timeout > 0 {
		secs := uint((cfg.Timeout + time.Second - 1) / time.Second)
		opts = opts.SetHTTPRequestTimeout(secs)
	}
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	name := deps.Name
	if name == "" {
		name = "influx"
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Output{
		name:        name,
		measurement: measurement,
		client:      client,
		writer:      client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		logger:      logger.With("component", "influx-output", "bucket", cfg.Bucket),
	}, nil
}

// Name returns the sink name used in reports and metrics
func (o *Output) Name() string {
	return o.name
}

// Point converts a reading to its InfluxDB point
func (o *Output) Point(r reading.Reading) *write.Point {
	return influxdb2.NewPoint(
		o.measurement,
		map[string]string{
			"kind":     r.Kind,
			"room":     strconv.Itoa(r.Room),
			"region":   strconv.Itoa(r.Region),
			"order":    strconv.Itoa(r.Order),
			"priority": strconv.Itoa(r.Priority),
			"ip":       r.SourceAddress,
		},
		map[string]any{"value": r.Value},
		r.ObservedAtUTC,
	)
}

// Write writes the point for r. Failures wrap errors.ErrSinkDelivery.
func (o *Output) Write(ctx context.Context, r reading.Reading) error {
	if err := o.writer.WritePoint(ctx, o.Point(r)); err != nil {
		o.errors.Add(1)
		return errors.SinkError(errors.ErrSinkDelivery, o.name, fmt.Errorf("write point: %w", err))
	}
	o.written.Add(1)
	return nil
}

// Written returns the number of points written
func (o *Output) Written() int64 {
	return o.written.Load()
}

// Errors returns the number of failed writes
func (o *Output) Errors() int64 {
	return o.errors.Load()
}

// Close releases the client's idle connections
func (o *Output) Close() error {
	o.client.Close()
	return nil
}
