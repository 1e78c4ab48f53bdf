// Package natspub mirrors flushed readings onto NATS subjects
package natspub

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/c360/fieldstreams/errors"
	"github.com/c360/fieldstreams/reading"
)

// DefaultSubjectPrefix is prepended to the per-kind subject token
const DefaultSubjectPrefix = "fieldstreams.readings"

// Publisher sends raw bytes to a subject. *natsclient.Client satisfies it.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Config holds configuration for the NATS mirror
type Config struct {
	SubjectPrefix string `json:"subject_prefix" yaml:"subject_prefix"`
}

// DefaultConfig returns default configuration for the NATS mirror
func DefaultConfig() Config {
	return Config{SubjectPrefix: DefaultSubjectPrefix}
}

// OutputDeps holds runtime dependencies for the NATS mirror
type OutputDeps struct {
	Name      string
	Config    Config
	Publisher Publisher
	Logger    *slog.Logger
}

// Output publishes each reading's JSON payload to <prefix>.<kind token>
type Output struct {
	name      string
	prefix    string
	publisher Publisher
	logger    *slog.Logger

	published atomic.Int64
	errors    atomic.Int64
}

// NewOutput creates the NATS mirror sink
func NewOutput(deps OutputDeps) (*Output, error) {
	if deps.Publisher == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Output", "NewOutput", "publisher check")
	}

	prefix := strings.TrimSuffix(deps.Config.SubjectPrefix, ".")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if strings.ContainsAny(prefix, "*> \t") {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Output", "NewOutput", "subject prefix check")
	}

	name := deps.Name
	if name == "" {
		name = "nats"
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Output{
		name:      name,
		prefix:    prefix,
		publisher: deps.Publisher,
		logger:    logger.With("component", "natspub-output", "prefix", prefix),
	}, nil
}

// Name returns the sink name used in reports and metrics
func (o *Output) Name() string {
	return o.name
}

// Subject returns the subject a reading of the given kind is published to
func (o *Output) Subject(kind string) string {
	return o.prefix + "." + SubjectToken(kind)
}

// Write publishes the JSON payload of r. Failures wrap errors.ErrSinkDelivery.
func (o *Output) Write(ctx context.Context, r reading.Reading) error {
	data, err := r.MarshalPayload()
	if err == nil {
		err = o.publisher.Publish(ctx, o.Subject(r.Kind), data)
	}
	if err != nil {
		o.errors.Add(1)
		return errors.SinkError(errors.ErrSinkDelivery, o.name, err)
	}

	o.published.Add(1)
	return nil
}

// Published returns the number of readings published
func (o *Output) Published() int64 {
	return o.published.Load()
}

// Errors returns the number of failed publishes
func (o *Output) Errors() int64 {
	return o.errors.Load()
}

// SubjectToken maps a reading kind to a single NATS subject token. Dots,
// wildcards and whitespace become underscores; an empty kind maps to
// "unknown".
func SubjectToken(kind string) string {
	if kind == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, kind)
}
