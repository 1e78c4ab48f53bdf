package collector

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/c360/fieldstreams/errors"
	"github.com/c360/fieldstreams/health"
	"github.com/c360/fieldstreams/metric"
	"github.com/c360/fieldstreams/pkg/buffer"
	"github.com/c360/fieldstreams/pkg/clock"
	"github.com/c360/fieldstreams/reading"
)

const (
	// DefaultInterval is the time between flushes
	DefaultInterval = 300 * time.Second
	// DefaultYieldInterval is the pause between loop iterations
	DefaultYieldInterval = 10 * time.Millisecond
	// DefaultShutdownTimeout bounds the final flush after cancellation
	DefaultShutdownTimeout = 30 * time.Second
)

// LoopConfig controls flush timing. Zero durations take their defaults.
type LoopConfig struct {
	Interval      time.Duration
	YieldInterval time.Duration
	// SkipShutdownFlush leaves pending readings unflushed when Run stops
	SkipShutdownFlush bool
	ShutdownTimeout   time.Duration
}

// DefaultLoopConfig returns the default loop configuration
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		Interval:        DefaultInterval,
		YieldInterval:   DefaultYieldInterval,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

func (c LoopConfig) withDefaults() LoopConfig {
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	if c.YieldInterval == 0 {
		c.YieldInterval = DefaultYieldInterval
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	return c
}

// Validate checks the configuration for errors
func (c LoopConfig) Validate() error {
	if c.Interval <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "LoopConfig", "Validate", "interval must be positive")
	}
	if c.YieldInterval < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "LoopConfig", "Validate", "yield interval cannot be negative")
	}
	if c.ShutdownTimeout < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "LoopConfig", "Validate", "shutdown timeout cannot be negative")
	}
	return nil
}

// LoopDeps holds the collaborators of a Loop. Buffer, Clock, Metrics, Health
// and Logger are optional.
type LoopDeps struct {
	Name     string
	Config   LoopConfig
	Receiver Receiver
	Parser   MessageParser
	Buffer   *buffer.Keyed[reading.Key, reading.Reading]
	Flusher  *Flusher
	Clock    clock.Clock
	Metrics  *metric.Metrics
	Health   *health.Monitor
	Logger   *slog.Logger
}

// StepResult describes one loop iteration
type StepResult struct {
	// Received is true when a datagram was polled
	Received bool
	// Accepted is true when the datagram parsed and reached the buffer
	Accepted bool
	// Upsert is the buffer outcome, meaningful when Received is true and
	// DropReason is empty or DropRejected
	Upsert buffer.UpsertResult
	// DropReason names why a received datagram was discarded
	DropReason string
	// Err is the receive, parse or buffer error, if any
	Err error
	// Flush is set when this step ran a flush
	Flush *FlushReport
}

// Stats holds loop counters
type Stats struct {
	Received  int64
	Accepted  int64
	Dropped   int64
	Flushes   int64
	Pending   int
	LastFlush time.Time
}

// Loop is the ingest loop. It owns the buffer and the last-flush reference.
type Loop struct {
	name     string
	config   LoopConfig
	receiver Receiver
	parser   MessageParser
	buffer   *buffer.Keyed[reading.Key, reading.Reading]
	flusher  *Flusher
	clock    clock.Clock
	metrics  *metric.Metrics
	health   *health.Monitor
	logger   *slog.Logger

	dropLimiter *rate.Limiter
	suppressed  atomic.Int64

	lastFlush atomic.Pointer[time.Time]
	received  atomic.Int64
	accepted  atomic.Int64
	dropped   atomic.Int64
	flushes   atomic.Int64
}

// NewLoop creates an ingest loop. The last-flush reference starts at the
// current clock time, so the first flush happens one interval later.
func NewLoop(deps LoopDeps) (*Loop, error) {
	if deps.Receiver == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "collector", "NewLoop", "receiver is required")
	}
	if deps.Parser == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "collector", "NewLoop", "parser is required")
	}
	if deps.Flusher == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "collector", "NewLoop", "flusher is required")
	}

	cfg := deps.Config.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	name := deps.Name
	if name == "" {
		name = "collector"
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", name)

	clk := deps.Clock
	if clk == nil {
		clk = clock.System()
	}

	buf := deps.Buffer
	if buf == nil {
		var err error
		buf, err = buffer.NewKeyed(reading.KeyOf)
		if err != nil {
			return nil, errors.WrapFatal(err, "collector", "NewLoop", "create buffer")
		}
	}

	if deps.Flusher.Clock == nil {
		deps.Flusher.Clock = clk
	}
	if deps.Flusher.Logger == nil {
		deps.Flusher.Logger = logger
	}
	if deps.Flusher.Metrics == nil {
		deps.Flusher.Metrics = deps.Metrics
	}

	l := &Loop{
		name:        name,
		config:      cfg,
		receiver:    deps.Receiver,
		parser:      deps.Parser,
		buffer:      buf,
		flusher:     deps.Flusher,
		clock:       clk,
		metrics:     deps.Metrics,
		health:      deps.Health,
		logger:      logger,
		dropLimiter: rate.NewLimiter(rate.Every(time.Second), 10),
	}
	now := clk.Now()
	l.lastFlush.Store(&now)
	if l.health != nil {
		l.health.UpdateHealthy(name, "waiting for first flush")
	}
	return l, nil
}

// Step runs one iteration: poll, parse, upsert, and flush when due. A flush
// started here is not cut short when ctx is cancelled: the readings are
// already drained, so every sink still gets its attempt.
func (l *Loop) Step(ctx context.Context) StepResult {
	var res StepResult

	dg, ok, err := l.receiver.Poll(ctx)
	switch {
	case err != nil:
		res.Err = err
		l.logDrop("Receive failed", "error", err)
	case ok:
		res.Received = true
		l.ingest(dg.Data, &res)
	}

	if l.due() {
		report := l.Flush(context.WithoutCancel(ctx))
		res.Flush = &report
	}
	return res
}

func (l *Loop) ingest(data []byte, res *StepResult) {
	l.received.Add(1)
	if l.metrics != nil {
		l.metrics.RecordMessageReceived(l.name)
	}

	r, err := l.parser.Parse(data)
	if err != nil {
		res.Err = err
		res.DropReason = DropMalformed
		if stderrors.Is(err, errors.ErrControlMessage) {
			res.DropReason = DropControl
		}
		l.drop(res.DropReason, "error", err)
		return
	}

	res.Upsert = l.buffer.Upsert(r)
	if res.Upsert == buffer.UpsertRejected {
		res.Err = errors.WrapTransient(errors.ErrBufferFull, l.name, "Step", "buffer reading")
		res.DropReason = DropRejected
		l.drop(DropRejected, "key", r.Key().String(), "max_keys", l.buffer.MaxKeys())
		return
	}

	res.Accepted = true
	l.accepted.Add(1)
	if l.metrics != nil {
		l.metrics.RecordReadingAccepted(l.name, r.Degraded)
	}
	if r.IsDegraded() {
		l.logger.Debug("Reading accepted with defaulted fields",
			"key", r.Key().String(), "degraded", r.Degraded)
	}
}

func (l *Loop) drop(reason string, args ...any) {
	l.dropped.Add(1)
	if l.metrics != nil {
		l.metrics.RecordMessageDropped(l.name, reason)
	}
	l.logDrop("Message dropped", append([]any{"reason", reason}, args...)...)
}

// logDrop logs at debug level, throttled so a flood of bad datagrams cannot
// swamp the log. Suppressed entries are counted and reported with the next
// one that gets through.
func (l *Loop) logDrop(msg string, args ...any) {
	if !l.dropLimiter.Allow() {
		l.suppressed.Add(1)
		return
	}
	if n := l.suppressed.Swap(0); n > 0 {
		args = append(args, "suppressed", n)
	}
	l.logger.Debug(msg, args...)
}

func (l *Loop) due() bool {
	return l.clock.Now().Sub(l.LastFlush()) >= l.config.Interval
}

// Flush drains the buffer to the sinks and resets the last-flush reference to
// the current time, whatever the sink outcomes were.
func (l *Loop) Flush(ctx context.Context) FlushReport {
	report := l.flusher.Flush(ctx, l.buffer)
	now := l.clock.Now()
	l.lastFlush.Store(&now)
	l.flushes.Add(1)
	l.reportHealth(report, now)
	return report
}

// reportHealth marks the loop degraded while the latest flush had failed
// deliveries
func (l *Loop) reportHealth(report FlushReport, now time.Time) {
	if l.health == nil {
		return
	}

	var status health.Status
	if failed := report.Failed(); failed > 0 {
		msg := fmt.Sprintf("%d of %d readings failed delivery", failed, report.Len())
		if err := report.FirstError(); err != nil {
			msg += ": " + health.SanitizeMessage(err.Error())
		}
		status = health.NewDegraded(l.name, msg)
	} else {
		status = health.NewHealthy(l.name, fmt.Sprintf("last flush delivered %d readings", report.Len()))
	}

	l.health.Update(l.name, status.WithMetrics(&health.Metrics{
		ErrorCount:        int64(report.Failed()),
		MessagesProcessed: l.received.Load(),
		LastActivity:      now,
	}))
}

// Run steps until ctx is cancelled. Unless SkipShutdownFlush is set, pending
// readings are flushed once more, detached from ctx and bounded by
// ShutdownTimeout.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("Collector loop started", "interval", l.config.Interval)

	yield := time.NewTimer(l.config.YieldInterval)
	defer yield.Stop()

	for ctx.Err() == nil {
		l.Step(ctx)

		yield.Reset(l.config.YieldInterval)
		select {
		case <-ctx.Done():
		case <-yield.C:
		}
	}

	if !l.config.SkipShutdownFlush && l.Pending() > 0 {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.config.ShutdownTimeout)
		defer cancel()
		report := l.Flush(flushCtx)
		l.logger.Info("Shutdown flush completed", "readings", report.Len(), "failed", report.Failed())
	}

	l.logger.Info("Collector loop stopped")
	return nil
}

// LastFlush returns the time of the most recent flush, or the loop creation
// time before the first one
func (l *Loop) LastFlush() time.Time {
	return *l.lastFlush.Load()
}

// Pending returns the number of buffered readings
func (l *Loop) Pending() int {
	return l.buffer.Len()
}

// Buffer returns the loop's buffer
func (l *Loop) Buffer() *buffer.Keyed[reading.Key, reading.Reading] {
	return l.buffer
}

// Stats returns a snapshot of loop counters
func (l *Loop) Stats() Stats {
	return Stats{
		Received:  l.received.Load(),
		Accepted:  l.accepted.Load(),
		Dropped:   l.dropped.Load(),
		Flushes:   l.flushes.Load(),
		Pending:   l.Pending(),
		LastFlush: l.LastFlush(),
	}
}
