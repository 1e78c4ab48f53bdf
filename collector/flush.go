package collector

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/c360/fieldstreams/errors"
	"github.com/c360/fieldstreams/metric"
	"github.com/c360/fieldstreams/pkg/clock"
	"github.com/c360/fieldstreams/reading"
)

// DeliveryOutcome is what happened to one reading during a flush. A nil error
// means the sink accepted it or the sink is not configured.
type DeliveryOutcome struct {
	Reading    reading.Reading
	LogErr     error
	RemoteErr  error
	MirrorErrs map[string]error
}

// OK reports whether every sink accepted the reading
func (o DeliveryOutcome) OK() bool {
	if o.LogErr != nil || o.RemoteErr != nil {
		return false
	}
	for _, err := range o.MirrorErrs {
		if err != nil {
			return false
		}
	}
	return true
}

// FlushReport describes one flush cycle
type FlushReport struct {
	ID        uuid.UUID
	StartedAt time.Time
	Finished  time.Time
	Outcomes  []DeliveryOutcome
}

// Len returns the number of readings drained
func (r FlushReport) Len() int {
	return len(r.Outcomes)
}

// Failed returns the number of readings at least one sink rejected
func (r FlushReport) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if !o.OK() {
			n++
		}
	}
	return n
}

// FirstError returns the first sink error of the flush in delivery order
func (r FlushReport) FirstError() error {
	for _, o := range r.Outcomes {
		if o.LogErr != nil {
			return o.LogErr
		}
		if o.RemoteErr != nil {
			return o.RemoteErr
		}
		for _, err := range o.MirrorErrs {
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// Duration returns how long the flush took
func (r FlushReport) Duration() time.Duration {
	return r.Finished.Sub(r.StartedAt)
}

// Flusher drains a buffer and hands each reading to the durable log, then the
// remote endpoint, then every mirror. Sinks are independent: a failure in one
// does not skip the others, and nothing is retried or put back.
type Flusher struct {
	Log     Sink
	Remote  Sink
	Mirrors []Sink

	Clock   clock.Clock
	Metrics *metric.Metrics
	Logger  *slog.Logger
}

// Flush drains buf and delivers its contents in buffer order
func (f *Flusher) Flush(ctx context.Context, buf Drainer) FlushReport {
	clk := f.Clock
	if clk == nil {
		clk = clock.System()
	}
	logger := f.Logger
	if logger == nil {
		logger = slog.Default()
	}

	report := FlushReport{
		ID:        uuid.New(),
		StartedAt: clk.Now(),
	}

	snapshot := buf.DrainAll()
	report.Outcomes = make([]DeliveryOutcome, 0, len(snapshot))

	for _, r := range snapshot {
		outcome := DeliveryOutcome{Reading: r}
		outcome.LogErr = f.deliver(ctx, f.Log, r, report.ID, logger)
		outcome.RemoteErr = f.deliver(ctx, f.Remote, r, report.ID, logger)

		if len(f.Mirrors) > 0 {
			outcome.MirrorErrs = make(map[string]error, len(f.Mirrors))
			for _, m := range f.Mirrors {
				outcome.MirrorErrs[m.Name()] = f.deliver(ctx, m, r, report.ID, logger)
			}
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}

	report.Finished = clk.Now()
	if f.Metrics != nil {
		f.Metrics.RecordFlush("collector", report.Len(), report.Duration())
	}
	if report.Len() > 0 {
		logger.Info("Flush completed",
			"flush_id", report.ID,
			"readings", report.Len(),
			"failed", report.Failed(),
			"duration", report.Duration())
	}
	return report
}

func (f *Flusher) deliver(ctx context.Context, sink Sink, r reading.Reading, id uuid.UUID, logger *slog.Logger) error {
	if sink == nil {
		return nil
	}

	err := sink.Write(ctx, r)
	if f.Metrics != nil {
		f.Metrics.RecordSinkWrite(sink.Name(), err == nil)
	}
	if err == nil {
		return nil
	}

	class := errors.Classify(err)
	if f.Metrics != nil {
		f.Metrics.RecordError(sink.Name(), class.String())
	}
	logger.Warn("Sink write failed",
		"flush_id", id,
		"sink", sink.Name(),
		"key", r.Key().String(),
		"class", class.String(),
		"error", err)
	return err
}
