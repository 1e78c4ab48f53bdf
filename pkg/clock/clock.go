// Package clock provides the collector's time source and the fixed-offset
// local time rendering used in readings.
//
// Wall-clock time is consumed as a trusted source once it is "ready", which
// on field hardware means NTP has produced a plausible date. WaitReady blocks
// until that happens.
//
// Usage:
//
//	c := clock.System()
//	if err := clock.WaitReady(ctx, c, clock.DefaultNotBefore, 500*time.Millisecond); err != nil {
//	    return err
//	}
//	zone := clock.FixedZone(9 * time.Hour)
//	local := clock.FormatLocal(c.Now(), zone) // "2025-06-01 09:30:00"
package clock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/c360/fieldstreams/errors"
)

// LocalLayout is the layout of the local-time string carried by readings
const LocalLayout = "2006-01-02 15:04:05"

// DefaultNotBefore is the earliest instant treated as a synchronized clock
var DefaultNotBefore = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

// Clock is a source of the current time
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// System returns the process wall clock
func System() Clock {
	return systemClock{}
}

// FixedZone returns a location with a constant offset from UTC. The name is
// derived from the offset, e.g. "UTC+09:00".
func FixedZone(offset time.Duration) *time.Location {
	secs := int(offset / time.Second)
	sign := '+'
	abs := secs
	if secs < 0 {
		sign = '-'
		abs = -secs
	}
	name := fmt.Sprintf("UTC%c%02d:%02d", sign, abs/3600, (abs%3600)/60)
	return time.FixedZone(name, secs)
}

// FormatLocal renders t in loc using LocalLayout. A nil loc means UTC.
func FormatLocal(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(LocalLayout)
}

// WaitReady polls c until it reports a time at or after notBefore, or ctx ends.
func WaitReady(ctx context.Context, c Clock, notBefore time.Time, poll time.Duration) error {
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		if !c.Now().Before(notBefore) {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.WrapTransient(
				fmt.Errorf("%w: %w", errors.ErrClockNotReady, ctx.Err()),
				"clock", "WaitReady", "wait for synchronized time")
		case <-ticker.C:
		}
	}
}

// Manual is a Clock whose time only moves when told to. Safe for concurrent use.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual returns a Manual clock set to start
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the current manual time
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by d
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

// Set moves the clock to t
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}
