package buffer

import (
	"sync"
	"sync/atomic"
	"time"
)

// Statistics tracks keyed buffer activity.
type Statistics struct {
	inserts  int64
	replaces int64
	rejects  int64
	drains   int64
	drained  int64

	mu          sync.RWMutex
	startTime   time.Time
	currentSize int64
	maxSize     int64
}

// NewStatistics creates a new statistics tracker.
func NewStatistics() *Statistics {
	return &Statistics{
		startTime: time.Now(),
	}
}

// Upsert records the outcome of one upsert.
func (s *Statistics) Upsert(result UpsertResult) {
	switch result {
	case UpsertInserted:
		atomic.AddInt64(&s.inserts, 1)
	case UpsertReplaced:
		atomic.AddInt64(&s.replaces, 1)
	case UpsertRejected:
		atomic.AddInt64(&s.rejects, 1)
	}
}

// Drain records a drain that handed over n items.
func (s *Statistics) Drain(n int) {
	atomic.AddInt64(&s.drains, 1)
	atomic.AddInt64(&s.drained, int64(n))
}

// UpdateSize updates the current number of keys.
func (s *Statistics) UpdateSize(size int64) {
	s.mu.Lock()
	s.currentSize = size
	if size > s.maxSize {
		s.maxSize = size
	}
	s.mu.Unlock()
}

// Inserts returns the number of upserts that added a new key.
func (s *Statistics) Inserts() int64 {
	return atomic.LoadInt64(&s.inserts)
}

// Replaces returns the number of upserts that replaced an existing key.
func (s *Statistics) Replaces() int64 {
	return atomic.LoadInt64(&s.replaces)
}

// Rejects returns the number of upserts that were dropped.
func (s *Statistics) Rejects() int64 {
	return atomic.LoadInt64(&s.rejects)
}

// Upserts returns the total number of upserts.
func (s *Statistics) Upserts() int64 {
	return s.Inserts() + s.Replaces() + s.Rejects()
}

// Drains returns the number of drain operations.
func (s *Statistics) Drains() int64 {
	return atomic.LoadInt64(&s.drains)
}

// Drained returns the total number of items handed over by drains.
func (s *Statistics) Drained() int64 {
	return atomic.LoadInt64(&s.drained)
}

// CurrentSize returns the current number of keys.
func (s *Statistics) CurrentSize() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentSize
}

// MaxSize returns the largest number of keys held at once.
func (s *Statistics) MaxSize() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxSize
}

// CollapseRate returns the fraction of accepted upserts that replaced an
// existing key (0.0 to 1.0).
func (s *Statistics) CollapseRate() float64 {
	replaces := s.Replaces()
	accepted := s.Inserts() + replaces
	if accepted == 0 {
		return 0.0
	}
	return float64(replaces) / float64(accepted)
}

// Uptime returns how long the buffer has been running.
func (s *Statistics) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.startTime)
}

// StatsSummary is a point-in-time copy of all statistics.
type StatsSummary struct {
	Inserts      int64         `json:"inserts"`
	Replaces     int64         `json:"replaces"`
	Rejects      int64         `json:"rejects"`
	Drains       int64         `json:"drains"`
	Drained      int64         `json:"drained"`
	CurrentSize  int64         `json:"current_size"`
	MaxSize      int64         `json:"max_size"`
	CollapseRate float64       `json:"collapse_rate"`
	Uptime       time.Duration `json:"uptime"`
}

// Summary returns a snapshot of all statistics.
func (s *Statistics) Summary() StatsSummary {
	return StatsSummary{
		Inserts:      s.Inserts(),
		Replaces:     s.Replaces(),
		Rejects:      s.Rejects(),
		Drains:       s.Drains(),
		Drained:      s.Drained(),
		CurrentSize:  s.CurrentSize(),
		MaxSize:      s.MaxSize(),
		CollapseRate: s.CollapseRate(),
		Uptime:       s.Uptime(),
	}
}
