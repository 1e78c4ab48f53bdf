package buffer

import (
	"sync"

	"github.com/c360/fieldstreams/errors"
)

// UpsertResult reports what Upsert did with an item
type UpsertResult int

const (
	// UpsertInserted means the key was new and the item was appended
	UpsertInserted UpsertResult = iota

	// UpsertReplaced means the key was present and its item was replaced in place
	UpsertReplaced

	// UpsertRejected means the item was dropped: the buffer is at its key
	// bound and the key is new
	UpsertRejected
)

// String returns a human-readable representation of the result.
func (r UpsertResult) String() string {
	switch r {
	case UpsertInserted:
		return "inserted"
	case UpsertReplaced:
		return "replaced"
	case UpsertRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// DropCallback is called when an item is rejected by Upsert.
type DropCallback[T any] func(item T)

// Keyed is an ordered collection unique by key. Upsert replaces the item for
// an existing key without changing its position and appends new keys at the
// end. DrainAll hands over every item in order and leaves the buffer empty.
// No other operation removes items.
type Keyed[K comparable, T any] struct {
	mu      sync.RWMutex
	keyFn   func(T) K
	index   map[K]int
	items   []T
	stats   *Statistics    // always collected
	metrics *bufferMetrics // optional
	opts    *bufferOptions[T]
}

// NewKeyed creates an empty keyed buffer. keyFn derives the identity key of
// an item and must be deterministic. Returns an error if metrics registration
// fails when metrics are requested.
func NewKeyed[K comparable, T any](keyFn func(T) K, options ...Option[T]) (*Keyed[K, T], error) {
	if keyFn == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "buffer", "NewKeyed", "key function check")
	}
	opts := applyOptions(options...)

	var metrics *bufferMetrics
	if opts.metricsReg != nil && opts.metricsPrefix != "" {
		var err error
		metrics, err = newBufferMetrics(opts.metricsReg, opts.metricsPrefix)
		if err != nil {
			return nil, errors.WrapTransient(err, "buffer", "NewKeyed", "metrics registration")
		}
	}

	return &Keyed[K, T]{
		keyFn:   keyFn,
		index:   make(map[K]int),
		stats:   NewStatistics(),
		metrics: metrics,
		opts:    opts,
	}, nil
}

// Upsert inserts item or replaces the item already held for its key.
func (b *Keyed[K, T]) Upsert(item T) UpsertResult {
	key := b.keyFn(item)

	b.mu.Lock()
	result := b.upsertLocked(key, item)
	size := len(b.items)
	b.mu.Unlock()

	b.stats.Upsert(result)
	b.stats.UpdateSize(int64(size))
	if b.metrics != nil {
		b.metrics.recordUpsert(result, size)
	}
	if result == UpsertRejected && b.opts.dropCallback != nil {
		b.opts.dropCallback(item)
	}
	return result
}

func (b *Keyed[K, T]) upsertLocked(key K, item T) UpsertResult {
	if i, ok := b.index[key]; ok {
		b.items[i] = item
		return UpsertReplaced
	}
	if b.opts.maxKeys > 0 && len(b.items) >= b.opts.maxKeys {
		return UpsertRejected
	}
	b.index[key] = len(b.items)
	b.items = append(b.items, item)
	return UpsertInserted
}

// DrainAll removes and returns every item in buffer order. The returned slice
// is owned by the caller; a nil slice is returned for an empty buffer.
func (b *Keyed[K, T]) DrainAll() []T {
	b.mu.Lock()
	drained := b.items
	b.items = nil
	if len(drained) > 0 {
		b.index = make(map[K]int, len(drained))
	}
	b.mu.Unlock()

	b.stats.Drain(len(drained))
	b.stats.UpdateSize(0)
	if b.metrics != nil {
		b.metrics.recordDrain(len(drained))
	}
	return drained
}

// Len returns the number of distinct keys currently held.
func (b *Keyed[K, T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.items)
}

// Get returns the item held for key, if any.
func (b *Keyed[K, T]) Get(key K) (T, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	i, ok := b.index[key]
	if !ok {
		var zero T
		return zero, false
	}
	return b.items[i], true
}

// Snapshot returns a copy of the held items in buffer order without mutating
// the buffer.
func (b *Keyed[K, T]) Snapshot() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]T, len(b.items))
	copy(out, b.items)
	return out
}

// MaxKeys returns the configured key bound; 0 means unbounded.
func (b *Keyed[K, T]) MaxKeys() int {
	return b.opts.maxKeys
}

// Stats returns buffer statistics (always available for observability).
func (b *Keyed[K, T]) Stats() *Statistics {
	return b.stats
}
