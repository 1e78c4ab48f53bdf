package buffer

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/fieldstreams/metric"
	"github.com/c360/fieldstreams/reading"
)

type sample struct {
	key   string
	value int
}

func sampleKey(s sample) string { return s.key }

func newSampleBuffer(t *testing.T, opts ...Option[sample]) *Keyed[string, sample] {
	t.Helper()
	buf, err := NewKeyed(sampleKey, opts...)
	require.NoError(t, err)
	return buf
}

func TestKeyed_UpsertIdempotence(t *testing.T) {
	buf := newSampleBuffer(t)

	assert.Equal(t, UpsertInserted, buf.Upsert(sample{"a", 1}))
	for i := 2; i <= 10; i++ {
		assert.Equal(t, UpsertReplaced, buf.Upsert(sample{"a", i}))
	}

	require.Equal(t, 1, buf.Len())
	got, ok := buf.Get("a")
	require.True(t, ok)
	assert.Equal(t, 10, got.value)
}

func TestKeyed_IdentityPartitioning(t *testing.T) {
	buf := newSampleBuffer(t)

	// interleave three keys, the last write per key wins
	writes := []sample{
		{"a", 1}, {"b", 1}, {"a", 2}, {"c", 1}, {"b", 2}, {"c", 2}, {"a", 3},
	}
	for _, s := range writes {
		buf.Upsert(s)
	}

	items := buf.DrainAll()
	require.Len(t, items, 3)
	// positions follow first insertion, values follow last upsert
	assert.Equal(t, []sample{{"a", 3}, {"b", 2}, {"c", 2}}, items)
}

func TestKeyed_DrainAtomicity(t *testing.T) {
	buf := newSampleBuffer(t)
	for i := 0; i < 25; i++ {
		buf.Upsert(sample{fmt.Sprintf("k%d", i%7), i})
	}

	before := buf.Len()
	items := buf.DrainAll()

	assert.Equal(t, before, len(items))
	assert.Equal(t, 0, buf.Len())
	assert.Empty(t, buf.Snapshot())
	assert.Nil(t, buf.DrainAll(), "second drain of an empty buffer")

	// keys are forgotten after a drain
	assert.Equal(t, UpsertInserted, buf.Upsert(sample{"k0", 100}))
}

func TestKeyed_DrainedSliceIsCallerOwned(t *testing.T) {
	buf := newSampleBuffer(t)
	buf.Upsert(sample{"a", 1})

	items := buf.DrainAll()
	buf.Upsert(sample{"b", 2})
	items[0].value = 99

	snap := buf.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, sample{"b", 2}, snap[0])
}

func TestKeyed_SnapshotDoesNotMutate(t *testing.T) {
	buf := newSampleBuffer(t)
	buf.Upsert(sample{"a", 1})
	buf.Upsert(sample{"b", 2})

	snap := buf.Snapshot()
	snap[0].value = 42

	assert.Equal(t, 2, buf.Len())
	got, _ := buf.Get("a")
	assert.Equal(t, 1, got.value)
}

func TestKeyed_MaxKeys(t *testing.T) {
	var dropped []sample
	buf := newSampleBuffer(t,
		WithMaxKeys[sample](2),
		WithDropCallback(func(s sample) { dropped = append(dropped, s) }),
	)

	assert.Equal(t, UpsertInserted, buf.Upsert(sample{"a", 1}))
	assert.Equal(t, UpsertInserted, buf.Upsert(sample{"b", 1}))
	assert.Equal(t, UpsertRejected, buf.Upsert(sample{"c", 1}))
	assert.Equal(t, UpsertReplaced, buf.Upsert(sample{"a", 2}), "existing keys still replace when full")

	assert.Equal(t, 2, buf.Len())
	assert.Equal(t, 2, buf.MaxKeys())
	assert.Equal(t, []sample{{"c", 1}}, dropped)
	assert.Equal(t, int64(1), buf.Stats().Rejects())

	buf.DrainAll()
	assert.Equal(t, UpsertInserted, buf.Upsert(sample{"c", 2}), "drain frees the bound")
}

func TestKeyed_NilKeyFunc(t *testing.T) {
	_, err := NewKeyed[string, sample](nil)
	assert.Error(t, err)
}

func TestKeyed_Statistics(t *testing.T) {
	buf := newSampleBuffer(t, WithMaxKeys[sample](3))

	for _, s := range []sample{{"a", 1}, {"a", 2}, {"b", 1}, {"c", 1}, {"d", 1}, {"a", 3}} {
		buf.Upsert(s)
	}
	buf.DrainAll()

	sum := buf.Stats().Summary()
	assert.Equal(t, int64(3), sum.Inserts)
	assert.Equal(t, int64(2), sum.Replaces)
	assert.Equal(t, int64(1), sum.Rejects)
	assert.Equal(t, int64(1), sum.Drains)
	assert.Equal(t, int64(3), sum.Drained)
	assert.Equal(t, int64(0), sum.CurrentSize)
	assert.Equal(t, int64(3), sum.MaxSize)
	assert.InDelta(t, 0.4, sum.CollapseRate, 1e-9)
	assert.Equal(t, int64(6), buf.Stats().Upserts())
}

func TestKeyed_Metrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	buf := newSampleBuffer(t, WithMetrics[sample](registry, "ingest"))

	buf.Upsert(sample{"a", 1})
	buf.Upsert(sample{"a", 2})
	buf.DrainAll()

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["fieldstreams_buffer_upserts_total"])
	assert.True(t, names["fieldstreams_buffer_drains_total"])
	assert.True(t, names["fieldstreams_buffer_keys"])

	// same prefix twice is a duplicate registration
	_, err = NewKeyed(sampleKey, WithMetrics[sample](registry, "ingest"))
	assert.Error(t, err)
}

func TestKeyed_ConcurrentUpsertAndDrain(t *testing.T) {
	buf := newSampleBuffer(t)

	const writers = 8
	const perWriter = 500

	var wg sync.WaitGroup
	var mu sync.Mutex
	var drained []sample

	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				buf.Upsert(sample{fmt.Sprintf("w%d-%d", w, i%10), i})
			}
		}(w)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			items := buf.DrainAll()
			mu.Lock()
			drained = append(drained, items...)
			mu.Unlock()
		}
	}()

	wg.Wait()
	<-done
	drained = append(drained, buf.DrainAll()...)

	// every key appears at least once and no drain ever held duplicates
	seen := make(map[string]bool)
	for _, s := range drained {
		seen[s.key] = true
	}
	assert.Len(t, seen, writers*10)
	assert.Equal(t, 0, buf.Len())
}

func TestKeyed_ReadingIdentity(t *testing.T) {
	buf, err := NewKeyed(reading.KeyOf)
	require.NoError(t, err)

	base := reading.Reading{Kind: "SoilTemp.mIC", Room: 1, Region: 1, Order: 1, Priority: 15}

	first := base
	first.Value = 23.5
	second := base
	second.Value = 24.0
	second.SourceAddress = "10.0.0.2"

	other := base
	other.Priority = 29

	buf.Upsert(first)
	buf.Upsert(other)
	buf.Upsert(second)

	items := buf.DrainAll()
	require.Len(t, items, 2)
	assert.InDelta(t, 24.0, items[0].Value, 1e-9)
	assert.Equal(t, 29, items[1].Priority)
}

func TestUpsertResult_String(t *testing.T) {
	assert.Equal(t, "inserted", UpsertInserted.String())
	assert.Equal(t, "replaced", UpsertReplaced.String())
	assert.Equal(t, "rejected", UpsertRejected.String())
	assert.Equal(t, "unknown", UpsertResult(9).String())
}
