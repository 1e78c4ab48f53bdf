// Package buffer provides a thread-safe keyed buffer that collapses repeated
// items into the latest value per key, with built-in statistics and optional
// Prometheus metrics.
//
// # Overview
//
// Keyed holds at most one item per identity key. Between drains, a stream of
// samples for the same key costs one slot: Upsert replaces the held item in
// place, keeping its original position, and appends items for new keys at
// the end. DrainAll removes everything at once and returns it in that order.
//
//	buf, err := buffer.NewKeyed(reading.KeyOf)
//	if err != nil {
//		return err
//	}
//
//	buf.Upsert(r)          // UpsertInserted
//	buf.Upsert(rLater)     // UpsertReplaced, same key
//	batch := buf.DrainAll() // buffer is now empty
//
// # Bounding
//
// By default the buffer is unbounded; memory is bounded by the number of
// distinct keys the producers use. WithMaxKeys caps that number. When the cap
// is reached an item for an unseen key is rejected (UpsertRejected) and handed
// to the drop callback, while items for keys already held still replace:
//
//	buf, _ := buffer.NewKeyed(reading.KeyOf,
//		buffer.WithMaxKeys[reading.Reading](4096),
//		buffer.WithDropCallback(func(r reading.Reading) {
//			logger.Warn("buffer full", "key", r.Key())
//		}),
//	)
//
// # Observability
//
// Statistics are always collected and available via Stats(). WithMetrics
// additionally exports them under the fieldstreams_buffer_* Prometheus names,
// labelled with the given component prefix.
//
// # Thread Safety
//
// All methods are safe for concurrent use. The drop callback runs outside
// the buffer lock.
package buffer
