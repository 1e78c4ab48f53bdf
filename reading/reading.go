// Package reading defines the unit of telemetry handled by the collector and
// its two wire renderings: the durable-log CSV record and the remote JSON payload.
package reading

import (
	"fmt"
	"slices"
	"time"
)

// UnknownAddress is the source address used when a message carries no <IP> element
const UnknownAddress = "0.0.0.0"

// Field names used in Reading.Degraded
const (
	FieldRoom     = "room"
	FieldRegion   = "region"
	FieldOrder    = "order"
	FieldPriority = "priority"
	FieldValue    = "value"
)

// Reading is one sensor observation
type Reading struct {
	Kind     string
	Room     int
	Region   int
	Order    int
	Priority int
	Value    float64

	SourceAddress   string
	ObservedAtUTC   time.Time
	ObservedAtLocal string

	// Degraded lists fields whose source text was absent or not cleanly
	// numeric and were defaulted. It never reaches the wire renderings.
	Degraded []string
}

// Key identifies a logical sensor slot. Two readings with equal keys are
// successive samples of the same slot.
type Key struct {
	Kind     string
	Room     int
	Region   int
	Order    int
	Priority int
}

// String renders the key as "kind/room/region/order/priority"
func (k Key) String() string {
	return fmt.Sprintf("%s/%d/%d/%d/%d", k.Kind, k.Room, k.Region, k.Order, k.Priority)
}

// Key returns the identity key of r
func (r Reading) Key() Key {
	return Key{
		Kind:     r.Kind,
		Room:     r.Room,
		Region:   r.Region,
		Order:    r.Order,
		Priority: r.Priority,
	}
}

// KeyOf is Reading.Key as a plain function, for use as a buffer key func
func KeyOf(r Reading) Key {
	return r.Key()
}

// IsDegraded reports whether any field was defaulted during parsing
func (r Reading) IsDegraded() bool {
	return len(r.Degraded) > 0
}

// DegradedField reports whether the named field was defaulted
func (r Reading) DegradedField(name string) bool {
	return slices.Contains(r.Degraded, name)
}
