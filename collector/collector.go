package collector

import (
	"context"

	"github.com/c360/fieldstreams/input/udp"
	"github.com/c360/fieldstreams/reading"
)

// Sink receives flushed readings one at a time
type Sink interface {
	Name() string
	Write(ctx context.Context, r reading.Reading) error
}

// MessageParser turns one raw inbound message into a reading
type MessageParser interface {
	Parse(msg []byte) (reading.Reading, error)
}

// Receiver yields at most one pending datagram per call without blocking
// beyond a short poll timeout. ok is false when nothing was waiting.
type Receiver interface {
	Poll(ctx context.Context) (dg udp.Datagram, ok bool, err error)
}

// Drainer is the part of the buffer a flush needs
type Drainer interface {
	DrainAll() []reading.Reading
}

// Drop reasons recorded in metrics and step results
const (
	DropMalformed = "malformed"
	DropControl   = "control"
	DropRejected  = "rejected"
)
