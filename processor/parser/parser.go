// Package parser turns raw field-network datagrams into readings.
package parser

import (
	"fmt"
	"strings"
	"time"

	"github.com/c360/fieldstreams/errors"
	"github.com/c360/fieldstreams/pkg/clock"
	"github.com/c360/fieldstreams/reading"
)

const (
	openMarker  = "<DATA"
	closeMarker = "</DATA>"
	ipOpen      = "<IP>"
	ipClose     = "</IP>"

	// DefaultControlPrefix marks control broadcasts, which are never stored
	DefaultControlPrefix = "cnd."

	// DefaultMaxKindLength matches the 20-byte type field of the field devices
	// (19 characters plus terminator)
	DefaultMaxKindLength = 19

	// MaxAddressLength bounds the source address to a dotted IPv4 string
	MaxAddressLength = 15

	// DefaultUTCOffset is the fixed offset used for local-time strings
	DefaultUTCOffset = 9 * time.Hour
)

// Option configures a Parser
type Option func(*Parser)

// WithClock sets the time source used to stamp readings
func WithClock(c clock.Clock) Option {
	return func(p *Parser) {
		if c != nil {
			p.clock = c
		}
	}
}

// WithLocation sets the zone used for the local-time string
func WithLocation(loc *time.Location) Option {
	return func(p *Parser) {
		if loc != nil {
			p.location = loc
		}
	}
}

// WithMaxKindLength bounds the kind string; 0 disables truncation
func WithMaxKindLength(n int) Option {
	return func(p *Parser) {
		if n >= 0 {
			p.maxKindLength = n
		}
	}
}

// WithControlPrefix sets the case-sensitive type prefix of control broadcasts
func WithControlPrefix(prefix string) Option {
	return func(p *Parser) {
		if prefix != "" {
			p.controlPrefix = prefix
		}
	}
}

// Parser extracts one reading from a datagram using literal substring search.
// It is stateless apart from its configuration and safe for concurrent use.
type Parser struct {
	clock         clock.Clock
	location      *time.Location
	maxKindLength int
	controlPrefix string
}

// New creates a parser with defaults for any option not supplied
func New(opts ...Option) *Parser {
	p := &Parser{
		clock:         clock.System(),
		location:      clock.FixedZone(DefaultUTCOffset),
		maxKindLength: DefaultMaxKindLength,
		controlPrefix: DefaultControlPrefix,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Format returns the wire format name
func (p *Parser) Format() string {
	return "uecs"
}

// Parse extracts the first measurement element of msg. It fails with
// errors.ErrMalformedMessage when the element markers are missing and with
// errors.ErrControlMessage when the element is a control broadcast. Numeric
// fields that are absent or not numeric default to zero and are listed in
// Reading.Degraded.
func (p *Parser) Parse(msg []byte) (reading.Reading, error) {
	s := string(msg)

	start := strings.Index(s, openMarker)
	if start < 0 {
		return reading.Reading{}, errors.WrapInvalid(errors.ErrMalformedMessage,
			"parser", "Parse", "locate "+openMarker)
	}
	end := strings.Index(s[start:], closeMarker)
	if end < 0 {
		return reading.Reading{}, errors.WrapInvalid(errors.ErrMalformedMessage,
			"parser", "Parse", "locate "+closeMarker)
	}
	fragment := s[start : start+end]

	kind, _ := ExtractAttr(fragment, "type")
	if strings.HasPrefix(kind, p.controlPrefix) {
		return reading.Reading{}, errors.WrapInvalid(errors.ErrControlMessage,
			"parser", "Parse", fmt.Sprintf("filter type %q", kind))
	}

	r := reading.Reading{Kind: truncate(kind, p.maxKindLength)}

	r.Room = p.intAttr(fragment, reading.FieldRoom, &r.Degraded)
	r.Region = p.intAttr(fragment, reading.FieldRegion, &r.Degraded)
	r.Order = p.intAttr(fragment, reading.FieldOrder, &r.Degraded)
	r.Priority = p.intAttr(fragment, reading.FieldPriority, &r.Degraded)

	var valueText string
	if gt := strings.IndexByte(fragment, '>'); gt >= 0 {
		valueText = fragment[gt+1:]
	}
	value, clean := parseLeadingFloat(valueText)
	if !clean {
		r.Degraded = append(r.Degraded, reading.FieldValue)
	}
	r.Value = value

	r.SourceAddress = reading.UnknownAddress
	if ip, ok := innerText(s, ipOpen, ipClose); ok {
		if ip = strings.TrimSpace(ip); ip != "" {
			r.SourceAddress = truncate(ip, MaxAddressLength)
		}
	}

	now := p.clock.Now()
	r.ObservedAtUTC = now.UTC()
	r.ObservedAtLocal = clock.FormatLocal(now, p.location)

	return r, nil
}

func (p *Parser) intAttr(fragment, name string, degraded *[]string) int {
	text, _ := ExtractAttr(fragment, name)
	n, clean := parseLeadingInt(text)
	if !clean {
		*degraded = append(*degraded, name)
	}
	return n
}
