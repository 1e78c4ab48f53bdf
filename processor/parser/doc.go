// Package parser extracts readings from field-network status datagrams.
//
// # Wire format
//
// A datagram carries one measurement element and, optionally, the sender's
// address:
//
//	<DATA type="SoilTemp.mIC" room="1" region="1" order="1" priority="15">23.5</DATA><IP>192.168.1.20</IP>
//
// The format is produced by the field devices themselves and is well formed by
// construction, so the parser uses literal substring search rather than an XML
// decoder. It does not handle nesting, escaping or recovery; anything it
// cannot find is "not found".
//
// # Policy
//
//   - Missing <DATA or </DATA>: errors.ErrMalformedMessage, the datagram is dropped.
//   - type starting with "cnd.": errors.ErrControlMessage, the datagram is dropped.
//   - room, region, order, priority, value absent or non-numeric: 0, and the
//     field name is appended to Reading.Degraded. A numeric prefix is honoured
//     ("12abc" parses as 12) but still marks the field degraded.
//   - No <IP> element: reading.UnknownAddress.
//   - Only the first measurement element is parsed.
//
// # Usage
//
//	p := parser.New(
//	    parser.WithLocation(clock.FixedZone(9*time.Hour)),
//	    parser.WithMaxKindLength(19),
//	)
//	r, err := p.Parse(datagram)
//	switch {
//	case stderrors.Is(err, errors.ErrControlMessage):
//	    // filtered
//	case err != nil:
//	    // malformed
//	}
package parser
