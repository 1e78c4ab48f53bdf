// Package errors implements a three-class error classification for the
// collector: Transient (the outside world misbehaved; the next flush may
// succeed), Invalid (an inbound message or config value was bad), and Fatal
// (the process cannot continue, e.g. an unusable configuration at startup).
//
// # Pipeline errors
//
// The ingest pipeline reports its outcomes through sentinel values so that
// callers and tests can branch with errors.Is:
//
//   - ErrMalformedMessage: measurement element markers absent, message dropped
//   - ErrControlMessage: a control broadcast ("cnd." type), filtered
//   - ErrSinkWrite: the durable log could not be appended
//   - ErrSinkDelivery: the remote endpoint did not accept the reading
//
// # Wrapping
//
// All wrapping follows "component.method: action failed: cause":
//
//	if err := conn.SetReadDeadline(t); err != nil {
//	    return errors.WrapTransient(err, "udp-input", "Poll", "set read deadline")
//	}
//
// SinkError keeps both the failure class and the underlying cause reachable:
//
//	err := errors.SinkError(errors.ErrSinkDelivery, "httppost", io.ErrUnexpectedEOF)
//	errors.Is(err, errors.ErrSinkDelivery) // true
//	errors.Is(err, io.ErrUnexpectedEOF)    // true
package errors
