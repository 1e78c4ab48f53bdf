// Package udp provides the UDP receiver for field-network status broadcasts.
//
// # Overview
//
// Field devices broadcast one small datagram per reading to a well-known port
// (16520 by default). Input binds that port and exposes a non-blocking Poll so
// a single ingest loop can interleave receiving with its own timer work:
//
//	in := udp.NewInput(udp.InputDeps{
//	    Config:          udp.DefaultConfig(),
//	    MetricsRegistry: registry,
//	    Logger:          logger,
//	})
//	if err := in.Start(ctx); err != nil {
//	    return err
//	}
//	defer in.Stop()
//
//	for {
//	    dg, ok, err := in.Poll(ctx)
//	    if err != nil { ... }
//	    if ok { handle(dg.Data) }
//	}
//
// # Behavior
//
//   - Poll waits at most PollTimeout (1ms by default) and returns ok=false
//     when nothing is pending.
//   - Datagrams longer than MaxDatagramSize (512 bytes, the gateway receive
//     buffer) are truncated and counted.
//   - Socket binding is retried with pkg/retry; address resolution errors are
//     not retried.
//
// # Metrics
//
// When a registry is supplied, fieldstreams_udp_* counters are registered
// under the service name udp_<port>.
package udp
