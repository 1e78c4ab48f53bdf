// Package collector drives the ingestion pipeline: it polls a receiver for
// inbound messages, parses them into readings, collapses them in a keyed
// buffer, and periodically flushes the buffer to its sinks.
//
// A Loop owns all pipeline state. It runs on a single goroutine; every step is
// run to completion and a flush blocks polling until all sinks have been
// attempted for the drained snapshot.
//
//	loop, err := collector.NewLoop(collector.LoopDeps{
//		Receiver: input,
//		Parser:   parser.New(),
//		Flusher:  &collector.Flusher{Log: logFile, Remote: remote},
//	})
//	if err != nil {
//		return err
//	}
//	return loop.Run(ctx)
//
// Sink failures never stop the loop. Each flush returns a FlushReport with one
// DeliveryOutcome per reading so callers can inspect what failed.
package collector
