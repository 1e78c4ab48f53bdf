// Package httppost provides the remote sink: one HTTP POST per flushed
// reading, carrying its JSON payload.
//
// The payload keys, in order:
//
//	{"timestamp":1748737800,"timeStr":"2025-06-01 09:30:00","type":"SoilTemp.mIC",
//	 "room":1,"region":1,"order":1,"priority":15,"data":23.50,"ip":"192.168.1.20"}
//
// Delivery is fire-and-forget. Each reading is posted once; transport errors
// and non-2xx responses are returned wrapping errors.ErrSinkDelivery so the
// caller can report them, and the reading is not queued for another attempt.
// Configured headers are added to every request and the response body is
// drained and discarded.
//
// An empty URL disables the sink. Write then returns nil without sending,
// which lets deployments run with only the local log.
package httppost
