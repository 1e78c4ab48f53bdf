// Package retry provides exponential backoff for transient startup failures.
//
// Two callers use it: the UDP input when binding its socket, and the NATS
// client when establishing the mirror connection. Nothing on the flush path
// retries; a failed delivery is reported once and the reading is final.
//
//	err := retry.Do(ctx, retry.Quick(), func() error {
//	    return input.bindSocket()
//	})
//
// Wrap an error with NonRetryable to abort the loop early, e.g. when an
// address cannot be parsed and no amount of waiting will fix it.
package retry
