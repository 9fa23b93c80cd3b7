// Package errs defines the sentinel error kinds shared across the tracking
// pipeline, per the error handling design: Transport is recoverable via
// retry, Decode aborts the current event, Duplicate and Missing are records
// store logic errors, Fatal terminates the owning task (and, for a
// subscription loss, the process).
package errs

import "errors"

var (
	// Transport marks an error from the RPC/websocket transport. Recoverable
	// via RetryOptions at the call site.
	Transport = errors.New("transport error")

	// Decode marks a failure to interpret a response or wire payload. Fatal
	// to the current call/event, not to the owning task.
	Decode = errors.New("decode error")

	// Duplicate marks an attempt to insert an already-present records store
	// key. A programming error; the caller logs at warn and drops the insert.
	Duplicate = errors.New("duplicate key")

	// Missing marks a records store replace() of a key that does not exist.
	// A logical error surfaced to the caller.
	Missing = errors.New("key not found")

	// Fatal marks an unrecoverable condition: subscription loss after
	// exhausting retries, or a configuration/init failure. Terminates the
	// owning task; at the top level, terminates the process.
	Fatal = errors.New("fatal error")
)
