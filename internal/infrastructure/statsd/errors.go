package statsd

import "errors"

// Sentinel errors for statsd operations.
var (
	// ErrBackendUnavailable indicates a gauge could not be handed to the
	// statsd transport. The sample is lost; the next broker update replaces it.
	ErrBackendUnavailable = errors.New("statsd: backend unavailable")

	// ErrClosed indicates the client has been closed.
	ErrClosed = errors.New("statsd: client closed")
)
