package monitor

import "errors"

// Sentinel errors for the monitor.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrConnect indicates a broker handshake or authentication failure.
	// It is not retried by the connection manager; Start applies backoff.
	ErrConnect = errors.New("monitor: connect failed")

	// ErrInvalidState is returned when an operation is not allowed in the
	// current connection state.
	ErrInvalidState = errors.New("monitor: invalid connection state")

	// ErrStopped is returned by operations on a stopped monitor.
	ErrStopped = errors.New("monitor: stopped")

	// ErrLoopRunning is returned when an event loop is already active.
	ErrLoopRunning = errors.New("monitor: event loop already running")

	// ErrInvalidLoopMode is returned for an unknown or malformed loop mode.
	ErrInvalidLoopMode = errors.New("monitor: invalid loop mode")

	// ErrNotSubscribed is returned by HealthCheck while no status
	// subscription is active.
	ErrNotSubscribed = errors.New("monitor: not subscribed to broker status")
)
