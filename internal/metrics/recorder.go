package metrics

import "time"

// Result classifies what happened to one received status message.
type Result string

const (
	ResultEmitted     Result = "emitted"
	ResultUnmatched   Result = "unmatched"
	ResultDecodeError Result = "decode_error"
	ResultDropped     Result = "dropped"
	ResultInactive    Result = "inactive"
)

// Recorder defines observability hooks for the monitor. Implementations must
// be safe for concurrent use.
type Recorder interface {
	IncMessage(result Result)
	ObserveMessage(at time.Time)
	IncConnectAttempt(success bool)
	IncEmitError(backend string)
	SetConnectionState(state string, connected bool)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) IncMessage(Result)               {}
func (NoopRecorder) ObserveMessage(time.Time)        {}
func (NoopRecorder) IncConnectAttempt(bool)          {}
func (NoopRecorder) IncEmitError(string)             {}
func (NoopRecorder) SetConnectionState(string, bool) {}
