package monitor

import (
	"sync"
	"sync/atomic"

	"github.com/nerrad567/mosquitto-monitor/internal/metrics"
	"github.com/nerrad567/mosquitto-monitor/internal/status"
)

// Dispatcher routes status messages to the emitter.
//
// Each message is looked up by exact topic, decoded by the entry's kind and
// emitted as one gauge. Unknown topics and undecodable payloads never reach
// the emitter, and neither stops the next message from being handled.
type Dispatcher struct {
	registry *status.Registry
	emitter  Emitter
	recorder metrics.Recorder

	emitted      atomic.Uint64
	unmatched    atomic.Uint64
	decodeErrors atomic.Uint64
	emitPanics   atomic.Uint64

	logger   Logger
	loggerMu sync.RWMutex
}

// DispatchStats is a point-in-time copy of the dispatcher counters.
type DispatchStats struct {
	Emitted      uint64 `json:"emitted"`
	Unmatched    uint64 `json:"unmatched"`
	DecodeErrors uint64 `json:"decode_errors"`
	EmitPanics   uint64 `json:"emit_panics"`
}

// NewDispatcher creates a dispatcher over a registry and emitter.
func NewDispatcher(registry *status.Registry, emitter Emitter, recorder metrics.Recorder) *Dispatcher {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Dispatcher{
		registry: registry,
		emitter:  emitter,
		recorder: recorder,
	}
}

// OnStatusMessage handles one message from the status subscription.
func (d *Dispatcher) OnStatusMessage(msg status.Message) {
	topic, ok := d.registry.Lookup(msg.Topic)
	if !ok {
		d.unmatched.Add(1)
		d.recorder.IncMessage(metrics.ResultUnmatched)
		return
	}

	sample, err := topic.Decode(msg.Payload)
	if err != nil {
		d.decodeErrors.Add(1)
		d.recorder.IncMessage(metrics.ResultDecodeError)
		d.logWarn("dropping undecodable status message",
			"topic", msg.Topic,
			"payload", string(msg.Payload),
			"error", err,
		)
		return
	}

	if d.emit(sample) {
		d.emitted.Add(1)
		d.recorder.IncMessage(metrics.ResultEmitted)
	}
}

// emit sends one sample, recovering from a panicking backend.
func (d *Dispatcher) emit(sample status.Sample) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.emitPanics.Add(1)
			d.logError("metric emitter panic recovered",
				"metric", sample.Name,
				"panic", r,
			)
			ok = false
		}
	}()

	d.emitter.Gauge(sample.Name, sample.Value)
	return true
}

// Stats returns the dispatcher counters.
func (d *Dispatcher) Stats() DispatchStats {
	return DispatchStats{
		Emitted:      d.emitted.Load(),
		Unmatched:    d.unmatched.Load(),
		DecodeErrors: d.decodeErrors.Load(),
		EmitPanics:   d.emitPanics.Load(),
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.loggerMu.Lock()
	d.logger = logger
	d.loggerMu.Unlock()
}

func (d *Dispatcher) logWarn(msg string, keysAndValues ...any) {
	d.loggerMu.RLock()
	logger := d.logger
	d.loggerMu.RUnlock()
	if logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

func (d *Dispatcher) logError(msg string, keysAndValues ...any) {
	d.loggerMu.RLock()
	logger := d.logger
	d.loggerMu.RUnlock()
	if logger != nil {
		logger.Error(msg, keysAndValues...)
	}
}
