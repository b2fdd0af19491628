package monitor

// Emitter accepts decoded gauge samples. Gauge is fire-and-forget: backends
// deal with their own failures. Implementations must be safe for concurrent
// use because the heartbeat and the event loop both emit.
type Emitter interface {
	Gauge(name string, value float64)
}

// Flusher is implemented by emitters that batch writes. Flush blocks until
// buffered samples have been sent.
type Flusher interface {
	Flush()
}

// flushEmitter flushes e if it batches.
func flushEmitter(e Emitter) {
	if f, ok := e.(Flusher); ok {
		f.Flush()
	}
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(name string, value float64)

// Gauge calls f(name, value).
func (f EmitterFunc) Gauge(name string, value float64) {
	f(name, value)
}

// MultiEmitter fans every sample out to several backends in order.
type MultiEmitter []Emitter

// Gauge forwards the sample to every backend.
func (m MultiEmitter) Gauge(name string, value float64) {
	for _, e := range m {
		e.Gauge(name, value)
	}
}

// Flush flushes every backend that batches.
func (m MultiEmitter) Flush() {
	for _, e := range m {
		flushEmitter(e)
	}
}

// NewMultiEmitter combines the given backends, skipping nil entries. The
// first non-nil backend receives each sample first.
func NewMultiEmitter(emitters ...Emitter) Emitter {
	out := make(MultiEmitter, 0, len(emitters))
	for _, e := range emitters {
		if e != nil {
			out = append(out, e)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}
