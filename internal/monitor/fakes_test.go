package monitor

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/mosquitto-monitor/internal/infrastructure/mqtt"
	"github.com/nerrad567/mosquitto-monitor/internal/status"
)

var errUnreachable = errors.New("dial tcp 192.0.2.1:1883: connect: connection refused")

// fakeTransport is a scriptable broker session.
type fakeTransport struct {
	mu sync.Mutex

	// connectErrs are returned by successive Connect calls; nil once exhausted.
	connectErrs  []error
	subscribeErr error

	// onSubscribe runs inside Subscribe once the handler is installed, the
	// way a broker sends retained messages before the SUBACK is processed.
	onSubscribe func(handler mqtt.MessageHandler)

	onConnect      func()
	onDisconnect   func(error)
	onReconnecting func()

	handler    mqtt.MessageHandler
	subscribed []string
	qos        []byte
	connects   int
	closes     int
}

func (f *fakeTransport) Connect() <-chan error {
	f.mu.Lock()
	f.connects++
	var err error
	if len(f.connectErrs) > 0 {
		err = f.connectErrs[0]
		f.connectErrs = f.connectErrs[1:]
	}
	callback := f.onConnect
	f.mu.Unlock()

	result := make(chan error, 1)
	go func() {
		if err == nil && callback != nil {
			callback()
		}
		result <- err
	}()
	return result
}

func (f *fakeTransport) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	if f.subscribeErr != nil {
		f.mu.Unlock()
		return f.subscribeErr
	}
	f.handler = handler
	f.subscribed = append(f.subscribed, topic)
	f.qos = append(f.qos, qos)
	onSubscribe := f.onSubscribe
	f.mu.Unlock()

	if onSubscribe != nil {
		onSubscribe(handler)
	}
	return nil
}

func (f *fakeTransport) setOnSubscribe(fn func(handler mqtt.MessageHandler)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onSubscribe = fn
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeTransport) SetOnConnect(callback func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onConnect = callback
}

func (f *fakeTransport) SetOnDisconnect(callback func(err error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onDisconnect = callback
}

func (f *fakeTransport) SetOnReconnecting(callback func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onReconnecting = callback
}

// deliver pushes a message through the subscription handler.
func (f *fakeTransport) deliver(t *testing.T, topic, payload string) {
	t.Helper()
	f.mu.Lock()
	handler := f.handler
	f.mu.Unlock()
	if handler == nil {
		t.Fatal("deliver() before subscribe")
	}
	if err := handler(topic, []byte(payload)); err != nil {
		t.Fatalf("handler(%q) error = %v", topic, err)
	}
}

func (f *fakeTransport) loseConnection(err error) {
	f.mu.Lock()
	callback := f.onDisconnect
	f.mu.Unlock()
	callback(err)
}

func (f *fakeTransport) reconnect() {
	f.fireReconnecting()
	f.fireConnect()
}

func (f *fakeTransport) fireReconnecting() {
	f.mu.Lock()
	callback := f.onReconnecting
	f.mu.Unlock()
	callback()
}

func (f *fakeTransport) fireConnect() {
	f.mu.Lock()
	callback := f.onConnect
	f.mu.Unlock()
	callback()
}

func (f *fakeTransport) counts() (connects, closes, subscribes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects, f.closes, len(f.subscribed)
}

// recordingEmitter captures every gauge.
type recordingEmitter struct {
	mu      sync.Mutex
	samples []status.Sample
}

func (e *recordingEmitter) Gauge(name string, value float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.samples = append(e.samples, status.Sample{Name: name, Value: value})
}

func (e *recordingEmitter) all() []status.Sample {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]status.Sample, len(e.samples))
	copy(out, e.samples)
	return out
}

// flushingEmitter counts Flush calls.
type flushingEmitter struct {
	recordingEmitter
	flushes atomic.Int32
}

func (e *flushingEmitter) Flush() {
	e.flushes.Add(1)
}

// named returns the samples with the given metric name.
func (e *recordingEmitter) named(name string) []status.Sample {
	var out []status.Sample
	for _, s := range e.all() {
		if s.Name == name {
			out = append(out, s)
		}
	}
	return out
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// transitionLog records state transitions.
type transitionLog struct {
	mu   sync.Mutex
	seen [][2]State
}

func (l *transitionLog) record(from, to State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen = append(l.seen, [2]State{from, to})
}

func (l *transitionLog) all() [][2]State {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([][2]State, len(l.seen))
	copy(out, l.seen)
	return out
}

// testRegistry returns the default registry.
func testRegistry(t *testing.T) *status.Registry {
	t.Helper()
	reg, err := NewRegistry(nil)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return reg
}
