package monitor

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/nerrad567/mosquitto-monitor/internal/status"
)

func newTestMonitor(t *testing.T, transport *fakeTransport, mutate func(*Options)) (*Monitor, *recordingEmitter) {
	t.Helper()

	emitter := &recordingEmitter{}
	opts := Options{
		Transport:    transport,
		Registry:     testRegistry(t),
		Emitter:      emitter,
		QueueSize:    16,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	}
	if mutate != nil {
		mutate(&opts)
	}

	m, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(m.Stop)
	return m, emitter
}

func TestNew_RequiresDependencies(t *testing.T) {
	reg := testRegistry(t)
	emitter := &recordingEmitter{}

	tests := []struct {
		name string
		opts Options
	}{
		{"no transport", Options{Registry: reg, Emitter: emitter}},
		{"no registry", Options{Transport: &fakeTransport{}, Emitter: emitter}},
		{"no emitter", Options{Transport: &fakeTransport{}, Registry: reg}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.opts); err == nil {
				t.Error("New() error = nil, want error")
			}
		})
	}
}

func TestMonitor_StartAndDispatch(t *testing.T) {
	transport := &fakeTransport{}
	m, emitter := newTestMonitor(t, transport, nil)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if m.State() != StateSubscribed {
		t.Fatalf("State() = %v, want subscribed", m.State())
	}

	transport.deliver(t, "$SYS/broker/clients/connected", "7")
	transport.deliver(t, "$SYS/broker/version", "mosquitto version 2.0.18")
	transport.deliver(t, "$SYS/broker/uptime", "12345 seconds")

	if err := m.RunEventLoop(context.Background(), Bounded(1, time.Second)); err != nil {
		t.Fatalf("RunEventLoop() error = %v", err)
	}

	want := []status.Sample{
		{Name: "clients_connected", Value: 7},
		{Name: "broker_uptime", Value: 12345},
	}
	if got := emitter.all(); !reflect.DeepEqual(got, want) {
		t.Errorf("samples = %+v, want %+v", got, want)
	}
}

func TestMonitor_StartUnreachable(t *testing.T) {
	transport := &fakeTransport{connectErrs: []error{errUnreachable}}
	m, emitter := newTestMonitor(t, transport, func(o *Options) { o.MaxAttempts = 1 })

	log := &transitionLog{}
	m.Connection().OnTransition(log.record)

	err := m.Start(context.Background())
	if !errors.Is(err, ErrConnect) {
		t.Fatalf("Start() error = %v, want ErrConnect", err)
	}

	want := [][2]State{
		{StateDisconnected, StateConnecting},
		{StateConnecting, StateDisconnected},
	}
	if got := log.all(); !reflect.DeepEqual(got, want) {
		t.Errorf("transitions = %v, want %v", got, want)
	}

	if err := m.RunEventLoop(context.Background(), Bounded(1, 10*time.Millisecond)); err != nil {
		t.Fatalf("RunEventLoop() error = %v", err)
	}
	if got := emitter.all(); len(got) != 0 {
		t.Errorf("samples = %+v, want none", got)
	}
	if s := m.Status(); s.Dispatch.Emitted != 0 || s.Received != 0 {
		t.Errorf("Status() = %+v, want nothing dispatched", s)
	}
}

func TestMonitor_StartRetriesWithBackoff(t *testing.T) {
	transport := &fakeTransport{connectErrs: []error{errUnreachable, errUnreachable}}
	m, _ := newTestMonitor(t, transport, func(o *Options) { o.MaxAttempts = 5 })

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if connects, _, _ := transport.counts(); connects != 3 {
		t.Errorf("connect attempts = %d, want 3", connects)
	}
	if m.State() != StateSubscribed {
		t.Errorf("State() = %v, want subscribed", m.State())
	}
}

func TestMonitor_StartGivesUpAfterMaxAttempts(t *testing.T) {
	transport := &fakeTransport{connectErrs: []error{errUnreachable, errUnreachable, errUnreachable, errUnreachable}}
	m, _ := newTestMonitor(t, transport, func(o *Options) { o.MaxAttempts = 3 })

	if err := m.Start(context.Background()); !errors.Is(err, ErrConnect) {
		t.Fatalf("Start() error = %v, want ErrConnect", err)
	}
	if connects, _, _ := transport.counts(); connects != 3 {
		t.Errorf("connect attempts = %d, want 3", connects)
	}
}

func TestMonitor_StartCancelled(t *testing.T) {
	errs := make([]error, 100)
	for i := range errs {
		errs[i] = errUnreachable
	}
	transport := &fakeTransport{connectErrs: errs}
	m, _ := newTestMonitor(t, transport, func(o *Options) {
		o.InitialDelay = time.Hour
		o.MaxDelay = time.Hour
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := m.Start(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Start() error = %v, want DeadlineExceeded", err)
	}
}

func TestMonitor_StopInterruptsStart(t *testing.T) {
	errs := make([]error, 100)
	for i := range errs {
		errs[i] = errUnreachable
	}
	transport := &fakeTransport{connectErrs: errs}
	m, _ := newTestMonitor(t, transport, func(o *Options) {
		o.InitialDelay = time.Hour
		o.MaxDelay = time.Hour
	})

	done := make(chan error, 1)
	go func() { done <- m.Start(context.Background()) }()

	waitFor(t, "first attempt", func() bool {
		connects, _, _ := transport.counts()
		return connects >= 1
	})
	m.Stop()

	select {
	case err := <-done:
		if !errors.Is(err, ErrStopped) {
			t.Errorf("Start() error = %v, want ErrStopped", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after Stop()")
	}

	if err := m.Start(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("Start() after Stop error = %v, want ErrStopped", err)
	}
}

func TestMonitor_HealthCheck(t *testing.T) {
	transport := &fakeTransport{}
	m, _ := newTestMonitor(t, transport, nil)

	if err := m.HealthCheck(context.Background()); !errors.Is(err, ErrNotSubscribed) {
		t.Errorf("HealthCheck() before Start error = %v, want ErrNotSubscribed", err)
	}

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := m.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	transport.loseConnection(errors.New("EOF"))
	if err := m.HealthCheck(context.Background()); !errors.Is(err, ErrNotSubscribed) {
		t.Errorf("HealthCheck() after loss error = %v, want ErrNotSubscribed", err)
	}
}

func TestMonitor_Status(t *testing.T) {
	transport := &fakeTransport{}
	m, _ := newTestMonitor(t, transport, nil)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	transport.deliver(t, "$SYS/broker/clients/connected", "7")
	transport.deliver(t, "$SYS/broker/clients/connected", "oops")
	transport.deliver(t, "$SYS/broker/unknown", "1")

	if err := m.RunEventLoop(context.Background(), Bounded(1, time.Second)); err != nil {
		t.Fatalf("RunEventLoop() error = %v", err)
	}

	transport.loseConnection(errors.New("EOF"))

	s := m.Status()
	if s.State != "disconnected" || s.Connected {
		t.Errorf("State = %q connected=%v, want disconnected", s.State, s.Connected)
	}
	if s.Received != 3 || s.Dispatch.Emitted != 1 || s.Dispatch.DecodeErrors != 1 || s.Dispatch.Unmatched != 1 {
		t.Errorf("Status() = %+v", s)
	}
	if s.LastDisconnectReason == "" {
		t.Error("LastDisconnectReason is empty")
	}
	if s.Topics != len(status.DefaultTopics()) {
		t.Errorf("Topics = %d, want %d", s.Topics, len(status.DefaultTopics()))
	}
}

func TestMonitor_Heartbeat(t *testing.T) {
	transport := &fakeTransport{}
	m, emitter := newTestMonitor(t, transport, func(o *Options) {
		o.HeartbeatInterval = 10 * time.Millisecond
	})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	waitFor(t, "heartbeat reporting connected", func() bool {
		for _, s := range emitter.named(HeartbeatConnectedMetric) {
			if s.Value == 1 {
				return true
			}
		}
		return false
	})

	if got := emitter.named(HeartbeatStateMetric); len(got) == 0 {
		t.Error("no monitor.state gauge emitted")
	}

	m.Stop()
	after := len(emitter.all())
	time.Sleep(50 * time.Millisecond)
	if got := len(emitter.all()); got != after {
		t.Errorf("heartbeat still emitting after Stop(): %d -> %d samples", after, got)
	}
}

func TestMonitor_StopIdempotent(t *testing.T) {
	transport := &fakeTransport{}
	m, _ := newTestMonitor(t, transport, nil)

	m.Stop()
	m.Stop()

	if m.State() != StateDisconnected {
		t.Errorf("State() = %v, want disconnected", m.State())
	}
}
