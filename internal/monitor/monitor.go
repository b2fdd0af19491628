package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nerrad567/mosquitto-monitor/internal/metrics"
	"github.com/nerrad567/mosquitto-monitor/internal/status"
)

// Default settings applied when Options leave them zero.
const (
	defaultQueueSize    = 1024
	defaultInitialDelay = time.Second
	defaultMaxDelay     = 60 * time.Second
)

// Options holds everything needed to build a Monitor.
type Options struct {
	// Transport is the broker session (required).
	Transport Transport

	// Registry maps status topics to gauges (required).
	Registry *status.Registry

	// Emitter receives every decoded gauge (required).
	Emitter Emitter

	// Recorder receives self-observability events. Optional.
	Recorder metrics.Recorder

	// Logger is optional structured logger.
	Logger Logger

	// QueueSize bounds the channel between the transport and the event loop.
	QueueSize int

	// HeartbeatInterval enables the monitor.* gauges when positive.
	HeartbeatInterval time.Duration

	// InitialDelay and MaxDelay bound the exponential backoff used by Start.
	InitialDelay time.Duration
	MaxDelay     time.Duration

	// MaxAttempts caps connection attempts in Start. Zero means unlimited.
	MaxAttempts int
}

// Monitor wires the connection manager, dispatcher and emitter together and
// drives the event loop.
type Monitor struct {
	conn       *ConnectionManager
	dispatcher *Dispatcher
	emitter    Emitter
	registry   *status.Registry
	recorder   metrics.Recorder
	logger     Logger
	opts       Options

	queue chan status.Message

	loopRunning atomic.Bool
	wg          sync.WaitGroup

	heartbeat     *heartbeat
	heartbeatOnce sync.Once

	stopCtx    context.Context
	stopCancel context.CancelFunc
	stopOnce   sync.Once

	startedAt time.Time
}

// Status is a point-in-time summary of the monitor.
type Status struct {
	State                string        `json:"state"`
	Connected            bool          `json:"connected"`
	LastDisconnectReason string        `json:"last_disconnect_reason,omitempty"`
	Topics               int           `json:"topics"`
	Received             uint64        `json:"received"`
	Dropped              uint64        `json:"dropped"`
	Inactive             uint64        `json:"inactive"`
	QueueDepth           int           `json:"queue_depth"`
	Dispatch             DispatchStats `json:"dispatch"`
	StartedAt            time.Time     `json:"started_at"`
}

// New creates a monitor. Nothing connects until Start is called.
func New(opts Options) (*Monitor, error) {
	if opts.Transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if opts.Emitter == nil {
		return nil, fmt.Errorf("emitter is required")
	}

	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = defaultInitialDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = defaultMaxDelay
	}

	queue := make(chan status.Message, opts.QueueSize)
	stopCtx, stopCancel := context.WithCancel(context.Background())

	conn := NewConnectionManager(opts.Transport, queue, opts.Recorder)
	conn.SetLogger(opts.Logger)

	dispatcher := NewDispatcher(opts.Registry, opts.Emitter, opts.Recorder)
	dispatcher.SetLogger(opts.Logger)

	m := &Monitor{
		conn:       conn,
		dispatcher: dispatcher,
		emitter:    opts.Emitter,
		registry:   opts.Registry,
		recorder:   opts.Recorder,
		logger:     opts.Logger,
		opts:       opts,
		queue:      queue,
		stopCtx:    stopCtx,
		stopCancel: stopCancel,
		startedAt:  time.Now(),
	}

	conn.OnTransition(func(from, to State) {
		m.logger.Debug("connection state changed", "from", from.String(), "to", to.String())
	})

	return m, nil
}

// Start connects to the broker, retrying with exponential backoff, and
// starts the heartbeat.
//
// It returns once the first session is established and the status
// subscription has been requested. Later reconnects are handled by the
// transport.
//
// Returns:
//   - error: nil on success; the last ErrConnect after max attempts,
//     ctx.Err() if cancelled, or ErrStopped if Stop was called
func (m *Monitor) Start(ctx context.Context) error {
	if m.stopCtx.Err() != nil {
		return ErrStopped
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	release := context.AfterFunc(m.stopCtx, cancel)
	defer release()

	m.startHeartbeat()

	operation := func() error {
		if err := m.conn.Connect(); err != nil {
			return backoff.Permanent(err)
		}
		err := m.conn.AwaitConnect(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrStopped) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, next time.Duration) {
		m.logger.Warn("broker connection attempt failed, retrying",
			"error", err,
			"retry_in", next.String(),
		)
	}

	if err := backoff.RetryNotify(operation, m.newBackOff(ctx), notify); err != nil {
		if m.stopCtx.Err() != nil {
			return ErrStopped
		}
		return err
	}

	m.logger.Info("monitor started", "state", m.conn.State().String(), "topics", m.registry.Len())
	return nil
}

// newBackOff builds the retry policy used by Start.
func (m *Monitor) newBackOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = m.opts.InitialDelay
	eb.MaxInterval = m.opts.MaxDelay
	eb.MaxElapsedTime = 0
	eb.Reset()

	var b backoff.BackOff = eb
	if m.opts.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(m.opts.MaxAttempts-1))
	}
	return backoff.WithContext(b, ctx)
}

func (m *Monitor) startHeartbeat() {
	if m.opts.HeartbeatInterval <= 0 {
		return
	}
	m.heartbeatOnce.Do(func() {
		hb, err := startHeartbeat(m.opts.HeartbeatInterval, m.beat)
		if err != nil {
			m.logger.Error("heartbeat disabled", "error", err)
			return
		}
		m.heartbeat = hb
	})
}

// Stop ends the event loop, the heartbeat and the broker session.
// It is safe from any state and only the first call has an effect.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		m.stopCancel()

		// heartbeatOnce guards the write to m.heartbeat.
		m.heartbeatOnce.Do(func() {})
		if err := m.heartbeat.stop(); err != nil {
			m.logger.Warn("stopping heartbeat", "error", err)
		}

		m.conn.Stop()
		m.wg.Wait()
		flushEmitter(m.emitter)

		m.logger.Info("monitor stopped")
	})
}

// State returns the connection state.
func (m *Monitor) State() State {
	return m.conn.State()
}

// Connection returns the connection manager.
func (m *Monitor) Connection() *ConnectionManager {
	return m.conn
}

// HealthCheck reports whether status updates are flowing.
//
// Returns:
//   - error: nil while Subscribed, ErrNotSubscribed otherwise
func (m *Monitor) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("monitor health check: %w", ctx.Err())
	default:
	}

	if state := m.conn.State(); state != StateSubscribed {
		return fmt.Errorf("%w: %s", ErrNotSubscribed, state)
	}
	return nil
}

// Status returns a snapshot of the monitor.
func (m *Monitor) Status() Status {
	state := m.conn.State()

	s := Status{
		State:      state.String(),
		Connected:  state.HasSession(),
		Topics:     m.registry.Len(),
		Received:   m.conn.Received(),
		Dropped:    m.conn.Dropped(),
		Inactive:   m.conn.Inactive(),
		QueueDepth: len(m.queue),
		Dispatch:   m.dispatcher.Stats(),
		StartedAt:  m.startedAt,
	}
	if reason := m.conn.LastDisconnectReason(); reason != nil {
		s.LastDisconnectReason = reason.Error()
	}
	return s
}
