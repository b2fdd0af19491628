package monitor

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/mosquitto-monitor/internal/infrastructure/mqtt"
	"github.com/nerrad567/mosquitto-monitor/internal/metrics"
	"github.com/nerrad567/mosquitto-monitor/internal/status"
)

// Transport is the broker session used by the ConnectionManager.
// *mqtt.Client satisfies it; tests substitute a fake.
type Transport interface {
	Connect() <-chan error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Close() error
	SetOnConnect(callback func())
	SetOnDisconnect(callback func(err error))
	SetOnReconnecting(callback func())
}

// TransitionFunc observes a state change.
type TransitionFunc func(from, to State)

// attempt tracks one connection attempt until it resolves.
type attempt struct {
	done chan struct{}
	err  error
}

// ConnectionManager owns the broker session lifecycle.
//
// States move Disconnected → Connecting → Connected → Subscribed. A lost
// session returns to Disconnected and, with auto-reconnect enabled, the
// transport moves it back to Connecting. Stop passes through Disconnecting
// from any state.
//
// Every message received on the status subscription while a session is up
// is copied onto the queue without blocking. The check is made on arrival, so
// retained values delivered before the subscribe call returns are kept. When
// the queue is full the message is dropped and counted.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Transition hooks run synchronously, in order, while the state lock is
//     held. They must not call back into the ConnectionManager.
type ConnectionManager struct {
	transport Transport
	queue     chan<- status.Message
	recorder  metrics.Recorder

	mu         sync.Mutex
	state      State
	current    *attempt
	lastReason error
	hooks      []TransitionFunc
	stopped    bool
	stopOnce   sync.Once

	// lossPending is set when a reconnect starts before the transport has
	// reported the loss of the previous session.
	lossPending bool

	received atomic.Uint64
	dropped  atomic.Uint64
	inactive atomic.Uint64

	logger   Logger
	loggerMu sync.RWMutex
}

// NewConnectionManager creates a manager in the Disconnected state and
// registers its callbacks on the transport.
//
// Parameters:
//   - transport: Broker session; owned by the manager from here on
//   - queue: Destination for received status messages
//   - recorder: Observability hooks (nil for none)
func NewConnectionManager(transport Transport, queue chan<- status.Message, recorder metrics.Recorder) *ConnectionManager {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}

	m := &ConnectionManager{
		transport: transport,
		queue:     queue,
		recorder:  recorder,
		state:     StateDisconnected,
	}

	transport.SetOnConnect(m.handleConnect)
	transport.SetOnDisconnect(m.handleDisconnect)
	transport.SetOnReconnecting(m.handleReconnecting)

	return m
}

// Connect starts a connection attempt and returns immediately.
//
// Returns:
//   - error: ErrInvalidState unless the manager is Disconnected; wraps
//     ErrStopped as well after Stop
func (m *ConnectionManager) Connect() error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrInvalidState, ErrStopped)
	}
	if m.state != StateDisconnected {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w: connect while %s", ErrInvalidState, state)
	}

	att := m.newAttemptLocked()
	m.setStateLocked(StateConnecting)
	m.mu.Unlock()

	m.logDebug("connecting to broker")
	go m.awaitResult(att, m.transport.Connect())

	return nil
}

// AwaitConnect blocks until the current connection attempt resolves.
//
// A successful attempt resolves once the status subscription has been
// requested, whether or not the broker accepted it.
//
// Returns:
//   - error: nil when connected, ErrConnect wrapping the cause on failure,
//     ErrInvalidState if no attempt was ever started, or ctx.Err()
func (m *ConnectionManager) AwaitConnect(ctx context.Context) error {
	m.mu.Lock()
	att := m.current
	m.mu.Unlock()

	if att == nil {
		return fmt.Errorf("%w: no connection attempt", ErrInvalidState)
	}

	select {
	case <-att.done:
		return att.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop closes the broker session. It is safe from any state and only the
// first call has an effect. Stop is terminal: Connect fails afterwards.
func (m *ConnectionManager) Stop() {
	m.stopOnce.Do(func() {
		m.mu.Lock()
		m.stopped = true
		m.setStateLocked(StateDisconnecting)
		m.resolveLocked(ErrStopped)
		m.mu.Unlock()

		if err := m.transport.Close(); err != nil {
			m.logWarn("closing broker session", "error", err)
		}

		m.mu.Lock()
		m.setStateLocked(StateDisconnected)
		m.mu.Unlock()
	})
}

// State returns the current connection state.
func (m *ConnectionManager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastDisconnectReason returns why the session last ended, or nil.
func (m *ConnectionManager) LastDisconnectReason() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastReason
}

// OnTransition registers a hook called after every state change.
func (m *ConnectionManager) OnTransition(fn TransitionFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, fn)
}

// Received returns how many status messages arrived from the broker.
func (m *ConnectionManager) Received() uint64 {
	return m.received.Load()
}

// Dropped returns how many status messages were lost to a full queue.
func (m *ConnectionManager) Dropped() uint64 {
	return m.dropped.Load()
}

// Inactive returns how many status messages arrived with no session up.
func (m *ConnectionManager) Inactive() uint64 {
	return m.inactive.Load()
}

// SetLogger sets the logger for the connection manager.
func (m *ConnectionManager) SetLogger(logger Logger) {
	m.loggerMu.Lock()
	m.logger = logger
	m.loggerMu.Unlock()
}

// awaitResult resolves an attempt from the transport's connect result.
func (m *ConnectionManager) awaitResult(att *attempt, result <-chan error) {
	err := <-result

	m.recorder.IncConnectAttempt(err == nil)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != att || m.stopped {
		return
	}

	if err != nil {
		err = fmt.Errorf("%w: %w", ErrConnect, err)
		m.lastReason = err
		if m.state == StateConnecting {
			m.setStateLocked(StateDisconnected)
		}
		m.resolveLocked(err)
		m.logError("broker connection failed", "error", err)
		return
	}

	// The transport's OnConnect callback may already have advanced the
	// state. The attempt itself resolves there, after subscribing.
	if m.state == StateConnecting {
		m.setStateLocked(StateConnected)
	}
}

// handleConnect runs on every successful (re)connect. It subscribes to
// the status tree and moves the manager to Subscribed.
func (m *ConnectionManager) handleConnect() {
	m.mu.Lock()
	if m.stopped || m.state == StateDisconnecting {
		m.mu.Unlock()
		return
	}
	if m.state == StateDisconnected {
		m.setStateLocked(StateConnecting)
	}
	if m.state != StateConnected {
		m.setStateLocked(StateConnected)
	}
	m.mu.Unlock()

	m.logInfo("connected to broker")

	err := m.transport.Subscribe(status.SubscriptionFilter, status.SubscriptionQoS, m.enqueue)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		m.logError("subscribe failed; staying connected without status updates",
			"filter", status.SubscriptionFilter,
			"error", err,
		)
	} else if m.state == StateConnected {
		m.setStateLocked(StateSubscribed)
		m.logInfo("subscribed to broker status", "filter", status.SubscriptionFilter)
	}

	m.resolveLocked(nil)
}

// handleDisconnect runs when an established session is lost.
func (m *ConnectionManager) handleDisconnect(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped || m.state == StateDisconnecting {
		return
	}

	m.lastReason = err

	// The transport reports loss and reconnect on separate goroutines. If
	// the reconnect already moved the state on, only the reason is new.
	if m.lossPending {
		m.lossPending = false
		m.logWarn("broker connection lost", "error", err)
		return
	}

	m.setStateLocked(StateDisconnected)
	m.resolveLocked(fmt.Errorf("%w: %w", ErrConnect, err))
	m.logWarn("broker connection lost", "error", err)
}

// handleReconnecting runs before each automatic reconnect attempt. A
// session state here means the loss has not been reported yet; Connecting
// means the previous attempt failed.
func (m *ConnectionManager) handleReconnecting() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped || m.state == StateDisconnecting {
		return
	}

	if m.state.HasSession() {
		m.lossPending = true
	}
	if m.state != StateDisconnected {
		m.setStateLocked(StateDisconnected)
	}

	m.newAttemptLocked()
	m.setStateLocked(StateConnecting)
	m.logInfo("reconnecting to broker")
}

// enqueue is the subscription handler. It runs on the transport's
// goroutine and never blocks.
func (m *ConnectionManager) enqueue(topic string, payload []byte) error {
	m.received.Add(1)
	m.recorder.ObserveMessage(time.Now())

	m.mu.Lock()
	active := m.state.HasSession()
	m.mu.Unlock()

	if !active {
		m.inactive.Add(1)
		m.recorder.IncMessage(metrics.ResultInactive)
		m.logDebug("status message outside a session, discarded", "topic", topic)
		return nil
	}

	msg := status.Message{
		Topic:   topic,
		Payload: bytes.Clone(payload),
	}

	select {
	case m.queue <- msg:
	default:
		m.dropped.Add(1)
		m.recorder.IncMessage(metrics.ResultDropped)
		m.logDebug("status queue full, message dropped", "topic", topic)
	}
	return nil
}

// newAttemptLocked replaces the current attempt. Callers hold m.mu.
func (m *ConnectionManager) newAttemptLocked() *attempt {
	m.resolveLocked(fmt.Errorf("%w: superseded", ErrConnect))
	att := &attempt{done: make(chan struct{})}
	m.current = att
	return att
}

// resolveLocked resolves the current attempt if it is still pending.
func (m *ConnectionManager) resolveLocked(err error) {
	att := m.current
	if att == nil {
		return
	}
	select {
	case <-att.done:
		return
	default:
	}
	att.err = err
	close(att.done)
}

// setStateLocked changes state and runs the hooks. Callers hold m.mu.
func (m *ConnectionManager) setStateLocked(to State) {
	from := m.state
	if from == to {
		return
	}
	m.state = to
	m.recorder.SetConnectionState(to.String(), to.HasSession())
	for _, hook := range m.hooks {
		hook(from, to)
	}
}
