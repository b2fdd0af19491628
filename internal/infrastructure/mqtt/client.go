package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/mosquitto-monitor/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang for the monitor's status session.
//
// Unlike a blocking connect, Connect only starts the handshake and reports
// its outcome on a channel, so callers can track the attempt as a state
// transition. Connection events are forwarded to the callbacks set with
// SetOnConnect, SetOnDisconnect and SetOnReconnecting.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Callbacks are invoked on paho's goroutines.
type Client struct {
	client  pahomqtt.Client
	options *pahomqtt.ClientOptions

	// handshakeTimeout is paho's per-attempt connect timeout.
	handshakeTimeout time.Duration

	// connected tracks current connection state.
	connected bool
	connMu    sync.RWMutex

	// Callbacks for connection events (optional).
	onConnect      func()
	onDisconnect   func(err error)
	onReconnecting func()
	callbackMu     sync.RWMutex

	// logger for error/panic logging (optional, set via SetLogger).
	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler is the callback signature for received messages.
//
// With ordered delivery enabled, paho invokes handlers one at a time in
// arrival order. Handlers should hand messages off quickly; blocking here
// stalls delivery of every later message.
//
// Returns:
//   - error: Logged but does not affect message acknowledgment
type MessageHandler func(topic string, payload []byte) error

// NewClient creates a client for the configured broker without connecting.
//
// Parameters:
//   - cfg: Application configuration (broker, auth and reconnect sections)
//
// Returns:
//   - *Client: Disconnected client; call Connect to start the handshake
func NewClient(cfg *config.Config) *Client {
	opts := buildClientOptions(cfg)

	c := &Client{
		options:          opts,
		handshakeTimeout: connectTimeout(cfg),
	}

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})

	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})

	opts.SetReconnectingHandler(func(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
		c.handleReconnecting()
	})

	c.client = pahomqtt.NewClient(opts)
	return c
}

// Connect starts the connection handshake and returns immediately.
//
// The returned channel receives exactly one value: nil once the broker
// acknowledges the connection, or an error wrapping ErrConnectionFailed.
// Failed attempts are not retried here; the caller decides whether to call
// Connect again. Reconnection after an established session is lost is
// handled by paho when broker.auto_reconnect is set.
func (c *Client) Connect() <-chan error {
	result := make(chan error, 1)
	token := c.client.Connect()
	timeout := c.connectTimeout()

	go func() {
		if !token.WaitTimeout(timeout) {
			result <- fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, timeout)
			return
		}
		if err := token.Error(); err != nil {
			result <- fmt.Errorf("%w: %w", ErrConnectionFailed, err)
			return
		}

		// The OnConnect callback runs asynchronously and may not have
		// executed yet, so mark the client connected here as well.
		c.setConnected(true)
		result <- nil
	}()

	return result
}

// handleConnect is called when the connection is established, including
// after an automatic reconnect.
func (c *Client) handleConnect() {
	c.setConnected(true)

	c.callbackMu.RLock()
	callback := c.onConnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

// handleDisconnect is called when an established connection is lost.
func (c *Client) handleDisconnect(err error) {
	c.setConnected(false)

	c.callbackMu.RLock()
	callback := c.onDisconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(fmt.Errorf("%w: %w", ErrConnectionLost, err))
	}
}

// handleReconnecting is called before each automatic reconnect attempt.
func (c *Client) handleReconnecting() {
	c.callbackMu.RLock()
	callback := c.onReconnecting
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

func (c *Client) setConnected(v bool) {
	c.connMu.Lock()
	c.connected = v
	c.connMu.Unlock()
}

// Close gracefully disconnects from the MQTT broker.
//
// Pending operations get a short quiesce period. Closing a client that
// never connected is not an error, and no disconnect callback fires.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	c.client.Disconnect(defaultDisconnectQuiesce)
	c.setConnected(false)

	return nil
}

// HealthCheck verifies the MQTT connection is alive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	return nil
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client != nil && c.client.IsConnected()
}

// ClientID returns the MQTT client identifier sent to the broker.
func (c *Client) ClientID() string {
	return c.options.ClientID
}

// SetOnConnect sets a callback to be invoked when connection is established.
// This is called on initial connect and on every reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetOnDisconnect sets a callback to be invoked when connection is lost.
// The error wraps ErrConnectionLost and the transport's reason.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = callback
	c.callbackMu.Unlock()
}

// SetOnReconnecting sets a callback to be invoked before each automatic
// reconnect attempt.
func (c *Client) SetOnReconnecting(callback func()) {
	c.callbackMu.Lock()
	c.onReconnecting = callback
	c.callbackMu.Unlock()
}

// SetLogger sets a logger for error and panic logging.
// If not set, errors in handlers are silently ignored.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// getLogger returns the current logger (may be nil).
func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// wrapHandler wraps a MessageHandler with panic recovery and optional logging.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := c.getLogger(); logger != nil {
					logger.Error("MQTT handler panic recovered",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Warn("MQTT handler returned error",
					"topic", msg.Topic(),
					"error", err,
				)
			}
		}
	}
}
