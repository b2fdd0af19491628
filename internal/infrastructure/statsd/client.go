package statsd

import (
	"fmt"
	"strings"
	"sync"

	"github.com/DataDog/datadog-go/v5/statsd"

	"github.com/nerrad567/mosquitto-monitor/internal/infrastructure/config"
)

// gaugeRate is the sample rate passed with every gauge.
const gaugeRate = 1

// Client sends gauges to a statsd daemon.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	client *statsd.Client
	addr   string

	closed bool
	mu     sync.RWMutex

	// onError is called when a gauge cannot be sent.
	onError func(err error)
}

// New creates a statsd client for the configured daemon.
//
// No packets are exchanged here; UDP is connectionless, so an absent daemon
// only shows up later as lost gauges.
//
// Parameters:
//   - cfg: stats section of the monitor configuration
//
// Returns:
//   - *Client: Client ready for Gauge calls
//   - error: Wrapping ErrBackendUnavailable if the address cannot be resolved
func New(cfg config.StatsConfig) (*Client, error) {
	addr := cfg.Address()

	opts := []statsd.Option{
		// Client-side telemetry would add its own series under our namespace.
		statsd.WithoutTelemetry(),
		// Every sample goes out as received; the daemon keeps the last one.
		statsd.WithoutClientSideAggregation(),
		// One gauge per datagram.
		statsd.WithMaxMessagesPerPayload(1),
	}
	if ns := namespace(cfg.Prefix); ns != "" {
		opts = append(opts, statsd.WithNamespace(ns))
	}
	if len(cfg.Tags) > 0 {
		opts = append(opts, statsd.WithTags(cfg.Tags))
	}

	client, err := statsd.New(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrBackendUnavailable, addr, err)
	}

	return &Client{
		client: client,
		addr:   addr,
	}, nil
}

// namespace turns a configured prefix into a statsd namespace.
func namespace(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" || strings.HasSuffix(prefix, ".") {
		return prefix
	}
	return prefix + "."
}

// Gauge records the current value of a metric. The datagram is written
// before Gauge returns.
//
// Failures are passed to the error callback and otherwise ignored.
func (c *Client) Gauge(name string, value float64) {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()

	if closed || c.client == nil {
		c.reportError(fmt.Errorf("%w: gauge %s: %w", ErrBackendUnavailable, name, ErrClosed))
		return
	}

	if err := c.client.Gauge(name, value, nil, gaugeRate); err != nil {
		c.reportError(fmt.Errorf("%w: gauge %s: %w", ErrBackendUnavailable, name, err))
		return
	}

	// Send now rather than on the library's flush timer.
	if err := c.client.Flush(); err != nil {
		c.reportError(fmt.Errorf("%w: flush %s: %w", ErrBackendUnavailable, name, err))
	}
}

func (c *Client) reportError(err error) {
	c.mu.RLock()
	callback := c.onError
	c.mu.RUnlock()

	if callback != nil {
		callback(err)
	}
}

// SetOnError sets a callback to be invoked when a gauge cannot be sent.
func (c *Client) SetOnError(callback func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = callback
}

// Address returns the statsd daemon address.
func (c *Client) Address() string {
	return c.addr
}

// Close releases the socket.
// Safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed || c.client == nil {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if err := c.client.Close(); err != nil {
		return fmt.Errorf("closing statsd client: %w", err)
	}
	return nil
}
