package influxdb

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/mosquitto-monitor/internal/infrastructure/config"
)

const (
	// defaultPingTimeout bounds the connectivity check in Connect and HealthCheck.
	defaultPingTimeout = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 * time.Second

	// applicationName identifies the monitor in the User-Agent header.
	applicationName = "mosquitto-monitor"
)

// Client mirrors broker status gauges into InfluxDB v2.
//
// Every gauge becomes one point in the status measurement, tagged with its
// metric name. Points are batched by the non-blocking write API, so a slow
// or absent server never stalls the event loop; failed batches reach the
// SetOnError callback.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	bucket   string

	// writeMu orders writes against Close; the write API must not be used
	// once it is closed.
	connected atomic.Bool
	writeMu   sync.RWMutex
	closeOnce sync.Once

	points      atomic.Uint64
	writeErrors atomic.Uint64

	onError func(err error)
	mu      sync.RWMutex
}

// Stats counts mirror activity.
type Stats struct {
	Points      uint64 `json:"points"`
	WriteErrors uint64 `json:"write_errors"`
}

// Connect opens the mirror and verifies the server answers a ping.
//
// Parameters:
//   - ctx: Bounds the ping together with defaultPingTimeout
//   - cfg: influxdb section of the monitor configuration
//
// Returns:
//   - *Client: Connected client ready for Gauge calls
//   - error: ErrDisabled, or ErrConnectionFailed wrapping the cause
func Connect(ctx context.Context, cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, clientOptions(cfg))

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	healthy, err := client.Ping(pingCtx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping %s: %w", ErrConnectionFailed, cfg.URL, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, cfg.URL, ErrUnhealthy)
	}

	c := &Client{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
		bucket:   cfg.Bucket,
	}
	c.connected.Store(true)

	go c.handleWriteErrors(c.writeAPI.Errors())

	return c, nil
}

// clientOptions converts the batching settings. Zero or negative values
// fall back to the defaults.
func clientOptions(cfg config.InfluxDBConfig) *influxdb2.Options {
	batchSize := uint(defaultBatchSize)
	if cfg.BatchSize > 0 {
		batchSize = uint(cfg.BatchSize)
	}
	flushInterval := defaultFlushInterval
	if cfg.FlushInterval > 0 {
		flushInterval = time.Duration(cfg.FlushInterval) * time.Second
	}

	return influxdb2.DefaultOptions().
		SetApplicationName(applicationName).
		SetBatchSize(batchSize).
		SetFlushInterval(uint(flushInterval.Milliseconds())).
		SetPrecision(time.Millisecond)
}

// handleWriteErrors forwards failed batches until the write API closes.
func (c *Client) handleWriteErrors(errorsCh <-chan error) {
	for err := range errorsCh {
		c.writeErrors.Add(1)

		c.mu.RLock()
		callback := c.onError
		c.mu.RUnlock()

		if callback != nil {
			callback(fmt.Errorf("writing to bucket %s: %w", c.bucket, err))
		}
	}
}

// Close flushes pending points and releases the client. Later calls and
// calls on a never-connected client are no-ops.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		c.connected.Store(false)
		c.writeMu.Unlock()

		c.writeAPI.Flush()
		c.client.Close()
	})
	return nil
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	healthy, err := c.client.Ping(checkCtx)
	if err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	if !healthy {
		return fmt.Errorf("influxdb health check: %w", ErrUnhealthy)
	}
	return nil
}

// IsConnected reports whether Connect succeeded and Close has not run.
// It does not contact the server; use HealthCheck for that.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// SetOnError sets a callback for failed batches. Writes are asynchronous,
// so this is the only place write failures appear.
func (c *Client) SetOnError(callback func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = callback
}

// Flush blocks until buffered points have been sent. No-op when closed.
func (c *Client) Flush() {
	c.writeMu.RLock()
	defer c.writeMu.RUnlock()

	if !c.IsConnected() {
		return
	}
	c.writeAPI.Flush()
}

// Stats returns point and error counts since Connect.
func (c *Client) Stats() Stats {
	return Stats{
		Points:      c.points.Load(),
		WriteErrors: c.writeErrors.Load(),
	}
}
