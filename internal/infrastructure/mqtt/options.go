package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/nerrad567/mosquitto-monitor/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout is used when broker.connect_timeout is unset.
	defaultConnectTimeout = 10 * time.Second

	// defaultSubscribeTimeout is the maximum time to wait for a SUBACK.
	defaultSubscribeTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 250 // milliseconds

	// defaultKeepAlive is used when broker.keep_alive is unset.
	defaultKeepAlive = 60 * time.Second

	// protocolVersion311 selects MQTT 3.1.1.
	protocolVersion311 = 4

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// clientIDPrefix prefixes generated client identifiers.
	clientIDPrefix = "mosquitto-monitor-"

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// buildClientOptions creates paho MQTT options from the monitor config.
//
// This configures:
//   - Broker URL (tcp:// or ssl:// based on TLS setting)
//   - Client ID (generated when not configured)
//   - Authentication credentials (if provided; anonymous otherwise)
//   - MQTT 3.1.1 with ordered message delivery
//   - Clean session mode
//   - Auto-reconnect after a lost session (initial connect is never retried here)
//   - TLS configuration (if enabled)
func buildClientOptions(cfg *config.Config) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	// Broker URL
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))

	// Client identification
	opts.SetClientID(clientID(cfg.Broker.ClientID))

	// Authentication (if credentials provided)
	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetProtocolVersion(protocolVersion311)

	// Status messages must reach the queue in arrival order.
	opts.SetOrderMatters(true)

	// $SYS topics are republished every sys_interval, so nothing is lost
	// by not persisting the session.
	opts.SetCleanSession(cfg.Broker.CleanSession)

	// Initial connect failures are reported to the caller, which owns the
	// retry policy. Lost sessions may be recovered by paho.
	opts.SetConnectRetry(false)
	opts.SetAutoReconnect(cfg.Broker.AutoReconnect)
	if cfg.Reconnect.MaxDelay > 0 {
		opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)
	}

	opts.SetConnectTimeout(connectTimeout(cfg))
	opts.SetKeepAlive(keepAlive(cfg.Broker))

	// TLS configuration if enabled
	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tlsMinVersion,
		})
	}

	return opts
}

// clientID returns the configured identifier or a generated unique one.
func clientID(configured string) string {
	if configured != "" {
		return configured
	}
	return clientIDPrefix + uuid.NewString()[:8]
}

func connectTimeout(cfg *config.Config) time.Duration {
	if timeout := cfg.GetConnectTimeout(); timeout > 0 {
		return timeout
	}
	return defaultConnectTimeout
}

func keepAlive(cfg config.BrokerConfig) time.Duration {
	if cfg.KeepAlive <= 0 {
		return defaultKeepAlive
	}
	return time.Duration(cfg.KeepAlive) * time.Second
}

// connectTimeout bounds how long Connect waits for paho's token. paho
// enforces the per-attempt timeout itself; the extra second covers DNS
// resolution and TLS setup that happen before its timer starts.
func (c *Client) connectTimeout() time.Duration {
	return c.handshakeTimeout + time.Second
}
