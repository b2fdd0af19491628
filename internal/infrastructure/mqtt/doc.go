// Package mqtt provides the MQTT transport for the Mosquitto monitor.
//
// This package manages:
//   - Non-blocking connection to the broker with an awaitable result
//   - Automatic recovery of a lost session (paho auto-reconnect)
//   - Topic subscriptions with wildcard support
//   - Connection event callbacks (connect, disconnect, reconnecting)
//   - Connection health checks
//
// # Architecture
//
// The monitor is a passive subscriber. It never publishes; it listens to
// the broker's $SYS status tree and forwards each message to a handler.
//
//	Mosquitto ($SYS/#) → mqtt.Client → monitor connection manager
//
// The initial connect is never retried by this package. Connect reports the
// outcome of a single attempt, and the caller applies its own backoff.
//
// # Security Considerations
//
//   - TLS is used when broker.tls is set (minimum TLS 1.2)
//   - Credentials are optional; anonymous access must be allowed by the broker
//     for $SYS to be readable without them
//   - $SYS topics are often restricted by ACL; the monitor user needs read access
//
// # Usage
//
//	client := mqtt.NewClient(cfg)
//	client.SetOnConnect(func() {
//	    _ = client.Subscribe("$SYS/#", 1, func(topic string, payload []byte) error {
//	        log.Printf("%s = %s", topic, payload)
//	        return nil
//	    })
//	})
//	if err := <-client.Connect(); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
// # Thread Safety
//
// All exported methods are safe for concurrent use. Callbacks run on paho's
// goroutines and must not block for long.
package mqtt
