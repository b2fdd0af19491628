// Package monitor bridges the broker's $SYS status stream to gauge metrics.
//
// # Components
//
//   - ConnectionManager: owns the broker session and its state machine
//     (Disconnected, Connecting, Connected, Subscribed, Disconnecting)
//   - Dispatcher: looks up each status message in the registry, decodes it
//     and emits one gauge
//   - Emitter: destination for gauges; MultiEmitter fans out to statsd and
//     the optional mirrors
//   - Monitor: wires the above together, connects with backoff and runs the
//     event loop
//
// # Data Flow
//
//	broker → Transport → ConnectionManager (queue) → event loop → Dispatcher → Emitter
//
// The transport callback only copies the message onto a bounded queue. The
// event loop is the single goroutine that calls the Dispatcher, so gauges
// are emitted in arrival order.
//
// # Usage
//
//	m, err := monitor.New(monitor.Options{
//	    Transport: mqtt.NewClient(cfg),
//	    Registry:  registry,
//	    Emitter:   statsdClient,
//	})
//	if err := m.Start(ctx); err != nil {
//	    return err
//	}
//	defer m.Stop()
//	return m.RunEventLoop(ctx, monitor.Forever())
package monitor
