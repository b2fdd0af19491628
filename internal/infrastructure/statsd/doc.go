// Package statsd is the primary metrics backend of the Mosquitto monitor.
//
// It wraps the DataDog datadog-go v5 statsd client and exposes a single
// fire-and-forget Gauge call. Gauges are sent over UDP under the configured
// namespace, so a gauge named clients_connected with the default prefix is
// reported as mosquito_monitor.clients_connected.
//
// UDP delivery is best effort. Errors never propagate to the caller; they are
// reported to the optional SetOnError callback for logging and counting.
//
// # Usage
//
//	client, err := statsd.New(cfg.Stats)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.Gauge("clients_connected", 7)
package statsd
