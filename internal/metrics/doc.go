// Package metrics exposes the monitor's own health as Prometheus metrics.
//
// Recorder is the hook interface used by the monitor; NoopRecorder is the
// default when the status server is disabled. PrometheusRecorder also mirrors
// every broker gauge as mosquitto_monitor_broker_status{metric="..."} so the
// broker can be scraped directly as well as pushed to statsd.
package metrics
