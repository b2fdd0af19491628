// Package api implements the status HTTP server of the Mosquitto monitor.
//
// This package provides:
//   - GET /health: 200 while the status subscription is active, 503 otherwise
//   - GET /metrics: the monitor's own Prometheus metrics
//   - GET /api/v1/status: connection state, message counters and runtime stats
//   - Middleware stack (request ID, logging, recovery)
//
// The server is optional and read-only. Gauges for the monitored broker go to
// statsd; this server only reports on the monitor itself.
package api
