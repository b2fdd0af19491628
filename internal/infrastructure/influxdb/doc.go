// Package influxdb mirrors broker status gauges into InfluxDB v2.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes and health monitoring. The mirror
// is optional; statsd remains the primary metrics backend.
//
// # Data Layout
//
// Every gauge is written to the mosquitto_status measurement:
//
//	mosquitto_status,metric=clients_connected value=7
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.Gauge("broker_uptime", 12345)
package influxdb
