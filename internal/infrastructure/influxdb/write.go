package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

const (
	// statusMeasurement holds one series per broker status metric.
	statusMeasurement = "mosquitto_status"

	// metricTag carries the gauge name.
	metricTag = "metric"

	// valueField carries the gauge value.
	valueField = "value"
)

// Gauge records the latest value of a broker status metric.
//
// The write is non-blocking; data is batched and sent asynchronously. Write
// failures surface through the SetOnError callback. Calls on a closed or
// unconnected client are ignored.
//
// Example:
//
//	client.Gauge("clients_connected", 7)
func (c *Client) Gauge(name string, value float64) {
	c.GaugeAt(name, value, time.Now())
}

// GaugeAt records a status metric with an explicit timestamp.
func (c *Client) GaugeAt(name string, value float64, ts time.Time) {
	c.writeMu.RLock()
	defer c.writeMu.RUnlock()

	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(newStatusPoint(name, value, ts))
	c.points.Add(1)
}

// newStatusPoint builds the point written for one gauge sample.
func newStatusPoint(name string, value float64, ts time.Time) *write.Point {
	return write.NewPoint(
		statusMeasurement,
		map[string]string{metricTag: name},
		map[string]interface{}{valueField: value},
		ts,
	)
}
