package influxdb

import (
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

func TestNewStatusPoint(t *testing.T) {
	ts := time.Unix(1700000000, 0)

	point := newStatusPoint("bytes_sent_1min", 1234.5, ts)

	line := write.PointToLineProtocol(point, time.Second)
	want := "mosquitto_status,metric=bytes_sent_1min value=1234.5 1700000000"
	if strings.TrimSpace(line) != want {
		t.Errorf("line protocol = %q, want %q", strings.TrimSpace(line), want)
	}
}
