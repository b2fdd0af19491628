package statsd

import (
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/mosquitto-monitor/internal/infrastructure/config"
)

// listen opens a UDP socket standing in for the statsd daemon.
func listen(t *testing.T) (net.PacketConn, config.StatsConfig) {
	t.Helper()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	port := conn.LocalAddr().(*net.UDPAddr).Port
	return conn, config.StatsConfig{
		Host:   "127.0.0.1",
		Port:   port,
		Prefix: "mosquito_monitor",
	}
}

// readPackets collects datagrams until the deadline and returns their lines.
func readPackets(t *testing.T, conn net.PacketConn, want int) []string {
	t.Helper()

	var lines []string
	buf := make([]byte, 65535)
	deadline := time.Now().Add(2 * time.Second)
	for len(lines) < want {
		if err := conn.SetReadDeadline(deadline); err != nil {
			t.Fatalf("SetReadDeadline() error = %v", err)
		}
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			t.Fatalf("ReadFrom() error = %v (got %d of %d lines)", err, len(lines), want)
		}
		for _, line := range strings.Split(strings.TrimSpace(string(buf[:n])), "\n") {
			if line != "" {
				lines = append(lines, line)
			}
		}
	}
	return lines
}

func TestGauge_SendsNamespacedGauge(t *testing.T) {
	conn, cfg := listen(t)

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	defer client.Close()

	client.Gauge("clients_connected", 7)

	lines := readPackets(t, conn, 1)
	if !strings.HasPrefix(lines[0], "mosquito_monitor.clients_connected:7|g") {
		t.Errorf("packet = %q, want %q", lines[0], "mosquito_monitor.clients_connected:7|g")
	}
}

func TestGauge_GlobalTags(t *testing.T) {
	conn, cfg := listen(t)
	cfg.Tags = []string{"env:test"}

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	client.Gauge("broker_uptime", 12345)
	client.Close()

	lines := readPackets(t, conn, 1)
	want := "mosquito_monitor.broker_uptime:12345|g|#env:test"
	if !strings.HasPrefix(lines[0], want) {
		t.Errorf("packet = %q, want %q", lines[0], want)
	}
}

func TestGauge_PreservesOrder(t *testing.T) {
	conn, cfg := listen(t)

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	for i := 1; i <= 5; i++ {
		client.Gauge("heap_current", float64(i))
	}
	client.Close()

	lines := readPackets(t, conn, 5)
	for i, line := range lines {
		want := "mosquito_monitor.heap_current:" + strconv.Itoa(i+1) + "|g"
		if !strings.HasPrefix(line, want) {
			t.Errorf("line %d = %q, want %q", i, line, want)
		}
	}
}

func TestGauge_OneDatagramPerGaugeWithoutDelay(t *testing.T) {
	conn, cfg := listen(t)

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer client.Close()

	client.Gauge("clients_connected", 7)
	client.Gauge("heap_current", 10)

	// Well under the library's 100ms flush interval.
	buf := make([]byte, 65535)
	deadline := time.Now().Add(50 * time.Millisecond)
	for _, want := range []string{
		"mosquito_monitor.clients_connected:7|g",
		"mosquito_monitor.heap_current:10|g",
	} {
		if err := conn.SetReadDeadline(deadline); err != nil {
			t.Fatalf("SetReadDeadline() error = %v", err)
		}
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			t.Fatalf("ReadFrom() waiting for %q error = %v", want, err)
		}
		datagram := strings.TrimSpace(string(buf[:n]))
		if strings.Contains(datagram, "\n") {
			t.Errorf("datagram carries several gauges: %q", datagram)
		}
		if !strings.HasPrefix(datagram, want) {
			t.Errorf("datagram = %q, want %q", datagram, want)
		}
	}
}

func TestGauge_AfterCloseReportsError(t *testing.T) {
	_, cfg := listen(t)

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var mu sync.Mutex
	var got []error
	client.SetOnError(func(err error) {
		mu.Lock()
		got = append(got, err)
		mu.Unlock()
	})

	client.Close()
	client.Gauge("clients_connected", 1)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("onError called %d times, want 1", len(got))
	}
	if !errors.Is(got[0], ErrBackendUnavailable) || !errors.Is(got[0], ErrClosed) {
		t.Errorf("error = %v, want ErrBackendUnavailable wrapping ErrClosed", got[0])
	}
}

func TestGauge_NoCallbackDoesNotPanic(t *testing.T) {
	client := &Client{}
	client.Gauge("clients_connected", 1)
}

func TestClose_Idempotent(t *testing.T) {
	_, cfg := listen(t)

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("first Close() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestNamespace(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{"mosquito_monitor", "mosquito_monitor."},
		{"mosquito_monitor.", "mosquito_monitor."},
		{" broker ", "broker."},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			if got := namespace(tt.prefix); got != tt.want {
				t.Errorf("namespace(%q) = %q, want %q", tt.prefix, got, tt.want)
			}
		})
	}
}

func TestAddress(t *testing.T) {
	client, err := New(config.StatsConfig{Host: "127.0.0.1", Port: 8125})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer client.Close()

	if client.Address() != "127.0.0.1:8125" {
		t.Errorf("Address() = %q", client.Address())
	}
}
