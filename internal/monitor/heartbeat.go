package monitor

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Heartbeat gauge names. They are emitted next to the broker gauges so a
// dead monitor is distinguishable from an idle broker.
const (
	HeartbeatConnectedMetric = "monitor.connected"
	HeartbeatStateMetric     = "monitor.state"
)

// heartbeat runs a task on a fixed interval.
type heartbeat struct {
	scheduler gocron.Scheduler
}

// startHeartbeat schedules task every interval, starting immediately.
func startHeartbeat(interval time.Duration, task func()) (*heartbeat, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create heartbeat scheduler: %w", err)
	}

	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithName("heartbeat"),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("failed to create heartbeat job: %w", err)
	}

	s.Start()
	return &heartbeat{scheduler: s}, nil
}

func (h *heartbeat) stop() error {
	if h == nil {
		return nil
	}
	return h.scheduler.Shutdown()
}

// beat emits the heartbeat gauges for the current connection state.
func (m *Monitor) beat() {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("heartbeat emitter panic recovered", "panic", r)
		}
	}()

	state := m.conn.State()

	connected := 0.0
	if state.HasSession() {
		connected = 1
	}

	m.emitter.Gauge(HeartbeatConnectedMetric, connected)
	m.emitter.Gauge(HeartbeatStateMetric, float64(state))
}
