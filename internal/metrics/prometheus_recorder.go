package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "mosquitto_monitor"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	messages        *prom.CounterVec
	lastMessage     prom.Gauge
	connectAttempts *prom.CounterVec
	emitErrors      *prom.CounterVec
	brokerConnected prom.Gauge
	connectionState *prom.GaugeVec
	brokerStatus    *prom.GaugeVec

	mu        sync.Mutex
	lastState string
}

// NewPrometheusRecorder constructs and registers the monitor's metrics.
// A nil registry gets a fresh private one.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}

	pr := &PrometheusRecorder{
		messages: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Status messages received, by outcome",
		}, []string{"result"}),
		lastMessage: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "last_message_timestamp_seconds",
			Help:      "Unix time of the last status message received from the broker",
		}),
		connectAttempts: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "connect_attempts_total",
			Help:      "Broker connection attempts, by result",
		}, []string{"result"}),
		emitErrors: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "emit_errors_total",
			Help:      "Gauges a metrics backend failed to accept",
		}, []string{"backend"}),
		brokerConnected: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "broker_connected",
			Help:      "Whether the monitor holds a broker session (1) or not (0)",
		}),
		connectionState: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "Current connection state; the active state is 1",
		}, []string{"state"}),
		brokerStatus: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "broker_status",
			Help:      "Latest value of each broker status metric",
		}, []string{"metric"}),
	}

	reg.MustRegister(
		pr.messages,
		pr.lastMessage,
		pr.connectAttempts,
		pr.emitErrors,
		pr.brokerConnected,
		pr.connectionState,
		pr.brokerStatus,
	)
	return pr
}

func (p *PrometheusRecorder) IncMessage(result Result) {
	if p == nil || p.messages == nil {
		return
	}
	p.messages.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveMessage(at time.Time) {
	if p == nil || p.lastMessage == nil {
		return
	}
	p.lastMessage.Set(float64(at.UnixNano()) / float64(time.Second))
}

func (p *PrometheusRecorder) IncConnectAttempt(success bool) {
	if p == nil || p.connectAttempts == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.connectAttempts.WithLabelValues(res).Inc()
}

func (p *PrometheusRecorder) IncEmitError(backend string) {
	if p == nil || p.emitErrors == nil {
		return
	}
	p.emitErrors.WithLabelValues(backend).Inc()
}

// SetConnectionState marks state as the active connection state and clears
// the previously active one.
func (p *PrometheusRecorder) SetConnectionState(state string, connected bool) {
	if p == nil || p.connectionState == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.lastState != "" && p.lastState != state {
		p.connectionState.WithLabelValues(p.lastState).Set(0)
	}
	p.connectionState.WithLabelValues(state).Set(1)
	p.lastState = state

	if connected {
		p.brokerConnected.Set(1)
	} else {
		p.brokerConnected.Set(0)
	}
}

// Gauge mirrors a broker status gauge. It lets the recorder sit next to
// statsd as a metrics backend.
func (p *PrometheusRecorder) Gauge(name string, value float64) {
	if p == nil || p.brokerStatus == nil {
		return
	}
	p.brokerStatus.WithLabelValues(name).Set(value)
}
