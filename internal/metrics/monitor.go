package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MonitorMetrics instruments the monitoring engine. One instance is shared
// by every monitor; series are separated by the monitor label.
type MonitorMetrics struct {
	nodeStatus    *prometheus.GaugeVec
	events        *prometheus.CounterVec
	connectErrors *prometheus.CounterVec
	scriptRuns    *prometheus.CounterVec
	cycleDuration *prometheus.HistogramVec
}

// NewMonitorMetrics registers the engine metrics with reg.
func NewMonitorMetrics(reg prometheus.Registerer) *MonitorMetrics {
	factory := promauto.With(reg)

	return &MonitorMetrics{
		nodeStatus: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "proxymon_node_running",
			Help: "Whether the node accepted connections at the last poll (1=running, 0=down)",
		}, []string{"monitor", "node"}),
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "proxymon_events_total",
			Help: "State-transition events classified, by event name",
		}, []string{"monitor", "event"}),
		connectErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "proxymon_connect_errors_total",
			Help: "Probe connection failures, by classification",
		}, []string{"monitor", "node", "reason"}),
		scriptRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "proxymon_script_runs_total",
			Help: "Reaction script executions, by result",
		}, []string{"monitor", "result"}),
		cycleDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "proxymon_cycle_duration_seconds",
			Help:    "Wall-clock duration of one poll cycle",
			Buckets: prometheus.DefBuckets,
		}, []string{"monitor"}),
	}
}

// ObserveNodeStatus records whether a node was running after a cycle.
func (m *MonitorMetrics) ObserveNodeStatus(monitor, node string, running bool) {
	v := 0.0
	if running {
		v = 1.0
	}
	m.nodeStatus.WithLabelValues(monitor, node).Set(v)
}

// CountEvent records one classified state-transition event.
func (m *MonitorMetrics) CountEvent(monitor, event string) {
	m.events.WithLabelValues(monitor, event).Inc()
}

// CountConnectError records one probe connection failure.
func (m *MonitorMetrics) CountConnectError(monitor, node, reason string) {
	m.connectErrors.WithLabelValues(monitor, node, reason).Inc()
}

// CountScriptRun records one reaction script execution.
func (m *MonitorMetrics) CountScriptRun(monitor, result string) {
	m.scriptRuns.WithLabelValues(monitor, result).Inc()
}

// ObserveCycle records the duration of one completed poll cycle.
func (m *MonitorMetrics) ObserveCycle(monitor string, d time.Duration) {
	m.cycleDuration.WithLabelValues(monitor).Observe(d.Seconds())
}
