package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	registry *prometheus.Registry

	ToolExecutionsTotal   *prometheus.CounterVec
	ToolExecutionDuration *prometheus.HistogramVec
	RegisteredTools       prometheus.Gauge
	RejectedTools         prometheus.Gauge
	RegistryReloadsTotal  prometheus.Counter
}

// New creates and registers all metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		ToolExecutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tool_executions_total",
				Help: "Total number of tool executions by outcome",
			},
			[]string{"tool", "status"},
		),
		ToolExecutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
		RegisteredTools: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "registered_tools",
			Help: "Number of tools in the current registry snapshot",
		}),
		RejectedTools: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rejected_tool_candidates",
			Help: "Number of candidates rejected in the current registry snapshot",
		}),
		RegistryReloadsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "registry_reloads_total",
			Help: "Total number of registry reloads",
		}),
	}

	registry.MustRegister(
		m.ToolExecutionsTotal,
		m.ToolExecutionDuration,
		m.RegisteredTools,
		m.RejectedTools,
		m.RegistryReloadsTotal,
	)

	return m
}

// ObserveExecution implements the dispatcher's Observer interface.
func (m *Metrics) ObserveExecution(tool, status string, elapsed time.Duration) {
	m.ToolExecutionsTotal.WithLabelValues(tool, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
}

// ObserveRegistry records the shape of the current registry snapshot.
func (m *Metrics) ObserveRegistry(tools, rejected int) {
	m.RegisteredTools.Set(float64(tools))
	m.RejectedTools.Set(float64(rejected))
}

// ObserveReload counts one registry reload. The initial load at startup is
// not a reload and must not call this.
func (m *Metrics) ObserveReload() {
	m.RegistryReloadsTotal.Inc()
}

// Handler returns the /metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
