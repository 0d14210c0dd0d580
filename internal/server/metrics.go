package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type MetricsCollector struct {
	tickDuration     prometheus.Histogram
	ticksTotal       prometheus.Counter
	commandsTotal    *prometheus.CounterVec
	broadcastBytes   *prometheus.CounterVec
	connectedClients prometheus.Gauge
}

func NewMetricsCollector(reg prometheus.Registerer) *MetricsCollector {
	m := &MetricsCollector{
		tickDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name: "tick_duration_seconds",
				Help: "Time spent advancing one simulation tick",
			},
		),
		ticksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ticks_total",
				Help: "Total simulation ticks advanced",
			},
		),
		commandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "commands_total",
				Help: "Total commands processed",
			},
			[]string{"outcome"},
		),
		broadcastBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "broadcast_bytes_total",
				Help: "Total bytes broadcast to clients",
			},
			[]string{"kind"},
		),
		connectedClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "connected_clients",
				Help: "Currently connected clients",
			},
		),
	}

	reg.MustRegister(m.tickDuration)
	reg.MustRegister(m.ticksTotal)
	reg.MustRegister(m.commandsTotal)
	reg.MustRegister(m.broadcastBytes)
	reg.MustRegister(m.connectedClients)

	return m
}

func (m *MetricsCollector) RecordTick(d time.Duration) {
	m.tickDuration.Observe(d.Seconds())
	m.ticksTotal.Inc()
}

func (m *MetricsCollector) RecordCommand(outcome string) {
	m.commandsTotal.WithLabelValues(outcome).Inc()
}

func (m *MetricsCollector) TrackBroadcast(kind string, bytes int) {
	if bytes > 0 {
		m.broadcastBytes.WithLabelValues(kind).Add(float64(bytes))
	}
}

func (m *MetricsCollector) ClientConnected()    { m.connectedClients.Inc() }
func (m *MetricsCollector) ClientDisconnected() { m.connectedClients.Dec() }

// ServeMetrics exposes the /metrics endpoint on its own listener.
func ServeMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
