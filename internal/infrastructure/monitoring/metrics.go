package monitoring

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the host process.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Tab metrics
	TabsOpen    prometheus.Gauge
	TabsCreated prometheus.Counter

	// Agent process metrics
	AgentRunning  prometheus.Gauge
	AgentRestarts prometheus.Counter

	// Stream relay metrics
	StreamsActive prometheus.Gauge
	StreamFrames  prometheus.Counter
	StreamErrors  *prometheus.CounterVec

	// Bridge metrics
	BridgeConnections prometheus.Gauge
	BridgeMessages    *prometheus.CounterVec
}

// NewMetrics creates a metrics collector with its own registry, so each
// test (and each host process) gets isolated collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "host_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "host_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		TabsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "host_tabs_open",
			Help: "Number of open browsing contexts",
		}),
		TabsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "host_tabs_created_total",
			Help: "Total number of tabs created",
		}),
		AgentRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "host_agent_running",
			Help: "Whether the supervised agent process is live (0/1)",
		}),
		AgentRestarts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "host_agent_restarts_total",
			Help: "Total automatic agent restarts after unexpected exits",
		}),
		StreamsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "host_streams_active",
			Help: "Number of live relayed stream sessions",
		}),
		StreamFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "host_stream_frames_total",
			Help: "Total decoded stream frames forwarded to the UI",
		}),
		StreamErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "host_stream_errors_total",
				Help: "Stream relay terminal errors by code",
			},
			[]string{"code"},
		),
		BridgeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "host_bridge_connections",
			Help: "Open UI bridge WebSocket connections",
		}),
		BridgeMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "host_bridge_messages_total",
				Help: "Bridge messages by request type",
			},
			[]string{"type"},
		),
	}

	m.registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.TabsOpen,
		m.TabsCreated,
		m.AgentRunning,
		m.AgentRestarts,
		m.StreamsActive,
		m.StreamFrames,
		m.StreamErrors,
		m.BridgeConnections,
		m.BridgeMessages,
	)

	return m
}

// Handler exposes the Prometheus scrape endpoint for this collector set.
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}

// Middleware records request counts and latencies.
func Middleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := statusLabel(c.Writer.Status())
		m.RequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.RequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

func statusLabel(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
