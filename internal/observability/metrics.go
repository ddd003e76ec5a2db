package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "roomlink",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "roomlink",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	ddpFramesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "roomlink",
			Subsystem: "ddp",
			Name:      "frames_sent_total",
			Help:      "DDP frames written, by msg.",
		},
		[]string{"node", "msg"},
	)
	ddpFramesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "roomlink",
			Subsystem: "ddp",
			Name:      "frames_received_total",
			Help:      "DDP frames classified, by msg.",
		},
		[]string{"node", "msg"},
	)
	ddpProtocolErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "roomlink",
			Subsystem: "ddp",
			Name:      "protocol_errors_total",
			Help:      "Inbound DDP frames dropped as malformed.",
		},
		[]string{"node"},
	)
	ddpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "roomlink",
			Subsystem: "ddp",
			Name:      "request_duration_seconds",
			Help:      "Time from send to release of id-bearing DDP requests.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "kind", "outcome"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			ddpFramesSent,
			ddpFramesReceived,
			ddpProtocolErrors,
			ddpRequestDuration,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

// ClientMetrics records DDP client activity under one node label.
type ClientMetrics struct {
	node string
}

func NewClientMetrics(node string) *ClientMetrics {
	RegisterMetrics()
	return &ClientMetrics{node: node}
}

func (m *ClientMetrics) FrameSent(msg string) {
	ddpFramesSent.WithLabelValues(m.node, msg).Inc()
}

func (m *ClientMetrics) FrameReceived(msg string) {
	ddpFramesReceived.WithLabelValues(m.node, msg).Inc()
}

func (m *ClientMetrics) ProtocolError() {
	ddpProtocolErrors.WithLabelValues(m.node).Inc()
}

func (m *ClientMetrics) RequestDone(kind, outcome string, d time.Duration) {
	ddpRequestDuration.WithLabelValues(m.node, kind, outcome).Observe(d.Seconds())
}
