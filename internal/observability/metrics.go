package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	sessionsBuilt = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rollbridge",
			Subsystem: "session",
			Name:      "builds_total",
			Help:      "Session build attempts by mode and result.",
		},
		[]string{"mode", "result"},
	)
	sessionsLive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rollbridge",
			Subsystem: "session",
			Name:      "live",
			Help:      "Sessions currently registered.",
		},
	)
	advanceFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rollbridge",
			Subsystem: "session",
			Name:      "advance_failures_total",
			Help:      "Advance calls aborted by the engine.",
		},
		[]string{"mode"},
	)
	requestsQueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rollbridge",
			Subsystem: "requests",
			Name:      "queued_total",
			Help:      "Request records appended to session queues.",
		},
		[]string{"tag"},
	)
	transportMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rollbridge",
			Subsystem: "transport",
			Name:      "messages_total",
			Help:      "Messages moved through transport bridges.",
		},
		[]string{"direction"},
	)
	codecRejects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rollbridge",
			Subsystem: "transport",
			Name:      "codec_rejects_total",
			Help:      "Messages rejected by the codec.",
		},
		[]string{"direction"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rollbridge",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total inspector HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rollbridge",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Inspector HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			sessionsBuilt,
			sessionsLive,
			advanceFailures,
			requestsQueued,
			transportMessages,
			codecRejects,
			httpRequests,
			httpDuration,
		)
	})
}

func RecordSessionBuild(mode string, ok bool) {
	RegisterMetrics()
	result := "ok"
	if !ok {
		result = "failed"
	}
	sessionsBuilt.WithLabelValues(mode, result).Inc()
	if ok {
		sessionsLive.Inc()
	}
}

func RecordSessionClosed() {
	RegisterMetrics()
	sessionsLive.Dec()
}

func RecordAdvanceFailure(mode string) {
	RegisterMetrics()
	advanceFailures.WithLabelValues(mode).Inc()
}

func RecordRequestQueued(tag string) {
	RegisterMetrics()
	requestsQueued.WithLabelValues(tag).Inc()
}

func RecordTransportMessage(direction string) {
	RegisterMetrics()
	transportMessages.WithLabelValues(direction).Inc()
}

func RecordCodecReject(direction string) {
	RegisterMetrics()
	codecRejects.WithLabelValues(direction).Inc()
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}
