package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docgen_http_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docgen_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"method", "route"},
	)

	generations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docgen_generations_total",
			Help: "Generation requests by outcome",
		},
		[]string{"mode", "format", "outcome"},
	)

	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docgen_stage_duration_seconds",
			Help:    "Duration of each generation stage",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"stage"},
	)

	retentionRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docgen_retention_removed_files_total",
		Help: "Generated files removed by the retention sweeper",
	})
)

// ObserveHTTPRequest records one served request.
func ObserveHTTPRequest(method, route string, status int, latency time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(latency.Seconds())
}

// IncGeneration counts a finished generation. outcome is "ok" or an error kind.
func IncGeneration(mode, format, outcome string) {
	generations.WithLabelValues(mode, format, outcome).Inc()
}

// ObserveStage records how long a pipeline stage (ai, render, convert) took.
func ObserveStage(stage string, d time.Duration) {
	stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// AddRetentionRemoved counts files deleted by the sweeper.
func AddRetentionRemoved(n int) {
	if n > 0 {
		retentionRemoved.Add(float64(n))
	}
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
