package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chunkrelay"

var (
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	chunksCommitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chunks_committed_total",
		Help:      "Chunks committed to the repository host, by create or update.",
	}, []string{"operation"})

	chunkBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chunk_bytes_total",
		Help:      "Bytes of chunk content committed to the repository host.",
	})

	uploadsCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "uploads_completed_total",
		Help:      "Uploads whose final chunk was processed, by how file size was derived.",
	}, []string{"size_source"})

	metadataDegraded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "metadata_degraded_total",
		Help:      "Metadata steps that failed without failing the chunk upload.",
	}, []string{"step"})

	gatewayErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gateway_errors_total",
		Help:      "Repository host calls that failed, by operation.",
	}, []string{"operation"})

	registerOnce sync.Once
)

// InitMetrics registers all collectors with the default registry. Safe to
// call more than once.
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			chunksCommitted,
			chunkBytes,
			uploadsCompleted,
			metadataDegraded,
			gatewayErrors,
		)
	})
}

// Register attaches the Prometheus metrics endpoint to the router.
func Register(router *gin.Engine, path string) {
	router.GET(path, gin.WrapH(promhttp.Handler()))
}

// Middleware records request counts and latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// ChunkCommitted counts one chunk written to the repository host.
func ChunkCommitted(created bool, size int) {
	op := "updated"
	if created {
		op = "created"
	}
	chunksCommitted.WithLabelValues(op).Inc()
	chunkBytes.Add(float64(size))
}

// UploadCompleted counts a finished upload; estimated marks a fallback size.
func UploadCompleted(estimated bool) {
	source := "aggregate"
	if estimated {
		source = "estimate"
	}
	uploadsCompleted.WithLabelValues(source).Inc()
}

// MetadataDegraded counts a swallowed metadata failure.
func MetadataDegraded(step string) {
	metadataDegraded.WithLabelValues(step).Inc()
}

// GatewayError counts a failed repository host call.
func GatewayError(operation string) {
	gatewayErrors.WithLabelValues(operation).Inc()
}
