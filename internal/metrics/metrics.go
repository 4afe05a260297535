// Package metrics provides Prometheus metrics for the filedeck server.
package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filedeck_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filedeck_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	bytesUploaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filedeck_bytes_uploaded_total",
			Help: "Total bytes stored by uploads",
		},
	)

	bytesDownloaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filedeck_bytes_downloaded_total",
			Help: "Total bytes served by downloads",
		},
	)

	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filedeck_uploads_total",
			Help: "Total number of uploads",
		},
		[]string{"status"},
	)

	entriesDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filedeck_entries_deleted_total",
			Help: "Total number of entries removed, subtree members included",
		},
	)

	authAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filedeck_auth_attempts_total",
			Help: "Total login attempts",
		},
		[]string{"result"},
	)
)

// Middleware records request count and latency per route.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if e, ok := err.(*fiber.Error); ok {
				status = e.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		// route pattern, not the raw path, to keep label cardinality bounded
		path := c.Route().Path
		httpRequestsTotal.WithLabelValues(c.Method(), path, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(c.Method(), path).Observe(time.Since(start).Seconds())
		return err
	}
}

// Handler serves the default registry.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

func RecordUpload(size int64, err error) {
	if err != nil {
		uploadsTotal.WithLabelValues("error").Inc()
		return
	}
	uploadsTotal.WithLabelValues("ok").Inc()
	bytesUploaded.Add(float64(size))
}

func RecordDownload(size int64) {
	bytesDownloaded.Add(float64(size))
}

func RecordDelete(entries int) {
	entriesDeleted.Add(float64(entries))
}

func RecordAuth(ok bool) {
	if ok {
		authAttemptsTotal.WithLabelValues("success").Inc()
		return
	}
	authAttemptsTotal.WithLabelValues("failure").Inc()
}
