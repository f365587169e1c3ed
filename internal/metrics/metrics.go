// Package metrics provides Prometheus metrics for the dispatcher.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatcher_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Workspace metrics
	foldersCurrent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatcher_folders",
			Help: "Number of folders in the workspace",
		},
	)

	filesCurrent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatcher_files",
			Help: "Number of file references in the workspace",
		},
	)

	filesAddedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatcher_files_added_total",
			Help: "Total file references added",
		},
	)

	filesRemovedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatcher_files_removed_total",
			Help: "Total file references removed",
		},
	)

	previewHandles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatcher_preview_handles",
			Help: "Number of live preview handles",
		},
	)

	uploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatcher_upload_bytes_total",
			Help: "Total bytes received as uploads",
		},
	)

	// Export metrics
	exportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_exports_total",
			Help: "Total export attempts",
		},
		[]string{"status"},
	)

	exportDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatcher_export_duration_seconds",
			Help:    "Time to build and save an archive",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	exportBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatcher_export_bytes_total",
			Help: "Total archive bytes saved",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// SetWorkspaceSize sets the current folder and file counts.
func SetWorkspaceSize(folders, files int) {
	foldersCurrent.Set(float64(folders))
	filesCurrent.Set(float64(files))
}

// RecordFilesAdded records newly added file references.
func RecordFilesAdded(count int) {
	filesAddedTotal.Add(float64(count))
}

// RecordFilesRemoved records file references removed by deletes.
func RecordFilesRemoved(count int) {
	filesRemovedTotal.Add(float64(count))
}

// SetPreviewHandles sets the number of live preview handles.
func SetPreviewHandles(n int) {
	previewHandles.Set(float64(n))
}

// RecordUpload records bytes received for an upload.
func RecordUpload(bytes int64) {
	uploadBytesTotal.Add(float64(bytes))
}

// RecordExport records an export outcome.
func RecordExport(success bool, bytes int64, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	exportsTotal.WithLabelValues(status).Inc()
	exportDuration.Observe(duration.Seconds())
	if success {
		exportBytesTotal.Add(float64(bytes))
	}
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request metrics. Paths are labelled with the chi route
// pattern so IDs do not explode label cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		path := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				path = p
			}
		}
		RecordHTTPRequest(r.Method, path, rw.statusCode, time.Since(start))
	})
}
