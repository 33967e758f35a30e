// Package metrics exposes Prometheus instrumentation for fetches, chat and HTTP routes.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	edgarFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "formd",
		Subsystem: "edgar",
		Name:      "fetch_total",
		Help:      "Total number of EDGAR filing fetches broken down by result kind.",
	}, []string{"result"})

	edgarLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "formd",
		Subsystem: "edgar",
		Name:      "fetch_duration_seconds",
		Help:      "Latency distribution for EDGAR filing fetches.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
	}, []string{"result"})

	edgarFilings = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "formd",
		Subsystem: "edgar",
		Name:      "filings_returned",
		Help:      "Number of normalized filings per successful fetch.",
		Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
	})

	chatRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "formd",
		Subsystem: "chat",
		Name:      "requests_total",
		Help:      "Total number of chat completion requests broken down by result.",
	}, []string{"result"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "formd",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of dashboard requests broken down by route and status class.",
	}, []string{"route", "result"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "formd",
		Subsystem: "http",
		Name:      "latency_seconds",
		Help:      "Latency distribution for dashboard requests.",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	}, []string{"route", "result"})
)

// ObserveFetch records one EDGAR fetch. filings is only recorded for result "ok".
func ObserveFetch(result string, d time.Duration, filings int) {
	edgarFetches.WithLabelValues(result).Inc()
	edgarLatency.WithLabelValues(result).Observe(d.Seconds())

	if result == "ok" {
		edgarFilings.Observe(float64(filings))
	}
}

// ObserveChat records one chat completion attempt.
func ObserveChat(result string) {
	chatRequests.WithLabelValues(result).Inc()
}

// Handler serves the default registry. Compression is left to the router.
func Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(
		prometheus.DefaultRegisterer,
		promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{DisableCompression: true}),
	)
}

type statusRecordingResponseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusRecordingResponseWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}

	w.ResponseWriter.WriteHeader(status)
}

func (w *statusRecordingResponseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}

	return w.ResponseWriter.Write(b)
}

func (w *statusRecordingResponseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Instrument wraps next so that every request is counted under a stable route label.
func Instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecordingResponseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		result := statusClass(rec.status)
		httpRequests.WithLabelValues(route, result).Inc()
		httpLatency.WithLabelValues(route, result).Observe(time.Since(start).Seconds())
	})
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
