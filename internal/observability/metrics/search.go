package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/avolkov/grounding/internal/core/domain"
)

// SearchMetrics covers both the HTTP surface and the retrieval pipeline.
// Pipeline observations are fed from the per-stage timings carried on the
// evidence pack, so the core stays free of prometheus types.
type SearchMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	queriesTotal           *prometheus.CounterVec
	stageDuration          *prometheus.HistogramVec
	evidenceItems          *prometheus.HistogramVec
	coverageShortfallTotal *prometheus.CounterVec
	rerankFallbackTotal    *prometheus.CounterVec
}

func NewSearchMetrics(service string) *SearchMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "grounding",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "grounding",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "grounding",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "grounding",
			Subsystem: "search",
			Name:      "queries_total",
			Help:      "Total search queries by retrieval mode and outcome.",
		},
		[]string{"service", "mode", "status"},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "grounding",
			Subsystem: "search",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "stage"},
	)
	evidenceItems := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "grounding",
			Subsystem: "search",
			Name:      "evidence_items",
			Help:      "Distribution of evidence items per successful query.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 12, 20},
		},
		[]string{"service"},
	)
	coverageShortfallTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "grounding",
			Subsystem: "search",
			Name:      "coverage_shortfall_total",
			Help:      "Total queries that could not meet per-kind coverage minimums.",
		},
		[]string{"service"},
	)
	rerankFallbackTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "grounding",
			Subsystem: "search",
			Name:      "rerank_fallback_total",
			Help:      "Total queries that fell back to fused ordering after a rerank failure.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		queriesTotal,
		stageDuration,
		evidenceItems,
		coverageShortfallTotal,
		rerankFallbackTotal,
	)

	return &SearchMetrics{
		registry:               registry,
		requestTotal:           requestTotal,
		requestDuration:        requestDuration,
		requestInFlight:        requestInFlight,
		queriesTotal:           queriesTotal,
		stageDuration:          stageDuration,
		evidenceItems:          evidenceItems,
		coverageShortfallTotal: coverageShortfallTotal,
		rerankFallbackTotal:    rerankFallbackTotal,
	}
}

func (m *SearchMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *SearchMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			r.URL.Path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

// RecordSearch consumes a completed evidence pack.
func (m *SearchMetrics) RecordSearch(service string, pack *domain.EvidencePack) {
	if pack == nil {
		return
	}

	status := "ok"
	if pack.Err != "" {
		status = "error"
	}
	m.queriesTotal.WithLabelValues(service, string(pack.Mode), status).Inc()
	if pack.Err != "" {
		return
	}

	m.evidenceItems.WithLabelValues(service).Observe(float64(len(pack.Items)))
	m.observeStage(service, "expansion", pack.Timings.ExpansionMS)
	m.observeStage(service, "embedding", pack.Timings.EmbeddingMS)
	m.observeStage(service, "search", pack.Timings.SearchMS)
	m.observeStage(service, "balancing", pack.Timings.BalancingMS)
	m.observeStage(service, "reranking", pack.Timings.RerankingMS)
	m.observeStage(service, "coverage", pack.Timings.CoverageMS)
	m.observeStage(service, "total", pack.Timings.TotalMS)

	for _, warning := range pack.Warnings {
		switch {
		case strings.HasPrefix(warning, "coverage shortfall"):
			m.coverageShortfallTotal.WithLabelValues(service).Inc()
		case strings.HasPrefix(warning, "reranking failed"):
			m.rerankFallbackTotal.WithLabelValues(service).Inc()
		}
	}
}

func (m *SearchMetrics) observeStage(service, stage string, millis float64) {
	if millis <= 0 {
		return
	}
	m.stageDuration.WithLabelValues(service, stage).Observe(millis / 1000.0)
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
