// Package metrics exposes the receiver's Prometheus instrumentation. All
// recording methods are safe on a nil *Metrics, which disables them.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "adviser"

// Metrics holds the receiver's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	submissions        *prometheus.CounterVec
	emptyExtractions   *prometheus.CounterVec
	ingestDuration     prometheus.Histogram
	generationDuration *prometheus.HistogramVec
	generationFailures *prometheus.CounterVec
	promptTokens       prometheus.Histogram
	persistErrors      prometheus.Counter
	httpRequests       *prometheus.CounterVec
}

// New registers all collectors on a fresh registry, along with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		submissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Submissions received by kind and outcome.",
		}, []string{"kind", "outcome"}),

		emptyExtractions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "empty_extractions_total",
			Help:      "Submissions whose extraction produced no text.",
		}, []string{"kind"}),

		ingestDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_duration_seconds",
			Help:      "End-to-end time to process an accepted submission.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),

		generationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Backend generation latency.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"backend"}),

		generationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_failures_total",
			Help:      "Generations that returned a failure result.",
		}, []string{"backend"}),

		promptTokens: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prompt_tokens",
			Help:      "Tokens per prompt sent to the backend.",
			Buckets:   prometheus.ExponentialBuckets(16, 2, 12),
		}),

		persistErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_persist_errors_total",
			Help:      "History entries that could not be written to the log file.",
		}),

		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// TrackHistoryLen exports the current history size as a gauge.
func (m *Metrics) TrackHistoryLen(length func() int) {
	if m == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "history_entries",
		Help:      "Entries held in the history store.",
	}, func() float64 { return float64(length()) }))
}

// ObserveSubmission counts a submission; outcome is "ok" or "invalid".
func (m *Metrics) ObserveSubmission(kind, outcome string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.submissions.WithLabelValues(kind, outcome).Inc()
}

// ObserveEmptyExtraction counts a submission that yielded no text.
func (m *Metrics) ObserveEmptyExtraction(kind string) {
	if m == nil {
		return
	}
	m.emptyExtractions.WithLabelValues(kind).Inc()
}

// ObserveIngest records end-to-end processing time.
func (m *Metrics) ObserveIngest(d time.Duration) {
	if m == nil {
		return
	}
	m.ingestDuration.Observe(d.Seconds())
}

// ObserveGeneration implements backend.Observer.
func (m *Metrics) ObserveGeneration(backend string, d time.Duration, promptTokens int, failed bool) {
	if m == nil {
		return
	}
	m.generationDuration.WithLabelValues(backend).Observe(d.Seconds())
	m.promptTokens.Observe(float64(promptTokens))
	if failed {
		m.generationFailures.WithLabelValues(backend).Inc()
	}
}

// ObservePersistError counts a failed history write.
func (m *Metrics) ObservePersistError() {
	if m == nil {
		return
	}
	m.persistErrors.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware counts requests by chi route pattern, keeping label
// cardinality bounded for unmatched paths.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &codeRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		m.httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(rec.code)).Inc()
	})
}

type codeRecorder struct {
	http.ResponseWriter
	code        int
	wroteHeader bool
}

func (c *codeRecorder) WriteHeader(code int) {
	if !c.wroteHeader {
		c.code = code
		c.wroteHeader = true
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *codeRecorder) Unwrap() http.ResponseWriter { return c.ResponseWriter }
