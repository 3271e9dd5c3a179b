package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SystemMetrics is a lightweight snapshot for the ops endpoint.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	ConversionsStarted       uint64    `json:"conversions_started"`
	ConversionsFailed        uint64    `json:"conversions_failed"`
	DeploymentsStarted       uint64    `json:"deployments_started"`
	DeploymentsFailed        uint64    `json:"deployments_failed"`
	QARunsTotal              uint64    `json:"qa_runs_total"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

// MetricsService encapsulates Prometheus instrumentation and provides
// lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
	jobTotal        *prometheus.CounterVec
	qaFindings      *prometheus.CounterVec

	requestCount         uint64
	requestDurationTotal uint64
	conversionsStarted   uint64
	conversionsFailed    uint64
	deploymentsStarted   uint64
	deploymentsFailed    uint64
	qaRunCount           uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "job_duration_seconds",
		Help:    "Duration of background jobs in seconds",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"queue", "outcome"})

	jobTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jobs_total",
		Help: "Total background jobs by queue and outcome",
	}, []string{"queue", "outcome"})

	qaFindings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "qa_findings_total",
		Help: "Total QA findings by rule and severity",
	}, []string{"rule", "severity"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, jobDuration, jobTotal, qaFindings, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		jobDuration:     jobDuration,
		jobTotal:        jobTotal,
		qaFindings:      qaFindings,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// ObserveJob records a background job outcome for a queue.
func (m *MetricsService) ObserveJob(queue string, failed bool, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if failed {
		outcome = "failure"
	}
	m.jobDuration.WithLabelValues(queue, outcome).Observe(duration.Seconds())
	m.jobTotal.WithLabelValues(queue, outcome).Inc()

	switch queue {
	case "conversion":
		atomic.AddUint64(&m.conversionsStarted, 1)
		if failed {
			atomic.AddUint64(&m.conversionsFailed, 1)
		}
	case "deployment":
		atomic.AddUint64(&m.deploymentsStarted, 1)
		if failed {
			atomic.AddUint64(&m.deploymentsFailed, 1)
		}
	}
}

// ObserveQAFinding counts a rule hit.
func (m *MetricsService) ObserveQAFinding(rule, severity string) {
	if m == nil {
		return
	}
	m.qaFindings.WithLabelValues(rule, severity).Inc()
}

// ObserveQARun counts a completed QA run.
func (m *MetricsService) ObserveQARun() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.qaRunCount, 1)
}

// Snapshot returns aggregated metrics for the ops endpoint.
func (m *MetricsService) Snapshot() SystemMetrics {
	if m == nil {
		return SystemMetrics{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return SystemMetrics{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		ConversionsStarted:       atomic.LoadUint64(&m.conversionsStarted),
		ConversionsFailed:        atomic.LoadUint64(&m.conversionsFailed),
		DeploymentsStarted:       atomic.LoadUint64(&m.deploymentsStarted),
		DeploymentsFailed:        atomic.LoadUint64(&m.deploymentsFailed),
		QARunsTotal:              atomic.LoadUint64(&m.qaRunCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
