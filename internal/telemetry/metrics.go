package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the Lumen gateway.
type Metrics struct {
	RequestTotal          *prometheus.CounterVec
	RequestDurationMs     *prometheus.HistogramVec
	TokensTotal           *prometheus.CounterVec
	UpstreamAttemptsTotal prometheus.Counter
	AuthFailureTotal      *prometheus.CounterVec
	CacheEventTotal       *prometheus.CounterVec
	RateLimitHitTotal     *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		RequestTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lumen_request_total",
			Help: "Total number of generation requests processed by the gateway.",
		}, []string{"class", "status", "cache_status"}),

		RequestDurationMs: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lumen_request_duration_ms",
			Help:    "Total request duration in milliseconds (including provider latency).",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		}, []string{"class"}),

		TokensTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lumen_tokens_total",
			Help: "Total tokens processed, as reported by the provider.",
		}, []string{"class", "direction"}),

		UpstreamAttemptsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lumen_upstream_attempts_total",
			Help: "Total upstream provider call attempts, retries included.",
		}),

		AuthFailureTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lumen_auth_failure_total",
			Help: "Total authentication failures by kind.",
		}, []string{"kind"}),

		CacheEventTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lumen_cache_event_total",
			Help: "Response cache events (hit, miss, bypass, store, error).",
		}, []string{"event"}),

		RateLimitHitTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lumen_rate_limit_hit_total",
			Help: "Total rate limit rejections.",
		}, []string{"dimension"}),
	}
}

// RequestLabels holds the label values for recording a completed request.
type RequestLabels struct {
	Class            string
	Status           string
	CacheStatus      string
	DurationMs       float64
	PromptTokens     int
	CompletionTokens int
}

// RecordRequest records metrics for a completed request.
func (m *Metrics) RecordRequest(labels RequestLabels) {
	m.RequestTotal.WithLabelValues(labels.Class, labels.Status, labels.CacheStatus).Inc()
	m.RequestDurationMs.WithLabelValues(labels.Class).Observe(labels.DurationMs)

	if labels.PromptTokens > 0 {
		m.TokensTotal.WithLabelValues(labels.Class, "prompt").Add(float64(labels.PromptTokens))
	}
	if labels.CompletionTokens > 0 {
		m.TokensTotal.WithLabelValues(labels.Class, "completion").Add(float64(labels.CompletionTokens))
	}
}

// RecordUpstreamAttempt counts a single provider call attempt.
func (m *Metrics) RecordUpstreamAttempt() {
	m.UpstreamAttemptsTotal.Inc()
}

// RecordAuthFailure counts an authentication failure by kind.
func (m *Metrics) RecordAuthFailure(kind string) {
	m.AuthFailureTotal.WithLabelValues(kind).Inc()
}

// RecordCacheEvent counts a response cache event.
func (m *Metrics) RecordCacheEvent(event string) {
	m.CacheEventTotal.WithLabelValues(event).Inc()
}

// RecordRateLimitHit counts a rate limit rejection.
func (m *Metrics) RecordRateLimitHit(dimension string) {
	m.RateLimitHitTotal.WithLabelValues(dimension).Inc()
}
