package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()

	if m.RequestTotal == nil {
		t.Error("RequestTotal should not be nil")
	}
	if m.RequestDurationMs == nil {
		t.Error("RequestDurationMs should not be nil")
	}
	if m.TokensTotal == nil {
		t.Error("TokensTotal should not be nil")
	}
	if m.UpstreamAttemptsTotal == nil {
		t.Error("UpstreamAttemptsTotal should not be nil")
	}
	if m.AuthFailureTotal == nil {
		t.Error("AuthFailureTotal should not be nil")
	}
	if m.CacheEventTotal == nil {
		t.Error("CacheEventTotal should not be nil")
	}
	if m.RateLimitHitTotal == nil {
		t.Error("RateLimitHitTotal should not be nil")
	}
}

func TestRecordRequest(t *testing.T) {
	// Use a fresh registry to avoid polluting the default one
	reg := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_lumen_request_total",
		Help: "Test counter",
	}, []string{"class", "status", "cache_status"})

	tokensTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_lumen_tokens_total",
		Help: "Test counter",
	}, []string{"class", "direction"})

	durationMs := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "test_lumen_request_duration_ms",
		Help:    "Test histogram",
		Buckets: []float64{100, 500, 1000},
	}, []string{"class"})

	attempts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_lumen_upstream_attempts_total",
		Help: "Test counter",
	})

	reg.MustRegister(requestTotal, tokensTotal, durationMs, attempts)

	m := &Metrics{
		RequestTotal:          requestTotal,
		RequestDurationMs:     durationMs,
		TokensTotal:           tokensTotal,
		UpstreamAttemptsTotal: attempts,
	}

	m.RecordRequest(RequestLabels{
		Class:            "completion",
		Status:           "200",
		CacheStatus:      "miss",
		DurationMs:       321,
		PromptTokens:     120,
		CompletionTokens: 48,
	})
	m.RecordUpstreamAttempt()
	m.RecordUpstreamAttempt()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}

	byName := map[string]*dto.MetricFamily{}
	for _, f := range families {
		byName[f.GetName()] = f
	}

	reqFamily, ok := byName["test_lumen_request_total"]
	if !ok {
		t.Fatal("request counter not gathered")
	}
	if got := reqFamily.Metric[0].Counter.GetValue(); got != 1 {
		t.Errorf("expected request count 1, got %g", got)
	}

	tokFamily, ok := byName["test_lumen_tokens_total"]
	if !ok {
		t.Fatal("tokens counter not gathered")
	}
	var total float64
	for _, metric := range tokFamily.Metric {
		total += metric.Counter.GetValue()
	}
	if total != 168 {
		t.Errorf("expected 168 total tokens recorded, got %g", total)
	}

	attemptFamily, ok := byName["test_lumen_upstream_attempts_total"]
	if !ok {
		t.Fatal("attempts counter not gathered")
	}
	if got := attemptFamily.Metric[0].Counter.GetValue(); got != 2 {
		t.Errorf("expected 2 attempts recorded, got %g", got)
	}
}
