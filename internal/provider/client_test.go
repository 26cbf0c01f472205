package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lumen-labs/lumen-gateway/internal/auth"
	"github.com/lumen-labs/lumen-gateway/internal/config"
	"github.com/lumen-labs/lumen-gateway/internal/types"
)

func testProviderConfig(baseURL string) config.ProviderConfig {
	return config.ProviderConfig{
		BaseURL:      baseURL,
		APIKey:       "sk-test",
		Timeout:      2 * time.Second,
		MaxAttempts:  3,
		RetryBackoff: time.Millisecond,
	}
}

func testParams() types.GenerationParameters {
	return types.GenerationParameters{Model: "gpt-4o-mini", MaxTokens: 256, Temperature: 0.3}
}

func testPrincipal() *auth.Principal {
	return &auth.Principal{Subject: "user-1", Issuer: auth.IssuerLocal}
}

func successBody(completion string) []byte {
	data, _ := json.Marshal(map[string]interface{}{
		"model": "gpt-4o-mini",
		"choices": []map[string]interface{}{
			{"index": 0, "message": map[string]string{"role": "assistant", "content": completion}, "finish_reason": "stop"},
		},
		"usage": map[string]int{"prompt_tokens": 12, "completion_tokens": 7, "total_tokens": 19},
	})
	return data
}

func newTestClient(baseURL string, onAttempt func()) *Client {
	cfg := func() config.ProviderConfig { return testProviderConfig(baseURL) }
	adapter := NewOpenAIAdapter(cfg)
	return NewClient(adapter, cfg, nil, onAttempt)
}

func TestClient_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", got)
		}
		w.Write(successBody("hello there"))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, nil)
	result, err := c.Call(context.Background(), testPrincipal(), []types.Message{{Role: "user", Content: "hi"}}, testParams())
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}

	if result.Completion != "hello there" {
		t.Errorf("expected completion 'hello there', got %q", result.Completion)
	}
	if result.Usage.TotalTokens != 19 {
		t.Errorf("expected total tokens 19, got %d", result.Usage.TotalTokens)
	}
}

func TestClient_RetriesThenSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write(successBody("third time lucky"))
	}))
	defer srv.Close()

	observed := 0
	c := newTestClient(srv.URL, func() { observed++ })
	result, err := c.Call(context.Background(), testPrincipal(), []types.Message{{Role: "user", Content: "hi"}}, testParams())
	if err != nil {
		t.Fatalf("Call failed after retries: %v", err)
	}

	if attempts != 3 {
		t.Errorf("expected exactly 3 upstream attempts, got %d", attempts)
	}
	if observed != 3 {
		t.Errorf("expected attempt hook fired 3 times, got %d", observed)
	}
	if result.Completion != "third time lucky" {
		t.Errorf("unexpected completion %q", result.Completion)
	}
}

func TestClient_ExhaustsRetries(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, nil)
	_, err := c.Call(context.Background(), testPrincipal(), []types.Message{{Role: "user", Content: "hi"}}, testParams())
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}

	ue := AsUpstreamError(err)
	if !ue.Retryable {
		t.Error("exhausted retryable failure should keep its retryable tag")
	}
	if ue.Kind != KindUnavailable {
		t.Errorf("expected kind unavailable, got %s", ue.Kind)
	}
}

func TestClient_NonRetryableSurfacesImmediately(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, nil)
	_, err := c.Call(context.Background(), testPrincipal(), []types.Message{{Role: "user", Content: "hi"}}, testParams())
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("non-retryable failure should not retry, got %d attempts", attempts)
	}

	ue := AsUpstreamError(err)
	if ue.Kind != KindProviderRejected {
		t.Errorf("expected kind provider_rejected, got %s", ue.Kind)
	}
	if ue.Retryable {
		t.Error("401 should be non-retryable")
	}
}

func TestClient_RateLimitIsRetryable(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write(successBody("ok"))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, nil)
	_, err := c.Call(context.Background(), testPrincipal(), []types.Message{{Role: "user", Content: "hi"}}, testParams())
	if err != nil {
		t.Fatalf("expected recovery after rate limit, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestClient_TimeoutClassifiedRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write(successBody("too late"))
	}))
	defer srv.Close()

	cfg := testProviderConfig(srv.URL)
	cfg.Timeout = 20 * time.Millisecond
	cfg.MaxAttempts = 2
	cfgFn := func() config.ProviderConfig { return cfg }
	c := NewClient(NewOpenAIAdapter(cfgFn), cfgFn, nil, nil)

	_, err := c.Call(context.Background(), testPrincipal(), []types.Message{{Role: "user", Content: "hi"}}, testParams())
	if err == nil {
		t.Fatal("expected timeout error")
	}
	ue := AsUpstreamError(err)
	if ue.Kind != KindTimeout {
		t.Errorf("expected kind timeout, got %s", ue.Kind)
	}
	if !ue.Retryable {
		t.Error("timeout should be retryable")
	}
}

func TestClassifyTransportError_CanceledNotRetryable(t *testing.T) {
	ue := classifyTransportError(fmt.Errorf("round trip: %w", context.Canceled))
	if ue.Kind != KindUnavailable {
		t.Errorf("expected kind unavailable, got %s", ue.Kind)
	}
	if ue.Retryable {
		t.Error("a canceled call must not be retried")
	}
}

func TestClient_CircuitOpenFailsFast(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := func() config.ProviderConfig { return testProviderConfig(srv.URL) }
	breaker := NewCircuitBreaker(1, time.Hour)
	breaker.RecordFailure() // trip it

	c := NewClient(NewOpenAIAdapter(cfg), cfg, breaker, nil)
	_, err := c.Call(context.Background(), testPrincipal(), []types.Message{{Role: "user", Content: "hi"}}, testParams())
	if err == nil {
		t.Fatal("expected circuit-open error")
	}
	if attempts != 0 {
		t.Errorf("open circuit should block upstream calls, got %d attempts", attempts)
	}
}

func TestClient_RequiresPrincipalAndParams(t *testing.T) {
	c := newTestClient("http://unused", nil)

	if _, err := c.Call(context.Background(), nil, nil, testParams()); err == nil {
		t.Error("expected error for missing principal")
	}
	if _, err := c.Call(context.Background(), testPrincipal(), nil, types.GenerationParameters{}); err == nil {
		t.Error("expected error for unresolved parameters")
	}
}
