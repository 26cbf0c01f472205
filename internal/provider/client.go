package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"time"

	"github.com/lumen-labs/lumen-gateway/internal/auth"
	"github.com/lumen-labs/lumen-gateway/internal/config"
	"github.com/lumen-labs/lumen-gateway/internal/types"
)

// Client is the model gateway: it issues upstream calls with per-call
// timeout, bounded retries with exponential backoff on retryable
// failures, and a circuit breaker for hard-down providers.
type Client struct {
	adapter   Adapter
	cfg       func() config.ProviderConfig
	breaker   *CircuitBreaker
	onAttempt func()
}

// NewClient creates a gateway client. onAttempt fires once per upstream
// attempt (nil disables).
func NewClient(adapter Adapter, cfg func() config.ProviderConfig, breaker *CircuitBreaker, onAttempt func()) *Client {
	return &Client{
		adapter:   adapter,
		cfg:       cfg,
		breaker:   breaker,
		onAttempt: onAttempt,
	}
}

// Call dispatches a generation to the upstream provider. The principal
// and resolved parameters are mandatory inputs: there is no code path
// that reaches the provider without them.
func (c *Client) Call(ctx context.Context, principal *auth.Principal, messages []types.Message, params types.GenerationParameters) (*Result, error) {
	if principal == nil {
		return nil, fmt.Errorf("provider call without principal")
	}
	if params.Model == "" {
		return nil, fmt.Errorf("provider call without resolved parameters")
	}

	cfg := c.cfg()
	var lastErr *UpstreamError

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if c.breaker != nil && !c.breaker.Allow() {
			return nil, newUpstreamError(KindUnavailable, false, 0, "upstream circuit open", nil)
		}

		if c.onAttempt != nil {
			c.onAttempt()
		}

		result, err := c.attempt(ctx, cfg, messages, params)
		if err == nil {
			if c.breaker != nil {
				c.breaker.RecordSuccess()
			}
			return result, nil
		}

		ue := AsUpstreamError(err)
		if c.breaker != nil {
			c.breaker.RecordFailure()
		}
		if !ue.Retryable {
			return nil, ue
		}
		lastErr = ue

		slog.Warn("upstream attempt failed",
			"attempt", attempt,
			"max_attempts", cfg.MaxAttempts,
			"kind", string(ue.Kind),
			"subject", principal.Subject,
			"model", params.Model,
			"error", ue,
		)

		if attempt < cfg.MaxAttempts {
			if err := sleepBackoff(ctx, cfg.RetryBackoff, attempt); err != nil {
				return nil, lastErr
			}
		}
	}

	return nil, lastErr
}

// attempt makes a single upstream call bounded by the per-call timeout.
func (c *Client) attempt(ctx context.Context, cfg config.ProviderConfig, messages []types.Message, params types.GenerationParameters) (*Result, error) {
	callCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	req, err := c.adapter.BuildRequest(callCtx, messages, params)
	if err != nil {
		return nil, newUpstreamError(KindMalformed, false, 0, "build provider request", err)
	}

	resp, err := c.adapter.Send(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}

	return c.adapter.ParseResponse(resp)
}

// classifyTransportError normalizes network-level failures. Timeouts
// are retryable; so are connection failures.
func classifyTransportError(err error) *UpstreamError {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return newUpstreamError(KindTimeout, true, 0, "provider call timed out", err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return newUpstreamError(KindTimeout, true, 0, "provider call timed out", err)
	case errors.Is(err, context.Canceled):
		return newUpstreamError(KindUnavailable, false, 0, "provider call canceled", err)
	default:
		return newUpstreamError(KindUnavailable, true, 0, "provider unreachable", err)
	}
}

// sleepBackoff waits base * 2^(attempt-1) plus up to 50% jitter, or
// returns early if the context is done.
func sleepBackoff(ctx context.Context, base time.Duration, attempt int) error {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	backoff := base << (attempt - 1)
	backoff += time.Duration(rand.Int63n(int64(backoff)/2 + 1))

	timer := time.NewTimer(backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
