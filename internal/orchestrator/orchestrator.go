package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lumen-labs/lumen-gateway/internal/accounting"
	"github.com/lumen-labs/lumen-gateway/internal/auth"
	"github.com/lumen-labs/lumen-gateway/internal/cache"
	"github.com/lumen-labs/lumen-gateway/internal/config"
	"github.com/lumen-labs/lumen-gateway/internal/params"
	"github.com/lumen-labs/lumen-gateway/internal/policy"
	"github.com/lumen-labs/lumen-gateway/internal/provider"
	"github.com/lumen-labs/lumen-gateway/internal/ratelimit"
	"github.com/lumen-labs/lumen-gateway/internal/telemetry"
	"github.com/lumen-labs/lumen-gateway/internal/tokenizer"
	"github.com/lumen-labs/lumen-gateway/internal/types"
)

// BudgetError reports a request rejected before any upstream call
// because its estimated cost exceeds the configured budget.
type BudgetError struct {
	Estimated int
	MaxTokens int
	Budget    int
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("token budget exceeded: estimated %d prompt tokens + %d completion tokens > budget %d",
		e.Estimated, e.MaxTokens, e.Budget)
}

// QuotaError reports a subject over its daily token quota.
type QuotaError struct {
	Used  int64
	Limit int64
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("daily token quota exceeded: %d of %d tokens used", e.Used, e.Limit)
}

// Orchestrator drives a generation request through budget admission,
// parameter resolution, policy authorization, cache lookup, the
// provider call, and accounting. Each step must succeed before the
// next runs; the first failure aborts the request with its error kind
// preserved.
type Orchestrator struct {
	cfg       func() *config.Config
	estimator *tokenizer.Estimator
	resolver  *params.Resolver
	policy    *policy.Evaluator
	store     cache.Store
	client    *provider.Client
	tokens    *ratelimit.TokenTracker
	recorder  *accounting.Recorder
	metrics   *telemetry.Metrics
}

type Options struct {
	Config    func() *config.Config
	Estimator *tokenizer.Estimator
	Resolver  *params.Resolver
	Policy    *policy.Evaluator
	Store     cache.Store
	Client    *provider.Client
	Tokens    *ratelimit.TokenTracker
	Recorder  *accounting.Recorder
	Metrics   *telemetry.Metrics
}

func New(opts Options) *Orchestrator {
	return &Orchestrator{
		cfg:       opts.Config,
		estimator: opts.Estimator,
		resolver:  opts.Resolver,
		policy:    opts.Policy,
		store:     opts.Store,
		client:    opts.Client,
		tokens:    opts.Tokens,
		recorder:  opts.Recorder,
		metrics:   opts.Metrics,
	}
}

// Handle runs one request end to end. The caller has already
// authenticated the principal; everything after that happens here.
func (o *Orchestrator) Handle(ctx context.Context, principal *auth.Principal, req *types.GenerationRequest) (*types.GenerationResponse, error) {
	cfg := o.cfg()
	gen := cfg.Generation

	// Budget admission. The completion allowance is the caller's
	// override when one is present, otherwise the configured default,
	// so a request known to be unaffordable never reaches the provider.
	estimated := o.estimator.EstimateRequest(gen.Model, req.Messages)
	req.EstimatedTokens = estimated

	maxTokens := gen.MaxTokens
	if req.Overrides.MaxTokens != nil && *req.Overrides.MaxTokens > 0 {
		maxTokens = *req.Overrides.MaxTokens
	}
	if gen.TokenBudget > 0 && estimated+maxTokens > gen.TokenBudget {
		return nil, &BudgetError{Estimated: estimated, MaxTokens: maxTokens, Budget: gen.TokenBudget}
	}

	// Parameter resolution. Class picks the temperature profile,
	// overrides are validated against the allow-list, model is pinned.
	resolved, err := o.resolver.Resolve(req.Class, req.Overrides)
	if err != nil {
		return nil, err
	}

	// Policy authorization over the resolved request shape.
	if err := o.policy.Authorize(ctx, principal, req.Class, resolved.Model); err != nil {
		return nil, err
	}

	// Daily token quota. Redis failures fail open; a tracked overage
	// does not.
	if o.tokens != nil && cfg.RateLimit.DailyTokenLimit > 0 {
		usage, err := o.tokens.CheckDailyTokens(ctx, principal.Subject, cfg.RateLimit.DailyTokenLimit)
		if err == nil && !usage.Allowed {
			return nil, &QuotaError{Used: usage.Used, Limit: usage.Limit}
		}
	}

	fingerprint := cache.Fingerprint(req.Messages, resolved)

	// Cache lookup. Above the temperature threshold generation is
	// non-deterministic, so the cache is bypassed in both directions.
	cacheStatus := types.CacheBypass
	useCache := o.store != nil && cfg.Cache.Enabled &&
		resolved.Temperature <= cfg.Cache.TemperatureThreshold
	if useCache {
		if entry, ok := o.store.Get(ctx, fingerprint); ok {
			o.recordCacheEvent("hit")
			resp := o.respond(req, entry.Model, entry.Completion, entry.Usage, types.CacheHit)
			o.account(principal, req, resolved, resp, nil)
			return resp, nil
		}
		cacheStatus = types.CacheMiss
		o.recordCacheEvent("miss")
	} else if o.store != nil && cfg.Cache.Enabled {
		o.recordCacheEvent("bypass")
	}

	// Provider call. The call runs on a detached context so a client
	// disconnect after dispatch does not waste the completed result:
	// the response still lands in the cache for the retry that follows.
	callCtx, cancel := detach(cfg.Provider.Timeout)
	defer cancel()

	result, err := o.client.Call(callCtx, principal, req.Messages, resolved)
	if err != nil {
		o.account(principal, req, resolved, nil, err)
		return nil, err
	}

	if useCache {
		o.store.Put(callCtx, &cache.Entry{
			Fingerprint: fingerprint,
			Completion:  result.Completion,
			Model:       result.Model,
			Usage:       result.Usage,
			CreatedAt:   time.Now().UTC(),
		})
		o.recordCacheEvent("store")
	}

	if o.tokens != nil && result.Usage.TotalTokens > 0 {
		if err := o.tokens.RecordTokens(callCtx, principal.Subject, int64(result.Usage.TotalTokens)); err != nil {
			slog.Warn("daily token tracking failed", "subject", principal.Subject, "error", err)
		}
	}

	resp := o.respond(req, result.Model, result.Completion, result.Usage, cacheStatus)
	o.account(principal, req, resolved, resp, nil)
	return resp, nil
}

func (o *Orchestrator) respond(req *types.GenerationRequest, model, completion string, usage types.Usage, status types.CacheStatus) *types.GenerationResponse {
	return &types.GenerationResponse{
		RequestID:   req.RequestID,
		Model:       model,
		Completion:  completion,
		Usage:       usage,
		CacheStatus: status,
	}
}

func (o *Orchestrator) account(principal *auth.Principal, req *types.GenerationRequest, resolved types.GenerationParameters, resp *types.GenerationResponse, callErr error) {
	duration := time.Since(req.ReceivedAt)

	rec := accounting.UsageRecord{
		RequestID:  req.RequestID,
		Subject:    principal.Subject,
		Issuer:     string(principal.Issuer),
		Class:      req.Class,
		Model:      resolved.Model,
		DurationMs: duration.Milliseconds(),
	}
	status := "error"
	cacheStatus := ""
	if resp != nil {
		rec.PromptTokens = resp.Usage.PromptTokens
		rec.CompletionTokens = resp.Usage.CompletionTokens
		rec.CacheStatus = resp.CacheStatus
		status = "ok"
		cacheStatus = string(resp.CacheStatus)
	}
	o.recorder.Record(rec)

	if o.metrics != nil {
		o.metrics.RecordRequest(telemetry.RequestLabels{
			Class:            string(req.Class),
			Status:           status,
			CacheStatus:      cacheStatus,
			DurationMs:       float64(duration.Milliseconds()),
			PromptTokens:     rec.PromptTokens,
			CompletionTokens: rec.CompletionTokens,
		})
	}

	if callErr != nil {
		slog.Error("request failed",
			"request_id", req.RequestID,
			"subject", principal.Subject,
			"class", string(req.Class),
			"error", callErr)
		return
	}
	slog.Info("request completed",
		"request_id", req.RequestID,
		"subject", principal.Subject,
		"class", string(req.Class),
		"model", rec.Model,
		"prompt_tokens", rec.PromptTokens,
		"completion_tokens", rec.CompletionTokens,
		"cache_status", cacheStatus,
		"duration_ms", rec.DurationMs)
}

func (o *Orchestrator) recordCacheEvent(event string) {
	if o.metrics != nil {
		o.metrics.RecordCacheEvent(event)
	}
}

// detach returns a context that survives cancellation of the request
// context but still carries an overall deadline, so an abandoned
// request cannot pin the provider client forever.
func detach(callTimeout time.Duration) (context.Context, context.CancelFunc) {
	if callTimeout <= 0 {
		callTimeout = 60 * time.Second
	}
	// Allow for retries on top of the single-call timeout.
	return context.WithTimeout(context.Background(), 3*callTimeout)
}
