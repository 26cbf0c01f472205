package policy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lumen-labs/lumen-gateway/internal/auth"
	"github.com/lumen-labs/lumen-gateway/internal/config"
	"github.com/lumen-labs/lumen-gateway/internal/types"
	"github.com/open-policy-agent/opa/rego"
)

// Input is the data sent to OPA for an authorization decision.
type Input struct {
	Principal PrincipalInput `json:"principal"`
	Request   RequestInput   `json:"request"`
	Time      TimeInput      `json:"time"`
}

type PrincipalInput struct {
	Subject string   `json:"subject"`
	Issuer  string   `json:"issuer"`
	Scopes  []string `json:"scopes"`
}

type RequestInput struct {
	Class string `json:"class"`
	Model string `json:"model"`
}

type TimeInput struct {
	Hour int    `json:"hour"`
	Day  string `json:"day"`
}

// DeniedError reports a policy denial with the rule's reason.
type DeniedError struct {
	Reason string
}

func (e *DeniedError) Error() string {
	return "denied by policy: " + e.Reason
}

// Evaluator answers authorization queries against compiled Rego policies.
type Evaluator struct {
	mu       sync.RWMutex
	prepared *rego.PreparedEvalQuery
	cfg      func() config.PolicyConfig
}

// NewEvaluator creates a policy evaluator. Call Load() to compile policies.
func NewEvaluator(cfg func() config.PolicyConfig) *Evaluator {
	return &Evaluator{cfg: cfg}
}

func (e *Evaluator) Enabled() bool { return e.cfg().Enabled }

// Load compiles Rego modules from the bundle path.
func (e *Evaluator) Load() error {
	cfg := e.cfg()
	modules, err := LoadRegoFiles(cfg.BundlePath)
	if err != nil {
		return fmt.Errorf("load rego files: %w", err)
	}
	if len(modules) == 0 {
		slog.Warn("no rego files found", "path", cfg.BundlePath)
		return nil
	}
	if err := e.LoadFromModules(modules); err != nil {
		return err
	}
	slog.Info("authorization policies loaded", "modules", len(modules))
	return nil
}

// LoadFromModules compiles policies from provided module sources (useful for testing).
func (e *Evaluator) LoadFromModules(modules map[string]string) error {
	r := rego.New(
		rego.Query("[data.lumen.authz.allow, data.lumen.authz.reason]"),
		func() func(*rego.Rego) {
			mods := make([]func(*rego.Rego), 0, len(modules))
			for name, src := range modules {
				mods = append(mods, rego.Module(name, src))
			}
			return func(r *rego.Rego) {
				for _, m := range mods {
					m(r)
				}
			}
		}(),
	)

	prepared, err := r.PrepareForEval(context.Background())
	if err != nil {
		return fmt.Errorf("prepare rego: %w", err)
	}

	e.mu.Lock()
	e.prepared = &prepared
	e.mu.Unlock()
	return nil
}

// Evaluate runs the policy against the given input.
func (e *Evaluator) Evaluate(ctx context.Context, input Input) (bool, string, error) {
	e.mu.RLock()
	prepared := e.prepared
	e.mu.RUnlock()

	if prepared == nil {
		// No policies loaded, fail closed
		return false, "no policies loaded", nil
	}

	cfg := e.cfg()
	timeout := cfg.EvaluationTimeout
	if timeout == 0 {
		timeout = 100 * time.Millisecond
	}

	evalCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results, err := prepared.Eval(evalCtx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Sprintf("policy evaluation error: %v", err), err
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return false, "no policy result", nil
	}

	// Result is [allow, reason]
	arr, ok := results[0].Expressions[0].Value.([]interface{})
	if !ok || len(arr) < 2 {
		return false, "unexpected policy result format", nil
	}

	allowed, _ := arr[0].(bool)
	reason, _ := arr[1].(string)

	return allowed, reason, nil
}

// Authorize decides whether the principal may run a request of the given
// class against the given model. A nil return means allowed. When the
// evaluator is disabled every request is allowed.
func (e *Evaluator) Authorize(ctx context.Context, principal *auth.Principal, class types.RequestClass, model string) error {
	if e == nil || !e.Enabled() {
		return nil
	}

	now := time.Now().UTC()
	input := Input{
		Principal: PrincipalInput{
			Subject: principal.Subject,
			Issuer:  string(principal.Issuer),
			Scopes:  principal.Scopes,
		},
		Request: RequestInput{
			Class: string(class),
			Model: model,
		},
		Time: TimeInput{
			Hour: now.Hour(),
			Day:  now.Weekday().String(),
		},
	}

	allowed, reason, err := e.Evaluate(ctx, input)
	if err != nil {
		slog.Error("policy evaluation failed", "subject", principal.Subject, "error", err)
		// Fail closed
		return &DeniedError{Reason: "policy evaluation failed"}
	}
	if !allowed {
		return &DeniedError{Reason: reason}
	}
	return nil
}
