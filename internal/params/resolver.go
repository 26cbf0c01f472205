// Package params resolves generation parameters for a request class
// from process-wide defaults plus allow-listed caller overrides.
package params

import (
	"fmt"

	"github.com/lumen-labs/lumen-gateway/internal/config"
	"github.com/lumen-labs/lumen-gateway/internal/types"
)

// InvalidParametersError reports an out-of-range or disallowed override.
type InvalidParametersError struct {
	Field   string
	Message string
}

func (e *InvalidParametersError) Error() string {
	return fmt.Sprintf("invalid parameters: %s: %s", e.Field, e.Message)
}

// Resolver derives GenerationParameters deterministically from the
// request class and the generation defaults. The model name is never
// overridable by callers.
type Resolver struct {
	cfg func() config.GenerationConfig
}

func NewResolver(cfg func() config.GenerationConfig) *Resolver {
	return &Resolver{cfg: cfg}
}

// Resolve picks defaults for the class, applies allow-listed overrides,
// and validates ranges. Solution-class requests use the solution
// temperature, which configuration guarantees is at or below the
// completion default.
func (r *Resolver) Resolve(class types.RequestClass, overrides types.ParameterOverrides) (types.GenerationParameters, error) {
	cfg := r.cfg()

	p := types.GenerationParameters{
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
	}
	switch class {
	case types.ClassSolution:
		p.Temperature = cfg.SolutionTemperature
	case types.ClassCompletion:
		p.Temperature = cfg.Temperature
	default:
		return types.GenerationParameters{}, &InvalidParametersError{
			Field:   "class",
			Message: fmt.Sprintf("unknown request class %q", class),
		}
	}

	if overrides.MaxTokens != nil {
		mt := *overrides.MaxTokens
		if mt <= 0 {
			return types.GenerationParameters{}, &InvalidParametersError{
				Field:   "max_tokens",
				Message: fmt.Sprintf("must be positive, got %d", mt),
			}
		}
		if mt > cfg.MaxTokensCeiling {
			return types.GenerationParameters{}, &InvalidParametersError{
				Field:   "max_tokens",
				Message: fmt.Sprintf("exceeds ceiling %d", cfg.MaxTokensCeiling),
			}
		}
		p.MaxTokens = mt
	}

	if overrides.Temperature != nil {
		temp := *overrides.Temperature
		if temp < 0 || temp > 2 {
			return types.GenerationParameters{}, &InvalidParametersError{
				Field:   "temperature",
				Message: fmt.Sprintf("must be within [0,2], got %g", temp),
			}
		}
		p.Temperature = temp
	}

	return p, nil
}
