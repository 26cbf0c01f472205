package types

import "time"

// GenerationRequest is the canonical internal representation of an
// incoming generation request. Immutable once constructed by the handler.
type GenerationRequest struct {
	// Identity (set by the HTTP layer)
	RequestID string `json:"request_id"`
	Subject   string `json:"subject"`

	// Request content
	Class    RequestClass `json:"class"`
	Messages []Message    `json:"messages"`

	// Optional caller overrides; only allow-listed fields are honored
	// by the parameter resolver.
	Overrides ParameterOverrides `json:"overrides"`

	// Internal tracking
	ReceivedAt      time.Time `json:"-"`
	EstimatedTokens int       `json:"-"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// ParameterOverrides carries the caller-supplied parameter fields. The
// model name is deliberately absent: callers can never escalate to a
// different model.
type ParameterOverrides struct {
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// GenerationParameters is the resolved parameter set attached to a
// request before it may reach the provider.
type GenerationParameters struct {
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}
