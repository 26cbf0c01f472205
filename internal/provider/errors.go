package provider

import "fmt"

// ErrorKind classifies normalized upstream failures. The orchestrator
// never branches on provider-specific shapes, only on these kinds.
type ErrorKind string

const (
	KindTimeout          ErrorKind = "timeout"
	KindRateLimited      ErrorKind = "rate_limited"
	KindProviderRejected ErrorKind = "provider_rejected"
	KindMalformed        ErrorKind = "malformed"
	KindUnavailable      ErrorKind = "unavailable"
)

// UpstreamError is the normalized provider failure. Retryable errors
// (timeouts, 5xx-equivalent, rate limits) are retried inside the
// gateway client; non-retryable ones surface immediately.
type UpstreamError struct {
	Kind      ErrorKind
	Retryable bool
	Status    int
	Message   string
	Err       error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("upstream %s: %s", e.Kind, e.Message)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func newUpstreamError(kind ErrorKind, retryable bool, status int, message string, err error) *UpstreamError {
	return &UpstreamError{Kind: kind, Retryable: retryable, Status: status, Message: message, Err: err}
}

// AsUpstreamError extracts an UpstreamError, or wraps an arbitrary
// error as a non-retryable rejection.
func AsUpstreamError(err error) *UpstreamError {
	if ue, ok := err.(*UpstreamError); ok {
		return ue
	}
	return newUpstreamError(KindProviderRejected, false, 0, "unclassified upstream failure", err)
}

// classifyStatus maps an HTTP status from the provider into the error
// taxonomy.
func classifyStatus(status int, body string) *UpstreamError {
	switch {
	case status == 429:
		return newUpstreamError(KindRateLimited, true, status, "provider rate limit", nil)
	case status == 401 || status == 403:
		return newUpstreamError(KindProviderRejected, false, status, "provider rejected credentials", nil)
	case status >= 500:
		return newUpstreamError(KindUnavailable, true, status, fmt.Sprintf("provider returned %d", status), nil)
	case status >= 400:
		return newUpstreamError(KindMalformed, false, status, fmt.Sprintf("provider returned %d: %s", status, truncate(body, 200)), nil)
	default:
		return newUpstreamError(KindProviderRejected, false, status, fmt.Sprintf("unexpected provider status %d", status), nil)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
