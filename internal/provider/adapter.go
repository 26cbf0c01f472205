package provider

import (
	"context"
	"net/http"

	"github.com/lumen-labs/lumen-gateway/internal/types"
)

// Result is the normalized successful outcome of an upstream call.
// Usage figures come from the provider and are authoritative over the
// pre-flight estimate.
type Result struct {
	Completion string
	Model      string
	Usage      types.Usage
}

// Adapter transforms between the gateway's canonical request shape and
// a provider's wire protocol. Provider-specific error shapes never
// escape it: failures come back as *UpstreamError.
type Adapter interface {
	Name() string
	BuildRequest(ctx context.Context, messages []types.Message, params types.GenerationParameters) (*http.Request, error)
	ParseResponse(resp *http.Response) (*Result, error)
	// Send issues an HTTP request using the adapter's configured client.
	Send(req *http.Request) (*http.Response, error)
}
