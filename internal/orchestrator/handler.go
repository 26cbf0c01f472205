package orchestrator

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/lumen-labs/lumen-gateway/internal/auth"
	"github.com/lumen-labs/lumen-gateway/internal/httputil"
	"github.com/lumen-labs/lumen-gateway/internal/params"
	"github.com/lumen-labs/lumen-gateway/internal/policy"
	"github.com/lumen-labs/lumen-gateway/internal/provider"
	"github.com/lumen-labs/lumen-gateway/internal/types"
)

// Handler exposes the orchestrator over HTTP.
type Handler struct {
	orch *Orchestrator
}

func NewHandler(orch *Orchestrator) *Handler {
	return &Handler{orch: orch}
}

// Generate handles POST /v1/generate.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")
	receivedAt := time.Now()

	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httputil.WriteAuthError(w, reqID, "Not authenticated")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteBadRequestError(w, reqID, "Failed to read request body")
		return
	}
	defer r.Body.Close()

	var req types.GenerationRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httputil.WriteBadRequestError(w, reqID, "Invalid JSON: "+err.Error())
		return
	}

	if req.Class == "" {
		req.Class = types.ClassCompletion
	}
	if _, ok := types.ParseRequestClass(string(req.Class)); !ok {
		httputil.WriteBadRequestError(w, reqID, "class must be 'completion' or 'solution'")
		return
	}
	if len(req.Messages) == 0 {
		httputil.WriteBadRequestError(w, reqID, "messages is required")
		return
	}
	for _, m := range req.Messages {
		if m.Role == "" || m.Content == "" {
			httputil.WriteBadRequestError(w, reqID, "each message needs a role and content")
			return
		}
	}

	req.RequestID = reqID
	req.Subject = principal.Subject
	req.ReceivedAt = receivedAt

	resp, err := h.orch.Handle(r.Context(), principal, &req)
	if err != nil {
		writeOrchestratorError(w, reqID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// writeOrchestratorError maps each failure kind onto its HTTP shape.
func writeOrchestratorError(w http.ResponseWriter, reqID string, err error) {
	var budgetErr *BudgetError
	if errors.As(err, &budgetErr) {
		httputil.WriteBudgetExceededError(w, reqID, budgetErr.Error())
		return
	}
	var quotaErr *QuotaError
	if errors.As(err, &quotaErr) {
		httputil.WriteRateLimitError(w, reqID, quotaErr.Error())
		return
	}
	var paramErr *params.InvalidParametersError
	if errors.As(err, &paramErr) {
		httputil.WriteInvalidParametersError(w, reqID, paramErr.Error())
		return
	}
	var deniedErr *policy.DeniedError
	if errors.As(err, &deniedErr) {
		httputil.WriteForbiddenError(w, reqID, "Request denied by policy: "+deniedErr.Reason)
		return
	}
	var upstreamErr *provider.UpstreamError
	if errors.As(err, &upstreamErr) {
		switch upstreamErr.Kind {
		case provider.KindTimeout:
			httputil.WriteUpstreamTimeoutError(w, reqID, "Upstream provider timed out")
		case provider.KindRateLimited:
			httputil.WriteUpstreamRateLimitedError(w, reqID, "Upstream provider rate limited the gateway")
		case provider.KindProviderRejected:
			httputil.WriteUpstreamRejectedError(w, reqID, "Upstream provider rejected the request")
		case provider.KindUnavailable:
			httputil.WriteServiceUnavailableError(w, reqID, "Upstream provider unavailable")
		default:
			httputil.WriteUpstreamRejectedError(w, reqID, "Upstream provider returned an unusable response")
		}
		return
	}
	httputil.WriteInternalError(w, reqID, "Internal error")
}
