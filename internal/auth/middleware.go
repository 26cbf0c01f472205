package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/lumen-labs/lumen-gateway/internal/httputil"
	"github.com/lumen-labs/lumen-gateway/internal/telemetry"
)

const deniedMessage = "Access denied"

// Middleware returns a chi middleware that authenticates requests via
// Bearer credential and enriches the context with the Principal.
// Rejections use a uniform external message; internal logs carry the
// real cause.
func Middleware(verifier Verifier, metrics *telemetry.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := w.Header().Get("X-Request-ID")

			credential := ""
			if authHeader := r.Header.Get("Authorization"); authHeader != "" {
				token := strings.TrimPrefix(authHeader, "Bearer ")
				if token == authHeader {
					httputil.WriteAuthError(w, reqID, "Invalid Authorization format. Use: Authorization: Bearer <credential>")
					return
				}
				credential = token
			}

			principal, err := verifier.Verify(r.Context(), credential)
			if err != nil {
				kind := KindOf(err)
				slog.Warn("authentication failed",
					"request_id", reqID,
					"kind", string(kind),
					"error", err,
					"credential_digest", safeDigest(credential),
				)
				if metrics != nil {
					metrics.RecordAuthFailure(string(kind))
				}
				if kind == KindUpstreamAuthUnavailable {
					httputil.WriteAuthUnavailableError(w, reqID, "Authentication service unavailable")
					return
				}
				httputil.WriteAuthError(w, reqID, deniedMessage)
				return
			}

			ctx := ContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// safeDigest returns a short credential digest for logs, never the raw
// credential.
func safeDigest(credential string) string {
	if credential == "" {
		return ""
	}
	return CredentialDigest(credential)[:12]
}
