package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lumen-labs/lumen-gateway/internal/httputil"
)

type fakeVerifier struct {
	principal *Principal
	err       error
	gotCred   string
}

func (f *fakeVerifier) Verify(_ context.Context, credential string) (*Principal, error) {
	f.gotCred = credential
	if f.err != nil {
		return nil, f.err
	}
	return f.principal, nil
}

func TestMiddleware_Success(t *testing.T) {
	fv := &fakeVerifier{principal: &Principal{Subject: "user-1", Issuer: IssuerLocal}}

	var gotPrincipal *Principal
	handler := Middleware(fv, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPrincipal, _ = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/generate", nil)
	req.Header.Set("Authorization", "Bearer some-credential")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if fv.gotCred != "some-credential" {
		t.Errorf("expected credential forwarded, got %q", fv.gotCred)
	}
	if gotPrincipal == nil || gotPrincipal.Subject != "user-1" {
		t.Errorf("expected principal in context, got %+v", gotPrincipal)
	}
}

func TestMiddleware_Denied_UniformMessage(t *testing.T) {
	// Internal cause is an expired token; external message must not say so.
	fv := &fakeVerifier{err: newError(KindExpired, "token expired", nil)}

	handler := Middleware(fv, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("next handler should not run")
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/generate", nil)
	req.Header.Set("Authorization", "Bearer stale-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	var resp httputil.APIError
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Error.Message != deniedMessage {
		t.Errorf("expected uniform denied message, got %q", resp.Error.Message)
	}
}

func TestMiddleware_UpstreamUnavailable(t *testing.T) {
	fv := &fakeVerifier{err: newError(KindUpstreamAuthUnavailable, "cas unreachable", nil)}

	handler := Middleware(fv, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodPost, "/v1/generate", nil)
	req.Header.Set("Authorization", "Bearer ST-123")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for unavailable auth upstream, got %d", w.Code)
	}
}

func TestMiddleware_BadAuthorizationFormat(t *testing.T) {
	fv := &fakeVerifier{principal: Anonymous(nil)}
	handler := Middleware(fv, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodPost, "/v1/generate", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for non-bearer auth, got %d", w.Code)
	}
}
