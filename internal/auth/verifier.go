package auth

import (
	"context"
	"strings"

	"github.com/lumen-labs/lumen-gateway/internal/config"
)

// Verifier resolves a bearer credential to a Principal or rejects with
// a kind-tagged auth error.
type Verifier interface {
	Verify(ctx context.Context, credential string) (*Principal, error)
}

// MultiVerifier dispatches on credential shape across the closed set of
// variants: CAS service tickets, locally signed JWTs, and the static
// API token. Adding a scheme means adding a variant and a branch here.
type MultiVerifier struct {
	cfg      func() config.AuthConfig
	jwt      *TokenVerifier
	static   *StaticVerifier
	cas      *CASVerifier
	sessions *SessionCache
}

func NewMultiVerifier(cfg func() config.AuthConfig, sessions *SessionCache) *MultiVerifier {
	return &MultiVerifier{
		cfg:      cfg,
		jwt:      NewTokenVerifier(func() config.JWTConfig { return cfg().JWT }),
		static:   NewStaticVerifier(cfg),
		cas:      NewCASVerifier(func() config.CASConfig { return cfg().CAS }, func() []string { return cfg().DefaultScopes }),
		sessions: sessions,
	}
}

// CAS returns the underlying CAS verifier, for login URL construction.
func (m *MultiVerifier) CAS() *CASVerifier { return m.cas }

func (m *MultiVerifier) Verify(ctx context.Context, credential string) (*Principal, error) {
	cfg := m.cfg()
	if !cfg.RequireAuth {
		return Anonymous(cfg.DefaultScopes), nil
	}
	if credential == "" {
		return nil, newError(KindDenied, "missing credential", nil)
	}

	digest := CredentialDigest(credential)
	if p, ok := m.sessions.Get(ctx, digest); ok {
		return p, nil
	}

	var p *Principal
	var err error
	switch {
	case isCASTicket(credential):
		p, err = m.cas.Verify(ctx, credential)
	case isJWTShaped(credential):
		p, err = m.jwt.Verify(credential)
	default:
		p, err = m.static.Verify(credential)
	}
	if err != nil {
		return nil, err
	}

	m.sessions.Put(ctx, digest, p)
	return p, nil
}

// isCASTicket matches CAS service and proxy ticket prefixes.
func isCASTicket(credential string) bool {
	return strings.HasPrefix(credential, "ST-") || strings.HasPrefix(credential, "PT-")
}

// isJWTShaped matches the three dot-separated base64 segments of a JWS.
func isJWTShaped(credential string) bool {
	return strings.Count(credential, ".") == 2
}
