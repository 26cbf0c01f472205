package auth

import "time"

// Issuer identifies which credential variant resolved a principal.
type Issuer string

const (
	IssuerLocal     Issuer = "local"  // signed JWT
	IssuerStatic    Issuer = "static" // configured API token
	IssuerSSO       Issuer = "sso"    // CAS ticket exchange
	IssuerAnonymous Issuer = "anonymous"
)

// Principal is the authenticated identity resolved from a credential.
// Created on successful verification, never mutated, discarded at end
// of request (save for the verifier's own short-lived session cache).
type Principal struct {
	Subject   string    `json:"subject"`
	Username  string    `json:"username,omitempty"`
	Issuer    Issuer    `json:"issuer"`
	Scopes    []string  `json:"scopes"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// HasScope reports whether the principal was granted the named scope.
func (p *Principal) HasScope(scope string) bool {
	for _, s := range p.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Anonymous returns the synthetic principal used when authentication is
// disabled by configuration. This is an explicit operating mode, not a
// security boundary removed in code.
func Anonymous(scopes []string) *Principal {
	return &Principal{
		Subject: "anonymous",
		Issuer:  IssuerAnonymous,
		Scopes:  scopes,
	}
}
