package auth

import "github.com/lumen-labs/lumen-gateway/internal/config"

// StaticVerifier validates the single configured API token. The token
// grants the default scope set under a fixed service subject.
type StaticVerifier struct {
	cfg func() config.AuthConfig
}

func NewStaticVerifier(cfg func() config.AuthConfig) *StaticVerifier {
	return &StaticVerifier{cfg: cfg}
}

func (v *StaticVerifier) Verify(credential string) (*Principal, error) {
	cfg := v.cfg()
	if cfg.APIToken == "" {
		return nil, newError(KindDenied, "static api token not configured", nil)
	}
	if !constantTimeEqual(credential, cfg.APIToken) {
		return nil, newError(KindDenied, "static token mismatch", nil)
	}
	return &Principal{
		Subject: "api-token",
		Issuer:  IssuerStatic,
		Scopes:  cfg.DefaultScopes,
	}, nil
}
