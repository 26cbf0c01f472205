package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/lumen-labs/lumen-gateway/internal/config"
)

// Claims are the payload of a locally issued access token.
type Claims struct {
	jwt.RegisteredClaims
	Username string   `json:"username,omitempty"`
	Scopes   []string `json:"scopes,omitempty"`
}

// IssueToken mints a signed access token for a subject. Used by the
// tokengen CLI; the gateway itself only verifies.
func IssueToken(cfg config.JWTConfig, subject, username string, scopes []string) (string, error) {
	if cfg.Secret == "" {
		return "", fmt.Errorf("jwt secret not configured")
	}
	method := jwt.GetSigningMethod(cfg.Algorithm)
	if method == nil {
		return "", fmt.Errorf("unknown signing algorithm %q", cfg.Algorithm)
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.Expiry)),
		},
		Username: username,
		Scopes:   scopes,
	}

	token := jwt.NewWithClaims(method, claims)
	signed, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// TokenVerifier validates locally signed JWTs.
type TokenVerifier struct {
	cfg func() config.JWTConfig
}

func NewTokenVerifier(cfg func() config.JWTConfig) *TokenVerifier {
	return &TokenVerifier{cfg: cfg}
}

// Verify checks signature, issuer, and expiry, and resolves a Principal
// from the claims.
func (v *TokenVerifier) Verify(credential string) (*Principal, error) {
	cfg := v.cfg()
	if cfg.Secret == "" {
		return nil, newError(KindDenied, "jwt verification not configured", nil)
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(credential, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != cfg.Algorithm {
			return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		return []byte(cfg.Secret), nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, newError(KindExpired, "token expired", err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, newError(KindInvalidSignature, "signature verification failed", err)
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, newError(KindMalformedToken, "token not parseable", err)
		default:
			return nil, newError(KindDenied, "token rejected", err)
		}
	}
	if !token.Valid {
		return nil, newError(KindDenied, "token invalid", nil)
	}
	if cfg.Issuer != "" && claims.Issuer != cfg.Issuer {
		return nil, newError(KindDenied, fmt.Sprintf("unexpected issuer %q", claims.Issuer), nil)
	}
	if claims.Subject == "" {
		return nil, newError(KindMalformedToken, "missing subject claim", nil)
	}

	p := &Principal{
		Subject:  claims.Subject,
		Username: claims.Username,
		Issuer:   IssuerLocal,
		Scopes:   claims.Scopes,
	}
	if claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.Time
	}
	return p, nil
}

// CredentialDigest returns the SHA-256 hex digest of a credential.
// Cache keys and logs use the digest, never the raw credential.
func CredentialDigest(credential string) string {
	h := sha256.Sum256([]byte(credential))
	return fmt.Sprintf("%x", h)
}

// constantTimeEqual compares two strings without leaking length or
// content through timing.
func constantTimeEqual(a, b string) bool {
	ha := sha256.Sum256([]byte(a))
	hb := sha256.Sum256([]byte(b))
	return subtle.ConstantTimeCompare(ha[:], hb[:]) == 1
}

// ParseDuration parses a duration string like "365d", "30d", "24h".
func ParseDuration(s string) (time.Duration, error) {
	if len(s) == 0 {
		return 0, fmt.Errorf("empty duration")
	}
	last := s[len(s)-1]
	if last == 'd' {
		var days int
		_, err := fmt.Sscanf(s, "%dd", &days)
		if err != nil {
			return 0, fmt.Errorf("parse days: %w", err)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}
