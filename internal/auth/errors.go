package auth

import "fmt"

// Kind classifies authentication failures. UpstreamAuthUnavailable is
// distinct from the rejection kinds so callers can tell "denied" apart
// from "can't check".
type Kind string

const (
	KindInvalidSignature        Kind = "invalid_signature"
	KindExpired                 Kind = "expired"
	KindMalformedToken          Kind = "malformed_token"
	KindUpstreamAuthUnavailable Kind = "upstream_auth_unavailable"
	KindDenied                  Kind = "denied"
)

// Error is a kind-tagged authentication failure. The message is for
// internal logs only; callers receive a uniform "access denied" so the
// response never leaks whether a given identity exists.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("auth %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the failure kind from an error, or KindDenied if the
// error is not an auth error.
func KindOf(err error) Kind {
	if ae, ok := err.(*Error); ok {
		return ae.Kind
	}
	return KindDenied
}
