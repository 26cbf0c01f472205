package types

// RequestClass is the caller-declared category of a generation request.
// It drives parameter defaults: completion requests use the general
// temperature, solution requests use the lower deterministic one.
type RequestClass string

const (
	ClassCompletion RequestClass = "completion"
	ClassSolution   RequestClass = "solution"
)

func ParseRequestClass(s string) (RequestClass, bool) {
	switch RequestClass(s) {
	case ClassCompletion, ClassSolution:
		return RequestClass(s), true
	default:
		return "", false
	}
}

// CacheStatus describes how the response cache participated in a request.
type CacheStatus string

const (
	CacheHit    CacheStatus = "hit"
	CacheMiss   CacheStatus = "miss"
	CacheBypass CacheStatus = "bypass"
)
