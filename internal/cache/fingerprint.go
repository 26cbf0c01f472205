// Package cache serves and populates completions for deterministic
// requests, keyed by a stable fingerprint of everything that affects
// the generation's output.
package cache

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/lumen-labs/lumen-gateway/internal/types"
)

// Fingerprint computes the cache key: a SHA-256 over the normalized
// prompt, the model name, and the generation parameters that affect
// output determinism. Whitespace-equivalent prompts produce the same
// fingerprint; any parameter change produces a different one.
func Fingerprint(messages []types.Message, params types.GenerationParameters) string {
	h := sha256.New()
	fmt.Fprintf(h, "model=%s\n", params.Model)
	fmt.Fprintf(h, "max_tokens=%d\n", params.MaxTokens)
	fmt.Fprintf(h, "temperature=%g\n", params.Temperature)
	for _, m := range messages {
		fmt.Fprintf(h, "role=%s\n", m.Role)
		fmt.Fprintf(h, "content=%s\n", normalizeText(m.Content))
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// normalizeText collapses runs of whitespace to single spaces and trims
// the ends, so formatting-only differences don't defeat the cache.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
