// Package tokenizer provides pre-flight token estimation for budget
// admission and cost accounting. It uses a character-based heuristic
// (~4 chars per token for English with GPT-family tokenizers), which is
// sufficient for admission control; usage figures returned by the
// provider remain authoritative for accounting.
package tokenizer

import (
	"strings"

	"github.com/lumen-labs/lumen-gateway/internal/types"
)

// Estimator estimates token counts for prompts under a model's
// tokenization scheme. Pure: same inputs always give the same count.
type Estimator struct{}

func NewEstimator() *Estimator {
	return &Estimator{}
}

// EstimateRequest estimates the total prompt token count for a message
// list, accounting for per-message formatting overhead.
func (e *Estimator) EstimateRequest(model string, messages []types.Message) int {
	total := 0
	overhead := messageOverhead(model)
	for _, m := range messages {
		total += overhead
		total += estimateTokens(model, m.Role)
		total += estimateTokens(model, m.Content)
		if m.Name != "" {
			total += estimateTokens(model, m.Name) + 1 // name costs 1 extra token
		}
	}
	total += 3 // every reply is primed with <|start|>assistant<|message|>
	if total < 1 {
		return 1
	}
	return total
}

// EstimateText estimates tokens for a plain text string.
func (e *Estimator) EstimateText(model, text string) int {
	n := estimateTokens(model, text)
	if n < 1 {
		return 1
	}
	return n
}

// modelRatio is the per-model tokenization table, longest prefix first.
// Models not listed fall back to the GPT-family ratio.
var modelRatio = []struct {
	prefix string
	chars  int
}{
	{"gpt-4o-mini", 4},
	{"gpt-4o", 4},
	{"gpt-4", 4},
	{"gpt-3.5", 4},
	{"claude", 4},
}

const defaultCharsPerToken = 4

func estimateTokens(model, s string) int {
	if len(s) == 0 {
		return 0
	}
	ratio := defaultCharsPerToken
	for _, mr := range modelRatio {
		if strings.HasPrefix(model, mr.prefix) {
			ratio = mr.chars
			break
		}
	}
	return (len(s) + ratio - 1) / ratio
}

// messageOverhead returns per-message token overhead. GPT-4o and newer
// use 4 tokens per message; older models use 3.
func messageOverhead(model string) int {
	if strings.HasPrefix(model, "gpt-3.5") || strings.HasPrefix(model, "gpt-4-") || model == "gpt-4" {
		return 3
	}
	return 4
}
