package types

type GenerationResponse struct {
	RequestID   string      `json:"request_id"`
	Model       string      `json:"model"`
	Completion  string      `json:"completion"`
	Usage       Usage       `json:"usage"`
	CacheStatus CacheStatus `json:"cache_status"`
}

// Usage holds token counts. Figures returned by the provider are
// authoritative over the pre-flight estimate.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
