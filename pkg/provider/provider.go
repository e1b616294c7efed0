package provider

import "context"

type Message struct {
	Role    string
	Content string
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type Completion struct {
	ID       string `json:"id"`
	Model    string `json:"model"`
	Response string `json:"response"`
	Usage    Usage  `json:"usage"`
}

// Client is the generative-language upstream.
type Client interface {
	Ask(ctx context.Context, prompt string, history []Message) (*Completion, error)
}

// EstimateTokens is the admission-time cost estimate for a prompt. The
// budget is charged with this value and refunded with the same value if
// the upstream call fails.
func EstimateTokens(prompt string) int {
	return (len(prompt) + 3) / 4
}
