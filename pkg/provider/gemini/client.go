package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/veltrix/chatgate/pkg/provider"
)

const defaultModel = "gemini-2.0-flash"

type client struct {
	genaiClient *genai.Client
	model       string
}

func NewClient(ctx context.Context, apiKey, model string) (provider.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = defaultModel
	}

	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &client{genaiClient: genaiClient, model: model}, nil
}

func (c *client) Ask(
	ctx context.Context,
	prompt string,
	history []provider.Message,
) (*provider.Completion, error) {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, message := range history {
		role := "user"
		if message.Role == "assistant" {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: message.Content}},
		})
	}
	contents = append(contents, &genai.Content{
		Role:  "user",
		Parts: []*genai.Part{{Text: prompt}},
	})

	result, err := c.genaiClient.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	responseText := strings.TrimSpace(result.Text())
	if responseText == "" {
		return nil, fmt.Errorf("no completions returned")
	}

	completion := &provider.Completion{
		ID:       fmt.Sprintf("gemini-%d", time.Now().UnixNano()),
		Model:    c.model,
		Response: responseText,
	}
	if result.UsageMetadata != nil {
		completion.Usage = provider.Usage{
			PromptTokens:     int(result.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(result.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(result.UsageMetadata.TotalTokenCount),
		}
	}
	return completion, nil
}
