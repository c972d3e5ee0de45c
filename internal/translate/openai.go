package translate

import (
	"context"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIProvider translates queries with a small chat model.
type OpenAIProvider struct {
	client openai.Client
}

// NewOpenAIProvider creates a translation provider backed by the OpenAI API.
func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	return &OpenAIProvider{client: openai.NewClient(option.WithAPIKey(apiKey))}
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Translate rewrites text for CLIP retrieval. On failure, returns the
// original text and the error.
func (p *OpenAIProvider) Translate(ctx context.Context, text string) (*Result, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModelGPT4_1Mini,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(clipTranslatePrompt),
			openai.UserMessage(text),
		},
		MaxTokens: openai.Int(100),
	})
	if err != nil {
		return &Result{Text: text}, err
	}

	result := &Result{
		Text:         text,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	if len(resp.Choices) == 0 {
		return result, nil
	}

	translated := strings.TrimSpace(resp.Choices[0].Message.Content)
	if translated != "" {
		result.Text = translated
	}
	return result, nil
}
