package translate

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const geminiModel = "gemini-2.5-flash"

// GeminiProvider translates queries with the Gemini API.
type GeminiProvider struct {
	client *genai.Client
}

// NewGeminiProvider creates a translation provider backed by Gemini.
func NewGeminiProvider(ctx context.Context, apiKey string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiProvider{client: client}, nil
}

func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Translate rewrites text for CLIP retrieval. On failure, returns the
// original text and the error.
func (p *GeminiProvider) Translate(ctx context.Context, text string) (*Result, error) {
	contents := []*genai.Content{
		{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{{Text: text}},
		},
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: clipTranslatePrompt}},
		},
	}

	result, err := p.client.Models.GenerateContent(ctx, geminiModel, contents, config)
	if err != nil {
		return &Result{Text: text}, err
	}

	out := &Result{Text: text}
	if result.UsageMetadata != nil {
		out.InputTokens = int64(result.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int64(result.UsageMetadata.CandidatesTokenCount)
	}

	translated := strings.TrimSpace(result.Text())
	if translated != "" {
		out.Text = translated
	}
	return out, nil
}

// ForConfig picks a translation provider from the available API keys,
// preferring OpenAI. Returns nil when none is configured; callers then use
// raw query text.
func ForConfig(ctx context.Context, openAIToken, geminiAPIKey string) (Provider, error) {
	switch {
	case openAIToken != "":
		return NewOpenAIProvider(openAIToken), nil
	case geminiAPIKey != "":
		return NewGeminiProvider(ctx, geminiAPIKey)
	default:
		return nil, nil
	}
}
