// Package translate rewrites free-text photo queries into short English
// phrases that CLIP matches well. Translation is optional glue around the
// retrieval core: when no provider is configured, or a provider fails, the
// raw query text is used as-is.
package translate

import (
	"context"
	_ "embed"
)

//go:embed prompts/clip_translate.txt
var clipTranslatePrompt string

// Result contains the translated query and token usage.
type Result struct {
	Text         string
	InputTokens  int64
	OutputTokens int64
}

// Provider rewrites a query for CLIP retrieval. On failure implementations
// return the original text alongside the error so callers can fall back.
type Provider interface {
	Name() string
	Translate(ctx context.Context, text string) (*Result, error)
}
