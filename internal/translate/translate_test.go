package translate

import (
	"context"
	"strings"
	"testing"
)

func TestForConfigPrefersOpenAI(t *testing.T) {
	p, err := ForConfig(context.Background(), "sk-test", "gm-test")
	if err != nil {
		t.Fatalf("could not create provider: %v", err)
	}
	if p == nil {
		t.Fatal("expected a provider, got nil")
	}
	if p.Name() != "openai" {
		t.Errorf("expected openai provider, got %q", p.Name())
	}
}

func TestForConfigNoKeys(t *testing.T) {
	p, err := ForConfig(context.Background(), "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != nil {
		t.Errorf("expected nil provider, got %q", p.Name())
	}
}

func TestPromptEmbedded(t *testing.T) {
	if !strings.Contains(clipTranslatePrompt, "CLIP") {
		t.Error("translation prompt should mention CLIP")
	}
}
