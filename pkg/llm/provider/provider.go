// Package provider constructs the llm.Client matching a model name.
package provider

import (
	"fmt"
	"os"
	"strings"

	"github.com/lifeplan-ai/lifeplan/pkg/llm"
	"github.com/lifeplan-ai/lifeplan/pkg/llm/anthropic"
	"github.com/lifeplan-ai/lifeplan/pkg/llm/openai"
)

// MockModel selects the deterministic offline client.
const MockModel = "mock"

// IsOpenAILike reports whether model routes to the OpenAI adapter.
func IsOpenAILike(model string) bool {
	return strings.HasPrefix(model, "gpt-") ||
		strings.HasPrefix(model, "o3") ||
		strings.HasPrefix(model, "o4")
}

// IsAnthropicLike reports whether model routes to the Anthropic adapter.
func IsAnthropicLike(model string) bool {
	return strings.Contains(strings.ToLower(model), "claude")
}

// New builds the provider client for model, reading credentials from the
// environment. Callers should have run the provider readiness check first for
// a friendlier failure.
func New(model string) (llm.Client, error) {
	switch {
	case model == MockModel:
		return llm.NewMock(nil), nil
	case IsOpenAILike(model):
		client, err := openai.NewFromAPIKey(os.Getenv("OPENAI_API_KEY"), model)
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI client: %w", err)
		}
		return client, nil
	case IsAnthropicLike(model):
		client, err := anthropic.NewFromAPIKey(os.Getenv("ANTHROPIC_API_KEY"), model)
		if err != nil {
			return nil, fmt.Errorf("failed to create Anthropic client: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("no provider adapter for model %q", model)
	}
}
