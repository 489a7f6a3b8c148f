package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifeplan-ai/lifeplan/pkg/llm"
)

func TestModelClassification(t *testing.T) {
	assert.True(t, IsOpenAILike("gpt-4o-mini"))
	assert.True(t, IsOpenAILike("o3-mini"))
	assert.False(t, IsOpenAILike("claude-sonnet-4-5"))

	assert.True(t, IsAnthropicLike("claude-sonnet-4-5"))
	assert.True(t, IsAnthropicLike("us.anthropic.claude-3-5-sonnet"))
	assert.False(t, IsAnthropicLike("gpt-4o-mini"))
}

func TestNew_Mock(t *testing.T) {
	client, err := New(MockModel)
	require.NoError(t, err)
	_, ok := client.(*llm.MockClient)
	assert.True(t, ok)
}

func TestNew_Providers(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	client, err := New("gpt-4o-mini")
	require.NoError(t, err)
	assert.NotNil(t, client)

	t.Setenv("ANTHROPIC_API_KEY", "ak-test")
	client, err = New("claude-sonnet-4-5")
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestNew_MissingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := New("gpt-4o-mini")
	assert.Error(t, err)
}

func TestNew_UnknownModel(t *testing.T) {
	_, err := New("mistral.large")
	assert.Error(t, err)
}
