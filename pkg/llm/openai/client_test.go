package openai

import (
	"context"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifeplan-ai/lifeplan/pkg/llm"
)

type stubChat struct {
	req  openai.ChatCompletionRequest
	resp openai.ChatCompletionResponse
	err  error
}

func (s *stubChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.req = req
	return s.resp, s.err
}

func TestChat_EncodesRequest(t *testing.T) {
	stub := &stubChat{
		resp: openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: "hello"},
				FinishReason: openai.FinishReasonStop,
			}},
		},
	}
	c, err := New(stub, "gpt-4o-mini")
	require.NoError(t, err)

	resp, err := c.Chat(context.Background(), &llm.Request{
		System:      "be brief",
		Temperature: 0.2,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "hi"},
			{Role: llm.RoleAssistant, Content: "prior turn"},
		},
		Tools: []llm.ToolDefinition{{
			Name:        "schedule_services",
			Description: "Book clinic services",
			InputSchema: map[string]any{"type": "object"},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Text)
	assert.Equal(t, string(openai.FinishReasonStop), resp.StopReason)

	assert.Equal(t, "gpt-4o-mini", stub.req.Model)
	assert.Equal(t, float32(0.2), stub.req.Temperature)
	require.Len(t, stub.req.Messages, 3)
	assert.Equal(t, openai.ChatMessageRoleSystem, stub.req.Messages[0].Role)
	assert.Equal(t, "be brief", stub.req.Messages[0].Content)
	assert.Equal(t, openai.ChatMessageRoleUser, stub.req.Messages[1].Role)

	require.Len(t, stub.req.Tools, 1)
	assert.Equal(t, openai.ToolTypeFunction, stub.req.Tools[0].Type)
	assert.Equal(t, "schedule_services", stub.req.Tools[0].Function.Name)
}

func TestChat_ToolCallRoundTrip(t *testing.T) {
	stub := &stubChat{
		resp: openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{
					Role: openai.ChatMessageRoleAssistant,
					ToolCalls: []openai.ToolCall{{
						ID:       "call-1",
						Type:     openai.ToolTypeFunction,
						Function: openai.FunctionCall{Name: "validate_claims", Arguments: `{"claims":[]}`},
					}},
				},
				FinishReason: openai.FinishReasonToolCalls,
			}},
		},
	}
	c, err := New(stub, "gpt-4o-mini")
	require.NoError(t, err)

	resp, err := c.Chat(context.Background(), &llm.Request{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "validate"}},
	})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "call-1", resp.ToolCalls[0].ID)
	assert.Equal(t, "validate_claims", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"claims":[]}`, string(resp.ToolCalls[0].Arguments))

	// Feed the tool result back and check the wire encoding.
	_, err = c.Chat(context.Background(), &llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "validate"},
			{Role: llm.RoleAssistant, ToolCalls: resp.ToolCalls},
			{Role: llm.RoleTool, ToolCallID: "call-1", Content: `[]`},
		},
	})
	require.NoError(t, err)
	require.Len(t, stub.req.Messages, 3)
	assert.Equal(t, "call-1", stub.req.Messages[1].ToolCalls[0].ID)
	assert.Equal(t, openai.ChatMessageRoleTool, stub.req.Messages[2].Role)
	assert.Equal(t, "call-1", stub.req.Messages[2].ToolCallID)
}

func TestChat_RequiresMessages(t *testing.T) {
	c, err := New(&stubChat{}, "gpt-4o-mini")
	require.NoError(t, err)
	_, err = c.Chat(context.Background(), &llm.Request{})
	assert.Error(t, err)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, "gpt-4o-mini")
	assert.Error(t, err)
	_, err = New(&stubChat{}, "")
	assert.Error(t, err)
	_, err = NewFromAPIKey("", "gpt-4o-mini")
	assert.Error(t, err)
}
