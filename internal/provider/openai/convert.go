package openai

import (
	"context"
	"errors"

	"github.com/Cyclone1070/pharmassist/internal/orchestrator/models"
	provider "github.com/Cyclone1070/pharmassist/internal/provider/models"
	"github.com/sashabaranov/go-openai"
)

var emptyObjectSchema = &provider.ParameterSchema{
	Type:       "object",
	Properties: map[string]provider.PropertySchema{},
}

func toOpenAIMessages(messages []models.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		m := openai.ChatCompletionMessage{
			Role:       toOpenAIRole(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
			Name:       msg.Name,
		}
		for _, call := range msg.ToolCalls {
			m.ToolCalls = append(m.ToolCalls, openai.ToolCall{
				ID:   call.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      call.Name,
					Arguments: call.Arguments,
				},
			})
		}
		out = append(out, m)
	}
	return out
}

func toOpenAIRole(role models.Role) string {
	switch role {
	case models.RoleSystem:
		return openai.ChatMessageRoleSystem
	case models.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	case models.RoleTool:
		return openai.ChatMessageRoleTool
	default:
		return openai.ChatMessageRoleUser
	}
}

func toOpenAITools(tools []provider.ToolDefinition) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		params := t.Parameters
		if params == nil {
			params = emptyObjectSchema
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return out
}

// fromOpenAIChunk converts one streamed event, or returns nil when it carries
// nothing for the first choice.
func fromOpenAIChunk(resp openai.ChatCompletionStreamResponse) *provider.StreamChunk {
	if len(resp.Choices) == 0 {
		return nil
	}
	choice := resp.Choices[0]

	chunk := &provider.StreamChunk{
		Delta:        choice.Delta.Content,
		FinishReason: toFinishReason(choice.FinishReason),
	}
	for i, tc := range choice.Delta.ToolCalls {
		index := i
		if tc.Index != nil {
			index = *tc.Index
		}
		chunk.ToolCalls = append(chunk.ToolCalls, provider.ToolCallFragment{
			Index:     index,
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	if chunk.Delta == "" && len(chunk.ToolCalls) == 0 && chunk.FinishReason == provider.FinishReasonNone {
		return nil
	}
	return chunk
}

func toFinishReason(reason openai.FinishReason) provider.FinishReason {
	switch reason {
	case "", openai.FinishReasonNull:
		return provider.FinishReasonNone
	case openai.FinishReasonToolCalls, openai.FinishReasonFunctionCall:
		return provider.FinishReasonToolCalls
	case openai.FinishReasonLength:
		return provider.FinishReasonLength
	case openai.FinishReasonContentFilter:
		return provider.FinishReasonContentFilter
	default:
		return provider.FinishReasonStop
	}
}

// mapOpenAIError maps go-openai errors to provider errors.
func mapOpenAIError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return provider.ErrorForStatus(apiErr.HTTPStatusCode, apiErr.Message, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return provider.ErrorForStatus(reqErr.HTTPStatusCode, reqErr.Error(), err)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &provider.ProviderError{
			Code:       provider.ErrorCodeNetwork,
			Message:    "request cancelled",
			Underlying: err,
		}
	}

	// Generic network error
	return &provider.ProviderError{
		Code:       provider.ErrorCodeNetwork,
		Message:    "network error",
		Underlying: err,
		Retryable:  true,
	}
}
