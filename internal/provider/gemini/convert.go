package gemini

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Cyclone1070/pharmassist/internal/orchestrator/models"
	provider "github.com/Cyclone1070/pharmassist/internal/provider/models"
	"github.com/google/uuid"
	"google.golang.org/genai"
)

// toGeminiContents converts the conversation to Gemini contents. System
// messages are folded into the returned system instruction, and consecutive
// tool results share one user turn.
func toGeminiContents(messages []models.Message) ([]*genai.Content, *genai.Content) {
	contents := make([]*genai.Content, 0, len(messages))
	var system *genai.Content
	var pendingResults *genai.Content

	for _, msg := range messages {
		if msg.Role != models.RoleTool {
			pendingResults = nil
		}

		switch msg.Role {
		case models.RoleSystem:
			if msg.Content == "" {
				continue
			}
			if system == nil {
				system = &genai.Content{}
			}
			system.Parts = append(system.Parts, genai.NewPartFromText(msg.Content))

		case models.RoleTool:
			part := &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					ID:       msg.ToolCallID,
					Name:     msg.Name,
					Response: decodeObject(msg.Content, "content"),
				},
			}
			if pendingResults == nil {
				pendingResults = &genai.Content{Role: "user"}
				contents = append(contents, pendingResults)
			}
			pendingResults.Parts = append(pendingResults.Parts, part)

		default:
			if content := messageToGeminiContent(msg); content != nil {
				contents = append(contents, content)
			}
		}
	}

	return contents, system
}

// messageToGeminiContent converts a user or assistant message.
func messageToGeminiContent(msg models.Message) *genai.Content {
	role := "user"
	if msg.Role == models.RoleAssistant {
		role = "model"
	}

	parts := make([]*genai.Part, 0, 1+len(msg.ToolCalls))
	if msg.Content != "" {
		parts = append(parts, genai.NewPartFromText(msg.Content))
	}
	for _, call := range msg.ToolCalls {
		parts = append(parts, &genai.Part{
			FunctionCall: &genai.FunctionCall{
				ID:   call.ID,
				Name: call.Name,
				Args: decodeObject(call.Arguments, "raw"),
			},
		})
	}

	// Skip empty messages
	if len(parts) == 0 {
		return nil
	}

	return &genai.Content{Role: role, Parts: parts}
}

// decodeObject parses a JSON object, wrapping anything else under key.
func decodeObject(raw, key string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil || obj == nil {
		return map[string]any{key: raw}
	}
	return obj
}

// defaultSafetySettings returns safety settings with BLOCK_NONE for all categories.
func defaultSafetySettings() []*genai.SafetySetting {
	return []*genai.SafetySetting{
		{
			Category:  genai.HarmCategoryHateSpeech,
			Threshold: genai.HarmBlockThresholdOff,
		},
		{
			Category:  genai.HarmCategoryDangerousContent,
			Threshold: genai.HarmBlockThresholdOff,
		},
		{
			Category:  genai.HarmCategoryHarassment,
			Threshold: genai.HarmBlockThresholdOff,
		},
		{
			Category:  genai.HarmCategorySexuallyExplicit,
			Threshold: genai.HarmBlockThresholdOff,
		},
	}
}

// toGeminiTools converts internal ToolDefinition to Gemini tools.
func toGeminiTools(tools []provider.ToolDefinition) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}

	functionDeclarations := make([]*genai.FunctionDeclaration, 0, len(tools))

	for _, tool := range tools {
		fd := &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
		}

		if tool.Parameters != nil {
			fd.Parameters = toGeminiSchema(tool.Parameters)
		}

		functionDeclarations = append(functionDeclarations, fd)
	}

	return []*genai.Tool{
		{FunctionDeclarations: functionDeclarations},
	}
}

// toGeminiSchema converts ParameterSchema to Gemini Schema.
func toGeminiSchema(params *provider.ParameterSchema) *genai.Schema {
	schema := &genai.Schema{
		Type: genai.TypeObject,
	}

	if len(params.Properties) > 0 {
		schema.Properties = make(map[string]*genai.Schema, len(params.Properties))
		for name, prop := range params.Properties {
			schema.Properties[name] = toGeminiProperty(prop)
		}
	}

	if len(params.Required) > 0 {
		schema.Required = params.Required
	}

	return schema
}

func toGeminiProperty(prop provider.PropertySchema) *genai.Schema {
	s := &genai.Schema{
		Type:        toGeminiType(prop.Type),
		Description: prop.Description,
	}
	if len(prop.Enum) > 0 {
		s.Enum = prop.Enum
	}
	if prop.Items != nil {
		s.Items = toGeminiProperty(*prop.Items)
	}
	return s
}

// toGeminiType converts string type to Gemini Type.
func toGeminiType(typeStr string) genai.Type {
	switch typeStr {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

// fromGeminiResponse converts one streamed response to a chunk. It returns a
// nil chunk for responses that carry nothing. calls counts function calls
// seen so far in the turn and supplies fragment indices.
func fromGeminiResponse(resp *genai.GenerateContentResponse, calls *int) (*provider.StreamChunk, error) {
	if resp == nil {
		return nil, nil
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, &provider.ProviderError{
			Code:    provider.ErrorCodeContentBlocked,
			Message: fmt.Sprintf("prompt blocked: %s", resp.PromptFeedback.BlockReason),
		}
	}
	if len(resp.Candidates) == 0 {
		return nil, nil
	}

	candidate := resp.Candidates[0]

	switch candidate.FinishReason {
	case genai.FinishReasonSafety, genai.FinishReasonProhibitedContent,
		genai.FinishReasonBlocklist, genai.FinishReasonSPII:
		return nil, &provider.ProviderError{
			Code:    provider.ErrorCodeContentBlocked,
			Message: "content blocked by safety filters",
		}
	}

	chunk := &provider.StreamChunk{}
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			chunk.Delta += part.Text
			if part.FunctionCall != nil {
				chunk.ToolCalls = append(chunk.ToolCalls, toFragment(part.FunctionCall, *calls))
				*calls++
			}
		}
	}

	chunk.FinishReason = toFinishReason(candidate.FinishReason, *calls > 0)

	if chunk.Delta == "" && len(chunk.ToolCalls) == 0 && chunk.FinishReason == provider.FinishReasonNone {
		return nil, nil
	}
	return chunk, nil
}

// toFragment emits a complete call as one fragment. Gemini does not split
// calls across chunks and often omits the id.
func toFragment(call *genai.FunctionCall, index int) provider.ToolCallFragment {
	id := call.ID
	if id == "" {
		id = "call_" + uuid.NewString()
	}
	args := "{}"
	if len(call.Args) > 0 {
		if data, err := json.Marshal(call.Args); err == nil {
			args = string(data)
		}
	}
	return provider.ToolCallFragment{
		Index:     index,
		ID:        id,
		Name:      call.Name,
		Arguments: args,
	}
}

// toFinishReason maps Gemini finish reasons. Gemini reports STOP even when
// the turn ends in function calls.
func toFinishReason(reason genai.FinishReason, sawCalls bool) provider.FinishReason {
	switch reason {
	case "", genai.FinishReasonUnspecified:
		return provider.FinishReasonNone
	case genai.FinishReasonMaxTokens:
		return provider.FinishReasonLength
	default:
		if sawCalls {
			return provider.FinishReasonToolCalls
		}
		return provider.FinishReasonStop
	}
}

// mapGeminiError maps Gemini API errors to provider errors.
func mapGeminiError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return provider.ErrorForStatus(apiErr.Code, apiErr.Message, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return provider.ErrorForStatus(apiErrPtr.Code, apiErrPtr.Message, err)
	}

	// Generic network error
	return &provider.ProviderError{
		Code:       provider.ErrorCodeNetwork,
		Message:    "network error",
		Underlying: err,
		Retryable:  true,
	}
}
