package models

import (
	"github.com/Cyclone1070/pharmassist/internal/orchestrator/models"
)

// ChatRequest encapsulates all parameters for one streaming chat completion.
type ChatRequest struct {
	// Messages is the full conversation, system prompt first
	Messages []models.Message

	// Tools contains tool definitions for native tool calling
	Tools []ToolDefinition
}

// FinishReason reports why the model ended its turn.
type FinishReason string

const (
	FinishReasonNone          FinishReason = ""
	FinishReasonStop          FinishReason = "stop"
	FinishReasonToolCalls     FinishReason = "tool_calls"
	FinishReasonLength        FinishReason = "length"
	FinishReasonContentFilter FinishReason = "content_filter"
)

// StreamChunk represents a single delta in a streaming response.
type StreamChunk struct {
	// Delta is the incremental text
	Delta string

	// ToolCalls are partial tool-call fragments carried by this delta
	ToolCalls []ToolCallFragment

	// FinishReason is empty until the final chunk of a turn
	FinishReason FinishReason
}

// ToolCallFragment is a partial tool call addressed by slot index.
// ID and Name arrive once; Arguments is appended across fragments.
type ToolCallFragment struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

// ToolDefinition defines a tool that the model can invoke.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  *ParameterSchema // Pointer to allow nil (no params)
}

// ParameterSchema maps directly to standard JSON Schema.
type ParameterSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]PropertySchema `json:"properties"`
	Required   []string                  `json:"required,omitempty"`
}

// PropertySchema defines a single parameter property.
type PropertySchema struct {
	Type        string          `json:"type"`
	Description string          `json:"description,omitempty"`
	Enum        []string        `json:"enum,omitempty"`
	Items       *PropertySchema `json:"items,omitempty"`
}
