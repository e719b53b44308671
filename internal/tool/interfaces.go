package tool

import (
	"context"

	"github.com/Cyclone1070/pharmassist/internal/orchestrator/models"
	provider "github.com/Cyclone1070/pharmassist/internal/provider/models"
)

// Tool represents a lookup the model can invoke.
// Each tool must be stateless and safe for concurrent use.
type Tool interface {
	// Definition returns the schema shown to the model
	Definition() provider.ToolDefinition

	// Accepts reports whether key is a parameter the tool understands,
	// including identity parameters the model never sees.
	Accepts(key string) bool

	// Execute runs the tool with already-filtered arguments.
	// A returned error is converted to an error payload by the registry.
	Execute(ctx context.Context, args map[string]any) (Payload, error)
}

// RateLimiter gates invocations per tool and caller.
type RateLimiter interface {
	Check(tool, caller string) (bool, string)
	Record(tool, caller string)
}

// Auditor records tool invocations.
type Auditor interface {
	LogToolCall(correlationID, toolName, callerID string, args, result, context map[string]any, outcome models.Outcome)
}
