package models

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message represents a single message in the conversation sent to the model.
type Message struct {
	Role Role

	// Content is the message text. Empty means null on the wire.
	Content string

	// For assistant messages that request tools
	ToolCalls []ToolCall

	// For tool messages, the ID of the call this message answers
	ToolCallID string

	// For tool messages, the name of the tool that produced the content
	Name string
}

// ToolCall is a model-requested tool invocation in canonical form.
// Provider-specific shapes are converted into this at the stream boundary.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // JSON object, possibly assembled from stream fragments
}

// ToolResult is the outcome of one tool call within a run.
type ToolResult struct {
	ToolCallID string
	Name       string
	Content    string // JSON-serialized payload
	Outcome    Outcome
	Cached     bool
}

// Outcome classifies a tool invocation or orchestration event.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
)

// Identity is the authenticated caller on whose behalf tools run.
// The model never supplies these values.
type Identity struct {
	UserID   string
	Username string
}

// Authenticated reports whether the identity belongs to a logged-in user.
func (i Identity) Authenticated() bool {
	return i.UserID != ""
}
