package tool

import (
	"encoding/json"
	"fmt"

	"github.com/Cyclone1070/pharmassist/internal/orchestrator/models"
)

// Payload is the JSON object a tool returns and the model receives.
type Payload map[string]any

// ErrorPayload builds the {error, success:false} shape used for every
// business-level failure.
func ErrorPayload(msg string) Payload {
	return Payload{"error": msg, "success": false}
}

// Outcome classifies the payload from its own content: an "error" key or an
// explicit success:false marks it as an error.
func (p Payload) Outcome() models.Outcome {
	if _, ok := p["error"]; ok {
		return models.OutcomeError
	}
	if success, ok := p["success"].(bool); ok && !success {
		return models.OutcomeError
	}
	return models.OutcomeSuccess
}

// ErrorMessage returns the payload's error text, if any.
func (p Payload) ErrorMessage() string {
	switch v := p["error"].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// JSON serializes the payload for a tool message.
func (p Payload) JSON() string {
	data, err := json.Marshal(p)
	if err != nil {
		fallback, _ := json.Marshal(ErrorPayload(fmt.Sprintf("failed to encode tool result: %v", err)))
		return string(fallback)
	}
	return string(data)
}

// toPayload converts a typed response into a Payload via its JSON form.
func toPayload(resp any) (Payload, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w", err)
	}
	return p, nil
}
