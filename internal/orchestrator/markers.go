package orchestrator

import (
	"encoding/json"
	"strings"

	"github.com/Cyclone1070/pharmassist/internal/orchestrator/models"
	"github.com/Cyclone1070/pharmassist/internal/tool"
)

// Prefixes of the out-of-band tool event fragments.
const (
	MarkerToolCallStart  = "[TOOL_CALL_START]"
	MarkerToolCallResult = "[TOOL_CALL_RESULT]"
)

// ToolCallStart is the body of a MarkerToolCallStart fragment.
type ToolCallStart struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments any    `json:"arguments"`
}

// ToolCallResult is the body of a MarkerToolCallResult fragment.
type ToolCallResult struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Success bool           `json:"success"`
	Cached  bool           `json:"cached"`
	Result  map[string]any `json:"result"`
}

func startMarker(call models.ToolCall) string {
	return encodeMarker(MarkerToolCallStart, ToolCallStart{
		ID:        call.ID,
		Name:      call.Name,
		Arguments: markerArguments(call.Arguments),
	})
}

func resultMarker(call models.ToolCall, payload tool.Payload, cached bool) string {
	return encodeMarker(MarkerToolCallResult, ToolCallResult{
		ID:      call.ID,
		Name:    call.Name,
		Success: payload.Outcome() == models.OutcomeSuccess,
		Cached:  cached,
		Result:  payload,
	})
}

// markerArguments shows arguments as an object when they parse and as the
// raw string otherwise.
func markerArguments(raw string) any {
	if raw == "" {
		return map[string]any{}
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

func encodeMarker(prefix string, body any) string {
	data, err := json.Marshal(body)
	if err != nil {
		data = []byte("{}")
	}
	return prefix + string(data)
}

// ParseMarker splits a fragment into a marker prefix and decoded body. ok is
// false for ordinary text.
func ParseMarker(fragment string) (prefix string, body any, ok bool) {
	switch {
	case strings.HasPrefix(fragment, MarkerToolCallStart):
		var start ToolCallStart
		if json.Unmarshal([]byte(strings.TrimPrefix(fragment, MarkerToolCallStart)), &start) != nil {
			return "", nil, false
		}
		return MarkerToolCallStart, start, true
	case strings.HasPrefix(fragment, MarkerToolCallResult):
		var result ToolCallResult
		if json.Unmarshal([]byte(strings.TrimPrefix(fragment, MarkerToolCallResult)), &result) != nil {
			return "", nil, false
		}
		return MarkerToolCallResult, result, true
	default:
		return "", nil, false
	}
}
