package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Cyclone1070/pharmassist/internal/orchestrator/models"
	"github.com/Cyclone1070/pharmassist/internal/tool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// callResult pairs a requested call with its payload.
type callResult struct {
	call    models.ToolCall
	payload tool.Payload
	cached  bool
}

func (c callResult) toolResult() models.ToolResult {
	return models.ToolResult{
		ToolCallID: c.call.ID,
		Name:       c.call.Name,
		Content:    c.payload.JSON(),
		Outcome:    c.payload.Outcome(),
		Cached:     c.cached,
	}
}

// cacheKey identifies a call by tool name and canonical arguments. Arguments
// that do not parse are keyed by their raw text.
func cacheKey(name, arguments string) string {
	canonical := arguments
	var v any
	if arguments == "" {
		canonical = "{}"
	} else if err := json.Unmarshal([]byte(arguments), &v); err == nil {
		if data, err := json.Marshal(v); err == nil {
			canonical = string(data)
		}
	}
	return name + "\x00" + canonical
}

// dispatch resolves every call of one turn. Each distinct (tool, arguments)
// pair not already cached runs once on the worker pool; duplicates and cache
// hits share its payload. Results are returned in request order.
func (r *run) dispatch(calls []models.ToolCall) []callResult {
	results := make([]callResult, len(calls))
	pending := make(map[string][]int)
	var order []string

	for i, call := range calls {
		results[i].call = call
		key := cacheKey(call.Name, call.Arguments)
		if payload, ok := r.cache[key]; ok {
			results[i].payload = payload
			results[i].cached = true
			continue
		}
		if _, ok := pending[key]; !ok {
			order = append(order, key)
		}
		pending[key] = append(pending[key], i)
	}

	payloads := make([]tool.Payload, len(order))
	var g errgroup.Group
	g.SetLimit(r.o.workers())
	for j, key := range order {
		call := calls[pending[key][0]]
		g.Go(func() error {
			payloads[j] = r.invoke(call)
			return nil
		})
	}
	_ = g.Wait()

	for j, key := range order {
		r.cache[key] = payloads[j]
		for n, i := range pending[key] {
			results[i].payload = payloads[j]
			results[i].cached = n > 0
		}
	}
	return results
}

// invoke runs one call through the registry. In-flight tools are not
// cancelled when the consumer stops reading.
func (r *run) invoke(call models.ToolCall) tool.Payload {
	payload, err := r.o.tools.Invoke(context.WithoutCancel(r.ctx), tool.Invocation{
		Name:          call.Name,
		Arguments:     call.Arguments,
		CallerID:      r.callerID,
		CorrelationID: r.correlationID,
		Identity:      r.req.Identity,
		Context: map[string]any{
			"tool_call_id": call.ID,
			"iteration":    r.iteration,
		},
	})
	if err == nil {
		return payload
	}

	if errors.Is(err, tool.ErrUnknownTool) {
		r.log.Error("model requested unknown tool",
			zap.String("tool", call.Name),
			zap.String("tool_call_id", call.ID))
		return tool.ErrorPayload(fmt.Sprintf("Unknown tool '%s'", call.Name))
	}

	r.log.Error("tool invocation failed", zap.String("tool", call.Name), zap.Error(err))
	return tool.ErrorPayload(err.Error())
}
