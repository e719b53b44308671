package orchestrator

import (
	"fmt"
	"strings"

	"github.com/Cyclone1070/pharmassist/internal/orchestrator/models"
	provider "github.com/Cyclone1070/pharmassist/internal/provider/models"
)

// callSlot is one tool call being assembled from stream fragments.
type callSlot struct {
	id   string
	name string
	args strings.Builder
	seen bool
}

// callAccumulator assembles tool calls addressed by slot index. Slots grow on
// demand and are never reused within a turn.
type callAccumulator struct {
	slots []*callSlot
}

func (a *callAccumulator) add(fragments []provider.ToolCallFragment) {
	for _, f := range fragments {
		if f.Index < 0 {
			continue
		}
		for len(a.slots) <= f.Index {
			a.slots = append(a.slots, &callSlot{})
		}
		slot := a.slots[f.Index]
		slot.seen = true
		if slot.id == "" && f.ID != "" {
			slot.id = f.ID
		}
		if slot.name == "" && f.Name != "" {
			slot.name = f.Name
		}
		slot.args.WriteString(f.Arguments)
	}
}

func (a *callAccumulator) empty() bool {
	return len(a.slots) == 0
}

// calls returns the assembled calls in slot order. Slots without a name are
// skipped and reported as dropped. Missing ids get a run-unique fallback.
func (a *callAccumulator) calls(iteration int) (calls []models.ToolCall, dropped int) {
	for i, slot := range a.slots {
		if !slot.seen || slot.name == "" {
			dropped++
			continue
		}
		id := slot.id
		if id == "" {
			id = fmt.Sprintf("call_%d_%d", iteration, i)
		}
		calls = append(calls, models.ToolCall{
			ID:        id,
			Name:      slot.name,
			Arguments: slot.args.String(),
		})
	}
	return calls, dropped
}
