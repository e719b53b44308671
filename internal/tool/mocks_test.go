package tool

import (
	"sync"

	"github.com/Cyclone1070/pharmassist/internal/orchestrator/models"
)

// MockLimiter implements RateLimiter with scripted decisions.
type MockLimiter struct {
	CheckFunc func(tool, caller string) (bool, string)

	mu       sync.Mutex
	checked  []string
	recorded []string
}

func (m *MockLimiter) Check(tool, caller string) (bool, string) {
	m.mu.Lock()
	m.checked = append(m.checked, tool)
	m.mu.Unlock()
	if m.CheckFunc != nil {
		return m.CheckFunc(tool, caller)
	}
	return true, ""
}

func (m *MockLimiter) Record(tool, caller string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recorded = append(m.recorded, tool)
}

type auditCall struct {
	CorrelationID string
	ToolName      string
	CallerID      string
	Args          map[string]any
	Result        map[string]any
	Context       map[string]any
	Outcome       models.Outcome
}

// MockAuditor captures LogToolCall calls.
type MockAuditor struct {
	mu    sync.Mutex
	calls []auditCall
}

func (m *MockAuditor) LogToolCall(correlationID, toolName, callerID string, args, result, context map[string]any, outcome models.Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, auditCall{correlationID, toolName, callerID, args, result, context, outcome})
}

func (m *MockAuditor) Calls() []auditCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]auditCall(nil), m.calls...)
}
