package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/Cyclone1070/pharmassist/internal/orchestrator/models"
	provider "github.com/Cyclone1070/pharmassist/internal/provider/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type lookupRequest struct {
	Name  string `mapstructure:"name"`
	Limit int    `mapstructure:"limit"`
}

func (r lookupRequest) Validate() error {
	if r.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

type lookupResponse struct {
	Success bool   `json:"success"`
	Name    string `json:"name,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	Error   string `json:"error,omitempty"`
}

type identityRequest struct {
	Query          string `mapstructure:"query"`
	CallerUserID   string `mapstructure:"caller_user_id"`
	CallerUsername string `mapstructure:"caller_username"`
}

func newLookupTool(calls *int) Tool {
	return New("lookup", "Use when testing lookups.", &provider.ParameterSchema{Type: "object"},
		func(_ context.Context, req lookupRequest) (lookupResponse, error) {
			*calls++
			if req.Name == "missing" {
				return lookupResponse{Success: false, Error: "not found"}, nil
			}
			if req.Name == "explode" {
				return lookupResponse{}, errors.New("database offline")
			}
			if req.Name == "panic" {
				panic("boom")
			}
			return lookupResponse{Success: true, Name: req.Name, Limit: req.Limit}, nil
		})
}

func newIdentityTool(seen *identityRequest) Tool {
	return New("whoami", "Use when testing identity.", nil,
		func(_ context.Context, req identityRequest) (map[string]any, error) {
			*seen = req
			return map[string]any{"success": true}, nil
		})
}

type registryFixture struct {
	registry *Registry
	limiter  *MockLimiter
	auditor  *MockAuditor
	logs     *observer.ObservedLogs
	calls    int
	identity identityRequest
}

func newFixture(t *testing.T) *registryFixture {
	t.Helper()
	f := &registryFixture{limiter: &MockLimiter{}, auditor: &MockAuditor{}}
	core, logs := observer.New(zap.InfoLevel)
	f.logs = logs

	reg, err := NewRegistry(
		[]Tool{newLookupTool(&f.calls), newIdentityTool(&f.identity)},
		Dependencies{
			Limiter:       f.limiter,
			Auditor:       f.auditor,
			Logger:        zap.New(core),
			IdentityTools: []string{"whoami"},
		})
	require.NoError(t, err)
	f.registry = reg
	return f
}

func (f *registryFixture) invoke(t *testing.T, name, args string) Payload {
	t.Helper()
	payload, err := f.registry.Invoke(context.Background(), Invocation{
		Name:          name,
		Arguments:     args,
		CallerID:      "alice",
		CorrelationID: "corr-1",
		Identity:      models.Identity{UserID: "user_001", Username: "alice"},
		Context:       map[string]any{"tool_call_id": "call_1"},
	})
	require.NoError(t, err)
	return payload
}

func TestSchemas_SortedByName(t *testing.T) {
	f := newFixture(t)

	schemas := f.registry.Schemas()

	require.Len(t, schemas, 2)
	assert.Equal(t, "lookup", schemas[0].Name)
	assert.Equal(t, "whoami", schemas[1].Name)
	assert.Equal(t, schemas, f.registry.Schemas())
}

func TestInvoke_UnknownTool(t *testing.T) {
	f := newFixture(t)

	payload, err := f.registry.Invoke(context.Background(), Invocation{Name: "nope"})

	assert.Nil(t, payload)
	assert.ErrorIs(t, err, ErrUnknownTool)
	var unknown *UnknownToolError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "nope", unknown.Name)
	assert.Empty(t, f.limiter.checked)
	assert.Empty(t, f.auditor.Calls())
}

func TestInvoke_Success(t *testing.T) {
	f := newFixture(t)

	payload := f.invoke(t, "lookup", `{"name":"Acamol","limit":3}`)

	assert.Equal(t, true, payload["success"])
	assert.Equal(t, "Acamol", payload["name"])
	assert.Equal(t, float64(3), payload["limit"])
	assert.Equal(t, models.OutcomeSuccess, payload.Outcome())
	assert.Equal(t, []string{"lookup"}, f.limiter.recorded)

	calls := f.auditor.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, models.OutcomeSuccess, calls[0].Outcome)
	assert.Equal(t, "corr-1", calls[0].CorrelationID)
	assert.Equal(t, "call_1", calls[0].Context["tool_call_id"])
	assert.Equal(t, "user_001", calls[0].Context["user_id"])
}

func TestInvoke_RateLimited(t *testing.T) {
	f := newFixture(t)
	f.limiter.CheckFunc = func(tool, caller string) (bool, string) {
		return false, "Rate limit exceeded: 60 calls"
	}

	payload := f.invoke(t, "lookup", `{"name":"Acamol"}`)

	assert.Equal(t, "Rate limit exceeded: 60 calls", payload["error"])
	assert.Equal(t, false, payload["success"])
	assert.Equal(t, true, payload["rate_limit_exceeded"])
	assert.Zero(t, f.calls)
	assert.Empty(t, f.limiter.recorded)

	calls := f.auditor.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, models.OutcomeError, calls[0].Outcome)
	assert.Equal(t, "Acamol", calls[0].Args["name"])
}

func TestInvoke_DropsUnknownArguments(t *testing.T) {
	f := newFixture(t)

	payload := f.invoke(t, "lookup", `{"name":"Acamol","color":"blue","urgent":true}`)

	assert.Equal(t, true, payload["success"])
	warnings := f.logs.FilterMessage("dropped unsupported tool arguments").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, []any{"color", "urgent"}, warnings[0].ContextMap()["dropped"])
	assert.NotContains(t, f.auditor.Calls()[0].Args, "color")
}

func TestInvoke_InjectsIdentity(t *testing.T) {
	f := newFixture(t)

	f.invoke(t, "whoami", `{"query":"my info","caller_user_id":"user_999","caller_username":"mallory"}`)

	assert.Equal(t, "my info", f.identity.Query)
	assert.Equal(t, "user_001", f.identity.CallerUserID)
	assert.Equal(t, "alice", f.identity.CallerUsername)

	audited := f.auditor.Calls()[0].Args
	assert.NotContains(t, audited, CallerUserIDKey)
	assert.Equal(t, "my info", audited["query"])
}

func TestInvoke_NonIdentityToolNeverSeesIdentity(t *testing.T) {
	seen := map[string]any{}
	spy := New("spy", "Use when spying.", nil,
		func(_ context.Context, req identityRequest) (map[string]any, error) {
			seen["caller_user_id"] = req.CallerUserID
			return map[string]any{"success": true}, nil
		})
	reg, err := NewRegistry([]Tool{spy}, Dependencies{Limiter: &MockLimiter{}})
	require.NoError(t, err)

	_, err = reg.Invoke(context.Background(), Invocation{
		Name:      "spy",
		Arguments: `{"caller_user_id":"forged"}`,
		Identity:  models.Identity{UserID: "user_001"},
	})

	require.NoError(t, err)
	assert.Equal(t, "", seen["caller_user_id"])
}

func TestInvoke_FailuresBecomePayloads(t *testing.T) {
	tests := []struct {
		name      string
		args      string
		wantError string
		toolName  bool
	}{
		{"business error", `{"name":"missing"}`, "not found", false},
		{"returned error", `{"name":"explode"}`, "database offline", true},
		{"panic", `{"name":"panic"}`, "boom", true},
		{"validation", `{"limit":2}`, "lookup validation failed: name is required", true},
		{"malformed JSON", `{"name":`, "invalid arguments JSON", true},
		{"wrong type", `{"name":["a","b"]}`, "invalid arguments", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			payload := f.invoke(t, "lookup", tt.args)

			assert.Equal(t, models.OutcomeError, payload.Outcome())
			assert.Contains(t, payload.ErrorMessage(), tt.wantError)
			assert.Equal(t, false, payload["success"])
			if tt.toolName {
				assert.Equal(t, "lookup", payload["tool_name"])
			}
			assert.Equal(t, []string{"lookup"}, f.limiter.recorded)
			require.Len(t, f.auditor.Calls(), 1)
			assert.Equal(t, models.OutcomeError, f.auditor.Calls()[0].Outcome)
		})
	}
}

func TestInvoke_EmptyArgumentsAllowed(t *testing.T) {
	f := newFixture(t)

	f.invoke(t, "whoami", "")

	assert.Equal(t, "user_001", f.identity.CallerUserID)
}

func TestNewRegistry_Errors(t *testing.T) {
	var calls int

	_, err := NewRegistry([]Tool{newLookupTool(&calls), newLookupTool(&calls)}, Dependencies{Limiter: &MockLimiter{}})
	assert.ErrorContains(t, err, "duplicate tool")

	_, err = NewRegistry([]Tool{newLookupTool(&calls)}, Dependencies{Limiter: &MockLimiter{}, IdentityTools: []string{"whoami"}})
	assert.ErrorContains(t, err, "not registered")

	_, err = NewRegistry(nil, Dependencies{})
	assert.ErrorContains(t, err, "rate limiter")
}

func TestPayload_Outcome(t *testing.T) {
	assert.Equal(t, models.OutcomeSuccess, Payload{"success": true}.Outcome())
	assert.Equal(t, models.OutcomeSuccess, Payload{"results": []any{}}.Outcome())
	assert.Equal(t, models.OutcomeError, Payload{"success": false}.Outcome())
	assert.Equal(t, models.OutcomeError, Payload{"error": nil}.Outcome())
	assert.Equal(t, models.OutcomeError, Payload{"error": "x", "success": true}.Outcome())
}

func TestAdapter_AcceptedKeys(t *testing.T) {
	var calls int
	lookup := newLookupTool(&calls)

	assert.True(t, lookup.Accepts("name"))
	assert.True(t, lookup.Accepts("limit"))
	assert.False(t, lookup.Accepts("Name"))
	assert.False(t, lookup.Accepts("color"))
}
