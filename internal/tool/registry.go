package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/Cyclone1070/pharmassist/internal/logging"
	"github.com/Cyclone1070/pharmassist/internal/metrics"
	"github.com/Cyclone1070/pharmassist/internal/orchestrator/models"
	provider "github.com/Cyclone1070/pharmassist/internal/provider/models"
	"go.uber.org/zap"
)

// Keys injected from the caller's identity into identity-aware tools.
const (
	CallerUserIDKey   = "caller_user_id"
	CallerUsernameKey = "caller_username"
)

var identityKeys = []string{CallerUserIDKey, CallerUsernameKey}

// Invocation is one request to run a tool.
type Invocation struct {
	Name          string
	Arguments     string // JSON object as produced by the model
	CallerID      string
	CorrelationID string
	Identity      models.Identity

	// Context is copied into the audit record (e.g. tool_call_id, iteration)
	Context map[string]any
}

// Dependencies are the collaborators shared by every invocation.
type Dependencies struct {
	Limiter RateLimiter
	Auditor Auditor
	Metrics *metrics.Metrics
	Logger  *zap.Logger

	// IdentityTools names the tools that receive the caller's identity
	IdentityTools []string
}

// Registry maps tool names to implementations. It is immutable after
// construction and safe for concurrent use.
type Registry struct {
	tools         map[string]Tool
	names         []string
	identityTools map[string]struct{}

	limiter RateLimiter
	auditor Auditor
	metrics *metrics.Metrics
	log     *zap.Logger
}

// NewRegistry builds a registry. Duplicate names and identity tools that are
// not registered are configuration errors.
func NewRegistry(tools []Tool, deps Dependencies) (*Registry, error) {
	if deps.Limiter == nil {
		return nil, fmt.Errorf("registry requires a rate limiter")
	}

	r := &Registry{
		tools:         make(map[string]Tool, len(tools)),
		identityTools: make(map[string]struct{}, len(deps.IdentityTools)),
		limiter:       deps.Limiter,
		auditor:       deps.Auditor,
		metrics:       deps.Metrics,
		log:           logging.OrNop(deps.Logger),
	}

	for _, t := range tools {
		name := t.Definition().Name
		if _, exists := r.tools[name]; exists {
			return nil, fmt.Errorf("duplicate tool %q", name)
		}
		r.tools[name] = t
	}
	r.names = slices.Sorted(maps.Keys(r.tools))

	for _, name := range deps.IdentityTools {
		if _, ok := r.tools[name]; !ok {
			return nil, fmt.Errorf("identity tool %q is not registered", name)
		}
		r.identityTools[name] = struct{}{}
	}

	return r, nil
}

// Schemas returns every tool definition, ordered by name.
func (r *Registry) Schemas() []provider.ToolDefinition {
	defs := make([]provider.ToolDefinition, 0, len(r.names))
	for _, name := range r.names {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// Invoke runs one tool call. Everything except an unknown tool name is
// reported through the returned payload: rate-limit denials, malformed
// arguments, tool failures and business errors all come back as
// {error, success:false}.
func (r *Registry) Invoke(ctx context.Context, inv Invocation) (Payload, error) {
	t, ok := r.tools[inv.Name]
	if !ok {
		return nil, &UnknownToolError{Name: inv.Name}
	}

	auditContext := r.auditContext(inv)

	if allowed, reason := r.limiter.Check(inv.Name, inv.CallerID); !allowed {
		payload := ErrorPayload(reason)
		payload["rate_limit_exceeded"] = true
		r.metrics.RateLimited(inv.Name)
		r.log.Info("tool call rate limited",
			zap.String("correlation_id", inv.CorrelationID),
			zap.String("tool", inv.Name),
			zap.String("caller", inv.CallerID))
		r.audit(inv, withoutIdentity(parseArgumentsLenient(inv.Arguments)), payload, auditContext)
		return payload, nil
	}

	start := time.Now()
	args, payload := r.prepareArguments(t, inv)
	auditArgs := withoutIdentity(args)
	if payload == nil {
		payload = r.execute(ctx, t, inv.Name, args)
	} else {
		auditArgs = map[string]any{"raw": inv.Arguments}
	}
	r.metrics.ObserveTool(inv.Name, string(payload.Outcome()), time.Since(start))

	r.limiter.Record(inv.Name, inv.CallerID)
	r.audit(inv, auditArgs, payload, auditContext)

	return payload, nil
}

// prepareArguments parses, filters and injects identity. A non-nil payload
// means the arguments were unusable and the tool must not run.
func (r *Registry) prepareArguments(t Tool, inv Invocation) (map[string]any, Payload) {
	raw, err := parseArguments(inv.Arguments)
	if err != nil {
		return nil, executionError(inv.Name, fmt.Errorf("invalid arguments JSON: %w", err))
	}

	filtered := make(map[string]any, len(raw))
	var dropped []string
	for key, value := range raw {
		if slices.Contains(identityKeys, key) || !t.Accepts(key) {
			dropped = append(dropped, key)
			continue
		}
		filtered[key] = value
	}
	if len(dropped) > 0 {
		slices.Sort(dropped)
		r.log.Warn("dropped unsupported tool arguments",
			zap.String("correlation_id", inv.CorrelationID),
			zap.String("tool", inv.Name),
			zap.Strings("dropped", dropped))
	}

	if _, ok := r.identityTools[inv.Name]; ok {
		filtered[CallerUserIDKey] = inv.Identity.UserID
		filtered[CallerUsernameKey] = inv.Identity.Username
	}

	return filtered, nil
}

func (r *Registry) execute(ctx context.Context, t Tool, name string, args map[string]any) (payload Payload) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("tool panicked", zap.String("tool", name), zap.Any("panic", rec))
			payload = executionError(name, fmt.Errorf("%v", rec))
		}
	}()

	result, err := t.Execute(ctx, args)
	if err != nil {
		return executionError(name, err)
	}
	if result == nil {
		return executionError(name, fmt.Errorf("tool returned no result"))
	}
	return result
}

func (r *Registry) audit(inv Invocation, args map[string]any, payload Payload, auditContext map[string]any) {
	if r.auditor == nil {
		return
	}
	r.auditor.LogToolCall(inv.CorrelationID, inv.Name, inv.CallerID, args, payload, auditContext, payload.Outcome())
}

func (r *Registry) auditContext(inv Invocation) map[string]any {
	ctx := make(map[string]any, len(inv.Context)+2)
	maps.Copy(ctx, inv.Context)
	if inv.Identity.Authenticated() {
		ctx["user_id"] = inv.Identity.UserID
		ctx["username"] = inv.Identity.Username
	}
	return ctx
}

func executionError(name string, err error) Payload {
	p := ErrorPayload(err.Error())
	p["tool_name"] = name
	return p
}

func parseArguments(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// parseArgumentsLenient keeps unparsable arguments visible in the audit log.
func parseArgumentsLenient(raw string) map[string]any {
	args, err := parseArguments(raw)
	if err != nil {
		return map[string]any{"raw": raw}
	}
	return args
}

func withoutIdentity(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	out := maps.Clone(args)
	for _, key := range identityKeys {
		delete(out, key)
	}
	return out
}
