package orchestrator

import (
	"context"
	"iter"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Cyclone1070/pharmassist/internal/config"
	"github.com/Cyclone1070/pharmassist/internal/metrics"
	"github.com/Cyclone1070/pharmassist/internal/orchestrator/models"
	"github.com/Cyclone1070/pharmassist/internal/pharmacy"
	provider "github.com/Cyclone1070/pharmassist/internal/provider/models"
	"github.com/Cyclone1070/pharmassist/internal/ratelimit"
	"github.com/Cyclone1070/pharmassist/internal/testing/testhelpers"
	"github.com/Cyclone1070/pharmassist/internal/tool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

var dana = models.Identity{UserID: "user_001", Username: "dana"}

// recordingAuditor captures audit calls from both the orchestrator and the
// registry.
type recordingAuditor struct {
	mu        sync.Mutex
	events    []string
	details   map[string]map[string]any
	toolCalls []string
}

func (a *recordingAuditor) LogEvent(_, _, event string, details map[string]any, _ models.Outcome) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	if a.details == nil {
		a.details = make(map[string]map[string]any)
	}
	a.details[event] = details
}

func (a *recordingAuditor) LogToolCall(_, toolName, _ string, _, _, _ map[string]any, _ models.Outcome) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.toolCalls = append(a.toolCalls, toolName)
}

func (a *recordingAuditor) Events() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.events)
}

func (a *recordingAuditor) Details(event string) map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.details[event]
}

func (a *recordingAuditor) ToolCalls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.toolCalls)
}

type fixedIDs struct{}

func (fixedIDs) NewID() string { return "corr-test" }

type fixtureOptions struct {
	tools         []tool.Tool
	identityTools []string
	limits        *ratelimit.Limits
	configure     func(*config.OrchestratorConfig)
}

type fixture struct {
	orch     *Orchestrator
	provider *testhelpers.MockProvider
	auditor  *recordingAuditor
	reg      *prometheus.Registry
}

func newFixture(t *testing.T, p *testhelpers.MockProvider, opts fixtureOptions) *fixture {
	t.Helper()

	tools := opts.tools
	identityTools := opts.identityTools
	if tools == nil {
		catalog, err := pharmacy.LoadCatalog("")
		require.NoError(t, err)
		tools = pharmacy.Tools(catalog)
		identityTools = pharmacy.IdentityTools
	}

	limits := ratelimit.DefaultLimits()
	if opts.limits != nil {
		limits = *opts.limits
	}

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	auditor := &recordingAuditor{}
	registry, err := tool.NewRegistry(tools, tool.Dependencies{
		Limiter:       ratelimit.New(limits),
		Auditor:       auditor,
		Metrics:       m,
		IdentityTools: identityTools,
	})
	require.NoError(t, err)

	defaults := config.DefaultConfig()
	cfg := defaults.Orchestrator
	if opts.configure != nil {
		opts.configure(&cfg)
	}

	orch, err := New(cfg, defaults.History, Dependencies{
		Provider: p,
		Tools:    registry,
		Auditor:  auditor,
		IDs:      fixedIDs{},
		Metrics:  m,
	})
	require.NoError(t, err)

	return &fixture{orch: orch, provider: p, auditor: auditor, reg: reg}
}

func collect(seq iter.Seq[string]) []string {
	var out []string
	for fragment := range seq {
		out = append(out, fragment)
	}
	return out
}

func toolMessages(req provider.ChatRequest) []models.Message {
	var out []models.Message
	for _, msg := range req.Messages {
		if msg.Role == models.RoleTool {
			out = append(out, msg)
		}
	}
	return out
}

// echoRequest is the argument shape of the generic test tools.
type echoRequest struct {
	Name string `mapstructure:"name"`
	N    int    `mapstructure:"n"`
}

// newEchoTool returns a tool that counts invocations and runs before, if
// set, prior to answering.
func newEchoTool(name string, calls *atomic.Int32, before func(echoRequest)) tool.Tool {
	return tool.New(name, "Use when testing.", &provider.ParameterSchema{Type: "object"},
		func(_ context.Context, req echoRequest) (map[string]any, error) {
			calls.Add(1)
			if before != nil {
				before(req)
			}
			return map[string]any{"success": true, "name": req.Name, "n": req.N}, nil
		})
}

// barrier releases its waiters once n have arrived, or reports false after
// a timeout.
type barrier struct {
	wg   sync.WaitGroup
	done chan struct{}
}

func newBarrier(n int) *barrier {
	b := &barrier{done: make(chan struct{})}
	b.wg.Add(n)
	go func() {
		b.wg.Wait()
		close(b.done)
	}()
	return b
}

func (b *barrier) arrive() bool {
	b.wg.Done()
	select {
	case <-b.done:
		return true
	case <-time.After(2 * time.Second):
		return false
	}
}
