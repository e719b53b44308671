// Package orchestrator drives a streaming chat completion through rounds of
// tool calls to a final answer.
package orchestrator

import (
	"context"
	"errors"
	"io"
	"iter"
	"strings"
	"sync/atomic"

	"github.com/Cyclone1070/pharmassist/internal/audit"
	"github.com/Cyclone1070/pharmassist/internal/config"
	"github.com/Cyclone1070/pharmassist/internal/correlation"
	"github.com/Cyclone1070/pharmassist/internal/logging"
	"github.com/Cyclone1070/pharmassist/internal/metrics"
	"github.com/Cyclone1070/pharmassist/internal/orchestrator/models"
	provider "github.com/Cyclone1070/pharmassist/internal/provider/models"
	"github.com/Cyclone1070/pharmassist/internal/tool"
	"go.uber.org/zap"
)

// AnonymousCaller is the caller id used when a request names none.
const AnonymousCaller = "anonymous"

// Run outcomes reported to metrics.
const (
	outcomeDone          = "done"
	outcomeEmptyInput    = "empty_input"
	outcomeNoResponse    = "no_response"
	outcomeModelError    = "model_error"
	outcomeAuthRequired  = "auth_required"
	outcomeAuthRepeated  = "auth_repeated"
	outcomeMaxIterations = "max_iterations"
	outcomeCancelled     = "cancelled"
)

// ToolInvoker is the registry surface the orchestrator needs.
type ToolInvoker interface {
	Schemas() []provider.ToolDefinition
	Invoke(ctx context.Context, inv tool.Invocation) (tool.Payload, error)
}

// Dependencies are constructed once at startup and shared by every run.
type Dependencies struct {
	Provider provider.Provider
	Tools    ToolInvoker
	Auditor  models.EventAuditor
	IDs      models.IDGenerator
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

// Request is one user turn. History is supplied by the caller on every call;
// nothing is kept between runs.
type Request struct {
	Message        string
	History        []models.Message
	CallerID       string
	Identity       models.Identity
	EmitToolEvents bool
}

// Orchestrator is stateless between runs and safe for concurrent use.
type Orchestrator struct {
	cfg     config.OrchestratorConfig
	history config.HistoryConfig

	provider provider.Provider
	tools    ToolInvoker
	auditor  models.EventAuditor
	ids      models.IDGenerator
	metrics  *metrics.Metrics
	log      *zap.Logger
}

// New creates an Orchestrator. Zero-valued limits fall back to defaults.
func New(cfg config.OrchestratorConfig, history config.HistoryConfig, deps Dependencies) (*Orchestrator, error) {
	if deps.Provider == nil {
		return nil, errors.New("orchestrator requires a provider")
	}
	if deps.Tools == nil {
		return nil, errors.New("orchestrator requires a tool registry")
	}

	defaults := config.DefaultConfig()
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaults.Orchestrator.MaxIterations
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = defaults.Orchestrator.MaxWorkers
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = config.DefaultSystemPrompt
	}

	ids := deps.IDs
	if ids == nil {
		ids = correlation.Generator{}
	}

	return &Orchestrator{
		cfg:      cfg,
		history:  history,
		provider: deps.Provider,
		tools:    deps.Tools,
		auditor:  deps.Auditor,
		ids:      ids,
		metrics:  deps.Metrics,
		log:      logging.OrNop(deps.Logger),
	}, nil
}

func (o *Orchestrator) workers() int {
	if !o.cfg.ParallelTools {
		return 1
	}
	return o.cfg.MaxWorkers
}

// Respond returns the run's text fragments. Ranging the sequence drives the
// run; breaking out of the range stops it before the next model call. The
// sequence can be ranged once.
func (o *Orchestrator) Respond(ctx context.Context, req Request) iter.Seq[string] {
	var started atomic.Bool
	return func(yield func(string) bool) {
		if !started.CompareAndSwap(false, true) {
			return
		}
		r := o.newRun(ctx, req, yield)
		r.execute()
	}
}

// run is the per-call state. The cache and the auth-error set are never
// shared between runs.
type run struct {
	o     *Orchestrator
	ctx   context.Context
	req   Request
	yield func(string) bool
	log   *zap.Logger

	correlationID string
	callerID      string
	emitEvents    bool

	state     State
	iteration int
	messages  []models.Message
	schemas   []provider.ToolDefinition

	cache          map[string]tool.Payload
	seenAuthErrors map[string]struct{}

	yieldedText bool
	stopped     bool
}

func (o *Orchestrator) newRun(ctx context.Context, req Request, yield func(string) bool) *run {
	correlationID := o.ids.NewID()
	callerID := req.CallerID
	if callerID == "" {
		callerID = AnonymousCaller
	}
	return &run{
		o:              o,
		ctx:            ctx,
		req:            req,
		yield:          yield,
		log:            o.log.With(zap.String("correlation_id", correlationID), zap.String("caller", callerID)),
		correlationID:  correlationID,
		callerID:       callerID,
		emitEvents:     req.EmitToolEvents || o.cfg.EmitToolEvents,
		state:          StateAwaitingModel,
		cache:          make(map[string]tool.Payload),
		seenAuthErrors: make(map[string]struct{}),
	}
}

func (r *run) execute() {
	r.event(audit.EventMessageReceived, map[string]any{
		"message_length": len(r.req.Message),
		"history_length": len(r.req.History),
	}, models.OutcomeSuccess)

	if strings.TrimSpace(r.req.Message) == "" {
		r.emit(EmptyInputMessage)
		r.finish(StateDone, outcomeEmptyInput)
		r.event(audit.EventResponseGenerated, map[string]any{"reason": "empty_input"}, models.OutcomeSuccess)
		return
	}

	message, changed := normalizeInput(r.req.Message, normalizeOptions{
		maxLength:        r.o.cfg.MaxMessageLength,
		maxWordRepeats:   r.o.cfg.MaxWordRepeats,
		collapsedRepeats: r.o.cfg.CollapsedWordRepeats,
	})
	if changed {
		r.event(audit.EventInputNormalized, map[string]any{
			"original_length":   len(r.req.Message),
			"normalized_length": len(message),
		}, models.OutcomeSuccess)
	}

	r.messages = r.initialMessages(message)
	r.schemas = r.o.tools.Schemas()

	for r.iteration = 1; r.iteration <= r.o.cfg.MaxIterations; r.iteration++ {
		r.step()
		if r.state.Terminal() || r.stopped {
			return
		}
	}

	r.iteration = r.o.cfg.MaxIterations
	r.log.Warn("max iterations reached", zap.Int("max_iterations", r.o.cfg.MaxIterations))
	r.event(audit.EventMaxIterationsReached, map[string]any{"max_iterations": r.o.cfg.MaxIterations}, models.OutcomeError)
	r.emit(MaxIterationsMessage)
	r.finish(StateFailed, outcomeMaxIterations)
}

// initialMessages composes system prompt, context hint, compressed history
// and the current message.
func (r *run) initialMessages(message string) []models.Message {
	history := sanitizeHistory(r.req.History)

	messages := []models.Message{{Role: models.RoleSystem, Content: r.o.cfg.SystemPrompt}}

	if r.o.cfg.ContextHints {
		if hint, ok := contextHint(history); ok {
			messages = append(messages, hint)
		}
	}

	compressed, didCompress := compressHistory(history, historyOptions{
		maxMessages: r.o.history.MaxMessages,
		maxTokens:   r.o.history.MaxTokens,
		keepRecent:  r.o.history.KeepRecent,
	})
	if didCompress {
		r.log.Debug("history compressed",
			zap.Int("original_messages", len(history)),
			zap.Int("compressed_messages", len(compressed)))
	}
	messages = append(messages, compressed...)

	return append(messages, models.Message{Role: models.RoleUser, Content: message})
}

// step runs one model turn and, when the model asks for them, its tools.
func (r *run) step() {
	if err := r.ctx.Err(); err != nil {
		r.cancel()
		return
	}

	r.transition(StateAwaitingModel)
	r.o.metrics.ModelCall(r.o.provider.Name())
	stream, err := r.o.provider.Stream(r.ctx, &provider.ChatRequest{
		Messages: r.messages,
		Tools:    r.schemas,
	})
	if err != nil {
		if r.ctx.Err() != nil {
			r.cancel()
			return
		}
		r.modelFailed(err)
		return
	}
	defer stream.Close()

	r.transition(StateStreaming)
	var text strings.Builder
	var acc callAccumulator
	finish := provider.FinishReasonNone

	for finish == provider.FinishReasonNone {
		chunk, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if r.ctx.Err() != nil {
				r.cancel()
				return
			}
			r.modelFailed(err)
			return
		}
		if chunk.Delta != "" {
			text.WriteString(chunk.Delta)
			if !r.emit(chunk.Delta) {
				r.cancel()
				return
			}
		}
		acc.add(chunk.ToolCalls)
		finish = chunk.FinishReason
	}

	if finish == provider.FinishReasonNone && !acc.empty() {
		finish = provider.FinishReasonToolCalls
	}

	if finish == provider.FinishReasonToolCalls {
		calls, dropped := acc.calls(r.iteration)
		if dropped > 0 {
			r.log.Warn("dropped tool call slots without a name", zap.Int("dropped", dropped))
		}
		if len(calls) > 0 {
			r.runTools(text.String(), calls)
			return
		}
	}

	r.complete(finish)
}

// complete handles a turn that ended without tool calls.
func (r *run) complete(finish provider.FinishReason) {
	if !r.yieldedText {
		r.log.Warn("model finished without producing text", zap.String("finish_reason", string(finish)))
		r.emit(NoResponseMessage)
		r.event(audit.EventResponseGenerationFailed, map[string]any{
			"reason":        "empty_response",
			"finish_reason": string(finish),
			"iterations":    r.iteration,
		}, models.OutcomeError)
		r.finish(StateFailed, outcomeNoResponse)
		return
	}

	r.event(audit.EventResponseGenerated, map[string]any{
		"iterations":    r.iteration,
		"finish_reason": string(finish),
	}, models.OutcomeSuccess)
	r.finish(StateDone, outcomeDone)
}

// runTools records the assistant turn, resolves its calls and feeds the
// results back, unless an authentication failure ends the run.
func (r *run) runTools(text string, calls []models.ToolCall) {
	r.transition(StateAwaitingTools)
	r.messages = append(r.messages, models.Message{
		Role:      models.RoleAssistant,
		Content:   text,
		ToolCalls: calls,
	})

	if r.emitEvents {
		for _, call := range calls {
			if !r.emit(startMarker(call)) {
				r.cancel()
				return
			}
		}
	}

	results := r.dispatch(calls)

	if r.emitEvents {
		for _, res := range results {
			if !r.emit(resultMarker(res.call, res.payload, res.cached)) {
				r.cancel()
				return
			}
		}
	}

	if r.checkAuthErrors(results) {
		return
	}

	for _, res := range results {
		tr := res.toolResult()
		r.messages = append(r.messages, models.Message{
			Role:       models.RoleTool,
			Content:    tr.Content,
			ToolCallID: tr.ToolCallID,
			Name:       tr.Name,
		})
	}
}

// checkAuthErrors applies the poison-pill rules and reports whether the run
// ended. An error text seen in an earlier turn ends the run. A first failure
// on the first turn of an anonymous caller asks them to log in.
func (r *run) checkAuthErrors(results []callResult) bool {
	var fresh []string
	for _, res := range results {
		msg := res.payload.ErrorMessage()
		if !isAuthError(msg) {
			continue
		}
		if _, seen := r.seenAuthErrors[msg]; seen {
			r.log.Warn("authentication error repeated", zap.String("tool", res.call.Name), zap.String("error", msg))
			r.event(audit.EventAuthenticationErrorRepeated, map[string]any{
				"tool":       res.call.Name,
				"error":      msg,
				"iterations": r.iteration,
			}, models.OutcomeError)
			r.emit(RepeatedAuthMessage)
			r.finish(StateFailed, outcomeAuthRepeated)
			return true
		}
		fresh = append(fresh, msg)
	}

	if len(fresh) == 0 {
		return false
	}
	for _, msg := range fresh {
		r.seenAuthErrors[msg] = struct{}{}
	}

	shortCircuit := r.iteration == 1 && !r.req.Identity.Authenticated()
	r.event(audit.EventAuthenticationErrorDetected, map[string]any{
		"errors":        fresh,
		"iteration":     r.iteration,
		"short_circuit": shortCircuit,
	}, models.OutcomeError)

	if shortCircuit {
		r.emit(LoginRequiredMessage)
		r.finish(StateFailed, outcomeAuthRequired)
		return true
	}
	return false
}

func (r *run) modelFailed(err error) {
	r.log.Error("model call failed", zap.Int("iteration", r.iteration), zap.Error(err))
	r.event(audit.EventResponseGenerationFailed, map[string]any{
		"error":      err.Error(),
		"iterations": r.iteration,
		"retryable":  provider.IsRetryable(err),
	}, models.OutcomeError)
	r.emit(modelErrorMessage(err))
	r.finish(StateFailed, outcomeModelError)
}

// cancel ends a run whose consumer stopped reading or whose context ended.
func (r *run) cancel() {
	r.stopped = true
	r.log.Debug("run cancelled", zap.Int("iteration", r.iteration))
	r.event(audit.EventResponseCancelled, map[string]any{"iterations": r.iteration}, models.OutcomeError)
	r.finish(StateFailed, outcomeCancelled)
}

// emit yields one fragment unless the consumer already stopped.
func (r *run) emit(fragment string) bool {
	if r.stopped {
		return false
	}
	if !r.yield(fragment) {
		r.stopped = true
		return false
	}
	if !strings.HasPrefix(fragment, MarkerToolCallStart) && !strings.HasPrefix(fragment, MarkerToolCallResult) {
		r.yieldedText = true
	}
	return true
}

func (r *run) transition(next State) {
	if r.state == next {
		return
	}
	r.log.Debug("state transition",
		zap.Stringer("from", r.state),
		zap.Stringer("to", next),
		zap.Int("iteration", r.iteration))
	r.state = next
}

func (r *run) finish(final State, outcome string) {
	r.transition(final)
	r.o.metrics.RunFinished(outcome)
}

func (r *run) event(name string, details map[string]any, outcome models.Outcome) {
	if r.o.auditor == nil {
		return
	}
	r.o.auditor.LogEvent(r.correlationID, r.callerID, name, details, outcome)
}

