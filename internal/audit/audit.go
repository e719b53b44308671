// Package audit appends one JSON record per tool invocation or orchestration
// event to a per-process log file.
package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Cyclone1070/pharmassist/internal/logging"
	"github.com/Cyclone1070/pharmassist/internal/orchestrator/models"
	"go.uber.org/zap"
)

// RecordType discriminates tool-call records from event records.
type RecordType string

const (
	TypeToolCall RecordType = "tool_call"
	TypeEvent    RecordType = "event"
)

// Orchestration event names.
const (
	EventMessageReceived             = "message_received"
	EventInputNormalized             = "input_normalized"
	EventResponseGenerated           = "response_generated"
	EventResponseGenerationFailed    = "response_generation_failed"
	EventAuthenticationErrorDetected = "authentication_error_detected"
	EventAuthenticationErrorRepeated = "authentication_error_repeated"
	EventMaxIterationsReached        = "max_iterations_reached"
	EventResponseCancelled           = "response_cancelled"
)

// Record is one line of the audit log.
type Record struct {
	Timestamp     string         `json:"timestamp"`
	Type          RecordType     `json:"type"`
	CorrelationID string         `json:"correlation_id"`
	CallerID      string         `json:"caller_id"`
	ToolName      string         `json:"tool_name,omitempty"`
	Arguments     map[string]any `json:"arguments,omitempty"`
	Result        map[string]any `json:"result,omitempty"`
	Context       map[string]any `json:"context,omitempty"`
	Event         string         `json:"event,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
	Outcome       models.Outcome `json:"outcome"`
}

// Logger writes audit records. It never returns errors to callers: I/O and
// encoding failures are reported on the diagnostic logger and dropped.
// A disabled Logger (or a nil *Logger) is a no-op.
type Logger struct {
	enabled bool
	log     *zap.Logger
	now     func() time.Time

	mu     sync.Mutex // held only while writing one record
	w      io.Writer
	closer io.Closer
}

// Option customises a Logger.
type Option func(*Logger)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) {
		l.now = now
	}
}

// WithDiagnostics sets the logger that receives swallowed write failures.
func WithDiagnostics(log *zap.Logger) Option {
	return func(l *Logger) {
		l.log = logging.OrNop(log)
	}
}

// New creates an enabled Logger writing to w.
func New(w io.Writer, opts ...Option) *Logger {
	l := &Logger{
		enabled: true,
		w:       w,
		log:     zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Disabled returns a Logger whose calls are no-ops.
func Disabled() *Logger {
	return &Logger{log: zap.NewNop(), now: time.Now}
}

// Open creates dir if needed and opens a new append-only file named after the
// current process start, e.g. logs/audit_20250301_120000.jsonl.
func Open(dir string, opts ...Option) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}

	name := fmt.Sprintf("audit_%s_%d.jsonl", time.Now().Format("20060102_150405"), os.Getpid())
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open audit file: %w", err)
	}

	l := New(f, opts...)
	l.closer = f
	return l, nil
}

// LogToolCall records one tool invocation.
func (l *Logger) LogToolCall(correlationID, toolName, callerID string, args, result, context map[string]any, outcome models.Outcome) {
	if l == nil || !l.enabled {
		return
	}
	l.write(Record{
		Type:          TypeToolCall,
		CorrelationID: correlationID,
		CallerID:      callerID,
		ToolName:      toolName,
		Arguments:     args,
		Result:        result,
		Context:       context,
		Outcome:       outcome,
	})
}

// LogEvent records one orchestration-level event.
func (l *Logger) LogEvent(correlationID, callerID, event string, details map[string]any, outcome models.Outcome) {
	if l == nil || !l.enabled {
		return
	}
	l.write(Record{
		Type:          TypeEvent,
		CorrelationID: correlationID,
		CallerID:      callerID,
		Event:         event,
		Details:       details,
		Outcome:       outcome,
	})
}

// Close closes the underlying file, if the Logger owns one.
func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closer.Close()
}

func (l *Logger) write(rec Record) {
	rec.Timestamp = l.now().UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(rec)
	if err != nil {
		l.log.Warn("audit record dropped", zap.String("type", string(rec.Type)), zap.Error(err))
		return
	}
	data = append(data, '\n')

	l.mu.Lock()
	_, err = l.w.Write(data)
	l.mu.Unlock()

	if err != nil {
		l.log.Warn("audit write failed",
			zap.String("correlation_id", rec.CorrelationID),
			zap.String("type", string(rec.Type)),
			zap.Error(err))
	}
}
