// Package testhelpers provides shared utilities for integration testing
package testhelpers

import (
	"context"
	"io"
	"slices"
	"sync"

	orchmodels "github.com/Cyclone1070/pharmassist/internal/orchestrator/models"
	"github.com/Cyclone1070/pharmassist/internal/provider/models"
)

// turn is one scripted model response
type turn struct {
	chunks    []models.StreamChunk
	openErr   error // returned from Stream
	streamErr error // returned from Next after chunks
}

// MockProvider is a controllable streaming provider. Each Stream call
// consumes the next scripted turn.
type MockProvider struct {
	mu       sync.Mutex
	turns    []turn
	index    int
	requests []models.ChatRequest

	// OnStreamCalled is a callback for observing Stream calls
	OnStreamCalled func(*models.ChatRequest)
}

// NewMockProvider creates a new mock provider with no scripted turns
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// WithTextResponse adds a turn that streams text in the given pieces and
// finishes with "stop"
func (m *MockProvider) WithTextResponse(pieces ...string) *MockProvider {
	chunks := make([]models.StreamChunk, 0, len(pieces)+1)
	for _, p := range pieces {
		chunks = append(chunks, models.StreamChunk{Delta: p})
	}
	chunks = append(chunks, models.StreamChunk{FinishReason: models.FinishReasonStop})
	return m.WithChunks(chunks...)
}

// WithToolCallResponse adds a turn requesting calls. Each call's id and name
// arrive first and its arguments follow split across two fragments, the way
// OpenAI streams them.
func (m *MockProvider) WithToolCallResponse(calls ...orchmodels.ToolCall) *MockProvider {
	var chunks []models.StreamChunk
	for i, c := range calls {
		half := len(c.Arguments) / 2
		chunks = append(chunks,
			models.StreamChunk{ToolCalls: []models.ToolCallFragment{{Index: i, ID: c.ID, Name: c.Name}}},
			models.StreamChunk{ToolCalls: []models.ToolCallFragment{{Index: i, Arguments: c.Arguments[:half]}}},
			models.StreamChunk{ToolCalls: []models.ToolCallFragment{{Index: i, Arguments: c.Arguments[half:]}}},
		)
	}
	chunks = append(chunks, models.StreamChunk{FinishReason: models.FinishReasonToolCalls})
	return m.WithChunks(chunks...)
}

// WithChunks adds a turn that streams exactly chunks
func (m *MockProvider) WithChunks(chunks ...models.StreamChunk) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, turn{chunks: chunks})
	return m
}

// WithError adds a turn whose Stream call fails
func (m *MockProvider) WithError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, turn{openErr: err})
	return m
}

// WithStreamError adds a turn that streams chunks and then fails
func (m *MockProvider) WithStreamError(err error, chunks ...models.StreamChunk) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, turn{chunks: chunks, streamErr: err})
	return m
}

// Name implements the Provider interface
func (m *MockProvider) Name() string {
	return "mock"
}

// Stream implements the Provider interface
func (m *MockProvider) Stream(ctx context.Context, req *models.ChatRequest) (models.ResponseStream, error) {
	if m.OnStreamCalled != nil {
		m.OnStreamCalled(req)
	}

	m.mu.Lock()
	m.requests = append(m.requests, models.ChatRequest{
		Messages: slices.Clone(req.Messages),
		Tools:    slices.Clone(req.Tools),
	})
	var t turn
	if m.index < len(m.turns) {
		t = m.turns[m.index]
	} else {
		// Default text response when the script runs out
		t = turn{chunks: []models.StreamChunk{{Delta: "Done"}, {FinishReason: models.FinishReasonStop}}}
	}
	m.index++
	m.mu.Unlock()

	if t.openErr != nil {
		return nil, t.openErr
	}
	return &mockStream{ctx: ctx, chunks: t.chunks, err: t.streamErr}, nil
}

// Calls returns how many times Stream was called
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index
}

// Requests returns copies of every request received
func (m *MockProvider) Requests() []models.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.requests)
}

type mockStream struct {
	ctx    context.Context
	chunks []models.StreamChunk
	err    error
	pos    int
	closed bool
}

func (s *mockStream) Next() (*models.StreamChunk, error) {
	if err := s.ctx.Err(); err != nil {
		return nil, err
	}
	if s.closed {
		return nil, io.EOF
	}
	if s.pos < len(s.chunks) {
		chunk := s.chunks[s.pos]
		s.pos++
		return &chunk, nil
	}
	if s.err != nil {
		return nil, s.err
	}
	return nil, io.EOF
}

func (s *mockStream) Close() error {
	s.closed = true
	return nil
}
