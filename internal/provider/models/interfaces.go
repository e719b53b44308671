package models

import (
	"context"
)

// Provider defines the interface for streaming LLM backends.
type Provider interface {
	// Name identifies the backend for logs and metrics (e.g. "openai").
	Name() string

	// Stream issues a streaming chat completion with tool_choice "auto".
	// Errors returned here or from the stream are *ProviderError where the
	// backend error could be classified.
	Stream(ctx context.Context, req *ChatRequest) (ResponseStream, error)
}

// ResponseStream provides access to streaming response chunks.
type ResponseStream interface {
	// Next returns the next chunk, or io.EOF when done
	Next() (*StreamChunk, error)

	// Close releases resources
	Close() error
}
