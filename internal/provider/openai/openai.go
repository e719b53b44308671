// Package openai streams chat completions from OpenAI-compatible endpoints.
package openai

import (
	"context"
	"errors"
	"io"

	provider "github.com/Cyclone1070/pharmassist/internal/provider/models"
	"github.com/sashabaranov/go-openai"
)

const providerName = "openai"

// Provider implements provider.Provider on top of go-openai.
type Provider struct {
	client ChatClient
	model  string
}

// New creates a provider that requests model through client.
func New(client ChatClient, model string) *Provider {
	return &Provider{client: client, model: model}
}

// Name implements provider.Provider.
func (p *Provider) Name() string {
	return providerName
}

// Stream opens a streaming chat completion with tool_choice "auto".
func (p *Provider) Stream(ctx context.Context, req *provider.ChatRequest) (provider.ResponseStream, error) {
	request := openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: toOpenAIMessages(req.Messages),
		Stream:   true,
	}
	if len(req.Tools) > 0 {
		request.Tools = toOpenAITools(req.Tools)
		request.ToolChoice = "auto"
	}

	s, err := p.client.CreateChatCompletionStream(ctx, request)
	if err != nil {
		return nil, mapOpenAIError(err)
	}
	return &stream{stream: s}, nil
}

type stream struct {
	stream *openai.ChatCompletionStream
	done   bool
}

// Next returns the next chunk carrying content, tool-call fragments or a
// finish reason. Keep-alive and usage-only events are skipped.
func (s *stream) Next() (*provider.StreamChunk, error) {
	for {
		if s.done {
			return nil, io.EOF
		}

		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			s.done = true
			return nil, io.EOF
		}
		if err != nil {
			s.done = true
			return nil, mapOpenAIError(err)
		}

		if chunk := fromOpenAIChunk(resp); chunk != nil {
			return chunk, nil
		}
	}
}

// Close releases the HTTP response body.
func (s *stream) Close() error {
	s.done = true
	return s.stream.Close()
}
