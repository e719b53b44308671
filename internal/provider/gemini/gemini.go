package gemini

import (
	"context"
	"io"
	"iter"

	provider "github.com/Cyclone1070/pharmassist/internal/provider/models"
	"google.golang.org/genai"
)

const providerName = "gemini"

// GeminiProvider implements the Provider interface for Google Gemini.
type GeminiProvider struct {
	client    GeminiClient
	modelName string
}

// New creates a new GeminiProvider with the specified client and model.
func New(client GeminiClient, modelName string) *GeminiProvider {
	return &GeminiProvider{
		client:    client,
		modelName: modelName,
	}
}

// Name implements provider.Provider.
func (p *GeminiProvider) Name() string {
	return providerName
}

// Stream converts the conversation and opens a streaming generation.
func (p *GeminiProvider) Stream(ctx context.Context, req *provider.ChatRequest) (provider.ResponseStream, error) {
	contents, system := toGeminiContents(req.Messages)
	if len(contents) == 0 {
		return nil, &provider.ProviderError{
			Code:    provider.ErrorCodeInvalidRequest,
			Message: "conversation has no user or model turns",
		}
	}

	config := &genai.GenerateContentConfig{
		SafetySettings:    defaultSafetySettings(),
		SystemInstruction: system,
	}
	if len(req.Tools) > 0 {
		config.Tools = toGeminiTools(req.Tools)
		config.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: genai.FunctionCallingConfigModeAuto},
		}
	}

	next, stop := iter.Pull2(p.client.GenerateContentStream(ctx, p.modelName, contents, config))
	return &stream{next: next, stop: stop}, nil
}

// stream adapts the SDK's push iterator to provider.ResponseStream.
type stream struct {
	next func() (*genai.GenerateContentResponse, error, bool)
	stop func()

	calls int
	done  bool
}

// Next returns the next non-empty chunk, or io.EOF.
func (s *stream) Next() (*provider.StreamChunk, error) {
	for {
		if s.done {
			return nil, io.EOF
		}

		resp, err, ok := s.next()
		if !ok {
			s.done = true
			return nil, io.EOF
		}
		if err != nil {
			s.done = true
			return nil, mapGeminiError(err)
		}

		chunk, err := fromGeminiResponse(resp, &s.calls)
		if err != nil {
			s.done = true
			return nil, err
		}
		if chunk != nil {
			return chunk, nil
		}
	}
}

// Close stops the underlying iterator.
func (s *stream) Close() error {
	s.done = true
	s.stop()
	return nil
}
