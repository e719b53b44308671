package openai

import (
	"context"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

// ChatClient is the subset of the go-openai client the provider uses.
type ChatClient interface {
	CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionStream, error)
}

// NewClient builds a go-openai client. An empty baseURL keeps the SDK default,
// any other value targets an OpenAI-compatible endpoint.
func NewClient(apiKey, baseURL string, timeout time.Duration) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: timeout}
	}
	return openai.NewClientWithConfig(cfg)
}
