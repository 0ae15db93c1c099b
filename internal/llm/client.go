package llm

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/reflexion-go/internal/config"
	"github.com/comigor/reflexion-go/internal/metrics"
)

// ErrEmptyResponse is returned when the service answers without any choice.
var ErrEmptyResponse = errors.New("llm: response has no choices")

// Client is minimal subset of openai.Client used by the pipelines; it is easy to mock in tests.
type Client interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// NewClient creates a new OpenAI client
func NewClient(cfg config.LLMConfig) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return openai.NewClientWithConfig(clientCfg)
}

// FirstChoice returns the message of the first choice.
func FirstChoice(resp openai.ChatCompletionResponse) (openai.ChatCompletionMessage, error) {
	if len(resp.Choices) == 0 {
		return openai.ChatCompletionMessage{}, ErrEmptyResponse
	}
	return resp.Choices[0].Message, nil
}

type instrumented struct {
	next Client
	step string
}

// Instrument wraps a client so every call is counted and timed under step.
func Instrument(next Client, step string) Client {
	return &instrumented{next: next, step: step}
}

func (c *instrumented) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	start := time.Now()
	resp, err := c.next.CreateChatCompletion(ctx, req)
	metrics.LLMLatency.WithLabelValues(c.step).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(c.step, "error").Inc()
		return resp, err
	}
	metrics.LLMRequestsTotal.WithLabelValues(c.step, "success").Inc()
	metrics.LLMTokensTotal.WithLabelValues(c.step, "prompt").Add(float64(resp.Usage.PromptTokens))
	metrics.LLMTokensTotal.WithLabelValues(c.step, "completion").Add(float64(resp.Usage.CompletionTokens))
	return resp, nil
}
