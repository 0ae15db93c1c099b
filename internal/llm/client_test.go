package llm

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/comigor/reflexion-go/internal/config"
	"github.com/comigor/reflexion-go/internal/metrics"
)

type stubClient struct {
	resp openai.ChatCompletionResponse
	err  error
}

func (s *stubClient) CreateChatCompletion(ctx context.Context, r openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return s.resp, s.err
}

func TestInstrument_CountsSuccessAndTokens(t *testing.T) {
	step := "test_success"
	c := Instrument(&stubClient{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "ok"}}},
		Usage:   openai.Usage{PromptTokens: 7, CompletionTokens: 3},
	}}, step)

	resp, err := c.CreateChatCompletion(context.Background(), openai.ChatCompletionRequest{})
	require.NoError(t, err)
	require.Equal(t, "ok", resp.Choices[0].Message.Content)
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.LLMRequestsTotal.WithLabelValues(step, "success")))
	require.Equal(t, 7.0, testutil.ToFloat64(metrics.LLMTokensTotal.WithLabelValues(step, "prompt")))
	require.Equal(t, 3.0, testutil.ToFloat64(metrics.LLMTokensTotal.WithLabelValues(step, "completion")))
}

func TestInstrument_PropagatesError(t *testing.T) {
	step := "test_error"
	c := Instrument(&stubClient{err: context.DeadlineExceeded}, step)

	_, err := c.CreateChatCompletion(context.Background(), openai.ChatCompletionRequest{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.LLMRequestsTotal.WithLabelValues(step, "error")))
}

func TestFirstChoice(t *testing.T) {
	_, err := FirstChoice(openai.ChatCompletionResponse{})
	require.ErrorIs(t, err, ErrEmptyResponse)

	msg, err := FirstChoice(openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "a"}}}})
	require.NoError(t, err)
	require.Equal(t, "a", msg.Content)
}

func TestNewClient(t *testing.T) {
	require.NotNil(t, NewClient(config.LLMConfig{APIKey: "k", BaseURL: "http://localhost:1", Timeout: 1}))
}
