package responder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/comigor/reflexion-go/internal/history"
	"github.com/comigor/reflexion-go/internal/llm"
	"github.com/comigor/reflexion-go/internal/prompt"
)

type mockLLM struct {
	calls    []openai.ChatCompletionResponse
	requests []openai.ChatCompletionRequest
	err      error
}

func (m *mockLLM) CreateChatCompletion(ctx context.Context, r openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.requests = append(m.requests, r)
	if m.err != nil {
		return openai.ChatCompletionResponse{}, m.err
	}
	if len(m.calls) == 0 {
		panic("mockLLM: no more responses configured for request: " + r.Messages[0].Content)
	}
	resp := m.calls[0]
	m.calls = m.calls[1:]
	return resp, nil
}

func toolCallResponse(name, args string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{
		Message: openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleAssistant,
			ToolCalls: []openai.ToolCall{{
				ID:       "call_1",
				Type:     openai.ToolTypeFunction,
				Function: openai.FunctionCall{Name: name, Arguments: args},
			}},
		},
	}}}
}

type memRecorder struct{ msgs []history.Message }

func (r *memRecorder) Record(_ context.Context, _, _ string, msg history.Message) error {
	r.msgs = append(r.msgs, msg)
	return nil
}

var fixedNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func TestRespond_Success(t *testing.T) {
	mock := &mockLLM{calls: []openai.ChatCompletionResponse{toolCallResponse(ToolName, validJSON)}}
	rec := &memRecorder{}
	r := New(mock, "gpt", 0, WithClock(func() time.Time { return fixedNow }), WithRecorder(rec))

	a, err := r.Respond(context.Background(), "What is reflexion?")
	require.NoError(t, err)
	require.Len(t, a.SearchQueries, 2)

	req := mock.requests[0]
	require.Equal(t, "gpt", req.Model)
	require.Len(t, req.Messages, 3)
	require.Equal(t, prompt.ResponderInstruction(fixedNow, DefaultAnswerWords), req.Messages[0].Content)
	require.Contains(t, req.Messages[0].Content, "2026-10-15T12:00:00Z")
	require.Equal(t, "What is reflexion?", req.Messages[1].Content)
	require.Equal(t, prompt.AnswerFormatReminder, req.Messages[2].Content)

	require.Len(t, req.Tools, 1)
	require.Equal(t, ToolName, req.Tools[0].Function.Name)
	require.Equal(t, openai.ToolChoice{Type: openai.ToolTypeFunction, Function: openai.ToolFunction{Name: ToolName}}, req.ToolChoice)

	require.Len(t, rec.msgs, 2)
	require.Equal(t, history.RoleUser, rec.msgs[0].Role)
	require.Equal(t, validJSON, rec.msgs[1].Content)
}

func TestRespond_ServiceFailure(t *testing.T) {
	mock := &mockLLM{err: context.DeadlineExceeded}
	r := New(mock, "gpt", 250, WithClock(func() time.Time { return fixedNow }))

	_, err := r.Respond(context.Background(), "q")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Contains(t, err.Error(), "respond step failed")
	require.False(t, errors.Is(err, ErrSchemaViolation))

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	require.Equal(t, StepRespond, stepErr.Step)
	require.NotEmpty(t, stepErr.RunID)
	require.Equal(t, r.Request("q").Messages, stepErr.Sent)
	require.Equal(t, mock.requests[0].Messages, stepErr.Sent)
}

func TestRespond_NoToolCall(t *testing.T) {
	mock := &mockLLM{calls: []openai.ChatCompletionResponse{{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "free text answer"}}},
	}}}

	_, err := New(mock, "gpt", 250).Respond(context.Background(), "q")
	require.ErrorIs(t, err, ErrSchemaViolation)
}

func TestRespond_WrongToolName(t *testing.T) {
	mock := &mockLLM{calls: []openai.ChatCompletionResponse{toolCallResponse("SomethingElse", validJSON)}}

	_, err := New(mock, "gpt", 250).Respond(context.Background(), "q")
	require.ErrorIs(t, err, ErrSchemaViolation)
}

func TestRespond_RejectsTooManyQueries(t *testing.T) {
	args := `{"answer": "a", "reflection": {"missing": "m", "superfluous": "s"}, "search_queries": ["1", "2", "3", "4"]}`
	mock := &mockLLM{calls: []openai.ChatCompletionResponse{toolCallResponse(ToolName, args)}}
	rec := &memRecorder{}

	a, err := New(mock, "gpt", 250, WithRecorder(rec)).Respond(context.Background(), "q")
	require.ErrorIs(t, err, ErrSchemaViolation)
	require.Empty(t, a.SearchQueries)
	require.Len(t, rec.msgs, 1, "rejected answers are not recorded")
}

func TestRespond_EmptyChoices(t *testing.T) {
	mock := &mockLLM{calls: []openai.ChatCompletionResponse{{}}}

	_, err := New(mock, "gpt", 250).Respond(context.Background(), "q")
	require.ErrorIs(t, err, llm.ErrEmptyResponse)
	require.False(t, errors.Is(err, ErrSchemaViolation))

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	require.Equal(t, StepRespond, stepErr.Step)
	require.Len(t, stepErr.Sent, 3)
}
