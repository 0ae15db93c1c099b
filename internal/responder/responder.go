// Package responder produces a StructuredAnswer in a single schema-constrained
// model call. The model is forced to call the AnswerQuestion function and its
// arguments are validated locally before being accepted.
package responder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"

	"github.com/comigor/reflexion-go/internal/history"
	"github.com/comigor/reflexion-go/internal/llm"
	"github.com/comigor/reflexion-go/internal/logger"
	"github.com/comigor/reflexion-go/internal/metrics"
	"github.com/comigor/reflexion-go/internal/prompt"
)

const (
	// Pipeline is the name responder calls are logged and recorded under.
	Pipeline = "answer"
	// ToolName is the function the model must call.
	ToolName = "AnswerQuestion"
	// DefaultAnswerWords is the answer length target.
	DefaultAnswerWords = 250
	// StepRespond names the single model call in errors, logs and metrics.
	StepRespond = "respond"
)

// StepError reports a failed respond call together with what was sent.
type StepError struct {
	RunID string
	Step  string
	Sent  []openai.ChatCompletionMessage
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("responder: %s step failed (run %s, %d messages sent): %v", e.Step, e.RunID, len(e.Sent), e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Recorder receives the request and the accepted answer of each call.
type Recorder interface {
	Record(ctx context.Context, runID, pipeline string, msg history.Message) error
}

// Responder answers questions in the StructuredAnswer shape.
type Responder struct {
	client      llm.Client
	model       string
	answerWords int
	now         func() time.Time
	recorder    Recorder
}

// Option configures a Responder.
type Option func(*Responder)

// WithClock overrides the time injected into the system instruction.
func WithClock(now func() time.Time) Option { return func(r *Responder) { r.now = now } }

// WithRecorder attaches a transcript recorder.
func WithRecorder(rec Recorder) Option { return func(r *Responder) { r.recorder = rec } }

// New creates a responder. A non-positive answerWords falls back to DefaultAnswerWords.
func New(client llm.Client, model string, answerWords int, opts ...Option) *Responder {
	if answerWords <= 0 {
		answerWords = DefaultAnswerWords
	}
	r := &Responder{
		client:      client,
		model:       model,
		answerWords: answerWords,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Request builds the chat request sent for a question.
func (r *Responder) Request(question string) openai.ChatCompletionRequest {
	msgs := []history.Message{{Role: history.RoleUser, Content: question}}
	messages := prompt.Render(prompt.ResponderInstruction(r.now(), r.answerWords), msgs, prompt.GeneratorRoles)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: prompt.AnswerFormatReminder,
	})

	return openai.ChatCompletionRequest{
		Model:    r.model,
		Messages: messages,
		Tools: []openai.Tool{{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        ToolName,
				Description: "Answer the question, reflect on the answer and propose follow-up search queries.",
				Strict:      true,
				Parameters:  Schema(r.answerWords),
			},
		}},
		ToolChoice: openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: ToolName},
		},
	}
}

// Respond makes one call and returns a validated answer. Service failures and
// schema violations are both fatal; nothing is retried or partially returned.
func (r *Responder) Respond(ctx context.Context, question string) (StructuredAnswer, error) {
	runID := uuid.NewString()
	answer, err := r.respond(ctx, runID, question)
	metrics.RecordRun(Pipeline, err)
	if errors.Is(err, ErrSchemaViolation) {
		metrics.SchemaRejectionsTotal.Inc()
	}
	return answer, err
}

func (r *Responder) respond(ctx context.Context, runID, question string) (StructuredAnswer, error) {
	log := logger.ForRun(runID, Pipeline)
	r.record(ctx, runID, history.NewMessage(history.RoleUser, question))

	req := r.Request(question)
	resp, err := r.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return fail(log, runID, req, err)
	}
	msg, err := llm.FirstChoice(resp)
	if err != nil {
		return fail(log, runID, req, err)
	}

	var args string
	found := false
	for _, call := range msg.ToolCalls {
		if call.Function.Name == ToolName {
			args, found = call.Function.Arguments, true
			break
		}
	}
	if !found {
		log.Warn("model did not call the answer function", "content", msg.Content)
		return StructuredAnswer{}, &ValidationError{Reason: "no " + ToolName + " call in response", Raw: msg.Content}
	}

	answer, err := Parse(args)
	if err != nil {
		log.Warn("structured answer rejected", "error", err, "arguments", args)
		return StructuredAnswer{}, err
	}
	r.record(ctx, runID, history.NewMessage(history.RoleAssistant, args))
	log.Info("structured answer accepted", "search_queries", len(answer.SearchQueries))
	return answer, nil
}

func fail(log *slog.Logger, runID string, req openai.ChatCompletionRequest, err error) (StructuredAnswer, error) {
	log.Error("LLM call failed", "step", StepRespond, "messages_sent", len(req.Messages), "error", err)
	return StructuredAnswer{}, &StepError{RunID: runID, Step: StepRespond, Sent: req.Messages, Err: err}
}

func (r *Responder) record(ctx context.Context, runID string, msg history.Message) {
	if r.recorder == nil {
		return
	}
	if err := r.recorder.Record(ctx, runID, Pipeline, msg); err != nil {
		logger.ForRun(runID, Pipeline).Warn("failed to record message", "error", err)
	}
}
