// Package refine runs the tweet refinement loop: a generator drafts, a critic
// critiques, and the two alternate over a shared history until the stopping
// policy is satisfied.
package refine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/qmuntal/stateless"

	"github.com/comigor/reflexion-go/internal/history"
	"github.com/comigor/reflexion-go/internal/logger"
	"github.com/comigor/reflexion-go/internal/metrics"
)

// Pipeline is the name runs of this package are logged and recorded under.
const Pipeline = "tweet"

// Step names reported in errors and logs.
const (
	StepGenerate = "generate"
	StepReflect  = "reflect"
)

// DefaultMaxSteps caps FSM transitions when no limit is configured and the
// policy is not a MaxMessages threshold.
const DefaultMaxSteps = 32

// ErrStepLimit is returned when a run exceeds its transition budget.
var ErrStepLimit = errors.New("refine: step limit reached before the stopping policy ended the run")

// StepError reports which step failed and what was sent to it.
type StepError struct {
	RunID      string
	Step       string
	HistoryLen int
	Sent       []history.Message
	Err        error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("refine: %s step failed (run %s, history length %d): %v", e.Step, e.RunID, e.HistoryLen, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Recorder receives every message appended during a run.
type Recorder interface {
	Record(ctx context.Context, runID, pipeline string, msg history.Message) error
}

// Result of a finished run. Output is the last generator draft.
type Result struct {
	RunID   string            `json:"run_id"`
	Output  history.Message   `json:"output"`
	History []history.Message `json:"history"`
	Trace   []State           `json:"trace"`
}

// Controller alternates generator and critic calls.
type Controller struct {
	generator Generator
	critic    Critic
	policy    Policy
	maxSteps  int
	recorder  Recorder
}

// Option configures a Controller.
type Option func(*Controller)

// WithPolicy replaces the stopping rule.
func WithPolicy(p Policy) Option { return func(c *Controller) { c.policy = p } }

// WithMaxSteps caps the number of FSM transitions per run.
func WithMaxSteps(n int) Option { return func(c *Controller) { c.maxSteps = n } }

// WithRecorder attaches a transcript recorder.
func WithRecorder(r Recorder) Option { return func(c *Controller) { c.recorder = r } }

// New creates a controller with the default MaxMessages policy.
func New(generator Generator, critic Critic, opts ...Option) *Controller {
	c := &Controller{
		generator: generator,
		critic:    critic,
		policy:    DefaultMaxMessages,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxSteps <= 0 {
		c.maxSteps = DefaultMaxSteps
		if m, ok := c.policy.(MaxMessages); ok {
			c.maxSteps = StepsFor(int(m))
		}
	}
	return c
}

// Run refines a single request. Each run owns a fresh history.
func (c *Controller) Run(ctx context.Context, request string) (Result, error) {
	res, err := c.run(ctx, request)
	metrics.RecordRun(Pipeline, err)
	if err == nil {
		metrics.HistoryLength.Observe(float64(len(res.History)))
	}
	return res, err
}

func (c *Controller) run(ctx context.Context, request string) (Result, error) {
	runID := uuid.NewString()
	log := logger.ForRun(runID, Pipeline)
	h := history.New()
	c.append(ctx, runID, h, history.NewMessage(history.RoleUser, request))

	res := Result{RunID: runID, Trace: []State{StateGenerate}}

	fsm := stateless.NewStateMachine(StateGenerate)
	draftedTo := func(target State) stateless.GuardFunc {
		return func(_ context.Context, _ ...any) bool {
			return Next(StateGenerate, h.Len(), c.policy) == target
		}
	}

	// State: GENERATE
	// Transitions:
	//   - On Drafted -> DONE when the policy is satisfied
	//   - On Drafted -> REFLECT otherwise
	fsm.Configure(StateGenerate).
		Permit(TriggerDrafted, StateDone, draftedTo(StateDone)).
		Permit(TriggerDrafted, StateReflect, draftedTo(StateReflect))

	// State: REFLECT
	// Transitions:
	//   - On Critiqued -> GENERATE, always
	fsm.Configure(StateReflect).
		Permit(TriggerCritiqued, StateGenerate)

	fsm.OnTransitioned(func(_ context.Context, t stateless.Transition) {
		res.Trace = append(res.Trace, t.Destination.(State))
		log.Debug("FSM transition", "from", t.Source, "to", t.Destination, "history_len", h.Len())
	})

	for steps := 0; ; steps++ {
		state := fsm.MustState().(State)
		if state == StateDone {
			break
		}
		if steps >= c.maxSteps {
			log.Warn("step limit reached", "max_steps", c.maxSteps, "history_len", h.Len())
			res.History = h.Messages()
			return res, fmt.Errorf("%w (max %d)", ErrStepLimit, c.maxSteps)
		}

		var trigger Trigger
		switch state {
		case StateGenerate:
			sent := h.Messages()
			draft, err := c.generator.Generate(ctx, sent)
			if err != nil {
				return c.fail(log, res, h, StepGenerate, sent, err)
			}
			c.append(ctx, runID, h, draft)
			trigger = TriggerDrafted
		case StateReflect:
			sent := h.Messages()
			critique, err := c.critic.Critique(ctx, sent)
			if err != nil {
				return c.fail(log, res, h, StepReflect, sent, err)
			}
			c.append(ctx, runID, h, critique)
			trigger = TriggerCritiqued
		}

		if err := fsm.FireCtx(ctx, trigger); err != nil {
			res.History = h.Messages()
			return res, fmt.Errorf("refine: fire %s from %s: %w", trigger, state, err)
		}
	}

	res.History = h.Messages()
	if out, ok := h.LastOf(history.RoleAssistant); ok {
		res.Output = out
	}
	log.Info("refinement finished", "history_len", h.Len(), "transitions", len(res.Trace)-1)
	return res, nil
}

func (c *Controller) append(ctx context.Context, runID string, h *history.History, msg history.Message) {
	h.Append(msg)
	if c.recorder == nil {
		return
	}
	if err := c.recorder.Record(ctx, runID, Pipeline, msg); err != nil {
		logger.ForRun(runID, Pipeline).Warn("failed to record message", "error", err)
	}
}

func (c *Controller) fail(log *slog.Logger, res Result, h *history.History, step string, sent []history.Message, err error) (Result, error) {
	log.Error("step failed", "step", step, "history_len", h.Len(), "error", err)
	res.History = h.Messages()
	return res, &StepError{
		RunID:      res.RunID,
		Step:       step,
		HistoryLen: h.Len(),
		Sent:       sent,
		Err:        err,
	}
}
