package refine

import (
	"context"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/reflexion-go/internal/history"
	"github.com/comigor/reflexion-go/internal/llm"
	"github.com/comigor/reflexion-go/internal/prompt"
)

// Generator produces a new draft from the history.
type Generator interface {
	Generate(ctx context.Context, msgs []history.Message) (history.Message, error)
}

// Critic produces a critique of the latest draft.
type Critic interface {
	Critique(ctx context.Context, msgs []history.Message) (history.Message, error)
}

// chatStep is one model round trip with a fixed instruction and role mapping.
type chatStep struct {
	client      llm.Client
	model       string
	instruction string
	roles       prompt.RoleMap
	role        history.Role
}

func (s *chatStep) run(ctx context.Context, msgs []history.Message) (history.Message, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    s.model,
		Messages: prompt.Render(s.instruction, msgs, s.roles),
	})
	if err != nil {
		return history.Message{}, err
	}
	choice, err := llm.FirstChoice(resp)
	if err != nil {
		return history.Message{}, err
	}
	return history.NewMessage(s.role, choice.Content), nil
}

// LLMGenerator drafts tweets with a chat model.
type LLMGenerator struct{ step chatStep }

// NewGenerator creates a generator using the tweet-writing instruction.
func NewGenerator(client llm.Client, model string) *LLMGenerator {
	return &LLMGenerator{step: chatStep{
		client:      client,
		model:       model,
		instruction: prompt.GenerationInstruction,
		roles:       prompt.GeneratorRoles,
		role:        history.RoleAssistant,
	}}
}

func (g *LLMGenerator) Generate(ctx context.Context, msgs []history.Message) (history.Message, error) {
	return g.step.run(ctx, msgs)
}

// LLMCritic grades drafts with a chat model.
type LLMCritic struct{ step chatStep }

// NewCritic creates a critic using the tweet-grading instruction.
func NewCritic(client llm.Client, model string) *LLMCritic {
	return &LLMCritic{step: chatStep{
		client:      client,
		model:       model,
		instruction: prompt.ReflectionInstruction,
		roles:       prompt.CriticRoles,
		role:        history.RoleCritique,
	}}
}

func (c *LLMCritic) Critique(ctx context.Context, msgs []history.Message) (history.Message, error) {
	return c.step.run(ctx, msgs)
}
