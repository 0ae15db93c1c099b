package prompt

import (
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/comigor/reflexion-go/internal/history"
)

func sampleHistory() []history.Message {
	return []history.Message{
		{Role: history.RoleUser, Content: "tweet about Go"},
		{Role: history.RoleAssistant, Content: "draft"},
		{Role: history.RoleCritique, Content: "shorter"},
	}
}

func roles(msgs []openai.ChatCompletionMessage) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Role
	}
	return out
}

func TestRender_GeneratorView(t *testing.T) {
	out := Render(GenerationInstruction, sampleHistory(), GeneratorRoles)

	require.Equal(t, []string{"system", "user", "assistant", "user"}, roles(out))
	require.Equal(t, GenerationInstruction, out[0].Content)
	require.Equal(t, "shorter", out[3].Content)
}

func TestRender_CriticView(t *testing.T) {
	out := Render(ReflectionInstruction, sampleHistory(), CriticRoles)

	require.Equal(t, []string{"system", "user", "user", "assistant"}, roles(out))
	require.Equal(t, "draft", out[2].Content)
}

func TestRender_NoSystemAndUnknownRole(t *testing.T) {
	out := Render("", []history.Message{{Role: "narrator", Content: "x"}}, GeneratorRoles)

	require.Len(t, out, 1)
	require.Equal(t, openai.ChatMessageRoleUser, out[0].Role)
}

func TestRender_DoesNotMutateInput(t *testing.T) {
	msgs := sampleHistory()
	_ = Render(GenerationInstruction, msgs, CriticRoles)
	require.Equal(t, sampleHistory(), msgs)
}

func TestResponderInstruction(t *testing.T) {
	now := time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)
	got := ResponderInstruction(now, 250)

	require.Contains(t, got, "Current time: 2026-10-15T09:30:00Z")
	require.Contains(t, got, "~250 word answer")
}
