// Package prompt turns a system instruction and a run's history into the
// ordered message list sent to the model.
package prompt

import (
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/reflexion-go/internal/history"
)

// GenerationInstruction drives the tweet generator.
const GenerationInstruction = "You are a twitter techie influencer assistant tasked with writing excellent twitter posts." +
	" Generate the best twitter post possible for the user's request." +
	" If the user provides critique, respond with a revised version of your previous attempts."

// ReflectionInstruction drives the tweet critic.
const ReflectionInstruction = "You are a viral twitter influencer grading a tweet. Generate critique and recommendations for the user's tweet." +
	" Always provide detailed recommendations, including requests for length, virality, style, etc."

// AnswerFormatReminder follows the user's question in the responder prompt.
const AnswerFormatReminder = "Answer the user's question above using the required format."

const responderTemplate = `You are expert researcher.
Current time: %s

1. Provide a detailed ~%d word answer.
2. Reflect and critique your answer. Be severe to maximize improvement.
3. Recommend search queries to research information and improve your answer.`

// ResponderInstruction returns the responder system instruction with the
// current time and the answer length target injected.
func ResponderInstruction(now time.Time, words int) string {
	return fmt.Sprintf(responderTemplate, now.Format(time.RFC3339), words)
}

// RoleMap decides which chat role each history role is sent as.
type RoleMap map[history.Role]string

// GeneratorRoles presents critiques to the generator as user feedback.
var GeneratorRoles = RoleMap{
	history.RoleUser:      openai.ChatMessageRoleUser,
	history.RoleAssistant: openai.ChatMessageRoleAssistant,
	history.RoleCritique:  openai.ChatMessageRoleUser,
}

// CriticRoles flips the conversation: drafts arrive as the user's tweet and
// earlier critiques are the critic's own turns.
var CriticRoles = RoleMap{
	history.RoleUser:      openai.ChatMessageRoleUser,
	history.RoleAssistant: openai.ChatMessageRoleUser,
	history.RoleCritique:  openai.ChatMessageRoleAssistant,
}

// Render builds the request messages: the system instruction (skipped when
// empty) followed by every history message, in order, mapped through roles.
// Roles missing from the map fall back to user.
func Render(system string, msgs []history.Message, roles RoleMap) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, m := range msgs {
		role, ok := roles[m.Role]
		if !ok {
			role = openai.ChatMessageRoleUser
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}
