// Package history holds the per-run conversation: an append-only, chronological
// sequence of messages. A History belongs to exactly one run and is never shared.
package history

import "time"

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleCritique  Role = "critique"
)

// Message is a single turn. It is a value type; once appended it is never modified.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMessage stamps a message with the current time.
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content, CreatedAt: time.Now().UTC()}
}

// History is an ordered, append-only list of messages.
type History struct {
	messages []Message
}

// New creates a history seeded with the given messages.
func New(first ...Message) *History {
	h := &History{messages: make([]Message, 0, len(first)+8)}
	h.messages = append(h.messages, first...)
	return h
}

// Append adds one message and returns the new length.
func (h *History) Append(msg Message) int {
	h.messages = append(h.messages, msg)
	return len(h.messages)
}

// Len returns the number of messages.
func (h *History) Len() int { return len(h.messages) }

// Messages returns a copy of the messages in chronological order.
func (h *History) Messages() []Message {
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Last returns the most recent message.
func (h *History) Last() (Message, bool) {
	if len(h.messages) == 0 {
		return Message{}, false
	}
	return h.messages[len(h.messages)-1], true
}

// LastOf returns the most recent message with the given role.
func (h *History) LastOf(role Role) (Message, bool) {
	for i := len(h.messages) - 1; i >= 0; i-- {
		if h.messages[i].Role == role {
			return h.messages[i], true
		}
	}
	return Message{}, false
}
