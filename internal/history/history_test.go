package history

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHistory_AppendOnly(t *testing.T) {
	h := New(NewMessage(RoleUser, "write a tweet"))
	require.Equal(t, 1, h.Len())

	require.Equal(t, 2, h.Append(NewMessage(RoleAssistant, "draft 1")))
	require.Equal(t, 3, h.Append(NewMessage(RoleCritique, "too long")))

	msgs := h.Messages()
	require.Len(t, msgs, 3)
	require.Equal(t, []Role{RoleUser, RoleAssistant, RoleCritique}, []Role{msgs[0].Role, msgs[1].Role, msgs[2].Role})
}

func TestHistory_MessagesIsACopy(t *testing.T) {
	h := New(NewMessage(RoleUser, "original"))

	msgs := h.Messages()
	msgs[0].Content = "tampered"

	last, ok := h.Last()
	require.True(t, ok)
	require.Equal(t, "original", last.Content)
}

func TestHistory_LastOf(t *testing.T) {
	h := New()
	_, ok := h.Last()
	require.False(t, ok)

	h.Append(NewMessage(RoleUser, "req"))
	h.Append(NewMessage(RoleAssistant, "draft 1"))
	h.Append(NewMessage(RoleCritique, "critique"))

	draft, ok := h.LastOf(RoleAssistant)
	require.True(t, ok)
	require.Equal(t, "draft 1", draft.Content)

	_, ok = New(NewMessage(RoleUser, "req")).LastOf(RoleAssistant)
	require.False(t, ok)
}
