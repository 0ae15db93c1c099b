package refine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMaxMessages(t *testing.T) {
	p := DefaultMaxMessages
	require.False(t, p.Done(6))
	require.True(t, p.Done(7))
}

// TestNext_PureFunctionOfLength checks every (state, length) pair twice.
func TestNext_PureFunctionOfLength(t *testing.T) {
	for n := 0; n <= 10; n++ {
		first := Next(StateGenerate, n, DefaultMaxMessages)
		require.Equal(t, first, Next(StateGenerate, n, DefaultMaxMessages))
		if n > 6 {
			require.Equal(t, StateDone, first, "length %d", n)
		} else {
			require.Equal(t, StateReflect, first, "length %d", n)
		}
		require.Equal(t, StateGenerate, Next(StateReflect, n, DefaultMaxMessages))
		require.Equal(t, StateDone, Next(StateDone, n, DefaultMaxMessages))
	}
}
