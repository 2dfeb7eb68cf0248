package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/kosher-cli/api/schemas"
)

func turnAt(index int) schemas.ConversationTurn {
	return schemas.ConversationTurn{
		Step:    schemas.Step{Index: index, Kind: schemas.StepWhen, Text: "step"},
		Outcome: schemas.ActionOutcome{Status: schemas.OutcomeSuccess},
	}
}

func TestConversation_AppendKeepsOrder(t *testing.T) {
	conv := NewConversation()

	assert.True(t, conv.Append(turnAt(0)))
	assert.True(t, conv.Append(turnAt(1)))
	assert.True(t, conv.Append(turnAt(4)))

	all := conv.All()
	require.Len(t, all, 3)
	assert.Equal(t, 0, all[0].Step.Index)
	assert.Equal(t, 1, all[1].Step.Index)
	assert.Equal(t, 4, all[2].Step.Index)
}

func TestConversation_RejectsOutOfOrderAppend(t *testing.T) {
	conv := NewConversation()
	require.True(t, conv.Append(turnAt(2)))

	assert.False(t, conv.Append(turnAt(1)), "earlier step index must be rejected")
	assert.False(t, conv.Append(turnAt(2)), "duplicate step index must be rejected")
	assert.Equal(t, 1, conv.Len())
}

func TestConversation_AllReturnsCopy(t *testing.T) {
	conv := NewConversation()
	conv.Append(turnAt(0))

	all := conv.All()
	all[0].Step.Index = 99

	assert.Equal(t, 0, conv.All()[0].Step.Index, "history is immutable")
}

func TestConversation_Window(t *testing.T) {
	conv := NewConversation()
	for i := 0; i < 8; i++ {
		conv.Append(turnAt(i))
	}

	t.Run("smaller history returned whole", func(t *testing.T) {
		window := conv.Window(10)
		assert.Len(t, window, 8)
	})

	t.Run("pins first turn plus recent suffix", func(t *testing.T) {
		window := conv.Window(4)
		require.Len(t, window, 4)
		assert.Equal(t, 0, window[0].Step.Index, "opening turn stays pinned")
		assert.Equal(t, 5, window[1].Step.Index)
		assert.Equal(t, 6, window[2].Step.Index)
		assert.Equal(t, 7, window[3].Step.Index)
	})

	t.Run("non-positive bound means everything", func(t *testing.T) {
		assert.Len(t, conv.Window(0), 8)
		assert.Len(t, conv.Window(-1), 8)
	})
}
