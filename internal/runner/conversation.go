// File: internal/runner/conversation.go
package runner

import (
	"github.com/xkilldash9x/kosher-cli/api/schemas"
)

// Conversation is the append-only turn history of one scenario. Turns arrive
// in step order because steps execute strictly sequentially; the conversation
// enforces the ordering instead of trusting the caller.
type Conversation struct {
	turns []schemas.ConversationTurn
}

func NewConversation() *Conversation {
	return &Conversation{}
}

// Append records a completed turn. Turns with a step index at or below the
// last recorded one are dropped; out-of-order appends indicate a harness bug
// and must never reorder history.
func (c *Conversation) Append(turn schemas.ConversationTurn) bool {
	if n := len(c.turns); n > 0 && turn.Step.Index <= c.turns[n-1].Step.Index {
		return false
	}
	c.turns = append(c.turns, turn)
	return true
}

// Len returns the number of recorded turns.
func (c *Conversation) Len() int { return len(c.turns) }

// All returns the full history in step order. The returned slice is a copy;
// recorded turns are never mutated.
func (c *Conversation) All() []schemas.ConversationTurn {
	out := make([]schemas.ConversationTurn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Window returns a bounded view for prompt construction: the first turn
// (which anchors the scenario, typically the opening navigation) plus the
// most recent turns, at most n in total. Relative order is always preserved.
func (c *Conversation) Window(n int) []schemas.ConversationTurn {
	if n <= 0 || len(c.turns) <= n {
		return c.All()
	}
	out := make([]schemas.ConversationTurn, 0, n)
	out = append(out, c.turns[0])
	out = append(out, c.turns[len(c.turns)-(n-1):]...)
	return out
}
