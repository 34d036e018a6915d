package domain

import "time"

// Role identifies the author of a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MaxHistoryTurns is the number of most recent turns forwarded to a provider
// with each chat call. Older turns are dropped, not summarized.
const MaxHistoryTurns = 10

// ChatTurn is a single message in a conversation with the journal assistant.
type ChatTurn struct {
	ID        string    `json:"id,omitempty"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// RecentTurns returns the last n turns of history, preserving order.
func RecentTurns(history []ChatTurn, n int) []ChatTurn {
	if n <= 0 {
		return nil
	}
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

// ConversationMeta stores aggregate conversation state.
type ConversationMeta struct {
	ConversationID string
	LastActivity   time.Time
	Turns          int
}
