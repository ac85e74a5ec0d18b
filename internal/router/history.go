package router

import "github.com/felixgeelhaar/stressguard/internal/provider"

// DefaultMaxHistory is the number of messages kept for the chat generator
const DefaultMaxHistory = 20

// appendTurn adds a user/assistant exchange and drops the oldest messages
// beyond max. Pairs are dropped together so history never starts with an
// assistant turn.
func appendTurn(history []provider.Message, user, assistant string, max int) []provider.Message {
	history = append(history,
		provider.Message{Role: provider.RoleUser, Content: user},
		provider.Message{Role: provider.RoleAssistant, Content: assistant},
	)
	if max <= 0 || len(history) <= max {
		return history
	}

	drop := len(history) - max
	if drop%2 == 1 {
		drop++
	}
	if drop >= len(history) {
		return nil
	}

	// Copy so the caller's old backing array is not retained
	trimmed := make([]provider.Message, len(history)-drop)
	copy(trimmed, history[drop:])
	return trimmed
}
