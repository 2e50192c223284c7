// Package memory provides bounded, time-decayed conversation history keyed by
// conversation id.
package memory

import (
	"context"
	"time"
)

// RetentionWindow is how long a stored message stays eligible for recall.
// Older messages are purged lazily on the next read or write.
const RetentionWindow = 7 * 24 * time.Hour

// DefaultMaxPairs is the retention size used when a caller has no policy of
// its own, in user/assistant pairs.
const DefaultMaxPairs = 10

// Role indicates the message author type.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single stored conversation turn. Immutable once stored;
// ordering is insertion order.
type Message struct {
	Role      Role      `bson:"role" json:"role"`
	Content   string    `bson:"content" json:"content"`
	CreatedAt time.Time `bson:"timestamp" json:"timestamp"`
}

// Store persists per-conversation history. Implementations must apply the
// retention window on every read and write, and cap persisted history to
// 2×maxPairs on every write.
//
// maxPairs is a per-call policy, not a property of the conversation:
// different callers may use different caps against the same id, and the
// persisted history after any write reflects the cap of that write. A
// low-cap write therefore discards messages a later high-cap read would
// have wanted. That is the intended behavior; do not union caps.
type Store interface {
	// History returns at most 2×maxPairs of the freshest messages for id,
	// oldest first, after purging expired ones. The purge result is
	// persisted so repeated reads amortize the filter cost.
	History(ctx context.Context, id string, maxPairs int) ([]Message, error)

	// AppendExchange appends one user/assistant pair stamped with the
	// current time, purges expired messages, truncates to the freshest
	// 2×maxPairs, and persists the result.
	AppendExchange(ctx context.Context, id, userText, assistantText string, maxPairs int) error

	// Clear removes all stored history for id.
	Clear(ctx context.Context, id string) error
}

// purgeExpired drops messages older than the retention window relative to
// now. Messages without a timestamp are kept, matching how pre-timestamp
// history was grandfathered in.
func purgeExpired(messages []Message, now time.Time) []Message {
	cutoff := now.Add(-RetentionWindow)
	kept := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.CreatedAt.IsZero() || m.CreatedAt.After(cutoff) {
			kept = append(kept, m)
		}
	}
	return kept
}

// capPairs keeps only the freshest 2×maxPairs messages.
func capPairs(messages []Message, maxPairs int) []Message {
	if maxPairs <= 0 {
		maxPairs = DefaultMaxPairs
	}
	if limit := 2 * maxPairs; len(messages) > limit {
		return messages[len(messages)-limit:]
	}
	return messages
}
