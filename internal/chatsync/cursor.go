package chatsync

import (
	"time"

	"github.com/angelmondragon/rentsync/pkg/rentalapi"
)

// Cursor is the unified per-conversation watermark: what has already been
// observed, and what has been read. It replaces the three ad-hoc strategies
// the screens used to carry (last-id, length-delta, timestamp-threshold)
// with one (last_seen_id, last_seen_at) pair plus a read watermark.
type Cursor struct {
	LastSeenID string
	LastSeenAt time.Time
	LastReadAt time.Time

	// Seen counts messages observed so far. It backs the length-delta
	// fallback when the last seen id vanishes from a response.
	Seen int
}

// Advance moves the cursor over a freshly fetched conversation and returns
// the tail of messages not yet observed. Server order is authoritative: the
// slice is taken as delivered, never sorted.
//
// The cursor is monotonic. A response shorter than what was already observed
// (transient server inconsistency) advances nothing and returns no tail, so
// the same messages can never re-trigger.
func (c *Cursor) Advance(messages []rentalapi.ChatMessage, lastOnly bool) []rentalapi.ChatMessage {
	if len(messages) == 0 {
		return nil
	}

	tail := c.tail(messages, lastOnly)

	last := messages[len(messages)-1]
	if len(messages) >= c.Seen {
		c.LastSeenID = last.ID.String()
		if last.CreatedAt.After(c.LastSeenAt) {
			c.LastSeenAt = last.CreatedAt
		}
		c.Seen = len(messages)
	}
	return tail
}

func (c *Cursor) tail(messages []rentalapi.ChatMessage, lastOnly bool) []rentalapi.ChatMessage {
	last := messages[len(messages)-1]

	// First observation: baseline on the newest message only, matching the
	// original behavior of surfacing just the latest on mount instead of
	// replaying the whole history.
	if c.LastSeenID == "" && c.Seen == 0 {
		return messages[len(messages)-1:]
	}

	if c.LastSeenID == last.ID.String() {
		return nil
	}

	if lastOnly {
		// Compatibility mode: only the newest message is ever surfaced,
		// even when several arrived since the previous poll.
		return messages[len(messages)-1:]
	}

	// Scan from the end for the last seen id; everything past it is new.
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].ID.String() == c.LastSeenID {
			return messages[i+1:]
		}
	}

	// Last seen id not present. Fall back to the length delta when the
	// conversation grew; otherwise treat the response as stale.
	if len(messages) > c.Seen {
		return messages[c.Seen:]
	}
	return nil
}

// MarkRead advances the read watermark to now.
func (c *Cursor) MarkRead(now time.Time) {
	if now.After(c.LastReadAt) {
		c.LastReadAt = now
	}
}
