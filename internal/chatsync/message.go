package chatsync

import "time"

// ReadState is the per-conversation unread state machine. It cycles for the
// lifetime of the session: unseen → unread on new inbound, unread → seen on
// markRead, seen → unread when new inbound arrives again.
type ReadState int

const (
	StateUnseen ReadState = iota
	StateUnread
	StateSeen
)

func (s ReadState) String() string {
	switch s {
	case StateUnread:
		return "unread"
	case StateSeen:
		return "seen"
	default:
		return "unseen"
	}
}

// Conversation is the derived per-counterparty summary. It is never
// persisted: every field is recomputed from polls and read mutations.
type Conversation struct {
	Key           string    `json:"key"`
	LastMessage   string    `json:"last_message"`
	LastMessageAt time.Time `json:"last_message_at"`
	Unread        int       `json:"unread"`
	State         ReadState `json:"-"`
	HasNewMessage bool      `json:"has_new_message"`
}

// NotificationEntry is the ephemeral bell/dropdown record, distinct from the
// persisted chat message it mirrors. Its ID equals the triggering message id
// and doubles as the de-duplication key.
type NotificationEntry struct {
	ID              string    `json:"id"`
	ConversationKey string    `json:"conversation_key"`
	Title           string    `json:"title"`
	Message         string    `json:"message"`
	Time            time.Time `json:"time"`
	Read            bool      `json:"read"`
	Type            string    `json:"type"`
}

const entryTypeChat = "chat"
