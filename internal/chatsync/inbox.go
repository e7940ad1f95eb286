package chatsync

import (
	"sort"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/angelmondragon/rentsync/pkg/errors"
	"github.com/angelmondragon/rentsync/pkg/rentalapi"
)

const defaultPreviewLength = 80

// Inbox owns the session-scoped unread model shared by both polling shapes:
// conversation summaries, per-conversation cursors, and the notification
// list. The poll loop writes while the ops surface reads, hence the mutex.
type Inbox struct {
	mu sync.Mutex

	selfID     string
	previewLen int
	now        func() time.Time

	conversations map[string]*Conversation
	cursors       map[string]*Cursor
	entries       []NotificationEntry
	known         map[string]struct{}
}

// NewInbox builds an empty inbox for the actor with the given user id.
func NewInbox(selfID string, previewLen int) *Inbox {
	if previewLen <= 0 {
		previewLen = defaultPreviewLength
	}
	return &Inbox{
		selfID:        selfID,
		previewLen:    previewLen,
		now:           time.Now,
		conversations: make(map[string]*Conversation),
		cursors:       make(map[string]*Cursor),
		known:         make(map[string]struct{}),
	}
}

// ObserveResult summarizes what one conversation fetch contributed.
type ObserveResult struct {
	// NewInbound counts newly observed messages authored by the counterparty.
	NewInbound int
	// EntriesAdded counts notification entries actually inserted after
	// id-based de-duplication.
	EntriesAdded int
}

// Observe folds a fetched conversation into the inbox. The cursor always
// advances over the full tail, own messages included, so the sender's
// outbound traffic never re-surfaces; only counterparty-authored messages
// raise notifications and unread counts.
func (in *Inbox) Observe(key string, messages []rentalapi.ChatMessage, lastOnly bool) ObserveResult {
	in.mu.Lock()
	defer in.mu.Unlock()

	cursor := in.cursor(key)
	tail := cursor.Advance(messages, lastOnly)

	conv := in.conversation(key)
	if len(messages) > 0 {
		last := messages[len(messages)-1]
		conv.LastMessage = last.Message
		conv.LastMessageAt = last.CreatedAt
	}

	var result ObserveResult
	for _, msg := range tail {
		if msg.SenderID.String() == in.selfID {
			continue
		}
		result.NewInbound++
		if in.insertEntry(key, msg) {
			result.EntriesAdded++
		}
	}

	if result.NewInbound > 0 {
		conv.Unread += result.NewInbound
		conv.State = StateUnread
		conv.HasNewMessage = true
	}
	return result
}

// insertEntry adds a notification entry unless one with the same id exists.
func (in *Inbox) insertEntry(key string, msg rentalapi.ChatMessage) bool {
	id := msg.ID.String()
	if _, exists := in.known[id]; exists {
		return false
	}
	in.known[id] = struct{}{}
	in.entries = append(in.entries, NotificationEntry{
		ID:              id,
		ConversationKey: key,
		Title:           "New message",
		Message:         truncate(msg.Message, in.previewLen),
		Time:            msg.CreatedAt,
		Type:            entryTypeChat,
	})
	return true
}

// MarkRead clears the unread state of exactly one conversation and removes
// its notification entries. Other conversations are untouched.
func (in *Inbox) MarkRead(key string) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	conv, ok := in.conversations[key]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "conversation not tracked")
	}
	conv.Unread = 0
	conv.State = StateSeen
	conv.HasNewMessage = false
	in.cursor(key).MarkRead(in.now())

	kept := in.entries[:0]
	for _, entry := range in.entries {
		if entry.ConversationKey == key {
			delete(in.known, entry.ID)
			continue
		}
		kept = append(kept, entry)
	}
	in.entries = kept
	return nil
}

// MarkAllRead clears the whole notification list and zeroes every unread
// count, advancing all read watermarks to now. This is the bell-close
// behavior; it shares the cursor state with MarkRead instead of keeping an
// independent read-tracking axis.
func (in *Inbox) MarkAllRead() {
	in.mu.Lock()
	defer in.mu.Unlock()

	now := in.now()
	for _, conv := range in.conversations {
		if conv.Unread > 0 || conv.State == StateUnread {
			conv.Unread = 0
			conv.State = StateSeen
			conv.HasNewMessage = false
		}
	}
	for _, cursor := range in.cursors {
		cursor.MarkRead(now)
	}
	in.entries = nil
	in.known = make(map[string]struct{})
}

// Entries returns a copy of the notification list, newest last.
func (in *Inbox) Entries() []NotificationEntry {
	in.mu.Lock()
	defer in.mu.Unlock()
	out := make([]NotificationEntry, len(in.entries))
	copy(out, in.entries)
	return out
}

// Conversations returns the tracked summaries, most recent activity first.
func (in *Inbox) Conversations() []Conversation {
	in.mu.Lock()
	defer in.mu.Unlock()
	out := make([]Conversation, 0, len(in.conversations))
	for _, conv := range in.conversations {
		out = append(out, *conv)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastMessageAt.Equal(out[j].LastMessageAt) {
			return out[i].Key < out[j].Key
		}
		return out[i].LastMessageAt.After(out[j].LastMessageAt)
	})
	return out
}

// Unread returns the unread count for one conversation.
func (in *Inbox) Unread(key string) int {
	in.mu.Lock()
	defer in.mu.Unlock()
	if conv, ok := in.conversations[key]; ok {
		return conv.Unread
	}
	return 0
}

// UnreadTotal sums unread counts across all conversations.
func (in *Inbox) UnreadTotal() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	total := 0
	for _, conv := range in.conversations {
		total += conv.Unread
	}
	return total
}

// CursorFor returns a copy of the conversation's cursor.
func (in *Inbox) CursorFor(key string) Cursor {
	in.mu.Lock()
	defer in.mu.Unlock()
	if cursor, ok := in.cursors[key]; ok {
		return *cursor
	}
	return Cursor{}
}

func (in *Inbox) cursor(key string) *Cursor {
	if cursor, ok := in.cursors[key]; ok {
		return cursor
	}
	cursor := &Cursor{}
	in.cursors[key] = cursor
	return cursor
}

func (in *Inbox) conversation(key string) *Conversation {
	if conv, ok := in.conversations[key]; ok {
		return conv
	}
	conv := &Conversation{Key: key, State: StateUnseen}
	in.conversations[key] = conv
	return conv
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
