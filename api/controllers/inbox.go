package controllers

import (
	"net/http"

	"github.com/angelmondragon/rentsync/api/responses"
	"github.com/angelmondragon/rentsync/api/validators"
	"github.com/angelmondragon/rentsync/internal/chatsync"
	"github.com/angelmondragon/rentsync/pkg/logger"
)

// InboxController exposes the synchronizer's unread model to the local UI
// process: badge state reads and the read/send mutations.
type InboxController struct {
	sync chatsync.Synchronizer
	logg *logger.Logger
}

func NewInboxController(sync chatsync.Synchronizer, logg *logger.Logger) *InboxController {
	return &InboxController{sync: sync, logg: logg}
}

type inboxResponse struct {
	Entries     []chatsync.NotificationEntry `json:"entries"`
	UnreadTotal int                          `json:"unread_total"`
}

// GetInbox returns the notification list plus the unread total.
func (c *InboxController) GetInbox(w http.ResponseWriter, r *http.Request) {
	inbox := c.sync.Inbox()
	responses.WriteSuccess(w, inboxResponse{
		Entries:     inbox.Entries(),
		UnreadTotal: inbox.UnreadTotal(),
	})
}

// GetConversations returns the per-conversation summaries, most recent first.
func (c *InboxController) GetConversations(w http.ResponseWriter, r *http.Request) {
	responses.WriteSuccess(w, c.sync.Inbox().Conversations())
}

type markReadRequest struct {
	ConversationID string `json:"conversation_id" validate:"required"`
}

// MarkRead clears the unread state of one conversation.
func (c *InboxController) MarkRead(w http.ResponseWriter, r *http.Request) {
	var req markReadRequest
	if err := validators.DecodeJSONBody(r, &req); err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}
	if err := c.sync.Inbox().MarkRead(req.ConversationID); err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}
	responses.WriteSuccess(w, map[string]any{
		"conversation_id": req.ConversationID,
		"unread_total":    c.sync.Inbox().UnreadTotal(),
	})
}

// MarkAllRead clears the whole notification list.
func (c *InboxController) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	c.sync.Inbox().MarkAllRead()
	responses.WriteSuccess(w, map[string]any{"unread_total": 0})
}

type sendRequest struct {
	ReceiverID string `json:"receiver_id"`
	Message    string `json:"message" validate:"required,max=2000"`
}

// Send proxies an outbound chat message through the remote API. On failure
// the typed error is returned so the UI keeps the typed input for retry.
func (c *InboxController) Send(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := validators.DecodeJSONBody(r, &req); err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}
	if err := c.sync.SendMessage(r.Context(), req.ReceiverID, req.Message); err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}
	responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]any{
		"receiver_id": req.ReceiverID,
	})
}
