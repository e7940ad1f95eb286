package chatsync

import (
	"context"
	"errors"
	"strings"

	pkgerrors "github.com/angelmondragon/rentsync/pkg/errors"
	"github.com/angelmondragon/rentsync/pkg/logger"
	"github.com/angelmondragon/rentsync/pkg/rentalapi"
)

// conversationAPI is the slice of the chat API the customer shape needs.
type conversationAPI interface {
	Conversation(ctx context.Context, counterpartyID string) ([]rentalapi.ChatMessage, error)
	Send(ctx context.Context, params rentalapi.SendParams) error
}

// CustomerSyncParams configure the single-counterparty synchronizer.
type CustomerSyncParams struct {
	API      conversationAPI
	Inbox    *Inbox
	Notifier Notifier
	Logger   *logger.Logger

	// SelfID is the resolved customer id; AdminID the platform's fixed
	// admin identity, threaded from config rather than hard-coded.
	SelfID  string
	AdminID string

	// LastOnly restores the legacy behavior of only ever surfacing the
	// newest message per poll.
	LastOnly bool
}

// CustomerSync polls the one conversation a customer has: theirs with the
// admin account.
type CustomerSync struct {
	api      conversationAPI
	inbox    *Inbox
	notifier Notifier
	logg     *logger.Logger
	selfID   string
	adminID  string
	lastOnly bool
}

func NewCustomerSync(params CustomerSyncParams) (*CustomerSync, error) {
	if params.API == nil {
		return nil, errors.New("chat api client is required")
	}
	if params.Inbox == nil {
		return nil, errors.New("inbox is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if strings.TrimSpace(params.SelfID) == "" {
		return nil, errors.New("self id is required")
	}
	if strings.TrimSpace(params.AdminID) == "" {
		return nil, errors.New("admin id is required")
	}
	notifier := params.Notifier
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &CustomerSync{
		api:      params.API,
		inbox:    params.Inbox,
		notifier: notifier,
		logg:     params.Logger,
		selfID:   params.SelfID,
		adminID:  params.AdminID,
		lastOnly: params.LastOnly,
	}, nil
}

func (s *CustomerSync) Shape() string { return "customer" }

func (s *CustomerSync) Inbox() *Inbox { return s.inbox }

// PollOnce fetches the admin conversation and folds it into the inbox. The
// alert plays at most once per cycle.
func (s *CustomerSync) PollOnce(ctx context.Context) error {
	messages, err := s.api.Conversation(ctx, s.adminID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch admin conversation")
	}
	result := s.inbox.Observe(s.adminID, messages, s.lastOnly)
	if result.NewInbound > 0 {
		s.notifier.Play(ctx)
	}
	return nil
}

// SendMessage posts a message to the admin and refreshes the conversation
// so the sender's own view updates without waiting for the next tick. The
// send error is returned to the caller so typed input can be preserved; a
// refresh failure after a successful send is only logged. A customer has
// exactly one counterparty, so any other receiver is rejected.
func (s *CustomerSync) SendMessage(ctx context.Context, receiverID, text string) error {
	if receiverID != "" && receiverID != s.adminID {
		return pkgerrors.New(pkgerrors.CodeValidation, "customers can only message the platform admin")
	}
	err := s.api.Send(ctx, rentalapi.SendParams{
		SenderID:   s.selfID,
		ReceiverID: s.adminID,
		Message:    text,
	})
	if err != nil {
		return err
	}
	s.refresh(ctx)
	return nil
}

func (s *CustomerSync) refresh(ctx context.Context) {
	messages, err := s.api.Conversation(ctx, s.adminID)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "post-send refresh failed")
		return
	}
	s.inbox.Observe(s.adminID, messages, s.lastOnly)
}
