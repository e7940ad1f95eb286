package chatsync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pkgerrors "github.com/angelmondragon/rentsync/pkg/errors"
	"github.com/angelmondragon/rentsync/pkg/logger"
	"github.com/angelmondragon/rentsync/pkg/rentalapi"
	"go.uber.org/multierr"
)

// adminAPI is the slice of the chat API the fan-out shape needs.
type adminAPI interface {
	ListUsers(ctx context.Context, roleFilter string) ([]rentalapi.User, error)
	Conversation(ctx context.Context, counterpartyID string) ([]rentalapi.ChatMessage, error)
	Send(ctx context.Context, params rentalapi.SendParams) error
}

// AdminSyncParams configure the fan-out synchronizer.
type AdminSyncParams struct {
	API      adminAPI
	Inbox    *Inbox
	Notifier Notifier
	Logger   *logger.Logger

	SelfID     string
	RoleFilter string
	LastOnly   bool
}

// AdminSync sweeps every known customer's conversation per cycle. One
// customer's failure neither aborts the sweep nor advances that customer's
// cursor, so the failed fetch is retried whole on the next interval.
type AdminSync struct {
	api        adminAPI
	inbox      *Inbox
	notifier   Notifier
	logg       *logger.Logger
	selfID     string
	roleFilter string
	lastOnly   bool
}

func NewAdminSync(params AdminSyncParams) (*AdminSync, error) {
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
	notifier := params.Notifier
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &AdminSync{
		api:        params.API,
		inbox:      params.Inbox,
		notifier:   notifier,
		logg:       params.Logger,
		selfID:     params.SelfID,
		roleFilter: params.RoleFilter,
		lastOnly:   params.LastOnly,
	}, nil
}

func (s *AdminSync) Shape() string { return "admin" }

func (s *AdminSync) Inbox() *Inbox { return s.inbox }

// PollOnce lists users, filters down to customers, and fetches each one's
// conversation in turn. The alert plays at most once per sweep, not once
// per customer; per-customer failures are combined into the returned error
// for the cycle summary log.
func (s *AdminSync) PollOnce(ctx context.Context) error {
	users, err := s.api.ListUsers(ctx, s.roleFilter)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list users")
	}

	var errs []error
	newInbound := 0
	for _, user := range users {
		key := user.Key()
		if key == "" || key == s.selfID || !user.IsCustomer() {
			continue
		}
		messages, err := s.api.Conversation(ctx, key)
		if err != nil {
			convCtx := s.logg.WithConversationID(ctx, key)
			s.logg.Warn(s.logg.WithField(convCtx, "error", err.Error()), "customer conversation fetch failed")
			errs = append(errs, fmt.Errorf("customer %s: %w", key, err))
			continue
		}
		result := s.inbox.Observe(key, messages, s.lastOnly)
		newInbound += result.NewInbound
	}

	if newInbound > 0 {
		s.notifier.Play(ctx)
	}
	return multierr.Combine(errs...)
}

// SendMessage posts a message to the given customer on behalf of the admin
// (the API infers the sender from the token) and refreshes that
// conversation.
func (s *AdminSync) SendMessage(ctx context.Context, receiverID, text string) error {
	if strings.TrimSpace(receiverID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "receiver id is required")
	}
	err := s.api.Send(ctx, rentalapi.SendParams{
		ReceiverID: receiverID,
		Message:    text,
	})
	if err != nil {
		return err
	}
	s.refresh(ctx, receiverID)
	return nil
}

func (s *AdminSync) refresh(ctx context.Context, key string) {
	messages, err := s.api.Conversation(ctx, key)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "post-send refresh failed")
		return
	}
	s.inbox.Observe(key, messages, s.lastOnly)
}
