package chatsync

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	pkgerrors "github.com/angelmondragon/rentsync/pkg/errors"
	"github.com/angelmondragon/rentsync/pkg/rentalapi"
)

type fakeAdminAPI struct {
	listUsersFunc    func(ctx context.Context, roleFilter string) ([]rentalapi.User, error)
	conversationFunc func(ctx context.Context, counterpartyID string) ([]rentalapi.ChatMessage, error)
	sendFunc         func(ctx context.Context, params rentalapi.SendParams) error
}

func (f *fakeAdminAPI) ListUsers(ctx context.Context, roleFilter string) ([]rentalapi.User, error) {
	return f.listUsersFunc(ctx, roleFilter)
}

func (f *fakeAdminAPI) Conversation(ctx context.Context, counterpartyID string) ([]rentalapi.ChatMessage, error) {
	return f.conversationFunc(ctx, counterpartyID)
}

func (f *fakeAdminAPI) Send(ctx context.Context, params rentalapi.SendParams) error {
	if f.sendFunc == nil {
		return nil
	}
	return f.sendFunc(ctx, params)
}

func customer(id string) rentalapi.User {
	return rentalapi.User{ID: rentalapi.FlexID(id), RoleID: 2, Role: "customer"}
}

func newAdminSyncForTest(t *testing.T, api *fakeAdminAPI, notifier Notifier) *AdminSync {
	t.Helper()
	sync, err := NewAdminSync(AdminSyncParams{
		API:      api,
		Inbox:    NewInbox("1", 0),
		Notifier: notifier,
		Logger:   testLogger(),
		SelfID:   "1",
	})
	if err != nil {
		t.Fatalf("build admin sync: %v", err)
	}
	return sync
}

func TestAdminSyncFanOutDetectsGrowth(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	conversations := map[string][]rentalapi.ChatMessage{
		"7": {
			msg("600", "7", base),
			msg("601", "1", base.Add(time.Minute)),
			msg("602", "7", base.Add(2*time.Minute)),
		},
		"9": {msg("700", "9", base)},
	}
	api := &fakeAdminAPI{
		listUsersFunc: func(context.Context, string) ([]rentalapi.User, error) {
			return []rentalapi.User{customer("7"), customer("9")}, nil
		},
		conversationFunc: func(_ context.Context, key string) ([]rentalapi.ChatMessage, error) {
			return conversations[key], nil
		},
	}
	notifier := &countingNotifier{}
	sync := newAdminSyncForTest(t, api, notifier)

	if err := sync.PollOnce(context.Background()); err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	if notifier.plays != 1 {
		t.Fatalf("expected one alert per sweep, got %d", notifier.plays)
	}

	// Customer 7 sends two more messages before the next sweep.
	conversations["7"] = append(conversations["7"],
		msg("603", "7", base.Add(3*time.Minute)),
		msg("604", "7", base.Add(4*time.Minute)),
	)
	if err := sync.PollOnce(context.Background()); err != nil {
		t.Fatalf("second sweep: %v", err)
	}

	if got := sync.Inbox().Unread("7"); got != 3 {
		t.Fatalf("expected 3 unread for customer 7, got %d", got)
	}
	if got := sync.Inbox().Unread("9"); got != 1 {
		t.Fatalf("expected 1 unread for customer 9, got %d", got)
	}
	if notifier.plays != 2 {
		t.Fatalf("alert must fire once per sweep with news, got %d", notifier.plays)
	}
}

func TestAdminSyncSkipsSelfAndNonCustomers(t *testing.T) {
	fetched := map[string]bool{}
	api := &fakeAdminAPI{
		listUsersFunc: func(context.Context, string) ([]rentalapi.User, error) {
			return []rentalapi.User{
				customer("7"),
				{ID: "1", Role: "admin"},
				{ID: "2", Role: "admin", RoleID: 1},
				{},
			}, nil
		},
		conversationFunc: func(_ context.Context, key string) ([]rentalapi.ChatMessage, error) {
			fetched[key] = true
			return nil, nil
		},
	}
	sync := newAdminSyncForTest(t, api, nil)

	if err := sync.PollOnce(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(fetched) != 1 || !fetched["7"] {
		t.Fatalf("expected only customer 7 to be fetched, got %v", fetched)
	}
}

func TestAdminSyncPartialFailureIsolation(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	api := &fakeAdminAPI{
		listUsersFunc: func(context.Context, string) ([]rentalapi.User, error) {
			return []rentalapi.User{customer("7"), customer("8"), customer("9")}, nil
		},
		conversationFunc: func(_ context.Context, key string) ([]rentalapi.ChatMessage, error) {
			if key == "8" {
				return nil, errors.New("customer 8 endpoint down")
			}
			return []rentalapi.ChatMessage{msg("60"+key, key, base)}, nil
		},
	}
	sync := newAdminSyncForTest(t, api, nil)

	err := sync.PollOnce(context.Background())
	if err == nil {
		t.Fatal("expected the sweep to report customer 8's failure")
	}
	if !strings.Contains(err.Error(), "customer 8") {
		t.Fatalf("expected the failing customer in the error, got %v", err)
	}

	// The healthy conversations still updated.
	if got := sync.Inbox().Unread("7"); got != 1 {
		t.Fatalf("customer 7 should have updated, unread=%d", got)
	}
	if got := sync.Inbox().Unread("9"); got != 1 {
		t.Fatalf("customer 9 should have updated, unread=%d", got)
	}
	// The failed customer's cursor is untouched so the fetch retries whole.
	if cursor := sync.Inbox().CursorFor("8"); cursor.LastSeenID != "" || cursor.Seen != 0 {
		t.Fatalf("customer 8 cursor must not move on failure: %+v", cursor)
	}
}

func TestAdminSyncListUsersFailureAbortsSweep(t *testing.T) {
	api := &fakeAdminAPI{
		listUsersFunc: func(context.Context, string) ([]rentalapi.User, error) {
			return nil, errors.New("users endpoint down")
		},
		conversationFunc: func(context.Context, string) ([]rentalapi.ChatMessage, error) {
			t.Fatal("no conversation fetch expected when listing fails")
			return nil, nil
		},
	}
	sync := newAdminSyncForTest(t, api, nil)

	err := sync.PollOnce(context.Background())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestAdminSyncSendOmitsSenderAndRefreshes(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	refreshed := false
	api := &fakeAdminAPI{
		listUsersFunc: func(context.Context, string) ([]rentalapi.User, error) {
			return nil, nil
		},
		conversationFunc: func(_ context.Context, key string) ([]rentalapi.ChatMessage, error) {
			refreshed = true
			return []rentalapi.ChatMessage{msg("800", "1", base)}, nil
		},
		sendFunc: func(_ context.Context, params rentalapi.SendParams) error {
			if params.SenderID != "" {
				t.Fatalf("admin send must not carry a sender id, got %q", params.SenderID)
			}
			if params.ReceiverID != "7" {
				t.Fatalf("unexpected receiver %q", params.ReceiverID)
			}
			return nil
		},
	}
	sync := newAdminSyncForTest(t, api, nil)

	if err := sync.SendMessage(context.Background(), "7", "hello customer"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if !refreshed {
		t.Fatal("expected a post-send refresh of the conversation")
	}
}

func TestAdminSyncSendRequiresReceiver(t *testing.T) {
	sync := newAdminSyncForTest(t, &fakeAdminAPI{
		listUsersFunc: func(context.Context, string) ([]rentalapi.User, error) { return nil, nil },
		conversationFunc: func(context.Context, string) ([]rentalapi.ChatMessage, error) {
			return nil, nil
		},
	}, nil)

	err := sync.SendMessage(context.Background(), " ", "hello")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
