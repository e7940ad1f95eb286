package rentalapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/angelmondragon/rentsync/pkg/config"
	pkgerrors "github.com/angelmondragon/rentsync/pkg/errors"
	"github.com/angelmondragon/rentsync/pkg/logger"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newTestClient(t *testing.T, audience Audience, token string, rt roundTripFunc) *Client {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	client, err := NewClient(config.ChatAPIConfig{
		BaseURL:     "https://rentals.example.com",
		BearerToken: token,
	}, audience, logg, WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("build client: %v", err)
	}
	return client
}

func TestClientSendsBearerTokenAndAudiencePath(t *testing.T) {
	var captured *http.Request
	client := newTestClient(t, AudienceCustomer, "token-abc", func(req *http.Request) (*http.Response, error) {
		captured = req
		return jsonResponse(http.StatusOK, `[]`), nil
	})

	if _, err := client.Conversation(context.Background(), "1"); err != nil {
		t.Fatalf("conversation: %v", err)
	}

	if got := captured.Header.Get("Authorization"); got != "Bearer token-abc" {
		t.Fatalf("unexpected auth header %q", got)
	}
	if got := captured.URL.Path; got != "/api/customer/chats/1" {
		t.Fatalf("unexpected path %q", got)
	}
}

func TestClientConversationPreservesServerOrder(t *testing.T) {
	body := `[
		{"id": 501, "sender_id": "1", "message": "first", "created_at": "2026-03-01T12:00:00Z"},
		{"id": "502", "sender_id": 42, "message": "second", "created_at": "2026-03-01T12:01:00Z"}
	]`
	client := newTestClient(t, AudienceAdmin, "tok", func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, body), nil
	})

	messages, err := client.Conversation(context.Background(), "42")
	if err != nil {
		t.Fatalf("conversation: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	// Numeric and string ids decode alike.
	if messages[0].ID != "501" || messages[1].ID != "502" {
		t.Fatalf("unexpected ids: %s, %s", messages[0].ID, messages[1].ID)
	}
	if messages[1].SenderID != "42" {
		t.Fatalf("numeric sender id should decode to %q, got %q", "42", messages[1].SenderID)
	}
}

func TestClientListUsersNormalizesResponseShapes(t *testing.T) {
	cases := []struct {
		name string
		body string
		want int
	}{
		{"bare array", `[{"id": 7, "role_id": 2}]`, 1},
		{"users envelope", `{"users": [{"id": 7, "role_id": 2}, {"id": 8, "role_id": 2}]}`, 2},
		{"customers envelope", `{"customers": [{"id": 9, "role": "customer"}]}`, 1},
		{"unexpected shape", `{"total": 3}`, 0},
		{"garbage", `"nope"`, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, AudienceAdmin, "tok", func(req *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, tc.body), nil
			})
			users, err := client.ListUsers(context.Background(), "")
			if err != nil {
				t.Fatalf("list users: %v", err)
			}
			if len(users) != tc.want {
				t.Fatalf("expected %d users, got %d", tc.want, len(users))
			}
		})
	}
}

func TestClientListUsersPassesRoleFilter(t *testing.T) {
	var captured *http.Request
	client := newTestClient(t, AudienceAdmin, "tok", func(req *http.Request) (*http.Response, error) {
		captured = req
		return jsonResponse(http.StatusOK, `[]`), nil
	})

	if _, err := client.ListUsers(context.Background(), "customer"); err != nil {
		t.Fatalf("list users: %v", err)
	}
	if got := captured.URL.Query().Get("role"); got != "customer" {
		t.Fatalf("expected role filter, got %q", got)
	}
}

func TestClientSendPayloadPerAudience(t *testing.T) {
	t.Run("customer includes sender id", func(t *testing.T) {
		var payload map[string]string
		client := newTestClient(t, AudienceCustomer, "tok", func(req *http.Request) (*http.Response, error) {
			if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
				t.Fatalf("decode payload: %v", err)
			}
			return jsonResponse(http.StatusCreated, `{}`), nil
		})

		err := client.Send(context.Background(), SendParams{SenderID: "42", ReceiverID: "1", Message: "hi"})
		if err != nil {
			t.Fatalf("send: %v", err)
		}
		if payload["sender_id"] != "42" || payload["receiver_id"] != "1" {
			t.Fatalf("unexpected payload: %v", payload)
		}
	})

	t.Run("admin omits sender id", func(t *testing.T) {
		var payload map[string]string
		client := newTestClient(t, AudienceAdmin, "tok", func(req *http.Request) (*http.Response, error) {
			if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
				t.Fatalf("decode payload: %v", err)
			}
			return jsonResponse(http.StatusCreated, `{}`), nil
		})

		err := client.Send(context.Background(), SendParams{ReceiverID: "7", Message: "hello"})
		if err != nil {
			t.Fatalf("send: %v", err)
		}
		if _, present := payload["sender_id"]; present {
			t.Fatalf("admin payload must not carry sender_id: %v", payload)
		}
	})
}

func TestClientSessionExpiredClearsTokenOnce(t *testing.T) {
	handlerCalls := 0
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	client, err := NewClient(config.ChatAPIConfig{
		BaseURL:     "https://rentals.example.com",
		BearerToken: "stale-token",
	}, AudienceCustomer, logg,
		WithHTTPClient(&http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusUnauthorized, `{}`), nil
		})}),
		WithSessionExpiredHandler(func() { handlerCalls++ }),
	)
	if err != nil {
		t.Fatalf("build client: %v", err)
	}

	_, err = client.Conversation(context.Background(), "1")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeSessionExpired {
		t.Fatalf("expected session expired, got %v", err)
	}
	if client.Token() != "" {
		t.Fatalf("token should be cleared, got %q", client.Token())
	}

	// A second 401 with a fresh token fires the handler no further.
	client.SetToken("another-stale-token")
	if _, err := client.Conversation(context.Background(), "1"); err == nil {
		t.Fatal("expected second 401 to error")
	}
	if handlerCalls != 1 {
		t.Fatalf("expired handler must fire exactly once, got %d", handlerCalls)
	}
}

func TestClientUnauthorizedWithoutToken(t *testing.T) {
	client := newTestClient(t, AudienceCustomer, "", func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusUnauthorized, `{}`), nil
	})

	_, err := client.Conversation(context.Background(), "1")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected plain unauthorized, got %v", err)
	}
}

func TestClientMapsStatusToErrorCode(t *testing.T) {
	cases := []struct {
		status int
		code   pkgerrors.Code
	}{
		{http.StatusForbidden, pkgerrors.CodeForbidden},
		{http.StatusNotFound, pkgerrors.CodeNotFound},
		{http.StatusConflict, pkgerrors.CodeConflict},
		{http.StatusTooManyRequests, pkgerrors.CodeRateLimit},
		{http.StatusUnprocessableEntity, pkgerrors.CodeValidation},
		{http.StatusBadGateway, pkgerrors.CodeDependency},
	}
	for _, tc := range cases {
		client := newTestClient(t, AudienceCustomer, "tok", func(req *http.Request) (*http.Response, error) {
			return jsonResponse(tc.status, `{"error": "nope"}`), nil
		})
		_, err := client.Conversation(context.Background(), "1")
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != tc.code {
			t.Fatalf("status %d: expected %s, got %v", tc.status, tc.code, err)
		}
	}
}

func TestClientProfileRequiresUserID(t *testing.T) {
	client := newTestClient(t, AudienceCustomer, "tok", func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"profile": {}}`), nil
	})

	if _, err := client.Profile(context.Background()); err == nil {
		t.Fatal("expected an error for a profile without user id")
	}
}

func TestClientValidatesInputs(t *testing.T) {
	client := newTestClient(t, AudienceCustomer, "tok", func(req *http.Request) (*http.Response, error) {
		t.Fatal("no request expected")
		return nil, nil
	})

	if _, err := client.Conversation(context.Background(), " "); err == nil {
		t.Fatal("expected error for blank counterparty")
	}
	if _, err := client.UserByID(context.Background(), ""); err == nil {
		t.Fatal("expected error for blank user id")
	}
	if err := client.Send(context.Background(), SendParams{ReceiverID: "1"}); err == nil {
		t.Fatal("expected error for empty message")
	}
}
