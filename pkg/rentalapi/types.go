package rentalapi

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Audience selects which side of the API the client talks to.
type Audience string

const (
	AudienceCustomer Audience = "customer"
	AudienceAdmin    Audience = "admin"
)

// FlexID decodes an identifier that the API serves either as a JSON number
// or as a string.
type FlexID string

func (f *FlexID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*f = ""
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return err
	}
	*f = FlexID(n.String())
	return nil
}

func (f FlexID) String() string { return string(f) }

// ChatMessage is a single message as served by the remote API. The server
// assigns id and created_at; the client never mutates or deletes messages.
type ChatMessage struct {
	ID         FlexID    `json:"id"`
	SenderID   FlexID    `json:"sender_id"`
	ReceiverID FlexID    `json:"receiver_id"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}

// User is a platform user as returned by the admin users endpoint.
type User struct {
	ID     FlexID `json:"id"`
	UserID FlexID `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	RoleID int    `json:"role_id"`
}

// Key returns whichever identifier field the API populated.
func (u User) Key() string {
	if u.ID != "" {
		return u.ID.String()
	}
	return u.UserID.String()
}

const customerRoleID = 2

// IsCustomer applies the API's role conventions: role_id 2 means customer,
// any non-"admin" role string means customer.
func (u User) IsCustomer() bool {
	if u.RoleID != 0 {
		return u.RoleID == customerRoleID
	}
	role := strings.ToLower(strings.TrimSpace(u.Role))
	return role != "" && role != "admin"
}

// RoleName normalizes the user's role into "admin" or "customer".
func (u User) RoleName() string {
	if u.IsCustomer() {
		return "customer"
	}
	return "admin"
}

// Profile is the resolved identity of the authenticated caller.
type Profile struct {
	UserID FlexID `json:"user_id"`
}

// SendParams describes an outbound chat message.
type SendParams struct {
	SenderID   string
	ReceiverID string
	Message    string
}

type profileEnvelope struct {
	Profile Profile `json:"profile"`
}

type userEnvelope struct {
	User User `json:"user"`
}

// decodeUserList normalizes the users endpoint's three observed response
// shapes (bare array, {"users": [...]}, {"customers": [...]}) and degrades
// to an empty list on anything unexpected.
func decodeUserList(raw json.RawMessage) []User {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}
	if trimmed[0] == '[' {
		var users []User
		if err := json.Unmarshal(trimmed, &users); err == nil {
			return users
		}
		return nil
	}
	var wrapped struct {
		Users     []User `json:"users"`
		Customers []User `json:"customers"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil
	}
	if len(wrapped.Users) > 0 {
		return wrapped.Users
	}
	return wrapped.Customers
}
