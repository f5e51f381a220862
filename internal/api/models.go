// internal/api/models.go

package api

import (
	"strings"
	"time"
)

// UserSummary is the slim user shape embedded in messages and connection lists
type UserSummary struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// DisplayName joins the available name parts
func (u UserSummary) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Message is an immutable chat message as returned by the conversations log
type Message struct {
	ID        int64       `json:"id"`
	Sender    UserSummary `json:"sender"`
	Receiver  UserSummary `json:"receiver"`
	Content   string      `json:"content"`
	CreatedAt string      `json:"created_at"`
}

// Timestamp parses CreatedAt. The second return is false for missing or
// malformed values, which callers order before every valid timestamp.
func (m Message) Timestamp() (time.Time, bool) {
	return ParseTimestamp(m.CreatedAt)
}

// CounterpartOf returns the endpoint of the message that is not localUserID
func (m Message) CounterpartOf(localUserID int64) UserSummary {
	if m.Sender.ID == localUserID {
		return m.Receiver
	}
	return m.Sender
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999-07",
	"2006-01-02 15:04:05",
}

// ParseTimestamp accepts the formats the backend has been seen to emit
func ParseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ConnectionStatus is the lifecycle state of a connection request
type ConnectionStatus string

const (
	StatusPending   ConnectionStatus = "pending"
	StatusApproved  ConnectionStatus = "approved"
	StatusRejected  ConnectionStatus = "rejected"
	StatusCancelled ConnectionStatus = "cancelled"
)

// IsTerminal reports whether no further transition is possible. An empty
// status is not terminal.
func (s ConnectionStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusCancelled
}

// Direction is relative to the local user
type Direction string

const (
	DirectionSent     Direction = "sent"
	DirectionReceived Direction = "received"
)

// ConnectionRequest is a directed relationship proposal
type ConnectionRequest struct {
	ConnectionID int64            `json:"connection_id"`
	Requester    UserSummary      `json:"requester"`
	Counterpart  UserSummary      `json:"counterpart"`
	Direction    Direction        `json:"direction"`
	Status       ConnectionStatus `json:"status"`
	CreatedAt    string           `json:"created_at,omitempty"`
}

// Involves reports whether userID is either party of the request
func (r ConnectionRequest) Involves(userID int64) bool {
	return r.Requester.ID == userID || r.Counterpart.ID == userID
}

// CallSession is the server's view of a call session
type CallSession struct {
	SessionID        int64  `json:"session_id"`
	InitiatorID      int64  `json:"initiator_id,omitempty"`
	MeetingURL       string `json:"meeting_url,omitempty"`
	ParticipantReady bool   `json:"participant_ready"`
}

// Request DTOs

type SendMessageRequest struct {
	ReceiverID int64  `json:"receiver_id" validate:"required,gt=0"`
	Content    string `json:"content" validate:"required,max=4000"`
}

type SendConnectionRequest struct {
	TargetUserID int64 `json:"target_user_id" validate:"required,gt=0"`
}

type CreateSessionRequest struct {
	CounterpartID int64 `json:"counterpart_id" validate:"required,gt=0"`
}

// envelope mirrors the backend's standard response body
type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Used    *int        `json:"used,omitempty"`
	Limit   *int        `json:"limit,omitempty"`
}
