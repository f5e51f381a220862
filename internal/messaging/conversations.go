// internal/messaging/conversations.go
// Derives per-counterpart conversations and threads from the flat message log

package messaging

import (
	"fmt"
	"sort"
	"time"

	"github.com/imadgeboyega/kiekky-client/internal/api"
	"github.com/imadgeboyega/kiekky-client/internal/sessions"
)

// Conversation is derived from the message log and never persisted
type Conversation struct {
	Counterpart   api.UserSummary `json:"counterpart"`
	Title         string          `json:"title"`
	LastMessage   string          `json:"last_message"`
	LastMessageAt string          `json:"last_message_at"`
	IsFavorite    bool            `json:"is_favorite"`

	at      time.Time
	validAt bool
}

// ThreadMessage is a message prepared for display in a thread
type ThreadMessage struct {
	api.Message
	DisplayContent string `json:"display_content"`
	Link           string `json:"link,omitempty"`
	SessionID      int64  `json:"session_id,omitempty"`
	IsMine         bool   `json:"is_mine"`
}

// BuildConversationList groups messages by counterpart, keeping the newest
// message of each, ordered newest first. isFavorite may be nil.
func BuildConversationList(messages []api.Message, localUserID int64, isFavorite func(int64) bool) []Conversation {
	conversations := make([]Conversation, 0)
	index := make(map[int64]int)

	for _, msg := range messages {
		if !involves(msg, localUserID) {
			continue
		}

		counterpart := msg.CounterpartOf(localUserID)
		at, ok := msg.Timestamp()

		i, seen := index[counterpart.ID]
		if !seen {
			index[counterpart.ID] = len(conversations)
			conversations = append(conversations, Conversation{
				Counterpart:   counterpart,
				Title:         title(counterpart),
				LastMessage:   sessions.StripMarkerForDisplay(msg.Content),
				LastMessageAt: msg.CreatedAt,
				at:            at,
				validAt:       ok,
			})
			continue
		}

		// Ties keep the first message seen
		current := &conversations[i]
		if newer(at, ok, current.at, current.validAt) {
			current.Counterpart = counterpart
			current.Title = title(counterpart)
			current.LastMessage = sessions.StripMarkerForDisplay(msg.Content)
			current.LastMessageAt = msg.CreatedAt
			current.at = at
			current.validAt = ok
		}
	}

	sort.SliceStable(conversations, func(i, j int) bool {
		return newer(conversations[i].at, conversations[i].validAt, conversations[j].at, conversations[j].validAt)
	})

	if isFavorite != nil {
		for i := range conversations {
			conversations[i].IsFavorite = isFavorite(conversations[i].Counterpart.ID)
		}
	}

	return conversations
}

// GetThread returns the messages exchanged between the two users, oldest first
func GetThread(messages []api.Message, localUserID, counterpartID int64) []api.Message {
	thread := make([]api.Message, 0)
	for _, msg := range messages {
		if (msg.Sender.ID == localUserID && msg.Receiver.ID == counterpartID) ||
			(msg.Sender.ID == counterpartID && msg.Receiver.ID == localUserID) {
			thread = append(thread, msg)
		}
	}

	sort.SliceStable(thread, func(i, j int) bool {
		ti, oki := thread[i].Timestamp()
		tj, okj := thread[j].Timestamp()
		return newer(tj, okj, ti, oki)
	})

	return thread
}

// BuildThreadView is GetThread with the session marker stripped for display
func BuildThreadView(messages []api.Message, localUserID, counterpartID int64) []ThreadMessage {
	thread := GetThread(messages, localUserID, counterpartID)
	view := make([]ThreadMessage, 0, len(thread))
	for _, msg := range thread {
		env := sessions.Classify(msg.Content)
		// the raw body carries the session marker and must not reach the UI
		msg.Content = env.Text
		view = append(view, ThreadMessage{
			Message:        msg,
			DisplayContent: env.Text,
			Link:           env.Link,
			SessionID:      env.SessionID,
			IsMine:         msg.Sender.ID == localUserID,
		})
	}
	return view
}

// newer reports whether a is strictly more recent than b. Invalid
// timestamps are older than every valid one.
func newer(a time.Time, aValid bool, b time.Time, bValid bool) bool {
	switch {
	case aValid && bValid:
		return a.After(b)
	case aValid:
		return true
	default:
		return false
	}
}

func involves(msg api.Message, localUserID int64) bool {
	if msg.Sender.ID == msg.Receiver.ID {
		return false
	}
	return msg.Sender.ID == localUserID || msg.Receiver.ID == localUserID
}

// title names a conversation after its counterpart, by id when the log
// carries no name
func title(user api.UserSummary) string {
	if name := user.DisplayName(); name != "" {
		return name
	}
	return fmt.Sprintf("User %d", user.ID)
}
