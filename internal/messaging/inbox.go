// internal/messaging/inbox.go

package messaging

import (
	"context"
	"log"
	"strings"

	"github.com/imadgeboyega/kiekky-client/internal/api"
)

var (
	ErrEmptyMessage     = api.Validation("message text cannot be empty")
	ErrMissingRecipient = api.Validation("recipient is required")
	ErrMessageToSelf    = api.Validation("cannot send a message to yourself")
)

// FavoriteSet is the part of the favorites store the inbox reads
type FavoriteSet interface {
	Load(ctx context.Context) error
	IsFavorite(counterpartID int64) bool
}

// MessageSender posts a new chat message
type MessageSender interface {
	SendMessage(ctx context.Context, req *api.SendMessageRequest) (*api.Message, error)
}

// Inbox is the conversation screen's view of the message log
type Inbox struct {
	localUserID int64
	loop        *SyncLoop
	favorites   FavoriteSet
	sender      MessageSender
}

func NewInbox(localUserID int64, loop *SyncLoop, favorites FavoriteSet, sender MessageSender) *Inbox {
	return &Inbox{
		localUserID: localUserID,
		loop:        loop,
		favorites:   favorites,
		sender:      sender,
	}
}

func (i *Inbox) LocalUserID() int64 {
	return i.localUserID
}

func (i *Inbox) Loop() *SyncLoop {
	return i.loop
}

// Focus reloads favorites and starts polling
func (i *Inbox) Focus(ctx context.Context) {
	if i.favorites != nil {
		if err := i.favorites.Load(ctx); err != nil {
			log.Printf("failed to reload favorites: %v", err)
		}
	}
	i.loop.Focus()
}

// Blur stops polling
func (i *Inbox) Blur() {
	i.loop.Blur()
}

// Conversations derives the conversation list from the latest snapshot
func (i *Inbox) Conversations() []Conversation {
	var isFavorite func(int64) bool
	if i.favorites != nil {
		isFavorite = i.favorites.IsFavorite
	}
	return BuildConversationList(i.loop.Messages(), i.localUserID, isFavorite)
}

// Thread derives the display thread with counterpartID from the latest snapshot
func (i *Inbox) Thread(counterpartID int64) []ThreadMessage {
	return BuildThreadView(i.loop.Messages(), i.localUserID, counterpartID)
}

// FindMessage looks a message up by id in the latest snapshot
func (i *Inbox) FindMessage(messageID int64) (api.Message, bool) {
	for _, msg := range i.loop.Messages() {
		if msg.ID == messageID {
			return msg, true
		}
	}
	return api.Message{}, false
}

// Send posts text to receiverID and refreshes the log out of band
func (i *Inbox) Send(ctx context.Context, receiverID int64, text string) (*api.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}
	if receiverID <= 0 {
		return nil, ErrMissingRecipient
	}
	if receiverID == i.localUserID {
		return nil, ErrMessageToSelf
	}

	msg, err := i.sender.SendMessage(ctx, &api.SendMessageRequest{ReceiverID: receiverID, Content: text})
	if err != nil {
		return nil, err
	}

	// The message is sent; a failed refresh only delays its appearance
	if err := i.loop.Refresh(ctx); err != nil {
		log.Printf("refresh after send failed: %v", err)
	}
	return msg, nil
}
