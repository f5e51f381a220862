package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/imadgeboyega/kiekky-client/internal/api"
)

type senderMock struct {
	mock.Mock
}

func (m *senderMock) SendMessage(ctx context.Context, req *api.SendMessageRequest) (*api.Message, error) {
	args := m.Called(ctx, req)
	var out *api.Message
	if val := args.Get(0); val != nil {
		out = val.(*api.Message)
	}
	return out, args.Error(1)
}

type staticFavorites struct {
	ids    map[int64]bool
	loads  int
	loadFn func() error
}

func (f *staticFavorites) Load(ctx context.Context) error {
	f.loads++
	if f.loadFn != nil {
		return f.loadFn()
	}
	return nil
}

func (f *staticFavorites) IsFavorite(id int64) bool {
	return f.ids[id]
}

func TestInboxSendValidatesLocally(t *testing.T) {
	sender := new(senderMock)
	inbox := NewInbox(me, NewSyncLoop(&countingSource{}, time.Hour), nil, sender)

	_, err := inbox.Send(context.Background(), 2, "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = inbox.Send(context.Background(), me, "hi")
	assert.ErrorIs(t, err, ErrMessageToSelf)

	_, err = inbox.Send(context.Background(), 0, "hi")
	assert.Equal(t, api.KindValidation, api.KindOf(err))

	sender.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything)
}

func TestInboxSendRefreshesLog(t *testing.T) {
	source := &countingSource{}
	sender := new(senderMock)
	inbox := NewInbox(me, NewSyncLoop(source, time.Hour), nil, sender)

	sent := &api.Message{ID: 10, Sender: api.UserSummary{ID: me}, Receiver: api.UserSummary{ID: 2}, Content: "hello"}
	sender.On("SendMessage", mock.Anything, &api.SendMessageRequest{ReceiverID: 2, Content: "hello"}).Return(sent, nil).Once()
	source.set([]api.Message{*sent}, nil)

	got, err := inbox.Send(context.Background(), 2, "hello")
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.ID)
	assert.Equal(t, int32(1), source.calls.Load())

	thread := inbox.Thread(2)
	require.Len(t, thread, 1)
	assert.Equal(t, "hello", thread[0].DisplayContent)
	sender.AssertExpectations(t)
}

func TestInboxSendFailureSkipsRefresh(t *testing.T) {
	source := &countingSource{}
	sender := new(senderMock)
	inbox := NewInbox(me, NewSyncLoop(source, time.Hour), nil, sender)

	sender.On("SendMessage", mock.Anything, mock.Anything).Return(nil, assert.AnError).Once()

	_, err := inbox.Send(context.Background(), 2, "hello")
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, int32(0), source.calls.Load())
}

func TestInboxFocusReloadsFavorites(t *testing.T) {
	source := &countingSource{messages: []api.Message{
		msg(1, me, 2, "a", "2024-01-01T00:00:01Z"),
		msg(2, 3, me, "b", "2024-01-01T00:00:02Z"),
	}}
	favorites := &staticFavorites{ids: map[int64]bool{3: true}}
	inbox := NewInbox(me, NewSyncLoop(source, time.Hour), favorites, nil)
	defer inbox.Blur()

	inbox.Focus(context.Background())
	inbox.Blur()
	inbox.Focus(context.Background())

	assert.Equal(t, 2, favorites.loads)
	require.Eventually(t, func() bool { return len(inbox.Conversations()) == 2 }, time.Second, 5*time.Millisecond)

	conversations := inbox.Conversations()
	assert.Equal(t, int64(3), conversations[0].Counterpart.ID)
	assert.True(t, conversations[0].IsFavorite)
	assert.False(t, conversations[1].IsFavorite)

	found, ok := inbox.FindMessage(2)
	require.True(t, ok)
	assert.Equal(t, "b", found.Content)
}
