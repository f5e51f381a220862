package connections

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/imadgeboyega/kiekky-client/internal/api"
)

const me int64 = 1

type backendMock struct {
	mock.Mock
}

func (m *backendMock) PendingSent(ctx context.Context) ([]api.ConnectionRequest, error) {
	args := m.Called(ctx)
	return requests(args.Get(0)), args.Error(1)
}

func (m *backendMock) PendingReceived(ctx context.Context) ([]api.ConnectionRequest, error) {
	args := m.Called(ctx)
	return requests(args.Get(0)), args.Error(1)
}

func (m *backendMock) Approved(ctx context.Context) ([]api.ConnectionRequest, error) {
	args := m.Called(ctx)
	return requests(args.Get(0)), args.Error(1)
}

func (m *backendMock) SendConnection(ctx context.Context, targetUserID int64) (*api.ConnectionRequest, error) {
	args := m.Called(ctx, targetUserID)
	var out *api.ConnectionRequest
	if val := args.Get(0); val != nil {
		out = val.(*api.ConnectionRequest)
	}
	return out, args.Error(1)
}

func (m *backendMock) AcceptConnection(ctx context.Context, connectionID int64) error {
	return m.Called(ctx, connectionID).Error(0)
}

func (m *backendMock) RejectConnection(ctx context.Context, connectionID int64) error {
	return m.Called(ctx, connectionID).Error(0)
}

func (m *backendMock) CancelConnection(ctx context.Context, connectionID int64) error {
	return m.Called(ctx, connectionID).Error(0)
}

func (m *backendMock) RemoveConnection(ctx context.Context, connectionID int64) error {
	return m.Called(ctx, connectionID).Error(0)
}

func requests(val interface{}) []api.ConnectionRequest {
	if val == nil {
		return nil
	}
	return val.([]api.ConnectionRequest)
}

func sentTo(id, target int64) api.ConnectionRequest {
	return api.ConnectionRequest{
		ConnectionID: id,
		Requester:    api.UserSummary{ID: me},
		Counterpart:  api.UserSummary{ID: target},
		Direction:    api.DirectionSent,
		Status:       api.StatusPending,
	}
}

func receivedFrom(id, from int64) api.ConnectionRequest {
	return api.ConnectionRequest{
		ConnectionID: id,
		Requester:    api.UserSummary{ID: from},
		Counterpart:  api.UserSummary{ID: me},
		Direction:    api.DirectionReceived,
		Status:       api.StatusPending,
	}
}

func friendsWith(id, other int64) api.ConnectionRequest {
	return api.ConnectionRequest{
		ConnectionID: id,
		Requester:    api.UserSummary{ID: me},
		Counterpart:  api.UserSummary{ID: other},
		Status:       api.StatusApproved,
	}
}

func expectLists(m *backendMock, sent, received, approved []api.ConnectionRequest) {
	m.On("PendingSent", mock.Anything).Return(sent, nil).Once()
	m.On("PendingReceived", mock.Anything).Return(received, nil).Once()
	m.On("Approved", mock.Anything).Return(approved, nil).Once()
}

func TestResolvePrecedence(t *testing.T) {
	sent := []api.ConnectionRequest{sentTo(1, 5)}
	received := []api.ConnectionRequest{receivedFrom(2, 5)}
	approved := []api.ConnectionRequest{friendsWith(3, 5)}

	tests := []struct {
		name     string
		sent     []api.ConnectionRequest
		received []api.ConnectionRequest
		approved []api.ConnectionRequest
		want     RelationshipState
	}{
		{"approved wins over everything", sent, received, approved, StateAlreadyFriend},
		{"sent wins over received", sent, received, nil, StatePendingSentByMe},
		{"received only", nil, received, nil, StatePendingReceivedByMe},
		{"no relationship", nil, nil, nil, StateNone},
		{"other users ignored", []api.ConnectionRequest{sentTo(9, 6)}, nil, []api.ConnectionRequest{friendsWith(8, 7)}, StateNone},
		{"terminal entries ignored", []api.ConnectionRequest{{ConnectionID: 4, Requester: api.UserSummary{ID: me}, Counterpart: api.UserSummary{ID: 5}, Status: api.StatusCancelled}}, nil, nil, StateNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(5, tt.sent, tt.received, tt.approved))
		})
	}
}

func TestSendRequestValidatesWithoutNetwork(t *testing.T) {
	backend := new(backendMock)
	svc := NewService(me, backend)

	_, err := svc.SendRequest(context.Background(), me)
	assert.ErrorIs(t, err, ErrCannotConnectSelf)
	assert.Equal(t, api.KindValidation, api.KindOf(err))

	_, err = svc.SendRequest(context.Background(), 0)
	assert.ErrorIs(t, err, ErrMissingTarget)

	backend.AssertNotCalled(t, "PendingSent", mock.Anything)
	backend.AssertNotCalled(t, "SendConnection", mock.Anything, mock.Anything)
}

func TestSendRequestAlreadyPendingIsNoop(t *testing.T) {
	backend := new(backendMock)
	expectLists(backend, []api.ConnectionRequest{sentTo(11, 5)}, nil, nil)
	svc := NewService(me, backend)

	result, err := svc.SendRequest(context.Background(), 5)
	require.NoError(t, err)
	assert.True(t, result.AlreadySent)
	assert.Equal(t, int64(11), result.Request.ConnectionID)
	backend.AssertNotCalled(t, "SendConnection", mock.Anything, mock.Anything)
}

func TestSendRequestRejectsExistingRelationship(t *testing.T) {
	backend := new(backendMock)
	expectLists(backend, nil, []api.ConnectionRequest{receivedFrom(3, 6)}, []api.ConnectionRequest{friendsWith(4, 5)})
	svc := NewService(me, backend)

	_, err := svc.SendRequest(context.Background(), 5)
	assert.ErrorIs(t, err, ErrAlreadyConnected)

	_, err = svc.SendRequest(context.Background(), 6)
	assert.ErrorIs(t, err, ErrRequestAwaitingYou)
	assert.Equal(t, api.KindConflict, api.KindOf(err))

	backend.AssertNotCalled(t, "SendConnection", mock.Anything, mock.Anything)
}

func TestSendRequestTwiceCreatesOnce(t *testing.T) {
	backend := new(backendMock)
	expectLists(backend, nil, nil, nil)
	backend.On("SendConnection", mock.Anything, int64(5)).
		Return(&api.ConnectionRequest{ConnectionID: 21}, nil).Once()
	// the server has not caught up with the new request yet
	expectLists(backend, nil, nil, nil)

	svc := NewService(me, backend)

	first, err := svc.SendRequest(context.Background(), 5)
	require.NoError(t, err)
	assert.False(t, first.AlreadySent)
	assert.Equal(t, api.StatusPending, first.Request.Status)
	assert.Equal(t, me, first.Request.Requester.ID)

	second, err := svc.SendRequest(context.Background(), 5)
	require.NoError(t, err)
	assert.True(t, second.AlreadySent)
	assert.Equal(t, int64(21), second.Request.ConnectionID)

	backend.AssertNumberOfCalls(t, "SendConnection", 1)
	backend.AssertExpectations(t)
}

func TestSendRequestServerConflictSurfacesAlreadySent(t *testing.T) {
	backend := new(backendMock)
	expectLists(backend, nil, nil, nil)
	backend.On("SendConnection", mock.Anything, int64(5)).
		Return(nil, &api.Error{Kind: api.KindConflict, Status: 409, Reason: "Request already exists"}).Once()

	svc := NewService(me, backend)

	result, err := svc.SendRequest(context.Background(), 5)
	require.NoError(t, err)
	assert.True(t, result.AlreadySent)
}

func TestSendRequestFailureLeavesStateUntouched(t *testing.T) {
	backend := new(backendMock)
	expectLists(backend, nil, nil, nil)
	backend.On("SendConnection", mock.Anything, int64(5)).
		Return(nil, &api.Error{Kind: api.KindTransient, Reason: "offline"}).Once()

	svc := NewService(me, backend)

	_, err := svc.SendRequest(context.Background(), 5)
	assert.True(t, api.IsRetryable(err))

	// nothing was invalidated so the cached lists are reused
	state, err := svc.State(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, StateNone, state)
	backend.AssertNumberOfCalls(t, "PendingSent", 1)
}

func TestAcceptRequiresReceivedRequest(t *testing.T) {
	backend := new(backendMock)
	expectLists(backend, []api.ConnectionRequest{sentTo(1, 7)}, []api.ConnectionRequest{receivedFrom(31, 5)}, nil)
	backend.On("AcceptConnection", mock.Anything, int64(31)).Return(nil).Once()
	expectLists(backend, nil, nil, []api.ConnectionRequest{friendsWith(31, 5)})

	svc := NewService(me, backend)

	err := svc.AcceptRequest(context.Background(), 7)
	assert.ErrorIs(t, err, ErrNoPendingRequest)
	assert.Equal(t, api.KindNotFound, api.KindOf(err))

	require.NoError(t, svc.AcceptRequest(context.Background(), 5))

	state, err := svc.State(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, StateAlreadyFriend, state)
	backend.AssertExpectations(t)
}

func TestRejectFailureKeepsRequest(t *testing.T) {
	backend := new(backendMock)
	expectLists(backend, nil, []api.ConnectionRequest{receivedFrom(41, 5)}, nil)
	backend.On("RejectConnection", mock.Anything, int64(41)).Return(assert.AnError).Once()

	svc := NewService(me, backend)

	assert.ErrorIs(t, svc.RejectRequest(context.Background(), 5), assert.AnError)

	state, err := svc.State(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, StatePendingReceivedByMe, state)
}

func TestCancelUsesOptimisticRequest(t *testing.T) {
	backend := new(backendMock)
	expectLists(backend, nil, nil, nil)
	backend.On("SendConnection", mock.Anything, int64(5)).
		Return(&api.ConnectionRequest{ConnectionID: 51}, nil).Once()
	expectLists(backend, nil, nil, nil)
	backend.On("CancelConnection", mock.Anything, int64(51)).Return(nil).Once()
	expectLists(backend, nil, nil, nil)

	svc := NewService(me, backend)

	_, err := svc.SendRequest(context.Background(), 5)
	require.NoError(t, err)
	require.NoError(t, svc.CancelRequest(context.Background(), 5))

	state, err := svc.State(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, StateNone, state)
	backend.AssertExpectations(t)
}

func TestSendRequestConcurrentCallsCreateOnce(t *testing.T) {
	backend := new(backendMock)
	expectLists(backend, nil, nil, nil)

	entered := make(chan struct{})
	release := make(chan struct{})
	backend.On("SendConnection", mock.Anything, int64(5)).
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return(&api.ConnectionRequest{ConnectionID: 81}, nil).Once()

	svc := NewService(me, backend)

	first := make(chan *SendResult, 1)
	go func() {
		result, err := svc.SendRequest(context.Background(), 5)
		assert.NoError(t, err)
		first <- result
	}()

	<-entered
	second, err := svc.SendRequest(context.Background(), 5)
	require.NoError(t, err)
	assert.True(t, second.AlreadySent)

	close(release)
	result := <-first
	require.NotNil(t, result)
	assert.False(t, result.AlreadySent)
	backend.AssertNumberOfCalls(t, "SendConnection", 1)
}

func TestCancelAnsweredRequestClearsOptimistic(t *testing.T) {
	backend := new(backendMock)
	expectLists(backend, nil, nil, nil)
	backend.On("SendConnection", mock.Anything, int64(5)).
		Return(&api.ConnectionRequest{ConnectionID: 91}, nil).Once()
	// the counterpart rejected before the sent list caught up
	expectLists(backend, nil, nil, nil)
	backend.On("CancelConnection", mock.Anything, int64(91)).
		Return(api.NotFound("Connection request not found")).Once()
	expectLists(backend, nil, nil, nil)

	svc := NewService(me, backend)

	_, err := svc.SendRequest(context.Background(), 5)
	require.NoError(t, err)

	err = svc.CancelRequest(context.Background(), 5)
	assert.Equal(t, api.KindNotFound, api.KindOf(err))

	state, err := svc.State(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, StateNone, state)
	backend.AssertExpectations(t)
}

func TestCancelWithoutSentRequest(t *testing.T) {
	backend := new(backendMock)
	expectLists(backend, nil, []api.ConnectionRequest{receivedFrom(2, 5)}, nil)

	svc := NewService(me, backend)

	assert.ErrorIs(t, svc.CancelRequest(context.Background(), 5), ErrNoSentRequest)
	backend.AssertNotCalled(t, "CancelConnection", mock.Anything, mock.Anything)
}

func TestRemoveConnection(t *testing.T) {
	backend := new(backendMock)
	expectLists(backend, nil, nil, []api.ConnectionRequest{friendsWith(61, 5)})
	backend.On("RemoveConnection", mock.Anything, int64(61)).Return(nil).Once()
	expectLists(backend, nil, nil, nil)

	svc := NewService(me, backend)

	assert.ErrorIs(t, svc.RemoveConnection(context.Background(), 8), ErrNotConnected)
	require.NoError(t, svc.RemoveConnection(context.Background(), 5))

	state, err := svc.State(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, StateNone, state)
}

func TestOptimisticRequestExpiresAfterGrace(t *testing.T) {
	backend := new(backendMock)
	expectLists(backend, nil, nil, nil)
	backend.On("SendConnection", mock.Anything, int64(5)).
		Return(&api.ConnectionRequest{ConnectionID: 71}, nil).Once()
	expectLists(backend, nil, nil, nil)

	svc := NewService(me, backend).(*service)
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }

	_, err := svc.SendRequest(context.Background(), 5)
	require.NoError(t, err)

	clock = clock.Add(OptimisticGrace + time.Second)
	state, err := svc.State(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, StateNone, state)
}

func TestListCacheCommitsAtomically(t *testing.T) {
	backend := new(backendMock)
	expectLists(backend, []api.ConnectionRequest{sentTo(1, 5)}, nil, nil)
	cache := NewListCache(backend)

	lists, err := cache.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, lists.Sent, 1)
	assert.False(t, cache.Stale(KeySent))

	cache.Invalidate()
	backend.On("PendingSent", mock.Anything).Return([]api.ConnectionRequest{}, nil).Once()
	backend.On("PendingReceived", mock.Anything).Return(nil, assert.AnError).Once()

	_, err = cache.Snapshot(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
	assert.True(t, cache.Stale(KeySent))

	// the successful sent fetch was discarded with the failed one
	expectLists(backend, nil, nil, nil)
	lists, err = cache.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, lists.Sent)
}

func TestListCacheInvalidatesSelectedKeys(t *testing.T) {
	backend := new(backendMock)
	expectLists(backend, nil, nil, nil)
	cache := NewListCache(backend)

	_, err := cache.Snapshot(context.Background())
	require.NoError(t, err)

	cache.Invalidate(KeyReceived)
	assert.False(t, cache.Stale(KeySent))
	assert.True(t, cache.Stale(KeyReceived))

	backend.On("PendingReceived", mock.Anything).Return([]api.ConnectionRequest{receivedFrom(2, 9)}, nil).Once()
	lists, err := cache.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, lists.Received, 1)

	backend.AssertNumberOfCalls(t, "PendingSent", 1)
	backend.AssertNumberOfCalls(t, "PendingReceived", 2)
}
