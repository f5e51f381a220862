// internal/connections/service.go

package connections

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/imadgeboyega/kiekky-client/internal/api"
	"github.com/imadgeboyega/kiekky-client/internal/metrics"
)

var (
	ErrMissingTarget      = api.Validation("Please choose who to connect with")
	ErrCannotConnectSelf  = api.Validation("You cannot send a connection request to yourself")
	ErrAlreadyConnected   = api.Conflict("You are already connected with this user")
	ErrRequestAwaitingYou = api.Conflict("This user has already sent you a request")
	ErrNoPendingRequest   = api.NotFound("No pending request from this user")
	ErrNoSentRequest      = api.NotFound("You have no pending request to this user")
	ErrNotConnected       = api.NotFound("You are not connected with this user")
)

// Backend is the slice of the API client the service mutates through
type Backend interface {
	ListSource
	SendConnection(ctx context.Context, targetUserID int64) (*api.ConnectionRequest, error)
	AcceptConnection(ctx context.Context, connectionID int64) error
	RejectConnection(ctx context.Context, connectionID int64) error
	CancelConnection(ctx context.Context, connectionID int64) error
	RemoveConnection(ctx context.Context, connectionID int64) error
}

// SendResult reports the outcome of SendRequest. AlreadySent is set when an
// equivalent pending request already existed and nothing new was created.
type SendResult struct {
	Request     *api.ConnectionRequest `json:"request,omitempty"`
	AlreadySent bool                   `json:"already_sent"`
}

type Service interface {
	State(ctx context.Context, targetUserID int64) (RelationshipState, error)
	Lists(ctx context.Context) (Lists, error)
	SendRequest(ctx context.Context, targetUserID int64) (*SendResult, error)
	AcceptRequest(ctx context.Context, counterpartID int64) error
	RejectRequest(ctx context.Context, counterpartID int64) error
	CancelRequest(ctx context.Context, targetUserID int64) error
	RemoveConnection(ctx context.Context, counterpartID int64) error
	Invalidate()
}

// OptimisticGrace bounds how long a created request is shown while the
// server's sent list still lags behind it
const OptimisticGrace = 30 * time.Second

// optimistic is a request this client created that the cached sent list
// may not contain yet
type optimistic struct {
	request   api.ConnectionRequest
	version   uint64
	createdAt time.Time
}

type service struct {
	localUserID int64
	backend     Backend
	cache       *ListCache

	mu       sync.Mutex
	pending  map[int64]optimistic
	inflight map[int64]struct{}
	now      func() time.Time
}

func NewService(localUserID int64, backend Backend) Service {
	return &service{
		localUserID: localUserID,
		backend:     backend,
		cache:       NewListCache(backend),
		pending:     make(map[int64]optimistic),
		inflight:    make(map[int64]struct{}),
		now:         time.Now,
	}
}

func (s *service) Invalidate() {
	s.cache.Invalidate()
}

func (s *service) Lists(ctx context.Context) (Lists, error) {
	lists, err := s.cache.Snapshot(ctx)
	if err != nil {
		return Lists{}, err
	}
	return s.merge(lists), nil
}

func (s *service) State(ctx context.Context, targetUserID int64) (RelationshipState, error) {
	lists, err := s.Lists(ctx)
	if err != nil {
		return StateNone, err
	}
	return Resolve(targetUserID, lists.Sent, lists.Received, lists.Approved), nil
}

// merge appends optimistic entries to lists.Sent. An entry is dropped once
// a sent list fetched after its creation confirms it, once the counterpart
// has approved, or once the grace period passes after such a fetch.
func (s *service) merge(lists Lists) Lists {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for target, entry := range s.pending {
		_, inSent := findPending(lists.Sent, target)
		_, approved := findApproved(lists.Approved, target)
		caughtUp := lists.sentVersion >= entry.version

		if approved || (caughtUp && (inSent || now.Sub(entry.createdAt) > OptimisticGrace)) {
			delete(s.pending, target)
			continue
		}
		if !inSent {
			lists.Sent = append(lists.Sent, entry.request)
		}
	}
	return lists
}

func (s *service) SendRequest(ctx context.Context, targetUserID int64) (*SendResult, error) {
	if targetUserID <= 0 {
		return nil, ErrMissingTarget
	}
	if targetUserID == s.localUserID {
		return nil, ErrCannotConnectSelf
	}

	// one send per target at a time; a concurrent caller sees it as already sent
	if !s.claim(targetUserID) {
		metrics.RecordConnectionMutation("send", "already_sent")
		return &SendResult{AlreadySent: true}, nil
	}
	defer s.release(targetUserID)

	lists, err := s.Lists(ctx)
	if err != nil {
		return nil, err
	}

	switch Resolve(targetUserID, lists.Sent, lists.Received, lists.Approved) {
	case StatePendingSentByMe:
		existing, _ := findPending(lists.Sent, targetUserID)
		metrics.RecordConnectionMutation("send", "already_sent")
		return &SendResult{Request: &existing, AlreadySent: true}, nil
	case StateAlreadyFriend:
		return nil, ErrAlreadyConnected
	case StatePendingReceivedByMe:
		return nil, ErrRequestAwaitingYou
	}

	created, err := s.backend.SendConnection(ctx, targetUserID)
	if err != nil {
		if api.KindOf(err) == api.KindConflict {
			// the server already holds a pending request for this pair
			s.cache.Invalidate()
			metrics.RecordConnectionMutation("send", "already_sent")
			return &SendResult{AlreadySent: true}, nil
		}
		metrics.RecordConnectionMutation("send", "failed")
		return nil, err
	}

	request := s.normalizeCreated(created, targetUserID)
	s.cache.Invalidate()

	s.mu.Lock()
	s.pending[targetUserID] = optimistic{
		request:   request,
		version:   s.cache.Version(KeySent),
		createdAt: s.now(),
	}
	s.mu.Unlock()

	metrics.RecordConnectionMutation("send", "ok")
	log.Printf("Connection request %d sent to user %d", request.ConnectionID, targetUserID)
	return &SendResult{Request: &request}, nil
}

func (s *service) normalizeCreated(created *api.ConnectionRequest, targetUserID int64) api.ConnectionRequest {
	var request api.ConnectionRequest
	if created != nil {
		request = *created
	}
	if request.Requester.ID == 0 {
		request.Requester.ID = s.localUserID
	}
	if request.Counterpart.ID == 0 {
		request.Counterpart.ID = targetUserID
	}
	if request.Direction == "" {
		request.Direction = api.DirectionSent
	}
	if request.Status == "" {
		request.Status = api.StatusPending
	}
	return request
}

func (s *service) AcceptRequest(ctx context.Context, counterpartID int64) error {
	return s.respond(ctx, "accept", counterpartID, s.backend.AcceptConnection)
}

func (s *service) RejectRequest(ctx context.Context, counterpartID int64) error {
	return s.respond(ctx, "reject", counterpartID, s.backend.RejectConnection)
}

// respond acts on a request the counterpart sent us
func (s *service) respond(ctx context.Context, action string, counterpartID int64, call func(context.Context, int64) error) error {
	if counterpartID <= 0 {
		return ErrMissingTarget
	}

	lists, err := s.Lists(ctx)
	if err != nil {
		return err
	}
	if Resolve(counterpartID, lists.Sent, lists.Received, lists.Approved) != StatePendingReceivedByMe {
		return ErrNoPendingRequest
	}
	request, _ := findPending(lists.Received, counterpartID)

	if err := call(ctx, request.ConnectionID); err != nil {
		metrics.RecordConnectionMutation(action, "failed")
		return err
	}

	s.cache.Invalidate()
	metrics.RecordConnectionMutation(action, "ok")
	return nil
}

func (s *service) CancelRequest(ctx context.Context, targetUserID int64) error {
	if targetUserID <= 0 {
		return ErrMissingTarget
	}

	lists, err := s.Lists(ctx)
	if err != nil {
		return err
	}
	if Resolve(targetUserID, lists.Sent, lists.Received, lists.Approved) != StatePendingSentByMe {
		return ErrNoSentRequest
	}

	connectionID := s.optimisticID(targetUserID)
	if connectionID == 0 {
		request, _ := findPending(lists.Sent, targetUserID)
		connectionID = request.ConnectionID
	}

	if err := s.backend.CancelConnection(ctx, connectionID); err != nil {
		metrics.RecordConnectionMutation("cancel", "failed")
		if kind := api.KindOf(err); kind == api.KindNotFound || kind == api.KindConflict {
			// the request was already answered server side
			s.forget(targetUserID)
			s.cache.Invalidate()
		}
		return err
	}

	s.forget(targetUserID)
	s.cache.Invalidate()
	metrics.RecordConnectionMutation("cancel", "ok")
	return nil
}

func (s *service) RemoveConnection(ctx context.Context, counterpartID int64) error {
	if counterpartID <= 0 {
		return ErrMissingTarget
	}

	lists, err := s.Lists(ctx)
	if err != nil {
		return err
	}
	if Resolve(counterpartID, lists.Sent, lists.Received, lists.Approved) != StateAlreadyFriend {
		return ErrNotConnected
	}
	request, _ := findApproved(lists.Approved, counterpartID)

	if err := s.backend.RemoveConnection(ctx, request.ConnectionID); err != nil {
		metrics.RecordConnectionMutation("remove", "failed")
		return err
	}

	s.forget(counterpartID)
	s.cache.Invalidate()
	metrics.RecordConnectionMutation("remove", "ok")
	return nil
}

func (s *service) optimisticID(targetUserID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending[targetUserID].request.ConnectionID
}

func (s *service) forget(targetUserID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, targetUserID)
}

func (s *service) claim(targetUserID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[targetUserID]; busy {
		return false
	}
	s.inflight[targetUserID] = struct{}{}
	return true
}

func (s *service) release(targetUserID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, targetUserID)
}
