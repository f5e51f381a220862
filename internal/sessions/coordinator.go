// internal/sessions/coordinator.go

package sessions

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/imadgeboyega/kiekky-client/internal/api"
	"github.com/imadgeboyega/kiekky-client/internal/metrics"
)

var (
	ErrInvalidCounterpart = api.Validation("Please choose who to call")
	ErrCannotCallSelf     = api.Validation("You cannot start a call with yourself")
	ErrNotACallMessage    = api.Validation("This message has no call link")
	ErrMissingMeetingURL  = &api.Error{Kind: api.KindUnknown, Reason: "The call has no meeting link yet. Please try again."}
	ErrMissingSessionID   = &api.Error{Kind: api.KindUnknown, Reason: "The server did not return a call session"}
)

const defaultInviteText = "Join my video call"

// Phase of the local user's side of a handshake
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseWaiting Phase = "waiting-for-participant"
	PhaseReady   Phase = "ready-to-open"
)

type Role string

const (
	RoleInitiator   Role = "initiator"
	RoleParticipant Role = "participant"
)

// Backend is the session half of the API client
type Backend interface {
	CreateSession(ctx context.Context, counterpartID int64) (*api.CallSession, error)
	StartSession(ctx context.Context, sessionID int64) (*api.CallSession, error)
	ReadySession(ctx context.Context, sessionID int64) (*api.CallSession, error)
}

// MessageSender delivers the invitation over the chat channel
type MessageSender interface {
	SendMessage(ctx context.Context, req *api.SendMessageRequest) (*api.Message, error)
}

// TapResult tells the UI what to do after a call message was tapped. URL is
// only set when Phase is PhaseReady.
type TapResult struct {
	SessionID int64  `json:"session_id,omitempty"`
	Role      Role   `json:"role,omitempty"`
	Phase     Phase  `json:"phase"`
	URL       string `json:"url,omitempty"`
}

// Invitation is a started session announced to the counterpart
type Invitation struct {
	SessionID  int64        `json:"session_id"`
	MeetingURL string       `json:"meeting_url"`
	Message    *api.Message `json:"message,omitempty"`
}

// Coordinator drives create/start/ready for the chat screen. Phases live
// in memory for the lifetime of the screen only.
type Coordinator struct {
	localUserID int64
	backend     Backend
	sender      MessageSender

	mu     sync.Mutex
	phases map[int64]Phase
}

func NewCoordinator(localUserID int64, backend Backend, sender MessageSender) *Coordinator {
	return &Coordinator{
		localUserID: localUserID,
		backend:     backend,
		sender:      sender,
		phases:      make(map[int64]Phase),
	}
}

// Create asks the backend for a new session with counterpartID
func (c *Coordinator) Create(ctx context.Context, counterpartID int64) (int64, error) {
	if counterpartID <= 0 {
		return 0, ErrInvalidCounterpart
	}
	if counterpartID == c.localUserID {
		return 0, ErrCannotCallSelf
	}

	session, err := c.backend.CreateSession(ctx, counterpartID)
	if err != nil {
		return 0, err
	}
	if session == nil || session.SessionID <= 0 {
		return 0, ErrMissingSessionID
	}

	metrics.RecordHandshake(string(RoleInitiator), "created")
	return session.SessionID, nil
}

// Start obtains the meeting URL. Quota failures come back as *api.Error
// carrying the server's used/limit figures and nothing changes locally.
func (c *Coordinator) Start(ctx context.Context, sessionID int64) (string, error) {
	session, err := c.backend.StartSession(ctx, sessionID)
	if err != nil {
		if api.KindOf(err) == api.KindQuota {
			metrics.RecordHandshake(string(RoleInitiator), "quota_exceeded")
		}
		return "", err
	}
	if session == nil || session.MeetingURL == "" {
		return "", ErrMissingMeetingURL
	}

	metrics.RecordHandshake(string(RoleInitiator), "started")
	return session.MeetingURL, nil
}

// Invite creates and starts a session, then posts a chat message carrying
// the meeting link and the session marker to counterpartID.
func (c *Coordinator) Invite(ctx context.Context, counterpartID int64, text string) (*Invitation, error) {
	sessionID, err := c.Create(ctx, counterpartID)
	if err != nil {
		return nil, err
	}

	meetingURL, err := c.Start(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		text = defaultInviteText
	}
	content := EmbedSessionMarker(text+" "+meetingURL, sessionID)

	sent, err := c.sender.SendMessage(ctx, &api.SendMessageRequest{ReceiverID: counterpartID, Content: content})
	if err != nil {
		return nil, err
	}

	log.Printf("Call session %d started with user %d", sessionID, counterpartID)
	return &Invitation{SessionID: sessionID, MeetingURL: meetingURL, Message: sent}, nil
}

// Tap handles a tap on message. The sender of the session-bearing message
// is the initiator and may have to wait for the participant; the
// participant opens as soon as ready succeeds. Readiness is only
// re-checked on the next tap.
func (c *Coordinator) Tap(ctx context.Context, message api.Message) (*TapResult, error) {
	env := Classify(message.Content)
	if env.Kind != KindSessionInvite {
		if env.Link == "" {
			return nil, ErrNotACallMessage
		}
		return &TapResult{Phase: PhaseReady, URL: env.Link}, nil
	}

	role := RoleParticipant
	if IsInitiator(message, c.localUserID) {
		role = RoleInitiator
	}

	session, err := c.backend.ReadySession(ctx, env.SessionID)
	if err != nil {
		metrics.RecordHandshake(string(role), "failed")
		return nil, err
	}

	var url string
	if session != nil {
		url = session.MeetingURL
	}
	if url == "" {
		url = env.Link
	}

	phase := PhaseReady
	if role == RoleInitiator && (session == nil || !session.ParticipantReady) {
		phase = PhaseWaiting
	}
	if phase == PhaseReady && url == "" {
		return nil, ErrMissingMeetingURL
	}

	c.mu.Lock()
	c.phases[env.SessionID] = phase
	c.mu.Unlock()

	metrics.RecordHandshake(string(role), string(phase))

	result := &TapResult{SessionID: env.SessionID, Role: role, Phase: phase}
	if phase == PhaseReady {
		result.URL = url
	}
	return result, nil
}

// Phase reports the last known phase of sessionID
func (c *Coordinator) Phase(sessionID int64) Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	if phase, ok := c.phases[sessionID]; ok {
		return phase
	}
	return PhaseIdle
}

// Reset forgets every session; called when the chat screen goes away
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.phases = make(map[int64]Phase)
}
