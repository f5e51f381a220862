// internal/gateway/handlers.go

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/imadgeboyega/kiekky-client/internal/api"
	"github.com/imadgeboyega/kiekky-client/internal/common/utils"
	"github.com/imadgeboyega/kiekky-client/internal/connections"
	"github.com/imadgeboyega/kiekky-client/internal/favorites"
	"github.com/imadgeboyega/kiekky-client/internal/messaging"
	"github.com/imadgeboyega/kiekky-client/internal/sessions"
)

var ErrUnknownCommand = errors.New("unknown command")

type SendMessageBody struct {
	Content string `json:"content" validate:"required,max=4000"`
}

type InviteBody struct {
	Text string `json:"text" validate:"max=500"`
}

type Handler struct {
	inbox       *messaging.Inbox
	connections connections.Service
	calls       *sessions.Coordinator
	favorites   *favorites.Store
	hub         *Hub
	upgrader    websocket.Upgrader
}

func NewHandler(inbox *messaging.Inbox, conns connections.Service, calls *sessions.Coordinator, favs *favorites.Store, hub *Hub, allowedOrigins []string) *Handler {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		origins[origin] = true
	}

	return &Handler{
		inbox:       inbox,
		connections: conns,
		calls:       calls,
		favorites:   favs,
		hub:         hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origins[origin]
			},
		},
	}
}

// HandleWebSocket upgrades a UI connection and subscribes it to pushes
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := NewClient(h.hub, conn, h)
	if !h.hub.Register(client) {
		conn.Close()
		return
	}
	client.Start()

	// Give the new client the current state right away
	h.hub.Publish(EventConversations, h.inbox.Conversations())
}

// HandleCommand applies a lifecycle command received over the socket
func (h *Handler) HandleCommand(ctx context.Context, cmd Command) error {
	switch cmd.Type {
	case "focus":
		h.inbox.Focus(ctx)
	case "blur":
		h.inbox.Blur()
		h.calls.Reset()
	case "pause":
		h.inbox.Loop().Pause()
	case "resume":
		h.inbox.Loop().Resume()
	case "refresh":
		return h.inbox.Loop().Refresh(ctx)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Type)
	}
	return nil
}

// Conversations

func (h *Handler) GetConversations(w http.ResponseWriter, r *http.Request) {
	utils.SuccessResponse(w, h.inbox.Conversations(), http.StatusOK)
}

func (h *Handler) GetThread(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}
	utils.SuccessResponse(w, h.inbox.Thread(userID), http.StatusOK)
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}

	var body SendMessageBody
	if !decodeBody(w, r, &body) {
		return
	}

	msg, err := h.inbox.Send(r.Context(), userID, body.Content)
	if err != nil {
		writeError(w, err)
		return
	}

	h.hub.Publish(EventConversations, h.inbox.Conversations())
	utils.SuccessResponse(w, msg, http.StatusCreated)
}

func (h *Handler) SyncCommand(w http.ResponseWriter, r *http.Request) {
	action := mux.Vars(r)["action"]
	if err := h.HandleCommand(r.Context(), Command{Type: action}); err != nil {
		if errors.Is(err, ErrUnknownCommand) {
			utils.ErrorResponse(w, err.Error(), http.StatusNotFound)
			return
		}
		writeError(w, err)
		return
	}

	utils.SuccessResponse(w, map[string]interface{}{
		"running": h.inbox.Loop().Running(),
		"paused":  h.inbox.Loop().Paused(),
	}, http.StatusOK)
}

// Relationships

func (h *Handler) GetRelationships(w http.ResponseWriter, r *http.Request) {
	lists, err := h.connections.Lists(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	utils.SuccessResponse(w, lists, http.StatusOK)
}

func (h *Handler) GetRelationship(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}

	state, err := h.connections.State(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.SuccessResponse(w, relationshipView(userID, state), http.StatusOK)
}

func (h *Handler) MutateRelationship(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}

	ctx := r.Context()
	var (
		result interface{}
		err    error
	)

	switch mux.Vars(r)["action"] {
	case "send":
		result, err = h.connections.SendRequest(ctx, userID)
	case "accept":
		err = h.connections.AcceptRequest(ctx, userID)
	case "reject":
		err = h.connections.RejectRequest(ctx, userID)
	case "cancel":
		err = h.connections.CancelRequest(ctx, userID)
	case "remove":
		err = h.connections.RemoveConnection(ctx, userID)
	default:
		utils.ErrorResponse(w, "Unknown action", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	state, err := h.connections.State(ctx, userID)
	if err != nil {
		// the mutation went through; only the follow-up read failed
		utils.SuccessResponse(w, result, http.StatusOK)
		return
	}

	view := relationshipView(userID, state)
	if result != nil {
		view["result"] = result
	}
	h.hub.Publish(EventRelationship, view)
	utils.SuccessResponse(w, view, http.StatusOK)
}

func relationshipView(userID int64, state connections.RelationshipState) map[string]interface{} {
	return map[string]interface{}{
		"user_id": userID,
		"state":   state,
	}
}

// Calls

func (h *Handler) InviteToCall(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}

	var body InviteBody
	if r.ContentLength != 0 && !decodeBody(w, r, &body) {
		return
	}

	invitation, err := h.calls.Invite(r.Context(), userID, body.Text)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.inbox.Loop().Refresh(r.Context()); err == nil {
		h.hub.Publish(EventConversations, h.inbox.Conversations())
	}
	utils.SuccessResponse(w, invitation, http.StatusCreated)
}

func (h *Handler) TapMessage(w http.ResponseWriter, r *http.Request) {
	messageID, ok := pathID(w, r, "messageId")
	if !ok {
		return
	}

	message, found := h.inbox.FindMessage(messageID)
	if !found {
		utils.ErrorResponse(w, "Message not found", http.StatusNotFound)
		return
	}

	result, err := h.calls.Tap(r.Context(), message)
	if err != nil {
		writeError(w, err)
		return
	}

	if result.SessionID != 0 {
		h.hub.Publish(EventCallPhase, result)
	}
	utils.SuccessResponse(w, result, http.StatusOK)
}

func (h *Handler) GetCallPhase(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathID(w, r, "sessionId")
	if !ok {
		return
	}

	utils.SuccessResponse(w, map[string]interface{}{
		"session_id": sessionID,
		"phase":      h.calls.Phase(sessionID),
	}, http.StatusOK)
}

// Favorites

func (h *Handler) GetFavorites(w http.ResponseWriter, r *http.Request) {
	utils.SuccessResponse(w, h.favorites.IDs(), http.StatusOK)
}

func (h *Handler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}

	favorite, err := h.favorites.Toggle(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	h.hub.Publish(EventFavorites, h.favorites.IDs())
	h.hub.Publish(EventConversations, h.inbox.Conversations())
	utils.SuccessResponse(w, map[string]interface{}{
		"user_id":     userID,
		"is_favorite": favorite,
	}, http.StatusOK)
}

// Health

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	snapshot := h.inbox.Loop().Snapshot()

	var lastSync *time.Time
	if !snapshot.FetchedAt.IsZero() {
		lastSync = &snapshot.FetchedAt
	}

	utils.SuccessResponse(w, map[string]interface{}{
		"status":        "ok",
		"local_user_id": h.inbox.LocalUserID(),
		"sync_running":  h.inbox.Loop().Running(),
		"last_sync":     lastSync,
		"ui_clients":    h.hub.ActiveConnections(),
	}, http.StatusOK)
}

// helpers

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		utils.ErrorResponse(w, "Invalid "+name, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		utils.ErrorResponse(w, "Invalid request", http.StatusBadRequest)
		return false
	}
	if err := utils.ValidateStruct(dst); err != nil {
		utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// writeError maps the error taxonomy onto HTTP statuses
func writeError(w http.ResponseWriter, err error) {
	title, message := api.Describe(err)
	status := statusFor(api.KindOf(err))

	if api.IsInformational(err) {
		utils.NoticeResponse(w, title, message, status)
		return
	}

	var details interface{}
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Used != nil && apiErr.Limit != nil {
		details = map[string]int{"used": *apiErr.Used, "limit": *apiErr.Limit}
	}

	utils.DetailedErrorResponse(w, title, message, details, status)
}

func statusFor(kind api.Kind) int {
	switch kind {
	case api.KindValidation:
		return http.StatusBadRequest
	case api.KindConflict:
		return http.StatusConflict
	case api.KindAuth:
		return http.StatusUnauthorized
	case api.KindQuota:
		return http.StatusPaymentRequired
	case api.KindTransient:
		return http.StatusServiceUnavailable
	case api.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
