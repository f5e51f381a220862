// internal/api/client.go
// REST client for the remote backend. Every call is a single request with a
// fixed transport timeout; nothing is retried here.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/imadgeboyega/kiekky-client/internal/common/utils"
	"github.com/imadgeboyega/kiekky-client/internal/metrics"
)

const defaultTimeout = 15 * time.Second

// Client talks to the backend on behalf of one signed-in user
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a backend client. A non-positive timeout falls back to the default.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Messages

// ConversationLog fetches every message involving the local user
func (c *Client) ConversationLog(ctx context.Context) ([]Message, error) {
	var messages []Message
	if err := c.do(ctx, "conversations_log", http.MethodGet, "/api/v1/messages/log", nil, &messages); err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []Message{}
	}
	return messages, nil
}

func (c *Client) SendMessage(ctx context.Context, req *SendMessageRequest) (*Message, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, Validation(err.Error())
	}

	var message Message
	if err := c.do(ctx, "send_message", http.MethodPost, "/api/v1/messages", req, &message); err != nil {
		return nil, err
	}
	return &message, nil
}

// Connections

func (c *Client) PendingSent(ctx context.Context) ([]ConnectionRequest, error) {
	return c.connectionList(ctx, "pending_sent", "/api/v1/connections/sent")
}

func (c *Client) PendingReceived(ctx context.Context) ([]ConnectionRequest, error) {
	return c.connectionList(ctx, "pending_received", "/api/v1/connections/received")
}

func (c *Client) Approved(ctx context.Context) ([]ConnectionRequest, error) {
	return c.connectionList(ctx, "approved_friends", "/api/v1/connections/approved")
}

func (c *Client) SendConnection(ctx context.Context, targetUserID int64) (*ConnectionRequest, error) {
	req := &SendConnectionRequest{TargetUserID: targetUserID}
	if err := utils.ValidateStruct(req); err != nil {
		return nil, Validation(err.Error())
	}

	var created ConnectionRequest
	if err := c.do(ctx, "send_connection", http.MethodPost, "/api/v1/connections", req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) AcceptConnection(ctx context.Context, connectionID int64) error {
	return c.connectionAction(ctx, connectionID, "accept")
}

func (c *Client) RejectConnection(ctx context.Context, connectionID int64) error {
	return c.connectionAction(ctx, connectionID, "reject")
}

func (c *Client) CancelConnection(ctx context.Context, connectionID int64) error {
	return c.connectionAction(ctx, connectionID, "cancel")
}

func (c *Client) RemoveConnection(ctx context.Context, connectionID int64) error {
	return c.connectionAction(ctx, connectionID, "remove")
}

func (c *Client) connectionList(ctx context.Context, operation, path string) ([]ConnectionRequest, error) {
	var list []ConnectionRequest
	if err := c.do(ctx, operation, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []ConnectionRequest{}
	}
	return list, nil
}

func (c *Client) connectionAction(ctx context.Context, connectionID int64, action string) error {
	if connectionID <= 0 {
		return Validation("connection id is required")
	}
	path := fmt.Sprintf("/api/v1/connections/%d/%s", connectionID, action)
	return c.do(ctx, action+"_connection", http.MethodPost, path, nil, nil)
}

// Sessions

func (c *Client) CreateSession(ctx context.Context, counterpartID int64) (*CallSession, error) {
	req := &CreateSessionRequest{CounterpartID: counterpartID}
	if err := utils.ValidateStruct(req); err != nil {
		return nil, Validation(err.Error())
	}

	var session CallSession
	if err := c.do(ctx, "create_session", http.MethodPost, "/api/v1/sessions", req, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *Client) StartSession(ctx context.Context, sessionID int64) (*CallSession, error) {
	return c.sessionAction(ctx, sessionID, "start")
}

func (c *Client) ReadySession(ctx context.Context, sessionID int64) (*CallSession, error) {
	return c.sessionAction(ctx, sessionID, "ready")
}

func (c *Client) sessionAction(ctx context.Context, sessionID int64, action string) (*CallSession, error) {
	if sessionID <= 0 {
		return nil, Validation("session id is required")
	}

	var session CallSession
	path := fmt.Sprintf("/api/v1/sessions/%d/%s", sessionID, action)
	if err := c.do(ctx, action+"_session", http.MethodPost, path, nil, &session); err != nil {
		return nil, err
	}
	if session.SessionID == 0 {
		session.SessionID = sessionID
	}
	return &session, nil
}

// do performs one request and decodes the envelope's data into out
func (c *Client) do(ctx context.Context, operation, method, path string, body, out interface{}) (err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = string(KindOf(err))
		}
		metrics.RecordBackendRequest(operation, outcome, time.Since(start))
	}()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", operation, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", operation, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fromTransport(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fromTransport(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fromResponse(resp.StatusCode, raw)
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	// Accept both the {success,data} envelope and a bare payload
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	payload := raw
	if json.Unmarshal(raw, &env) == nil && len(env.Data) > 0 {
		payload = env.Data
	}
	if string(bytes.TrimSpace(payload)) == "null" {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &Error{Kind: KindUnknown, Status: resp.StatusCode, Reason: "Unexpected response from server", Err: err}
	}
	return nil
}
