package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "token-123", time.Second)
}

func TestConversationLogDecodesEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/messages/log", r.URL.Path)
		assert.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))
		w.Write([]byte(`{"success":true,"data":[{"id":1,"sender":{"id":1},"receiver":{"id":2},"content":"hi","created_at":"2024-01-01T10:00:00Z"}]}`))
	})

	messages, err := client.ConversationLog(context.Background())
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "hi", messages[0].Content)
	assert.Equal(t, int64(2), messages[0].Receiver.ID)
}

func TestConversationLogAcceptsBareArrayAndNull(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`null`))
	})

	messages, err := client.ConversationLog(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, messages)
	assert.Empty(t, messages)

	client = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":9,"content":"x"}]`))
	})
	messages, err = client.ConversationLog(context.Background())
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, int64(9), messages[0].ID)
}

func TestSendMessagePostsBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req SendMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(7), req.ReceiverID)
		assert.Equal(t, "hello", req.Content)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"success":true,"data":{"id":44,"content":"hello"}}`))
	})

	msg, err := client.SendMessage(context.Background(), &SendMessageRequest{ReceiverID: 7, Content: "hello"})
	require.NoError(t, err)
	assert.Equal(t, int64(44), msg.ID)
}

func TestSendMessageValidatesBeforeNetwork(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := client.SendMessage(context.Background(), &SendMessageRequest{ReceiverID: 7})
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.False(t, called)
}

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		kind   Kind
		reason string
	}{
		{"conflict", http.StatusConflict, `{"success":false,"error":"request already sent"}`, KindConflict, "request already sent"},
		{"auth", http.StatusUnauthorized, `{"error":"token expired"}`, KindAuth, "token expired"},
		{"not found", http.StatusNotFound, `{"message":"no such connection"}`, KindNotFound, "no such connection"},
		{"server", http.StatusBadGateway, ``, KindTransient, genericReason},
		{"quota", http.StatusTooManyRequests, `{"error":"daily limit","used":5,"limit":5}`, KindQuota, "daily limit"},
		{"quota by payload", http.StatusForbidden, `{"error":"plan limit","used":3,"limit":3}`, KindQuota, "plan limit"},
		{"validation", http.StatusBadRequest, `{"error":"bad id"}`, KindValidation, "bad id"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			})

			err := client.AcceptConnection(context.Background(), 3)
			require.Error(t, err)
			assert.Equal(t, tc.kind, KindOf(err))
			assert.Equal(t, tc.reason, err.Error())
		})
	}
}

func TestQuotaFiguresAreDescribed(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error":"Session limit reached","used":3,"limit":3}`))
	})

	_, err := client.StartSession(context.Background(), 12)
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	require.NotNil(t, apiErr.Used)
	assert.Equal(t, 3, *apiErr.Used)

	title, message := Describe(err)
	assert.Equal(t, "Limit reached", title)
	assert.Contains(t, message, "used 3 of 3")
}

func TestTimeoutIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", 20*time.Millisecond)
	_, err := client.PendingSent(context.Background())
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}

func TestSessionActionKeepsRequestedID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/sessions/31/ready", r.URL.Path)
		w.Write([]byte(`{"success":true,"data":{"participant_ready":true}}`))
	})

	session, err := client.ReadySession(context.Background(), 31)
	require.NoError(t, err)
	assert.Equal(t, int64(31), session.SessionID)
	assert.True(t, session.ParticipantReady)
}

func TestParseTimestamp(t *testing.T) {
	_, ok := ParseTimestamp("")
	assert.False(t, ok)
	_, ok = ParseTimestamp("yesterday")
	assert.False(t, ok)

	ts, ok := ParseTimestamp("2024-03-01 12:30:00")
	require.True(t, ok)
	assert.Equal(t, 12, ts.Hour())
}

func TestDescribeFallsBackToGenericMessage(t *testing.T) {
	title, message := Describe(assert.AnError)
	assert.Equal(t, "Something went wrong", title)
	assert.Equal(t, genericReason, message)

	title, _ = Describe(Conflict("already sent"))
	assert.Equal(t, "Heads up", title)
	assert.True(t, IsInformational(Conflict("x")))
}
