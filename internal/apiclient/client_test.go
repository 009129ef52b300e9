package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/config"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/requester"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokenSource struct {
	token string
}

func (s *tokenSource) GetToken(context.Context) (string, bool) {
	return s.token, s.token != ""
}

func newTestClient(t *testing.T, url, token string) *Client {
	t.Helper()
	r := requester.New(
		&config.BackendConfig{BaseURL: url, Timeout: time.Second},
		requester.NewSessionAuthManager(&tokenSource{token: token}),
	)
	return NewClient(r)
}

func TestClient_ListSessions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/sessions/user/ada@example.com", r.URL.Path)
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		assert.Equal(t, "Bearer tok_1", r.Header.Get("Authorization"))

		_, _ = w.Write([]byte(`[
			{"session_id":"s1","user_email":"ada@example.com","session_name":"Q3 revenue",
			 "created_at":"2026-10-01T09:30:00.123456","updated_at":"2026-10-02T10:00:00Z",
			 "is_active":true,"message_count":4},
			{"session_id":"s2","user_email":"ada@example.com","session_name":"Churn",
			 "created_at":"2026-10-03T08:00:00","updated_at":null,"is_active":false}
		]`))
	}))
	defer server.Close()

	sessions := newTestClient(t, server.URL, "tok_1").ListSessions(context.Background(), "ada@example.com")

	require.Len(t, sessions, 2)
	assert.Equal(t, "s1", sessions[0].SessionID)
	assert.Equal(t, "Q3 revenue", sessions[0].SessionName)
	require.NotNil(t, sessions[0].MessageCount)
	assert.Equal(t, 4, *sessions[0].MessageCount)
	assert.Equal(t, time.Date(2026, 10, 1, 9, 30, 0, 123456000, time.UTC), sessions[0].CreatedAt.Time)
	assert.Nil(t, sessions[1].MessageCount)
	assert.True(t, sessions[1].UpdatedAt.IsZero())
}

func TestClient_NeutralValues(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		},
		{
			name: "unauthorized",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			},
		},
		{
			name: "garbage body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`<html>`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				tt.handler(w, r)
			}))
			defer server.Close()

			c := newTestClient(t, server.URL, "tok_1")
			ctx := context.Background()

			sessions := c.ListSessions(ctx, "ada@example.com")
			assert.NotNil(t, sessions)
			assert.Empty(t, sessions)

			messages := c.ListMessages(ctx, "s1")
			assert.NotNil(t, messages)
			assert.Empty(t, messages)

			assert.Nil(t, c.CreateSession(ctx, "ada@example.com", "x"))

			// No retry on any status.
			assert.Equal(t, int32(3), calls.Load())
		})
	}
}

func TestClient_NetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c := newTestClient(t, url, "tok_1")
	ctx := context.Background()

	sessions := c.ListSessions(ctx, "ada@example.com")
	assert.Equal(t, []SessionSummary{}, sessions)
	assert.Equal(t, []Message{}, c.ListMessages(ctx, "s1"))
	assert.Nil(t, c.CreateSession(ctx, "ada@example.com", "x"))
	assert.False(t, c.DeleteSession(ctx, "s1"))
}

func TestClient_NoTokenSendsNoRequest(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, "")
	ctx := context.Background()

	assert.Empty(t, c.ListSessions(ctx, "ada@example.com"))
	assert.Empty(t, c.ListMessages(ctx, "s1"))
	assert.Nil(t, c.CreateSession(ctx, "ada@example.com", "x"))
	assert.False(t, c.DeleteSession(ctx, "s1"))
	assert.Equal(t, int32(0), calls.Load())
}

func TestClient_ListMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/sessions/messages/s%2F1", r.URL.EscapedPath())
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`[
			{"id":1,"session_id":"s/1","message_type":"human","content":"top customers?","timestamp":"2026-10-01T09:30:00"},
			{"id":"m-2","session_id":"s/1","message_type":"ai","content":"Here they are","timestamp":"2026-10-01T09:30:02+00:00",
			 "chart_files":["chart.png"],"query_results":{"rows":[[1,"acme"]]}}
		]`))
	}))
	defer server.Close()

	messages := newTestClient(t, server.URL, "tok_1").ListMessages(context.Background(), "s/1")

	require.Len(t, messages, 2)
	assert.Equal(t, MessageID("1"), messages[0].ID)
	assert.Equal(t, MessageTypeHuman, messages[0].MessageType)
	assert.Equal(t, MessageID("m-2"), messages[1].ID)
	assert.Equal(t, MessageTypeAI, messages[1].MessageType)
	assert.Equal(t, []string{"chart.png"}, messages[1].ChartFiles)
	assert.JSONEq(t, `{"rows":[[1,"acme"]]}`, string(messages[1].QueryResults))
}

func TestClient_CreateSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/sessions/create", r.URL.Path)
		assert.Empty(t, r.URL.RawQuery)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"user_email": "ada@example.com", "session_name": "Q4"}, body)

		_, _ = w.Write([]byte(`{"session_id":"s9","user_email":"ada@example.com","session_name":"Q4",
			"created_at":"2026-10-18T09:00:00","updated_at":"2026-10-18T09:00:00","is_active":true}`))
	}))
	defer server.Close()

	created := newTestClient(t, server.URL, "tok_1").CreateSession(context.Background(), "ada@example.com", "Q4")

	require.NotNil(t, created)
	assert.Equal(t, "s9", created.SessionID)
	assert.True(t, created.IsActive)
}

func TestClient_DeleteSession(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   bool
	}{
		{name: "ok", status: http.StatusOK, want: true},
		{name: "no content", status: http.StatusNoContent, want: true},
		{name: "not found", status: http.StatusNotFound, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodDelete, r.Method)
				assert.Equal(t, "/api/sessions/s1", r.URL.Path)
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			assert.Equal(t, tt.want, newTestClient(t, server.URL, "tok_1").DeleteSession(context.Background(), "s1"))
		})
	}
}

func TestTimestamp_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{in: `"2026-10-01T09:30:00Z"`, want: time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC)},
		{in: `"2026-10-01T09:30:00.5"`, want: time.Date(2026, 10, 1, 9, 30, 0, 500000000, time.UTC)},
		{in: `"2026-10-01 09:30:00"`, want: time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC)},
		{in: `null`},
		{in: `"yesterday"`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var ts Timestamp
			err := json.Unmarshal([]byte(tt.in), &ts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(ts.Time), "got %s", ts.Time)
		})
	}
}
