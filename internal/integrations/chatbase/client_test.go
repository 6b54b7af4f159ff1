package chatbase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"skill-analytics/internal/domain"
)

func TestMessagesURL(t *testing.T) {
	cases := []struct {
		base string
		want string
	}{
		{"https://chatbase-area120.appspot.com", "https://chatbase-area120.appspot.com/api/messages"},
		{"https://chatbase-area120.appspot.com/", "https://chatbase-area120.appspot.com/api/messages"},
		{"http://localhost:8080/api", "http://localhost:8080/api/messages"},
		{"", "https://chatbase-area120.appspot.com/api/messages"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, messagesURL(tc.base), "base=%q", tc.base)
	}
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient()
	require.Equal(t, defaultBaseURL, c.baseURL)
	require.NotNil(t, c.httpClient)
	require.Equal(t, 10*time.Second, c.httpClient.Timeout)
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	return NewClient(
		WithBaseURL(srv.URL),
		WithHTTPClient(&http.Client{Timeout: 2 * time.Second}),
	)
}

func testSet() domain.MessageSet {
	return domain.MessageSet{
		APIKey:   "some_api_key",
		Platform: "Alexa",
		Version:  "1.0",
		Messages: []domain.Message{
			{
				Kind:      domain.MessageKindUser,
				SessionID: "session-1",
				UserID:    "user-id",
				Timestamp: "1700000000000",
				Text:      `{"param1":"something"}`,
				Intent:    "SomeIntent",
			},
			{
				Kind:      domain.MessageKindAgent,
				SessionID: "session-1",
				UserID:    "user-id",
				Timestamp: "1700000000000",
				Text:      "What time is it?",
			},
		},
	}
}

func TestClient_SendMessageSet_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/messages", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var body map[string][]map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))
		msgs := body["messages"]
		require.Len(t, msgs, 2)

		require.Equal(t, "some_api_key", msgs[0]["api_key"])
		require.Equal(t, "user", msgs[0]["type"])
		require.Equal(t, "user-id", msgs[0]["user_id"])
		require.Equal(t, float64(1700000000000), msgs[0]["time_stamp"])
		require.Equal(t, "Alexa", msgs[0]["platform"])
		require.Equal(t, `{"param1":"something"}`, msgs[0]["message"])
		require.Equal(t, "SomeIntent", msgs[0]["intent"])
		require.Equal(t, "1.0", msgs[0]["version"])
		require.Equal(t, "session-1", msgs[0]["custom_session_id"])
		require.NotContains(t, msgs[0], "not_handled")

		require.Equal(t, "agent", msgs[1]["type"])
		require.Equal(t, "What time is it?", msgs[1]["message"])
		require.NotContains(t, msgs[1], "intent")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`{
			"all_succeeded": true,
			"status": 200,
			"responses": [
				{"message_id": 123, "status": "success"},
				{"message_id": "456", "status": "success"}
			]
		}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	res, err := c.SendMessageSet(context.Background(), testSet())
	require.NoError(t, err)
	require.True(t, res.AllSucceeded)
	require.Equal(t, 200, res.Status)
	require.Len(t, res.Responses, 2)
	require.Equal(t, "123", res.Responses[0].MessageID)
	require.Equal(t, "456", res.Responses[1].MessageID)
}

func TestClient_SendMessageSet_NotHandledFlag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.Contains(t, string(raw), `"not_handled":true`)
		_, _ = w.Write([]byte(`{"all_succeeded":true,"status":200}`))
	}))
	defer srv.Close()

	set := testSet()
	set.Messages[0].Intent = "AMAZON.FallbackIntent"
	set.Messages[0].NotHandled = true

	c := newTestClient(t, srv)
	_, err := c.SendMessageSet(context.Background(), set)
	require.NoError(t, err)
}

func TestClient_SendMessageSet_MissingAllSucceeded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`{"status":200}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	res, err := c.SendMessageSet(context.Background(), testSet())
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrNotAllSucceeded))
	require.False(t, res.AllSucceeded)
	require.Equal(t, 200, res.Status)
}

func TestClient_SendMessageSet_AllSucceededFalse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`{"all_succeeded":false,"status":400,"responses":[{"status":"error","error":"bad api key"}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	res, err := c.SendMessageSet(context.Background(), testSet())
	require.ErrorIs(t, err, ErrNotAllSucceeded)
	require.Len(t, res.Responses, 1)
	require.Equal(t, "bad api key", res.Responses[0].Error)
}

func TestClient_SendMessageSet_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.SendMessageSet(context.Background(), testSet())
	require.Error(t, err)
	require.Contains(t, err.Error(), "unexpected status")
	require.Contains(t, err.Error(), "500")

	var statusErr *HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, 500, statusErr.HTTPStatusCode())
}

func TestClient_SendMessageSet_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`not-a-json`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.SendMessageSet(context.Background(), testSet())
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode response")
}

func TestClient_SendMessageSet_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"all_succeeded":true}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	c.httpClient = &http.Client{Timeout: 50 * time.Millisecond}
	_, err := c.SendMessageSet(context.Background(), testSet())
	require.Error(t, err)
}

func TestClient_SendMessageSet_NetworkError(t *testing.T) {
	c := NewClient(
		WithBaseURL("http://127.0.0.1:1"),
		WithHTTPClient(&http.Client{Timeout: 100 * time.Millisecond}),
	)
	_, err := c.SendMessageSet(context.Background(), testSet())
	require.Error(t, err)
	require.Contains(t, err.Error(), "request failed")
}

func TestClient_SendMessageSet_Validation(t *testing.T) {
	c := NewClient()

	_, err := c.SendMessageSet(context.Background(), domain.MessageSet{APIKey: "k"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "empty")

	set := testSet()
	set.APIKey = " "
	_, err = c.SendMessageSet(context.Background(), set)
	require.Error(t, err)
	require.Contains(t, err.Error(), "api key")
}
