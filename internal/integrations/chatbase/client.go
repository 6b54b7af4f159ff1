package chatbase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"skill-analytics/internal/domain"
)

const defaultBaseURL = "https://chatbase-area120.appspot.com"

// ErrNotAllSucceeded is returned when Chatbase answers 2xx but does not
// confirm every message in the batch.
var ErrNotAllSucceeded = errors.New("chatbase: batch not fully accepted")

// wireMessage is the per-message shape of the batch endpoint.
type wireMessage struct {
	APIKey          string      `json:"api_key"`
	Type            string      `json:"type"`
	UserID          string      `json:"user_id"`
	TimeStamp       json.Number `json:"time_stamp"`
	Platform        string      `json:"platform"`
	Message         string      `json:"message"`
	Intent          string      `json:"intent,omitempty"`
	NotHandled      bool        `json:"not_handled,omitempty"`
	Version         string      `json:"version"`
	CustomSessionID string      `json:"custom_session_id"`
}

type batchRequest struct {
	Messages []wireMessage `json:"messages"`
}

// batchResponse is the minimal response shape returned by the batch endpoint.
// AllSucceeded is a pointer so a missing flag is distinguishable from false.
type batchResponse struct {
	AllSucceeded *bool `json:"all_succeeded"`
	Status       int   `json:"status"`
	Responses    []struct {
		MessageID json.RawMessage `json:"message_id"`
		Status    string          `json:"status"`
		Error     string          `json:"error"`
	} `json:"responses"`
}

// HTTPStatusError captures non-2xx responses from Chatbase.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("chatbase: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client submits message sets to the Chatbase batch API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client. Requests are traced through an otelhttp
// transport unless WithHTTPClient replaces the HTTP client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: defaultHTTPClient(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func defaultHTTPClient() *http.Client {
	return &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return defaultHTTPClient()
}

func messagesURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	if strings.HasSuffix(base, "/api") {
		return base + "/messages"
	}
	return base + "/api/messages"
}

// SendMessageSet posts every message of set in a single batch request.
func (c *Client) SendMessageSet(ctx context.Context, set domain.MessageSet) (domain.SendResult, error) {
	if len(set.Messages) == 0 {
		return domain.SendResult{}, errors.New("chatbase: message set is empty")
	}
	if strings.TrimSpace(set.APIKey) == "" {
		return domain.SendResult{}, errors.New("chatbase: api key must not be empty")
	}

	body, err := json.Marshal(toWire(set))
	if err != nil {
		return domain.SendResult{}, fmt.Errorf("chatbase: marshal request: %w", err)
	}

	url := messagesURL(c.baseURL)

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if reqErr != nil {
		return domain.SendResult{}, fmt.Errorf("chatbase: create request: %w", reqErr)
	}
	req.Header.Set("Content-Type", "application/json")

	raw, err := c.doJSONRequest(req, url)
	if err != nil {
		return domain.SendResult{}, fmt.Errorf("chatbase: request failed: %w", err)
	}

	var payload batchResponse
	if decErr := json.Unmarshal(raw, &payload); decErr != nil {
		return domain.SendResult{}, fmt.Errorf("chatbase: decode response: %w", decErr)
	}

	result := domain.SendResult{Status: payload.Status}
	for _, r := range payload.Responses {
		result.Responses = append(result.Responses, domain.MessageResult{
			MessageID: strings.Trim(string(r.MessageID), `"`),
			Status:    r.Status,
			Error:     r.Error,
		})
	}
	if payload.AllSucceeded == nil || !*payload.AllSucceeded {
		return result, fmt.Errorf("%w: %s", ErrNotAllSucceeded, strings.TrimSpace(string(raw)))
	}
	result.AllSucceeded = true
	return result, nil
}

func toWire(set domain.MessageSet) batchRequest {
	out := batchRequest{Messages: make([]wireMessage, 0, len(set.Messages))}
	for _, m := range set.Messages {
		out.Messages = append(out.Messages, wireMessage{
			APIKey:          set.APIKey,
			Type:            string(m.Kind),
			UserID:          m.UserID,
			TimeStamp:       json.Number(m.Timestamp),
			Platform:        set.Platform,
			Message:         m.Text,
			Intent:          m.Intent,
			NotHandled:      m.NotHandled,
			Version:         set.Version,
			CustomSessionID: m.SessionID,
		})
	}
	return out
}

func (c *Client) doJSONRequest(req *http.Request, url string) ([]byte, error) {
	res, doErr := c.resolvedHTTPClient().Do(req)
	if doErr != nil {
		return nil, doErr
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}
