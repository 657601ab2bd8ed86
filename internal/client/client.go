// Package client implements the storefront API collaborators consumed by
// the chat session core: the streaming chat endpoint, thread and history
// endpoints, the address book and the cart refresh notification.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/pixelvault/shopchat/internal/chat"
	"github.com/pixelvault/shopchat/internal/stream"
)

// Transport selects how the chat reply stream is carried.
const (
	TransportSSE = "sse"
	TransportWS  = "ws"
)

// Client is an HTTP client for the storefront API.
type Client struct {
	baseURL   string
	token     string
	transport string

	httpClient *http.Client
	// streamClient carries open event streams. It has no client timeout:
	// a stalled stream is only resolved by transport closure or context
	// cancellation.
	streamClient *http.Client
}

// Compile-time collaborator checks.
var (
	_ chat.Streamer        = (*Client)(nil)
	_ chat.HistoryProvider = (*Client)(nil)
	_ chat.ThreadStore     = (*Client)(nil)
	_ chat.AddressBook     = (*Client)(nil)
	_ chat.CartNotifier    = (*Client)(nil)
)

// New creates a storefront API client. If baseURL is empty, uses the
// SHOPCHAT_API_URL env var or defaults to localhost:4000. The
// request/response timeout can be configured via SHOPCHAT_CLIENT_TIMEOUT.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("SHOPCHAT_API_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:4000"
	}

	timeout := 30 * time.Second
	if t := os.Getenv("SHOPCHAT_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL:      baseURL,
		transport:    TransportSSE,
		httpClient:   &http.Client{Timeout: timeout},
		streamClient: &http.Client{},
	}
}

// SetToken sets the bearer token attached to requests.
func (c *Client) SetToken(token string) {
	c.token = token
}

// SetTransport selects the stream transport, TransportSSE or TransportWS.
func (c *Client) SetTransport(transport string) {
	if transport == TransportWS {
		c.transport = TransportWS
		return
	}
	c.transport = TransportSSE
}

// envelope is the server's response wrapper. Some endpoints wrap the
// payload in a data field, some return it bare.
type envelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// unwrap returns the payload of a response body: the data field when
// present, the whole body otherwise.
func unwrap(body []byte) json.RawMessage {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && len(env.Data) > 0 {
		return env.Data
	}
	return body
}

// errorMessage extracts the server's error message from a non-success body.
func errorMessage(body []byte, status string) string {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Message != "" {
		return env.Message
	}
	return status
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload, result any) error {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("server error: %s - %s", resp.Status, errorMessage(body, resp.Status))
	}

	if result != nil {
		if err := json.Unmarshal(unwrap(body), result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// chatRequest is the send-message payload.
type chatRequest struct {
	Message  string `json:"message"`
	ThreadID string `json:"thread_id,omitempty"`
	NewChat  bool   `json:"new_chat,omitempty"`
}

// SendMessageStream opens the SSE (or WebSocket) reply stream for one user
// message and emits every recognized event in arrival order. It returns
// once the stream closes; a non-nil error means the transport failed before
// or during streaming.
func (c *Client) SendMessageStream(ctx context.Context, text string, opts chat.SendOptions, emit func(stream.Event)) error {
	if c.transport == TransportWS {
		return c.streamWS(ctx, text, opts, emit)
	}
	return c.streamSSE(ctx, text, opts, emit)
}

func (c *Client) streamSSE(ctx context.Context, text string, opts chat.SendOptions, emit func(stream.Event)) error {
	payload, err := json.Marshal(chatRequest{Message: text, ThreadID: opts.ThreadID, NewChat: opts.NewChat})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat?stream=1", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		return fmt.Errorf("server error: %s - %s", resp.Status, errorMessage(body, resp.Status))
	}

	var dec stream.LineDecoder
	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			for _, line := range dec.Feed(string(buf[:n])) {
				if ev, ok := stream.ParseLine(line); ok {
					emit(ev)
				}
			}
		}
		if err == io.EOF {
			// A tail without a trailing newline is non-data.
			dec.Discard()
			return nil
		}
		if err != nil {
			dec.Discard()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read stream: %w", err)
		}
	}
}

// ChatReply is the non-streaming reply to a user message.
type ChatReply struct {
	Message    string   `json:"message"`
	ProductIDs []string `json:"productIds"`
	ThreadID   string   `json:"thread_id"`
}

// SendMessage sends a message without streaming and returns the full reply.
// Used by the one-shot CLI path.
func (c *Client) SendMessage(ctx context.Context, text string, opts chat.SendOptions) (*ChatReply, error) {
	var reply ChatReply
	err := c.do(ctx, http.MethodPost, "/api/chat", nil,
		chatRequest{Message: text, ThreadID: opts.ThreadID, NewChat: opts.NewChat}, &reply)
	if err != nil {
		return nil, err
	}
	if reply.ProductIDs == nil {
		reply.ProductIDs = []string{}
	}
	return &reply, nil
}

// wireMessage is one persisted history entry.
type wireMessage struct {
	Role       string   `json:"role"`
	Content    string   `json:"content"`
	ProductIDs []string `json:"productIds"`
}

// FetchHistory loads a thread's persisted messages. limit is clamped to
// 1..50, matching the server's page bounds.
func (c *Client) FetchHistory(ctx context.Context, threadID string, limit int) ([]chat.Message, string, error) {
	query := url.Values{}
	if threadID != "" {
		query.Set("thread_id", threadID)
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 50 {
		limit = 50
	}
	query.Set("limit", strconv.Itoa(limit))

	var payload struct {
		Messages []wireMessage `json:"messages"`
		ThreadID string        `json:"thread_id"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/chat/history", query, nil, &payload); err != nil {
		return nil, "", err
	}

	msgs := make([]chat.Message, 0, len(payload.Messages))
	for _, m := range payload.Messages {
		role := chat.RoleUser
		if m.Role == "assistant" {
			role = chat.RoleAssistant
		}
		ids := m.ProductIDs
		if ids == nil {
			ids = []string{}
		}
		msgs = append(msgs, chat.Message{Role: role, Content: m.Content, ProductIDs: ids})
	}
	return msgs, payload.ThreadID, nil
}

// wireThread is one roster entry.
type wireThread struct {
	ThreadID      string    `json:"threadId"`
	Title         string    `json:"title"`
	LastMessageAt time.Time `json:"lastMessageAt"`
}

// ListThreads returns the user's chat threads, most recent first.
func (c *Client) ListThreads(ctx context.Context) ([]chat.Thread, error) {
	var payload struct {
		Threads []wireThread `json:"threads"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/chat/threads", nil, nil, &payload); err != nil {
		return nil, err
	}

	threads := make([]chat.Thread, 0, len(payload.Threads))
	for _, t := range payload.Threads {
		threads = append(threads, chat.Thread{ID: t.ThreadID, Title: t.Title, LastMessageAt: t.LastMessageAt})
	}
	return threads, nil
}

// RenameThread updates a thread title.
func (c *Client) RenameThread(ctx context.Context, id, title string) error {
	return c.do(ctx, http.MethodPatch, "/api/chat/threads/"+url.PathEscape(id), nil,
		map[string]string{"title": title}, nil)
}

// DeleteThread deletes a thread and all its messages.
func (c *Client) DeleteThread(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/chat/threads/"+url.PathEscape(id), nil, nil, nil)
}

// wireAddress is one saved address. The server emits Mongo-style _id on
// some routes and id on others.
type wireAddress struct {
	MongoID   string `json:"_id"`
	ID        string `json:"id"`
	Label     string `json:"label"`
	IsDefault bool   `json:"isDefault"`
}

// ListAddresses returns the user's saved shipping addresses.
func (c *Client) ListAddresses(ctx context.Context) ([]chat.Address, error) {
	var payload []wireAddress
	if err := c.do(ctx, http.MethodGet, "/api/addresses", nil, nil, &payload); err != nil {
		return nil, err
	}

	addrs := make([]chat.Address, 0, len(payload))
	for _, a := range payload {
		id := a.MongoID
		if id == "" {
			id = a.ID
		}
		addrs = append(addrs, chat.Address{ID: id, Label: a.Label, IsDefault: a.IsDefault})
	}
	return addrs, nil
}

// RefreshCart re-fetches the cart so the storefront's cached copy picks up
// agent-side purchases. Fire-and-forget; the response is discarded.
func (c *Client) RefreshCart(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/cart", nil, nil, nil)
}
