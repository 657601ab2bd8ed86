package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pixelvault/shopchat/internal/chat"
	"github.com/pixelvault/shopchat/internal/stream"
)

func collectEvents(t *testing.T, c *Client, text string, opts chat.SendOptions) ([]stream.Event, error) {
	t.Helper()
	var events []stream.Event
	err := c.SendMessageStream(context.Background(), text, opts, func(ev stream.Event) {
		events = append(events, ev)
	})
	return events, err
}

// The SSE endpoint delivers frames in deliberately awkward fragments; the
// client must reassemble them into the same events.
func TestClient_SendMessageStream_SSE(t *testing.T) {
	fragments := []string{
		"data: {\"type\":\"thinking\",\"content\":\"Looking\"}\n",
		"data: {\"type\":\"chunk\",\"cont",
		"ent\":\"Sure, \"}\ndata: {\"type\":\"chunk\",\"content\":\"I can help.\"}\n",
		"data: {\"type\":\"tool_call\",\"content\":\"secret\"}\n",
		"data: [DONE]\n",
		"data: {\"type\":\"done\",\"productIds\":[\"p1\"],\"thread_id\":\"t1\",\"orderId\":\"o1\"}\n",
		"data: {\"type\":\"chunk\",\"content\":\"trailing partial with no newline",
	}

	var gotBody chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" || r.URL.Query().Get("stream") != "1" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, f := range fragments {
			_, _ = w.Write([]byte(f))
			flusher.Flush()
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	events, err := collectEvents(t, c, "Buy Elden Ring for me", chat.SendOptions{ThreadID: "t1", NewChat: true})
	if err != nil {
		t.Fatalf("SendMessageStream() error = %v", err)
	}

	if gotBody.Message != "Buy Elden Ring for me" || gotBody.ThreadID != "t1" || !gotBody.NewChat {
		t.Errorf("request body = %+v", gotBody)
	}

	want := []stream.Event{
		{Kind: stream.KindThinking, Text: "Looking"},
		{Kind: stream.KindChunk, Text: "Sure, "},
		{Kind: stream.KindChunk, Text: "I can help."},
		{Kind: stream.KindDone, ProductIDs: []string{"p1"}, ThreadID: "t1", Meta: stream.Meta{OrderID: "o1"}},
	}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("events = %+v\nwant %+v", events, want)
	}
}

func TestClient_SendMessageStream_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"message":"agent unavailable"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	events, err := collectEvents(t, c, "hi", chat.SendOptions{})
	if err == nil {
		t.Fatal("SendMessageStream() error = nil, want transport error")
	}
	if !strings.Contains(err.Error(), "agent unavailable") {
		t.Errorf("error = %v, want server message included", err)
	}
	if len(events) != 0 {
		t.Errorf("events emitted on failed request: %+v", events)
	}
}

func TestClient_SendMessageStream_Cancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	c := New(srv.URL)
	go func() {
		errCh <- c.SendMessageStream(ctx, "hi", chat.SendOptions{}, func(stream.Event) {})
	}()

	cancel()
	select {
	case err := <-errCh:
		if err == nil {
			t.Error("cancelled stream returned nil error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("read loop not released by cancellation")
	}
}

func TestClient_SendMessageStream_WebSocket(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat/ws" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var req chatRequest
		if err := conn.ReadJSON(&req); err != nil {
			t.Errorf("read request: %v", err)
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"chunk","content":"hello "}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"tool_result","content":"hidden"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"done","thread_id":"t7"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.SetTransport(TransportWS)

	events, err := collectEvents(t, c, "hi", chat.SendOptions{})
	if err != nil {
		t.Fatalf("SendMessageStream() over ws error = %v", err)
	}

	want := []stream.Event{
		{Kind: stream.KindChunk, Text: "hello "},
		{Kind: stream.KindDone, ProductIDs: []string{}, ThreadID: "t7"},
	}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("events = %+v\nwant %+v", events, want)
	}
}

func TestClient_FetchHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "50" {
			t.Errorf("limit = %s, want clamped to 50", got)
		}
		if got := r.URL.Query().Get("thread_id"); got != "t1" {
			t.Errorf("thread_id = %s, want t1", got)
		}
		// Envelope-wrapped payload.
		_, _ = w.Write([]byte(`{"data":{"messages":[
			{"role":"user","content":"hi"},
			{"role":"assistant","content":"hello","productIds":["p1"]}
		],"thread_id":"t1"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	msgs, tid, err := c.FetchHistory(context.Background(), "t1", 500)
	if err != nil {
		t.Fatalf("FetchHistory() error = %v", err)
	}
	if tid != "t1" {
		t.Errorf("thread id = %q", tid)
	}
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	if msgs[0].Role != chat.RoleUser || msgs[1].Role != chat.RoleAssistant {
		t.Errorf("roles = %s, %s", msgs[0].Role, msgs[1].Role)
	}
	if msgs[0].ProductIDs == nil {
		t.Error("missing productIds must decode to empty slice")
	}
}

func TestClient_ListAddresses_MongoIDs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/addresses" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`[
			{"_id":"a1","label":"Home","isDefault":true},
			{"id":"a2","label":"Office"}
		]`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	addrs, err := c.ListAddresses(context.Background())
	if err != nil {
		t.Fatalf("ListAddresses() error = %v", err)
	}
	want := []chat.Address{
		{ID: "a1", Label: "Home", IsDefault: true},
		{ID: "a2", Label: "Office"},
	}
	if !reflect.DeepEqual(addrs, want) {
		t.Errorf("addresses = %+v, want %+v", addrs, want)
	}
}

func TestClient_ThreadOperations(t *testing.T) {
	var gotMethod, gotPath, gotTitle string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`{"data":{"threads":[{"threadId":"t1","title":"Gifts"}]}}`))
		case http.MethodPatch:
			var body struct {
				Title string `json:"title"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			gotTitle = body.Title
			_, _ = w.Write([]byte(`{"updated":true}`))
		case http.MethodDelete:
			_, _ = w.Write([]byte(`{"deleted":true}`))
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	ctx := context.Background()

	threads, err := c.ListThreads(ctx)
	if err != nil {
		t.Fatalf("ListThreads() error = %v", err)
	}
	if len(threads) != 1 || threads[0].ID != "t1" || threads[0].Title != "Gifts" {
		t.Errorf("threads = %+v", threads)
	}

	if err := c.RenameThread(ctx, "t1", "New title"); err != nil {
		t.Fatalf("RenameThread() error = %v", err)
	}
	if gotMethod != http.MethodPatch || gotPath != "/api/chat/threads/t1" || gotTitle != "New title" {
		t.Errorf("rename request = %s %s title=%q", gotMethod, gotPath, gotTitle)
	}

	if err := c.DeleteThread(ctx, "t1"); err != nil {
		t.Fatalf("DeleteThread() error = %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/api/chat/threads/t1" {
		t.Errorf("delete request = %s %s", gotMethod, gotPath)
	}
}

func TestClient_AuthHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok123" {
			t.Errorf("Authorization = %q", got)
		}
		_, _ = w.Write([]byte(`{"threads":[]}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.SetToken("tok123")
	if _, err := c.ListThreads(context.Background()); err != nil {
		t.Fatalf("ListThreads() error = %v", err)
	}
}
