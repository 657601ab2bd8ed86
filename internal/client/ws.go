package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pixelvault/shopchat/internal/chat"
	"github.com/pixelvault/shopchat/internal/stream"
)

// wsSubprotocol identifies the chat stream protocol. Frames carry the same
// JSON payloads as the SSE data lines.
const wsSubprotocol = "shopchat-stream-v1"

// streamWS carries the reply stream over a WebSocket instead of SSE. The
// server echoes the identical event payloads, one JSON document per frame.
func (c *Client) streamWS(ctx context.Context, text string, opts chat.SendOptions, emit func(stream.Event)) error {
	wsEndpoint := c.baseURL + "/api/chat/ws"
	wsEndpoint = strings.Replace(wsEndpoint, "http://", "ws://", 1)
	wsEndpoint = strings.Replace(wsEndpoint, "https://", "wss://", 1)

	u, err := url.Parse(wsEndpoint)
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		Subprotocols:     []string{wsSubprotocol},
	}

	var header map[string][]string
	if c.token != "" {
		header = map[string][]string{"Authorization": {"Bearer " + c.token}}
	}

	conn, _, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return fmt.Errorf("websocket connect: %w", err)
	}

	// Track connection state for proper cleanup.
	var mu sync.Mutex
	closed := false
	closeConn := func() {
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			conn.Close()
		}
	}
	defer closeConn()

	if err := conn.WriteJSON(chatRequest{Message: text, ThreadID: opts.ThreadID, NewChat: opts.NewChat}); err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	// Close the connection when the context is cancelled so the read loop
	// never dangles.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			closeConn()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read message: %w", err)
		}

		ev, ok := stream.ParseData(data)
		if !ok {
			// Keep-alives and unknown frames are dropped, same as SSE.
			continue
		}
		emit(ev)
		if ev.Kind == stream.KindDone {
			return nil
		}
	}
}
