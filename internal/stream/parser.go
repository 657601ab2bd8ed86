package stream

import (
	"encoding/json"
	"strings"
)

const (
	dataPrefix = "data:"
	endMarker  = "[DONE]"
)

// wireEvent is the JSON payload carried by one data line. The server sends
// both snake_case and camelCase thread id keys depending on the code path,
// so both are accepted.
type wireEvent struct {
	Type        string   `json:"type"`
	Content     *string  `json:"content"`
	Message     string   `json:"message"`
	ProductIDs  []string `json:"productIds"`
	ThreadID    string   `json:"thread_id"`
	ThreadIDAlt string   `json:"threadId"`

	OrderID        string `json:"orderId"`
	InvoiceID      string `json:"invoiceId"`
	MockPaymentURL string `json:"mockPaymentUrl"`
	PaymentID      string `json:"paymentId"`
}

// ParseLine maps one complete line onto an Event. The second return value is
// false when the line carries no event: comment and keep-alive lines, blank
// payloads, the end marker, payloads that fail to decode, and any event type
// outside the allow-list (tool calls, tool results and other internal
// traffic must never reach the transcript).
func ParseLine(line string) (Event, bool) {
	if !strings.HasPrefix(line, dataPrefix) {
		return Event{}, false
	}
	raw := strings.TrimSpace(line[len(dataPrefix):])
	if raw == "" || raw == endMarker {
		return Event{}, false
	}
	return ParseData([]byte(raw))
}

// ParseData decodes a raw JSON payload onto an Event. Shared by the SSE and
// WebSocket transports, which carry identical payloads.
func ParseData(raw []byte) (Event, bool) {
	var we wireEvent
	if err := json.Unmarshal(raw, &we); err != nil {
		// A single malformed payload is dropped; it never aborts the
		// stream.
		return Event{}, false
	}

	// Explicit allow-list: unknown types fail closed.
	switch we.Type {
	case "chunk":
		if we.Content == nil {
			return Event{}, false
		}
		return Event{Kind: KindChunk, Text: *we.Content}, true

	case "thinking":
		if we.Content == nil {
			return Event{}, false
		}
		return Event{Kind: KindThinking, Text: *we.Content}, true

	case "done":
		ids := we.ProductIDs
		if ids == nil {
			ids = []string{}
		}
		tid := we.ThreadID
		if tid == "" {
			tid = we.ThreadIDAlt
		}
		return Event{
			Kind:       KindDone,
			ProductIDs: ids,
			ThreadID:   tid,
			Meta: Meta{
				OrderID:    we.OrderID,
				InvoiceID:  we.InvoiceID,
				PaymentURL: we.MockPaymentURL,
				PaymentID:  we.PaymentID,
			},
		}, true

	case "error":
		if we.Message == "" {
			return Event{}, false
		}
		return Event{Kind: KindError, Text: we.Message}, true

	default:
		return Event{}, false
	}
}
