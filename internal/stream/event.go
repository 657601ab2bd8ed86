// Package stream decodes the assistant's server-pushed event stream into
// typed events. The transport delivers newline-delimited SSE frames whose
// data payloads are JSON; this package handles re-framing across arbitrary
// read boundaries and mapping payloads onto the event union.
package stream

// Kind identifies a stream event variant.
type Kind string

const (
	// KindChunk carries a fragment of the assistant's final answer text.
	KindChunk Kind = "chunk"
	// KindThinking is an advisory progress signal. It is never persisted
	// into message content.
	KindThinking Kind = "thinking"
	// KindDone terminates a turn and carries product ids plus any
	// purchase-flow references.
	KindDone Kind = "done"
	// KindError reports a mid-stream failure.
	KindError Kind = "error"
)

// Meta holds purchase-flow references attached to a done event.
type Meta struct {
	OrderID    string
	InvoiceID  string
	PaymentURL string
	PaymentID  string
}

// IsZero reports whether no reference is set.
func (m Meta) IsZero() bool {
	return m == Meta{}
}

// Event is one typed unit of server-pushed data within a single exchange.
type Event struct {
	Kind Kind

	// Text is the chunk/thinking content, or the error message for
	// KindError.
	Text string

	// Done-only fields.
	ProductIDs []string
	ThreadID   string
	Meta       Meta
}
