// Package chat implements the assistant session core: the transcript
// accumulator, thread lifecycle, slot-filling dialogue state and the
// per-turn orchestrator. It owns no transport; collaborators are injected
// through the narrow interfaces in session.go.
package chat

import "github.com/pixelvault/shopchat/internal/stream"

// Role identifies the author of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one transcript entry. At most one message has Streaming set at
// any time; once the turn settles the flag clears permanently.
type Message struct {
	Role       Role
	Content    string
	Streaming  bool
	ProductIDs []string
	Meta       stream.Meta
	Err        bool
}

// Transcript accumulates the message list for one open session. It is only
// ever mutated from a single ordered callback chain, so it carries no lock.
type Transcript struct {
	msgs []Message
}

// Append adds a message to the end of the transcript.
func (t *Transcript) Append(m Message) {
	t.msgs = append(t.msgs, m)
}

// AppendUser adds a user message.
func (t *Transcript) AppendUser(content string) {
	t.Append(Message{Role: RoleUser, Content: content})
}

// OnChunk folds a chunk into the in-flight assistant message, starting one
// if the last message is not an in-progress assistant reply.
func (t *Transcript) OnChunk(text string) {
	if n := len(t.msgs); n > 0 {
		last := &t.msgs[n-1]
		if last.Role == RoleAssistant && last.Streaming {
			last.Content += text
			return
		}
	}
	t.Append(Message{Role: RoleAssistant, Content: text, Streaming: true})
}

// OnDone settles the turn: clears the streaming flag on the last assistant
// message and attaches product ids and purchase references. When a done
// arrives with no prior chunk, an empty assistant message is created so the
// attached references still surface.
func (t *Transcript) OnDone(productIDs []string, meta stream.Meta) {
	if productIDs == nil {
		productIDs = []string{}
	}
	if n := len(t.msgs); n > 0 {
		last := &t.msgs[n-1]
		if last.Role == RoleAssistant {
			last.Streaming = false
			last.ProductIDs = productIDs
			last.Meta = meta
			return
		}
	}
	t.Append(Message{Role: RoleAssistant, ProductIDs: productIDs, Meta: meta})
}

// SettleAll clears any lingering streaming flag. Used when a turn ends on a
// transport error so no message stays marked in-flight.
func (t *Transcript) SettleAll() {
	for i := range t.msgs {
		t.msgs[i].Streaming = false
	}
}

// Replace swaps the whole message list, e.g. when loading another thread's
// history. The old list is discarded atomically.
func (t *Transcript) Replace(msgs []Message) {
	t.msgs = append([]Message(nil), msgs...)
}

// Clear empties the transcript.
func (t *Transcript) Clear() {
	t.msgs = nil
}

// Messages returns the current message list. Callers must not mutate it.
func (t *Transcript) Messages() []Message {
	return t.msgs
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	return len(t.msgs)
}

// LastAssistant returns the most recent assistant message.
func (t *Transcript) LastAssistant() (Message, bool) {
	for i := len(t.msgs) - 1; i >= 0; i-- {
		if t.msgs[i].Role == RoleAssistant {
			return t.msgs[i], true
		}
	}
	return Message{}, false
}
