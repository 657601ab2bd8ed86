package chat

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pixelvault/shopchat/internal/stream"
)

// State is the orchestrator's per-request state.
type State int

const (
	// StateIdle means no request is outstanding; input is enabled.
	StateIdle State = iota
	// StateSending means the request is dispatched but no line has been
	// processed yet.
	StateSending
	// StateStreaming means at least one line has been processed.
	StateStreaming
)

// ErrBusy is returned when a send is attempted while a request is already in
// flight. The guard is explicit rather than relying on disabled UI input.
var ErrBusy = errors.New("chat: a request is already in flight")

// ErrEmptyMessage is returned for blank input.
var ErrEmptyMessage = errors.New("chat: empty message")

// SendOptions selects the thread a message continues.
type SendOptions struct {
	ThreadID string
	NewChat  bool
}

// Streamer opens the push stream for one user message. Implementations call
// emit for every recognized event, strictly in arrival order, and return
// once the stream closes. A non-nil error means the transport failed;
// recognized error events are delivered through emit instead.
type Streamer interface {
	SendMessageStream(ctx context.Context, text string, opts SendOptions, emit func(stream.Event)) error
}

// HistoryProvider loads a thread's persisted messages. It returns the
// effective thread id, which may differ from the requested one when the
// server resolves a default.
type HistoryProvider interface {
	FetchHistory(ctx context.Context, threadID string, limit int) ([]Message, string, error)
}

// ThreadStore exposes the server-side thread roster operations.
type ThreadStore interface {
	ListThreads(ctx context.Context) ([]Thread, error)
	RenameThread(ctx context.Context, id, title string) error
	DeleteThread(ctx context.Context, id string) error
}

// AddressBook lists the user's saved shipping addresses.
type AddressBook interface {
	ListAddresses(ctx context.Context) ([]Address, error)
}

// CartNotifier receives the fire-and-forget cart refresh after a settled
// turn. Failures are ignored.
type CartNotifier interface {
	RefreshCart(ctx context.Context) error
}

// Dependencies wires the session's collaborators.
type Dependencies struct {
	Streamer  Streamer
	History   HistoryProvider
	Threads   ThreadStore
	Addresses AddressBook
	Cart      CartNotifier
	Logger    *slog.Logger
}

// Session orchestrates one open assistant panel: it owns the transcript and
// dialogue slots for its lifetime and composes the stream pipeline. All
// mutating methods must be called from a single ordered callback chain; the
// session holds no lock.
type Session struct {
	streamer Streamer
	threads  *ThreadManager
	dialogue *Dialogue
	cart     CartNotifier
	book     AddressBook
	stats    *TurnStats
	logger   *slog.Logger

	transcript Transcript

	state       State
	thinking    string
	banner      string
	freshThread bool

	// per-turn bookkeeping
	turnID     string
	turnStart  time.Time
	turnChunks int
	doneSeen   bool
}

// NewSession creates a session over the given collaborators.
func NewSession(deps Dependencies) *Session {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		streamer: deps.Streamer,
		threads:  NewThreadManager(deps.Threads, deps.History, logger),
		dialogue: NewDialogue(nil),
		cart:     deps.Cart,
		book:     deps.Addresses,
		stats:    NewTurnStats(),
		logger:   logger,
	}
}

// Open prepares a freshly opened panel: loads saved addresses, the thread
// roster and the active thread's history. Collaborator failures degrade to
// empty lists; a history failure surfaces as a banner but never blocks the
// chat itself.
func (s *Session) Open(ctx context.Context) {
	addresses, err := s.book.ListAddresses(ctx)
	if err != nil {
		s.logger.Warn("address list unavailable", "error", err)
		addresses = nil
	}
	s.dialogue.SetAddresses(addresses)

	s.threads.Refresh(ctx)

	msgs, tid, err := s.threads.history.FetchHistory(ctx, s.threads.ActiveID(), historyLimit)
	if err != nil {
		s.logger.Warn("history restore failed", "error", err)
		s.banner = "Failed to load chat history"
		return
	}
	s.threads.SetActive(tid)
	s.transcript.Replace(msgs)
	s.dialogue.Observe(&s.transcript)
}

// BeginTurn starts a turn for the given user input. display, when non-empty,
// is shown in the transcript in place of the raw text (used by the slot
// confirmation flow, which sends ids but displays labels). It returns the
// options the streamer must be invoked with.
func (s *Session) BeginTurn(text, display string) (SendOptions, error) {
	if s.state != StateIdle {
		return SendOptions{}, ErrBusy
	}
	if text == "" {
		return SendOptions{}, ErrEmptyMessage
	}
	if display == "" {
		display = text
	}

	s.banner = ""
	s.thinking = ""
	s.doneSeen = false
	s.turnID = uuid.New().String()
	s.turnStart = time.Now()
	s.turnChunks = 0

	s.transcript.AppendUser(display)
	s.dialogue.Observe(&s.transcript)
	s.state = StateSending

	s.logger.Debug("turn started", "turn_id", s.turnID, "thread_id", s.threads.ActiveID())

	return SendOptions{
		ThreadID: s.threads.ActiveID(),
		NewChat:  s.freshThread,
	}, nil
}

// HandleEvent applies one stream event. Events arrive strictly in order.
func (s *Session) HandleEvent(ev stream.Event) {
	if s.state == StateSending {
		s.state = StateStreaming
	}

	switch ev.Kind {
	case stream.KindChunk:
		s.thinking = ""
		s.turnChunks++
		s.transcript.OnChunk(ev.Text)

	case stream.KindThinking:
		// Presentational only; never touches message content.
		if ev.Text != "" {
			s.thinking = ev.Text
		} else {
			s.thinking = "Thinking…"
		}

	case stream.KindDone:
		s.doneSeen = true
		s.thinking = ""
		s.threads.SetActive(ev.ThreadID)
		s.transcript.OnDone(ev.ProductIDs, ev.Meta)
		s.notifyCart()

	case stream.KindError:
		// The partial message already accumulated stays intact.
		s.banner = ev.Text
	}
}

// FinishTurn settles the turn. transportErr is the streamer's return value:
// nil for a clean close, non-nil when the request failed or was aborted. A
// clean close without a done event synthesizes an implicit settle with an
// empty product list so the session never hangs in streaming.
func (s *Session) FinishTurn(ctx context.Context, transportErr error) {
	if transportErr != nil {
		msg := transportErr.Error()
		s.banner = msg
		s.transcript.Append(Message{Role: RoleAssistant, Content: msg, Err: true, ProductIDs: []string{}})
		s.logger.Warn("turn failed", "turn_id", s.turnID, "error", transportErr)
	} else if !s.doneSeen {
		s.transcript.OnDone([]string{}, stream.Meta{})
	}

	s.transcript.SettleAll()
	s.dialogue.Observe(&s.transcript)
	s.thinking = ""
	s.state = StateIdle

	if s.threads.ActiveID() != "" {
		s.freshThread = false
	}
	if transportErr == nil {
		s.threads.Refresh(ctx)
	}

	s.stats.Record(time.Since(s.turnStart), s.turnChunks, transportErr != nil)
}

// Send runs a whole turn synchronously: guard, stream, settle. Interactive
// callers that need per-event control drive BeginTurn / HandleEvent /
// FinishTurn themselves instead.
func (s *Session) Send(ctx context.Context, text, display string) error {
	opts, err := s.BeginTurn(text, display)
	if err != nil {
		return err
	}
	streamErr := s.streamer.SendMessageStream(ctx, text, opts, s.HandleEvent)
	s.FinishTurn(ctx, streamErr)
	return streamErr
}

// StartNew clears the active thread and transcript, marking the session as
// pending its first server assignment. A no-op while a request is in flight.
func (s *Session) StartNew() {
	if s.state != StateIdle {
		return
	}
	s.threads.StartNew()
	s.transcript.Clear()
	s.dialogue.Observe(&s.transcript)
	s.banner = ""
	s.freshThread = true
}

// SwitchTo replaces the message list with another thread's history and
// clears the dialogue slots.
func (s *Session) SwitchTo(ctx context.Context, id string) error {
	if s.state != StateIdle {
		return ErrBusy
	}
	msgs, err := s.threads.SwitchTo(ctx, id)
	if err != nil {
		return err
	}
	s.transcript.Replace(msgs)
	s.dialogue.Observe(&s.transcript)
	s.banner = ""
	s.freshThread = false
	return nil
}

// RenameThread renames a thread in place.
func (s *Session) RenameThread(ctx context.Context, id, title string) error {
	return s.threads.Rename(ctx, id, title)
}

// DeleteThread deletes a thread. Deleting the active thread falls back to
// the most recent remaining thread (loading its history), or to a fresh
// new-chat state when none remain.
func (s *Session) DeleteThread(ctx context.Context, id string) error {
	if s.state != StateIdle {
		return ErrBusy
	}
	next, changed, err := s.threads.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	if next == "" {
		s.transcript.Clear()
		s.dialogue.Observe(&s.transcript)
		s.freshThread = true
		return nil
	}
	return s.SwitchTo(ctx, next)
}

// notifyCart fires the cart refresh without waiting; a failure is ignored.
func (s *Session) notifyCart() {
	if s.cart == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.cart.RefreshCart(ctx)
	}()
}

// State returns the orchestrator state.
func (s *Session) State() State { return s.state }

// Busy reports whether a request is in flight.
func (s *Session) Busy() bool { return s.state != StateIdle }

// Transcript exposes the owned message list.
func (s *Session) Transcript() *Transcript { return &s.transcript }

// Dialogue exposes the slot-filling controller.
func (s *Session) Dialogue() *Dialogue { return s.dialogue }

// Threads exposes the thread manager.
func (s *Session) Threads() *ThreadManager { return s.threads }

// Thinking returns the transient progress text, or "" when none is active.
func (s *Session) Thinking() string { return s.thinking }

// Banner returns the dismissible error banner, or "".
func (s *Session) Banner() string { return s.banner }

// DismissBanner clears the error banner.
func (s *Session) DismissBanner() { s.banner = "" }

// Stats returns a snapshot of the session's turn statistics.
func (s *Session) Stats() StatsSnapshot { return s.stats.Snapshot() }
