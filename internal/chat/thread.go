package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Thread is a server-tracked conversation. The server owns the full
// history; the client keeps only a small most-recent-first roster.
type Thread struct {
	ID            string
	Title         string
	LastMessageAt time.Time
}

// DisplayTitle returns the title, falling back to the thread id.
func (t Thread) DisplayTitle() string {
	if t.Title != "" {
		return t.Title
	}
	return t.ID
}

const (
	// rosterLimit caps the client-side thread roster. The server keeps at
	// most this many threads per user.
	rosterLimit = 3

	// maxTitleLen caps thread titles before they are sent.
	maxTitleLen = 100

	// historyLimit is the page size used when restoring a thread.
	historyLimit = 50
)

// ThreadManager owns the active thread id and the bounded roster. It is
// mutated only from the session's ordered callback chain.
type ThreadManager struct {
	store   ThreadStore
	history HistoryProvider
	logger  *slog.Logger

	active string
	roster []Thread
}

// NewThreadManager creates a manager backed by the given collaborators.
func NewThreadManager(store ThreadStore, history HistoryProvider, logger *slog.Logger) *ThreadManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &ThreadManager{store: store, history: history, logger: logger}
}

// ActiveID returns the active thread id, or "" when the session is pending
// its first server assignment.
func (m *ThreadManager) ActiveID() string {
	return m.active
}

// PendingAssignment reports whether no thread id has been assigned yet.
func (m *ThreadManager) PendingAssignment() bool {
	return m.active == ""
}

// SetActive records the server-assigned thread id from a done event.
func (m *ThreadManager) SetActive(id string) {
	if id != "" {
		m.active = id
	}
}

// Roster returns the cached thread roster, most recent first.
func (m *ThreadManager) Roster() []Thread {
	return m.roster
}

// Refresh reloads the roster from the server. A listing failure degrades to
// keeping the previous roster rather than blocking the chat.
func (m *ThreadManager) Refresh(ctx context.Context) {
	threads, err := m.store.ListThreads(ctx)
	if err != nil {
		m.logger.Warn("thread roster refresh failed", "error", err)
		return
	}
	if len(threads) > rosterLimit {
		threads = threads[:rosterLimit]
	}
	m.roster = threads
}

// StartNew clears the active thread id, marking the session as pending its
// first server assignment. The caller resets the transcript.
func (m *ThreadManager) StartNew() {
	m.active = ""
}

// SwitchTo makes the given thread active and returns its history. The caller
// replaces the transcript and resets dialogue slots.
func (m *ThreadManager) SwitchTo(ctx context.Context, id string) ([]Message, error) {
	msgs, tid, err := m.history.FetchHistory(ctx, id, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	m.active = id
	if tid != "" {
		m.active = tid
	}
	return msgs, nil
}

// Rename updates a thread title. The title is trimmed and length-capped
// before being sent.
func (m *ThreadManager) Rename(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if len(title) > maxTitleLen {
		title = title[:maxTitleLen]
	}
	if err := m.store.RenameThread(ctx, id, title); err != nil {
		return fmt.Errorf("rename thread: %w", err)
	}
	for i := range m.roster {
		if m.roster[i].ID == id {
			m.roster[i].Title = title
		}
	}
	return nil
}

// Delete removes a thread. If it was active, the manager falls back to the
// most recent remaining thread, or to a fresh new-chat state if none remain.
// It returns the new active id ("" for new chat) and whether the active
// thread changed.
func (m *ThreadManager) Delete(ctx context.Context, id string) (string, bool, error) {
	if err := m.store.DeleteThread(ctx, id); err != nil {
		return m.active, false, fmt.Errorf("delete thread: %w", err)
	}

	kept := m.roster[:0]
	for _, th := range m.roster {
		if th.ID != id {
			kept = append(kept, th)
		}
	}
	m.roster = kept

	if m.active != id {
		return m.active, false, nil
	}

	if len(m.roster) > 0 {
		m.active = m.roster[0].ID
	} else {
		m.active = ""
	}
	return m.active, true, nil
}
