// Package tui implements the interactive assistant panel on top of the
// session orchestrator. The bubbletea update loop is the single ordered
// callback chain the session requires: stream events arrive as messages
// through a per-turn channel, never as direct calls from another goroutine.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	lipglossv2 "charm.land/lipgloss/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/pixelvault/shopchat/internal/chat"
	"github.com/pixelvault/shopchat/internal/stream"
)

// suggestedQuestions seed an empty transcript with one-tap starters.
var suggestedQuestions = []string{
	"What games are on sale?",
	"Games like Hades?",
	"Best RPGs under $30",
	"Buy Elden Ring for me",
}

// Theme holds the color scheme for the panel.
type Theme struct {
	User      lipgloss.Color
	Assistant lipgloss.Color
	Error     lipgloss.Color
	Hint      lipgloss.Color
	Accent    lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	User:      lipgloss.Color("#5FAFD7"), // light blue
	Assistant: lipgloss.Color("#D7D7D7"), // light gray
	Error:     lipgloss.Color("#FF005F"), // red
	Hint:      lipgloss.Color("#6C6C6C"), // dim gray
	Accent:    lipgloss.Color("#00D787"), // green
}

// Style functions for dynamic theming
func (t Theme) userStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.User).Bold(true)
}

func (t Theme) assistantStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Assistant)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

func (t Theme) accentStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Accent)
}

// streamEventMsg carries one decoded event off the reply stream.
type streamEventMsg struct {
	ev stream.Event
}

// streamClosedMsg signals the stream ended; err is the transport result.
type streamClosedMsg struct {
	err error
}

// panelModel is the bubbletea model for the assistant panel.
type panelModel struct {
	session  *chat.Session
	streamer chat.Streamer
	theme    Theme

	input textinput.Model
	spin  spinner.Model

	width  int
	height int

	// per-turn stream plumbing
	events chan tea.Msg
	cancel context.CancelFunc

	quitting bool
}

// newPanelModel creates the panel over an already-opened session.
func newPanelModel(session *chat.Session, streamer chat.Streamer) panelModel {
	input := textinput.New()
	input.Prompt = "❯ "
	input.CharLimit = 2000
	input.Placeholder = "Ask about games, prices, stock — or \"Buy X for me\""
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipglossv2.NewStyle().Foreground(defaultTheme.Accent)

	return panelModel{
		session:  session,
		streamer: streamer,
		theme:    defaultTheme,
		input:    input,
		spin:     sp,
	}
}

// Init returns the initial command.
func (m panelModel) Init() tea.Cmd {
	return m.spin.Tick
}

// Update handles messages and returns the updated model.
func (m panelModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.SetWidth(max(msg.Width-4, 20))
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case streamEventMsg:
		m.session.HandleEvent(msg.ev)
		return m, m.waitEvent()

	case streamClosedMsg:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		m.session.FinishTurn(ctx, msg.err)
		cancel()
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		m.events = nil
		return m, nil

	case tea.KeyPressMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m panelModel) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	switch key {
	case "ctrl+c", "esc":
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		m.quitting = true
		return m, tea.Quit

	case "ctrl+n":
		m.session.StartNew()
		return m, nil

	case "ctrl+t":
		m.switchToNextThread()
		return m, nil

	case "ctrl+x":
		m.session.DismissBanner()
		return m, nil

	case "enter":
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		m.input.Reset()
		return m, m.startTurn(text, "")
	}

	// Digits double as quick actions while the input line is empty.
	if m.input.Value() == "" && len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
		if cmd, handled := m.quickAction(int(key[0] - '1')); handled {
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// quickAction maps an empty-input digit press onto the current affordance:
// a suggested question on a fresh transcript, or an address/payment pick
// when the assistant is soliciting purchase details.
func (m *panelModel) quickAction(idx int) (tea.Cmd, bool) {
	transcript := m.session.Transcript()

	if transcript.Len() == 0 && !m.session.Busy() {
		if idx < len(suggestedQuestions) {
			return m.startTurn(suggestedQuestions[idx], ""), true
		}
		return nil, false
	}

	dialogue := m.session.Dialogue()
	switch dialogue.Mode(transcript, m.session.Busy()) {
	case chat.PromptAddress:
		if idx == 0 {
			return m.startTurn(chat.DefaultAddressReply, ""), true
		}

	case chat.PromptPayment:
		methods := chat.PaymentMethods()
		if idx < len(methods) {
			return m.startTurn(string(methods[idx]), methods[idx].Label()), true
		}

	case chat.PromptJoint:
		if dialogue.Slots().AddressID == "" {
			addrs := dialogue.Addresses()
			if idx < len(addrs) {
				dialogue.SelectAddress(addrs[idx].ID)
				return nil, true
			}
			return nil, false
		}
		methods := chat.PaymentMethods()
		if idx < len(methods) {
			dialogue.SelectPayment(methods[idx])
			if sendText, display, ok := dialogue.Confirm(); ok {
				return m.startTurn(sendText, display), true
			}
			return nil, true
		}
	}
	return nil, false
}

// startTurn begins a turn and launches the stream in a goroutine. Events are
// funneled back into the update loop through the per-turn channel so the
// session is only ever touched from here.
func (m *panelModel) startTurn(text, display string) tea.Cmd {
	opts, err := m.session.BeginTurn(text, display)
	if err != nil {
		// Busy or blank input; the state already shows why.
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	ch := make(chan tea.Msg, 64)
	m.events = ch

	go func() {
		streamErr := m.streamer.SendMessageStream(ctx, text, opts, func(ev stream.Event) {
			ch <- streamEventMsg{ev: ev}
		})
		ch <- streamClosedMsg{err: streamErr}
		close(ch)
	}()

	return m.waitEvent()
}

// waitEvent reads the next stream message off the turn channel.
func (m panelModel) waitEvent() tea.Cmd {
	ch := m.events
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		return <-ch
	}
}

// switchToNextThread cycles through the roster, most recent first.
func (m *panelModel) switchToNextThread() {
	roster := m.session.Threads().Roster()
	if len(roster) == 0 {
		return
	}

	next := roster[0].ID
	active := m.session.Threads().ActiveID()
	for i, t := range roster {
		if t.ID == active {
			next = roster[(i+1)%len(roster)].ID
			break
		}
	}
	if next == active {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = m.session.SwitchTo(ctx, next)
}

// View renders the panel.
func (m panelModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

// renderContent builds the display string.
func (m panelModel) renderContent() string {
	if m.quitting {
		return ""
	}

	width := m.width
	if width <= 0 {
		width = 80
	}

	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")

	transcript := m.session.Transcript()
	if transcript.Len() == 0 {
		b.WriteString(m.renderWelcome(width))
	} else {
		b.WriteString(m.renderTranscript(width))
	}

	if thinking := m.session.Thinking(); thinking != "" {
		b.WriteString("\n" + m.spin.View() + " " + m.theme.hintStyle().Render(thinking) + "\n")
	}

	if banner := m.session.Banner(); banner != "" {
		b.WriteString("\n" + m.theme.errorStyle().Render("✗ "+banner) +
			m.theme.hintStyle().Render("  (ctrl+x to dismiss)") + "\n")
	}

	if prompt := m.renderSlotPrompt(); prompt != "" {
		b.WriteString("\n" + prompt)
	}

	b.WriteString("\n" + m.input.View() + "\n")
	b.WriteString(m.renderFooter())

	content := b.String()
	if m.height > 0 {
		content = lastLines(content, m.height)
	}
	return content
}

func (m panelModel) renderHeader() string {
	title := m.theme.accentStyle().Bold(true).Render("PixelVault Assistant")

	threads := m.session.Threads()
	label := "new chat"
	if !threads.PendingAssignment() {
		label = threads.ActiveID()
		for _, t := range threads.Roster() {
			if t.ID == threads.ActiveID() {
				label = t.DisplayTitle()
				break
			}
		}
	}
	return title + "  " + m.theme.hintStyle().Render(label)
}

func (m panelModel) renderWelcome(width int) string {
	var b strings.Builder
	b.WriteString(m.theme.assistantStyle().Width(width).Render(
		"Ask about games, prices, stock, sales, or reviews. I can add to cart, " +
			"buy games for you, and create alerts. When you say \"Buy X for me\", " +
			"I'll ask for address and payment in one reply."))
	b.WriteString("\n\n" + m.theme.hintStyle().Render("Suggested questions:") + "\n")
	for i, q := range suggestedQuestions {
		b.WriteString(fmt.Sprintf("  %d. %s\n", i+1, q))
	}
	return b.String()
}

func (m panelModel) renderTranscript(width int) string {
	var b strings.Builder
	for _, msg := range m.session.Transcript().Messages() {
		b.WriteString(renderMessage(msg, m.theme, width))
		b.WriteString("\n")
	}
	return b.String()
}

// renderMessage renders one transcript entry with its references.
func renderMessage(msg chat.Message, theme Theme, width int) string {
	var b strings.Builder

	body := theme.assistantStyle()
	prefix := theme.accentStyle().Render("assistant")
	if msg.Role == chat.RoleUser {
		prefix = theme.userStyle().Render("you")
		body = theme.userStyle().Bold(false)
	}
	if msg.Err {
		body = theme.errorStyle().Bold(false)
	}

	content := msg.Content
	if msg.Streaming {
		content += "▌"
	}

	b.WriteString(prefix + "\n")
	b.WriteString(body.Width(max(width-2, 20)).Render(content))
	b.WriteString("\n")

	if len(msg.ProductIDs) > 0 {
		b.WriteString(theme.hintStyle().Render("products: "+strings.Join(msg.ProductIDs, ", ")) + "\n")
	}
	if msg.Meta.OrderID != "" {
		ref := "order placed: " + msg.Meta.OrderID
		if msg.Meta.InvoiceID != "" {
			ref += " (invoice " + msg.Meta.InvoiceID + ")"
		}
		b.WriteString(theme.accentStyle().Render(ref) + "\n")
	}
	if msg.Meta.PaymentURL != "" {
		b.WriteString(theme.accentStyle().Render("complete payment: "+msg.Meta.PaymentURL) + "\n")
	}

	return b.String()
}

// renderSlotPrompt shows the quick actions for the current dialogue mode.
func (m panelModel) renderSlotPrompt() string {
	dialogue := m.session.Dialogue()
	mode := dialogue.Mode(m.session.Transcript(), m.session.Busy())

	switch mode {
	case chat.PromptAddress:
		return m.theme.hintStyle().Render("1: " + chat.DefaultAddressReply)

	case chat.PromptPayment:
		var opts []string
		for i, p := range chat.PaymentMethods() {
			opts = append(opts, fmt.Sprintf("%d: %s", i+1, p.Label()))
		}
		return m.theme.hintStyle().Render("Pay with  " + strings.Join(opts, "  "))

	case chat.PromptJoint:
		slots := dialogue.Slots()
		if slots.AddressID == "" {
			var opts []string
			for i, a := range dialogue.Addresses() {
				label := a.DisplayLabel()
				if a.IsDefault {
					label += " (default)"
				}
				opts = append(opts, fmt.Sprintf("%d: %s", i+1, label))
			}
			return m.theme.hintStyle().Render("Deliver to  " + strings.Join(opts, "  "))
		}
		var opts []string
		for i, p := range chat.PaymentMethods() {
			opts = append(opts, fmt.Sprintf("%d: %s", i+1, p.Label()))
		}
		return m.theme.hintStyle().Render("Pay with  " + strings.Join(opts, "  "))

	case chat.PromptAddAddress:
		return m.theme.hintStyle().Render("No saved addresses - add one in your account first, or type one in")
	}
	return ""
}

func (m panelModel) renderFooter() string {
	help := "enter send · ctrl+n new chat · ctrl+t switch thread · esc quit"
	if stats := m.session.Stats(); stats.Turns > 0 {
		help += fmt.Sprintf(" · %d turns, avg %.0fms", stats.Turns, stats.AvgTimeMs)
	}
	return m.theme.hintStyle().Render(help)
}

// lastLines keeps the trailing n lines of s so the panel never overflows
// the terminal height.
func lastLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}

// Run runs the interactive panel until the user quits.
func Run(session *chat.Session, streamer chat.Streamer) error {
	model := newPanelModel(session, streamer)
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("panel error: %w", err)
	}
	return nil
}
