package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"nexus-chat/internal/conversation"
	"nexus-chat/internal/models"
	"nexus-chat/internal/pane"
)

type convModal int

const (
	modalNone convModal = iota
	modalRegenerate
	modalDelete
)

// opDoneMsg ends a background pane operation; state arrives via refreshes.
type opDoneMsg struct{ err error }

// conversationScreen is an open conversation: the message pane, the input
// line and the regenerate and delete prompts.
type conversationScreen struct {
	app   *App
	title string
	pane  *pane.Pane
	orch  *conversation.Orchestrator
	view  *paneViewport

	vp          viewport.Model
	input       textinput.Model
	instruction textinput.Model
	modal       convModal
	selected    string
	width       int
}

func newConversationScreen(app *App, conversationID, botName string) *conversationScreen {
	if botName == "" {
		botName = "Character"
	}
	view := newPaneViewport(func() { app.inv.post(layoutMsg{}) })
	p := pane.New(conversationID, app.deps.Platform, view, app.deps.Reporter, pane.Options{
		NearBottom: app.deps.NearBottom,
		OnChange:   app.inv.invalidate,
	})

	input := textinput.New()
	input.Prompt = "› "
	input.Placeholder = "Message " + botName
	input.Focus()

	instruction := textinput.New()
	instruction.Prompt = "Instruction "
	instruction.Placeholder = "optional, e.g. shorter and friendlier"

	return &conversationScreen{
		app:         app,
		title:       botName,
		pane:        p,
		orch:        conversation.New(p, app.deps.Platform, app.deps.Reporter),
		view:        view,
		vp:          viewport.New(0, 0),
		input:       input,
		instruction: instruction,
	}
}

func (s *conversationScreen) Init() tea.Cmd {
	ctx, p := s.app.ctx, s.pane
	return tea.Batch(textinput.Blink, func() tea.Msg {
		return opDoneMsg{err: p.Load(ctx)}
	})
}

func (s *conversationScreen) Close() { s.pane.Close() }

func (s *conversationScreen) run(fn func() error) tea.Cmd {
	return func() tea.Msg { return opDoneMsg{err: fn()} }
}

func (s *conversationScreen) Update(msg tea.Msg) (screen, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		atBottom := s.vp.AtBottom()
		s.width = msg.Width
		s.vp.Width = msg.Width
		s.vp.Height = max(s.app.bodyHeight()-3, 1)
		s.input.Width = max(msg.Width-4, 10)
		s.instruction.Width = max(msg.Width-16, 10)
		s.render()
		if atBottom {
			s.vp.GotoBottom()
		}
		s.view.layout(&s.vp)
		return s, nil
	case refreshMsg, layoutMsg, opDoneMsg:
		s.render()
		s.view.layout(&s.vp)
		return s, nil
	case tea.MouseMsg:
		var cmd tea.Cmd
		s.vp, cmd = s.vp.Update(msg)
		return s, tea.Batch(cmd, s.scrolled())
	case tea.KeyMsg:
		switch s.modal {
		case modalRegenerate:
			return s, s.updateRegenerate(msg)
		case modalDelete:
			return s, s.updateDelete(msg)
		}
		if cmd, handled := s.handleKey(msg); handled {
			return s, cmd
		}
	}

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return s, cmd
}

func (s *conversationScreen) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	ctx := s.app.ctx
	switch msg.String() {
	case "esc":
		return navigate(newChatsScreen(s.app)), true
	case "enter":
		text := s.input.Value()
		if strings.TrimSpace(text) == "" || s.orch.Sending() || s.pane.Regenerating() {
			return nil, true
		}
		s.input.SetValue("")
		return s.run(func() error { return s.orch.Send(ctx, text) }), true
	case "up":
		s.vp.SetYOffset(s.vp.YOffset - 1)
		return s.scrolled(), true
	case "down":
		s.vp.SetYOffset(s.vp.YOffset + 1)
		return s.scrolled(), true
	case "pgup":
		s.vp.SetYOffset(s.vp.YOffset - s.vp.Height)
		return s.scrolled(), true
	case "pgdown":
		s.vp.SetYOffset(s.vp.YOffset + s.vp.Height)
		return s.scrolled(), true
	case "home":
		s.vp.GotoTop()
		return s.scrolled(), true
	case "end":
		s.vp.GotoBottom()
		return s.scrolled(), true
	case "shift+up":
		s.moveSelection(-1)
		return nil, true
	case "shift+down":
		s.moveSelection(1)
		return nil, true
	case "ctrl+g":
		if !s.orch.Sending() && pane.CanRegenerate(s.pane.Snapshot().Messages) {
			s.modal = modalRegenerate
			s.input.Blur()
			s.instruction.SetValue("")
			s.instruction.Focus()
		}
		return nil, true
	case "ctrl+x":
		if _, ok := s.pane.Message(s.selected); ok {
			s.modal = modalDelete
		}
		return nil, true
	case "ctrl+t":
		id := s.retryTarget()
		if id == "" {
			return nil, true
		}
		return s.run(func() error { return s.orch.Retry(ctx, id) }), true
	}
	return nil, false
}

// scrolled updates the pane's view of the scroll position and lets it load
// older messages when the top is reached.
func (s *conversationScreen) scrolled() tea.Cmd {
	s.view.measure(&s.vp)
	if !s.vp.AtTop() {
		return nil
	}
	ctx, p := s.app.ctx, s.pane
	return func() tea.Msg {
		p.OnScroll(ctx)
		return opDoneMsg{}
	}
}

func (s *conversationScreen) updateRegenerate(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		s.closeModal()
		return nil
	case "enter":
		instruction := strings.TrimSpace(s.instruction.Value())
		s.closeModal()
		ctx, p := s.app.ctx, s.pane
		return s.run(func() error { return p.Regenerate(ctx, instruction) })
	}
	var cmd tea.Cmd
	s.instruction, cmd = s.instruction.Update(msg)
	return cmd
}

func (s *conversationScreen) updateDelete(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "y", "enter":
		m, ok := s.pane.Message(s.selected)
		s.closeModal()
		if !ok {
			return nil
		}
		s.selected = ""
		ctx, p := s.app.ctx, s.pane
		return s.run(func() error { return p.Delete(ctx, m.Idx, m.Role) })
	case "n", "esc":
		s.closeModal()
	}
	return nil
}

func (s *conversationScreen) closeModal() {
	s.modal = modalNone
	s.instruction.Blur()
	s.input.Focus()
}

func (s *conversationScreen) moveSelection(delta int) {
	msgs := s.pane.Snapshot().Messages
	if len(msgs) == 0 {
		return
	}
	at := -1
	for i, m := range msgs {
		if m.ID == s.selected {
			at = i
			break
		}
	}
	switch {
	case at < 0:
		at = len(msgs) - 1
	default:
		at = min(max(at+delta, 0), len(msgs)-1)
	}
	s.selected = msgs[at].ID
	s.render()
}

// retryTarget is the selected message when it failed, else the latest
// failed message.
func (s *conversationScreen) retryTarget() string {
	if m, ok := s.pane.Message(s.selected); ok && m.Status == models.StatusFailed {
		return m.ID
	}
	msgs := s.pane.Snapshot().Messages
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Status == models.StatusFailed {
			return msgs[i].ID
		}
	}
	return ""
}

// render rebuilds the viewport content from the pane. The first line is
// always present so that its text changing never shifts the messages.
func (s *conversationScreen) render() {
	state := s.pane.Snapshot()
	width := max(s.width-2, 10)
	wrap := lipgloss.NewStyle().Width(width)

	var b strings.Builder
	switch {
	case state.Loading && len(state.Messages) > 0:
		b.WriteString(styles.muted.Render("Loading earlier messages…"))
	case state.HasMore:
		b.WriteString(styles.muted.Render("↑ scroll up for earlier messages"))
	default:
		b.WriteString(styles.muted.Render("Beginning of conversation"))
	}
	b.WriteString("\n")

	for _, m := range state.Messages {
		b.WriteString("\n")
		label := styles.user.Render("You")
		if m.Role == models.RoleCharacter {
			label = styles.character.Render(s.title)
		}
		b.WriteString(cursorMark(m.ID == s.selected) + label)
		switch {
		case state.Deleting[m.Idx]:
			b.WriteString(" " + styles.muted.Render("deleting…"))
		case m.Status == models.StatusPending:
			b.WriteString(" " + styles.muted.Render("sending…"))
		case m.Status == models.StatusFailed:
			b.WriteString(" " + styles.failed.Render("not sent, ctrl+t to retry"))
		}
		b.WriteString("\n")
		b.WriteString(wrap.Render(m.Content))
		b.WriteString("\n")
	}
	s.vp.SetContent(b.String())
}

func (s *conversationScreen) View() string {
	var b strings.Builder
	b.WriteString(styles.title.Render(s.title) + "\n")
	b.WriteString(s.vp.View() + "\n")
	switch s.modal {
	case modalRegenerate:
		b.WriteString(styles.modal.Render("Regenerate the last reply\n" + s.instruction.View() + "\nenter regenerate • esc cancel"))
	case modalDelete:
		b.WriteString(styles.modal.Render("Delete this message and everything after it?\ny delete • n cancel"))
	default:
		b.WriteString(s.input.View())
	}
	return b.String()
}

func (s *conversationScreen) Help() string {
	return "enter send • ↑/↓ pgup/pgdn scroll • shift+↑/↓ select • ctrl+x delete • ctrl+g regenerate • ctrl+t retry • esc back"
}

func (s *conversationScreen) Busy() string {
	state := s.pane.Snapshot()
	switch {
	case state.Regenerating:
		return "Regenerating reply"
	case s.orch.Sending():
		return "Waiting for reply"
	case state.Loading:
		return "Loading messages"
	case len(state.Deleting) > 0:
		return "Deleting messages"
	}
	return ""
}
