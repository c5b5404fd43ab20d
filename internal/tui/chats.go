package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"nexus-chat/internal/chats"
	"nexus-chat/internal/models"
)

type (
	chatsLoadedMsg struct{}
	chatDeletedMsg struct{}
)

// chatsScreen lists the user's conversations.
type chatsScreen struct {
	app     *App
	list    *chats.List
	cursor  int
	confirm *models.ConversationSummary
	busy    string
}

func newChatsScreen(app *App) *chatsScreen {
	return &chatsScreen{app: app, list: chats.New(app.deps.Platform, app.deps.Reporter, app.deps.ChatWorkers)}
}

func (s *chatsScreen) Init() tea.Cmd {
	s.busy = "Loading chats"
	ctx, list := s.app.ctx, s.list
	return func() tea.Msg {
		list.Load(ctx)
		return chatsLoadedMsg{}
	}
}

func (s *chatsScreen) selected() (models.ConversationSummary, bool) {
	rows := s.list.Snapshot().Chats
	if s.cursor < 0 || s.cursor >= len(rows) {
		return models.ConversationSummary{}, false
	}
	return rows[s.cursor], true
}

func (s *chatsScreen) Update(msg tea.Msg) (screen, tea.Cmd) {
	switch msg := msg.(type) {
	case chatsLoadedMsg, chatDeletedMsg:
		s.busy = ""
		s.cursor = min(s.cursor, max(len(s.list.Snapshot().Chats)-1, 0))
		return s, nil
	case tea.KeyMsg:
		if s.confirm != nil {
			switch msg.String() {
			case "y", "enter":
				id := s.confirm.ConversationID
				s.confirm = nil
				s.busy = "Deleting chat"
				ctx, list := s.app.ctx, s.list
				return s, func() tea.Msg {
					list.Delete(ctx, id)
					return chatDeletedMsg{}
				}
			case "n", "esc":
				s.confirm = nil
			}
			return s, nil
		}

		switch msg.String() {
		case "up", "k":
			if s.cursor > 0 {
				s.cursor--
			}
		case "down", "j":
			if s.cursor < len(s.list.Snapshot().Chats)-1 {
				s.cursor++
			}
		case "enter":
			if c, ok := s.selected(); ok {
				return s, navigate(newConversationScreen(s.app, c.ConversationID, c.BotName))
			}
		case "x", "delete":
			if c, ok := s.selected(); ok {
				s.confirm = &c
			}
		case "r":
			return s, s.Init()
		case "esc":
			return s, navigate(newDashboardScreen(s.app))
		}
	}
	return s, nil
}

func (s *chatsScreen) View() string {
	state := s.list.Snapshot()
	var b strings.Builder
	b.WriteString(styles.title.Render("Chats") + "\n\n")

	switch {
	case state.Err != nil:
		b.WriteString(styles.failed.Render("Could not load chats. Press r to retry.") + "\n")
	case state.Loading && len(state.Chats) == 0:
		b.WriteString(styles.muted.Render("Loading chats…") + "\n")
	case len(state.Chats) == 0:
		b.WriteString(styles.muted.Render("No conversations yet. Pick a character on the dashboard.") + "\n")
	}

	for i, c := range state.Chats {
		b.WriteString(cursorMark(i == s.cursor))
		if c.Err != nil {
			b.WriteString(styles.failed.Render("Unavailable conversation") + "\n")
			continue
		}
		b.WriteString(styles.character.Render(c.BotName))
		if last := c.LastMessageContent; last != "" {
			b.WriteString("  " + styles.muted.Render(truncate(last, 60)))
		}
		if !c.LastMessageCreatedAt.IsZero() {
			b.WriteString("  " + styles.muted.Render(c.LastMessageCreatedAt.Local().Format("Jan 2 15:04")))
		}
		b.WriteString("\n")
	}

	if s.confirm != nil {
		name := s.confirm.BotName
		if name == "" {
			name = "this conversation"
		}
		b.WriteString("\n" + styles.modal.Render("Delete the chat with "+name+"?\ny delete • n cancel") + "\n")
	}
	return b.String()
}

// truncate shortens s to at most n runes on a single line.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func (s *chatsScreen) Help() string {
	return "enter open • x delete • r reload • esc back"
}

func (s *chatsScreen) Busy() string { return s.busy }
