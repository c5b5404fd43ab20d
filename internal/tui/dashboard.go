package tui

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"nexus-chat/internal/dashboard"
	"nexus-chat/internal/models"
)

type listTab int

const (
	tabPublic listTab = iota
	tabMine
)

type (
	dashboardLoadedMsg struct{}
	deletionDetailsMsg struct {
		character models.Character
		details   map[string]any
		err       error
	}
	characterDeletedMsg struct{ err error }
)

// dashboardScreen shows the public catalogue and the user's characters.
type dashboardScreen struct {
	app    *App
	board  *dashboard.Dashboard
	tab    listTab
	cursor int

	confirm  *deletionDetailsMsg
	deleting bool
	loading  bool
}

func newDashboardScreen(app *App) *dashboardScreen {
	return &dashboardScreen{app: app, board: app.dashboard}
}

func (s *dashboardScreen) Init() tea.Cmd {
	s.loading = true
	ctx, board := s.app.ctx, s.board
	return func() tea.Msg {
		board.Load(ctx)
		return dashboardLoadedMsg{}
	}
}

func (s *dashboardScreen) list() dashboard.List {
	state := s.board.Snapshot()
	if s.tab == tabMine {
		return state.Mine
	}
	return state.Public
}

func (s *dashboardScreen) selected() (models.Character, bool) {
	chars := s.list().Characters
	if s.cursor < 0 || s.cursor >= len(chars) {
		return models.Character{}, false
	}
	return chars[s.cursor], true
}

func (s *dashboardScreen) Update(msg tea.Msg) (screen, tea.Cmd) {
	switch msg := msg.(type) {
	case dashboardLoadedMsg:
		s.loading = false
		return s, nil
	case deletionDetailsMsg:
		if msg.err == nil {
			s.confirm = &msg
		}
		return s, nil
	case characterDeletedMsg:
		s.deleting = false
		s.clampCursor()
		return s, nil
	case tea.KeyMsg:
		if s.confirm != nil {
			return s, s.updateConfirm(msg)
		}
		return s, s.updateList(msg)
	}
	s.clampCursor()
	return s, nil
}

func (s *dashboardScreen) updateConfirm(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "y", "enter":
		id := s.confirm.character.ID
		s.confirm = nil
		s.deleting = true
		ctx, board := s.app.ctx, s.board
		return func() tea.Msg {
			return characterDeletedMsg{err: board.Delete(ctx, id)}
		}
	case "n", "esc":
		s.confirm = nil
	}
	return nil
}

func (s *dashboardScreen) updateList(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "tab":
		s.tab = 1 - s.tab
		s.cursor = 0
	case "up", "k":
		if s.cursor > 0 {
			s.cursor--
		}
	case "down", "j":
		s.cursor++
		s.clampCursor()
	case "r":
		return s.Init()
	case "enter":
		if c, ok := s.selected(); ok {
			return navigate(newIntroScreen(s.app, c.ID))
		}
	case "n":
		return navigate(newCreateScreen(s.app))
	case "c":
		return navigate(newChatsScreen(s.app))
	case "s":
		return navigate(newSettingsScreen(s.app))
	case "x", "delete":
		c, ok := s.selected()
		if !ok || s.tab != tabMine || s.deleting {
			return nil
		}
		ctx, board := s.app.ctx, s.board
		return func() tea.Msg {
			details, err := board.DeletionDetails(ctx, c.ID)
			return deletionDetailsMsg{character: c, details: details, err: err}
		}
	case "q":
		return tea.Quit
	}
	return nil
}

func (s *dashboardScreen) clampCursor() {
	n := len(s.list().Characters)
	if s.cursor >= n {
		s.cursor = n - 1
	}
	if s.cursor < 0 {
		s.cursor = 0
	}
}

func (s *dashboardScreen) View() string {
	var b strings.Builder

	public, mine := "Public", "Mine"
	if s.tab == tabPublic {
		public = styles.selected.Render("[Public]")
	} else {
		mine = styles.selected.Render("[Mine]")
	}
	b.WriteString(public + "  " + mine + "\n\n")

	list := s.list()
	switch {
	case list.Err != nil && len(list.Characters) == 0:
		b.WriteString(styles.failed.Render("Could not load characters. Press r to retry.") + "\n")
	case list.Loading && len(list.Characters) == 0:
		b.WriteString(styles.muted.Render("Loading characters…") + "\n")
	case len(list.Characters) == 0:
		b.WriteString(styles.muted.Render("No characters yet.") + "\n")
	}
	for i, c := range list.Characters {
		b.WriteString(cursorMark(i == s.cursor) + c.Name + "\n")
	}

	if c, ok := s.selected(); ok {
		b.WriteString("\n" + styles.title.Render(c.Name) + " " + visibility(c.Private) + "\n")
		if desc := c.Prompt.Description(); desc != "" {
			b.WriteString(desc + "\n")
		}
	}

	if s.confirm != nil {
		b.WriteString("\n" + styles.modal.Render(confirmText(s.confirm)) + "\n")
	}
	return b.String()
}

func confirmText(m *deletionDetailsMsg) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Delete %q? This cannot be undone.\n", m.character.Name)
	keys := make([]string, 0, len(m.details))
	for k := range m.details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "  %s: %v\n", k, m.details[k])
	}
	b.WriteString("y delete • n cancel")
	return b.String()
}

func (s *dashboardScreen) Help() string {
	return "tab switch list • enter chat • n new • x delete • c chats • s settings • r reload • q quit"
}

func (s *dashboardScreen) Busy() string {
	switch {
	case s.deleting:
		return "Deleting character"
	case s.loading:
		return "Loading characters"
	}
	return ""
}
