package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type (
	passwordChangedMsg struct {
		message string
		err     error
	}
	signedOutMsg struct{ err error }
)

// settingsScreen changes the password and signs out.
type settingsScreen struct {
	app     *App
	current textinput.Model
	next    textinput.Model
	focus   int
	busy    string
}

func newSettingsScreen(app *App) *settingsScreen {
	current := textinput.New()
	current.Prompt = "Current password "
	current.EchoMode = textinput.EchoPassword
	current.EchoCharacter = '•'
	current.Focus()

	next := textinput.New()
	next.Prompt = "New password     "
	next.EchoMode = textinput.EchoPassword
	next.EchoCharacter = '•'

	return &settingsScreen{app: app, current: current, next: next}
}

func (s *settingsScreen) Init() tea.Cmd { return textinput.Blink }

func (s *settingsScreen) toggleFocus() {
	if s.focus == 0 {
		s.focus = 1
		s.current.Blur()
		s.next.Focus()
		return
	}
	s.focus = 0
	s.next.Blur()
	s.current.Focus()
}

func (s *settingsScreen) Update(msg tea.Msg) (screen, tea.Cmd) {
	switch msg := msg.(type) {
	case passwordChangedMsg:
		s.busy = ""
		if msg.err == nil {
			s.current.SetValue("")
			s.next.SetValue("")
			s.app.deps.Reporter.Info("settings.password", msg.message)
		}
		return s, nil
	case signedOutMsg:
		s.busy = ""
		return s, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return s, navigate(newDashboardScreen(s.app))
		case "tab", "shift+tab", "up", "down":
			s.toggleFocus()
			return s, nil
		case "enter":
			if s.focus == 0 {
				s.toggleFocus()
				return s, nil
			}
			return s, s.changePassword()
		case "ctrl+o":
			return s, s.signOut()
		}
	}

	var cmd tea.Cmd
	if s.focus == 0 {
		s.current, cmd = s.current.Update(msg)
	} else {
		s.next, cmd = s.next.Update(msg)
	}
	return s, cmd
}

func (s *settingsScreen) changePassword() tea.Cmd {
	if s.busy != "" {
		return nil
	}
	current, next := s.current.Value(), s.next.Value()
	s.busy = "Updating password"
	ctx, platform, reporter := s.app.ctx, s.app.deps.Platform, s.app.deps.Reporter
	return func() tea.Msg {
		message, err := platform.ResetPassword(ctx, current, next)
		reporter.Report("settings.password", err)
		return passwordChangedMsg{message: message, err: err}
	}
}

// signOut ends the session; the session event moves the app to sign-in.
func (s *settingsScreen) signOut() tea.Cmd {
	if s.busy != "" {
		return nil
	}
	s.busy = "Signing out"
	ctx, auth, reporter := s.app.ctx, s.app.deps.Auth, s.app.deps.Reporter
	return func() tea.Msg {
		err := auth.SignOut(ctx)
		reporter.Report("settings.signout", err)
		return signedOutMsg{err: err}
	}
}

func (s *settingsScreen) View() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("Settings") + "\n\n")
	if sess := s.app.deps.Auth.Session(); sess != nil {
		b.WriteString("Signed in as " + sess.User.Email + "\n\n")
	}
	b.WriteString(styles.title.Render("Change password") + "\n")
	b.WriteString(s.current.View() + "\n")
	b.WriteString(s.next.View() + "\n")
	return b.String()
}

func (s *settingsScreen) Help() string {
	return "enter save password • ctrl+o sign out • esc back"
}

func (s *settingsScreen) Busy() string { return s.busy }
