package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type authMode int

const (
	modeSignIn authMode = iota
	modeSignUp
)

type authDoneMsg struct {
	mode    authMode
	confirm bool
	err     error
}

// authScreen signs in or registers. A successful sign-in is picked up from
// the session event, not from the result message.
type authScreen struct {
	app     *App
	mode    authMode
	inputs  []textinput.Model
	focus   int
	pending bool
}

func newAuthScreen(app *App) *authScreen {
	email := textinput.New()
	email.Placeholder = "you@example.com"
	email.Prompt = "Email    "
	email.Focus()

	password := textinput.New()
	password.Placeholder = "password"
	password.Prompt = "Password "
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	return &authScreen{app: app, inputs: []textinput.Model{email, password}}
}

func (s *authScreen) Init() tea.Cmd { return textinput.Blink }

func (s *authScreen) Update(msg tea.Msg) (screen, tea.Cmd) {
	switch msg := msg.(type) {
	case authDoneMsg:
		s.pending = false
		if msg.err != nil {
			return s, nil
		}
		if msg.mode == modeSignUp && msg.confirm {
			s.app.deps.Reporter.Info("auth.signup", "Check your email to confirm the account, then sign in")
			s.mode = modeSignIn
		}
		return s, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "tab", "down":
			s.setFocus((s.focus + 1) % len(s.inputs))
			return s, nil
		case "shift+tab", "up":
			s.setFocus((s.focus + len(s.inputs) - 1) % len(s.inputs))
			return s, nil
		case "ctrl+n":
			if s.mode == modeSignIn {
				s.mode = modeSignUp
			} else {
				s.mode = modeSignIn
			}
			return s, nil
		case "enter":
			if s.focus == 0 {
				s.setFocus(1)
				return s, nil
			}
			return s, s.submit()
		}
	}

	var cmd tea.Cmd
	s.inputs[s.focus], cmd = s.inputs[s.focus].Update(msg)
	return s, cmd
}

func (s *authScreen) setFocus(i int) {
	s.inputs[s.focus].Blur()
	s.focus = i
	s.inputs[s.focus].Focus()
}

func (s *authScreen) submit() tea.Cmd {
	email := strings.TrimSpace(s.inputs[0].Value())
	password := s.inputs[1].Value()
	if s.pending || email == "" || password == "" {
		return nil
	}
	s.pending = true
	s.inputs[1].SetValue("")

	ctx, auth, reporter, mode := s.app.ctx, s.app.deps.Auth, s.app.deps.Reporter, s.mode
	return func() tea.Msg {
		if mode == modeSignUp {
			confirm, err := auth.SignUp(ctx, email, password)
			reporter.Report("auth.signup", err)
			return authDoneMsg{mode: mode, confirm: confirm, err: err}
		}
		_, err := auth.SignIn(ctx, email, password)
		reporter.Report("auth.signin", err)
		return authDoneMsg{mode: mode, err: err}
	}
}

func (s *authScreen) View() string {
	var b strings.Builder
	if s.mode == modeSignIn {
		b.WriteString(styles.title.Render("Sign in"))
	} else {
		b.WriteString(styles.title.Render("Create an account"))
	}
	b.WriteString("\n\n")
	for _, in := range s.inputs {
		b.WriteString(in.View())
		b.WriteString("\n")
	}
	return b.String()
}

func (s *authScreen) Help() string {
	if s.mode == modeSignIn {
		return "enter sign in • ctrl+n create account • ctrl+c quit"
	}
	return "enter sign up • ctrl+n back to sign in • ctrl+c quit"
}

func (s *authScreen) Busy() string {
	if !s.pending {
		return ""
	}
	if s.mode == modeSignUp {
		return "Creating account"
	}
	return "Signing in"
}
