package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"nexus-chat/internal/intro"
	"nexus-chat/internal/models"
)

type (
	introLoadedMsg struct {
		character *models.Character
		err       error
	}
	introStartedMsg struct {
		conversationID string
		err            error
	}
)

// introScreen shows a character before any conversation exists.
type introScreen struct {
	app      *App
	intro    *intro.Intro
	input    textinput.Model
	loading  bool
	starting bool
}

func newIntroScreen(app *App, characterID string) *introScreen {
	in := textinput.New()
	in.Prompt = "› "
	in.Placeholder = "Say something to start"
	in.Focus()
	return &introScreen{app: app, intro: intro.New(characterID, app.deps.Platform, app.deps.Reporter), input: in}
}

func (s *introScreen) Init() tea.Cmd {
	s.loading = true
	ctx, in, reporter := s.app.ctx, s.intro, s.app.deps.Reporter
	return tea.Batch(textinput.Blink, func() tea.Msg {
		c, err := in.Load(ctx)
		reporter.Report("intro.load", err)
		return introLoadedMsg{character: c, err: err}
	})
}

func (s *introScreen) Update(msg tea.Msg) (screen, tea.Cmd) {
	switch msg := msg.(type) {
	case introLoadedMsg:
		s.loading = false
		return s, nil
	case introStartedMsg:
		s.starting = false
		if msg.err != nil {
			return s, nil
		}
		name := ""
		if c := s.intro.Character(); c != nil {
			name = c.Name
		}
		return s, navigate(newConversationScreen(s.app, msg.conversationID, name))
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return s, navigate(newDashboardScreen(s.app))
		case "enter":
			text := s.input.Value()
			if s.starting || !s.intro.CanStart(text) {
				return s, nil
			}
			s.starting = true
			ctx, in := s.app.ctx, s.intro
			return s, func() tea.Msg {
				id, err := in.Start(ctx, text)
				return introStartedMsg{conversationID: id, err: err}
			}
		}
	case tea.WindowSizeMsg:
		s.input.Width = max(msg.Width-4, 10)
	}

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return s, cmd
}

func (s *introScreen) View() string {
	c := s.intro.Character()
	if c == nil {
		if s.loading {
			return styles.muted.Render("Loading character…") + "\n"
		}
		return styles.failed.Render("Character unavailable. Press esc to go back.") + "\n"
	}

	var b strings.Builder
	b.WriteString(styles.title.Render(c.Name) + " " + visibility(c.Private) + "\n\n")
	if desc := c.Prompt.Description(); desc != "" {
		b.WriteString(desc + "\n\n")
	}
	if greeting := c.Prompt.StartingMessage(); greeting != "" {
		b.WriteString(styles.character.Render(c.Name+":") + " " + greeting + "\n\n")
	}
	b.WriteString(s.input.View() + "\n")
	return b.String()
}

func (s *introScreen) Help() string {
	return "enter start conversation • esc back"
}

func (s *introScreen) Busy() string {
	switch {
	case s.starting:
		return "Starting conversation"
	case s.loading:
		return "Loading character"
	}
	return ""
}
