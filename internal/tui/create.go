package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"nexus-chat/internal/dashboard"
	"nexus-chat/internal/models"
	"nexus-chat/pkg/errors"
)

const (
	fieldName = iota
	fieldDescription
	fieldStarting
	fieldAvatar
	fieldCount
)

type characterCreatedMsg struct {
	character *models.Character
	err       error
}

// createScreen is the character creation form.
type createScreen struct {
	app         *App
	name        textinput.Model
	description textarea.Model
	starting    textinput.Model
	avatar      textinput.Model
	private     bool
	focus       int
	pending     bool
	fieldErrs   map[string]string
}

func newCreateScreen(app *App) *createScreen {
	name := textinput.New()
	name.Prompt = "Name      "
	name.CharLimit = 80
	name.Focus()

	desc := textarea.New()
	desc.Placeholder = "Who is this character? How do they talk?"
	desc.ShowLineNumbers = false
	desc.CharLimit = 4000
	desc.SetHeight(4)

	starting := textinput.New()
	starting.Prompt = "Greeting  "
	starting.Placeholder = "First line the character says"
	starting.CharLimit = 2000

	avatar := textinput.New()
	avatar.Prompt = "Avatar    "
	avatar.Placeholder = "optional path to an image"

	return &createScreen{app: app, name: name, description: desc, starting: starting, avatar: avatar}
}

func (s *createScreen) Init() tea.Cmd { return textinput.Blink }

func (s *createScreen) setFocus(i int) {
	s.name.Blur()
	s.description.Blur()
	s.starting.Blur()
	s.avatar.Blur()
	s.focus = i
	switch i {
	case fieldName:
		s.name.Focus()
	case fieldDescription:
		s.description.Focus()
	case fieldStarting:
		s.starting.Focus()
	case fieldAvatar:
		s.avatar.Focus()
	}
}

func (s *createScreen) Update(msg tea.Msg) (screen, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.description.SetWidth(max(msg.Width-4, 20))
	case characterCreatedMsg:
		s.pending = false
		if msg.err != nil {
			s.fieldErrs = validationDetails(msg.err)
			return s, nil
		}
		s.app.deps.Reporter.Info("characters.create", fmt.Sprintf("Created %s", msg.character.Name))
		return s, navigate(newDashboardScreen(s.app))
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return s, navigate(newDashboardScreen(s.app))
		case "tab":
			s.setFocus((s.focus + 1) % fieldCount)
			return s, nil
		case "shift+tab":
			s.setFocus((s.focus + fieldCount - 1) % fieldCount)
			return s, nil
		case "ctrl+p":
			s.private = !s.private
			return s, nil
		case "ctrl+s":
			return s, s.submit()
		}
	}

	var cmd tea.Cmd
	switch s.focus {
	case fieldName:
		s.name, cmd = s.name.Update(msg)
	case fieldDescription:
		s.description, cmd = s.description.Update(msg)
	case fieldStarting:
		s.starting, cmd = s.starting.Update(msg)
	case fieldAvatar:
		s.avatar, cmd = s.avatar.Update(msg)
	}
	return s, cmd
}

func (s *createScreen) form() (dashboard.Form, error) {
	form := dashboard.Form{
		Name:            s.name.Value(),
		Description:     s.description.Value(),
		StartingMessage: s.starting.Value(),
		Private:         s.private,
	}
	if path := strings.TrimSpace(s.avatar.Value()); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return form, errors.NewBadRequestError(errors.CodeValidation, "Could not read the avatar").
				WithDetails(map[string]string{"Avatar": err.Error()})
		}
		form.Avatar = &dashboard.Avatar{FileName: filepath.Base(path), Data: data}
	}
	return form, nil
}

func (s *createScreen) submit() tea.Cmd {
	if s.pending {
		return nil
	}
	form, err := s.form()
	if err != nil {
		s.fieldErrs = validationDetails(err)
		return nil
	}
	s.pending = true
	s.fieldErrs = nil

	ctx, board := s.app.ctx, s.app.dashboard
	return func() tea.Msg {
		c, err := board.Create(ctx, form)
		return characterCreatedMsg{character: c, err: err}
	}
}

// validationDetails extracts per-field messages from a VALIDATION error.
func validationDetails(err error) map[string]string {
	appErr := errors.FromError(err)
	if appErr.Code != errors.CodeValidation {
		return nil
	}
	fields, _ := appErr.Details.(map[string]string)
	return fields
}

func (s *createScreen) fieldError(name string) string {
	if msg, ok := s.fieldErrs[name]; ok {
		return "  " + styles.failed.Render(msg)
	}
	return ""
}

func (s *createScreen) View() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("New character") + "\n\n")
	b.WriteString(s.name.View() + s.fieldError("Name") + "\n")
	b.WriteString("Description" + s.fieldError("Description") + "\n")
	b.WriteString(s.description.View() + "\n")
	b.WriteString(s.starting.View() + s.fieldError("StartingMessage") + "\n")
	b.WriteString(s.avatar.View() + s.fieldError("Avatar") + "\n\n")
	b.WriteString("Visibility " + visibility(s.private) + "\n")
	return b.String()
}

func (s *createScreen) Help() string {
	return "tab next field • ctrl+p toggle private • ctrl+s create • esc cancel"
}

func (s *createScreen) Busy() string {
	if s.pending {
		return "Creating character"
	}
	return ""
}
