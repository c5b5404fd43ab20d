// Package tui is the terminal client. Every screen is a bubbletea model;
// the packages behind them own the state and report changes back through
// the program.
package tui

import (
	"context"
	"io"
	"sync/atomic"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"nexus-chat/internal/chats"
	"nexus-chat/internal/dashboard"
	"nexus-chat/internal/intro"
	"nexus-chat/internal/models"
	"nexus-chat/internal/notify"
	"nexus-chat/internal/pane"
	"nexus-chat/internal/realtime"
	"nexus-chat/internal/session"
	"nexus-chat/pkg/logger"
)

// Auth is the session the client signs in and out of.
type Auth interface {
	SignIn(ctx context.Context, email, password string) (*models.Session, error)
	SignUp(ctx context.Context, email, password string) (confirm bool, err error)
	SignOut(ctx context.Context) error
	Session() *models.Session
}

// Platform is every request helper the screens use.
type Platform interface {
	dashboard.Platform
	chats.Platform
	intro.Platform
	pane.Source
	ResetPassword(ctx context.Context, current, next string) (string, error)
}

// Deps are the long-lived collaborators of the program.
type Deps struct {
	Auth          Auth
	Platform      Platform
	Reporter      *notify.Reporter
	Logger        *logger.Logger
	NearBottom    int
	ChatWorkers   int
	SessionEvents func(func(session.Event)) func()
	Changes       func(func(realtime.Change)) func()
}

type (
	refreshMsg  struct{}
	layoutMsg   struct{}
	noticeMsg   notify.Notice
	sessionMsg  session.Event
	changeMsg   realtime.Change
	navigateMsg struct{ to screen }
)

// screen is one page of the client.
type screen interface {
	Init() tea.Cmd
	Update(msg tea.Msg) (screen, tea.Cmd)
	View() string
	// Help is the key summary shown under the screen.
	Help() string
	// Busy names the operation in flight, if any.
	Busy() string
}

// closer is implemented by screens holding resources.
type closer interface {
	Close()
}

func navigate(to screen) tea.Cmd {
	return func() tea.Msg { return navigateMsg{to: to} }
}

// invalidator posts refreshes from any goroutine. Pending refreshes are
// coalesced and the send never blocks the caller, so state owners may call
// it while the program is inside Update.
type invalidator struct {
	program atomic.Pointer[tea.Program]
	pending atomic.Bool
}

func (v *invalidator) invalidate() {
	if v.pending.CompareAndSwap(false, true) {
		v.post(refreshMsg{})
	}
}

func (v *invalidator) post(msg tea.Msg) {
	if p := v.program.Load(); p != nil {
		go p.Send(msg)
	}
}

// App is the root model.
type App struct {
	ctx  context.Context
	deps Deps
	inv  *invalidator

	width, height int
	screen        screen
	dashboard     *dashboard.Dashboard
	notice        *notify.Notice
	spinner       spinner.Model
}

// NewApp builds the root model. ctx bounds every request it starts.
func NewApp(ctx context.Context, deps Deps) *App {
	if deps.Logger == nil {
		deps.Logger = logger.Discard()
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.accent

	a := &App{ctx: ctx, deps: deps, inv: &invalidator{}, spinner: sp}
	if deps.Auth.Session() != nil {
		a.signedIn()
	} else {
		a.screen = newAuthScreen(a)
	}
	return a
}

// Run starts the program on in/out and blocks until it exits.
func Run(ctx context.Context, deps Deps, in io.Reader, out io.Writer) error {
	app := NewApp(ctx, deps)
	p := tea.NewProgram(app,
		tea.WithContext(ctx),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithInput(in),
		tea.WithOutput(out),
	)
	app.inv.program.Store(p)

	var unsubs []func()
	if deps.Reporter != nil {
		unsubs = append(unsubs, deps.Reporter.Subscribe(func(n notify.Notice) { app.inv.post(noticeMsg(n)) }))
	}
	if deps.SessionEvents != nil {
		unsubs = append(unsubs, deps.SessionEvents(func(e session.Event) { app.inv.post(sessionMsg(e)) }))
	}
	if deps.Changes != nil {
		unsubs = append(unsubs, deps.Changes(func(c realtime.Change) { app.inv.post(changeMsg(c)) }))
	}
	defer func() {
		for _, u := range unsubs {
			u()
		}
	}()

	_, err := p.Run()
	if closeable, ok := app.screen.(closer); ok {
		closeable.Close()
	}
	return err
}

func (a *App) signedIn() {
	a.dashboard = dashboard.New(a.deps.Platform, a.deps.Reporter, a.inv.invalidate)
	a.screen = newDashboardScreen(a)
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, a.screen.Init())
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return a, tea.Quit
		case "ctrl+l":
			a.notice = nil
			if a.deps.Reporter != nil {
				a.deps.Reporter.Dismiss()
			}
			return a, nil
		}
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	case refreshMsg:
		a.inv.pending.Store(false)
	case noticeMsg:
		n := notify.Notice(msg)
		a.notice = &n
		return a, nil
	case changeMsg:
		if a.dashboard != nil {
			a.dashboard.Apply(realtime.Change(msg))
		}
		return a, nil
	case sessionMsg:
		return a, a.onSession(session.Event(msg))
	case navigateMsg:
		return a, a.switchTo(msg.to)
	}

	var cmd tea.Cmd
	a.screen, cmd = a.screen.Update(msg)
	return a, cmd
}

func (a *App) onSession(e session.Event) tea.Cmd {
	switch e.Kind {
	case session.SignedIn:
		if a.dashboard != nil {
			return nil
		}
		a.dashboard = dashboard.New(a.deps.Platform, a.deps.Reporter, a.inv.invalidate)
		return a.switchTo(newDashboardScreen(a))
	case session.SignedOut:
		a.dashboard = nil
		return a.switchTo(newAuthScreen(a))
	}
	return nil
}

func (a *App) switchTo(next screen) tea.Cmd {
	if c, ok := a.screen.(closer); ok {
		c.Close()
	}
	a.screen = next
	cmds := []tea.Cmd{next.Init()}
	if a.width > 0 {
		size := tea.WindowSizeMsg{Width: a.width, Height: a.height}
		cmds = append(cmds, func() tea.Msg { return size })
	}
	return tea.Batch(cmds...)
}

// bodyHeight is what a screen may use below the header and above the footer.
func (a *App) bodyHeight() int {
	return max(a.height-4, 3)
}

func (a *App) View() string {
	header := styles.title.Render("nexus")
	if s := a.deps.Auth.Session(); s != nil {
		header += "  " + styles.muted.Render(s.User.Email)
	}

	status := styles.muted.Render(a.screen.Help())
	if busy := a.screen.Busy(); busy != "" {
		status = a.spinner.View() + " " + busy + "  " + status
	}

	return header + "\n\n" + a.screen.View() + "\n" + renderNotice(a.notice, a.width) + "\n" + status
}
