// Package session tracks the signed-in identity and hands out bearer tokens.
package session

import (
	"context"
	"sync"
	"time"

	"nexus-chat/internal/models"
	"nexus-chat/pkg/errors"
	"nexus-chat/pkg/hub"
	"nexus-chat/pkg/jwt"
	"nexus-chat/pkg/logger"
)

// EventKind names a session transition.
type EventKind string

const (
	SignedIn       EventKind = "SIGNED_IN"
	SignedOut      EventKind = "SIGNED_OUT"
	TokenRefreshed EventKind = "TOKEN_REFRESHED"
)

// Event is delivered to subscribers on every transition. Session is nil
// after sign-out.
type Event struct {
	Kind    EventKind
	Session *models.Session
}

// Auth is the identity API the provider needs.
type Auth interface {
	SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error)
	SignUp(ctx context.Context, email, password string) (*models.Session, error)
	RefreshSession(ctx context.Context, refreshToken string) (*models.Session, error)
	SignOut(ctx context.Context, accessToken string) error
}

// Provider owns the current session. Pass it to whatever needs a token
// instead of reaching for a global.
type Provider struct {
	auth          Auth
	log           *logger.Logger
	refreshMargin time.Duration
	now           func() time.Time

	mu      sync.RWMutex
	current *models.Session
	expiry  time.Time
	changed chan struct{}

	refreshMu sync.Mutex
	events    *hub.Hub[Event]
}

// New creates a signed-out provider. Tokens are refreshed refreshMargin
// before they expire.
func New(auth Auth, refreshMargin time.Duration, log *logger.Logger) *Provider {
	if log == nil {
		log = logger.Discard()
	}
	if refreshMargin <= 0 {
		refreshMargin = time.Minute
	}
	return &Provider{
		auth:          auth,
		log:           log,
		refreshMargin: refreshMargin,
		now:           time.Now,
		changed:       make(chan struct{}, 1),
		events:        hub.New[Event]("session", log),
	}
}

// Subscribe registers fn for session events and returns the unsubscribe func.
func (p *Provider) Subscribe(fn func(Event)) func() {
	return p.events.Subscribe(fn)
}

// SignIn authenticates with email and password.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	s, err := p.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	p.set(s, SignedIn)
	return s, nil
}

// SignUp registers and, when the platform issues a session immediately,
// signs in. confirm reports that the user must confirm their email first.
func (p *Provider) SignUp(ctx context.Context, email, password string) (confirm bool, err error) {
	s, err := p.auth.SignUp(ctx, email, password)
	if err != nil {
		return false, err
	}
	if s.AccessToken == "" {
		return true, nil
	}
	p.set(s, SignedIn)
	return false, nil
}

// Refresh trades the refresh token for a new access token.
func (p *Provider) Refresh(ctx context.Context) error {
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	p.mu.RLock()
	current := p.current
	p.mu.RUnlock()
	if current == nil || current.RefreshToken == "" {
		return errors.NotAuthenticated()
	}

	s, err := p.auth.RefreshSession(ctx, current.RefreshToken)
	if err != nil {
		if errors.HasCode(err, errors.CodeBadCredentials) {
			p.log.Warn("Refresh token rejected, signing out", "error", err.Error())
			p.clear()
			return errors.NotAuthenticated().WithCause(err)
		}
		return err
	}
	p.set(s, TokenRefreshed)
	return nil
}

// SignOut revokes the session remotely (best effort) and forgets it.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.RLock()
	current := p.current
	p.mu.RUnlock()
	if current == nil {
		return nil
	}
	err := p.auth.SignOut(ctx, current.AccessToken)
	if err != nil {
		p.log.Warn("Remote sign-out failed", "error", err.Error())
	}
	p.clear()
	return err
}

// Session returns a copy of the current session, or nil.
func (p *Provider) Session() *models.Session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.current == nil {
		return nil
	}
	s := *p.current
	return &s
}

// Token returns a live access token. An expired token is refreshed first;
// without a session it fails with AUTH_REQUIRED.
func (p *Provider) Token(ctx context.Context) (string, error) {
	p.mu.RLock()
	current, expiry := p.current, p.expiry
	p.mu.RUnlock()

	if current == nil {
		return "", errors.NotAuthenticated()
	}
	if expiry.IsZero() || p.now().Before(expiry) {
		return current.AccessToken, nil
	}
	if err := p.Refresh(ctx); err != nil {
		return "", err
	}
	if s := p.Session(); s != nil {
		return s.AccessToken, nil
	}
	return "", errors.NotAuthenticated()
}

// Run refreshes the token ahead of expiry until ctx is done.
func (p *Provider) Run(ctx context.Context) {
	defer p.events.Close()
	for {
		wait := p.untilRefresh()
		var timer *time.Timer
		var fire <-chan time.Time
		if wait >= 0 {
			timer = time.NewTimer(wait)
			fire = timer.C
		}
		stop := func() {
			if timer != nil {
				timer.Stop()
			}
		}

		select {
		case <-ctx.Done():
			stop()
			return
		case <-p.changed:
			stop()
		case <-fire:
			if err := p.Refresh(ctx); err != nil && ctx.Err() == nil {
				p.log.Warn("Token refresh failed", "error", err.Error())
				select {
				case <-ctx.Done():
					return
				case <-time.After(5 * time.Second):
				}
			}
		}
	}
}

// untilRefresh is negative when nothing is scheduled.
func (p *Provider) untilRefresh() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.current == nil || p.expiry.IsZero() || p.current.RefreshToken == "" {
		return -1
	}
	d := p.expiry.Sub(p.now()) - p.refreshMargin
	if d < 0 {
		d = 0
	}
	return d
}

func (p *Provider) set(s *models.Session, kind EventKind) {
	expiry := s.Expiry()
	if exp, err := jwt.ExpiresAt(s.AccessToken); err == nil && !exp.IsZero() {
		expiry = exp
	}

	p.mu.Lock()
	p.current = s
	p.expiry = expiry
	p.mu.Unlock()

	p.log.Info("Session updated", "event", string(kind), "user", s.User.ID)
	p.notify()
	copied := *s
	p.events.Publish(Event{Kind: kind, Session: &copied})
}

func (p *Provider) clear() {
	p.mu.Lock()
	p.current = nil
	p.expiry = time.Time{}
	p.mu.Unlock()

	p.notify()
	p.events.Publish(Event{Kind: SignedOut})
}

func (p *Provider) notify() {
	select {
	case p.changed <- struct{}{}:
	default:
	}
}
