// Package pane holds the state of one conversation's message list: backward
// paging with scroll preservation, deletes and regeneration.
package pane

import (
	"context"
	"sync"

	"nexus-chat/internal/models"
	"nexus-chat/internal/platform"
	"nexus-chat/pkg/errors"
)

// LatestCursor asks the paginator for the most recent page.
const LatestCursor = 999999

// NearBottomThreshold is how close to the bottom, in viewport units, the
// view must be for an append to follow it down.
const NearBottomThreshold = 3

var (
	ErrBusy                = errors.NewConflictError(errors.CodeBusy, "Another request is already running")
	ErrNothingToRegenerate = errors.NewBadRequestError(errors.CodeValidation, "The last message is not a character reply")
)

// Metrics describe the scroll container.
type Metrics struct {
	Top           int
	ContentHeight int
	ClientHeight  int
}

// Bottom is the scroll offset that shows the end of the content.
func (m Metrics) Bottom() int {
	if m.ContentHeight <= m.ClientHeight {
		return 0
	}
	return m.ContentHeight - m.ClientHeight
}

// Viewport is the scroll container the pane renders into.
type Viewport interface {
	Metrics() Metrics
	ScrollTo(top int, smooth bool)
	// NextLayout runs fn once the view has laid out the current messages.
	NextLayout(fn func())
}

// Source is the slice of the platform the pane calls.
type Source interface {
	PaginateMessages(ctx context.Context, conversationID string, startingIdx int) (*platform.Page, error)
	DeleteMessagesFrom(ctx context.Context, conversationID string, idx int) error
	RegenerateLast(ctx context.Context, conversationID, instruction string) (string, error)
}

// Reporter surfaces failures to the user.
type Reporter interface {
	Report(source string, err error)
}

// State is a snapshot for rendering.
type State struct {
	Messages        []models.Message
	OldestLoadedIdx int
	HasMore         bool
	Loading         bool
	Err             error
	Deleting        map[int]bool
	Regenerating    bool
}

// Options tune a Pane.
type Options struct {
	NearBottom int
	// OnChange is called after every state change, outside the lock.
	OnChange func()
}

// Pane is safe for concurrent use.
type Pane struct {
	conversationID string
	src            Source
	view           Viewport
	reporter       Reporter
	nearBottom     int
	onChange       func()

	life   context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	messages      []models.Message
	oldest        int
	hasMore       bool
	loading       bool
	err           error
	deleting      map[int]bool
	regenerating  bool
	fetchingOlder bool
}

// New creates a pane for one conversation. Nothing is fetched until Load.
func New(conversationID string, src Source, view Viewport, reporter Reporter, opts Options) *Pane {
	if view == nil {
		view = immediateViewport{}
	}
	if opts.NearBottom <= 0 {
		opts.NearBottom = NearBottomThreshold
	}
	if opts.OnChange == nil {
		opts.OnChange = func() {}
	}
	life, cancel := context.WithCancel(context.Background())
	return &Pane{
		conversationID: conversationID,
		src:            src,
		view:           view,
		reporter:       reporter,
		nearBottom:     opts.NearBottom,
		onChange:       opts.OnChange,
		life:           life,
		cancel:         cancel,
		oldest:         LatestCursor,
		hasMore:        true,
		deleting:       make(map[int]bool),
	}
}

// ConversationID returns the conversation this pane shows.
func (p *Pane) ConversationID() string {
	return p.conversationID
}

// Snapshot returns a copy of the current state.
func (p *Pane) Snapshot() State {
	p.mu.Lock()
	defer p.mu.Unlock()

	deleting := make(map[int]bool, len(p.deleting))
	for k, v := range p.deleting {
		deleting[k] = v
	}
	return State{
		Messages:        append([]models.Message(nil), p.messages...),
		OldestLoadedIdx: p.oldest,
		HasMore:         p.hasMore,
		Loading:         p.loading,
		Err:             p.err,
		Deleting:        deleting,
		Regenerating:    p.regenerating,
	}
}

// Regenerating reports whether a regeneration is in flight.
func (p *Pane) Regenerating() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.regenerating
}

// Close ends the pane's lifetime. In-flight calls are cancelled and their
// results discarded.
func (p *Pane) Close() {
	p.cancel()
}

func (p *Pane) closed() bool {
	return p.life.Err() != nil
}

// scope derives a call context that also ends with the pane.
func (p *Pane) scope(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(p.life, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Load fetches the most recent page and jumps to the bottom.
func (p *Pane) Load(ctx context.Context) error {
	p.mu.Lock()
	p.loading = true
	p.err = nil
	p.mu.Unlock()
	p.onChange()

	ctx, cancel := p.scope(ctx)
	defer cancel()
	page, err := p.src.PaginateMessages(ctx, p.conversationID, LatestCursor)

	p.mu.Lock()
	if p.closed() {
		p.mu.Unlock()
		return context.Canceled
	}
	p.loading = false
	if err != nil {
		p.err = err
		p.mu.Unlock()
		p.onChange()
		p.reporter.Report("messages.load", err)
		return err
	}
	p.applyPage(page)
	p.mu.Unlock()
	p.onChange()

	p.view.NextLayout(func() {
		p.view.ScrollTo(p.view.Metrics().Bottom(), false)
	})
	return nil
}

// applyPage must be called with mu held.
func (p *Pane) applyPage(page *platform.Page) {
	p.messages = MergeOlder(p.messages, page.Messages)
	for _, m := range page.Messages {
		if m.Idx < p.oldest {
			p.oldest = m.Idx
		}
	}
	p.hasMore = page.HasMore
}

// OnScroll fetches older messages when the view is scrolled to the top.
// It reports whether a fetch ran.
func (p *Pane) OnScroll(ctx context.Context) bool {
	if p.view.Metrics().Top > 0 {
		return false
	}
	p.mu.Lock()
	ready := p.hasMore && !p.loading && !p.fetchingOlder
	p.mu.Unlock()
	if !ready {
		return false
	}
	return p.FetchOlder(ctx) == nil
}

// FetchOlder loads the page before the oldest loaded message and keeps the
// visible rows in place. At most one backward fetch runs at a time; extra
// calls return ErrBusy without touching the network.
func (p *Pane) FetchOlder(ctx context.Context) error {
	p.mu.Lock()
	if p.fetchingOlder || p.loading || !p.hasMore || p.closed() {
		p.mu.Unlock()
		return ErrBusy
	}
	p.fetchingOlder = true
	p.loading = true
	cursor := p.oldest
	p.mu.Unlock()
	p.onChange()

	before := p.view.Metrics().ContentHeight

	ctx, cancel := p.scope(ctx)
	defer cancel()
	page, err := p.src.PaginateMessages(ctx, p.conversationID, cursor)

	p.mu.Lock()
	p.loading = false
	if err != nil || p.closed() {
		p.fetchingOlder = false
		if err != nil && !p.closed() {
			p.err = err
		}
		p.mu.Unlock()
		p.onChange()
		if err == nil {
			return context.Canceled
		}
		p.reporter.Report("messages.older", err)
		return err
	}
	p.applyPage(page)
	p.mu.Unlock()
	p.onChange()

	p.view.NextLayout(func() {
		m := p.view.Metrics()
		p.view.ScrollTo(m.Top+m.ContentHeight-before, false)

		p.mu.Lock()
		p.fetchingOlder = false
		p.mu.Unlock()
	})
	return nil
}

// Append adds a new message at the bottom. The view follows only when it
// was already near the bottom and no backward fetch is running.
func (p *Pane) Append(m models.Message) {
	metrics := p.view.Metrics()
	near := metrics.ContentHeight-metrics.Top-metrics.ClientHeight < p.nearBottom

	p.mu.Lock()
	if p.closed() {
		p.mu.Unlock()
		return
	}
	p.messages = AppendMessage(p.messages, m)
	follow := near && !p.fetchingOlder
	p.mu.Unlock()
	p.onChange()

	if follow {
		p.view.NextLayout(func() {
			p.view.ScrollTo(p.view.Metrics().Bottom(), true)
		})
	}
}

// SetStatus retags a message, typically an optimistic send.
func (p *Pane) SetStatus(id string, status models.MessageStatus) {
	p.mu.Lock()
	if p.closed() {
		p.mu.Unlock()
		return
	}
	p.messages = UpdateStatus(p.messages, id, status)
	p.mu.Unlock()
	p.onChange()
}

// Message returns the message with the given id.
func (p *Pane) Message(id string) (models.Message, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range p.messages {
		if m.ID == id {
			return m, true
		}
	}
	return models.Message{}, false
}

// Delete removes the message at idx and everything after it. Rows are
// deleted independently; deleting a row already being deleted is ErrBusy.
func (p *Pane) Delete(ctx context.Context, idx int, role models.Role) error {
	p.mu.Lock()
	if p.deleting[idx] {
		p.mu.Unlock()
		return ErrBusy
	}
	p.deleting[idx] = true
	p.mu.Unlock()
	p.onChange()

	ctx, cancel := p.scope(ctx)
	defer cancel()
	err := p.src.DeleteMessagesFrom(ctx, p.conversationID, idx)

	p.mu.Lock()
	delete(p.deleting, idx)
	if p.closed() {
		p.mu.Unlock()
		return context.Canceled
	}
	if err == nil {
		p.messages = TruncateFrom(p.messages, idx, role)
	}
	p.mu.Unlock()
	p.onChange()

	if err != nil {
		p.reporter.Report("messages.delete", err)
	}
	return err
}

// Regenerate rewrites the last character reply, optionally steered by an
// instruction. The reply is chosen when the call starts, so messages that
// arrive meanwhile are left alone.
func (p *Pane) Regenerate(ctx context.Context, instruction string) error {
	p.mu.Lock()
	if p.regenerating {
		p.mu.Unlock()
		return ErrBusy
	}
	if !CanRegenerate(p.messages) {
		p.mu.Unlock()
		return ErrNothingToRegenerate
	}
	target, _ := LastCharacterID(p.messages)
	p.regenerating = true
	p.mu.Unlock()
	p.onChange()

	ctx, cancel := p.scope(ctx)
	defer cancel()
	content, err := p.src.RegenerateLast(ctx, p.conversationID, instruction)

	p.mu.Lock()
	p.regenerating = false
	if p.closed() {
		p.mu.Unlock()
		return context.Canceled
	}
	if err == nil {
		p.messages = ReplaceContent(p.messages, target, content)
	}
	p.mu.Unlock()
	p.onChange()

	if err != nil {
		p.reporter.Report("messages.regenerate", err)
	}
	return err
}

// immediateViewport is used when the pane has no view attached.
type immediateViewport struct{}

func (immediateViewport) Metrics() Metrics     { return Metrics{} }
func (immediateViewport) ScrollTo(int, bool)   {}
func (immediateViewport) NextLayout(fn func()) { fn() }
