// Package chats lists the user's conversations with a summary of each.
package chats

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"nexus-chat/internal/models"
)

// DefaultWorkers bounds concurrent summary fetches.
const DefaultWorkers = 4

type Platform interface {
	ListMyConversations(ctx context.Context) ([]models.Conversation, error)
	GetBotAndLastMessage(ctx context.Context, conversationID string) (*models.ConversationSummary, error)
	DeleteEntity(ctx context.Context, id string, kind models.EntityType) error
}

// Reporter surfaces failures to the user.
type Reporter interface {
	Report(source string, err error)
}

type State struct {
	Chats   []models.ConversationSummary
	Loading bool
	Err     error
}

type List struct {
	platform Platform
	reporter Reporter
	workers  int

	mu    sync.Mutex
	state State
}

func New(p Platform, reporter Reporter, workers int) *List {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &List{platform: p, reporter: reporter, workers: workers}
}

func (l *List) Snapshot() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := l.state
	st.Chats = append([]models.ConversationSummary(nil), l.state.Chats...)
	return st
}

// Load fetches the conversation list, then each summary with at most
// workers requests in flight. A summary that fails keeps its row with Err
// set; only a failure of the list itself fails Load.
func (l *List) Load(ctx context.Context) error {
	l.mu.Lock()
	l.state.Loading = true
	l.state.Err = nil
	l.mu.Unlock()

	convs, err := l.platform.ListMyConversations(ctx)
	if err != nil {
		l.mu.Lock()
		l.state.Loading = false
		l.state.Err = err
		l.mu.Unlock()
		l.reporter.Report("chats.load", err)
		return err
	}

	summaries := make([]models.ConversationSummary, len(convs))
	var g errgroup.Group
	g.SetLimit(l.workers)
	for i, conv := range convs {
		i, conv := i, conv
		g.Go(func() error {
			summaries[i] = l.summarize(ctx, conv)
			return nil
		})
	}
	g.Wait()

	l.mu.Lock()
	l.state = State{Chats: summaries}
	l.mu.Unlock()
	return nil
}

func (l *List) summarize(ctx context.Context, conv models.Conversation) models.ConversationSummary {
	s, err := l.platform.GetBotAndLastMessage(ctx, conv.ID)
	if err != nil {
		return models.ConversationSummary{ConversationID: conv.ID, BotID: conv.CharacterID, Err: err}
	}
	out := *s
	out.ConversationID = conv.ID
	return out
}

// Delete removes a conversation from the platform and from the list.
func (l *List) Delete(ctx context.Context, id string) error {
	if err := l.platform.DeleteEntity(ctx, id, models.EntityConversation); err != nil {
		l.reporter.Report("chats.delete", err)
		return err
	}
	l.mu.Lock()
	kept := l.state.Chats[:0:0]
	for _, c := range l.state.Chats {
		if c.ConversationID != id {
			kept = append(kept, c)
		}
	}
	l.state.Chats = kept
	l.mu.Unlock()
	return nil
}
