package chats

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"nexus-chat/internal/models"
	"nexus-chat/pkg/errors"
)

type mockPlatform struct {
	mock.Mock
	inFlight, peak atomic.Int32
}

func (m *mockPlatform) ListMyConversations(ctx context.Context) ([]models.Conversation, error) {
	args := m.Called(ctx)
	c, _ := args.Get(0).([]models.Conversation)
	return c, args.Error(1)
}

func (m *mockPlatform) GetBotAndLastMessage(ctx context.Context, conversationID string) (*models.ConversationSummary, error) {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		p := m.peak.Load()
		if n <= p || m.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	args := m.Called(ctx, conversationID)
	s, _ := args.Get(0).(*models.ConversationSummary)
	return s, args.Error(1)
}

func (m *mockPlatform) DeleteEntity(ctx context.Context, id string, kind models.EntityType) error {
	return m.Called(ctx, id, kind).Error(0)
}

type nopReporter struct{}

func (nopReporter) Report(string, error) {}

func TestLoadKeepsOrderAndIsolatesFailures(t *testing.T) {
	plat := &mockPlatform{}
	convs := []models.Conversation{{ID: "c1", CharacterID: "b1"}, {ID: "c2", CharacterID: "b2"}, {ID: "c3", CharacterID: "b3"}}
	plat.On("ListMyConversations", mock.Anything).Return(convs, nil)
	plat.On("GetBotAndLastMessage", mock.Anything, "c1").Return(&models.ConversationSummary{BotName: "Ada", LastMessageContent: "hi"}, nil)
	plat.On("GetBotAndLastMessage", mock.Anything, "c2").Return(nil, errors.NewNotFoundError(errors.CodeNotFound, "gone"))
	plat.On("GetBotAndLastMessage", mock.Anything, "c3").Return(&models.ConversationSummary{BotName: "Bo"}, nil)

	l := New(plat, nopReporter{}, 2)
	require.NoError(t, l.Load(context.Background()))

	st := l.Snapshot()
	require.Len(t, st.Chats, 3)
	assert.Equal(t, "c1", st.Chats[0].ConversationID)
	assert.Equal(t, "Ada", st.Chats[0].BotName)
	assert.Error(t, st.Chats[1].Err)
	assert.Equal(t, "b2", st.Chats[1].BotID)
	assert.Equal(t, "Bo", st.Chats[2].BotName)
	assert.False(t, st.Loading)
}

func TestLoadBoundsConcurrency(t *testing.T) {
	plat := &mockPlatform{}
	var convs []models.Conversation
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		convs = append(convs, models.Conversation{ID: id})
		plat.On("GetBotAndLastMessage", mock.Anything, id).Return(&models.ConversationSummary{}, nil)
	}
	plat.On("ListMyConversations", mock.Anything).Return(convs, nil)

	l := New(plat, nopReporter{}, 3)
	require.NoError(t, l.Load(context.Background()))
	assert.LessOrEqual(t, plat.peak.Load(), int32(3))
}

func TestLoadFailure(t *testing.T) {
	plat := &mockPlatform{}
	plat.On("ListMyConversations", mock.Anything).Return(nil, errors.NotAuthenticated())

	l := New(plat, nopReporter{}, 0)
	assert.Error(t, l.Load(context.Background()))
	assert.True(t, errors.HasCode(l.Snapshot().Err, errors.CodeAuthRequired))
}

func TestDelete(t *testing.T) {
	plat := &mockPlatform{}
	plat.On("ListMyConversations", mock.Anything).Return([]models.Conversation{{ID: "c1"}, {ID: "c2"}}, nil)
	plat.On("GetBotAndLastMessage", mock.Anything, mock.Anything).Return(&models.ConversationSummary{}, nil)
	plat.On("DeleteEntity", mock.Anything, "c1", models.EntityConversation).Return(nil)

	l := New(plat, nopReporter{}, 0)
	require.NoError(t, l.Load(context.Background()))
	require.NoError(t, l.Delete(context.Background(), "c1"))

	st := l.Snapshot()
	require.Len(t, st.Chats, 1)
	assert.Equal(t, "c2", st.Chats[0].ConversationID)
}
