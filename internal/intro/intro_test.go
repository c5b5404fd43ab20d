package intro

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"nexus-chat/internal/models"
	"nexus-chat/pkg/errors"
)

type mockPlatform struct {
	mock.Mock
}

func (m *mockPlatform) GetCharacter(ctx context.Context, id string) (*models.Character, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*models.Character)
	return c, args.Error(1)
}

func (m *mockPlatform) CreateConversation(ctx context.Context, botID string) (string, error) {
	args := m.Called(ctx, botID)
	return args.String(0), args.Error(1)
}

func (m *mockPlatform) SendMessage(ctx context.Context, conversationID, content string) (string, error) {
	args := m.Called(ctx, conversationID, content)
	return args.String(0), args.Error(1)
}

type countingReporter struct {
	n int
}

func (r *countingReporter) Report(string, error) { r.n++ }

func character(starting string) *models.Character {
	return &models.Character{
		ID:   "bot-1",
		Name: "Ada",
		Prompt: models.NewStructuredPrompt(models.StructuredPrompt{
			Description:     "a mathematician",
			StartingMessage: starting,
		}),
	}
}

func TestStartSendsStartingMessageThenUserLine(t *testing.T) {
	plat := &mockPlatform{}
	plat.On("GetCharacter", mock.Anything, "bot-1").Return(character("Hello there"), nil)
	plat.On("CreateConversation", mock.Anything, "bot-1").Return("conv-9", nil)
	first := plat.On("SendMessage", mock.Anything, "conv-9", "Hello there").Return("", nil).Once()
	plat.On("SendMessage", mock.Anything, "conv-9", "hi Ada").Return("hi!", nil).Once().NotBefore(first)

	in := New("bot-1", plat, &countingReporter{})
	_, err := in.Load(context.Background())
	require.NoError(t, err)

	id, err := in.Start(context.Background(), "  hi Ada ")
	require.NoError(t, err)
	assert.Equal(t, "conv-9", id)
	plat.AssertExpectations(t)
}

func TestStartWithoutTextOnlyCreates(t *testing.T) {
	plat := &mockPlatform{}
	plat.On("GetCharacter", mock.Anything, "bot-1").Return(character("Hello there"), nil)
	plat.On("CreateConversation", mock.Anything, "bot-1").Return("conv-9", nil)

	in := New("bot-1", plat, &countingReporter{})
	id, err := in.Start(context.Background(), "   ")
	require.NoError(t, err)
	assert.Equal(t, "conv-9", id)
	plat.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestNothingToSend(t *testing.T) {
	plat := &mockPlatform{}
	plat.On("GetCharacter", mock.Anything, "bot-1").Return(character(""), nil)

	in := New("bot-1", plat, &countingReporter{})
	_, err := in.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, in.CanStart(" "))

	_, err = in.Start(context.Background(), " ")
	assert.ErrorIs(t, err, ErrNothingToSend)
	plat.AssertNotCalled(t, "CreateConversation", mock.Anything, mock.Anything)
}

func TestSendFailureStillNavigates(t *testing.T) {
	plat := &mockPlatform{}
	rep := &countingReporter{}
	plat.On("GetCharacter", mock.Anything, "bot-1").Return(character("Hello there"), nil)
	plat.On("CreateConversation", mock.Anything, "bot-1").Return("conv-9", nil)
	plat.On("SendMessage", mock.Anything, "conv-9", "Hello there").Return("", errors.Application("busy"))

	in := New("bot-1", plat, rep)
	id, err := in.Start(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "conv-9", id)
	assert.Equal(t, 1, rep.n)
	plat.AssertNotCalled(t, "SendMessage", mock.Anything, "conv-9", "hi")
}

func TestCreateFailureIsFatal(t *testing.T) {
	plat := &mockPlatform{}
	plat.On("GetCharacter", mock.Anything, "bot-1").Return(character("Hello there"), nil)
	plat.On("CreateConversation", mock.Anything, "bot-1").Return("", errors.HTTPStatus(500, "Failed to create conversation"))

	in := New("bot-1", plat, &countingReporter{})
	_, err := in.Start(context.Background(), "hi")
	assert.Error(t, err)
}
