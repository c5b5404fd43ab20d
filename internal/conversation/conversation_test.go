package conversation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"nexus-chat/internal/models"
	"nexus-chat/internal/pane"
	"nexus-chat/internal/platform"
	"nexus-chat/pkg/errors"
)

type mockPlatform struct {
	mock.Mock
}

func (m *mockPlatform) SendMessage(ctx context.Context, conversationID, content string) (string, error) {
	args := m.Called(ctx, conversationID, content)
	return args.String(0), args.Error(1)
}

func (m *mockPlatform) PaginateMessages(ctx context.Context, conversationID string, startingIdx int) (*platform.Page, error) {
	args := m.Called(ctx, conversationID, startingIdx)
	p, _ := args.Get(0).(*platform.Page)
	return p, args.Error(1)
}

func (m *mockPlatform) DeleteMessagesFrom(ctx context.Context, conversationID string, idx int) error {
	return m.Called(ctx, conversationID, idx).Error(0)
}

func (m *mockPlatform) RegenerateLast(ctx context.Context, conversationID, instruction string) (string, error) {
	args := m.Called(ctx, conversationID, instruction)
	return args.String(0), args.Error(1)
}

type recordingReporter struct {
	mu   sync.Mutex
	errs []error
}

func (r *recordingReporter) Report(_ string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func setup(t *testing.T, existing []models.Message) (*Orchestrator, *pane.Pane, *mockPlatform, *recordingReporter) {
	t.Helper()
	plat := &mockPlatform{}
	plat.On("PaginateMessages", mock.Anything, "c1", pane.LatestCursor).
		Return(&platform.Page{Messages: existing}, nil).Once()
	rep := &recordingReporter{}
	p := pane.New("c1", plat, nil, rep, pane.Options{})
	t.Cleanup(p.Close)
	require.NoError(t, p.Load(context.Background()))
	return New(p, plat, rep), p, plat, rep
}

func history() []models.Message {
	return []models.Message{
		{ID: "a", Role: models.RoleUser, Content: "hi", Idx: 1},
		{ID: "b", Role: models.RoleCharacter, Content: "hello", Idx: 2},
	}
}

func TestSendAppendsUserAndReply(t *testing.T) {
	o, p, plat, _ := setup(t, history())
	plat.On("SendMessage", mock.Anything, "c1", "how are you?").Return("great", nil)

	require.NoError(t, o.Send(context.Background(), "  how are you?  "))

	msgs := p.Snapshot().Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, models.RoleUser, msgs[2].Role)
	assert.Equal(t, "how are you?", msgs[2].Content)
	assert.Equal(t, 3, msgs[2].Idx)
	assert.Equal(t, models.StatusSent, msgs[2].Status)
	assert.Equal(t, models.RoleCharacter, msgs[3].Role)
	assert.Equal(t, "great", msgs[3].Content)
	assert.Equal(t, 4, msgs[3].Idx)
}

func TestBlankSendIsIgnored(t *testing.T) {
	o, p, plat, _ := setup(t, history())

	require.NoError(t, o.Send(context.Background(), "   "))
	assert.Len(t, p.Snapshot().Messages, 2)
	plat.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestPendingWhileInFlight(t *testing.T) {
	release := make(chan time.Time)
	o, p, plat, _ := setup(t, nil)
	plat.On("SendMessage", mock.Anything, "c1", "first").WaitUntil(release).Return("ok", nil)

	done := make(chan error, 1)
	go func() { done <- o.Send(context.Background(), "first") }()

	require.Eventually(t, func() bool { return len(p.Snapshot().Messages) == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, o.Sending())
	msgs := p.Snapshot().Messages
	require.Len(t, msgs, 1)
	assert.Equal(t, models.StatusPending, msgs[0].Status)
	assert.Equal(t, 1, msgs[0].Idx)

	assert.ErrorIs(t, o.Send(context.Background(), "second"), ErrBusy)

	close(release)
	require.NoError(t, <-done)
	assert.Len(t, p.Snapshot().Messages, 2)
}

func TestSendBlockedWhileRegenerating(t *testing.T) {
	release := make(chan time.Time)
	o, p, plat, _ := setup(t, history())
	plat.On("RegenerateLast", mock.Anything, "c1", "").WaitUntil(release).Return("hey", nil)

	done := make(chan error, 1)
	go func() { done <- p.Regenerate(context.Background(), "") }()
	require.Eventually(t, p.Regenerating, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, o.Send(context.Background(), "too soon"), ErrBusy)
	plat.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything, mock.Anything)

	close(release)
	require.NoError(t, <-done)
	msgs := p.Snapshot().Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, "hey", msgs[1].Content)
}

func TestFailedSendStaysVisibleAndRetries(t *testing.T) {
	o, p, plat, rep := setup(t, history())
	plat.On("SendMessage", mock.Anything, "c1", "again").Return("", errors.Application("model overloaded")).Once()

	err := o.Send(context.Background(), "again")
	require.Error(t, err)
	assert.Len(t, rep.errs, 1)

	msgs := p.Snapshot().Messages
	require.Len(t, msgs, 3)
	failed := msgs[2]
	assert.Equal(t, models.StatusFailed, failed.Status)
	assert.False(t, o.Sending())

	plat.On("SendMessage", mock.Anything, "c1", "again").Return("there you go", nil).Once()
	require.NoError(t, o.Retry(context.Background(), failed.ID))

	msgs = p.Snapshot().Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, failed.ID, msgs[2].ID)
	assert.Equal(t, models.StatusSent, msgs[2].Status)
	assert.Equal(t, "there you go", msgs[3].Content)
}

func TestRetryRejectsDeliveredMessage(t *testing.T) {
	o, _, _, _ := setup(t, history())

	assert.ErrorIs(t, o.Retry(context.Background(), "a"), ErrNotRetrying)
	assert.True(t, errors.HasCode(o.Retry(context.Background(), "missing"), errors.CodeNotFound))
}
