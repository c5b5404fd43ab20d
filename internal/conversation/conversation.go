// Package conversation sends user messages into an open conversation pane.
package conversation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"nexus-chat/internal/models"
	"nexus-chat/internal/pane"
	"nexus-chat/pkg/errors"
)

var (
	ErrBusy        = errors.NewConflictError(errors.CodeBusy, "A message is already being sent")
	ErrNotRetrying = errors.NewBadRequestError(errors.CodeValidation, "Only failed messages can be retried")
)

// Sender is the chat endpoint.
type Sender interface {
	SendMessage(ctx context.Context, conversationID, content string) (string, error)
}

// Reporter surfaces failures to the user.
type Reporter interface {
	Report(source string, err error)
}

// Orchestrator serialises sends for one conversation.
type Orchestrator struct {
	pane     *pane.Pane
	sender   Sender
	reporter Reporter
	now      func() time.Time

	mu      sync.Mutex
	sending bool
}

func New(p *pane.Pane, sender Sender, reporter Reporter) *Orchestrator {
	return &Orchestrator{pane: p, sender: sender, reporter: reporter, now: time.Now}
}

// Sending reports whether a send is in flight.
func (o *Orchestrator) Sending() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sending
}

// claim fails while a send or a regeneration is in flight.
func (o *Orchestrator) claim() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sending || o.pane.Regenerating() {
		return false
	}
	o.sending = true
	return true
}

func (o *Orchestrator) release() {
	o.mu.Lock()
	o.sending = false
	o.mu.Unlock()
}

// Send shows text immediately as a pending user message, then appends the
// character's reply. On failure the message stays visible, tagged failed.
// Blank text is ignored.
func (o *Orchestrator) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if !o.claim() {
		return ErrBusy
	}

	msg := models.Message{
		ID:             uuid.NewString(),
		ConversationID: o.pane.ConversationID(),
		Role:           models.RoleUser,
		Content:        text,
		Idx:            pane.LastIdx(o.pane.Snapshot().Messages) + 1,
		CreatedAt:      models.Timestamp{Time: o.now()},
		Status:         models.StatusPending,
	}
	o.pane.Append(msg)
	return o.deliver(ctx, msg)
}

// Retry resends a failed message. It moves to the bottom of the list.
func (o *Orchestrator) Retry(ctx context.Context, id string) error {
	msg, ok := o.pane.Message(id)
	if !ok {
		return errors.NewNotFoundError(errors.CodeNotFound, "Message not found")
	}
	if msg.Status != models.StatusFailed {
		return ErrNotRetrying
	}
	if !o.claim() {
		return ErrBusy
	}

	msg.Status = models.StatusPending
	msg.Idx = pane.LastIdx(o.pane.Snapshot().Messages) + 1
	o.pane.Append(msg)
	return o.deliver(ctx, msg)
}

func (o *Orchestrator) deliver(ctx context.Context, msg models.Message) error {
	reply, err := o.sender.SendMessage(ctx, msg.ConversationID, msg.Content)
	o.release()

	if err != nil {
		o.pane.SetStatus(msg.ID, models.StatusFailed)
		o.reporter.Report("messages.send", err)
		return err
	}

	o.pane.SetStatus(msg.ID, models.StatusSent)
	o.pane.Append(models.Message{
		ID:             uuid.NewString(),
		ConversationID: msg.ConversationID,
		Role:           models.RoleCharacter,
		Content:        reply,
		Idx:            msg.Idx + 1,
		CreatedAt:      models.Timestamp{Time: o.now()},
		Status:         models.StatusSent,
	})
	return nil
}
