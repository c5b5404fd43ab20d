// Package notify is the single channel through which client failures reach
// the user.
package notify

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"nexus-chat/pkg/errors"
	"nexus-chat/pkg/hub"
	"nexus-chat/pkg/logger"
)

// Level grades a notice.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notice is what the UI shows.
type Notice struct {
	Level   Level
	Source  string
	Message string
	Code    string
	At      time.Time
}

// Reporter logs failures and publishes them as notices. The latest notice
// is kept for views that poll instead of subscribing.
type Reporter struct {
	log     *logger.Logger
	notices *hub.Hub[Notice]
	now     func() time.Time

	mu     sync.RWMutex
	latest *Notice
}

func NewReporter(log *logger.Logger) *Reporter {
	if log == nil {
		log = logger.Discard()
	}
	return &Reporter{log: log, notices: hub.New[Notice]("notices", log), now: time.Now}
}

// Report records err from source. Cancellation is not a failure and is
// dropped. A nil Reporter only discards.
func (r *Reporter) Report(source string, err error) {
	if r == nil || err == nil || stderrors.Is(err, context.Canceled) {
		return
	}
	r.log.LogError(err, "Operation failed", "source", source, "code", errors.GetErrorCode(err))
	r.publish(Notice{
		Level:   LevelError,
		Source:  source,
		Message: errors.GetErrorMessage(err),
		Code:    errors.GetErrorCode(err),
	})
}

// Info publishes a non-error notice.
func (r *Reporter) Info(source, message string) {
	if r == nil {
		return
	}
	r.publish(Notice{Level: LevelInfo, Source: source, Message: message})
}

// Latest returns the most recent notice, if any.
func (r *Reporter) Latest() (Notice, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.latest == nil {
		return Notice{}, false
	}
	return *r.latest, true
}

// Dismiss clears the latest notice.
func (r *Reporter) Dismiss() {
	r.mu.Lock()
	r.latest = nil
	r.mu.Unlock()
}

// Subscribe delivers every future notice to fn.
func (r *Reporter) Subscribe(fn func(Notice)) func() {
	return r.notices.Subscribe(fn)
}

func (r *Reporter) publish(n Notice) {
	n.At = r.now()
	r.mu.Lock()
	r.latest = &n
	r.mu.Unlock()
	r.notices.Publish(n)
}
