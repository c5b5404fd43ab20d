package tui

import (
	"sync"

	"github.com/charmbracelet/bubbles/viewport"

	"nexus-chat/internal/pane"
)

// paneViewport lets a pane drive a bubbles viewport it cannot touch
// directly: metrics are a snapshot taken by the UI, and layout callbacks
// queue until the UI has rendered the latest messages.
type paneViewport struct {
	wake func()

	mu      sync.Mutex
	metrics pane.Metrics
	pending []func()
	scroll  *int
}

func newPaneViewport(wake func()) *paneViewport {
	if wake == nil {
		wake = func() {}
	}
	return &paneViewport{wake: wake}
}

func (v *paneViewport) Metrics() pane.Metrics {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.metrics
}

// ScrollTo records the target; the UI applies it in layout. There is no
// animation in a terminal so smooth is ignored.
func (v *paneViewport) ScrollTo(top int, _ bool) {
	v.mu.Lock()
	v.scroll = &top
	v.mu.Unlock()
	v.wake()
}

func (v *paneViewport) NextLayout(fn func()) {
	v.mu.Lock()
	v.pending = append(v.pending, fn)
	v.mu.Unlock()
	v.wake()
}

func (v *paneViewport) measure(vp *viewport.Model) {
	v.mu.Lock()
	v.metrics = pane.Metrics{
		Top:           vp.YOffset,
		ContentHeight: vp.TotalLineCount(),
		ClientHeight:  vp.Height,
	}
	v.mu.Unlock()
}

// layout must run on the UI goroutine after vp holds the current content.
// It runs queued callbacks against fresh metrics and applies the last
// requested scroll.
func (v *paneViewport) layout(vp *viewport.Model) {
	v.measure(vp)

	v.mu.Lock()
	pending := v.pending
	v.pending = nil
	v.mu.Unlock()
	for _, fn := range pending {
		fn()
	}

	v.mu.Lock()
	scroll := v.scroll
	v.scroll = nil
	v.mu.Unlock()
	if scroll != nil {
		vp.SetYOffset(*scroll)
	}
	v.measure(vp)
}
