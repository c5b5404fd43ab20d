package notify

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus-chat/pkg/errors"
)

func TestReportKeepsLatest(t *testing.T) {
	r := NewReporter(nil)

	r.Report("pane.delete", errors.Application("Message not found"))
	n, ok := r.Latest()
	require.True(t, ok)
	assert.Equal(t, LevelError, n.Level)
	assert.Equal(t, "Message not found", n.Message)
	assert.Equal(t, errors.CodeApplication, n.Code)

	r.Dismiss()
	_, ok = r.Latest()
	assert.False(t, ok)
}

func TestReportIgnoresCancellation(t *testing.T) {
	r := NewReporter(nil)
	r.Report("pane.load", fmt.Errorf("fetch: %w", context.Canceled))
	r.Report("pane.load", nil)

	_, ok := r.Latest()
	assert.False(t, ok)

	var nilReporter *Reporter
	nilReporter.Report("x", errors.Application(""))
}
