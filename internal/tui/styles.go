package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"nexus-chat/internal/notify"
)

var styles = struct {
	title, accent, muted, selected, user, character, failed, info, errorBar, badge, modal lipgloss.Style
}{
	title:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
	accent:    lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	muted:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	selected:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14")),
	user:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
	character: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13")),
	failed:    lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	info:      lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("10")).Padding(0, 1),
	errorBar:  lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("1")).Padding(0, 1),
	badge:     lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("11")).Padding(0, 1),
	modal:     lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("12")).Padding(0, 1),
}

func renderNotice(n *notify.Notice, width int) string {
	if n == nil {
		return ""
	}
	text := n.Message
	if n.Code != "" {
		text = fmt.Sprintf("%s (%s)", n.Message, n.Code)
	}
	style := styles.info
	if n.Level == notify.LevelError {
		style = styles.errorBar
	}
	if width > 0 {
		style = style.MaxWidth(width)
	}
	return style.Render(text)
}

func visibility(private bool) string {
	if private {
		return styles.badge.Render("private")
	}
	return styles.badge.Render("public")
}

// cursorMark prefixes the selected row.
func cursorMark(selected bool) string {
	if selected {
		return styles.selected.Render("> ")
	}
	return "  "
}
