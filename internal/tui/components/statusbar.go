package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/bdash/internal/tui/theme"
)

// StatusInfo is what the bottom bar reports.
type StatusInfo struct {
	DataAge     string
	Refreshing  bool
	AutoRefresh bool
	Syncing     bool
	RemoteSync  bool
	Utilization float64
	Message     string
	IsError     bool
}

// RenderStatusBar renders the bottom status bar.
func RenderStatusBar(width int, info StatusInfo) string {
	t := theme.Active

	bg := lipgloss.NewStyle().Background(t.Surface)
	muted := bg.Foreground(t.TextMuted)
	accent := bg.Foreground(t.Accent).Bold(true)
	dim := bg.Foreground(t.TextDim)

	left := muted.Render(" [?]help  [q]uit")
	if info.RemoteSync {
		left += muted.Render("  [s]ync")
	} else {
		left += dim.Render("  sync off")
	}

	var right []string
	switch {
	case info.Message != "" && info.IsError:
		right = append(right, bg.Foreground(t.Red).Render(info.Message))
	case info.Message != "":
		right = append(right, bg.Foreground(t.Green).Render(info.Message))
	}
	if info.Syncing {
		right = append(right, accent.Render("syncing..."))
	} else if info.Refreshing {
		right = append(right, accent.Render("refreshing..."))
	}
	right = append(right, CompactBar("Used", info.Utilization, 18))
	if info.AutoRefresh {
		right = append(right, dim.Render("auto"))
	}
	if info.DataAge != "" {
		right = append(right, muted.Render("Data: "+info.DataAge))
	}
	rightStr := strings.Join(right, bg.Render("  ")) + bg.Render(" ")

	padding := width - lipgloss.Width(left) - lipgloss.Width(rightStr)
	if padding < 1 {
		// drop the bar before truncating the message
		rightStr = bg.Render(" ")
		padding = width - lipgloss.Width(left) - 1
		if padding < 0 {
			padding = 0
		}
	}

	return left + bg.Render(strings.Repeat(" ", padding)) + rightStr
}
