package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/bdash/internal/tui/theme"
)

func clampPct(pct float64) float64 {
	if pct < 0 {
		return 0
	}
	if pct > 1 {
		return 1
	}
	return pct
}

// ProgressBar renders a block bar with percentage. Utilization above 100% is
// shown as a full bar with the true percentage.
func ProgressBar(pct float64, width int) string {
	t := theme.Active
	filled := int(clampPct(pct) * float64(width))

	barColor := t.UtilizationColor(pct)
	filledStyle := lipgloss.NewStyle().Foreground(barColor).Background(t.Surface)
	emptyStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	pctStyle := lipgloss.NewStyle().Foreground(barColor).Background(t.Surface).Bold(true)
	spaceStyle := lipgloss.NewStyle().Background(t.Surface)

	var b strings.Builder
	b.WriteString(filledStyle.Render(strings.Repeat("█", filled)))
	b.WriteString(emptyStyle.Render(strings.Repeat("░", width-filled)))

	return b.String() + spaceStyle.Render(" ") + pctStyle.Render(fmt.Sprintf("%.0f%%", pct*100))
}

func newBar(pct float64, width int) progress.Model {
	t := theme.Active
	bar := progress.New(
		progress.WithSolidFill(string(t.UtilizationColor(pct))),
		progress.WithWidth(width),
		progress.WithoutPercentage(),
	)
	bar.EmptyColor = string(t.TextDim)
	return bar
}

// UtilizationBar renders a labeled bar with percentage and a trailing note
// such as the remaining amount.
func UtilizationBar(label string, pct float64, note string, labelW, barWidth int) string {
	t := theme.Active

	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	pctStyle := lipgloss.NewStyle().Foreground(t.UtilizationColor(pct)).Background(t.Surface).Bold(true)
	noteStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	spaceStyle := lipgloss.NewStyle().Background(t.Surface)

	if r := []rune(label); len(r) > labelW && labelW > 1 {
		label = string(r[:labelW-1]) + "…"
	}

	return labelStyle.Render(fmt.Sprintf("%-*s", labelW, label)) +
		spaceStyle.Render(" ") +
		newBar(pct, barWidth).ViewAs(clampPct(pct)) +
		spaceStyle.Render(" ") +
		pctStyle.Render(fmt.Sprintf("%4.0f%%", pct*100)) +
		spaceStyle.Render("  ") +
		noteStyle.Render(note)
}

// CompactBar renders a status-bar-sized utilization indicator.
func CompactBar(label string, pct float64, width int) string {
	t := theme.Active

	barW := width - lipgloss.Width(label) - 6
	if barW < 4 {
		barW = 4
	}

	pctStyle := lipgloss.NewStyle().Foreground(t.UtilizationColor(pct)).Background(t.Surface).Bold(true)
	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	spaceStyle := lipgloss.NewStyle().Background(t.Surface)

	return labelStyle.Render(label) +
		spaceStyle.Render(" ") +
		newBar(pct, barW).ViewAs(clampPct(pct)) +
		spaceStyle.Render(" ") +
		pctStyle.Render(fmt.Sprintf("%2.0f%%", pct*100))
}
