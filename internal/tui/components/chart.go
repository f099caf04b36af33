package components

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/bdash/internal/tui/theme"
)

// BarRow is one row of a HorizontalBars chart.
type BarRow struct {
	Label string
	Value float64
	Note  string
	Color lipgloss.Color // zero uses the theme accent
}

// HorizontalBars renders labeled bars scaled to the largest value, each
// followed by its note. width is the inner card width.
func HorizontalBars(rows []BarRow, width int) string {
	if len(rows) == 0 {
		return ""
	}
	t := theme.Active
	bg := lipgloss.NewStyle().Background(t.Surface)

	labelW, noteW := 0, 0
	maxVal := 0.0
	for _, r := range rows {
		labelW = max(labelW, lipgloss.Width(r.Label))
		noteW = max(noteW, lipgloss.Width(r.Note))
		maxVal = math.Max(maxVal, r.Value)
	}
	labelW = min(labelW, width/3)
	barMax := width - labelW - noteW - 2
	if barMax < 1 {
		barMax = 1
	}

	var b strings.Builder
	for i, r := range rows {
		color := r.Color
		if color == "" {
			color = t.Accent
		}
		n := 0
		if maxVal > 0 {
			n = int(math.Round(r.Value / maxVal * float64(barMax)))
		}
		label := r.Label
		if lr := []rune(label); len(lr) > labelW && labelW > 1 {
			label = string(lr[:labelW-1]) + "…"
		}
		b.WriteString(bg.Foreground(t.TextPrimary).Render(fmt.Sprintf("%-*s", labelW, label)))
		b.WriteString(bg.Render(" "))
		b.WriteString(bg.Foreground(color).Render(strings.Repeat("█", n)))
		b.WriteString(bg.Render(strings.Repeat(" ", barMax-n+1)))
		b.WriteString(bg.Foreground(t.TextMuted).Render(fmt.Sprintf("%*s", noteW, r.Note)))
		if i < len(rows)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

var eighths = []rune{' ', '▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// ColumnChart renders values as vertical columns over height rows, with the
// peak value labeled on the y axis and labels under each column.
func ColumnChart(values []float64, labels []string, color lipgloss.Color, width, height int) string {
	if len(values) == 0 || height < 2 {
		return ""
	}
	t := theme.Active
	bg := lipgloss.NewStyle().Background(t.Surface)
	axis := bg.Foreground(t.TextDim)
	bar := bg.Foreground(color)

	peak := 0.0
	for _, v := range values {
		peak = math.Max(peak, v)
	}
	top := CompactNumber(peak)
	yW := max(len(top), 1) + 1

	n := len(values)
	colW := (width - yW - 1 - (n - 1)) / n
	colW = max(1, min(colW, 6))

	var b strings.Builder
	for row := height; row >= 1; row-- {
		label := ""
		if row == height {
			label = top
		}
		b.WriteString(axis.Render(fmt.Sprintf("%*s", yW, label)))
		b.WriteString(axis.Render("│"))
		for i, v := range values {
			if i > 0 {
				b.WriteString(bg.Render(" "))
			}
			cell := ' '
			if peak > 0 {
				// column height in eighths of a row
				h := v / peak * float64(height*8)
				switch rem := h - float64((row-1)*8); {
				case rem >= 8:
					cell = '█'
				case rem > 0:
					cell = eighths[max(1, int(rem))]
				}
			}
			b.WriteString(bar.Render(strings.Repeat(string(cell), colW)))
		}
		b.WriteString("\n")
	}

	axisLen := n*colW + n - 1
	b.WriteString(axis.Render(fmt.Sprintf("%*s", yW, "0")))
	b.WriteString(axis.Render("└" + strings.Repeat("─", axisLen)))

	if len(labels) == n {
		b.WriteString("\n")
		b.WriteString(bg.Render(strings.Repeat(" ", yW+1)))
		for i, l := range labels {
			if i > 0 {
				b.WriteString(bg.Render(" "))
			}
			if lr := []rune(l); len(lr) > colW {
				l = string(lr[:colW])
			}
			b.WriteString(axis.Render(fmt.Sprintf("%-*s", colW, l)))
		}
	}
	return b.String()
}

// CompactNumber formats v with a k/M/B suffix for axis labels.
func CompactNumber(v float64) string {
	switch {
	case v >= 1e9:
		return trimZero(fmt.Sprintf("%.1f", v/1e9)) + "B"
	case v >= 1e6:
		return trimZero(fmt.Sprintf("%.1f", v/1e6)) + "M"
	case v >= 1e3:
		return trimZero(fmt.Sprintf("%.1f", v/1e3)) + "k"
	default:
		return fmt.Sprintf("%.0f", v)
	}
}

func trimZero(s string) string {
	return strings.TrimSuffix(s, ".0")
}
