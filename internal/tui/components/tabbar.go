package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/bdash/internal/tui/theme"
)

// Tab represents a single tab in the tab bar.
type Tab struct {
	Name   string
	Key    rune
	KeyPos int // position of the shortcut letter in the name (-1 if not in name)
}

// Tabs defines all available tabs.
var Tabs = []Tab{
	{Name: "Overview", Key: 'o', KeyPos: 0},
	{Name: "Lines", Key: 'l', KeyPos: 0},
	{Name: "Payments", Key: 'p', KeyPos: 0},
}

func renderTab(tab Tab, active bool) string {
	t := theme.Active

	if active {
		return lipgloss.NewStyle().
			Foreground(t.AccentBright).
			Background(t.SurfaceHover).
			Bold(true).
			Padding(0, 1).
			Render(tab.Name)
	}

	bg := lipgloss.NewStyle().Background(t.Surface)
	name := bg.Foreground(t.TextMuted)
	key := bg.Foreground(t.Accent).Bold(true)
	dim := bg.Foreground(t.TextDim)

	var b strings.Builder
	b.WriteString(bg.Render(" "))
	if tab.KeyPos >= 0 && tab.KeyPos < len(tab.Name) {
		b.WriteString(name.Render(tab.Name[:tab.KeyPos]))
		b.WriteString(dim.Render("["))
		b.WriteString(key.Render(string(tab.Name[tab.KeyPos])))
		b.WriteString(dim.Render("]"))
		b.WriteString(name.Render(tab.Name[tab.KeyPos+1:]))
	} else {
		b.WriteString(name.Render(tab.Name))
		b.WriteString(dim.Render("["))
		b.WriteString(key.Render(string(tab.Key)))
		b.WriteString(dim.Render("]"))
	}
	b.WriteString(bg.Render(" "))
	return b.String()
}

// TabVisualWidth is the rendered column width of tab. Mouse hit testing
// relies on it matching RenderTabBar exactly.
func TabVisualWidth(tab Tab, active bool) int {
	return lipgloss.Width(renderTab(tab, active))
}

// RenderTabBar renders the tab bar with the given active index, one column
// between tabs.
func RenderTabBar(activeIdx int, width int) string {
	t := theme.Active
	sep := lipgloss.NewStyle().Background(t.Surface).Render(" ")

	parts := make([]string, len(Tabs))
	for i, tab := range Tabs {
		parts[i] = renderTab(tab, i == activeIdx)
	}

	return lipgloss.NewStyle().
		Background(t.Surface).
		Width(width).
		Render(strings.Join(parts, sep))
}

// TabIdxByKey returns the tab index for a given key press, or -1.
func TabIdxByKey(key rune) int {
	for i, tab := range Tabs {
		if tab.Key == key {
			return i
		}
	}
	return -1
}
