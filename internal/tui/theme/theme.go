// Package theme defines color themes for the bdash dashboard.
package theme

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/theirongolddev/bdash/internal/model"
)

// Theme maps the dashboard's color roles to concrete colors.
type Theme struct {
	Name string
	// Dark reports whether the background is dark; the terminal theme
	// leaves that to the user's palette.
	Dark bool

	// Layers, back to front.
	Background    lipgloss.Color
	Surface       lipgloss.Color // cards and bars
	SurfaceHover  lipgloss.Color // active tab
	SurfaceBright lipgloss.Color // selected row
	Border        lipgloss.Color
	BorderAccent  lipgloss.Color

	TextDim     lipgloss.Color // hints
	TextMuted   lipgloss.Color // labels
	TextPrimary lipgloss.Color

	Accent       lipgloss.Color
	AccentBright lipgloss.Color

	// Chart and utilization colors.
	Green  lipgloss.Color
	Yellow lipgloss.Color
	Orange lipgloss.Color
	Red    lipgloss.Color
	Blue   lipgloss.Color
	Cyan   lipgloss.Color

	// Payment request status colors.
	Approved lipgloss.Color
	Pending  lipgloss.Color
	Rejected lipgloss.Color
}

// FlexokiDark is the default: warm ink on near-black paper.
var FlexokiDark = Theme{
	Name:          "flexoki-dark",
	Dark:          true,
	Background:    lipgloss.Color("#100F0F"),
	Surface:       lipgloss.Color("#1C1B1A"),
	SurfaceHover:  lipgloss.Color("#282726"),
	SurfaceBright: lipgloss.Color("#343331"),
	Border:        lipgloss.Color("#403E3C"),
	BorderAccent:  lipgloss.Color("#3AA99F"),
	TextDim:       lipgloss.Color("#575653"),
	TextMuted:     lipgloss.Color("#878580"),
	TextPrimary:   lipgloss.Color("#FFFCF0"),
	Accent:        lipgloss.Color("#3AA99F"),
	AccentBright:  lipgloss.Color("#5BC8BE"),
	Green:         lipgloss.Color("#879A39"),
	Yellow:        lipgloss.Color("#D0A215"),
	Orange:        lipgloss.Color("#DA702C"),
	Red:           lipgloss.Color("#D14D41"),
	Blue:          lipgloss.Color("#4385BE"),
	Cyan:          lipgloss.Color("#24837B"),
	Approved:      lipgloss.Color("#879A39"),
	Pending:       lipgloss.Color("#D0A215"),
	Rejected:      lipgloss.Color("#D14D41"),
}

// FlexokiLight is the paper-colored counterpart for bright rooms and
// projector screens.
var FlexokiLight = Theme{
	Name:          "flexoki-light",
	Background:    lipgloss.Color("#FFFCF0"),
	Surface:       lipgloss.Color("#F2F0E5"),
	SurfaceHover:  lipgloss.Color("#E6E4D9"),
	SurfaceBright: lipgloss.Color("#DAD8CE"),
	Border:        lipgloss.Color("#CECDC3"),
	BorderAccent:  lipgloss.Color("#24837B"),
	TextDim:       lipgloss.Color("#B7B5AC"),
	TextMuted:     lipgloss.Color("#6F6E69"),
	TextPrimary:   lipgloss.Color("#100F0F"),
	Accent:        lipgloss.Color("#24837B"),
	AccentBright:  lipgloss.Color("#1C6C66"),
	Green:         lipgloss.Color("#66800B"),
	Yellow:        lipgloss.Color("#AD8301"),
	Orange:        lipgloss.Color("#BC5215"),
	Red:           lipgloss.Color("#AF3029"),
	Blue:          lipgloss.Color("#205EA6"),
	Cyan:          lipgloss.Color("#24837B"),
	Approved:      lipgloss.Color("#66800B"),
	Pending:       lipgloss.Color("#AD8301"),
	Rejected:      lipgloss.Color("#AF3029"),
}

// Terminal sticks to the 16 ANSI colors so it follows the user's palette.
var Terminal = Theme{
	Name:          "terminal",
	Background:    lipgloss.Color("0"),
	Surface:       lipgloss.Color("0"),
	SurfaceHover:  lipgloss.Color("8"),
	SurfaceBright: lipgloss.Color("8"),
	Border:        lipgloss.Color("8"),
	BorderAccent:  lipgloss.Color("6"),
	TextDim:       lipgloss.Color("8"),
	TextMuted:     lipgloss.Color("7"),
	TextPrimary:   lipgloss.Color("15"),
	Accent:        lipgloss.Color("6"),
	AccentBright:  lipgloss.Color("14"),
	Green:         lipgloss.Color("2"),
	Yellow:        lipgloss.Color("3"),
	Orange:        lipgloss.Color("11"),
	Red:           lipgloss.Color("1"),
	Blue:          lipgloss.Color("4"),
	Cyan:          lipgloss.Color("6"),
	Approved:      lipgloss.Color("2"),
	Pending:       lipgloss.Color("3"),
	Rejected:      lipgloss.Color("1"),
}

// All lists the themes in the order the setup wizard offers them.
var All = []Theme{FlexokiDark, FlexokiLight, Terminal}

// Active is the theme every renderer reads.
var Active = FlexokiDark

// ByName looks up a theme, falling back to FlexokiDark for unknown names.
func ByName(name string) Theme {
	for _, t := range All {
		if t.Name == name {
			return t
		}
	}
	return FlexokiDark
}

// SetActive switches Active without touching the color profile.
func SetActive(name string) {
	Active = ByName(name)
}

// Init activates the named theme and the matching color profile.
func Init(name string) {
	SetActive(name)
	if Active.Name == Terminal.Name {
		lipgloss.SetColorProfile(termenv.ANSI)
		return
	}
	lipgloss.SetColorProfile(termenv.TrueColor)
	lipgloss.SetHasDarkBackground(Active.Dark)
}

// Names lists the theme names in display order.
func Names() []string {
	names := make([]string, len(All))
	for i, t := range All {
		names[i] = t.Name
	}
	return names
}

// StatusColor returns the color for a payment request status.
func (t Theme) StatusColor(status string) lipgloss.Color {
	switch model.Status(status) {
	case model.StatusApproved:
		return t.Approved
	case model.StatusRejected:
		return t.Rejected
	default:
		return t.Pending
	}
}

// UtilizationColor grades budget consumption: green below half, then
// yellow and orange, red from 90%.
func (t Theme) UtilizationColor(pct float64) lipgloss.Color {
	switch {
	case pct >= 0.9:
		return t.Red
	case pct >= 0.7:
		return t.Orange
	case pct >= 0.5:
		return t.Yellow
	default:
		return t.Green
	}
}
