package ui

import "github.com/charmbracelet/lipgloss"

// Theme holds the styles used to render a duplicate report.
type Theme struct {
	Name     string
	Header   lipgloss.Style // report heading
	Rule     lipgloss.Style // separators between groups
	Group    lipgloss.Style // group title line
	Score    lipgloss.Style
	Track    lipgloss.Style
	Keeper   lipgloss.Style // the track that should be kept
	Dim      lipgloss.Style
	Resolved lipgloss.Style
	Review   lipgloss.Style // manual_review recommendations
	Action   lipgloss.Style // automatic recommendations
}

// palette is the handful of colors a theme is built from.
type palette struct {
	primary   lipgloss.Color
	secondary lipgloss.Color
	text      lipgloss.Color
	dim       lipgloss.Color
	good      lipgloss.Color
	warn      lipgloss.Color
	keeper    lipgloss.Color
}

func (p palette) theme(name string) Theme {
	style := lipgloss.NewStyle
	return Theme{
		Name:     name,
		Header:   style().Foreground(p.primary).Bold(true),
		Rule:     style().Foreground(p.dim),
		Group:    style().Foreground(p.secondary).Bold(true),
		Score:    style().Foreground(p.primary),
		Track:    style().Foreground(p.text),
		Keeper:   style().Foreground(p.keeper).Bold(true),
		Dim:      style().Foreground(p.dim),
		Resolved: style().Foreground(p.good).Bold(true),
		Review:   style().Foreground(p.warn).Bold(true),
		Action:   style().Foreground(p.good),
	}
}

var themeRegistry = map[string]func(bool) Theme{
	"rainbow": Rainbow,
	"mono":    Monochrome,
	"green":   GreenTerminal,
	"nocolor": NoColor,
}

// ThemeNames returns the list of available theme names.
func ThemeNames() []string {
	return []string{"rainbow", "mono", "green", "nocolor"}
}

// GetTheme returns a theme by name. Returns Rainbow if name not found.
func GetTheme(name string, noColor bool) Theme {
	// NO_COLOR overrides theme selection
	if noColor {
		return NoColor(noColor)
	}
	if fn, ok := themeRegistry[name]; ok {
		return fn(noColor)
	}
	return Rainbow(noColor)
}

// ValidTheme returns true if the theme name is valid.
func ValidTheme(name string) bool {
	_, ok := themeRegistry[name]
	return ok
}

// Rainbow is the default colorful theme.
func Rainbow(noColor bool) Theme {
	if noColor {
		return NoColor(noColor)
	}
	return palette{
		primary:   "#8EEBFF",
		secondary: "#FF6FF7",
		text:      "#E6E6FA",
		dim:       "#6C6F93",
		good:      "#5CFF5C",
		warn:      "#FFD166",
		keeper:    "#FFA7C4",
	}.theme("rainbow")
}

// Monochrome is a grayscale theme.
func Monochrome(noColor bool) Theme {
	if noColor {
		return NoColor(noColor)
	}
	t := palette{
		primary:   "#FFFFFF",
		secondary: "#FFFFFF",
		text:      "#CCCCCC",
		dim:       "#666666",
		good:      "#CCCCCC",
		warn:      "#AAAAAA",
		keeper:    "#FFFFFF",
	}.theme("mono")
	t.Keeper = t.Keeper.Underline(true)
	return t
}

// GreenTerminal is a classic green-on-black terminal theme.
func GreenTerminal(noColor bool) Theme {
	if noColor {
		return NoColor(noColor)
	}
	t := palette{
		primary:   "#00FF00",
		secondary: "#00FF00",
		text:      "#00CC00",
		dim:       "#005500",
		good:      "#00FF00",
		warn:      "#00CC00",
		keeper:    "#00FF00",
	}.theme("green")
	t.Review = t.Review.Reverse(true)
	t.Keeper = t.Keeper.Underline(true)
	return t
}

// NoColor is a high-contrast theme for NO_COLOR environments.
// Uses only bold, underline, and reverse instead of colors.
func NoColor(_ bool) Theme {
	reset := lipgloss.NewStyle()
	return Theme{
		Name:     "nocolor",
		Header:   reset.Bold(true),
		Rule:     reset,
		Group:    reset.Bold(true),
		Score:    reset,
		Track:    reset,
		Keeper:   reset.Bold(true).Underline(true),
		Dim:      reset,
		Resolved: reset.Bold(true),
		Review:   reset.Reverse(true),
		Action:   reset.Bold(true),
	}
}
