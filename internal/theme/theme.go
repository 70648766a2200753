package theme

import "github.com/charmbracelet/lipgloss"

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorOrange  = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

var (
	// HeaderStyle is used for the application title bar.
	HeaderStyle lipgloss.Style

	// StatusBarStyle is used for the bottom status bar.
	StatusBarStyle lipgloss.Style

	// PanelStyle wraps dropdowns, the wizard and the preview.
	PanelStyle lipgloss.Style

	ListItemStyle     lipgloss.Style
	SelectedItemStyle lipgloss.Style
	HelpStyle         lipgloss.Style
	DimmedStyle       lipgloss.Style
	UnreadStyle       lipgloss.Style
	ErrorStyle        lipgloss.Style
	SuccessStyle      lipgloss.Style
	BellStyle         lipgloss.Style
	BellRingingStyle  lipgloss.Style
	BadgeStyle        lipgloss.Style
	HighPriorityStyle lipgloss.Style
	StepActiveStyle   lipgloss.Style
	StepStyle         lipgloss.Style
)

func init() {
	Apply("default")
}

// Apply switches the style set. "mono" drops all colors; anything else
// selects the default palette.
func Apply(name string) {
	if name == "mono" {
		plain := lipgloss.NoColor{}
		build(plain, plain, plain, plain, plain, plain, plain)
		return
	}
	build(ColorBlue, ColorGreen, ColorYellow, ColorRed, ColorOrange, ColorGray, ColorSubtle)
}

func build(blue, green, yellow, red, orange, gray, subtle lipgloss.TerminalColor) {
	HeaderStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorWhite).
		Background(blue).
		Padding(0, 1)

	StatusBarStyle = lipgloss.NewStyle().
		Foreground(ColorWhite).
		Background(subtle).
		Padding(0, 1)

	PanelStyle = lipgloss.NewStyle().
		Padding(1, 2).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder)

	ListItemStyle = lipgloss.NewStyle().
		PaddingLeft(2)

	SelectedItemStyle = lipgloss.NewStyle().
		PaddingLeft(1).
		Bold(true).
		Foreground(blue).
		Border(lipgloss.NormalBorder(), false, false, false, true).
		BorderForeground(blue)

	HelpStyle = lipgloss.NewStyle().
		Foreground(gray).
		Italic(true)

	DimmedStyle = lipgloss.NewStyle().Foreground(gray)
	UnreadStyle = lipgloss.NewStyle().Bold(true)
	ErrorStyle = lipgloss.NewStyle().Bold(true).Foreground(red)
	SuccessStyle = lipgloss.NewStyle().Bold(true).Foreground(green)

	BellStyle = lipgloss.NewStyle().Padding(0, 1)
	BellRingingStyle = BellStyle.Bold(true).Foreground(yellow)
	BadgeStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorWhite).
		Background(red).
		Padding(0, 1)

	HighPriorityStyle = lipgloss.NewStyle().Bold(true).Foreground(orange)
	StepActiveStyle = lipgloss.NewStyle().Bold(true).Foreground(blue).Underline(true)
	StepStyle = lipgloss.NewStyle().Foreground(gray)
}

// ScoreStyle returns a color-coded style for a match score percentage.
func ScoreStyle(score int) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch {
	case score >= 90:
		return base.Foreground(ColorRed)
	case score >= 80:
		return base.Foreground(ColorOrange)
	case score >= 60:
		return base.Foreground(ColorYellow)
	default:
		return base.Foreground(ColorGray)
	}
}

// TypeLabelStyle returns a color-coded style for a notification type label.
func TypeLabelStyle(t string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	switch t {
	case "match":
		return base.Foreground(ColorMagenta)
	case "match_contact":
		return base.Foreground(ColorGreen)
	default:
		return base.Foreground(ColorGray)
	}
}
