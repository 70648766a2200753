package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/lostfound/internal/theme"
)

// Layout splits the terminal into a title bar, a body and a status bar.
type Layout struct {
	Width  int
	Height int
}

// NewLayout creates a Layout with the given terminal dimensions.
func NewLayout(width, height int) Layout {
	return Layout{Width: width, Height: height}
}

// BodyHeight returns the rows left between the title and status bars.
func (l Layout) BodyHeight() int {
	return max(l.Height-2, 0)
}

// Header renders the title on the left and right-aligned widgets such as
// the notification bell.
func (l Layout) Header(title, right string) string {
	left := theme.HeaderStyle.Render(title)
	gap := max(l.Width-lipgloss.Width(left)-lipgloss.Width(right), 0)

	fill := lipgloss.NewStyle().
		Width(gap).
		Background(theme.HeaderStyle.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(lipgloss.Top, left, fill, right)
}

// StatusBar renders a full-width bar with hints, and an optional message
// on the right.
func (l Layout) StatusBar(hints, message string) string {
	left := theme.StatusBarStyle.Render(hints)
	right := ""
	if message != "" {
		right = theme.StatusBarStyle.Render(message)
	}
	gap := max(l.Width-lipgloss.Width(left)-lipgloss.Width(right), 0)

	fill := lipgloss.NewStyle().
		Width(gap).
		Background(theme.StatusBarStyle.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(lipgloss.Top, left, fill, right)
}

// Body places content in the body area. Dropdowns are anchored top-right,
// below the bell; everything else is centered.
func (l Layout) Body(content string, dropdown bool) string {
	if dropdown {
		return lipgloss.Place(l.Width, l.BodyHeight(), lipgloss.Right, lipgloss.Top, content)
	}
	return lipgloss.Place(l.Width, l.BodyHeight(), lipgloss.Center, lipgloss.Center, content)
}

// Frame stacks header, body and status bar.
func (l Layout) Frame(header, body, status string) string {
	return lipgloss.JoinVertical(lipgloss.Left, header, body, status)
}
