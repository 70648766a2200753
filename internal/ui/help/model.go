package help

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/lostfound/internal/keys"
	"github.com/nhle/lostfound/internal/theme"
)

// Model is the help overlay listing global and wizard bindings.
type Model struct {
	global *keys.KeyMap
	wizard *keys.WizardKeyMap
	help   help.Model
	width  int
	height int
}

// New creates a new help view model.
func New(global *keys.KeyMap, wizard *keys.WizardKeyMap, width, height int) Model {
	h := help.New()
	h.ShowAll = true
	m := Model{global: global, wizard: wizard, help: h}
	m.SetSize(width, height)
	return m
}

// ShortView renders the compact one-line hints for the status bar.
func (m Model) ShortView(wizard bool) string {
	h := m.help
	h.ShowAll = false
	if wizard {
		return h.View(m.wizard)
	}
	return h.View(m.global)
}

// View renders the help overlay.
func (m Model) View() string {
	heading := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)

	content := lipgloss.JoinVertical(lipgloss.Left,
		heading.MarginBottom(1).Render("Keyboard Shortcuts"),
		m.help.View(m.global),
		"",
		heading.Render("Match confirmation"),
		m.help.View(m.wizard),
	)

	return theme.PanelStyle.
		Width(max(m.width-4, 20)).
		Render(content)
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = max(width-8, 20)
}
