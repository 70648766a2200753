package preview

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/lostfound/internal/keys"
	"github.com/nhle/lostfound/internal/model"
	"github.com/nhle/lostfound/internal/theme"
)

// BackMsg signals the parent to close the preview.
type BackMsg struct{}

// Model shows the details shared by the other party of a match.
type Model struct {
	n        *model.Notification
	viewport viewport.Model
	keys     *keys.KeyMap
	width    int
	height   int
}

// New creates a preview for n.
func New(n model.Notification, keys *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	m := Model{
		n:        &n,
		viewport: vp,
		keys:     keys,
		width:    width,
		height:   height,
	}
	m.viewport.SetContent(m.renderContent())
	return m
}

// Init returns the initial command for the preview.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the preview.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, m.keys.Back) {
		return m, func() tea.Msg { return BackMsg{} }
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the preview.
func (m Model) View() string {
	return m.viewport.View()
}

// SetSize updates the preview dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
	m.viewport.SetContent(m.renderContent())
}

func (m Model) renderContent() string {
	n := m.n
	var sections []string

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(n.Title))
	if n.Message != "" {
		sections = append(sections, n.Message)
	}
	sections = append(sections, "")

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray).Width(16)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)
	row := func(label, value string) {
		if value == "" {
			return
		}
		sections = append(sections, metaStyle.Render(label+":")+valStyle.Render(value))
	}

	cp, isContact := n.Data.(model.ContactPayload)
	mp, hasMatch := n.Match()

	if hasMatch {
		score := theme.ScoreStyle(mp.Score).Render(fmt.Sprintf("%d%%", mp.Score))
		sections = append(sections, metaStyle.Render("Match score:")+score)
		sections = append(sections, "")
	}

	if isContact {
		header := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).MarginBottom(1)
		sections = append(sections, header.Render("Contact"))
		row("From", cp.FromUserName)
		row("Method", string(cp.ContactMethod))
		row("Details", cp.ContactDetails)
		row("Message", cp.Message)
		sections = append(sections, "")
	}

	if hasMatch {
		sep := lipgloss.NewStyle().Foreground(theme.ColorSubtle).
			Render(strings.Repeat("─", max(min(m.width-4, 80), 0)))

		sections = append(sections, sep, "")
		row("Item", mp.ItemName)
		row("Category", mp.ItemCategory)
		row("Date", mp.ItemDate)
		row("Location", mp.ItemLocation)
		row("Description", mp.ItemDescription)
		sections = append(sections, "")
		row("Matched item", mp.MatchName)
		row("Category", mp.MatchCategory)
		row("Date", mp.MatchDate)
		row("Location", mp.MatchLocation)
		row("Description", mp.MatchDescription)
		if mp.OwnerName != "" || mp.OwnerEmail != "" {
			sections = append(sections, "")
			row("Owner", mp.OwnerName)
			row("Owner email", mp.OwnerEmail)
		}
	}

	if !hasMatch && !isContact {
		sections = append(sections, theme.HelpStyle.Render("No details"))
	}

	return strings.Join(sections, "\n")
}
