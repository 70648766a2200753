package confirm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/lostfound/internal/api"
	"github.com/nhle/lostfound/internal/keys"
	"github.com/nhle/lostfound/internal/model"
	"github.com/nhle/lostfound/internal/theme"
	"github.com/nhle/lostfound/internal/workflow"
)

// ClosedMsg signals the parent to leave the wizard.
type ClosedMsg struct{}

// ConfirmedMsg is sent once the contact details were delivered.
type ConfirmedMsg struct {
	ItemID  string
	MatchID string
}

type loadedMsg struct {
	guard workflow.Guard
}

type submittedMsg struct {
	err error
}

const (
	focusMethod = iota
	focusDetails
	focusMessage
	focusCount
)

// Model drives a workflow.Session through its three steps.
type Model struct {
	session *workflow.Session
	keys    *keys.WizardKeyMap
	details textinput.Model
	message textinput.Model
	focus   int
	hint    string
	status  string

	// submitting is set when the submit command is issued, before the
	// session itself reaches SubmitSubmitting.
	submitting bool
	width   int
	height  int
}

// New creates a wizard view for session.
func New(session *workflow.Session, k *keys.WizardKeyMap, width, height int) Model {
	details := textinput.New()
	details.Placeholder = "email address, phone number, ..."
	details.Prompt = "Details: "
	details.CharLimit = 200

	message := textinput.New()
	message.Placeholder = "optional note"
	message.Prompt = "Message: "
	message.CharLimit = 500

	m := Model{
		session: session,
		keys:    k,
		details: details,
		message: message,
		focus:   focusDetails,
	}
	m.SetSize(width, height)
	return m
}

// Init starts loading the two items.
func (m Model) Init() tea.Cmd {
	s := m.session
	return func() tea.Msg {
		return loadedMsg{guard: s.Load(context.Background())}
	}
}

// Teardown cancels the session's in-flight calls.
func (m Model) Teardown() {
	m.session.Teardown()
}

// Update handles messages for the wizard.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		return m, nil

	case submittedMsg:
		m.submitting = false
		switch {
		case msg.err == nil:
			m.status = ""
			snap := m.session.Snapshot()
			return m, func() tea.Msg { return ConfirmedMsg{ItemID: snap.ItemID, MatchID: snap.MatchID} }
		case api.IsCanceled(msg.err),
			errors.Is(msg.err, workflow.ErrAlreadySubmitted),
			errors.Is(msg.err, workflow.ErrSubmitInFlight):
			m.status = ""
		default:
			m.status = workflow.SubmitFailedMessage
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Close) {
		return m, m.close()
	}

	snap := m.session.Snapshot()
	if snap.Guard != workflow.GuardReady {
		if snap.Guard != workflow.GuardPending && (key.Matches(msg, m.keys.Next) || key.Matches(msg, m.keys.Prev)) {
			return m, m.close()
		}
		return m, nil
	}

	switch snap.Step {
	case workflow.StepReview:
		switch {
		case key.Matches(msg, m.keys.Next):
			m.session.Next()
			return m, m.focusCmd()
		case key.Matches(msg, m.keys.Prev):
			return m, m.close()
		}

	case workflow.StepContact:
		return m.handleContactKey(msg)

	case workflow.StepConfirm:
		switch {
		case m.submitting:
			return m, nil
		case key.Matches(msg, m.keys.Submit):
			if !m.session.CanSubmit() {
				return m, nil
			}
			m.submitting = true
			m.status = ""
			s := m.session
			return m, func() tea.Msg {
				return submittedMsg{err: s.Submit(context.Background())}
			}
		case key.Matches(msg, m.keys.Prev):
			m.session.Back()
			return m, m.focusCmd()
		}

	case workflow.StepDone:
		if key.Matches(msg, m.keys.Next) || key.Matches(msg, m.keys.Prev) {
			return m, m.close()
		}
	}

	return m, nil
}

func (m Model) handleContactKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Next):
		if !m.session.Next() {
			m.hint = "Enter your contact details to continue."
			return m, nil
		}
		m.hint = ""
		m.details.Blur()
		m.message.Blur()
		return m, nil

	case key.Matches(msg, m.keys.Prev):
		m.session.Back()
		m.details.Blur()
		m.message.Blur()
		return m, nil

	case key.Matches(msg, m.keys.Focus):
		m.focus = (m.focus + 1) % focusCount
		return m, m.focusCmd()

	case m.focus == focusMethod && key.Matches(msg, m.keys.MethodNext):
		m.session.SetContactMethod(cycleMethod(m.session.Snapshot().ContactMethod, 1))
		return m, nil

	case m.focus == focusMethod && key.Matches(msg, m.keys.MethodPrev):
		m.session.SetContactMethod(cycleMethod(m.session.Snapshot().ContactMethod, -1))
		return m, nil
	}

	var cmd tea.Cmd
	switch m.focus {
	case focusDetails:
		m.details, cmd = m.details.Update(msg)
		m.session.SetContactDetails(m.details.Value())
		if strings.TrimSpace(m.details.Value()) != "" {
			m.hint = ""
		}
	case focusMessage:
		m.message, cmd = m.message.Update(msg)
		m.session.SetMessage(m.message.Value())
	}
	return m, cmd
}

// focusCmd focuses the active input when the contact step is shown.
func (m *Model) focusCmd() tea.Cmd {
	m.details.Blur()
	m.message.Blur()
	if m.session.Snapshot().Step != workflow.StepContact {
		return nil
	}
	switch m.focus {
	case focusDetails:
		return m.details.Focus()
	case focusMessage:
		return m.message.Focus()
	}
	return nil
}

func (m Model) close() tea.Cmd {
	m.session.Teardown()
	return func() tea.Msg { return ClosedMsg{} }
}

func cycleMethod(current model.ContactMethod, delta int) model.ContactMethod {
	methods := model.ContactMethods
	idx := 0
	for i, cm := range methods {
		if cm == current {
			idx = i
		}
	}
	idx = (idx + delta + len(methods)) % len(methods)
	return methods[idx]
}

// SetSize updates the wizard dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.details.Width = max(width-20, 20)
	m.message.Width = max(width-20, 20)
}

// View renders the wizard.
func (m Model) View() string {
	snap := m.session.Snapshot()

	var body string
	switch snap.Guard {
	case workflow.GuardPending:
		body = theme.HelpStyle.Render("Loading match details...")
	case workflow.GuardReady:
		body = m.stepView(snap)
	case workflow.GuardAlreadyResolved:
		body = theme.SuccessStyle.Render(snap.Guard.Message())
	default:
		body = theme.ErrorStyle.Render(snap.Guard.Message())
	}

	title := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).MarginBottom(1).
		Render("Confirm match")

	width := min(max(m.width-4, 40), 100)
	return theme.PanelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, body))
}

func (m Model) stepView(snap workflow.Snapshot) string {
	var sections []string
	sections = append(sections, progress(snap.Step), "")

	switch snap.Step {
	case workflow.StepReview:
		sections = append(sections,
			itemBlock("Your item", snap.Item),
			"",
			itemBlock("Possible match", snap.Match),
			"",
			"Match score: "+theme.ScoreStyle(snap.Score).Render(fmt.Sprintf("%d%%", snap.Score)),
		)

	case workflow.StepContact:
		sections = append(sections, "How should the other person reach you?", "", m.methodLine(snap.ContactMethod))
		sections = append(sections, m.details.View(), m.message.View())
		if m.hint != "" {
			sections = append(sections, "", theme.HelpStyle.Render(m.hint))
		}

	case workflow.StepConfirm:
		sections = append(sections,
			"The owner of the other item will receive:",
			"",
			fmt.Sprintf("  Method:  %s", snap.ContactMethod),
			fmt.Sprintf("  Details: %s", snap.ContactDetails),
		)
		if snap.Message != "" {
			sections = append(sections, fmt.Sprintf("  Message: %s", snap.Message))
		}
		if m.submitting || snap.State == workflow.SubmitSubmitting {
			sections = append(sections, "", theme.HelpStyle.Render("Sending..."))
		}

	case workflow.StepDone:
		sections = append(sections,
			theme.SuccessStyle.Render("Your contact details were sent."),
			theme.HelpStyle.Render("The other person has been notified."),
		)
	}

	if m.status != "" {
		sections = append(sections, "", theme.ErrorStyle.Render(m.status))
	}
	return strings.Join(sections, "\n")
}

func (m Model) methodLine(current model.ContactMethod) string {
	parts := make([]string, 0, len(model.ContactMethods))
	for _, cm := range model.ContactMethods {
		label := string(cm)
		if cm == current {
			label = theme.StepActiveStyle.Render("[" + label + "]")
		} else {
			label = theme.StepStyle.Render(" " + label + " ")
		}
		parts = append(parts, label)
	}
	prefix := "Method:  "
	if m.focus == focusMethod {
		prefix = "Method:▸ "
	}
	return prefix + strings.Join(parts, " ")
}

func progress(current workflow.Step) string {
	steps := []workflow.Step{workflow.StepReview, workflow.StepContact, workflow.StepConfirm}
	parts := make([]string, 0, len(steps))
	for _, s := range steps {
		label := fmt.Sprintf("%d. %s", int(s), s)
		if s == current {
			parts = append(parts, theme.StepActiveStyle.Render(label))
		} else {
			parts = append(parts, theme.StepStyle.Render(label))
		}
	}
	return strings.Join(parts, "  ›  ")
}

func itemBlock(heading string, it *model.Item) string {
	if it == nil {
		return ""
	}
	lines := []string{
		lipgloss.NewStyle().Bold(true).Render(heading),
		fmt.Sprintf("  %s", it.Name),
	}
	if it.Category != "" {
		lines = append(lines, "  Category: "+it.Category)
	}
	if it.Date != "" {
		lines = append(lines, "  Date:     "+it.Date)
	}
	if loc := it.Location.String(); loc != "" {
		lines = append(lines, "  Location: "+loc)
	} else {
		lines = append(lines, "  Location: Unknown location")
	}
	if it.Description != "" {
		lines = append(lines, "  "+theme.DimmedStyle.Render(it.Description))
	}
	return strings.Join(lines, "\n")
}
