package settings

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-playground/validator/v10"

	"github.com/nhle/lostfound/internal/keys"
	"github.com/nhle/lostfound/internal/model"
	"github.com/nhle/lostfound/internal/theme"
)

// Mode represents the current state of the settings view.
type Mode int

const (
	ModeSummary Mode = iota // Current settings
	ModeEdit                // Settings form
	ModeSaving              // Validating and writing the file
	ModeResult              // Outcome of a save
)

// DoneMsg signals the settings view should close.
type DoneMsg struct{}

// SavedMsg is sent after the configuration file was written.
type SavedMsg struct {
	Config *model.AppConfig
}

type savedResultMsg struct {
	cfg *model.AppConfig
	err error
}

// Deps are the collaborators of the settings view.
type Deps struct {
	Path   string
	Config *model.AppConfig

	// Save defaults to model.SaveConfig.
	Save func(path string, cfg *model.AppConfig) error
}

type formFields struct {
	baseURL string
	email   string
	theme   string
	pollSec string
}

// Model is the Bubble Tea model for viewing and editing the configuration.
type Model struct {
	deps Deps
	mode Mode
	form *huh.Form

	// Bound by huh; shared across model copies.
	fields *formFields

	spinner   spinner.Model
	resultOK  string
	resultErr error

	keys          *keys.KeyMap
	width, height int
}

var emailValidator = validator.New()

// New creates a settings view showing the current configuration.
func New(deps Deps, k *keys.KeyMap, width, height int) Model {
	if deps.Save == nil {
		deps.Save = model.SaveConfig
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		deps:    deps,
		mode:    ModeSummary,
		fields:  &formFields{},
		keys:    k,
		spinner: sp,
		width:   width,
		height:  height,
	}
}

// Mode returns the active mode.
func (m Model) Mode() Mode {
	return m.mode
}

// Init returns nil; the summary needs no loading.
func (m Model) Init() tea.Cmd {
	return nil
}

// StartEdit opens the settings form prefilled with the current values.
func (m *Model) StartEdit() tea.Cmd {
	cfg := m.deps.Config
	m.fields.baseURL = cfg.API.BaseURL
	m.fields.email = cfg.User.Email
	m.fields.theme = cfg.Display.Theme
	if m.fields.theme == "" {
		m.fields.theme = "default"
	}
	m.fields.pollSec = strconv.Itoa(cfg.Notifications.PollIntervalSec)
	m.form = m.buildEditForm()
	m.mode = ModeEdit
	return m.form.Init()
}

// Update handles messages and dispatches based on current mode.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case savedResultMsg:
		m.mode = ModeResult
		m.resultErr = msg.err
		if msg.err != nil {
			return m, nil
		}
		m.deps.Config = msg.cfg
		m.resultOK = "Settings saved. Connection changes apply after a restart."
		cfg := msg.cfg
		return m, func() tea.Msg { return SavedMsg{Config: cfg} }

	case spinner.TickMsg:
		if m.mode == ModeSaving {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	return m.updateForm(msg)
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch m.mode {
	case ModeSummary:
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return DoneMsg{} }
		case msg.String() == "e":
			return m, m.StartEdit()
		}
		return m, nil

	case ModeResult:
		if msg.String() == "enter" || msg.String() == "esc" {
			m.mode = ModeSummary
			m.resultOK, m.resultErr = "", nil
		}
		return m, nil

	case ModeSaving:
		return m, nil
	}

	return m.updateForm(msg)
}

// updateForm forwards msg to the active huh form and acts on completion.
func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil || m.mode != ModeEdit {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateAborted:
		m.mode = ModeSummary
		return m, nil
	case huh.StateCompleted:
		m.mode = ModeSaving
		return m, tea.Batch(m.spinner.Tick, m.save())
	}
	return m, cmd
}

func (m Model) buildEditForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("API base URL").
				Description("Lost-and-found backend (e.g., http://localhost:3000)").
				Value(&m.fields.baseURL).
				Validate(validateURL),
			huh.NewInput().
				Title("Email").
				Description("Used when the access token carries no email").
				Value(&m.fields.email).
				Validate(validateEmail),
			huh.NewInput().
				Title("Match check interval (seconds)").
				Description("0 uses the two-minute default").
				Value(&m.fields.pollSec).
				Validate(validateSeconds),
			huh.NewSelect[string]().
				Title("Theme").
				Options(
					huh.NewOption("Default colors", "default"),
					huh.NewOption("Monochrome", "mono"),
				).
				Value(&m.fields.theme),
		),
	).WithWidth(m.formWidth()).WithShowHelp(false)
}

// save validates and writes the edited configuration.
func (m Model) save() tea.Cmd {
	next := *m.deps.Config
	next.API.BaseURL = strings.TrimSpace(m.fields.baseURL)
	next.User.Email = strings.TrimSpace(m.fields.email)
	next.Display.Theme = m.fields.theme
	next.Notifications.PollIntervalSec, _ = strconv.Atoi(strings.TrimSpace(m.fields.pollSec))

	path, save := m.deps.Path, m.deps.Save
	return func() tea.Msg {
		if err := next.Validate(); err != nil {
			return savedResultMsg{err: err}
		}
		if err := save(path, &next); err != nil {
			return savedResultMsg{err: err}
		}
		return savedResultMsg{cfg: &next}
	}
}

// View renders the view for the current mode.
func (m Model) View() string {
	style := lipgloss.NewStyle().Padding(1, 2).Width(m.width)

	switch m.mode {
	case ModeEdit:
		if m.form == nil {
			return ""
		}
		return style.Render(m.form.View())
	case ModeSaving:
		return style.Render(m.spinner.View() + " Saving...")
	case ModeResult:
		return style.Render(m.viewResult())
	default:
		return style.Render(m.viewSummary())
	}
}

func (m Model) viewSummary() string {
	cfg := m.deps.Config
	var b strings.Builder

	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).Render("Settings"))
	b.WriteString("\n\n")

	email := cfg.User.Email
	if email == "" {
		email = "(from access token)"
	}
	rows := [][2]string{
		{"API", cfg.API.BaseURL},
		{"Email", email},
		{"Match check", fmt.Sprintf("every %s", cfg.Notifications.PollInterval())},
		{"Critical scores", fmt.Sprint(cfg.Notifications.CriticalScores)},
		{"Theme", cfg.Display.Theme},
		{"State", cfg.Storage.Path},
	}
	label := lipgloss.NewStyle().Foreground(theme.ColorGray).Width(17)
	for _, r := range rows {
		b.WriteString(label.Render(r[0]) + r[1] + "\n")
	}

	b.WriteString("\n")
	b.WriteString(theme.HelpStyle.Render("e edit | esc back"))
	return b.String()
}

func (m Model) viewResult() string {
	if m.resultErr != nil {
		return theme.ErrorStyle.Bold(true).Render("Failed") + "\n\n" +
			m.resultErr.Error() + "\n\n" +
			theme.HelpStyle.Render("enter/esc back")
	}
	return theme.SuccessStyle.Bold(true).Render(m.resultOK) + "\n\n" +
		theme.HelpStyle.Render("enter/esc back")
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 100)
}

func validateURL(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("URL is required")
	}
	parsed, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return errors.New("URL must include scheme and host (e.g., https://example.com)")
	}
	return nil
}

func validateEmail(s string) error {
	if err := emailValidator.Var(strings.TrimSpace(s), "omitempty,email"); err != nil {
		return errors.New("not a valid email address")
	}
	return nil
}

func validateSeconds(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return errors.New("enter a whole number of seconds")
	}
	return nil
}
