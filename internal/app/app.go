package app

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/nhle/lostfound/internal/keys"
	"github.com/nhle/lostfound/internal/model"
	"github.com/nhle/lostfound/internal/notify"
	appsync "github.com/nhle/lostfound/internal/sync"
	"github.com/nhle/lostfound/internal/theme"
	"github.com/nhle/lostfound/internal/ui"
	"github.com/nhle/lostfound/internal/ui/confirm"
	"github.com/nhle/lostfound/internal/ui/feed"
	helpview "github.com/nhle/lostfound/internal/ui/help"
	"github.com/nhle/lostfound/internal/ui/preview"
	"github.com/nhle/lostfound/internal/ui/settings"
	"github.com/nhle/lostfound/internal/workflow"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewHome ViewState = iota
	ViewWizard
	ViewPreview
	ViewHelp
	ViewSettings
)

// sessionExpiredMsg is sent when a credential refresh failed.
type sessionExpiredMsg struct{}

// ackResultMsg reports a read acknowledgement sent to the backend.
type ackResultMsg struct {
	id  string
	err error
}

// Deps are the services the root model wires into its views.
type Deps struct {
	Notifications *notify.Service
	Items         ItemAPI
	Identity      workflow.IdentitySource
	Poller        *appsync.Poller
	Config        *model.AppConfig
	ConfigPath    string
	Logger        zerolog.Logger

	// SessionExpired receives a value whenever stored credentials were
	// cleared after a failed refresh.
	SessionExpired <-chan struct{}
}

// Model is the root Bubble Tea model that manages view routing and layout.
type Model struct {
	deps Deps
	log  zerolog.Logger

	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap
	wizardKeys   *keys.WizardKeyMap

	feed     feed.Model
	wizard   *confirm.Model
	preview  preview.Model
	helpView helpview.Model
	settings settings.Model

	changes     chan struct{}
	unsubscribe func()

	ready       bool
	status      string
	authMessage string
}

// New creates the root model.
func New(deps Deps) Model {
	k := keys.DefaultKeyMap()
	wk := keys.DefaultWizardKeyMap()

	notifications := deps.Notifications.Store()
	changes := make(chan struct{}, 1)
	unsubscribe := notifications.OnChange(func(notify.Snapshot) {
		select {
		case changes <- struct{}{}:
		default:
			// A change is already pending; the feed reads the latest state.
		}
	})

	return Model{
		deps:        deps,
		log:         deps.Logger.With().Str("component", "app").Logger(),
		currentView: ViewHome,
		keys:        k,
		wizardKeys:  wk,
		feed: feed.New(deps.Notifications, k, feed.Options{
			BellAnimation: deps.Config.Notifications.BellAnimation(),
		}, 80, 24),
		helpView:    helpview.New(k, wk, 80, 24),
		changes:     changes,
		unsubscribe: unsubscribe,
	}
}

// Init starts the match poller and the listeners for store changes and
// session expiry.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.deps.Poller.Start(),
		m.waitForChange(),
		m.waitForExpiry(),
	)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := msg.Width, m.layout.BodyHeight()
		m.feed.SetSize(w, h)
		m.helpView.SetSize(w, h)
		m.preview.SetSize(w, h)
		m.settings.SetSize(w, h)
		if m.wizard != nil {
			m.wizard.SetSize(w, h)
		}
		return m, nil

	case feed.ChangedMsg:
		var cmd tea.Cmd
		m.feed, cmd = m.feed.Update(msg)
		return m, tea.Batch(cmd, m.waitForChange())

	case feed.OpenMatchMsg:
		return m, m.openWizard(msg.ItemID, msg.MatchID)

	case feed.PreviewMsg:
		w, h := m.bodySize()
		m.preview = preview.New(msg.Notification, m.keys, w, h)
		m.switchTo(ViewPreview)
		return m, nil

	case feed.ReadMsg:
		return m, m.acknowledge(msg.IDs)

	case ackResultMsg:
		if msg.err != nil {
			m.log.Warn().Err(msg.err).Str("id", msg.id).Msg("read acknowledgement failed")
			m.feed.SetStatus("Read state could not be synced with the server.")
		}
		return m, nil

	case preview.BackMsg:
		m.currentView = ViewHome
		return m, nil

	case confirm.ConfirmedMsg:
		m.status = "Contact details sent."
		return m, nil

	case confirm.ClosedMsg:
		m.closeWizard()
		return m, nil

	case settings.DoneMsg:
		m.currentView = ViewHome
		return m, nil

	case settings.SavedMsg:
		m.deps.Config = msg.Config
		theme.Apply(msg.Config.Display.Theme)
		return m, nil

	case appsync.SyncResultMsg:
		switch {
		case msg.AuthError != nil:
			m.authMessage = msg.AuthError.Message
		case msg.Error != nil:
			m.status = "Match check failed."
		default:
			m.authMessage = ""
			if msg.Added > 0 {
				m.status = fmt.Sprintf("%d new match notification(s).", msg.Added)
			}
		}
		return m, m.deps.Poller.WaitForNextResult()

	case sessionExpiredMsg:
		m.authMessage = "Session expired. Sign in again to continue."
		return m, m.waitForExpiry()

	case tea.KeyMsg:
		if cmd, handled := m.handleGlobalKey(msg); handled {
			return m, cmd
		}
		return m.updateActiveView(msg)
	}

	// Timers and results of the feed arrive regardless of the active view.
	var feedCmd tea.Cmd
	m.feed, feedCmd = m.feed.Update(msg)

	next, cmd := m.updateActiveView(msg)
	return next, tea.Batch(feedCmd, cmd)
}

// handleGlobalKey processes keys that work across views. Text entry in the
// wizard receives every key except ctrl+c.
func (m *Model) handleGlobalKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	if msg.String() == "ctrl+c" {
		return m.quit(), true
	}
	if m.currentView == ViewWizard || m.currentView == ViewSettings || m.feed.Confirming() {
		return nil, false
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit(), true

	case key.Matches(msg, m.keys.Help):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
		} else {
			m.switchTo(ViewHelp)
		}
		return nil, true

	case m.currentView == ViewHelp && key.Matches(msg, m.keys.Back):
		m.currentView = m.previousView
		return nil, true

	case m.currentView == ViewHome && key.Matches(msg, m.keys.Bell):
		if m.feed.IsOpen() {
			return m.feed.Close(), true
		}
		m.status = ""
		return m.feed.Open(), true

	case m.currentView == ViewHome && !m.feed.IsOpen() && key.Matches(msg, m.keys.Settings):
		m.openSettings()
		return nil, true

	case m.currentView == ViewHome && !m.feed.IsOpen() && key.Matches(msg, m.keys.Refresh):
		m.status = "Checking for matches..."
		return m.deps.Poller.Refresh(), true
	}

	return nil, false
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewHome:
		if _, isKey := msg.(tea.KeyMsg); isKey && m.feed.IsOpen() {
			m.feed, cmd = m.feed.Update(msg)
		}
	case ViewWizard:
		if m.wizard != nil {
			var w confirm.Model
			w, cmd = m.wizard.Update(msg)
			m.wizard = &w
		}
	case ViewPreview:
		m.preview, cmd = m.preview.Update(msg)
	case ViewSettings:
		m.settings, cmd = m.settings.Update(msg)
	}

	return m, cmd
}

func (m *Model) switchTo(v ViewState) {
	m.previousView = m.currentView
	m.currentView = v
}

func (m Model) bodySize() (int, int) {
	if !m.ready {
		return 80, 22
	}
	return m.layout.Width, m.layout.BodyHeight()
}

func (m *Model) openWizard(itemID, matchID string) tea.Cmd {
	m.closeWizard()

	session := workflow.NewSession(itemID, matchID, workflow.Deps{
		Items:    m.deps.Items,
		Delivery: m.deps.Items,
		Identity: m.deps.Identity,
		Logger:   m.deps.Logger,
	})
	w, h := m.bodySize()
	wizard := confirm.New(session, m.wizardKeys, w, h)
	m.wizard = &wizard
	m.status = ""
	m.switchTo(ViewWizard)
	return wizard.Init()
}

func (m *Model) openSettings() {
	w, h := m.bodySize()
	m.settings = settings.New(settings.Deps{
		Path:   m.deps.ConfigPath,
		Config: m.deps.Config,
	}, m.keys, w, h)
	m.switchTo(ViewSettings)
}

func (m *Model) closeWizard() {
	if m.wizard != nil {
		m.wizard.Teardown()
		m.wizard = nil
	}
	if m.currentView == ViewWizard {
		m.currentView = ViewHome
	}
}

// quit tears down every view and stops background work.
func (m *Model) quit() tea.Cmd {
	m.closeWizard()
	m.feed.Teardown()
	m.deps.Poller.Stop()
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	return tea.Quit
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.Header("Lost & Found", m.feed.BellView())
	body := m.layout.Body(m.renderContent(), m.currentView == ViewHome && m.feed.IsOpen())
	status := m.layout.StatusBar(m.keyHints(), m.statusMessage())

	return m.layout.Frame(header, body, status)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewWizard:
		if m.wizard != nil {
			return m.wizard.View()
		}
		return ""
	case ViewPreview:
		return m.preview.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewSettings:
		return m.settings.View()
	default:
		if m.feed.IsOpen() {
			return m.feed.View()
		}
		return m.homeView()
	}
}

func (m Model) homeView() string {
	s := m.deps.Notifications.Store()
	lines := fmt.Sprintf("%d notification(s), %d unread, %d match(es)", s.Len(), s.UnreadCount(), s.MatchCount())
	return theme.HelpStyle.Render(lines + "\n\nPress n to open notifications, s for settings.")
}

func (m Model) statusMessage() string {
	if m.authMessage != "" {
		return m.authMessage
	}
	return m.status
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	return m.helpView.ShortView(m.currentView == ViewWizard)
}
