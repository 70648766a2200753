package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/nhle/lostfound/internal/keys"
	"github.com/nhle/lostfound/internal/model"
	"github.com/nhle/lostfound/internal/notify"
	"github.com/nhle/lostfound/internal/theme"
)

// highPriorityScore marks match notifications that are highlighted.
const highPriorityScore = 90

const (
	defaultLoadingDelay  = 300 * time.Millisecond
	defaultBellAnimation = time.Second
)

// ClosedMsg is sent after the feed closed and the backup was attempted.
type ClosedMsg struct{}

// OpenMatchMsg asks the parent to start the confirmation wizard.
type OpenMatchMsg struct {
	NotificationID string
	ItemID         string
	MatchID        string
}

// PreviewMsg asks the parent to show a contact notification.
type PreviewMsg struct {
	Notification model.Notification
}

// ReadMsg lists notifications that were just marked read locally.
type ReadMsg struct {
	IDs []string
}

// ChangedMsg tells the feed that the store changed outside of it.
type ChangedMsg struct{}

// RemovedMsg reports the outcome of a removal request.
type RemovedMsg struct {
	ID      string
	Removed bool
	Err     error
}

type loadedMsg struct {
	seq      int
	reloaded bool
}

type bellDoneMsg struct {
	seq int
}

// Service is the notification lifecycle the feed works against.
type Service interface {
	Store() *notify.Store
	CheckIntegrity(ctx context.Context) bool
	BackupNow(ctx context.Context)
	Err() error
}

// Options tune timings of the feed.
type Options struct {
	// BellAnimation is how long the bell rings after the unread count rises.
	BellAnimation time.Duration

	// LoadingDelay is how long the loading state is shown after opening.
	LoadingDelay time.Duration

	// Now returns the current time for relative timestamps.
	Now func() time.Time
}

// confirmBindings holds form values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type confirmBindings struct {
	remove bool
	answer chan bool
}

// Model is the bell and dropdown list of notifications. It keeps only view
// state; the records are read from the store on every render.
type Model struct {
	svc  Service
	keys *keys.KeyMap
	opts Options

	open      bool
	loading   bool
	animating bool
	openSeq   int
	bellSeq   int
	unread    int
	cursor    int
	status    string

	confirm   *huh.Form
	cb        *confirmBindings
	pendingID string

	ctx    context.Context
	cancel context.CancelFunc

	width  int
	height int
}

// New creates a closed feed.
func New(svc Service, keys *keys.KeyMap, opts Options, width, height int) Model {
	if opts.BellAnimation <= 0 {
		opts.BellAnimation = defaultBellAnimation
	}
	if opts.LoadingDelay <= 0 {
		opts.LoadingDelay = defaultLoadingDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	return Model{
		svc:    svc,
		keys:   keys,
		opts:   opts,
		unread: svc.Store().UnreadCount(),
		ctx:    ctx,
		cancel: cancel,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// IsOpen reports whether the dropdown is shown.
func (m Model) IsOpen() bool {
	return m.open
}

// Loading reports whether the dropdown shows its loading state.
func (m Model) Loading() bool {
	return m.loading
}

// Animating reports whether the bell is ringing.
func (m Model) Animating() bool {
	return m.animating
}

// Confirming reports whether a removal confirmation is shown.
func (m Model) Confirming() bool {
	return m.confirm != nil
}

// Cursor returns the selected row.
func (m Model) Cursor() int {
	return m.cursor
}

// SetStatus sets an inline status line, such as a failed acknowledgement.
func (m *Model) SetStatus(s string) {
	m.status = s
}

// Open shows the dropdown. Nothing is marked read by opening.
func (m *Model) Open() tea.Cmd {
	if m.open {
		return nil
	}
	m.open = true
	m.loading = true
	m.cursor = 0
	m.status = ""
	m.openSeq++

	seq, svc, ctx := m.openSeq, m.svc, m.ctx
	return tea.Tick(m.opts.LoadingDelay, func(time.Time) tea.Msg {
		return loadedMsg{seq: seq, reloaded: svc.CheckIntegrity(ctx)}
	})
}

// Close hides the dropdown, writes the backup slot and then reports
// ClosedMsg.
func (m *Model) Close() tea.Cmd {
	if !m.open {
		return nil
	}
	m.open = false
	m.loading = false
	m.dismissConfirm()

	svc, ctx := m.svc, m.ctx
	return func() tea.Msg {
		svc.BackupNow(ctx)
		return ClosedMsg{}
	}
}

// Teardown cancels pending work owned by the feed.
func (m *Model) Teardown() {
	m.dismissConfirm()
	m.cancel()
}

// Update handles messages for the feed.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ChangedMsg:
		m.clampCursor()
		return m, m.syncUnread()

	case loadedMsg:
		if msg.seq == m.openSeq && m.open {
			m.loading = false
			m.clampCursor()
		}
		return m, m.syncUnread()

	case bellDoneMsg:
		if msg.seq == m.bellSeq {
			m.animating = false
		}
		return m, nil

	case RemovedMsg:
		m.clampCursor()
		if msg.Err != nil {
			m.status = "Could not remove notification: " + msg.Err.Error()
		}
		return m, m.syncUnread()
	}

	if !m.open {
		return m, nil
	}

	if m.confirm != nil {
		return m.updateConfirm(msg)
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	// The store may have shrunk since the cursor last moved.
	records := m.svc.Store().List()
	m.clampTo(len(records))

	switch {
	case key.Matches(keyMsg, m.keys.Back):
		return m, m.Close()

	case key.Matches(keyMsg, m.keys.Down):
		if m.cursor < len(records)-1 {
			m.cursor++
		}

	case key.Matches(keyMsg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(keyMsg, m.keys.Select):
		if m.loading || len(records) == 0 {
			return m, nil
		}
		return m.selectRecord(records[m.cursor])

	case key.Matches(keyMsg, m.keys.MarkRead):
		if len(records) == 0 {
			return m, nil
		}
		return m, m.markRead(records[m.cursor].ID)

	case key.Matches(keyMsg, m.keys.MarkAllRead):
		ids := m.svc.Store().MarkAllAsRead()
		return m, tea.Batch(readCmd(ids...), m.syncUnread())

	case key.Matches(keyMsg, m.keys.Remove):
		if len(records) == 0 {
			return m, nil
		}
		return m.remove(records[m.cursor])
	}

	return m, nil
}

func (m Model) selectRecord(n model.Notification) (Model, tea.Cmd) {
	read := m.markRead(n.ID)

	switch n.Type {
	case model.TypeMatch:
		mp, _ := n.Match()
		open := func() tea.Msg {
			return OpenMatchMsg{NotificationID: n.ID, ItemID: mp.ItemID, MatchID: mp.MatchID}
		}
		return m, tea.Sequence(read, m.Close(), open)

	case model.TypeMatchContact:
		preview := func() tea.Msg { return PreviewMsg{Notification: n} }
		return m, tea.Batch(read, preview)

	default:
		return m, read
	}
}

func (m *Model) markRead(id string) tea.Cmd {
	if !m.svc.Store().MarkAsRead(id) {
		return nil
	}
	return tea.Batch(readCmd(id), m.syncUnread())
}

func readCmd(ids ...string) tea.Cmd {
	if len(ids) == 0 {
		return nil
	}
	return func() tea.Msg { return ReadMsg{IDs: ids} }
}

// remove deletes an unprotected record directly and asks for confirmation
// before deleting a protected one. The question is answered through the
// huh form while RemoveWithConfirmation waits for it.
func (m Model) remove(n model.Notification) (Model, tea.Cmd) {
	store := m.svc.Store()
	if !store.IsProtected(n.ID) {
		removed := store.Remove(n.ID)
		m.clampCursor()
		return m, func() tea.Msg { return RemovedMsg{ID: n.ID, Removed: removed} }
	}

	m.cb = &confirmBindings{answer: make(chan bool, 1)}
	m.pendingID = n.ID
	m.confirm = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Remove high-confidence match?").
				Description(fmt.Sprintf("%q scored %d%%. It will not be shown again.", n.Title, n.Score())).
				Affirmative("Remove").
				Negative("Keep").
				Value(&m.cb.remove),
		),
	).WithWidth(max(m.width-8, 30)).WithShowHelp(false)

	answer, ctx, id := m.cb.answer, m.ctx, n.ID
	wait := func() tea.Msg {
		removed, err := store.RemoveWithConfirmation(ctx, id, notify.ConfirmerFunc(
			func(ctx context.Context, _ model.Notification) (bool, error) {
				select {
				case ok := <-answer:
					return ok, nil
				case <-ctx.Done():
					return false, ctx.Err()
				}
			}))
		return RemovedMsg{ID: id, Removed: removed, Err: err}
	}

	return m, tea.Batch(m.confirm.Init(), wait)
}

func (m Model) updateConfirm(msg tea.Msg) (Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && key.Matches(keyMsg, m.keys.Back) {
		m.dismissConfirm()
		return m, nil
	}

	mdl, cmd := m.confirm.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.confirm = f
	}

	switch m.confirm.State {
	case huh.StateCompleted:
		m.answerConfirm(m.cb.remove)
		return m, nil
	case huh.StateAborted:
		m.dismissConfirm()
		return m, nil
	}
	return m, cmd
}

func (m *Model) answerConfirm(remove bool) {
	if m.cb != nil {
		m.cb.answer <- remove
	}
	m.confirm = nil
	m.cb = nil
	m.pendingID = ""
}

// dismissConfirm declines a pending confirmation.
func (m *Model) dismissConfirm() {
	if m.confirm == nil {
		return
	}
	m.answerConfirm(false)
}

// syncUnread rings the bell when the unread count rose.
func (m *Model) syncUnread() tea.Cmd {
	unread := m.svc.Store().UnreadCount()
	rose := unread > m.unread
	m.unread = unread
	if !rose {
		return nil
	}

	m.animating = true
	m.bellSeq++
	seq := m.bellSeq
	return tea.Tick(m.opts.BellAnimation, func(time.Time) tea.Msg {
		return bellDoneMsg{seq: seq}
	})
}

func (m *Model) clampCursor() {
	m.clampTo(m.svc.Store().Len())
}

func (m *Model) clampTo(n int) {
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// SetSize updates the feed dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// BellView renders the bell with the unread badge.
func (m Model) BellView() string {
	style := theme.BellStyle
	if m.animating {
		style = theme.BellRingingStyle
	}
	bell := style.Render("🔔")

	unread := m.svc.Store().UnreadCount()
	if unread == 0 {
		return bell
	}
	label := fmt.Sprintf("%d", unread)
	if unread > 99 {
		label = "99+"
	}
	return bell + theme.BadgeStyle.Render(label)
}

// View renders the dropdown, or nothing when closed.
func (m Model) View() string {
	if !m.open {
		return ""
	}

	store := m.svc.Store()
	records := store.List()

	var sections []string

	title := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).
		Render(fmt.Sprintf("Notifications (%d unread)", store.UnreadCount()))
	if matches := store.MatchCount(); matches > 0 {
		title += theme.DimmedStyle.Render(fmt.Sprintf("  %s", pluralMatches(matches)))
	}
	sections = append(sections, title, "")

	if err := m.svc.Err(); err != nil {
		sections = append(sections, theme.ErrorStyle.Render(persistenceMessage(err)), "")
	}

	switch {
	case m.loading:
		sections = append(sections, theme.HelpStyle.Render("Loading notifications..."))
	case len(records) == 0:
		sections = append(sections, theme.HelpStyle.Render("No notifications"))
	default:
		now := m.opts.Now()
		for i, n := range records {
			sections = append(sections, m.renderRow(n, i == m.cursor, now))
		}
	}

	if m.confirm != nil {
		sections = append(sections, "", m.confirm.View())
	}

	if m.status != "" {
		sections = append(sections, "", theme.ErrorStyle.Render(m.status))
	}

	width := min(max(m.width-4, 30), 90)
	return theme.PanelStyle.Width(width).Render(strings.Join(sections, "\n"))
}

func (m Model) renderRow(n model.Notification, selected bool, now time.Time) string {
	var b strings.Builder

	marker := "  "
	if !n.Read {
		marker = "● "
	}
	b.WriteString(marker)

	if n.Type == model.TypeMatch && n.Score() >= highPriorityScore {
		b.WriteString(theme.HighPriorityStyle.Render("! "))
	}

	titleStyle := lipgloss.NewStyle()
	if !n.Read {
		titleStyle = theme.UnreadStyle
	}
	b.WriteString(titleStyle.Render(n.Title))

	if score := n.Score(); score >= 0 {
		b.WriteString(" ")
		b.WriteString(theme.ScoreStyle(score).Render(fmt.Sprintf("%d%%", score)))
	}
	b.WriteString(theme.DimmedStyle.Render("  " + RelativeTime(n.CreatedAt, now)))

	if n.Message != "" {
		b.WriteString("\n    ")
		b.WriteString(theme.DimmedStyle.Render(n.Message))
	}

	if selected {
		return theme.SelectedItemStyle.Render(b.String())
	}
	return theme.ListItemStyle.Render(b.String())
}

// RelativeTime renders t relative to now, with "just now" under a minute.
func RelativeTime(t, now time.Time) string {
	if d := now.Sub(t); d < time.Minute && d > -time.Minute {
		return "just now"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

func pluralMatches(n int) string {
	if n == 1 {
		return "1 match"
	}
	return fmt.Sprintf("%d matches", n)
}

func persistenceMessage(err error) string {
	var perr *notify.PersistenceError
	if errors.As(err, &perr) && perr.Reading() {
		return "Saved notifications could not be read."
	}
	return "Notifications could not be saved locally."
}
