package app

import (
	"context"
	"errors"
	gosync "sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/lostfound/internal/model"
	"github.com/nhle/lostfound/internal/notify"
	appsync "github.com/nhle/lostfound/internal/sync"
	"github.com/nhle/lostfound/internal/theme"
	"github.com/nhle/lostfound/internal/ui/confirm"
	"github.com/nhle/lostfound/internal/ui/feed"
	"github.com/nhle/lostfound/internal/ui/settings"
	"github.com/nhle/lostfound/tests/testutil"
)

type fakeItems struct {
	mu        gosync.Mutex
	acked     []string
	deadlines []time.Time
}

func (f *fakeItems) GetItemByID(_ context.Context, id string) (*model.Item, error) {
	return &model.Item{ID: id, Name: "Item " + id, Owner: "someone"}, nil
}

func (f *fakeItems) GetItemsByUser(context.Context, string) ([]model.Item, error) {
	return nil, nil
}

func (f *fakeItems) SendNotification(context.Context, model.OutboundNotification) error {
	return nil
}

func (f *fakeItems) AcknowledgeRead(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, id)
	if d, ok := ctx.Deadline(); ok {
		f.deadlines = append(f.deadlines, d)
	}
	return nil
}

type fakeUser struct{}

func (fakeUser) CurrentUser() (model.User, error) { return model.User{ID: "me"}, nil }

func newTestApp(t *testing.T) (Model, *notify.Service, *fakeItems) {
	t.Helper()
	svc := notify.NewService(testutil.NewTestStore(t), nil, zerolog.Nop())
	svc.Init(context.Background())

	fi := &fakeItems{}
	expired := make(chan struct{}, 1)
	expired <- struct{}{}

	m := New(Deps{
		Notifications:  svc,
		Items:          fi,
		Identity:       fakeUser{},
		Poller:         appsync.New(fi, fakeUser{}, svc, time.Hour, zerolog.Nop()),
		Config:         model.DefaultAppConfig(),
		Logger:         zerolog.Nop(),
		SessionExpired: expired,
	})
	t.Cleanup(func() { m.quit() })

	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(Model), svc, fi
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

// runAll executes cmd and any batched commands, returning the leaf messages.
func runAll(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, runAll(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func TestApp_BellKeyTogglesFeed(t *testing.T) {
	m, _, _ := newTestApp(t)
	require.False(t, m.feed.IsOpen())

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})
	assert.True(t, m.feed.IsOpen())
	assert.NotNil(t, cmd)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})
	assert.False(t, m.feed.IsOpen())
}

func TestApp_OpenMatchStartsWizard(t *testing.T) {
	m, _, _ := newTestApp(t)

	m, cmd := update(t, m, feed.OpenMatchMsg{NotificationID: "match:a:b", ItemID: "a", MatchID: "b"})
	require.Equal(t, ViewWizard, m.currentView)
	require.NotNil(t, m.wizard)
	require.NotNil(t, cmd)

	m, _ = update(t, m, cmd())
	assert.Contains(t, m.View(), "Item a")

	m, _ = update(t, m, confirm.ClosedMsg{})
	assert.Equal(t, ViewHome, m.currentView)
	assert.Nil(t, m.wizard)
}

func TestApp_QuitKeyIgnoredWhileTyping(t *testing.T) {
	m, _, _ := newTestApp(t)
	m, _ = update(t, m, feed.OpenMatchMsg{ItemID: "a", MatchID: "b"})

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	for _, msg := range runAll(cmd) {
		_, isQuit := msg.(tea.QuitMsg)
		assert.False(t, isQuit)
	}
}

func TestApp_ReadAcknowledgesServerNotificationsOnly(t *testing.T) {
	m, _, fi := newTestApp(t)

	_, cmd := update(t, m, feed.ReadMsg{IDs: []string{appsync.MatchNotificationID("a", "b"), "srv-1", "srv-2"}})
	for _, msg := range runAll(cmd) {
		res, ok := msg.(ackResultMsg)
		require.True(t, ok)
		assert.NoError(t, res.err)
	}

	assert.ElementsMatch(t, []string{"srv-1", "srv-2"}, fi.acked)
}

func TestApp_AcknowledgementUsesConfiguredTimeout(t *testing.T) {
	m, _, fi := newTestApp(t)
	m.deps.Config.API.TimeoutSec = 45

	start := time.Now()
	_, cmd := update(t, m, feed.ReadMsg{IDs: []string{"srv-1"}})
	runAll(cmd)

	require.Len(t, fi.deadlines, 1)
	assert.WithinDuration(t, start.Add(45*time.Second), fi.deadlines[0], 5*time.Second)
}

func TestAckTimeout(t *testing.T) {
	cfg := model.DefaultAppConfig()
	cfg.API.TimeoutSec = 7
	assert.Equal(t, 7*time.Second, ackTimeout(cfg))

	cfg.API.TimeoutSec = 0
	assert.Equal(t, defaultAckTimeout, ackTimeout(cfg))
	assert.Equal(t, defaultAckTimeout, ackTimeout(nil))
}

func TestApp_StoreChangesReachFeed(t *testing.T) {
	m, svc, _ := newTestApp(t)

	require.NoError(t, svc.Add(model.Notification{ID: "x", Type: model.TypeGeneric, Title: "Hello"}))
	msg := m.waitForChange()()
	assert.Equal(t, feed.ChangedMsg{}, msg)
}

func TestApp_SessionExpiryShownInStatusBar(t *testing.T) {
	m, _, _ := newTestApp(t)

	msg := m.waitForExpiry()()
	require.Equal(t, sessionExpiredMsg{}, msg)

	m, _ = update(t, m, msg)
	assert.Contains(t, m.View(), "Session expired")
}

func TestApp_SyncAuthErrorOverridesStatus(t *testing.T) {
	m, _, _ := newTestApp(t)

	m, _ = update(t, m, appsync.SyncResultMsg{Added: 2})
	assert.Equal(t, "2 new match notification(s).", m.statusMessage())

	m, _ = update(t, m, appsync.SyncResultMsg{AuthError: &appsync.AuthErrorMsg{Message: "Sign in required"}})
	assert.Equal(t, "Sign in required", m.statusMessage())

	m, _ = update(t, m, appsync.SyncResultMsg{Error: errors.New("offline")})
	assert.Equal(t, "Sign in required", m.statusMessage())
}

func TestApp_SettingsViewOpensAndCloses(t *testing.T) {
	m, _, _ := newTestApp(t)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	require.Equal(t, ViewSettings, m.currentView)
	assert.Contains(t, m.View(), "Settings")

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())
	assert.Equal(t, ViewHome, m.currentView)
}

func TestApp_SavedSettingsReplaceConfig(t *testing.T) {
	m, _, _ := newTestApp(t)
	t.Cleanup(func() { theme.Apply("default") })

	cfg := model.DefaultAppConfig()
	cfg.Display.Theme = "mono"
	m, _ = update(t, m, settings.SavedMsg{Config: cfg})
	assert.Same(t, cfg, m.deps.Config)
}
