package settings

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/lostfound/internal/keys"
	"github.com/nhle/lostfound/internal/model"
)

type saved struct {
	path string
	cfg  *model.AppConfig
}

func newSettings(t *testing.T) (Model, *saved) {
	t.Helper()
	out := &saved{}
	m := New(Deps{
		Path:   "/tmp/lostfound/config.yaml",
		Config: model.DefaultAppConfig(),
		Save: func(path string, cfg *model.AppConfig) error {
			out.path, out.cfg = path, cfg
			return nil
		},
	}, keys.DefaultKeyMap(), 100, 30)
	return m, out
}

func TestSettings_EditPrefillsAndSaves(t *testing.T) {
	m, out := newSettings(t)
	m.StartEdit()
	require.Equal(t, ModeEdit, m.Mode())
	assert.Equal(t, "http://localhost:3000", m.fields.baseURL)
	assert.Equal(t, "120", m.fields.pollSec)

	m.fields.baseURL = " https://items.example.com "
	m.fields.theme = "mono"
	m.fields.pollSec = "45"

	m, cmd := m.Update(m.save()())
	require.Equal(t, ModeResult, m.Mode())
	require.NotNil(t, cmd)

	msg, ok := cmd().(SavedMsg)
	require.True(t, ok)
	assert.Equal(t, "https://items.example.com", msg.Config.API.BaseURL)
	assert.Equal(t, "mono", msg.Config.Display.Theme)
	assert.Equal(t, 45, msg.Config.Notifications.PollIntervalSec)
	assert.Equal(t, "/tmp/lostfound/config.yaml", out.path)
	assert.Contains(t, m.View(), "Settings saved")
}

func TestSettings_InvalidConfigIsNotWritten(t *testing.T) {
	m, out := newSettings(t)
	m.StartEdit()
	m.fields.baseURL = "nope"

	m, cmd := m.Update(m.save()())
	assert.Nil(t, cmd)
	assert.Nil(t, out.cfg)
	assert.Contains(t, m.View(), "Failed")

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, ModeSummary, m.Mode())
}

func TestSettings_EscapeCloses(t *testing.T) {
	m, _ := newSettings(t)
	assert.Contains(t, m.View(), "localhost:3000")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, DoneMsg{}, cmd())
}

func TestValidators(t *testing.T) {
	assert.NoError(t, validateURL("http://localhost:3000"))
	assert.Error(t, validateURL("localhost"))
	assert.NoError(t, validateEmail(""))
	assert.Error(t, validateEmail("me@"))
	assert.NoError(t, validateSeconds("0"))
	assert.Error(t, validateSeconds("-1"))
}
