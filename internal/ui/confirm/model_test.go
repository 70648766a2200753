package confirm_test

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/lostfound/internal/keys"
	"github.com/nhle/lostfound/internal/model"
	"github.com/nhle/lostfound/internal/ui/confirm"
	"github.com/nhle/lostfound/internal/workflow"
)

type itemsByID map[string]*model.Item

func (m itemsByID) GetItemByID(_ context.Context, id string) (*model.Item, error) {
	if it, ok := m[id]; ok {
		return it, nil
	}
	return nil, errors.New("not found")
}

type recorder struct {
	sent []model.OutboundNotification
	err  error
}

func (r *recorder) SendNotification(_ context.Context, n model.OutboundNotification) error {
	r.sent = append(r.sent, n)
	return r.err
}

type user struct{}

func (user) CurrentUser() (model.User, error) { return model.User{ID: "me", Email: "me@example.com"}, nil }

func newWizard(t *testing.T, rec *recorder) (confirm.Model, *workflow.Session) {
	t.Helper()
	s := workflow.NewSession("a", "b", workflow.Deps{
		Items: itemsByID{
			"a": {ID: "a", Name: "Umbrella", Owner: "me", MatchResults: []model.MatchResult{{MatchedItemID: "b", Similarity: 0.81}}},
			"b": {ID: "b", Name: "Black umbrella", Owner: "them"},
		},
		Delivery: rec,
		Identity: user{},
		Logger:   zerolog.Nop(),
	})
	m := confirm.New(s, keys.DefaultWizardKeyMap(), 100, 40)
	t.Cleanup(m.Teardown)

	m, _ = m.Update(m.Init()())
	return m, s
}

func send(m confirm.Model, msgs ...tea.KeyMsg) (confirm.Model, tea.Cmd) {
	var cmd tea.Cmd
	for _, msg := range msgs {
		m, cmd = m.Update(msg)
	}
	return m, cmd
}

var (
	enter = tea.KeyMsg{Type: tea.KeyEnter}
	esc   = tea.KeyMsg{Type: tea.KeyEsc}
	tab   = tea.KeyMsg{Type: tea.KeyTab}
	right = tea.KeyMsg{Type: tea.KeyRight}
)

func typeText(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestWizard_FullFlow(t *testing.T) {
	rec := &recorder{}
	m, s := newWizard(t, rec)
	assert.Contains(t, m.View(), "Umbrella")
	assert.Contains(t, m.View(), "81%")

	m, _ = send(m, enter)
	require.Equal(t, workflow.StepContact, s.Snapshot().Step)

	// Blank details keep the wizard on the contact step.
	m, _ = send(m, enter)
	assert.Equal(t, workflow.StepContact, s.Snapshot().Step)
	assert.Contains(t, m.View(), "Enter your contact details")

	m, _ = send(m, typeText("555-0100"), tab, tab, right)
	assert.Equal(t, model.ContactPhone, s.Snapshot().ContactMethod)
	assert.Equal(t, "555-0100", s.Snapshot().ContactDetails)

	m, _ = send(m, enter)
	require.Equal(t, workflow.StepConfirm, s.Snapshot().Step)

	m, cmd := send(m, enter)
	require.NotNil(t, cmd)
	m, cmd = m.Update(cmd())
	require.NotNil(t, cmd)
	_, ok := cmd().(confirm.ConfirmedMsg)
	assert.True(t, ok)

	require.Len(t, rec.sent, 1)
	assert.Equal(t, "them", rec.sent[0].UserID)
	assert.Equal(t, 81, rec.sent[0].Data.Score)
	assert.Equal(t, workflow.StepDone, s.Snapshot().Step)
	assert.Contains(t, m.View(), "were sent")

	_, cmd = send(m, enter)
	_, ok = cmd().(confirm.ClosedMsg)
	assert.True(t, ok)
}

func TestWizard_DoubleEnterSendsOnce(t *testing.T) {
	rec := &recorder{}
	m, s := newWizard(t, rec)

	m, _ = send(m, enter, typeText("me@example.com"), enter)
	require.Equal(t, workflow.StepConfirm, s.Snapshot().Step)

	m, first := send(m, enter)
	require.NotNil(t, first)
	assert.Contains(t, m.View(), "Sending...")

	m, second := send(m, enter)
	assert.Nil(t, second)
	m, back := send(m, esc)
	assert.Nil(t, back)
	assert.Equal(t, workflow.StepConfirm, s.Snapshot().Step)

	m, cmd := m.Update(first())
	require.NotNil(t, cmd)
	_, ok := cmd().(confirm.ConfirmedMsg)
	assert.True(t, ok)

	assert.Len(t, rec.sent, 1)
	assert.Equal(t, workflow.StepDone, s.Snapshot().Step)
	assert.NotContains(t, m.View(), workflow.SubmitFailedMessage)
}

func TestWizard_FailedSubmitShowsMessage(t *testing.T) {
	rec := &recorder{err: errors.New("unavailable")}
	m, s := newWizard(t, rec)

	m, _ = send(m, enter, typeText("me@example.com"), enter)
	require.Equal(t, workflow.StepConfirm, s.Snapshot().Step)

	m, cmd := send(m, enter)
	m, _ = m.Update(cmd())
	assert.Contains(t, m.View(), workflow.SubmitFailedMessage)
	assert.Equal(t, workflow.StepConfirm, s.Snapshot().Step)

	m, _ = send(m, esc)
	assert.Equal(t, workflow.StepContact, s.Snapshot().Step)
	assert.Equal(t, "me@example.com", s.Snapshot().ContactDetails)
}

func TestWizard_MissingIDsCloses(t *testing.T) {
	s := workflow.NewSession("", "", workflow.Deps{Logger: zerolog.Nop()})
	m := confirm.New(s, keys.DefaultWizardKeyMap(), 80, 30)
	m, _ = m.Update(m.Init()())

	assert.Contains(t, m.View(), "Missing required information")
	_, cmd := send(m, enter)
	_, ok := cmd().(confirm.ClosedMsg)
	assert.True(t, ok)
}
