package app

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/lostfound/internal/model"
	appsync "github.com/nhle/lostfound/internal/sync"
	"github.com/nhle/lostfound/internal/ui/feed"
)

// defaultAckTimeout bounds a read acknowledgement when the API timeout is
// left at zero.
const defaultAckTimeout = 10 * time.Second

// ItemAPI is the backend surface used by the views.
type ItemAPI interface {
	GetItemByID(ctx context.Context, id string) (*model.Item, error)
	SendNotification(ctx context.Context, n model.OutboundNotification) error
	AcknowledgeRead(ctx context.Context, notificationID string) error
}

// waitForChange returns a command that delivers the next store change.
func (m Model) waitForChange() tea.Cmd {
	ch := m.changes
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return feed.ChangedMsg{}
	}
}

// waitForExpiry returns a command that delivers the next session expiry.
func (m Model) waitForExpiry() tea.Cmd {
	ch := m.deps.SessionExpired
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return sessionExpiredMsg{}
	}
}

// acknowledge tells the backend about notifications read locally. Match
// notifications derived by the poller have no server counterpart.
func (m Model) acknowledge(ids []string) tea.Cmd {
	items := m.deps.Items
	timeout := ackTimeout(m.deps.Config)
	cmds := make([]tea.Cmd, 0, len(ids))
	for _, id := range ids {
		if appsync.IsLocalID(id) {
			continue
		}
		cmds = append(cmds, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			return ackResultMsg{id: id, err: items.AcknowledgeRead(ctx, id)}
		})
	}
	return tea.Batch(cmds...)
}

// ackTimeout follows the configured API timeout.
func ackTimeout(cfg *model.AppConfig) time.Duration {
	if cfg != nil {
		if d := cfg.API.Timeout(); d > 0 {
			return d
		}
	}
	return defaultAckTimeout
}
