package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/nhle/lostfound/internal/api"
	"github.com/nhle/lostfound/internal/identity"
	"github.com/nhle/lostfound/internal/model"
	"github.com/nhle/lostfound/internal/notify"
)

// SyncState represents the current state of the match poller.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

// SyncStatus holds the poller state.
type SyncStatus struct {
	State    SyncState
	LastSync time.Time
	Error    error
}

// SyncResultMsg is a tea.Msg sent when a poll completes.
type SyncResultMsg struct {
	Added     int
	Error     error
	AuthError *AuthErrorMsg
}

// AuthErrorMsg is a tea.Msg sent when the session could not be refreshed.
type AuthErrorMsg struct {
	Message string
}

// fetchTimeout is the maximum time allowed for a single poll.
const fetchTimeout = 30 * time.Second

const defaultInterval = 120 * time.Second

// ItemSource lists the user's items and fetches the items they matched.
type ItemSource interface {
	GetItemsByUser(ctx context.Context, userID string) ([]model.Item, error)
	GetItemByID(ctx context.Context, id string) (*model.Item, error)
}

// IdentitySource yields the user running the client.
type IdentitySource interface {
	CurrentUser() (model.User, error)
}

// Sink receives new match notifications.
type Sink interface {
	Issued(id string) bool
	Add(n model.Notification) error
}

// MatchNotificationID is the deterministic id of the notification for a
// candidate match, so a match is announced at most once per store.
func MatchNotificationID(itemID, matchID string) string {
	return fmt.Sprintf("%s%s:%s", matchIDPrefix, itemID, matchID)
}

const matchIDPrefix = "match:"

// IsLocalID reports whether id was minted by MatchNotificationID rather
// than received from the backend.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, matchIDPrefix)
}

// Poller periodically turns the match results of the user's open items
// into match notifications.
type Poller struct {
	items    ItemSource
	identity IdentitySource
	sink     Sink
	interval time.Duration
	log      zerolog.Logger

	resultCh  chan SyncResultMsg
	triggerCh chan struct{}
	stopCh    chan struct{}

	// ctx is cancelled by Stop and bounds every poll.
	ctx    context.Context
	cancel context.CancelFunc
	addMu  gosync.Mutex

	mu        gosync.Mutex
	running   bool
	status    SyncStatus
}

// New creates a poller. A non-positive interval uses two minutes.
func New(items ItemSource, id IdentitySource, sink Sink, interval time.Duration, logger zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = defaultInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		items:     items,
		identity:  id,
		sink:      sink,
		interval:  interval,
		log:       logger.With().Str("component", "poller").Logger(),
		resultCh:  make(chan SyncResultMsg, 16),
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start returns a tea.Cmd that starts the polling goroutine and waits for
// the first result.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.mu.Unlock()

	go p.loop()

	return p.waitForResult()
}

// Stop halts the polling goroutine and cancels a poll in flight. No
// notification is added after Stop returns.
func (p *Poller) Stop() {
	p.cancel()
	p.addMu.Lock()
	defer p.addMu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	close(p.stopCh)
	p.running = false
}

// Refresh triggers an immediate poll.
func (p *Poller) Refresh() tea.Cmd {
	select {
	case p.triggerCh <- struct{}{}:
	default:
		// A poll is already queued.
	}
	return nil
}

// Status returns the current poller status.
func (p *Poller) Status() SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Poller) loop() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.poll()
		case <-p.triggerCh:
			p.poll()
		}
	}
}

func (p *Poller) poll() {
	p.setStatus(SyncRunning, nil)

	ctx, cancel := context.WithTimeout(p.ctx, fetchTimeout)
	defer cancel()

	added, err := p.PollOnce(ctx)
	if p.ctx.Err() != nil {
		p.setStatus(SyncIdle, nil)
		return
	}
	if err != nil {
		p.setStatus(SyncError, err)

		if errors.Is(err, api.ErrSessionExpired) || errors.Is(err, identity.ErrNoIdentity) {
			p.sendResult(SyncResultMsg{
				Error: err,
				AuthError: &AuthErrorMsg{
					Message: "Session expired. Sign in again to receive match alerts.",
				},
			})
			return
		}

		p.sendResult(SyncResultMsg{Error: err})
		return
	}

	p.setStatus(SyncIdle, nil)
	p.sendResult(SyncResultMsg{Added: added})
}

// PollOnce fetches the user's items and adds a notification for every
// unannounced match of an unresolved item. It returns how many were added.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	ctx, stop := p.bind(ctx)
	defer stop()

	user, err := p.identity.CurrentUser()
	if err != nil {
		return 0, err
	}

	list, err := p.items.GetItemsByUser(ctx, user.ID)
	if err != nil {
		return 0, err
	}

	added := 0
	for _, item := range list {
		if item.IsResolved {
			continue
		}
		for _, result := range item.MatchResults {
			id := MatchNotificationID(item.ID, result.MatchedItemID)
			if p.sink.Issued(id) {
				continue
			}

			matched, err := p.items.GetItemByID(ctx, result.MatchedItemID)
			if err != nil {
				if api.IsCanceled(err) || errors.Is(err, api.ErrSessionExpired) {
					return added, err
				}
				p.log.Warn().Err(err).Str("match_id", result.MatchedItemID).Msg("skipping match")
				continue
			}
			if matched.IsResolved {
				continue
			}

			n := matchNotification(id, &item, matched, result)
			ok, err := p.add(ctx, n)
			if err != nil {
				return added, err
			}
			if ok {
				added++
			}
		}
	}

	if added > 0 {
		p.log.Info().Int("added", added).Msg("new match notifications")
	}
	return added, nil
}

// add stores n unless ctx is done. Stop waits for an add in progress.
func (p *Poller) add(ctx context.Context, n model.Notification) (bool, error) {
	p.addMu.Lock()
	defer p.addMu.Unlock()

	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := p.sink.Add(n); err != nil {
		if errors.Is(err, notify.ErrDuplicateID) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// bind derives a context that Stop also cancels.
func (p *Poller) bind(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(p.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func matchNotification(id string, item, matched *model.Item, result model.MatchResult) model.Notification {
	score := result.Percent()
	n := model.NewNotification(
		model.TypeMatch,
		"Possible match found",
		fmt.Sprintf("Your %s item %q may match %q (%d%%)", item.ItemType, item.Name, matched.Name, score),
		model.MatchPayload{
			ItemID:           item.ID,
			MatchID:          matched.ID,
			ItemName:         item.Name,
			MatchName:        matched.Name,
			ItemImage:        item.ImgURL,
			MatchImage:       matched.ImgURL,
			ItemDescription:  item.Description,
			MatchDescription: matched.Description,
			ItemCategory:     item.Category,
			MatchCategory:    matched.Category,
			ItemDate:         item.Date,
			MatchDate:        matched.Date,
			ItemLocation:     item.Location.PayloadString(),
			MatchLocation:    matched.Location.PayloadString(),
			OwnerName:        matched.OwnerName,
			OwnerEmail:       matched.OwnerEmail,
			Score:            score,
		},
	)
	n.ID = id
	return n
}

// setStatus updates the poller status.
func (p *Poller) setStatus(state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status.State = state
	p.status.Error = err
	if state == SyncIdle && err == nil {
		p.status.LastSync = time.Now()
	}
}

// sendResult sends a SyncResultMsg on the result channel without blocking.
func (p *Poller) sendResult(msg SyncResultMsg) {
	select {
	case p.resultCh <- msg:
	default:
		// Drop if channel is full to avoid blocking the poller
	}
}

// waitForResult returns a tea.Cmd that waits for the next result from
// the result channel.
func (p *Poller) waitForResult() tea.Cmd {
	return func() tea.Msg {
		result, ok := <-p.resultCh
		if !ok {
			return nil
		}
		return result
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next poll result.
// Call it after handling a SyncResultMsg to keep listening.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}
