package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	gosync "sync"

	"github.com/rs/zerolog"

	"github.com/nhle/lostfound/internal/api"
	"github.com/nhle/lostfound/internal/items"
	"github.com/nhle/lostfound/internal/model"
)

// Step is a position in the confirmation wizard.
type Step int

const (
	StepReview  Step = 1
	StepContact Step = 2
	StepConfirm Step = 3
	StepDone    Step = 4
)

func (s Step) String() string {
	switch s {
	case StepReview:
		return "Review match"
	case StepContact:
		return "Contact information"
	case StepConfirm:
		return "Confirm"
	case StepDone:
		return "Done"
	default:
		return fmt.Sprintf("Step(%d)", int(s))
	}
}

// SubmitState tracks the single outbound delivery.
type SubmitState int

const (
	SubmitIdle SubmitState = iota
	SubmitSubmitting
	SubmitSucceeded
	SubmitFailed
)

// Guard is the outcome of loading the two items.
type Guard int

const (
	GuardPending Guard = iota
	GuardMissingIDs
	GuardError
	GuardNotFound
	GuardAlreadyResolved
	GuardReady
)

// Message is the text shown to the user for a blocking guard.
func (g Guard) Message() string {
	switch g {
	case GuardMissingIDs:
		return "Missing required information"
	case GuardError:
		return "Failed to load item details"
	case GuardNotFound:
		return "Items not found."
	case GuardAlreadyResolved:
		return "One or both of these items have already been marked as resolved."
	default:
		return ""
	}
}

const (
	contactTitle         = "Contact details for match"
	contactMessageFormat = "A user confirmed a match and wants to share contact details: %s (%s)"

	// SubmitFailedMessage is shown when delivery fails. The user may retry.
	SubmitFailedMessage = "Failed to send the notification"
)

var (
	ErrSubmitInFlight   = errors.New("submission already in progress")
	ErrAlreadySubmitted = errors.New("match already confirmed")
	ErrNotAtConfirm     = errors.New("submit is only possible at the confirm step")
	ErrNotReady         = errors.New("items are not loaded")
)

// ItemSource fetches items by id.
type ItemSource interface {
	GetItemByID(ctx context.Context, id string) (*model.Item, error)
}

// Deliverer sends a notification to another user.
type Deliverer interface {
	SendNotification(ctx context.Context, n model.OutboundNotification) error
}

// IdentitySource yields the user running the client.
type IdentitySource interface {
	CurrentUser() (model.User, error)
}

// Deps are the collaborators of a Session.
type Deps struct {
	Items    ItemSource
	Delivery Deliverer
	Identity IdentitySource
	Logger   zerolog.Logger
}

// Session is one run of the match-confirmation wizard for an item and one
// of its candidate matches. All methods are safe for concurrent use.
type Session struct {
	itemID  string
	matchID string
	deps    Deps
	log     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        gosync.Mutex
	guard     Guard
	item      *model.Item
	match     *model.Item
	result    *model.MatchResult
	step      Step
	method    model.ContactMethod
	details   string
	message   string
	state     SubmitState
	submitErr error
}

// NewSession starts a wizard at the review step.
func NewSession(itemID, matchID string, deps Deps) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		itemID:  strings.TrimSpace(itemID),
		matchID: strings.TrimSpace(matchID),
		deps:    deps,
		log: deps.Logger.With().
			Str("component", "workflow").
			Str("item_id", itemID).
			Str("match_id", matchID).
			Logger(),
		ctx:    ctx,
		cancel: cancel,
		step:   StepReview,
		method: model.ContactEmail,
	}
}

// Load fetches both items and the similarity between them. A cancelled
// fetch leaves the guard pending and reports nothing.
func (s *Session) Load(ctx context.Context) Guard {
	if s.itemID == "" || s.matchID == "" {
		return s.setGuard(GuardMissingIDs)
	}

	ctx, done := s.bind(ctx)
	defer done()

	item, err := s.deps.Items.GetItemByID(ctx, s.itemID)
	if err != nil {
		return s.setGuard(s.fetchGuard(ctx, err))
	}
	match, err := s.deps.Items.GetItemByID(ctx, s.matchID)
	if err != nil {
		return s.setGuard(s.fetchGuard(ctx, err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.item, s.match = item, match
	if r, ok := item.FindMatch(s.matchID); ok {
		s.result = &r
	}

	if item.IsResolved || match.IsResolved {
		s.guard = GuardAlreadyResolved
	} else {
		s.guard = GuardReady
	}
	return s.guard
}

func (s *Session) fetchGuard(ctx context.Context, err error) Guard {
	switch {
	case api.IsCanceled(err) || ctx.Err() != nil:
		return GuardPending
	case errors.Is(err, items.ErrItemNotFound):
		return GuardNotFound
	default:
		s.log.Error().Err(err).Msg("loading match items")
		return GuardError
	}
}

func (s *Session) setGuard(g Guard) Guard {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guard = g
	return g
}

// Next advances one step. It does nothing until both items loaded and are
// unresolved, at step 2 while the contact details are blank, and past step 3.
func (s *Session) Next() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.canAdvanceLocked() {
		return false
	}
	s.step++
	return true
}

// Back returns one step. It does nothing at step 1, after success, or while
// a submission is in flight.
func (s *Session) Back() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.step <= StepReview || s.step == StepDone || s.state == SubmitSubmitting {
		return false
	}
	s.step--
	return true
}

// CanAdvance reports whether Next would move forward.
func (s *Session) CanAdvance() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canAdvanceLocked()
}

func (s *Session) canAdvanceLocked() bool {
	if s.guard != GuardReady {
		return false
	}
	switch s.step {
	case StepReview:
		return true
	case StepContact:
		return strings.TrimSpace(s.details) != ""
	default:
		return false
	}
}

// SetContactMethod selects how the other party should reach the user.
func (s *Session) SetContactMethod(m model.ContactMethod) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.method = m
}

// SetContactDetails sets the phone number, address or other handle.
func (s *Session) SetContactDetails(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.details = v
}

// SetMessage sets the optional note to the other party.
func (s *Session) SetMessage(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = v
}

// CanSubmit reports whether Submit would start a delivery.
func (s *Session) CanSubmit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step == StepConfirm && s.guard == GuardReady &&
		(s.state == SubmitIdle || s.state == SubmitFailed)
}

// Submit sends the contact details to the owner of the other item. Only one
// delivery may be in flight, and none after a success. On failure the
// session stays at the confirm step and Submit may be called again. A
// cancelled delivery returns to idle and yields an error matching
// api.ErrCanceled.
func (s *Session) Submit(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.state == SubmitSucceeded || s.step == StepDone:
		s.mu.Unlock()
		return ErrAlreadySubmitted
	case s.state == SubmitSubmitting:
		s.mu.Unlock()
		return ErrSubmitInFlight
	case s.step != StepConfirm:
		s.mu.Unlock()
		return ErrNotAtConfirm
	case s.guard != GuardReady || s.item == nil || s.match == nil:
		s.mu.Unlock()
		return ErrNotReady
	}

	user, err := s.deps.Identity.CurrentUser()
	if err != nil {
		s.state = SubmitFailed
		s.submitErr = err
		s.mu.Unlock()
		return fmt.Errorf("resolving current user: %w", err)
	}

	out := s.outboundLocked(user)
	s.state = SubmitSubmitting
	s.submitErr = nil
	s.mu.Unlock()

	ctx, done := s.bind(ctx)
	defer done()

	err = s.deps.Delivery.SendNotification(ctx, out)

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case err == nil:
		s.state = SubmitSucceeded
		s.step = StepDone
		s.log.Info().Str("to", out.UserID).Int("score", out.Data.Score).Msg("match confirmed")
		return nil
	case api.IsCanceled(err) || ctx.Err() != nil:
		s.state = SubmitIdle
		return fmt.Errorf("submitting confirmation: %w", api.ErrCanceled)
	default:
		s.state = SubmitFailed
		s.submitErr = err
		s.log.Error().Err(err).Msg("sending contact notification")
		return err
	}
}

// outboundLocked builds the delivery addressed to the counter-party.
func (s *Session) outboundLocked(user model.User) model.OutboundNotification {
	item, match := s.item, s.match

	to := item.Owner
	if item.Owner == user.ID {
		to = match.Owner
	}

	score := 0
	if s.result != nil {
		score = s.result.Percent()
	}

	return model.OutboundNotification{
		UserID:  to,
		Type:    model.OutboundMatchContact,
		Title:   contactTitle,
		Message: fmt.Sprintf(contactMessageFormat, s.details, s.method),
		Data: model.ContactPayload{
			MatchPayload: model.MatchPayload{
				ItemID:           item.ID,
				MatchID:          match.ID,
				ItemName:         item.Name,
				MatchName:        match.Name,
				ItemImage:        item.ImgURL,
				MatchImage:       match.ImgURL,
				ItemDescription:  item.Description,
				MatchDescription: match.Description,
				ItemCategory:     item.Category,
				MatchCategory:    match.Category,
				ItemDate:         item.Date,
				MatchDate:        match.Date,
				ItemLocation:     item.Location.PayloadString(),
				MatchLocation:    match.Location.PayloadString(),
				OwnerName:        item.OwnerName,
				OwnerEmail:       item.OwnerEmail,
				Score:            score,
			},
			ContactMethod:  s.method,
			ContactDetails: s.details,
			Message:        s.message,
			FromUserID:     user.ID,
			FromUserName:   user.Email,
		},
	}
}

// Teardown cancels any fetch or delivery started by the session.
func (s *Session) Teardown() {
	s.cancel()
}

// bind derives a context that is also cancelled by Teardown.
func (s *Session) bind(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Snapshot is a consistent view of the session for rendering.
type Snapshot struct {
	ItemID         string
	MatchID        string
	Guard          Guard
	Item           *model.Item
	Match          *model.Item
	Score          int
	Step           Step
	ContactMethod  model.ContactMethod
	ContactDetails string
	Message        string
	State          SubmitState
	Err            error
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	score := 0
	if s.result != nil {
		score = s.result.Percent()
	}
	return Snapshot{
		ItemID:         s.itemID,
		MatchID:        s.matchID,
		Guard:          s.guard,
		Item:           s.item,
		Match:          s.match,
		Score:          score,
		Step:           s.step,
		ContactMethod:  s.method,
		ContactDetails: s.details,
		Message:        s.message,
		State:          s.state,
		Err:            s.submitErr,
	}
}
