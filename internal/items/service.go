package items

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/nhle/lostfound/internal/api"
	"github.com/nhle/lostfound/internal/model"
)

// ErrItemNotFound is returned when the backend has no item for an id.
var ErrItemNotFound = errors.New("item not found")

// Requester is the subset of api.Client used by Service.
type Requester interface {
	Get(ctx context.Context, path string, result any) error
	Post(ctx context.Context, path string, body, result any) error
	Put(ctx context.Context, path string, body, result any) error
}

// Service talks to the item and notification endpoints of the backend.
type Service struct {
	api      Requester
	validate *validator.Validate
	log      zerolog.Logger
}

// NewService creates an item service on top of an authenticated client.
func NewService(r Requester, logger zerolog.Logger) *Service {
	return &Service{
		api:      r,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      logger.With().Str("component", "items").Logger(),
	}
}

// GetItemByID fetches a single item. A 404 or an empty body yields
// ErrItemNotFound.
func (s *Service) GetItemByID(ctx context.Context, id string) (*model.Item, error) {
	var item model.Item
	err := s.api.Get(ctx, "/items/"+url.PathEscape(id), &item)
	if api.IsStatus(err, http.StatusNotFound) {
		return nil, fmt.Errorf("item %s: %w", id, ErrItemNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching item %s: %w", id, err)
	}
	if item.ID == "" {
		return nil, fmt.Errorf("item %s: %w", id, ErrItemNotFound)
	}
	return &item, nil
}

// GetItemsByUser lists the items reported by a user.
func (s *Service) GetItemsByUser(ctx context.Context, userID string) ([]model.Item, error) {
	var items []model.Item
	if err := s.api.Get(ctx, "/items/user/"+url.PathEscape(userID), &items); err != nil {
		return nil, fmt.Errorf("fetching items for user %s: %w", userID, err)
	}
	return items, nil
}

// SendNotification delivers a notification to another user.
func (s *Service) SendNotification(ctx context.Context, n model.OutboundNotification) error {
	if err := s.validate.Struct(n); err != nil {
		return fmt.Errorf("invalid notification: %w", err)
	}

	if err := s.api.Post(ctx, "/items/notifications", n, nil); err != nil {
		return fmt.Errorf("sending notification to %s: %w", n.UserID, err)
	}

	s.log.Info().
		Str("user_id", n.UserID).
		Str("type", n.Type).
		Msg("notification delivered")
	return nil
}

// AcknowledgeRead tells the backend a notification was read locally.
func (s *Service) AcknowledgeRead(ctx context.Context, notificationID string) error {
	path := fmt.Sprintf("/items/notifications/%s/read", url.PathEscape(notificationID))
	if err := s.api.Put(ctx, path, nil, nil); err != nil {
		return fmt.Errorf("acknowledging notification %s: %w", notificationID, err)
	}
	return nil
}
