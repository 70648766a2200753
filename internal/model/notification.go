package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type tags a notification and selects the shape of its Data payload.
// The set is open: unknown tags are carried with a GenericPayload.
type Type string

const (
	TypeMatch        Type = "match"
	TypeMatchContact Type = "match_contact"
	TypeGeneric      Type = "generic"
)

// OutboundMatchContact is the type tag the backend expects when a
// confirmed match shares contact details with the counter-party.
const OutboundMatchContact = "MATCH_CONTACT"

// Notification is a single alert shown in the notification feed.
type Notification struct {
	// ID is assigned at creation and never reused.
	ID string

	// Type selects the payload shape.
	Type Type

	Title   string
	Message string

	// Data is nil or a payload matching Type.
	Data Payload

	// Read is only ever flipped to true by mark-as-read operations.
	Read bool

	// CreatedAt is immutable and stored in UTC.
	CreatedAt time.Time
}

// NewNotification builds an unread notification with a fresh id.
func NewNotification(t Type, title, message string, data Payload) Notification {
	return Notification{
		ID:        uuid.New().String(),
		Type:      t,
		Title:     title,
		Message:   message,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}
}

// Match returns the match payload when the notification carries one.
// match_contact payloads embed the match fields and are returned too.
func (n Notification) Match() (MatchPayload, bool) {
	switch p := n.Data.(type) {
	case MatchPayload:
		return p, true
	case ContactPayload:
		return p.MatchPayload, true
	default:
		return MatchPayload{}, false
	}
}

// Score returns the match confidence, or -1 when there is none.
func (n Notification) Score() int {
	if mp, ok := n.Match(); ok {
		return mp.Score
	}
	return -1
}

// notificationJSON is the persisted and wire form, using the field names
// of the web client so that existing durable slots stay readable.
type notificationJSON struct {
	ID        string          `json:"id"`
	Type      Type            `json:"type"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data,omitempty"`
	Read      bool            `json:"read"`
	CreatedAt time.Time       `json:"createdAt"`
}

// MarshalJSON encodes the notification with its payload under "data".
func (n Notification) MarshalJSON() ([]byte, error) {
	out := notificationJSON{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
	if n.Data != nil {
		raw, err := json.Marshal(n.Data)
		if err != nil {
			return nil, fmt.Errorf("marshaling %s payload: %w", n.Type, err)
		}
		out.Data = raw
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes "data" according to "type".
func (n *Notification) UnmarshalJSON(b []byte) error {
	var in notificationJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}

	payload, err := decodePayload(in.Type, in.Data)
	if err != nil {
		return fmt.Errorf("notification %s: %w", in.ID, err)
	}

	*n = Notification{
		ID:        in.ID,
		Type:      in.Type,
		Title:     in.Title,
		Message:   in.Message,
		Data:      payload,
		Read:      in.Read,
		CreatedAt: in.CreatedAt.UTC(),
	}
	return nil
}
