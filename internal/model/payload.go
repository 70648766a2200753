package model

import (
	"encoding/json"
	"fmt"
)

// Payload is the per-type data attached to a notification.
type Payload interface {
	payloadType() Type
}

// MatchPayload describes a candidate pairing of two items.
type MatchPayload struct {
	ItemID           string `json:"itemId"`
	MatchID          string `json:"matchId"`
	ItemName         string `json:"itemName,omitempty"`
	MatchName        string `json:"matchName,omitempty"`
	ItemImage        string `json:"itemImage,omitempty"`
	MatchImage       string `json:"matchImage,omitempty"`
	ItemDescription  string `json:"itemDescription,omitempty"`
	MatchDescription string `json:"matchDescription,omitempty"`
	ItemCategory     string `json:"itemCategory,omitempty"`
	MatchCategory    string `json:"matchCategory,omitempty"`
	ItemDate         string `json:"itemDate,omitempty"`
	MatchDate        string `json:"matchDate,omitempty"`
	ItemLocation     string `json:"itemLocation,omitempty"`
	MatchLocation    string `json:"matchLocation,omitempty"`
	OwnerName        string `json:"ownerName,omitempty"`
	OwnerEmail       string `json:"ownerEmail,omitempty"`

	// Score is the match confidence as a whole percentage (0-100).
	Score int `json:"score"`
}

func (MatchPayload) payloadType() Type { return TypeMatch }

// ContactPayload is a match on which the other party has shared
// contact details.
type ContactPayload struct {
	MatchPayload

	ContactMethod  ContactMethod `json:"contactMethod"`
	ContactDetails string        `json:"contactDetails"`
	Message        string        `json:"message"`
	FromUserID     string        `json:"fromUserId"`
	FromUserName   string        `json:"fromUserName"`
}

func (ContactPayload) payloadType() Type { return TypeMatchContact }

// GenericPayload carries the data of any type without a dedicated shape.
type GenericPayload map[string]any

func (GenericPayload) payloadType() Type { return TypeGeneric }

// ContactMethod is how the confirming user wants to be reached.
type ContactMethod string

const (
	ContactEmail ContactMethod = "email"
	ContactPhone ContactMethod = "phone"
	ContactOther ContactMethod = "other"
)

// ContactMethods lists the methods in display order.
var ContactMethods = []ContactMethod{ContactEmail, ContactPhone, ContactOther}

// decodePayload picks the payload shape for t.
func decodePayload(t Type, raw json.RawMessage) (Payload, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	switch t {
	case TypeMatch:
		var p MatchPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decoding match payload: %w", err)
		}
		return p, nil
	case TypeMatchContact:
		var p ContactPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decoding match_contact payload: %w", err)
		}
		return p, nil
	default:
		var p GenericPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decoding %s payload: %w", t, err)
		}
		return p, nil
	}
}
