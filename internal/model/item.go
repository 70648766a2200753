package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// ItemType tells whether an item was reported lost or found.
type ItemType string

const (
	ItemLost  ItemType = "lost"
	ItemFound ItemType = "found"
)

// MatchResult is one candidate produced by the external matcher.
type MatchResult struct {
	MatchedItemID string `json:"matchedItemId"`

	// Similarity is in [0, 1].
	Similarity float64 `json:"similarity"`
}

// Percent returns the similarity as a whole percentage.
func (m MatchResult) Percent() int {
	return int(math.Round(m.Similarity * 100))
}

// Item is a lost or found report as returned by the item service.
type Item struct {
	ID           string        `json:"_id"`
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	Category     string        `json:"category"`
	Location     Location      `json:"location"`
	Date         string        `json:"date"`
	ImgURL       string        `json:"imgURL"`
	Owner        string        `json:"owner"`
	OwnerName    string        `json:"ownerName"`
	OwnerEmail   string        `json:"ownerEmail"`
	ItemType     ItemType      `json:"itemType"`
	IsResolved   bool          `json:"isResolved"`
	MatchResults []MatchResult `json:"matchResults"`
}

// FindMatch returns the match result pointing at matchID.
func (it *Item) FindMatch(matchID string) (MatchResult, bool) {
	for _, m := range it.MatchResults {
		if m.MatchedItemID == matchID {
			return m, true
		}
	}
	return MatchResult{}, false
}

// Location is either free text or a coordinate pair.
type Location struct {
	Text string
	Lat  *float64
	Lng  *float64
}

type coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsZero reports whether no location was given.
func (l Location) IsZero() bool {
	return l.Text == "" && (l.Lat == nil || l.Lng == nil)
}

// String renders the location for display.
func (l Location) String() string {
	if l.Text != "" {
		return l.Text
	}
	if l.Lat != nil && l.Lng != nil {
		return fmt.Sprintf("Lat: %.4f, Lng: %.4f", *l.Lat, *l.Lng)
	}
	return ""
}

// PayloadString renders the location the way notification payloads
// carry it: text as is, coordinates as a compact JSON object.
func (l Location) PayloadString() string {
	if l.Text != "" {
		return l.Text
	}
	if l.Lat != nil && l.Lng != nil {
		raw, err := json.Marshal(coordinates{Lat: *l.Lat, Lng: *l.Lng})
		if err == nil {
			return string(raw)
		}
	}
	return ""
}

// MarshalJSON writes a string or a {lat,lng} object.
func (l Location) MarshalJSON() ([]byte, error) {
	if l.Text == "" && l.Lat != nil && l.Lng != nil {
		return json.Marshal(coordinates{Lat: *l.Lat, Lng: *l.Lng})
	}
	return json.Marshal(l.Text)
}

// UnmarshalJSON accepts a string, a {lat,lng} object or null.
func (l *Location) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*l = Location{}
		return nil
	}

	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = Location{Text: s}
		return nil
	}

	var c coordinates
	if err := json.Unmarshal(b, &c); err != nil {
		return fmt.Errorf("decoding location: %w", err)
	}
	*l = Location{Lat: &c.Lat, Lng: &c.Lng}
	return nil
}
