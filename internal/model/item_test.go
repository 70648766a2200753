package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocation_Forms(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		display string
		payload string
	}{
		{name: "text", raw: `"Main library"`, display: "Main library", payload: "Main library"},
		{name: "coordinates", raw: `{"lat":40.7128,"lng":-74.006}`, display: "Lat: 40.7128, Lng: -74.0060", payload: `{"lat":40.7128,"lng":-74.006}`},
		{name: "null", raw: `null`, display: "", payload: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var it Item
			require.NoError(t, json.Unmarshal([]byte(`{"_id":"x","location":`+tt.raw+`}`), &it))
			assert.Equal(t, tt.display, it.Location.String())
			assert.Equal(t, tt.payload, it.Location.PayloadString())
		})
	}
}

func TestMatchResult_Percent(t *testing.T) {
	assert.Equal(t, 88, MatchResult{Similarity: 0.876}.Percent())
	assert.Equal(t, 100, MatchResult{Similarity: 1}.Percent())
	assert.Equal(t, 0, MatchResult{}.Percent())
}

func TestItem_FindMatch(t *testing.T) {
	it := Item{MatchResults: []MatchResult{{MatchedItemID: "b", Similarity: 0.5}}}

	r, ok := it.FindMatch("b")
	require.True(t, ok)
	assert.Equal(t, 50, r.Percent())

	_, ok = it.FindMatch("c")
	assert.False(t, ok)
}
