package entity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLabelCounts_FirstSeenOrder(t *testing.T) {
	var c LabelCounts
	for _, l := range []string{"Red Chip", "Blue Chip", "Red Chip", "Green Chip", "Blue Chip", "Red Chip"} {
		c.Inc(l)
	}

	require.Equal(t, []string{"Red Chip", "Blue Chip", "Green Chip"}, c.Labels())
	require.Equal(t, 3, c.Get("Red Chip"))
	require.Equal(t, 0, c.Get("White Chip"))
	require.False(t, c.Has("White Chip"))
	require.Equal(t, 6, c.Total())

	raw, err := json.Marshal(&c)
	require.NoError(t, err)
	require.Equal(t, `{"Red Chip":3,"Blue Chip":2,"Green Chip":1}`, string(raw))
}

func TestLabelCounts_UnmarshalKeepsOrder(t *testing.T) {
	var c LabelCounts
	require.NoError(t, json.Unmarshal([]byte(`{"b":1,"a":2}`), &c))
	require.Equal(t, []string{"b", "a"}, c.Labels())

	raw, err := json.Marshal(&c)
	require.NoError(t, err)
	require.Equal(t, `{"b":1,"a":2}`, string(raw))

	require.Error(t, json.Unmarshal([]byte(`{"a":0}`), &c))
	require.Error(t, json.Unmarshal([]byte(`[1]`), &c))
}

func TestLabelCounts_EmptyIsObject(t *testing.T) {
	raw, err := json.Marshal(NewLabelCounts())
	require.NoError(t, err)
	require.Equal(t, `{}`, string(raw))
}
