package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTargetArea(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		want   float64
		ok     bool
	}{
		{"plain m2", "a 10,000 m² hotel by the lake", 10000, true},
		{"sqm suffix", "roughly 4500 sqm of offices", 4500, true},
		{"k shorthand", "a 12k sqm school", 12000, true},
		{"spelled out", "350 square meters of retail", 350, true},
		{"sq m with dot", "about 2,400 sq. m total", 2400, true},
		{"bare number is not an area", "make 5000 of them", 0, false},
		{"no figure at all", "a cosy hotel in the alps", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseTargetArea(tt.prompt)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}

func TestDecodeProgramJSON(t *testing.T) {
	t.Run("plain object", func(t *testing.T) {
		raw := `{
			"targetTotal": 10000,
			"typology": "hotel",
			"areas": [
				{"name": "Rooms", "ratio": 0.6, "count": 120},
				{"name": "Lobby", "fixedArea": 400},
				{"name": "Restaurant"}
			],
			"groups": [{"name": "Front of house", "color": "#4caf50", "members": ["Lobby", "Restaurant"]}]
		}`
		it, err := decodeProgramJSON(raw)
		require.NoError(t, err)
		assert.Equal(t, 10000.0, it.TargetTotal)
		assert.Equal(t, "hotel", it.Typology)
		require.Len(t, it.Entries, 3)

		assert.True(t, it.Entries[0].HasRatio)
		assert.Equal(t, 0.6, it.Entries[0].Ratio)
		assert.Equal(t, 120, it.Entries[0].Count)
		assert.False(t, it.Entries[0].HasFixedArea)

		assert.True(t, it.Entries[1].HasFixedArea)
		assert.Equal(t, 400.0, it.Entries[1].FixedArea)
		assert.False(t, it.Entries[1].HasRatio)

		// No ratio and no fixed area means an equal share downstream.
		assert.False(t, it.Entries[2].HasRatio)
		assert.False(t, it.Entries[2].HasFixedArea)

		require.Len(t, it.Groups, 1)
		assert.Equal(t, []string{"Lobby", "Restaurant"}, it.Groups[0].Members)
	})

	t.Run("zero ratio is still explicit", func(t *testing.T) {
		it, err := decodeProgramJSON(`{"areas": [{"name": "A", "ratio": 0}, {"name": "B"}]}`)
		require.NoError(t, err)
		assert.True(t, it.Entries[0].HasRatio)
		assert.Equal(t, 0.0, it.Entries[0].Ratio)
	})

	t.Run("fenced output is tolerated", func(t *testing.T) {
		raw := "```json\n{\"targetTotal\": 500, \"areas\": [{\"name\": \"Hall\"}]}\n```"
		it, err := decodeProgramJSON(raw)
		require.NoError(t, err)
		assert.Equal(t, 500.0, it.TargetTotal)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		_, err := decodeProgramJSON(`{"areas": [`)
		assert.ErrorContains(t, err, "malformed program JSON")
	})

	t.Run("no areas", func(t *testing.T) {
		_, err := decodeProgramJSON(`{"targetTotal": 1000, "areas": []}`)
		assert.ErrorContains(t, err, "no area entries")
	})

	t.Run("nameless group is dropped", func(t *testing.T) {
		it, err := decodeProgramJSON(`{"areas": [{"name": "A"}], "groups": [{"name": "  "}]}`)
		require.NoError(t, err)
		assert.Empty(t, it.Groups)
	})
}

func TestDecodeSplitJSON(t *testing.T) {
	t.Run("carries the source node", func(t *testing.T) {
		it, err := decodeSplitJSON(`{"areas": [{"name": "Check-in", "ratio": 0.3}, {"name": "Waiting"}]}`, "n1")
		require.NoError(t, err)
		assert.Equal(t, "n1", it.SourceNodeID)
		assert.Len(t, it.Entries, 2)
	})

	t.Run("one sub-area is not a split", func(t *testing.T) {
		_, err := decodeSplitJSON(`{"areas": [{"name": "Everything"}]}`, "n1")
		assert.ErrorContains(t, err, "at least two")
	})
}
