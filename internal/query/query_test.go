package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/tourscope/internal/record"
)

func sampleRecords() []record.IndexRecord {
	return []record.IndexRecord{
		{Type: record.TypePanorama, Label: "Grand Lobby", PlaylistOrder: 0},
		{Type: record.TypeHotspot, Label: "Front Desk", Subtitle: "reception", PlaylistOrder: 1},
		{Type: record.TypeVideo, Label: "Welcome Video", Tags: []string{"intro"}, PlaylistOrder: 2},
		{Type: record.Type3DModel, Label: "Scanner", BusinessName: "Acme Scanner Co", PlaylistOrder: 3},
	}
}

func TestQuery_EmptyStringReturnsNoResults(t *testing.T) {
	e := New(sampleRecords(), DefaultOptions())
	assert.Empty(t, e.Query(""))
}

func TestQuery_BelowMinSearchCharsReturnsNoResults(t *testing.T) {
	e := New(sampleRecords(), DefaultOptions())
	assert.Empty(t, e.Query("g"))
}

func TestQuery_StarReturnsEveryRecordUnscored(t *testing.T) {
	e := New(sampleRecords(), DefaultOptions())
	groups := e.Query("*")

	var total int
	for _, g := range groups {
		for _, m := range g.Matches {
			total++
			assert.Equal(t, 0.0, m.Score)
		}
	}
	assert.Equal(t, len(sampleRecords()), total)
}

func TestQuery_ExactPrefixMatchesOnlyIdenticalLabel(t *testing.T) {
	e := New(sampleRecords(), DefaultOptions())
	groups := e.Query("=Grand Lobby")

	require.Len(t, groups, 1)
	require.Len(t, groups[0].Matches, 1)
	assert.Equal(t, "Grand Lobby", groups[0].Matches[0].Record.Label)
}

func TestQuery_ExactPrefixIsCaseInsensitive(t *testing.T) {
	e := New(sampleRecords(), DefaultOptions())
	groups := e.Query("=grand lobby")
	require.Len(t, groups, 1)
}

func TestQuery_FuzzyMatchFindsApproximateLabel(t *testing.T) {
	e := New(sampleRecords(), DefaultOptions())
	groups := e.Query("Lobby")

	var found bool
	for _, g := range groups {
		for _, m := range g.Matches {
			if m.Record.Label == "Grand Lobby" {
				found = true
			}
		}
	}
	assert.True(t, found)
}

func TestQuery_TypeWhitelistFiltersResults(t *testing.T) {
	opts := DefaultOptions()
	opts.TypeWhitelist = []record.Type{record.TypeVideo}
	e := New(sampleRecords(), opts)

	groups := e.Query("*")
	require.Len(t, groups, 1)
	assert.Equal(t, record.TypeVideo, groups[0].Type)
}

func TestQuery_TypeBlacklistExcludesResults(t *testing.T) {
	opts := DefaultOptions()
	opts.TypeBlacklist = []record.Type{record.TypeVideo}
	e := New(sampleRecords(), opts)

	groups := e.Query("*")
	for _, g := range groups {
		assert.NotEqual(t, record.TypeVideo, g.Type)
	}
}

func TestQuery_GroupsOrderedByTypePriorityThenPlaylistOrder(t *testing.T) {
	e := New(sampleRecords(), DefaultOptions())
	groups := e.Query("*")

	require.NotEmpty(t, groups)
	idx := func(t record.Type) int {
		for i, typ := range record.AllTypes {
			if typ == t {
				return i
			}
		}
		return len(record.AllTypes)
	}
	for i := 1; i < len(groups); i++ {
		assert.LessOrEqual(t, idx(groups[i-1].Type), idx(groups[i].Type))
	}
}
