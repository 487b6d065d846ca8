package engine

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/tourscope/internal/config"
	"github.com/tomtom215/tourscope/internal/engineerr"
	"github.com/tomtom215/tourscope/internal/navigate"
	"github.com/tomtom215/tourscope/internal/record"
	"github.com/tomtom215/tourscope/internal/tour"
)

// manySheetsRowsFetcher serves a CSV past datasource.ProgressiveRowThreshold,
// every row tagged with an ElementType a lightweight projection would
// strip (spec §4.D).
type manySheetsRowsFetcher struct{}

func (manySheetsRowsFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	var b strings.Builder
	b.WriteString("id,tag,name,description,imageUrl,elementType,parentId\n")
	for i := 1; i <= 25; i++ {
		fmt.Fprintf(&b, "r%d,t%d,Name%d,,,Video,\n", i, i, i)
	}
	return []byte(b.String()), nil
}

func fakeTourWithLobby() *tour.Fake {
	f := tour.NewFake()
	f.MainItems = []tour.Item{
		{
			ID:    "media-1",
			Class: "PanoramaPlayListItem",
			Media: tour.Media{ID: "media-1", Data: map[string]any{"label": "Grand Lobby"}},
		},
	}
	return f
}

func TestEngine_QueryBeforeLoadReturnsNil(t *testing.T) {
	e := Create(config.Default(), nil)
	assert.Nil(t, e.Query("lobby"))
}

func TestEngine_ActivateBeforeLoadReturnsTourNotReady(t *testing.T) {
	e := Create(config.Default(), nil)
	outcome, err := e.Activate(context.Background(), record.IndexRecord{})
	assert.Equal(t, navigate.Failed, outcome)
	assert.True(t, engineerr.Is(err, engineerr.KindTourNotReady))
}

func TestEngine_LoadBuildsQueryableIndex(t *testing.T) {
	e := Create(config.Default(), nil)
	defer e.Destroy()

	err := e.Load(context.Background(), fakeTourWithLobby())
	require.NoError(t, err)

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

func TestEngine_ActivateAfterLoadDispatchesToAdapter(t *testing.T) {
	f := fakeTourWithLobby()
	e := Create(config.Default(), nil)
	defer e.Destroy()

	require.NoError(t, e.Load(context.Background(), f))

	idx := 0
	outcome, err := e.Activate(context.Background(), record.IndexRecord{Type: record.TypePanorama, Index: &idx})
	require.NoError(t, err)
	assert.Equal(t, navigate.Triggered, outcome)
	assert.Equal(t, 0, f.SelectedIndex["main"])
}

func TestEngine_UpdateWithNoEffectiveChangeSkipsRebuild(t *testing.T) {
	e := Create(config.Default(), nil)
	defer e.Destroy()
	require.NoError(t, e.Load(context.Background(), fakeTourWithLobby()))

	before := e.Query("Lobby")

	err := e.Update(context.Background(), map[string]any{
		"appearance": map[string]any{"theme": "auto"},
	})
	require.NoError(t, err)

	after := e.Query("Lobby")
	assert.Equal(t, len(before), len(after))
}

func TestEngine_UpdateWithEffectiveChangeRebuildsIndex(t *testing.T) {
	e := Create(config.Default(), nil)
	defer e.Destroy()
	require.NoError(t, e.Load(context.Background(), fakeTourWithLobby()))

	err := e.Update(context.Background(), map[string]any{
		"filter": map[string]any{
			"value_blacklist": []any{"Grand Lobby"},
		},
	})
	require.NoError(t, err)

	groups := e.Query("Lobby")
	for _, g := range groups {
		for _, m := range g.Matches {
			assert.NotEqual(t, "Grand Lobby", m.Record.Label)
		}
	}
}

func TestEngine_UpdateInvalidPartialReturnsConfigurationError(t *testing.T) {
	e := Create(config.Default(), nil)
	defer e.Destroy()

	err := e.Update(context.Background(), map[string]any{
		"appearance": map[string]any{"theme": "neon"},
	})
	assert.Error(t, err)
}

func TestEngine_ProgressiveSheetsLoad_ServesLightweightProjectionImmediately(t *testing.T) {
	cfg := config.Default()
	cfg.GoogleSheets.Enabled = true
	cfg.GoogleSheets.Source = "sheet.csv"
	cfg.GoogleSheets.IncludeStandaloneEntries = true
	cfg.GoogleSheets.ReplaceElementTypeSheets = true

	e := Create(cfg, manySheetsRowsFetcher{})
	defer e.Destroy()
	require.NoError(t, e.Load(context.Background(), tour.NewFake()))

	groups := e.Query("Name1")
	require.NotEmpty(t, groups)
	for _, g := range groups {
		for _, m := range g.Matches {
			assert.Equal(t, record.TypeElement, m.Record.Type,
				"lightweight projection strips elementType, so it should fall back to the Element default")
		}
	}
}

func TestEngine_DiagnosticsReflectMostRecentBuild(t *testing.T) {
	e := Create(config.Default(), nil)
	defer e.Destroy()
	require.NoError(t, e.Load(context.Background(), fakeTourWithLobby()))
	assert.NotNil(t, e.Diagnostics())
}
