package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/tourscope/internal/record"
)

func TestPipeline_EmptyListsAreNoOps(t *testing.T) {
	p := New(DefaultConfig())
	d := p.Evaluate(Candidate{Type: record.TypeHotspot, Label: "anything"})
	assert.False(t, d.Rejected)
}

func TestPipeline_StageOrder_FirstRejectionWins(t *testing.T) {
	// SkipEmptyLabels (stage 1) should fire before the type toggle
	// (stage 6) even though both would reject this candidate.
	cfg := DefaultConfig()
	cfg.SkipEmptyLabels = true
	cfg.TypeToggles[record.TypeHotspot] = false
	p := New(cfg)

	d := p.Evaluate(Candidate{Type: record.TypeHotspot, Label: ""})
	require.True(t, d.Rejected)
	assert.Equal(t, "empty_label", d.Stage)
}

func TestPipeline_ValueFilter_WhitelistRejectsUnlisted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Value = ValueFilter{Mode: ModeWhitelist, Values: []string{"Lobby"}}
	p := New(cfg)

	d := p.Evaluate(Candidate{Label: "Kitchen"})
	require.True(t, d.Rejected)
	assert.Equal(t, "value_filter", d.Stage)

	d = p.Evaluate(Candidate{Label: "Lobby"})
	assert.False(t, d.Rejected)
}

func TestPipeline_TagFilter_WhitelistRequiresAtLeastOneTag(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tag = TagFilter{Mode: ModeWhitelist, Values: []string{"featured"}}
	p := New(cfg)

	d := p.Evaluate(Candidate{Label: "x", Tags: nil})
	require.True(t, d.Rejected)
	assert.Equal(t, "tag_filter", d.Stage)

	d = p.Evaluate(Candidate{Label: "x", Tags: []string{"featured"}})
	assert.False(t, d.Rejected)
}

func TestPipeline_TypeToggle_DisabledTypeRejected(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TypeToggles[record.TypeVideo] = false
	p := New(cfg)

	d := p.Evaluate(Candidate{Type: record.TypeVideo, Label: "clip"})
	require.True(t, d.Rejected)
	assert.Equal(t, "type_toggle", d.Stage)
}

func TestPipeline_BlankPolicy_Variants(t *testing.T) {
	cfg := DefaultConfig()
	p := New(cfg)

	d := p.Evaluate(Candidate{})
	require.True(t, d.Rejected)
	assert.Equal(t, "completely_blank", d.Stage)

	cfg.UnlabeledWithSubtitles = true
	p = New(cfg)
	d = p.Evaluate(Candidate{Subtitle: "only a subtitle"})
	assert.False(t, d.Rejected)

	d = p.Evaluate(Candidate{Tags: []string{"only-a-tag"}})
	require.True(t, d.Rejected)
	assert.Equal(t, "unlabeled_with_tags", d.Stage)
}

func TestPipeline_MediaIndexFilter_GatesPanoramaOnly(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MediaIndex = MediaIndexFilter{Mode: ModeBlacklist, Indexes: []int{2}}
	p := New(cfg)

	blocked := 2
	d := p.Evaluate(Candidate{Label: "x", MediaIndex: &blocked})
	require.True(t, d.Rejected)
	assert.Equal(t, "media_index", d.Stage)

	allowed := 5
	d = p.Evaluate(Candidate{Label: "x", MediaIndex: &allowed})
	assert.False(t, d.Rejected)

	// Non-panorama candidates (MediaIndex nil) are never gated.
	d = p.Evaluate(Candidate{Label: "x"})
	assert.False(t, d.Rejected)
}

func TestNormalizeList_TrimsDedupesDropsEmpty(t *testing.T) {
	got := NormalizeList([]string{" Lobby ", "lobby", "", "  ", "Kitchen"})
	assert.Equal(t, []string{"Lobby", "Kitchen"}, got)
}
