package label

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tomtom215/tourscope/internal/record"
)

func TestResolve_PreferenceOrder(t *testing.T) {
	idx := 2
	ctxWithIndex := Context{Type: record.TypeHotspot, Index: &idx}
	ctxNoIndex := Context{Type: record.TypeHotspot}

	cases := []struct {
		name    string
		lbl     string
		sub     string
		tags    []string
		ctx     Context
		opts    Options
		want    string
	}{
		{
			name: "onlySubtitles short-circuits everything else",
			lbl:  "Real Label", sub: "Sub Text",
			opts: Options{OnlySubtitles: true},
			want: "Sub Text",
		},
		{
			name: "non-empty label wins over onlySubtitles when subtitle empty",
			lbl:  "Real Label", sub: "  ",
			opts: Options{OnlySubtitles: true},
			want: "Real Label",
		},
		{
			name: "trimmed label used directly",
			lbl:  "  Padded  ",
			want: "Padded",
		},
		{
			name: "falls back to subtitle when UseSubtitles set",
			sub:  "Subtitle Value",
			opts: Options{UseSubtitles: true},
			want: "Subtitle Value",
		},
		{
			name: "falls back to joined tags when UseTags set",
			tags: []string{"alpha", " ", "beta"},
			opts: Options{UseTags: true},
			want: "alpha, beta",
		},
		{
			name: "falls back to type+index when UseElementType set and index present",
			ctx:  ctxWithIndex,
			opts: Options{UseElementType: true},
			want: "Hotspot 3",
		},
		{
			name: "falls back to bare type when UseElementType set and no index",
			ctx:  ctxNoIndex,
			opts: Options{UseElementType: true},
			want: "Hotspot",
		},
		{
			name: "falls back to custom text as last resort",
			opts: Options{CustomText: "Untitled"},
			want: "Untitled",
		},
		{
			name: "falls back to the builtin default when nothing else is configured",
			want: "[Unnamed Item]",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Resolve(tc.lbl, tc.sub, tc.tags, tc.ctx, tc.opts)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolve_NeverReturnsEmptyString(t *testing.T) {
	got := Resolve("", "", nil, Context{}, Options{})
	assert.NotEmpty(t, got)
}
