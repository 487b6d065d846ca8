// Package label implements the Label Resolver (spec §4.B): an ordered
// preference-rule resolver from (label, subtitle, tags, context) to a
// non-empty display string. Like the Type Classifier it is a pure,
// hand-rolled decision chain — the same justification as
// internal/taxonomy applies here (no pack library models this exact
// contract; it is spec-defined control flow, not a search/format
// concern a library would own).
package label

import (
	"fmt"
	"strings"

	"github.com/tomtom215/tourscope/internal/record"
)

// Options controls which of the fallback rules in spec §4.B are
// active; these mirror the Configuration Core's displayLabels /
// useAsLabel settings.
type Options struct {
	OnlySubtitles    bool
	UseSubtitles     bool // useAsLabel.subtitles
	UseTags          bool // useAsLabel.tags
	UseElementType   bool // useAsLabel.elementType
	CustomText       string
}

// DefaultOptions returns the spec's documented defaults.
func DefaultOptions() Options {
	return Options{CustomText: "[Unnamed Item]"}
}

// Context carries the type/index info rule 5 needs.
type Context struct {
	Type  record.Type
	Index *int // nil means "no index"
}

// Resolve returns a non-empty display string for the given inputs,
// applying the first true rule from spec §4.B in order:
//  1. onlySubtitles && subtitle non-empty -> subtitle
//  2. non-empty label (trimmed)
//  3. useAsLabel.subtitles && subtitle non-empty -> subtitle
//  4. useAsLabel.tags && tags non-empty -> joined tags
//  5. useAsLabel.elementType -> "{type} {index+1}" or "{type}"
//  6. opts.CustomText (default "[Unnamed Item]")
//
// Resolve never returns an empty string (spec §8 invariant 3).
func Resolve(lbl, subtitle string, tags []string, ctx Context, opts Options) string {
	trimmedSubtitle := strings.TrimSpace(subtitle)
	if opts.OnlySubtitles && trimmedSubtitle != "" {
		return trimmedSubtitle
	}

	trimmedLabel := strings.TrimSpace(lbl)
	if trimmedLabel != "" {
		return trimmedLabel
	}

	if opts.UseSubtitles && trimmedSubtitle != "" {
		return trimmedSubtitle
	}

	if opts.UseTags && len(nonEmptyTags(tags)) > 0 {
		return strings.Join(nonEmptyTags(tags), ", ")
	}

	if opts.UseElementType {
		if ctx.Index != nil {
			return fmt.Sprintf("%s %d", ctx.Type, *ctx.Index+1)
		}
		return string(ctx.Type)
	}

	if opts.CustomText != "" {
		return opts.CustomText
	}
	return "[Unnamed Item]"
}

func nonEmptyTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
