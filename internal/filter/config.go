// Package filter implements the Filter Pipeline (spec §4.C): an
// ordered sequence of inclusion/exclusion stages, any rejection
// short-circuiting the rest. Every stage compares normalized strings
// (internal/normalize) and reports its decision through a Decision
// log the caller can route to logging.Debug() or the diagnostics ring
// buffer (SPEC_FULL.md §4).
package filter

import "github.com/tomtom215/tourscope/internal/record"

// MatchMode is shared by every list-based filter stage.
type MatchMode string

const (
	MatchExact      MatchMode = "exact"
	MatchContains   MatchMode = "contains"
	MatchStartsWith MatchMode = "startsWith"
	MatchRegex      MatchMode = "regex"
)

// ListFilterMode selects whitelist/blacklist/none behavior.
type ListFilterMode string

const (
	ModeNone      ListFilterMode = "none"
	ModeWhitelist ListFilterMode = "whitelist"
	ModeBlacklist ListFilterMode = "blacklist"
)

// ValueFilter is the top-level value filter (spec §4.C stage 2).
type ValueFilter struct {
	Mode   ListFilterMode
	Values []string
	// MatchMode defaults to "exact" for whitelist, "contains" for
	// blacklist when left empty (spec §4.C stage 2).
	MatchMode MatchMode
}

func (f ValueFilter) effectiveMatchMode() MatchMode {
	if f.MatchMode != "" {
		return f.MatchMode
	}
	if f.Mode == ModeWhitelist {
		return MatchExact
	}
	return MatchContains
}

// SetFilter backs the element-type, element-label independent stages
// that are simple set/substring membership tests.
type SetFilter struct {
	Mode   ListFilterMode
	Values []string
}

// TagFilter is the tag-filtering stage (spec §4.C stage 5).
type TagFilter struct {
	Mode   ListFilterMode
	Values []string
}

// MediaIndexFilter gates whole-panorama processing (spec §4.C stage 8).
type MediaIndexFilter struct {
	Mode    ListFilterMode
	Indexes []int
}

// TypeToggles is includeContent.elements.include<Type> (spec §4.C stage 6).
type TypeToggles map[record.Type]bool

// DefaultTypeToggles returns every taxonomy type enabled, matching the
// spec's implicit default (nothing excluded unless configured).
func DefaultTypeToggles() TypeToggles {
	toggles := make(TypeToggles, len(record.AllTypes)+2)
	for _, t := range record.AllTypes {
		toggles[t] = true
	}
	toggles[record.TypeContainer] = true
	toggles[record.Type3DModelObject] = true
	return toggles
}

// Config bundles every stage's configuration, mirroring the
// Configuration Core's `filter` and `includeContent` sections.
type Config struct {
	SkipEmptyLabels bool
	MinLabelLength  int

	Value       ValueFilter
	ElementType SetFilter
	ElementLabel SetFilter
	Tag         TagFilter
	TypeToggles TypeToggles
	MediaIndex  MediaIndexFilter

	CompletelyBlank          bool
	UnlabeledWithSubtitles   bool
	UnlabeledWithTags        bool

	// IncludeUnknownTypes is carried over from the Configuration Core.
	// No pipeline stage and no indexer step reads it: an unrecognized
	// class is always indexed as Element with a diagnostic, whatever
	// its value.
	IncludeUnknownTypes bool

	// CascadeParentRejection is the Open Question from spec §9:
	// when true, a filtered-out panorama's overlays are also
	// excluded rather than remaining independently indexable.
	CascadeParentRejection bool
}

// DefaultConfig returns permissive defaults: every stage is a no-op
// until the host's Configuration Core supplies real rules.
func DefaultConfig() Config {
	return Config{
		MinLabelLength: 0,
		TypeToggles:    DefaultTypeToggles(),
	}
}
