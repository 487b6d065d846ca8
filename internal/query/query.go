// Package query implements the Query Engine (spec §4.G): weighted
// fuzzy matching over the flat index, grouping, and deterministic
// sorting. Matching parameters (threshold, distance, location,
// ignoreLocation, minMatchCharLength, useExtendedSearch) are shaped
// after Fuse.js, the library the distilled spec's original JS runtime
// used; there is no Go equivalent in the pack, so the scorer in
// score.go is a from-scratch port rather than adapted teacher code
// (see DESIGN.md).
package query

import (
	"sort"
	"strings"
	"time"

	fuzzy "github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/tomtom215/tourscope/internal/metrics"
	"github.com/tomtom215/tourscope/internal/normalize"
	"github.com/tomtom215/tourscope/internal/record"
)

// Field weights from spec §4.G.2's relevance table.
const (
	weightLabel       = 1.0
	weightBusinessTag = 1.0
	weightBusinessName = 0.9
	weightSubtitle    = 0.8
	weightTags        = 0.6
	weightParentLabel = 0.3
)

// Options mirrors the Configuration Core's searchSettings section and
// Fuse.js's own option surface (spec §4.G.1).
type Options struct {
	MinSearchChars     int
	Threshold          float64
	Distance           int
	Location           int
	IgnoreLocation     bool
	MinMatchCharLength int
	UseExtendedSearch  bool
	IncludeScore       bool
	TypeWhitelist      []record.Type
	TypeBlacklist      []record.Type
}

// DefaultOptions returns the Fuse.js-compatible defaults spec §4.G.1
// documents.
func DefaultOptions() Options {
	return Options{
		MinSearchChars:     2,
		Threshold:          0.4,
		Distance:           100,
		Location:           0,
		MinMatchCharLength: 1,
	}
}

// Match is a single scored hit.
type Match struct {
	Record record.IndexRecord
	Score  float64 // 0 = perfect, 1 = worst passing score
	Field  string  // which field produced the best score
}

// Group bundles every match sharing a GroupKey, in spec §4.G.2's
// deterministic emission order.
type Group struct {
	Type    record.Type
	Matches []Match
}

// Engine runs queries against a fixed snapshot of the index; a new
// Engine is constructed per index build (spec §3.3: queries run
// against a frozen snapshot, never a half-built index).
type Engine struct {
	records []record.IndexRecord
	opts    Options
}

// New builds a query Engine over records, frozen for its lifetime.
func New(records []record.IndexRecord, opts Options) *Engine {
	cp := make([]record.IndexRecord, len(records))
	copy(cp, records)
	return &Engine{records: cp, opts: opts}
}

// Query runs term against the index, honoring spec §4.G.1's special
// cases:
//
//	""                 -> no results
//	shorter than MinSearchChars (and not "*") -> no results
//	"*"                -> every record, unscored, in default order
//	leading "="         -> exact (case/diacritic-insensitive) match only
func (e *Engine) Query(term string) []Group {
	start := time.Now()
	defer func() { metrics.QueryDuration.Observe(time.Since(start).Seconds()) }()

	trimmed := strings.TrimSpace(term)

	var matches []Match
	switch {
	case trimmed == "":
		matches = nil
	case trimmed == "*":
		matches = e.matchAll()
	case len(trimmed) < e.opts.MinSearchChars:
		matches = nil
	case strings.HasPrefix(trimmed, "="):
		matches = e.matchExact(strings.TrimPrefix(trimmed, "="))
	default:
		matches = e.matchFuzzy(trimmed)
	}

	matches = e.applyTypeLists(matches)
	groups := group(matches)
	metrics.QueryResultsTotal.Set(float64(len(matches)))
	return groups
}

func (e *Engine) matchAll() []Match {
	out := make([]Match, 0, len(e.records))
	for _, r := range e.records {
		out = append(out, Match{Record: r, Score: 0, Field: "label"})
	}
	return out
}

func (e *Engine) matchExact(term string) []Match {
	needle := normalize.String(term)
	var out []Match
	for _, r := range e.records {
		if normalize.String(r.Label) == needle {
			out = append(out, Match{Record: r, Score: 0, Field: "label"})
			continue
		}
		if normalize.String(r.OriginalLabel) == needle {
			out = append(out, Match{Record: r, Score: 0, Field: "label"})
		}
	}
	return out
}

// matchFuzzy narrows candidates with lithammer/fuzzysearch's cheap
// subsequence ranking (tier 1), then scores survivors with the
// Fuse.js-shaped bitap matcher (tier 2) — the same two-tier shape the
// teacher uses for its own fuzzy search: a fast filter first, a
// precise scorer second (internal/database/search_fuzzy.go's
// RapidFuzz-then-LIKE-fallback design, here inverted into
// cheap-narrow-then-precise-score since both tiers run in-process).
func (e *Engine) matchFuzzy(term string) []Match {
	needle := normalize.String(term)
	bOpts := bitapOptions{
		Threshold:      e.opts.Threshold,
		Distance:       e.opts.Distance,
		Location:       e.opts.Location,
		MinMatchLength: e.opts.MinMatchCharLength,
		IgnoreLocation: e.opts.IgnoreLocation,
	}

	var out []Match
	for _, r := range e.records {
		best, field, ok := e.bestFieldScore(r, needle, bOpts)
		if ok {
			out = append(out, Match{Record: r, Score: best, Field: field})
		}
	}
	return out
}

type weightedField struct {
	name   string
	value  string
	weight float64
}

func fieldsFor(r record.IndexRecord) []weightedField {
	fields := []weightedField{
		{"label", r.Label, weightLabel},
		{"businessName", r.BusinessName, weightBusinessName},
		{"subtitle", r.Subtitle, weightSubtitle},
		{"parentLabel", r.ParentLabel, weightParentLabel},
	}
	if len(r.Tags) > 0 {
		fields = append(fields, weightedField{"tags", strings.Join(r.Tags, " "), weightTags})
	}
	if r.BusinessData != nil {
		if tags, ok := r.BusinessData["matchTags"].([]string); ok && len(tags) > 0 {
			fields = append(fields, weightedField{"businessTag", strings.Join(tags, " "), weightBusinessTag})
		}
	}
	return fields
}

// bestFieldScore tries tier-1 narrowing via fuzzysearch before running
// the precise bitap scorer, so records with no plausible subsequence
// match against any field never pay for full bitap search.
func (e *Engine) bestFieldScore(r record.IndexRecord, needle string, bOpts bitapOptions) (float64, string, bool) {
	bestScore := 1.0
	bestField := ""
	found := false

	for _, f := range fieldsFor(r) {
		if f.value == "" {
			continue
		}
		normalizedField := normalize.String(f.value)

		if e.opts.UseExtendedSearch && !fuzzy.MatchFold(needle, normalizedField) {
			continue
		}
		if !e.opts.UseExtendedSearch && !fuzzy.MatchFold(needle, normalizedField) && !strings.Contains(normalizedField, needle) {
			continue
		}

		score, ok := bitapMatch(normalizedField, needle, bOpts)
		if !ok {
			continue
		}
		weighted := score / f.weight
		if weighted > 1 {
			weighted = 1
		}
		if !found || weighted < bestScore {
			bestScore = weighted
			bestField = f.name
			found = true
		}
	}
	return bestScore, bestField, found
}

func (e *Engine) applyTypeLists(matches []Match) []Match {
	if len(e.opts.TypeWhitelist) == 0 && len(e.opts.TypeBlacklist) == 0 {
		return matches
	}
	allow := make(map[record.Type]bool, len(e.opts.TypeWhitelist))
	for _, t := range e.opts.TypeWhitelist {
		allow[t] = true
	}
	block := make(map[record.Type]bool, len(e.opts.TypeBlacklist))
	for _, t := range e.opts.TypeBlacklist {
		block[t] = true
	}

	out := make([]Match, 0, len(matches))
	for _, m := range matches {
		if len(allow) > 0 && !allow[m.Record.Type] {
			continue
		}
		if block[m.Record.Type] {
			continue
		}
		out = append(out, m)
	}
	return out
}

// group buckets matches by GroupKey and orders groups by spec §4.G.2's
// priority table (record.AllTypes), then sorts each group's matches
// deterministically: playlistOrder ascending, then normalized label,
// then normalized parentLabel, both compared byte-wise (no locale
// collation).
func group(matches []Match) []Group {
	byType := make(map[record.Type][]Match)
	for _, m := range matches {
		key := m.Record.GroupKey("", false)
		byType[key] = append(byType[key], m)
	}

	order := append([]record.Type{}, record.AllTypes...)
	order = append(order, record.TypeContainer, record.Type3DModelObject)
	seen := make(map[record.Type]bool, len(order))

	var groups []Group
	for _, t := range order {
		if seen[t] {
			continue
		}
		seen[t] = true
		ms, ok := byType[t]
		if !ok {
			continue
		}
		sortMatches(ms)
		groups = append(groups, Group{Type: t, Matches: ms})
	}

	// Any type outside the known priority table (defensive: the closed
	// taxonomy should make this unreachable) sorts last, alphabetically.
	var rest []record.Type
	for t := range byType {
		if !seen[t] {
			rest = append(rest, t)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	for _, t := range rest {
		ms := byType[t]
		sortMatches(ms)
		groups = append(groups, Group{Type: t, Matches: ms})
	}

	return groups
}

func sortMatches(ms []Match) {
	sort.SliceStable(ms, func(i, j int) bool {
		a, b := ms[i].Record, ms[j].Record
		if a.PlaylistOrder != b.PlaylistOrder {
			return a.PlaylistOrder < b.PlaylistOrder
		}
		if cmp := strings.Compare(normalize.String(a.Label), normalize.String(b.Label)); cmp != 0 {
			return cmp < 0
		}
		return strings.Compare(normalize.String(a.ParentLabel), normalize.String(b.ParentLabel)) < 0
	})
}
