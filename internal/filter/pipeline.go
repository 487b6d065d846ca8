package filter

import (
	"regexp"
	"strings"

	"github.com/tomtom215/tourscope/internal/metrics"
	"github.com/tomtom215/tourscope/internal/normalize"
	"github.com/tomtom215/tourscope/internal/record"
)

// Candidate is the subset of a not-yet-committed IndexRecord the
// pipeline needs to decide inclusion. The indexer builds one per node
// before materializing the final record.
type Candidate struct {
	Type       record.Type
	Label      string
	Subtitle   string
	Tags       []string
	MediaIndex *int // set only for panorama candidates (stage 8)
}

// Decision records why a candidate was rejected, for logging/diagnostics.
type Decision struct {
	Rejected bool
	Stage    string
	Reason   string
}

func accept() Decision { return Decision{} }

func reject(stage, reason string) Decision {
	metrics.FilterRejections.WithLabelValues(stage).Inc()
	return Decision{Rejected: true, Stage: stage, Reason: reason}
}

// Pipeline runs a Candidate through every configured stage in order,
// short-circuiting on the first rejection (spec §4.C).
type Pipeline struct {
	cfg Config
}

// New constructs a Pipeline. An empty allow/block list at any stage
// makes that stage a no-op, per spec §4.C.
func New(cfg Config) *Pipeline {
	return &Pipeline{cfg: cfg}
}

// Config exposes the pipeline's configuration, e.g. for the indexer
// to consult CascadeParentRejection.
func (p *Pipeline) Config() Config { return p.cfg }

// Evaluate runs the media-index filter (stage 8) first, then stages
// 1-7 in order, against a candidate and returns the first rejecting
// Decision, or an accepting Decision if every stage passes.
func (p *Pipeline) Evaluate(c Candidate) Decision {
	if d := p.mediaIndexFilter(c); d.Rejected {
		return d
	}
	if d := p.emptyLabelPolicy(c); d.Rejected {
		return d
	}
	if d := p.valueFilter(c); d.Rejected {
		return d
	}
	if d := p.elementTypeFilter(c); d.Rejected {
		return d
	}
	if d := p.labelFilter(c); d.Rejected {
		return d
	}
	if d := p.tagFilter(c); d.Rejected {
		return d
	}
	if d := p.typeToggle(c); d.Rejected {
		return d
	}
	if d := p.blankPolicy(c); d.Rejected {
		return d
	}
	return accept()
}

// Stage 1: Empty-label policy.
func (p *Pipeline) emptyLabelPolicy(c Candidate) Decision {
	if p.cfg.SkipEmptyLabels && c.Label == "" {
		return reject("empty_label", "label is empty and skipEmptyLabels is set")
	}
	if p.cfg.MinLabelLength > 0 && len(c.Label) < p.cfg.MinLabelLength {
		return reject("min_label_length", "label shorter than minLabelLength")
	}
	return accept()
}

// Stage 2: Top-level value filter against the resolved display label.
func (p *Pipeline) valueFilter(c Candidate) Decision {
	vf := p.cfg.Value
	if vf.Mode == "" || vf.Mode == ModeNone || len(vf.Values) == 0 {
		return accept()
	}
	matched := matchesAny(c.Label, vf.Values, vf.effectiveMatchMode())
	switch vf.Mode {
	case ModeWhitelist:
		if !matched {
			return reject("value_filter", "label not in whitelist")
		}
	case ModeBlacklist:
		if matched {
			return reject("value_filter", "label matched blacklist")
		}
	}
	return accept()
}

// Stage 3: Element-type filter, case-insensitive set membership.
func (p *Pipeline) elementTypeFilter(c Candidate) Decision {
	return evaluateSetFilter("element_type", p.cfg.ElementType, string(c.Type), MatchExact)
}

// Stage 4: Label filter, partial (contains) match over normalized label.
func (p *Pipeline) labelFilter(c Candidate) Decision {
	return evaluateSetFilter("element_label", p.cfg.ElementLabel, c.Label, MatchContains)
}

// Stage 5: Tag filter.
func (p *Pipeline) tagFilter(c Candidate) Decision {
	tf := p.cfg.Tag
	if tf.Mode == "" || tf.Mode == ModeNone || len(tf.Values) == 0 {
		return accept()
	}
	switch tf.Mode {
	case ModeWhitelist:
		if len(c.Tags) == 0 {
			return reject("tag_filter", "whitelist requires at least one tag, record has none")
		}
		for _, tag := range c.Tags {
			if containsNormalized(tf.Values, tag, MatchExact) {
				return accept()
			}
		}
		return reject("tag_filter", "no record tag in whitelist")
	case ModeBlacklist:
		for _, tag := range c.Tags {
			if containsNormalized(tf.Values, tag, MatchExact) {
				return reject("tag_filter", "record tag in blacklist")
			}
		}
	}
	return accept()
}

// Stage 6: Type-inclusion toggles.
func (p *Pipeline) typeToggle(c Candidate) Decision {
	if p.cfg.TypeToggles == nil {
		return accept()
	}
	if enabled, ok := p.cfg.TypeToggles[c.Type]; ok && !enabled {
		return reject("type_toggle", "includeContent toggle disabled for type "+string(c.Type))
	}
	return accept()
}

// Stage 7: Completely-blank policy.
func (p *Pipeline) blankPolicy(c Candidate) Decision {
	hasLabel := c.Label != ""
	hasSubtitle := c.Subtitle != ""
	hasTags := len(nonEmpty(c.Tags)) > 0

	if hasLabel {
		return accept()
	}

	switch {
	case !hasSubtitle && !hasTags:
		if !p.cfg.CompletelyBlank {
			return reject("completely_blank", "no label, subtitle, or tags")
		}
	case hasSubtitle && !hasTags:
		if !p.cfg.UnlabeledWithSubtitles {
			return reject("unlabeled_with_subtitle", "unlabeled record has only a subtitle")
		}
	case !hasSubtitle && hasTags:
		if !p.cfg.UnlabeledWithTags {
			return reject("unlabeled_with_tags", "unlabeled record has only tags")
		}
	}
	return accept()
}

// Stage 8: Media-index filter (panoramas only); Evaluate runs it
// before every other stage, and it gates overlay processing when it
// rejects.
func (p *Pipeline) mediaIndexFilter(c Candidate) Decision {
	if c.MediaIndex == nil {
		return accept()
	}
	mf := p.cfg.MediaIndex
	if mf.Mode == "" || mf.Mode == ModeNone || len(mf.Indexes) == 0 {
		return accept()
	}
	matched := false
	for _, idx := range mf.Indexes {
		if idx == *c.MediaIndex {
			matched = true
			break
		}
	}
	switch mf.Mode {
	case ModeWhitelist:
		if !matched {
			return reject("media_index", "panorama index not in whitelist")
		}
	case ModeBlacklist:
		if matched {
			return reject("media_index", "panorama index in blacklist")
		}
	}
	return accept()
}

func evaluateSetFilter(stage string, sf SetFilter, value string, fallbackMode MatchMode) Decision {
	if sf.Mode == "" || sf.Mode == ModeNone || len(sf.Values) == 0 {
		return accept()
	}
	matched := containsNormalized(sf.Values, value, fallbackMode)
	switch sf.Mode {
	case ModeWhitelist:
		if !matched {
			return reject(stage, "value not in whitelist")
		}
	case ModeBlacklist:
		if matched {
			return reject(stage, "value matched blacklist")
		}
	}
	return accept()
}

func matchesAny(value string, values []string, mode MatchMode) bool {
	return containsNormalized(values, value, mode)
}

func containsNormalized(list []string, value string, mode MatchMode) bool {
	normalizedValue := normalize.String(value)
	for _, candidate := range list {
		normalizedCandidate := normalize.String(candidate)
		switch mode {
		case MatchExact:
			if normalizedValue == normalizedCandidate {
				return true
			}
		case MatchStartsWith:
			if strings.HasPrefix(normalizedValue, normalizedCandidate) {
				return true
			}
		case MatchRegex:
			re, err := regexp.Compile(candidate)
			if err == nil && re.MatchString(value) {
				return true
			}
		case MatchContains:
			fallthrough
		default:
			if strings.Contains(normalizedValue, normalizedCandidate) {
				return true
			}
		}
	}
	return false
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

// NormalizeList trims, drops empties, and dedupes an allow/block list,
// satisfying spec §8 invariant 4 ("no allow/block list contains empty
// strings or duplicates" after Configuration Core normalization).
func NormalizeList(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		key := normalize.String(trimmed)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
