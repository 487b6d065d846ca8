// Package reconcile implements the Reconciler (spec §4.E): matching
// tour records to business/sheets records and resolving ambiguity.
// Duplicate-tracking sets are scoped to a single Reconciler instance,
// created fresh per index build and discarded afterward (spec §3.3:
// "duplicate-tracking sets live only during a single build"), the
// same shape as the Zaparoo indexing pipeline's per-batch id maps
// (other_examples ZaparooProject mediascanner indexing_pipeline.go)
// cleared between builds rather than leaking global state.
package reconcile

import (
	"strings"

	"github.com/tomtom215/tourscope/internal/logging"
	"github.com/tomtom215/tourscope/internal/metrics"
	"github.com/tomtom215/tourscope/internal/record"
)

// BusinessRecord is one entry from the Business JSON source (spec §6).
type BusinessRecord struct {
	ID          string
	Name        string
	MatchTags   []string
	ElementType string
	Description string
	ImageURL    string
	LocalImage  string
	Extra       map[string]any
}

// SheetsRecord is one row from the spreadsheet CSV source (spec §6).
type SheetsRecord struct {
	ID          string
	Tag         string
	Name        string
	Description string
	ImageURL    string
	ElementType string
	ParentID    string
	Extra       map[string]any
}

// TourRecordView is the subset of an in-progress IndexRecord the
// reconciler needs to evaluate matches and candidates against.
type TourRecordView struct {
	ID        string
	Label     string
	Subtitle  string
	Tags      []string
	MediaID   string
	MediaIdx  int
}

// Config mirrors the Configuration Core's businessData/googleSheets
// sections.
type Config struct {
	UseBusinessData          bool
	ReplaceTourData          bool
	UseBusinessElementType   bool
	UseGoogleSheetData       bool
	IncludeStandaloneEntries bool
	ReplaceElementTypeSheets bool
}

// Reconciler matches tour records against business/sheets data for a
// single index build.
type Reconciler struct {
	cfg       Config
	business  []BusinessRecord
	sheets    []SheetsRecord

	consumedBusinessIDs map[string]bool
	consumedSheetIDs    map[string]bool
	consumedSheetTags   map[string]bool
}

// New constructs a Reconciler for one build. Per spec §4.D, business
// data and sheets data are mutually exclusive: if both are enabled,
// business wins and sheets is disabled with a warning (the caller is
// expected to have already resolved that via datasource.Loader; New
// re-asserts it defensively).
func New(cfg Config, business []BusinessRecord, sheets []SheetsRecord) *Reconciler {
	if cfg.UseBusinessData {
		cfg.UseGoogleSheetData = false
	}
	return &Reconciler{
		cfg:                 cfg,
		business:            business,
		sheets:              sheets,
		consumedBusinessIDs: make(map[string]bool),
		consumedSheetIDs:    make(map[string]bool),
		consumedSheetTags:   make(map[string]bool),
	}
}

// ReconcileTourRecord finds the best business match for a tour record
// by priority (spec §4.E):
//  1. subtitle equals business id
//  2. subtitle appears in business matchTags
//  3. tour name equals business id
//  4. any tour tag appears in business matchTags
//
// First match wins. Returns false if business data is disabled or no
// match was found.
func (r *Reconciler) ReconcileTourRecord(rec *record.IndexRecord, view TourRecordView) bool {
	if !r.cfg.UseBusinessData {
		return false
	}

	match, ok := r.findBusinessMatch(view)
	if !ok {
		return false
	}

	r.consumedBusinessIDs[match.ID] = true

	if r.cfg.ReplaceTourData && match.Name != "" {
		rec.Label = match.Name
	}
	rec.BusinessName = match.Name
	rec.BusinessData = mergeExtra(match.Extra, map[string]any{
		"id":          match.ID,
		"name":        match.Name,
		"description": match.Description,
		"matchTags":   match.MatchTags,
	})
	if match.ImageURL != "" {
		rec.ImageURL = match.ImageURL
	}
	if match.LocalImage != "" {
		rec.LocalImage = match.LocalImage
	}
	if r.cfg.UseBusinessElementType && match.ElementType != "" {
		rec.Type = record.Type(match.ElementType)
	}
	rec.IsEnhanced = true
	rec.Boost = record.BoostBusinessMatch
	return true
}

func (r *Reconciler) findBusinessMatch(view TourRecordView) (BusinessRecord, bool) {
	for _, b := range r.business {
		if r.consumedBusinessIDs[b.ID] {
			continue
		}
		if view.Subtitle != "" && equalFold(view.Subtitle, b.ID) {
			return b, true
		}
	}
	for _, b := range r.business {
		if r.consumedBusinessIDs[b.ID] {
			continue
		}
		if view.Subtitle != "" && containsFold(b.MatchTags, view.Subtitle) {
			return b, true
		}
	}
	for _, b := range r.business {
		if r.consumedBusinessIDs[b.ID] {
			continue
		}
		if view.Label != "" && equalFold(view.Label, b.ID) {
			return b, true
		}
	}
	for _, b := range r.business {
		if r.consumedBusinessIDs[b.ID] {
			continue
		}
		for _, tag := range view.Tags {
			if containsFold(b.MatchTags, tag) {
				return b, true
			}
		}
	}
	return BusinessRecord{}, false
}

// sheetsCandidate is a scored match between a sheets record and a
// tour record, per spec §4.E's confidence table.
type sheetsCandidate struct {
	view       TourRecordView
	confidence int
}

// ReconcileSheets matches every (not-yet-disabled) sheets record
// against the full set of tour records built so far, applying the
// confidence table from spec §4.E:
//
//	exact id match:        confidence 3
//	tag-in-tags:           confidence 2
//	media-id equality:     confidence 2
//	exact name match:      confidence 1
//
// With multiple candidates, the highest confidence wins; ties log a
// warning and keep the first. Unmatched sheets records become
// standalone IndexRecords when IncludeStandaloneEntries is set;
// otherwise they are dropped. ReconcileSheets returns the standalone
// records to append and the enrichments to apply to matched records
// (by tour record id).
func (r *Reconciler) ReconcileSheets(tourRecords []TourRecordView) (standalone []record.IndexRecord, enrichments map[string]SheetsEnrichment) {
	enrichments = make(map[string]SheetsEnrichment)
	if !r.cfg.UseGoogleSheetData {
		return nil, enrichments
	}

	for _, sr := range r.sheets {
		if r.consumedSheetIDs[sr.ID] || (sr.Tag != "" && r.consumedSheetTags[sr.Tag]) {
			metrics.ReconcileDuplicates.WithLabelValues("sheets").Inc()
			continue
		}

		best, tied, ok := r.bestSheetsCandidate(sr, tourRecords)
		if !ok {
			if r.cfg.IncludeStandaloneEntries {
				standalone = append(standalone, r.standaloneSheetsRecord(sr))
			}
			if sr.ID != "" {
				r.consumedSheetIDs[sr.ID] = true
			}
			if sr.Tag != "" {
				r.consumedSheetTags[sr.Tag] = true
			}
			continue
		}
		if tied {
			metrics.ReconcileAmbiguous.Inc()
			logging.Warn().Str("sheets_id", sr.ID).Str("chosen_id", best.ID).Msg("reconcile: tied sheets candidates; keeping the first")
		}

		enrichment := SheetsEnrichment{
			Data:     mergeExtra(sr.Extra, map[string]any{"id": sr.ID, "name": sr.Name}),
			Name:     sr.Name,
			ImageURL: sr.ImageURL,
		}
		if r.cfg.ReplaceElementTypeSheets {
			enrichment.ElementType = sr.ElementType
		}
		enrichments[best.view.ID] = enrichment
		if sr.ID != "" {
			r.consumedSheetIDs[sr.ID] = true
		}
		if sr.Tag != "" {
			r.consumedSheetTags[sr.Tag] = true
		}
	}
	return standalone, enrichments
}

// SheetsEnrichment is what ReconcileSheets found for a matched tour
// record; the indexer applies it after the main build loop.
type SheetsEnrichment struct {
	Data        map[string]any
	Name        string
	ElementType string
	ImageURL    string
}

func (r *Reconciler) bestSheetsCandidate(sr SheetsRecord, tourRecords []TourRecordView) (sheetsCandidate, bool, bool) {
	var best sheetsCandidate
	found := false
	tie := false

	consider := func(view TourRecordView, confidence int) {
		if !found {
			best = sheetsCandidate{view: view, confidence: confidence}
			found = true
			tie = false
			return
		}
		if confidence > best.confidence {
			best = sheetsCandidate{view: view, confidence: confidence}
			tie = false
		} else if confidence == best.confidence && view.ID != best.view.ID {
			tie = true
		}
	}

	for _, view := range tourRecords {
		switch {
		case sr.ID != "" && equalFold(view.ID, sr.ID):
			consider(view, 3)
		case sr.Tag != "" && containsFold(view.Tags, sr.Tag):
			consider(view, 2)
		case sr.ID != "" && view.MediaID != "" && equalFold(view.MediaID, sr.ID):
			consider(view, 2)
		case sr.Name != "" && equalFold(view.Label, sr.Name):
			consider(view, 1)
		}
	}
	return best, tie, found
}

func (r *Reconciler) standaloneSheetsRecord(sr SheetsRecord) record.IndexRecord {
	elementType := sr.ElementType
	if elementType == "" {
		elementType = string(record.TypeElement)
	}
	return record.IndexRecord{
		Type:          record.Type(elementType),
		Source:        record.SourceSheets,
		Label:         firstNonEmpty(sr.Name, sr.ID, sr.Tag),
		OriginalLabel: sr.Name,
		Tags:          nonEmptySlice(sr.Tag),
		PlaylistOrder: 0,
		Boost:         record.BoostSheetsMatch,
		ID:            sr.ID,
		IsStandalone:  true,
		IsEnhanced:    true,
		ImageURL:      sr.ImageURL,
		SheetsData:    mergeExtra(sr.Extra, map[string]any{"id": sr.ID, "name": sr.Name}),
	}
}

func equalFold(a, b string) bool { return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b)) }

func containsFold(list []string, value string) bool {
	for _, v := range list {
		if equalFold(v, value) {
			return true
		}
	}
	return false
}

func mergeExtra(extra map[string]any, overrides map[string]any) map[string]any {
	out := make(map[string]any, len(extra)+len(overrides))
	for k, v := range extra {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func nonEmptySlice(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return []string{v}
}
