// Package indexer implements the Indexer (spec §4.F): it walks the
// tour's playlists via a tour.Adapter, classifies and filters every
// node, reconciles it against external data, and emits a flat set of
// IndexRecords. It is rebuilt in full on every call (spec §3.3); there
// is no incremental mutation.
package indexer

import (
	"context"
	"time"

	"github.com/tomtom215/tourscope/internal/diag"
	"github.com/tomtom215/tourscope/internal/filter"
	"github.com/tomtom215/tourscope/internal/label"
	"github.com/tomtom215/tourscope/internal/logging"
	"github.com/tomtom215/tourscope/internal/metrics"
	"github.com/tomtom215/tourscope/internal/reconcile"
	"github.com/tomtom215/tourscope/internal/record"
	"github.com/tomtom215/tourscope/internal/taxonomy"
	"github.com/tomtom215/tourscope/internal/tour"
)

// Config bundles every setting the Indexer needs from the
// Configuration Core.
type Config struct {
	Label             label.Options
	Filter            filter.Config
	ContainerNames    []string
	IncludeRootPlayer bool
}

// Indexer walks the tour graph and produces the flat index (spec §4.F).
type Indexer struct {
	cfg        Config
	pipeline   *filter.Pipeline
	reconciler *reconcile.Reconciler
	sink       *diag.Sink

	diagnostics []taxonomy.Diagnostic
}

// New constructs an Indexer for a single build. The reconciler must
// already be scoped to this build (see reconcile.New). sink may be nil,
// in which case diagnostics are only available via Diagnostics().
func New(cfg Config, reconciler *reconcile.Reconciler, sink *diag.Sink) *Indexer {
	return &Indexer{
		cfg:        cfg,
		pipeline:   filter.New(cfg.Filter),
		reconciler: reconciler,
		sink:       sink,
	}
}

// Diagnostics returns classifier fallback diagnostics collected during
// the most recent Build call.
func (ix *Indexer) Diagnostics() []taxonomy.Diagnostic { return ix.diagnostics }

func (ix *Indexer) recordDiagnostic(d *taxonomy.Diagnostic) {
	if d == nil {
		return
	}
	ix.diagnostics = append(ix.diagnostics, *d)
	if ix.sink != nil {
		ix.sink.Add(diag.Entry{Source: "classifier", NodeID: d.NodeID, Message: d.Message})
	}
}

// Build walks mainPlayList (and, if configured, the root player's
// playlist) via adapter, producing the flat index. sheetsRecords passed
// to the reconciler must have already been loaded by the External Data
// Loader; Build only orchestrates reconciliation, not fetching.
func (ix *Indexer) Build(ctx context.Context, adapter tour.Adapter) ([]record.IndexRecord, error) {
	start := time.Now()
	defer func() { metrics.IndexBuildDuration.Observe(time.Since(start).Seconds()) }()

	ix.diagnostics = nil
	if ix.sink != nil {
		ix.sink.Reset()
	}
	var records []record.IndexRecord
	var views []reconcile.TourRecordView

	mainItems, err := adapter.ListMainItems(ctx)
	if err != nil {
		return nil, err
	}
	recs, vs := ix.processPlaylist(ctx, adapter, mainItems, record.SourceMain)
	records = append(records, recs...)
	views = append(views, vs...)

	if ix.cfg.IncludeRootPlayer {
		if rootItems, ok, err := adapter.ListRootItems(ctx); err == nil && ok {
			recs, vs := ix.processPlaylist(ctx, adapter, rootItems, record.SourceRoot)
			records = append(records, recs...)
			views = append(views, vs...)
		}
	}

	standalone, enrichments := ix.reconciler.ReconcileSheets(views)
	for i := range records {
		if enr, ok := enrichments[records[i].ID]; ok {
			applySheetsEnrichment(&records[i], enr)
		}
	}
	records = append(records, standalone...)

	for _, name := range ix.cfg.ContainerNames {
		records = append(records, record.IndexRecord{
			Type:          record.TypeContainer,
			Source:        record.SourceContainer,
			Label:         name,
			OriginalLabel: name,
			ContainerName: name,
			IsContainer:   true,
			Boost:         record.BoostLabeledItem,
		})
	}

	tallyByType(records)
	return records, nil
}

func applySheetsEnrichment(rec *record.IndexRecord, enr reconcile.SheetsEnrichment) {
	rec.SheetsData = enr.Data
	if enr.ImageURL != "" {
		rec.ImageURL = enr.ImageURL
	}
	if enr.ElementType != "" {
		rec.Type = record.Type(enr.ElementType)
	}
	rec.IsEnhanced = true
	if rec.Boost < record.BoostSheetsMatch {
		rec.Boost = record.BoostSheetsMatch
	}
}

func tallyByType(records []record.IndexRecord) {
	counts := map[record.Type]int{}
	for _, r := range records {
		counts[r.Type]++
	}
	for t, n := range counts {
		metrics.IndexRecordsTotal.WithLabelValues(string(t)).Set(float64(n))
	}
}

// processPlaylist walks one playlist's items, dispatching 3D model
// items and panorama items to their respective handlers (spec §4.F).
func (ix *Indexer) processPlaylist(ctx context.Context, adapter tour.Adapter, items []tour.Item, source record.Source) ([]record.IndexRecord, []reconcile.TourRecordView) {
	var records []record.IndexRecord
	var views []reconcile.TourRecordView

	for index, item := range items {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logging.Warn().Interface("panic", r).Int("index", index).Str("item_id", item.ID).
						Msg("indexer: recovered from panic processing playlist item; skipping")
				}
			}()

			if item.Class == "Model3DPlayListItem" {
				recs, vs := ix.process3DModel(item, index, source)
				records = append(records, recs...)
				views = append(views, vs...)
				return
			}
			recs, vs := ix.processPanorama(ctx, adapter, item, index, source)
			records = append(records, recs...)
			views = append(views, vs...)
		}()
	}
	return records, views
}

// process3DModel adds a 3DModel record and classifies every one of the
// model's sub-objects as 3DHotspot or 3DModelObject (spec §4.F).
func (ix *Indexer) process3DModel(item tour.Item, index int, source record.Source) ([]record.IndexRecord, []reconcile.TourRecordView) {
	var records []record.IndexRecord
	var views []reconcile.TourRecordView

	subtitle, tags := dataFields(item.Media.Data)
	modelLabel := label.Resolve(labelOf(item.Media.Data), subtitle, tags,
		label.Context{Type: record.Type3DModel, Index: &index}, ix.cfg.Label)

	candidate := filter.Candidate{Type: record.Type3DModel, Label: modelLabel, Subtitle: subtitle, Tags: tags}
	if d := ix.pipeline.Evaluate(candidate); !d.Rejected {
		idx := index
		rec := record.IndexRecord{
			Type: record.Type3DModel, Source: source, Label: modelLabel, OriginalLabel: labelOf(item.Media.Data),
			Subtitle: subtitle, Tags: tags, PlaylistOrder: index * 1000, Boost: boostFor(modelLabel),
			Index: &idx, OriginalIndex: &idx, ID: item.Media.ID, Item: item,
		}
		ix.reconciler.ReconcileTourRecord(&rec, reconcile.TourRecordView{ID: rec.ID, Label: rec.Label, Subtitle: rec.Subtitle, Tags: rec.Tags, MediaID: item.Media.ID, MediaIdx: index})
		records = append(records, rec)
		views = append(views, reconcile.TourRecordView{ID: rec.ID, Label: rec.Label, Subtitle: rec.Subtitle, Tags: rec.Tags, MediaID: item.Media.ID, MediaIdx: index})
	}

	for objIndex, obj := range item.Media.Objects {
		node := taxonomy.Node{
			Class: obj.Class, Label: obj.Label, ID: obj.ID,
			IsModelObject: obj.IsModelObject || !obj.IsSprite,
		}
		if obj.IsSprite {
			node.Class = "SpriteModel3DObject"
		}
		result := taxonomy.Classify(node)
		ix.recordDiagnostic(result.Diagnostic)
		objType := result.Type
		if obj.IsSprite {
			objType = record.Type3DHotspot
		} else if obj.IsModelObject {
			objType = record.Type3DModelObject
		}

		objLabel := label.Resolve(obj.Label, "", nil, label.Context{Type: objType}, ix.cfg.Label)
		candidate := filter.Candidate{Type: objType, Label: objLabel}
		if d := ix.pipeline.Evaluate(candidate); d.Rejected {
			continue
		}

		parentIdx := index
		rec := record.IndexRecord{
			Type: objType, Source: source, Label: objLabel, OriginalLabel: obj.Label,
			PlaylistOrder: index*1000 + objIndex, Boost: record.BoostChildElement,
			ParentIndex: &parentIdx, ParentLabel: modelLabel, ID: obj.ID, Item: obj,
			ParentModel: modelLabel,
		}
		records = append(records, rec)
		views = append(views, reconcile.TourRecordView{ID: rec.ID, Label: rec.Label, Tags: rec.Tags})
	}

	return records, views
}

// processPanorama applies the media-index filter first (gating
// overlay processing too), adds the panorama record, then enumerates
// and indexes its overlays (spec §4.F).
func (ix *Indexer) processPanorama(ctx context.Context, adapter tour.Adapter, item tour.Item, index int, source record.Source) ([]record.IndexRecord, []reconcile.TourRecordView) {
	var records []record.IndexRecord
	var views []reconcile.TourRecordView

	subtitle, tags := dataFields(item.Media.Data)
	panoLabel := label.Resolve(labelOf(item.Media.Data), subtitle, tags,
		label.Context{Type: record.TypePanorama, Index: &index}, ix.cfg.Label)

	mediaIdx := index
	panoCandidate := filter.Candidate{
		Type: record.TypePanorama, Label: panoLabel, Subtitle: subtitle, Tags: tags, MediaIndex: &mediaIdx,
	}
	decision := ix.pipeline.Evaluate(panoCandidate)
	panoRejected := decision.Rejected
	panoGatedByMediaIndex := decision.Stage == "media_index"

	if !panoRejected {
		idx := index
		rec := record.IndexRecord{
			Type: record.TypePanorama, Source: source, Label: panoLabel, OriginalLabel: labelOf(item.Media.Data),
			Subtitle: subtitle, Tags: tags, PlaylistOrder: index * 1000, Boost: boostFor(panoLabel),
			Index: &idx, OriginalIndex: &idx, ID: item.Media.ID, MediaIndex: &idx, Item: item,
		}
		ix.reconciler.ReconcileTourRecord(&rec, reconcile.TourRecordView{ID: rec.ID, Label: rec.Label, Subtitle: rec.Subtitle, Tags: rec.Tags, MediaID: item.Media.ID, MediaIdx: index})
		records = append(records, rec)
		views = append(views, reconcile.TourRecordView{ID: rec.ID, Label: rec.Label, Subtitle: rec.Subtitle, Tags: rec.Tags, MediaID: item.Media.ID, MediaIdx: index})
	}

	// spec §9 open question: cascade parent rejection is configurable,
	// defaulting to "children remain indexable" per the source comments.
	if panoGatedByMediaIndex || (panoRejected && ix.pipeline.Config().CascadeParentRejection) {
		return records, views
	}

	overlays, err := adapter.Overlays(ctx, item.Media.ID, index)
	if err != nil {
		logging.Warn().Err(err).Str("media_id", item.Media.ID).Msg("indexer: overlay enumeration failed")
		return records, views
	}

	for overlayIndex, overlay := range overlays {
		overlaySubtitle, overlayTags := dataFields(overlay.Data)
		node := taxonomy.Node{Class: overlay.Class, Label: overlay.Label, ID: overlay.ID}
		if len(overlay.Data) > 0 {
			if vertices, ok := overlay.Data["polygonVertices"].(int); ok {
				node.PolygonVertices = vertices
			}
			if _, ok := overlay.Data["video"]; ok {
				node.HasVideo = true
			}
			if _, ok := overlay.Data["image"]; ok {
				node.HasImage = true
			}
			if projected, ok := overlay.Data["projected"].(bool); ok {
				node.Projected = projected
			}
		}
		result := taxonomy.Classify(node)
		ix.recordDiagnostic(result.Diagnostic)

		overlayLabel := label.Resolve(overlay.Label, overlaySubtitle, overlayTags,
			label.Context{Type: result.Type}, ix.cfg.Label)

		candidate := filter.Candidate{Type: result.Type, Label: overlayLabel, Subtitle: overlaySubtitle, Tags: overlayTags}
		if d := ix.pipeline.Evaluate(candidate); d.Rejected {
			continue
		}

		camera := cameraFor(overlay, result)

		parentIdx := index
		rec := record.IndexRecord{
			Type: result.Type, Source: source, Label: overlayLabel, OriginalLabel: overlay.Label,
			Subtitle: overlaySubtitle, Tags: overlayTags, PlaylistOrder: index*1000 + overlayIndex,
			Boost: record.BoostChildElement, ParentIndex: &parentIdx, ParentLabel: panoLabel,
			ID: overlay.ID, Item: overlay, Camera: camera,
			MediaIndex: &mediaIdx,
		}
		ix.reconciler.ReconcileTourRecord(&rec, reconcile.TourRecordView{ID: rec.ID, Label: rec.Label, Subtitle: rec.Subtitle, Tags: rec.Tags, MediaID: overlay.ID, MediaIdx: index})
		records = append(records, rec)
		views = append(views, reconcile.TourRecordView{ID: rec.ID, Label: rec.Label, Subtitle: rec.Subtitle, Tags: rec.Tags, MediaID: overlay.ID, MediaIdx: index})
	}

	return records, views
}

// cameraFor extracts yaw/pitch from overlay.items[0] for
// HotspotPanoramaOverlay, else from the overlay's own data; fov
// defaults to 70 (spec §4.F).
func cameraFor(overlay tour.Overlay, result taxonomy.Result) *record.Camera {
	if result.Type == record.TypeHotspot && len(overlay.Items) > 0 {
		first := overlay.Items[0]
		fov := first.HFOV
		if fov == 0 {
			fov = 70
		}
		return &record.Camera{Yaw: first.Yaw, Pitch: first.Pitch, FOV: fov}
	}
	if overlay.Data != nil {
		yaw, hasYaw := overlay.Data["yaw"].(float64)
		pitch, hasPitch := overlay.Data["pitch"].(float64)
		if hasYaw && hasPitch {
			fov := 70.0
			if f, ok := overlay.Data["fov"].(float64); ok {
				fov = f
			}
			return &record.Camera{Yaw: yaw, Pitch: pitch, FOV: fov}
		}
	}
	return nil
}

func labelOf(data map[string]any) string {
	if data == nil {
		return ""
	}
	if v, ok := data["label"].(string); ok {
		return v
	}
	return ""
}

func dataFields(data map[string]any) (subtitle string, tags []string) {
	if data == nil {
		return "", nil
	}
	if v, ok := data["subtitle"].(string); ok {
		subtitle = v
	}
	if v, ok := data["tags"].([]string); ok {
		tags = v
	} else if v, ok := data["tags"].([]any); ok {
		for _, t := range v {
			if s, ok := t.(string); ok {
				tags = append(tags, s)
			}
		}
	}
	return subtitle, tags
}

func boostFor(lbl string) record.Boost {
	if lbl == "" {
		return record.BoostUnlabeledItem
	}
	return record.BoostLabeledItem
}
