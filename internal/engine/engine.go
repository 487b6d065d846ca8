// Package engine provides the top-level façade spec §9 asks for in
// place of the original implementation's implicit global state: a
// single Engine value owning the current configuration, index
// snapshot, and background supervision, exposing Create/Load/
// Update/Query/Activate/Destroy plus the Diagnostics accessor as its
// entire public surface.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/tourscope/internal/broadcast"
	"github.com/tomtom215/tourscope/internal/config"
	"github.com/tomtom215/tourscope/internal/datasource"
	"github.com/tomtom215/tourscope/internal/diag"
	"github.com/tomtom215/tourscope/internal/engineerr"
	"github.com/tomtom215/tourscope/internal/filter"
	"github.com/tomtom215/tourscope/internal/indexer"
	"github.com/tomtom215/tourscope/internal/label"
	"github.com/tomtom215/tourscope/internal/logging"
	"github.com/tomtom215/tourscope/internal/navigate"
	"github.com/tomtom215/tourscope/internal/query"
	"github.com/tomtom215/tourscope/internal/reconcile"
	"github.com/tomtom215/tourscope/internal/record"
	"github.com/tomtom215/tourscope/internal/supervisor"
	"github.com/tomtom215/tourscope/internal/tour"
)

// Engine orchestrates the full Config -> DataLoader -> Reconciler ->
// Indexer -> Query pipeline (spec §5's ordering guarantee: a build
// completes fully before new queries are served against it; queries
// already in flight may finish against the prior snapshot).
type Engine struct {
	mu sync.RWMutex

	cfg      *config.Config
	adapter  tour.Adapter
	fetcher  datasource.Fetcher
	lastHash string

	queryEngine *query.Engine
	dispatcher  *navigate.Dispatcher
	sink        *diag.Sink
	hub         *broadcast.Hub
	tree        *supervisor.Tree

	hubCancel context.CancelFunc
}

// Create constructs an Engine from cfg without loading a tour yet;
// Load must be called before Query/Activate return useful results.
func Create(cfg *config.Config, fetcher datasource.Fetcher) *Engine {
	return &Engine{
		cfg:     cfg,
		fetcher: fetcher,
		sink:    diag.NewSink(200),
		hub:     broadcast.NewHub(),
		tree:    supervisor.New(supervisor.DefaultConfig()),
	}
}

// Load binds adapter and runs the first full build (spec §5, §9).
func (e *Engine) Load(ctx context.Context, adapter tour.Adapter) error {
	e.mu.Lock()
	e.adapter = adapter
	e.dispatcher = navigate.New(adapter, retryConfigFrom(e.cfg))
	if canonical, err := config.Merge(e.cfg, nil); err == nil {
		if h, err := config.Hash(canonical); err == nil {
			e.lastHash = h
		}
	}
	e.mu.Unlock()

	hubCtx, cancel := context.WithCancel(context.Background())
	e.hubCancel = cancel
	go func() {
		if err := e.hub.Run(hubCtx); err != nil && hubCtx.Err() == nil {
			logging.Warn().Err(err).Msg("engine: broadcast hub stopped unexpectedly")
		}
	}()

	treeErrs := e.tree.ServeBackground(hubCtx)
	go func() {
		if err := <-treeErrs; err != nil && hubCtx.Err() == nil {
			logging.Warn().Err(err).Msg("engine: supervisor tree stopped unexpectedly")
		}
	}()

	return e.rebuild(ctx)
}

// Update applies a partial configuration change, rebuilds the index
// only if the effective configuration actually changed (spec §6's
// config-hash idempotence), and republishes config_updated on the
// broadcast channel.
func (e *Engine) Update(ctx context.Context, partial map[string]any) error {
	e.mu.RLock()
	base := e.cfg
	e.mu.RUnlock()

	merged, err := config.Merge(base, partial)
	if err != nil {
		return engineerr.Wrap(engineerr.KindConfiguration, "config merge failed", err)
	}

	changed, hash, err := config.Changed(merged, e.lastHash)
	if err != nil {
		return engineerr.Wrap(engineerr.KindConfiguration, "config hash failed", err)
	}

	e.mu.Lock()
	e.cfg = merged
	e.dispatcher = navigate.New(e.adapter, retryConfigFrom(merged))
	e.mu.Unlock()

	if !changed {
		return nil
	}
	e.lastHash = hash
	e.hub.Publish(broadcast.MessageTypeConfigUpdated, map[string]any{"hash": hash})

	if e.adapter == nil {
		return nil
	}
	return e.rebuild(ctx)
}

// rebuild runs the full Config -> DataLoader -> Reconciler -> Indexer
// pipeline and swaps in a new Query Engine snapshot only once it
// completes (spec §5).
func (e *Engine) rebuild(ctx context.Context) error {
	e.mu.RLock()
	cfg := e.cfg
	adapter := e.adapter
	e.mu.RUnlock()

	loader := datasource.New(datasource.Config{
		UseBusinessData: cfg.BusinessData.Enabled,
		BusinessDataURL: cfg.BusinessData.URL,
		UseGoogleSheets: cfg.GoogleSheets.Enabled,
		SheetsSource:    cfg.GoogleSheets.Source,
		APIKeyParam:     cfg.GoogleSheets.APIKeyParam,
		APIKey:          cfg.GoogleSheets.APIKey,
		CacheTTL:        cfg.GoogleSheets.CacheTTL,
	}, e.fetcher)

	business, err := loader.LoadBusiness(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("engine: business data load failed; continuing without it")
	}
	sheets, err := loader.LoadSheets(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("engine: sheets data load failed; continuing without it")
	}

	// Datasets above datasource.ProgressiveRowThreshold serve a
	// lightweight id/tag/name projection immediately; the full sheets
	// record set replaces it after datasource.ProgressiveDelay (spec
	// §4.D).
	initialSheets := sheets
	progressive := len(sheets) > datasource.ProgressiveRowThreshold
	if progressive {
		initialSheets = datasource.Lightweight(sheets)
	}

	if err := e.buildAndSwap(ctx, cfg, adapter, business, initialSheets); err != nil {
		return err
	}

	if progressive {
		e.scheduleProgressiveUpgrade(cfg, adapter, business, sheets)
	}
	return nil
}

// buildAndSwap runs the Reconciler -> Indexer -> Query Engine stages
// against the given business/sheets records and swaps the result in as
// the current snapshot (spec §5).
func (e *Engine) buildAndSwap(ctx context.Context, cfg *config.Config, adapter tour.Adapter, business []reconcile.BusinessRecord, sheets []reconcile.SheetsRecord) error {
	reconciler := reconcile.New(reconcile.Config{
		UseBusinessData:          cfg.BusinessData.Enabled,
		ReplaceTourData:          cfg.BusinessData.ReplaceTourData,
		UseBusinessElementType:   cfg.BusinessData.UseBusinessElementType,
		UseGoogleSheetData:       cfg.GoogleSheets.Enabled,
		IncludeStandaloneEntries: cfg.GoogleSheets.IncludeStandaloneEntries,
		ReplaceElementTypeSheets: cfg.GoogleSheets.ReplaceElementTypeSheets,
	}, business, sheets)

	ix := indexer.New(indexer.Config{
		Label:             labelOptionsFrom(cfg),
		Filter:            filterConfigFrom(cfg),
		ContainerNames:    nil,
		IncludeRootPlayer: true,
	}, reconciler, e.sink)

	records, err := ix.Build(ctx, adapter)
	if err != nil {
		return engineerr.Wrap(engineerr.KindIndexing, "index build failed", err)
	}

	qe := query.New(records, queryOptionsFrom(cfg))

	e.mu.Lock()
	e.queryEngine = qe
	e.mu.Unlock()

	e.hub.Publish(broadcast.MessageTypeIndexRebuilt, map[string]any{"count": len(records)})
	return nil
}

// scheduleProgressiveUpgrade runs one DeadlineService tick after
// datasource.ProgressiveDelay that rebuilds with the full sheets
// record set, upgrading the lightweight projection buildAndSwap just
// published (spec §4.D).
func (e *Engine) scheduleProgressiveUpgrade(cfg *config.Config, adapter tour.Adapter, business []reconcile.BusinessRecord, sheets []reconcile.SheetsRecord) {
	svc := &supervisor.DeadlineService{
		Name:     "sheets-progressive-upgrade",
		Interval: datasource.ProgressiveDelay,
		Deadline: datasource.ProgressiveDelay + 5*time.Second,
		Fn: func(ctx context.Context) (bool, error) {
			if err := e.buildAndSwap(ctx, cfg, adapter, business, sheets); err != nil {
				logging.Warn().Err(err).Msg("engine: progressive sheets upgrade rebuild failed")
			}
			return true, nil
		},
	}
	e.tree.Add(svc)
}

// Query runs term against the current index snapshot (spec §5:
// "queries never block on a rebuild in progress beyond the debounce
// window"; the RWMutex below gives readers a consistent snapshot
// without blocking on writers longer than the swap itself).
func (e *Engine) Query(term string) []query.Group {
	e.mu.RLock()
	qe := e.queryEngine
	e.mu.RUnlock()
	if qe == nil {
		return nil
	}
	return qe.Query(term)
}

// Activate dispatches rec via the Navigation Dispatcher.
func (e *Engine) Activate(ctx context.Context, rec record.IndexRecord) (navigate.Outcome, error) {
	e.mu.RLock()
	d := e.dispatcher
	e.mu.RUnlock()
	if d == nil {
		return navigate.Failed, engineerr.New(engineerr.KindTourNotReady, "engine has no adapter loaded")
	}
	return d.Activate(ctx, rec)
}

// Diagnostics returns the most recent build's diagnostic entries.
func (e *Engine) Diagnostics() []diag.Entry { return e.sink.Entries() }

// Destroy tears down the background hub and supervised services
// (spec §9: "listeners and timers must be fully torn down").
func (e *Engine) Destroy() {
	if e.hubCancel != nil {
		e.hubCancel()
	}
}

func retryConfigFrom(cfg *config.Config) navigate.RetryConfig {
	t := cfg.ElementTriggering
	return navigate.RetryConfig{
		BaseInterval:   time.Duration(t.BaseIntervalMS) * time.Millisecond,
		Multiplier:     t.Multiplier,
		MaxInterval:    time.Duration(t.MaxIntervalMS) * time.Millisecond,
		MaxRetries:     t.MaxRetries,
		MaxElapsedTime: time.Duration(t.MaxElapsedMS) * time.Millisecond,
	}
}

func labelOptionsFrom(cfg *config.Config) label.Options {
	d := cfg.DisplayLabels
	return label.Options{
		OnlySubtitles:  d.OnlySubtitles,
		UseSubtitles:   d.UseSubtitles,
		UseTags:        d.UseTags,
		UseElementType: d.UseElementType,
		CustomText:     d.CustomText,
	}
}

func filterConfigFrom(cfg *config.Config) filter.Config {
	f := cfg.Filter
	toggles := filter.DefaultTypeToggles()
	for k, v := range cfg.IncludeContent.Toggles {
		toggles[record.Type(k)] = v
	}
	return filter.Config{
		SkipEmptyLabels: f.SkipEmptyLabels,
		MinLabelLength:  f.MinLabelLength,
		Value: filter.ValueFilter{
			Mode:   listMode(f.ValueWhitelist, f.ValueBlacklist),
			Values: listValues(f.ValueWhitelist, f.ValueBlacklist),
		},
		ElementType: filter.SetFilter{
			Mode:   listMode(f.ElementTypeWhitelist, f.ElementTypeBlacklist),
			Values: listValues(f.ElementTypeWhitelist, f.ElementTypeBlacklist),
		},
		ElementLabel: filter.SetFilter{
			Mode:   listMode(f.ElementLabelWhitelist, f.ElementLabelBlacklist),
			Values: listValues(f.ElementLabelWhitelist, f.ElementLabelBlacklist),
		},
		Tag: filter.TagFilter{
			Mode:   listMode(f.TagWhitelist, f.TagBlacklist),
			Values: listValues(f.TagWhitelist, f.TagBlacklist),
		},
		TypeToggles:            toggles,
		CompletelyBlank:        f.CompletelyBlank,
		UnlabeledWithSubtitles: f.UnlabeledWithSubtitles,
		UnlabeledWithTags:      f.UnlabeledWithTags,
		IncludeUnknownTypes:    f.IncludeUnknownTypes,
		CascadeParentRejection: f.CascadeParentRejection,
	}
}

// listMode picks whitelist/blacklist/none from a pair of
// Configuration Core lists; whitelist takes precedence when both are
// populated (mirrors the Value/Element/Tag filter stages' own
// single-Mode shape, spec §4.C).
func listMode(whitelist, blacklist []string) filter.ListFilterMode {
	switch {
	case len(whitelist) > 0:
		return filter.ModeWhitelist
	case len(blacklist) > 0:
		return filter.ModeBlacklist
	default:
		return filter.ModeNone
	}
}

func listValues(whitelist, blacklist []string) []string {
	if len(whitelist) > 0 {
		return whitelist
	}
	return blacklist
}

func queryOptionsFrom(cfg *config.Config) query.Options {
	s := cfg.SearchSettings
	return query.Options{
		MinSearchChars:     s.MinSearchChars,
		Threshold:          s.Threshold,
		Distance:           s.Distance,
		Location:           s.Location,
		IgnoreLocation:     s.IgnoreLocation,
		MinMatchCharLength: s.MinMatchCharLength,
		UseExtendedSearch:  s.UseExtendedSearch,
	}
}
