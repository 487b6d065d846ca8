// Package metrics instruments tourscope for Prometheus scraping by a
// host that embeds the engine (e.g. the demo server's /metrics route).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IndexBuildDuration measures a full Indexer.Build call (spec §3.3:
	// "rebuilt in full on initialization and on every configuration
	// update").
	IndexBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tourscope_index_build_duration_seconds",
			Help:    "Duration of a full index rebuild",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	// IndexRecordsTotal is the size of the most recent index, by type.
	IndexRecordsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tourscope_index_records",
			Help: "Number of records in the current index, by type",
		},
		[]string{"type"},
	)

	// FilterRejections counts rejections per filter-pipeline stage
	// (spec §4.C: "every decision is logged at debug level").
	FilterRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tourscope_filter_rejections_total",
			Help: "Records rejected by the filter pipeline, by stage",
		},
		[]string{"stage"},
	)

	// ReconcileDuplicates counts business/sheets records skipped
	// because their id/tag was already consumed this build (spec §4.E).
	ReconcileDuplicates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tourscope_reconcile_duplicates_total",
			Help: "Reconciliation candidates skipped as duplicates, by source",
		},
		[]string{"source"},
	)

	// ReconcileAmbiguous counts sheets reconciliations with more than
	// one equally-confident candidate (spec §4.E / §7 ClassificationAmbiguity).
	ReconcileAmbiguous = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tourscope_reconcile_ambiguous_total",
			Help: "Sheets records with tied reconciliation candidates",
		},
	)

	// QueryDuration measures a Query Engine match, from debounced
	// input to grouped, sorted results.
	QueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tourscope_query_duration_seconds",
			Help:    "Duration of a query match against the index",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
		},
	)

	// QueryResultsTotal is the result count of the most recent query.
	QueryResultsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tourscope_query_results",
			Help: "Number of results returned by the most recent query",
		},
	)

	// NavigationRetries counts Activate calls by outcome: one increment
	// per activation, however many trigger attempts it made.
	NavigationRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tourscope_navigation_retries_total",
			Help: "Navigation activations, by outcome",
		},
		[]string{"outcome"}, // triggered, retry_later, failed
	)

	// DataSourceLoadErrors counts External Data Loader failures by
	// source (business, sheets) per spec §7 DataSourceLoadFailure.
	DataSourceLoadErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tourscope_datasource_load_errors_total",
			Help: "External data source load failures, by source",
		},
		[]string{"source"},
	)

	// BroadcastClients is the gauge for connected cross-tab broadcast
	// channel listeners. The broadcast hub does not update it, so it
	// stays at 0.
	BroadcastClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tourscope_broadcast_clients",
			Help: "Current number of connected broadcast channel listeners",
		},
	)
)
