package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UpstreamFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ioc_upstream_fetches_total",
			Help: "Upstream feed fetches by outcome",
		},
		[]string{"source", "outcome"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ioc_upstream_fetch_duration_seconds",
			Help:    "Time spent fetching and parsing an upstream feed",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"source"},
	)

	IndicatorsParsed = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ioc_indicators_parsed",
			Help: "Indicators in the latest parsed batch",
		},
		[]string{"source"},
	)

	LinesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ioc_lines_skipped_total",
			Help: "Feed lines dropped while parsing",
		},
		[]string{"source", "reason"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ioc_batch_cache_lookups_total",
			Help: "Batch cache lookups by result",
		},
		[]string{"result"},
	)

	ViewerFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ioc_viewer_fetches_total",
			Help: "Viewer fetch completions by outcome",
		},
		[]string{"source", "outcome"},
	)

	FilterRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ioc_viewer_filter_runs_total",
			Help: "Filter recomputations applied to the viewer state",
		},
	)

	FilterDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ioc_viewer_filter_duration_seconds",
			Help:    "Time spent filtering the full indicator set",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
	)
)
