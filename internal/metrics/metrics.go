package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP Metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameHTTPRequestsTotal,
			Help: HelpTextHTTPRequestsTotal,
		},
		[]string{LabelMethod, LabelPath, LabelStatus},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    MetricNameHTTPRequestDuration,
			Help:    HelpTextHTTPRequestDuration,
			Buckets: HTTPLatencyBuckets,
		},
		[]string{LabelMethod, LabelPath},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: MetricNameHTTPRequestsInFlight,
			Help: HelpTextHTTPRequestsInFlight,
		},
	)
)

// Sync Metrics
var (
	ItemsPushed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameItemsPushed,
			Help: HelpTextItemsPushed,
		},
		[]string{LabelEntityType, LabelOutcome},
	)

	ConflictsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameConflictsDetected,
			Help: HelpTextConflictsDetected,
		},
		[]string{LabelEntityType},
	)

	ConflictsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameConflictsResolved,
			Help: HelpTextConflictsResolved,
		},
		[]string{LabelResolution},
	)

	PullChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNamePullChanges,
			Help: HelpTextPullChanges,
		},
		[]string{LabelEntityType},
	)

	SessionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    MetricNameSessionDuration,
			Help:    HelpTextSessionDuration,
			Buckets: SessionDurationBuckets,
		},
		[]string{LabelSyncType},
	)

	RetriesScheduled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameRetriesScheduled,
			Help: HelpTextRetriesScheduled,
		},
		[]string{LabelEntityType},
	)

	ItemsCleaned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: MetricNameItemsCleaned,
			Help: HelpTextItemsCleaned,
		},
	)
)
