package metrics

// Metric names
const (
	MetricNameHTTPRequestsTotal    = "http_requests_total"
	MetricNameHTTPRequestDuration  = "http_request_duration_seconds"
	MetricNameHTTPRequestsInFlight = "http_requests_in_flight"

	MetricNameItemsPushed       = "sync_items_pushed_total"
	MetricNameConflictsDetected = "sync_conflicts_detected_total"
	MetricNameConflictsResolved = "sync_conflicts_resolved_total"
	MetricNamePullChanges       = "sync_pull_changes_total"
	MetricNameSessionDuration   = "sync_session_duration_seconds"
	MetricNameRetriesScheduled  = "sync_retries_scheduled_total"
	MetricNameItemsCleaned      = "sync_items_cleaned_total"
)

// Help texts
const (
	HelpTextHTTPRequestsTotal    = "Total number of HTTP requests"
	HelpTextHTTPRequestDuration  = "HTTP request latency in seconds"
	HelpTextHTTPRequestsInFlight = "Number of HTTP requests currently being served"

	HelpTextItemsPushed       = "Queue items processed by terminal outcome"
	HelpTextConflictsDetected = "Version conflicts detected during push"
	HelpTextConflictsResolved = "Conflicts resolved, by resolution strategy"
	HelpTextPullChanges       = "Entity changes served to pulling devices"
	HelpTextSessionDuration   = "Sync session duration by sync type"
	HelpTextRetriesScheduled  = "Transient failures requeued with backoff"
	HelpTextItemsCleaned      = "Terminal queue items purged by maintenance"
)

// Label names
const (
	LabelMethod     = "method"
	LabelPath       = "path"
	LabelStatus     = "status"
	LabelOutcome    = "outcome"
	LabelEntityType = "entity_type"
	LabelResolution = "resolution"
	LabelSyncType   = "sync_type"
)

// HTTPLatencyBuckets are tuned for a request/response API
var HTTPLatencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// SessionDurationBuckets cover fast pulls up to large offline push batches
var SessionDurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}
