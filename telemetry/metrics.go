package telemetry

// Histogram bucket definitions for different latency profiles
var (
	// StatementBuckets for a whole statement, possibly several backend round trips
	StatementBuckets = []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

	// BackendBuckets for a single backend request
	BackendBuckets = []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}
)

// Engine Metrics
var (
	// StatementsTotal counts handled statements by strategy and result (ok, backend_error, error)
	StatementsTotal CounterVec = noopCounterVec{}

	// StatementDurationSeconds measures statement latency by strategy
	StatementDurationSeconds HistogramVec = noopHistogramVec{}

	// ClassificationsTotal counts classifier decisions (admitted, passthrough)
	ClassificationsTotal CounterVec = noopCounterVec{}

	// RewritesTotal counts applied rewrite rules by rule name
	RewritesTotal CounterVec = noopCounterVec{}

	// EngineRetriesTotal counts statements re-run through the engine after a backend error, by origin
	EngineRetriesTotal CounterVec = noopCounterVec{}
)

// Backend Metrics
var (
	// BackendRequestsTotal counts backend requests by result (ok, error, transport_error)
	BackendRequestsTotal CounterVec = noopCounterVec{}

	// BackendRequestSeconds measures backend request latency
	BackendRequestSeconds Histogram = NoopStat{}
)

// Front End Metrics
var (
	// MySQLConnections tracks active MySQL protocol connections
	MySQLConnections Gauge = NoopStat{}

	// TrackedStatements tracks distinct statements in the statement statistics table
	TrackedStatements Gauge = NoopStat{}
)

// InitMetrics initializes all metrics after InitializeTelemetry
func InitMetrics() {
	StatementsTotal = NewCounterVec(
		"statements_total",
		"Statements handled by the engine by strategy and result",
		[]string{"strategy", "result"},
	)
	StatementDurationSeconds = NewHistogramVec(
		"statement_duration_seconds",
		"Statement duration in seconds by strategy",
		[]string{"strategy"},
		StatementBuckets,
	)
	ClassificationsTotal = NewCounterVec(
		"classifications_total",
		"Classifier decisions by result",
		[]string{"result"},
	)
	RewritesTotal = NewCounterVec(
		"rewrites_total",
		"Applied rewrite rules by rule",
		[]string{"rule"},
	)
	EngineRetriesTotal = NewCounterVec(
		"engine_retries_total",
		"Statements retried through the engine after a backend error",
		[]string{"origin"},
	)
	BackendRequestsTotal = NewCounterVec(
		"backend_requests_total",
		"Backend requests by result",
		[]string{"result"},
	)
	BackendRequestSeconds = NewHistogramWithBuckets(
		"backend_request_seconds",
		"Backend request duration in seconds",
		BackendBuckets,
	)
	MySQLConnections = NewGauge(
		"mysql_connections",
		"Number of active MySQL protocol connections",
	)
	TrackedStatements = NewGauge(
		"tracked_statements",
		"Distinct statements in the statement statistics table",
	)
}
