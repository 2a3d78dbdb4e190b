// Package metrics - the storage-layer collector bundle.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// DatastoreMetrics contains Prometheus metrics for catalog storage
// operations. The GORM logger feeds the per-statement families, the
// session machinery feeds the transaction and session families, and the
// syllable repository feeds the search families.
type DatastoreMetrics struct {
	registry *prometheus.Registry

	// Per-statement metrics, recorded by the GORM logger
	dbOperationsTotal      *prometheus.CounterVec
	dbOperationDuration    *prometheus.HistogramVec
	dbOperationErrorsTotal *prometheus.CounterVec
	dbQueryResultSizeHist  *prometheus.HistogramVec

	// Transaction metrics
	dbTransactionsTotal       *prometheus.CounterVec
	dbTransactionDuration     *prometheus.HistogramVec
	dbTransactionRetriesTotal *prometheus.CounterVec

	// Write session metrics
	sessionsOpenGauge    prometheus.Gauge
	sessionOutcomesTotal *prometheus.CounterVec

	// Connection pool gauges
	dbConnectionsActiveGauge prometheus.Gauge
	dbConnectionsIdleGauge   prometheus.Gauge
	dbConnectionsMaxGauge    prometheus.Gauge

	// Filtered search metrics, recorded by the syllable repository
	searchOperationsTotal   *prometheus.CounterVec
	searchOperationDuration *prometheus.HistogramVec
	searchResultSizeHist    *prometheus.HistogramVec
	searchFilterComplexity  *prometheus.HistogramVec

	// Catalog table sizes, refreshed whenever row counts are read
	dbTableRowCountGauge *prometheus.GaugeVec

	// every collector above, in registration order
	collectors []prometheus.Collector
}

// NewDatastoreMetrics builds the bundle and registers it with registry.
func NewDatastoreMetrics(registry *prometheus.Registry) (*DatastoreMetrics, error) {
	m := &DatastoreMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics declares every family of the bundle.
func (m *DatastoreMetrics) initMetrics() error {
	// Per-statement metrics
	m.dbOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datastore_db_operations_total",
			Help: "Statements executed against the catalog, by operation and table",
		},
		[]string{"operation", "table", "status"}, // status: success, error
	)

	m.dbOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datastore_db_operation_duration_seconds",
			Help:    "Statement execution time against the catalog",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15), // 1ms to ~32s
		},
		[]string{"operation", "table"},
	)

	m.dbOperationErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datastore_db_operation_errors_total",
			Help: "Failed catalog statements, by classified error type",
		},
		[]string{"operation", "table", "error_type"},
	)

	m.dbQueryResultSizeHist = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "datastore_db_query_result_size_rows",
			Help: "Rows returned per catalog read",
			// List windows are bounded by the ingest batch size, so the
			// interesting resolution sits around one batch.
			Buckets: []float64{1, 10, 100, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"operation", "table"},
	)

	// Transaction metrics
	m.dbTransactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datastore_db_transactions_total",
			Help: "Total number of database transactions",
		},
		[]string{"status"}, // status: committed, rolled_back, error
	)

	m.dbTransactionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datastore_db_transaction_duration_seconds",
			Help:    "Open-to-commit time of catalog transactions",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15), // 1ms to ~32s
		},
		[]string{"operation"},
	)

	m.dbTransactionRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datastore_db_transaction_retries_total",
			Help: "Transient-error retries of catalog transactions",
		},
		[]string{"operation", "retry_reason"},
	)

	// Write session metrics
	m.sessionsOpenGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "datastore_sessions_open",
		Help: "Number of currently open write sessions",
	})

	m.sessionOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datastore_session_outcomes_total",
			Help: "Closed write sessions, by final state",
		},
		[]string{"outcome"}, // outcome: committed, rolled_back
	)

	// Connection pool gauges
	m.dbConnectionsActiveGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "datastore_db_connections_active",
		Help: "Connections currently executing catalog work",
	})

	m.dbConnectionsIdleGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "datastore_db_connections_idle",
		Help: "Connections sitting idle in the pool",
	})

	m.dbConnectionsMaxGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "datastore_db_connections_max",
		Help: "Configured connection pool ceiling",
	})

	// Filtered search metrics
	m.searchOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datastore_search_operations_total",
			Help: "Filtered syllable searches executed",
		},
		[]string{"search_type", "status"},
	)

	m.searchOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datastore_search_operation_duration_seconds",
			Help:    "Filtered search execution time, including join fan-out",
			Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount12), // 10ms to ~40s
		},
		[]string{"search_type"},
	)

	m.searchResultSizeHist = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "datastore_search_result_size_rows",
			Help: "Syllables returned per filtered search",
			// Dataset selections are usually limit-bounded; unbounded
			// pulls of a large catalog land in the top buckets.
			Buckets: []float64{1, 10, 100, 1000, 10000, 100000},
		},
		[]string{"search_type"},
	)

	m.searchFilterComplexity = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "datastore_search_filter_complexity",
			Help: "Predicates carried by each executed filter",
			// The builder has five predicate kinds; annotation and model
			// predicates are the only ones that stack.
			Buckets: []float64{1, 2, 3, 4, 6, 8, 12},
		},
		[]string{"search_type"},
	)

	m.dbTableRowCountGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "datastore_db_table_row_count",
		Help: "Rows currently cataloged per table",
	}, []string{"table"})

	m.collectors = []prometheus.Collector{
		m.dbOperationsTotal,
		m.dbOperationDuration,
		m.dbOperationErrorsTotal,
		m.dbQueryResultSizeHist,
		m.dbTransactionsTotal,
		m.dbTransactionDuration,
		m.dbTransactionRetriesTotal,
		m.sessionsOpenGauge,
		m.sessionOutcomesTotal,
		m.dbConnectionsActiveGauge,
		m.dbConnectionsIdleGauge,
		m.dbConnectionsMaxGauge,
		m.searchOperationsTotal,
		m.searchOperationDuration,
		m.searchResultSizeHist,
		m.searchFilterComplexity,
		m.dbTableRowCountGauge,
	}

	return nil
}

// Describe implements prometheus.Collector.
func (m *DatastoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (m *DatastoreMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// Per-statement recording, driven by the GORM logger

// RecordDbOperation counts one executed statement.
func (m *DatastoreMetrics) RecordDbOperation(operation, table, status string) {
	m.dbOperationsTotal.WithLabelValues(operation, table, status).Inc()
}

// RecordDbOperationDuration observes how long one statement took.
func (m *DatastoreMetrics) RecordDbOperationDuration(operation, table string, duration float64) {
	m.dbOperationDuration.WithLabelValues(operation, table).Observe(duration)
}

// RecordDbOperationError counts one failed statement with its classified type.
func (m *DatastoreMetrics) RecordDbOperationError(operation, table, errorType string) {
	m.dbOperationErrorsTotal.WithLabelValues(operation, table, errorType).Inc()
}

// RecordQueryResultSize observes how many rows a read returned.
func (m *DatastoreMetrics) RecordQueryResultSize(operation, table string, resultSize int) {
	m.dbQueryResultSizeHist.WithLabelValues(operation, table).Observe(float64(resultSize))
}

// Transaction recording, driven by sessions and the retry wrapper

// RecordTransaction counts one finished transaction by outcome.
func (m *DatastoreMetrics) RecordTransaction(status string) {
	m.dbTransactionsTotal.WithLabelValues(status).Inc()
}

// RecordTransactionDuration observes the open-to-commit time of a transaction.
func (m *DatastoreMetrics) RecordTransactionDuration(operation string, duration float64) {
	m.dbTransactionDuration.WithLabelValues(operation).Observe(duration)
}

// RecordTransactionRetry counts one transient-error retry attempt.
func (m *DatastoreMetrics) RecordTransactionRetry(operation, retryReason string) {
	m.dbTransactionRetriesTotal.WithLabelValues(operation, retryReason).Inc()
}

// Write session lifecycle

// SessionOpened notes a write session entering Created.
func (m *DatastoreMetrics) SessionOpened() {
	m.sessionsOpenGauge.Inc()
}

// SessionClosed notes a write session reaching Closed, with the outcome
// it closed under.
func (m *DatastoreMetrics) SessionClosed(outcome string) {
	m.sessionsOpenGauge.Dec()
	m.sessionOutcomesTotal.WithLabelValues(outcome).Inc()
}

// UpdateConnectionMetrics refreshes the pool gauges from sql.DBStats.
func (m *DatastoreMetrics) UpdateConnectionMetrics(active, idle, maxConn int) {
	m.dbConnectionsActiveGauge.Set(float64(active))
	m.dbConnectionsIdleGauge.Set(float64(idle))
	m.dbConnectionsMaxGauge.Set(float64(maxConn))
}

// Filtered search recording, driven by the syllable repository

// RecordSearchOperation counts one executed filter by outcome.
func (m *DatastoreMetrics) RecordSearchOperation(searchType, status string) {
	m.searchOperationsTotal.WithLabelValues(searchType, status).Inc()
}

// RecordSearchDuration observes how long a filter took end to end.
func (m *DatastoreMetrics) RecordSearchDuration(searchType string, duration float64) {
	m.searchOperationDuration.WithLabelValues(searchType).Observe(duration)
}

// RecordSearchResultSize observes how many syllables a filter returned.
func (m *DatastoreMetrics) RecordSearchResultSize(searchType string, resultSize int) {
	m.searchResultSizeHist.WithLabelValues(searchType).Observe(float64(resultSize))
}

// RecordSearchComplexity observes how many predicates a filter carried.
func (m *DatastoreMetrics) RecordSearchComplexity(searchType string, complexity float64) {
	m.searchFilterComplexity.WithLabelValues(searchType).Observe(complexity)
}

// UpdateTableRowCount refreshes the per-table size gauge.
func (m *DatastoreMetrics) UpdateTableRowCount(table string, rowCount int64) {
	m.dbTableRowCountGauge.WithLabelValues(table).Set(float64(rowCount))
}

// parseTableFromOperation splits a Recorder operation like
// "db_query:recordings" into its verb and table; operations without a
// table report "unknown".
func parseTableFromOperation(operation string) (op, table string) {
	parts := strings.SplitN(operation, ":", SplitPartsCount)
	if len(parts) == SplitPartsCount {
		return parts[0], parts[1]
	}
	return operation, "unknown"
}

// RecordOperation implements the Recorder interface. Database operations
// use the "operation:table" form, e.g. "db_insert:syllables".
func (m *DatastoreMetrics) RecordOperation(operation, status string) {
	op, table := parseTableFromOperation(operation)

	switch op {
	case OpDbQuery, OpDbInsert, OpDbUpdate, OpDbDelete:
		m.dbOperationsTotal.WithLabelValues(op, table, status).Inc()
	case OpTransaction:
		m.dbTransactionsTotal.WithLabelValues(status).Inc()
	case OpSearch:
		m.searchOperationsTotal.WithLabelValues(OpSearch, status).Inc()
	}
}

// RecordDuration implements the Recorder interface. Database operations
// use the "operation:table" form.
func (m *DatastoreMetrics) RecordDuration(operation string, seconds float64) {
	op, table := parseTableFromOperation(operation)

	switch op {
	case OpDbQuery, OpDbInsert, OpDbUpdate, OpDbDelete:
		m.dbOperationDuration.WithLabelValues(op, table).Observe(seconds)
	case OpTransaction:
		m.dbTransactionDuration.WithLabelValues(LabelCommit).Observe(seconds)
	case OpSearch:
		m.searchOperationDuration.WithLabelValues(LabelQuery).Observe(seconds)
	}
}

// RecordError implements the Recorder interface. Database operations use
// the "operation:table" form; the failure is also counted in the
// operation totals so success ratios stay computable from one family.
func (m *DatastoreMetrics) RecordError(operation, errorType string) {
	op, table := parseTableFromOperation(operation)

	switch op {
	case OpDbQuery, OpDbInsert, OpDbUpdate, OpDbDelete:
		m.dbOperationErrorsTotal.WithLabelValues(op, table, errorType).Inc()
		m.dbOperationsTotal.WithLabelValues(op, table, "error").Inc()
	case OpTransaction:
		m.dbTransactionsTotal.WithLabelValues("error").Inc()
	case OpSearch:
		m.searchOperationsTotal.WithLabelValues(OpSearch, "error").Inc()
	}
}
