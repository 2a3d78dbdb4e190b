// Package metrics - the ingest-side collector bundle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// IndexerMetrics holds the Prometheus families the indexer records into:
// discovery, checksumming, manifest parsing, batch upserts, and whole
// ingest runs.
type IndexerMetrics struct {
	registry *prometheus.Registry

	// Discovery metrics
	filesDiscoveredTotal *prometheus.CounterVec
	discoveryDuration    *prometheus.HistogramVec

	// Checksum metrics
	checksumDuration    *prometheus.HistogramVec
	checksumBytesTotal  *prometheus.CounterVec
	checksumErrorsTotal *prometheus.CounterVec

	// Manifest metrics
	manifestsParsedTotal     *prometheus.CounterVec
	manifestParseErrorsTotal *prometheus.CounterVec

	// Upsert metrics
	recordsUpsertedTotal *prometheus.CounterVec
	batchCommitDuration  *prometheus.HistogramVec
	batchSizeHist        *prometheus.HistogramVec

	// Integrity metrics
	integrityFailuresTotal *prometheus.CounterVec

	// Run metrics
	ingestRunsTotal *prometheus.CounterVec
	phaseDuration   *prometheus.HistogramVec
	workersGauge    prometheus.Gauge

	// every collector above, in registration order
	collectors []prometheus.Collector
}

// NewIndexerMetrics builds the bundle and registers it with registry.
func NewIndexerMetrics(registry *prometheus.Registry) (*IndexerMetrics, error) {
	m := &IndexerMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics declares every family of the bundle.
func (m *IndexerMetrics) initMetrics() error {
	// Discovery metrics
	m.filesDiscoveredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_files_discovered_total",
			Help: "Total number of artifact files discovered on disk",
		},
		[]string{"kind"}, // kind: audio, segments, embeddings
	)

	m.discoveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "indexer_discovery_duration_seconds",
			Help:    "Time taken to walk data roots and match artifact globs",
			Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount12), // 10ms to ~40s
		},
		[]string{"root"},
	)

	// Checksum metrics
	m.checksumDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "indexer_checksum_duration_seconds",
			Help:    "Time taken to checksum artifact files",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15), // 1ms to ~32s
		},
		[]string{"algorithm"},
	)

	m.checksumBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_checksum_bytes_total",
			Help: "Total number of bytes hashed while checksumming artifacts",
		},
		[]string{"algorithm"},
	)

	m.checksumErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_checksum_errors_total",
			Help: "Total number of checksum computation failures",
		},
		[]string{"algorithm", "error_type"},
	)

	// Manifest metrics
	m.manifestsParsedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_manifests_parsed_total",
			Help: "Total number of sidecar manifests parsed",
		},
		[]string{"kind", "status"}, // kind: segments, embeddings; status: success, error
	)

	m.manifestParseErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_manifest_parse_errors_total",
			Help: "Total number of sidecar manifest parse failures",
		},
		[]string{"kind", "error_type"},
	)

	// Upsert metrics
	m.recordsUpsertedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_records_upserted_total",
			Help: "Total number of metadata records processed by outcome",
		},
		[]string{"table", "outcome"}, // outcome: inserted, skipped
	)

	m.batchCommitDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "indexer_batch_commit_duration_seconds",
			Help:    "Time taken to commit an ingest batch transaction",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15), // 1ms to ~32s
		},
		[]string{"table"},
	)

	m.batchSizeHist = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "indexer_batch_size_records",
			Help:    "Number of records per ingest batch transaction",
			Buckets: []float64{100, 500, 1000, 2000, 5000, 10000, 50000},
		},
		[]string{"table"},
	)

	// Integrity metrics
	m.integrityFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_integrity_failures_total",
			Help: "Total number of integrity failures detected during ingest or validation",
		},
		[]string{"reason"}, // reason: checksum_mismatch, metadata_conflict, missing_parent, missing_file
	)

	// Run metrics
	m.ingestRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_ingest_runs_total",
			Help: "Total number of ingest runs by final status",
		},
		[]string{"status"}, // status: success, error
	)

	m.phaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "indexer_phase_duration_seconds",
			Help:    "Time taken for each ingest phase",
			Buckets: prometheus.ExponentialBuckets(BucketStart100ms, BucketFactor2, BucketCount15), // 100ms to ~54min
		},
		[]string{"phase"}, // phase: recordings, segments, embeddings
	)

	m.workersGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "indexer_workers",
		Help: "Number of checksum workers in the current ingest run",
	})

	m.collectors = []prometheus.Collector{
		m.filesDiscoveredTotal,
		m.discoveryDuration,
		m.checksumDuration,
		m.checksumBytesTotal,
		m.checksumErrorsTotal,
		m.manifestsParsedTotal,
		m.manifestParseErrorsTotal,
		m.recordsUpsertedTotal,
		m.batchCommitDuration,
		m.batchSizeHist,
		m.integrityFailuresTotal,
		m.ingestRunsTotal,
		m.phaseDuration,
		m.workersGauge,
	}

	return nil
}

// Describe implements prometheus.Collector.
func (m *IndexerMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (m *IndexerMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// Discovery recording methods

// RecordFilesDiscovered adds to the count of discovered artifact files
func (m *IndexerMetrics) RecordFilesDiscovered(kind string, count int) {
	m.filesDiscoveredTotal.WithLabelValues(kind).Add(float64(count))
}

// RecordDiscoveryDuration records the duration of a data root walk
func (m *IndexerMetrics) RecordDiscoveryDuration(root string, duration float64) {
	m.discoveryDuration.WithLabelValues(root).Observe(duration)
}

// Checksum recording methods

// RecordChecksum records a completed checksum computation
func (m *IndexerMetrics) RecordChecksum(algorithm string, duration float64, bytes int64) {
	m.checksumDuration.WithLabelValues(algorithm).Observe(duration)
	m.checksumBytesTotal.WithLabelValues(algorithm).Add(float64(bytes))
}

// RecordChecksumError records a checksum computation failure
func (m *IndexerMetrics) RecordChecksumError(algorithm, errorType string) {
	m.checksumErrorsTotal.WithLabelValues(algorithm, errorType).Inc()
}

// Manifest recording methods

// RecordManifestParsed records a sidecar manifest parse attempt
func (m *IndexerMetrics) RecordManifestParsed(kind, status string) {
	m.manifestsParsedTotal.WithLabelValues(kind, status).Inc()
}

// RecordManifestParseError records a sidecar manifest parse failure
func (m *IndexerMetrics) RecordManifestParseError(kind, errorType string) {
	m.manifestParseErrorsTotal.WithLabelValues(kind, errorType).Inc()
	m.manifestsParsedTotal.WithLabelValues(kind, "error").Inc()
}

// Upsert recording methods

// RecordRecordsUpserted adds to the count of processed metadata records
func (m *IndexerMetrics) RecordRecordsUpserted(table, outcome string, count int) {
	m.recordsUpsertedTotal.WithLabelValues(table, outcome).Add(float64(count))
}

// RecordBatchCommit records a committed batch transaction
func (m *IndexerMetrics) RecordBatchCommit(table string, duration float64, records int) {
	m.batchCommitDuration.WithLabelValues(table).Observe(duration)
	m.batchSizeHist.WithLabelValues(table).Observe(float64(records))
}

// Integrity recording methods

// RecordIntegrityFailure records a detected integrity failure
func (m *IndexerMetrics) RecordIntegrityFailure(reason string) {
	m.integrityFailuresTotal.WithLabelValues(reason).Inc()
}

// Run recording methods

// RecordIngestRun records a completed ingest run
func (m *IndexerMetrics) RecordIngestRun(status string) {
	m.ingestRunsTotal.WithLabelValues(status).Inc()
}

// RecordPhaseDuration records the duration of an ingest phase
func (m *IndexerMetrics) RecordPhaseDuration(phase string, duration float64) {
	m.phaseDuration.WithLabelValues(phase).Observe(duration)
}

// UpdateWorkerCount updates the checksum worker gauge
func (m *IndexerMetrics) UpdateWorkerCount(workers int) {
	m.workersGauge.Set(float64(workers))
}

// RecordOperation implements the Recorder interface. It accepts the
// "discover", "checksum" and "manifest_parse" operations with a
// "success" or "error" status.
func (m *IndexerMetrics) RecordOperation(operation, status string) {
	switch operation {
	case OpDiscover:
		m.ingestRunsTotal.WithLabelValues(status).Inc()
	case OpManifestParse:
		m.manifestsParsedTotal.WithLabelValues("unknown", status).Inc()
	}
}

// RecordDuration implements the Recorder interface.
func (m *IndexerMetrics) RecordDuration(operation string, seconds float64) {
	switch operation {
	case OpDiscover:
		m.discoveryDuration.WithLabelValues("unknown").Observe(seconds)
	case OpChecksum:
		m.checksumDuration.WithLabelValues("unknown").Observe(seconds)
	}
}

// RecordError implements the Recorder interface.
func (m *IndexerMetrics) RecordError(operation, errorType string) {
	switch operation {
	case OpChecksum:
		m.checksumErrorsTotal.WithLabelValues("unknown", errorType).Inc()
	case OpManifestParse:
		m.manifestParseErrorsTotal.WithLabelValues("unknown", errorType).Inc()
	}
}
