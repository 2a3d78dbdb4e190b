// Package metrics - shared label values and bucket parameters.
package metrics

// Operation names accepted by the Recorder and switched on by the
// collector bundles.
const (
	// OpDbQuery covers read statements against the catalog.
	OpDbQuery = "db_query"
	// OpDbInsert covers insert statements.
	OpDbInsert = "db_insert"
	// OpDbUpdate covers update statements.
	OpDbUpdate = "db_update"
	// OpDbDelete covers delete statements.
	OpDbDelete = "db_delete"
	// OpTransaction covers whole write sessions.
	OpTransaction = "transaction"
	// OpSearch covers filtered syllable searches.
	OpSearch = "search"
	// OpChecksum covers artifact hashing.
	OpChecksum = "checksum"
	// OpDiscover covers filesystem walks.
	OpDiscover = "discover"
	// OpManifestParse covers sidecar manifest decoding.
	OpManifestParse = "manifest_parse"
)

// Values for the operation label on duration families.
const (
	LabelQuery  = "query"
	LabelCommit = "commit"
	// LabelIngest marks one ingest batch from open to commit.
	LabelIngest = "ingest"
)

// Parameters for the exponential duration buckets. Statement latencies
// start at 1ms, batch work at 10ms, whole phases at 100ms.
const (
	BucketStart1ms   = 0.001
	BucketStart10ms  = 0.01
	BucketStart100ms = 0.1

	// BucketFactor2 doubles each bucket bound.
	BucketFactor2 = 2

	BucketCount10 = 10
	BucketCount12 = 12
	BucketCount15 = 15
)

// SplitPartsCount is the part count of an "operation:table" recorder key.
const SplitPartsCount = 2
