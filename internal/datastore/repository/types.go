package repository

// BulkResult reports what a bulk insert actually did. With conflict
// skipping enabled, Inserted counts new rows and Skipped counts rows
// whose unique key already existed.
type BulkResult struct {
	Inserted int64
	Skipped  int64
}

// Add accumulates another result into r.
func (r *BulkResult) Add(other BulkResult) {
	r.Inserted += other.Inserted
	r.Skipped += other.Skipped
}

// lookupBatchSize limits the number of values per IN clause to stay
// under SQL parameter limits (SQLite's historical default is 999).
const lookupBatchSize = 500

// insertBatchSize is the row count per INSERT statement inside bulk
// operations. The surrounding transaction still commits atomically.
const insertBatchSize = 500
