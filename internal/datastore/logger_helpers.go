// Package datastore - classification of SQL text and engine errors for
// metric labels.
package datastore

import (
	"regexp"
	"strings"
)

// sqlUnknown labels statements whose operation or table cannot be derived.
const sqlUnknown = "unknown"

// sqlPatterns maps statement shapes to the operation label, first match
// wins. The capture group is the table name, with optional quoting in
// any of the sqlite and mysql styles.
var sqlPatterns = []struct {
	operation string
	re        *regexp.Regexp
}{
	{"select", regexp.MustCompile(`(?i)^\s*SELECT\s+.*?\s+FROM\s+['"\x60]?(\w+)['"\x60]?`)},
	{"insert", regexp.MustCompile(`(?i)^\s*INSERT\s+INTO\s+['"\x60]?(\w+)['"\x60]?`)},
	{"update", regexp.MustCompile(`(?i)^\s*UPDATE\s+['"\x60]?(\w+)['"\x60]?`)},
	{"delete", regexp.MustCompile(`(?i)^\s*DELETE\s+FROM\s+['"\x60]?(\w+)['"\x60]?`)},
	{"create", regexp.MustCompile(`(?i)^\s*CREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?['"\x60]?(\w+)['"\x60]?`)},
	{"drop", regexp.MustCompile(`(?i)^\s*DROP\s+TABLE\s+(?:IF\s+EXISTS\s+)?['"\x60]?(\w+)['"\x60]?`)},
	{"alter", regexp.MustCompile(`(?i)^\s*ALTER\s+TABLE\s+['"\x60]?(\w+)['"\x60]?`)},
}

// parseSQLOperation derives the operation and table metric labels from
// raw SQL text.
func parseSQLOperation(sql string) (operation, table string) {
	sql = strings.TrimSpace(sql)
	for _, p := range sqlPatterns {
		if m := p.re.FindStringSubmatch(sql); len(m) > 1 {
			return p.operation, m[1]
		}
	}
	return sqlUnknown, sqlUnknown
}

// categorizeError buckets an engine error by message wording. The labels
// feed the error-count families; the wording covers both the sqlite and
// mysql spellings of each condition.
func categorizeError(err error) string {
	if err == nil {
		return "none"
	}

	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "unique constraint") || strings.Contains(errStr, "duplicate key") ||
		strings.Contains(errStr, "duplicate entry") || strings.Contains(errStr, "check constraint"):
		return "constraint_violation"
	case strings.Contains(errStr, "deadlock"):
		return "deadlock"
	case strings.Contains(errStr, "foreign key"):
		return "foreign_key_violation"
	case strings.Contains(errStr, "not null"):
		return "null_violation"
	case strings.Contains(errStr, "database is locked"):
		return "database_locked"
	case strings.Contains(errStr, "connection"):
		return "connection_error"
	case strings.Contains(errStr, "timeout"):
		return "timeout"
	case strings.Contains(errStr, "syntax"):
		return "syntax_error"
	case strings.Contains(errStr, "permission") || strings.Contains(errStr, "denied"):
		return "permission_denied"
	case strings.Contains(errStr, "disk is full") || strings.Contains(errStr, "disk full") ||
		strings.Contains(errStr, "no space"):
		return "disk_full"
	default:
		return "other"
	}
}

// isConstraintViolation reports whether err is a unique or check
// constraint failure.
func isConstraintViolation(err error) bool {
	return categorizeError(err) == "constraint_violation"
}

// isForeignKeyViolation reports whether err is a referential integrity
// failure.
func isForeignKeyViolation(err error) bool {
	return categorizeError(err) == "foreign_key_violation"
}

// isDiskFull reports whether err indicates exhausted storage, sqlite's
// "database or disk is full" included.
func isDiskFull(err error) bool {
	return err != nil && categorizeError(err) == "disk_full"
}

// isDatabaseLocked reports whether err is a temporary lock condition,
// the only condition eligible for retry.
func isDatabaseLocked(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "database is locked") ||
		strings.Contains(errStr, "database table is locked") ||
		strings.Contains(errStr, "lock wait timeout")
}

// isDatabaseCorruption reports whether err indicates on-disk corruption.
func isDatabaseCorruption(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "malformed") ||
		strings.Contains(errStr, "corrupt") ||
		strings.Contains(errStr, "file is not a database")
}
