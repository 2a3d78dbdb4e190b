//go:build ruleguard

package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// TimeSinceUntil detects manual duration arithmetic around time.Now()
// and suggests the dedicated helpers.
//
// Old pattern:
//
//	elapsed := time.Now().Sub(start)
//	remaining := deadline.Sub(time.Now())
//
// New pattern:
//
//	elapsed := time.Since(start)
//	remaining := time.Until(deadline)
func TimeSinceUntil(m dsl.Matcher) {
	m.Match(`time.Now().Sub($x)`).
		Report("use time.Since($x) instead of time.Now().Sub($x)").
		Suggest("time.Since($x)")

	m.Match(`$x.Sub(time.Now())`).
		Report("use time.Until($x) instead of $x.Sub(time.Now())").
		Suggest("time.Until($x)")
}

// NamedLayoutConstants detects magic date/time layout strings that have
// named constants since Go 1.20. The named forms are self-documenting
// and cannot drift apart between call sites. Layouts without a named
// constant (compact session stamps like "20060102") stay literal.
//
// Old pattern:
//
//	t.Format("2006-01-02 15:04:05")
//
// New pattern:
//
//	t.Format(time.DateTime)
//
// See: https://pkg.go.dev/time#pkg-constants
func NamedLayoutConstants(m dsl.Matcher) {
	m.Match(`$t.Format("2006-01-02 15:04:05")`).
		Report("use $t.Format(time.DateTime) instead of a magic layout string").
		Suggest("$t.Format(time.DateTime)")

	m.Match(`$t.Format("2006-01-02")`).
		Report("use $t.Format(time.DateOnly) instead of a magic layout string").
		Suggest("$t.Format(time.DateOnly)")

	m.Match(`$t.Format("15:04:05")`).
		Report("use $t.Format(time.TimeOnly) instead of a magic layout string").
		Suggest("$t.Format(time.TimeOnly)")

	m.Match(`time.Parse("2006-01-02 15:04:05", $s)`).
		Report("use time.Parse(time.DateTime, $s) instead of a magic layout string").
		Suggest("time.Parse(time.DateTime, $s)")

	m.Match(`time.Parse("2006-01-02", $s)`).
		Report("use time.Parse(time.DateOnly, $s) instead of a magic layout string").
		Suggest("time.Parse(time.DateOnly, $s)")

	m.Match(`time.Parse("15:04:05", $s)`).
		Report("use time.Parse(time.TimeOnly, $s) instead of a magic layout string").
		Suggest("time.Parse(time.TimeOnly, $s)")
}

// DeferredTimeSince detects time.Since passed as a deferred call
// argument. Deferred arguments are evaluated when the defer statement
// runs, so the measured duration is always ~0. Phase timing in the
// ingest path depends on getting this right.
//
// Broken pattern:
//
//	start := time.Now()
//	defer logger.Info("done", "elapsed", time.Since(start))
//
// Correct pattern:
//
//	start := time.Now()
//	defer func() { logger.Info("done", "elapsed", time.Since(start)) }()
func DeferredTimeSince(m dsl.Matcher) {
	m.Match(
		`defer $fn(time.Since($start))`,
		`defer $fn(time.Since($start), $*_)`,
		`defer $fn($_, time.Since($start), $*_)`,
	).
		Report("time.Since($start) is evaluated at defer time, not at function exit; wrap the call in func() { ... }")
}
