//go:build ruleguard

package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// WaitGroupGo detects the manual Add/Done WaitGroup pattern and
// suggests Go 1.25's wg.Go, which cannot leave the counter unbalanced.
//
// Old pattern:
//
//	wg.Add(1)
//	go func() {
//	    defer wg.Done()
//	    hashFile(path)
//	}()
//
// New pattern:
//
//	wg.Go(func() {
//	    hashFile(path)
//	})
//
// See: https://pkg.go.dev/sync#WaitGroup.Go
func WaitGroupGo(m dsl.Matcher) {
	m.Match(
		`$wg.Add(1); go func() { defer $wg.Done(); $*body }()`,
	).
		Where(m["wg"].Type.Is("*sync.WaitGroup") || m["wg"].Type.Is("sync.WaitGroup")).
		Report("use $wg.Go(func() { $body }) instead of the manual Add/Done pattern (Go 1.25+)").
		Suggest("$wg.Go(func() { $body })")
}

// TimerChannelLen detects len or cap checks on timer and ticker
// channels. Since Go 1.23 those channels are unbuffered, so the checks
// always yield 0 and the guarded receive never runs.
//
// Broken pattern:
//
//	if len(timer.C) > 0 {
//	    <-timer.C
//	}
//
// Correct pattern:
//
//	select {
//	case <-timer.C:
//	default:
//	}
//
// See: https://go.dev/doc/go1.23#timer-changes
func TimerChannelLen(m dsl.Matcher) {
	m.Match(`len($t.C)`, `cap($t.C)`).
		Where(m["t"].Type.Is("*time.Timer")).
		Report("timer channels are unbuffered since Go 1.23; len/cap is always 0, use a non-blocking select")

	m.Match(`len($t.C)`, `cap($t.C)`).
		Where(m["t"].Type.Is("*time.Ticker")).
		Report("ticker channels are unbuffered since Go 1.23; len/cap is always 0, use a non-blocking select")
}
