// Package errors - optional reporting hook
package errors

import (
	"sync"
	"sync/atomic"
)

// Reporter receives every enhanced error built while a hook is installed.
// The default is no reporter at all; installing one is opt-in and the
// subsystem carries no reporting backend of its own.
type Reporter interface {
	ReportError(ee *EnhancedError)
	IsEnabled() bool
}

var (
	hasActiveReporting atomic.Bool
	reporterMu         sync.RWMutex
	activeReporter     Reporter
)

// SetReporter installs or removes (nil) the process-wide reporting hook.
func SetReporter(r Reporter) {
	reporterMu.Lock()
	defer reporterMu.Unlock()
	activeReporter = r
	hasActiveReporting.Store(r != nil && r.IsEnabled())
}

func notifyReporter(ee *EnhancedError) {
	reporterMu.RLock()
	r := activeReporter
	reporterMu.RUnlock()

	if r == nil || !r.IsEnabled() || ee.IsReported() {
		return
	}

	r.ReportError(ee)
	ee.MarkReported()
}
