// Package datastore bridges to the observability metrics collectors.
package datastore

import (
	"github.com/syrinxlabs/syrinx/internal/observability/metrics"
)

// Metrics aliases the datastore collector bundle so callers inside this
// package and the repository layer share one type. A nil *Metrics disables
// recording everywhere it is accepted.
type Metrics = metrics.DatastoreMetrics
