// Package observability provides metrics collection for the metadata catalog.
package observability

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/syrinxlabs/syrinx/internal/observability/metrics"
)

// Metrics bundles both collector sets on one private registry.
type Metrics struct {
	registry  *prometheus.Registry
	Datastore *metrics.DatastoreMetrics
	Indexer   *metrics.IndexerMetrics
}

// NewMetrics builds a fresh registry with the storage and ingest
// collector bundles registered.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	datastoreMetrics, err := metrics.NewDatastoreMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create Datastore metrics: %w", err)
	}

	indexerMetrics, err := metrics.NewIndexerMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create Indexer metrics: %w", err)
	}

	return &Metrics{
		registry:  registry,
		Datastore: datastoreMetrics,
		Indexer:   indexerMetrics,
	}, nil
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteText renders the current metric state in the Prometheus text
// exposition format. The CLI uses this to dump counters after a run.
func (m *Metrics) WriteText(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("failed to encode metric family %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
