package repository

import (
	"time"

	"github.com/syrinxlabs/syrinx/internal/datastore"
)

// Repositories bundles one repository per catalog entity. The indexer
// and the CLI receive this bundle instead of constructing repositories
// piecemeal.
type Repositories struct {
	Recordings  RecordingRepository
	Syllables   SyllableRepository
	Embeddings  EmbeddingRepository
	Annotations AnnotationRepository
}

// NewRepositories wires all four repositories against one store.
// queryTimeout bounds read operations; metrics may be nil.
func NewRepositories(store datastore.Interface, queryTimeout time.Duration, metrics *datastore.Metrics) *Repositories {
	return &Repositories{
		Recordings:  NewRecordingRepository(store, queryTimeout),
		Syllables:   NewSyllableRepository(store, queryTimeout, metrics),
		Embeddings:  NewEmbeddingRepository(store, queryTimeout),
		Annotations: NewAnnotationRepository(store, queryTimeout),
	}
}
