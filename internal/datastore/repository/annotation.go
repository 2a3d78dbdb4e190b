package repository

import (
	"context"

	"github.com/syrinxlabs/syrinx/internal/datastore"
	"github.com/syrinxlabs/syrinx/internal/datastore/entities"
)

// AnnotationRepository provides access to the annotations table.
// Annotations are append-only enrichment; there is no uniqueness
// constraint, so the same key can be recorded repeatedly as curation
// opinions accumulate.
type AnnotationRepository interface {
	// Create inserts one annotation in its own session.
	Create(ctx context.Context, ann *entities.AnnotationEntity) error

	// BulkCreate inserts annotations inside the caller's session.
	BulkCreate(ctx context.Context, sess *datastore.Session, anns []*entities.AnnotationEntity) (BulkResult, error)

	// ListBySyllable returns a syllable's annotations in deterministic
	// (created_at, id) order.
	ListBySyllable(ctx context.Context, syllableID uint) ([]*entities.AnnotationEntity, error)

	// Types returns every distinct annotation type in the catalog,
	// sorted ascending.
	Types(ctx context.Context) ([]string, error)

	// Count returns the total number of annotations.
	Count(ctx context.Context) (int64, error)

	// DeleteByID removes an annotation.
	// Returns ErrAnnotationNotFound if no row was deleted.
	DeleteByID(ctx context.Context, id uint) error
}
