package repository

import (
	"context"

	"github.com/syrinxlabs/syrinx/internal/datastore"
	"github.com/syrinxlabs/syrinx/internal/datastore/entities"
)

// EmbeddingRepository provides access to the embeddings table.
type EmbeddingRepository interface {
	// Create inserts one embedding in its own session.
	// Returns ErrDuplicateKey if the vector path is already cataloged.
	Create(ctx context.Context, emb *entities.EmbeddingEntity) error

	// BulkCreate inserts embeddings inside the caller's session. Rows
	// whose vector path already exists are skipped.
	BulkCreate(ctx context.Context, sess *datastore.Session, embs []*entities.EmbeddingEntity) (BulkResult, error)

	// GetByPath retrieves the embedding cataloged under the vector path.
	// Returns (nil, nil) if no such embedding exists.
	GetByPath(ctx context.Context, embeddingPath string) (*entities.EmbeddingEntity, error)

	// ChecksumsByPaths returns vector path -> checksum for the cataloged
	// subset of paths, read inside the caller's session.
	ChecksumsByPaths(ctx context.Context, sess *datastore.Session, paths []string) (map[string]string, error)

	// ListBySyllable returns a syllable's embeddings in deterministic
	// (created_at, id) order.
	ListBySyllable(ctx context.Context, syllableID uint) ([]*entities.EmbeddingEntity, error)

	// List returns embeddings in deterministic (created_at, id) order.
	// limit <= 0 means no cap.
	List(ctx context.Context, limit, offset int) ([]*entities.EmbeddingEntity, error)

	// ModelVersions returns every distinct model version in the catalog,
	// sorted ascending.
	ModelVersions(ctx context.Context) ([]string, error)

	// Count returns the total number of embeddings.
	Count(ctx context.Context) (int64, error)

	// DeleteByID removes an embedding.
	// Returns ErrEmbeddingNotFound if no row was deleted.
	DeleteByID(ctx context.Context, id uint) error
}
