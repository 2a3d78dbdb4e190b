package repository

import (
	"context"

	"github.com/syrinxlabs/syrinx/internal/datastore"
	"github.com/syrinxlabs/syrinx/internal/datastore/entities"
)

// RecordingRepository provides access to the recordings table.
type RecordingRepository interface {
	// Create inserts one recording in its own session.
	// Returns ErrDuplicateKey if the path is already cataloged.
	Create(ctx context.Context, rec *entities.RecordingEntity) error

	// BulkCreate inserts recordings inside the caller's session. Rows
	// whose path already exists are skipped, not re-inserted. IDs are
	// only assigned on inserted rows; resolve the rest via IDsByPaths.
	BulkCreate(ctx context.Context, sess *datastore.Session, recs []*entities.RecordingEntity) (BulkResult, error)

	// GetByID retrieves a recording by its ID.
	// Returns (nil, nil) if no such recording exists.
	GetByID(ctx context.Context, id uint) (*entities.RecordingEntity, error)

	// GetByPath retrieves the recording cataloged under path.
	// Returns (nil, nil) if no such recording exists.
	GetByPath(ctx context.Context, path string) (*entities.RecordingEntity, error)

	// GetByChecksum retrieves every recording with the given checksum.
	// The same audio content at two paths yields two rows. Returns an
	// empty slice if none match.
	GetByChecksum(ctx context.Context, checksum string) ([]*entities.RecordingEntity, error)

	// ChecksumsByPaths returns path -> checksum for the cataloged subset
	// of paths, read inside the caller's session so the answer is
	// consistent with the transaction's snapshot. Chunks large path sets
	// to stay under SQL parameter limits.
	ChecksumsByPaths(ctx context.Context, sess *datastore.Session, paths []string) (map[string]string, error)

	// IDsByPaths returns path -> id for the cataloged subset of paths,
	// read from committed state. Chunks large path sets.
	IDsByPaths(ctx context.Context, paths []string) (map[string]uint, error)

	// List returns recordings in deterministic (created_at, id) order.
	// limit <= 0 means no cap.
	List(ctx context.Context, limit, offset int) ([]*entities.RecordingEntity, error)

	// Count returns the total number of recordings.
	Count(ctx context.Context) (int64, error)

	// DeleteByID removes a recording; syllables, embeddings, and
	// annotations under it cascade. Returns ErrRecordingNotFound if no
	// row was deleted.
	DeleteByID(ctx context.Context, id uint) error
}
