package repository

import (
	"context"

	"github.com/syrinxlabs/syrinx/internal/datastore"
	"github.com/syrinxlabs/syrinx/internal/datastore/entities"
	"github.com/syrinxlabs/syrinx/internal/datastore/query"
)

// SyllableRepository provides access to the syllables table.
type SyllableRepository interface {
	// Create inserts one syllable in its own session.
	// Returns ErrDuplicateKey if the spectrogram path is already cataloged.
	Create(ctx context.Context, syl *entities.SyllableEntity) error

	// BulkCreate inserts syllables inside the caller's session. Rows
	// whose spectrogram path already exists are skipped. IDs are only
	// assigned on inserted rows; resolve the rest via IDsByPaths.
	BulkCreate(ctx context.Context, sess *datastore.Session, syls []*entities.SyllableEntity) (BulkResult, error)

	// GetByPath retrieves the syllable cataloged under the spectrogram path.
	// Returns (nil, nil) if no such syllable exists.
	GetByPath(ctx context.Context, spectrogramPath string) (*entities.SyllableEntity, error)

	// GetByChecksum retrieves every syllable with the given checksum.
	// Returns an empty slice if none match.
	GetByChecksum(ctx context.Context, checksum string) ([]*entities.SyllableEntity, error)

	// ChecksumsByPaths returns spectrogram path -> checksum for the
	// cataloged subset of paths, read inside the caller's session.
	ChecksumsByPaths(ctx context.Context, sess *datastore.Session, paths []string) (map[string]string, error)

	// IDsByPaths returns spectrogram path -> id for the cataloged subset
	// of paths, read from committed state.
	IDsByPaths(ctx context.Context, paths []string) (map[string]uint, error)

	// IDsByPathsInSession is IDsByPaths inside the caller's session, so
	// rows the session has inserted but not yet committed are visible.
	IDsByPathsInSession(ctx context.Context, sess *datastore.Session, paths []string) (map[string]uint, error)

	// ListByRecording returns a recording's syllables in deterministic
	// (created_at, id) order.
	ListByRecording(ctx context.Context, recordingID uint) ([]*entities.SyllableEntity, error)

	// Filter executes a query builder against the catalog. The result is
	// fully materialized and deterministically ordered; execution is
	// bounded by the configured query timeout.
	Filter(ctx context.Context, b query.Builder) ([]*entities.SyllableEntity, error)

	// Count returns the total number of syllables.
	Count(ctx context.Context) (int64, error)

	// DeleteByID removes a syllable; embeddings and annotations under it
	// cascade. Returns ErrSyllableNotFound if no row was deleted.
	DeleteByID(ctx context.Context, id uint) error
}
