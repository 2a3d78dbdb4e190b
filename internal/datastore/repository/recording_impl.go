package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/syrinxlabs/syrinx/internal/datastore"
	"github.com/syrinxlabs/syrinx/internal/datastore/entities"
)

// recordingRepository implements RecordingRepository.
type recordingRepository struct {
	store   datastore.Interface
	timeout time.Duration
}

// NewRecordingRepository creates a new RecordingRepository. queryTimeout
// bounds read operations; zero disables the bound.
func NewRecordingRepository(store datastore.Interface, queryTimeout time.Duration) RecordingRepository {
	return &recordingRepository{
		store:   store,
		timeout: queryTimeout,
	}
}

// readContext derives the bounded context used for read operations.
func (r *recordingRepository) readContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

// isUniqueViolation reports whether err is a unique constraint failure,
// covering the sqlite and mysql spellings.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry")
}

// Create inserts one recording in its own session.
func (r *recordingRepository) Create(ctx context.Context, rec *entities.RecordingEntity) error {
	if rec == nil || rec.FilePath == "" || rec.Checksum == "" {
		return ErrInvalidInput
	}
	return r.store.WithSession(ctx, func(sess *datastore.Session) error {
		if err := sess.Tx().Create(rec).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateKey
			}
			return err
		}
		return nil
	})
}

// BulkCreate inserts recordings inside the caller's session, skipping
// rows whose path is already cataloged.
func (r *recordingRepository) BulkCreate(ctx context.Context, sess *datastore.Session, recs []*entities.RecordingEntity) (BulkResult, error) {
	if sess == nil {
		return BulkResult{}, ErrInvalidInput
	}
	if len(recs) == 0 {
		return BulkResult{}, nil
	}
	tx := sess.Tx()
	if tx == nil {
		return BulkResult{}, ErrInvalidInput
	}

	result := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "file_path"}},
			DoNothing: true,
		}).
		CreateInBatches(recs, insertBatchSize)
	if result.Error != nil {
		return BulkResult{}, result.Error
	}
	return BulkResult{
		Inserted: result.RowsAffected,
		Skipped:  int64(len(recs)) - result.RowsAffected,
	}, nil
}

// GetByID retrieves a recording by its ID.
func (r *recordingRepository) GetByID(ctx context.Context, id uint) (*entities.RecordingEntity, error) {
	ctx, cancel := r.readContext(ctx)
	defer cancel()

	var rec entities.RecordingEntity
	err := r.store.DB().WithContext(ctx).First(&rec, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetByPath retrieves the recording cataloged under path.
func (r *recordingRepository) GetByPath(ctx context.Context, path string) (*entities.RecordingEntity, error) {
	if path == "" {
		return nil, ErrInvalidInput
	}
	ctx, cancel := r.readContext(ctx)
	defer cancel()

	var rec entities.RecordingEntity
	err := r.store.DB().WithContext(ctx).
		Where("file_path = ?", path).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetByChecksum retrieves every recording with the given checksum.
func (r *recordingRepository) GetByChecksum(ctx context.Context, checksum string) ([]*entities.RecordingEntity, error) {
	if checksum == "" {
		return nil, ErrInvalidInput
	}
	ctx, cancel := r.readContext(ctx)
	defer cancel()

	recs := []*entities.RecordingEntity{}
	err := r.store.DB().WithContext(ctx).
		Where("checksum = ?", checksum).
		Order("created_at ASC, id ASC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// ChecksumsByPaths returns path -> checksum for the cataloged subset of paths.
func (r *recordingRepository) ChecksumsByPaths(ctx context.Context, sess *datastore.Session, paths []string) (map[string]string, error) {
	result := make(map[string]string, len(paths))
	if len(paths) == 0 {
		return result, nil
	}
	if sess == nil {
		return nil, ErrInvalidInput
	}
	tx := sess.Tx()
	if tx == nil {
		return nil, ErrInvalidInput
	}

	type pathChecksum struct {
		FilePath string
		Checksum string
	}
	for start := 0; start < len(paths); start += lookupBatchSize {
		end := min(start+lookupBatchSize, len(paths))

		var rows []pathChecksum
		err := tx.WithContext(ctx).
			Model(&entities.RecordingEntity{}).
			Select("file_path", "checksum").
			Where("file_path IN ?", paths[start:end]).
			Scan(&rows).Error
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			result[row.FilePath] = row.Checksum
		}
	}
	return result, nil
}

// IDsByPaths returns path -> id for the cataloged subset of paths.
func (r *recordingRepository) IDsByPaths(ctx context.Context, paths []string) (map[string]uint, error) {
	result := make(map[string]uint, len(paths))
	if len(paths) == 0 {
		return result, nil
	}
	ctx, cancel := r.readContext(ctx)
	defer cancel()

	type pathID struct {
		FilePath string
		ID       uint
	}
	for start := 0; start < len(paths); start += lookupBatchSize {
		end := min(start+lookupBatchSize, len(paths))

		var rows []pathID
		err := r.store.DB().WithContext(ctx).
			Model(&entities.RecordingEntity{}).
			Select("file_path", "id").
			Where("file_path IN ?", paths[start:end]).
			Scan(&rows).Error
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			result[row.FilePath] = row.ID
		}
	}
	return result, nil
}

// List returns recordings in deterministic order.
func (r *recordingRepository) List(ctx context.Context, limit, offset int) ([]*entities.RecordingEntity, error) {
	ctx, cancel := r.readContext(ctx)
	defer cancel()

	q := r.store.DB().WithContext(ctx).
		Order("created_at ASC, id ASC")
	if offset > 0 {
		q = q.Offset(offset)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	recs := []*entities.RecordingEntity{}
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

// Count returns the total number of recordings.
func (r *recordingRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := r.readContext(ctx)
	defer cancel()

	var n int64
	err := r.store.DB().WithContext(ctx).
		Model(&entities.RecordingEntity{}).
		Count(&n).Error
	return n, err
}

// DeleteByID removes a recording and everything under it.
func (r *recordingRepository) DeleteByID(ctx context.Context, id uint) error {
	return r.store.WithSession(ctx, func(sess *datastore.Session) error {
		result := sess.Tx().Delete(&entities.RecordingEntity{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrRecordingNotFound
		}
		return nil
	})
}
