package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/syrinxlabs/syrinx/internal/datastore"
	"github.com/syrinxlabs/syrinx/internal/datastore/entities"
	"github.com/syrinxlabs/syrinx/internal/datastore/query"
)

// searchTypeFilter labels builder-driven searches in metrics.
const searchTypeFilter = "syllable_filter"

// syllableRepository implements SyllableRepository.
type syllableRepository struct {
	store   datastore.Interface
	timeout time.Duration
	metrics *datastore.Metrics
}

// NewSyllableRepository creates a new SyllableRepository. queryTimeout
// bounds read operations; zero disables the bound. Metrics may be nil.
func NewSyllableRepository(store datastore.Interface, queryTimeout time.Duration, metrics *datastore.Metrics) SyllableRepository {
	return &syllableRepository{
		store:   store,
		timeout: queryTimeout,
		metrics: metrics,
	}
}

func (r *syllableRepository) readContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

// Create inserts one syllable in its own session.
func (r *syllableRepository) Create(ctx context.Context, syl *entities.SyllableEntity) error {
	if syl == nil || syl.SpectrogramPath == "" || syl.RecordingID == 0 {
		return ErrInvalidInput
	}
	if syl.EndTime <= syl.StartTime {
		return ErrInvalidInput
	}
	return r.store.WithSession(ctx, func(sess *datastore.Session) error {
		if err := sess.Tx().Create(syl).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateKey
			}
			return err
		}
		return nil
	})
}

// BulkCreate inserts syllables inside the caller's session, skipping
// rows whose spectrogram path is already cataloged.
func (r *syllableRepository) BulkCreate(ctx context.Context, sess *datastore.Session, syls []*entities.SyllableEntity) (BulkResult, error) {
	if sess == nil {
		return BulkResult{}, ErrInvalidInput
	}
	if len(syls) == 0 {
		return BulkResult{}, nil
	}
	tx := sess.Tx()
	if tx == nil {
		return BulkResult{}, ErrInvalidInput
	}

	result := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "spectrogram_path"}},
			DoNothing: true,
		}).
		CreateInBatches(syls, insertBatchSize)
	if result.Error != nil {
		return BulkResult{}, result.Error
	}
	return BulkResult{
		Inserted: result.RowsAffected,
		Skipped:  int64(len(syls)) - result.RowsAffected,
	}, nil
}

// GetByPath retrieves the syllable cataloged under the spectrogram path.
func (r *syllableRepository) GetByPath(ctx context.Context, spectrogramPath string) (*entities.SyllableEntity, error) {
	if spectrogramPath == "" {
		return nil, ErrInvalidInput
	}
	ctx, cancel := r.readContext(ctx)
	defer cancel()

	var syl entities.SyllableEntity
	err := r.store.DB().WithContext(ctx).
		Where("spectrogram_path = ?", spectrogramPath).
		First(&syl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &syl, nil
}

// GetByChecksum retrieves every syllable with the given checksum.
func (r *syllableRepository) GetByChecksum(ctx context.Context, checksum string) ([]*entities.SyllableEntity, error) {
	if checksum == "" {
		return nil, ErrInvalidInput
	}
	ctx, cancel := r.readContext(ctx)
	defer cancel()

	syls := []*entities.SyllableEntity{}
	err := r.store.DB().WithContext(ctx).
		Where("checksum = ?", checksum).
		Order("created_at ASC, id ASC").
		Find(&syls).Error
	if err != nil {
		return nil, err
	}
	return syls, nil
}

// ChecksumsByPaths returns spectrogram path -> checksum for the cataloged subset.
func (r *syllableRepository) ChecksumsByPaths(ctx context.Context, sess *datastore.Session, paths []string) (map[string]string, error) {
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
		SpectrogramPath string
		Checksum        string
	}
	for start := 0; start < len(paths); start += lookupBatchSize {
		end := min(start+lookupBatchSize, len(paths))

		var rows []pathChecksum
		err := tx.WithContext(ctx).
			Model(&entities.SyllableEntity{}).
			Select("spectrogram_path", "checksum").
			Where("spectrogram_path IN ?", paths[start:end]).
			Scan(&rows).Error
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			result[row.SpectrogramPath] = row.Checksum
		}
	}
	return result, nil
}

// IDsByPaths returns spectrogram path -> id for the cataloged subset.
func (r *syllableRepository) IDsByPaths(ctx context.Context, paths []string) (map[string]uint, error) {
	result := make(map[string]uint, len(paths))
	if len(paths) == 0 {
		return result, nil
	}
	ctx, cancel := r.readContext(ctx)
	defer cancel()

	type pathID struct {
		SpectrogramPath string
		ID              uint
	}
	for start := 0; start < len(paths); start += lookupBatchSize {
		end := min(start+lookupBatchSize, len(paths))

		var rows []pathID
		err := r.store.DB().WithContext(ctx).
			Model(&entities.SyllableEntity{}).
			Select("spectrogram_path", "id").
			Where("spectrogram_path IN ?", paths[start:end]).
			Scan(&rows).Error
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			result[row.SpectrogramPath] = row.ID
		}
	}
	return result, nil
}

// IDsByPathsInSession returns spectrogram path -> id for the cataloged
// subset, read through the session's transaction.
func (r *syllableRepository) IDsByPathsInSession(ctx context.Context, sess *datastore.Session, paths []string) (map[string]uint, error) {
	result := make(map[string]uint, len(paths))
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

	type pathID struct {
		SpectrogramPath string
		ID              uint
	}
	for start := 0; start < len(paths); start += lookupBatchSize {
		end := min(start+lookupBatchSize, len(paths))

		var rows []pathID
		err := tx.WithContext(ctx).
			Model(&entities.SyllableEntity{}).
			Select("spectrogram_path", "id").
			Where("spectrogram_path IN ?", paths[start:end]).
			Scan(&rows).Error
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			result[row.SpectrogramPath] = row.ID
		}
	}
	return result, nil
}

// ListByRecording returns a recording's syllables in deterministic order.
func (r *syllableRepository) ListByRecording(ctx context.Context, recordingID uint) ([]*entities.SyllableEntity, error) {
	if recordingID == 0 {
		return nil, ErrInvalidInput
	}
	ctx, cancel := r.readContext(ctx)
	defer cancel()

	syls := []*entities.SyllableEntity{}
	err := r.store.DB().WithContext(ctx).
		Where("recording_id = ?", recordingID).
		Order("created_at ASC, id ASC").
		Find(&syls).Error
	if err != nil {
		return nil, err
	}
	return syls, nil
}

// Filter executes a query builder against the catalog.
func (r *syllableRepository) Filter(ctx context.Context, b query.Builder) ([]*entities.SyllableEntity, error) {
	ctx, cancel := r.readContext(ctx)
	defer cancel()

	start := time.Now()
	syls := []*entities.SyllableEntity{}
	err := b.Apply(r.store.DB().WithContext(ctx)).Find(&syls).Error

	if r.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		r.metrics.RecordSearchOperation(searchTypeFilter, status)
		r.metrics.RecordSearchDuration(searchTypeFilter, time.Since(start).Seconds())
		r.metrics.RecordSearchComplexity(searchTypeFilter, float64(b.PredicateCount()))
		if err == nil {
			r.metrics.RecordSearchResultSize(searchTypeFilter, len(syls))
		}
	}
	if err != nil {
		return nil, err
	}
	return syls, nil
}

// Count returns the total number of syllables.
func (r *syllableRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := r.readContext(ctx)
	defer cancel()

	var n int64
	err := r.store.DB().WithContext(ctx).
		Model(&entities.SyllableEntity{}).
		Count(&n).Error
	return n, err
}

// DeleteByID removes a syllable and everything under it.
func (r *syllableRepository) DeleteByID(ctx context.Context, id uint) error {
	return r.store.WithSession(ctx, func(sess *datastore.Session) error {
		result := sess.Tx().Delete(&entities.SyllableEntity{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrSyllableNotFound
		}
		return nil
	})
}
