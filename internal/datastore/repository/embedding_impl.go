package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/syrinxlabs/syrinx/internal/datastore"
	"github.com/syrinxlabs/syrinx/internal/datastore/entities"
)

// embeddingRepository implements EmbeddingRepository.
type embeddingRepository struct {
	store   datastore.Interface
	timeout time.Duration
}

// NewEmbeddingRepository creates a new EmbeddingRepository.
func NewEmbeddingRepository(store datastore.Interface, queryTimeout time.Duration) EmbeddingRepository {
	return &embeddingRepository{
		store:   store,
		timeout: queryTimeout,
	}
}

func (r *embeddingRepository) readContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

// Create inserts one embedding in its own session.
func (r *embeddingRepository) Create(ctx context.Context, emb *entities.EmbeddingEntity) error {
	if emb == nil || emb.EmbeddingPath == "" || emb.SyllableID == 0 || emb.ModelVersion == "" {
		return ErrInvalidInput
	}
	if emb.Dimensions <= 0 {
		return ErrInvalidInput
	}
	return r.store.WithSession(ctx, func(sess *datastore.Session) error {
		if err := sess.Tx().Create(emb).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateKey
			}
			return err
		}
		return nil
	})
}

// BulkCreate inserts embeddings inside the caller's session, skipping
// rows whose vector path is already cataloged.
func (r *embeddingRepository) BulkCreate(ctx context.Context, sess *datastore.Session, embs []*entities.EmbeddingEntity) (BulkResult, error) {
	if sess == nil {
		return BulkResult{}, ErrInvalidInput
	}
	if len(embs) == 0 {
		return BulkResult{}, nil
	}
	tx := sess.Tx()
	if tx == nil {
		return BulkResult{}, ErrInvalidInput
	}

	result := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "embedding_path"}},
			DoNothing: true,
		}).
		CreateInBatches(embs, insertBatchSize)
	if result.Error != nil {
		return BulkResult{}, result.Error
	}
	return BulkResult{
		Inserted: result.RowsAffected,
		Skipped:  int64(len(embs)) - result.RowsAffected,
	}, nil
}

// GetByPath retrieves the embedding cataloged under the vector path.
func (r *embeddingRepository) GetByPath(ctx context.Context, embeddingPath string) (*entities.EmbeddingEntity, error) {
	if embeddingPath == "" {
		return nil, ErrInvalidInput
	}
	ctx, cancel := r.readContext(ctx)
	defer cancel()

	var emb entities.EmbeddingEntity
	err := r.store.DB().WithContext(ctx).
		Where("embedding_path = ?", embeddingPath).
		First(&emb).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &emb, nil
}

// ChecksumsByPaths returns vector path -> checksum for the cataloged subset.
func (r *embeddingRepository) ChecksumsByPaths(ctx context.Context, sess *datastore.Session, paths []string) (map[string]string, error) {
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
		EmbeddingPath string
		Checksum      string
	}
	for start := 0; start < len(paths); start += lookupBatchSize {
		end := min(start+lookupBatchSize, len(paths))

		var rows []pathChecksum
		err := tx.WithContext(ctx).
			Model(&entities.EmbeddingEntity{}).
			Select("embedding_path", "checksum").
			Where("embedding_path IN ?", paths[start:end]).
			Scan(&rows).Error
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			result[row.EmbeddingPath] = row.Checksum
		}
	}
	return result, nil
}

// ListBySyllable returns a syllable's embeddings in deterministic order.
func (r *embeddingRepository) ListBySyllable(ctx context.Context, syllableID uint) ([]*entities.EmbeddingEntity, error) {
	if syllableID == 0 {
		return nil, ErrInvalidInput
	}
	ctx, cancel := r.readContext(ctx)
	defer cancel()

	embs := []*entities.EmbeddingEntity{}
	err := r.store.DB().WithContext(ctx).
		Where("syllable_id = ?", syllableID).
		Order("created_at ASC, id ASC").
		Find(&embs).Error
	if err != nil {
		return nil, err
	}
	return embs, nil
}

// List returns embeddings in deterministic (created_at, id) order.
func (r *embeddingRepository) List(ctx context.Context, limit, offset int) ([]*entities.EmbeddingEntity, error) {
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

	embs := []*entities.EmbeddingEntity{}
	if err := q.Find(&embs).Error; err != nil {
		return nil, err
	}
	return embs, nil
}

// ModelVersions returns every distinct model version in the catalog.
func (r *embeddingRepository) ModelVersions(ctx context.Context) ([]string, error) {
	ctx, cancel := r.readContext(ctx)
	defer cancel()

	versions := []string{}
	err := r.store.DB().WithContext(ctx).
		Model(&entities.EmbeddingEntity{}).
		Distinct("model_version").
		Order("model_version ASC").
		Pluck("model_version", &versions).Error
	if err != nil {
		return nil, err
	}
	return versions, nil
}

// Count returns the total number of embeddings.
func (r *embeddingRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := r.readContext(ctx)
	defer cancel()

	var n int64
	err := r.store.DB().WithContext(ctx).
		Model(&entities.EmbeddingEntity{}).
		Count(&n).Error
	return n, err
}

// DeleteByID removes an embedding.
func (r *embeddingRepository) DeleteByID(ctx context.Context, id uint) error {
	return r.store.WithSession(ctx, func(sess *datastore.Session) error {
		result := sess.Tx().Delete(&entities.EmbeddingEntity{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrEmbeddingNotFound
		}
		return nil
	})
}
