package repository

import (
	"context"
	"time"

	"github.com/syrinxlabs/syrinx/internal/datastore"
	"github.com/syrinxlabs/syrinx/internal/datastore/entities"
)

// annotationRepository implements AnnotationRepository.
type annotationRepository struct {
	store   datastore.Interface
	timeout time.Duration
}

// NewAnnotationRepository creates a new AnnotationRepository.
func NewAnnotationRepository(store datastore.Interface, queryTimeout time.Duration) AnnotationRepository {
	return &annotationRepository{
		store:   store,
		timeout: queryTimeout,
	}
}

func (r *annotationRepository) readContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

// Create inserts one annotation in its own session.
func (r *annotationRepository) Create(ctx context.Context, ann *entities.AnnotationEntity) error {
	if ann == nil || ann.SyllableID == 0 || ann.AnnotationType == "" || ann.Key == "" {
		return ErrInvalidInput
	}
	return r.store.WithSession(ctx, func(sess *datastore.Session) error {
		return sess.Tx().Create(ann).Error
	})
}

// BulkCreate inserts annotations inside the caller's session.
func (r *annotationRepository) BulkCreate(ctx context.Context, sess *datastore.Session, anns []*entities.AnnotationEntity) (BulkResult, error) {
	if sess == nil {
		return BulkResult{}, ErrInvalidInput
	}
	if len(anns) == 0 {
		return BulkResult{}, nil
	}
	tx := sess.Tx()
	if tx == nil {
		return BulkResult{}, ErrInvalidInput
	}

	result := tx.WithContext(ctx).CreateInBatches(anns, insertBatchSize)
	if result.Error != nil {
		return BulkResult{}, result.Error
	}
	return BulkResult{Inserted: result.RowsAffected}, nil
}

// ListBySyllable returns a syllable's annotations in deterministic order.
func (r *annotationRepository) ListBySyllable(ctx context.Context, syllableID uint) ([]*entities.AnnotationEntity, error) {
	if syllableID == 0 {
		return nil, ErrInvalidInput
	}
	ctx, cancel := r.readContext(ctx)
	defer cancel()

	anns := []*entities.AnnotationEntity{}
	err := r.store.DB().WithContext(ctx).
		Where("syllable_id = ?", syllableID).
		Order("created_at ASC, id ASC").
		Find(&anns).Error
	if err != nil {
		return nil, err
	}
	return anns, nil
}

// Types returns every distinct annotation type in the catalog.
func (r *annotationRepository) Types(ctx context.Context) ([]string, error) {
	ctx, cancel := r.readContext(ctx)
	defer cancel()

	types := []string{}
	err := r.store.DB().WithContext(ctx).
		Model(&entities.AnnotationEntity{}).
		Distinct("annotation_type").
		Order("annotation_type ASC").
		Pluck("annotation_type", &types).Error
	if err != nil {
		return nil, err
	}
	return types, nil
}

// Count returns the total number of annotations.
func (r *annotationRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := r.readContext(ctx)
	defer cancel()

	var n int64
	err := r.store.DB().WithContext(ctx).
		Model(&entities.AnnotationEntity{}).
		Count(&n).Error
	return n, err
}

// DeleteByID removes an annotation.
func (r *annotationRepository) DeleteByID(ctx context.Context, id uint) error {
	return r.store.WithSession(ctx, func(sess *datastore.Session) error {
		result := sess.Tx().Delete(&entities.AnnotationEntity{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrAnnotationNotFound
		}
		return nil
	})
}
