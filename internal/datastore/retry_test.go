package datastore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syrinxlabs/syrinx/internal/errors"
)

func TestRetryOnTransientSucceedsFirstTry(t *testing.T) {
	t.Parallel()

	ds, cleanup := setupDataStore(t)
	defer cleanup()

	attempts := 0
	err := ds.RetryOnTransient(context.Background(), "commit_batch", func() error {
		attempts++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryOnTransientDoesNotRetryPermanentErrors(t *testing.T) {
	t.Parallel()

	ds, cleanup := setupDataStore(t)
	defer cleanup()

	permanent := errors.Newf("checksum mismatch for colony7/dawn.wav").
		Component("datastore").
		Category(errors.CategoryIntegrity).
		Build()

	attempts := 0
	err := ds.RetryOnTransient(context.Background(), "commit_batch", func() error {
		attempts++
		return permanent
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts, "integrity failures must not be retried")
}

func TestRetryOnTransientRetriesLockedDatabase(t *testing.T) {
	t.Parallel()

	ds, cleanup := setupDataStore(t)
	defer cleanup()

	attempts := 0
	err := ds.RetryOnTransient(context.Background(), "commit_batch", func() error {
		attempts++
		if attempts < 3 {
			return errors.NewStd("database is locked")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryOnTransientRetriesTransientCategory(t *testing.T) {
	t.Parallel()

	ds, cleanup := setupDataStore(t)
	defer cleanup()

	transient := errors.Newf("write burst in progress").
		Component("datastore").
		Category(errors.CategoryTransient).
		Build()

	attempts := 0
	err := ds.RetryOnTransient(context.Background(), "commit_batch", func() error {
		attempts++
		if attempts < 2 {
			return transient
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRetryOnTransientHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	ds, cleanup := setupDataStore(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := ds.RetryOnTransient(ctx, "commit_batch", func() error {
		attempts++
		return errors.NewStd("database is locked")
	})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryCancellation))
	assert.Equal(t, 1, attempts, "a canceled context must stop the retry loop before the next attempt")
}
