package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syrinxlabs/syrinx/internal/datastore"
	"github.com/syrinxlabs/syrinx/internal/datastore/entities"
)

func TestEmbeddingCreateValidatesDimensions(t *testing.T) {
	t.Parallel()

	repos, _, cleanup := setupRepositories(t)
	defer cleanup()

	rec := mustCreateRecording(t, repos, "colony7/dawn.wav", "sha256:aa11")
	syl := mustCreateSyllable(t, repos, rec.ID, "dawn/syll_0001.png", 1.0, 1.2)

	err := repos.Embeddings.Create(context.Background(), &entities.EmbeddingEntity{
		SyllableID:    syl.ID,
		ModelVersion:  "vae-2024.1",
		EmbeddingPath: "dawn/syll_0001.npy",
		Dimensions:    0,
	})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestEmbeddingGetByPathNotFound(t *testing.T) {
	t.Parallel()

	repos, _, cleanup := setupRepositories(t)
	defer cleanup()

	got, err := repos.Embeddings.GetByPath(context.Background(), "dawn/missing.npy")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEmbeddingBulkCreateSkipsExistingPaths(t *testing.T) {
	t.Parallel()

	repos, ds, cleanup := setupRepositories(t)
	defer cleanup()

	rec := mustCreateRecording(t, repos, "colony7/dawn.wav", "sha256:aa11")
	syl := mustCreateSyllable(t, repos, rec.ID, "dawn/syll_0001.png", 1.0, 1.2)
	require.NoError(t, repos.Embeddings.Create(context.Background(), &entities.EmbeddingEntity{
		SyllableID:    syl.ID,
		ModelVersion:  "vae-2024.1",
		EmbeddingPath: "dawn/syll_0001.npy",
		Dimensions:    32,
	}))

	batch := []*entities.EmbeddingEntity{
		{SyllableID: syl.ID, ModelVersion: "vae-2024.1", EmbeddingPath: "dawn/syll_0001.npy", Dimensions: 32},
		{SyllableID: syl.ID, ModelVersion: "vae-2024.2", EmbeddingPath: "v2/dawn/syll_0001.npy", Dimensions: 64},
	}

	var res BulkResult
	err := ds.WithSession(context.Background(), func(sess *datastore.Session) error {
		var bulkErr error
		res, bulkErr = repos.Embeddings.BulkCreate(context.Background(), sess, batch)
		return bulkErr
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Inserted)
	assert.Equal(t, int64(1), res.Skipped)
}

func TestEmbeddingModelVersions(t *testing.T) {
	t.Parallel()

	repos, _, cleanup := setupRepositories(t)
	defer cleanup()

	rec := mustCreateRecording(t, repos, "colony7/dawn.wav", "sha256:aa11")
	syl := mustCreateSyllable(t, repos, rec.ID, "dawn/syll_0001.png", 1.0, 1.2)

	for _, e := range []*entities.EmbeddingEntity{
		{SyllableID: syl.ID, ModelVersion: "vae-2024.2", EmbeddingPath: "v2/syll_0001.npy", Dimensions: 64},
		{SyllableID: syl.ID, ModelVersion: "vae-2024.1", EmbeddingPath: "v1/syll_0001.npy", Dimensions: 32},
		{SyllableID: syl.ID, ModelVersion: "vae-2024.1", EmbeddingPath: "v1b/syll_0001.npy", Dimensions: 32},
	} {
		require.NoError(t, repos.Embeddings.Create(context.Background(), e))
	}

	got, err := repos.Embeddings.ModelVersions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"vae-2024.1", "vae-2024.2"}, got)
}

func TestEmbeddingListBySyllable(t *testing.T) {
	t.Parallel()

	repos, _, cleanup := setupRepositories(t)
	defer cleanup()

	rec := mustCreateRecording(t, repos, "colony7/dawn.wav", "sha256:aa11")
	syl1 := mustCreateSyllable(t, repos, rec.ID, "dawn/syll_0001.png", 1.0, 1.2)
	syl2 := mustCreateSyllable(t, repos, rec.ID, "dawn/syll_0002.png", 2.0, 2.4)

	require.NoError(t, repos.Embeddings.Create(context.Background(), &entities.EmbeddingEntity{
		SyllableID: syl1.ID, ModelVersion: "vae-2024.1", EmbeddingPath: "v1/syll_0001.npy", Dimensions: 32,
	}))
	require.NoError(t, repos.Embeddings.Create(context.Background(), &entities.EmbeddingEntity{
		SyllableID: syl2.ID, ModelVersion: "vae-2024.1", EmbeddingPath: "v1/syll_0002.npy", Dimensions: 32,
	}))

	got, err := repos.Embeddings.ListBySyllable(context.Background(), syl1.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "v1/syll_0001.npy", got[0].EmbeddingPath)
}

func TestEmbeddingDeleteByIDNotFound(t *testing.T) {
	t.Parallel()

	repos, _, cleanup := setupRepositories(t)
	defer cleanup()

	err := repos.Embeddings.DeleteByID(context.Background(), 99999)
	require.ErrorIs(t, err, ErrEmbeddingNotFound)
}
