package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syrinxlabs/syrinx/internal/datastore"
	"github.com/syrinxlabs/syrinx/internal/datastore/entities"
	"github.com/syrinxlabs/syrinx/internal/datastore/query"
)

func TestSyllableCreateValidatesTimeOrdering(t *testing.T) {
	t.Parallel()

	repos, _, cleanup := setupRepositories(t)
	defer cleanup()

	rec := mustCreateRecording(t, repos, "colony7/dawn.wav", "sha256:aa11")

	err := repos.Syllables.Create(context.Background(), &entities.SyllableEntity{
		RecordingID:     rec.ID,
		SpectrogramPath: "dawn/syll_bad.png",
		StartTime:       2.0,
		EndTime:         2.0,
	})
	require.ErrorIs(t, err, ErrInvalidInput, "end must be strictly after start")
}

func TestSyllableCreateDuplicatePathFails(t *testing.T) {
	t.Parallel()

	repos, _, cleanup := setupRepositories(t)
	defer cleanup()

	rec := mustCreateRecording(t, repos, "colony7/dawn.wav", "sha256:aa11")
	mustCreateSyllable(t, repos, rec.ID, "dawn/syll_0001.png", 1.0, 1.2)

	err := repos.Syllables.Create(context.Background(), &entities.SyllableEntity{
		RecordingID:     rec.ID,
		SpectrogramPath: "dawn/syll_0001.png",
		StartTime:       4.0,
		EndTime:         4.5,
	})
	require.ErrorIs(t, err, ErrDuplicateKey)
}

func TestSyllableGetByPathNotFound(t *testing.T) {
	t.Parallel()

	repos, _, cleanup := setupRepositories(t)
	defer cleanup()

	got, err := repos.Syllables.GetByPath(context.Background(), "dawn/missing.png")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSyllableBulkCreateSkipsExistingPaths(t *testing.T) {
	t.Parallel()

	repos, ds, cleanup := setupRepositories(t)
	defer cleanup()

	rec := mustCreateRecording(t, repos, "colony7/dawn.wav", "sha256:aa11")
	mustCreateSyllable(t, repos, rec.ID, "dawn/syll_0001.png", 1.0, 1.2)

	batch := []*entities.SyllableEntity{
		{RecordingID: rec.ID, SpectrogramPath: "dawn/syll_0001.png", StartTime: 1.0, EndTime: 1.2},
		{RecordingID: rec.ID, SpectrogramPath: "dawn/syll_0002.png", StartTime: 2.0, EndTime: 2.4},
	}

	var res BulkResult
	err := ds.WithSession(context.Background(), func(sess *datastore.Session) error {
		var bulkErr error
		res, bulkErr = repos.Syllables.BulkCreate(context.Background(), sess, batch)
		return bulkErr
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Inserted)
	assert.Equal(t, int64(1), res.Skipped)
}

func TestSyllableListByRecording(t *testing.T) {
	t.Parallel()

	repos, _, cleanup := setupRepositories(t)
	defer cleanup()

	rec1 := mustCreateRecording(t, repos, "colony7/dawn.wav", "sha256:aa11")
	rec2 := mustCreateRecording(t, repos, "colony7/dusk.wav", "sha256:bb22")
	first := mustCreateSyllable(t, repos, rec1.ID, "dawn/syll_0001.png", 1.0, 1.2)
	second := mustCreateSyllable(t, repos, rec1.ID, "dawn/syll_0002.png", 2.0, 2.4)
	mustCreateSyllable(t, repos, rec2.ID, "dusk/syll_0001.png", 0.5, 0.9)

	got, err := repos.Syllables.ListByRecording(context.Background(), rec1.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, first.ID, got[0].ID)
	assert.Equal(t, second.ID, got[1].ID)
}

func TestSyllableFilterDelegatesToBuilder(t *testing.T) {
	t.Parallel()

	repos, _, cleanup := setupRepositories(t)
	defer cleanup()

	rec := mustCreateRecording(t, repos, "colony7/dawn.wav", "sha256:aa11")
	short := mustCreateSyllable(t, repos, rec.ID, "dawn/syll_0001.png", 1.0, 1.05)
	long := mustCreateSyllable(t, repos, rec.ID, "dawn/syll_0002.png", 2.0, 2.8)
	require.NoError(t, repos.Annotations.Create(context.Background(), &entities.AnnotationEntity{
		SyllableID:     long.ID,
		AnnotationType: "label",
		Key:            "cluster",
		Value:          "7",
	}))

	got, err := repos.Syllables.Filter(context.Background(), query.New().DurationBetween(0.5, 1.0))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, long.ID, got[0].ID)

	got, err = repos.Syllables.Filter(context.Background(),
		query.New().AnnotatedWith("label", "cluster", "7"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, long.ID, got[0].ID)

	got, err = repos.Syllables.Filter(context.Background(), query.New())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, short.ID, got[0].ID, "unfiltered results keep catalog order")
}

func TestSyllableDeleteByIDCascadesToChildren(t *testing.T) {
	t.Parallel()

	repos, _, cleanup := setupRepositories(t)
	defer cleanup()

	rec := mustCreateRecording(t, repos, "colony7/dawn.wav", "sha256:aa11")
	syl := mustCreateSyllable(t, repos, rec.ID, "dawn/syll_0001.png", 1.0, 1.2)
	require.NoError(t, repos.Embeddings.Create(context.Background(), &entities.EmbeddingEntity{
		SyllableID:    syl.ID,
		ModelVersion:  "vae-2024.1",
		EmbeddingPath: "dawn/syll_0001.npy",
		Dimensions:    32,
	}))

	require.NoError(t, repos.Syllables.DeleteByID(context.Background(), syl.ID))

	n, err := repos.Embeddings.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = repos.Recordings.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "the parent recording must survive")
}
