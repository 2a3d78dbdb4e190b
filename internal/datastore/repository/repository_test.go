package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syrinxlabs/syrinx/internal/conf"
	"github.com/syrinxlabs/syrinx/internal/datastore"
	"github.com/syrinxlabs/syrinx/internal/datastore/entities"
)

// setupRepositories creates an opened SQLite-backed store with the full
// repository bundle wired against it.
func setupRepositories(t *testing.T) (repos *Repositories, ds *datastore.DataStore, cleanup func()) {
	t.Helper()

	settings := conf.Default()
	settings.Database.URL = "sqlite://" + filepath.Join(t.TempDir(), "catalog.db")

	ds, err := datastore.New(settings, nil)
	require.NoError(t, err)
	require.NoError(t, ds.Open())

	repos = NewRepositories(ds, 30*time.Second, nil)
	return repos, ds, func() { _ = ds.Close() }
}

// mustCreateRecording inserts one recording through the repository.
func mustCreateRecording(t *testing.T, repos *Repositories, path, checksum string) *entities.RecordingEntity {
	t.Helper()

	rec := &entities.RecordingEntity{FilePath: path, Checksum: checksum}
	require.NoError(t, repos.Recordings.Create(context.Background(), rec))
	require.NotZero(t, rec.ID)
	return rec
}

// mustCreateSyllable inserts one syllable through the repository.
func mustCreateSyllable(t *testing.T, repos *Repositories, recordingID uint, path string, start, end float64) *entities.SyllableEntity {
	t.Helper()

	syl := &entities.SyllableEntity{
		RecordingID:     recordingID,
		SpectrogramPath: path,
		StartTime:       start,
		EndTime:         end,
	}
	require.NoError(t, repos.Syllables.Create(context.Background(), syl))
	require.NotZero(t, syl.ID)
	return syl
}

func TestRecordingCreateAndGetByPath(t *testing.T) {
	t.Parallel()

	repos, _, cleanup := setupRepositories(t)
	defer cleanup()

	created := mustCreateRecording(t, repos, "colony7/dawn.wav", "sha256:aa11")

	got, err := repos.Recordings.GetByPath(context.Background(), "colony7/dawn.wav")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "sha256:aa11", got.Checksum)
}

func TestRecordingGetByPathNotFound(t *testing.T) {
	t.Parallel()

	repos, _, cleanup := setupRepositories(t)
	defer cleanup()

	got, err := repos.Recordings.GetByPath(context.Background(), "colony7/missing.wav")
	require.NoError(t, err, "a missing row is an empty result, not an error")
	assert.Nil(t, got)
}

func TestRecordingGetByChecksumNotFound(t *testing.T) {
	t.Parallel()

	repos, _, cleanup := setupRepositories(t)
	defer cleanup()

	got, err := repos.Recordings.GetByChecksum(context.Background(), "sha256:absent")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRecordingGetByChecksumFindsAllCopies(t *testing.T) {
	t.Parallel()

	repos, _, cleanup := setupRepositories(t)
	defer cleanup()

	// The same audio content cataloged under two paths.
	mustCreateRecording(t, repos, "colony7/dawn.wav", "sha256:aa11")
	mustCreateRecording(t, repos, "backup/colony7/dawn.wav", "sha256:aa11")
	mustCreateRecording(t, repos, "colony7/dusk.wav", "sha256:bb22")

	got, err := repos.Recordings.GetByChecksum(context.Background(), "sha256:aa11")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestRecordingCreateDuplicatePathFails(t *testing.T) {
	t.Parallel()

	repos, _, cleanup := setupRepositories(t)
	defer cleanup()

	mustCreateRecording(t, repos, "colony7/dawn.wav", "sha256:aa11")

	err := repos.Recordings.Create(context.Background(), &entities.RecordingEntity{
		FilePath: "colony7/dawn.wav",
		Checksum: "sha256:ff99",
	})
	require.ErrorIs(t, err, ErrDuplicateKey)
}

func TestRecordingCreateValidatesInput(t *testing.T) {
	t.Parallel()

	repos, _, cleanup := setupRepositories(t)
	defer cleanup()

	err := repos.Recordings.Create(context.Background(), &entities.RecordingEntity{Checksum: "sha256:aa11"})
	require.ErrorIs(t, err, ErrInvalidInput)

	err = repos.Recordings.Create(context.Background(), &entities.RecordingEntity{FilePath: "colony7/dawn.wav"})
	require.ErrorIs(t, err, ErrInvalidInput)

	err = repos.Recordings.Create(context.Background(), nil)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestRecordingBulkCreateSkipsExistingPaths(t *testing.T) {
	t.Parallel()

	repos, ds, cleanup := setupRepositories(t)
	defer cleanup()

	mustCreateRecording(t, repos, "colony7/one.wav", "sha256:01")

	batch := []*entities.RecordingEntity{
		{FilePath: "colony7/one.wav", Checksum: "sha256:01"},
		{FilePath: "colony7/two.wav", Checksum: "sha256:02"},
		{FilePath: "colony7/three.wav", Checksum: "sha256:03"},
	}

	var res BulkResult
	err := ds.WithSession(context.Background(), func(sess *datastore.Session) error {
		var bulkErr error
		res, bulkErr = repos.Recordings.BulkCreate(context.Background(), sess, batch)
		return bulkErr
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Inserted)
	assert.Equal(t, int64(1), res.Skipped)

	n, err := repos.Recordings.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestRecordingBulkCreateRollsBackWithSession(t *testing.T) {
	t.Parallel()

	repos, ds, cleanup := setupRepositories(t)
	defer cleanup()

	sentinel := errors.New("refusing to commit")
	err := ds.WithSession(context.Background(), func(sess *datastore.Session) error {
		_, bulkErr := repos.Recordings.BulkCreate(context.Background(), sess, []*entities.RecordingEntity{
			{FilePath: "colony7/one.wav", Checksum: "sha256:01"},
		})
		if bulkErr != nil {
			return bulkErr
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	n, err := repos.Recordings.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "a failed session must not leave bulk rows behind")
}

func TestRecordingChecksumsByPaths(t *testing.T) {
	t.Parallel()

	repos, ds, cleanup := setupRepositories(t)
	defer cleanup()

	mustCreateRecording(t, repos, "colony7/one.wav", "sha256:01")
	mustCreateRecording(t, repos, "colony7/two.wav", "sha256:02")

	err := ds.WithSession(context.Background(), func(sess *datastore.Session) error {
		got, lookupErr := repos.Recordings.ChecksumsByPaths(context.Background(), sess,
			[]string{"colony7/one.wav", "colony7/two.wav", "colony7/unknown.wav"})
		if lookupErr != nil {
			return lookupErr
		}
		assert.Equal(t, map[string]string{
			"colony7/one.wav": "sha256:01",
			"colony7/two.wav": "sha256:02",
		}, got)
		return nil
	})
	require.NoError(t, err)
}

func TestRecordingChecksumsByPathsSeesSessionWrites(t *testing.T) {
	t.Parallel()

	repos, ds, cleanup := setupRepositories(t)
	defer cleanup()

	// Rows inserted earlier in the same session are visible to the
	// pre-commit integrity check.
	err := ds.WithSession(context.Background(), func(sess *datastore.Session) error {
		_, bulkErr := repos.Recordings.BulkCreate(context.Background(), sess, []*entities.RecordingEntity{
			{FilePath: "colony7/one.wav", Checksum: "sha256:01"},
		})
		if bulkErr != nil {
			return bulkErr
		}

		got, lookupErr := repos.Recordings.ChecksumsByPaths(context.Background(), sess, []string{"colony7/one.wav"})
		if lookupErr != nil {
			return lookupErr
		}
		assert.Equal(t, "sha256:01", got["colony7/one.wav"])
		return nil
	})
	require.NoError(t, err)
}

func TestRecordingIDsByPaths(t *testing.T) {
	t.Parallel()

	repos, _, cleanup := setupRepositories(t)
	defer cleanup()

	one := mustCreateRecording(t, repos, "colony7/one.wav", "sha256:01")
	two := mustCreateRecording(t, repos, "colony7/two.wav", "sha256:02")

	got, err := repos.Recordings.IDsByPaths(context.Background(),
		[]string{"colony7/one.wav", "colony7/two.wav", "colony7/unknown.wav"})
	require.NoError(t, err)
	assert.Equal(t, map[string]uint{
		"colony7/one.wav": one.ID,
		"colony7/two.wav": two.ID,
	}, got)
}

func TestRecordingListIsDeterministic(t *testing.T) {
	t.Parallel()

	repos, _, cleanup := setupRepositories(t)
	defer cleanup()

	mustCreateRecording(t, repos, "colony7/one.wav", "sha256:01")
	mustCreateRecording(t, repos, "colony7/two.wav", "sha256:02")
	mustCreateRecording(t, repos, "colony7/three.wav", "sha256:03")

	full, err := repos.Recordings.List(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Len(t, full, 3)

	again, err := repos.Recordings.List(context.Background(), 0, 0)
	require.NoError(t, err)
	for i := range full {
		assert.Equal(t, full[i].ID, again[i].ID)
	}

	page1, err := repos.Recordings.List(context.Background(), 2, 0)
	require.NoError(t, err)
	page2, err := repos.Recordings.List(context.Background(), 2, 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	require.Len(t, page2, 1)
	assert.Equal(t, full[0].ID, page1[0].ID)
	assert.Equal(t, full[2].ID, page2[0].ID)
}

func TestRecordingDeleteByIDCascades(t *testing.T) {
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
	require.NoError(t, repos.Annotations.Create(context.Background(), &entities.AnnotationEntity{
		SyllableID:     syl.ID,
		AnnotationType: "label",
		Key:            "cluster",
		Value:          "7",
	}))

	require.NoError(t, repos.Recordings.DeleteByID(context.Background(), rec.ID))

	for name, count := range map[string]func(context.Context) (int64, error){
		"recordings":  repos.Recordings.Count,
		"syllables":   repos.Syllables.Count,
		"embeddings":  repos.Embeddings.Count,
		"annotations": repos.Annotations.Count,
	} {
		n, err := count(context.Background())
		require.NoError(t, err)
		assert.Zero(t, n, "%s should be empty after cascade delete", name)
	}
}

func TestRecordingDeleteByIDNotFound(t *testing.T) {
	t.Parallel()

	repos, _, cleanup := setupRepositories(t)
	defer cleanup()

	err := repos.Recordings.DeleteByID(context.Background(), 99999)
	require.ErrorIs(t, err, ErrRecordingNotFound)
}
