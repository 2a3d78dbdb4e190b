package datastore

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syrinxlabs/syrinx/internal/conf"
	"github.com/syrinxlabs/syrinx/internal/datastore/entities"
	"github.com/syrinxlabs/syrinx/internal/errors"
	"github.com/syrinxlabs/syrinx/internal/observability"
)

// countRecordings reads the recording count outside any session.
func countRecordings(t *testing.T, ds *DataStore) int64 {
	t.Helper()

	var n int64
	require.NoError(t, ds.DB().Model(&entities.RecordingEntity{}).Count(&n).Error)
	return n
}

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()

	ds, cleanup := setupDataStore(t)
	defer cleanup()

	sess, err := ds.Begin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SessionCreated, sess.State())

	tx := sess.Tx()
	require.NotNil(t, tx)
	assert.Equal(t, SessionActive, sess.State())

	require.NoError(t, sess.Commit())
	assert.Equal(t, SessionCommitted, sess.State())
	assert.Nil(t, sess.Tx(), "terminal sessions must not hand out the transaction")

	require.NoError(t, sess.Close())
	assert.Equal(t, SessionClosed, sess.State())
}

func TestCommitEmptySession(t *testing.T) {
	t.Parallel()

	ds, cleanup := setupDataStore(t)
	defer cleanup()

	// Committing without running a single statement is legal.
	sess, err := ds.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, sess.Commit())
	assert.Equal(t, SessionCommitted, sess.State())
	require.NoError(t, sess.Close())
}

func TestCommitAfterCommitIsLifecycleViolation(t *testing.T) {
	t.Parallel()

	ds, cleanup := setupDataStore(t)
	defer cleanup()

	sess, err := ds.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, sess.Commit())

	err = sess.Commit()
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryState))
	assert.Contains(t, err.Error(), "committed")

	require.NoError(t, sess.Close())
}

func TestRollbackAfterCloseIsLifecycleViolation(t *testing.T) {
	t.Parallel()

	ds, cleanup := setupDataStore(t)
	defer cleanup()

	sess, err := ds.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, sess.Close())

	err = sess.Rollback()
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryState))
	assert.Contains(t, err.Error(), "closed")
}

func TestCommitMakesWorkVisible(t *testing.T) {
	t.Parallel()

	ds, cleanup := setupDataStore(t)
	defer cleanup()

	sess, err := ds.Begin(context.Background())
	require.NoError(t, err)

	rec := &entities.RecordingEntity{FilePath: "colony7/dawn.wav", Checksum: "sha256:aa11"}
	require.NoError(t, sess.Tx().Create(rec).Error)

	// Uncommitted work is invisible to other connections.
	assert.Equal(t, int64(0), countRecordings(t, ds))

	require.NoError(t, sess.Commit())
	require.NoError(t, sess.Close())

	assert.Equal(t, int64(1), countRecordings(t, ds))
}

func TestRollbackDiscardsWork(t *testing.T) {
	t.Parallel()

	ds, cleanup := setupDataStore(t)
	defer cleanup()

	sess, err := ds.Begin(context.Background())
	require.NoError(t, err)

	rec := &entities.RecordingEntity{FilePath: "colony7/dawn.wav", Checksum: "sha256:aa11"}
	require.NoError(t, sess.Tx().Create(rec).Error)

	require.NoError(t, sess.Rollback())
	assert.Equal(t, SessionRolledBack, sess.State())
	require.NoError(t, sess.Close())

	assert.Equal(t, int64(0), countRecordings(t, ds))
}

func TestCloseRollsBackPendingWork(t *testing.T) {
	t.Parallel()

	ds, cleanup := setupDataStore(t)
	defer cleanup()

	sess, err := ds.Begin(context.Background())
	require.NoError(t, err)

	rec := &entities.RecordingEntity{FilePath: "colony7/dawn.wav", Checksum: "sha256:aa11"}
	require.NoError(t, sess.Tx().Create(rec).Error)

	// Close without an explicit commit or rollback discards the insert.
	require.NoError(t, sess.Close())
	assert.Equal(t, SessionClosed, sess.State())
	assert.Equal(t, int64(0), countRecordings(t, ds))
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	ds, cleanup := setupDataStore(t)
	defer cleanup()

	sess, err := ds.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close())
	assert.Equal(t, SessionClosed, sess.State())
}

func TestWithSessionCommitsOnSuccess(t *testing.T) {
	t.Parallel()

	ds, cleanup := setupDataStore(t)
	defer cleanup()

	err := ds.WithSession(context.Background(), func(sess *Session) error {
		rec := &entities.RecordingEntity{FilePath: "colony7/dawn.wav", Checksum: "sha256:aa11"}
		return sess.Tx().Create(rec).Error
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), countRecordings(t, ds))
}

func TestWithSessionRollsBackOnError(t *testing.T) {
	t.Parallel()

	ds, cleanup := setupDataStore(t)
	defer cleanup()

	sentinel := errors.NewStd("refusing to commit")
	err := ds.WithSession(context.Background(), func(sess *Session) error {
		rec := &entities.RecordingEntity{FilePath: "colony7/dawn.wav", Checksum: "sha256:aa11"}
		if createErr := sess.Tx().Create(rec).Error; createErr != nil {
			return createErr
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel, "the callback error must win over cleanup")

	assert.Equal(t, int64(0), countRecordings(t, ds))
}

func TestWithSessionRePanics(t *testing.T) {
	t.Parallel()

	ds, cleanup := setupDataStore(t)
	defer cleanup()

	assert.PanicsWithValue(t, "ingest worker crashed", func() {
		_ = ds.WithSession(context.Background(), func(sess *Session) error {
			rec := &entities.RecordingEntity{FilePath: "colony7/dawn.wav", Checksum: "sha256:aa11"}
			if err := sess.Tx().Create(rec).Error; err != nil {
				return err
			}
			panic("ingest worker crashed")
		})
	})

	assert.Equal(t, int64(0), countRecordings(t, ds), "a panic must not leave partial writes behind")
}

func TestSessionMetrics(t *testing.T) {
	t.Parallel()

	m, err := observability.NewMetrics()
	require.NoError(t, err)

	settings := conf.Default()
	settings.Database.URL = "sqlite://" + filepath.Join(t.TempDir(), "catalog.db")

	ds, err := New(settings, m.Datastore)
	require.NoError(t, err)
	require.NoError(t, ds.Open())
	defer ds.Close() //nolint:errcheck // test cleanup

	require.NoError(t, ds.WithSession(context.Background(), func(sess *Session) error {
		rec := &entities.RecordingEntity{FilePath: "colony7/dawn.wav", Checksum: "sha256:aa11"}
		return sess.Tx().Create(rec).Error
	}))

	sentinel := errors.NewStd("refusing to commit")
	err = ds.WithSession(context.Background(), func(sess *Session) error {
		sess.Tx()
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	expected := `
# HELP datastore_db_transactions_total Total number of database transactions
# TYPE datastore_db_transactions_total counter
datastore_db_transactions_total{status="committed"} 1
datastore_db_transactions_total{status="rolled_back"} 1
# HELP datastore_sessions_open Number of currently open write sessions
# TYPE datastore_sessions_open gauge
datastore_sessions_open 0
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"datastore_db_transactions_total", "datastore_sessions_open"))
}
