package store_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panicsense/panicsense-go/internal/models"
	"github.com/panicsense/panicsense-go/internal/store"
	"github.com/panicsense/panicsense-go/internal/testutil"
)

func TestSessionLifecycle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := store.New(db)

	t.Run("Create and Get Active", func(t *testing.T) {
		sess, err := s.CreateSession("sess-1", "fp-1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusActive, sess.Status)
		assert.Equal(t, "sess-1", sess.SessionID)

		got, err := s.GetActiveSession("sess-1")
		require.NoError(t, err)
		assert.Equal(t, sess.ID, got.ID)
		assert.Equal(t, "fp-1", got.ServerFingerprint)
		assert.Equal(t, "Initializing...", got.Progress.Stage)
	})

	t.Run("Duplicate Active Session Conflicts", func(t *testing.T) {
		_, err := s.CreateSession("sess-1", "fp-1")
		assert.ErrorIs(t, err, store.ErrSessionConflict)
	})

	t.Run("Update Progress", func(t *testing.T) {
		snap := models.ProgressSnapshot{
			Processed: 20, Total: 100,
			Stage:     "Completed batch 1 of 5",
			Status:    models.StatusActive,
			Timestamp: time.Now().UnixMilli(),
		}
		require.NoError(t, s.UpdateProgress("sess-1", snap))

		got, err := s.GetActiveSession("sess-1")
		require.NoError(t, err)
		assert.Equal(t, 20, got.Progress.Processed)
		assert.Equal(t, "Completed batch 1 of 5", got.Progress.Stage)
	})

	t.Run("Finalize Rejects Non-Terminal Status", func(t *testing.T) {
		err := s.Finalize("sess-1", models.StatusActive, models.ProgressSnapshot{})
		assert.Error(t, err)
	})

	t.Run("Finalize Transitions Exactly Once", func(t *testing.T) {
		complete := models.ProgressSnapshot{
			Processed: 100, Total: 100,
			Stage: models.StageAnalysisComplete,
		}
		require.NoError(t, s.Finalize("sess-1", models.StatusComplete, complete))

		// No longer active under the specific-id query.
		_, err := s.GetActiveSession("sess-1")
		assert.ErrorIs(t, err, store.ErrSessionNotFound)

		// But still queryable with its terminal outcome.
		got, err := s.GetSession("sess-1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusComplete, got.Status)
		assert.Equal(t, models.StatusComplete, got.Progress.Status)

		// A second finalize with a different status must not win.
		require.NoError(t, s.Finalize("sess-1", models.StatusError, models.ProgressSnapshot{Error: "late"}))
		got, err = s.GetSession("sess-1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusComplete, got.Status)
	})

	t.Run("Progress Writes After Finalize Are No-Ops", func(t *testing.T) {
		require.NoError(t, s.UpdateProgress("sess-1", models.ProgressSnapshot{Processed: 5}))
		got, err := s.GetSession("sess-1")
		require.NoError(t, err)
		assert.Equal(t, 100, got.Progress.Processed)
	})

	t.Run("Session ID Reusable After Terminal", func(t *testing.T) {
		// The unique index only guards active rows; a finished token may be
		// reused for a fresh attempt.
		_, err := s.CreateSession("sess-1", "fp-2")
		require.NoError(t, err)

		got, err := s.GetActiveSession("sess-1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusActive, got.Status)
	})
}

func TestGetActiveSessionWithoutID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := store.New(db)

	sess, err := s.GetActiveSession("")
	require.NoError(t, err)
	assert.Nil(t, sess, "no active session should yield nil, not an error")

	_, err = s.CreateSession("sess-a", "fp")
	require.NoError(t, err)

	sess, err = s.GetActiveSession("")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "sess-a", sess.SessionID)

	// Unknown specific id is an error, never a different session.
	_, err = s.GetActiveSession("sess-unknown")
	assert.ErrorIs(t, err, store.ErrSessionNotFound)
}

func TestRequestCancel(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := store.New(db)

	_, err := s.CreateSession("sess-c", "fp")
	require.NoError(t, err)

	flagged, err := s.CancelRequested("sess-c")
	require.NoError(t, err)
	assert.False(t, flagged)

	ok, err := s.RequestCancel("sess-c")
	require.NoError(t, err)
	assert.True(t, ok)

	flagged, err = s.CancelRequested("sess-c")
	require.NoError(t, err)
	assert.True(t, flagged)

	// Canceling a terminal session is a no-op, not an error.
	require.NoError(t, s.Finalize("sess-c", models.StatusCanceled, models.ProgressSnapshot{}))
	ok, err = s.RequestCancel("sess-c")
	require.NoError(t, err)
	assert.False(t, ok)

	// Unknown sessions report not found.
	_, err = s.CancelRequested("sess-missing")
	assert.True(t, errors.Is(err, store.ErrSessionNotFound))
}

func TestSweepStale(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := store.New(db)

	_, err := s.CreateSession("sess-old", "fp")
	require.NoError(t, err)
	_, err = s.CreateSession("sess-fresh", "fp")
	require.NoError(t, err)

	// Backdate the first session past the staleness threshold.
	_, err = db.Exec(`UPDATE upload_sessions SET updated_at = ? WHERE session_id = 'sess-old'`,
		time.Now().Add(-time.Hour))
	require.NoError(t, err)

	swept, err := s.SweepStale(10 * time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	got, err := s.GetSession("sess-old")
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, got.Status)
	assert.NotEmpty(t, got.Progress.Error)

	got, err = s.GetSession("sess-fresh")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, got.Status)
}

func TestPurgeTerminal(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := store.New(db)

	_, err := s.CreateSession("sess-done", "fp")
	require.NoError(t, err)
	require.NoError(t, s.Finalize("sess-done", models.StatusComplete, models.ProgressSnapshot{}))

	_, err = s.CreateSession("sess-live", "fp")
	require.NoError(t, err)

	// Inside the grace period nothing is purged.
	purged, err := s.PurgeTerminal(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, purged)

	_, err = db.Exec(`UPDATE upload_sessions SET updated_at = ? WHERE session_id = 'sess-done'`,
		time.Now().Add(-2*time.Hour))
	require.NoError(t, err)

	purged, err = s.PurgeTerminal(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	_, err = s.GetSession("sess-done")
	assert.ErrorIs(t, err, store.ErrSessionNotFound)

	// Active sessions are never purged regardless of age.
	got, err := s.GetSession("sess-live")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, got.Status)
}

func TestSetSessionFile(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := store.New(db)

	_, err := s.CreateSession("sess-f", "fp")
	require.NoError(t, err)
	file, err := s.CreateFile("data.csv", "sess-f-data.csv")
	require.NoError(t, err)

	require.NoError(t, s.SetSessionFile("sess-f", file.ID))

	got, err := s.GetSession("sess-f")
	require.NoError(t, err)
	require.NotNil(t, got.FileID)
	assert.Equal(t, file.ID, *got.FileID)

	// Deleting the file clears its sessions.
	require.NoError(t, s.DeleteFile(file.ID))
	_, err = s.GetSession("sess-f")
	assert.ErrorIs(t, err, store.ErrSessionNotFound)
}
