// Upload session persistence. The database is the single source of truth for
// session state across server restarts and across every connected client;
// the websocket stream and cross-tab broadcasts are latency optimizations
// layered on top of it.

package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/panicsense/panicsense-go/internal/models"
)

// CreateSession inserts a new active session for the given client token.
// The partial unique index on (session_id, status='active') enforces the
// at-most-one-active-session invariant; a duplicate insert surfaces as
// ErrSessionConflict.
func (s *Store) CreateSession(sessionID, fingerprint string) (*models.UploadSession, error) {
	now := time.Now()
	initial := models.ProgressSnapshot{
		Stage:     "Initializing...",
		Status:    models.StatusActive,
		Timestamp: now.UnixMilli(),
	}
	progressJSON, err := json.Marshal(initial)
	if err != nil {
		return nil, err
	}

	res, err := s.db.Exec(`
        INSERT INTO upload_sessions (session_id, status, progress, server_fingerprint, created_at, updated_at)
        VALUES (?, 'active', ?, ?, ?, ?)
    `, sessionID, string(progressJSON), fingerprint, now, now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrSessionConflict
		}
		return nil, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.UploadSession{
		ID:                id,
		SessionID:         sessionID,
		Status:            models.StatusActive,
		Progress:          initial,
		ServerFingerprint: fingerprint,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

const sessionColumns = `id, session_id, status, file_id, progress, server_fingerprint, cancel_requested, created_at, updated_at`

func scanSession(row *sql.Row) (*models.UploadSession, error) {
	var sess models.UploadSession
	var status string
	var fileID sql.NullInt64
	var progressJSON string
	err := row.Scan(&sess.ID, &sess.SessionID, &status, &fileID, &progressJSON,
		&sess.ServerFingerprint, &sess.CancelRequested, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return nil, err
	}
	sess.Status = models.SessionStatus(status)
	if fileID.Valid {
		sess.FileID = &fileID.Int64
	}
	if err := json.Unmarshal([]byte(progressJSON), &sess.Progress); err != nil {
		return nil, fmt.Errorf("corrupt progress snapshot for session %s: %w", sess.SessionID, err)
	}
	return &sess, nil
}

// GetActiveSession returns the most recent active session. With a non-empty
// sessionID it only considers that id and reports ErrSessionNotFound if the
// id is unknown or no longer active, rather than silently returning a
// different session. With an empty id it returns (nil, nil) when nothing is
// active.
func (s *Store) GetActiveSession(sessionID string) (*models.UploadSession, error) {
	if sessionID != "" {
		row := s.db.QueryRow(`SELECT `+sessionColumns+` FROM upload_sessions
            WHERE session_id = ? AND status = 'active'`, sessionID)
		sess, err := scanSession(row)
		if err == sql.ErrNoRows {
			return nil, ErrSessionNotFound
		}
		return sess, err
	}

	row := s.db.QueryRow(`SELECT ` + sessionColumns + ` FROM upload_sessions
        WHERE status = 'active' ORDER BY updated_at DESC LIMIT 1`)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sess, err
}

// GetSession returns the most recent session row for the id regardless of
// status. Clients recovering after a restart use this to learn the terminal
// outcome of a session they were watching.
func (s *Store) GetSession(sessionID string) (*models.UploadSession, error) {
	row := s.db.QueryRow(`SELECT `+sessionColumns+` FROM upload_sessions
        WHERE session_id = ? ORDER BY updated_at DESC LIMIT 1`, sessionID)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	return sess, err
}

// UpdateProgress writes a progress checkpoint. It is deliberately a no-op
// (not an error) when the session is no longer active, to tolerate the race
// between a late batch write and a cancel.
func (s *Store) UpdateProgress(sessionID string, snapshot models.ProgressSnapshot) error {
	progressJSON, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`UPDATE upload_sessions SET progress = ?, updated_at = ?
        WHERE session_id = ? AND status = 'active'`, string(progressJSON), time.Now(), sessionID)
	return err
}

// Finalize transitions a session out of active exactly once. Calling it on a
// session that already reached a terminal state is a no-op: the first
// terminal transition wins.
func (s *Store) Finalize(sessionID string, status models.SessionStatus, snapshot models.ProgressSnapshot) error {
	if !status.IsTerminal() {
		return fmt.Errorf("finalize called with non-terminal status %q", status)
	}
	snapshot.Status = status
	progressJSON, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`UPDATE upload_sessions SET status = ?, progress = ?, updated_at = ?
        WHERE session_id = ? AND status = 'active'`, string(status), string(progressJSON), time.Now(), sessionID)
	return err
}

// SetSessionFile links the session to the dataset it produced.
func (s *Store) SetSessionFile(sessionID string, fileID int64) error {
	_, err := s.db.Exec(`UPDATE upload_sessions SET file_id = ?, updated_at = ?
        WHERE session_id = ?`, fileID, time.Now(), sessionID)
	return err
}

// RequestCancel flags an active session for cooperative cancellation. The
// batch processor polls the flag at batch boundaries. Canceling a session
// that is already terminal is a no-op; the returned bool reports whether an
// active session was actually flagged.
func (s *Store) RequestCancel(sessionID string) (bool, error) {
	res, err := s.db.Exec(`UPDATE upload_sessions SET cancel_requested = 1, updated_at = ?
        WHERE session_id = ? AND status = 'active'`, time.Now(), sessionID)
	if err != nil {
		return false, err
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

// CancelRequested reports whether cancellation was requested for the session.
func (s *Store) CancelRequested(sessionID string) (bool, error) {
	var flagged bool
	err := s.db.QueryRow(`SELECT cancel_requested FROM upload_sessions
        WHERE session_id = ? ORDER BY updated_at DESC LIMIT 1`, sessionID).Scan(&flagged)
	if err == sql.ErrNoRows {
		return false, ErrSessionNotFound
	}
	return flagged, err
}

// SweepStale marks active sessions with no progress update within maxAge as
// errored. This is the backstop for processes that crashed mid-batch without
// writing a terminal state. It returns the number of sessions swept.
func (s *Store) SweepStale(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	staleSnapshot := models.ProgressSnapshot{
		Stage:     "Session timed out",
		Status:    models.StatusError,
		Error:     "stale session: no progress update before the staleness threshold",
		Timestamp: time.Now().UnixMilli(),
	}
	progressJSON, err := json.Marshal(staleSnapshot)
	if err != nil {
		return 0, err
	}
	res, err := s.db.Exec(`UPDATE upload_sessions SET status = 'error', progress = ?, updated_at = ?
        WHERE status = 'active' AND updated_at < ?`, string(progressJSON), time.Now(), cutoff)
	if err != nil {
		return 0, err
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}

// PurgeTerminal garbage-collects terminal sessions older than the grace
// period and returns how many were removed.
func (s *Store) PurgeTerminal(grace time.Duration) (int, error) {
	cutoff := time.Now().Add(-grace)
	res, err := s.db.Exec(`DELETE FROM upload_sessions
        WHERE status != 'active' AND updated_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}

// DeleteSessionsForFile removes the session linkage when a dataset is
// deleted.
func (s *Store) DeleteSessionsForFile(fileID int64) error {
	_, err := s.db.Exec(`DELETE FROM upload_sessions WHERE file_id = ?`, fileID)
	return err
}
