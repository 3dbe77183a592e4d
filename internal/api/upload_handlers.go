// Handlers for the upload/ingestion pipeline: starting a batch upload,
// querying the active session, cancelling, and maintenance cleanup.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/panicsense/panicsense-go/internal/ingest"
	"github.com/panicsense/panicsense-go/internal/models"
	"github.com/panicsense/panicsense-go/internal/store"
)

const maxUploadBytes = 50 << 20 // 50 MB

// handleUpload ingests a CSV dataset under the client-supplied session id.
// The response carries the final result; clients that want live progress
// subscribe to /ws/progress with the same session id instead of waiting.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get("X-Session-ID")
	if sessionID == "" {
		RespondWithError(w, http.StatusBadRequest, "X-Session-ID header is required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid multipart form or file too large")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, "Missing 'file' form field")
		return
	}
	defer file.Close()

	rows, err := ingest.ParseCSV(file)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := s.store.CreateSession(sessionID, s.app.Fingerprint()); err != nil {
		if errors.Is(err, store.ErrSessionConflict) {
			RespondWithError(w, http.StatusConflict, "An active session with this id already exists")
			return
		}
		RespondWithError(w, http.StatusInternalServerError, "Failed to create upload session")
		return
	}

	// Processing is deliberately detached from the request context: closing
	// the originating tab must not kill the pipeline, since other tabs may
	// be watching the same session.
	result, err := s.processor.Process(context.Background(), sessionID, header.Filename, rows)
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrEmptyFile):
			RespondWithError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, ingest.ErrCanceled):
			RespondWithJSON(w, http.StatusOK, map[string]interface{}{
				"success": false,
				"message": "Upload canceled",
			})
		default:
			RespondWithError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	RespondWithJSON(w, http.StatusOK, result)
}

// handleActiveUploadSession is the authoritative "is an upload running"
// query. With a sessionId parameter it reports on that session only — never
// a different one — including its terminal status, which reconnecting
// clients need after a server restart. Without the parameter it returns the
// most recent active session, or an empty object.
func (s *Server) handleActiveUploadSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")

	var (
		sess *models.UploadSession
		err  error
	)
	if sessionID != "" {
		sess, err = s.store.GetSession(sessionID)
	} else {
		sess, err = s.store.GetActiveSession("")
	}

	if errors.Is(err, store.ErrSessionNotFound) || (err == nil && sess == nil) {
		RespondWithJSON(w, http.StatusOK, map[string]interface{}{})
		return
	}
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to query sessions")
		return
	}

	RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"sessionId": sess.SessionID,
		"status":    sess.Status,
		"progress":  sess.Progress,
	})
}

// handleCancelUpload flags a session for cooperative cancellation. The batch
// processor notices at the next batch boundary. Canceling an already
// finished session is a no-op, not an error.
func (s *Server) handleCancelUpload(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		RespondWithError(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	flagged, err := s.store.RequestCancel(req.SessionID)
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to request cancellation")
		return
	}

	message := "Cancellation requested; the current batch will finish first"
	if !flagged {
		message = "No active session to cancel"
	}
	RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": message,
	})
}

// handleCleanupSessions sweeps stale active sessions to error and purges
// terminal sessions past a short grace period. Exposed for operators and
// for the client's full-reset path.
func (s *Server) handleCleanupSessions(w http.ResponseWriter, r *http.Request) {
	swept, err := s.store.SweepStale(s.app.Config().StaleAfter())
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to sweep stale sessions")
		return
	}
	purged, err := s.store.PurgeTerminal(time.Hour)
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to purge terminal sessions")
		return
	}

	RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"clearedCount": swept + purged,
	})
}
