// Handlers for the dashboard data consumers: datasets, records, the
// single-text analyzer and the feedback-correction path.

package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/panicsense/panicsense-go/internal/models"
)

func parseIDParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

// handleAnalyzeText classifies one text synchronously, with no session
// involved. This is the raw classifier boundary, useful for the realtime
// dashboard input box.
func (s *Server) handleAnalyzeText(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		RespondWithError(w, http.StatusBadRequest, "text is required")
		return
	}

	result, err := s.classifier.Classify(r.Context(), req.Text)
	if err != nil {
		RespondWithError(w, http.StatusBadGateway, "Classification failed: "+err.Error())
		return
	}
	RespondWithJSON(w, http.StatusOK, result)
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.store.ListFiles()
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to list files")
		return
	}
	if files == nil {
		files = []*models.SentimentFile{}
	}
	RespondWithJSON(w, http.StatusOK, files)
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	fileID, ok := parseIDParam(r, "fileID")
	if !ok {
		RespondWithError(w, http.StatusBadRequest, "Invalid file ID")
		return
	}
	file, err := s.store.GetFileByID(fileID)
	if err != nil {
		RespondWithError(w, http.StatusNotFound, "File not found")
		return
	}
	RespondWithJSON(w, http.StatusOK, file)
}

func (s *Server) handleListFileRecords(w http.ResponseWriter, r *http.Request) {
	fileID, ok := parseIDParam(r, "fileID")
	if !ok {
		RespondWithError(w, http.StatusBadRequest, "Invalid file ID")
		return
	}
	records, err := s.store.ListRecordsByFile(fileID)
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to list records")
		return
	}
	RespondWithJSON(w, http.StatusOK, records)
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	fileID, ok := parseIDParam(r, "fileID")
	if !ok {
		RespondWithError(w, http.StatusBadRequest, "Invalid file ID")
		return
	}
	if err := s.store.DeleteFile(fileID); err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to delete file")
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := s.store.ListRecords(limit)
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to list records")
		return
	}
	RespondWithJSON(w, http.StatusOK, records)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	recordID, ok := parseIDParam(r, "recordID")
	if !ok {
		RespondWithError(w, http.StatusBadRequest, "Invalid record ID")
		return
	}
	if err := s.store.DeleteRecord(recordID); err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to delete record")
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleRecordFeedback applies a user correction to a classified record.
func (s *Server) handleRecordFeedback(w http.ResponseWriter, r *http.Request) {
	recordID, ok := parseIDParam(r, "recordID")
	if !ok {
		RespondWithError(w, http.StatusBadRequest, "Invalid record ID")
		return
	}

	var req struct {
		Sentiment    string `json:"sentiment"`
		DisasterType string `json:"disasterType"`
		Location     string `json:"location"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Sentiment == "" {
		RespondWithError(w, http.StatusBadRequest, "sentiment is required")
		return
	}

	if err := s.store.CorrectRecord(recordID, req.Sentiment, req.DisasterType, req.Location); err != nil {
		RespondWithError(w, http.StatusNotFound, err.Error())
		return
	}

	record, err := s.store.GetRecordByID(recordID)
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to reload record")
		return
	}
	RespondWithJSON(w, http.StatusOK, record)
}
