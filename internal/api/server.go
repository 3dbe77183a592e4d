// It defines the API server, sets up the routes (endpoints)
// using chi, and links them to the handler functions.

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/panicsense/panicsense-go/internal/classifier"
	"github.com/panicsense/panicsense-go/internal/core"
	"github.com/panicsense/panicsense-go/internal/ingest"
	"github.com/panicsense/panicsense-go/internal/store"
)

// Server holds the dependencies for our API.
type Server struct {
	app        *core.App
	store      *store.Store
	classifier classifier.Classifier
	processor  *ingest.Processor
}

// NewServer creates a new Server instance. The classifier backend follows
// the config toggle: the external ML service when enabled, the keyword
// fallback otherwise.
func NewServer(app *core.App) *Server {
	storeInstance := store.New(app.DB())

	var cl classifier.Classifier
	if app.Config().Classifier.Enabled {
		cl = classifier.NewServiceClient(app.Config().Classifier.Endpoint, app.Config().ClassifierTimeout())
	} else {
		cl = classifier.NewKeywordClassifier()
	}

	return &Server{
		app:        app,
		store:      storeInstance,
		classifier: cl,
		processor:  ingest.NewProcessor(storeInstance, app.Hub(), cl, app.Config().Ingest.BatchSize),
	}
}

// Store returns the store instance.
func (s *Server) Store() *store.Store {
	return s.store
}

// Processor returns the batch processor, shared with the drop-dir watcher.
func (s *Server) Processor() *ingest.Processor {
	return s.processor
}

// SetClassifier swaps the classification backend. Used by tests.
func (s *Server) SetClassifier(cl classifier.Classifier) {
	s.classifier = cl
	s.processor = ingest.NewProcessor(s.store, s.app.Hub(), cl, s.app.Config().Ingest.BatchSize)
}

// Router sets up and returns the main router for the application.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)    // Logs requests to the console
	r.Use(middleware.Recoverer) // Recovers from panics

	// Batch uploads block until processing finishes, so they are mounted
	// outside the request timeout that covers everything else.
	r.Post("/api/upload", s.handleUpload)

	// Progress stream; long-lived, also outside the timeout.
	r.Get("/ws/progress", func(w http.ResponseWriter, r *http.Request) {
		s.app.Hub().ServeWs(w, r)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Route("/api", func(r chi.Router) {
			r.Get("/active-upload-session", s.handleActiveUploadSession)
			r.Post("/upload/cancel", s.handleCancelUpload)
			r.Post("/analyze", s.handleAnalyzeText)

			r.Get("/files", s.handleListFiles)
			r.Get("/files/{fileID}", s.handleGetFile)
			r.Get("/files/{fileID}/records", s.handleListFileRecords)
			r.Delete("/files/{fileID}", s.handleDeleteFile)

			r.Get("/records", s.handleListRecords)
			r.Delete("/records/{recordID}", s.handleDeleteRecord)
			r.Post("/records/{recordID}/feedback", s.handleRecordFeedback)

			// Admin / maintenance
			r.Route("/admin", func(r chi.Router) {
				r.Post("/sessions/cleanup", s.handleCleanupSessions)
				r.Get("/jobs/status", s.handleGetJobsStatus)
			})
		})
	})

	r.Get("/api/version", s.handleGetVersion)
	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		if err := s.app.DB().Ping(); err != nil {
			RespondWithError(w, http.StatusServiceUnavailable, "Database connection failed")
			return
		}
		RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}

func (s *Server) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, map[string]string{"version": s.app.Version()})
}

func (s *Server) handleGetJobsStatus(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, s.app.JobManager().GetStatus())
}
