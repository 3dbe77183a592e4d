package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/panicsense/panicsense-go/internal/api"
	"github.com/panicsense/panicsense-go/internal/core"
	"github.com/panicsense/panicsense-go/internal/ingest"
	"github.com/panicsense/panicsense-go/internal/jobs"
)

var version = "dev" // Overwritten at build time via ldflags

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize the core application components
	app, err := core.New(version)
	if err != nil {
		log.Fatalf("Fatal error during application setup: %v", err)
	}
	defer app.Close()

	// Start the background maintenance jobs (stale-session sweep etc.)
	jobs.StartJobs(app)

	// Setup the API server
	server := api.NewServer(app)

	// Optional CSV drop directory: files placed there are ingested through
	// the same session pipeline as interactive uploads.
	if dir := app.Config().Ingest.WatchDir; dir != "" {
		watcher := ingest.NewWatcherService(dir, server.Processor(), server.Store(), app.Fingerprint())
		if err := watcher.Start(); err != nil {
			log.Printf("Warning: CSV drop watcher failed to start: %v", err)
		} else {
			defer watcher.Stop()
		}
	}

	addr := fmt.Sprintf(":%d", app.Config().Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Router(),
	}

	// --- Graceful Shutdown ---
	// Start the server in a goroutine so it doesn't block.
	go func() {
		log.Printf("Starting web server on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not start server: %v", err)
		}
	}()

	// Wait for an interrupt signal.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give in-flight uploads a moment to reach a checkpoint; anything still
	// active after a crash is recovered by the stale-session sweep.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting.")
}
