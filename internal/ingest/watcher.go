// This file implements a drop-directory watcher: CSV files placed into the
// configured directory are ingested automatically, using the same session
// pipeline as interactive uploads so dashboards observe them identically.

package ingest

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/panicsense/panicsense-go/internal/store"
)

// WatcherService watches a directory for dropped CSV files and feeds them
// into the batch processor.
type WatcherService struct {
	dir           string
	processor     *Processor
	store         *store.Store
	fingerprint   string
	watcher       *fsnotify.Watcher
	pending       map[string]bool
	mu            sync.Mutex
	debounceTimer *time.Timer
	debounceDelay time.Duration
	stopChan      chan struct{}
}

// NewWatcherService creates a watcher for the given drop directory.
func NewWatcherService(dir string, processor *Processor, st *store.Store, fingerprint string) *WatcherService {
	return &WatcherService{
		dir:           dir,
		processor:     processor,
		store:         st,
		fingerprint:   fingerprint,
		pending:       make(map[string]bool),
		debounceDelay: 2 * time.Second, // wait for the file to finish being written
		stopChan:      make(chan struct{}),
	}
}

// Start begins watching the drop directory.
func (w *WatcherService) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = watcher

	if err := watcher.Add(w.dir); err != nil {
		watcher.Close()
		return err
	}
	log.Printf("CSV drop watcher started for directory: %s", w.dir)

	go w.processEvents()
	return nil
}

// Stop stops the watcher.
func (w *WatcherService) Stop() error {
	close(w.stopChan)
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}

func (w *WatcherService) processEvents() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("CSV drop watcher error: %v", err)

		case <-w.stopChan:
			return
		}
	}
}

func (w *WatcherService) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	if !strings.EqualFold(filepath.Ext(event.Name), ".csv") {
		return
	}

	w.mu.Lock()
	w.pending[event.Name] = true
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounceDelay, w.ingestPending)
	w.mu.Unlock()
}

func (w *WatcherService) ingestPending() {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for path := range w.pending {
		paths = append(paths, path)
	}
	w.pending = make(map[string]bool)
	w.mu.Unlock()

	for _, path := range paths {
		go w.ingestFile(path)
	}
}

func (w *WatcherService) ingestFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		log.Printf("Drop watcher could not open %s: %v", path, err)
		return
	}
	defer f.Close()

	rows, err := ParseCSV(f)
	if err != nil {
		log.Printf("Drop watcher could not parse %s: %v", path, err)
		return
	}

	sessionID := uuid.New().String()
	if _, err := w.store.CreateSession(sessionID, w.fingerprint); err != nil {
		log.Printf("Drop watcher could not create session for %s: %v", path, err)
		return
	}

	log.Printf("Drop watcher ingesting %s as session %s (%d rows)", path, sessionID, len(rows))
	if _, err := w.processor.Process(context.Background(), sessionID, filepath.Base(path), rows); err != nil {
		log.Printf("Drop watcher ingestion of %s failed: %v", path, err)
	}
}
