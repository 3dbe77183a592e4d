// The batch processor turns one uploaded dataset into persisted sentiment
// records with observable, cancellable progress. The session store is always
// written before the corresponding broadcast, so a client polling the store
// never sees older state than the stream delivered for the same checkpoint.

package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/panicsense/panicsense-go/internal/classifier"
	"github.com/panicsense/panicsense-go/internal/models"
	"github.com/panicsense/panicsense-go/internal/store"
)

var (
	// ErrEmptyFile is returned for a dataset with zero usable rows. An empty
	// upload is an immediate error, not a vacuous success.
	ErrEmptyFile = errors.New("uploaded file contains no records")
	// ErrCanceled is returned when processing stopped on a cancel request.
	ErrCanceled = errors.New("upload canceled by user")
)

// Publisher pushes progress snapshots to stream subscribers.
type Publisher interface {
	Publish(sessionID string, snapshot models.ProgressSnapshot)
}

// Processor runs batch ingestion for upload sessions. One cooperative task
// per session; multiple sessions may process concurrently.
type Processor struct {
	store      *store.Store
	hub        Publisher
	classifier classifier.Classifier
	batchSize  int
}

// Result is what a completed ingestion hands back to the upload endpoint.
type Result struct {
	File    *models.SentimentFile     `json:"file"`
	Records []*models.SentimentRecord `json:"records"`
	Metrics *models.EvalMetrics       `json:"metrics,omitempty"`
	Stats   models.ProcessingStats    `json:"stats"`
}

// NewProcessor creates a batch processor.
func NewProcessor(st *store.Store, hub Publisher, cl classifier.Classifier, batchSize int) *Processor {
	if batchSize <= 0 {
		batchSize = 20
	}
	return &Processor{store: st, hub: hub, classifier: cl, batchSize: batchSize}
}

// checkpoint persists the snapshot and then broadcasts it, in that order.
func (p *Processor) checkpoint(sessionID string, snapshot models.ProgressSnapshot) {
	if err := p.store.UpdateProgress(sessionID, snapshot); err != nil {
		log.Printf("[Ingest %s] Failed to persist progress: %v", sessionID, err)
	}
	p.hub.Publish(sessionID, snapshot)
}

// finalize transitions the session to a terminal state and broadcasts the
// terminal snapshot, which also closes the stream server-side.
func (p *Processor) finalize(sessionID string, status models.SessionStatus, snapshot models.ProgressSnapshot) {
	snapshot.Status = status
	snapshot.Timestamp = time.Now().UnixMilli()
	if err := p.store.Finalize(sessionID, status, snapshot); err != nil {
		log.Printf("[Ingest %s] Failed to finalize session: %v", sessionID, err)
	}
	p.hub.Publish(sessionID, snapshot)
}

// Process ingests the rows under an existing active session. It blocks until
// the session reaches a terminal state and returns the final result on
// success, ErrCanceled on cooperative cancellation, or the failure that
// errored the session.
func (p *Processor) Process(ctx context.Context, sessionID, fileName string, rows []Row) (*Result, error) {
	total := len(rows)
	if total == 0 {
		p.finalize(sessionID, models.StatusError, models.ProgressSnapshot{
			Stage: "No records found in CSV",
			Error: ErrEmptyFile.Error(),
		})
		return nil, ErrEmptyFile
	}

	file, err := p.store.CreateFile(fileName, fmt.Sprintf("%s-%s", sessionID, fileName))
	if err != nil {
		p.failSession(sessionID, 0, total, err)
		return nil, err
	}
	if err := p.store.SetSessionFile(sessionID, file.ID); err != nil {
		p.failSession(sessionID, 0, total, err)
		return nil, err
	}

	totalBatches := (total + p.batchSize - 1) / p.batchSize
	start := time.Now()

	conf := newConfusion()
	var allRecords []*models.SentimentRecord
	stats := models.ProcessingStats{}
	processed := 0

	log.Printf("[Ingest %s] Starting: %d rows in %d batches", sessionID, total, totalBatches)

	for batchNum := 1; batchNum <= totalBatches; batchNum++ {
		// Cancellation is cooperative and polled at batch boundaries; at
		// most the current batch completes after a cancel request.
		if canceled, err := p.canceled(ctx, sessionID); err != nil {
			p.failSession(sessionID, processed, total, err)
			return nil, err
		} else if canceled {
			p.finalize(sessionID, models.StatusCanceled, models.ProgressSnapshot{
				Processed: processed,
				Total:     total,
				Stage:     "Upload canceled",
			})
			log.Printf("[Ingest %s] Canceled after %d/%d rows", sessionID, processed, total)
			return nil, ErrCanceled
		}

		batchStart := (batchNum - 1) * p.batchSize
		batchEnd := batchStart + p.batchSize
		if batchEnd > total {
			batchEnd = total
		}
		batch := rows[batchStart:batchEnd]

		var batchRecords []*models.SentimentRecord
		for i, row := range batch {
			result, err := p.classifier.Classify(ctx, row.Text)
			if err != nil {
				// Row-level failure: count it and move on. A single bad row
				// must never abort the batch.
				stats.ErrorCount++
				processed++
				log.Printf("[Ingest %s] Row %d classification failed: %v", sessionID, batchStart+i+1, err)
				continue
			}

			rec := &models.SentimentRecord{
				Text:         row.Text,
				Timestamp:    row.Timestamp,
				Source:       row.Source,
				Language:     firstNonEmpty(row.Language, result.Language),
				Sentiment:    result.Sentiment,
				Confidence:   result.Confidence,
				DisasterType: firstNonEmpty(result.DisasterType, row.DisasterType),
				Location:     firstNonEmpty(result.Location, row.Location),
				Explanation:  result.Explanation,
			}
			batchRecords = append(batchRecords, rec)
			conf.add(row.TrueSentiment, result.Sentiment)
			stats.SuccessCount++
			processed++
		}

		if err := p.store.InsertRecords(file.ID, batchRecords); err != nil {
			p.failSession(sessionID, processed, total, fmt.Errorf("failed to persist batch %d: %w", batchNum, err))
			return nil, err
		}
		allRecords = append(allRecords, batchRecords...)

		elapsed := time.Since(start).Seconds()
		speed := safeDiv(float64(processed), elapsed)
		remaining := safeDiv(float64(total-processed), speed)

		p.checkpoint(sessionID, models.ProgressSnapshot{
			Processed:     processed,
			Total:         total,
			Stage:         fmt.Sprintf("Completed batch %d of %d", batchNum, totalBatches),
			Status:        models.StatusActive,
			BatchNumber:   batchNum,
			TotalBatches:  totalBatches,
			BatchProgress: 100,
			CurrentSpeed:  round3(speed),
			TimeRemaining: round3(remaining),
			Timestamp:     time.Now().UnixMilli(),
		})
	}

	metrics := conf.compute()
	stats.AverageSpeed = round3(safeDiv(float64(processed), time.Since(start).Seconds()))

	if err := p.store.UpdateFileResults(file.ID, len(allRecords), metrics); err != nil {
		p.failSession(sessionID, processed, total, err)
		return nil, err
	}
	file.RecordCount = len(allRecords)
	file.EvalMetrics = metrics

	p.finalize(sessionID, models.StatusComplete, models.ProgressSnapshot{
		Processed:    total,
		Total:        total,
		Stage:        models.StageAnalysisComplete,
		BatchNumber:  totalBatches,
		TotalBatches: totalBatches,
		CurrentSpeed: stats.AverageSpeed,
	})
	log.Printf("[Ingest %s] Complete: %d rows, %d errors", sessionID, total, stats.ErrorCount)

	return &Result{File: file, Records: allRecords, Metrics: metrics, Stats: stats}, nil
}

// canceled reports whether the session should stop: either the context was
// canceled or a cancel request was flagged in the store.
func (p *Processor) canceled(ctx context.Context, sessionID string) (bool, error) {
	select {
	case <-ctx.Done():
		return true, nil
	default:
	}
	flagged, err := p.store.CancelRequested(sessionID)
	if errors.Is(err, store.ErrSessionNotFound) {
		// Session row vanished (e.g. admin cleanup mid-run); stop quietly.
		return true, nil
	}
	return flagged, err
}

func (p *Processor) failSession(sessionID string, processed, total int, cause error) {
	log.Printf("[Ingest %s] Failed: %v", sessionID, cause)
	p.finalize(sessionID, models.StatusError, models.ProgressSnapshot{
		Processed: processed,
		Total:     total,
		Stage:     "Processing failed",
		Error:     cause.Error(),
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
