package ingest_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panicsense/panicsense-go/internal/classifier"
	"github.com/panicsense/panicsense-go/internal/ingest"
	"github.com/panicsense/panicsense-go/internal/models"
	"github.com/panicsense/panicsense-go/internal/store"
	"github.com/panicsense/panicsense-go/internal/testutil"
)

// capturePublisher records every broadcast snapshot and, for checkpoints of
// active sessions, verifies the store was written first: the persisted
// snapshot must already match what is being broadcast.
type capturePublisher struct {
	t     *testing.T
	store *store.Store

	mu        sync.Mutex
	snapshots []models.ProgressSnapshot
}

func (p *capturePublisher) Publish(sessionID string, snapshot models.ProgressSnapshot) {
	p.mu.Lock()
	p.snapshots = append(p.snapshots, snapshot)
	p.mu.Unlock()

	sess, err := p.store.GetSession(sessionID)
	if err != nil {
		p.t.Errorf("broadcast for session %s before any store write: %v", sessionID, err)
		return
	}
	if sess.Progress.Processed != snapshot.Processed {
		p.t.Errorf("broadcast processed=%d but store has %d: store must be written first",
			snapshot.Processed, sess.Progress.Processed)
	}
	if snapshot.IsTerminal() && !sess.Status.IsTerminal() {
		p.t.Errorf("terminal broadcast before terminal store write")
	}
}

func (p *capturePublisher) last() models.ProgressSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(p.t, p.snapshots)
	return p.snapshots[len(p.snapshots)-1]
}

func makeRows(n int) []ingest.Row {
	rows := make([]ingest.Row, n)
	for i := range rows {
		rows[i] = ingest.Row{Text: fmt.Sprintf("report %d", i+1)}
	}
	return rows
}

func TestProcessRowFailureDoesNotAbort(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := store.New(db)
	pub := &capturePublisher{t: t, store: s}
	cl := &testutil.StubClassifier{FailOn: "report 2"}
	p := ingest.NewProcessor(s, pub, cl, 20)

	_, err := s.CreateSession("sess-rows", "fp")
	require.NoError(t, err)

	result, err := p.Process(context.Background(), "sess-rows", "data.csv", makeRows(3))
	require.NoError(t, err)

	// The failed row is counted as processed but produces no record.
	assert.Equal(t, 2, result.Stats.SuccessCount)
	assert.Equal(t, 1, result.Stats.ErrorCount)
	assert.Len(t, result.Records, 2)

	final := pub.last()
	assert.Equal(t, models.StatusComplete, final.Status)
	assert.Equal(t, 3, final.Processed)
	assert.Equal(t, 3, final.Total)
	assert.Equal(t, models.StageAnalysisComplete, final.Stage)

	sess, err := s.GetSession("sess-rows")
	require.NoError(t, err)
	assert.Equal(t, models.StatusComplete, sess.Status)

	records, err := s.ListRecordsByFile(result.File.ID)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestProcessEmptyFile(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := store.New(db)
	pub := &capturePublisher{t: t, store: s}
	p := ingest.NewProcessor(s, pub, &testutil.StubClassifier{}, 20)

	_, err := s.CreateSession("sess-empty", "fp")
	require.NoError(t, err)

	_, err = p.Process(context.Background(), "sess-empty", "empty.csv", nil)
	assert.ErrorIs(t, err, ingest.ErrEmptyFile)

	// An empty upload is an immediate error, never a vacuous success.
	sess, err := s.GetSession("sess-empty")
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, sess.Status)
	assert.NotEmpty(t, sess.Progress.Error)
}

// cancelDuringBatch flags the session for cancellation once the given number
// of rows have been classified, simulating a cancel request landing while a
// batch is in flight.
type cancelDuringBatch struct {
	inner     classifier.Classifier
	store     *store.Store
	sessionID string
	afterRows int

	mu    sync.Mutex
	calls int
}

func (c *cancelDuringBatch) Classify(ctx context.Context, text string) (*classifier.Result, error) {
	c.mu.Lock()
	c.calls++
	trigger := c.calls == c.afterRows
	c.mu.Unlock()

	if trigger {
		if _, err := c.store.RequestCancel(c.sessionID); err != nil {
			return nil, err
		}
	}
	return c.inner.Classify(ctx, text)
}

func TestProcessCancellationAtBatchBoundary(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := store.New(db)
	pub := &capturePublisher{t: t, store: s}
	cl := &cancelDuringBatch{
		inner:     &testutil.StubClassifier{},
		store:     s,
		sessionID: "sess-cancel",
		afterRows: 10, // mid-batch: the batch still runs to completion
	}
	p := ingest.NewProcessor(s, pub, cl, 20)

	_, err := s.CreateSession("sess-cancel", "fp")
	require.NoError(t, err)

	_, err = p.Process(context.Background(), "sess-cancel", "big.csv", makeRows(100))
	assert.ErrorIs(t, err, ingest.ErrCanceled)

	// The first batch completed; nothing after the boundary ran.
	assert.Equal(t, 20, cl.calls)

	sess, err := s.GetSession("sess-cancel")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCanceled, sess.Status)
	assert.Equal(t, 20, sess.Progress.Processed)
	assert.Equal(t, 100, sess.Progress.Total)

	// Rows from the completed batch stay persisted.
	require.NotNil(t, sess.FileID)
	records, err := s.ListRecordsByFile(*sess.FileID)
	require.NoError(t, err)
	assert.Len(t, records, 20)

	final := pub.last()
	assert.Equal(t, models.StatusCanceled, final.Status)
}

func TestProcessContextCancellation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := store.New(db)
	pub := &capturePublisher{t: t, store: s}
	p := ingest.NewProcessor(s, pub, &testutil.StubClassifier{}, 20)

	_, err := s.CreateSession("sess-ctx", "fp")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = p.Process(ctx, "sess-ctx", "data.csv", makeRows(50))
	assert.ErrorIs(t, err, ingest.ErrCanceled)

	sess, err := s.GetSession("sess-ctx")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCanceled, sess.Status)
	assert.Equal(t, 0, sess.Progress.Processed)
}

func TestProcessComputesMetricsFromGroundTruth(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := store.New(db)
	pub := &capturePublisher{t: t, store: s}
	p := ingest.NewProcessor(s, pub, testutil.EchoClassifier{}, 20)

	_, err := s.CreateSession("sess-metrics", "fp")
	require.NoError(t, err)

	rows := []ingest.Row{
		{Text: "crowd shouting Panic", TrueSentiment: "Panic"},
		{Text: "another Panic report", TrueSentiment: "Panic"},
		{Text: "calm Neutral update", TrueSentiment: "Panic"}, // misclassified
		{Text: "Neutral weather note", TrueSentiment: "Neutral"},
	}
	result, err := p.Process(context.Background(), "sess-metrics", "labeled.csv", rows)
	require.NoError(t, err)

	require.NotNil(t, result.Metrics)
	assert.Equal(t, 0.75, result.Metrics.Accuracy)

	// The metrics are persisted on the file as well.
	file, err := s.GetFileByID(result.File.ID)
	require.NoError(t, err)
	require.NotNil(t, file.EvalMetrics)
	assert.Equal(t, 0.75, file.EvalMetrics.Accuracy)
	assert.Equal(t, 4, file.RecordCount)
}
