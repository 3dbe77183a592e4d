package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panicsense/panicsense-go/internal/models"
	"github.com/panicsense/panicsense-go/internal/store"
	"github.com/panicsense/panicsense-go/internal/testutil"
)

func seedRecords(t *testing.T, s *store.Store, fileID int64, texts ...string) []*models.SentimentRecord {
	t.Helper()
	var records []*models.SentimentRecord
	for _, text := range texts {
		records = append(records, &models.SentimentRecord{
			Text:       text,
			Sentiment:  "Neutral",
			Confidence: 0.9,
		})
	}
	require.NoError(t, s.InsertRecords(fileID, records))
	return records
}

func TestRecordStore(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := store.New(db)

	file, err := s.CreateFile("quake.csv", "sess-quake.csv")
	require.NoError(t, err)

	t.Run("Insert and List By File", func(t *testing.T) {
		records := seedRecords(t, s, file.ID, "lindol sa Davao", "earthquake felt in Manila")
		assert.NotZero(t, records[0].ID, "InsertRecords should backfill ids")

		got, err := s.ListRecordsByFile(file.ID)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "lindol sa Davao", got[0].Text)
		require.NotNil(t, got[0].FileID)
		assert.Equal(t, file.ID, *got[0].FileID)
	})

	t.Run("Update File Results", func(t *testing.T) {
		metrics := &models.EvalMetrics{Accuracy: 0.5, Precision: 0.5, Recall: 0.5, F1Score: 0.5}
		require.NoError(t, s.UpdateFileResults(file.ID, 2, metrics))

		got, err := s.GetFileByID(file.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.RecordCount)
		require.NotNil(t, got.EvalMetrics)
		assert.Equal(t, 0.5, got.EvalMetrics.Accuracy)
	})

	t.Run("List Files", func(t *testing.T) {
		files, err := s.ListFiles()
		require.NoError(t, err)
		require.Len(t, files, 1)
		assert.Equal(t, "quake.csv", files[0].OriginalName)
	})

	t.Run("Correct Record", func(t *testing.T) {
		records, err := s.ListRecordsByFile(file.ID)
		require.NoError(t, err)
		id := records[0].ID

		require.NoError(t, s.CorrectRecord(id, "Panic", "Earthquake", "Davao"))

		got, err := s.GetRecordByID(id)
		require.NoError(t, err)
		assert.True(t, got.Corrected)
		assert.Equal(t, "Panic", got.Sentiment)
		assert.Equal(t, "Earthquake", got.DisasterType)
		assert.Equal(t, "Davao", got.Location)

		assert.Error(t, s.CorrectRecord(99999, "Panic", "", ""))
	})

	t.Run("List Records With Limit", func(t *testing.T) {
		records, err := s.ListRecords(1)
		require.NoError(t, err)
		require.Len(t, records, 1)
		// Newest first.
		assert.Equal(t, "earthquake felt in Manila", records[0].Text)
	})

	t.Run("Delete Record", func(t *testing.T) {
		records, err := s.ListRecordsByFile(file.ID)
		require.NoError(t, err)
		require.NoError(t, s.DeleteRecord(records[0].ID))

		remaining, err := s.ListRecordsByFile(file.ID)
		require.NoError(t, err)
		assert.Len(t, remaining, 1)
	})

	t.Run("Delete File Cascades Records", func(t *testing.T) {
		require.NoError(t, s.DeleteFile(file.ID))

		records, err := s.ListRecordsByFile(file.ID)
		require.NoError(t, err)
		assert.Empty(t, records)
	})
}
