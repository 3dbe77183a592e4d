// Persistence for classified records and the files that group them.

package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/panicsense/panicsense-go/internal/models"
)

// CreateFile inserts a new dataset row and returns it.
func (s *Store) CreateFile(originalName, storedName string) (*models.SentimentFile, error) {
	now := time.Now()
	res, err := s.db.Exec(`
        INSERT INTO sentiment_files (original_name, stored_name, record_count, created_at)
        VALUES (?, ?, 0, ?)
    `, originalName, storedName, now)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.SentimentFile{
		ID:           id,
		OriginalName: originalName,
		StoredName:   storedName,
		CreatedAt:    now,
	}, nil
}

// UpdateFileResults writes the final record count and evaluation metrics for
// a completed ingestion.
func (s *Store) UpdateFileResults(fileID int64, recordCount int, metrics *models.EvalMetrics) error {
	var metricsJSON sql.NullString
	if metrics != nil {
		data, err := json.Marshal(metrics)
		if err != nil {
			return err
		}
		metricsJSON = sql.NullString{String: string(data), Valid: true}
	}
	_, err := s.db.Exec(`UPDATE sentiment_files SET record_count = ?, eval_metrics = ? WHERE id = ?`,
		recordCount, metricsJSON, fileID)
	return err
}

func scanFile(scanner interface{ Scan(...any) error }) (*models.SentimentFile, error) {
	var f models.SentimentFile
	var metricsJSON sql.NullString
	if err := scanner.Scan(&f.ID, &f.OriginalName, &f.StoredName, &f.RecordCount, &metricsJSON, &f.CreatedAt); err != nil {
		return nil, err
	}
	if metricsJSON.Valid && metricsJSON.String != "" {
		var m models.EvalMetrics
		if err := json.Unmarshal([]byte(metricsJSON.String), &m); err != nil {
			return nil, fmt.Errorf("corrupt eval metrics for file %d: %w", f.ID, err)
		}
		f.EvalMetrics = &m
	}
	return &f, nil
}

// GetFileByID retrieves a single dataset.
func (s *Store) GetFileByID(id int64) (*models.SentimentFile, error) {
	row := s.db.QueryRow(`SELECT id, original_name, stored_name, record_count, eval_metrics, created_at
        FROM sentiment_files WHERE id = ?`, id)
	return scanFile(row)
}

// ListFiles returns all datasets, newest first.
func (s *Store) ListFiles() ([]*models.SentimentFile, error) {
	rows, err := s.db.Query(`SELECT id, original_name, stored_name, record_count, eval_metrics, created_at
        FROM sentiment_files ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []*models.SentimentFile
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// DeleteFile removes a dataset; its records cascade via the foreign key and
// the session linkage is cleared explicitly.
func (s *Store) DeleteFile(id int64) error {
	if err := s.DeleteSessionsForFile(id); err != nil {
		return err
	}
	_, err := s.db.Exec(`DELETE FROM sentiment_files WHERE id = ?`, id)
	return err
}

// InsertRecords persists one batch of classified rows in a single
// transaction.
func (s *Store) InsertRecords(fileID int64, records []*models.SentimentRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
        INSERT INTO sentiment_records
        (file_id, text, timestamp, source, language, sentiment, confidence, disaster_type, location, explanation, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, rec := range records {
		res, err := stmt.Exec(fileID, rec.Text, rec.Timestamp, rec.Source, rec.Language,
			rec.Sentiment, rec.Confidence, rec.DisasterType, rec.Location, rec.Explanation, now)
		if err != nil {
			return err
		}
		rec.ID, _ = res.LastInsertId()
		rec.FileID = &fileID
		rec.CreatedAt = now
	}

	return tx.Commit()
}

const recordColumns = `id, file_id, text, timestamp, source, language, sentiment, confidence, disaster_type, location, explanation, corrected, created_at`

func scanRecord(scanner interface{ Scan(...any) error }) (*models.SentimentRecord, error) {
	var rec models.SentimentRecord
	var fileID sql.NullInt64
	var ts, source, language, disasterType, location, explanation sql.NullString
	err := scanner.Scan(&rec.ID, &fileID, &rec.Text, &ts, &source, &language,
		&rec.Sentiment, &rec.Confidence, &disasterType, &location, &explanation,
		&rec.Corrected, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	if fileID.Valid {
		rec.FileID = &fileID.Int64
	}
	rec.Timestamp = ts.String
	rec.Source = source.String
	rec.Language = language.String
	rec.DisasterType = disasterType.String
	rec.Location = location.String
	rec.Explanation = explanation.String
	return &rec, nil
}

func (s *Store) queryRecords(query string, args ...any) ([]*models.SentimentRecord, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.SentimentRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListRecordsByFile returns every record of one dataset.
func (s *Store) ListRecordsByFile(fileID int64) ([]*models.SentimentRecord, error) {
	return s.queryRecords(`SELECT `+recordColumns+` FROM sentiment_records
        WHERE file_id = ? ORDER BY id ASC`, fileID)
}

// ListRecords returns the most recent records across all datasets, for the
// raw-data table.
func (s *Store) ListRecords(limit int) ([]*models.SentimentRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.queryRecords(`SELECT `+recordColumns+` FROM sentiment_records
        ORDER BY id DESC LIMIT ?`, limit)
}

// GetRecordByID retrieves a single record.
func (s *Store) GetRecordByID(id int64) (*models.SentimentRecord, error) {
	row := s.db.QueryRow(`SELECT `+recordColumns+` FROM sentiment_records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("record %d not found", id)
	}
	return rec, err
}

// DeleteRecord removes one record.
func (s *Store) DeleteRecord(id int64) error {
	_, err := s.db.Exec(`DELETE FROM sentiment_records WHERE id = ?`, id)
	return err
}

// CorrectRecord applies a user feedback correction, overwriting the
// classification fields and marking the row corrected.
func (s *Store) CorrectRecord(id int64, sentiment, disasterType, location string) error {
	res, err := s.db.Exec(`UPDATE sentiment_records
        SET sentiment = ?, disaster_type = ?, location = ?, corrected = 1
        WHERE id = ?`, sentiment, disasterType, location, id)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("record %d not found", id)
	}
	return nil
}
