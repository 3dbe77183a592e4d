// This file defines the classified output structures: one record per input
// row, the file that groups them, and the evaluation metrics attached to it.

package models

import "time"

// SentimentRecord is one classified row. Immutable once written, except for
// the feedback-correction path which may overwrite sentiment, location and
// disaster type and mark the row corrected.
type SentimentRecord struct {
	ID           int64     `json:"id"`
	FileID       *int64    `json:"fileId,omitempty"`
	Text         string    `json:"text"`
	Timestamp    string    `json:"timestamp,omitempty"`
	Source       string    `json:"source,omitempty"`
	Language     string    `json:"language,omitempty"`
	Sentiment    string    `json:"sentiment"`
	Confidence   float64   `json:"confidence"`
	DisasterType string    `json:"disasterType,omitempty"`
	Location     string    `json:"location,omitempty"`
	Explanation  string    `json:"explanation,omitempty"`
	Corrected    bool      `json:"corrected"`
	CreatedAt    time.Time `json:"createdAt"`
}

// SentimentFile represents one ingested dataset.
type SentimentFile struct {
	ID           int64        `json:"id"`
	OriginalName string       `json:"originalName"`
	StoredName   string       `json:"storedName"`
	RecordCount  int          `json:"recordCount"`
	EvalMetrics  *EvalMetrics `json:"evalMetrics,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// ClassMetrics holds per-class precision/recall/F1 from the confusion
// accumulation.
type ClassMetrics struct {
	Label     string  `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1Score   float64 `json:"f1Score"`
	Support   int     `json:"support"`
}

// EvalMetrics is the aggregate evaluation attached to a file once processing
// completes. Macro-averaged over the classes that appeared in the data.
type EvalMetrics struct {
	Accuracy  float64        `json:"accuracy"`
	Precision float64        `json:"precision"`
	Recall    float64        `json:"recall"`
	F1Score   float64        `json:"f1Score"`
	PerClass  []ClassMetrics `json:"perClass,omitempty"`
}

// ProcessingStats summarizes row outcomes for one ingestion run.
type ProcessingStats struct {
	SuccessCount int     `json:"successCount"`
	ErrorCount   int     `json:"errorCount"`
	AverageSpeed float64 `json:"averageSpeed,omitempty"` // rows per second
}
