// This file defines the upload session and progress structures shared by the
// batch processor, the session store and the streaming layer.

package models

import "time"

// SessionStatus is the lifecycle state of an upload session. A session leaves
// "active" exactly once; the other three states are terminal.
type SessionStatus string

const (
	StatusActive   SessionStatus = "active"
	StatusComplete SessionStatus = "complete"
	StatusError    SessionStatus = "error"
	StatusCanceled SessionStatus = "canceled"
)

// IsTerminal reports whether no further progress is meaningful for a session
// in this status.
func (s SessionStatus) IsTerminal() bool {
	return s == StatusComplete || s == StatusError || s == StatusCanceled
}

// StageAnalysisComplete is the human-readable stage label emitted with the
// final successful snapshot. Consumers must branch on Status, not on this
// string: non-terminal stages ("Completed record 5/50") also contain the word
// "complete".
const StageAnalysisComplete = "Analysis complete"

// UploadSession is the durable record of one batch ingestion attempt. The
// session_id is a client-generated token used as the correlation key across
// the store, the stream and cross-tab broadcasts.
type UploadSession struct {
	ID                int64            `json:"id"`
	SessionID         string           `json:"sessionId"`
	Status            SessionStatus    `json:"status"`
	FileID            *int64           `json:"fileId,omitempty"`
	Progress          ProgressSnapshot `json:"progress"`
	ServerFingerprint string           `json:"-"`
	CancelRequested   bool             `json:"-"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

// ProgressSnapshot is the value broadcast and persisted at each batch
// boundary. Status carries the terminal marker; Stage is display text only.
type ProgressSnapshot struct {
	Processed     int           `json:"processed"`
	Total         int           `json:"total"`
	Stage         string        `json:"stage"`
	Status        SessionStatus `json:"status"`
	BatchNumber   int           `json:"batchNumber,omitempty"`
	TotalBatches  int           `json:"totalBatches,omitempty"`
	BatchProgress float64       `json:"batchProgress,omitempty"`
	CurrentSpeed  float64       `json:"currentSpeed,omitempty"`  // rows per second, advisory
	TimeRemaining float64       `json:"timeRemaining,omitempty"` // seconds, advisory
	Error         string        `json:"error,omitempty"`
	Timestamp     int64         `json:"timestamp"` // unix milliseconds, set by the producer
}

// IsTerminal reports whether this snapshot announces a terminal state.
func (p ProgressSnapshot) IsTerminal() bool {
	return p.Status.IsTerminal()
}
