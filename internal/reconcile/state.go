// Client-side session reconciliation. A tab (or CLI attach) observes an
// upload through several unreliable channels at once: the websocket stream,
// cross-tab broadcasts, the polling endpoint and a local cache surviving
// reloads. This package merges them into one coherent view of "is an upload
// running, and how far along is it", with the server's store as the final
// authority.

package reconcile

import (
	"time"

	"github.com/panicsense/panicsense-go/internal/models"
)

const (
	// completionDisplayDelay keeps a terminal snapshot on screen briefly
	// before the state clears, so the user actually sees the outcome.
	completionDisplayDelay = 3 * time.Second

	// timestampSkewTolerance is how far behind the newest applied snapshot
	// a message may be and still be accepted. Covers clock skew between
	// delivery channels without letting genuinely stale messages regress
	// the display.
	timestampSkewTolerance = 2 * time.Second

	// restartGraceWindow is how long the client keeps showing a session the
	// server denies knowledge of. A restarting server answers "no such
	// session" for a few seconds before its sweep settles; giving up on the
	// first denial would flicker every restart.
	restartGraceWindow = 30 * time.Second

	// giveUpThreshold abandons a session whose last snapshot is this old,
	// regardless of what the poller says. Nothing legitimate goes silent
	// for this long.
	giveUpThreshold = 5 * time.Minute

	// minRenderInterval throttles re-renders. Stage and batch transitions
	// bypass it.
	minRenderInterval = 200 * time.Millisecond
)

// UploadState is the reconciled view a tab holds of the upload.
type UploadState struct {
	IsUploading bool
	SessionID   string
	Progress    models.ProgressSnapshot

	// LastApplied is the timestamp (unix millis) of the newest snapshot
	// applied, used as the ordering guard.
	LastApplied int64

	// Terminal is set once a terminal snapshot lands. After that, nothing
	// short of a reset changes this session's state: completion is final.
	Terminal   bool
	TerminalAt time.Time

	// MissingSince records the first poll where the server denied knowing
	// this session, for the restart grace window.
	MissingSince time.Time
}

// Event is an observation from one of the delivery channels.
type Event interface{ isEvent() }

// SnapshotEvent is a progress snapshot from the websocket stream or from a
// validated cross-tab broadcast.
type SnapshotEvent struct {
	SessionID string
	Snapshot  models.ProgressSnapshot
}

// PollEvent is the result of querying the active-session endpoint.
type PollEvent struct {
	Found     bool
	SessionID string
	Status    models.SessionStatus
	Snapshot  models.ProgressSnapshot
}

// RestoreEvent seeds state from the local cache on startup, before any
// network answer arrives.
type RestoreEvent struct {
	Cached CachedSession
}

// CancelEvent marks the session canceled locally. Used by the force-cancel
// escape hatch when the user gives up on a wedged session.
type CancelEvent struct{}

// ResetEvent clears all state, cache included. Cross-tab cleanup lands here.
type ResetEvent struct{}

// displayElapsedEvent fires after completionDisplayDelay to clear a
// terminal session off the screen.
type displayElapsedEvent struct{}

func (SnapshotEvent) isEvent()       {}
func (PollEvent) isEvent()           {}
func (RestoreEvent) isEvent()        {}
func (CancelEvent) isEvent()         {}
func (ResetEvent) isEvent()          {}
func (displayElapsedEvent) isEvent() {}
