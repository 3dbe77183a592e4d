package reconcile

import (
	"time"

	"github.com/panicsense/panicsense-go/internal/models"
)

// Reduce merges one observation into the current state. It is a pure
// function of (state, event, now); all IO lives in the Reconciler.
//
// Priority rules, highest first:
//  1. Terminal snapshots are final. Once a session is terminal, no later
//     message reopens it.
//  2. Non-terminal snapshots older than the newest applied one (beyond the
//     skew tolerance) are discarded.
//  3. The server store is the authority on existence, softened by a grace
//     window for restarts.
func Reduce(state UploadState, ev Event, now time.Time) UploadState {
	switch ev := ev.(type) {
	case SnapshotEvent:
		return reduceSnapshot(state, ev, now)

	case PollEvent:
		return reducePoll(state, ev, now)

	case RestoreEvent:
		// Cache seeds only an in-flight session. Completed or terminal
		// cache entries are leftovers; the cleanup path owns them.
		if state.IsUploading || ev.Cached.Completed || ev.Cached.SessionID == "" {
			return state
		}
		if ev.Cached.Snapshot.IsTerminal() {
			return state
		}
		return UploadState{
			IsUploading: true,
			SessionID:   ev.Cached.SessionID,
			Progress:    ev.Cached.Snapshot,
			LastApplied: ev.Cached.Snapshot.Timestamp,
		}

	case CancelEvent:
		if !state.IsUploading || state.Terminal {
			return state
		}
		state.Progress.Status = models.StatusCanceled
		state.Progress.Stage = "Upload canceled"
		state.Terminal = true
		state.TerminalAt = now
		return state

	case ResetEvent:
		return UploadState{}

	case displayElapsedEvent:
		if state.Terminal {
			return UploadState{}
		}
		return state
	}
	return state
}

func reduceSnapshot(state UploadState, ev SnapshotEvent, now time.Time) UploadState {
	// A tab never starts showing an upload purely because some other
	// session completed somewhere; only live, non-terminal progress for an
	// unknown session is worth adopting.
	if state.SessionID == "" {
		if ev.Snapshot.IsTerminal() {
			return state
		}
		return UploadState{
			IsUploading: true,
			SessionID:   ev.SessionID,
			Progress:    ev.Snapshot,
			LastApplied: ev.Snapshot.Timestamp,
		}
	}

	if ev.SessionID != state.SessionID {
		return state
	}
	if state.Terminal {
		return state
	}

	if ev.Snapshot.IsTerminal() {
		state.Progress = ev.Snapshot
		state.LastApplied = maxInt64(state.LastApplied, ev.Snapshot.Timestamp)
		state.Terminal = true
		state.TerminalAt = now
		state.MissingSince = time.Time{}
		return state
	}

	if stale(state.LastApplied, ev.Snapshot.Timestamp) {
		return state
	}

	state.IsUploading = true
	state.Progress = ev.Snapshot
	state.LastApplied = maxInt64(state.LastApplied, ev.Snapshot.Timestamp)
	state.MissingSince = time.Time{}
	return state
}

func reducePoll(state UploadState, ev PollEvent, now time.Time) UploadState {
	if !ev.Found {
		if !state.IsUploading {
			return state
		}
		// The server denies the session. If the last snapshot is recent the
		// server is most likely mid-restart, so keep showing progress and
		// let the next poll decide. Persistent denial, or a long-silent
		// session, means the session is really gone.
		if state.MissingSince.IsZero() {
			state.MissingSince = now
			return state
		}
		if now.Sub(state.MissingSince) > restartGraceWindow {
			return UploadState{}
		}
		if state.LastApplied > 0 && now.Sub(time.UnixMilli(state.LastApplied)) > giveUpThreshold {
			return UploadState{}
		}
		return state
	}

	if state.SessionID != "" && ev.SessionID != state.SessionID {
		return state
	}

	if state.SessionID == "" {
		if ev.Status.IsTerminal() {
			return state
		}
		return UploadState{
			IsUploading: true,
			SessionID:   ev.SessionID,
			Progress:    ev.Snapshot,
			LastApplied: ev.Snapshot.Timestamp,
		}
	}

	if state.Terminal {
		return state
	}

	if ev.Status.IsTerminal() {
		// The store finished the session; the stream message may have been
		// lost. Synthesize the terminal view from the stored snapshot.
		state.Progress = ev.Snapshot
		if !state.Progress.IsTerminal() {
			state.Progress.Status = ev.Status
		}
		state.LastApplied = maxInt64(state.LastApplied, ev.Snapshot.Timestamp)
		state.Terminal = true
		state.TerminalAt = now
		state.MissingSince = time.Time{}
		return state
	}

	if !stale(state.LastApplied, ev.Snapshot.Timestamp) {
		state.Progress = ev.Snapshot
		state.LastApplied = maxInt64(state.LastApplied, ev.Snapshot.Timestamp)
	}
	state.MissingSince = time.Time{}
	return state
}

// stale reports whether a snapshot timestamp falls behind the newest applied
// one by more than the skew tolerance. Zero timestamps are never stale.
func stale(lastApplied, ts int64) bool {
	if ts == 0 || lastApplied == 0 {
		return false
	}
	return ts < lastApplied-timestampSkewTolerance.Milliseconds()
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// shouldRender decides whether a state change is worth repainting for.
// Stage changes, batch transitions and any terminal or visibility flip
// render immediately; plain counter ticks are throttled.
func shouldRender(prev, next UploadState, lastRender, now time.Time) bool {
	if prev.IsUploading != next.IsUploading ||
		prev.Terminal != next.Terminal ||
		prev.SessionID != next.SessionID ||
		prev.Progress.Stage != next.Progress.Stage ||
		prev.Progress.BatchNumber != next.Progress.BatchNumber {
		return true
	}
	if prev.Progress == next.Progress {
		return false
	}
	return now.Sub(lastRender) >= minRenderInterval
}
