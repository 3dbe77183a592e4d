package reconcile

import (
	"sync"
	"time"

	"github.com/panicsense/panicsense-go/internal/models"
	"github.com/panicsense/panicsense-go/internal/tabsync"
)

// Reconciler owns a tab's UploadState. All channel callbacks funnel into
// Dispatch, which runs the pure reducer and then handles the side effects:
// persisting the cache, throttled re-rendering, relaying stream snapshots to
// sibling tabs, and clearing terminal state after the display delay.
type Reconciler struct {
	mu         sync.Mutex
	state      UploadState
	cache      Cache
	coord      *tabsync.Coordinator
	onRender   func(UploadState)
	lastRender time.Time
	clearTimer *time.Timer

	now func() time.Time
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithCoordinator makes the reconciler relay server-stream snapshots to
// sibling tabs. Remote snapshots are never relayed again.
func WithCoordinator(c *tabsync.Coordinator) Option {
	return func(r *Reconciler) { r.coord = c }
}

// WithClock overrides the time source. Tests use this.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// New creates a Reconciler. onRender is called with each state worth
// repainting; it must not call back into the reconciler.
func New(cache Cache, onRender func(UploadState), opts ...Option) *Reconciler {
	r := &Reconciler{
		cache:    cache,
		onRender: onRender,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns a copy of the current reconciled state.
func (r *Reconciler) State() UploadState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Bootstrap seeds state from the cache, before the first network answer.
func (r *Reconciler) Bootstrap() {
	if cached, ok := r.cache.Load(); ok {
		r.Dispatch(RestoreEvent{Cached: cached})
	}
}

// HandleStream applies a snapshot from this tab's own websocket stream and
// relays it to sibling tabs.
func (r *Reconciler) HandleStream(sessionID string, snap models.ProgressSnapshot) {
	r.Dispatch(SnapshotEvent{SessionID: sessionID, Snapshot: snap})

	if r.coord == nil {
		return
	}
	msg := tabsync.Message{
		SessionID: sessionID,
		Snapshot:  snap,
		Timestamp: snap.Timestamp,
	}
	if snap.IsTerminal() {
		r.coord.BroadcastComplete(msg)
	} else {
		r.coord.BroadcastProgress(msg)
	}
}

// ForceCancel marks the session canceled locally. The caller is expected to
// have already fired the server-side cancel request; this is the escape
// hatch for when that request cannot be confirmed.
func (r *Reconciler) ForceCancel() {
	r.Dispatch(CancelEvent{})
}

// Dispatch runs one event through the reducer and applies side effects.
func (r *Reconciler) Dispatch(ev Event) {
	r.mu.Lock()

	prev := r.state
	now := r.now()
	next := Reduce(prev, ev, now)
	r.state = next

	r.syncCacheLocked(prev, next, now)

	render := shouldRender(prev, next, r.lastRender, now)
	if render {
		r.lastRender = now
	}
	onRender := r.onRender
	r.mu.Unlock()

	if render && onRender != nil {
		onRender(next)
	}
}

// syncCacheLocked keeps the persisted cache in step with state transitions.
func (r *Reconciler) syncCacheLocked(prev, next UploadState, now time.Time) {
	switch {
	case next.IsUploading && !next.Terminal:
		if next.Progress != prev.Progress || next.SessionID != prev.SessionID {
			r.cache.Save(CachedSession{
				SessionID: next.SessionID,
				Snapshot:  next.Progress,
				UpdatedAt: now,
			})
		}

	case next.Terminal && !prev.Terminal:
		// Mark rather than clear, so a reload during the display window
		// does not resurrect the session as in-flight.
		r.cache.Save(CachedSession{
			SessionID: next.SessionID,
			Snapshot:  next.Progress,
			Completed: true,
			UpdatedAt: now,
		})
		r.scheduleClearLocked()

	case !next.IsUploading && prev.IsUploading:
		r.cache.Clear()
	}
}

func (r *Reconciler) scheduleClearLocked() {
	if r.clearTimer != nil {
		r.clearTimer.Stop()
	}
	r.clearTimer = time.AfterFunc(completionDisplayDelay, func() {
		r.Dispatch(displayElapsedEvent{})
	})
}

// ClearNow skips the display delay. Tests and the cleanup path use it.
func (r *Reconciler) ClearNow() {
	r.mu.Lock()
	if r.clearTimer != nil {
		r.clearTimer.Stop()
		r.clearTimer = nil
	}
	r.mu.Unlock()
	r.Dispatch(displayElapsedEvent{})
}

// tabsync.Receiver implementation.

func (r *Reconciler) CurrentSessionID() string {
	return r.State().SessionID
}

func (r *Reconciler) CurrentTotal() int {
	return r.State().Progress.Total
}

func (r *Reconciler) ApplyRemote(msg tabsync.Message) {
	r.Dispatch(SnapshotEvent{SessionID: msg.SessionID, Snapshot: msg.Snapshot})
}

func (r *Reconciler) Reset() {
	r.mu.Lock()
	if r.clearTimer != nil {
		r.clearTimer.Stop()
		r.clearTimer = nil
	}
	r.mu.Unlock()
	r.Dispatch(ResetEvent{})
	r.cache.Clear()
}
