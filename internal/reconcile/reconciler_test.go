package reconcile

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panicsense/panicsense-go/internal/models"
)

type renderLog struct {
	mu     sync.Mutex
	states []UploadState
}

func (l *renderLog) record(s UploadState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, s)
}

func (l *renderLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.states)
}

func TestReconcilerPersistsProgressToCache(t *testing.T) {
	cache := NewMemoryCache()
	log := &renderLog{}
	r := New(cache, log.record)

	r.HandleStream("sess-1", snap(20, models.StatusActive, t0))

	cached, ok := cache.Load()
	require.True(t, ok)
	assert.Equal(t, "sess-1", cached.SessionID)
	assert.Equal(t, 20, cached.Snapshot.Processed)
	assert.False(t, cached.Completed)
	assert.Equal(t, 1, log.count())
}

func TestReconcilerMarksCacheCompletedOnTerminal(t *testing.T) {
	cache := NewMemoryCache()
	r := New(cache, nil)

	r.HandleStream("sess-1", snap(20, models.StatusActive, t0))
	r.HandleStream("sess-1", snap(100, models.StatusComplete, t0.Add(time.Second)))

	// During the display window the cache is marked completed, so a reload
	// does not resurrect the session as in-flight.
	cached, ok := cache.Load()
	require.True(t, ok)
	assert.True(t, cached.Completed)

	state := r.State()
	assert.True(t, state.Terminal)

	// Skipping the display delay clears both state and cache.
	r.ClearNow()
	assert.Equal(t, UploadState{}, r.State())
	_, ok = cache.Load()
	assert.False(t, ok)
}

func TestReconcilerBootstrapFromCache(t *testing.T) {
	cache := NewMemoryCache()
	cache.Save(CachedSession{
		SessionID: "sess-b",
		Snapshot:  snap(30, models.StatusActive, t0),
		UpdatedAt: t0,
	})

	r := New(cache, nil)
	r.Bootstrap()

	state := r.State()
	assert.True(t, state.IsUploading)
	assert.Equal(t, "sess-b", state.SessionID)
}

func TestReconcilerBootstrapIgnoresCompletedCache(t *testing.T) {
	cache := NewMemoryCache()
	cache.Save(CachedSession{
		SessionID: "sess-b",
		Snapshot:  snap(100, models.StatusComplete, t0),
		Completed: true,
		UpdatedAt: t0,
	})

	r := New(cache, nil)
	r.Bootstrap()

	assert.False(t, r.State().IsUploading)
}

func TestReconcilerRendersEveryBatchTransition(t *testing.T) {
	cache := NewMemoryCache()
	log := &renderLog{}
	r := New(cache, log.record)

	base := time.Now()
	for batch := 1; batch <= 5; batch++ {
		s := snap(batch*20, models.StatusActive, base.Add(time.Duration(batch)*time.Millisecond))
		s.BatchNumber = batch
		r.HandleStream("sess-r", s)
	}

	// Batch transitions must never be coalesced away, even arriving far
	// faster than the render throttle.
	assert.Equal(t, 5, log.count())
}

func TestReconcilerResetClearsEverything(t *testing.T) {
	cache := NewMemoryCache()
	r := New(cache, nil)

	r.HandleStream("sess-1", snap(20, models.StatusActive, t0))
	r.Reset()

	assert.Equal(t, UploadState{}, r.State())
	_, ok := cache.Load()
	assert.False(t, ok)
}

func TestReconcilerForceCancel(t *testing.T) {
	cache := NewMemoryCache()
	r := New(cache, nil)

	r.HandleStream("sess-1", snap(20, models.StatusActive, t0))
	r.ForceCancel()

	state := r.State()
	assert.True(t, state.Terminal)
	assert.Equal(t, models.StatusCanceled, state.Progress.Status)
}

func TestFileCacheRoundTrip(t *testing.T) {
	path := t.TempDir() + "/upload-session.json"
	cache := NewFileCache(path)

	_, ok := cache.Load()
	assert.False(t, ok)

	cache.Save(CachedSession{
		SessionID: "sess-f",
		Snapshot:  snap(10, models.StatusActive, t0),
		UpdatedAt: t0,
	})

	got, ok := cache.Load()
	require.True(t, ok)
	assert.Equal(t, "sess-f", got.SessionID)
	assert.Equal(t, 10, got.Snapshot.Processed)

	cache.Clear()
	_, ok = cache.Load()
	assert.False(t, ok)
}
