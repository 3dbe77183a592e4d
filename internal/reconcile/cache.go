package reconcile

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/panicsense/panicsense-go/internal/models"
)

// CachedSession is what survives a reload: enough to resume showing
// progress optimistically while the network channels come back.
type CachedSession struct {
	SessionID string                  `json:"sessionId"`
	Snapshot  models.ProgressSnapshot `json:"progress"`
	Completed bool                    `json:"completed"`
	UpdatedAt time.Time               `json:"updatedAt"`
}

// Cache persists the in-flight session across client restarts. The browser
// build backs this with localStorage; here it is memory or a JSON file.
type Cache interface {
	Load() (CachedSession, bool)
	Save(CachedSession)
	Clear()
}

// MemoryCache is the in-process Cache used by tests and short-lived attaches.
type MemoryCache struct {
	mu  sync.Mutex
	val CachedSession
	ok  bool
}

func NewMemoryCache() *MemoryCache { return &MemoryCache{} }

func (c *MemoryCache) Load() (CachedSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.val, c.ok
}

func (c *MemoryCache) Save(s CachedSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.val = s
	c.ok = true
}

func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.val = CachedSession{}
	c.ok = false
}

// FileCache persists the session to a JSON file, so a CLI attach can resume
// after its process restarts. Corrupt or unreadable files read as empty.
type FileCache struct {
	mu   sync.Mutex
	path string
}

func NewFileCache(path string) *FileCache { return &FileCache{path: path} }

func (c *FileCache) Load() (CachedSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	if err != nil {
		return CachedSession{}, false
	}
	var s CachedSession
	if err := json.Unmarshal(data, &s); err != nil || s.SessionID == "" {
		return CachedSession{}, false
	}
	return s, true
}

func (c *FileCache) Save(s CachedSession) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(s)
	if err != nil {
		return
	}
	_ = os.WriteFile(c.path, data, 0644)
}

func (c *FileCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = os.Remove(c.path)
}
