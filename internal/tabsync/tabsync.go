// Cross-tab coordination: propagating upload state between same-origin tabs
// without each tab independently hammering the server. Messages carry a
// sender id so receivers can drop their own echoes, and receivers validate
// provenance before honoring anything that would change their UI.

package tabsync

import (
	"sync"

	"github.com/panicsense/panicsense-go/internal/models"
)

// MessageType tags a cross-tab broadcast.
type MessageType string

const (
	// TypeProgress carries a non-terminal progress snapshot.
	TypeProgress MessageType = "upload_progress"
	// TypeComplete announces a terminal snapshot (complete/error/canceled).
	TypeComplete MessageType = "upload_complete"
	// TypeCleanup orders every tab to clear its local upload cache
	// unconditionally (user-triggered full reset).
	TypeCleanup MessageType = "upload_cleanup"
)

// Message is one cross-tab broadcast.
type Message struct {
	Type      MessageType             `json:"type"`
	SessionID string                  `json:"sessionId,omitempty"`
	Snapshot  models.ProgressSnapshot `json:"payload"`
	Timestamp int64                   `json:"timestamp"`
	SenderID  string                  `json:"senderId"`
}

// Bus is the transport between tabs. In the browser this is a
// BroadcastChannel; in tests and embedded deployments it is the in-process
// implementation below.
type Bus interface {
	Publish(Message)
	Subscribe(handler func(Message)) (unsubscribe func())
}

// InProcBus is a synchronous in-process Bus. Every published message is
// delivered to every subscriber, including the publisher's own handler —
// the coordinator's sender-id check handles self-echo, exactly as it must
// for a real broadcast channel.
type InProcBus struct {
	mu       sync.Mutex
	nextID   int
	handlers map[int]func(Message)
}

func NewInProcBus() *InProcBus {
	return &InProcBus{handlers: make(map[int]func(Message))}
}

func (b *InProcBus) Publish(msg Message) {
	b.mu.Lock()
	handlers := make([]func(Message), 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(msg)
	}
}

func (b *InProcBus) Subscribe(handler func(Message)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = handler
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}
}
