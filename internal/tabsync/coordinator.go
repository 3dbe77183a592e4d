package tabsync

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// minBroadcastInterval rate-limits non-terminal progress broadcasts per
// sender to prevent storms. Terminal and cleanup broadcasts always go
// through: important transitions must never be swallowed.
const minBroadcastInterval = 500 * time.Millisecond

// Receiver is the tab-local consumer of validated cross-tab messages.
// The reconciler implements it.
type Receiver interface {
	// CurrentSessionID returns the session this tab considers active, or "".
	CurrentSessionID() string
	// CurrentTotal returns the row total this tab has observed, or 0.
	CurrentTotal() int
	// ApplyRemote applies a validated progress or completion message.
	ApplyRemote(Message)
	// Reset clears all local upload state unconditionally.
	Reset()
}

// Coordinator publishes this tab's state changes and routes validated
// incoming broadcasts to the receiver.
type Coordinator struct {
	bus      Bus
	senderID string

	mu       sync.Mutex
	lastSent time.Time

	now func() time.Time
}

// NewCoordinator creates a coordinator with a fresh sender id.
func NewCoordinator(bus Bus) *Coordinator {
	return &Coordinator{
		bus:      bus,
		senderID: uuid.New().String(),
		now:      time.Now,
	}
}

// SenderID returns this tab's broadcast identity.
func (c *Coordinator) SenderID() string { return c.senderID }

// BroadcastProgress publishes a non-terminal snapshot, subject to the rate
// limit.
func (c *Coordinator) BroadcastProgress(msg Message) {
	c.mu.Lock()
	now := c.now()
	if now.Sub(c.lastSent) < minBroadcastInterval {
		c.mu.Unlock()
		return
	}
	c.lastSent = now
	c.mu.Unlock()

	msg.Type = TypeProgress
	c.send(msg)
}

// BroadcastComplete publishes a terminal snapshot. Never rate-limited.
func (c *Coordinator) BroadcastComplete(msg Message) {
	msg.Type = TypeComplete
	c.send(msg)
}

// BroadcastCleanup orders every tab to clear its upload cache.
func (c *Coordinator) BroadcastCleanup() {
	c.send(Message{Type: TypeCleanup})
}

func (c *Coordinator) send(msg Message) {
	msg.SenderID = c.senderID
	if msg.Timestamp == 0 {
		msg.Timestamp = c.now().UnixMilli()
	}
	c.bus.Publish(msg)
}

// Start subscribes the receiver to the bus and returns an unsubscribe
// function. Incoming messages are validated before they reach the receiver:
//   - the tab's own echoes are dropped;
//   - cleanup is applied unconditionally;
//   - progress and completion are honored only when the receiver can
//     corroborate the session: a "complete" for a session this tab never
//     saw, or with mismatched totals, is rejected.
func (c *Coordinator) Start(rcv Receiver) func() {
	return c.bus.Subscribe(func(msg Message) {
		if msg.SenderID == c.senderID {
			return
		}

		switch msg.Type {
		case TypeCleanup:
			rcv.Reset()

		case TypeProgress, TypeComplete:
			local := rcv.CurrentSessionID()
			if local == "" || msg.SessionID != local {
				return
			}
			if total := rcv.CurrentTotal(); total > 0 && msg.Snapshot.Total > 0 && msg.Snapshot.Total != total {
				return
			}
			rcv.ApplyRemote(msg)
		}
	})
}
