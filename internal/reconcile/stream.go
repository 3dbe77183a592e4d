package reconcile

import (
	"context"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/panicsense/panicsense-go/internal/models"
)

const (
	streamBackoffMin = time.Second
	streamBackoffMax = 30 * time.Second
)

// StreamConsumer keeps a websocket subscription to a session's progress
// stream alive, redialing with backoff until the session reaches a terminal
// state or the context ends. A dropped stream is only a hint that something
// changed; the poller confirms against the store.
type StreamConsumer struct {
	baseURL string // ws://host:port
	rec     *Reconciler
	dialer  *websocket.Dialer
}

func NewStreamConsumer(baseURL string, rec *Reconciler) *StreamConsumer {
	return &StreamConsumer{
		baseURL: baseURL,
		rec:     rec,
		dialer:  websocket.DefaultDialer,
	}
}

// Run consumes the stream for sessionID until terminal or ctx done.
func (c *StreamConsumer) Run(ctx context.Context, sessionID string) error {
	backoff := streamBackoffMin

	for {
		if err := c.consumeOnce(ctx, sessionID); err == nil {
			return nil
		}
		if c.rec.State().Terminal {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > streamBackoffMax {
			backoff = streamBackoffMax
		}
	}
}

// consumeOnce dials and reads until the connection drops. A nil return
// means a terminal snapshot arrived and the subscription is finished.
func (c *StreamConsumer) consumeOnce(ctx context.Context, sessionID string) error {
	u := c.baseURL + "/ws/progress?sessionId=" + url.QueryEscape(sessionID)

	conn, _, err := c.dialer.DialContext(ctx, u, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var snap models.ProgressSnapshot
		if err := conn.ReadJSON(&snap); err != nil {
			return err
		}
		c.rec.HandleStream(sessionID, snap)
		if snap.IsTerminal() {
			return nil
		}
	}
}
