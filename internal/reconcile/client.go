package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/panicsense/panicsense-go/internal/models"
)

const defaultPollInterval = 5 * time.Second

// Client polls the server's session endpoints and feeds the answers to the
// reconciler. It also carries the cancel request, so the force-cancel path
// can fire both the server-side flag and the local state change.
type Client struct {
	baseURL  string // http://host:port
	http     *http.Client
	rec      *Reconciler
	interval time.Duration
}

func NewClient(baseURL string, rec *Reconciler) *Client {
	return &Client{
		baseURL:  baseURL,
		http:     &http.Client{Timeout: 10 * time.Second},
		rec:      rec,
		interval: defaultPollInterval,
	}
}

// Run polls until ctx is done or the reconciler goes idle with no session.
func (c *Client) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			state := c.rec.State()
			if !state.IsUploading {
				continue
			}
			if err := c.Poll(ctx, state.SessionID); err != nil {
				// Network failures are not evidence the session is gone;
				// only an authoritative "not found" answer is.
				continue
			}
		}
	}
}

// Poll queries the active-session endpoint for sessionID and dispatches the
// result. An empty object answer means the store does not know the session.
func (c *Client) Poll(ctx context.Context, sessionID string) error {
	u := c.baseURL + "/api/active-upload-session"
	if sessionID != "" {
		u += "?sessionId=" + url.QueryEscape(sessionID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("active-session query returned %d", resp.StatusCode)
	}

	var body struct {
		SessionID string                  `json:"sessionId"`
		Status    models.SessionStatus    `json:"status"`
		Progress  models.ProgressSnapshot `json:"progress"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return err
	}

	c.rec.Dispatch(PollEvent{
		Found:     body.SessionID != "",
		SessionID: body.SessionID,
		Status:    body.Status,
		Snapshot:  body.Progress,
	})
	return nil
}

// Cancel requests cooperative cancellation server-side. When force is set,
// the local state flips to canceled immediately instead of waiting for the
// store to confirm.
func (c *Client) Cancel(ctx context.Context, sessionID string, force bool) error {
	payload, _ := json.Marshal(map[string]string{"sessionId": sessionID})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/upload/cancel", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err == nil {
		resp.Body.Close()
	}

	if force {
		c.rec.ForceCancel()
	}
	return err
}
