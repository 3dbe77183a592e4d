package reconcile

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panicsense/panicsense-go/internal/models"
)

func TestClientPollDispatchesResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/active-upload-session", r.URL.Path)
		assert.Equal(t, "sess-1", r.URL.Query().Get("sessionId"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"sessionId": "sess-1",
			"status":    models.StatusActive,
			"progress":  snap(60, models.StatusActive, t0.Add(time.Minute)),
		})
	}))
	defer srv.Close()

	rec := New(NewMemoryCache(), nil)
	rec.HandleStream("sess-1", snap(20, models.StatusActive, t0))

	c := NewClient(srv.URL, rec)
	require.NoError(t, c.Poll(context.Background(), "sess-1"))

	state := rec.State()
	assert.Equal(t, 60, state.Progress.Processed)
}

func TestClientPollEmptyAnswerIsDenial(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	rec := New(NewMemoryCache(), nil)
	rec.HandleStream("sess-1", snap(20, models.StatusActive, t0))

	c := NewClient(srv.URL, rec)
	require.NoError(t, c.Poll(context.Background(), "sess-1"))

	// First denial keeps the optimistic view, inside the restart grace.
	state := rec.State()
	assert.True(t, state.IsUploading)
	assert.False(t, state.MissingSince.IsZero())
}

func TestClientPollSurfacesTerminalOutcome(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"sessionId": "sess-1",
			"status":    models.StatusComplete,
			"progress":  snap(100, models.StatusComplete, t0.Add(time.Minute)),
		})
	}))
	defer srv.Close()

	rec := New(NewMemoryCache(), nil)
	rec.HandleStream("sess-1", snap(80, models.StatusActive, t0))

	c := NewClient(srv.URL, rec)
	require.NoError(t, c.Poll(context.Background(), "sess-1"))

	state := rec.State()
	assert.True(t, state.Terminal)
	assert.Equal(t, models.StatusComplete, state.Progress.Status)
}

func TestClientCancel(t *testing.T) {
	var gotSession string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/upload/cancel", r.URL.Path)
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		gotSession = body["sessionId"]
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	rec := New(NewMemoryCache(), nil)
	rec.HandleStream("sess-1", snap(20, models.StatusActive, t0))

	c := NewClient(srv.URL, rec)
	require.NoError(t, c.Cancel(context.Background(), "sess-1", false))
	assert.Equal(t, "sess-1", gotSession)
	assert.False(t, rec.State().Terminal, "non-forced cancel waits for the store")

	// Forced cancel flips local state even before the store confirms.
	require.NoError(t, c.Cancel(context.Background(), "sess-1", true))
	assert.True(t, rec.State().Terminal)
	assert.Equal(t, models.StatusCanceled, rec.State().Progress.Status)
}
