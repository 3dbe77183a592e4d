package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceClientClassify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req analyzeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "lindol sa Davao", req.Text)

		json.NewEncoder(w).Encode(Result{
			Sentiment:    SentimentPanic,
			Confidence:   0.93,
			DisasterType: "Earthquake",
			Location:     "Davao",
		})
	}))
	defer srv.Close()

	c := NewServiceClient(srv.URL, 5*time.Second)
	result, err := c.Classify(context.Background(), "lindol sa Davao")
	require.NoError(t, err)
	assert.Equal(t, SentimentPanic, result.Sentiment)
	assert.Equal(t, 0.93, result.Confidence)
	assert.Equal(t, "Earthquake", result.DisasterType)
}

func TestServiceClientNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewServiceClient(srv.URL, 5*time.Second)
	_, err := c.Classify(context.Background(), "text")
	assert.Error(t, err)
}

func TestServiceClientMissingSentiment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"confidence": 0.5}`))
	}))
	defer srv.Close()

	c := NewServiceClient(srv.URL, 5*time.Second)
	_, err := c.Classify(context.Background(), "text")
	assert.Error(t, err)
}

func TestServiceClientContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := NewServiceClient(srv.URL, 5*time.Second)
	_, err := c.Classify(ctx, "text")
	assert.Error(t, err)
}
