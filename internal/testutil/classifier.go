// Classifier stubs for pipeline and handler tests.

package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/panicsense/panicsense-go/internal/classifier"
)

// StubClassifier returns a fixed classification for every text. It counts
// calls so tests can assert how many rows actually hit the backend.
type StubClassifier struct {
	Calls int64

	// Sentiment overrides the returned label when set.
	Sentiment string
	// FailOn makes texts containing this substring fail, to exercise
	// row-level error handling. Empty means never fail.
	FailOn string
}

func (c *StubClassifier) Classify(ctx context.Context, text string) (*classifier.Result, error) {
	atomic.AddInt64(&c.Calls, 1)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.FailOn != "" && strings.Contains(text, c.FailOn) {
		return nil, fmt.Errorf("classifier backend rejected text")
	}

	sentiment := c.Sentiment
	if sentiment == "" {
		sentiment = classifier.SentimentNeutral
	}
	return &classifier.Result{
		Sentiment:  sentiment,
		Confidence: 0.9,
	}, nil
}

// CallCount returns how many times Classify ran.
func (c *StubClassifier) CallCount() int64 {
	return atomic.LoadInt64(&c.Calls)
}

// EchoClassifier labels each text with whatever sentiment name appears in
// it, defaulting to Neutral. Evaluation-metric tests use it to build exact
// confusion matrices from crafted rows.
type EchoClassifier struct{}

func (EchoClassifier) Classify(ctx context.Context, text string) (*classifier.Result, error) {
	for _, label := range classifier.Labels {
		if strings.Contains(text, label) {
			return &classifier.Result{Sentiment: label, Confidence: 1}, nil
		}
	}
	return &classifier.Result{Sentiment: classifier.SentimentNeutral, Confidence: 1}, nil
}
