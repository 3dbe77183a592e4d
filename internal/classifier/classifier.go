// The classifier is an external collaborator: given one text row it returns
// a sentiment/disaster classification. It may be slow and may fail
// transiently; callers treat a failed call as a row-level failure, never as
// a batch abort.

package classifier

import "context"

// Sentiment labels recognized by the system.
const (
	SentimentPanic      = "Panic"
	SentimentFear       = "Fear/Anxiety"
	SentimentDisbelief  = "Disbelief"
	SentimentResilience = "Resilience"
	SentimentNeutral    = "Neutral"
)

// Labels lists every sentiment class, in display order.
var Labels = []string{
	SentimentPanic, SentimentFear, SentimentDisbelief, SentimentResilience, SentimentNeutral,
}

// Result is the classification of a single text.
type Result struct {
	Sentiment    string  `json:"sentiment"`
	Confidence   float64 `json:"confidence"`
	DisasterType string  `json:"disasterType,omitempty"`
	Location     string  `json:"location,omitempty"`
	Explanation  string  `json:"explanation,omitempty"`
	Language     string  `json:"language,omitempty"`
}

// Classifier is the contract every classification backend implements.
type Classifier interface {
	Classify(ctx context.Context, text string) (*Result, error)
}
