// Keyword-based fallback classifier, used when the external ML service is
// disabled or unreachable. Scores are keyword matches weighted by class;
// it is intentionally simple and deterministic.

package classifier

import (
	"context"
	"strings"
)

var sentimentKeywords = map[string][]string{
	SentimentPanic: {
		"help!", "tulong", "saklolo", "rescue us", "we are trapped", "naiipit",
		"hindi kami makalabas", "emergency", "send help", "mamamatay",
	},
	SentimentFear: {
		"scared", "takot", "natatakot", "worried", "kinakabahan", "afraid",
		"nakakatakot", "anxious", "praying", "sana ok",
	},
	SentimentDisbelief: {
		"unbelievable", "hindi ako makapaniwala", "grabe", "seriously",
		"can't believe", "di ko akalain", "talaga?", "sobrang bilis",
	},
	SentimentResilience: {
		"we will recover", "babangon", "kapit lang", "stay strong", "tulungan natin",
		"volunteers", "donations", "relief", "bayanihan", "malalampasan",
	},
}

var disasterKeywords = map[string][]string{
	"Earthquake":        {"earthquake", "lindol", "magnitude", "aftershock", "tremor", "yanig"},
	"Flood":             {"flood", "baha", "bumabaha", "flash flood", "tubig", "binaha"},
	"Typhoon":           {"typhoon", "bagyo", "storm surge", "signal no", "habagat", "landfall"},
	"Fire":              {"fire", "sunog", "nasusunog", "burning", "apoy"},
	"Volcanic Eruption": {"eruption", "volcano", "bulkan", "ashfall", "lava", "phreatic"},
	"Landslide":         {"landslide", "guho", "pagguho", "mudslide", "rockslide"},
}

// A small gazetteer of frequently mentioned Philippine locations. The
// external service does proper extraction; this fallback only needs to be
// roughly right for the map view.
var knownLocations = []string{
	"Manila", "Quezon City", "Cebu", "Davao", "Batangas", "Albay", "Bicol",
	"Leyte", "Tacloban", "Marikina", "Cagayan", "Pampanga", "Baguio",
	"Zambales", "Mindanao", "Luzon", "Visayas", "Taal", "Mayon",
}

// KeywordClassifier is a local, deterministic classifier.
type KeywordClassifier struct{}

// NewKeywordClassifier returns the fallback classifier.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

// Classify scores the text against the keyword tables. It never fails.
func (k *KeywordClassifier) Classify(_ context.Context, text string) (*Result, error) {
	lower := strings.ToLower(text)

	sentiment := SentimentNeutral
	bestScore := 0
	for label, keywords := range sentimentKeywords {
		score := 0
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				score += 2
			}
		}
		if score > bestScore {
			bestScore = score
			sentiment = label
		}
	}

	// All-caps shouting with exclamation marks reads as panic even without a
	// keyword hit.
	if sentiment == SentimentNeutral && strings.Count(text, "!") >= 2 &&
		text == strings.ToUpper(text) && strings.ToUpper(text) != strings.ToLower(text) {
		sentiment = SentimentPanic
		bestScore = 2
	}

	confidence := 0.55
	if bestScore >= 4 {
		confidence = 0.8
	} else if bestScore >= 2 {
		confidence = 0.7
	}

	return &Result{
		Sentiment:    sentiment,
		Confidence:   confidence,
		DisasterType: detectDisasterType(lower),
		Location:     detectLocation(text),
		Explanation:  "Keyword-based classification (ML service disabled)",
	}, nil
}

func detectDisasterType(lower string) string {
	best := ""
	bestScore := 0
	for disaster, keywords := range disasterKeywords {
		score := 0
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = disaster
		}
	}
	return best
}

func detectLocation(text string) string {
	lower := strings.ToLower(text)
	for _, loc := range knownLocations {
		if strings.Contains(lower, strings.ToLower(loc)) {
			return loc
		}
	}
	return ""
}
