// Evaluation metrics from a confusion accumulation. Only rows that carried a
// ground-truth label contribute.

package ingest

import (
	"sort"

	"github.com/panicsense/panicsense-go/internal/models"
)

// confusion accumulates true-label -> predicted-label counts.
type confusion struct {
	counts map[string]map[string]int
	total  int
}

func newConfusion() *confusion {
	return &confusion{counts: make(map[string]map[string]int)}
}

func (c *confusion) add(trueLabel, predicted string) {
	if trueLabel == "" {
		return
	}
	row, ok := c.counts[trueLabel]
	if !ok {
		row = make(map[string]int)
		c.counts[trueLabel] = row
	}
	row[predicted]++
	c.total++
}

// compute derives accuracy plus macro-averaged precision/recall/F1 over the
// labels that appeared in the data. Returns nil when no row had a ground
// truth label.
func (c *confusion) compute() *models.EvalMetrics {
	if c.total == 0 {
		return nil
	}

	labelSet := make(map[string]bool)
	for trueLabel, row := range c.counts {
		labelSet[trueLabel] = true
		for predicted := range row {
			labelSet[predicted] = true
		}
	}
	labels := make([]string, 0, len(labelSet))
	for label := range labelSet {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	correct := 0
	var perClass []models.ClassMetrics
	var precisionSum, recallSum, f1Sum float64

	for _, label := range labels {
		tp := c.counts[label][label]
		correct += tp

		fn := 0
		for predicted, n := range c.counts[label] {
			if predicted != label {
				fn += n
			}
		}
		fp := 0
		for trueLabel, row := range c.counts {
			if trueLabel != label {
				fp += row[label]
			}
		}

		precision := safeDiv(float64(tp), float64(tp+fp))
		recall := safeDiv(float64(tp), float64(tp+fn))
		f1 := 0.0
		if precision+recall > 0 {
			f1 = 2 * precision * recall / (precision + recall)
		}

		perClass = append(perClass, models.ClassMetrics{
			Label:     label,
			Precision: round3(precision),
			Recall:    round3(recall),
			F1Score:   round3(f1),
			Support:   tp + fn,
		})
		precisionSum += precision
		recallSum += recall
		f1Sum += f1
	}

	n := float64(len(labels))
	return &models.EvalMetrics{
		Accuracy:  round3(float64(correct) / float64(c.total)),
		Precision: round3(precisionSum / n),
		Recall:    round3(recallSum / n),
		F1Score:   round3(f1Sum / n),
		PerClass:  perClass,
	}
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

func round3(v float64) float64 {
	return float64(int(v*1000+0.5)) / 1000
}
