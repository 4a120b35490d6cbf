// Package classifier turns token-classification logits into a label id and
// a softmax confidence per token position.
package classifier

import (
	"fmt"
	"math"
)

// Result is the best label for one token position.
type Result struct {
	Label      int
	Confidence float32 // softmax probability of Label, in [0,1]
}

// Best returns the argmax of one position's logits together with its softmax
// probability. Ties go to the lowest label id. An empty row yields label -1.
func Best(logits []float32) Result {
	if len(logits) == 0 {
		return Result{Label: -1}
	}

	best := 0
	for i, v := range logits {
		if v > logits[best] {
			best = i
		}
	}

	// Shift by the max logit so exp never overflows.
	maxLogit := float64(logits[best])
	var sum float64
	for _, v := range logits {
		sum += math.Exp(float64(v) - maxLogit)
	}
	return Result{Label: best, Confidence: float32(1 / sum)}
}

// Classify applies Best to every position of a flat [positions × numLabels]
// logits tensor and writes the results into labels and confidences, which
// must each have length positions.
func Classify(logits []float32, numLabels int, labels []int, confidences []float32) error {
	if numLabels <= 0 {
		return fmt.Errorf("classifier: numLabels must be positive, got %d", numLabels)
	}
	positions := len(labels)
	if len(confidences) != positions {
		return fmt.Errorf("classifier: %d label slots but %d confidence slots", positions, len(confidences))
	}
	if len(logits) != positions*numLabels {
		return fmt.Errorf("classifier: %d logits for %d positions × %d labels", len(logits), positions, numLabels)
	}
	for p := 0; p < positions; p++ {
		r := Best(logits[p*numLabels : (p+1)*numLabels])
		labels[p] = r.Label
		confidences[p] = r.Confidence
	}
	return nil
}
