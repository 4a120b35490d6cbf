package classifier

import (
	"math"
	"testing"
)

func TestBestPicksArgmax(t *testing.T) {
	r := Best([]float32{0.1, 2.0, -1.0})
	if r.Label != 1 {
		t.Fatalf("Label = %d, want 1", r.Label)
	}
	// softmax(2.0) over {0.1, 2.0, -1.0}
	want := 1 / (math.Exp(0.1-2.0) + 1 + math.Exp(-1.0-2.0))
	if math.Abs(float64(r.Confidence)-want) > 1e-6 {
		t.Errorf("Confidence = %f, want %f", r.Confidence, want)
	}
}

func TestBestUniform(t *testing.T) {
	r := Best([]float32{3, 3, 3, 3})
	if r.Label != 0 {
		t.Errorf("tie should resolve to lowest id, got %d", r.Label)
	}
	if math.Abs(float64(r.Confidence)-0.25) > 1e-6 {
		t.Errorf("Confidence = %f, want 0.25", r.Confidence)
	}
}

func TestBestLargeLogitsStayBounded(t *testing.T) {
	r := Best([]float32{1000, -1000, 999})
	if r.Label != 0 {
		t.Fatalf("Label = %d, want 0", r.Label)
	}
	if r.Confidence < 0 || r.Confidence > 1 || math.IsNaN(float64(r.Confidence)) {
		t.Fatalf("Confidence %f out of [0,1]", r.Confidence)
	}
}

func TestBestEmpty(t *testing.T) {
	if r := Best(nil); r.Label != -1 {
		t.Errorf("Best(nil).Label = %d, want -1", r.Label)
	}
}

func TestClassify(t *testing.T) {
	logits := []float32{
		5, 0, 0, // position 0 -> 0
		0, 0, 5, // position 1 -> 2
	}
	labels := make([]int, 2)
	confs := make([]float32, 2)
	if err := Classify(logits, 3, labels, confs); err != nil {
		t.Fatalf("Classify() error: %v", err)
	}
	if labels[0] != 0 || labels[1] != 2 {
		t.Errorf("labels = %v, want [0 2]", labels)
	}
	for i, c := range confs {
		if c <= 0.9 || c > 1 {
			t.Errorf("confs[%d] = %f, want high confidence", i, c)
		}
	}
}

func TestClassifyShapeMismatch(t *testing.T) {
	if err := Classify(make([]float32, 5), 3, make([]int, 2), make([]float32, 2)); err == nil {
		t.Error("expected error for logits/positions mismatch")
	}
	if err := Classify(make([]float32, 6), 3, make([]int, 2), make([]float32, 1)); err == nil {
		t.Error("expected error for label/confidence slot mismatch")
	}
	if err := Classify(nil, 0, nil, nil); err == nil {
		t.Error("expected error for zero labels")
	}
}
