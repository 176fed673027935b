package classifier

import (
	"math"
	"testing"
)

func TestSoftmaxSumsToOne(t *testing.T) {
	probs := Softmax([]float32{1, 2, 3})
	var sum float32
	for _, p := range probs {
		sum += p
	}
	if math.Abs(float64(sum-1)) > 1e-5 {
		t.Errorf("sum = %v, want 1", sum)
	}
	if probs[2] <= probs[1] || probs[1] <= probs[0] {
		t.Errorf("expected monotonically increasing probabilities, got %v", probs)
	}
}

func TestArgMax(t *testing.T) {
	if got := ArgMax([]float32{0.1, 0.9, 0.3}); got != 1 {
		t.Errorf("ArgMax = %d, want 1", got)
	}
}

type fakeTokenizer struct{}

func (fakeTokenizer) EncodePair(premise, hypothesis string, maxLen int) ([]int64, []int64, []int64, error) {
	// Vary length by hypothesis so padToLongest has something to do.
	n := len(hypothesis) % 5 + 3
	ids := make([]int64, n)
	mask := make([]int64, n)
	types := make([]int64, n)
	for i := range ids {
		ids[i] = int64(i + 1)
		mask[i] = 1
	}
	return ids, mask, types, nil
}

type fakeSession struct {
	logits [][]float32
}

func (f fakeSession) Run(ids, mask, typeIDs [][]int64) ([][]float32, error) {
	return f.logits, nil
}

func TestClassifyPicksHighestEntailmentLabel(t *testing.T) {
	session := fakeSession{logits: [][]float32{
		{0.1, 0.2, 0.3}, // pain point: entailment(idx2)=0.3
		{0.1, 0.2, 5.0}, // idea: entailment(idx2)=5.0
	}}
	result, err := Classify(session, fakeTokenizer{}, "I have an idea to build X", []string{"pain point", "idea"}, "This example is %s.", 512, 2)
	if err != nil {
		t.Fatal(err)
	}
	if result.Label != "idea" {
		t.Errorf("label = %q, want idea", result.Label)
	}
	if result.Score <= 0.5 {
		t.Errorf("score = %v, want > 0.5", result.Score)
	}
}

func TestClassifyReplacesSpacesWithUnderscores(t *testing.T) {
	session := fakeSession{logits: [][]float32{{0, 0, 9.0}}}
	result, err := Classify(session, fakeTokenizer{}, "text", []string{"pain point"}, "This example is %s.", 512, 2)
	if err != nil {
		t.Fatal(err)
	}
	if result.Label != "pain_point" {
		t.Errorf("label = %q, want pain_point", result.Label)
	}
}

func TestPadToLongestPadsShorterRows(t *testing.T) {
	batch := [][]int64{{1, 2}, {1, 2, 3, 4}}
	padToLongest(batch)
	if len(batch[0]) != 4 {
		t.Errorf("padded length = %d, want 4", len(batch[0]))
	}
	if batch[0][2] != 0 || batch[0][3] != 0 {
		t.Errorf("expected zero padding, got %v", batch[0])
	}
}
