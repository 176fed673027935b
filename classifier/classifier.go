// Package classifier implements the zero-shot NLI classification core:
// pair tokenization with longest-first truncation and batch padding, a
// three-tensor ONNX session run, and entailment-column softmax+argmax
// label selection. Model execution goes through onnxruntime_go,
// tokenization through sugarme/tokenizer, both kept behind narrow
// interfaces so tests can fake them.
package classifier

import (
	"fmt"
	"math"
	"strings"

	"github.com/oniz93/business-finder/errkind"
)

// Tokenizer encodes a (premise, hypothesis) pair into the three parallel
// id sequences an NLI model expects, truncated to maxLen with
// longest-first truncation (shrinking whichever of premise/hypothesis is
// currently longer, one token at a time, until the pair fits).
type Tokenizer interface {
	EncodePair(premise, hypothesis string, maxLen int) (ids, attentionMask, typeIDs []int64, err error)
}

// Session runs a batch of [N, L] token/mask/type tensors through an NLI
// model and returns [N, C] logits.
type Session interface {
	Run(ids, attentionMask, typeIDs [][]int64) (logits [][]float32, err error)
}

// Result is one classified row's label and score.
type Result struct {
	Label string
	Score float32
}

// Classify builds one (premise, hypothesis) pair per candidate label,
// runs them as a single batch, and selects the label whose entailment
// logit wins the softmax-then-argmax across the batch.
func Classify(session Session, tok Tokenizer, text string, labels []string, hypothesisTemplate string, maxLen, entailmentIndex int) (Result, error) {
	if len(labels) == 0 {
		return Result{}, fmt.Errorf("%w: no candidate labels", errkind.ErrInference)
	}

	idsBatch := make([][]int64, len(labels))
	maskBatch := make([][]int64, len(labels))
	typeBatch := make([][]int64, len(labels))
	for i, label := range labels {
		hypothesis := fmt.Sprintf(hypothesisTemplate, label)
		ids, mask, typeIDs, err := tok.EncodePair(text, hypothesis, maxLen)
		if err != nil {
			return Result{}, fmt.Errorf("%w: tokenize pair for label %q: %v", errkind.ErrInference, label, err)
		}
		idsBatch[i], maskBatch[i], typeBatch[i] = ids, mask, typeIDs
	}

	padToLongest(idsBatch)
	padToLongest(maskBatch)
	padToLongest(typeBatch)

	logits, err := session.Run(idsBatch, maskBatch, typeBatch)
	if err != nil {
		return Result{}, fmt.Errorf("%w: run session: %v", errkind.ErrInference, err)
	}
	if len(logits) != len(labels) {
		return Result{}, fmt.Errorf("%w: expected %d rows of logits, got %d", errkind.ErrInference, len(labels), len(logits))
	}

	entailmentScores := make([]float32, len(labels))
	for i, row := range logits {
		if entailmentIndex < 0 || entailmentIndex >= len(row) {
			return Result{}, fmt.Errorf("%w: entailment index %d out of range for %d logits", errkind.ErrInference, entailmentIndex, len(row))
		}
		entailmentScores[i] = row[entailmentIndex]
	}

	probs := Softmax(entailmentScores)
	best := ArgMax(probs)

	return Result{
		Label: strings.ReplaceAll(labels[best], " ", "_"),
		Score: probs[best],
	}, nil
}

// padToLongest right-pads every row in batch with 0 up to the length
// of the longest row.
func padToLongest(batch [][]int64) {
	longest := 0
	for _, row := range batch {
		if len(row) > longest {
			longest = len(row)
		}
	}
	for i, row := range batch {
		if len(row) < longest {
			padded := make([]int64, longest)
			copy(padded, row)
			batch[i] = padded
		}
	}
}

// Softmax computes the softmax of logits. Numerically stable via max
// subtraction.
func Softmax(logits []float32) []float32 {
	if len(logits) == 0 {
		return nil
	}
	maxVal := logits[0]
	for _, v := range logits[1:] {
		if v > maxVal {
			maxVal = v
		}
	}
	exps := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		e := math.Exp(float64(v - maxVal))
		exps[i] = e
		sum += e
	}
	out := make([]float32, len(logits))
	for i, e := range exps {
		out[i] = float32(e / sum)
	}
	return out
}

// ArgMax returns the index of the largest value; ties favor the first.
func ArgMax(values []float32) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}
