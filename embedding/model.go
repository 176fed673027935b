package embedding

import (
	"fmt"
	"math"

	"github.com/oniz93/business-finder/errkind"
)

// Tokenizer encodes a single text sequence into the three parallel id
// sequences an embedding model expects, truncated/padded to maxLen.
type Tokenizer interface {
	Encode(text string, maxLen int) (ids, attentionMask, typeIDs []int64, err error)
}

// Session runs a batch of [N, L] token/mask/type tensors through a
// sentence-transformer model and returns the [N, L, D] last hidden
// state, one D-dimensional vector per input token position.
type Session interface {
	Run(ids, attentionMask, typeIDs [][]int64) (hidden [][][]float32, err error)
}

// EmbedBatch tokenizes texts, runs them through session in a single
// batch padded to the longest member, and returns one embedding vector
// per input text: mean-pooled over non-padding token positions, then
// L2-normalized.
func EmbedBatch(session Session, tok Tokenizer, texts []string, maxLen int) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	idsBatch := make([][]int64, len(texts))
	maskBatch := make([][]int64, len(texts))
	typeBatch := make([][]int64, len(texts))
	for i, text := range texts {
		ids, mask, typeIDs, err := tok.Encode(text, maxLen)
		if err != nil {
			return nil, fmt.Errorf("%w: tokenize text %d: %v", errkind.ErrInference, i, err)
		}
		idsBatch[i], maskBatch[i], typeBatch[i] = ids, mask, typeIDs
	}

	padToLongest(idsBatch)
	padToLongest(maskBatch)
	padToLongest(typeBatch)

	hidden, err := session.Run(idsBatch, maskBatch, typeBatch)
	if err != nil {
		return nil, fmt.Errorf("%w: run session: %v", errkind.ErrInference, err)
	}
	if len(hidden) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d rows of hidden states, got %d", errkind.ErrInference, len(texts), len(hidden))
	}

	out := make([][]float32, len(texts))
	for i, seq := range hidden {
		out[i] = meanPoolNormalize(seq, maskBatch[i])
	}
	return out, nil
}

// padToLongest right-pads every row in batch with 0 up to the length of
// the longest row, the same batch-longest padding classifier.Classify
// applies.
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

// meanPoolNormalize averages seq's per-token vectors over the positions
// where mask is 1, then L2-normalizes the result. Returns a zero vector
// if mask has no set positions or seq is empty.
func meanPoolNormalize(seq [][]float32, mask []int64) []float32 {
	if len(seq) == 0 {
		return nil
	}
	dim := len(seq[0])
	sum := make([]float64, dim)
	var count float64
	for i, vec := range seq {
		if i < len(mask) && mask[i] == 0 {
			continue
		}
		for d, v := range vec {
			sum[d] += float64(v)
		}
		count++
	}
	if count == 0 {
		count = 1
	}

	pooled := make([]float32, dim)
	var normSq float64
	for d := range sum {
		v := sum[d] / count
		pooled[d] = float32(v)
		normSq += v * v
	}

	norm := math.Sqrt(normSq)
	if norm == 0 {
		return pooled
	}
	for d := range pooled {
		pooled[d] = float32(float64(pooled[d]) / norm)
	}
	return pooled
}
