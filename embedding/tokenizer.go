package embedding

import (
	"fmt"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"

	"github.com/oniz93/business-finder/errkind"
)

// SugarmeTokenizer wraps a sugarme/tokenizer pretrained tokenizer for
// single-sequence encoding (no hypothesis pairing, unlike
// classifier.SugarmeTokenizer's NLI pairs).
type SugarmeTokenizer struct {
	tk *tokenizer.Tokenizer
}

var _ Tokenizer = (*SugarmeTokenizer)(nil)

// NewSugarmeTokenizer loads a tokenizer.json (HuggingFace "fast
// tokenizer" format) from path.
func NewSugarmeTokenizer(path string) (*SugarmeTokenizer, error) {
	tk, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: load tokenizer %s: %v", errkind.ErrInference, path, err)
	}
	return &SugarmeTokenizer{tk: tk}, nil
}

// Encode encodes text with truncation to maxLen, returning input ids,
// attention mask and token type ids.
func (t *SugarmeTokenizer) Encode(text string, maxLen int) ([]int64, []int64, []int64, error) {
	t.tk.WithTruncation(&tokenizer.TruncationParams{
		MaxLength: maxLen,
		Strategy:  tokenizer.LongestFirst,
		Stride:    0,
	})

	input := tokenizer.NewSingleEncodeInput(tokenizer.NewInputSequence(text))
	encoding, err := t.tk.Encode(input, true)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: encode text: %v", errkind.ErrInference, err)
	}

	ids := toInt64(encoding.Ids)
	mask := toInt64(encoding.AttentionMask)
	typeIDs := toInt64(encoding.TypeIds)
	return ids, mask, typeIDs, nil
}

func toInt64(values []int) []int64 {
	out := make([]int64, len(values))
	for i, v := range values {
		out[i] = int64(v)
	}
	return out
}
