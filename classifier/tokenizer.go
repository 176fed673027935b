package classifier

import (
	"fmt"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"

	"github.com/oniz93/business-finder/errkind"
)

// SugarmeTokenizer wraps a sugarme/tokenizer pretrained tokenizer,
// implementing the pair-encode-with-truncation contract NLI input
// preparation needs.
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

// EncodePair encodes (premise, hypothesis) with longest-first truncation
// to maxLen, returning input ids, attention mask and token type ids.
func (t *SugarmeTokenizer) EncodePair(premise, hypothesis string, maxLen int) ([]int64, []int64, []int64, error) {
	t.tk.WithTruncation(&tokenizer.TruncationParams{
		MaxLength: maxLen,
		Strategy:  tokenizer.LongestFirst,
		Stride:    0,
	})

	input := tokenizer.NewDualEncodeInput(tokenizer.NewInputSequence(premise), tokenizer.NewInputSequence(hypothesis))
	encoding, err := t.tk.Encode(input, true)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: encode pair: %v", errkind.ErrInference, err)
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
