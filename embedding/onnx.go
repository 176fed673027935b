package embedding

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/oniz93/business-finder/errkind"
)

// ONNXSession wraps an onnxruntime_go dynamic session exposing the
// input_ids/attention_mask/token_type_ids -> last_hidden_state contract
// a HuggingFace sentence-transformer export follows, mirroring
// classifier.ONNXSession but reshaping a [N,L,D] hidden-state output
// instead of a [N,C] logits output.
type ONNXSession struct {
	session *ort.DynamicAdvancedSession
	dim     int
}

var _ Session = (*ONNXSession)(nil)

// NewONNXSession loads modelPath and prepares a dynamic session sized
// for a dim-dimensional hidden state per token.
func NewONNXSession(modelPath string, dim int) (*ONNXSession, error) {
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("%w: initialize onnx runtime: %v", errkind.ErrInference, err)
	}
	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: load model %s: %v", errkind.ErrInference, modelPath, err)
	}
	return &ONNXSession{session: session, dim: dim}, nil
}

// Close releases the underlying ONNX session.
func (s *ONNXSession) Close() error {
	return s.session.Destroy()
}

// Run flattens the [N,L] batches into ONNX tensors and executes the
// session, reshaping the [N,L,D] output hidden states back into
// per-row, per-token vectors.
func (s *ONNXSession) Run(ids, attentionMask, typeIDs [][]int64) ([][][]float32, error) {
	n := len(ids)
	if n == 0 {
		return nil, nil
	}
	l := len(ids[0])
	shape := ort.NewShape(int64(n), int64(l))

	idsTensor, err := ort.NewTensor(shape, flatten(ids))
	if err != nil {
		return nil, fmt.Errorf("%w: build ids tensor: %v", errkind.ErrInference, err)
	}
	defer idsTensor.Destroy()

	maskTensor, err := ort.NewTensor(shape, flatten(attentionMask))
	if err != nil {
		return nil, fmt.Errorf("%w: build attention mask tensor: %v", errkind.ErrInference, err)
	}
	defer maskTensor.Destroy()

	typeTensor, err := ort.NewTensor(shape, flatten(typeIDs))
	if err != nil {
		return nil, fmt.Errorf("%w: build type ids tensor: %v", errkind.ErrInference, err)
	}
	defer typeTensor.Destroy()

	outputShape := ort.NewShape(int64(n), int64(l), int64(s.dim))
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		return nil, fmt.Errorf("%w: build output tensor: %v", errkind.ErrInference, err)
	}
	defer outputTensor.Destroy()

	if err := s.session.Run([]ort.Value{idsTensor, maskTensor, typeTensor}, []ort.Value{outputTensor}); err != nil {
		return nil, fmt.Errorf("%w: session run: %v", errkind.ErrInference, err)
	}

	data := outputTensor.GetData()
	out := make([][][]float32, n)
	for i := 0; i < n; i++ {
		seq := make([][]float32, l)
		for t := 0; t < l; t++ {
			start := (i*l + t) * s.dim
			seq[t] = append([]float32(nil), data[start:start+s.dim]...)
		}
		out[i] = seq
	}
	return out, nil
}

func flatten(batch [][]int64) []int64 {
	if len(batch) == 0 {
		return nil
	}
	l := len(batch[0])
	out := make([]int64, 0, len(batch)*l)
	for _, row := range batch {
		out = append(out, row...)
	}
	return out
}
