package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/oniz93/business-finder/config"
	"github.com/oniz93/business-finder/inference/producer"
	"github.com/oniz93/business-finder/queue"
)

type fixedTokenizer struct{}

func (fixedTokenizer) EncodePair(premise, hypothesis string, maxLen int) ([]int64, []int64, []int64, error) {
	return []int64{1, 2, 3}, []int64{1, 1, 1}, []int64{0, 0, 0}, nil
}

type fixedSession struct{ logits [][]float32 }

func (f fixedSession) Run(ids, mask, typeIDs [][]int64) ([][]float32, error) {
	return f.logits, nil
}

func TestWorkerClassifiesAndPushesResult(t *testing.T) {
	q := queue.NewMemoryQueue()
	cfg := config.DefaultInferenceWorkerConfig()

	job := producer.Job{FilePath: "/p/f.parquet", RowID: "42", Text: "I have an idea to build X"}
	data, _ := json.Marshal(job)
	if err := q.Push(context.Background(), cfg.JobsQueue, string(data)); err != nil {
		t.Fatal(err)
	}

	w := &Worker{
		Cfg:       cfg,
		Queue:     q,
		Session:   fixedSession{logits: [][]float32{{0.1, 0.2, 0.3}, {0.1, 0.2, 5.0}}},
		Tokenizer: fixedTokenizer{},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = w.Run(ctx) // exits via ctx deadline once the queue is drained

	n, err := q.Length(context.Background(), cfg.ResultsQueue)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("results queue length = %d, want 1", n)
	}

	item, ok, err := q.BlockingPop(context.Background(), cfg.ResultsQueue, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected a result")
	}
	var result Result
	if err := json.Unmarshal([]byte(item), &result); err != nil {
		t.Fatal(err)
	}
	if result.RowID != "42" {
		t.Errorf("row id = %q, want 42", result.RowID)
	}
	if result.Label != "idea" {
		t.Errorf("label = %q, want idea", result.Label)
	}
}
