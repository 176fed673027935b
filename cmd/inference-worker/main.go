// Package main implements the inference worker command line interface:
// zero-shot NLI classification of queued jobs.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/oniz93/business-finder/classifier"
	"github.com/oniz93/business-finder/config"
	"github.com/oniz93/business-finder/inference/worker"
	"github.com/oniz93/business-finder/queue"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := flag.NewFlagSet("inference-worker", flag.ExitOnError)

	cfg := config.DefaultInferenceWorkerConfig()
	var labels config.StringList

	queueAddr := fs.String("queue-addr", "", "remote queue address (host:port)")
	jobsQueue := fs.String("jobs-queue", cfg.JobsQueue, "name of the jobs queue")
	resultsQueue := fs.String("results-queue", cfg.ResultsQueue, "name of the results queue")
	modelPath := fs.String("model", "", "path to the ONNX NLI model")
	tokenizerPath := fs.String("tokenizer", "", "path to the tokenizer.json")
	fs.Var(&labels, "label", "candidate zero-shot label (repeatable, at least two required)")
	hypothesisTemplate := fs.String("hypothesis-template", cfg.HypothesisTemplate, "hypothesis template, with %s substituted for the label")
	entailmentIndex := fs.Int("entailment-index", cfg.EntailmentIndex, "index of the entailment logit in the model's output")
	numClasses := fs.Int("num-classes", 3, "number of NLI output classes the model emits per hypothesis (contradiction/neutral/entailment)")
	maxLength := fs.Int("max-length", cfg.MaxLength, "maximum token sequence length")
	batchSize := fs.Int("batch-size", cfg.BatchSize, "jobs popped per batch")
	backpressureResults := fs.Int("backpressure-results", cfg.BackpressureResults, "results queue high-water mark for backpressure")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	cfg.QueueAddr = *queueAddr
	cfg.JobsQueue = *jobsQueue
	cfg.ResultsQueue = *resultsQueue
	cfg.ModelPath = *modelPath
	cfg.TokenizerPath = *tokenizerPath
	if len(labels) > 0 {
		cfg.Labels = labels
	}
	cfg.HypothesisTemplate = *hypothesisTemplate
	cfg.EntailmentIndex = *entailmentIndex
	cfg.MaxLength = *maxLength
	cfg.BatchSize = *batchSize
	cfg.BackpressureResults = *backpressureResults

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if len(cfg.Labels) < 2 {
		return fmt.Errorf("at least two candidate labels are required")
	}
	if *numClasses <= cfg.EntailmentIndex {
		return fmt.Errorf("num-classes must be greater than entailment-index")
	}

	session, err := classifier.NewONNXSession(cfg.ModelPath, *numClasses)
	if err != nil {
		return err
	}
	defer func() { _ = session.Close() }()

	tok, err := classifier.NewSugarmeTokenizer(cfg.TokenizerPath)
	if err != nil {
		return err
	}

	q := queue.NewRedisQueue(cfg.QueueAddr, 0)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer cancel()

	w := &worker.Worker{Cfg: cfg, Queue: q, Session: session, Tokenizer: tok}
	slog.Info("inference-worker: pulling", "queue", cfg.JobsQueue)
	if err := w.Run(ctx); err != nil {
		return fmt.Errorf("inference worker failed: %w", err)
	}
	slog.Info("inference-worker: completed successfully")
	return nil
}
