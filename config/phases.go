// Package config holds the per-phase configuration types for the
// pipeline: ingestion, compaction, partitioning, inference, chain
// building and embedding. Each phase gets its own flag.FlagSet-backed
// Config type with a parse-then-Validate shape shared across every
// cmd/ binary.
package config

import (
	"flag"
	"fmt"
	"runtime"
	"time"
)

// IngestConfig configures the ingestion phase (cmd/ingest).
type IngestConfig struct {
	BaseDirs           []string // directories to scan for raw corpus files
	IntermediateDir    string   // base output directory for Intermediate artifacts
	ProcessedDir       string   // Processed store probed during restore verification
	StateFile          string   // path to processing_state.json
	Restore            bool     // run the resume-point verification before processing
	OnlyCheckFiles     []string // restrict verification to these file names
	ExcludeCheckFiles  []string // exclude these file names from verification
	SkipPhase1         bool     // skip the file-processing step entirely (restore-only run)
	Workers            int      // number of file-processing worker goroutines
	RawChunkSize       int      // lines read per chunk during processing
	CheckpointInterval int      // sample spacing in lines
	CheckpointWindow   int      // sample window length in lines
	FlushEveryChunks   int      // flush state to disk every N chunks
}

// DefaultIngestConfig returns the ingestion defaults, with worker count
// scaled to the available CPUs.
func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		Workers:            runtime.NumCPU(),
		RawChunkSize:       10_000,
		CheckpointInterval: 100_000,
		CheckpointWindow:   10,
		FlushEveryChunks:   5,
	}
}

// Validate ensures the minimum configuration required to run the
// ingestion phase is present and internally consistent.
func (c *IngestConfig) Validate() error {
	if len(c.BaseDirs) == 0 {
		return fmt.Errorf("at least one base directory is required")
	}
	if c.IntermediateDir == "" {
		return fmt.Errorf("intermediate directory is required")
	}
	if c.StateFile == "" {
		return fmt.Errorf("state file path is required")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if c.RawChunkSize < 1 {
		return fmt.Errorf("raw chunk size must be at least 1")
	}
	if c.CheckpointInterval < 1 {
		return fmt.Errorf("checkpoint interval must be at least 1")
	}
	if c.CheckpointWindow < 1 {
		return fmt.Errorf("checkpoint window must be at least 1")
	}
	if c.Restore && c.ProcessedDir == "" {
		return fmt.Errorf("processed directory is required for restore verification")
	}
	return nil
}

// CompactionConfig configures the compaction phase (cmd/compact).
type CompactionConfig struct {
	IntermediateDir string
	RowLimit        int
	Workers         int
}

func DefaultCompactionConfig() CompactionConfig {
	return CompactionConfig{RowLimit: 1_000_000, Workers: runtime.NumCPU()}
}

func (c *CompactionConfig) Validate() error {
	if c.IntermediateDir == "" {
		return fmt.Errorf("intermediate directory is required")
	}
	if c.RowLimit < 1 {
		return fmt.Errorf("row limit must be at least 1")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	return nil
}

// PartitionConfig configures the partitioning phase (cmd/partition).
type PartitionConfig struct {
	IntermediateDir string
	ProcessedDir    string
	Workers         int
}

func DefaultPartitionConfig() PartitionConfig {
	return PartitionConfig{Workers: 8}
}

func (c *PartitionConfig) Validate() error {
	if c.IntermediateDir == "" {
		return fmt.Errorf("intermediate directory is required")
	}
	if c.ProcessedDir == "" {
		return fmt.Errorf("processed directory is required")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	return nil
}

// InferenceProducerConfig configures the inference producer
// (cmd/inference-producer).
type InferenceProducerConfig struct {
	ProcessedDir string
	StateFile    string
	QueueAddr    string // remote-queue connection string
	JobsQueue    string
	ChunkSize    int
	HighWater    int
}

func DefaultInferenceProducerConfig() InferenceProducerConfig {
	return InferenceProducerConfig{
		JobsQueue: "inference:jobs",
		ChunkSize: 10_000,
		HighWater: 50_000,
	}
}

func (c *InferenceProducerConfig) Validate() error {
	if c.ProcessedDir == "" {
		return fmt.Errorf("processed directory is required")
	}
	if c.StateFile == "" {
		return fmt.Errorf("state file path is required")
	}
	if c.QueueAddr == "" {
		return fmt.Errorf("queue address is required")
	}
	if c.ChunkSize < 1 {
		return fmt.Errorf("chunk size must be at least 1")
	}
	if c.HighWater < 1 {
		return fmt.Errorf("high water mark must be at least 1")
	}
	return nil
}

// InferenceWorkerConfig configures the inference worker
// (cmd/inference-worker).
type InferenceWorkerConfig struct {
	QueueAddr           string
	JobsQueue           string
	ResultsQueue        string
	ModelPath           string
	TokenizerPath       string
	Labels              []string
	HypothesisTemplate  string
	EntailmentIndex     int
	MaxLength           int
	BatchSize           int
	BackpressureResults int
}

func DefaultInferenceWorkerConfig() InferenceWorkerConfig {
	return InferenceWorkerConfig{
		JobsQueue:           "inference:jobs",
		ResultsQueue:        "inference:results",
		Labels:              []string{"pain point", "idea"},
		HypothesisTemplate:  "This example is %s.",
		EntailmentIndex:     2,
		MaxLength:           512,
		BatchSize:           1000,
		BackpressureResults: 10_000,
	}
}

func (c *InferenceWorkerConfig) Validate() error {
	if c.QueueAddr == "" {
		return fmt.Errorf("queue address is required")
	}
	if c.ModelPath == "" {
		return fmt.Errorf("model path is required")
	}
	if c.TokenizerPath == "" {
		return fmt.Errorf("tokenizer path is required")
	}
	if c.BatchSize < 1 || c.BatchSize > 1000 {
		return fmt.Errorf("batch size must be between 1 and 1000")
	}
	if c.MaxLength < 1 {
		return fmt.Errorf("max length must be at least 1")
	}
	return nil
}

// InferenceWriterConfig configures the inference writer
// (cmd/inference-writer).
type InferenceWriterConfig struct {
	QueueAddr    string
	ResultsQueue string
	BatchWriter  int
	PopTimeout   time.Duration
}

func DefaultInferenceWriterConfig() InferenceWriterConfig {
	return InferenceWriterConfig{
		ResultsQueue: "inference:results",
		BatchWriter:  1000,
		PopTimeout:   5 * time.Second,
	}
}

func (c *InferenceWriterConfig) Validate() error {
	if c.QueueAddr == "" {
		return fmt.Errorf("queue address is required")
	}
	if c.BatchWriter < 1 {
		return fmt.Errorf("batch writer size must be at least 1")
	}
	if c.PopTimeout <= 0 {
		return fmt.Errorf("pop timeout must be positive")
	}
	return nil
}

// ChainMode selects the chain-builder run mode.
type ChainMode string

const (
	ChainModeStandalone  ChainMode = "standalone"
	ChainModeCoordinator ChainMode = "coordinator"
	ChainModeWorker      ChainMode = "worker"
)

// ChainConfig configures the chain builder and its coordinator/worker
// modes (cmd/chains).
type ChainConfig struct {
	Mode            ChainMode
	DataDir         string
	OutputDir       string
	Group           string // standalone single-target group
	CoordinatorAddr string
	LocalCacheDir   string
	WorkerID        string
	Port            int
	CheckpointFile  string
	ChunkSize       int
	MemoryFraction  float64 // fraction of system RAM allotted to the in-process SQL engine
}

func DefaultChainConfig() ChainConfig {
	return ChainConfig{ChunkSize: 10_000, MemoryFraction: 0.9, Port: 7733}
}

func (c *ChainConfig) Validate() error {
	switch c.Mode {
	case ChainModeStandalone, ChainModeCoordinator, ChainModeWorker:
	default:
		return fmt.Errorf("mode must be one of standalone, coordinator, worker")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data directory is required")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output directory is required")
	}
	if c.Mode == ChainModeCoordinator && c.Port < 1 {
		return fmt.Errorf("port must be positive in coordinator mode")
	}
	if c.Mode == ChainModeCoordinator && c.CheckpointFile == "" {
		return fmt.Errorf("checkpoint file is required in coordinator mode")
	}
	if c.ChunkSize < 1 {
		return fmt.Errorf("chunk size must be at least 1")
	}
	return nil
}

// EmbeddingConfig configures the embedding producer and worker
// (cmd/embed-producer, cmd/embed-worker).
type EmbeddingConfig struct {
	ChainsDir     string
	EmbeddingsDir string
	CheckpointDir string // producer progress + cached subreddit list
	QueueAddr     string
	JobsQueue     string
	ModelPath     string
	TokenizerPath string
	MaxLength     int
	BatchSize     int
	PopTimeout    time.Duration
}

func DefaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		JobsQueue:  "embedding:jobs",
		MaxLength:  512,
		BatchSize:  32,
		PopTimeout: 5 * time.Second,
	}
}

func (c *EmbeddingConfig) Validate() error {
	if c.ChainsDir == "" {
		return fmt.Errorf("chains directory is required")
	}
	if c.EmbeddingsDir == "" {
		return fmt.Errorf("embeddings directory is required")
	}
	if c.QueueAddr == "" {
		return fmt.Errorf("queue address is required")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1")
	}
	return nil
}

// StringList is a flag.Value accumulating repeated -flag occurrences into
// a slice, used by phases that accept repeatable path/label flags.
type StringList []string

func (s *StringList) String() string { return fmt.Sprintf("%v", []string(*s)) }
func (s *StringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

var _ flag.Value = (*StringList)(nil)
