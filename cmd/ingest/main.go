// Package main implements the ingestion command line interface: the
// raw-corpus-to-Intermediate pipeline.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	businessaws "github.com/oniz93/business-finder/aws"
	"github.com/oniz93/business-finder/columnar"
	"github.com/oniz93/business-finder/config"
	"github.com/oniz93/business-finder/durablestate"
	"github.com/oniz93/business-finder/ingest"
	"github.com/oniz93/business-finder/linestream"
	"github.com/oniz93/business-finder/preflight"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type logReporter struct{}

func (logReporter) Logf(format string, args ...any) { log.Printf(format, args...) }

func run() error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)

	cfg := config.DefaultIngestConfig()
	var baseDirs config.StringList
	var onlyFiles config.StringList
	var excludeFiles config.StringList

	fs.Var(&baseDirs, "base-dir", "raw corpus directory to scan (repeatable)")
	intermediateDir := fs.String("intermediate-dir", "", "base output directory for Intermediate artifacts")
	processedDir := fs.String("processed-dir", "", "Processed store probed during restore verification")
	stateFile := fs.String("state-file", "", "path to processing_state.json")
	restore := fs.Bool("restore", false, "run the resume-point verification before processing")
	fs.Var(&onlyFiles, "only-check-files", "restrict verification to this file (repeatable)")
	fs.Var(&excludeFiles, "exclude-check-files", "exclude this file from verification (repeatable)")
	skipPhase1 := fs.Bool("skip-phase1", false, "skip file processing entirely (restore-only run)")
	workers := fs.Int("workers", cfg.Workers, "number of file-processing worker goroutines")
	rawChunkSize := fs.Int("chunk-size", cfg.RawChunkSize, "lines read per chunk during processing")
	checkpointInterval := fs.Int("checkpoint-interval", cfg.CheckpointInterval, "sample spacing in lines")
	checkpointWindow := fs.Int("checkpoint-window", cfg.CheckpointWindow, "sample window length in lines")
	flushEveryChunks := fs.Int("flush-every", cfg.FlushEveryChunks, "flush state to disk every N chunks")
	useS3 := fs.Bool("s3", false, "enable s3:// base dirs, reading raw corpora directly out of S3")
	dryRun := fs.Bool("dry-run", false, "simulate required S3 permissions and exit instead of running")
	principalArn := fs.String("principal-arn", "", "IAM principal ARN to simulate permissions for (required with -dry-run)")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	cfg.BaseDirs = baseDirs
	cfg.IntermediateDir = *intermediateDir
	cfg.ProcessedDir = *processedDir
	cfg.StateFile = *stateFile
	cfg.Restore = *restore
	cfg.OnlyCheckFiles = onlyFiles
	cfg.ExcludeCheckFiles = excludeFiles
	cfg.SkipPhase1 = *skipPhase1
	cfg.Workers = *workers
	cfg.RawChunkSize = *rawChunkSize
	cfg.CheckpointInterval = *checkpointInterval
	cfg.CheckpointWindow = *checkpointWindow
	cfg.FlushEveryChunks = *flushEveryChunks

	if *dryRun && *principalArn == "" {
		return fmt.Errorf("-principal-arn is required with -dry-run")
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer cancel()

	var awsCfg aws.Config
	if *useS3 || *dryRun {
		var err error
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return fmt.Errorf("load AWS config: %w", err)
		}
	}

	if *dryRun {
		return runDryRun(ctx, awsCfg, *principalArn, cfg.BaseDirs)
	}

	store, err := durablestate.NewFileStore(cfg.StateFile)
	if err != nil {
		return err
	}

	var s3Backend *linestream.S3Backend
	if *useS3 {
		s3Backend = linestream.NewS3Backend(s3.NewFromConfig(awsCfg))
	}

	driver := &ingest.Driver{
		Cfg:      cfg,
		Store:    store,
		Prober:   columnar.NewDirProber(cfg.ProcessedDir),
		Reporter: logReporter{},
		S3:       s3Backend,
	}

	log.Printf("ingest: scanning %v into %s", cfg.BaseDirs, cfg.IntermediateDir)
	if err := driver.Run(ctx); err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	log.Println("ingest: completed successfully")
	return nil
}

// runDryRun simulates the S3 permissions an S3-backed ingestion run
// needs and prints the denial report instead of processing anything.
func runDryRun(ctx context.Context, awsCfg aws.Config, principalArn string, baseDirs []string) error {
	var resources []preflight.Resource
	for _, base := range baseDirs {
		if _, _, ok := linestream.ParseS3URI(base); !ok {
			continue // local base dirs need no IAM simulation
		}
		r, err := preflight.RawCorpusResource(base)
		if err != nil {
			return err
		}
		resources = append(resources, r)
	}
	if len(resources) == 0 {
		log.Println("ingest: dry run found no s3:// base dirs, nothing to simulate")
		return nil
	}

	client := businessaws.NewIAMClient(iam.NewFromConfig(awsCfg))
	denials, err := preflight.Check(ctx, client, principalArn, resources)
	if err != nil {
		return err
	}
	fmt.Println(preflight.Report(denials))
	if len(denials) > 0 {
		return fmt.Errorf("preflight found %d denied action(s)", len(denials))
	}
	return nil
}
