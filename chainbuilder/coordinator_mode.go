package chainbuilder

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/oniz93/business-finder/config"
	"github.com/oniz93/business-finder/coordinator"
	"github.com/oniz93/business-finder/discovery"
	"github.com/oniz93/business-finder/durablestate"
)

// discoverTimeout bounds how long a worker waits to resolve the
// coordinator's address via mDNS before giving up.
const discoverTimeout = 10 * time.Second

// RunCoordinator discovers every partition under cfg.DataDir, registers
// one Task per partition, announces the coordinator over mDNS, and
// serves the task-distribution protocol until ctx is cancelled.
func RunCoordinator(ctx context.Context, cfg config.ChainConfig) error {
	partitions, err := DiscoverPartitions(cfg.DataDir)
	if err != nil {
		return err
	}
	tasks := make([]coordinator.Task, len(partitions))
	for i, p := range partitions {
		tasks[i] = coordinator.Task{ID: uuid.NewString(), RelativePath: p.RelativePath}
	}

	store, err := durablestate.NewFileStore(cfg.CheckpointFile)
	if err != nil {
		return err
	}

	// A legacy index-only progress file is folded in only when no real
	// coordinator checkpoint exists yet; once a checkpoint has been
	// written it is the sole source of truth.
	if _, err := os.Stat(cfg.CheckpointFile); os.IsNotExist(err) {
		legacyPath := filepath.Join(filepath.Dir(cfg.CheckpointFile), "phase3_progress.json")
		tasks, err = coordinator.MigrateLegacyProgress(legacyPath, tasks)
		if err != nil {
			return err
		}
	}

	c, err := coordinator.NewCoordinator(ctx, store, tasks)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", ":"+strconv.Itoa(cfg.Port))
	if err != nil {
		return err
	}
	defer func() { _ = ln.Close() }()

	server, err := discovery.Announce(cfg.Port)
	if err != nil {
		return err
	}
	defer func() { _ = server.Shutdown() }()

	return c.Serve(ctx, ln)
}

// RunWorkerMode connects to the coordinator, resolving its address via
// mDNS when cfg.CoordinatorAddr is empty, and executes assigned tasks
// until the coordinator reports no more work.
func RunWorkerMode(ctx context.Context, cfg config.ChainConfig) error {
	addr := cfg.CoordinatorAddr
	if addr == "" {
		resolved, err := discovery.Discover(discoverTimeout)
		if err != nil {
			return err
		}
		addr = resolved
	}

	cacheBytes := MemoryBudget(cfg.MemoryFraction)
	return coordinator.RunWorker(addr, cfg.WorkerID, func(relativePath string) error {
		return ExecuteTask(ctx, cfg.DataDir, cfg.OutputDir, relativePath, cfg.LocalCacheDir, cfg.ChunkSize, cacheBytes)
	})
}
