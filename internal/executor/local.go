package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"github.com/aryankumar/fanout/internal/chunk"
	"github.com/aryankumar/fanout/internal/util"
)

// ErrWorkerFailed is matched by every WorkerExecutionError via errors.Is
var ErrWorkerFailed = errors.New("worker execution failed")

// WorkerExecutionError reports the chunk whose worker failed and the original cause
type WorkerExecutionError struct {
	// ChunkIndex is the index of the first (lowest-index) failing chunk
	ChunkIndex int

	// Failed is the total number of failed chunks in the batch
	Failed int

	// Err is the cause reported by the worker
	Err error
}

// Error implements the error interface
func (e *WorkerExecutionError) Error() string {
	if e.Failed > 1 {
		return fmt.Sprintf("chunk %d failed (%d chunks failed in total): %v", e.ChunkIndex, e.Failed, e.Err)
	}
	return fmt.Sprintf("chunk %d failed: %v", e.ChunkIndex, e.Err)
}

// Unwrap returns the worker's error
func (e *WorkerExecutionError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrWorkerFailed) true for any WorkerExecutionError
func (e *WorkerExecutionError) Is(target error) bool {
	return target == ErrWorkerFailed
}

// Options tunes a Run call
type Options struct {
	// Logger is the base logger; each worker derives its own context from it
	Logger *slog.Logger

	// Progress is called after each chunk completes
	Progress func(completed, total int)
}

// ShutdownTimeout bounds how long a cancelled run waits for in-flight chunks
const ShutdownTimeout = 30 * time.Second

// Run executes fn once per chunk and returns the results in chunk-index order.
//
// maxWorkers == 1 runs the chunks serially in the caller's goroutine; maxWorkers <= 0
// resolves to runtime.NumCPU() at call time. Any failure fails the whole batch with a
// WorkerExecutionError; sibling chunks are left to finish and their results are discarded.
func Run(ctx context.Context, chunks []chunk.Chunk, fn Func, maxWorkers int, opts Options) ([]Result, error) {
	if fn == nil {
		return nil, fmt.Errorf("executor: nil worker function")
	}
	if len(chunks) == 0 {
		return []Result{}, nil
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU()
	}

	var results []Result
	if maxWorkers == 1 {
		results = runSerial(ctx, chunks, fn, logger, opts.Progress)
	} else {
		pool := NewPool(maxWorkers, logger)
		for _, c := range chunks {
			if err := pool.Submit(Task{Chunk: c, Execute: fn}); err != nil {
				return nil, fmt.Errorf("failed to queue %s: %w", c, err)
			}
		}
		results = runPool(ctx, pool, opts.Progress, logger)
	}

	SortByChunk(results)

	if failed := FilterFailed(results); len(failed) > 0 {
		first := failed[0]
		logger.Error("chunk execution failed",
			"chunk", first.Chunk.Index,
			"failed", len(failed),
			"total", len(results),
			"error", first.Error)
		return nil, &WorkerExecutionError{
			ChunkIndex: first.Chunk.Index,
			Failed:     len(failed),
			Err:        first.Error,
		}
	}

	return results, nil
}

// runPool executes the queued chunks and shuts the pool down if ctx is cancelled while
// they run, so no further chunks are accepted and in-flight chunks drain first
func runPool(ctx context.Context, pool *Pool, progressFn func(completed, total int), logger *slog.Logger) []Result {
	stopped := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(stopped)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := pool.Shutdown(shutdownCtx); err != nil {
			logger.Warn("worker pool did not drain", "error", err)
		}
	})

	results := pool.ExecuteWithProgress(ctx, progressFn)
	if !stop() {
		<-stopped
	}
	return results
}

// runSerial runs chunks in order in the calling goroutine, stopping at the first failure
func runSerial(ctx context.Context, chunks []chunk.Chunk, fn Func, logger *slog.Logger, progressFn func(completed, total int)) []Result {
	workerLogger := util.WorkerLogger(logger, 0)
	results := make([]Result, 0, len(chunks))

	logger.Debug("running chunks serially", "chunks", len(chunks))

	for i, c := range chunks {
		if err := ctx.Err(); err != nil {
			results = append(results, Result{
				Chunk:    c,
				Error:    fmt.Errorf("chunk not executed: %w", err),
				WorkerID: -1,
			})
			return results
		}

		res := runTask(ctx, 0, Task{Chunk: c, Execute: fn}, workerLogger)
		results = append(results, res)
		if res.Error != nil {
			return results
		}

		if progressFn != nil {
			progressFn(i+1, len(chunks))
		}
	}

	return results
}

// SortByChunk orders results by chunk index in place
func SortByChunk(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Chunk.Index < results[j].Chunk.Index
	})
}
