// Package executor runs the chunks of a partitioned workload on a bounded pool of local workers.
//
// The package implements a worker pool pattern with bounded concurrency, per-worker
// logging contexts, progress callbacks and results that always come back in chunk order.
//
// # Basic Usage
//
// Plan the chunks, then run a function over each of them:
//
//	chunks, _ := chunk.Plan(len(sites), chunk.BySize(100))
//
//	results, err := executor.Run(ctx, chunks, func(ctx context.Context, c chunk.Chunk, log *slog.Logger) (interface{}, error) {
//	    return computeSites(sites[c.Start:c.Stop])
//	}, 4, executor.Options{Logger: logger})
//
// # Ordering
//
// Workers finish in any order. Results are stored by the chunk's queue position and
// sorted by chunk index before Run returns, so results[i] always covers chunk i.
//
// # Worker Count
//
//   - maxWorkers == 1 runs every chunk serially in the caller's goroutine
//   - maxWorkers > 1 starts min(maxWorkers, len(chunks)) worker goroutines
//   - maxWorkers <= 0 uses runtime.NumCPU()
//
// # Error Handling
//
// A failing chunk does not stop its siblings, but the batch fails as a whole:
//
//	results, err := executor.Run(ctx, chunks, fn, 8, executor.Options{})
//	var werr *executor.WorkerExecutionError
//	if errors.As(err, &werr) {
//	    log.Printf("chunk %d failed: %v", werr.ChunkIndex, werr.Err)
//	}
//
// No partial results are returned on failure. Panics inside a worker function are
// recovered and reported as that chunk's error.
//
// # Logging
//
// Each worker derives its own logger from the base logger (worker and chunk attributes).
// Worker functions must log through the logger they are handed, never a shared global.
//
// # Cancellation
//
// Cancelling the context stops queueing chunks that have not started. Chunks already
// running are not interrupted unless the worker function itself observes ctx.
package executor
