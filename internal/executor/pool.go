package executor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aryankumar/fanout/internal/chunk"
	"github.com/aryankumar/fanout/internal/util"
)

// Func computes the payload for one chunk.
// The logger is the worker's own logging context, already tagged with worker and chunk.
type Func func(ctx context.Context, c chunk.Chunk, logger *slog.Logger) (interface{}, error)

// Task represents one chunk of work to be executed by the worker pool
type Task struct {
	// Chunk is the unit range this task covers
	Chunk chunk.Chunk

	// Execute is the function to run for this chunk
	Execute Func
}

// Result represents the outcome of executing a task
type Result struct {
	// Chunk is the unit range this result covers
	Chunk chunk.Chunk

	// Payload contains the successful result data (nil if error occurred)
	Payload interface{}

	// Error contains any error that occurred during execution (nil if successful)
	Error error

	// Duration is how long the task took to execute
	Duration time.Duration

	// WorkerID identifies the worker that ran the task
	WorkerID int
}

// ChunkIndex returns the index of the chunk this result belongs to
func (r Result) ChunkIndex() int {
	return r.Chunk.Index
}

// Pool manages a pool of workers that execute chunk tasks concurrently
// It provides bounded concurrency, graceful shutdown, and progress reporting
type Pool struct {
	// workers is the number of concurrent workers
	workers int

	// tasks is the queue of tasks to execute
	tasks []Task

	// mu protects the tasks slice
	mu sync.Mutex

	// logger for structured logging
	logger *slog.Logger

	// shutdown indicates if the pool is shutting down
	shutdown atomic.Bool

	// running indicates if the pool is currently executing
	running atomic.Bool
}

// NewPool creates a new worker pool with the specified number of workers
// workers <= 0 resolves to the number of CPUs available when the pool is created
func NewPool(workers int, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Pool{
		workers: workers,
		tasks:   make([]Task, 0),
		logger:  logger,
	}
}

// Submit adds a task to the pool's queue
// Returns an error if the pool is shutting down or already running
func (p *Pool) Submit(task Task) error {
	if p.shutdown.Load() {
		return fmt.Errorf("pool is shutting down, cannot submit new tasks")
	}

	if p.running.Load() {
		return fmt.Errorf("pool is running, cannot submit new tasks")
	}

	if task.Execute == nil {
		return fmt.Errorf("task for %s must have an execute function", task.Chunk)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.tasks = append(p.tasks, task)
	p.logger.Debug("task submitted", "chunk", task.Chunk.Index, "total_tasks", len(p.tasks))

	return nil
}

// Execute runs all submitted tasks using the worker pool pattern
// Results are returned in submission order, whatever the completion order was
func (p *Pool) Execute(ctx context.Context) []Result {
	return p.ExecuteWithProgress(ctx, nil)
}

// ExecuteWithProgress runs all tasks with progress reporting
// The progressFn callback is called after each task completes with (completed, total) counts
func (p *Pool) ExecuteWithProgress(ctx context.Context, progressFn func(completed, total int)) []Result {
	if !p.running.CompareAndSwap(false, true) {
		p.logger.Error("pool is already running")
		return []Result{}
	}
	defer p.running.Store(false)

	p.mu.Lock()
	taskCount := len(p.tasks)
	if taskCount == 0 {
		p.mu.Unlock()
		p.logger.Debug("no tasks to execute")
		return []Result{}
	}

	tasksCopy := make([]Task, len(p.tasks))
	copy(tasksCopy, p.tasks)
	p.mu.Unlock()

	workerCount := p.workers
	if workerCount > taskCount {
		workerCount = taskCount
	}

	p.logger.Info("starting chunk execution",
		"workers", workerCount,
		"chunks", taskCount)

	startTime := time.Now()

	// Buffer size = task count so neither side ever blocks on the other
	taskChan := make(chan taskWithIndex, taskCount)
	resultChan := make(chan resultWithIndex, taskCount)

	var completed atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go p.worker(ctx, i, taskChan, resultChan, &wg, &completed, taskCount, progressFn)
	}

	// Queue every task; cancellation stops queueing but never interrupts a running chunk
	for i, task := range tasksCopy {
		select {
		case taskChan <- taskWithIndex{task: task, index: i}:
		case <-ctx.Done():
			p.logger.Warn("context cancelled while queuing chunks", "queued", i, "total", taskCount)
			close(taskChan)
			goto waitForWorkers
		}
	}
	close(taskChan)

waitForWorkers:
	wg.Wait()
	close(resultChan)

	results := make([]Result, taskCount)
	received := make([]bool, taskCount)

	for res := range resultChan {
		if res.index >= 0 && res.index < taskCount {
			results[res.index] = res.result
			received[res.index] = true
		}
	}

	// Chunks that never started get an error result
	for i := range results {
		if !received[i] {
			results[i] = Result{
				Chunk:    tasksCopy[i].Chunk,
				Error:    fmt.Errorf("chunk not executed: %w", ctxErr(ctx)),
				WorkerID: -1,
			}
		}
	}

	successCount := CountSuccessful(results)
	p.logger.Info("chunk execution completed",
		"total", taskCount,
		"successful", successCount,
		"failed", taskCount-successCount,
		"duration", time.Since(startTime))

	return results
}

// worker is the worker goroutine that processes tasks from the task channel
func (p *Pool) worker(
	ctx context.Context,
	workerID int,
	taskChan <-chan taskWithIndex,
	resultChan chan<- resultWithIndex,
	wg *sync.WaitGroup,
	completed *atomic.Int32,
	total int,
	progressFn func(completed, total int),
) {
	defer wg.Done()

	logger := util.WorkerLogger(p.logger, workerID)
	logger.Debug("worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Debug("worker stopping due to context cancellation")
			return

		case item, ok := <-taskChan:
			if !ok {
				logger.Debug("worker finished (no more chunks)")
				return
			}
			if ctx.Err() != nil {
				logger.Debug("worker stopping due to context cancellation")
				return
			}

			result := runTask(ctx, workerID, item.task, logger)

			// resultChan is buffered to taskCount, this never blocks
			resultChan <- resultWithIndex{result: result, index: item.index}

			completedCount := completed.Add(1)
			logger.Debug("chunk completed",
				"chunk", item.task.Chunk.Index,
				"success", result.Error == nil,
				"duration", result.Duration,
				"progress", fmt.Sprintf("%d/%d", completedCount, total))

			if progressFn != nil {
				progressFn(int(completedCount), total)
			}
		}
	}
}

// runTask executes a single task, converting panics into errors
func runTask(ctx context.Context, workerID int, task Task, logger *slog.Logger) (result Result) {
	startTime := time.Now()
	chunkLogger := logger.With("chunk", task.Chunk.Index)

	result = Result{Chunk: task.Chunk, WorkerID: workerID}

	defer func() {
		if r := recover(); r != nil {
			result.Payload = nil
			result.Error = fmt.Errorf("panic in %s: %v\n%s", task.Chunk, r, debug.Stack())
		}
		result.Duration = time.Since(startTime)

		if result.Error != nil {
			chunkLogger.Warn("chunk failed", "error", result.Error, "duration", result.Duration)
		} else {
			chunkLogger.Debug("chunk succeeded", "duration", result.Duration)
		}
	}()

	chunkLogger.Debug("executing chunk", "start", task.Chunk.Start, "stop", task.Chunk.Stop)
	result.Payload, result.Error = task.Execute(ctx, task.Chunk, chunkLogger)

	return result
}

// Shutdown gracefully shuts down the pool
// It stops accepting new tasks and waits for in-progress tasks to complete
// The context timeout controls how long to wait for tasks to finish
func (p *Pool) Shutdown(ctx context.Context) error {
	if !p.shutdown.CompareAndSwap(false, true) {
		return fmt.Errorf("pool already shut down")
	}

	p.logger.Debug("shutting down worker pool")

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for p.running.Load() {
		select {
		case <-ctx.Done():
			return fmt.Errorf("shutdown timeout: %w", ctx.Err())
		case <-ticker.C:
		}
	}

	p.logger.Debug("worker pool shut down")
	return nil
}

// WorkerCount returns the number of workers in the pool
func (p *Pool) WorkerCount() int {
	return p.workers
}

func ctxErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return context.Canceled
}

// taskWithIndex pairs a task with its original index for result ordering
type taskWithIndex struct {
	task  Task
	index int
}

// resultWithIndex pairs a result with its original task index
type resultWithIndex struct {
	result Result
	index  int
}
