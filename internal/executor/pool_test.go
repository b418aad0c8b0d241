package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/aryankumar/fanout/internal/chunk"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func planOrFail(t *testing.T, total int, hint chunk.Hint) []chunk.Chunk {
	t.Helper()
	chunks, err := chunk.Plan(total, hint)
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	return chunks
}

func TestNewPool(t *testing.T) {
	tests := []struct {
		name    string
		workers int
		want    int
	}{
		{name: "positive workers", workers: 5, want: 5},
		{name: "one worker", workers: 1, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := NewPool(tt.workers, nil)
			if pool == nil {
				t.Fatal("NewPool returned nil")
			}
			if pool.WorkerCount() != tt.want {
				t.Errorf("expected %d workers, got %d", tt.want, pool.WorkerCount())
			}
		})
	}

	t.Run("non-positive resolves to cpu count", func(t *testing.T) {
		for _, w := range []int{0, -3} {
			if got := NewPool(w, nil).WorkerCount(); got < 1 {
				t.Errorf("NewPool(%d) resolved to %d workers", w, got)
			}
		}
	})
}

func TestPool_Submit(t *testing.T) {
	pool := NewPool(2, quietLogger())

	err := pool.Submit(Task{Chunk: chunk.Chunk{Index: 0, Start: 0, Stop: 10}})
	if err == nil || !strings.Contains(err.Error(), "execute function") {
		t.Errorf("expected missing execute function error, got %v", err)
	}

	err = pool.Submit(Task{
		Chunk:   chunk.Chunk{Index: 0, Start: 0, Stop: 10},
		Execute: func(context.Context, chunk.Chunk, *slog.Logger) (interface{}, error) { return nil, nil },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := pool.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
	err = pool.Submit(Task{
		Chunk:   chunk.Chunk{Index: 1, Start: 10, Stop: 20},
		Execute: func(context.Context, chunk.Chunk, *slog.Logger) (interface{}, error) { return nil, nil },
	})
	if err == nil || !strings.Contains(err.Error(), "shutting down") {
		t.Errorf("expected shutdown error, got %v", err)
	}
	if err := pool.Shutdown(context.Background()); err == nil {
		t.Error("expected error on second shutdown")
	}
}

func TestPool_ExecuteOrdering(t *testing.T) {
	chunks := planOrFail(t, 230, chunk.BySize(10))

	for _, workers := range []int{1, 4, 16} {
		t.Run(fmt.Sprintf("workers_%d", workers), func(t *testing.T) {
			pool := NewPool(workers, quietLogger())
			for _, c := range chunks {
				delay := time.Duration(rand.Intn(3)) * time.Millisecond
				if err := pool.Submit(Task{
					Chunk: c,
					Execute: func(ctx context.Context, c chunk.Chunk, _ *slog.Logger) (interface{}, error) {
						time.Sleep(delay)
						return c.Start, nil
					},
				}); err != nil {
					t.Fatalf("submit failed: %v", err)
				}
			}

			results := pool.Execute(context.Background())
			if len(results) != len(chunks) {
				t.Fatalf("expected %d results, got %d", len(chunks), len(results))
			}
			for i, r := range results {
				if r.ChunkIndex() != i {
					t.Errorf("result %d belongs to chunk %d", i, r.ChunkIndex())
				}
				if r.Error != nil {
					t.Errorf("chunk %d failed: %v", i, r.Error)
				}
				if r.Payload.(int) != chunks[i].Start {
					t.Errorf("chunk %d payload = %v, want %d", i, r.Payload, chunks[i].Start)
				}
			}
		})
	}
}

func TestPool_BoundedConcurrency(t *testing.T) {
	const workers = 3
	chunks := planOrFail(t, 40, chunk.BySize(2))

	var current, peak atomic.Int32
	pool := NewPool(workers, quietLogger())
	for _, c := range chunks {
		pool.Submit(Task{
			Chunk: c,
			Execute: func(context.Context, chunk.Chunk, *slog.Logger) (interface{}, error) {
				n := current.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				current.Add(-1)
				return nil, nil
			},
		})
	}

	pool.Execute(context.Background())

	if got := peak.Load(); got > workers {
		t.Errorf("observed %d concurrent chunks, limit is %d", got, workers)
	}
}

func TestPool_PanicRecovery(t *testing.T) {
	chunks := planOrFail(t, 3, chunk.BySize(1))
	pool := NewPool(2, quietLogger())

	for _, c := range chunks {
		pool.Submit(Task{
			Chunk: c,
			Execute: func(_ context.Context, c chunk.Chunk, _ *slog.Logger) (interface{}, error) {
				if c.Index == 1 {
					panic("bad site data")
				}
				return "ok", nil
			},
		})
	}

	results := pool.Execute(context.Background())
	if results[1].Error == nil || !strings.Contains(results[1].Error.Error(), "bad site data") {
		t.Errorf("expected recovered panic for chunk 1, got %v", results[1].Error)
	}
	if results[0].Error != nil || results[2].Error != nil {
		t.Error("sibling chunks should succeed")
	}
}

func TestPool_Cancellation(t *testing.T) {
	chunks := planOrFail(t, 20, chunk.BySize(1))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var started atomic.Int32
	pool := NewPool(1, quietLogger())
	for _, c := range chunks {
		pool.Submit(Task{
			Chunk: c,
			Execute: func(context.Context, chunk.Chunk, *slog.Logger) (interface{}, error) {
				if started.Add(1) == 2 {
					cancel()
				}
				return nil, nil
			},
		})
	}

	results := pool.Execute(ctx)
	if len(results) != len(chunks) {
		t.Fatalf("expected a result for every chunk, got %d", len(results))
	}

	notRun := 0
	for _, r := range results {
		if r.Error != nil {
			if !errors.Is(r.Error, context.Canceled) {
				t.Errorf("unexpected error: %v", r.Error)
			}
			notRun++
		}
	}
	if notRun == 0 {
		t.Error("expected some chunks to be skipped after cancellation")
	}
}

func TestPool_Progress(t *testing.T) {
	chunks := planOrFail(t, 50, chunk.BySize(5))
	pool := NewPool(4, quietLogger())
	for _, c := range chunks {
		pool.Submit(Task{
			Chunk:   c,
			Execute: func(context.Context, chunk.Chunk, *slog.Logger) (interface{}, error) { return nil, nil },
		})
	}

	var mu sync.Mutex
	var calls []int
	pool.ExecuteWithProgress(context.Background(), func(completed, total int) {
		mu.Lock()
		defer mu.Unlock()
		if total != len(chunks) {
			t.Errorf("progress total = %d, want %d", total, len(chunks))
		}
		calls = append(calls, completed)
	})

	if len(calls) != len(chunks) {
		t.Errorf("expected %d progress calls, got %d", len(chunks), len(calls))
	}
}

func TestPool_WorkerLogContext(t *testing.T) {
	var buf safeBuffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	pool := NewPool(2, logger)

	pool.Submit(Task{
		Chunk: chunk.Chunk{Index: 7, Start: 70, Stop: 80},
		Execute: func(_ context.Context, _ chunk.Chunk, log *slog.Logger) (interface{}, error) {
			log.Info("computing sites")
			return nil, nil
		},
	})
	pool.Execute(context.Background())

	var line string
	for _, l := range strings.Split(buf.String(), "\n") {
		if strings.Contains(l, "computing sites") {
			line = l
		}
	}
	if !strings.Contains(line, "worker=0") || !strings.Contains(line, "chunk=7") {
		t.Errorf("expected worker and chunk attributes, got %q", line)
	}
}

type safeBuffer struct {
	mu sync.Mutex
	sb strings.Builder
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.String()
}
