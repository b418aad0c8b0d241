package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/aryankumar/fanout/internal/chunk"
	"github.com/aryankumar/fanout/internal/executor"
	"github.com/aryankumar/fanout/internal/sim"
	"github.com/aryankumar/fanout/internal/store"
	"github.com/aryankumar/fanout/internal/submit"
	"github.com/aryankumar/fanout/internal/util"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func generator(t *testing.T, n int) *sim.Generator {
	t.Helper()
	ctx := context.Background()
	m := store.NewMemory()
	if err := m.CreateDataset(ctx, store.Properties{Name: "ghi", Shape: []int{2, n}}); err != nil {
		t.Fatal(err)
	}
	series := make([][]float64, n)
	for u := range series {
		series[u] = []float64{float64(u), float64(u)}
	}
	if err := m.WriteUnits(ctx, "ghi", 0, series); err != nil {
		t.Fatal(err)
	}
	return &sim.Generator{Model: sim.ModelCapacityFactor, Resource: m}
}

type recordingBackend struct {
	mu   sync.Mutex
	reqs []submit.Request
}

func (b *recordingBackend) Submit(ctx context.Context, req submit.Request) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reqs = append(b.reqs, req)
	return fmt.Sprintf("job-%d", req.Chunk.Index), nil
}

func TestParseOption(t *testing.T) {
	tests := map[string]Option{
		"local":     OptionLocal,
		"":          OptionLocal,
		"peregrine": OptionBatch,
		"Batch":     OptionBatch,
		"slurm":     OptionBatch,
	}
	for in, want := range tests {
		got, err := ParseOption(in)
		if err != nil || got != want {
			t.Errorf("ParseOption(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseOption("cloud"); !errors.Is(err, util.ErrInvalidConfig) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestSitesPerChunk(t *testing.T) {
	tests := []struct {
		sites, parts, explicit, want int
	}{
		{sites: 250, parts: 3, want: 84},
		{sites: 250, parts: 5, want: 50},
		{sites: 250, parts: 3, explicit: 10, want: 10},
		{sites: 7, parts: 0, want: 7},
	}
	for _, tt := range tests {
		if got := SitesPerChunk(tt.sites, tt.parts, tt.explicit); got != tt.want {
			t.Errorf("SitesPerChunk(%d, %d, %d) = %d, want %d", tt.sites, tt.parts, tt.explicit, got, tt.want)
		}
	}
}

func TestRunLocal(t *testing.T) {
	gen := generator(t, 300)
	gids := make([]int, 0, 250)
	for g := 299; g >= 50; g-- {
		gids = append(gids, g)
	}

	for _, opts := range []LocalOptions{
		{Workers: 1},
		{Workers: 4, SitesPerWorker: 100},
		{Workers: 16},
		{},
	} {
		t.Run(fmt.Sprintf("workers_%d_spw_%d", opts.Workers, opts.SitesPerWorker), func(t *testing.T) {
			res, err := New(quietLogger()).RunLocal(context.Background(), gids, gen, opts)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got, err := res.Gids()
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(gids, got); diff != "" {
				t.Errorf("result order differs from project points (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRunLocal_Errors(t *testing.T) {
	e := New(quietLogger())

	if _, err := e.RunLocal(context.Background(), nil, generator(t, 5), LocalOptions{}); err == nil {
		t.Error("expected error for empty points")
	}

	_, err := e.RunLocal(context.Background(), []int{0, 1, 2, 42}, generator(t, 5), LocalOptions{Workers: 2, SitesPerWorker: 2})
	var werr *executor.WorkerExecutionError
	if !errors.As(err, &werr) || werr.ChunkIndex != 1 {
		t.Errorf("expected chunk 1 to fail, got %v", err)
	}
}

func TestSubmitBatch(t *testing.T) {
	backend := &recordingBackend{}
	tmpl := submit.Template{
		Name:   "gen_2012",
		Argv:   []string{"fanout", "gen", "--name", "{name}", "--points-range", "{range}"},
		Output: "gen_2012.db",
	}

	reg, err := New(quietLogger()).SubmitBatch(context.Background(), 250, tmpl, backend, BatchOptions{Nodes: 3, RunID: "r1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	handles := reg.Handles()
	if len(handles) != 3 {
		t.Fatalf("expected 3 handles, got %d", len(handles))
	}
	want := []chunk.Chunk{
		{Index: 0, Start: 0, Stop: 84},
		{Index: 1, Start: 84, Stop: 168},
		{Index: 2, Start: 168, Stop: 250},
	}
	for i, h := range handles {
		if diff := cmp.Diff(want[i], h.Chunk); diff != "" {
			t.Errorf("handle %d chunk mismatch (-want +got):\n%s", i, diff)
		}
		if h.ID != fmt.Sprintf("job-%d", i) {
			t.Errorf("handle %d id = %q", i, h.ID)
		}
		if h.Output != fmt.Sprintf("gen_2012_node_%d.db", i) {
			t.Errorf("handle %d output = %q", i, h.Output)
		}
	}

	t.Run("more nodes than sites", func(t *testing.T) {
		_, err := New(quietLogger()).SubmitBatch(context.Background(), 2, tmpl, backend, BatchOptions{Nodes: 5})
		if !errors.Is(err, chunk.ErrInvalidPartition) {
			t.Errorf("expected invalid partition, got %v", err)
		}
	})
}

func TestDispatch(t *testing.T) {
	e := New(quietLogger())
	gen := generator(t, 20)
	gids := []int{1, 2, 3, 4, 5}

	out, err := e.Dispatch(context.Background(), Request{Option: OptionLocal, Gids: gids, Generator: gen, Local: LocalOptions{Workers: 2}})
	if err != nil {
		t.Fatalf("local dispatch failed: %v", err)
	}
	if out.Result == nil || out.Registry != nil || out.Result.Means.Len() != 5 {
		t.Errorf("unexpected local outcome %+v", out)
	}
	if len(out.Chunks) != 2 || out.Chunks[1].Chunk.Start != 3 || out.Chunks[1].Chunk.Stop != 5 {
		t.Errorf("expected per-chunk results [0:3) [3:5), got %+v", out.Chunks)
	}

	out, err = e.Dispatch(context.Background(), Request{
		Option:   OptionBatch,
		Gids:     gids,
		Template: submit.Template{Name: "gen", Argv: []string{"fanout"}},
		Backend:  &recordingBackend{},
		Batch:    BatchOptions{Nodes: 2},
	})
	if err != nil {
		t.Fatalf("batch dispatch failed: %v", err)
	}
	if out.Registry == nil || out.Registry.Len() != 2 {
		t.Errorf("unexpected batch outcome %+v", out)
	}

	if _, err := e.Dispatch(context.Background(), Request{Option: OptionBatch, Gids: gids}); err == nil {
		t.Error("expected error for batch dispatch without backend")
	}
}
