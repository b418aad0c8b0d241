package summary

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/aryankumar/fanout/internal/chunk"
	"github.com/aryankumar/fanout/internal/executor"
	"github.com/aryankumar/fanout/internal/store"
)

const (
	testUnits = 250
	testSteps = 24
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixture builds a store with a 24x250 dataset, a 1-D dataset and a meta table
func fixture(t *testing.T) *store.Memory {
	t.Helper()
	ctx := context.Background()
	m := store.NewMemory()

	if err := m.CreateDataset(ctx, store.Properties{Name: "ghi", Shape: []int{testSteps, testUnits}, ChunkUnits: 50}); err != nil {
		t.Fatal(err)
	}
	if err := m.CreateDataset(ctx, store.Properties{Name: "cf_mean", Shape: []int{testUnits}}); err != nil {
		t.Fatal(err)
	}

	series := make([][]float64, testUnits)
	means := make([][]float64, testUnits)
	sites := make([]store.Site, testUnits)
	for u := range series {
		series[u] = make([]float64, testSteps)
		for s := range series[u] {
			series[u][s] = float64((u*7+s*13)%97) / 3
		}
		means[u] = []float64{float64(u%10) / 10}
		sites[u] = store.Site{Gid: 1000 + u, Attrs: map[string]float64{"elevation": float64(u)}}
	}

	if err := m.WriteUnits(ctx, "ghi", 0, series); err != nil {
		t.Fatal(err)
	}
	if err := m.WriteUnits(ctx, "cf_mean", 0, means); err != nil {
		t.Fatal(err)
	}
	if err := m.WriteMeta(ctx, sites); err != nil {
		t.Fatal(err)
	}
	if err := m.WriteTimeIndex(ctx, []string{"2012-01-01T00:00"}); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestDescribe(t *testing.T) {
	got := Describe([]float64{4, 1, 3, 2})
	want := []float64{2.5, math.Sqrt(5.0 / 3.0), 1, 1.75, 2.5, 3.25, 4, 10}
	for i, col := range StatColumns {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("%s = %v, want %v", col, got[i], want[i])
		}
	}

	single := Describe([]float64{7})
	if !math.IsNaN(single[1]) {
		t.Errorf("std of one value should be NaN, got %v", single[1])
	}
	if single[3] != 7 || single[6] != 7 || single[7] != 7 {
		t.Errorf("unexpected single-value stats: %v", single)
	}

	empty := Describe(nil)
	if !math.IsNaN(empty[0]) || empty[7] != 0 {
		t.Errorf("unexpected empty stats: %v", empty)
	}
}

func TestPlan(t *testing.T) {
	twoD := store.Properties{Name: "ghi", Shape: []int{testSteps, testUnits}, ChunkUnits: 50}
	unchunked := store.Properties{Name: "ghi", Shape: []int{testSteps, testUnits}}
	oneD := store.Properties{Name: "cf_mean", Shape: []int{testUnits}}

	tests := []struct {
		name   string
		props  store.Properties
		opts   Options
		mode   Mode
		chunks int
	}{
		{name: "parallel with process size", props: twoD, opts: Options{ProcessSize: 100, MaxWorkers: 4}, mode: ModeParallel, chunks: 3},
		{name: "parallel defaults to native chunks", props: twoD, opts: Options{MaxWorkers: 4}, mode: ModeParallel, chunks: 5},
		{name: "serial without process size", props: twoD, opts: Options{MaxWorkers: 1}, mode: ModeSinglePass, chunks: 1},
		{name: "serial chunked", props: twoD, opts: Options{ProcessSize: 100, MaxWorkers: 1}, mode: ModeSerialChunked, chunks: 3},
		{name: "unchunked dataset", props: unchunked, opts: Options{MaxWorkers: 4}, mode: ModeSinglePass, chunks: 1},
		{name: "process size covers dataset", props: twoD, opts: Options{ProcessSize: 500, MaxWorkers: 4}, mode: ModeSinglePass, chunks: 1},
		{name: "1-D dataset", props: oneD, opts: Options{ProcessSize: 10, MaxWorkers: 4}, mode: ModeSinglePass, chunks: 1},
	}

	s := New(store.NewMemory(), quietLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mode, chunks, err := s.Plan(tt.props, tt.opts)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if mode != tt.mode {
				t.Errorf("mode = %s, want %s", mode, tt.mode)
			}
			if len(chunks) != tt.chunks {
				t.Errorf("chunks = %d, want %d", len(chunks), tt.chunks)
			}
		})
	}

	t.Run("scenario boundaries", func(t *testing.T) {
		_, chunks, _ := s.Plan(twoD, Options{ProcessSize: 100, MaxWorkers: 4})
		want := []chunk.Chunk{
			{Index: 0, Start: 0, Stop: 100},
			{Index: 1, Start: 100, Stop: 200},
			{Index: 2, Start: 200, Stop: 250},
		}
		if diff := cmp.Diff(want, chunks); diff != "" {
			t.Errorf("chunk plan mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestDataset_ChunkedMatchesSinglePass(t *testing.T) {
	ctx := context.Background()
	s := New(fixture(t), quietLogger())

	single, err := s.Dataset(ctx, "ghi", Options{MaxWorkers: 1})
	if err != nil {
		t.Fatalf("single pass failed: %v", err)
	}
	if single.Len() != testUnits {
		t.Fatalf("single pass rows = %d, want %d", single.Len(), testUnits)
	}
	if single.Index[0] != "1000" || single.IndexName != "gid" {
		t.Errorf("expected gid index, got %s=%s", single.IndexName, single.Index[0])
	}

	for _, opts := range []Options{
		{ProcessSize: 100, MaxWorkers: 4},
		{ProcessSize: 100, MaxWorkers: 1},
		{ProcessSize: 7, MaxWorkers: 16},
		{MaxWorkers: 0},
	} {
		t.Run(fmt.Sprintf("size_%d_workers_%d", opts.ProcessSize, opts.MaxWorkers), func(t *testing.T) {
			chunked, err := s.Dataset(ctx, "ghi", opts)
			if err != nil {
				t.Fatalf("chunked summary failed: %v", err)
			}
			if diff := cmp.Diff(single, chunked); diff != "" {
				t.Errorf("chunked summary differs from single pass (-single +chunked):\n%s", diff)
			}

			sumSingle, _ := single.Column("sum")
			sumChunked, _ := chunked.Column("sum")
			var a, b float64
			for i := range sumSingle {
				a += sumSingle[i]
				b += sumChunked[i]
			}
			if a != b {
				t.Errorf("total sum %v != %v", b, a)
			}
		})
	}
}

func TestDataset_Vector(t *testing.T) {
	tests := []struct {
		name     string
		opts     Options
		wantWarn bool
	}{
		{name: "chunked and parallel", opts: Options{ProcessSize: 10, MaxWorkers: 4}, wantWarn: true},
		{name: "every cpu", opts: Options{MaxWorkers: 0}, wantWarn: true},
		{name: "chunked serial", opts: Options{ProcessSize: 3, MaxWorkers: 1}, wantWarn: true},
		{name: "serial single pass", opts: Options{MaxWorkers: 1}, wantWarn: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))
			s := New(fixture(t), logger)

			got, err := s.Dataset(context.Background(), "cf_mean", tt.opts)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if diff := cmp.Diff(StatColumns, got.Index); diff != "" {
				t.Errorf("index mismatch (-want +got):\n%s", diff)
			}
			if len(got.Columns) != 1 || got.Columns[0] != "cf_mean" {
				t.Errorf("columns = %v, want [cf_mean]", got.Columns)
			}
			if v, _ := got.Value("max", "cf_mean"); v != 0.9 {
				t.Errorf("max = %v, want 0.9", v)
			}
			if warned := strings.Contains(buf.String(), "level=WARN"); warned != tt.wantWarn {
				t.Errorf("warned = %v, want %v (log %q)", warned, tt.wantWarn, buf.String())
			}
		})
	}
}

func TestDataset_Missing(t *testing.T) {
	s := New(fixture(t), quietLogger())
	if _, err := s.Dataset(context.Background(), "wind_speed", Options{}); err == nil {
		t.Fatal("expected error for missing dataset")
	}
}

// failingReader fails reads that start at a given unit
type failingReader struct {
	store.Reader
	failAt int
}

func (f failingReader) ReadUnits(ctx context.Context, name string, start, stop int) ([][]float64, error) {
	if start == f.failAt {
		return nil, errors.New("corrupt block")
	}
	return f.Reader.ReadUnits(ctx, name, start, stop)
}

func TestDataset_WorkerFailure(t *testing.T) {
	s := New(failingReader{Reader: fixture(t), failAt: 100}, quietLogger())

	_, err := s.Dataset(context.Background(), "ghi", Options{ProcessSize: 100, MaxWorkers: 3})
	var werr *executor.WorkerExecutionError
	if !errors.As(err, &werr) {
		t.Fatalf("expected WorkerExecutionError, got %v", err)
	}
	if werr.ChunkIndex != 1 {
		t.Errorf("ChunkIndex = %d, want 1", werr.ChunkIndex)
	}
}

// shortMetaReader drops meta rows at or beyond a given unit
type shortMetaReader struct {
	store.Reader
	limit int
}

func (r shortMetaReader) Meta(ctx context.Context, start, stop int) ([]store.Site, error) {
	if stop > r.limit {
		stop = r.limit
	}
	if start >= stop {
		return []store.Site{}, nil
	}
	return r.Reader.Meta(ctx, start, stop)
}

func TestShortMeta(t *testing.T) {
	s := New(shortMetaReader{Reader: fixture(t), limit: 150}, quietLogger())
	ctx := context.Background()

	if _, err := s.Dataset(ctx, "ghi", Options{ProcessSize: 100, MaxWorkers: 1}); err == nil ||
		!strings.Contains(err.Error(), "meta covers 50 of units 100:200") {
		t.Errorf("Dataset error = %v, want meta coverage error", err)
	}
	if _, err := s.Means(ctx); err == nil || !strings.Contains(err.Error(), "meta covers 150 of") {
		t.Errorf("Means error = %v, want meta coverage error", err)
	}
}

func TestMeans(t *testing.T) {
	s := New(fixture(t), quietLogger())

	means, err := s.Means(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff([]string{"elevation", "cf_mean"}, means.Columns); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}
	if means.Len() != testUnits {
		t.Fatalf("rows = %d, want %d", means.Len(), testUnits)
	}
	if v, ok := means.Value("1013", "cf_mean"); !ok || v != 0.3 {
		t.Errorf("cf_mean for gid 1013 = %v (%v), want 0.3", v, ok)
	}
	if v, _ := means.Value("1013", "elevation"); v != 13 {
		t.Errorf("elevation for gid 1013 = %v, want 13", v)
	}
}

func TestRun(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "summary")

	report, err := Run(context.Background(), fixture(t), "/data/gen_2012.db", outDir, nil,
		Options{ProcessSize: 100, MaxWorkers: 2}, quietLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff([]string{"cf_mean", "ghi"}, report.Datasets); diff != "" {
		t.Errorf("datasets mismatch (-want +got):\n%s", diff)
	}

	for _, name := range []string{"cf_mean_summary.csv", "ghi_summary.csv", "gen_2012_summary.csv"} {
		data, err := os.ReadFile(filepath.Join(outDir, name))
		if err != nil {
			t.Errorf("expected %s: %v", name, err)
			continue
		}
		if len(data) == 0 {
			t.Errorf("%s is empty", name)
		}
	}

	data, _ := os.ReadFile(filepath.Join(outDir, "ghi_summary.csv"))
	header := strings.SplitN(string(data), "\n", 2)[0]
	if header != "gid,mean,std,min,25%,50%,75%,max,sum" {
		t.Errorf("unexpected header %q", header)
	}
}

func TestMeansFileName(t *testing.T) {
	tests := map[string]string{
		"/out/gen_2012.db": "gen_2012_summary.csv",
		"resource.h5":      "resource_summary.csv",
		"plain":            "plain_summary.csv",
	}
	for in, want := range tests {
		if got := MeansFileName(in); got != want {
			t.Errorf("MeansFileName(%q) = %q, want %q", in, got, want)
		}
	}
}
