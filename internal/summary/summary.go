// Package summary computes per-unit statistics of store datasets, splitting large datasets
// into chunks that are summarized in parallel and merged back in unit order.
package summary

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/aryankumar/fanout/internal/chunk"
	"github.com/aryankumar/fanout/internal/executor"
	"github.com/aryankumar/fanout/internal/merge"
	"github.com/aryankumar/fanout/internal/store"
	"github.com/aryankumar/fanout/internal/table"
)

// Options controls how a 2-D dataset is split
type Options struct {
	// ProcessSize is the number of units per chunk (0 = native chunk size when parallel,
	// single pass when serial)
	ProcessSize int

	// MaxWorkers bounds the local pool: 1 runs serially, 0 uses every CPU
	MaxWorkers int
}

// Mode is the execution path chosen for a dataset
type Mode string

const (
	ModeSinglePass    Mode = "single-pass"
	ModeSerialChunked Mode = "serial-chunked"
	ModeParallel      Mode = "parallel"
)

// Summarizer computes dataset summaries from a read-only store shared by all workers
type Summarizer struct {
	store  store.Reader
	logger *slog.Logger
}

// New creates a summarizer over r
func New(r store.Reader, logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{store: r, logger: logger}
}

// Plan resolves the execution mode and chunks for a dataset without reading any data
func (s *Summarizer) Plan(props store.Properties, opts Options) (Mode, []chunk.Chunk, error) {
	units := props.Units()
	if props.Is1D() {
		return ModeSinglePass, []chunk.Chunk{chunk.Whole(units)}, nil
	}

	workers := opts.MaxWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var size int
	mode := ModeParallel
	switch {
	case workers > 1:
		size = opts.ProcessSize
		if size <= 0 {
			size = props.ChunkUnits
		}
	case opts.ProcessSize > 0:
		size = opts.ProcessSize
		mode = ModeSerialChunked
	}

	if size <= 0 || size >= units {
		return ModeSinglePass, []chunk.Chunk{chunk.Whole(units)}, nil
	}

	chunks, err := chunk.Plan(units, chunk.BySize(size))
	if err != nil {
		return "", nil, err
	}
	return mode, chunks, nil
}

// Dataset summarizes one dataset.
//
// 2-D datasets produce one row per unit, indexed by gid, with StatColumns computed over
// the step axis. 1-D datasets produce a single column named after the dataset, indexed by
// statistic; they are always summarized in one pass.
func (s *Summarizer) Dataset(ctx context.Context, name string, opts Options) (*table.Table, error) {
	props, err := s.store.Properties(ctx, name)
	if err != nil {
		return nil, err
	}
	logger := s.logger.With("dataset", name)

	if props.Is1D() {
		if opts.ProcessSize > 0 || opts.MaxWorkers != 1 {
			logger.Warn("summary statistics for 1-D datasets are computed in a single serial pass",
				"process_size", opts.ProcessSize,
				"max_workers", opts.MaxWorkers)
		}
		return s.vector(ctx, props)
	}

	mode, chunks, err := s.Plan(props, opts)
	if err != nil {
		return nil, err
	}

	logger.Info("summarizing dataset",
		"mode", mode,
		"units", props.Units(),
		"chunks", len(chunks))

	if mode == ModeSinglePass {
		return s.units(ctx, props, chunks[0])
	}

	workers := opts.MaxWorkers
	if mode == ModeSerialChunked {
		workers = 1
	}

	results, err := executor.Run(ctx, chunks, func(ctx context.Context, c chunk.Chunk, _ *slog.Logger) (interface{}, error) {
		return s.units(ctx, props, c)
	}, workers, executor.Options{Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("failed to summarize %s: %w", name, err)
	}

	merged, err := merge.Merge(results)
	if err != nil {
		return nil, fmt.Errorf("failed to merge %s summary: %w", name, err)
	}
	return merged, nil
}

// units summarizes every unit in c
func (s *Summarizer) units(ctx context.Context, props store.Properties, c chunk.Chunk) (*table.Table, error) {
	series, err := s.store.ReadUnits(ctx, props.Name, c.Start, c.Stop)
	if err != nil {
		return nil, err
	}
	meta, err := s.store.Meta(ctx, c.Start, c.Stop)
	if err != nil {
		return nil, err
	}

	if len(meta) < len(series) {
		return nil, fmt.Errorf("meta covers %d of units %d:%d", len(meta), c.Start, c.Stop)
	}

	out := table.New("gid", StatColumns...)
	for i, values := range series {
		if err := out.AppendUnit(meta[i].Gid, Describe(values)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// vector summarizes a 1-D dataset as a whole
func (s *Summarizer) vector(ctx context.Context, props store.Properties) (*table.Table, error) {
	series, err := s.store.ReadUnits(ctx, props.Name, 0, props.Units())
	if err != nil {
		return nil, err
	}

	values := make([]float64, 0, len(series))
	for _, v := range series {
		values = append(values, v...)
	}

	out := table.New("", props.Name)
	for i, v := range Describe(values) {
		if err := out.Append(StatColumns[i], []float64{v}); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Means builds the cross-dataset table: one row per unit with its numeric meta attributes
// followed by every 1-D dataset as a column
func (s *Summarizer) Means(ctx context.Context) (*table.Table, error) {
	names, err := s.store.Datasets(ctx)
	if err != nil {
		return nil, err
	}

	var vectors []store.Properties
	units := 0
	for _, name := range names {
		if store.IsReserved(name) {
			continue
		}
		props, err := s.store.Properties(ctx, name)
		if err != nil {
			return nil, err
		}
		if props.Is1D() {
			vectors = append(vectors, props)
			if props.Units() > units {
				units = props.Units()
			}
		}
	}

	meta, err := s.store.Meta(ctx, 0, math.MaxInt)
	if err != nil {
		return nil, err
	}
	if len(meta) < units {
		return nil, fmt.Errorf("meta covers %d of %d units", len(meta), units)
	}
	units = len(meta)

	attrNames := attributeNames(meta)
	out := table.New("gid", attrNames...)
	for u := 0; u < units; u++ {
		row := make([]float64, len(attrNames))
		for j, a := range attrNames {
			v, ok := meta[u].Attrs[a]
			if !ok {
				v = math.NaN()
			}
			row[j] = v
		}
		if err := out.AppendUnit(meta[u].Gid, row); err != nil {
			return nil, err
		}
	}

	for _, props := range vectors {
		series, err := s.store.ReadUnits(ctx, props.Name, 0, props.Units())
		if err != nil {
			return nil, err
		}
		col := make([]float64, units)
		for u := range col {
			col[u] = math.NaN()
			if u < len(series) && len(series[u]) > 0 {
				col[u] = series[u][0]
			}
		}
		if err := out.AddColumn(props.Name, col); err != nil {
			return nil, err
		}
	}

	return out, nil
}

func attributeNames(meta []store.Site) []string {
	seen := make(map[string]bool)
	var names []string
	for _, site := range meta {
		for k := range site.Attrs {
			if !seen[k] {
				seen[k] = true
				names = append(names, k)
			}
		}
	}
	sort.Strings(names)
	return names
}

// Report lists the files written by Run
type Report struct {
	Datasets []string
	Outputs  []string
}

// Run summarizes datasets (all non-reserved datasets when empty) of the store at
// storePath into outDir: one <dataset>_summary.csv per dataset and <store>_summary.csv
// holding the means table.
func Run(ctx context.Context, r store.Reader, storePath, outDir string, datasets []string, opts Options, logger *slog.Logger) (*Report, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	s := New(r, logger)

	if len(datasets) == 0 {
		names, err := r.Datasets(ctx)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			if !store.IsReserved(name) {
				datasets = append(datasets, name)
			}
		}
	}

	report := &Report{Datasets: datasets}
	for _, name := range datasets {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		summary, err := s.Dataset(ctx, name, opts)
		if err != nil {
			return report, err
		}

		path := filepath.Join(outDir, name+"_summary.csv")
		if err := summary.SaveCSV(path); err != nil {
			return report, err
		}
		report.Outputs = append(report.Outputs, path)
		logger.Info("wrote dataset summary", "dataset", name, "path", path)
	}

	means, err := s.Means(ctx)
	if err != nil {
		return report, err
	}
	path := filepath.Join(outDir, MeansFileName(storePath))
	if err := means.SaveCSV(path); err != nil {
		return report, err
	}
	report.Outputs = append(report.Outputs, path)
	logger.Info("wrote means summary", "path", path, "units", means.Len())

	return report, nil
}

// MeansFileName returns "<store basename without extension>_summary.csv"
func MeansFileName(storePath string) string {
	base := filepath.Base(storePath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "store"
	}
	return base + "_summary.csv"
}
