// Package dispatch runs a generation job either on the local machine, split across a
// worker pool, or as one batch sub-job per node.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"github.com/aryankumar/fanout/internal/chunk"
	"github.com/aryankumar/fanout/internal/executor"
	"github.com/aryankumar/fanout/internal/sim"
	"github.com/aryankumar/fanout/internal/submit"
	"github.com/aryankumar/fanout/internal/util"
)

// Option selects where a job executes
type Option string

const (
	OptionLocal Option = "local"
	OptionBatch Option = "batch"
)

// ParseOption parses an execution option. "peregrine", "eagle", "hpc" and the queue
// names are accepted as batch.
func ParseOption(s string) (Option, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local", "":
		return OptionLocal, nil
	case "batch", "peregrine", "eagle", "hpc", "pbs", "slurm", "kubernetes", "k8s":
		return OptionBatch, nil
	default:
		return "", util.NewValidationError("execution_control.option", s, "must be local or batch")
	}
}

// LocalOptions tunes a local run
type LocalOptions struct {
	// Workers bounds the pool; 0 uses every CPU
	Workers int

	// SitesPerWorker is the chunk size; 0 splits the sites evenly across the workers
	SitesPerWorker int

	// Progress is called after each chunk completes
	Progress func(completed, total int)
}

// BatchOptions tunes a batch submission
type BatchOptions struct {
	// Nodes is the number of sub-jobs
	Nodes int

	// Concurrency bounds in-flight submissions
	Concurrency int

	// RunID labels every sub-job; generated when empty
	RunID string
}

// Engine dispatches generation jobs
type Engine struct {
	logger *slog.Logger
}

// New creates an engine
func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// SitesPerChunk resolves the chunk size: explicit when > 0, otherwise ceil(sites/parts)
func SitesPerChunk(sites, parts, explicit int) int {
	if explicit > 0 {
		return explicit
	}
	if parts <= 0 {
		parts = 1
	}
	return chunk.CeilDiv(sites, parts)
}

// RunLocal computes every site with gen on a local pool and returns the merged result
// in project points order
func (e *Engine) RunLocal(ctx context.Context, gids []int, gen *sim.Generator, opts LocalOptions) (*sim.Result, error) {
	res, _, err := e.runLocal(ctx, gids, gen, opts)
	return res, err
}

func (e *Engine) runLocal(ctx context.Context, gids []int, gen *sim.Generator, opts LocalOptions) (*sim.Result, []executor.Result, error) {
	if len(gids) == 0 {
		return nil, nil, util.NewValidationError("points", len(gids), "no sites to run")
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	size := SitesPerChunk(len(gids), workers, opts.SitesPerWorker)

	chunks, err := chunk.Plan(len(gids), chunk.BySize(size))
	if err != nil {
		return nil, nil, err
	}

	e.logger.Info("running sites locally",
		"sites", len(gids),
		"workers", workers,
		"sites_per_worker", size,
		"chunks", len(chunks))

	results, err := executor.Run(ctx, chunks, gen.Func(gids), workers, executor.Options{
		Logger:   e.logger,
		Progress: opts.Progress,
	})
	if err != nil {
		return nil, nil, err
	}

	e.logger.Debug("local run finished", "summary", executor.Summarize(results).String())

	res, err := sim.Combine(results)
	if err != nil {
		return nil, nil, err
	}
	return res, results, nil
}

// SubmitBatch plans one chunk per node over the sites and submits one sub-job per chunk.
// The registry is returned even when some submissions failed; the caller reports them.
func (e *Engine) SubmitBatch(ctx context.Context, sites int, tmpl submit.Template, backend submit.Backend, opts BatchOptions) (*submit.Registry, error) {
	nodes := opts.Nodes
	if nodes <= 0 {
		nodes = 1
	}

	chunks, err := chunk.Plan(sites, chunk.ByNodes(nodes))
	if err != nil {
		return nil, err
	}

	e.logger.Info("submitting batch run",
		"job", tmpl.Name,
		"sites", sites,
		"nodes", len(chunks),
		"sites_per_node", chunks[0].Len())

	s := submit.New(backend, e.logger)
	s.RunID = opts.RunID
	if opts.Concurrency > 0 {
		s.Concurrency = opts.Concurrency
	}
	return s.Submit(ctx, chunks, tmpl), nil
}

// Outcome is what Dispatch produced: a merged result for local runs, a registry for batch runs
type Outcome struct {
	Option   Option
	Result   *sim.Result
	Registry *submit.Registry

	// Chunks maps chunk index to its executor result for local runs
	Chunks map[int]executor.Result
}

// Request bundles everything Dispatch needs
type Request struct {
	Option    Option
	Gids      []int
	Generator *sim.Generator
	Local     LocalOptions

	Template submit.Template
	Backend  submit.Backend
	Batch    BatchOptions
}

// Dispatch runs req according to its execution option
func (e *Engine) Dispatch(ctx context.Context, req Request) (*Outcome, error) {
	switch req.Option {
	case OptionLocal, "":
		if req.Generator == nil {
			return nil, fmt.Errorf("local dispatch requires a generator")
		}
		res, results, err := e.runLocal(ctx, req.Gids, req.Generator, req.Local)
		if err != nil {
			return nil, err
		}
		return &Outcome{Option: OptionLocal, Result: res, Chunks: executor.Handles(results)}, nil

	case OptionBatch:
		if req.Backend == nil {
			return nil, fmt.Errorf("batch dispatch requires a backend")
		}
		reg, err := e.SubmitBatch(ctx, len(req.Gids), req.Template, req.Backend, req.Batch)
		if err != nil {
			return nil, err
		}
		return &Outcome{Option: OptionBatch, Registry: reg}, nil

	default:
		return nil, util.NewValidationError("execution_control.option", req.Option, "must be local or batch")
	}
}
