// Package submit renders one sub-job per chunk and hands each to a batch backend,
// recording what was kicked off in a Registry. It never waits for remote completion.
package submit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aryankumar/fanout/internal/chunk"
)

// Backend accepts a rendered sub-job and returns the job id assigned by the queue
type Backend interface {
	Submit(ctx context.Context, req Request) (string, error)
}

// BackendFunc adapts a function to Backend
type BackendFunc func(ctx context.Context, req Request) (string, error)

// Submit implements Backend
func (f BackendFunc) Submit(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Submitter hands rendered chunks to a backend
type Submitter struct {
	backend Backend
	logger  *slog.Logger

	// Concurrency bounds in-flight submissions; values <= 1 submit in chunk order
	Concurrency int

	// RunID labels every request; a random id is generated when empty
	RunID string

	now func() time.Time
}

// New creates a submitter for backend
func New(backend Backend, logger *slog.Logger) *Submitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Submitter{
		backend:     backend,
		logger:      logger,
		Concurrency: 1,
		now:         time.Now,
	}
}

// Submit renders and submits one sub-job per chunk.
//
// A rejected chunk is recorded as a failed handle carrying a SubmissionError and never
// blocks the other chunks; there are no retries. Cancelling ctx marks the chunks not yet
// submitted as failed. The returned registry holds exactly one handle per chunk.
func (s *Submitter) Submit(ctx context.Context, chunks []chunk.Chunk, tmpl Template) *Registry {
	runID := s.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	registry := NewRegistry(runID)

	logger := s.logger.With("run_id", runID, "job", tmpl.Name)
	logger.Info("submitting sub-jobs", "nodes", len(chunks), "concurrency", s.Concurrency)

	if s.Concurrency <= 1 {
		for _, c := range chunks {
			registry.record(s.submitOne(ctx, c, tmpl, runID, logger))
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.Concurrency)
		for _, c := range chunks {
			c := c
			g.Go(func() error {
				registry.record(s.submitOne(gctx, c, tmpl, runID, logger))
				return nil
			})
		}
		// workers never return errors; failures are recorded in the registry
		_ = g.Wait()
	}

	logger.Info("submission complete",
		"kicked_off", len(registry.Succeeded()),
		"failed", len(registry.Failed()))

	return registry
}

func (s *Submitter) submitOne(ctx context.Context, c chunk.Chunk, tmpl Template, runID string, logger *slog.Logger) JobHandle {
	handle := JobHandle{
		Chunk:       c,
		Name:        NodeName(tmpl.Name, c.Index),
		Output:      NodeOutput(tmpl.Output, c.Index),
		SubmittedAt: s.now(),
	}

	req, err := tmpl.Render(c)
	if err != nil {
		handle.Err = &SubmissionError{Chunk: c.Index, Name: handle.Name, Err: err}
		logger.Error("Was unable to kick off job", "name", handle.Name, "error", err)
		return handle
	}
	req.RunID = runID
	handle.Command = req.Command
	handle.Fingerprint = Fingerprint(req.Command)

	if err := ctx.Err(); err != nil {
		handle.Err = &SubmissionError{Chunk: c.Index, Name: req.Name, Err: fmt.Errorf("not submitted: %w", err)}
		logger.Warn("Was unable to kick off job", "name", req.Name, "error", err)
		return handle
	}

	id, err := s.backend.Submit(ctx, req)
	if err != nil {
		handle.Err = &SubmissionError{Chunk: c.Index, Name: req.Name, Err: err}
		logger.Error("Was unable to kick off job", "name", req.Name, "chunk", c.Index, "error", err)
		return handle
	}

	handle.ID = id
	logger.Info("Kicked off job", "name", req.Name, "id", id, "chunk", c.Index, "range", FormatRange(c))
	return handle
}
