package batch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/aryankumar/fanout/internal/submit"
)

// PBS submits each node as a qsub script read from stdin
type PBS struct {
	alloc  Allocation
	runner Runner
	logger *slog.Logger
}

// NewPBS creates a PBS backend. A nil runner runs qsub locally.
func NewPBS(alloc Allocation, runner Runner, logger *slog.Logger) *PBS {
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PBS{alloc: alloc.WithDefaults(), runner: runner, logger: logger}
}

// Script renders the qsub job script for req
func (p *PBS) Script(req submit.Request) string {
	var sb strings.Builder
	sb.WriteString("#!/bin/bash\n")
	fmt.Fprintf(&sb, "#PBS -N %s\n", req.Name)
	if p.alloc.Account != "" {
		fmt.Fprintf(&sb, "#PBS -A %s\n", p.alloc.Account)
	}
	fmt.Fprintf(&sb, "#PBS -q %s\n", p.alloc.Queue)
	if p.alloc.Walltime != "" {
		fmt.Fprintf(&sb, "#PBS -l nodes=1,walltime=%s\n", p.alloc.Walltime)
	} else {
		sb.WriteString("#PBS -l nodes=1\n")
	}
	fmt.Fprintf(&sb, "#PBS -o %s\n", filepath.Join(p.alloc.StdoutPath, req.Name+".o"))
	fmt.Fprintf(&sb, "#PBS -e %s\n", filepath.Join(p.alloc.StdoutPath, req.Name+".e"))
	sb.WriteString(req.Command)
	sb.WriteString("\n")
	return sb.String()
}

// Submit implements submit.Backend
func (p *PBS) Submit(ctx context.Context, req submit.Request) (string, error) {
	p.logger.Debug("submitting PBS job", "name", req.Name, "queue", p.alloc.Queue)

	out, err := p.runner.Run(ctx, p.Script(req), "qsub")
	if err != nil {
		return "", err
	}

	id := strings.TrimSpace(out)
	if id == "" {
		return "", fmt.Errorf("qsub returned no job id for %s", req.Name)
	}
	return id, nil
}
