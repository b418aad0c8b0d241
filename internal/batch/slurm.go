package batch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/aryankumar/fanout/internal/submit"
)

// Slurm submits each node with sbatch --wrap
type Slurm struct {
	alloc  Allocation
	runner Runner
	logger *slog.Logger
}

// NewSlurm creates a Slurm backend. A nil runner runs sbatch locally.
func NewSlurm(alloc Allocation, runner Runner, logger *slog.Logger) *Slurm {
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Slurm{alloc: alloc.WithDefaults(), runner: runner, logger: logger}
}

// Args returns the sbatch arguments for req
func (s *Slurm) Args(req submit.Request) []string {
	args := []string{
		"--parsable",
		"--job-name=" + req.Name,
		"--nodes=1",
		"--partition=" + s.alloc.Queue,
		"--output=" + filepath.Join(s.alloc.StdoutPath, req.Name+"_%j.o"),
		"--error=" + filepath.Join(s.alloc.StdoutPath, req.Name+"_%j.e"),
	}
	if s.alloc.Account != "" {
		args = append(args, "--account="+s.alloc.Account)
	}
	if s.alloc.Walltime != "" {
		args = append(args, "--time="+s.alloc.Walltime)
	}
	return append(args, "--wrap="+req.Command)
}

// Submit implements submit.Backend
func (s *Slurm) Submit(ctx context.Context, req submit.Request) (string, error) {
	s.logger.Debug("submitting Slurm job", "name", req.Name, "partition", s.alloc.Queue)

	out, err := s.runner.Run(ctx, "", "sbatch", s.Args(req)...)
	if err != nil {
		return "", err
	}

	// --parsable prints "jobid" or "jobid;cluster"
	id := strings.TrimSpace(strings.SplitN(strings.TrimSpace(out), ";", 2)[0])
	if id == "" {
		return "", fmt.Errorf("sbatch returned no job id for %s", req.Name)
	}
	return id, nil
}
