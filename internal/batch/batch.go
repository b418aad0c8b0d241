// Package batch submits rendered sub-jobs to a batch queue: PBS or Slurm through their
// command-line clients, or Kubernetes as batch/v1 Jobs.
package batch

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/aryankumar/fanout/internal/util"
)

// Kind selects the batch queue
type Kind string

const (
	KindPBS        Kind = "pbs"
	KindSlurm      Kind = "slurm"
	KindKubernetes Kind = "kubernetes"
)

// Kinds lists every supported queue
var Kinds = []Kind{KindPBS, KindSlurm, KindKubernetes}

// ParseKind parses a queue name, accepting "k8s" for Kubernetes
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pbs", "":
		return KindPBS, nil
	case "slurm":
		return KindSlurm, nil
	case "kubernetes", "k8s":
		return KindKubernetes, nil
	default:
		return "", util.NewValidationError("backend", s, fmt.Sprintf("must be one of %v", Kinds))
	}
}

// String implements fmt.Stringer
func (k Kind) String() string {
	return string(k)
}

// Allocation carries the queue parameters shared by every node of a run
type Allocation struct {
	// Account is the allocation charged for the jobs
	Account string

	// Queue is the target queue (partition on Slurm, Kueue local queue on Kubernetes)
	Queue string

	// StdoutPath is the directory receiving job stdout/stderr
	StdoutPath string

	// Walltime is the per-node time limit as HH:MM:SS (optional)
	Walltime string
}

// Default allocation values
const (
	DefaultQueue      = "short"
	DefaultStdoutPath = "./out/stdout"
)

// WithDefaults fills unset fields
func (a Allocation) WithDefaults() Allocation {
	if a.Queue == "" {
		a.Queue = DefaultQueue
	}
	if a.StdoutPath == "" {
		a.StdoutPath = DefaultStdoutPath
	}
	return a
}

// Runner executes a queue client command, feeding stdin and returning stdout
type Runner interface {
	Run(ctx context.Context, stdin string, name string, args ...string) (string, error)
}

// ExecRunner runs commands on the local machine
type ExecRunner struct{}

// Run implements Runner
func (ExecRunner) Run(ctx context.Context, stdin string, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		if msg != "" {
			return "", fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return stdout.String(), nil
}
