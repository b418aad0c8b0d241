package batch

import (
	"context"
	"log/slog"

	"github.com/aryankumar/fanout/internal/submit"
)

// New builds the backend for kind
func New(ctx context.Context, kind Kind, alloc Allocation, kube KubeOptions, logger *slog.Logger) (submit.Backend, error) {
	switch kind {
	case KindSlurm:
		return NewSlurm(alloc, nil, logger), nil
	case KindKubernetes:
		return ConnectKube(ctx, kube, alloc, logger)
	default:
		return NewPBS(alloc, nil, logger), nil
	}
}
