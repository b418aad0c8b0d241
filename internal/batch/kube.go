package batch

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/aryankumar/fanout/internal/config"
	"github.com/aryankumar/fanout/internal/submit"
	"github.com/aryankumar/fanout/internal/util"
	"github.com/aryankumar/fanout/pkg/version"
)

// Labels and annotations set on every Job
const (
	LabelManagedBy  = "app.kubernetes.io/managed-by"
	LabelRunID      = "fanout.io/run-id"
	LabelNode       = "fanout.io/node"
	LabelQueueName  = "kueue.x-k8s.io/queue-name"
	AnnotCommand    = "fanout.io/command"
	AnnotOutput     = "fanout.io/output"
	AnnotAccount    = "fanout.io/account"
	AnnotUnitRange  = "fanout.io/unit-range"
	managedByFanout = "fanout"
)

// KubeOptions configures the Kubernetes backend
type KubeOptions struct {
	// Kubeconfig is an explicit kubeconfig path; empty uses KUBECONFIG or ~/.kube/config
	Kubeconfig string

	// Context selects the kubeconfig context; empty uses the current context
	Context string

	// Namespace receives the Jobs; empty uses the context's namespace
	Namespace string

	// Image runs the sub-job command
	Image string
}

// Kube submits each node as a batch/v1 Job
type Kube struct {
	client    kubernetes.Interface
	namespace string
	image     string
	alloc     Allocation
	logger    *slog.Logger
}

// NewKube creates a Kubernetes backend around an existing clientset
func NewKube(client kubernetes.Interface, opts KubeOptions, alloc Allocation, logger *slog.Logger) (*Kube, error) {
	if client == nil {
		return nil, fmt.Errorf("kubernetes client cannot be nil")
	}
	if opts.Image == "" {
		return nil, util.NewValidationError("kubernetes.image", opts.Image, "an image is required for the kubernetes backend")
	}
	if opts.Namespace == "" {
		opts.Namespace = "default"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Kube{
		client:    client,
		namespace: opts.Namespace,
		image:     opts.Image,
		alloc:     alloc,
		logger:    logger,
	}, nil
}

// ConnectKube loads the kubeconfig, builds a clientset and checks the API server responds
func ConnectKube(ctx context.Context, opts KubeOptions, alloc Allocation, logger *slog.Logger) (*Kube, error) {
	if logger == nil {
		logger = slog.Default()
	}

	loader := config.NewKubeconfigLoader(opts.Kubeconfig)
	restConfig, err := loader.BuildClientConfig(opts.Context)
	if err != nil {
		return nil, err
	}
	if opts.Namespace == "" {
		if opts.Namespace, err = loader.Namespace(opts.Context); err != nil {
			return nil, err
		}
	}

	restConfig.UserAgent = version.Get().UserAgent()

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}

	logger.Debug("created kubernetes client",
		"kubeconfig", loader.Paths(),
		"context", opts.Context,
		"namespace", opts.Namespace,
		"server", restConfig.Host)

	k, err := NewKube(clientset, opts, alloc, logger)
	if err != nil {
		return nil, err
	}
	if err := k.HealthCheck(ctx); err != nil {
		return nil, err
	}
	return k, nil
}

// HealthCheck pings the API server through the discovery API
func (k *Kube) HealthCheck(ctx context.Context) error {
	healthCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	type result struct {
		version string
		err     error
	}
	resultCh := make(chan result, 1)

	go func() {
		version, err := k.client.Discovery().ServerVersion()
		if err != nil {
			resultCh <- result{err: err}
			return
		}
		resultCh <- result{version: version.String()}
	}()

	select {
	case <-healthCtx.Done():
		return fmt.Errorf("health check timeout: %w", healthCtx.Err())
	case res := <-resultCh:
		if res.err != nil {
			return fmt.Errorf("failed to get server version: %w", res.err)
		}
		k.logger.Debug("kubernetes API reachable", "version", res.version)
		return nil
	}
}

// Job builds the Job object for req
func (k *Kube) Job(req submit.Request) *batchv1.Job {
	name := req.Name
	if len(req.RunID) >= 8 {
		name = fmt.Sprintf("%s-%s", req.Name, req.RunID[:8])
	}

	labels := map[string]string{
		LabelManagedBy: managedByFanout,
		LabelNode:      strconv.Itoa(req.Chunk.Index),
	}
	if req.RunID != "" {
		labels[LabelRunID] = req.RunID
	}
	if k.alloc.Queue != "" {
		labels[LabelQueueName] = k.alloc.Queue
	}

	annotations := map[string]string{
		AnnotCommand:   req.Command,
		AnnotUnitRange: submit.FormatRange(req.Chunk),
	}
	if req.Output != "" {
		annotations[AnnotOutput] = req.Output
	}
	if k.alloc.Account != "" {
		annotations[AnnotAccount] = k.alloc.Account
	}

	backoff := int32(0)
	job := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:        util.DNSLabel(name),
			Namespace:   k.namespace,
			Labels:      labels,
			Annotations: annotations,
		},
		Spec: batchv1.JobSpec{
			BackoffLimit: &backoff,
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec: corev1.PodSpec{
					RestartPolicy: corev1.RestartPolicyNever,
					Containers: []corev1.Container{{
						Name:    "node",
						Image:   k.image,
						Command: []string{"sh", "-c", req.Command},
					}},
				},
			},
		},
	}

	if d, err := parseWalltime(k.alloc.Walltime); err == nil && d > 0 {
		secs := int64(d.Seconds())
		job.Spec.ActiveDeadlineSeconds = &secs
	}

	return job
}

// Submit implements submit.Backend
func (k *Kube) Submit(ctx context.Context, req submit.Request) (string, error) {
	job := k.Job(req)
	k.logger.Debug("creating job", "name", job.Name, "namespace", k.namespace)

	created, err := k.client.BatchV1().Jobs(k.namespace).Create(ctx, job, metav1.CreateOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to create job %s: %w", job.Name, err)
	}
	return fmt.Sprintf("%s/%s", created.Namespace, created.Name), nil
}

// parseWalltime parses HH:MM:SS
func parseWalltime(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	var h, m, sec int
	if _, err := fmt.Sscanf(s, "%d:%d:%d", &h, &m, &sec); err != nil {
		return 0, fmt.Errorf("invalid walltime %q: %w", s, err)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second, nil
}
