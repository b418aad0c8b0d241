package batch

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	fakediscovery "k8s.io/client-go/discovery/fake"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"

	"github.com/aryankumar/fanout/internal/chunk"
	"github.com/aryankumar/fanout/internal/submit"
)

func TestNewKube(t *testing.T) {
	_, err := NewKube(nil, KubeOptions{Image: "fanout:latest"}, Allocation{}, quietLogger())
	require.Error(t, err)

	_, err = NewKube(fake.NewSimpleClientset(), KubeOptions{}, Allocation{}, quietLogger())
	require.Error(t, err, "image is required")

	k, err := NewKube(fake.NewSimpleClientset(), KubeOptions{Image: "fanout:latest"}, Allocation{}, quietLogger())
	require.NoError(t, err)
	require.Equal(t, "default", k.namespace)
}

func TestKube_Job(t *testing.T) {
	k, err := NewKube(fake.NewSimpleClientset(),
		KubeOptions{Namespace: "sims", Image: "fanout:1.0"},
		Allocation{Queue: "team-a", Account: "solar", Walltime: "00:10:00"},
		quietLogger())
	require.NoError(t, err)

	job := k.Job(testRequest())

	require.Equal(t, "gen-2012-1-01234567", job.Name)
	require.Equal(t, "sims", job.Namespace)
	require.Equal(t, "1", job.Labels[LabelNode])
	require.Equal(t, "0123456789abcdef", job.Labels[LabelRunID])
	require.Equal(t, "team-a", job.Labels[LabelQueueName])
	require.Equal(t, "100:200", job.Annotations[AnnotUnitRange])
	require.Equal(t, "solar", job.Annotations[AnnotAccount])
	require.Equal(t, int32(0), *job.Spec.BackoffLimit)
	require.Equal(t, int64(600), *job.Spec.ActiveDeadlineSeconds)

	pod := job.Spec.Template.Spec
	require.Equal(t, corev1.RestartPolicyNever, pod.RestartPolicy)
	require.Len(t, pod.Containers, 1)
	require.Equal(t, "fanout:1.0", pod.Containers[0].Image)
	require.Equal(t, []string{"sh", "-c", testRequest().Command}, pod.Containers[0].Command)
}

func TestKube_SubmitPartialFailure(t *testing.T) {
	client := fake.NewSimpleClientset()
	client.PrependReactor("create", "jobs", func(action k8stesting.Action) (bool, runtime.Object, error) {
		job := action.(k8stesting.CreateAction).GetObject().(*batchv1.Job)
		if job.Labels[LabelNode] == "2" {
			return true, nil, errors.New("admission webhook denied the request")
		}
		return false, nil, nil
	})

	k, err := NewKube(client, KubeOptions{Namespace: "sims", Image: "fanout:1.0"}, Allocation{}, quietLogger())
	require.NoError(t, err)

	chunks, err := chunk.Plan(250, chunk.ByNodes(5))
	require.NoError(t, err)

	s := submit.New(k, quietLogger())
	s.RunID = "feedfacecafebeef"
	registry := s.Submit(context.Background(), chunks, submit.Template{
		Name: "gen_2012",
		Argv: []string{"fanout", "gen", "--points-range", "{range}"},
	})

	require.Len(t, registry.Succeeded(), 4)
	require.Len(t, registry.Failed(), 1)
	failed, _ := registry.Get(2)
	require.Contains(t, failed.Err.Error(), "admission webhook")

	jobs, err := client.BatchV1().Jobs("sims").List(context.Background(), metav1.ListOptions{})
	require.NoError(t, err)
	require.Len(t, jobs.Items, 4)

	h, _ := registry.Get(0)
	require.Equal(t, fmt.Sprintf("sims/gen-2012-0-%s", "feedface"), h.ID)
}

func TestKube_HealthCheck(t *testing.T) {
	client := fake.NewSimpleClientset()
	k, err := NewKube(client, KubeOptions{Image: "fanout:1.0"}, Allocation{}, quietLogger())
	require.NoError(t, err)
	require.NoError(t, k.HealthCheck(context.Background()))

	client.Discovery().(*fakediscovery.FakeDiscovery).PrependReactor("get", "version",
		func(action k8stesting.Action) (bool, runtime.Object, error) {
			return true, nil, fmt.Errorf("connection refused")
		})
	require.Error(t, k.HealthCheck(context.Background()))
}
