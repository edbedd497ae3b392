package kubernetes

import (
	"context"
	"fmt"
	"log/slog"

	"cooker/internal/apperrors"
	"cooker/internal/poll"
	"cooker/internal/runner"
	"cooker/pkg/backoff"

	"golang.org/x/time/rate"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	k8sclient "k8s.io/client-go/kubernetes"
)

// Labels applied to every Job and pod template.
const (
	LabelManagedBy = "managed-by"
	LabelJobName   = "cooker.job"
	ManagedByValue = "cooker"
)

// jobNameLabel is set on pods by the Job controller.
const jobNameLabel = "job-name"

// Substrate creates Kubernetes backends that share one clientset and one
// poll limiter.
type Substrate struct {
	client  k8sclient.Interface
	cfg     Config
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewSubstrate creates a Substrate over the given clientset.
func NewSubstrate(client k8sclient.Interface, cfg Config) *Substrate {
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	return &Substrate{
		client:  client,
		cfg:     cfg,
		limiter: cfg.Poll.Limiter(),
		logger:  slog.With("component", "kubernetes", "namespace", cfg.Namespace),
	}
}

// NewBackend returns a backend for one Job. It satisfies runner.BackendFactory.
func (s *Substrate) NewBackend(jobName string) runner.Backend {
	return &Backend{
		substrate: s,
		jobName:   jobName,
		logger:    s.logger.With("job", jobName),
	}
}

// Ready reports whether the API server answers.
func (s *Substrate) Ready(_ context.Context) error {
	if _, err := s.client.Discovery().ServerVersion(); err != nil {
		return fmt.Errorf("kubernetes API unreachable: %w", err)
	}
	return nil
}

// Backend drives one Job. Its methods are called from a single runner
// goroutine.
type Backend struct {
	substrate *Substrate
	jobName   string
	logger    *slog.Logger

	podName  string
	phase    corev1.PodPhase
	created  bool
	started  bool
	tornDown bool
}

// Create submits the Job.
func (b *Backend) Create(ctx context.Context) error {
	job := b.manifest()
	b.logger.Debug("Creating job", "image", b.substrate.cfg.Workload.Image)

	_, err := b.substrate.client.BatchV1().Jobs(b.substrate.cfg.Namespace).Create(ctx, job, metav1.CreateOptions{})
	if err != nil {
		return apperrors.Submission("create job "+b.jobName, err)
	}
	b.created = true
	return nil
}

// WaitUntilRunning polls the Job's pod until it has started.
func (b *Backend) WaitUntilRunning(ctx context.Context) error {
	err := poll.Until(ctx, b.pollOptions("waitUntilRunning"), func(ctx context.Context) (bool, error) {
		if err := b.observePod(ctx); err != nil {
			return false, err
		}
		switch b.phase {
		case corev1.PodRunning, corev1.PodSucceeded, corev1.PodFailed, corev1.PodUnknown:
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return err
	}

	b.started = true
	b.logger.Debug("Job started", "pod", b.podName, "phase", b.phase)
	return nil
}

// WaitUntilComplete polls the Job's pod until it has finished. A pod whose
// phase is Unknown is counted as a success.
func (b *Backend) WaitUntilComplete(ctx context.Context) (bool, error) {
	err := poll.Until(ctx, b.pollOptions("waitUntilComplete"), func(ctx context.Context) (bool, error) {
		if err := b.observePod(ctx); err != nil {
			return false, err
		}
		switch b.phase {
		case corev1.PodSucceeded, corev1.PodFailed, corev1.PodUnknown:
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return false, err
	}

	b.logger.Debug("Job finished", "pod", b.podName, "phase", b.phase)
	return b.phase != corev1.PodFailed, nil
}

// Teardown deletes the Job and its pod. Each delete is retried a few times,
// then errors are logged and dropped.
func (b *Backend) Teardown(ctx context.Context) {
	if !b.created || b.tornDown {
		return
	}
	b.tornDown = true
	b.logger.Debug("Deleting job", "started", b.started)

	grace := int64(0)
	propagation := metav1.DeletePropagationBackground
	opts := metav1.DeleteOptions{GracePeriodSeconds: &grace, PropagationPolicy: &propagation}
	ns := b.substrate.cfg.Namespace
	retry := &b.substrate.cfg.TeardownRetry

	err := backoff.Retry(ctx, retry, func() error {
		return ignoreNotFound(b.substrate.client.BatchV1().Jobs(ns).Delete(ctx, b.jobName, opts))
	})
	if err != nil {
		b.logger.Warn("Failed to delete job", "error", err)
	}
	if b.podName == "" {
		return
	}

	err = backoff.Retry(ctx, retry, func() error {
		return ignoreNotFound(b.substrate.client.CoreV1().Pods(ns).Delete(ctx, b.podName, opts))
	})
	if err != nil {
		b.logger.Warn("Failed to delete pod", "pod", b.podName, "error", err)
	}
}

func ignoreNotFound(err error) error {
	if k8serrors.IsNotFound(err) {
		return nil
	}
	return err
}

// FailureReason implements runner.FailureReporter.
func (b *Backend) FailureReason() string {
	if b.podName == "" {
		return "no pod observed for job"
	}
	return fmt.Sprintf("pod %s ended in phase %s", b.podName, b.phase)
}

// observePod records the name and phase of the Job's first pod.
func (b *Backend) observePod(ctx context.Context) error {
	pods, err := b.substrate.client.CoreV1().Pods(b.substrate.cfg.Namespace).List(ctx, metav1.ListOptions{
		LabelSelector: jobNameLabel + "=" + b.jobName,
	})
	if err != nil {
		return err
	}
	if len(pods.Items) == 0 {
		return nil
	}

	pod := pods.Items[0]
	b.podName = pod.Name
	b.phase = pod.Status.Phase
	return nil
}

func (b *Backend) pollOptions(op string) poll.Options {
	p := b.substrate.cfg.Poll
	return poll.Options{
		Op:       op,
		Interval: p.Period,
		Timeout:  p.Timeout,
		Limiter:  b.substrate.limiter,
		Logger:   b.logger,
	}
}

func (b *Backend) manifest() *batchv1.Job {
	spec := b.substrate.cfg.Workload
	labels := map[string]string{
		LabelManagedBy: ManagedByValue,
		LabelJobName:   b.jobName,
	}

	env := make([]corev1.EnvVar, 0, len(spec.Env()))
	for _, e := range spec.Env() {
		env = append(env, corev1.EnvVar{Name: e.Name, Value: e.Value})
	}

	backoffLimit := int32(0)
	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:   b.jobName,
			Labels: labels,
		},
		Spec: batchv1.JobSpec{
			BackoffLimit: &backoffLimit,
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec: corev1.PodSpec{
					RestartPolicy: corev1.RestartPolicyNever,
					Containers: []corev1.Container{{
						Name:            b.jobName,
						Image:           spec.Image,
						ImagePullPolicy: corev1.PullIfNotPresent,
						Env:             env,
						Resources: corev1.ResourceRequirements{
							Requests: corev1.ResourceList{
								corev1.ResourceCPU:    spec.CPURequest,
								corev1.ResourceMemory: spec.MemoryRequest,
							},
							Limits: corev1.ResourceList{
								corev1.ResourceCPU:    spec.CPULimit,
								corev1.ResourceMemory: spec.MemoryLimit,
							},
						},
					}},
				},
			},
		},
	}
}
