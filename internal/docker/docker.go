// Package docker runs workloads as containers on the host Docker daemon.
package docker

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"cooker/internal/apperrors"
	"cooker/internal/poll"
	"cooker/internal/runner"
	"cooker/pkg/backoff"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"golang.org/x/time/rate"
)

// Labels applied to every workload container.
const (
	LabelManagedBy = "managed-by"
	LabelJobName   = "job.name"
	ManagedByValue = "cooker"
)

// apiClient is the part of the Docker Engine API the backend uses.
// *client.Client satisfies it.
type apiClient interface {
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ImageInspect(ctx context.Context, imageID string, opts ...client.ImageInspectOption) (image.InspectResponse, error)
	ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error)
	Ping(ctx context.Context) (types.Ping, error)
	Close() error
}

// Substrate creates Docker backends that share one daemon client.
type Substrate struct {
	client  apiClient
	cfg     Config
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewSubstrate connects to the Docker daemon named by the environment.
func NewSubstrate(cfg Config) (*Substrate, error) {
	dockerClient, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return newSubstrate(dockerClient, cfg), nil
}

func newSubstrate(api apiClient, cfg Config) *Substrate {
	return &Substrate{
		client:  api,
		cfg:     cfg,
		limiter: cfg.Poll.Limiter(),
		logger:  slog.With("component", "docker"),
	}
}

// NewBackend returns a backend for one container. It satisfies
// runner.BackendFactory.
func (s *Substrate) NewBackend(jobName string) runner.Backend {
	return &Backend{
		substrate: s,
		jobName:   jobName,
		logger:    s.logger.With("job", jobName),
	}
}

// Ready checks if the Docker daemon is reachable and responsive.
func (s *Substrate) Ready(ctx context.Context) error {
	_, err := s.client.Ping(ctx)
	return err
}

// Close releases the daemon client.
func (s *Substrate) Close() error {
	return s.client.Close()
}

// Backend drives one workload container.
type Backend struct {
	substrate *Substrate
	jobName   string
	logger    *slog.Logger

	containerID string
	exitCode    int
	oomKilled   bool
	created     bool
	started     bool
	tornDown    bool
}

// Create pulls the image if needed, then creates and starts the container.
func (b *Backend) Create(ctx context.Context) error {
	spec := b.substrate.cfg.Workload
	if err := b.pullImageIfNeeded(ctx, spec.Image); err != nil {
		return apperrors.Submission("pull image "+spec.Image, err)
	}

	resp, err := b.substrate.client.ContainerCreate(ctx, b.containerConfig(), b.hostConfig(), b.networkingConfig(), nil, b.jobName)
	if err != nil {
		return apperrors.Submission("create container "+b.jobName, err)
	}
	b.containerID = resp.ID
	b.created = true

	if err := b.substrate.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return apperrors.Submission("start container "+b.jobName, err)
	}
	b.logger.Debug("Container started", "containerId", resp.ID)
	return nil
}

// WaitUntilRunning polls the container until it is running or has exited.
func (b *Backend) WaitUntilRunning(ctx context.Context) error {
	err := poll.Until(ctx, b.pollOptions("waitUntilRunning"), func(ctx context.Context) (bool, error) {
		state, err := b.inspect(ctx)
		if err != nil {
			return false, err
		}
		return state.Running || state.Status == "exited" || state.Status == "dead", nil
	})
	if err != nil {
		return err
	}
	b.started = true
	return nil
}

// WaitUntilComplete polls the container until it stops. Exit code 0 is a
// success.
func (b *Backend) WaitUntilComplete(ctx context.Context) (bool, error) {
	err := poll.Until(ctx, b.pollOptions("waitUntilComplete"), func(ctx context.Context) (bool, error) {
		state, err := b.inspect(ctx)
		if err != nil {
			return false, err
		}
		if state.Running || state.Status == "created" || state.Status == "restarting" {
			return false, nil
		}
		b.exitCode = state.ExitCode
		b.oomKilled = state.OOMKilled
		if state.OOMKilled {
			b.logger.Debug("Container killed for exceeding its memory limit")
		}
		return true, nil
	})
	if err != nil {
		return false, err
	}

	b.logger.Debug("Container exited", "exitCode", b.exitCode)
	return b.exitCode == 0, nil
}

// Teardown force-removes the container, retrying a few times. Errors are
// logged and dropped.
func (b *Backend) Teardown(ctx context.Context) {
	if !b.created || b.tornDown {
		return
	}
	b.tornDown = true
	b.logger.Debug("Removing container", "started", b.started)

	err := backoff.Retry(ctx, &b.substrate.cfg.TeardownRetry, func() error {
		err := b.substrate.client.ContainerRemove(ctx, b.containerID, container.RemoveOptions{Force: true})
		if cerrdefs.IsNotFound(err) {
			return nil
		}
		return err
	})
	if err != nil {
		b.logger.Warn("Failed to remove container", "containerId", b.containerID, "error", err)
	}
}

// FailureReason implements runner.FailureReporter.
func (b *Backend) FailureReason() string {
	if b.oomKilled {
		return fmt.Sprintf("exit code %d (OOM killed)", b.exitCode)
	}
	return fmt.Sprintf("exit code %d", b.exitCode)
}

func (b *Backend) inspect(ctx context.Context) (*container.State, error) {
	inspect, err := b.substrate.client.ContainerInspect(ctx, b.containerID)
	if err != nil {
		return nil, err
	}
	if inspect.ContainerJSONBase == nil || inspect.State == nil {
		return nil, fmt.Errorf("container %s has no state", b.containerID)
	}
	return inspect.State, nil
}

func (b *Backend) pullImageIfNeeded(ctx context.Context, imageName string) error {
	_, err := b.substrate.client.ImageInspect(ctx, imageName)
	if err == nil {
		return nil
	}

	reader, err := b.substrate.client.ImagePull(ctx, imageName, image.PullOptions{
		RegistryAuth: b.substrate.cfg.RegistryAuth,
	})
	if err != nil {
		return err
	}
	defer reader.Close()

	_, err = io.Copy(io.Discard, reader)
	return err
}

func (b *Backend) containerConfig() *container.Config {
	vars := b.substrate.cfg.Workload.Env()
	env := make([]string, 0, len(vars))
	for _, v := range vars {
		env = append(env, fmt.Sprintf("%s=%s", v.Name, v.Value))
	}

	return &container.Config{
		Image: b.substrate.cfg.Workload.Image,
		Env:   env,
		Labels: map[string]string{
			LabelManagedBy: ManagedByValue,
			LabelJobName:   b.jobName,
		},
	}
}

func (b *Backend) hostConfig() *container.HostConfig {
	spec := b.substrate.cfg.Workload
	return &container.HostConfig{
		ExtraHosts: b.substrate.cfg.ExtraHosts,
		Resources: container.Resources{
			NanoCPUs:          spec.CPULimit.MilliValue() * 1e6,
			Memory:            spec.MemoryLimit.Value(),
			MemoryReservation: spec.MemoryRequest.Value(),
		},
	}
}

func (b *Backend) networkingConfig() *network.NetworkingConfig {
	if b.substrate.cfg.Network == "" {
		return nil
	}
	return &network.NetworkingConfig{
		EndpointsConfig: map[string]*network.EndpointSettings{
			b.substrate.cfg.Network: {},
		},
	}
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
