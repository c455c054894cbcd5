package dockermanage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/netip"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/containerd/errdefs"
	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/network"
	"github.com/moby/moby/client"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentRemovals bounds the number of in-flight remove requests in RemoveManaged.
const maxConcurrentRemovals = 4

// Container is a running Docker container managed by this package.
type Container struct {
	ID     string
	Name   string
	Image  string
	Host   string
	Port   int
	Labels map[string]string
}

// Summary describes a managed container as reported by the Docker daemon.
type Summary struct {
	ID     string            `json:"id"`
	Image  string            `json:"image"`
	State  string            `json:"state"`
	Status string            `json:"status"`
	Labels map[string]string `json:"labels,omitempty"`
}

// Manager manages Docker containers using the native Docker client.
type Manager struct {
	client *client.Client
	logger *slog.Logger
}

// NewManager creates a new manager backed by the Docker client configured from environment
// (DOCKER_HOST, DOCKER_API_VERSION, DOCKER_CERT_PATH, DOCKER_TLS_VERIFY).
func NewManager(logger *slog.Logger) (*Manager, error) {
	dockerClient, err := client.New(
		client.FromEnv,
	)
	if err != nil {
		return nil, fmt.Errorf("create Docker client: %w", err)
	}
	return newManagerWithClient(dockerClient, logger), nil
}

func newManagerWithClient(dockerClient *client.Client, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		client: dockerClient,
		logger: logger.With(slog.String("logger", "dockermanage")),
	}
}

// Start creates and starts a detached container. If any step after creation fails, the
// container is force-removed before Start returns.
func (m *Manager) Start(ctx context.Context, options ...Option) (_ *Container, retErr error) {
	spec, err := BuildSpec(options...)
	if err != nil {
		return nil, err
	}
	containerPort, ok := network.PortFrom(uint16(spec.ContainerPort), network.TCP)
	if !ok {
		return nil, fmt.Errorf("invalid container port: %d", spec.ContainerPort)
	}
	hostAddr, err := netip.ParseAddr(spec.HostIP)
	if err != nil {
		return nil, fmt.Errorf("parse host IP %q: %w", spec.HostIP, err)
	}
	if err := m.pullImageIfNotExists(ctx, spec.Image, spec.PullProgress); err != nil {
		return nil, fmt.Errorf("pull image %s: %w", spec.Image, err)
	}

	binding := network.PortBinding{HostIP: hostAddr}
	if spec.HostPort > 0 {
		binding.HostPort = strconv.Itoa(spec.HostPort)
	}
	resp, err := m.client.ContainerCreate(ctx, client.ContainerCreateOptions{
		Name: spec.Name,
		Config: &container.Config{
			Image: spec.Image,
			Env:   spec.Env,
			ExposedPorts: network.PortSet{
				containerPort: struct{}{},
			},
			Labels: spec.Labels,
		},
		HostConfig: &container.HostConfig{
			PortBindings:  network.PortMap{containerPort: []network.PortBinding{binding}},
			RestartPolicy: container.RestartPolicy{Name: "no"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create container: %w", err)
	}
	defer func() {
		if retErr == nil {
			return
		}
		// The caller never sees this container, so it must not outlive the failed start.
		cleanupCtx := context.WithoutCancel(ctx)
		if _, err := m.client.ContainerRemove(cleanupCtx, resp.ID, client.ContainerRemoveOptions{Force: true}); err != nil {
			m.logger.Error(
				"remove container after start failure",
				slog.String("container_id", resp.ID),
				slog.Any("error", err),
			)
		}
	}()

	if _, err := m.client.ContainerStart(ctx, resp.ID, client.ContainerStartOptions{}); err != nil {
		return nil, fmt.Errorf("start container: %w", err)
	}

	hostPort := spec.HostPort
	if hostPort == 0 {
		inspectResult, err := m.client.ContainerInspect(ctx, resp.ID, client.ContainerInspectOptions{})
		if err != nil {
			return nil, fmt.Errorf("inspect container for port: %w", err)
		}
		hostPort, err = resolveBoundPort(inspectResult.Container, containerPort)
		if err != nil {
			return nil, fmt.Errorf("resolve host port: %w", err)
		}
	}

	m.logger.Info(
		"docker container started",
		slog.String("container_id", resp.ID),
		slog.String("image", spec.Image),
		slog.Int("port", hostPort),
	)
	return &Container{
		ID:     resp.ID,
		Name:   spec.Name,
		Image:  spec.Image,
		Host:   spec.HostIP,
		Port:   hostPort,
		Labels: maps.Clone(spec.Labels),
	}, nil
}

func resolveBoundPort(containerJSON container.InspectResponse, containerPort network.Port) (int, error) {
	if containerJSON.NetworkSettings == nil {
		return 0, errors.New("container network settings are missing")
	}
	portBindings, ok := containerJSON.NetworkSettings.Ports[containerPort]
	if !ok || len(portBindings) == 0 {
		return 0, fmt.Errorf("no port bindings found for %s", containerPort)
	}
	for _, binding := range portBindings {
		if binding.HostPort == "" {
			continue
		}
		port, err := strconv.Atoi(binding.HostPort)
		if err != nil {
			return 0, fmt.Errorf("parse host port %q: %w", binding.HostPort, err)
		}
		return port, nil
	}
	return 0, fmt.Errorf("no host port found for %s", containerPort)
}

// Remove stops and deletes a container, whether or not it is still running.
func (m *Manager) Remove(ctx context.Context, containerID string) error {
	if _, err := m.client.ContainerRemove(ctx, containerID, client.ContainerRemoveOptions{
		Force:         true,
		RemoveVolumes: true,
	}); err != nil {
		return fmt.Errorf("remove container %s: %w", containerID, err)
	}
	m.logger.Info("docker container removed", slog.String("container_id", containerID))
	return nil
}

// ListManaged returns every container, running or not, that carries the managed label.
func (m *Manager) ListManaged(ctx context.Context) ([]Summary, error) {
	result, err := m.client.ContainerList(ctx, client.ContainerListOptions{
		All:     true,
		Filters: client.Filters{}.Add("label", ManagedLabelKey),
	})
	if err != nil {
		return nil, fmt.Errorf("list managed containers: %w", err)
	}
	out := make([]Summary, 0, len(result.Items))
	for _, c := range result.Items {
		out = append(out, Summary{
			ID:     c.ID,
			Image:  c.Image,
			State:  string(c.State),
			Status: c.Status,
			Labels: maps.Clone(c.Labels),
		})
	}
	return out, nil
}

// RemoveManaged force-removes all managed containers and returns how many were removed. A failed
// removal does not stop the others; the failures are joined in the returned error.
func (m *Manager) RemoveManaged(ctx context.Context) (int, error) {
	managed, err := m.ListManaged(ctx)
	if err != nil {
		return 0, fmt.Errorf("list containers for remove: %w", err)
	}
	var (
		removed atomic.Int64
		mu      sync.Mutex
		errs    []error
	)
	var g errgroup.Group
	g.SetLimit(maxConcurrentRemovals)
	for _, c := range managed {
		g.Go(func() error {
			if err := m.Remove(ctx, c.ID); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return nil
			}
			removed.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	m.logger.Info("removed managed containers",
		slog.Int64("removed", removed.Load()),
		slog.Int("failed", len(errs)),
	)
	return int(removed.Load()), errors.Join(errs...)
}

// Close releases the underlying Docker client.
func (m *Manager) Close() error {
	return m.client.Close()
}

func (m *Manager) pullImageIfNotExists(ctx context.Context, imageName string, progressWriter io.Writer) (retErr error) {
	if _, err := m.client.ImageInspect(ctx, imageName); err == nil {
		return nil
	} else if !errdefs.IsNotFound(err) {
		return fmt.Errorf("inspect image: %w", err)
	}

	m.logger.Info("pulling docker image", slog.String("image", imageName))
	reader, err := m.client.ImagePull(ctx, imageName, client.ImagePullOptions{})
	if err != nil {
		return fmt.Errorf("pull image: %w", err)
	}
	defer func() {
		retErr = errors.Join(retErr, reader.Close())
	}()

	if progressWriter == nil {
		progressWriter = io.Discard
	}
	if _, err := io.Copy(progressWriter, reader); err != nil {
		return fmt.Errorf("stream pull output: %w", err)
	}
	return nil
}
