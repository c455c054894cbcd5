package pgfixture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/google/uuid"
	"github.com/pressly/pgfixture/pkg/dockermanage"
	"go.uber.org/multierr"
)

// postgresPort is the port the server listens on inside the container.
const postgresPort = 5432

// ContainerRuntime is the subset of the container runtime used to run a database container.
// *dockermanage.Manager implements it.
type ContainerRuntime interface {
	// Start creates and starts a detached container.
	Start(ctx context.Context, options ...dockermanage.Option) (*dockermanage.Container, error)
	// Remove stops and deletes the container, even if it is still running.
	Remove(ctx context.Context, containerID string) error
	// Close releases the runtime client.
	Close() error
}

var _ ContainerRuntime = (*dockermanage.Manager)(nil)

func newDockerRuntime(logger *slog.Logger) (ContainerRuntime, error) {
	return dockermanage.NewManager(logger)
}

// Container is a running postgres container. It owns its runtime client.
type Container struct {
	ID     string
	Name   string
	Config Config

	runtime ContainerRuntime
	logger  *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// StartContainer starts the postgres image in detached mode with cfg's credentials and publishes
// the server port on cfg.Host():cfg.Port(). The caller must call Container.Close.
//
// Errors from the runtime, such as a missing image or a port already in use, are returned as is
// (wrapped). Nothing needs cleaning up in that case.
func StartContainer(ctx context.Context, cfg Config, opts ...Option) (*Container, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	return startContainer(ctx, cfg, o)
}

func startContainer(ctx context.Context, cfg Config, o *options) (_ *Container, retErr error) {
	rt, err := o.newRuntime(o.logger)
	if err != nil {
		return nil, fmt.Errorf("start postgres container: %w", err)
	}
	defer func() {
		if retErr != nil {
			retErr = multierr.Append(retErr, closeRuntime(rt))
		}
	}()

	labels := map[string]string{dockermanage.ManagedLabelKey: "postgres"}
	maps.Copy(labels, o.labels)
	name := "pgfixture-" + uuid.NewString()
	c, err := rt.Start(ctx,
		dockermanage.WithName(name),
		dockermanage.WithImage(o.image),
		dockermanage.WithContainerPortTCP(postgresPort),
		dockermanage.WithHostIP(cfg.Host()),
		dockermanage.WithHostPort(cfg.Port()),
		dockermanage.WithEnvMap(cfg.DockerEnv()),
		dockermanage.WithLabels(labels),
		dockermanage.WithPullProgress(o.pullProgress),
	)
	if err != nil {
		return nil, fmt.Errorf("start postgres container: %w", err)
	}
	o.logger.Info("postgres container started",
		slog.String("container_id", c.ID),
		slog.String("image", o.image),
		slog.String("url", cfg.RedactedURL()),
	)
	return &Container{
		ID:      c.ID,
		Name:    name,
		Config:  cfg,
		runtime: rt,
		logger:  o.logger,
	}, nil
}

// URL is shorthand for c.Config.URL().
func (c *Container) URL() string {
	return c.Config.URL()
}

// Close force-removes the container and releases the runtime client. The work happens once;
// later calls return the result of the first.
func (c *Container) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		c.closeErr = multierr.Append(
			c.runtime.Remove(context.WithoutCancel(ctx), c.ID),
			closeRuntime(c.runtime),
		)
		c.logger.Info("postgres container closed",
			slog.String("container_id", c.ID),
			slog.Bool("ok", c.closeErr == nil),
		)
	})
	return c.closeErr
}

func closeRuntime(rt ContainerRuntime) error {
	if err := rt.Close(); err != nil {
		return fmt.Errorf("close container runtime: %w", err)
	}
	return nil
}

// UpContainer starts a container for cfg, runs fn and removes the container when fn returns,
// fails or panics. An error from the removal is combined with fn's error; it never replaces it.
func UpContainer(ctx context.Context, cfg Config, fn func(ctx context.Context) error, opts ...Option) error {
	if fn == nil {
		return errors.New("fn must not be nil")
	}
	o, err := newOptions(opts)
	if err != nil {
		return err
	}
	return upContainer(ctx, cfg, fn, o)
}

func upContainer(ctx context.Context, cfg Config, fn func(ctx context.Context) error, o *options) (retErr error) {
	c, err := startContainer(ctx, cfg, o)
	if err != nil {
		return err
	}
	defer func() {
		retErr = multierr.Append(retErr, c.Close(ctx))
	}()
	return fn(ctx)
}
