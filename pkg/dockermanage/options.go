package dockermanage

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
)

const (
	// DefaultHostIP is the default host IP used for port bindings.
	DefaultHostIP = "127.0.0.1"

	// ManagedLabelKey marks containers created by this package. The value names the service
	// (e.g., "postgres"). Presence of the key means the container is managed.
	ManagedLabelKey = "pressly.pgfixture"
)

// Option configures container start behavior.
type Option interface {
	apply(*config) error
}

type optionFunc func(*config) error

func (f optionFunc) apply(cfg *config) error {
	return f(cfg)
}

type config struct {
	name          string
	image         string
	containerPort int
	hostIP        string
	hostPort      int
	envVars       []string
	pullProgress  io.Writer
	labels        map[string]string
}

// Spec is the resolved form of a set of Options, as passed to the Docker daemon.
type Spec struct {
	Name          string
	Image         string
	ContainerPort int
	HostIP        string
	HostPort      int
	Env           []string
	Labels        map[string]string
	PullProgress  io.Writer
}

// BuildSpec applies options to the defaults and validates the result. Nil options are skipped.
func BuildSpec(options ...Option) (Spec, error) {
	cfg := defaultConfig()
	for _, opt := range options {
		if opt == nil {
			continue
		}
		if err := opt.apply(cfg); err != nil {
			return Spec{}, err
		}
	}
	if err := cfg.validate(); err != nil {
		return Spec{}, err
	}
	return Spec{
		Name:          cfg.name,
		Image:         cfg.image,
		ContainerPort: cfg.containerPort,
		HostIP:        cfg.hostIP,
		HostPort:      cfg.hostPort,
		Env:           slices.Clone(cfg.envVars),
		Labels:        maps.Clone(cfg.labels),
		PullProgress:  cfg.pullProgress,
	}, nil
}

func defaultConfig() *config {
	return &config{
		hostIP:  DefaultHostIP,
		envVars: []string{},
		labels: map[string]string{
			ManagedLabelKey: "",
		},
	}
}

func (cfg *config) validate() error {
	if cfg.image == "" {
		return errors.New("image is required")
	}
	if cfg.containerPort == 0 {
		return errors.New("container port is required")
	}
	return nil
}

// WithName sets the container name.
func WithName(name string) Option {
	return optionFunc(func(cfg *config) error {
		name = strings.TrimSpace(name)
		if name == "" {
			return errors.New("container name must not be empty")
		}
		cfg.name = name
		return nil
	})
}

// WithImage sets the container image (for example: postgres:13-alpine).
func WithImage(image string) Option {
	return optionFunc(func(cfg *config) error {
		image = strings.TrimSpace(image)
		if image == "" {
			return errors.New("image must not be empty")
		}
		cfg.image = image
		return nil
	})
}

// WithContainerPortTCP sets the TCP port exposed by the container.
func WithContainerPortTCP(port int) Option {
	return optionFunc(func(cfg *config) error {
		if port <= 0 || port > 65535 {
			return fmt.Errorf("container port must be in range 1-65535: %d", port)
		}
		cfg.containerPort = port
		return nil
	})
}

// WithHostIP sets the host IP to bind the container port to.
func WithHostIP(hostIP string) Option {
	return optionFunc(func(cfg *config) error {
		hostIP = strings.TrimSpace(hostIP)
		if hostIP == "" {
			return errors.New("host IP must not be empty")
		}
		cfg.hostIP = hostIP
		return nil
	})
}

// WithHostPort publishes the container port on a fixed host port. Leave unset to let Docker
// pick one.
func WithHostPort(port int) Option {
	return optionFunc(func(cfg *config) error {
		if port <= 0 || port > 65535 {
			return fmt.Errorf("host port must be in range 1-65535: %d", port)
		}
		cfg.hostPort = port
		return nil
	})
}

// WithEnv appends a single environment variable.
func WithEnv(key, value string) Option {
	return optionFunc(func(cfg *config) error {
		key = strings.TrimSpace(key)
		if key == "" {
			return errors.New("env key must not be empty")
		}
		if strings.Contains(key, "=") {
			return fmt.Errorf("env key must not contain '=': %s", key)
		}
		cfg.envVars = append(cfg.envVars, key+"="+value)
		return nil
	})
}

// WithEnvMap appends every entry of env, in key order so the container spec is deterministic.
func WithEnvMap(env map[string]string) Option {
	return optionFunc(func(cfg *config) error {
		for _, key := range slices.Sorted(maps.Keys(env)) {
			if err := WithEnv(key, env[key]).apply(cfg); err != nil {
				return err
			}
		}
		return nil
	})
}

// WithPullProgress sets where image pull output is streamed. Defaults to io.Discard.
func WithPullProgress(w io.Writer) Option {
	return optionFunc(func(cfg *config) error {
		cfg.pullProgress = w
		return nil
	})
}

// WithLabels merges labels into container labels.
func WithLabels(labels map[string]string) Option {
	return optionFunc(func(cfg *config) error {
		for key, value := range maps.Clone(labels) {
			key = strings.TrimSpace(key)
			if key == "" {
				return errors.New("label key must not be empty")
			}
			cfg.labels[key] = value
		}
		return nil
	})
}
