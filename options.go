package pgfixture

import (
	"errors"
	"io"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultImage is the postgres image started by StartContainer.
const DefaultImage = "postgres:13-alpine"

// Option configures StartContainer, WaitReady, OpenPool and the scoped helpers built on them.
// Options that do not apply to a call are ignored by it.
type Option interface {
	apply(*options) error
}

type optionFunc func(*options) error

func (f optionFunc) apply(o *options) error { return f(o) }

type options struct {
	logger       *slog.Logger
	image        string
	labels       map[string]string
	pullProgress io.Writer
	newRuntime   func(*slog.Logger) (ContainerRuntime, error)
	probe        ProbeFunc
	poolConfig   []func(*pgxpool.Config)

	// Readiness budget. Fixed for callers; only tests inside this package change it.
	attempts       int
	interval       time.Duration
	attemptTimeout time.Duration
}

func newOptions(opts []Option) (*options, error) {
	o := &options{
		logger:     slog.New(slog.DiscardHandler),
		image:      DefaultImage,
		labels:     map[string]string{},
		newRuntime: newDockerRuntime,
		probe:      Probe,
		attempts:       MaxAttempts,
		interval:       RetryInterval,
		attemptTimeout: AttemptTimeout,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.apply(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// WithLogger sets the structured logger. By default nothing is logged.
func WithLogger(logger *slog.Logger) Option {
	return optionFunc(func(o *options) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		o.logger = logger
		return nil
	})
}

// WithImage overrides the postgres image. Defaults to DefaultImage.
func WithImage(image string) Option {
	return optionFunc(func(o *options) error {
		image = strings.TrimSpace(image)
		if image == "" {
			return errors.New("image must not be empty")
		}
		o.image = image
		return nil
	})
}

// WithLabels adds labels to the container.
func WithLabels(labels map[string]string) Option {
	return optionFunc(func(o *options) error {
		maps.Copy(o.labels, labels)
		return nil
	})
}

// WithPullProgress streams image pull output to w.
func WithPullProgress(w io.Writer) Option {
	return optionFunc(func(o *options) error {
		o.pullProgress = w
		return nil
	})
}

// WithRuntime uses rt instead of a Docker client created from the environment. The container
// takes ownership of rt and closes it when the container is closed.
func WithRuntime(rt ContainerRuntime) Option {
	return optionFunc(func(o *options) error {
		if rt == nil {
			return errors.New("runtime must not be nil")
		}
		o.newRuntime = func(*slog.Logger) (ContainerRuntime, error) { return rt, nil }
		return nil
	})
}

// WithProbe replaces the readiness probe. Defaults to Probe.
func WithProbe(probe ProbeFunc) Option {
	return optionFunc(func(o *options) error {
		if probe == nil {
			return errors.New("probe must not be nil")
		}
		o.probe = probe
		return nil
	})
}

// WithPoolConfig registers fn to adjust the pool configuration before the pool is built.
func WithPoolConfig(fn func(*pgxpool.Config)) Option {
	return optionFunc(func(o *options) error {
		if fn == nil {
			return errors.New("pool config func must not be nil")
		}
		o.poolConfig = append(o.poolConfig, fn)
		return nil
	})
}
