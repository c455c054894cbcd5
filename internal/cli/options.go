package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/pressly/pgfixture"
	"github.com/pressly/pgfixture/pkg/dockermanage"
)

// WithStdout sets the writer to use for stdout.
func WithStdout(w io.Writer) Option {
	return optionFunc(func(cfg *config) {
		cfg.stdout = w
	})
}

// WithStderr sets the writer to use for stderr.
func WithStderr(w io.Writer) Option {
	return optionFunc(func(cfg *config) {
		cfg.stderr = w
	})
}

// WithVersion sets the version printed by --version. Defaults to the module version from the
// build info.
func WithVersion(version string) Option {
	return optionFunc(func(cfg *config) {
		cfg.version = version
	})
}

type Option interface {
	apply(*config)
}

type optionFunc func(*config)

func (f optionFunc) apply(cfg *config) { f(cfg) }

// containerManager lists and prunes the containers started by pgfixture.
type containerManager interface {
	ListManaged(ctx context.Context) ([]dockermanage.Summary, error)
	RemoveManaged(ctx context.Context) (int, error)
	Close() error
}

type config struct {
	stdout, stderr io.Writer
	version        string

	newManager func(*slog.Logger) (containerManager, error)
	// Appended to the options of the up command.
	fixtureOptions []pgfixture.Option
}

func newConfig() *config {
	return &config{
		stdout:  os.Stdout,
		stderr:  os.Stderr,
		version: buildVersion(),
		newManager: func(logger *slog.Logger) (containerManager, error) {
			return dockermanage.NewManager(logger)
		},
	}
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "devel"
}
