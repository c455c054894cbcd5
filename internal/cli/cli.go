// Package cli implements the pgfixture command line: run a disposable postgres container, list
// and prune the containers it started, and show the resolved environment.
package cli

import (
	"cmp"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"slices"
	"syscall"

	"github.com/mfridman/cli"
)

// Main is the entry point for the pgfixture CLI.
//
// If an error is returned, it is printed to stderr and the process exits with a non-zero exit code.
// An interrupt signal cancels the running command, which still removes its container before Main
// returns.
func Main(opts ...Option) {
	ctx, stop := newContext()
	err := Run(ctx, os.Args[1:], opts...)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// Run the CLI with the provided arguments. The arguments should not include the command name
// itself, only the arguments to the command, use os.Args[1:].
func Run(ctx context.Context, args []string, opts ...Option) error {
	cfg := newConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.apply(cfg)
	}
	return run(ctx, args, cfg)
}

func newContext() (context.Context, context.CancelFunc) {
	signals := []os.Signal{os.Interrupt}
	if runtime.GOOS != "windows" {
		signals = append(signals, syscall.SIGTERM)
	}
	return signal.NotifyContext(context.Background(), signals...)
}

func run(ctx context.Context, args []string, cfg *config) error {
	commands := []*cli.Command{
		newUpCommand(cfg),
		newListCommand(cfg),
		newPruneCommand(cfg),
		newEnvCommand(),
	}
	slices.SortFunc(commands, func(a, b *cli.Command) int {
		return cmp.Compare(a.Name, b.Name)
	})
	root := newRootCommand(cfg)
	root.SubCommands = commands

	if err := cli.Parse(root, args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(cfg.stdout, "%s\n", cli.DefaultUsage(root))
			return nil
		}
		return fmt.Errorf("parse error: %w", err)
	}

	options := &cli.RunOptions{
		Stdout: cfg.stdout,
		Stderr: cfg.stderr,
	}
	if err := cli.Run(ctx, root, options); err != nil {
		return fmt.Errorf("run error: %w", err)
	}
	return nil
}
