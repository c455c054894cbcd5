package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/mfridman/cli"
)

func newRootCommand(cfg *config) *cli.Command {
	return &cli.Command{
		UsageFunc: rootUsageFunc(),

		Name:      "pgfixture",
		ShortHelp: "Disposable postgres containers for tests and local development.",
		Usage:     "pgfixture <command> [flags] [args...]",
		Flags: cli.FlagsFunc(func(f *flag.FlagSet) {
			jsonFlag(f)
			envFileFlag(f)
			verboseFlag(f)
			f.Bool(versionFlagName, false, "Print pgfixture version and exit")
		}),
		Exec: func(ctx context.Context, s *cli.State) error {
			if cli.GetFlag[bool](s, versionFlagName) {
				fmt.Fprintf(s.Stdout, "pgfixture version: %s\n", cfg.version)
				return nil
			}
			if len(s.Args) == 0 {
				return errors.New("must supply a command to pgfixture, see --help for more information")
			}
			return fmt.Errorf("unknown command %q, see --help for more information", s.Args[0])
		},
	}
}

func rootUsageFunc() func(c *cli.Command) string {
	return func(c *cli.Command) string {
		return newHelp().
			add("", shortHelpSection).
			add("USAGE", usageSection).
			add("COMMANDS", commandsSection).
			add("GLOBAL FLAGS", flagsSection).
			add("ENVIRONMENT VARIABLES (flags take precedence)", envVarsSection).
			add("LEARN MORE", learnMoreSection).
			build(c)
	}
}
