package cli

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mfridman/cli"
	"github.com/pressly/pgfixture"
	"github.com/pressly/pgfixture/internal/cfg"
	"go.uber.org/multierr"
)

func defaultUsageFunc() func(c *cli.Command) string {
	return func(c *cli.Command) string {
		return newHelp().
			add("", shortHelpSection).
			add("USAGE", usageSection).
			add("FLAGS", flagsSection).
			build(c)
	}
}

func newUpCommand(conf *config) *cli.Command {
	return &cli.Command{
		UsageFunc: defaultUsageFunc(),

		Name:      "up",
		Usage:     "pgfixture up [flags]",
		ShortHelp: "Start a postgres container and keep it running until interrupted",
		Flags:     cli.FlagsFunc(containerFlags),
		Exec: func(ctx context.Context, s *cli.State) error {
			printer := newPrinter(s.Stdout, defaultSeparator)
			useJSON := cli.GetFlag[bool](s, jsonFlagName)

			values, err := loadValues(s)
			if err != nil {
				return err
			}
			values = applyContainerFlags(s, values)
			pgcfg, err := values.Config()
			if err != nil {
				return err
			}

			logger := newLogger(s)
			var pullProgress io.Writer = io.Discard
			if cli.GetFlag[bool](s, verboseFlagName) {
				pullProgress = s.Stderr
			}
			opts := []pgfixture.Option{
				pgfixture.WithLogger(logger),
				pgfixture.WithImage(values.Image),
				pgfixture.WithPullProgress(pullProgress),
			}
			opts = append(opts, conf.fixtureOptions...)

			return pgfixture.Up(ctx, pgcfg, func(ctx context.Context, pool *pgxpool.Pool) error {
				if useJSON {
					if err := printer.JSON(toUpOutput(pgcfg, values.Image)); err != nil {
						return err
					}
				} else {
					fmt.Fprintln(s.Stdout, pgcfg.URL())
				}
				logger.Info("press ctrl+c to stop and remove the container")
				<-ctx.Done()
				return nil
			}, opts...)
		},
	}
}

func newListCommand(conf *config) *cli.Command {
	return &cli.Command{
		UsageFunc: defaultUsageFunc(),

		Name:      "list",
		Usage:     "pgfixture list [flags]",
		ShortHelp: "List the containers started by pgfixture",
		Exec: func(ctx context.Context, s *cli.State) (retErr error) {
			printer := newPrinter(s.Stdout, defaultSeparator)
			useJSON := cli.GetFlag[bool](s, jsonFlagName)

			manager, err := conf.newManager(newLogger(s))
			if err != nil {
				return err
			}
			defer func() {
				retErr = multierr.Append(retErr, manager.Close())
			}()
			containers, err := manager.ListManaged(ctx)
			if err != nil {
				return err
			}
			if useJSON {
				return printer.JSON(toListOutput(containers))
			}
			table := tableData{
				Headers: []string{"Container ID", "Image", "State", "Status"},
			}
			for _, c := range containers {
				table.Rows = append(table.Rows, []string{shortID(c.ID), c.Image, c.State, c.Status})
			}
			return printer.Table(table)
		},
	}
}

func newPruneCommand(conf *config) *cli.Command {
	return &cli.Command{
		UsageFunc: defaultUsageFunc(),

		Name:      "prune",
		Usage:     "pgfixture prune [flags]",
		ShortHelp: "Force-remove every container started by pgfixture",
		Exec: func(ctx context.Context, s *cli.State) (retErr error) {
			printer := newPrinter(s.Stdout, defaultSeparator)
			useJSON := cli.GetFlag[bool](s, jsonFlagName)

			manager, err := conf.newManager(newLogger(s))
			if err != nil {
				return err
			}
			defer func() {
				retErr = multierr.Append(retErr, manager.Close())
			}()
			removed, err := manager.RemoveManaged(ctx)
			// Report what was removed even if some removals failed.
			if useJSON {
				err = multierr.Append(err, printer.JSON(pruneOutput{Removed: removed}))
			} else {
				fmt.Fprintf(s.Stdout, "removed %d container(s)\n", removed)
			}
			return err
		},
	}
}

func newEnvCommand() *cli.Command {
	return &cli.Command{
		UsageFunc: defaultUsageFunc(),

		Name:      "env",
		Usage:     "pgfixture env [flags]",
		ShortHelp: "Print the resolved environment variables",
		Exec: func(ctx context.Context, s *cli.State) error {
			printer := newPrinter(s.Stdout, defaultSeparator)
			useJSON := cli.GetFlag[bool](s, jsonFlagName)

			values, err := loadValues(s)
			if err != nil {
				return err
			}
			if useJSON {
				return printer.JSON(values.List())
			}
			for _, env := range values.List() {
				fmt.Fprintf(s.Stdout, "%s=%q\n", env.Name, env.Value)
			}
			return nil
		},
	}
}

func loadValues(s *cli.State) (cfg.Values, error) {
	if err := cfg.LoadEnvFile(cli.GetFlag[string](s, envFileFlagName)); err != nil {
		return cfg.Values{}, err
	}
	return cfg.Load()
}

func applyContainerFlags(s *cli.State, v cfg.Values) cfg.Values {
	v.Host = cmp.Or(cli.GetFlag[string](s, hostFlagName), v.Host)
	v.Port = cmp.Or(cli.GetFlag[int](s, portFlagName), v.Port)
	v.User = cmp.Or(cli.GetFlag[string](s, userFlagName), v.User)
	v.Password = cmp.Or(cli.GetFlag[string](s, passwordFlagName), v.Password)
	v.Database = cmp.Or(cli.GetFlag[string](s, dbFlagName), v.Database)
	v.Image = cmp.Or(cli.GetFlag[string](s, imageFlagName), v.Image)
	return v
}

func newLogger(s *cli.State) *slog.Logger {
	level := slog.LevelInfo
	if cli.GetFlag[bool](s, verboseFlagName) {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(s.Stderr, &slog.HandlerOptions{Level: level}))
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
