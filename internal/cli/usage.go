package cli

import (
	"cmp"
	"flag"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mfridman/cli"
	"github.com/pressly/pgfixture/internal/cfg"
)

var (
	style = lipgloss.NewStyle().Bold(true)
)

type helpSection struct {
	title   string
	content func(*cli.Command) string
}

type help struct {
	sections []helpSection
}

func newHelp() *help {
	return &help{}
}

func (h *help) add(title string, content func(*cli.Command) string) *help {
	h.sections = append(h.sections, helpSection{title, content})
	return h
}

func (h *help) build(c *cli.Command) string {
	var sb strings.Builder
	for _, section := range h.sections {
		if section.content == nil {
			continue
		}
		content := section.content(c)
		if strings.TrimSpace(content) == "" {
			continue
		}
		if section.title != "" {
			sb.WriteString(render(section.title) + "\n")
		}
		sb.WriteString(content)
	}
	return strings.TrimSpace(sb.String()) + "\n"
}

func shortHelpSection(c *cli.Command) string {
	return c.ShortHelp + "\n\n"
}

func usageSection(c *cli.Command) string {
	return fmt.Sprintf("  %s\n\n", c.Usage)
}

func commandsSection(c *cli.Command) string {
	rows := make([][2]string, 0, len(c.SubCommands))
	for _, cmd := range c.SubCommands {
		rows = append(rows, [2]string{cmd.Name, cmd.ShortHelp})
	}
	return alignRows(rows, 2)
}

func flagsSection(c *cli.Command) string {
	if c.Flags == nil {
		return ""
	}
	var all []*flag.Flag
	c.Flags.VisitAll(func(f *flag.Flag) {
		all = append(all, f)
	})
	slices.SortFunc(all, func(a, b *flag.Flag) int {
		return cmp.Compare(a.Name, b.Name)
	})
	rows := make([][2]string, 0, len(all))
	for _, f := range all {
		rows = append(rows, [2]string{"--" + f.Name, f.Usage})
	}
	return alignRows(rows, 4)
}

func envVarsSection(_ *cli.Command) string {
	return alignRows([][2]string{
		{cfg.EnvHost, fmt.Sprintf("Host address (default: %s)", cfg.DefaultHost)},
		{cfg.EnvPort, "Host port (default: a free port)"},
		{cfg.EnvUser, fmt.Sprintf("Database user (default: %s)", cfg.DefaultUser)},
		{cfg.EnvPassword, "Database password (default: random)"},
		{cfg.EnvDB, fmt.Sprintf("Database name (default: %s)", cfg.DefaultDatabase)},
		{cfg.EnvImage, "Postgres image"},
		{cfg.EnvNoColor, "Disable color output"},
	}, 2)
}

func learnMoreSection(_ *cli.Command) string {
	return "  Use 'pgfixture <command> --help' for more information about a command\n"
}

// alignRows renders name/description pairs with the descriptions in one column.
func alignRows(rows [][2]string, gap int) string {
	if len(rows) == 0 {
		return ""
	}
	maxLen := 0
	for _, row := range rows {
		maxLen = max(maxLen, len(row[0]))
	}
	var sb strings.Builder
	for _, row := range rows {
		padding := strings.Repeat(" ", maxLen-len(row[0])+gap)
		fmt.Fprintf(&sb, "  %s%s%s\n", row[0], padding, row[1])
	}
	return sb.String() + "\n"
}

func render(s string) string {
	if cfg.NoColor() {
		return s
	}
	return style.Render(s)
}
