package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"mentorctl/internal/app"
	"mentorctl/internal/checks"
	"mentorctl/internal/harness"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newSuitesCmd() *cobra.Command {
	var showYAML bool
	cmd := &cobra.Command{
		Use:   "suites [NAME]",
		Short: "List available suites or show one",
		Long: `Lists the built-in suites and those found in the configured suitesDir.
With a name, prints that suite's tests; with --yaml, prints its definition.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			reg := harness.NewRegistry()
			if err := checks.Register(reg); err != nil {
				return err
			}
			catalog, err := app.LoadCatalog(reg, cfg.SuitesDir)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				return printSuites(cmd.OutOrStdout(), catalog.Definitions())
			}
			for _, def := range catalog.Definitions() {
				if def.Name != args[0] {
					continue
				}
				if showYAML {
					return yaml.NewEncoder(cmd.OutOrStdout()).Encode(def)
				}
				return printSuite(cmd.OutOrStdout(), def)
			}
			return fmt.Errorf("unknown suite %q", args[0])
		},
	}
	cmd.Flags().BoolVar(&showYAML, "yaml", false, "Print the suite definition as YAML")
	return cmd
}

var headerStyle = lipgloss.NewStyle().Bold(true)

// printTable writes rows as padded columns. The last column is not padded.
func printTable(out io.Writer, header []string, rows [][]string) error {
	widths := make([]int, len(header))
	for _, row := range append([][]string{header}, rows...) {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}
	line := func(row []string) string {
		cells := make([]string, len(row))
		for i, cell := range row {
			if i < len(row)-1 {
				cell = runewidth.FillRight(cell, widths[i])
			}
			cells[i] = cell
		}
		return strings.TrimRight(strings.Join(cells, "  "), " ")
	}
	if _, err := fmt.Fprintln(out, headerStyle.Render(line(header))); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(out, line(row)); err != nil {
			return err
		}
	}
	return nil
}

func printSuites(out io.Writer, defs []harness.Definition) error {
	rows := make([][]string, 0, len(defs))
	for _, d := range defs {
		rows = append(rows, []string{d.Name, strconv.Itoa(len(d.Tests)), d.Description})
	}
	return printTable(out, []string{"NAME", "TESTS", "DESCRIPTION"}, rows)
}

func printSuite(out io.Writer, def harness.Definition) error {
	fmt.Fprintf(out, "%s: %s\n\n", def.Name, def.Description)
	rows := make([][]string, 0, len(def.Tests))
	for i, t := range def.Tests {
		rows = append(rows, []string{strconv.Itoa(i + 1), t.Name, t.Check})
	}
	return printTable(out, []string{"#", "TEST", "CHECK"}, rows)
}

func newChecksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checks",
		Short: "List the checks suites can reference",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := harness.NewRegistry()
			if err := checks.Register(reg); err != nil {
				return err
			}
			var rows [][]string
			for _, c := range reg.List() {
				rows = append(rows, []string{c.Name, c.Description})
			}
			return printTable(cmd.OutOrStdout(), []string{"CHECK", "DESCRIPTION"}, rows)
		},
	}
}
