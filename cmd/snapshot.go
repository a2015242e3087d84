package cmd

import (
	"fmt"
	"io"
	"os"

	"mentorctl/internal/backup"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newSnapshotCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Dump the backend contents as YAML",
		Long: `Reads every tracked collection from the configured backend and writes
them as YAML. The output can be used as backend.memory.seedFile to reproduce
a live dataset locally.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			services, err := initServices(ctx)
			if err != nil {
				return err
			}
			defer services.Close()

			b, err := backup.NewManager(services.Adapter).Capture(ctx)
			if err != nil {
				return err
			}
			snap, _ := b.Snapshot()

			var out io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", output, err)
				}
				defer f.Close()
				out = f
			}
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(snap); err != nil {
				return fmt.Errorf("failed to encode snapshot: %w", err)
			}
			return enc.Close()
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file instead of stdout")
	return cmd
}
