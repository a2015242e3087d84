package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"mentorctl/internal/agent"
	"mentorctl/pkg/logging"

	"github.com/spf13/cobra"
)

func newMCPServerCmd() *cobra.Command {
	var (
		transport string
		port      int
	)
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Expose suite runs as MCP tools",
		Long: `Serves the tools list_suites, run_suite, get_run, list_runs and cancel_run
over the Model Context Protocol, so an AI assistant can run suites and read
their diagnostics.

With --transport=stdio (default) the server talks on stdin/stdout and logs go
to stderr. With --transport=sse it listens on server.host and --port.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			services, err := initServices(ctx)
			if err != nil {
				return err
			}
			defer services.Close()

			srv := agent.NewServer(services.Orchestrator, services.Catalog, services.Config.Run, rootCmd.Version)
			switch transport {
			case "stdio":
				// Logging already goes to stderr; stdout carries the protocol.
				err := srv.ServeStdio()
				if h := services.Orchestrator.Active(); h != nil {
					logging.Info("MCP", "Client disconnected; cancelling run %s", h.ID)
					h.Cancel()
					<-h.Done()
				}
				return err
			case "sse":
				return srv.ServeSSE(ctx, services.Config.Server.Host, port)
			default:
				return cmd.Help()
			}
		},
	}
	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport: stdio or sse")
	cmd.Flags().IntVar(&port, "port", 8091, "Port for the sse transport")
	return cmd
}
