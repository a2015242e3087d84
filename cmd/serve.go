package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"mentorctl/internal/agent"
	"mentorctl/internal/reporting"
	"mentorctl/internal/server"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	var (
		host    string
		port    int
		mcpPort int
		quiet   bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the run API over HTTP",
		Long: `Starts the HTTP API:

  POST /api/v1/runs              start a suite ({"suite": "smoke", "config": {...}})
  GET  /api/v1/runs              remembered runs, newest first
  GET  /api/v1/runs/active       the run in progress
  GET  /api/v1/runs/{id}         one run
  POST /api/v1/runs/{id}/cancel  cancel a run
  GET  /api/v1/suites            available suites
  GET  /api/v1/checks            available checks
  GET  /metrics                  Prometheus metrics
  GET  /healthz

Only one run may be active at a time; a second start returns 409.
With --mcp-port the MCP tools are also served over SSE on that port.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			services, err := initServices(ctx)
			if err != nil {
				return err
			}
			defer services.Close()

			cfg := services.Config
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if !quiet {
				reporting.NewConsoleReporter(cmd.OutOrStdout(), false).Attach(services.EventBus, nil)
			}

			srv := server.New(services.Orchestrator, services.Catalog, services.Registry, server.Options{
				Defaults:       cfg.Run,
				Gatherer:       services.MetricsRegistry,
				AllowedOrigins: cfg.Server.AllowedOrigins,
			})

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return srv.ListenAndServe(gctx, cfg.Server.Host, cfg.Server.Port)
			})
			if mcpPort > 0 {
				mcp := agent.NewServer(services.Orchestrator, services.Catalog, cfg.Run, rootCmd.Version)
				g.Go(func() error {
					return mcp.ServeSSE(gctx, cfg.Server.Host, mcpPort)
				})
			}
			if err := g.Wait(); err != nil {
				return fmt.Errorf("server failed: %w", err)
			}

			// Let an interrupted run restore the backend before exiting.
			if h := services.Orchestrator.Active(); h != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "Cancelling active run and waiting for the restore...")
				h.Cancel()
				<-h.Done()
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&host, "host", "localhost", "Listen host (overrides server.host)")
	cmd.Flags().IntVar(&port, "port", 8090, "Listen port (overrides server.port)")
	cmd.Flags().IntVar(&mcpPort, "mcp-port", 0, "Also serve MCP over SSE on this port")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print run progress")
	return cmd
}
